/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mocks

import (
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/hyperledger/fabric-protos-go/common"
	ab "github.com/hyperledger/fabric-protos-go/orderer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/fcw-sdk/fabric-chain/pkg/common/logging"
)

var logger = logging.NewLogger("fcw/fab")

// TestBlock is the block delivered when no blocks are configured
var TestBlock = &common.Block{
	Header: &common.BlockHeader{Number: 0},
	Data: &common.BlockData{
		Data: [][]byte{[]byte("test")},
	},
}

// MockBroadcastServer mock orderer serving Broadcast and Deliver
type MockBroadcastServer struct {
	Creds credentials.TransportCredentials
	// BroadcastError is returned by Broadcast when set
	BroadcastError error
	// BroadcastStatus is sent for each envelope, SUCCESS when zero
	BroadcastStatus common.Status
	// DeliverError is returned by Deliver when set
	DeliverError error
	// Blocks are sent by Deliver, TestBlock when empty
	Blocks []*common.Block

	mtx       sync.Mutex
	envelopes []*common.Envelope
	seeks     []*common.Envelope
	srv       *grpc.Server
	wg        sync.WaitGroup
}

// Broadcast records each envelope and answers with BroadcastStatus
func (m *MockBroadcastServer) Broadcast(server ab.AtomicBroadcast_BroadcastServer) error {
	for {
		env, err := server.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if m.BroadcastError != nil {
			return m.BroadcastError
		}

		m.mtx.Lock()
		m.envelopes = append(m.envelopes, env)
		m.mtx.Unlock()

		status := m.BroadcastStatus
		if status == 0 {
			status = common.Status_SUCCESS
		}
		if err := server.Send(&ab.BroadcastResponse{Status: status, Info: status.String()}); err != nil {
			return err
		}
	}
}

// Deliver answers a seek request with Blocks followed by a SUCCESS status
func (m *MockBroadcastServer) Deliver(server ab.AtomicBroadcast_DeliverServer) error {
	if m.DeliverError != nil {
		return m.DeliverError
	}

	env, err := server.Recv()
	if err != nil {
		return err
	}
	m.mtx.Lock()
	m.seeks = append(m.seeks, env)
	m.mtx.Unlock()

	blocks := m.Blocks
	if len(blocks) == 0 {
		blocks = []*common.Block{TestBlock}
	}
	for _, block := range blocks {
		if err := server.Send(&ab.DeliverResponse{Type: &ab.DeliverResponse_Block{Block: block}}); err != nil {
			return err
		}
	}
	return server.Send(&ab.DeliverResponse{Type: &ab.DeliverResponse_Status{Status: common.Status_SUCCESS}})
}

// Envelopes returns the broadcast envelopes received so far
func (m *MockBroadcastServer) Envelopes() []*common.Envelope {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return append([]*common.Envelope(nil), m.envelopes...)
}

// SeekRequests returns the deliver seek envelopes received so far
func (m *MockBroadcastServer) SeekRequests() []*common.Envelope {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return append([]*common.Envelope(nil), m.seeks...)
}

// Start the mock broadcast server
func (m *MockBroadcastServer) Start(address string) string {
	if m.srv != nil {
		panic("MockBroadcastServer already started")
	}

	if m.Creds != nil {
		m.srv = grpc.NewServer(grpc.Creds(m.Creds))
	} else {
		m.srv = grpc.NewServer()
	}

	lis, err := net.Listen("tcp", address)
	if err != nil {
		panic(fmt.Sprintf("Error starting BroadcastServer %s", err))
	}
	addr := lis.Addr().String()

	ab.RegisterAtomicBroadcastServer(m.srv, m)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.srv.Serve(lis); err != nil {
			logger.Debugf("MockBroadcastServer stopped [%s]", err)
		}
	}()

	return addr
}

// Stop the mock broadcast server and wait for completion.
func (m *MockBroadcastServer) Stop() {
	if m.srv == nil {
		panic("MockBroadcastServer not started")
	}

	m.srv.Stop()
	m.wg.Wait()
	m.srv = nil
}
