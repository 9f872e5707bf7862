/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mocks

import (
	"fmt"
	"net"
	"sync"

	"github.com/golang/protobuf/proto"
	"github.com/hyperledger/fabric-protos-go/common"
	ab "github.com/hyperledger/fabric-protos-go/orderer"
	pb "github.com/hyperledger/fabric-protos-go/peer"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/fcw-sdk/fabric-chain/internal/protoutil"
)

// MockDeliverServer mock peer deliver service. Blocks written to Blocks are
// streamed to every open Deliver stream in turn; closing Blocks ends the streams.
// Like a peer, a stream seeking the newest block first receives the ledger's
// latest committed block.
type MockDeliverServer struct {
	Creds  credentials.TransportCredentials
	Blocks chan *common.Block

	mtx        sync.RWMutex
	tip        *common.Block
	disconnErr error
	seeks      []*common.Envelope
	connected  chan struct{}
	srv        *grpc.Server
	wg         sync.WaitGroup
}

// NewMockDeliverServer returns a new MockDeliverServer with a buffered block channel
func NewMockDeliverServer() *MockDeliverServer {
	return &MockDeliverServer{
		Blocks:    make(chan *common.Block, 16),
		tip:       NewBlock(0),
		connected: make(chan struct{}, 16),
	}
}

// SetTip sets the latest committed block of the mock ledger. With a nil tip
// newest seeks get no block until one is written to Blocks.
func (s *MockDeliverServer) SetTip(block *common.Block) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.tip = block
}

func (s *MockDeliverServer) latest() *common.Block {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.tip
}

// Disconnect makes open streams fail with err after the next block
func (s *MockDeliverServer) Disconnect(err error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.disconnErr = err
}

func (s *MockDeliverServer) disconnectErr() error {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.disconnErr
}

// Connected is signalled each time a seek request is received
func (s *MockDeliverServer) Connected() <-chan struct{} {
	return s.connected
}

// SeekRequests returns the seek envelopes received so far
func (s *MockDeliverServer) SeekRequests() []*common.Envelope {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return append([]*common.Envelope(nil), s.seeks...)
}

// Deliver streams blocks from the Blocks channel
func (s *MockDeliverServer) Deliver(srv pb.Deliver_DeliverServer) error {
	env, err := srv.Recv()
	if err != nil {
		return err
	}
	s.mtx.Lock()
	s.seeks = append(s.seeks, env)
	s.mtx.Unlock()

	if tip := s.latest(); tip != nil && seeksNewest(env) {
		if err := srv.Send(&pb.DeliverResponse{Type: &pb.DeliverResponse_Block{Block: tip}}); err != nil {
			return err
		}
	}

	select {
	case s.connected <- struct{}{}:
	default:
	}

	for {
		select {
		case <-srv.Context().Done():
			return srv.Context().Err()
		case block, ok := <-s.Blocks:
			if !ok {
				return srv.Send(&pb.DeliverResponse{Type: &pb.DeliverResponse_Status{Status: common.Status_SUCCESS}})
			}
			if err := s.disconnectErr(); err != nil {
				return err
			}
			s.SetTip(block)
			if err := srv.Send(&pb.DeliverResponse{Type: &pb.DeliverResponse_Block{Block: block}}); err != nil {
				return err
			}
		}
	}
}

func seeksNewest(env *common.Envelope) bool {
	payload, err := protoutil.UnmarshalPayload(env.Payload)
	if err != nil {
		return false
	}
	info := &ab.SeekInfo{}
	if err := proto.Unmarshal(payload.Data, info); err != nil {
		return false
	}
	return info.GetStart().GetNewest() != nil
}

// DeliverFiltered is not supported by the mock
func (s *MockDeliverServer) DeliverFiltered(srv pb.Deliver_DeliverFilteredServer) error {
	return errors.New("filtered delivery not supported")
}

// DeliverWithPrivateData is not supported by the mock
func (s *MockDeliverServer) DeliverWithPrivateData(srv pb.Deliver_DeliverWithPrivateDataServer) error {
	return errors.New("private data delivery not supported")
}

// Start the mock deliver server
func (s *MockDeliverServer) Start(address string) string {
	if s.srv != nil {
		panic("MockDeliverServer already started")
	}

	if s.Creds != nil {
		s.srv = grpc.NewServer(grpc.Creds(s.Creds))
	} else {
		s.srv = grpc.NewServer()
	}

	lis, err := net.Listen("tcp", address)
	if err != nil {
		panic(fmt.Sprintf("Error starting DeliverServer %s", err))
	}
	addr := lis.Addr().String()

	pb.RegisterDeliverServer(s.srv, s)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.srv.Serve(lis); err != nil {
			logger.Debugf("MockDeliverServer stopped [%s]", err)
		}
	}()

	return addr
}

// Stop the mock deliver server and wait for completion.
func (s *MockDeliverServer) Stop() {
	if s.srv == nil {
		panic("MockDeliverServer not started")
	}

	s.srv.Stop()
	s.wg.Wait()
	s.srv = nil
}
