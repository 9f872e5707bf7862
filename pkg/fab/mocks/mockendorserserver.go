/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package mocks provides in-process gRPC servers standing in for peers and orderers.
package mocks

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/golang/protobuf/proto"
	pb "github.com/hyperledger/fabric-protos-go/peer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/fcw-sdk/fabric-chain/internal/protoutil"
)

// ProposalHandler produces the response for a proposal. Returning nil defers
// to the server's configured behavior.
type ProposalHandler func(signed *pb.SignedProposal, cis *pb.ChaincodeInvocationSpec) *pb.ProposalResponse

// MockEndorserServer mock endorser server to process endorsement proposals
type MockEndorserServer struct {
	Creds credentials.TransportCredentials
	// ProposalError is returned as a gRPC error when set
	ProposalError error
	// Status of the chaincode response, 200 when zero
	Status int32
	// Message of the chaincode response
	Message string
	// Payload returned by the chaincode
	Payload []byte
	// Handler overrides the response per proposal
	Handler ProposalHandler

	mtx       sync.Mutex
	proposals []*pb.SignedProposal
	wg        sync.WaitGroup
	srv       *grpc.Server
}

// ProcessProposal returns a successful endorsement unless ProposalError or a non-success Status is set
func (m *MockEndorserServer) ProcessProposal(ctx context.Context, signed *pb.SignedProposal) (*pb.ProposalResponse, error) {
	m.mtx.Lock()
	m.proposals = append(m.proposals, signed)
	handler := m.Handler
	m.mtx.Unlock()

	if m.ProposalError != nil {
		return nil, m.ProposalError
	}

	if handler != nil {
		if resp := handler(signed, InvocationSpec(signed)); resp != nil {
			return resp, nil
		}
	}

	return NewProposalResponse(m.status(), m.Message, m.Payload), nil
}

func (m *MockEndorserServer) status() int32 {
	if m.Status == 0 {
		return 200
	}
	return m.Status
}

// Proposals returns the signed proposals received so far
func (m *MockEndorserServer) Proposals() []*pb.SignedProposal {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return append([]*pb.SignedProposal(nil), m.proposals...)
}

// NewProposalResponse builds an endorsed proposal response carrying payload
func NewProposalResponse(status int32, message string, payload []byte) *pb.ProposalResponse {
	response := &pb.Response{Status: status, Message: message, Payload: payload}
	ccAction, err := proto.Marshal(&pb.ChaincodeAction{Response: response})
	if err != nil {
		panic(err)
	}
	prp, err := proto.Marshal(&pb.ProposalResponsePayload{ProposalHash: []byte("hash"), Extension: ccAction})
	if err != nil {
		panic(err)
	}
	return &pb.ProposalResponse{
		Response:    response,
		Payload:     prp,
		Endorsement: &pb.Endorsement{Endorser: []byte("endorser"), Signature: []byte("signature")},
	}
}

// InvocationSpec extracts the chaincode invocation from a signed proposal, nil if malformed
func InvocationSpec(signed *pb.SignedProposal) *pb.ChaincodeInvocationSpec {
	prop := &pb.Proposal{}
	if err := proto.Unmarshal(signed.ProposalBytes, prop); err != nil {
		return nil
	}
	cpp, err := protoutil.UnmarshalChaincodeProposalPayload(prop.Payload)
	if err != nil {
		return nil
	}
	cis, err := protoutil.UnmarshalChaincodeInvocationSpec(cpp.Input)
	if err != nil {
		return nil
	}
	return cis
}

// Start the mock endorser server on address and return the bound address
func (m *MockEndorserServer) Start(address string) string {
	if m.srv != nil {
		panic("MockEndorserServer already started")
	}

	if m.Creds != nil {
		m.srv = grpc.NewServer(grpc.Creds(m.Creds))
	} else {
		m.srv = grpc.NewServer()
	}

	lis, err := net.Listen("tcp", address)
	if err != nil {
		panic(fmt.Sprintf("Error starting EndorserServer %s", err))
	}
	addr := lis.Addr().String()

	pb.RegisterEndorserServer(m.srv, m)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.srv.Serve(lis); err != nil {
			logger.Debugf("MockEndorserServer stopped [%s]", err)
		}
	}()

	return addr
}

// Stop the mock endorser server and wait for completion.
func (m *MockEndorserServer) Stop() {
	if m.srv == nil {
		panic("MockEndorserServer not started")
	}

	m.srv.Stop()
	m.wg.Wait()
	m.srv = nil
}
