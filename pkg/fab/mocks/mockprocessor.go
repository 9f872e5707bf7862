/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mocks

import (
	reqContext "context"
	"sync"

	"github.com/hyperledger/fabric-protos-go/common"

	"github.com/fcw-sdk/fabric-chain/pkg/fab"
)

// MockProposalProcessor is an in-memory endorser
type MockProposalProcessor struct {
	Endorser string
	Status   int32
	Payload  []byte
	Err      error

	mtx      sync.Mutex
	requests []fab.ProcessProposalRequest
}

// ProcessTransactionProposal returns the configured response or error
func (m *MockProposalProcessor) ProcessTransactionProposal(ctx reqContext.Context, request fab.ProcessProposalRequest) (*fab.TransactionProposalResponse, error) {
	m.mtx.Lock()
	m.requests = append(m.requests, request)
	m.mtx.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	s := m.Status
	if s == 0 {
		s = 200
	}
	return &fab.TransactionProposalResponse{
		Endorser:         m.Endorser,
		Status:           s,
		ProposalResponse: NewProposalResponse(s, "", m.Payload),
	}, nil
}

// Requests returns the proposals received so far
func (m *MockProposalProcessor) Requests() []fab.ProcessProposalRequest {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return append([]fab.ProcessProposalRequest(nil), m.requests...)
}

// MockOrderer is an in-memory orderer
type MockOrderer struct {
	Address       string
	BroadcastErr  error
	DeliverBlocks []*common.Block
	DeliverErr    error

	mtx       sync.Mutex
	envelopes []*fab.SignedEnvelope
}

// URL returns the orderer address
func (m *MockOrderer) URL() string {
	return m.Address
}

// SendBroadcast records the envelope
func (m *MockOrderer) SendBroadcast(ctx reqContext.Context, envelope *fab.SignedEnvelope) (*common.Status, error) {
	m.mtx.Lock()
	m.envelopes = append(m.envelopes, envelope)
	m.mtx.Unlock()

	if m.BroadcastErr != nil {
		return nil, m.BroadcastErr
	}
	s := common.Status_SUCCESS
	return &s, nil
}

// SendDeliver records the seek and returns DeliverBlocks
func (m *MockOrderer) SendDeliver(ctx reqContext.Context, envelope *fab.SignedEnvelope) (chan *common.Block, chan error) {
	m.mtx.Lock()
	m.envelopes = append(m.envelopes, envelope)
	m.mtx.Unlock()

	blocks := make(chan *common.Block, len(m.DeliverBlocks))
	errs := make(chan error, 1)
	if m.DeliverErr != nil {
		errs <- m.DeliverErr
	} else {
		for _, b := range m.DeliverBlocks {
			blocks <- b
		}
	}
	close(blocks)
	return blocks, errs
}

// Envelopes returns the envelopes sent so far
func (m *MockOrderer) Envelopes() []*fab.SignedEnvelope {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return append([]*fab.SignedEnvelope(nil), m.envelopes...)
}
