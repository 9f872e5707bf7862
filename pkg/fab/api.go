/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package fab holds the types shared by the peer, orderer and transaction packages.
package fab

import (
	reqContext "context"

	"github.com/hyperledger/fabric-protos-go/common"
	pb "github.com/hyperledger/fabric-protos-go/peer"
)

// SigningIdentity signs on behalf of a serialized enrolled identity
type SigningIdentity interface {
	// Identifier returns the enrollment ID
	Identifier() string
	// MSPID returns the membership service provider of the identity
	MSPID() string
	// Serialize returns the identity as sent in signature headers
	Serialize() ([]byte, error)
	// Sign signs msg with the identity's private key
	Sign(msg []byte) ([]byte, error)
}

// TransactionID is the ID of a transaction
type TransactionID string

// TransactionHeader identifies a transaction and its creator
type TransactionHeader struct {
	ID        TransactionID
	Creator   []byte
	Nonce     []byte
	ChannelID string
}

// ChaincodeInvokeRequest contains the parameters for sending a transaction proposal.
type ChaincodeInvokeRequest struct {
	ChaincodeID  string
	Fcn          string
	Args         [][]byte
	TransientMap map[string][]byte
}

// TransactionProposal contains a marshalled transaction proposal.
type TransactionProposal struct {
	TxnID TransactionID
	*pb.Proposal
}

// ProcessProposalRequest requests simulation of a proposed transaction from transaction processors.
type ProcessProposalRequest struct {
	SignedProposal *pb.SignedProposal
}

// TransactionProposalResponse respresents the result of transaction proposal processing.
type TransactionProposalResponse struct {
	Endorser string
	Status   int32
	*pb.ProposalResponse
}

// ProposalProcessor simulates transaction proposals
type ProposalProcessor interface {
	ProcessTransactionProposal(reqCtx reqContext.Context, request ProcessProposalRequest) (*TransactionProposalResponse, error)
}

// Peer is an endorsing peer
type Peer interface {
	ProposalProcessor
	URL() string
}

// SignedEnvelope is a payload and its signature
type SignedEnvelope struct {
	Payload   []byte
	Signature []byte
}

// Orderer submits envelopes to the ordering service and reads blocks from it
type Orderer interface {
	URL() string
	SendBroadcast(ctx reqContext.Context, envelope *SignedEnvelope) (*common.Status, error)
	SendDeliver(ctx reqContext.Context, envelope *SignedEnvelope) (chan *common.Block, chan error)
}

// TransactionRequest holds the endorsed proposal responses to assemble into a transaction
type TransactionRequest struct {
	Proposal          *TransactionProposal
	ProposalResponses []*TransactionProposalResponse
}

// Transaction is a transaction ready to be submitted to the orderer
type Transaction struct {
	Proposal    *TransactionProposal
	Transaction *pb.Transaction
}

// TransactionResponse is the acknowledgement of a broadcast
type TransactionResponse struct {
	Orderer string
	Status  common.Status
}
