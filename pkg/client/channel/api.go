/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package channel

import (
	"time"

	pb "github.com/hyperledger/fabric-protos-go/peer"
	"github.com/pkg/errors"

	"github.com/fcw-sdk/fabric-chain/pkg/fab"
)

// opts allows the user to specify more advanced options
type requestOptions struct {
	Targets  []fab.ProposalProcessor
	AllPeers bool
	Timeout  time.Duration
}

// RequestOption func for each Opts argument
type RequestOption func(opts *requestOptions) error

// Request contains the parameters to query and execute an invocation transaction
type Request struct {
	ChaincodeID  string
	Fcn          string
	Args         [][]byte
	TransientMap map[string][]byte
}

// Response contains response parameters for query and execute an invocation transaction.
// TxValidationCode is NOT_VALIDATED: Execute returns before the transaction is committed.
type Response struct {
	Payload          []byte
	TransactionID    fab.TransactionID
	TxValidationCode pb.TxValidationCode
	Proposal         *fab.TransactionProposal
	Responses        []*fab.TransactionProposalResponse
}

// WithTimeout bounds the whole request
func WithTimeout(timeout time.Duration) RequestOption {
	return func(o *requestOptions) error {
		o.Timeout = timeout
		return nil
	}
}

// WithTargets overrides the peers the request is sent to
func WithTargets(targets ...fab.ProposalProcessor) RequestOption {
	return func(o *requestOptions) error {
		for _, t := range targets {
			if t == nil {
				return errors.New("target is nil")
			}
		}
		o.Targets = targets
		return nil
	}
}

// WithAllPeers sends a query to every peer of the channel instead of the primary peer only
func WithAllPeers() RequestOption {
	return func(o *requestOptions) error {
		o.AllPeers = true
		return nil
	}
}
