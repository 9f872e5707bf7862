/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package txn

import (
	reqContext "context"
	"sync"

	pb "github.com/hyperledger/fabric-protos-go/peer"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/fcw-sdk/fabric-chain/internal/protoutil"
	fcwerrors "github.com/fcw-sdk/fabric-chain/pkg/errors"
	"github.com/fcw-sdk/fabric-chain/pkg/fab"
)

// NewHeader computes a fresh transaction ID for the signer on the channel
func NewHeader(signer fab.SigningIdentity, channelID string) (*fab.TransactionHeader, error) {
	nonce, err := protoutil.CreateNonce()
	if err != nil {
		return nil, errors.WithMessage(err, "nonce creation failed")
	}
	creator, err := signer.Serialize()
	if err != nil {
		return nil, errors.WithMessage(err, "identity serialization failed")
	}
	return &fab.TransactionHeader{
		ID:        fab.TransactionID(protoutil.ComputeTxID(nonce, creator)),
		Creator:   creator,
		Nonce:     nonce,
		ChannelID: channelID,
	}, nil
}

// CreateChaincodeInvokeProposal creates a proposal for transaction.
func CreateChaincodeInvokeProposal(txh *fab.TransactionHeader, request fab.ChaincodeInvokeRequest) (*fab.TransactionProposal, error) {
	if request.ChaincodeID == "" {
		return nil, errors.New("ChaincodeID is required")
	}
	if request.Fcn == "" {
		return nil, errors.New("Fcn is required")
	}

	// function name goes first in the arguments
	argsArray := make([][]byte, len(request.Args)+1)
	argsArray[0] = []byte(request.Fcn)
	copy(argsArray[1:], request.Args)

	cis := &pb.ChaincodeInvocationSpec{ChaincodeSpec: &pb.ChaincodeSpec{
		Type:        pb.ChaincodeSpec_GOLANG,
		ChaincodeId: &pb.ChaincodeID{Name: request.ChaincodeID},
		Input:       &pb.ChaincodeInput{Args: argsArray},
	}}

	return CreateProposal(txh, cis, request.TransientMap)
}

// CreateProposal creates a proposal invoking cis
func CreateProposal(txh *fab.TransactionHeader, cis *pb.ChaincodeInvocationSpec, transientMap map[string][]byte) (*fab.TransactionProposal, error) {
	proposal, err := protoutil.CreateChaincodeProposal(string(txh.ID), txh.ChannelID, cis, txh.Nonce, txh.Creator, transientMap)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create chaincode proposal")
	}
	return &fab.TransactionProposal{TxnID: txh.ID, Proposal: proposal}, nil
}

// SendProposal signs the proposal and sends it to every target concurrently.
// Responses are returned in target order. Any failed target fails the call
// with an EndorsementError aggregating each target's error.
func SendProposal(reqCtx reqContext.Context, signer fab.SigningIdentity, proposal *fab.TransactionProposal, targets []fab.ProposalProcessor) ([]*fab.TransactionProposalResponse, error) {
	const op = "SendProposal"

	if proposal == nil {
		return nil, errors.New("proposal is required")
	}
	if len(targets) < 1 {
		return nil, errors.New("targets is required")
	}
	for _, p := range targets {
		if p == nil {
			return nil, errors.New("target is nil")
		}
	}

	signedProposal, err := protoutil.SignProposal(signer, proposal.Proposal)
	if err != nil {
		return nil, errors.WithMessage(err, "sign proposal failed")
	}
	request := fab.ProcessProposalRequest{SignedProposal: signedProposal}

	responses := make([]*fab.TransactionProposalResponse, len(targets))
	var errMtx sync.Mutex
	var errs error
	var wg sync.WaitGroup

	for i, p := range targets {
		wg.Add(1)
		go func(i int, processor fab.ProposalProcessor) {
			defer wg.Done()

			resp, err := processor.ProcessTransactionProposal(reqCtx, request)
			if err != nil {
				logger.Debugf("Received error response from txn proposal processing: %s", err)
				errMtx.Lock()
				errs = multierr.Append(errs, err)
				errMtx.Unlock()
				return
			}
			responses[i] = resp
		}(i, p)
	}
	wg.Wait()

	if errs != nil {
		return nil, fcwerrors.E(fcwerrors.EndorsementError, op, errs)
	}
	return responses, nil
}
