/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package txn creates, endorses and submits transactions.
package txn

import (
	"bytes"
	reqContext "context"

	"github.com/hyperledger/fabric-protos-go/common"
	pb "github.com/hyperledger/fabric-protos-go/peer"
	"github.com/pkg/errors"

	"github.com/fcw-sdk/fabric-chain/internal/protoutil"
	"github.com/fcw-sdk/fabric-chain/pkg/common/errors/status"
	"github.com/fcw-sdk/fabric-chain/pkg/common/logging"
	fcwerrors "github.com/fcw-sdk/fabric-chain/pkg/errors"
	"github.com/fcw-sdk/fabric-chain/pkg/fab"
)

var logger = logging.NewLogger("fcw/fab")

// ValidateResponses checks that every response succeeded and that all
// endorsers produced byte-identical results.
func ValidateResponses(responses []*fab.TransactionProposalResponse) error {
	const op = "ValidateResponses"

	if len(responses) == 0 {
		return fcwerrors.New(fcwerrors.EndorsementError, op, "at least one proposal response is necessary")
	}

	for _, r := range responses {
		if r == nil || r.ProposalResponse == nil || r.ProposalResponse.Response == nil {
			return fcwerrors.E(fcwerrors.EndorsementError, op,
				status.New(status.EndorserClientStatus, status.MissingEndorsement.ToInt32(), "empty proposal response", nil))
		}
		if !status.IsProposalSuccess(r.Status) {
			return fcwerrors.E(fcwerrors.EndorsementError, op, status.NewFromProposalResponse(r.ProposalResponse, r.Endorser))
		}
		if r.Endorsement == nil {
			return fcwerrors.E(fcwerrors.EndorsementError, op,
				status.New(status.EndorserClientStatus, status.MissingEndorsement.ToInt32(), "missing endorsement", []interface{}{r.Endorser}))
		}
	}

	first := responses[0]
	for _, r := range responses[1:] {
		if !bytes.Equal(first.ProposalResponse.Payload, r.ProposalResponse.Payload) ||
			!bytes.Equal(first.ProposalResponse.Response.Payload, r.ProposalResponse.Response.Payload) {
			return fcwerrors.E(fcwerrors.EndorsementMismatchError, op,
				status.New(status.EndorserClientStatus, status.EndorsementMismatch.ToInt32(),
					"proposal responses do not match", []interface{}{first.Endorser, r.Endorser}))
		}
	}
	return nil
}

// New creates a transaction from the endorsed proposal responses.
func New(request fab.TransactionRequest) (*fab.Transaction, error) {
	if err := ValidateResponses(request.ProposalResponses); err != nil {
		return nil, err
	}
	if request.Proposal == nil || request.Proposal.Proposal == nil {
		return nil, errors.New("proposal is required")
	}

	hdr, err := protoutil.UnmarshalHeader(request.Proposal.Header)
	if err != nil {
		return nil, errors.WithMessage(err, "unmarshal proposal header failed")
	}

	endorsements := make([]*pb.Endorsement, len(request.ProposalResponses))
	for n, r := range request.ProposalResponses {
		endorsements[n] = r.Endorsement
	}

	cea := &pb.ChaincodeEndorsedAction{
		ProposalResponsePayload: request.ProposalResponses[0].ProposalResponse.Payload,
		Endorsements:            endorsements,
	}

	propPayloadBytes, err := protoutil.ProposalPayloadForTx(request.Proposal.Payload)
	if err != nil {
		return nil, err
	}

	capBytes, err := protoutil.Marshal(&pb.ChaincodeActionPayload{ChaincodeProposalPayload: propPayloadBytes, Action: cea})
	if err != nil {
		return nil, err
	}

	return &fab.Transaction{
		Transaction: &pb.Transaction{Actions: []*pb.TransactionAction{{Header: hdr.SignatureHeader, Payload: capBytes}}},
		Proposal:    request.Proposal,
	}, nil
}

// Send signs the transaction and broadcasts it to the orderer. It returns on
// the orderer's acknowledgement without waiting for the commit.
func Send(reqCtx reqContext.Context, signer fab.SigningIdentity, tx *fab.Transaction, orderer fab.Orderer) (*fab.TransactionResponse, error) {
	if orderer == nil {
		return nil, errors.New("orderer is required")
	}
	if tx == nil || tx.Proposal == nil || tx.Proposal.Proposal == nil {
		return nil, errors.New("transaction is required")
	}

	hdr, err := protoutil.UnmarshalHeader(tx.Proposal.Header)
	if err != nil {
		return nil, errors.WithMessage(err, "unmarshal proposal header failed")
	}
	txBytes, err := protoutil.Marshal(tx.Transaction)
	if err != nil {
		return nil, err
	}

	envelope, err := protoutil.SignPayload(signer, &common.Payload{Header: hdr, Data: txBytes})
	if err != nil {
		return nil, err
	}
	return BroadcastEnvelope(reqCtx, envelope, orderer)
}

// BroadcastEnvelope sends an already signed envelope to the orderer.
func BroadcastEnvelope(reqCtx reqContext.Context, envelope *common.Envelope, orderer fab.Orderer) (*fab.TransactionResponse, error) {
	logger.Debugf("Broadcasting envelope to orderer :%s", orderer.URL())

	s, err := orderer.SendBroadcast(reqCtx, &fab.SignedEnvelope{Payload: envelope.Payload, Signature: envelope.Signature})
	if err != nil {
		logger.Debugf("Receive Error Response from orderer :%s", err)
		return nil, fcwerrors.E(fcwerrors.SubmissionError, "Broadcast", errors.WithMessagef(err, "calling orderer '%s' failed", orderer.URL()))
	}

	resp := &fab.TransactionResponse{Orderer: orderer.URL(), Status: common.Status_SUCCESS}
	if s != nil {
		resp.Status = *s
	}
	return resp, nil
}

// Endorse creates, signs and sends a chaincode proposal to the targets and
// validates the responses. The caller decides whether to submit.
func Endorse(reqCtx reqContext.Context, signer fab.SigningIdentity, channelID string, request fab.ChaincodeInvokeRequest, targets []fab.ProposalProcessor) (*fab.TransactionProposal, []*fab.TransactionProposalResponse, error) {
	txh, err := NewHeader(signer, channelID)
	if err != nil {
		return nil, nil, errors.WithMessage(err, "creating transaction header failed")
	}
	proposal, err := CreateChaincodeInvokeProposal(txh, request)
	if err != nil {
		return nil, nil, err
	}
	responses, err := SendProposal(reqCtx, signer, proposal, targets)
	if err != nil {
		return proposal, nil, err
	}
	return proposal, responses, nil
}
