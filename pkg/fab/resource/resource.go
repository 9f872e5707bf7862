/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package resource

import (
	reqContext "context"

	"github.com/golang/protobuf/proto"
	"github.com/hyperledger/fabric-protos-go/common"
	pb "github.com/hyperledger/fabric-protos-go/peer"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/fcw-sdk/fabric-chain/internal/protoutil"
	"github.com/fcw-sdk/fabric-chain/pkg/common/errors/status"
	"github.com/fcw-sdk/fabric-chain/pkg/common/logging"
	fcwerrors "github.com/fcw-sdk/fabric-chain/pkg/errors"
	"github.com/fcw-sdk/fabric-chain/pkg/fab"
	"github.com/fcw-sdk/fabric-chain/pkg/fab/events/seek"
	"github.com/fcw-sdk/fabric-chain/pkg/fab/txn"
)

var logger = logging.NewLogger("fcw/fab")

// systemChannel is the channel ID of proposals addressed to a peer rather than a channel
const systemChannel = ""

// CreateChannel sends the signed channel configuration transaction to the
// orderer. It returns on the orderer's acknowledgement; the channel may not
// exist on the orderer yet.
func CreateChannel(reqCtx reqContext.Context, name string, envelope []byte, orderer fab.Orderer) (*fab.TransactionResponse, error) {
	const op = "CreateChannel"

	if name == "" {
		return nil, fcwerrors.New(fcwerrors.ConfigurationError, op, "missing name request parameter for the new channel")
	}
	if orderer == nil {
		return nil, fcwerrors.New(fcwerrors.ConfigurationError, op, "missing orderer request parameter for the initialize channel")
	}
	if len(envelope) == 0 {
		return nil, fcwerrors.New(fcwerrors.ConfigurationError, op, "missing envelope request parameter containing the configuration of the new channel")
	}

	env, err := extractSignedEnvelope(envelope, name)
	if err != nil {
		return nil, fcwerrors.Wrap(fcwerrors.ConfigurationError, op, err, "signed envelope not valid")
	}

	logger.Infof("creating channel %s", name)
	return txn.BroadcastEnvelope(reqCtx, env, orderer)
}

// extractSignedEnvelope checks that the envelope is a transaction for channel name
func extractSignedEnvelope(reqEnvelope []byte, name string) (*common.Envelope, error) {
	envelope, err := protoutil.UnmarshalEnvelope(reqEnvelope)
	if err != nil {
		return nil, err
	}
	payload, err := protoutil.UnmarshalPayload(envelope.Payload)
	if err != nil {
		return nil, err
	}
	if payload.Header == nil {
		return nil, errors.New("envelope payload has no header")
	}
	chdr, err := protoutil.UnmarshalChannelHeader(payload.Header.ChannelHeader)
	if err != nil {
		return nil, err
	}
	if chdr.ChannelId != name {
		return nil, errors.Errorf("envelope is for channel '%s', not '%s'", chdr.ChannelId, name)
	}
	return envelope, nil
}

// GenesisBlockFromOrderer returns the genesis block of the channel from the
// orderer, for use in a join request.
func GenesisBlockFromOrderer(reqCtx reqContext.Context, channelID string, signer fab.SigningIdentity, orderer fab.Orderer) (*common.Block, error) {
	return retrieveBlock(reqCtx, channelID, signer, orderer, 0)
}

func retrieveBlock(reqCtx reqContext.Context, channelID string, signer fab.SigningIdentity, orderer fab.Orderer, number uint64) (*common.Block, error) {
	env, err := seek.NewEnvelope(channelID, signer, seek.InfoBlock(number))
	if err != nil {
		return nil, errors.WithMessage(err, "creating seek envelope failed")
	}

	logger.Debugf("requesting block %d of channel %s from %s", number, channelID, orderer.URL())
	blocks, errs := orderer.SendDeliver(reqCtx, &fab.SignedEnvelope{Payload: env.Payload, Signature: env.Signature})

	var block *common.Block
	for b := range blocks {
		if block == nil {
			block = b
		}
	}

	select {
	case err := <-errs:
		return nil, errors.WithMessagef(err, "retrieving block %d from orderer failed", number)
	default:
	}

	if block == nil {
		return nil, errors.Errorf("orderer returned no block %d for channel %s", number, channelID)
	}
	return block, nil
}

// JoinChannel sends a join channel proposal carrying the genesis block to
// every target peer. It does not wait for the peers to catch up.
func JoinChannel(reqCtx reqContext.Context, signer fab.SigningIdentity, genesisBlock *common.Block, targets []fab.ProposalProcessor) error {
	if genesisBlock == nil {
		return errors.New("missing block input parameter with the required genesis block")
	}

	cir, err := createJoinChannelInvokeRequest(genesisBlock)
	if err != nil {
		return errors.WithMessage(err, "creation of join channel invoke request failed")
	}

	responses, _, err := sendToSystemChannel(reqCtx, signer, cir, targets)
	if err != nil {
		return errors.WithMessage(err, "cscc.JoinChain failed")
	}
	return validateResponses(responses)
}

// QueryChannels queries the names of all the channels that a peer has joined.
func QueryChannels(reqCtx reqContext.Context, signer fab.SigningIdentity, peer fab.ProposalProcessor) (*pb.ChannelQueryResponse, error) {
	if peer == nil {
		return nil, errors.New("peer required")
	}

	payload, err := queryChaincodeWithTarget(reqCtx, signer, systemChannel, createChannelsInvokeRequest(), peer)
	if err != nil {
		return nil, errors.WithMessage(err, "cscc.GetChannels failed")
	}

	response := new(pb.ChannelQueryResponse)
	if err := proto.Unmarshal(payload, response); err != nil {
		return nil, errors.Wrap(err, "unmarshal ChannelQueryResponse failed")
	}
	return response, nil
}

// QueryInstalledChaincodes queries the installed chaincodes on a peer.
// Returns the details of all chaincodes installed on a peer.
func QueryInstalledChaincodes(reqCtx reqContext.Context, signer fab.SigningIdentity, peer fab.ProposalProcessor) (*pb.ChaincodeQueryResponse, error) {
	if peer == nil {
		return nil, errors.New("peer required")
	}

	payload, err := queryChaincodeWithTarget(reqCtx, signer, systemChannel, createInstalledChaincodesInvokeRequest(), peer)
	if err != nil {
		return nil, errors.WithMessage(err, "lscc.getinstalledchaincodes failed")
	}
	return unmarshalChaincodeQueryResponse(payload)
}

// QueryInstantiatedChaincodes queries the chaincodes instantiated on the channel.
func QueryInstantiatedChaincodes(reqCtx reqContext.Context, signer fab.SigningIdentity, channelID string, peer fab.ProposalProcessor) (*pb.ChaincodeQueryResponse, error) {
	if peer == nil {
		return nil, errors.New("peer required")
	}
	if channelID == "" {
		return nil, errors.New("channel ID required")
	}

	payload, err := queryChaincodeWithTarget(reqCtx, signer, channelID, createChaincodesInvokeRequest(), peer)
	if err != nil {
		return nil, errors.WithMessage(err, "lscc.getchaincodes failed")
	}
	return unmarshalChaincodeQueryResponse(payload)
}

func unmarshalChaincodeQueryResponse(payload []byte) (*pb.ChaincodeQueryResponse, error) {
	response := new(pb.ChaincodeQueryResponse)
	if err := proto.Unmarshal(payload, response); err != nil {
		return nil, errors.Wrap(err, "unmarshal ChaincodeQueryResponse failed")
	}
	return response, nil
}

// InstallChaincode sends an install proposal to one or more endorsing peers.
func InstallChaincode(reqCtx reqContext.Context, signer fab.SigningIdentity, req InstallChaincodeRequest, targets []fab.ProposalProcessor) ([]*fab.TransactionProposalResponse, fab.TransactionID, error) {
	if req.Name == "" {
		return nil, "", errors.New("chaincode name required")
	}
	if req.Path == "" {
		return nil, "", errors.New("chaincode path required")
	}
	if req.Version == "" {
		return nil, "", errors.New("chaincode version required")
	}
	if req.Package == nil {
		return nil, "", errors.New("chaincode package is required")
	}

	cir, err := createInstallInvokeRequest(req)
	if err != nil {
		return nil, "", errors.WithMessage(err, "creation of install chaincode request failed")
	}

	responses, txnID, err := sendToSystemChannel(reqCtx, signer, cir, targets)
	if err != nil {
		return nil, txnID, err
	}
	return responses, txnID, validateResponses(responses)
}

// InstantiateChaincode endorses an lscc deploy proposal on the channel and
// submits the transaction to the orderer. It returns on the orderer's acknowledgement.
func InstantiateChaincode(reqCtx reqContext.Context, signer fab.SigningIdentity, channelID string, req InstantiateChaincodeRequest, targets []fab.ProposalProcessor, orderer fab.Orderer) (fab.TransactionID, error) {
	if channelID == "" {
		return "", errors.New("channel ID required")
	}
	if req.Name == "" {
		return "", errors.New("chaincode name required")
	}
	if req.Path == "" {
		return "", errors.New("chaincode path required")
	}
	if req.Version == "" {
		return "", errors.New("chaincode version required")
	}

	cir, err := createDeployInvokeRequest(channelID, req)
	if err != nil {
		return "", errors.WithMessage(err, "creation of deploy chaincode request failed")
	}

	proposal, responses, err := txn.Endorse(reqCtx, signer, channelID, cir, targets)
	if err != nil {
		return "", err
	}

	tx, err := txn.New(fab.TransactionRequest{Proposal: proposal, ProposalResponses: responses})
	if err != nil {
		return proposal.TxnID, err
	}
	if _, err := txn.Send(reqCtx, signer, tx, orderer); err != nil {
		return proposal.TxnID, err
	}

	logger.Infof("instantiated chaincode %s:%s on channel %s [txid %s]", req.Name, req.Version, channelID, proposal.TxnID)
	return proposal.TxnID, nil
}

func sendToSystemChannel(reqCtx reqContext.Context, signer fab.SigningIdentity, request fab.ChaincodeInvokeRequest, targets []fab.ProposalProcessor) ([]*fab.TransactionProposalResponse, fab.TransactionID, error) {
	txh, err := txn.NewHeader(signer, systemChannel)
	if err != nil {
		return nil, "", errors.WithMessage(err, "create transaction ID failed")
	}

	prop, err := txn.CreateChaincodeInvokeProposal(txh, request)
	if err != nil {
		return nil, "", errors.WithMessage(err, "creation of proposal failed")
	}

	responses, err := txn.SendProposal(reqCtx, signer, prop, targets)
	if err != nil {
		return nil, prop.TxnID, err
	}
	return responses, prop.TxnID, nil
}

func queryChaincodeWithTarget(reqCtx reqContext.Context, signer fab.SigningIdentity, channelID string, request fab.ChaincodeInvokeRequest, target fab.ProposalProcessor) ([]byte, error) {
	txh, err := txn.NewHeader(signer, channelID)
	if err != nil {
		return nil, errors.WithMessage(err, "create transaction ID failed")
	}

	tp, err := txn.CreateChaincodeInvokeProposal(txh, request)
	if err != nil {
		return nil, errors.WithMessage(err, "NewProposal failed")
	}

	tpr, err := txn.SendProposal(reqCtx, signer, tp, []fab.ProposalProcessor{target})
	if err != nil {
		return nil, errors.WithMessage(err, "SendProposal failed")
	}

	if err := validateResponse(tpr[0]); err != nil {
		return nil, errors.WithMessage(err, "transaction proposal failed")
	}
	return tpr[0].ProposalResponse.GetResponse().Payload, nil
}

// validateResponses checks the status of each response. Peers do not endorse
// proposals outside a channel, so endorsements are not required.
func validateResponses(responses []*fab.TransactionProposalResponse) error {
	var errs error
	for _, r := range responses {
		errs = multierr.Append(errs, validateResponse(r))
	}
	return errs
}

func validateResponse(response *fab.TransactionProposalResponse) error {
	const op = "ValidateResponse"

	if response == nil || response.ProposalResponse == nil || response.ProposalResponse.Response == nil {
		return fcwerrors.E(fcwerrors.EndorsementError, op,
			status.New(status.EndorserClientStatus, status.MissingEndorsement.ToInt32(), "empty proposal response", nil))
	}
	if !status.IsProposalSuccess(response.Status) {
		return fcwerrors.E(fcwerrors.EndorsementError, op, status.NewFromProposalResponse(response.ProposalResponse, response.Endorser))
	}
	return nil
}
