/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package txn

import (
	reqContext "context"
	"testing"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/hyperledger/fabric-protos-go/common"
	pb "github.com/hyperledger/fabric-protos-go/peer"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcw-sdk/fabric-chain/internal/protoutil"
	"github.com/fcw-sdk/fabric-chain/pkg/common/errors/status"
	"github.com/fcw-sdk/fabric-chain/pkg/core/cryptosuite"
	fcwerrors "github.com/fcw-sdk/fabric-chain/pkg/errors"
	"github.com/fcw-sdk/fabric-chain/pkg/fab"
	"github.com/fcw-sdk/fabric-chain/pkg/fab/mocks"
)

const testChannel = "mychannel"

func newTestContext() (reqContext.Context, reqContext.CancelFunc) {
	return reqContext.WithTimeout(reqContext.Background(), 5*time.Second)
}

func TestNewHeader(t *testing.T) {
	signer := mocks.NewMockIdentity("user1", "Org1MSP")

	txh, err := NewHeader(signer, testChannel)
	require.NoError(t, err)
	assert.Len(t, txh.Nonce, protoutil.NonceSize)
	assert.Equal(t, testChannel, txh.ChannelID)

	creator, err := signer.Serialize()
	require.NoError(t, err)
	assert.Equal(t, creator, txh.Creator)
	assert.Equal(t, protoutil.ComputeTxID(txh.Nonce, creator), string(txh.ID))

	other, err := NewHeader(signer, testChannel)
	require.NoError(t, err)
	assert.NotEqual(t, txh.ID, other.ID)
}

func TestCreateChaincodeInvokeProposal(t *testing.T) {
	signer := mocks.NewMockIdentity("user1", "Org1MSP")
	txh, err := NewHeader(signer, testChannel)
	require.NoError(t, err)

	_, err = CreateChaincodeInvokeProposal(txh, fab.ChaincodeInvokeRequest{Fcn: "move"})
	assert.Error(t, err)
	_, err = CreateChaincodeInvokeProposal(txh, fab.ChaincodeInvokeRequest{ChaincodeID: "mycc"})
	assert.Error(t, err)

	prop, err := CreateChaincodeInvokeProposal(txh, fab.ChaincodeInvokeRequest{
		ChaincodeID:  "mycc",
		Fcn:          "move",
		Args:         [][]byte{[]byte("a"), []byte("b")},
		TransientMap: map[string][]byte{"secret": []byte("s")},
	})
	require.NoError(t, err)
	assert.Equal(t, txh.ID, prop.TxnID)

	hdr, err := protoutil.UnmarshalHeader(prop.Header)
	require.NoError(t, err)
	chdr, err := protoutil.UnmarshalChannelHeader(hdr.ChannelHeader)
	require.NoError(t, err)
	assert.Equal(t, string(txh.ID), chdr.TxId)
	assert.Equal(t, testChannel, chdr.ChannelId)
	assert.Equal(t, int32(common.HeaderType_ENDORSER_TRANSACTION), chdr.Type)

	cpp, err := protoutil.UnmarshalChaincodeProposalPayload(prop.Payload)
	require.NoError(t, err)
	assert.Equal(t, []byte("s"), cpp.TransientMap["secret"])
	cis, err := protoutil.UnmarshalChaincodeInvocationSpec(cpp.Input)
	require.NoError(t, err)
	assert.Equal(t, "mycc", cis.ChaincodeSpec.ChaincodeId.Name)
	assert.Equal(t, [][]byte{[]byte("move"), []byte("a"), []byte("b")}, cis.ChaincodeSpec.Input.Args)
}

func newProposal(t *testing.T, signer fab.SigningIdentity) *fab.TransactionProposal {
	txh, err := NewHeader(signer, testChannel)
	require.NoError(t, err)
	prop, err := CreateChaincodeInvokeProposal(txh, fab.ChaincodeInvokeRequest{ChaincodeID: "mycc", Fcn: "query", Args: [][]byte{[]byte("a")}})
	require.NoError(t, err)
	return prop
}

func TestSendProposal(t *testing.T) {
	signer := mocks.NewMockIdentity("user1", "Org1MSP")
	prop := newProposal(t, signer)

	p1 := &mocks.MockProposalProcessor{Endorser: "peer1", Payload: []byte("10")}
	p2 := &mocks.MockProposalProcessor{Endorser: "peer2", Payload: []byte("10")}

	ctx, cancel := newTestContext()
	defer cancel()

	responses, err := SendProposal(ctx, signer, prop, []fab.ProposalProcessor{p1, p2})
	require.NoError(t, err)
	require.Len(t, responses, 2)
	assert.Equal(t, "peer1", responses[0].Endorser)
	assert.Equal(t, "peer2", responses[1].Endorser)

	require.Len(t, p1.Requests(), 1)
	signed := p1.Requests()[0].SignedProposal
	valid, err := cryptosuite.Verify(&signer.Key.PublicKey, signed.ProposalBytes, signed.Signature)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestSendProposalErrors(t *testing.T) {
	signer := mocks.NewMockIdentity("user1", "Org1MSP")
	prop := newProposal(t, signer)

	ctx, cancel := newTestContext()
	defer cancel()

	_, err := SendProposal(ctx, signer, nil, []fab.ProposalProcessor{&mocks.MockProposalProcessor{}})
	assert.Error(t, err)
	_, err = SendProposal(ctx, signer, prop, nil)
	assert.Error(t, err)
	_, err = SendProposal(ctx, signer, prop, []fab.ProposalProcessor{nil})
	assert.Error(t, err)

	failing := &mocks.MockProposalProcessor{Endorser: "peer2", Err: errors.New("peer2 unavailable")}
	_, err = SendProposal(ctx, signer, prop, []fab.ProposalProcessor{&mocks.MockProposalProcessor{Endorser: "peer1"}, failing})
	require.Error(t, err)
	assert.True(t, fcwerrors.IsKind(err, fcwerrors.EndorsementError))
	assert.Contains(t, err.Error(), "peer2 unavailable")

	signer.SignErr = errors.New("hsm offline")
	_, err = SendProposal(ctx, signer, prop, []fab.ProposalProcessor{&mocks.MockProposalProcessor{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hsm offline")
}

func endorse(t *testing.T, signer fab.SigningIdentity, processors ...fab.ProposalProcessor) (*fab.TransactionProposal, []*fab.TransactionProposalResponse) {
	ctx, cancel := newTestContext()
	defer cancel()

	prop, responses, err := Endorse(ctx, signer, testChannel, fab.ChaincodeInvokeRequest{ChaincodeID: "mycc", Fcn: "move"}, processors)
	require.NoError(t, err)
	return prop, responses
}

func TestValidateResponses(t *testing.T) {
	signer := mocks.NewMockIdentity("user1", "Org1MSP")

	err := ValidateResponses(nil)
	assert.True(t, fcwerrors.IsKind(err, fcwerrors.EndorsementError))

	_, responses := endorse(t, signer,
		&mocks.MockProposalProcessor{Endorser: "peer1", Payload: []byte("x")},
		&mocks.MockProposalProcessor{Endorser: "peer2", Payload: []byte("x")})
	assert.NoError(t, ValidateResponses(responses))

	_, responses = endorse(t, signer,
		&mocks.MockProposalProcessor{Endorser: "peer1", Payload: []byte("x")},
		&mocks.MockProposalProcessor{Endorser: "peer2", Payload: []byte("y")})
	err = ValidateResponses(responses)
	require.Error(t, err)
	assert.True(t, fcwerrors.IsKind(err, fcwerrors.EndorsementMismatchError))
	s, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, status.EndorserClientStatus, s.Group)
	assert.Equal(t, status.EndorsementMismatch.ToInt32(), s.Code)

	_, responses = endorse(t, signer, &mocks.MockProposalProcessor{Endorser: "peer1", Status: 500})
	err = ValidateResponses(responses)
	require.Error(t, err)
	assert.True(t, fcwerrors.IsKind(err, fcwerrors.EndorsementError))
	s, ok = status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, status.EndorserServerStatus, s.Group)
	assert.EqualValues(t, 500, s.Code)
}

func TestNewTransaction(t *testing.T) {
	signer := mocks.NewMockIdentity("user1", "Org1MSP")
	prop, responses := endorse(t, signer,
		&mocks.MockProposalProcessor{Endorser: "peer1", Payload: []byte("x")},
		&mocks.MockProposalProcessor{Endorser: "peer2", Payload: []byte("x")})

	tx, err := New(fab.TransactionRequest{Proposal: prop, ProposalResponses: responses})
	require.NoError(t, err)
	require.Len(t, tx.Transaction.Actions, 1)

	ccPayload, err := protoutil.UnmarshalChaincodeActionPayload(tx.Transaction.Actions[0].Payload)
	require.NoError(t, err)
	assert.Len(t, ccPayload.Action.Endorsements, 2)
	assert.Equal(t, responses[0].ProposalResponse.Payload, ccPayload.Action.ProposalResponsePayload)

	cpp, err := protoutil.UnmarshalChaincodeProposalPayload(ccPayload.ChaincodeProposalPayload)
	require.NoError(t, err)
	assert.Nil(t, cpp.TransientMap)

	_, err = New(fab.TransactionRequest{Proposal: prop})
	assert.Error(t, err)
}

func TestSend(t *testing.T) {
	signer := mocks.NewMockIdentity("user1", "Org1MSP")
	prop, responses := endorse(t, signer, &mocks.MockProposalProcessor{Endorser: "peer1"})
	tx, err := New(fab.TransactionRequest{Proposal: prop, ProposalResponses: responses})
	require.NoError(t, err)

	ctx, cancel := newTestContext()
	defer cancel()

	orderer := &mocks.MockOrderer{Address: "orderer:7050"}
	resp, err := Send(ctx, signer, tx, orderer)
	require.NoError(t, err)
	assert.Equal(t, "orderer:7050", resp.Orderer)
	assert.Equal(t, common.Status_SUCCESS, resp.Status)

	envelopes := orderer.Envelopes()
	require.Len(t, envelopes, 1)
	valid, err := cryptosuite.Verify(&signer.Key.PublicKey, envelopes[0].Payload, envelopes[0].Signature)
	require.NoError(t, err)
	assert.True(t, valid)

	payload := &common.Payload{}
	require.NoError(t, proto.Unmarshal(envelopes[0].Payload, payload))
	chdr, err := protoutil.UnmarshalChannelHeader(payload.Header.ChannelHeader)
	require.NoError(t, err)
	assert.Equal(t, string(prop.TxnID), chdr.TxId)

	transaction := &pb.Transaction{}
	require.NoError(t, proto.Unmarshal(payload.Data, transaction))
	assert.Len(t, transaction.Actions, 1)

	_, err = Send(ctx, signer, tx, nil)
	assert.Error(t, err)

	_, err = Send(ctx, signer, tx, &mocks.MockOrderer{Address: "orderer:7050", BroadcastErr: errors.New("service unavailable")})
	require.Error(t, err)
	assert.True(t, fcwerrors.IsKind(err, fcwerrors.SubmissionError))
}
