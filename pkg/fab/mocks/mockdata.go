/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mocks

import (
	"github.com/golang/protobuf/proto"
	"github.com/hyperledger/fabric-protos-go/common"
	pb "github.com/hyperledger/fabric-protos-go/peer"
)

// Invocation describes a chaincode invocation carried by a mock transaction
type Invocation struct {
	TxID          string
	ChaincodeName string
	Args          [][]byte
	// Payload is the chaincode response payload recorded in the endorsement
	Payload []byte
}

// NewEndorserTransactionEnvelope builds an endorser transaction envelope for inv
func NewEndorserTransactionEnvelope(channelID string, inv Invocation) *common.Envelope {
	cis := &pb.ChaincodeInvocationSpec{ChaincodeSpec: &pb.ChaincodeSpec{
		Type:        pb.ChaincodeSpec_GOLANG,
		ChaincodeId: &pb.ChaincodeID{Name: inv.ChaincodeName},
		Input:       &pb.ChaincodeInput{Args: inv.Args},
	}}
	cpp := &pb.ChaincodeProposalPayload{Input: marshalOrPanic(cis)}

	ccAction := &pb.ChaincodeAction{
		ChaincodeId: &pb.ChaincodeID{Name: inv.ChaincodeName},
		Response:    &pb.Response{Status: 200, Payload: inv.Payload},
	}
	prp := &pb.ProposalResponsePayload{ProposalHash: []byte("hash"), Extension: marshalOrPanic(ccAction)}

	ccPayload := &pb.ChaincodeActionPayload{
		ChaincodeProposalPayload: marshalOrPanic(cpp),
		Action: &pb.ChaincodeEndorsedAction{
			ProposalResponsePayload: marshalOrPanic(prp),
			Endorsements:            []*pb.Endorsement{{Endorser: []byte("endorser"), Signature: []byte("signature")}},
		},
	}
	shdr := marshalOrPanic(&common.SignatureHeader{Creator: []byte("creator"), Nonce: []byte("nonce")})
	tx := &pb.Transaction{Actions: []*pb.TransactionAction{{Header: shdr, Payload: marshalOrPanic(ccPayload)}}}

	return newEnvelope(common.HeaderType_ENDORSER_TRANSACTION, channelID, inv.TxID, marshalOrPanic(tx))
}

// NewConfigEnvelope builds a non-chaincode envelope
func NewConfigEnvelope(channelID, txID string) *common.Envelope {
	return newEnvelope(common.HeaderType_CONFIG, channelID, txID, []byte("config"))
}

func newEnvelope(typ common.HeaderType, channelID, txID string, data []byte) *common.Envelope {
	chdr := &common.ChannelHeader{Type: int32(typ), ChannelId: channelID, TxId: txID}
	payload := &common.Payload{
		Header: &common.Header{
			ChannelHeader:   marshalOrPanic(chdr),
			SignatureHeader: marshalOrPanic(&common.SignatureHeader{Creator: []byte("creator")}),
		},
		Data: data,
	}
	return &common.Envelope{Payload: marshalOrPanic(payload), Signature: []byte("signature")}
}

// NewBlock builds a block with the given number carrying envelopes
func NewBlock(number uint64, envelopes ...*common.Envelope) *common.Block {
	data := make([][]byte, len(envelopes))
	for i, env := range envelopes {
		data[i] = marshalOrPanic(env)
	}
	return &common.Block{
		Header:   &common.BlockHeader{Number: number},
		Data:     &common.BlockData{Data: data},
		Metadata: &common.BlockMetadata{Metadata: [][]byte{{}, {}, {}, {}}},
	}
}

func marshalOrPanic(msg proto.Message) []byte {
	b, err := proto.Marshal(msg)
	if err != nil {
		panic(err)
	}
	return b
}
