/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package protoutil builds and takes apart the ledger wire messages exchanged
// with peers and orderers.
package protoutil

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/golang/protobuf/proto"
	"github.com/hyperledger/fabric-protos-go/common"
	pb "github.com/hyperledger/fabric-protos-go/peer"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// NonceSize is the size of transaction nonces
const NonceSize = 24

// Signer signs messages on behalf of a serialized identity
type Signer interface {
	Sign(msg []byte) ([]byte, error)
	Serialize() ([]byte, error)
}

// CreateNonce returns NonceSize random bytes
func CreateNonce() ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "error getting random bytes")
	}
	return nonce, nil
}

// ComputeTxID returns the hex encoded SHA-256 of nonce followed by creator
func ComputeTxID(nonce, creator []byte) string {
	h := sha256.New()
	h.Write(nonce)
	h.Write(creator)
	return hex.EncodeToString(h.Sum(nil))
}

// Marshal serializes msg, annotating the error with the message type
func Marshal(msg proto.Message) ([]byte, error) {
	b, err := proto.Marshal(msg)
	if err != nil {
		return nil, errors.Wrapf(err, "error marshaling %T", msg)
	}
	return b, nil
}

// MakeChannelHeader creates a channel header stamped with the current time
func MakeChannelHeader(typ common.HeaderType, channelID, txID string, extension []byte) *common.ChannelHeader {
	return &common.ChannelHeader{
		Type:      int32(typ),
		ChannelId: channelID,
		TxId:      txID,
		Timestamp: timestamppb.Now(),
		Extension: extension,
	}
}

// MakeHeader marshals the channel and signature headers into a Header
func MakeHeader(chdr *common.ChannelHeader, creator, nonce []byte) (*common.Header, error) {
	chdrBytes, err := Marshal(chdr)
	if err != nil {
		return nil, err
	}
	shdrBytes, err := Marshal(&common.SignatureHeader{Creator: creator, Nonce: nonce})
	if err != nil {
		return nil, err
	}
	return &common.Header{ChannelHeader: chdrBytes, SignatureHeader: shdrBytes}, nil
}

// SignPayload marshals payload and wraps it in an envelope signed by signer
func SignPayload(signer Signer, payload *common.Payload) (*common.Envelope, error) {
	payloadBytes, err := Marshal(payload)
	if err != nil {
		return nil, err
	}
	sig, err := signer.Sign(payloadBytes)
	if err != nil {
		return nil, errors.WithMessage(err, "signing of payload failed")
	}
	return &common.Envelope{Payload: payloadBytes, Signature: sig}, nil
}

// CreateSignedEnvelope creates an envelope of the given type carrying data, signed by signer
func CreateSignedEnvelope(typ common.HeaderType, channelID string, signer Signer, data proto.Message) (*common.Envelope, error) {
	creator, err := signer.Serialize()
	if err != nil {
		return nil, errors.WithMessage(err, "serializing identity failed")
	}
	nonce, err := CreateNonce()
	if err != nil {
		return nil, err
	}
	hdr, err := MakeHeader(MakeChannelHeader(typ, channelID, "", nil), creator, nonce)
	if err != nil {
		return nil, err
	}
	dataBytes, err := Marshal(data)
	if err != nil {
		return nil, err
	}
	return SignPayload(signer, &common.Payload{Header: hdr, Data: dataBytes})
}

// CreateChaincodeProposal builds an endorser transaction proposal invoking cis on channelID
func CreateChaincodeProposal(txID, channelID string, cis *pb.ChaincodeInvocationSpec, nonce, creator []byte, transientMap map[string][]byte) (*pb.Proposal, error) {
	extBytes, err := Marshal(&pb.ChaincodeHeaderExtension{ChaincodeId: cis.ChaincodeSpec.ChaincodeId})
	if err != nil {
		return nil, err
	}
	cisBytes, err := Marshal(cis)
	if err != nil {
		return nil, err
	}
	payloadBytes, err := Marshal(&pb.ChaincodeProposalPayload{Input: cisBytes, TransientMap: transientMap})
	if err != nil {
		return nil, err
	}

	hdr, err := MakeHeader(MakeChannelHeader(common.HeaderType_ENDORSER_TRANSACTION, channelID, txID, extBytes), creator, nonce)
	if err != nil {
		return nil, err
	}
	hdrBytes, err := Marshal(hdr)
	if err != nil {
		return nil, err
	}
	return &pb.Proposal{Header: hdrBytes, Payload: payloadBytes}, nil
}

// SignProposal signs the marshalled proposal
func SignProposal(signer Signer, prop *pb.Proposal) (*pb.SignedProposal, error) {
	propBytes, err := Marshal(prop)
	if err != nil {
		return nil, err
	}
	sig, err := signer.Sign(propBytes)
	if err != nil {
		return nil, errors.WithMessage(err, "sign failed")
	}
	return &pb.SignedProposal{ProposalBytes: propBytes, Signature: sig}, nil
}

// ProposalPayloadForTx strips the transient map from a proposal payload
func ProposalPayloadForTx(payloadBytes []byte) ([]byte, error) {
	cpp, err := UnmarshalChaincodeProposalPayload(payloadBytes)
	if err != nil {
		return nil, err
	}
	return Marshal(&pb.ChaincodeProposalPayload{Input: cpp.Input})
}

// UnmarshalHeader unmarshals a Header
func UnmarshalHeader(b []byte) (*common.Header, error) {
	m := &common.Header{}
	return m, errors.Wrap(proto.Unmarshal(b, m), "error unmarshaling Header")
}

// UnmarshalEnvelope unmarshals an Envelope
func UnmarshalEnvelope(b []byte) (*common.Envelope, error) {
	m := &common.Envelope{}
	return m, errors.Wrap(proto.Unmarshal(b, m), "error unmarshaling Envelope")
}

// UnmarshalPayload unmarshals a Payload
func UnmarshalPayload(b []byte) (*common.Payload, error) {
	m := &common.Payload{}
	return m, errors.Wrap(proto.Unmarshal(b, m), "error unmarshaling Payload")
}

// UnmarshalChannelHeader unmarshals a ChannelHeader
func UnmarshalChannelHeader(b []byte) (*common.ChannelHeader, error) {
	m := &common.ChannelHeader{}
	return m, errors.Wrap(proto.Unmarshal(b, m), "error unmarshaling ChannelHeader")
}

// UnmarshalTransaction unmarshals a Transaction
func UnmarshalTransaction(b []byte) (*pb.Transaction, error) {
	m := &pb.Transaction{}
	return m, errors.Wrap(proto.Unmarshal(b, m), "error unmarshaling Transaction")
}

// UnmarshalChaincodeActionPayload unmarshals a ChaincodeActionPayload
func UnmarshalChaincodeActionPayload(b []byte) (*pb.ChaincodeActionPayload, error) {
	m := &pb.ChaincodeActionPayload{}
	return m, errors.Wrap(proto.Unmarshal(b, m), "error unmarshaling ChaincodeActionPayload")
}

// UnmarshalChaincodeProposalPayload unmarshals a ChaincodeProposalPayload
func UnmarshalChaincodeProposalPayload(b []byte) (*pb.ChaincodeProposalPayload, error) {
	m := &pb.ChaincodeProposalPayload{}
	return m, errors.Wrap(proto.Unmarshal(b, m), "error unmarshaling ChaincodeProposalPayload")
}

// UnmarshalChaincodeInvocationSpec unmarshals a ChaincodeInvocationSpec
func UnmarshalChaincodeInvocationSpec(b []byte) (*pb.ChaincodeInvocationSpec, error) {
	m := &pb.ChaincodeInvocationSpec{}
	return m, errors.Wrap(proto.Unmarshal(b, m), "error unmarshaling ChaincodeInvocationSpec")
}

// UnmarshalProposalResponsePayload unmarshals a ProposalResponsePayload
func UnmarshalProposalResponsePayload(b []byte) (*pb.ProposalResponsePayload, error) {
	m := &pb.ProposalResponsePayload{}
	return m, errors.Wrap(proto.Unmarshal(b, m), "error unmarshaling ProposalResponsePayload")
}

// UnmarshalChaincodeAction unmarshals a ChaincodeAction
func UnmarshalChaincodeAction(b []byte) (*pb.ChaincodeAction, error) {
	m := &pb.ChaincodeAction{}
	return m, errors.Wrap(proto.Unmarshal(b, m), "error unmarshaling ChaincodeAction")
}

// UnmarshalBlock unmarshals a Block
func UnmarshalBlock(b []byte) (*common.Block, error) {
	m := &common.Block{}
	return m, errors.Wrap(proto.Unmarshal(b, m), "error unmarshaling Block")
}
