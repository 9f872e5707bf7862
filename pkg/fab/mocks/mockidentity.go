/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mocks

import (
	"crypto/ecdsa"

	"github.com/golang/protobuf/proto"
	mspproto "github.com/hyperledger/fabric-protos-go/msp"

	"github.com/fcw-sdk/fabric-chain/pkg/core/cryptosuite"
)

// MockIdentity is a signing identity backed by a freshly generated key
type MockIdentity struct {
	ID      string
	MSP     string
	CertPEM []byte
	Key     *ecdsa.PrivateKey
	SignErr error
}

// NewMockIdentity returns an identity with a new P-256 key
func NewMockIdentity(id, mspID string) *MockIdentity {
	key, err := cryptosuite.GenerateKey()
	if err != nil {
		panic(err)
	}
	return &MockIdentity{ID: id, MSP: mspID, CertPEM: []byte("cert"), Key: key}
}

// Identifier returns the enrollment ID
func (m *MockIdentity) Identifier() string {
	return m.ID
}

// MSPID returns the MSP ID
func (m *MockIdentity) MSPID() string {
	return m.MSP
}

// Serialize returns the serialized identity
func (m *MockIdentity) Serialize() ([]byte, error) {
	return proto.Marshal(&mspproto.SerializedIdentity{Mspid: m.MSP, IdBytes: m.CertPEM})
}

// Sign signs msg, or fails with SignErr when set
func (m *MockIdentity) Sign(msg []byte) ([]byte, error) {
	if m.SignErr != nil {
		return nil, m.SignErr
	}
	return cryptosuite.Sign(m.Key, msg)
}
