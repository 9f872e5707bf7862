/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package msp

import (
	"crypto/ecdsa"
	"crypto/x509"

	"github.com/golang/protobuf/proto"
	pb_msp "github.com/hyperledger/fabric-protos-go/msp"
	"github.com/pkg/errors"

	"github.com/fcw-sdk/fabric-chain/pkg/core/cryptosuite"
)

// Identity is an enrolled signing identity
type Identity struct {
	enrollmentID          string
	mspID                 string
	enrollmentCertificate []byte
	certificate           *x509.Certificate
	privateKey            *ecdsa.PrivateKey
	caChain               []byte
}

func newIdentity(enrollmentID, mspID string, key *ecdsa.PrivateKey, certPEM, caChain []byte) (*Identity, error) {
	if len(certPEM) == 0 {
		return nil, errors.New("enrollment certificate is empty")
	}
	if key == nil {
		return nil, errors.New("private key is required")
	}
	cert, err := cryptosuite.PEMToCertificate(certPEM)
	if err != nil {
		return nil, err
	}
	if !cryptosuite.KeyMatchesCert(key, cert) {
		return nil, errors.Errorf("private key of '%s' does not match its certificate", enrollmentID)
	}
	return &Identity{
		enrollmentID:          enrollmentID,
		mspID:                 mspID,
		enrollmentCertificate: certPEM,
		certificate:           cert,
		privateKey:            key,
		caChain:               caChain,
	}, nil
}

// Identifier returns the enrollment ID
func (u *Identity) Identifier() string {
	return u.enrollmentID
}

// MSPID returns the MSP for this identity
func (u *Identity) MSPID() string {
	return u.mspID
}

// EnrollmentCertificate returns the PEM encoded enrollment certificate
func (u *Identity) EnrollmentCertificate() []byte {
	return u.enrollmentCertificate
}

// Certificate returns the parsed enrollment certificate
func (u *Identity) Certificate() *x509.Certificate {
	return u.certificate
}

// PrivateKey returns the identity's private key
func (u *Identity) PrivateKey() *ecdsa.PrivateKey {
	return u.privateKey
}

// CAChain returns the PEM encoded CA chain returned at enrollment, if any
func (u *Identity) CAChain() []byte {
	return u.caChain
}

// Serialize returns the identity's serialized form
func (u *Identity) Serialize() ([]byte, error) {
	serializedIdentity := &pb_msp.SerializedIdentity{
		Mspid:   u.mspID,
		IdBytes: u.enrollmentCertificate,
	}
	identity, err := proto.Marshal(serializedIdentity)
	if err != nil {
		return nil, errors.Wrap(err, "marshal serializedIdentity failed")
	}
	return identity, nil
}

// Sign signs msg with the identity's private key
func (u *Identity) Sign(msg []byte) ([]byte, error) {
	return cryptosuite.Sign(u.privateKey, msg)
}
