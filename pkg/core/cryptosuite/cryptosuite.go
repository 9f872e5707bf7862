/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package cryptosuite implements the ECDSA P-256 operations used for client
// identities: key generation, key import, PEM encoding and low-S signing.
package cryptosuite

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/asn1"
	"encoding/pem"
	"math/big"

	"github.com/pkg/errors"
)

type ecdsaSignature struct {
	R, S *big.Int
}

// GenerateKey creates an ECDSA P-256 private key
func GenerateKey() (*ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate ECDSA key")
	}
	return key, nil
}

// SKI returns the subject key identifier of the public key: the SHA-256 hash of its uncompressed point
func SKI(pub *ecdsa.PublicKey) []byte {
	if pub == nil {
		return nil
	}
	//nolint:staticcheck
	raw := elliptic.Marshal(pub.Curve, pub.X, pub.Y)
	h := sha256.Sum256(raw)
	return h[:]
}

// Hash returns the SHA-256 digest of msg
func Hash(msg []byte) []byte {
	h := sha256.Sum256(msg)
	return h[:]
}

// Sign hashes msg with SHA-256 and returns a DER encoded low-S ECDSA signature
func Sign(key *ecdsa.PrivateKey, msg []byte) ([]byte, error) {
	if key == nil {
		return nil, errors.New("signing key is required")
	}
	r, s, err := ecdsa.Sign(rand.Reader, key, Hash(msg))
	if err != nil {
		return nil, errors.Wrap(err, "ECDSA signing failed")
	}
	s = toLowS(&key.PublicKey, s)
	return asn1.Marshal(ecdsaSignature{R: r, S: s})
}

// Verify checks a signature produced by Sign
func Verify(pub *ecdsa.PublicKey, msg, signature []byte) (bool, error) {
	sig := ecdsaSignature{}
	if _, err := asn1.Unmarshal(signature, &sig); err != nil {
		return false, errors.Wrap(err, "failed unmarshalling signature")
	}
	if sig.R == nil || sig.S == nil || sig.R.Sign() <= 0 || sig.S.Sign() <= 0 {
		return false, errors.New("invalid signature, R and S must be larger than zero")
	}
	if !isLowS(pub, sig.S) {
		return false, errors.New("invalid signature, S must be smaller than half the order")
	}
	return ecdsa.Verify(pub, Hash(msg), sig.R, sig.S), nil
}

func halfOrder(pub *ecdsa.PublicKey) *big.Int {
	return new(big.Int).Rsh(pub.Curve.Params().N, 1)
}

func isLowS(pub *ecdsa.PublicKey, s *big.Int) bool {
	return s.Cmp(halfOrder(pub)) != 1
}

func toLowS(pub *ecdsa.PublicKey, s *big.Int) *big.Int {
	if isLowS(pub, s) {
		return s
	}
	return new(big.Int).Sub(pub.Curve.Params().N, s)
}

// PrivateKeyToPEM encodes the key as a PKCS#8 PEM block
func PrivateKeyToPEM(key *ecdsa.PrivateKey) ([]byte, error) {
	if key == nil {
		return nil, errors.New("invalid ecdsa private key, it must be different from nil")
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, errors.Wrap(err, "failed marshalling private key")
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// PEMToPrivateKey parses a PKCS#8 or SEC 1 PEM encoded ECDSA private key
func PEMToPrivateKey(raw []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("failed decoding PEM, block must be different from nil")
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		ecKey, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, errors.Errorf("unsupported private key type %T", key)
		}
		return ecKey, nil
	}

	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "failed parsing private key")
	}
	return key, nil
}

// PEMToCertificate parses a PEM encoded x509 certificate
func PEMToCertificate(raw []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("failed decoding certificate PEM")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "certificate parsing failed")
	}
	return cert, nil
}

// PEMKeyImporter imports PEM encoded ECDSA keys
type PEMKeyImporter struct{}

// ImportKey parses raw as a PEM encoded private key
func (PEMKeyImporter) ImportKey(raw []byte) (*ecdsa.PrivateKey, error) {
	return PEMToPrivateKey(raw)
}

// KeyMatchesCert returns true if the certificate carries the public half of key
func KeyMatchesCert(key *ecdsa.PrivateKey, cert *x509.Certificate) bool {
	pub, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok || key == nil {
		return false
	}
	return key.PublicKey.Equal(pub)
}
