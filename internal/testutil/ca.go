/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package testutil issues throwaway certificates for tests.
package testutil

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/fcw-sdk/fabric-chain/pkg/core/cryptosuite"
)

// CA is a self-signed certificate authority
type CA struct {
	Key     *ecdsa.PrivateKey
	Cert    *x509.Certificate
	CertPEM []byte

	serial int64
}

// NewCA creates a self-signed CA with the given common name
func NewCA(cn string) (*CA, error) {
	key, err := cryptosuite.GenerateKey()
	if err != nil {
		return nil, err
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: cn, Organization: []string{cn}},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
		SubjectKeyId:          cryptosuite.SKI(&key.PublicKey),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, errors.Wrap(err, "creating CA certificate failed")
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}
	return &CA{
		Key:     key,
		Cert:    cert,
		CertPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		serial:  1,
	}, nil
}

// Issue signs a certificate for pub. Hosts become DNS or IP SANs.
func (ca *CA) Issue(pub *ecdsa.PublicKey, cn, ou string, hosts ...string) ([]byte, error) {
	ca.serial++
	subject := pkix.Name{CommonName: cn}
	if ou != "" {
		subject.OrganizationalUnit = []string{ou}
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(ca.serial),
		Subject:      subject,
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca.Cert, pub, ca.Key)
	if err != nil {
		return nil, errors.Wrap(err, "issuing certificate failed")
	}
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), nil
}

// KeyPair is a generated key with a certificate issued by the CA
type KeyPair struct {
	Key     *ecdsa.PrivateKey
	KeyPEM  []byte
	CertPEM []byte
}

// NewKeyPair generates a key and issues a certificate for it
func (ca *CA) NewKeyPair(cn string, hosts ...string) (*KeyPair, error) {
	key, err := cryptosuite.GenerateKey()
	if err != nil {
		return nil, err
	}
	keyPEM, err := cryptosuite.PrivateKeyToPEM(key)
	if err != nil {
		return nil, err
	}
	certPEM, err := ca.Issue(&key.PublicKey, cn, "", hosts...)
	if err != nil {
		return nil, err
	}
	return &KeyPair{Key: key, KeyPEM: keyPEM, CertPEM: certPEM}, nil
}

// TLSCertificate returns the key pair for use by a TLS server
func (kp *KeyPair) TLSCertificate() (tls.Certificate, error) {
	return tls.X509KeyPair(kp.CertPEM, kp.KeyPEM)
}
