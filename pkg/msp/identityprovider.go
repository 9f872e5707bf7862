/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package msp establishes the signing identity of a client instance, either
// by enrolling with a Fabric CA or by importing existing key material.
package msp

import (
	reqContext "context"
	"crypto/ecdsa"
	"sync"

	"github.com/pkg/errors"

	"github.com/fcw-sdk/fabric-chain/pkg/common/logging"
	"github.com/fcw-sdk/fabric-chain/pkg/core/cryptosuite"
	fcwerrors "github.com/fcw-sdk/fabric-chain/pkg/errors"
)

var logger = logging.NewLogger("fcw/msp")

// UserStore persists enrollment certificates
type UserStore interface {
	Load(id, mspID string) (*UserData, error)
	Store(user *UserData) error
	Delete(id, mspID string) error
}

// KeyImporter parses a PEM encoded private key
type KeyImporter interface {
	ImportKey(raw []byte) (*ecdsa.PrivateKey, error)
}

// IdentityProvider resolves the signing identity of one client instance.
// Resolved identities are cached per enrollment ID until invalidated.
// Concurrent resolves for the same enrollment ID must be serialized by the caller.
type IdentityProvider struct {
	clientInstanceID string
	mspID            string
	keyStore         *KeyStore
	userStore        UserStore
	enroller         Enroller
	importer         KeyImporter

	mtx    sync.RWMutex
	cache  map[string]*Identity
	active *Identity
}

// Option configures an IdentityProvider
type Option func(*IdentityProvider) error

// WithEnroller sets the CA used for secret based enrollments
func WithEnroller(enroller Enroller) Option {
	return func(p *IdentityProvider) error {
		p.enroller = enroller
		return nil
	}
}

// WithKeyImporter overrides the parser of imported private keys
func WithKeyImporter(importer KeyImporter) Option {
	return func(p *IdentityProvider) error {
		if importer == nil {
			return errors.New("key importer is nil")
		}
		p.importer = importer
		return nil
	}
}

// NewIdentityProvider returns a provider persisting identities in the given stores
func NewIdentityProvider(clientInstanceID, mspID string, keyStore *KeyStore, userStore UserStore, opts ...Option) (*IdentityProvider, error) {
	const op = "NewIdentityProvider"

	if clientInstanceID == "" {
		return nil, fcwerrors.New(fcwerrors.ConfigurationError, op, "cannot enroll with undefined uuid")
	}
	if mspID == "" {
		return nil, fcwerrors.New(fcwerrors.ConfigurationError, op, "mspId is required")
	}
	if keyStore == nil || userStore == nil {
		return nil, fcwerrors.New(fcwerrors.ConfigurationError, op, "key store and user store are required")
	}

	p := &IdentityProvider{
		clientInstanceID: clientInstanceID,
		mspID:            mspID,
		keyStore:         keyStore,
		userStore:        userStore,
		importer:         cryptosuite.PEMKeyImporter{},
		cache:            make(map[string]*Identity),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, fcwerrors.E(fcwerrors.ConfigurationError, op, err)
		}
	}
	return p, nil
}

// ResolveIdentity returns the identity for the enrollment. A previously
// persisted identity is returned without contacting the CA. Otherwise the
// identity is enrolled with the CA or imported from the given key material,
// then persisted.
func (p *IdentityProvider) ResolveIdentity(ctx reqContext.Context, e Enrollment) (*Identity, error) {
	if err := e.validate(p.enroller != nil); err != nil {
		return nil, err
	}

	if id := p.cached(e.EnrollmentID); id != nil {
		logger.Debugf("Identity [%s] found in cache", e.EnrollmentID)
		p.setActive(id)
		return id, nil
	}

	id, err := p.loadFromStore(e.EnrollmentID)
	if err != nil {
		return nil, err
	}

	if id == nil {
		if e.usesSecret() {
			id, err = p.enroll(ctx, e)
		} else {
			id, err = p.importIdentity(e)
		}
		if err != nil {
			return nil, err
		}
	}

	p.mtx.Lock()
	p.cache[e.EnrollmentID] = id
	p.active = id
	p.mtx.Unlock()

	return id, nil
}

// Invalidate drops the cached identity so the next resolve reads the stores again
func (p *IdentityProvider) Invalidate(enrollmentID string) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	delete(p.cache, enrollmentID)
	if p.active != nil && p.active.Identifier() == enrollmentID {
		p.active = nil
	}
}

// ActiveIdentity returns the most recently resolved identity, or nil
func (p *IdentityProvider) ActiveIdentity() *Identity {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	return p.active
}

func (p *IdentityProvider) cached(enrollmentID string) *Identity {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	return p.cache[enrollmentID]
}

func (p *IdentityProvider) setActive(id *Identity) {
	p.mtx.Lock()
	p.active = id
	p.mtx.Unlock()
}

// loadFromStore returns nil if the identity was never persisted
func (p *IdentityProvider) loadFromStore(enrollmentID string) (*Identity, error) {
	userData, err := p.userStore.Load(enrollmentID, p.mspID)
	if err != nil {
		if err == ErrUserNotFound {
			return nil, nil
		}
		return nil, err
	}
	key, err := p.keyStore.Get(enrollmentID)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			logger.Warnf("Certificate of [%s] is stored without its private key", enrollmentID)
			return nil, nil
		}
		return nil, err
	}

	id, err := newIdentity(enrollmentID, p.mspID, key, userData.EnrollmentCertificate, nil)
	if err != nil {
		return nil, fcwerrors.Wrap(fcwerrors.CredentialError, "ResolveIdentity", err, "stored identity is invalid")
	}
	logger.Debugf("Identity [%s] loaded from store", enrollmentID)
	return id, nil
}

func (p *IdentityProvider) enroll(ctx reqContext.Context, e Enrollment) (*Identity, error) {
	const op = "Enroll"

	resp, err := p.enroller.Enroll(ctx, &EnrollmentRequest{Name: e.EnrollmentID, Secret: e.EnrollmentSecret, OU: e.OU})
	if err != nil {
		return nil, fcwerrors.Wrap(fcwerrors.EnrollmentError, op, err, "enroll failed")
	}
	id, err := newIdentity(e.EnrollmentID, p.mspID, resp.Key, resp.Cert, resp.CAChain)
	if err != nil {
		return nil, fcwerrors.Wrap(fcwerrors.EnrollmentError, op, err, "CA returned an unusable certificate")
	}

	if err := p.persist(id, true); err != nil {
		return nil, err
	}
	logger.Infof("Enrolled [%s] with the CA", e.EnrollmentID)
	return id, nil
}

func (p *IdentityProvider) importIdentity(e Enrollment) (*Identity, error) {
	const op = "Import"

	key, err := p.importer.ImportKey(e.Key)
	if err != nil {
		return nil, fcwerrors.Wrap(fcwerrors.CredentialError, op, err, "import private key failed")
	}
	id, err := newIdentity(e.EnrollmentID, p.mspID, key, e.Cert, nil)
	if err != nil {
		return nil, fcwerrors.Wrap(fcwerrors.CredentialError, op, err, "invalid enrollment credentials")
	}

	if err := p.persist(id, false); err != nil {
		return nil, err
	}
	logger.Debugf("Imported identity [%s]", e.EnrollmentID)
	return id, nil
}

// persist stores the key then the certificate. If the certificate cannot be
// stored the key is removed again. A fresh enrollment replaces any orphaned key.
func (p *IdentityProvider) persist(id *Identity, overwrite bool) error {
	var err error
	if overwrite {
		err = p.keyStore.Overwrite(id.Identifier(), id.PrivateKey())
	} else {
		err = p.keyStore.Put(id.Identifier(), id.PrivateKey())
	}
	if err != nil {
		return err
	}
	err = p.userStore.Store(&UserData{ID: id.Identifier(), MSPID: id.MSPID(), EnrollmentCertificate: id.EnrollmentCertificate()})
	if err != nil {
		if derr := p.keyStore.Delete(id.Identifier()); derr != nil {
			logger.Errorf("Rollback of key of [%s] failed: %s", id.Identifier(), derr)
		}
		return err
	}
	return nil
}
