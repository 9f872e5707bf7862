/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package msp

import (
	"bytes"
	"crypto/ecdsa"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/fcw-sdk/fabric-chain/pkg/core/cryptosuite"
	fcwerrors "github.com/fcw-sdk/fabric-chain/pkg/errors"
	"github.com/fcw-sdk/fabric-chain/pkg/fab/keyvaluestore"
)

var (
	// ErrKeyNotFound indicates that no key is stored for the enrollment ID
	ErrKeyNotFound = errors.New("private key not found")
	// ErrKeyExists indicates that different key material is already stored for the enrollment ID
	ErrKeyExists = errors.New("a different private key is already stored")
)

// KeyStore persists private keys of one client instance under
// <root>/<clientInstanceID>/keystore/<enrollmentID>_sk
type KeyStore struct {
	store *keyvaluestore.FileKeyValueStore
}

// NewFileKeyStore creates a key store rooted at root for the client instance
func NewFileKeyStore(root, clientInstanceID string) (*KeyStore, error) {
	const op = "NewFileKeyStore"

	if root == "" {
		return nil, fcwerrors.New(fcwerrors.ConfigurationError, op, "key store path is required")
	}
	if clientInstanceID == "" {
		return nil, fcwerrors.New(fcwerrors.ConfigurationError, op, "cannot enroll with undefined uuid")
	}
	store, err := keyvaluestore.New(&keyvaluestore.FileKeyValueStoreOptions{
		Path: filepath.Join(root, clientInstanceID, "keystore"),
		KeySerializer: func(enrollmentID string) (string, error) {
			return enrollmentID + "_sk", nil
		},
	})
	if err != nil {
		return nil, fcwerrors.E(fcwerrors.StorageError, op, err)
	}
	return &KeyStore{store: store}, nil
}

// Path returns the directory holding the keys
func (ks *KeyStore) Path() string {
	return ks.store.GetPath()
}

// Put stores the key for enrollmentID. Storing the same key again is a no-op;
// storing a different one fails with ErrKeyExists.
func (ks *KeyStore) Put(enrollmentID string, key *ecdsa.PrivateKey) error {
	const op = "KeyStore.Put"

	raw, err := cryptosuite.PrivateKeyToPEM(key)
	if err != nil {
		return fcwerrors.E(fcwerrors.StorageError, op, err)
	}

	existing, err := ks.store.Load(enrollmentID)
	switch {
	case err == keyvaluestore.ErrNotFound:
	case err != nil:
		return fcwerrors.E(fcwerrors.StorageError, op, err)
	default:
		stored, perr := cryptosuite.PEMToPrivateKey(existing)
		if perr == nil && stored.Equal(key) {
			return nil
		}
		if bytes.Equal(existing, raw) {
			return nil
		}
		return fcwerrors.E(fcwerrors.StorageError, op, errors.WithMessagef(ErrKeyExists, "enrollment '%s'", enrollmentID))
	}

	if err := ks.store.Store(enrollmentID, raw); err != nil {
		return fcwerrors.E(fcwerrors.StorageError, op, err)
	}
	return nil
}

// Overwrite stores the key for enrollmentID, replacing any existing key
func (ks *KeyStore) Overwrite(enrollmentID string, key *ecdsa.PrivateKey) error {
	const op = "KeyStore.Overwrite"

	raw, err := cryptosuite.PrivateKeyToPEM(key)
	if err != nil {
		return fcwerrors.E(fcwerrors.StorageError, op, err)
	}
	if err := ks.store.Store(enrollmentID, raw); err != nil {
		return fcwerrors.E(fcwerrors.StorageError, op, err)
	}
	return nil
}

// Get returns the key stored for enrollmentID
func (ks *KeyStore) Get(enrollmentID string) (*ecdsa.PrivateKey, error) {
	const op = "KeyStore.Get"

	raw, err := ks.store.Load(enrollmentID)
	if err != nil {
		if err == keyvaluestore.ErrNotFound {
			return nil, fcwerrors.E(fcwerrors.StorageError, op, errors.WithMessagef(ErrKeyNotFound, "enrollment '%s'", enrollmentID))
		}
		return nil, fcwerrors.E(fcwerrors.StorageError, op, err)
	}
	key, err := cryptosuite.PEMToPrivateKey(raw)
	if err != nil {
		return nil, fcwerrors.E(fcwerrors.StorageError, op, err)
	}
	return key, nil
}

// Delete removes the key stored for enrollmentID
func (ks *KeyStore) Delete(enrollmentID string) error {
	if err := ks.store.Delete(enrollmentID); err != nil {
		return fcwerrors.E(fcwerrors.StorageError, "KeyStore.Delete", err)
	}
	return nil
}
