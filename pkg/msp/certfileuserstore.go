/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package msp

import (
	"path/filepath"

	"github.com/pkg/errors"

	fcwerrors "github.com/fcw-sdk/fabric-chain/pkg/errors"
	"github.com/fcw-sdk/fabric-chain/pkg/fab/keyvaluestore"
)

// ErrUserNotFound indicates the user was not found
var ErrUserNotFound = errors.New("user not found")

// UserData is the persisted part of an identity
type UserData struct {
	ID                    string
	MSPID                 string
	EnrollmentCertificate []byte
}

// CertFileUserStore stores each user in a separate file.
// Only user's enrollment cert is stored, in pem format.
// File naming is <user>@<mspid>-cert.pem
type CertFileUserStore struct {
	store *keyvaluestore.FileKeyValueStore
}

func storeKeyFromUserIdentifier(id, mspID string) string {
	return id + "@" + mspID + "-cert.pem"
}

// NewCertFileUserStore creates the user store of the client instance under <root>/<clientInstanceID>
func NewCertFileUserStore(root, clientInstanceID string) (*CertFileUserStore, error) {
	const op = "NewCertFileUserStore"

	if root == "" {
		return nil, fcwerrors.New(fcwerrors.ConfigurationError, op, "path is empty")
	}
	if clientInstanceID == "" {
		return nil, fcwerrors.New(fcwerrors.ConfigurationError, op, "cannot enroll with undefined uuid")
	}
	store, err := keyvaluestore.New(&keyvaluestore.FileKeyValueStoreOptions{
		Path: filepath.Join(root, clientInstanceID),
	})
	if err != nil {
		return nil, fcwerrors.E(fcwerrors.StorageError, op, errors.WithMessage(err, "user store creation failed"))
	}
	return &CertFileUserStore{store: store}, nil
}

// Load returns the user stored for the identifier
func (s *CertFileUserStore) Load(id, mspID string) (*UserData, error) {
	cert, err := s.store.Load(storeKeyFromUserIdentifier(id, mspID))
	if err != nil {
		if err == keyvaluestore.ErrNotFound {
			return nil, ErrUserNotFound
		}
		return nil, fcwerrors.E(fcwerrors.StorageError, "CertFileUserStore.Load", err)
	}
	return &UserData{
		ID:                    id,
		MSPID:                 mspID,
		EnrollmentCertificate: cert,
	}, nil
}

// Store stores a user into the store
func (s *CertFileUserStore) Store(user *UserData) error {
	if user == nil || len(user.EnrollmentCertificate) == 0 {
		return fcwerrors.New(fcwerrors.StorageError, "CertFileUserStore.Store", "user has no enrollment certificate")
	}
	err := s.store.Store(storeKeyFromUserIdentifier(user.ID, user.MSPID), user.EnrollmentCertificate)
	if err != nil {
		return fcwerrors.E(fcwerrors.StorageError, "CertFileUserStore.Store", err)
	}
	return nil
}

// Delete deletes a user from the store
func (s *CertFileUserStore) Delete(id, mspID string) error {
	if err := s.store.Delete(storeKeyFromUserIdentifier(id, mspID)); err != nil {
		return fcwerrors.E(fcwerrors.StorageError, "CertFileUserStore.Delete", err)
	}
	return nil
}
