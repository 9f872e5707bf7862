/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package keyvaluestore persists each value in its own file, replacing files atomically.
package keyvaluestore

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	newDirMode  = 0700
	newFileMode = 0600
)

// ErrNotFound is returned by Load when no value is stored for the key
var ErrNotFound = errors.New("value not found")

// KeySerializer converts a key to a unique file path
type KeySerializer func(key string) (string, error)

// FileKeyValueStore stores each value into a separate file.
// KeySerializer maps a key to a unique file path (relative to the store path)
type FileKeyValueStore struct {
	path          string
	keySerializer KeySerializer
}

// FileKeyValueStoreOptions allow overriding store defaults
type FileKeyValueStoreOptions struct {
	// Store path, mandatory
	Path string
	// Optional. If not provided, the key is used as the file name.
	KeySerializer KeySerializer
}

// New creates a new instance of FileKeyValueStore using provided options
func New(opts *FileKeyValueStoreOptions) (*FileKeyValueStore, error) {
	if opts == nil {
		return nil, errors.New("FileKeyValueStoreOptions is nil")
	}
	if opts.Path == "" {
		return nil, errors.New("FileKeyValueStore path is empty")
	}
	keySerializer := opts.KeySerializer
	if keySerializer == nil {
		keySerializer = func(key string) (string, error) {
			return key, nil
		}
	}
	return &FileKeyValueStore{
		path:          opts.Path,
		keySerializer: keySerializer,
	}, nil
}

// GetPath returns the store path
func (fkvs *FileKeyValueStore) GetPath() string {
	return fkvs.path
}

func (fkvs *FileKeyValueStore) file(key string) (string, error) {
	if key == "" {
		return "", errors.New("key is empty")
	}
	name, err := fkvs.keySerializer(key)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(name) {
		return name, nil
	}
	return filepath.Join(fkvs.path, name), nil
}

// Load returns the value stored in the store for a key.
// If a value for the key was not found, returns (nil, ErrNotFound)
func (fkvs *FileKeyValueStore) Load(key string) ([]byte, error) {
	file, err := fkvs.file(key)
	if err != nil {
		return nil, err
	}
	bytes, err := os.ReadFile(file) // nolint: gosec
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "reading %s failed", file)
	}
	return bytes, nil
}

// Store sets the value for the key. The value is written to a temporary file
// in the same directory and renamed into place.
func (fkvs *FileKeyValueStore) Store(key string, value []byte) error {
	if value == nil {
		return errors.New("value is nil")
	}
	file, err := fkvs.file(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(file)
	if err = os.MkdirAll(dir, newDirMode); err != nil {
		return errors.Wrapf(err, "creating %s failed", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(file)+".tmp")
	if err != nil {
		return errors.Wrap(err, "creating temporary file failed")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // nolint: errcheck

	if err = tmp.Chmod(newFileMode); err != nil {
		tmp.Close() // nolint: errcheck
		return errors.Wrap(err, "chmod failed")
	}
	if _, err = tmp.Write(value); err != nil {
		tmp.Close() // nolint: errcheck
		return errors.Wrap(err, "write failed")
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close() // nolint: errcheck
		return errors.Wrap(err, "sync failed")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "close failed")
	}
	return errors.Wrapf(os.Rename(tmpName, file), "renaming into %s failed", file)
}

// Delete deletes the value for a key. Deleting an absent key is not an error.
func (fkvs *FileKeyValueStore) Delete(key string) error {
	file, err := fkvs.file(key)
	if err != nil {
		return err
	}
	err = os.Remove(file)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing %s failed", file)
	}
	return nil
}
