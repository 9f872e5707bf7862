/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package errors defines the failure kinds surfaced by the client.
// Callers branch on Kind; details of the underlying transport failure stay
// reachable through the wrapped error.
package errors

import (
	stderrors "errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies an error.
type Kind int

// Error kinds.
const (
	Unknown Kind = iota
	// ConfigurationError is returned for missing or inconsistent configuration.
	ConfigurationError
	// EnrollmentError is returned when the CA rejects or cannot serve an enrollment.
	EnrollmentError
	// CredentialError is returned for malformed or mismatched imported key material.
	CredentialError
	// TransportConfigError is returned when TLS material cannot be loaded.
	TransportConfigError
	// EndorsementError is returned when a peer fails or rejects a proposal.
	EndorsementError
	// EndorsementMismatchError is returned when endorsing peers disagree.
	EndorsementMismatchError
	// SubmissionError is returned when the orderer rejects or is unreachable.
	SubmissionError
	// StorageError is returned for key or certificate persistence failures.
	StorageError
)

var kindNames = map[Kind]string{
	Unknown:                  "Unknown",
	ConfigurationError:       "ConfigurationError",
	EnrollmentError:          "EnrollmentError",
	CredentialError:          "CredentialError",
	TransportConfigError:     "TransportConfigError",
	EndorsementError:         "EndorsementError",
	EndorsementMismatchError: "EndorsementMismatchError",
	SubmissionError:          "SubmissionError",
	StorageError:             "StorageError",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a classified error.
type Error struct {
	Kind Kind
	// Op names the operation that failed, e.g. "ResolveIdentity"
	Op  string
	Err error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return e.Kind.String()
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Cause returns the wrapped error for github.com/pkg/errors.
func (e *Error) Cause() error {
	return e.Err
}

// E creates a classified error wrapping err.
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// New creates a classified error with a formatted message.
func New(kind Kind, op string, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: pkgerrors.Errorf(format, args...)}
}

// Wrap classifies err and annotates it with a message. Returns nil if err is nil.
func Wrap(kind Kind, op string, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: pkgerrors.WithMessage(err, message)}
}

// KindOf returns the kind of the outermost classified error in the chain.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		var e *Error
		if stderrors.As(err, &e) {
			return e.Kind
		}
		cause := pkgerrors.Cause(err)
		if cause == err {
			return Unknown
		}
		err = cause
	}
	return Unknown
}

// IsKind returns true if err or any error it wraps is classified as kind.
// Aggregated errors are searched member by member.
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok && e.Kind == kind {
		return true
	}
	switch x := err.(type) {
	case interface{ Unwrap() []error }:
		for _, member := range x.Unwrap() {
			if IsKind(member, kind) {
				return true
			}
		}
		return false
	case interface{ Unwrap() error }:
		return IsKind(x.Unwrap(), kind)
	case interface{ Cause() error }:
		return IsKind(x.Cause(), kind)
	}
	return false
}
