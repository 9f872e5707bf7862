/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package msp

import (
	fcwerrors "github.com/fcw-sdk/fabric-chain/pkg/errors"
)

// Enrollment holds the credentials used to establish an identity. Either
// EnrollmentSecret (enroll with the CA) or Key and Cert (import) is set.
type Enrollment struct {
	EnrollmentID     string
	EnrollmentSecret string
	OU               string
	// PEM encoded private key
	Key []byte
	// PEM encoded enrollment certificate
	Cert []byte
}

func (e Enrollment) usesSecret() bool {
	return e.EnrollmentSecret != ""
}

func (e Enrollment) hasMaterial() bool {
	return len(e.Key) > 0 || len(e.Cert) > 0
}

func (e Enrollment) validate(caConfigured bool) error {
	const op = "Enrollment.Validate"

	if e.EnrollmentID == "" {
		return fcwerrors.New(fcwerrors.ConfigurationError, op, "enrollmentID is required")
	}
	switch {
	case e.usesSecret() && e.hasMaterial():
		return fcwerrors.New(fcwerrors.ConfigurationError, op, "enrollment for '%s' has both a secret and key material", e.EnrollmentID)
	case e.usesSecret():
		if !caConfigured {
			return fcwerrors.New(fcwerrors.ConfigurationError, op, "enrollment secret given for '%s' but no CA is configured", e.EnrollmentID)
		}
	case e.hasMaterial():
		if len(e.Key) == 0 || len(e.Cert) == 0 {
			return fcwerrors.New(fcwerrors.ConfigurationError, op, "enrollment for '%s' needs both key and cert", e.EnrollmentID)
		}
	default:
		return fcwerrors.New(fcwerrors.ConfigurationError, op, "enrollment for '%s' has neither a secret nor key material", e.EnrollmentID)
	}
	return nil
}
