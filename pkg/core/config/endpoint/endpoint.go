/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package endpoint

import (
	"regexp"
	"strings"
)

var securedScheme = regexp.MustCompile(".*(?i)s://")

// IsTLSEnabled returns true for URLs with an https or grpcs scheme
func IsTLSEnabled(url string) bool {
	tlsURL := strings.ToLower(url)
	return strings.HasPrefix(tlsURL, "https://") || strings.HasPrefix(tlsURL, "grpcs://")
}

// ToAddress trims the grpc or grpcs scheme from url. Other URLs are returned unchanged.
func ToAddress(url string) string {
	if strings.HasPrefix(url, "grpc://") {
		return strings.TrimPrefix(url, "grpc://")
	}
	if strings.HasPrefix(url, "grpcs://") {
		return strings.TrimPrefix(url, "grpcs://")
	}
	return url
}

// AttemptSecured reports whether a secured connection is expected for url:
// true for a secured scheme, false for any other scheme, and !allowInsecure
// when no scheme is given
func AttemptSecured(url string, allowInsecure bool) bool {
	if securedScheme.MatchString(url) {
		return true
	}
	if strings.Contains(url, "://") {
		return false
	}
	return !allowInsecure
}
