/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package status

import (
	"strconv"

	"github.com/hyperledger/fabric-protos-go/common"
	grpcCodes "google.golang.org/grpc/codes"
)

// Code is a client-side status code
type Code uint32

const (
	// OK is returned on success.
	OK Code = 0

	// Unknown represents uncategorized status codes
	Unknown Code = 1

	// ConnectionFailed is returned when a network connection attempt fails
	ConnectionFailed Code = 2

	// EndorsementMismatch is returned when endorsing peers return different results
	EndorsementMismatch Code = 3

	// EmptyCert is returned when a signing identity has no certificate
	EmptyCert Code = 4

	// Timeout operation timed out
	Timeout Code = 5

	// NoPeersFound no peers were configured
	NoPeersFound Code = 6

	// MultipleErrors multiple errors occurred
	MultipleErrors Code = 7

	// MissingEndorsement a peer returned a successful response without an endorsement
	MissingEndorsement Code = 9
)

// CodeName maps codes to human-readable strings
var CodeName = map[int32]string{
	0: "OK",
	1: "UNKNOWN",
	2: "CONNECTION_FAILED",
	3: "ENDORSEMENT_MISMATCH",
	4: "EMPTY_CERT",
	5: "TIMEOUT",
	6: "NO_PEERS_FOUND",
	7: "MULTIPLE_ERRORS",
	9: "MISSING_ENDORSEMENT",
}

// ToInt32 cast to int32
func (c Code) ToInt32() int32 {
	return int32(c)
}

// String representation of the code
func (c Code) String() string {
	if s, ok := CodeName[c.ToInt32()]; ok {
		return s
	}
	return strconv.Itoa(int(c))
}

// ToSDKStatusCode cast to a client status code
func ToSDKStatusCode(c int32) Code {
	return Code(c)
}

// ToGRPCStatusCode cast to gRPC status code
func ToGRPCStatusCode(c int32) grpcCodes.Code {
	return grpcCodes.Code(c)
}

// ToFabricCommonStatusCode cast to common.Status
func ToFabricCommonStatusCode(c int32) common.Status {
	return common.Status(c)
}

// multipleChoices is the first non-success status a peer can report
const multipleChoices = 300

// IsProposalSuccess reports whether a proposal response status is in the 2xx range
func IsProposalSuccess(s int32) bool {
	return s >= int32(common.Status_SUCCESS) && s < multipleChoices
}
