/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package status carries the transport and server level detail of a failed
// network call. The client's error kinds wrap a Status when the failure came
// from a peer, the orderer, the CA or the gRPC layer.
package status

import (
	"fmt"

	pb "github.com/hyperledger/fabric-protos-go/peer"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	grpcstatus "google.golang.org/grpc/status"
)

// Status describes an unsuccessful remote operation.
type Status struct {
	// Group status group
	Group Group
	// Code status code
	Code int32
	// Message status message
	Message string
	// Details any additional status details
	Details []interface{}
}

// Group identifies the component that produced the status.
type Group int32

const (
	// UnknownStatus unknown status group
	UnknownStatus Group = iota
	// GRPCTransportStatus is the status of a gRPC call
	GRPCTransportStatus
	// HTTPTransportStatus is the status of an HTTP call
	HTTPTransportStatus
	// EndorserServerStatus status returned by a peer in its proposal response
	EndorserServerStatus
	// EventServerStatus status returned by the deliver service
	EventServerStatus
	// OrdererServerStatus status returned by the ordering service
	OrdererServerStatus
	// FabricCAServerStatus status returned by the Fabric CA server
	FabricCAServerStatus
	// EndorserClientStatus status inferred while validating endorsements
	EndorserClientStatus
	// OrdererClientStatus status inferred while talking to the orderer
	OrdererClientStatus
	// ClientStatus is a generic client status
	ClientStatus
)

// GroupName maps groups to human-readable strings
var GroupName = map[int32]string{
	0: "Unknown",
	1: "gRPC Transport Status",
	2: "HTTP Transport Status",
	3: "Endorser Server Status",
	4: "Event Server Status",
	5: "Orderer Server Status",
	6: "Fabric CA Server Status",
	7: "Endorser Client Status",
	8: "Orderer Client Status",
	9: "Client Status",
}

func (g Group) String() string {
	if s, ok := GroupName[int32(g)]; ok {
		return s
	}
	return UnknownStatus.String()
}

// FromError returns the Status carried by err, if any.
// An aggregate of several errors is reported as a single ClientStatus with
// each error in Details.
func FromError(err error) (s *Status, ok bool) {
	if err == nil {
		return &Status{Code: int32(OK)}, true
	}
	if s, ok := err.(*Status); ok {
		return s, true
	}
	unwrappedErr := errors.Cause(err)
	if s, ok := unwrappedErr.(*Status); ok {
		return s, true
	}
	if errs := multierr.Errors(unwrappedErr); len(errs) > 1 {
		details := make([]interface{}, len(errs))
		for i, e := range errs {
			details[i] = e
		}
		return New(ClientStatus, MultipleErrors.ToInt32(), unwrappedErr.Error(), details), true
	}
	return nil, false
}

func (s *Status) Error() string {
	return fmt.Sprintf("%s Code: (%d) %s. Description: %s", s.Group.String(), s.Code, s.codeString(), s.Message)
}

func (s *Status) codeString() string {
	switch s.Group {
	case GRPCTransportStatus:
		return ToGRPCStatusCode(s.Code).String()
	case EndorserServerStatus, OrdererServerStatus, EventServerStatus:
		return ToFabricCommonStatusCode(s.Code).String()
	case EndorserClientStatus, OrdererClientStatus, ClientStatus:
		return ToSDKStatusCode(s.Code).String()
	case HTTPTransportStatus, FabricCAServerStatus:
		return fmt.Sprintf("%d", s.Code)
	default:
		return Unknown.String()
	}
}

// New returns a Status with the given parameters
func New(group Group, code int32, msg string, details []interface{}) *Status {
	return &Status{Group: group, Code: code, Message: msg, Details: details}
}

// NewFromProposalResponse creates a status from the response of the given endorser
func NewFromProposalResponse(res *pb.ProposalResponse, endorser string) *Status {
	if res == nil || res.Response == nil {
		return nil
	}
	details := []interface{}{endorser, res.Response.Payload}

	return New(EndorserServerStatus, res.Response.Status, res.Response.Message, details)
}

// NewFromGRPCStatus creates a status from a gRPC status
func NewFromGRPCStatus(s *grpcstatus.Status) *Status {
	if s == nil {
		return nil
	}
	details := make([]interface{}, len(s.Proto().Details))
	for i, detail := range s.Proto().Details {
		details[i] = detail
	}

	return &Status{Group: GRPCTransportStatus, Code: s.Proto().Code,
		Message: s.Message(), Details: details}
}
