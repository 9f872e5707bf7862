/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package channel enables access to a channel on a Fabric network. A channel client instance provides a handler to interact with peers on specified channel.
// Channel client can query chaincode and execute chaincode.
// An application that requires interaction with multiple channels should create a separate
// instance of the channel client for each channel.
//
// Basic Flow:
//  1. Prepare the channel with channel.Assemble
//  2. Create channel client
//  3. Execute chaincode
//  4. Query chaincode
package channel

import (
	reqContext "context"
	"fmt"
	"time"

	pb "github.com/hyperledger/fabric-protos-go/peer"
	"github.com/pkg/errors"

	"github.com/fcw-sdk/fabric-chain/pkg/common/errors/status"
	"github.com/fcw-sdk/fabric-chain/pkg/common/logging"
	"github.com/fcw-sdk/fabric-chain/pkg/common/metrics"
	fcwerrors "github.com/fcw-sdk/fabric-chain/pkg/errors"
	"github.com/fcw-sdk/fabric-chain/pkg/fab"
	"github.com/fcw-sdk/fabric-chain/pkg/fab/resource"
	"github.com/fcw-sdk/fabric-chain/pkg/fab/txn"
)

var logger = logging.NewLogger("fcw/client")

// Channel is the assembled channel the client sends requests on
type Channel interface {
	Name() string
	Identity() fab.SigningIdentity
	Orderer() fab.Orderer
	Targets() []fab.ProposalProcessor
	Target(i int) (fab.ProposalProcessor, error)
	PrimaryTarget() fab.ProposalProcessor
}

// Client enables access to a channel on a Fabric network.
type Client struct {
	channel Channel
	metrics *metrics.ClientMetrics
}

// ClientOption describes a functional parameter for the New constructor
type ClientOption func(*Client) error

// WithMetrics records query and execution metrics with the provider
func WithMetrics(p metrics.Provider) ClientOption {
	return func(c *Client) error {
		c.metrics = metrics.NewClientMetrics(p)
		return nil
	}
}

// New returns a Client instance for the channel.
func New(ch Channel, opts ...ClientOption) (*Client, error) {
	if ch == nil {
		return nil, errors.New("channel is required")
	}
	c := &Client{channel: ch}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.metrics == nil {
		c.metrics = metrics.NewClientMetrics(nil)
	}
	return c, nil
}

// Query chaincode using request and optional request options. The request
// goes to the primary peer, or to every peer with WithAllPeers. Each peer's
// response payload is returned in peer order; empty payloads are omitted.
func (cc *Client) Query(ctx reqContext.Context, request Request, options ...RequestOption) ([][]byte, error) {
	meterLabels := []string{
		"chaincode", request.ChaincodeID,
		"Fcn", request.Fcn,
	}
	cc.metrics.QueriesReceived.With(meterLabels...).Add(1)
	startTime := time.Now()

	payloads, err := cc.query(ctx, request, options...)
	if err != nil {
		cc.metrics.QueriesFailed.With(append(meterLabels, "fail", failLabel(err))...).Add(1)
		return nil, err
	}
	cc.metrics.QueryDuration.With(meterLabels...).Observe(time.Since(startTime).Seconds())
	return payloads, nil
}

func (cc *Client) query(ctx reqContext.Context, request Request, options ...RequestOption) ([][]byte, error) {
	o, err := cc.prepareOptsFromOptions(options...)
	if err != nil {
		return nil, err
	}
	targets := o.Targets
	if len(targets) == 0 {
		if o.AllPeers {
			targets = cc.channel.Targets()
		} else {
			targets = []fab.ProposalProcessor{cc.channel.PrimaryTarget()}
		}
	}

	ctx, cancel := withTimeout(ctx, o.Timeout)
	defer cancel()

	_, responses, err := txn.Endorse(ctx, cc.channel.Identity(), cc.channel.Name(), invokeRequest(request), targets)
	if err != nil {
		return nil, err
	}

	payloads := [][]byte{}
	for _, r := range responses {
		if err := checkStatus(r); err != nil {
			return nil, err
		}
		if p := r.ProposalResponse.Response.Payload; len(p) > 0 {
			payloads = append(payloads, p)
		}
	}
	return payloads, nil
}

// Execute prepares and executes transaction using request and optional request options.
// The proposal is endorsed by every peer; the transaction is only submitted
// when all endorsements agree. Execute returns on the orderer's acknowledgement.
func (cc *Client) Execute(ctx reqContext.Context, request Request, options ...RequestOption) (Response, error) {
	meterLabels := []string{
		"chaincode", request.ChaincodeID,
		"Fcn", request.Fcn,
	}
	cc.metrics.ExecutionsReceived.With(meterLabels...).Add(1)
	startTime := time.Now()

	r, err := cc.execute(ctx, request, options...)
	if err != nil {
		cc.metrics.ExecutionsFailed.With(append(meterLabels, "fail", failLabel(err))...).Add(1)
		return r, err
	}
	cc.metrics.ExecutionDuration.With(meterLabels...).Observe(time.Since(startTime).Seconds())
	return r, nil
}

func (cc *Client) execute(ctx reqContext.Context, request Request, options ...RequestOption) (Response, error) {
	o, err := cc.prepareOptsFromOptions(options...)
	if err != nil {
		return Response{}, err
	}
	targets := o.Targets
	if len(targets) == 0 {
		targets = cc.channel.Targets()
	}

	ctx, cancel := withTimeout(ctx, o.Timeout)
	defer cancel()

	signer := cc.channel.Identity()
	proposal, responses, err := txn.Endorse(ctx, signer, cc.channel.Name(), invokeRequest(request), targets)
	if err != nil {
		return Response{}, err
	}

	tx, err := txn.New(fab.TransactionRequest{Proposal: proposal, ProposalResponses: responses})
	if err != nil {
		return Response{TransactionID: proposal.TxnID, Proposal: proposal, Responses: responses}, err
	}

	if _, err := txn.Send(ctx, signer, tx, cc.channel.Orderer()); err != nil {
		return Response{TransactionID: proposal.TxnID, Proposal: proposal, Responses: responses}, err
	}

	logger.Debugf("transaction %s for %s.%s submitted", proposal.TxnID, request.ChaincodeID, request.Fcn)
	return Response{
		Payload:          responses[0].ProposalResponse.Response.Payload,
		TransactionID:    proposal.TxnID,
		TxValidationCode: pb.TxValidationCode_NOT_VALIDATED,
		Proposal:         proposal,
		Responses:        responses,
	}, nil
}

// QueryInstalledChaincodes returns the chaincodes installed on the peer at peerIndex
func (cc *Client) QueryInstalledChaincodes(ctx reqContext.Context, peerIndex int) (*pb.ChaincodeQueryResponse, error) {
	target, err := cc.channel.Target(peerIndex)
	if err != nil {
		return nil, err
	}
	return resource.QueryInstalledChaincodes(ctx, cc.channel.Identity(), target)
}

// QueryInstantiatedChaincodes returns the chaincodes instantiated on the channel, as seen by the primary peer
func (cc *Client) QueryInstantiatedChaincodes(ctx reqContext.Context) (*pb.ChaincodeQueryResponse, error) {
	return resource.QueryInstantiatedChaincodes(ctx, cc.channel.Identity(), cc.channel.Name(), cc.channel.PrimaryTarget())
}

// QueryChannels returns the channels the peer at peerIndex has joined
func (cc *Client) QueryChannels(ctx reqContext.Context, peerIndex int) (*pb.ChannelQueryResponse, error) {
	target, err := cc.channel.Target(peerIndex)
	if err != nil {
		return nil, err
	}
	return resource.QueryChannels(ctx, cc.channel.Identity(), target)
}

func (cc *Client) prepareOptsFromOptions(options ...RequestOption) (requestOptions, error) {
	o := requestOptions{}
	for _, option := range options {
		if err := option(&o); err != nil {
			return o, errors.WithMessage(err, "Failed to read opts")
		}
	}
	return o, nil
}

func withTimeout(ctx reqContext.Context, timeout time.Duration) (reqContext.Context, reqContext.CancelFunc) {
	if timeout > 0 {
		return reqContext.WithTimeout(ctx, timeout)
	}
	return reqContext.WithCancel(ctx)
}

func invokeRequest(request Request) fab.ChaincodeInvokeRequest {
	return fab.ChaincodeInvokeRequest{
		ChaincodeID:  request.ChaincodeID,
		Fcn:          request.Fcn,
		Args:         request.Args,
		TransientMap: request.TransientMap,
	}
}

func checkStatus(r *fab.TransactionProposalResponse) error {
	const op = "Query"

	if r == nil || r.ProposalResponse == nil || r.ProposalResponse.Response == nil {
		return fcwerrors.E(fcwerrors.EndorsementError, op,
			status.New(status.EndorserClientStatus, status.MissingEndorsement.ToInt32(), "empty proposal response", nil))
	}
	if !status.IsProposalSuccess(r.Status) {
		return fcwerrors.E(fcwerrors.EndorsementError, op, status.NewFromProposalResponse(r.ProposalResponse, r.Endorser))
	}
	return nil
}

func failLabel(err error) string {
	if kind := fcwerrors.KindOf(err); kind != fcwerrors.Unknown {
		return kind.String()
	}
	if s, ok := status.FromError(err); ok {
		return fmt.Sprintf("Error - Group:%s - Code:%d", s.Group.String(), s.Code)
	}
	return "Error - Generic"
}
