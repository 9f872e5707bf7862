/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package peer provides a client for a peer's endorser and deliver services.
package peer

import (
	reqContext "context"
	"crypto/x509"
	"sync"
	"time"

	"github.com/hyperledger/fabric-protos-go/common"
	pb "github.com/hyperledger/fabric-protos-go/peer"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"google.golang.org/grpc"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/fcw-sdk/fabric-chain/pkg/common/errors/status"
	"github.com/fcw-sdk/fabric-chain/pkg/common/logging"
	"github.com/fcw-sdk/fabric-chain/pkg/core/config"
	"github.com/fcw-sdk/fabric-chain/pkg/core/config/comm"
	"github.com/fcw-sdk/fabric-chain/pkg/fab"
)

var logger = logging.NewLogger("fcw/fab")

// Peer represents a node in the target blockchain network to which
// proposals are sent and from which blocks are delivered.
// Connections are created on first use.
type Peer struct {
	config      config.EndpointConfig
	tlsCert     *x509.Certificate
	dialTimeout time.Duration

	connMtx   sync.Mutex
	conn      *grpc.ClientConn
	eventConn *grpc.ClientConn
}

// Option describes a functional parameter for the New constructor
type Option func(*Peer) error

// New creates a peer for the endpoint. Nothing is dialled until the peer is used.
func New(cfg config.EndpointConfig, opts ...Option) (*Peer, error) {
	if cfg.URL == "" {
		return nil, errors.New("peer url is required")
	}
	p := &Peer{config: cfg}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// WithTLSCert configures the root certificate used to verify the peer
func WithTLSCert(cert *x509.Certificate) Option {
	return func(p *Peer) error {
		p.tlsCert = cert
		return nil
	}
}

// WithDialTimeout configures the minimum connect timeout
func WithDialTimeout(timeout time.Duration) Option {
	return func(p *Peer) error {
		p.dialTimeout = timeout
		return nil
	}
}

// URL returns the peer's endorser URL
func (p *Peer) URL() string {
	return p.config.URL
}

// EventURL returns the URL blocks are delivered from: the event URL when configured, the peer URL otherwise
func (p *Peer) EventURL() string {
	return p.config.EventSource()
}

func (p *Peer) endorserConn() (*grpc.ClientConn, error) {
	p.connMtx.Lock()
	defer p.connMtx.Unlock()

	if p.conn == nil {
		conn, err := comm.Dial(p.config, p.tlsCert, p.dialTimeout)
		if err != nil {
			return nil, err
		}
		p.conn = conn
	}
	return p.conn, nil
}

func (p *Peer) deliverConn() (*grpc.ClientConn, error) {
	if p.config.EventURL == "" || p.config.EventURL == p.config.URL {
		return p.endorserConn()
	}

	p.connMtx.Lock()
	defer p.connMtx.Unlock()

	if p.eventConn == nil {
		conn, err := comm.DialURL(p.config.EventURL, p.config, p.tlsCert, p.dialTimeout)
		if err != nil {
			return nil, err
		}
		p.eventConn = conn
	}
	return p.eventConn, nil
}

// ProcessTransactionProposal sends the transaction proposal to the peer and returns the response.
func (p *Peer) ProcessTransactionProposal(ctx reqContext.Context, request fab.ProcessProposalRequest) (*fab.TransactionProposalResponse, error) {
	logger.Debugf("Processing proposal using endorser: %s", p.URL())

	conn, err := p.endorserConn()
	if err != nil {
		return nil, status.New(status.EndorserClientStatus, status.ConnectionFailed.ToInt32(), err.Error(), []interface{}{p.URL()})
	}

	resp, err := pb.NewEndorserClient(conn).ProcessProposal(ctx, request.SignedProposal)
	if err != nil {
		if rpcStatus, ok := grpcstatus.FromError(err); ok {
			err = status.NewFromGRPCStatus(rpcStatus)
		}
		return nil, errors.Wrapf(err, "transaction processing for endorser [%s] failed", p.URL())
	}
	if resp.GetResponse() == nil {
		return nil, status.New(status.EndorserClientStatus, status.Unknown.ToInt32(), "proposal response carries no response", []interface{}{p.URL()})
	}

	if resp.Response.Status < int32(common.Status_SUCCESS) || resp.Response.Status >= int32(common.Status_BAD_REQUEST) {
		return nil, errors.WithMessagef(status.NewFromProposalResponse(resp, p.URL()), "endorser [%s] rejected proposal", p.URL())
	}

	return &fab.TransactionProposalResponse{
		Endorser:         p.URL(),
		Status:           resp.Response.Status,
		ProposalResponse: resp,
	}, nil
}

// Deliver opens a block stream on the peer's deliver service and sends the seek request.
// The stream lives until ctx is cancelled or the peer ends it.
func (p *Peer) Deliver(ctx reqContext.Context, seek *common.Envelope) (pb.Deliver_DeliverClient, error) {
	conn, err := p.deliverConn()
	if err != nil {
		return nil, status.New(status.EndorserClientStatus, status.ConnectionFailed.ToInt32(), err.Error(), []interface{}{p.EventURL()})
	}

	stream, err := pb.NewDeliverClient(conn).Deliver(ctx)
	if err != nil {
		if rpcStatus, ok := grpcstatus.FromError(err); ok {
			err = status.NewFromGRPCStatus(rpcStatus)
		}
		return nil, errors.Wrapf(err, "opening deliver stream to [%s] failed", p.EventURL())
	}
	if err := stream.Send(seek); err != nil {
		return nil, errors.Wrapf(err, "sending seek request to [%s] failed", p.EventURL())
	}
	if err := stream.CloseSend(); err != nil {
		logger.Debugf("unable to close deliver send direction [%s]", err)
	}
	return stream, nil
}

// Close releases the peer's connections
func (p *Peer) Close() error {
	p.connMtx.Lock()
	defer p.connMtx.Unlock()

	var err error
	if p.conn != nil {
		err = multierr.Append(err, p.conn.Close())
		p.conn = nil
	}
	if p.eventConn != nil {
		err = multierr.Append(err, p.eventConn.Close())
		p.eventConn = nil
	}
	return err
}
