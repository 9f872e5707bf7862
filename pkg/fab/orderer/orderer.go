/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package orderer provides a client for the ordering service's broadcast and deliver services.
package orderer

import (
	reqContext "context"
	"crypto/x509"
	"io"
	"sync"
	"time"

	"github.com/hyperledger/fabric-protos-go/common"
	ab "github.com/hyperledger/fabric-protos-go/orderer"
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

// Orderer allows a client to broadcast a transaction.
type Orderer struct {
	config      config.EndpointConfig
	tlsCert     *x509.Certificate
	dialTimeout time.Duration

	connMtx sync.Mutex
	conn    *grpc.ClientConn
}

// Option describes a functional parameter for the New constructor
type Option func(*Orderer) error

// New returns an Orderer for the endpoint. Nothing is dialled until the orderer is used.
func New(cfg config.EndpointConfig, opts ...Option) (*Orderer, error) {
	if cfg.URL == "" {
		return nil, errors.New("orderer url is required")
	}
	o := &Orderer{config: cfg}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithTLSCert configures the orderer's TLS root certificate
func WithTLSCert(cert *x509.Certificate) Option {
	return func(o *Orderer) error {
		o.tlsCert = cert
		return nil
	}
}

// WithDialTimeout configures the minimum connect timeout
func WithDialTimeout(timeout time.Duration) Option {
	return func(o *Orderer) error {
		o.dialTimeout = timeout
		return nil
	}
}

// URL returns the orderer URL
func (o *Orderer) URL() string {
	return o.config.URL
}

func (o *Orderer) clientConn() (*grpc.ClientConn, error) {
	o.connMtx.Lock()
	defer o.connMtx.Unlock()

	if o.conn == nil {
		conn, err := comm.Dial(o.config, o.tlsCert, o.dialTimeout)
		if err != nil {
			return nil, status.New(status.OrdererClientStatus, status.ConnectionFailed.ToInt32(), err.Error(), []interface{}{o.URL()})
		}
		o.conn = conn
	}
	return o.conn, nil
}

// Close releases the orderer connection
func (o *Orderer) Close() error {
	o.connMtx.Lock()
	defer o.connMtx.Unlock()

	if o.conn == nil {
		return nil
	}
	err := o.conn.Close()
	o.conn = nil
	return err
}

func fromGRPC(err error) error {
	if rpcStatus, ok := grpcstatus.FromError(err); ok {
		return status.NewFromGRPCStatus(rpcStatus)
	}
	return err
}

// SendBroadcast sends the envelope to the orderer and waits for its acknowledgement.
func (o *Orderer) SendBroadcast(ctx reqContext.Context, envelope *fab.SignedEnvelope) (*common.Status, error) {
	conn, err := o.clientConn()
	if err != nil {
		return nil, err
	}

	broadcastClient, err := ab.NewAtomicBroadcastClient(conn).Broadcast(ctx)
	if err != nil {
		return nil, errors.Wrap(fromGRPC(err), "NewAtomicBroadcastClient failed")
	}

	responses := make(chan common.Status)
	errs := make(chan error, 1)

	go broadcastStream(broadcastClient, responses, errs)

	err = broadcastClient.Send(&common.Envelope{
		Payload:   envelope.Payload,
		Signature: envelope.Signature,
	})
	if err != nil {
		return nil, errors.Wrap(fromGRPC(err), "failed to send envelope to orderer")
	}
	if err = broadcastClient.CloseSend(); err != nil {
		logger.Debugf("unable to close broadcast client [%s]", err)
	}

	return wrapStreamStatusRPC(responses, errs)
}

// wrapStreamStatusRPC returns the last response and error and blocks until responses is closed.
func wrapStreamStatusRPC(responses chan common.Status, errs chan error) (*common.Status, error) {
	var s common.Status
	var err error

read:
	for {
		select {
		case r, ok := <-responses:
			if !ok {
				break read
			}
			s = r
		case e := <-errs:
			err = multierr.Append(err, e)
		}
	}

	for len(errs) > 0 {
		err = multierr.Append(err, <-errs)
	}

	return &s, err
}

func broadcastStream(broadcastClient ab.AtomicBroadcast_BroadcastClient, responses chan common.Status, errs chan error) {
	defer close(responses)
	for {
		broadcastResponse, err := broadcastClient.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			errs <- errors.Wrap(fromGRPC(err), "broadcast recv failed")
			return
		}

		if broadcastResponse.Status != common.Status_SUCCESS {
			errs <- status.New(status.OrdererServerStatus, int32(broadcastResponse.Status), broadcastResponse.Info, nil)
			return
		}
		responses <- broadcastResponse.Status
	}
}

// SendDeliver sends a seek request to the ordering service and returns the
// requested blocks. The block channel is closed when the stream ends; a
// failure is reported on the error channel first.
func (o *Orderer) SendDeliver(ctx reqContext.Context, envelope *fab.SignedEnvelope) (chan *common.Block, chan error) {
	responses := make(chan *common.Block)
	errs := make(chan error, 1)

	conn, err := o.clientConn()
	if err != nil {
		errs <- err
		close(responses)
		return responses, errs
	}

	deliverClient, err := ab.NewAtomicBroadcastClient(conn).Deliver(ctx)
	if err != nil {
		logger.Errorf("deliver failed [%s]", err)
		errs <- errors.Wrap(fromGRPC(err), "deliver failed")
		close(responses)
		return responses, errs
	}

	go blockStream(ctx, deliverClient, responses, errs)

	logger.Debug("Requesting blocks from ordering service")
	err = deliverClient.Send(&common.Envelope{
		Payload:   envelope.Payload,
		Signature: envelope.Signature,
	})
	if err != nil {
		logger.Warnf("failed to send block request to orderer [%s]", err)
	}
	if err = deliverClient.CloseSend(); err != nil {
		logger.Debugf("unable to close deliver client [%s]", err)
	}

	return responses, errs
}

func blockStream(ctx reqContext.Context, deliverClient ab.AtomicBroadcast_DeliverClient, responses chan *common.Block, errs chan error) {
	defer close(responses)
	for {
		response, err := deliverClient.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			errs <- errors.Wrap(fromGRPC(err), "recv from ordering service failed")
			return
		}

		switch t := response.Type.(type) {
		case *ab.DeliverResponse_Status:
			logger.Debugf("Received deliver response status from ordering service: %s", t.Status)
			if t.Status != common.Status_SUCCESS {
				errs <- status.New(status.OrdererServerStatus, int32(t.Status), "error status from ordering service", nil)
			}
			return
		case *ab.DeliverResponse_Block:
			select {
			case responses <- t.Block:
			case <-ctx.Done():
				return
			}
		default:
			logger.Infof("unknown response type from ordering service %T", t)
		}
	}
}
