/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package events delivers committed blocks from a peer and decodes the
// chaincode invocations they carry.
package events

import (
	reqContext "context"
	"io"
	"sync"
	"time"

	"github.com/hyperledger/fabric-protos-go/common"
	pb "github.com/hyperledger/fabric-protos-go/peer"
	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/fcw-sdk/fabric-chain/internal/protoutil"
	"github.com/fcw-sdk/fabric-chain/pkg/common/errors/status"
	"github.com/fcw-sdk/fabric-chain/pkg/common/logging"
	"github.com/fcw-sdk/fabric-chain/pkg/fab/events/seek"
)

var logger = logging.NewLogger("fcw/events")

const (
	defaultBufferSize = 100
	defaultRegTimeout = 15 * time.Second
)

// BlockSource opens deliver streams on a peer
type BlockSource interface {
	EventURL() string
	Deliver(ctx reqContext.Context, seek *common.Envelope) (pb.Deliver_DeliverClient, error)
}

// Service registers for block events on a channel
type Service struct {
	channelID  string
	signer     protoutil.Signer
	source     BlockSource
	bufferSize int
	regTimeout time.Duration
}

// Opt configures the Service
type Opt func(*Service)

// WithBufferSize sets the capacity of the event channel of each registration
func WithBufferSize(size int) Opt {
	return func(s *Service) {
		if size > 0 {
			s.bufferSize = size
		}
	}
}

// WithRegistrationTimeout bounds the wait for the peer to accept a registration
func WithRegistrationTimeout(timeout time.Duration) Opt {
	return func(s *Service) {
		if timeout > 0 {
			s.regTimeout = timeout
		}
	}
}

// New returns an event service reading blocks of channelID from source
func New(channelID string, signer protoutil.Signer, source BlockSource, opts ...Opt) (*Service, error) {
	if channelID == "" {
		return nil, errors.New("channel ID is required")
	}
	if signer == nil || source == nil {
		return nil, errors.New("signer and event source are required")
	}
	s := &Service{channelID: channelID, signer: signer, source: source, bufferSize: defaultBufferSize, regTimeout: defaultRegTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Registration is a subscription to block events
type Registration struct {
	cancel reqContext.CancelFunc
	done   chan struct{}

	once sync.Once
	mtx  sync.RWMutex
	err  error
}

// Close stops delivery and waits until the event channel is closed
func (r *Registration) Close() {
	r.once.Do(r.cancel)
	<-r.done
}

// Done is closed once delivery has stopped
func (r *Registration) Done() <-chan struct{} {
	return r.done
}

// Err returns the reason the stream ended, or nil if it was closed by the client
func (r *Registration) Err() error {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.err
}

func (r *Registration) setErr(err error) {
	r.mtx.Lock()
	r.err = err
	r.mtx.Unlock()
}

// RegisterBlockEvent subscribes to blocks committed from now on. The peer
// answers a newest seek with its current ledger tip first; receiving it
// completes the registration and the block itself is dropped. Blocks are
// delivered once each, in height order, on the returned channel. The channel
// is closed when the registration is closed or the stream fails; Err reports
// the failure.
func (s *Service) RegisterBlockEvent(ctx reqContext.Context) (*Registration, <-chan *common.Block, error) {
	env, err := seek.NewEnvelope(s.channelID, s.signer, seek.InfoNewest())
	if err != nil {
		return nil, nil, errors.WithMessage(err, "creating seek request failed")
	}

	streamCtx, cancel := reqContext.WithCancel(reqContext.Background())
	stopOnParent := propagateCancel(ctx, cancel)

	stream, err := s.source.Deliver(streamCtx, env)
	if err != nil {
		stopOnParent()
		cancel()
		return nil, nil, errors.WithMessagef(err, "error registering for block events on [%s]", s.source.EventURL())
	}

	reg := &Registration{cancel: cancel, done: make(chan struct{})}
	eventch := make(chan *common.Block, s.bufferSize)
	registered := make(chan struct{})

	go func() {
		defer close(reg.done)
		defer close(eventch)
		defer stopOnParent()
		reg.setErr(receive(streamCtx, stream, eventch, func() { close(registered) }))
	}()

	timer := time.NewTimer(s.regTimeout)
	defer timer.Stop()

	select {
	case <-registered:
	case <-reg.done:
		err := reg.Err()
		if err == nil {
			err = errors.New("event stream closed before registration completed")
		}
		return nil, nil, errors.WithMessagef(err, "error registering for block events on [%s]", s.source.EventURL())
	case <-timer.C:
		reg.Close()
		return nil, nil, status.New(status.EventServerStatus, status.Timeout.ToInt32(),
			"timed out registering for block events", []interface{}{s.source.EventURL()})
	case <-ctx.Done():
		reg.Close()
		return nil, nil, errors.Wrapf(ctx.Err(), "registering for block events on [%s] aborted", s.source.EventURL())
	}

	logger.Debugf("Registered for block events on [%s]", s.source.EventURL())
	return reg, eventch, nil
}

// Unregister stops the registration
func (s *Service) Unregister(reg *Registration) {
	if reg != nil {
		reg.Close()
	}
}

// propagateCancel cancels the stream when the registering context ends. Only
// cancellation is inherited, not the deadline of the registration call.
func propagateCancel(ctx reqContext.Context, cancel reqContext.CancelFunc) func() {
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			if ctx.Err() == reqContext.Canceled {
				cancel()
			}
		case <-stop:
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(stop) }) }
}

// receive forwards blocks until the stream ends. The first block is the
// ledger tip; registered is called when it arrives.
func receive(ctx reqContext.Context, stream pb.Deliver_DeliverClient, eventch chan<- *common.Block, registered func()) error {
	tipSeen := false
	for {
		resp, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if err == io.EOF {
				return errors.New("event stream closed by peer")
			}
			if rpcStatus, ok := grpcstatus.FromError(err); ok {
				if rpcStatus.Code() == codes.Canceled && ctx.Err() != nil {
					return nil
				}
				err = status.NewFromGRPCStatus(rpcStatus)
			}
			logger.Warnf("Block event stream failed: %s", err)
			return errors.Wrap(err, "event stream failed")
		}

		switch t := resp.Type.(type) {
		case *pb.DeliverResponse_Block:
			if !tipSeen {
				tipSeen = true
				logger.Debugf("Skipping ledger tip block [%d]", t.Block.GetHeader().GetNumber())
				registered()
				continue
			}
			logger.Debugf("Received block [%d]", t.Block.GetHeader().GetNumber())
			select {
			case eventch <- t.Block:
			case <-ctx.Done():
				return nil
			}
		case *pb.DeliverResponse_Status:
			if t.Status == common.Status_SUCCESS {
				return errors.New("event stream ended by peer")
			}
			return status.New(status.EventServerStatus, int32(t.Status), "error status from event server", nil)
		default:
			logger.Debugf("Ignoring deliver response of type %T", t)
		}
	}
}
