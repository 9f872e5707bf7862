/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package channel binds a signing identity, an orderer and an ordered set of
// peers into a channel that transactions are endorsed and submitted on.
package channel

import (
	reqContext "context"
	"crypto/x509"
	"sync"
	"time"

	"github.com/golang/protobuf/proto"
	mspproto "github.com/hyperledger/fabric-protos-go/msp"
	"github.com/spf13/cast"
	"go.uber.org/multierr"

	"github.com/fcw-sdk/fabric-chain/pkg/common/logging"
	"github.com/fcw-sdk/fabric-chain/pkg/core/config"
	"github.com/fcw-sdk/fabric-chain/pkg/core/config/comm"
	"github.com/fcw-sdk/fabric-chain/pkg/core/config/endpoint"
	fcwerrors "github.com/fcw-sdk/fabric-chain/pkg/errors"
	"github.com/fcw-sdk/fabric-chain/pkg/fab"
	"github.com/fcw-sdk/fabric-chain/pkg/fab/events"
	"github.com/fcw-sdk/fabric-chain/pkg/fab/orderer"
	"github.com/fcw-sdk/fabric-chain/pkg/fab/peer"
)

var logger = logging.NewLogger("fcw/fab")

// AssembleOptions describes the channel to assemble
type AssembleOptions struct {
	ChannelID string
	// MSPID is the membership service provider the signing identity must belong to
	MSPID   string
	Orderer config.EndpointConfig
	Peers   []config.EndpointConfig
	// DialTimeout is the minimum connect timeout of every endpoint
	DialTimeout time.Duration
}

// Channel is an orderer and an ordered list of peers. The first peer is the
// primary peer unless changed with SetPrimaryPeer.
type Channel struct {
	name     string
	mspID    string
	identity fab.SigningIdentity
	orderer  *orderer.Orderer
	peers    []*peer.Peer

	mtx     sync.RWMutex
	primary int
}

// Assemble validates the options and identity and creates the channel's
// endpoints. TLS material for every endpoint is loaded before any endpoint is
// created; connections are established on first use.
func Assemble(ctx reqContext.Context, identity fab.SigningIdentity, opts AssembleOptions) (*Channel, error) {
	const op = "Assemble"

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.ChannelID == "" {
		return nil, fcwerrors.New(fcwerrors.ConfigurationError, op, "channel ID is required")
	}
	if opts.Orderer.URL == "" {
		return nil, fcwerrors.New(fcwerrors.ConfigurationError, op, "orderer url is required")
	}
	if len(opts.Peers) == 0 {
		return nil, fcwerrors.New(fcwerrors.ConfigurationError, op, "at least one peer is required")
	}
	for i, p := range opts.Peers {
		if p.URL == "" {
			return nil, fcwerrors.New(fcwerrors.ConfigurationError, op, "peer[%d] url is required", i)
		}
	}
	if err := checkIdentity(identity, opts.MSPID); err != nil {
		return nil, err
	}

	ordererCert, err := loadTLSCert(opts.Orderer)
	if err != nil {
		return nil, err
	}
	peerCerts := make([]*x509.Certificate, len(opts.Peers))
	for i, p := range opts.Peers {
		if peerCerts[i], err = loadTLSCert(p); err != nil {
			return nil, err
		}
	}

	o, err := orderer.New(opts.Orderer, orderer.WithTLSCert(ordererCert), orderer.WithDialTimeout(opts.DialTimeout))
	if err != nil {
		return nil, fcwerrors.E(fcwerrors.ConfigurationError, op, err)
	}

	c := &Channel{
		name:     opts.ChannelID,
		mspID:    opts.MSPID,
		identity: identity,
		orderer:  o,
	}
	for i, p := range opts.Peers {
		pr, err := peer.New(p, peer.WithTLSCert(peerCerts[i]), peer.WithDialTimeout(opts.DialTimeout))
		if err != nil {
			return nil, fcwerrors.E(fcwerrors.ConfigurationError, op, err)
		}
		c.peers = append(c.peers, pr)
	}

	logger.Debugf("assembled channel %s with orderer %s and %d peers", c.name, o.URL(), len(c.peers))
	return c, nil
}

func checkIdentity(identity fab.SigningIdentity, mspID string) error {
	const op = "Assemble"

	if identity == nil {
		return fcwerrors.New(fcwerrors.ConfigurationError, op, "signing identity is required")
	}
	if identity.MSPID() != mspID {
		return fcwerrors.New(fcwerrors.ConfigurationError, op,
			"identity belongs to MSP '%s', channel expects '%s'", identity.MSPID(), mspID)
	}

	raw, err := identity.Serialize()
	if err != nil {
		return fcwerrors.Wrap(fcwerrors.ConfigurationError, op, err, "serializing identity failed")
	}
	sid := &mspproto.SerializedIdentity{}
	if err := proto.Unmarshal(raw, sid); err != nil {
		return fcwerrors.Wrap(fcwerrors.ConfigurationError, op, err, "identity is not a serialized identity")
	}
	if len(sid.IdBytes) == 0 {
		return fcwerrors.New(fcwerrors.ConfigurationError, op, "identity '%s' has no certificate", identity.Identifier())
	}
	return nil
}

// loadTLSCert returns nil for plaintext endpoints
func loadTLSCert(ep config.EndpointConfig) (*x509.Certificate, error) {
	if ep.PemPath == "" {
		if endpoint.AttemptSecured(ep.URL, cast.ToBool(ep.GRPCOptions["allow-insecure"])) {
			logger.Warnf("no pemPath for %s, the endpoint will be contacted in plaintext", ep.URL)
		}
		return nil, nil
	}
	return comm.LoadTLSCert(ep.PemPath)
}

// Name returns the channel ID
func (c *Channel) Name() string {
	return c.name
}

// MSPID returns the MSP ID the channel's identity belongs to
func (c *Channel) MSPID() string {
	return c.mspID
}

// Identity returns the signing identity bound to the channel
func (c *Channel) Identity() fab.SigningIdentity {
	return c.identity
}

// Orderer returns the channel's orderer
func (c *Channel) Orderer() fab.Orderer {
	return c.orderer
}

// Peers returns the channel's peers in insertion order
func (c *Channel) Peers() []*peer.Peer {
	return append([]*peer.Peer(nil), c.peers...)
}

// Peer returns the peer at index i
func (c *Channel) Peer(i int) (*peer.Peer, error) {
	if i < 0 || i >= len(c.peers) {
		return nil, fcwerrors.New(fcwerrors.ConfigurationError, "Peer", "peer index %d out of range [0,%d)", i, len(c.peers))
	}
	return c.peers[i], nil
}

// PrimaryPeer returns the peer queries and event subscriptions go to
func (c *Channel) PrimaryPeer() *peer.Peer {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.peers[c.primary]
}

// SetPrimaryPeer makes the peer at index i the primary peer
func (c *Channel) SetPrimaryPeer(i int) error {
	if i < 0 || i >= len(c.peers) {
		return fcwerrors.New(fcwerrors.ConfigurationError, "SetPrimaryPeer", "peer index %d out of range [0,%d)", i, len(c.peers))
	}
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.primary = i
	return nil
}

// Target returns the peer at index i as an endorsement target
func (c *Channel) Target(i int) (fab.ProposalProcessor, error) {
	p, err := c.Peer(i)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// PrimaryTarget returns the primary peer as an endorsement target
func (c *Channel) PrimaryTarget() fab.ProposalProcessor {
	return c.PrimaryPeer()
}

// Targets returns every peer as an endorsement target
func (c *Channel) Targets() []fab.ProposalProcessor {
	targets := make([]fab.ProposalProcessor, len(c.peers))
	for i, p := range c.peers {
		targets[i] = p
	}
	return targets
}

// EventService returns a block event service reading from the primary peer
func (c *Channel) EventService(opts ...events.Opt) (*events.Service, error) {
	return events.New(c.name, c.identity, c.PrimaryPeer(), opts...)
}

// Close releases every endpoint connection
func (c *Channel) Close() error {
	err := c.orderer.Close()
	for _, p := range c.peers {
		err = multierr.Append(err, p.Close())
	}
	return err
}
