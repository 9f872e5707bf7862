/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package chain is the entry point of the client. A Chain resolves the
// configured signing identity, assembles the configured channel and exposes
// channel administration, chaincode lifecycle, invocation, query and block
// event operations on it.
//
// Basic Flow:
//  1. Load a config.Config
//  2. Create the chain with New
//  3. Create and join the channel, install and instantiate chaincode
//  4. Invoke and query chaincode, listen for blocks
//  5. Close the chain
package chain

import (
	reqContext "context"
	"path/filepath"
	"time"

	"github.com/hyperledger/fabric-protos-go/common"
	pb "github.com/hyperledger/fabric-protos-go/peer"
	"github.com/pkg/errors"

	chclient "github.com/fcw-sdk/fabric-chain/pkg/client/channel"
	"github.com/fcw-sdk/fabric-chain/pkg/common/logging"
	"github.com/fcw-sdk/fabric-chain/pkg/common/metrics"
	"github.com/fcw-sdk/fabric-chain/pkg/core/config"
	fcwerrors "github.com/fcw-sdk/fabric-chain/pkg/errors"
	"github.com/fcw-sdk/fabric-chain/pkg/fab"
	"github.com/fcw-sdk/fabric-chain/pkg/fab/ccpackager/gopackager"
	fabchannel "github.com/fcw-sdk/fabric-chain/pkg/fab/channel"
	"github.com/fcw-sdk/fabric-chain/pkg/fab/events"
	"github.com/fcw-sdk/fabric-chain/pkg/fab/resource"
	"github.com/fcw-sdk/fabric-chain/pkg/msp"
)

var logger = logging.NewLogger("fcw/chain")

// Chain is a client bound to one identity and one channel
type Chain struct {
	timeouts config.Timeouts
	goPath   string

	identity *msp.Identity
	channel  *fabchannel.Channel
	client   *chclient.Client
	events   *events.Service
}

type options struct {
	enroller        msp.Enroller
	keyImporter     msp.KeyImporter
	metricsProvider metrics.Provider
	goPath          string
	eventBufferSize int
}

// Option configures a Chain
type Option func(*options) error

// WithEnroller replaces the CA client built from caUrl
func WithEnroller(enroller msp.Enroller) Option {
	return func(o *options) error {
		if enroller == nil {
			return errors.New("enroller is nil")
		}
		o.enroller = enroller
		return nil
	}
}

// WithKeyImporter overrides the parser of imported private keys
func WithKeyImporter(importer msp.KeyImporter) Option {
	return func(o *options) error {
		if importer == nil {
			return errors.New("key importer is nil")
		}
		o.keyImporter = importer
		return nil
	}
}

// WithMetricsProvider records channel client metrics with the provider
func WithMetricsProvider(p metrics.Provider) Option {
	return func(o *options) error {
		o.metricsProvider = p
		return nil
	}
}

// WithGoPath sets the GOPATH relative chaincode paths are resolved against
func WithGoPath(goPath string) Option {
	return func(o *options) error {
		o.goPath = goPath
		return nil
	}
}

// WithEventBufferSize sets the per registration block buffer
func WithEventBufferSize(size int) Option {
	return func(o *options) error {
		if size <= 0 {
			return errors.Errorf("invalid event buffer size %d", size)
		}
		o.eventBufferSize = size
		return nil
	}
}

// New resolves the configured identity and assembles the configured channel.
// No connection is opened before the first request.
func New(ctx reqContext.Context, cfg *config.Config, opts ...Option) (*Chain, error) {
	const op = "New"

	if cfg == nil {
		return nil, fcwerrors.New(fcwerrors.ConfigurationError, op, "config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, fcwerrors.E(fcwerrors.ConfigurationError, op, err)
		}
	}

	c := &Chain{
		timeouts: cfg.Timeouts.WithDefaults(),
		goPath:   o.goPath,
	}

	identities, err := newIdentityProvider(cfg, c.timeouts, o)
	if err != nil {
		return nil, err
	}

	enrollment, err := enrollmentFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	resolveCtx, cancel := reqContext.WithTimeout(ctx, c.timeouts.CARequest)
	defer cancel()
	if c.identity, err = identities.ResolveIdentity(resolveCtx, enrollment); err != nil {
		return nil, err
	}

	c.channel, err = fabchannel.Assemble(ctx, c.identity, fabchannel.AssembleOptions{
		ChannelID:   cfg.ChannelID,
		MSPID:       cfg.MSPID,
		Orderer:     cfg.Orderer,
		Peers:       cfg.Peers,
		DialTimeout: c.timeouts.Dial,
	})
	if err != nil {
		return nil, err
	}

	if c.client, err = chclient.New(c.channel, chclient.WithMetrics(o.metricsProvider)); err != nil {
		c.closeChannel()
		return nil, err
	}

	eventOpts := []events.Opt{events.WithRegistrationTimeout(c.timeouts.EventReg)}
	if o.eventBufferSize > 0 {
		eventOpts = append(eventOpts, events.WithBufferSize(o.eventBufferSize))
	}
	if c.events, err = c.channel.EventService(eventOpts...); err != nil {
		c.closeChannel()
		return nil, err
	}

	logger.Infof("chain %s ready for %s@%s with %d peers", cfg.ChannelID, c.identity.Identifier(), cfg.MSPID, len(cfg.Peers))
	return c, nil
}

func newIdentityProvider(cfg *config.Config, timeouts config.Timeouts, o options) (*msp.IdentityProvider, error) {
	keyStore, err := msp.NewFileKeyStore(cfg.KeyStorePath, cfg.UUID)
	if err != nil {
		return nil, err
	}
	userStore, err := msp.NewCertFileUserStore(cfg.KeyStorePath, cfg.UUID)
	if err != nil {
		return nil, err
	}

	var providerOpts []msp.Option
	enroller := o.enroller
	if enroller == nil && cfg.UsesCA() {
		caClient, err := msp.NewCAClient(cfg.CAURL, msp.WithHTTPTimeout(timeouts.CARequest))
		if err != nil {
			return nil, err
		}
		enroller = caClient
	}
	if enroller != nil {
		providerOpts = append(providerOpts, msp.WithEnroller(enroller))
	}
	if o.keyImporter != nil {
		providerOpts = append(providerOpts, msp.WithKeyImporter(o.keyImporter))
	}
	return msp.NewIdentityProvider(cfg.UUID, cfg.MSPID, keyStore, userStore, providerOpts...)
}

func enrollmentFromConfig(cfg *config.Config) (msp.Enrollment, error) {
	e := msp.Enrollment{EnrollmentID: cfg.Enrollment.EnrollmentID}
	if cfg.UsesCA() {
		e.EnrollmentSecret = cfg.Enrollment.EnrollmentSecret
		e.OU = cfg.Enrollment.OU
		return e, nil
	}

	key, cert, err := cfg.Enrollment.LoadMaterial()
	if err != nil {
		return e, err
	}
	e.Key = key
	e.Cert = cert
	return e, nil
}

// Identity returns the signing identity of the chain
func (c *Chain) Identity() *msp.Identity {
	return c.identity
}

// Channel returns the assembled channel
func (c *Chain) Channel() *fabchannel.Channel {
	return c.channel
}

// Client returns the channel client used for invocations and queries
func (c *Chain) Client() *chclient.Client {
	return c.client
}

// CreateChannel submits the signed channel configuration transaction to the
// orderer. It returns once the orderer accepted it.
func (c *Chain) CreateChannel(ctx reqContext.Context, name string, envelope []byte) (*fab.TransactionResponse, error) {
	ctx, cancel := reqContext.WithTimeout(ctx, c.timeouts.OrdererResponse)
	defer cancel()

	resp, err := resource.CreateChannel(ctx, name, envelope, c.channel.Orderer())
	if err != nil {
		return nil, err
	}
	logger.Infof("channel %s created", name)
	return resp, nil
}

// JoinChannel fetches the genesis block of the configured channel from the
// orderer and asks every peer to join it.
func (c *Chain) JoinChannel(ctx reqContext.Context) error {
	ctx, cancel := reqContext.WithTimeout(ctx, c.timeouts.OrdererResponse+c.timeouts.PeerResponse)
	defer cancel()

	genesis, err := resource.GenesisBlockFromOrderer(ctx, c.channel.Name(), c.identity, c.channel.Orderer())
	if err != nil {
		return err
	}
	if err := resource.JoinChannel(ctx, c.identity, genesis, c.channel.Targets()); err != nil {
		return err
	}
	logger.Infof("peers joined channel %s", c.channel.Name())
	return nil
}

// InstallRequest describes Go chaincode to install
type InstallRequest struct {
	// Name defaults to the last element of Path
	Name string
	// Path is relative to the GOPATH src directory, or absolute
	Path    string
	Version string
}

// InstallChaincode packages the chaincode and installs it on every peer
func (c *Chain) InstallChaincode(ctx reqContext.Context, req InstallRequest) ([]*fab.TransactionProposalResponse, error) {
	const op = "InstallChaincode"

	if req.Path == "" || req.Version == "" {
		return nil, fcwerrors.New(fcwerrors.ConfigurationError, op, "chaincode path and version are required")
	}
	ccPackage, err := gopackager.NewCCPackage(req.Path, c.goPath)
	if err != nil {
		return nil, fcwerrors.E(fcwerrors.ConfigurationError, op, err)
	}

	ctx, cancel := reqContext.WithTimeout(ctx, c.timeouts.PeerResponse)
	defer cancel()

	name := chaincodeName(req.Name, req.Path)
	responses, txnID, err := resource.InstallChaincode(ctx, c.identity, resource.InstallChaincodeRequest{
		Name:    name,
		Path:    gopackager.PackagePath(req.Path),
		Version: req.Version,
		Package: ccPackage,
	}, c.channel.Targets())
	if err != nil {
		return nil, err
	}
	logger.Infof("chaincode %s:%s installed on %d peers [txn %s]", name, req.Version, len(responses), txnID)
	return responses, nil
}

// InstantiateRequest describes an installed chaincode to instantiate
type InstantiateRequest struct {
	// Chain defaults to the configured channel
	Chain string
	// Name defaults to the last element of Path
	Name    string
	Path    string
	Version string
	// Fcn defaults to init
	Fcn  string
	Args []string
	// Policy is a marshalled endorsement policy, the peer's default when empty
	Policy []byte
}

// InstantiateChaincode endorses the deploy proposal on every peer and submits
// it to the orderer.
func (c *Chain) InstantiateChaincode(ctx reqContext.Context, req InstantiateRequest) (fab.TransactionID, error) {
	const op = "InstantiateChaincode"

	if req.Path == "" || req.Version == "" {
		return "", fcwerrors.New(fcwerrors.ConfigurationError, op, "chaincode path and version are required")
	}
	channelID := req.Chain
	if channelID == "" {
		channelID = c.channel.Name()
	}

	ctx, cancel := reqContext.WithTimeout(ctx, c.timeouts.PeerResponse+c.timeouts.OrdererResponse)
	defer cancel()

	name := chaincodeName(req.Name, req.Path)
	txnID, err := resource.InstantiateChaincode(ctx, c.identity, channelID, resource.InstantiateChaincodeRequest{
		Name:    name,
		Path:    gopackager.PackagePath(req.Path),
		Version: req.Version,
		Fcn:     req.Fcn,
		Args:    toBytes(req.Args),
		Policy:  req.Policy,
	}, c.channel.Targets(), c.channel.Orderer())
	if err != nil {
		return txnID, err
	}
	logger.Infof("chaincode %s:%s instantiated on %s [txn %s]", name, req.Version, channelID, txnID)
	return txnID, nil
}

// InvokeRequest names a chaincode function and its string arguments
type InvokeRequest struct {
	Name string
	Fcn  string
	Args []string
}

func (r InvokeRequest) request() chclient.Request {
	return chclient.Request{ChaincodeID: r.Name, Fcn: r.Fcn, Args: toBytes(r.Args)}
}

// InvokeChaincode executes a transaction and returns once the orderer accepted it
func (c *Chain) InvokeChaincode(ctx reqContext.Context, req InvokeRequest, opts ...chclient.RequestOption) (chclient.Response, error) {
	opts = append([]chclient.RequestOption{chclient.WithTimeout(c.timeouts.PeerResponse + c.timeouts.OrdererResponse)}, opts...)
	return c.client.Execute(ctx, req.request(), opts...)
}

// QueryByChaincode evaluates a chaincode function without submitting a transaction
func (c *Chain) QueryByChaincode(ctx reqContext.Context, req InvokeRequest, opts ...chclient.RequestOption) ([][]byte, error) {
	opts = append([]chclient.RequestOption{chclient.WithTimeout(c.timeouts.PeerResponse)}, opts...)
	return c.client.Query(ctx, req.request(), opts...)
}

// QueryInstalledChaincodes returns the chaincodes installed on the peer at peerIndex
func (c *Chain) QueryInstalledChaincodes(ctx reqContext.Context, peerIndex int) (*pb.ChaincodeQueryResponse, error) {
	ctx, cancel := reqContext.WithTimeout(ctx, c.timeouts.PeerResponse)
	defer cancel()
	return c.client.QueryInstalledChaincodes(ctx, peerIndex)
}

// QueryInstantiatedChaincodes returns the chaincodes instantiated on the channel
func (c *Chain) QueryInstantiatedChaincodes(ctx reqContext.Context) (*pb.ChaincodeQueryResponse, error) {
	ctx, cancel := reqContext.WithTimeout(ctx, c.timeouts.PeerResponse)
	defer cancel()
	return c.client.QueryInstantiatedChaincodes(ctx)
}

// QueryChannels returns the channels the peer at peerIndex has joined
func (c *Chain) QueryChannels(ctx reqContext.Context, peerIndex int) (*pb.ChannelQueryResponse, error) {
	ctx, cancel := reqContext.WithTimeout(ctx, c.timeouts.PeerResponse)
	defer cancel()
	return c.client.QueryChannels(ctx, peerIndex)
}

// RegisterBlockEvent calls handler for every block committed from now on, one
// block at a time, until the registration is closed, ctx is cancelled or the
// stream fails. The peer must accept the registration within the eventReg
// timeout.
func (c *Chain) RegisterBlockEvent(ctx reqContext.Context, handler func(*common.Block)) (*events.Registration, error) {
	if handler == nil {
		return nil, fcwerrors.New(fcwerrors.ConfigurationError, "RegisterBlockEvent", "block handler is required")
	}
	reg, blocks, err := c.events.RegisterBlockEvent(ctx)
	if err != nil {
		return nil, err
	}
	go func() {
		for block := range blocks {
			handler(block)
		}
		if err := reg.Err(); err != nil {
			logger.Warnf("block event registration on %s ended: %s", c.channel.Name(), err)
		}
	}()
	return reg, nil
}

// ExtractCcExecInfo decodes the chaincode invocations carried by a block
func (c *Chain) ExtractCcExecInfo(block *common.Block) events.CcExecInfo {
	return events.ExtractCcExecInfo(block)
}

// WaitForSettle pauses for d, e.g. between creating and joining a channel
// while the orderer propagates the new channel.
func WaitForSettle(ctx reqContext.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the chain's connections
func (c *Chain) Close() error {
	return c.closeChannel()
}

func (c *Chain) closeChannel() error {
	if err := c.channel.Close(); err != nil {
		logger.Warnf("closing channel %s: %s", c.channel.Name(), err)
		return err
	}
	return nil
}

func chaincodeName(name, ccPath string) string {
	if name != "" {
		return name
	}
	return filepath.Base(ccPath)
}

func toBytes(args []string) [][]byte {
	b := make([][]byte, len(args))
	for i, a := range args {
		b[i] = []byte(a)
	}
	return b
}
