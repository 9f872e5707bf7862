/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package chain

import (
	reqContext "context"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/hyperledger/fabric-protos-go/common"
	pb "github.com/hyperledger/fabric-protos-go/peer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcw-sdk/fabric-chain/internal/protoutil"
	"github.com/fcw-sdk/fabric-chain/internal/testutil"
	chclient "github.com/fcw-sdk/fabric-chain/pkg/client/channel"
	"github.com/fcw-sdk/fabric-chain/pkg/common/errors/status"
	"github.com/fcw-sdk/fabric-chain/pkg/core/config"
	fcwerrors "github.com/fcw-sdk/fabric-chain/pkg/errors"
	"github.com/fcw-sdk/fabric-chain/pkg/fab/mocks"
	"github.com/fcw-sdk/fabric-chain/pkg/msp/test/mockmsp"
)

const (
	testAddress = "127.0.0.1:0"
	testChannel = "mychannel"
	testMSP     = "Org1MSP"
)

type network struct {
	orderer   *mocks.MockBroadcastServer
	endorsers []*mocks.MockEndorserServer
	deliver   *mocks.MockDeliverServer
	cfg       *config.Config
}

// newNetwork starts an orderer, two endorsing peers and a deliver service for
// the first peer, and returns a config importing a generated identity. The
// servers are configured by setup before they start.
func newNetwork(t *testing.T, setup ...func(*network)) *network {
	n := &network{
		orderer:   &mocks.MockBroadcastServer{},
		endorsers: []*mocks.MockEndorserServer{{Payload: []byte("ok")}, {Payload: []byte("ok")}},
		deliver:   mocks.NewMockDeliverServer(),
	}
	for _, f := range setup {
		f(n)
	}
	ordererAddr := n.orderer.Start(testAddress)
	t.Cleanup(n.orderer.Stop)
	deliverAddr := n.deliver.Start(testAddress)
	t.Cleanup(n.deliver.Stop)

	var peers []config.EndpointConfig
	for _, e := range n.endorsers {
		addr := e.Start(testAddress)
		t.Cleanup(e.Stop)
		peers = append(peers, config.EndpointConfig{URL: "grpc://" + addr})
	}
	peers[0].EventURL = "grpc://" + deliverAddr

	ca, err := testutil.NewCA("ca.org1.example.com")
	require.NoError(t, err)
	kp, err := ca.NewKeyPair("user1")
	require.NoError(t, err)

	n.cfg = &config.Config{
		UUID:         "client1",
		ChannelID:    testChannel,
		MSPID:        testMSP,
		KeyStorePath: t.TempDir(),
		Enrollment: config.EnrollmentConfig{
			EnrollmentID: "user1",
			Key:          string(kp.KeyPEM),
			Cert:         string(kp.CertPEM),
		},
		Orderer: config.EndpointConfig{URL: "grpc://" + ordererAddr},
		Peers:   peers,
		Timeouts: config.Timeouts{
			PeerResponse:    5 * time.Second,
			OrdererResponse: 5 * time.Second,
		},
	}
	return n
}

func newTestChain(t *testing.T, n *network, opts ...Option) *Chain {
	ctx, cancel := newTestContext()
	defer cancel()

	c, err := New(ctx, n.cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func newTestContext() (reqContext.Context, reqContext.CancelFunc) {
	return reqContext.WithTimeout(reqContext.Background(), 10*time.Second)
}

func invocationArgs(t *testing.T, signed *pb.SignedProposal) (string, [][]byte) {
	cis := mocks.InvocationSpec(signed)
	require.NotNil(t, cis)
	return cis.ChaincodeSpec.ChaincodeId.Name, cis.ChaincodeSpec.Input.Args
}

func TestNewInvalidConfig(t *testing.T) {
	ctx, cancel := newTestContext()
	defer cancel()

	_, err := New(ctx, nil)
	assert.True(t, fcwerrors.IsKind(err, fcwerrors.ConfigurationError))

	n := newNetwork(t)
	n.cfg.ChannelID = ""
	_, err = New(ctx, n.cfg)
	assert.True(t, fcwerrors.IsKind(err, fcwerrors.ConfigurationError))

	n = newNetwork(t)
	_, err = New(ctx, n.cfg, WithEventBufferSize(0))
	assert.True(t, fcwerrors.IsKind(err, fcwerrors.ConfigurationError))

	n.cfg.Enrollment.Cert = ""
	_, err = New(ctx, n.cfg)
	assert.True(t, fcwerrors.IsKind(err, fcwerrors.ConfigurationError))
}

func TestNewImportIdentity(t *testing.T) {
	n := newNetwork(t)
	c := newTestChain(t, n)

	assert.Equal(t, "user1", c.Identity().Identifier())
	assert.Equal(t, testMSP, c.Identity().MSPID())
	assert.Equal(t, []byte(n.cfg.Enrollment.Cert), c.Identity().EnrollmentCertificate())
	assert.Equal(t, testChannel, c.Channel().Name())
	assert.Len(t, c.Channel().Peers(), 2)
	assert.NotNil(t, c.Client())
}

func TestNewEnrollWithCA(t *testing.T) {
	caServer, err := mockmsp.NewMockFabricCAServer(map[string]string{"admin": "adminpw"})
	require.NoError(t, err)
	caURL := caServer.Start()
	defer caServer.Close()

	n := newNetwork(t)
	n.cfg.CAURL = caURL
	n.cfg.Enrollment = config.EnrollmentConfig{EnrollmentID: "admin", EnrollmentSecret: "adminpw"}

	c := newTestChain(t, n)
	assert.Equal(t, "admin", c.Identity().Identifier())
	assert.Equal(t, 1, caServer.Enrollments())

	// the persisted identity is reused by the next instance
	again := newTestChain(t, n)
	assert.Equal(t, c.Identity().EnrollmentCertificate(), again.Identity().EnrollmentCertificate())
	assert.Equal(t, 1, caServer.Enrollments())
}

func TestNewEnrollFailure(t *testing.T) {
	caServer, err := mockmsp.NewMockFabricCAServer(map[string]string{"admin": "adminpw"})
	require.NoError(t, err)
	caURL := caServer.Start()
	defer caServer.Close()

	n := newNetwork(t)
	n.cfg.CAURL = caURL
	n.cfg.Enrollment = config.EnrollmentConfig{EnrollmentID: "admin", EnrollmentSecret: "wrong"}

	ctx, cancel := newTestContext()
	defer cancel()

	_, err = New(ctx, n.cfg)
	require.Error(t, err)
	assert.True(t, fcwerrors.IsKind(err, fcwerrors.EnrollmentError), err.Error())
}

func TestInvokeAndQuery(t *testing.T) {
	n := newNetwork(t)
	c := newTestChain(t, n)

	ctx, cancel := newTestContext()
	defer cancel()

	resp, err := c.InvokeChaincode(ctx, InvokeRequest{Name: "fcw_example", Fcn: "write", Args: []string{"ab", `{"a":2}`}})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.TransactionID)
	assert.Equal(t, []byte("ok"), resp.Payload)
	assert.Equal(t, pb.TxValidationCode_NOT_VALIDATED, resp.TxValidationCode)
	require.Len(t, n.orderer.Envelopes(), 1)

	for _, e := range n.endorsers {
		proposals := e.Proposals()
		require.Len(t, proposals, 1)
		name, args := invocationArgs(t, proposals[0])
		assert.Equal(t, "fcw_example", name)
		assert.Equal(t, [][]byte{[]byte("write"), []byte("ab"), []byte(`{"a":2}`)}, args)
	}

	payloads, err := c.QueryByChaincode(ctx, InvokeRequest{Name: "fcw_example", Fcn: "read", Args: []string{"ab"}})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("ok")}, payloads)
	assert.Len(t, n.endorsers[0].Proposals(), 2)
	assert.Len(t, n.endorsers[1].Proposals(), 1)

	payloads, err = c.QueryByChaincode(ctx, InvokeRequest{Name: "fcw_example", Fcn: "read", Args: []string{"ab"}}, chclient.WithAllPeers())
	require.NoError(t, err)
	assert.Len(t, payloads, 2)
	assert.Len(t, n.orderer.Envelopes(), 1)
}

func TestInvokeEndorsementMismatch(t *testing.T) {
	n := newNetwork(t, func(n *network) { n.endorsers[1].Payload = []byte("different") })
	c := newTestChain(t, n)

	ctx, cancel := newTestContext()
	defer cancel()

	_, err := c.InvokeChaincode(ctx, InvokeRequest{Name: "fcw_example", Fcn: "write", Args: []string{"ab", "1"}})
	require.Error(t, err)
	assert.True(t, fcwerrors.IsKind(err, fcwerrors.EndorsementMismatchError), err.Error())
	assert.Empty(t, n.orderer.Envelopes())
}

func TestCreateChannel(t *testing.T) {
	n := newNetwork(t)
	c := newTestChain(t, n)

	env, err := protoutil.CreateSignedEnvelope(common.HeaderType_CONFIG_UPDATE, "newchannel", c.Identity(), &common.ConfigUpdateEnvelope{})
	require.NoError(t, err)
	envBytes, err := proto.Marshal(env)
	require.NoError(t, err)

	ctx, cancel := newTestContext()
	defer cancel()

	resp, err := c.CreateChannel(ctx, "newchannel", envBytes)
	require.NoError(t, err)
	assert.Equal(t, common.Status_SUCCESS, resp.Status)
	require.Len(t, n.orderer.Envelopes(), 1)
	assert.Equal(t, env.Signature, n.orderer.Envelopes()[0].Signature)

	_, err = c.CreateChannel(ctx, "otherchannel", envBytes)
	assert.True(t, fcwerrors.IsKind(err, fcwerrors.ConfigurationError))
}

func TestJoinChannel(t *testing.T) {
	genesis := mocks.NewBlock(0, mocks.NewConfigEnvelope(testChannel, "genesis"))
	n := newNetwork(t, func(n *network) { n.orderer.Blocks = []*common.Block{genesis} })
	c := newTestChain(t, n)

	ctx, cancel := newTestContext()
	defer cancel()

	require.NoError(t, c.JoinChannel(ctx))
	require.Len(t, n.orderer.SeekRequests(), 1)

	genesisBytes, err := proto.Marshal(genesis)
	require.NoError(t, err)
	for _, e := range n.endorsers {
		proposals := e.Proposals()
		require.Len(t, proposals, 1)
		name, args := invocationArgs(t, proposals[0])
		assert.Equal(t, "cscc", name)
		require.Len(t, args, 2)
		assert.Equal(t, "JoinChain", string(args[0]))
		assert.Equal(t, genesisBytes, args[1])
	}
}

func TestJoinChannelRejected(t *testing.T) {
	n := newNetwork(t, func(n *network) { n.endorsers[1].Status = 500 })
	c := newTestChain(t, n)

	ctx, cancel := newTestContext()
	defer cancel()

	err := c.JoinChannel(ctx)
	require.Error(t, err)
	assert.True(t, fcwerrors.IsKind(err, fcwerrors.EndorsementError), err.Error())
}

func TestInstallChaincode(t *testing.T) {
	goPath, err := filepath.Abs(filepath.Join("..", "fab", "ccpackager", "gopackager", "testdata"))
	require.NoError(t, err)

	n := newNetwork(t)
	c := newTestChain(t, n, WithGoPath(goPath))

	ctx, cancel := newTestContext()
	defer cancel()

	responses, err := c.InstallChaincode(ctx, InstallRequest{Path: "fcw_example", Version: "v0"})
	require.NoError(t, err)
	assert.Len(t, responses, 2)

	for _, e := range n.endorsers {
		proposals := e.Proposals()
		require.Len(t, proposals, 1)
		name, args := invocationArgs(t, proposals[0])
		assert.Equal(t, "lscc", name)
		require.Len(t, args, 2)
		assert.Equal(t, "install", string(args[0]))

		cds := &pb.ChaincodeDeploymentSpec{}
		require.NoError(t, proto.Unmarshal(args[1], cds))
		assert.Equal(t, "fcw_example", cds.ChaincodeSpec.ChaincodeId.Name)
		assert.Equal(t, "v0", cds.ChaincodeSpec.ChaincodeId.Version)
		assert.NotEmpty(t, cds.CodePackage)
	}

	_, err = c.InstallChaincode(ctx, InstallRequest{Path: "missing_cc", Version: "v0"})
	assert.True(t, fcwerrors.IsKind(err, fcwerrors.ConfigurationError))
	_, err = c.InstallChaincode(ctx, InstallRequest{Path: "fcw_example"})
	assert.True(t, fcwerrors.IsKind(err, fcwerrors.ConfigurationError))
}

func TestInstantiateChaincode(t *testing.T) {
	n := newNetwork(t)
	c := newTestChain(t, n)

	ctx, cancel := newTestContext()
	defer cancel()

	txnID, err := c.InstantiateChaincode(ctx, InstantiateRequest{Name: "mycc", Path: "github.com/example/fcw_example", Version: "v0", Args: []string{"a", "1"}})
	require.NoError(t, err)
	assert.NotEmpty(t, txnID)
	require.Len(t, n.orderer.Envelopes(), 1)

	for _, e := range n.endorsers {
		proposals := e.Proposals()
		require.Len(t, proposals, 1)
		name, args := invocationArgs(t, proposals[0])
		assert.Equal(t, "lscc", name)
		require.True(t, len(args) >= 3)
		assert.Equal(t, "deploy", string(args[0]))
		assert.Equal(t, testChannel, string(args[1]))

		cds := &pb.ChaincodeDeploymentSpec{}
		require.NoError(t, proto.Unmarshal(args[2], cds))
		assert.Equal(t, "mycc", cds.ChaincodeSpec.ChaincodeId.Name)
		assert.Equal(t, [][]byte{[]byte("init"), []byte("a"), []byte("1")}, cds.ChaincodeSpec.Input.Args)
	}
}

func TestAdminQueries(t *testing.T) {
	installed, err := proto.Marshal(&pb.ChaincodeQueryResponse{Chaincodes: []*pb.ChaincodeInfo{{Name: "fcw_example", Version: "v0"}}})
	require.NoError(t, err)
	channels, err := proto.Marshal(&pb.ChannelQueryResponse{Channels: []*pb.ChannelInfo{{ChannelId: testChannel}}})
	require.NoError(t, err)
	n := newNetwork(t, func(n *network) {
		n.endorsers[0].Handler = func(signed *pb.SignedProposal, cis *pb.ChaincodeInvocationSpec) *pb.ProposalResponse {
			if string(cis.ChaincodeSpec.Input.Args[0]) == "GetChannels" {
				return mocks.NewProposalResponse(200, "", channels)
			}
			return mocks.NewProposalResponse(200, "", installed)
		}
	})
	c := newTestChain(t, n)

	ctx, cancel := newTestContext()
	defer cancel()

	resp, err := c.QueryInstalledChaincodes(ctx, 0)
	require.NoError(t, err)
	require.Len(t, resp.Chaincodes, 1)
	assert.Equal(t, "fcw_example", resp.Chaincodes[0].Name)

	resp, err = c.QueryInstantiatedChaincodes(ctx)
	require.NoError(t, err)
	require.Len(t, resp.Chaincodes, 1)

	chResp, err := c.QueryChannels(ctx, 0)
	require.NoError(t, err)
	require.Len(t, chResp.Channels, 1)
	assert.Equal(t, testChannel, chResp.Channels[0].ChannelId)

	_, err = c.QueryInstalledChaincodes(ctx, 5)
	assert.Error(t, err)
}

func TestRegisterBlockEvent(t *testing.T) {
	n := newNetwork(t)
	c := newTestChain(t, n)

	ctx, cancel := newTestContext()
	defer cancel()

	_, err := c.RegisterBlockEvent(ctx, nil)
	assert.True(t, fcwerrors.IsKind(err, fcwerrors.ConfigurationError))

	received := make(chan *common.Block, 10)
	reg, err := c.RegisterBlockEvent(ctx, func(block *common.Block) { received <- block })
	require.NoError(t, err)
	defer reg.Close()

	select {
	case <-n.deliver.Connected():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the seek request")
	}

	n.deliver.Blocks <- mocks.NewBlock(3,
		mocks.NewEndorserTransactionEnvelope(testChannel, mocks.Invocation{
			TxID:          "tx1",
			ChaincodeName: "fcw_example",
			Args:          [][]byte{[]byte("write"), []byte("ab"), []byte(`{"a":2}`)},
			Payload:       []byte("ok"),
		}),
		mocks.NewConfigEnvelope(testChannel, "tx2"),
	)

	var block *common.Block
	select {
	case block = <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for block")
	}
	assert.Equal(t, uint64(3), block.Header.Number)

	info := c.ExtractCcExecInfo(block)
	require.Len(t, info.Payloads, 1)
	inv := info.Payloads[0]
	assert.Equal(t, "tx1", inv.TxID)
	assert.Equal(t, "fcw_example", inv.ChaincodeName)
	assert.Equal(t, "write", inv.Fcn)

	reg.Close()
	<-reg.Done()
	assert.NoError(t, reg.Err())
}

func TestRegisterBlockEventTimeout(t *testing.T) {
	n := newNetwork(t, func(n *network) { n.deliver.SetTip(nil) })
	n.cfg.Timeouts.EventReg = 200 * time.Millisecond
	c := newTestChain(t, n)

	ctx, cancel := newTestContext()
	defer cancel()

	start := time.Now()
	_, err := c.RegisterBlockEvent(ctx, func(*common.Block) {})
	require.Error(t, err)
	assert.True(t, time.Since(start) < 5*time.Second)

	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, status.Timeout.ToInt32(), st.Code)
}

func TestWaitForSettle(t *testing.T) {
	assert.NoError(t, WaitForSettle(reqContext.Background(), time.Millisecond))

	ctx, cancel := reqContext.WithCancel(reqContext.Background())
	cancel()
	assert.Equal(t, reqContext.Canceled, WaitForSettle(ctx, time.Hour))
}
