/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package resource

import (
	reqContext "context"
	"testing"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/hyperledger/fabric-protos-go/common"
	ab "github.com/hyperledger/fabric-protos-go/orderer"
	pb "github.com/hyperledger/fabric-protos-go/peer"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/fcw-sdk/fabric-chain/internal/protoutil"
	fcwerrors "github.com/fcw-sdk/fabric-chain/pkg/errors"
	"github.com/fcw-sdk/fabric-chain/pkg/fab"
	"github.com/fcw-sdk/fabric-chain/pkg/fab/mocks"
)

const testChannel = "ttl"

func newTestContext() (reqContext.Context, reqContext.CancelFunc) {
	return reqContext.WithTimeout(reqContext.Background(), 5*time.Second)
}

func channelHeader(t *testing.T, req fab.ProcessProposalRequest) *common.ChannelHeader {
	prop := &pb.Proposal{}
	require.NoError(t, proto.Unmarshal(req.SignedProposal.ProposalBytes, prop))
	hdr, err := protoutil.UnmarshalHeader(prop.Header)
	require.NoError(t, err)
	chdr, err := protoutil.UnmarshalChannelHeader(hdr.ChannelHeader)
	require.NoError(t, err)
	return chdr
}

func invocationArgs(t *testing.T, req fab.ProcessProposalRequest) (string, [][]byte) {
	cis := mocks.InvocationSpec(req.SignedProposal)
	require.NotNil(t, cis)
	return cis.ChaincodeSpec.ChaincodeId.Name, cis.ChaincodeSpec.Input.Args
}

func TestCreateChannel(t *testing.T) {
	signer := mocks.NewMockIdentity("admin", "Org1MSP")
	orderer := &mocks.MockOrderer{Address: "grpc://orderer:7050"}

	env, err := protoutil.CreateSignedEnvelope(common.HeaderType_CONFIG_UPDATE, testChannel, signer, &common.ConfigUpdateEnvelope{})
	require.NoError(t, err)
	envBytes, err := proto.Marshal(env)
	require.NoError(t, err)

	ctx, cancel := newTestContext()
	defer cancel()

	resp, err := CreateChannel(ctx, testChannel, envBytes, orderer)
	require.NoError(t, err)
	assert.Equal(t, common.Status_SUCCESS, resp.Status)
	assert.Equal(t, "grpc://orderer:7050", resp.Orderer)

	sent := orderer.Envelopes()
	require.Len(t, sent, 1)
	assert.Equal(t, env.Payload, sent[0].Payload)
	assert.Equal(t, env.Signature, sent[0].Signature)
}

func TestCreateChannelInvalid(t *testing.T) {
	signer := mocks.NewMockIdentity("admin", "Org1MSP")
	orderer := &mocks.MockOrderer{}

	env, err := protoutil.CreateSignedEnvelope(common.HeaderType_CONFIG_UPDATE, "other", signer, &common.ConfigUpdateEnvelope{})
	require.NoError(t, err)
	otherChannel, err := proto.Marshal(env)
	require.NoError(t, err)

	ctx, cancel := newTestContext()
	defer cancel()

	tests := map[string]struct {
		name     string
		envelope []byte
		orderer  fab.Orderer
	}{
		"no name":       {"", otherChannel, orderer},
		"no envelope":   {testChannel, nil, orderer},
		"no orderer":    {testChannel, otherChannel, nil},
		"garbage":       {testChannel, []byte("not an envelope"), orderer},
		"wrong channel": {testChannel, otherChannel, orderer},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := CreateChannel(ctx, tc.name, tc.envelope, tc.orderer)
			require.Error(t, err)
			assert.True(t, fcwerrors.IsKind(err, fcwerrors.ConfigurationError), err.Error())
		})
	}
	assert.Empty(t, orderer.Envelopes())
}

func TestCreateChannelRejected(t *testing.T) {
	signer := mocks.NewMockIdentity("admin", "Org1MSP")
	orderer := &mocks.MockOrderer{BroadcastErr: errors.New("BAD_REQUEST")}

	env, err := protoutil.CreateSignedEnvelope(common.HeaderType_CONFIG_UPDATE, testChannel, signer, &common.ConfigUpdateEnvelope{})
	require.NoError(t, err)
	envBytes, err := proto.Marshal(env)
	require.NoError(t, err)

	ctx, cancel := newTestContext()
	defer cancel()

	_, err = CreateChannel(ctx, testChannel, envBytes, orderer)
	require.Error(t, err)
	assert.True(t, fcwerrors.IsKind(err, fcwerrors.SubmissionError))
}

func TestGenesisBlockFromOrderer(t *testing.T) {
	signer := mocks.NewMockIdentity("admin", "Org1MSP")
	orderer := &mocks.MockOrderer{DeliverBlocks: []*common.Block{mocks.NewBlock(0)}}

	ctx, cancel := newTestContext()
	defer cancel()

	block, err := GenesisBlockFromOrderer(ctx, testChannel, signer, orderer)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), block.Header.Number)

	sent := orderer.Envelopes()
	require.Len(t, sent, 1)
	payload, err := protoutil.UnmarshalPayload(sent[0].Payload)
	require.NoError(t, err)
	chdr, err := protoutil.UnmarshalChannelHeader(payload.Header.ChannelHeader)
	require.NoError(t, err)
	assert.Equal(t, testChannel, chdr.ChannelId)
	assert.Equal(t, int32(common.HeaderType_DELIVER_SEEK_INFO), chdr.Type)

	seekInfo := &ab.SeekInfo{}
	require.NoError(t, proto.Unmarshal(payload.Data, seekInfo))
	assert.Equal(t, uint64(0), seekInfo.Start.GetSpecified().Number)
	assert.Equal(t, uint64(0), seekInfo.Stop.GetSpecified().Number)
}

func TestGenesisBlockFromOrdererFailure(t *testing.T) {
	signer := mocks.NewMockIdentity("admin", "Org1MSP")

	ctx, cancel := newTestContext()
	defer cancel()

	_, err := GenesisBlockFromOrderer(ctx, testChannel, signer, &mocks.MockOrderer{DeliverErr: errors.New("NOT_FOUND")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_FOUND")

	_, err = GenesisBlockFromOrderer(ctx, testChannel, signer, &mocks.MockOrderer{})
	assert.Error(t, err)
}

func TestJoinChannel(t *testing.T) {
	signer := mocks.NewMockIdentity("admin", "Org1MSP")
	peer0 := &mocks.MockProposalProcessor{Endorser: "peer0"}
	peer1 := &mocks.MockProposalProcessor{Endorser: "peer1"}

	ctx, cancel := newTestContext()
	defer cancel()

	genesis := mocks.NewBlock(0)
	err := JoinChannel(ctx, signer, genesis, []fab.ProposalProcessor{peer0, peer1})
	require.NoError(t, err)

	genesisBytes, err := proto.Marshal(genesis)
	require.NoError(t, err)
	for _, p := range []*mocks.MockProposalProcessor{peer0, peer1} {
		reqs := p.Requests()
		require.Len(t, reqs, 1)
		cc, args := invocationArgs(t, reqs[0])
		assert.Equal(t, "cscc", cc)
		assert.Equal(t, [][]byte{[]byte("JoinChain"), genesisBytes}, args)
		assert.Equal(t, "", channelHeader(t, reqs[0]).ChannelId)
	}

	assert.Error(t, JoinChannel(ctx, signer, nil, []fab.ProposalProcessor{peer0}))
}

func TestJoinChannelRejected(t *testing.T) {
	signer := mocks.NewMockIdentity("admin", "Org1MSP")
	peer0 := &mocks.MockProposalProcessor{Endorser: "peer0"}
	peer1 := &mocks.MockProposalProcessor{Endorser: "peer1", Status: 500}

	ctx, cancel := newTestContext()
	defer cancel()

	err := JoinChannel(ctx, signer, mocks.NewBlock(0), []fab.ProposalProcessor{peer0, peer1})
	require.Error(t, err)
	assert.True(t, fcwerrors.IsKind(err, fcwerrors.EndorsementError))
	assert.Len(t, peer0.Requests(), 1)
}

func TestQueryChannels(t *testing.T) {
	signer := mocks.NewMockIdentity("admin", "Org1MSP")
	payload, err := proto.Marshal(&pb.ChannelQueryResponse{Channels: []*pb.ChannelInfo{{ChannelId: testChannel}}})
	require.NoError(t, err)
	peer := &mocks.MockProposalProcessor{Payload: payload}

	ctx, cancel := newTestContext()
	defer cancel()

	resp, err := QueryChannels(ctx, signer, peer)
	require.NoError(t, err)
	require.Len(t, resp.Channels, 1)
	assert.Equal(t, testChannel, resp.Channels[0].ChannelId)

	_, err = QueryChannels(ctx, signer, nil)
	assert.Error(t, err)
}

func TestQueryInstalledChaincodes(t *testing.T) {
	signer := mocks.NewMockIdentity("admin", "Org1MSP")
	payload, err := proto.Marshal(&pb.ChaincodeQueryResponse{Chaincodes: []*pb.ChaincodeInfo{{Name: "adchain", Version: "v0", Path: "adchain"}}})
	require.NoError(t, err)
	peer := &mocks.MockProposalProcessor{Payload: payload}

	ctx, cancel := newTestContext()
	defer cancel()

	resp, err := QueryInstalledChaincodes(ctx, signer, peer)
	require.NoError(t, err)
	require.Len(t, resp.Chaincodes, 1)
	assert.Equal(t, "adchain", resp.Chaincodes[0].Name)

	cc, args := invocationArgs(t, peer.Requests()[0])
	assert.Equal(t, "lscc", cc)
	assert.Equal(t, [][]byte{[]byte("getinstalledchaincodes")}, args)

	_, err = QueryInstalledChaincodes(ctx, signer, &mocks.MockProposalProcessor{Status: 500})
	require.Error(t, err)
	assert.True(t, fcwerrors.IsKind(err, fcwerrors.EndorsementError))

	_, err = QueryInstalledChaincodes(ctx, signer, &mocks.MockProposalProcessor{Payload: []byte("garbage")})
	assert.Error(t, err)
}

func TestQueryInstantiatedChaincodes(t *testing.T) {
	signer := mocks.NewMockIdentity("admin", "Org1MSP")
	payload, err := proto.Marshal(&pb.ChaincodeQueryResponse{Chaincodes: []*pb.ChaincodeInfo{{Name: "fcw_example", Version: "v0"}}})
	require.NoError(t, err)
	peer := &mocks.MockProposalProcessor{Payload: payload}

	ctx, cancel := newTestContext()
	defer cancel()

	resp, err := QueryInstantiatedChaincodes(ctx, signer, testChannel, peer)
	require.NoError(t, err)
	require.Len(t, resp.Chaincodes, 1)
	assert.Equal(t, "fcw_example", resp.Chaincodes[0].Name)

	req := peer.Requests()[0]
	assert.Equal(t, testChannel, channelHeader(t, req).ChannelId)
	_, args := invocationArgs(t, req)
	assert.Equal(t, [][]byte{[]byte("getchaincodes")}, args)

	_, err = QueryInstantiatedChaincodes(ctx, signer, "", peer)
	assert.Error(t, err)
}

func TestJoinChannelRejectedByAllPeers(t *testing.T) {
	signer := mocks.NewMockIdentity("admin", "Org1MSP")
	peer0 := &mocks.MockProposalProcessor{Endorser: "peer0", Status: 500}
	peer1 := &mocks.MockProposalProcessor{Endorser: "peer1", Status: 500}

	ctx, cancel := newTestContext()
	defer cancel()

	err := JoinChannel(ctx, signer, mocks.NewBlock(0), []fab.ProposalProcessor{peer0, peer1})
	require.Error(t, err)
	assert.True(t, fcwerrors.IsKind(err, fcwerrors.EndorsementError))
	assert.Equal(t, fcwerrors.EndorsementError, fcwerrors.KindOf(err))
	assert.Len(t, multierr.Errors(err), 2)
}

func TestInstallChaincode(t *testing.T) {
	signer := mocks.NewMockIdentity("admin", "Org1MSP")
	peer0 := &mocks.MockProposalProcessor{Endorser: "peer0"}
	peer1 := &mocks.MockProposalProcessor{Endorser: "peer1"}

	ctx, cancel := newTestContext()
	defer cancel()

	req := InstallChaincodeRequest{
		Name:    "adchain",
		Path:    "adchain",
		Version: "v0",
		Package: &CCPackage{Type: pb.ChaincodeSpec_GOLANG, Code: []byte("code")},
	}
	responses, txID, err := InstallChaincode(ctx, signer, req, []fab.ProposalProcessor{peer0, peer1})
	require.NoError(t, err)
	assert.NotEmpty(t, txID)
	assert.Len(t, responses, 2)

	cc, args := invocationArgs(t, peer0.Requests()[0])
	assert.Equal(t, "lscc", cc)
	require.Len(t, args, 2)
	assert.Equal(t, "install", string(args[0]))

	cds := &pb.ChaincodeDeploymentSpec{}
	require.NoError(t, proto.Unmarshal(args[1], cds))
	assert.Equal(t, "adchain", cds.ChaincodeSpec.ChaincodeId.Name)
	assert.Equal(t, "v0", cds.ChaincodeSpec.ChaincodeId.Version)
	assert.Equal(t, []byte("code"), cds.CodePackage)
}

func TestInstallChaincodeInvalid(t *testing.T) {
	signer := mocks.NewMockIdentity("admin", "Org1MSP")
	targets := []fab.ProposalProcessor{&mocks.MockProposalProcessor{}}
	pkg := &CCPackage{Code: []byte("code")}

	ctx, cancel := newTestContext()
	defer cancel()

	for _, req := range []InstallChaincodeRequest{
		{Path: "p", Version: "v0", Package: pkg},
		{Name: "n", Version: "v0", Package: pkg},
		{Name: "n", Path: "p", Package: pkg},
		{Name: "n", Path: "p", Version: "v0"},
	} {
		_, _, err := InstallChaincode(ctx, signer, req, targets)
		assert.Error(t, err)
	}
}

func TestInstantiateChaincode(t *testing.T) {
	signer := mocks.NewMockIdentity("admin", "Org1MSP")
	peer0 := &mocks.MockProposalProcessor{Endorser: "peer0"}
	peer1 := &mocks.MockProposalProcessor{Endorser: "peer1"}
	orderer := &mocks.MockOrderer{Address: "grpc://orderer:7050"}

	ctx, cancel := newTestContext()
	defer cancel()

	req := InstantiateChaincodeRequest{
		Name:    "adchain",
		Path:    "adchain",
		Version: "v0",
		Args:    [][]byte{[]byte("100")},
	}
	txID, err := InstantiateChaincode(ctx, signer, testChannel, req, []fab.ProposalProcessor{peer0, peer1}, orderer)
	require.NoError(t, err)
	assert.NotEmpty(t, txID)
	require.Len(t, orderer.Envelopes(), 1)

	reqs := peer0.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, testChannel, channelHeader(t, reqs[0]).ChannelId)
	cc, args := invocationArgs(t, reqs[0])
	assert.Equal(t, "lscc", cc)
	require.Len(t, args, 3)
	assert.Equal(t, "deploy", string(args[0]))
	assert.Equal(t, testChannel, string(args[1]))

	cds := &pb.ChaincodeDeploymentSpec{}
	require.NoError(t, proto.Unmarshal(args[2], cds))
	assert.Equal(t, [][]byte{[]byte("init"), []byte("100")}, cds.ChaincodeSpec.Input.Args)
}

func TestInstantiateChaincodeEndorsementFailure(t *testing.T) {
	signer := mocks.NewMockIdentity("admin", "Org1MSP")
	orderer := &mocks.MockOrderer{}

	ctx, cancel := newTestContext()
	defer cancel()

	req := InstantiateChaincodeRequest{Name: "adchain", Path: "adchain", Version: "v0"}
	_, err := InstantiateChaincode(ctx, signer, testChannel, req,
		[]fab.ProposalProcessor{&mocks.MockProposalProcessor{Payload: []byte("a")}, &mocks.MockProposalProcessor{Payload: []byte("b")}}, orderer)
	require.Error(t, err)
	assert.True(t, fcwerrors.IsKind(err, fcwerrors.EndorsementMismatchError))
	assert.Empty(t, orderer.Envelopes())

	_, err = InstantiateChaincode(ctx, signer, "", req, []fab.ProposalProcessor{&mocks.MockProposalProcessor{}}, orderer)
	assert.Error(t, err)
}
