/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package orderer

import (
	reqContext "context"
	"testing"
	"time"

	"github.com/hyperledger/fabric-protos-go/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcw-sdk/fabric-chain/pkg/common/errors/status"
	"github.com/fcw-sdk/fabric-chain/pkg/core/config"
	"github.com/fcw-sdk/fabric-chain/pkg/fab"
	"github.com/fcw-sdk/fabric-chain/pkg/fab/mocks"
)

const testAddress = "127.0.0.1:0"

func startOrderer(t *testing.T, srv *mocks.MockBroadcastServer) *Orderer {
	addr := srv.Start(testAddress)
	t.Cleanup(srv.Stop)

	o, err := New(config.EndpointConfig{URL: "grpc://" + addr}, WithDialTimeout(time.Second))
	require.NoError(t, err)
	t.Cleanup(func() { o.Close() })
	return o
}

func newTestContext() (reqContext.Context, reqContext.CancelFunc) {
	return reqContext.WithTimeout(reqContext.Background(), 5*time.Second)
}

func TestNew(t *testing.T) {
	_, err := New(config.EndpointConfig{})
	assert.Error(t, err)
}

func TestSendBroadcast(t *testing.T) {
	srv := &mocks.MockBroadcastServer{}
	o := startOrderer(t, srv)

	ctx, cancel := newTestContext()
	defer cancel()

	s, err := o.SendBroadcast(ctx, &fab.SignedEnvelope{Payload: []byte("payload"), Signature: []byte("sig")})
	require.NoError(t, err)
	assert.Equal(t, common.Status_SUCCESS, *s)

	envelopes := srv.Envelopes()
	require.Len(t, envelopes, 1)
	assert.Equal(t, []byte("payload"), envelopes[0].Payload)
}

func TestSendBroadcastRejected(t *testing.T) {
	srv := &mocks.MockBroadcastServer{BroadcastStatus: common.Status_BAD_REQUEST}
	o := startOrderer(t, srv)

	ctx, cancel := newTestContext()
	defer cancel()

	_, err := o.SendBroadcast(ctx, &fab.SignedEnvelope{})
	require.Error(t, err)
	s, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, status.OrdererServerStatus, s.Group)
	assert.EqualValues(t, common.Status_BAD_REQUEST, s.Code)
}

func TestSendBroadcastError(t *testing.T) {
	srv := &mocks.MockBroadcastServer{BroadcastError: errors.New("orderer down")}
	o := startOrderer(t, srv)

	ctx, cancel := newTestContext()
	defer cancel()

	_, err := o.SendBroadcast(ctx, &fab.SignedEnvelope{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orderer down")
}

func TestSendBroadcastUnreachable(t *testing.T) {
	o, err := New(config.EndpointConfig{URL: "grpc://127.0.0.1:1"})
	require.NoError(t, err)
	defer o.Close()

	ctx, cancel := reqContext.WithTimeout(reqContext.Background(), time.Second)
	defer cancel()

	_, err = o.SendBroadcast(ctx, &fab.SignedEnvelope{})
	assert.Error(t, err)
}

func TestSendDeliver(t *testing.T) {
	srv := &mocks.MockBroadcastServer{Blocks: []*common.Block{mocks.NewBlock(0), mocks.NewBlock(1)}}
	o := startOrderer(t, srv)

	ctx, cancel := newTestContext()
	defer cancel()

	blocks, errs := o.SendDeliver(ctx, &fab.SignedEnvelope{Payload: []byte("seek")})

	var received []uint64
	for block := range blocks {
		received = append(received, block.Header.Number)
	}
	assert.Equal(t, []uint64{0, 1}, received)
	assert.Len(t, errs, 0)
	require.Len(t, srv.SeekRequests(), 1)
}

func TestSendDeliverError(t *testing.T) {
	srv := &mocks.MockBroadcastServer{DeliverError: errors.New("test error")}
	o := startOrderer(t, srv)

	ctx, cancel := newTestContext()
	defer cancel()

	blocks, errs := o.SendDeliver(ctx, &fab.SignedEnvelope{})

	select {
	case block, ok := <-blocks:
		if ok {
			t.Fatalf("Expected error from SendDeliver, got block %#v", block)
		}
		err := <-errs
		assert.Contains(t, err.Error(), "test error")
	case <-time.After(5 * time.Second):
		t.Fatalf("Did not receive error from SendDeliver")
	}
}
