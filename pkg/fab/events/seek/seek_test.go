/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package seek

import (
	"math"
	"testing"

	"github.com/golang/protobuf/proto"
	"github.com/hyperledger/fabric-protos-go/common"
	ab "github.com/hyperledger/fabric-protos-go/orderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcw-sdk/fabric-chain/internal/protoutil"
	"github.com/fcw-sdk/fabric-chain/pkg/fab/mocks"
)

func TestSeekInfo(t *testing.T) {
	info := InfoNewest()
	assert.NotNil(t, info.Start.GetNewest())
	assert.Equal(t, uint64(math.MaxUint64), info.Stop.GetSpecified().Number)
	assert.Equal(t, ab.SeekInfo_BLOCK_UNTIL_READY, info.Behavior)

	info = InfoBlock(0)
	assert.Equal(t, uint64(0), info.Start.GetSpecified().Number)
	assert.Equal(t, uint64(0), info.Stop.GetSpecified().Number)
}

func TestNewEnvelope(t *testing.T) {
	signer := mocks.NewMockIdentity("user1", "Org1MSP")

	env, err := NewEnvelope("mychannel", signer, InfoNewest())
	require.NoError(t, err)
	assert.NotEmpty(t, env.Signature)

	payload, err := protoutil.UnmarshalPayload(env.Payload)
	require.NoError(t, err)
	chdr, err := protoutil.UnmarshalChannelHeader(payload.Header.ChannelHeader)
	require.NoError(t, err)
	assert.Equal(t, int32(common.HeaderType_DELIVER_SEEK_INFO), chdr.Type)
	assert.Equal(t, "mychannel", chdr.ChannelId)

	info := &ab.SeekInfo{}
	require.NoError(t, proto.Unmarshal(payload.Data, info))
	assert.NotNil(t, info.Start.GetNewest())
}
