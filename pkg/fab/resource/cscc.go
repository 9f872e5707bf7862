/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package resource

import (
	"github.com/golang/protobuf/proto"
	"github.com/hyperledger/fabric-protos-go/common"
	"github.com/pkg/errors"

	"github.com/fcw-sdk/fabric-chain/pkg/fab"
)

const (
	cscc            = "cscc"
	csccJoinChain   = "JoinChain"
	csccGetChannels = "GetChannels"
)

func createJoinChannelInvokeRequest(genesisBlock *common.Block) (fab.ChaincodeInvokeRequest, error) {
	genesisBlockBytes, err := proto.Marshal(genesisBlock)
	if err != nil {
		return fab.ChaincodeInvokeRequest{}, errors.Wrap(err, "marshal genesis block failed")
	}

	return fab.ChaincodeInvokeRequest{
		ChaincodeID: cscc,
		Fcn:         csccJoinChain,
		Args:        [][]byte{genesisBlockBytes},
	}, nil
}

func createChannelsInvokeRequest() fab.ChaincodeInvokeRequest {
	return fab.ChaincodeInvokeRequest{
		ChaincodeID: cscc,
		Fcn:         csccGetChannels,
	}
}
