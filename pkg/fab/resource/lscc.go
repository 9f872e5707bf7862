/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package resource

import (
	"github.com/golang/protobuf/proto"
	pb "github.com/hyperledger/fabric-protos-go/peer"
	"github.com/pkg/errors"

	"github.com/fcw-sdk/fabric-chain/pkg/fab"
)

const (
	lscc                    = "lscc"
	lsccInstall             = "install"
	lsccDeploy              = "deploy"
	lsccInstalledChaincodes = "getinstalledchaincodes"
	lsccChaincodes          = "getchaincodes"

	defaultInitFcn = "init"
)

func createInstallInvokeRequest(request InstallChaincodeRequest) (fab.ChaincodeInvokeRequest, error) {
	ccType := request.Package.Type
	if ccType == pb.ChaincodeSpec_UNDEFINED {
		ccType = pb.ChaincodeSpec_GOLANG
	}

	cds := &pb.ChaincodeDeploymentSpec{
		ChaincodeSpec: &pb.ChaincodeSpec{
			Type: ccType,
			ChaincodeId: &pb.ChaincodeID{
				Name:    request.Name,
				Path:    request.Path,
				Version: request.Version,
			},
		},
		CodePackage: request.Package.Code,
	}
	cdsBytes, err := proto.Marshal(cds)
	if err != nil {
		return fab.ChaincodeInvokeRequest{}, errors.Wrap(err, "marshal of chaincode deployment spec failed")
	}

	return fab.ChaincodeInvokeRequest{
		ChaincodeID: lscc,
		Fcn:         lsccInstall,
		Args:        [][]byte{cdsBytes},
	}, nil
}

func createDeployInvokeRequest(channelID string, request InstantiateChaincodeRequest) (fab.ChaincodeInvokeRequest, error) {
	fcn := request.Fcn
	if fcn == "" {
		fcn = defaultInitFcn
	}
	args := append([][]byte{[]byte(fcn)}, request.Args...)

	cds := &pb.ChaincodeDeploymentSpec{
		ChaincodeSpec: &pb.ChaincodeSpec{
			Type: pb.ChaincodeSpec_GOLANG,
			ChaincodeId: &pb.ChaincodeID{
				Name:    request.Name,
				Path:    request.Path,
				Version: request.Version,
			},
			Input: &pb.ChaincodeInput{Args: args},
		},
	}
	cdsBytes, err := proto.Marshal(cds)
	if err != nil {
		return fab.ChaincodeInvokeRequest{}, errors.Wrap(err, "marshal of chaincode deployment spec failed")
	}

	lsccArgs := [][]byte{[]byte(channelID), cdsBytes}
	if len(request.Policy) > 0 {
		lsccArgs = append(lsccArgs, request.Policy)
	}

	return fab.ChaincodeInvokeRequest{
		ChaincodeID: lscc,
		Fcn:         lsccDeploy,
		Args:        lsccArgs,
	}, nil
}

func createInstalledChaincodesInvokeRequest() fab.ChaincodeInvokeRequest {
	return fab.ChaincodeInvokeRequest{
		ChaincodeID: lscc,
		Fcn:         lsccInstalledChaincodes,
	}
}

func createChaincodesInvokeRequest() fab.ChaincodeInvokeRequest {
	return fab.ChaincodeInvokeRequest{
		ChaincodeID: lscc,
		Fcn:         lsccChaincodes,
	}
}
