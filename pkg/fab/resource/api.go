/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package resource provides channel lifecycle and chaincode management
// operations: channel creation and joining, chaincode install and
// instantiation, and the peer admin queries.
package resource

import (
	pb "github.com/hyperledger/fabric-protos-go/peer"
)

// CCPackage contains package type and bytes required to create CDS
type CCPackage struct {
	Type pb.ChaincodeSpec_Type
	Code []byte
}

// InstallChaincodeRequest requests chaincode installation on the network
type InstallChaincodeRequest struct {
	// required - name of the chaincode
	Name string
	// required - path to the location of chaincode sources (path from GOPATH/src folder)
	Path string
	// required - version of the chaincode
	Version string
	// required - package (chaincode package type and bytes)
	Package *CCPackage
}

// InstantiateChaincodeRequest requests chaincode instantiation on a channel
type InstantiateChaincodeRequest struct {
	// required - name of the chaincode
	Name string
	// required - path of the installed chaincode
	Path string
	// required - version of the chaincode
	Version string
	// Fcn is the init function, "init" when empty
	Fcn string
	// Args are passed to the init function
	Args [][]byte
	// Policy is a marshalled endorsement policy envelope; the peer's default applies when empty
	Policy []byte
}
