package main

import (
	"fmt"

	"github.com/hyperledger/fabric/core/chaincode/shim"
	pb "github.com/hyperledger/fabric/protos/peer"
)

// KVChaincode stores raw values by key
type KVChaincode struct{}

// Init accepts any arguments
func (t *KVChaincode) Init(stub shim.ChaincodeStubInterface) pb.Response {
	return shim.Success(nil)
}

// Invoke dispatches write and read
func (t *KVChaincode) Invoke(stub shim.ChaincodeStubInterface) pb.Response {
	fn, args := stub.GetFunctionAndParameters()
	switch fn {
	case "write":
		if len(args) != 2 {
			return shim.Error("write expects a key and a value")
		}
		if err := stub.PutState(args[0], []byte(args[1])); err != nil {
			return shim.Error(err.Error())
		}
		return shim.Success(nil)
	case "read":
		if len(args) != 1 {
			return shim.Error("read expects a key")
		}
		value, err := stub.GetState(args[0])
		if err != nil {
			return shim.Error(err.Error())
		}
		return shim.Success(value)
	}
	return shim.Error(fmt.Sprintf("unknown function %s", fn))
}

func main() {
	if err := shim.Start(new(KVChaincode)); err != nil {
		fmt.Printf("Error starting chaincode: %s", err)
	}
}
