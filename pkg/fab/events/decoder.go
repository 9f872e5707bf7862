/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package events

import (
	"github.com/hyperledger/fabric-protos-go/common"
	"github.com/pkg/errors"

	"github.com/fcw-sdk/fabric-chain/internal/protoutil"
)

// DecodedInvocation is a chaincode invocation committed in a block
type DecodedInvocation struct {
	TxID          string
	ChaincodeName string
	Fcn           string
	Args          [][]byte
	// Payloads holds the chaincode response payload of each action of the transaction
	Payloads [][]byte
}

// CcExecInfo lists the chaincode invocations of a block in commit order
type CcExecInfo struct {
	Payloads []DecodedInvocation
}

// ExtractCcExecInfo decodes the endorser transactions of block. Malformed and
// non-chaincode transactions are skipped.
func ExtractCcExecInfo(block *common.Block) CcExecInfo {
	info := CcExecInfo{Payloads: []DecodedInvocation{}}
	if block == nil || block.Data == nil {
		return info
	}

	for i, envBytes := range block.Data.Data {
		inv, err := decodeEnvelope(envBytes)
		if err != nil {
			logger.Debugf("Skipping transaction %d of block [%d]: %s", i, block.GetHeader().GetNumber(), err)
			continue
		}
		if inv != nil {
			info.Payloads = append(info.Payloads, *inv)
		}
	}
	return info
}

// decodeEnvelope returns nil without error for non-chaincode transactions
func decodeEnvelope(envBytes []byte) (*DecodedInvocation, error) {
	env, err := protoutil.UnmarshalEnvelope(envBytes)
	if err != nil {
		return nil, err
	}
	payload, err := protoutil.UnmarshalPayload(env.Payload)
	if err != nil {
		return nil, err
	}
	if payload.Header == nil {
		return nil, errors.New("missing payload header")
	}
	chdr, err := protoutil.UnmarshalChannelHeader(payload.Header.ChannelHeader)
	if err != nil {
		return nil, err
	}
	if common.HeaderType(chdr.Type) != common.HeaderType_ENDORSER_TRANSACTION {
		return nil, nil
	}

	tx, err := protoutil.UnmarshalTransaction(payload.Data)
	if err != nil {
		return nil, err
	}
	if len(tx.Actions) == 0 {
		return nil, errors.New("transaction has no actions")
	}

	inv := &DecodedInvocation{TxID: chdr.TxId}
	for n, action := range tx.Actions {
		ccPayload, err := protoutil.UnmarshalChaincodeActionPayload(action.Payload)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			if err := decodeInput(inv, ccPayload.ChaincodeProposalPayload); err != nil {
				return nil, err
			}
		}
		if ccPayload.Action == nil {
			return nil, errors.New("missing endorsed action")
		}
		prp, err := protoutil.UnmarshalProposalResponsePayload(ccPayload.Action.ProposalResponsePayload)
		if err != nil {
			return nil, err
		}
		ccAction, err := protoutil.UnmarshalChaincodeAction(prp.Extension)
		if err != nil {
			return nil, err
		}
		inv.Payloads = append(inv.Payloads, ccAction.GetResponse().GetPayload())
	}
	return inv, nil
}

func decodeInput(inv *DecodedInvocation, proposalPayload []byte) error {
	cpp, err := protoutil.UnmarshalChaincodeProposalPayload(proposalPayload)
	if err != nil {
		return err
	}
	cis, err := protoutil.UnmarshalChaincodeInvocationSpec(cpp.Input)
	if err != nil {
		return err
	}
	spec := cis.GetChaincodeSpec()
	if spec == nil || spec.GetChaincodeId() == nil {
		return errors.New("missing chaincode spec")
	}
	inv.ChaincodeName = spec.ChaincodeId.Name

	args := spec.GetInput().GetArgs()
	if len(args) > 0 {
		inv.Fcn = string(args[0])
		inv.Args = args[1:]
	}
	return nil
}
