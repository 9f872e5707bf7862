/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"encoding/json"

	"github.com/hyperledger/fabric-protos-go/common"
	"github.com/spf13/cobra"

	"github.com/fcw-sdk/fabric-chain/pkg/fab/events"
)

// invocationEvent is the printed form of a decoded invocation
type invocationEvent struct {
	Block     uint64   `json:"block"`
	TxID      string   `json:"txId"`
	Chaincode string   `json:"chaincode"`
	Fcn       string   `json:"fcn"`
	Args      []string `json:"args"`
	Payloads  []string `json:"payloads,omitempty"`
}

func newInvocationEvents(block *common.Block, info events.CcExecInfo) []invocationEvent {
	out := make([]invocationEvent, 0, len(info.Payloads))
	for _, inv := range info.Payloads {
		e := invocationEvent{
			Block:     block.GetHeader().GetNumber(),
			TxID:      inv.TxID,
			Chaincode: inv.ChaincodeName,
			Fcn:       inv.Fcn,
			Args:      toStrings(inv.Args),
			Payloads:  toStrings(inv.Payloads),
		}
		out = append(out, e)
	}
	return out
}

func toStrings(b [][]byte) []string {
	s := make([]string, len(b))
	for i, v := range b {
		s[i] = string(v)
	}
	return s
}

func eventsCmd(env *cmdEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Print the chaincode invocations of every committed block as JSON lines until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := env.newChain(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			reg, err := c.RegisterBlockEvent(ctx, func(block *common.Block) {
				printBlock(enc, block, c.ExtractCcExecInfo(block))
			})
			if err != nil {
				return err
			}
			defer reg.Close()

			select {
			case <-ctx.Done():
				return nil
			case <-reg.Done():
				return reg.Err()
			}
		},
	}
}

func printBlock(enc *json.Encoder, block *common.Block, info events.CcExecInfo) {
	for _, e := range newInvocationEvents(block, info) {
		if err := enc.Encode(e); err != nil {
			logger.Warnf("writing event of block %d failed: %s", e.Block, err)
		}
	}
}
