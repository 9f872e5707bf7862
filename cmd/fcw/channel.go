/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"fmt"
	"io/ioutil"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fcw-sdk/fabric-chain/pkg/chain"
)

const defaultSettleTime = 5 * time.Second

func channelCmd(env *cmdEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channel",
		Short: "Operate a channel: create|join|list.",
	}
	cmd.AddCommand(channelCreateCmd(env))
	cmd.AddCommand(channelJoinCmd(env))
	cmd.AddCommand(channelListCmd(env))
	return cmd
}

func channelCreateCmd(env *cmdEnv) *cobra.Command {
	var (
		txFile string
		name   string
		join   bool
		settle time.Duration
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a channel from a signed configuration transaction.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if txFile == "" {
				return errors.New("a channel configuration transaction is required (--file)")
			}
			envelope, err := ioutil.ReadFile(txFile)
			if err != nil {
				return errors.Wrapf(err, "reading %s failed", txFile)
			}

			ctx := cmd.Context()
			c, err := env.newChain(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			if name == "" {
				name = c.Channel().Name()
			}
			resp, err := c.CreateChannel(ctx, name, envelope)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "channel %s created by %s [%s]\n", name, resp.Orderer, resp.Status)

			if !join {
				return nil
			}
			if err := chain.WaitForSettle(ctx, settle); err != nil {
				return err
			}
			if err := c.JoinChannel(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "peers joined channel %s\n", c.Channel().Name())
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&txFile, "file", "f", "", "Signed channel configuration transaction")
	flags.StringVarP(&name, "name", "n", "", "Channel name, the configured channel when empty")
	flags.BoolVar(&join, "join", false, "Join the configured peers once the channel is created")
	flags.DurationVar(&settle, "settle", defaultSettleTime, "Time to wait between create and join")
	return cmd
}

func channelJoinCmd(env *cmdEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "join",
		Short: "Join every configured peer to the configured channel.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := env.newChain(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.JoinChannel(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "peers joined channel %s\n", c.Channel().Name())
			return nil
		},
	}
}

func channelListCmd(env *cmdEnv) *cobra.Command {
	var peerIndex int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the channels a peer has joined.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := env.newChain(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			resp, err := c.QueryChannels(ctx, peerIndex)
			if err != nil {
				return err
			}
			for _, ch := range resp.Channels {
				fmt.Fprintln(cmd.OutOrStdout(), ch.ChannelId)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&peerIndex, "peer", 0, "Index of the configured peer to query")
	return cmd
}
