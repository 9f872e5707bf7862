/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"encoding/json"
	"fmt"
	"io"

	pb "github.com/hyperledger/fabric-protos-go/peer"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fcw-sdk/fabric-chain/pkg/chain"
	chclient "github.com/fcw-sdk/fabric-chain/pkg/client/channel"
)

// chaincodeFlags are shared by the chaincode subcommands
type chaincodeFlags struct {
	name     string
	path     string
	version  string
	channel  string
	ctor     string
	allPeers bool
	peer     int
}

// ctorMsg is the constructor message, e.g. {"Args":["write","ab","1"]}.
// The first argument is the function name.
type ctorMsg struct {
	Args []string `json:"Args"`
}

func parseCtor(ctor string) (fcn string, args []string, err error) {
	if ctor == "" {
		return "", nil, nil
	}
	msg := ctorMsg{}
	if err := json.Unmarshal([]byte(ctor), &msg); err != nil {
		return "", nil, errors.Wrap(err, "chaincode argument error")
	}
	if len(msg.Args) == 0 {
		return "", nil, nil
	}
	return msg.Args[0], msg.Args[1:], nil
}

func chaincodeCmd(env *cmdEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chaincode",
		Short: "Operate a chaincode: install|instantiate|invoke|query|installed|instantiated.",
	}
	cmd.AddCommand(installCmd(env))
	cmd.AddCommand(instantiateCmd(env))
	cmd.AddCommand(invokeCmd(env))
	cmd.AddCommand(queryCmd(env))
	cmd.AddCommand(installedCmd(env))
	cmd.AddCommand(instantiatedCmd(env))
	return cmd
}

func installCmd(env *cmdEnv) *cobra.Command {
	f := &chaincodeFlags{}
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Package Go chaincode and install it on every configured peer.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := env.newChain(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			responses, err := c.InstallChaincode(ctx, chain.InstallRequest{Name: f.name, Path: f.path, Version: f.version})
			if err != nil {
				return err
			}
			for _, r := range responses {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", r.Endorser, r.Status)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&f.name, "name", "n", "", "Chaincode name, the last element of the path when empty")
	flags.StringVarP(&f.path, "path", "p", "", "Chaincode path, relative to $GOPATH/src or absolute")
	flags.StringVarP(&f.version, "version", "v", "", "Chaincode version")
	return cmd
}

func instantiateCmd(env *cmdEnv) *cobra.Command {
	f := &chaincodeFlags{}
	cmd := &cobra.Command{
		Use:   "instantiate",
		Short: "Instantiate an installed chaincode on a channel.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fcn, ccArgs, err := parseCtor(f.ctor)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			c, err := env.newChain(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			txnID, err := c.InstantiateChaincode(ctx, chain.InstantiateRequest{
				Chain:   f.channel,
				Name:    f.name,
				Path:    f.path,
				Version: f.version,
				Fcn:     fcn,
				Args:    ccArgs,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), txnID)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&f.name, "name", "n", "", "Chaincode name, the last element of the path when empty")
	flags.StringVarP(&f.path, "path", "p", "", "Chaincode path used at install")
	flags.StringVarP(&f.version, "version", "v", "", "Chaincode version")
	flags.StringVarP(&f.channel, "channelID", "C", "", "Channel to instantiate on, the configured channel when empty")
	flags.StringVar(&f.ctor, "ctor", "", `Constructor message in JSON format, e.g. {"Args":["init","a","1"]}`)
	return cmd
}

func invokeCmd(env *cmdEnv) *cobra.Command {
	f := &chaincodeFlags{}
	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Invoke a chaincode function and submit the transaction.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := invokeRequest(f)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			c, err := env.newChain(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			resp, err := c.InvokeChaincode(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "txid [%s] payload [%s]\n", resp.TransactionID, resp.Payload)
			return nil
		},
	}
	addInvokeFlags(cmd, f)
	return cmd
}

func queryCmd(env *cmdEnv) *cobra.Command {
	f := &chaincodeFlags{}
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Evaluate a chaincode function without submitting a transaction.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := invokeRequest(f)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			c, err := env.newChain(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			var opts []chclient.RequestOption
			if f.allPeers {
				opts = append(opts, chclient.WithAllPeers())
			}
			payloads, err := c.QueryByChaincode(ctx, req, opts...)
			if err != nil {
				return err
			}
			for _, p := range payloads {
				fmt.Fprintln(cmd.OutOrStdout(), string(p))
			}
			return nil
		},
	}
	addInvokeFlags(cmd, f)
	cmd.Flags().BoolVar(&f.allPeers, "all-peers", false, "Query every configured peer instead of the primary peer")
	return cmd
}

func addInvokeFlags(cmd *cobra.Command, f *chaincodeFlags) {
	flags := cmd.Flags()
	flags.StringVarP(&f.name, "name", "n", "", "Chaincode name")
	flags.StringVar(&f.ctor, "ctor", "", `Function and arguments in JSON format, e.g. {"Args":["read","ab"]}`)
}

func invokeRequest(f *chaincodeFlags) (chain.InvokeRequest, error) {
	if f.name == "" {
		return chain.InvokeRequest{}, errors.New("chaincode name is required (--name)")
	}
	fcn, args, err := parseCtor(f.ctor)
	if err != nil {
		return chain.InvokeRequest{}, err
	}
	if fcn == "" {
		return chain.InvokeRequest{}, errors.New("chaincode function is required (--ctor)")
	}
	return chain.InvokeRequest{Name: f.name, Fcn: fcn, Args: args}, nil
}

func installedCmd(env *cmdEnv) *cobra.Command {
	f := &chaincodeFlags{}
	cmd := &cobra.Command{
		Use:   "installed",
		Short: "List the chaincodes installed on a peer.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := env.newChain(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			resp, err := c.QueryInstalledChaincodes(ctx, f.peer)
			if err != nil {
				return err
			}
			printChaincodes(cmd.OutOrStdout(), resp)
			return nil
		},
	}
	cmd.Flags().IntVar(&f.peer, "peer", 0, "Index of the configured peer to query")
	return cmd
}

func instantiatedCmd(env *cmdEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "instantiated",
		Short: "List the chaincodes instantiated on the configured channel.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := env.newChain(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			resp, err := c.QueryInstantiatedChaincodes(ctx)
			if err != nil {
				return err
			}
			printChaincodes(cmd.OutOrStdout(), resp)
			return nil
		},
	}
}

func printChaincodes(w io.Writer, resp *pb.ChaincodeQueryResponse) {
	for _, cc := range resp.Chaincodes {
		fmt.Fprintf(w, "Name: %s, Version: %s, Path: %s\n", cc.Name, cc.Version, cc.Path)
	}
}
