// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"time"

	"github.com/urfave/cli/v2"
)

const (
	flagAll         = "all"
	flagBlock       = "block"
	flagChain       = "chain"
	flagConfig      = "config"
	flagCount       = "count"
	flagData        = "data"
	flagDataFile    = "data-file"
	flagEpoch       = "epoch"
	flagID          = "id"
	flagIndex       = "index"
	flagMeta        = "meta"
	flagOut         = "out"
	flagParticipant = "participant"
	flagProof       = "proof"
	flagPubKey      = "pubkey"
	flagReason      = "reason"
	flagRequired    = "required"
	flagRoot        = "root"
	flagRPCHost     = "rpc-host"
	flagRPCPass     = "rpc-pass"
	flagRPCUser     = "rpc-user"
	flagSecretKey   = "secret-key"
	flagSig         = "sig"
	flagStatus      = "status"
	flagTimeout     = "timeout"
)

func getFlags() map[string]cli.Flag {
	return map[string]cli.Flag{
		flagConfig: &cli.StringFlag{
			Name:    flagConfig,
			Aliases: []string{"c"},
			Value:   "./smicpctl.yaml",
			Usage:   "path to configuration",
		},
		flagRPCHost: &cli.StringFlag{
			Name:    flagRPCHost,
			EnvVars: []string{"SMICP_RPC_HOST"},
			Usage:   "host:port of the node RPC, will override value from config file",
		},
		flagRPCUser: &cli.StringFlag{
			Name:    flagRPCUser,
			EnvVars: []string{"SMICP_RPC_USER"},
			Usage:   "RPC username, will override value from config file",
		},
		flagRPCPass: &cli.StringFlag{
			Name:    flagRPCPass,
			EnvVars: []string{"SMICP_RPC_PASS"},
			Usage:   "RPC password, will override value from config file",
		},
		flagSecretKey: &cli.StringFlag{
			Name:    flagSecretKey,
			Aliases: []string{"k"},
			EnvVars: []string{"SMICP_SECRET_KEY"},
			Usage:   "validator secret key for signing roots, will override value from config file",
		},
		flagDataFile: &cli.StringFlag{
			Name:    flagDataFile,
			Aliases: []string{"f"},
			EnvVars: []string{"SMICP_DATA_FILE"},
			Usage:   "path to batch CSV input/output, will override value from config file",
		},

		flagChain: &cli.StringFlag{
			Name:  flagChain,
			Usage: "sidechain identifier",
		},
		flagBlock: &cli.Uint64Flag{
			Name:    flagBlock,
			Aliases: []string{"b"},
			Usage:   "sidechain block number",
		},
		flagRoot: &cli.StringFlag{
			Name:    flagRoot,
			Aliases: []string{"r"},
			Usage:   "hex merkle root",
		},
		flagCount: &cli.IntFlag{
			Name:  flagCount,
			Value: 16,
			Usage: "number of transactions in the batch",
		},
		flagIndex: &cli.IntFlag{
			Name:    flagIndex,
			Aliases: []string{"i"},
			Usage:   "position of the transaction in the batch",
		},
		flagAll: &cli.BoolFlag{
			Name:  flagAll,
			Usage: "process every transaction of the batch",
		},
		flagOut: &cli.StringFlag{
			Name:    flagOut,
			Aliases: []string{"o"},
			Usage:   "write the result to this file instead of stdout",
		},
		flagSig: &cli.StringSliceFlag{
			Name:  flagSig,
			Usage: "validator signature as <validator-id>:<hex-signature>, repeatable",
		},
		flagProof: &cli.StringFlag{
			Name:  flagProof,
			Usage: "opaque relay proof stored with the trusted root",
		},

		flagEpoch: &cli.StringFlag{
			Name:    flagEpoch,
			Aliases: []string{"e"},
			Usage:   "epoch identifier",
		},
		flagParticipant: &cli.StringSliceFlag{
			Name:    flagParticipant,
			Aliases: []string{"p"},
			Usage:   "participant identifier, repeatable where a list is expected",
		},
		flagTimeout: &cli.DurationFlag{
			Name:  flagTimeout,
			Value: time.Minute,
			Usage: "epoch timeout",
		},
		flagMeta: &cli.StringSliceFlag{
			Name:  flagMeta,
			Usage: "epoch metadata as key=value, repeatable",
		},
		flagData: &cli.StringFlag{
			Name:  flagData,
			Usage: "opaque prepare payload",
		},
		flagReason: &cli.StringFlag{
			Name:  flagReason,
			Value: "aborted by operator",
			Usage: "abort reason",
		},
		flagStatus: &cli.StringFlag{
			Name:  flagStatus,
			Usage: "filter by epoch status",
		},

		flagID: &cli.StringFlag{
			Name:  flagID,
			Usage: "validator identifier",
		},
		flagPubKey: &cli.StringFlag{
			Name:  flagPubKey,
			Usage: "hex compressed secp256k1 public key",
		},
		flagRequired: &cli.IntFlag{
			Name:  flagRequired,
			Usage: "number of validator signatures required for an anchor",
		},
	}
}

// selectFlags returns fresh instances of the named flags.
func selectFlags(names ...string) []cli.Flag {
	all := getFlags()
	res := make([]cli.Flag, 0, len(names))
	for _, name := range names {
		res = append(res, all[name])
	}
	return res
}
