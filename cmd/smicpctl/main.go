// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gitlab.com/jaxnet/smicp/network/rpcclient"
	"gitlab.com/jaxnet/smicp/node/validators"
)

func main() {
	app := &App{}
	if err := newCliApp(app).Run(os.Args); err != nil {
		println(err.Error())
		os.Exit(1)
	}
}

type App struct {
	config Config
	client *rpcclient.Client
}

func newCliApp(app *App) *cli.App {
	return &cli.App{
		Name:   "smicpctl",
		Usage:  "operate a smicpd node: batches, anchors, verification and epochs",
		Flags:  selectFlags(flagConfig, flagRPCHost, flagRPCUser, flagRPCPass, flagSecretKey, flagDataFile),
		Before: app.InitCfg,
		After: func(*cli.Context) error {
			if app.client != nil {
				app.client.Shutdown()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "keygen",
				Usage:  "generate a validator key pair",
				Action: app.KeygenCmd,
			},
			{
				Name:   "batch",
				Usage:  "create a synthetic transaction batch, write it to CSV and print its root",
				Flags:  selectFlags(flagChain, flagBlock, flagCount),
				Action: app.BatchCmd,
			},
			{
				Name:   "prove",
				Usage:  "print the inclusion proof of one transaction of the CSV batch",
				Flags:  selectFlags(flagIndex, flagOut),
				Action: app.ProveCmd,
			},
			{
				Name:   "sign-root",
				Usage:  "sign an anchor message with the validator secret key",
				Flags:  selectFlags(flagChain, flagBlock, flagRoot),
				Action: app.SignRootCmd,
			},
			{
				Name:   "anchor",
				Usage:  "submit a root with validator signatures",
				Flags:  selectFlags(flagChain, flagBlock, flagRoot, flagSig),
				Action: app.AnchorCmd,
			},
			{
				Name:   "trust",
				Usage:  "register a trusted root for cross-chain verification",
				Flags:  selectFlags(flagChain, flagBlock, flagRoot, flagProof),
				Action: app.TrustCmd,
			},
			{
				Name:   "verify",
				Usage:  "verify transactions of the CSV batch against the node",
				Flags:  selectFlags(flagIndex, flagAll, flagOut),
				Action: app.VerifyCmd,
			},
			{
				Name:  "validators",
				Usage: "inspect and manage the validator set",
				Subcommands: []*cli.Command{
					{Name: "list", Action: app.ValidatorsListCmd},
					{Name: "add", Flags: selectFlags(flagID, flagPubKey), Action: app.ValidatorsAddCmd},
					{Name: "remove", Flags: selectFlags(flagID), Action: app.ValidatorsRemoveCmd},
					{Name: "quorum", Flags: selectFlags(flagRequired), Action: app.ValidatorsQuorumCmd},
				},
			},
			{
				Name:  "anchors",
				Usage: "inspect anchored roots",
				Subcommands: []*cli.Command{
					{Name: "list", Flags: selectFlags(flagChain), Action: app.AnchorsListCmd},
					{Name: "get", Flags: selectFlags(flagChain, flagBlock), Action: app.AnchorsGetCmd},
				},
			},
			{
				Name:  "roots",
				Usage: "inspect trusted roots",
				Subcommands: []*cli.Command{
					{Name: "list", Flags: selectFlags(flagChain), Action: app.RootsListCmd},
				},
			},
			{
				Name:  "epoch",
				Usage: "drive two-phase commit epochs",
				Subcommands: []*cli.Command{
					{
						Name:   "begin",
						Flags:  selectFlags(flagEpoch, flagParticipant, flagTimeout, flagMeta),
						Action: app.EpochBeginCmd,
					},
					{
						Name:   "prepare",
						Flags:  selectFlags(flagEpoch, flagParticipant, flagData),
						Action: app.EpochPrepareCmd,
					},
					{Name: "commit", Flags: selectFlags(flagEpoch), Action: app.EpochCommitCmd},
					{Name: "abort", Flags: selectFlags(flagEpoch, flagReason), Action: app.EpochAbortCmd},
					{
						Name:   "confirm",
						Flags:  selectFlags(flagEpoch, flagParticipant),
						Action: app.EpochConfirmCmd,
					},
					{Name: "status", Flags: selectFlags(flagEpoch), Action: app.EpochStatusCmd},
					{Name: "list", Flags: selectFlags(flagStatus), Action: app.EpochListCmd},
				},
			},
			{
				Name:   "cleanup",
				Usage:  "abort every expired epoch",
				Action: app.CleanupCmd,
			},
			{
				Name:   "watch",
				Usage:  "stream node events until interrupted",
				Action: app.WatchCmd,
			},
		},
	}
}

func (app *App) InitCfg(c *cli.Context) error {
	cfg, err := parseConfig(c.String(flagConfig))
	if err != nil {
		if c.IsSet(flagConfig) || !os.IsNotExist(errors.Cause(err)) {
			return cli.NewExitError(err, 1)
		}
		cfg = defaultConfig()
	}

	if c.IsSet(flagRPCHost) {
		cfg.RPC.Host = c.String(flagRPCHost)
	}
	if c.IsSet(flagRPCUser) {
		cfg.RPC.User = c.String(flagRPCUser)
	}
	if c.IsSet(flagRPCPass) {
		cfg.RPC.Pass = c.String(flagRPCPass)
	}
	if c.IsSet(flagSecretKey) {
		cfg.SecretKey = c.String(flagSecretKey)
	}
	if c.IsSet(flagDataFile) {
		cfg.DataFile = c.String(flagDataFile)
	}

	app.config = cfg
	app.client = rpcclient.New(&app.config.RPC)
	return nil
}

func (app *App) signer() (*validators.Signer, error) {
	if app.config.SecretKey == "" {
		return nil, errors.New("secret key is not set, use --secret-key or secret_key in config")
	}
	return validators.SignerFromHex(app.config.SecretKey)
}

// printJSON writes v as indented JSON to the app writer, or to the file
// named by --out when the command has it.
func printJSON(c *cli.Context, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return cli.NewExitError(errors.Wrap(err, "unable to encode result"), 1)
	}

	if out := c.String(flagOut); c.IsSet(flagOut) && out != "" {
		if err = ioutil.WriteFile(out, append(data, '\n'), 0644); err != nil {
			return cli.NewExitError(errors.Wrap(err, "unable to write result"), 1)
		}
		return nil
	}

	_, err = fmt.Fprintln(c.App.Writer, string(data))
	return err
}

// rpcFailure wraps a node error into an exit error.
func rpcFailure(err error, action string) error {
	return cli.NewExitError(errors.Wrap(err, action), 1)
}

func requireFlags(c *cli.Context, names ...string) error {
	for _, name := range names {
		if !c.IsSet(name) {
			return cli.NewExitError(fmt.Sprintf("flag --%s is required", name), 1)
		}
	}
	return nil
}
