// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"github.com/urfave/cli/v2"
)

func (app *App) ValidatorsListCmd(c *cli.Context) error {
	info, err := app.client.GetValidators()
	if err != nil {
		return rpcFailure(err, "unable to fetch validators")
	}
	return printJSON(c, info)
}

func (app *App) ValidatorsAddCmd(c *cli.Context) error {
	if err := requireFlags(c, flagPubKey); err != nil {
		return err
	}
	v, err := app.client.AddValidator(c.String(flagID), c.String(flagPubKey))
	if err != nil {
		return rpcFailure(err, "unable to add validator")
	}
	return printJSON(c, v)
}

func (app *App) ValidatorsRemoveCmd(c *cli.Context) error {
	if err := requireFlags(c, flagID); err != nil {
		return err
	}
	info, err := app.client.RemoveValidator(c.String(flagID))
	if err != nil {
		return rpcFailure(err, "unable to remove validator")
	}
	return printJSON(c, info)
}

func (app *App) ValidatorsQuorumCmd(c *cli.Context) error {
	if err := requireFlags(c, flagRequired); err != nil {
		return err
	}
	info, err := app.client.SetRequiredSignatures(c.Int(flagRequired))
	if err != nil {
		return rpcFailure(err, "unable to change quorum")
	}
	return printJSON(c, info)
}

func (app *App) AnchorsListCmd(c *cli.Context) error {
	list, err := app.client.ListAnchors(c.String(flagChain))
	if err != nil {
		return rpcFailure(err, "unable to list anchors")
	}
	return printJSON(c, list)
}

func (app *App) AnchorsGetCmd(c *cli.Context) error {
	if err := requireFlags(c, flagChain, flagBlock); err != nil {
		return err
	}
	a, err := app.client.GetAnchoredRoot(c.String(flagChain), c.Uint64(flagBlock))
	if err != nil {
		return rpcFailure(err, "unable to fetch anchor")
	}
	return printJSON(c, a)
}

func (app *App) RootsListCmd(c *cli.Context) error {
	list, err := app.client.GetTrustedRoots(c.String(flagChain))
	if err != nil {
		return rpcFailure(err, "unable to list trusted roots")
	}
	return printJSON(c, list)
}
