// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/urfave/cli/v2"
	"gitlab.com/jaxnet/smicp/node/coordinator"
	"gitlab.com/jaxnet/smicp/types/events"
)

func parseMetadata(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	meta := make(map[string]string, len(values))
	for _, v := range values {
		kv := strings.SplitN(v, "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			return nil, fmt.Errorf("metadata %q is not key=value", v)
		}
		meta[kv[0]] = kv[1]
	}
	return meta, nil
}

// singleParticipant returns the only --participant value of a command that
// acts for one participant.
func singleParticipant(c *cli.Context) (string, error) {
	list := c.StringSlice(flagParticipant)
	if len(list) != 1 {
		return "", cli.NewExitError("exactly one --participant is required", 1)
	}
	return list[0], nil
}

func (app *App) EpochBeginCmd(c *cli.Context) error {
	if err := requireFlags(c, flagEpoch, flagParticipant); err != nil {
		return err
	}
	meta, err := parseMetadata(c.StringSlice(flagMeta))
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	e, err := app.client.BeginEpoch(c.String(flagEpoch), c.StringSlice(flagParticipant), c.Duration(flagTimeout), meta)
	if err != nil {
		return rpcFailure(err, "unable to begin epoch")
	}
	return printJSON(c, e)
}

func (app *App) EpochPrepareCmd(c *cli.Context) error {
	if err := requireFlags(c, flagEpoch); err != nil {
		return err
	}
	participant, err := singleParticipant(c)
	if err != nil {
		return err
	}

	res, err := app.client.Prepare(c.String(flagEpoch), participant, c.String(flagData))
	if err != nil {
		return rpcFailure(err, "prepare rejected")
	}
	return printJSON(c, res)
}

func (app *App) EpochCommitCmd(c *cli.Context) error {
	if err := requireFlags(c, flagEpoch); err != nil {
		return err
	}
	e, err := app.client.Commit(c.String(flagEpoch))
	if err != nil {
		return rpcFailure(err, "commit rejected")
	}
	return printJSON(c, e)
}

func (app *App) EpochAbortCmd(c *cli.Context) error {
	if err := requireFlags(c, flagEpoch); err != nil {
		return err
	}
	e, err := app.client.Abort(c.String(flagEpoch), c.String(flagReason))
	if err != nil {
		return rpcFailure(err, "abort rejected")
	}
	return printJSON(c, e)
}

func (app *App) EpochConfirmCmd(c *cli.Context) error {
	if err := requireFlags(c, flagEpoch); err != nil {
		return err
	}
	participant, err := singleParticipant(c)
	if err != nil {
		return err
	}

	res, err := app.client.ConfirmCommit(c.String(flagEpoch), participant)
	if err != nil {
		return rpcFailure(err, "confirmation rejected")
	}
	return printJSON(c, res)
}

func (app *App) EpochStatusCmd(c *cli.Context) error {
	if err := requireFlags(c, flagEpoch); err != nil {
		return err
	}
	e, err := app.client.GetEpochStatus(c.String(flagEpoch))
	if err != nil {
		return rpcFailure(err, "unable to fetch epoch")
	}
	return printJSON(c, e)
}

func (app *App) EpochListCmd(c *cli.Context) error {
	list, err := app.client.ListEpochs(coordinator.Status(strings.ToUpper(c.String(flagStatus))))
	if err != nil {
		return rpcFailure(err, "unable to list epochs")
	}
	return printJSON(c, list)
}

func (app *App) CleanupCmd(c *cli.Context) error {
	aborted, err := app.client.CleanupTimeouts()
	if err != nil {
		return rpcFailure(err, "cleanup failed")
	}
	if aborted == nil {
		aborted = []string{}
	}
	return printJSON(c, aborted)
}

func (app *App) WatchCmd(c *cli.Context) error {
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)
	go func() {
		select {
		case <-interrupt:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := app.client.Subscribe(ctx, func(ev events.Event) {
		_ = printJSON(c, ev)
	})
	if err != nil {
		return rpcFailure(err, "event stream failed")
	}
	return nil
}
