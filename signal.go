// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
)

// interruptSignals defines the signals that trigger a graceful shutdown.
var interruptSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

// withInterrupt returns a context that is cancelled on the first interrupt
// signal.  Repeated signals are only logged so the user knows the shutdown
// is in progress and the process is not hung.
func withInterrupt(parent context.Context, log zerolog.Logger) context.Context {
	ctx, cancel := context.WithCancel(parent)

	interruptChannel := make(chan os.Signal, 1)
	signal.Notify(interruptChannel, interruptSignals...)

	go func() {
		select {
		case sig := <-interruptChannel:
			log.Info().Msg("Received signal " + sig.String() + ". Shutting down...")
			cancel()
		case <-parent.Done():
			signal.Stop(interruptChannel)
			return
		}

		for sig := range interruptChannel {
			log.Info().Msg("Received signal " + sig.String() + ". Already shutting down...")
		}
	}()

	return ctx
}
