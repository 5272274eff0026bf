// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime/pprof"

	"gitlab.com/jaxnet/smicp/config"
	"gitlab.com/jaxnet/smicp/node"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "0.1.0-dev"

func main() {
	// Work around defer not working after os.Exit()
	if err := smicpdMain(); err != nil {
		fmt.Println("FATAL:", err)
		os.Exit(1)
	}
}

// smicpdMain is the real main function for smicpd.  It is necessary to work
// around the fact that deferred functions do not run when os.Exit() is called.
func smicpdMain() error {
	// Load configuration and parse command line.  This function also
	// initializes logging and configures it accordingly.
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.ShowVersion {
		fmt.Println("smicpd version", version)
		return nil
	}

	defer config.Log.Info().Msg("Shutdown complete")

	// Show version at startup.
	config.Log.Info().Msgf("Version %s", version)

	// Enable http profiling server if requested.
	if cfg.Profile != "" {
		go func() {
			listenAddr := net.JoinHostPort("", cfg.Profile)
			config.Log.Info().Msgf("Profile server listening on %s", listenAddr)
			profileRedirect := http.RedirectHandler("/debug/pprof",
				http.StatusSeeOther)
			http.Handle("/", profileRedirect)
			if err := http.ListenAndServe(listenAddr, nil); err != nil {
				config.Log.Error().Err(err).Msg("listen and serve failed")
			}
		}()
	}

	// Write cpu profile if requested.
	if cfg.CPUProfile != "" {
		f, err := os.Create(cfg.CPUProfile)
		if err != nil {
			config.Log.Error().Err(err).Msg("Unable to create cpu profile")
			return err
		}
		if err = pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return err
		}
		defer f.Close()
		defer pprof.StopCPUProfile()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = withInterrupt(ctx, config.Log.With().Str("ctx", "interruptListener").Logger())

	controller, err := node.NewController(cfg)
	if err != nil {
		config.Log.Error().Err(err).Msg("Unable to init node")
		return err
	}

	if err := controller.Run(ctx); err != nil {
		config.Log.Error().Err(err).Msg("Node stopped with error")
		return err
	}
	return nil
}
