// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpc

import (
	"net"

	"github.com/pkg/errors"
)

const (
	defaultMaxClients        = 10
	defaultMaxWebsockets     = 25
	defaultMaxConcurrentReqs = 20
)

// Config is a descriptor containing the RPC Server configuration.
type Config struct {
	ListenerAddresses []string `yaml:"listeners" long:"rpclisten" description:"Add an interface/port to listen for RPC connections"`
	MaxClients        int      `yaml:"maxclients" long:"rpcmaxclients" description:"Max number of RPC clients for standard connections"`
	User              string   `yaml:"user" long:"rpcuser" description:"Username for RPC connections"`
	Password          string   `yaml:"password" long:"rpcpass" default-mask:"-" description:"Password for RPC connections"`
	Disable           bool     `yaml:"disable" long:"norpc" description:"Disable built-in RPC Server"`
	LimitUser         string   `yaml:"limit_user" long:"rpclimituser" description:"Username for limited RPC connections"`
	LimitPass         string   `yaml:"limit_pass" long:"rpclimitpass" default-mask:"-" description:"Password for limited RPC connections"`
	MaxConcurrentReqs int      `yaml:"rpc_max_concurrent_reqs" long:"rpcmaxconcurrentreqs" description:"Max number of concurrent RPC requests that may be processed concurrently"`
	MaxWebsockets     int      `yaml:"rpc_max_websockets" long:"rpcmaxwebsockets" description:"Max number of RPC websocket connections"`

	// Listeners defines a slice of listeners for which the RPC Server will
	// take ownership of and accept connections.  Since the RPC Server takes
	// ownership of these listeners, they will be closed when the RPC Server
	// is stopped.
	Listeners []net.Listener `yaml:"-"`
}

func (cfg *Config) setDefaults() {
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = defaultMaxClients
	}
	if cfg.MaxWebsockets <= 0 {
		cfg.MaxWebsockets = defaultMaxWebsockets
	}
	if cfg.MaxConcurrentReqs <= 0 {
		cfg.MaxConcurrentReqs = defaultMaxConcurrentReqs
	}
}

// SetupRPCListeners opens a TCP listener for every configured address.
// Listeners opened before a failure are closed again.
func (cfg *Config) SetupRPCListeners() ([]net.Listener, error) {
	listeners := make([]net.Listener, 0, len(cfg.ListenerAddresses))
	for _, addr := range cfg.ListenerAddresses {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			closeAll(listeners)
			return nil, errors.Wrapf(err, "invalid rpc listener %q", addr)
		}
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			closeAll(listeners)
			return nil, errors.Wrapf(err, "unable to listen on %s", addr)
		}
		listeners = append(listeners, listener)
	}

	cfg.Listeners = listeners
	return listeners, nil
}

func closeAll(listeners []net.Listener) {
	for _, l := range listeners {
		_ = l.Close()
	}
}
