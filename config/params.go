// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gitlab.com/jaxnet/smicp/corelog"
	"gitlab.com/jaxnet/smicp/network/rpc"
	"gitlab.com/jaxnet/smicp/node"
)

const (
	appName = "smicpd"

	defaultConfigFilename = appName + ".yaml"
	defaultLogDirname     = "logs"
	defaultLogLevel       = "info"
	defaultDBType         = "leveldb"

	defaultRPCPort           = "7447"
	defaultMaxRPCClients     = 10
	defaultMaxRPCWebsockets  = 25
	defaultMaxRPCConcurrency = 20

	defaultMetricsInterval = 5
	defaultMetricsPort     = 2112

	defaultReapInterval = 10 * time.Second
)

var defaultHomeDir = appDataDir(appName)

// appDataDir returns the per-user directory for the application data.
func appDataDir(app string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}

	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("LOCALAPPDATA"); appData != "" {
			return filepath.Join(appData, strings.Title(app))
		}
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", strings.Title(app))
	}
	return filepath.Join(home, "."+strings.ToLower(app))
}

// defaultConfig returns the configuration used when neither the config file
// nor the command line sets a value.
func defaultConfig(dataDir string) node.Config {
	return node.Config{
		ConfigFile: filepath.Join(dataDir, defaultConfigFilename),
		DataDir:    dataDir,
		DebugLevel: defaultLogLevel,
		LogConfig:  corelog.Config{}.Default(),
		DbType:     defaultDBType,
		RPC: rpc.Config{
			ListenerAddresses: []string{"127.0.0.1:" + defaultRPCPort},
			MaxClients:        defaultMaxRPCClients,
			MaxWebsockets:     defaultMaxRPCWebsockets,
			MaxConcurrentReqs: defaultMaxRPCConcurrency,
		},
		Metrics: node.MetricsConfig{
			Interval: defaultMetricsInterval,
			Port:     defaultMetricsPort,
		},
		Protocol: node.ProtocolConfig{
			ReapInterval: defaultReapInterval,
		},
	}
}
