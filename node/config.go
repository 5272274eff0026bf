// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"time"

	"gitlab.com/jaxnet/smicp/corelog"
	"gitlab.com/jaxnet/smicp/network/rpc"
	"gitlab.com/jaxnet/smicp/node/validators"
)

type Config struct {
	ConfigFile  string `yaml:"-" short:"C" long:"configfile" description:"Path to configuration file"`
	ShowVersion bool   `yaml:"-" short:"V" long:"version" description:"Display version information and exit"`

	DataDir    string         `yaml:"data_dir" short:"b" long:"datadir" description:"Directory to store data"`
	LogDir     string         `yaml:"log_dir" long:"logdir" description:"Directory to log output."`
	DebugLevel string         `yaml:"debug_level" short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	LogConfig  corelog.Config `yaml:"log_config"`
	DbType     string         `yaml:"db_type" long:"dbtype" description:"Database backend {memdb, leveldb, badger}"`
	Profile    string         `yaml:"profile" long:"profile" description:"Enable HTTP profiling on given port -- NOTE port must be between 1024 and 65536"`
	CPUProfile string         `yaml:"cpu_profile" long:"cpuprofile" description:"Write CPU profile to the specified file"`

	RPC      rpc.Config     `yaml:"rpc"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Protocol ProtocolConfig `yaml:"protocol"`
}

type MetricsConfig struct {
	Enable   bool   `yaml:"enable" long:"metrics" description:"Serve prometheus metrics"`
	Interval int    `yaml:"interval" long:"metricsinterval" description:"Seconds between state gauge refreshes"`
	Port     uint16 `yaml:"port" long:"metricsport" description:"Port of the metrics listener"`
}

// ProtocolConfig configures the protocol components.
type ProtocolConfig struct {
	// NodeID is recorded as the coordinator of epochs begun by this node.
	NodeID string `yaml:"node_id" long:"nodeid" description:"Identifier recorded as the coordinator of epochs"`

	// Validators and RequiredSignatures seed the validator set on first
	// start.  A set changed at runtime and persisted takes precedence.
	Validators         []validators.Validator `yaml:"validators"`
	RequiredSignatures int                    `yaml:"required_signatures" long:"requiredsigs" description:"Signatures needed to anchor a root"`

	// ReapInterval is how often timed out epochs are aborted in the
	// background.  Zero disables the reaper.
	ReapInterval time.Duration `yaml:"reap_interval" long:"reapinterval" description:"Interval of the timed out epoch cleanup"`

	// RequireAnchoredRoots rejects trusted roots that differ from the
	// anchored root of the same block.
	RequireAnchoredRoots bool `yaml:"require_anchored_roots" long:"anchoredroots" description:"Only trust roots matching the anchored root"`
}

// ValidatorSet builds the seed set.  It returns nil when no validators are
// configured.
func (cfg *ProtocolConfig) ValidatorSet() (*validators.Set, error) {
	if len(cfg.Validators) == 0 {
		return nil, nil
	}

	members := make([]validators.Validator, 0, len(cfg.Validators))
	for _, v := range cfg.Validators {
		parsed, err := validators.ParseValidator(v.ID, v.PubKey)
		if err != nil {
			return nil, err
		}
		members = append(members, parsed)
	}

	required := cfg.RequiredSignatures
	if required == 0 {
		required = len(members)/2 + 1
	}
	return validators.NewSet(required, members...)
}
