// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2017 The Decred developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"sync"

	"github.com/rs/zerolog"
	"gitlab.com/jaxnet/smicp/corelog"
	"gitlab.com/jaxnet/smicp/database"
	"gitlab.com/jaxnet/smicp/network/rpc"
	"gitlab.com/jaxnet/smicp/node"
	"gitlab.com/jaxnet/smicp/node/anchor"
	"gitlab.com/jaxnet/smicp/node/coordinator"
	"gitlab.com/jaxnet/smicp/node/merkle"
	"gitlab.com/jaxnet/smicp/node/metrics"
	"gitlab.com/jaxnet/smicp/node/verifier"
)

const (
	logUnitANCR = "ANCR"
	logUnitBCDB = "BCDB"
	logUnitCOOR = "COOR"
	logUnitMRKL = "MRKL"
	logUnitMTRC = "MTRC"
	logUnitNODE = "NODE"
	logUnitRPCS = "RPCS"
	logUnitSMCP = "SMCP"
	logUnitVRFY = "VRFY"
)

var (
	// Log is the logger of the daemon itself.
	Log = corelog.New(logUnitSMCP, corelog.DefaultLevel, corelog.Config{}.Default())

	logMtx sync.Mutex

	// unitLogs maps each subsystem identifier to its logger.
	unitLogs = map[string]zerolog.Logger{
		logUnitANCR: corelog.Disabled,
		logUnitBCDB: corelog.Disabled,
		logUnitCOOR: corelog.Disabled,
		logUnitMRKL: corelog.Disabled,
		logUnitMTRC: corelog.Disabled,
		logUnitNODE: corelog.Disabled,
		logUnitRPCS: corelog.Disabled,
		logUnitSMCP: Log,
		logUnitVRFY: corelog.Disabled,
	}
)

// setLoggers hands every package its subsystem logger.
func setLoggers() {
	logMtx.Lock()
	defer logMtx.Unlock()

	anchor.UseLogger(unitLogs[logUnitANCR])
	database.UseLogger(unitLogs[logUnitBCDB])
	coordinator.UseLogger(unitLogs[logUnitCOOR])
	merkle.UseLogger(unitLogs[logUnitMRKL])
	metrics.UseLogger(unitLogs[logUnitMTRC])
	node.UseLogger(unitLogs[logUnitNODE])
	rpc.UseLogger(unitLogs[logUnitRPCS])
	verifier.UseLogger(unitLogs[logUnitVRFY])
	Log = unitLogs[logUnitSMCP]
}

// setLogLevel sets the logging level for provided subsystem.  Invalid
// subsystems are ignored.
func setLogLevel(subsystemID, logLevel string, logConfig corelog.Config) {
	logMtx.Lock()
	defer logMtx.Unlock()

	if _, ok := unitLogs[subsystemID]; !ok {
		return
	}

	level, err := corelog.ParseLevel(logLevel)
	if err != nil {
		level = corelog.DefaultLevel
	}
	unitLogs[subsystemID] = corelog.New(subsystemID, level, logConfig)
}

// setLogLevels sets the log level for all subsystem loggers to the passed
// level.
func setLogLevels(logLevel string, logConfig corelog.Config) {
	for _, subsystemID := range supportedSubsystems() {
		setLogLevel(subsystemID, logLevel, logConfig)
	}
}
