// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io/ioutil"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"gitlab.com/jaxnet/smicp/corelog"
	"gitlab.com/jaxnet/smicp/database"
	"gitlab.com/jaxnet/smicp/node"
	"gopkg.in/yaml.v3"
)

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(defaultHomeDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but they variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace", "debug", "info", "warn", "error", "critical":
		return true
	}
	return false
}

// supportedSubsystems returns a sorted slice of the supported subsystems for
// logging purposes.
func supportedSubsystems() []string {
	subsystems := make([]string, 0, len(unitLogs))
	for subsysID := range unitLogs {
		subsystems = append(subsystems, subsysID)
	}

	// Sort the subsystems for stable display.
	sort.Strings(subsystems)
	return subsystems
}

// parseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly.  An appropriate error is returned if anything is
// invalid.
func parseAndSetDebugLevels(debugLevel string, logConfig corelog.Config) error {
	// When the specified string doesn't have any delimters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		if !validLogLevel(debugLevel) {
			return fmt.Errorf("the specified debug level [%v] is invalid", debugLevel)
		}

		setLogLevels(debugLevel, logConfig)
		setLoggers()
		return nil
	}

	// Validate every pair before touching the loggers.
	levels := make(map[string]string)
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			return fmt.Errorf("the specified debug level contains an invalid "+
				"subsystem/level pair [%v]", logLevelPair)
		}

		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]
		if _, exists := unitLogs[subsysID]; !exists {
			return fmt.Errorf("the specified subsystem [%v] is invalid -- "+
				"supported subsytems %v", subsysID, supportedSubsystems())
		}
		if !validLogLevel(logLevel) {
			return fmt.Errorf("the specified debug level [%v] is invalid", logLevel)
		}
		levels[subsysID] = logLevel
	}

	// Units not named keep the default level.
	setLogLevels(defaultLogLevel, logConfig)
	for subsysID, logLevel := range levels {
		setLogLevel(subsysID, logLevel, logConfig)
	}
	setLoggers()
	return nil
}

// validDBType returns whether or not dbType is a supported database type.
func validDBType(dbType string) bool {
	for _, knownType := range database.SupportedDrivers() {
		if dbType == knownType {
			return true
		}
	}
	return false
}

// removeDuplicateAddresses returns a new slice with all duplicate entries in
// addrs removed.
func removeDuplicateAddresses(addrs []string) []string {
	result := make([]string, 0, len(addrs))
	seen := map[string]struct{}{}
	for _, val := range addrs {
		if _, ok := seen[val]; !ok {
			result = append(result, val)
			seen[val] = struct{}{}
		}
	}
	return result
}

// normalizeAddress returns addr with the passed default port appended if
// there is not already a port specified.
func normalizeAddress(addr, defaultPort string) string {
	_, _, err := net.SplitHostPort(addr)
	if err != nil {
		return net.JoinHostPort(addr, defaultPort)
	}
	return addr
}

// normalizeAddresses returns a new slice with all the passed server addresses
// normalized with the given default port, and all duplicates removed.
func normalizeAddresses(addrs []string, defaultPort string) []string {
	for i, addr := range addrs {
		addrs[i] = normalizeAddress(addr, defaultPort)
	}

	return removeDuplicateAddresses(addrs)
}

// fileExists reports whether the named file or directory exists.
func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// LoadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
// 	1) Start with a default config with sane settings
// 	2) Pre-parse the command line to check for an alternative config file
// 	3) Load configuration file overwriting defaults with any specified options
// 	4) Parse CLI options and overwrite/add any specified options
//
// The above results in smicpd functioning properly without any config settings
// while still allowing the user to override settings with config files and
// command line options.  Command line options always take precedence.
func LoadConfig() (*node.Config, []string, error) {
	cfg, remainingArgs, err := loadConfig(os.Args[1:])
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, err)
			os.Exit(0)
		}

		appName := strings.TrimSuffix(filepath.Base(os.Args[0]), filepath.Ext(os.Args[0]))
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintf(os.Stderr, "Use %s -h to show usage\n", appName)
		return nil, nil, err
	}

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}
	return cfg, remainingArgs, nil
}

func loadConfig(args []string) (*node.Config, []string, error) {
	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = defaultHomeDir
	}
	cfg := defaultConfig(dataDir)

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.  Any errors aside from the
	// help message error can be ignored here since they will be caught by
	// the final parse below.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	if _, err := preParser.ParseArgs(args); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			return nil, nil, err
		}
	}
	if preCfg.ShowVersion {
		return &preCfg, nil, nil
	}

	// The default config file follows --datadir.
	if preCfg.ConfigFile == cfg.ConfigFile && preCfg.DataDir != cfg.DataDir {
		cfg.DataDir = preCfg.DataDir
		preCfg.ConfigFile = filepath.Join(preCfg.DataDir, defaultConfigFilename)
	}

	configFile := cleanAndExpandPath(preCfg.ConfigFile)
	if !fileExists(configFile) {
		if err := createDefaultConfigFile(configFile, cfg); err != nil {
			return nil, nil, errors.Wrap(err, "unable to create a default config file")
		}
	}

	if err := decodeConfigFile(configFile, &cfg); err != nil {
		return nil, nil, err
	}
	cfg.ConfigFile = configFile

	// Parse command line options again to ensure they take precedence.
	parser := flags.NewParser(&cfg, flags.HelpFlag|flags.PassDoubleDash)
	remainingArgs, err := parser.ParseArgs(args)
	if err != nil {
		return nil, nil, err
	}

	cfg.DataDir = cleanAndExpandPath(cfg.DataDir)
	if err = os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		// Show a nicer error message if it's because a symlink is
		// linked to a directory that does not exist (probably because
		// it's not mounted).
		if e, ok := err.(*os.PathError); ok && os.IsExist(err) {
			if link, lerr := os.Readlink(e.Path); lerr == nil {
				err = fmt.Errorf("is symlink %s -> %s mounted?", e.Path, link)
			}
		}
		return nil, nil, errors.Wrap(err, "failed to create home directory")
	}

	if cfg.LogDir == "" {
		cfg.LogDir = filepath.Join(cfg.DataDir, defaultLogDirname)
	}
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)

	if cfg.DebugLevel != "show" {
		cfg.LogConfig.Directory = cfg.LogDir
		if err = parseAndSetDebugLevels(cfg.DebugLevel, cfg.LogConfig); err != nil {
			return nil, nil, err
		}
	}

	if !validDBType(cfg.DbType) {
		return nil, nil, fmt.Errorf("the specified database type [%v] is invalid -- "+
			"supported types %v", cfg.DbType, database.SupportedDrivers())
	}

	// Validate profile port number
	if cfg.Profile != "" {
		profilePort, err := strconv.Atoi(cfg.Profile)
		if err != nil || profilePort < 1024 || profilePort > 65535 {
			return nil, nil, errors.New("the profile port must be between 1024 and 65535")
		}
	}

	if cfg.Metrics.Enable && cfg.Metrics.Interval <= 0 {
		return nil, nil, fmt.Errorf("the metrics interval must be positive -- parsed [%v]",
			cfg.Metrics.Interval)
	}

	if cfg.Protocol.ReapInterval < 0 {
		return nil, nil, fmt.Errorf("the reap interval may not be negative -- parsed [%v]",
			cfg.Protocol.ReapInterval)
	}

	if _, err = cfg.Protocol.ValidatorSet(); err != nil {
		return nil, nil, errors.Wrap(err, "invalid validator set")
	}

	// --rpcuser and --rpclimituser must not collide, the caller identity
	// is taken from the user name.
	if cfg.RPC.User != "" && cfg.RPC.User == cfg.RPC.LimitUser {
		return nil, nil, errors.New("--rpcuser and --rpclimituser must not specify the same username")
	}
	cfg.RPC.ListenerAddresses = normalizeAddresses(cfg.RPC.ListenerAddresses, defaultRPCPort)

	return &cfg, remainingArgs, nil
}

// decodeConfigFile overwrites cfg with the values set in the yaml file.
func decodeConfigFile(path string, cfg *node.Config) error {
	ext := filepath.Ext(path)
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("invalid config file extension %q, must be .yaml", ext)
	}

	cfgFile, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "unable to open config file")
	}
	defer cfgFile.Close()

	if err = yaml.NewDecoder(cfgFile).Decode(cfg); err != nil {
		return errors.Wrapf(err, "unable to decode config file %s", path)
	}
	return nil
}

const randomBytesLen = 20

// createDefaultConfigFile writes cfg to the given destination path with a
// randomly generated RPC username and password.
func createDefaultConfigFile(destinationPath string, cfg node.Config) error {
	// Create the destination directory if it does not exists
	err := os.MkdirAll(filepath.Dir(destinationPath), 0o700)
	if err != nil {
		return err
	}

	randomBytes := make([]byte, randomBytesLen)
	if _, err = rand.Read(randomBytes); err != nil {
		return err
	}
	cfg.RPC.User = base64.StdEncoding.EncodeToString(randomBytes)

	if _, err = rand.Read(randomBytes); err != nil {
		return err
	}
	cfg.RPC.Password = base64.StdEncoding.EncodeToString(randomBytes)

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	return ioutil.WriteFile(destinationPath, data, 0o600)
}
