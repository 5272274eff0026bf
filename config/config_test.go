// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/jaxnet/smicp/corelog"
	"gitlab.com/jaxnet/smicp/node/validators"
	"gopkg.in/yaml.v3"
)

func TestLoadConfigCreatesDefaultFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_DIR", dir)

	cfg, _, err := loadConfig(nil)
	require.NoError(t, err)

	path := filepath.Join(dir, defaultConfigFilename)
	assert.Equal(t, path, cfg.ConfigFile)
	assert.True(t, fileExists(path))
	assert.Equal(t, defaultDBType, cfg.DbType)
	assert.Equal(t, []string{"127.0.0.1:" + defaultRPCPort}, cfg.RPC.ListenerAddresses)
	assert.Equal(t, defaultReapInterval, cfg.Protocol.ReapInterval)
	assert.Equal(t, filepath.Join(dir, defaultLogDirname), cfg.LogDir)
	assert.NotEmpty(t, cfg.RPC.User)
	assert.NotEmpty(t, cfg.RPC.Password)

	// The generated credentials persist across loads.
	again, _, err := loadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, cfg.RPC.User, again.RPC.User)
	assert.Equal(t, cfg.RPC.Password, again.RPC.Password)
}

func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_DIR", dir)

	signer, err := validators.NewSigner()
	require.NoError(t, err)

	file := filepath.Join(dir, "custom.yaml")
	raw := fmt.Sprintf(`
db_type: memdb
rpc:
  listeners: ["0.0.0.0", "0.0.0.0:7447", "127.0.0.1:9000"]
  user: admin
  password: secret
protocol:
  node_id: file-node
  reap_interval: 30s
  required_signatures: 1
  validators:
    - pubkey: %s
`, signer.PubKeyHex())
	require.NoError(t, ioutil.WriteFile(file, []byte(raw), 0600))

	cfg, rest, err := loadConfig([]string{"-C", file, "--nodeid", "flag-node", "--dbtype", "badger", "extra"})
	require.NoError(t, err)

	assert.Equal(t, "badger", cfg.DbType)
	assert.Equal(t, "flag-node", cfg.Protocol.NodeID)
	assert.Equal(t, 30*time.Second, cfg.Protocol.ReapInterval)
	assert.Equal(t, []string{"0.0.0.0:7447", "127.0.0.1:9000"}, cfg.RPC.ListenerAddresses)
	assert.Equal(t, "admin", cfg.RPC.User)
	require.Len(t, cfg.Protocol.Validators, 1)
	assert.Equal(t, signer.PubKeyHex(), cfg.Protocol.Validators[0].PubKey)
	assert.Equal(t, []string{"extra"}, rest)
}

func TestLoadConfigDataDirFlag(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	dir := t.TempDir()

	cfg, _, err := loadConfig([]string{"-b", dir})
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, defaultConfigFilename), cfg.ConfigFile)
	assert.True(t, fileExists(cfg.ConfigFile))
}

func TestLoadConfigRejects(t *testing.T) {
	signer, err := validators.NewSigner()
	require.NoError(t, err)

	tests := []struct {
		name string
		file string
		args []string
	}{
		{name: "unknown db", args: []string{"--dbtype", "sqlite"}},
		{name: "bad level", args: []string{"-d", "loud"}},
		{name: "bad flag", args: []string{"--nosuchflag"}},
		{name: "same users", args: []string{"--rpcuser", "a", "--rpclimituser", "a"}},
		{name: "negative reap", args: []string{"--reapinterval=-1s"}},
		{name: "profile port", args: []string{"--profile", "80"}},
		{name: "metrics interval", args: []string{"--metrics", "--metricsinterval", "0"}},
		{
			name: "quorum above set",
			file: fmt.Sprintf("protocol:\n  required_signatures: 2\n  validators:\n    - pubkey: %s\n",
				signer.PubKeyHex()),
		},
		{name: "bad pubkey", file: "protocol:\n  validators:\n    - pubkey: zz\n"},
		{name: "bad yaml", file: "rpc: [\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			t.Setenv("DATA_DIR", dir)
			if tc.file != "" {
				path := filepath.Join(dir, defaultConfigFilename)
				require.NoError(t, ioutil.WriteFile(path, []byte(tc.file), 0600))
			}
			_, _, err := loadConfig(tc.args)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigRejectsExtension(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_DIR", dir)

	path := filepath.Join(dir, "smicpd.toml")
	require.NoError(t, ioutil.WriteFile(path, []byte("db_type = 'memdb'"), 0600))
	_, _, err := loadConfig([]string{"-C", path})
	assert.Error(t, err)
}

func TestParseAndSetDebugLevels(t *testing.T) {
	logCfg := corelog.Config{DisableConsole: true}

	require.NoError(t, parseAndSetDebugLevels("debug", logCfg))
	require.NoError(t, parseAndSetDebugLevels("RPCS=trace,NODE=warn", logCfg))

	assert.Error(t, parseAndSetDebugLevels("loud", logCfg))
	assert.Error(t, parseAndSetDebugLevels("RPCS,NODE=info", logCfg))
	assert.Error(t, parseAndSetDebugLevels("FOO=debug,RPCS=info", logCfg))
	assert.Error(t, parseAndSetDebugLevels("RPCS=loud", logCfg))
}

func TestDefaultConfigRoundTrip(t *testing.T) {
	cfg := defaultConfig("/tmp/smicpd")
	data, err := yaml.Marshal(&cfg)
	require.NoError(t, err)
	assert.Contains(t, string(data), "reap_interval: 10s")

	decoded := defaultConfig("")
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, cfg.DataDir, decoded.DataDir)
	assert.Equal(t, cfg.Protocol.ReapInterval, decoded.Protocol.ReapInterval)
	assert.Equal(t, cfg.RPC.ListenerAddresses, decoded.RPC.ListenerAddresses)
}

func TestNormalizeAddresses(t *testing.T) {
	got := normalizeAddresses([]string{"localhost", "localhost:7447", "::1", "10.0.0.1:80"}, "7447")
	assert.Equal(t, []string{"localhost:7447", "[::1]:7447", "10.0.0.1:80"}, got)
}
