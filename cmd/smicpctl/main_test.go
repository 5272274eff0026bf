// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"gitlab.com/jaxnet/smicp/cmd/smicpctl/storage"
	"gitlab.com/jaxnet/smicp/database/memdb"
	"gitlab.com/jaxnet/smicp/network/rpc"
	"gitlab.com/jaxnet/smicp/node"
	"gitlab.com/jaxnet/smicp/node/anchor"
	"gitlab.com/jaxnet/smicp/node/coordinator"
	"gitlab.com/jaxnet/smicp/node/merkle"
	"gitlab.com/jaxnet/smicp/node/validators"
	"gitlab.com/jaxnet/smicp/node/verifier"
)

type testNode struct {
	url     string
	signers []*validators.Signer
}

func startNode(t *testing.T) *testNode {
	n := &testNode{}
	cfg := &node.Config{Protocol: node.ProtocolConfig{NodeID: "main", RequiredSignatures: 2}}
	for i := 0; i < 3; i++ {
		s, err := validators.NewSigner()
		require.NoError(t, err)
		n.signers = append(n.signers, s)
		cfg.Protocol.Validators = append(cfg.Protocol.Validators, s.Validator())
	}

	ctl, err := node.New(cfg, memdb.New(), time.Now)
	require.NoError(t, err)

	server := rpc.NewServer(&rpc.Config{User: "admin", Password: "secret"}, ctl)
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	n.url = srv.URL
	return n
}

// run executes the cli against the node and returns what it printed.
func (n *testNode) run(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	cliApp := newCliApp(&App{})
	cliApp.Writer = &out
	cliApp.ErrWriter = ioutil.Discard
	cliApp.ExitErrHandler = func(*cli.Context, error) {}

	base := []string{"smicpctl", "--rpc-host", n.url, "--rpc-user", "admin", "--rpc-pass", "secret"}
	err := cliApp.Run(append(base, args...))
	return strings.TrimSpace(out.String()), err
}

func (n *testNode) mustRun(t *testing.T, args ...string) string {
	out, err := n.run(t, args...)
	require.NoError(t, err, "smicpctl %s", strings.Join(args, " "))
	return out
}

func TestRelayFlow(t *testing.T) {
	n := startNode(t)
	dir := t.TempDir()
	dataFile := filepath.Join(dir, "batch.csv")

	root := n.mustRun(t, "--data-file", dataFile, "batch", "--chain", "side-a", "--block", "3", "--count", "6")
	expected, err := merkle.CreateBatch("side-a", 3, 6)
	require.NoError(t, err)
	assert.Equal(t, expected.Root.String(), root)

	var sigArgs []string
	for _, s := range n.signers[:2] {
		sig := n.mustRun(t, "-k", s.PrivKeyHex(), "sign-root", "--chain", "side-a", "--block", "3", "--root", root)
		assert.True(t, strings.HasPrefix(sig, s.ID()+":"))
		sigArgs = append(sigArgs, "--sig", sig)
	}

	args := append([]string{"anchor", "--chain", "side-a", "--block", "3", "--root", root}, sigArgs...)
	var a anchor.Anchor
	require.NoError(t, json.Unmarshal([]byte(n.mustRun(t, args...)), &a))
	assert.Equal(t, "admin", a.Submitter)
	assert.Len(t, a.Signers, 2)

	var tr verifier.TrustedRoot
	out := n.mustRun(t, "trust", "--chain", "side-a", "--block", "3", "--root", root, "--proof", "anchored")
	require.NoError(t, json.Unmarshal([]byte(out), &tr))
	assert.Equal(t, "anchored", tr.RelayProof)

	var proof merkle.Proof
	require.NoError(t, json.Unmarshal([]byte(n.mustRun(t, "--data-file", dataFile, "prove", "--index", "4")), &proof))
	assert.True(t, proof.Verify(expected.Root))

	var rec verifier.VerificationRecord
	out = n.mustRun(t, "--data-file", dataFile, "verify", "--index", "2")
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, "side-a", rec.SourceChain)

	report := filepath.Join(dir, "report.csv")
	n.mustRun(t, "--data-file", dataFile, "verify", "--all", "--out", report)
	rows, err := storage.NewCSVStorage(report).FetchVerifications()
	require.NoError(t, err)
	require.Len(t, rows, 6)
	for _, row := range rows {
		assert.True(t, row.Verified, row.Error)
	}

	var list []anchor.Anchor
	require.NoError(t, json.Unmarshal([]byte(n.mustRun(t, "anchors", "list", "--chain", "side-a")), &list))
	assert.Len(t, list, 1)
}

func TestVerifyWithoutTrustedRoot(t *testing.T) {
	n := startNode(t)
	dir := t.TempDir()
	dataFile := filepath.Join(dir, "batch.csv")
	report := filepath.Join(dir, "report.csv")

	n.mustRun(t, "--data-file", dataFile, "batch", "--chain", "side-b", "--block", "1", "--count", "2")
	n.mustRun(t, "--data-file", dataFile, "verify", "--all", "--out", report)

	rows, err := storage.NewCSVStorage(report).FetchVerifications()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.False(t, rows[0].Verified)
	assert.True(t, strings.HasPrefix(rows[0].Error, "NoTrustedRoot"))

	_, err = n.run(t, "--data-file", dataFile, "verify", "--index", "0")
	assert.Error(t, err)
}

func TestEpochFlow(t *testing.T) {
	n := startNode(t)

	var e coordinator.Epoch
	out := n.mustRun(t, "epoch", "begin", "--epoch", "swap", "-p", "A", "-p", "B",
		"--timeout", "2m", "--meta", "pair=a/b")
	require.NoError(t, json.Unmarshal([]byte(out), &e))
	assert.Equal(t, coordinator.StatusPreparing, e.Status)
	assert.Equal(t, "a/b", e.Metadata["pair"])

	n.mustRun(t, "epoch", "prepare", "--epoch", "swap", "-p", "A")
	n.mustRun(t, "epoch", "prepare", "--epoch", "swap", "-p", "B", "--data", "ready")
	n.mustRun(t, "epoch", "commit", "--epoch", "swap")
	n.mustRun(t, "epoch", "confirm", "--epoch", "swap", "-p", "A")
	n.mustRun(t, "epoch", "confirm", "--epoch", "swap", "-p", "B")

	require.NoError(t, json.Unmarshal([]byte(n.mustRun(t, "epoch", "status", "--epoch", "swap")), &e))
	assert.Equal(t, coordinator.StatusCompleted, e.Status)

	var list []coordinator.Epoch
	require.NoError(t, json.Unmarshal([]byte(n.mustRun(t, "epoch", "list", "--status", "completed")), &list))
	assert.Len(t, list, 1)

	_, err := n.run(t, "epoch", "abort", "--epoch", "swap")
	assert.Error(t, err)

	assert.Equal(t, "[]", n.mustRun(t, "cleanup"))
}

func TestValidatorAdmin(t *testing.T) {
	n := startNode(t)

	var key keyPair
	require.NoError(t, json.Unmarshal([]byte(n.mustRun(t, "keygen")), &key))
	assert.NotEmpty(t, key.SecretKey)

	var v validators.Validator
	require.NoError(t, json.Unmarshal([]byte(n.mustRun(t, "validators", "add", "--pubkey", key.PubKey)), &v))
	assert.Equal(t, key.ID, v.ID)

	var info anchor.ValidatorSetInfo
	require.NoError(t, json.Unmarshal([]byte(n.mustRun(t, "validators", "quorum", "--required", "4")), &info))
	assert.Equal(t, 4, info.RequiredSignatures)

	_, err := n.run(t, "validators", "remove", "--id", key.ID)
	assert.Error(t, err, "removing would break the quorum")

	require.NoError(t, json.Unmarshal([]byte(n.mustRun(t, "validators", "list")), &info))
	assert.Len(t, info.Validators, 4)
}

func TestArgumentErrors(t *testing.T) {
	n := startNode(t)

	_, err := n.run(t, "anchor", "--chain", "side-a", "--block", "1", "--root", "zz", "--sig", "a:b")
	assert.Error(t, err)

	_, err = n.run(t, "trust", "--chain", "side-a")
	assert.Error(t, err)

	_, err = n.run(t, "sign-root", "--chain", "side-a", "--block", "1", "--root", strings.Repeat("00", 32))
	assert.Error(t, err, "no secret key")

	_, err = n.run(t, "epoch", "prepare", "--epoch", "x", "-p", "A", "-p", "B")
	assert.Error(t, err)

	_, err = n.run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "validators", "list")
	assert.Error(t, err)
}

func TestParseHelpers(t *testing.T) {
	assert.Equal(t, validators.Signature{Validator: "v1", Signature: "abcd"}, parseSignature("v1:abcd"))
	assert.Equal(t, validators.Signature{Signature: "abcd"}, parseSignature("abcd"))

	meta, err := parseMetadata([]string{"a=1", "b=x=y"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "x=y"}, meta)

	_, err = parseMetadata([]string{"novalue"})
	assert.Error(t, err)
}

func TestParseConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smicpctl.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte("rpc:\n  host: node:7447\n  user: op\n  timeout: 5s\n"), 0600))

	cfg, err := parseConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "node:7447", cfg.RPC.Host)
	assert.Equal(t, 5*time.Second, cfg.RPC.Timeout)
	assert.Equal(t, "./batch.csv", cfg.DataFile)
}
