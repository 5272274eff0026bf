// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcclient_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/jaxnet/smicp/database/memdb"
	"gitlab.com/jaxnet/smicp/network/rpc"
	"gitlab.com/jaxnet/smicp/network/rpcclient"
	"gitlab.com/jaxnet/smicp/node"
	"gitlab.com/jaxnet/smicp/node/coordinator"
	"gitlab.com/jaxnet/smicp/node/merkle"
	"gitlab.com/jaxnet/smicp/node/validators"
	"gitlab.com/jaxnet/smicp/types/events"
	"gitlab.com/jaxnet/smicp/types/rpcjson"
)

type testNode struct {
	server  *rpc.Server
	http    *httptest.Server
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

	n.server = rpc.NewServer(&rpc.Config{User: "admin", Password: "secret"}, ctl)
	ctl.Events().Attach(n.server)
	n.http = httptest.NewServer(n.server.Handler())
	t.Cleanup(n.http.Close)
	return n
}

func (n *testNode) client(user, pass string) *rpcclient.Client {
	return rpcclient.New(&rpcclient.ConnConfig{Host: n.http.URL, User: user, Pass: pass})
}

func TestClientRelayFlow(t *testing.T) {
	n := startNode(t)
	c := n.client("admin", "secret")
	defer c.Shutdown()

	batch, err := merkle.CreateBatch("side-a", 3, 6)
	require.NoError(t, err)
	sigs := []validators.Signature{
		n.signers[1].SignAnchor("side-a", 3, batch.Root),
		n.signers[2].SignAnchor("side-a", 3, batch.Root),
	}

	a, err := c.AnchorRoot("side-a", 3, batch.Root, sigs)
	require.NoError(t, err)
	assert.Equal(t, "admin", a.Submitter)

	list, err := c.ListAnchors("")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	got, err := c.GetAnchoredRoot("side-a", 3)
	require.NoError(t, err)
	assert.Equal(t, batch.Root, got.Root)

	_, err = c.SetTrustedRoot("side-a", 3, batch.Root, "anchored")
	require.NoError(t, err)
	roots, err := c.GetTrustedRoots("side-a")
	require.NoError(t, err)
	require.Len(t, roots, 1)

	items := make([]rpcjson.VerifyTransactionCmd, 0, 2)
	for _, i := range []int{0, 5} {
		proof, err := batch.GenerateProof(i)
		require.NoError(t, err)
		tx, err := batch.Transaction(i)
		require.NoError(t, err)
		items = append(items, rpcjson.VerifyTransactionCmd{
			SourceChain: "side-a", BlockNumber: 3, Transaction: tx, Proof: *proof,
		})
	}

	rec, err := c.VerifyTransaction("side-a", 3, items[0].Transaction, items[0].Proof)
	require.NoError(t, err)
	assert.Equal(t, "admin", rec.Verifier)

	// Item 1 points at a block without a trusted root.
	items[1].BlockNumber = 4
	results, err := c.VerifyTransactionBatch(items)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.NotNil(t, results[0].Record)
	assert.Equal(t, rec.TransactionHash, results[0].Record.TransactionHash)
	require.NotNil(t, results[1].Error)
	assert.Equal(t, "NoTrustedRoot", results[1].Error.Data.Code)

	stored, err := c.GetVerification(rec.TransactionHash)
	require.NoError(t, err)
	assert.Equal(t, rec.SourceChain, stored.SourceChain)
}

func TestClientValidatorAdmin(t *testing.T) {
	n := startNode(t)
	c := n.client("admin", "secret")

	extra, err := validators.NewSigner()
	require.NoError(t, err)

	added, err := c.AddValidator("", extra.PubKeyHex())
	require.NoError(t, err)
	assert.Equal(t, extra.ID(), added.ID)

	info, err := c.SetRequiredSignatures(3)
	require.NoError(t, err)
	assert.Equal(t, 3, info.RequiredSignatures)

	info, err = c.RemoveValidator(extra.ID())
	require.NoError(t, err)
	assert.Len(t, info.Validators, 3)

	info, err = c.GetValidators()
	require.NoError(t, err)
	assert.Equal(t, 3, info.RequiredSignatures)
}

func TestClientEpochFlow(t *testing.T) {
	n := startNode(t)
	c := n.client("admin", "secret")

	e, err := c.BeginEpoch("swap", []string{"A", "B"}, 2*time.Minute, map[string]string{"pair": "a/b"})
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, e.Timeout)
	assert.Equal(t, "main", e.Coordinator)

	for _, p := range []string{"A", "B"} {
		_, err = c.Prepare("swap", p, "")
		require.NoError(t, err)
	}
	e, err = c.Commit("swap")
	require.NoError(t, err)
	assert.Equal(t, coordinator.StatusCommitted, e.Status)

	_, err = c.ConfirmCommit("swap", "A")
	require.NoError(t, err)
	res, err := c.ConfirmCommit("swap", "B")
	require.NoError(t, err)
	assert.True(t, res.AllConfirmed)

	e, err = c.GetEpochStatus("swap")
	require.NoError(t, err)
	assert.Equal(t, coordinator.StatusCompleted, e.Status)

	_, err = c.Abort("swap", "late")
	require.Error(t, err)
	rpcErr, ok := err.(*rpcjson.RPCError)
	require.True(t, ok)
	assert.Equal(t, "WrongState", rpcErr.Data.Code)

	epochs, err := c.ListEpochs(coordinator.StatusCompleted)
	require.NoError(t, err)
	assert.Len(t, epochs, 1)

	aborted, err := c.CleanupTimeouts()
	require.NoError(t, err)
	assert.Empty(t, aborted)
}

func TestClientErrors(t *testing.T) {
	n := startNode(t)

	_, err := n.client("admin", "wrong").GetValidators()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "status code: 401"))

	c := n.client("admin", "secret")
	_, err = c.RawRequest("noSuchMethod", nil)
	require.Error(t, err)
	rpcErr, ok := err.(*rpcjson.RPCError)
	require.True(t, ok)
	assert.Equal(t, rpcjson.ErrRPCMethodNotFound.Code, rpcErr.Code)

	c.Shutdown()
	_, err = c.GetValidators()
	assert.Equal(t, rpcclient.ErrClientShutdown, err)
}

func TestClientSubscribe(t *testing.T) {
	n := startNode(t)
	c := n.client("admin", "secret")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan events.Event, 4)
	done := make(chan error, 1)
	go func() {
		done <- c.Subscribe(ctx, func(ev events.Event) {
			received <- ev
		})
	}()

	require.Eventually(t, func() bool {
		return n.server.WebsocketClients() == 1
	}, time.Second, 10*time.Millisecond)

	_, err := c.BeginEpoch("watched", []string{"A"}, time.Minute, nil)
	require.NoError(t, err)

	select {
	case ev := <-received:
		assert.Equal(t, events.EpochBegun, ev.Name)
		assert.Equal(t, "epoch~watched", ev.Key)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not stop")
	}
}
