// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/jaxnet/smicp/database/memdb"
	"gitlab.com/jaxnet/smicp/node/coordinator"
	"gitlab.com/jaxnet/smicp/node/merkle"
	"gitlab.com/jaxnet/smicp/node/validators"
	"gitlab.com/jaxnet/smicp/types/coreerr"
	"gitlab.com/jaxnet/smicp/types/events"
)

type fakeClock struct {
	mtx sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mtx.Lock()
	c.now = c.now.Add(d)
	c.mtx.Unlock()
}

type harness struct {
	ctl     *Controller
	clock   *fakeClock
	signers []*validators.Signer
	rec     *events.Recorder
}

func newHarness(t *testing.T, anchoredOnly bool) *harness {
	h := &harness{
		clock: &fakeClock{now: time.Date(2020, 9, 1, 12, 0, 0, 0, time.UTC)},
		rec:   &events.Recorder{},
	}
	cfg := &Config{Protocol: ProtocolConfig{
		NodeID:               "main",
		RequiredSignatures:   2,
		RequireAnchoredRoots: anchoredOnly,
	}}
	for i := 0; i < 3; i++ {
		s, err := validators.NewSigner()
		require.NoError(t, err)
		h.signers = append(h.signers, s)
		cfg.Protocol.Validators = append(cfg.Protocol.Validators,
			validators.Validator{PubKey: s.PubKeyHex()})
	}

	var err error
	h.ctl, err = New(cfg, memdb.New(), h.clock.Now)
	require.NoError(t, err)
	h.ctl.Events().Attach(h.rec)
	return h
}

func TestCrossChainFlow(t *testing.T) {
	h := newHarness(t, true)
	ctl := h.ctl

	batch, err := merkle.CreateBatch("sidechain-a", 42, 8)
	require.NoError(t, err)
	sigs := []validators.Signature{
		h.signers[0].SignAnchor("sidechain-a", 42, batch.Root),
		h.signers[2].SignAnchor("sidechain-a", 42, batch.Root),
	}

	a, err := ctl.AnchorRoot("relayer-1", "sidechain-a", 42, batch.Root, sigs)
	require.NoError(t, err)
	assert.Len(t, a.Signers, 2)

	// The anchored-root policy rejects anything else for the same block.
	other, err := merkle.CreateBatch("sidechain-a", 43, 8)
	require.NoError(t, err)
	_, err = ctl.SetTrustedRoot("relayer-1", "sidechain-a", 42, other.Root, "")
	assert.True(t, errors.Is(err, coreerr.ErrUntrustedRoot))

	_, err = ctl.SetTrustedRoot("relayer-1", "sidechain-a", 42, batch.Root, "anchor")
	require.NoError(t, err)

	proof, err := batch.GenerateProof(3)
	require.NoError(t, err)
	tx, err := batch.Transaction(3)
	require.NoError(t, err)
	rec, err := ctl.VerifyTransaction("mainchain", "sidechain-a", 42, &tx, proof)
	require.NoError(t, err)
	assert.Equal(t, tx.LeafHash(), rec.TransactionHash)

	stored, err := ctl.GetVerification(rec.TransactionHash)
	require.NoError(t, err)
	assert.Equal(t, rec.TransactionHash, stored.TransactionHash)

	_, err = ctl.BeginEpoch("swap-1", []string{"sidechain-a", "sidechain-b"}, time.Second, nil)
	require.NoError(t, err)
	_, err = ctl.Prepare("swap-1", "sidechain-a", "")
	require.NoError(t, err)
	res, err := ctl.Prepare("swap-1", "sidechain-b", "")
	require.NoError(t, err)
	assert.True(t, res.AllPrepared)
	_, err = ctl.Commit("swap-1")
	require.NoError(t, err)
	_, err = ctl.ConfirmCommit("swap-1", "sidechain-a")
	require.NoError(t, err)
	done, err := ctl.ConfirmCommit("swap-1", "sidechain-b")
	require.NoError(t, err)
	assert.True(t, done.AllConfirmed)
	assert.Equal(t, coordinator.StatusCompleted, done.Epoch.Status)

	assert.Equal(t, []events.Name{
		events.RootAnchored,
		events.TrustedRootSet,
		events.TransactionVerified,
		events.EpochBegun,
		events.ParticipantPrepared,
		events.ParticipantPrepared,
		events.EpochCommitted,
		events.CommitConfirmed,
		events.CommitConfirmed,
	}, h.rec.Names())

	snap, err := ctl.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Anchors)
	assert.Equal(t, 1, snap.TrustedRoots)
	assert.Equal(t, 3, snap.Validators)
	assert.Equal(t, 2, snap.RequiredSignatures)
	assert.Equal(t, 1, snap.Epochs[string(coordinator.StatusCompleted)])
}

func TestTimeoutEventsArePublished(t *testing.T) {
	h := newHarness(t, false)

	_, err := h.ctl.BeginEpoch("e1", []string{"A", "B"}, time.Second, nil)
	require.NoError(t, err)
	h.clock.Advance(1100 * time.Millisecond)

	_, err = h.ctl.Prepare("e1", "A", "")
	assert.True(t, errors.Is(err, coreerr.ErrEpochTimedOut))
	assert.Equal(t, []events.Name{events.EpochBegun, events.EpochAborted}, h.rec.Names())

	_, err = h.ctl.Prepare("e1", "A", "")
	assert.True(t, errors.Is(err, coreerr.ErrWrongState))
}

func TestReaper(t *testing.T) {
	h := newHarness(t, false)
	h.ctl.cfg.Protocol.ReapInterval = 5 * time.Millisecond

	_, err := h.ctl.BeginEpoch("stale", []string{"A"}, time.Second, nil)
	require.NoError(t, err)
	h.clock.Advance(2 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.ctl.reap(ctx)

	assert.Eventually(t, func() bool {
		e, err := h.ctl.GetEpochStatus("stale")
		return err == nil && e.Status == coordinator.StatusAborted
	}, time.Second, 5*time.Millisecond)
}

func TestProtocolConfigValidatorSet(t *testing.T) {
	s1, err := validators.NewSigner()
	require.NoError(t, err)
	s2, err := validators.NewSigner()
	require.NoError(t, err)

	cfg := ProtocolConfig{}
	set, err := cfg.ValidatorSet()
	require.NoError(t, err)
	assert.Nil(t, set)

	cfg.Validators = []validators.Validator{{PubKey: s1.PubKeyHex()}, {ID: s2.ID(), PubKey: s2.PubKeyHex()}}
	set, err = cfg.ValidatorSet()
	require.NoError(t, err)
	assert.Equal(t, 2, set.Required(), "majority by default")

	cfg.RequiredSignatures = 3
	_, err = cfg.ValidatorSet()
	assert.True(t, errors.Is(err, coreerr.ErrInvalidInput))

	cfg.RequiredSignatures = 1
	cfg.Validators[1].ID = s1.ID()
	_, err = cfg.ValidatorSet()
	assert.True(t, errors.Is(err, coreerr.ErrInvalidInput))
}

func TestLoadDB(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{DataDir: dir, DbType: "leveldb"}

	db, err := loadDB(cfg)
	require.NoError(t, err)
	require.NoError(t, db.Put([]byte("k"), []byte("v")))
	require.NoError(t, db.Close())

	db, err = loadDB(cfg)
	require.NoError(t, err)
	v, err := db.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
	require.NoError(t, db.Close())

	db, err = loadDB(&Config{})
	require.NoError(t, err)
	assert.Equal(t, "memdb", db.Type())
	require.NoError(t, db.Close())

	_, err = loadDB(&Config{DataDir: dir, DbType: "sqlite"})
	assert.Error(t, err)
}

func TestNoValidatorsConfigured(t *testing.T) {
	_, err := New(&Config{}, memdb.New(), time.Now)
	assert.Error(t, err)
}
