// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package anchor

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/jaxnet/smicp/database"
	"gitlab.com/jaxnet/smicp/database/memdb"
	"gitlab.com/jaxnet/smicp/node/merkle"
	"gitlab.com/jaxnet/smicp/node/validators"
	"gitlab.com/jaxnet/smicp/types/chainhash"
	"gitlab.com/jaxnet/smicp/types/coreerr"
	"gitlab.com/jaxnet/smicp/types/events"
)

var fixedNow = time.Date(2020, 9, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db       database.DB
	signers  []*validators.Signer
	registry *Registry
}

func newFixture(t *testing.T, n, required int) *fixture {
	f := &fixture{db: memdb.New()}
	members := make([]validators.Validator, n)
	for i := 0; i < n; i++ {
		s, err := validators.NewSigner()
		require.NoError(t, err)
		f.signers = append(f.signers, s)
		members[i] = s.Validator()
	}
	set, err := validators.NewSet(required, members...)
	require.NoError(t, err)

	f.registry, err = New(Config{DB: f.db, Validators: set, Now: func() time.Time { return fixedNow }})
	require.NoError(t, err)
	return f
}

func (f *fixture) sign(chainID string, block uint64, root chainhash.Hash, idx ...int) []validators.Signature {
	sigs := make([]validators.Signature, 0, len(idx))
	for _, i := range idx {
		sigs = append(sigs, f.signers[i].SignAnchor(chainID, block, root))
	}
	return sigs
}

func batchRoot(t *testing.T, chainID string, block uint64) chainhash.Hash {
	b, err := merkle.CreateBatch(chainID, block, 8)
	require.NoError(t, err)
	return b.Root
}

func TestAnchorRootQuorum(t *testing.T) {
	f := newFixture(t, 4, 3)
	root := batchRoot(t, "A", 1000)

	_, _, err := f.registry.AnchorRoot("relayer", "A", 1000, root, f.sign("A", 1000, root, 0, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, coreerr.ErrInsufficientSignatures))
	kind, _ := coreerr.KindOf(err)
	assert.Equal(t, coreerr.KindAuthorization, kind)

	// Nothing was written by the rejected call.
	_, err = f.registry.GetAnchor("A", 1000)
	assert.True(t, errors.Is(err, coreerr.ErrNotFound))

	sigs := f.sign("A", 1000, root, 0, 0, 1, 1, 2)
	anchor, evs, err := f.registry.AnchorRoot("relayer", "A", 1000, root, sigs)
	require.NoError(t, err)
	assert.Equal(t, root, anchor.Root)
	assert.Len(t, anchor.Signers, 3)
	assert.Equal(t, "relayer", anchor.Submitter)
	assert.Equal(t, fixedNow, anchor.Timestamp)

	require.Len(t, evs, 1)
	assert.Equal(t, events.RootAnchored, evs[0].Name)
	assert.Equal(t, "root~A~1000", evs[0].Key)

	got, err := f.registry.GetAnchor("A", 1000)
	require.NoError(t, err)
	assert.Equal(t, anchor.Root, got.Root)
	assert.Equal(t, anchor.Signers, got.Signers)
}

func TestDuplicateSignerCountsOnce(t *testing.T) {
	f := newFixture(t, 3, 2)
	root := batchRoot(t, "A", 1)

	sigs := f.sign("A", 1, root, 0, 0, 0, 0)
	_, _, err := f.registry.AnchorRoot("r", "A", 1, root, sigs)
	assert.True(t, errors.Is(err, coreerr.ErrInsufficientSignatures))
}

func TestSignatureOverOtherMessageRejected(t *testing.T) {
	f := newFixture(t, 2, 2)
	root := batchRoot(t, "A", 1)

	sigs := append(f.sign("A", 1, root, 0), f.sign("A", 2, root, 1)...)
	_, _, err := f.registry.AnchorRoot("r", "A", 1, root, sigs)
	assert.True(t, errors.Is(err, coreerr.ErrInsufficientSignatures))
}

func TestAnchorUniqueness(t *testing.T) {
	f := newFixture(t, 2, 1)
	root := batchRoot(t, "A", 5)

	_, _, err := f.registry.AnchorRoot("r", "A", 5, root, f.sign("A", 5, root, 0))
	require.NoError(t, err)

	other := batchRoot(t, "A", 6)
	for _, sigs := range [][]validators.Signature{
		f.sign("A", 5, other, 0, 1),
		nil,
	} {
		_, _, err = f.registry.AnchorRoot("r", "A", 5, other, sigs)
		require.Error(t, err)
		assert.True(t, errors.Is(err, coreerr.ErrDuplicateAnchor))
		kind, _ := coreerr.KindOf(err)
		assert.Equal(t, coreerr.KindConflict, kind)
	}

	got, err := f.registry.GetAnchor("A", 5)
	require.NoError(t, err)
	assert.Equal(t, root, got.Root)
}

func TestConcurrentAnchorsOneWins(t *testing.T) {
	f := newFixture(t, 1, 1)
	root := batchRoot(t, "A", 9)
	sigs := f.sign("A", 9, root, 0)

	var (
		wg   sync.WaitGroup
		mtx  sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := f.registry.AnchorRoot("r", "A", 9, root, sigs); err == nil {
				mtx.Lock()
				wins++
				mtx.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestAnchorRootValidation(t *testing.T) {
	f := newFixture(t, 1, 1)
	root := batchRoot(t, "A", 1)

	_, _, err := f.registry.AnchorRoot("r", "", 1, root, f.sign("", 1, root, 0))
	assert.True(t, errors.Is(err, coreerr.ErrInvalidInput))
	_, _, err = f.registry.AnchorRoot("r", "A~B", 1, root, f.sign("A~B", 1, root, 0))
	assert.True(t, errors.Is(err, coreerr.ErrInvalidInput))
	_, _, err = f.registry.AnchorRoot("r", "A", 1, chainhash.Hash{}, nil)
	assert.True(t, errors.Is(err, coreerr.ErrInvalidInput))
}

func TestListAnchorsOrdered(t *testing.T) {
	f := newFixture(t, 1, 1)
	for _, block := range []uint64{100, 9, 20} {
		root := batchRoot(t, "A", block)
		_, _, err := f.registry.AnchorRoot("r", "A", block, root, f.sign("A", block, root, 0))
		require.NoError(t, err)
	}
	root := batchRoot(t, "AB", 1)
	_, _, err := f.registry.AnchorRoot("r", "AB", 1, root, f.sign("AB", 1, root, 0))
	require.NoError(t, err)

	list, err := f.registry.ListAnchors("A")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []uint64{9, 20, 100},
		[]uint64{list[0].BlockNumber, list[1].BlockNumber, list[2].BlockNumber})

	all, err := f.registry.ListAnchors("")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestValidatorAdmin(t *testing.T) {
	f := newFixture(t, 2, 2)
	root := batchRoot(t, "A", 1)
	_, _, err := f.registry.AnchorRoot("r", "A", 1, root, f.sign("A", 1, root, 0, 1))
	require.NoError(t, err)

	newcomer, err := validators.NewSigner()
	require.NoError(t, err)
	added, evs, err := f.registry.AddValidator(validators.Validator{PubKey: newcomer.PubKeyHex()})
	require.NoError(t, err)
	assert.Equal(t, newcomer.ID(), added.ID)
	assert.Equal(t, events.ValidatorAdded, evs[0].Name)

	_, _, err = f.registry.RemoveValidator(f.signers[0].ID())
	require.NoError(t, err)

	// History stays readable after its signer left.
	_, err = f.registry.GetAnchor("A", 1)
	require.NoError(t, err)

	// The removed validator no longer counts.
	root2 := batchRoot(t, "A", 2)
	sigs := f.sign("A", 2, root2, 0, 1)
	_, _, err = f.registry.AnchorRoot("r", "A", 2, root2, sigs)
	assert.True(t, errors.Is(err, coreerr.ErrInsufficientSignatures))

	sigs = append(sigs, newcomer.SignAnchor("A", 2, root2))
	_, _, err = f.registry.AnchorRoot("r", "A", 2, root2, sigs)
	require.NoError(t, err)

	_, _, err = f.registry.RemoveValidator(f.signers[1].ID())
	assert.True(t, errors.Is(err, coreerr.ErrInvalidInput))

	info, evs, err := f.registry.SetRequiredSignatures(1)
	require.NoError(t, err)
	assert.Equal(t, 1, info.RequiredSignatures)
	assert.Equal(t, events.QuorumChanged, evs[0].Name)

	_, _, err = f.registry.SetRequiredSignatures(3)
	assert.True(t, errors.Is(err, coreerr.ErrInvalidInput))
}

func TestValidatorSetPersisted(t *testing.T) {
	f := newFixture(t, 2, 2)
	_, _, err := f.registry.SetRequiredSignatures(1)
	require.NoError(t, err)

	// A restart with a different seed keeps the stored set.
	seed, err := validators.NewSet(1, f.signers[0].Validator())
	require.NoError(t, err)
	restarted, err := New(Config{DB: f.db, Validators: seed})
	require.NoError(t, err)

	info := restarted.Validators()
	assert.Len(t, info.Validators, 2)
	assert.Equal(t, 1, info.RequiredSignatures)
}

func TestNewWithoutValidators(t *testing.T) {
	_, err := New(Config{DB: memdb.New()})
	assert.True(t, errors.Is(err, coreerr.ErrInvalidInput))
}
