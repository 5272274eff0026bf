// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package merkle

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/jaxnet/smicp/types/chainhash"
	"gitlab.com/jaxnet/smicp/types/coreerr"
	"gitlab.com/jaxnet/smicp/types/wire"
)

func TestProofRoundTrip(t *testing.T) {
	for size := 1; size <= 33; size++ {
		batch, err := CreateBatch("A", uint64(size), size)
		require.NoError(t, err)
		require.Equal(t, size, batch.Len())

		for i := 0; i < size; i++ {
			proof, err := GenerateProof(batch, i)
			require.NoError(t, err)
			leaf, err := batch.Leaf(i)
			require.NoError(t, err)
			assert.Equal(t, leaf, proof.LeafHash)
			assert.Len(t, proof.Path, batch.Depth())
			assert.Truef(t, VerifyProof(leaf, proof.Path, batch.Root),
				"size %d index %d", size, i)
		}
	}
}

func TestSingleLeafBatch(t *testing.T) {
	batch, err := CreateBatch("A", 1, 1)
	require.NoError(t, err)

	leaf, err := batch.Leaf(0)
	require.NoError(t, err)
	assert.Equal(t, leaf, batch.Root)

	proof, err := batch.GenerateProof(0)
	require.NoError(t, err)
	assert.Empty(t, proof.Path)
	assert.True(t, proof.Verify(batch.Root))
}

func TestEightLeafScenario(t *testing.T) {
	batch, err := CreateBatch("A", 1000, 8)
	require.NoError(t, err)

	proof, err := batch.GenerateProof(3)
	require.NoError(t, err)
	require.Len(t, proof.Path, 3)

	// Index 3 is a right child, its parent is a right child, and the
	// grandparent is a left child.
	assert.True(t, proof.Path[0].IsLeft)
	assert.True(t, proof.Path[1].IsLeft)
	assert.False(t, proof.Path[2].IsLeft)
	assert.True(t, proof.Verify(batch.Root))

	txs := batch.Transactions()
	txs[5].Amount++
	altered, err := BuildBatch("A", 1000, txs)
	require.NoError(t, err)
	assert.NotEqual(t, batch.Root, altered.Root)
	assert.False(t, proof.Verify(altered.Root))
}

func TestTamperDetection(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	batch, err := CreateBatch("B", 42, 13)
	require.NoError(t, err)

	for round := 0; round < 200; round++ {
		index := rng.Intn(batch.Len())
		proof, err := batch.GenerateProof(index)
		require.NoError(t, err)

		root := batch.Root
		leaf := proof.LeafHash
		path := append([]ProofStep(nil), proof.Path...)
		bit := byte(1 << uint(rng.Intn(8)))
		pos := rng.Intn(chainhash.HashSize)

		switch rng.Intn(4) {
		case 0:
			root[pos] ^= bit
		case 1:
			leaf[pos] ^= bit
		case 2:
			step := rng.Intn(len(path))
			path[step].Sibling[pos] ^= bit
		case 3:
			step := rng.Intn(len(path))
			path[step].IsLeft = !path[step].IsLeft
		}
		assert.False(t, VerifyProof(leaf, path, root), "round %d", round)
	}
}

func TestPaddingUsesZeroLeaves(t *testing.T) {
	batch, err := CreateBatch("C", 7, 3)
	require.NoError(t, err)

	leaves := batch.Leaves()
	left := wire.NodeHash(&leaves[0], &leaves[1])
	right := wire.NodeHash(&leaves[2], &chainhash.ZeroHash)
	assert.Equal(t, wire.NodeHash(&left, &right), batch.Root)

	root, err := ComputeRoot(leaves)
	require.NoError(t, err)
	assert.Equal(t, batch.Root, root)
}

func TestIndexOutOfRange(t *testing.T) {
	batch, err := CreateBatch("A", 1, 5)
	require.NoError(t, err)

	for _, idx := range []int{-1, 5, 7, 100} {
		_, err := batch.GenerateProof(idx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, coreerr.ErrIndexOutOfRange))
		kind, ok := coreerr.KindOf(err)
		require.True(t, ok)
		assert.Equal(t, coreerr.KindValidation, kind)
	}
}

func TestDeterministicBatches(t *testing.T) {
	a, err := CreateBatch("A", 9, 10)
	require.NoError(t, err)
	b, err := CreateBatch("A", 9, 10)
	require.NoError(t, err)
	assert.Equal(t, a.Root, b.Root)

	c, err := CreateBatch("A", 10, 10)
	require.NoError(t, err)
	assert.NotEqual(t, a.Root, c.Root)
}

func TestBuildBatchRejects(t *testing.T) {
	_, err := CreateBatch("A", 1, 0)
	assert.True(t, errors.Is(err, coreerr.ErrInvalidInput))

	_, err = BuildBatch("", 1, SyntheticTransactions("", 1, 2))
	assert.True(t, errors.Is(err, coreerr.ErrInvalidInput))

	txs := SyntheticTransactions("A", 1, 2)
	txs[1].BlockNumber = 2
	_, err = BuildBatch("A", 1, txs)
	assert.True(t, errors.Is(err, coreerr.ErrInvalidInput))

	_, err = ComputeRoot(nil)
	assert.True(t, errors.Is(err, coreerr.ErrInvalidInput))
}

func TestTransactionAccessors(t *testing.T) {
	batch, err := CreateBatch("A", 3, 4)
	require.NoError(t, err)

	tx, err := batch.Transaction(2)
	require.NoError(t, err)
	assert.Equal(t, "A-3-2", tx.ID)
	leaf, err := batch.Leaf(2)
	require.NoError(t, err)
	assert.Equal(t, tx.LeafHash(), leaf)

	_, err = batch.Transaction(4)
	assert.True(t, errors.Is(err, coreerr.ErrIndexOutOfRange))
}
