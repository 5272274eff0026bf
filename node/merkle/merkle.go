// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package merkle fingerprints transaction batches with a balanced binary
// hash tree and produces and checks inclusion proofs.
//
// Leaves are H(0x00 || tx) and inner nodes H(0x01 || left || right).  The
// leaf level is padded up to the next power of two with the zero hash, so
// every proof of a batch has the same length.  Padding leaves sit beyond the
// batch size and can never be proven.
package merkle

import (
	"gitlab.com/jaxnet/smicp/corelog"
	"gitlab.com/jaxnet/smicp/types/chainhash"
	"gitlab.com/jaxnet/smicp/types/coreerr"
	"gitlab.com/jaxnet/smicp/types/wire"
)

var log = corelog.Disabled

// ProofStep is one level of a proof path.  IsLeft reports whether Sibling is
// the left operand of the node hash at that level.
type ProofStep struct {
	Sibling chainhash.Hash `json:"sibling"`
	IsLeft  bool           `json:"is_left"`
}

// Proof is inclusion evidence for one leaf of a batch.
type Proof struct {
	LeafHash chainhash.Hash `json:"leaf_hash"`
	Index    uint32         `json:"index"`
	Path     []ProofStep    `json:"path"`
}

// Verify reports whether the proof reproduces root.
func (p *Proof) Verify(root chainhash.Hash) bool {
	return VerifyProof(p.LeafHash, p.Path, root)
}

// nextPowerOfTwo returns the smallest power of two >= n, for n >= 1.
func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// buildLevels returns every level of the tree, leaves first and the root
// level last.
func buildLevels(leaves []chainhash.Hash) [][]chainhash.Hash {
	width := nextPowerOfTwo(len(leaves))
	level := make([]chainhash.Hash, width)
	copy(level, leaves)

	levels := [][]chainhash.Hash{level}
	for len(level) > 1 {
		next := make([]chainhash.Hash, len(level)/2)
		for i := range next {
			next[i] = wire.NodeHash(&level[2*i], &level[2*i+1])
		}
		levels = append(levels, next)
		level = next
	}
	return levels
}

// ComputeRoot returns the root over leaves using the batch padding policy.
func ComputeRoot(leaves []chainhash.Hash) (chainhash.Hash, error) {
	if len(leaves) == 0 {
		return chainhash.Hash{}, coreerr.New(coreerr.ErrInvalidInput, "",
			"cannot compute the root of an empty leaf set")
	}
	levels := buildLevels(leaves)
	return levels[len(levels)-1][0], nil
}

// RootFromPath folds leaf up through path.  It is the only place where the
// node concatenation order is decided for verification.
func RootFromPath(leaf chainhash.Hash, path []ProofStep) chainhash.Hash {
	acc := leaf
	for i := range path {
		if path[i].IsLeft {
			acc = wire.NodeHash(&path[i].Sibling, &acc)
		} else {
			acc = wire.NodeHash(&acc, &path[i].Sibling)
		}
	}
	return acc
}

// VerifyProof reports whether folding leaf through path yields expectedRoot.
func VerifyProof(leaf chainhash.Hash, path []ProofStep, expectedRoot chainhash.Hash) bool {
	got := RootFromPath(leaf, path)
	return got.IsEqual(&expectedRoot)
}
