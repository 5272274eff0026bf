// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package merkle

import (
	"fmt"

	"gitlab.com/jaxnet/smicp/types/chainhash"
	"gitlab.com/jaxnet/smicp/types/coreerr"
	"gitlab.com/jaxnet/smicp/types/wire"
)

// syntheticEpoch is the base timestamp of generated transactions.
const syntheticEpoch int64 = 1600000000

// Batch is an immutable set of transactions grouped for one block of one
// chain, together with its tree.
type Batch struct {
	ChainID     string
	BlockNumber uint64
	Root        chainhash.Hash

	txs    []wire.Transaction
	levels [][]chainhash.Hash
}

// Len returns the number of real transactions in the batch.
func (b *Batch) Len() int {
	return len(b.txs)
}

// Leaf returns the leaf hash at index i.
func (b *Batch) Leaf(i int) (chainhash.Hash, error) {
	if i < 0 || i >= len(b.txs) {
		return chainhash.Hash{}, b.indexError(i)
	}
	return b.levels[0][i], nil
}

// Leaves returns a copy of the unpadded leaf hashes.
func (b *Batch) Leaves() []chainhash.Hash {
	out := make([]chainhash.Hash, len(b.txs))
	copy(out, b.levels[0])
	return out
}

// Transaction returns a copy of the transaction at index i.
func (b *Batch) Transaction(i int) (wire.Transaction, error) {
	if i < 0 || i >= len(b.txs) {
		return wire.Transaction{}, b.indexError(i)
	}
	return b.txs[i], nil
}

// Transactions returns a copy of the batch transactions in leaf order.
func (b *Batch) Transactions() []wire.Transaction {
	out := make([]wire.Transaction, len(b.txs))
	copy(out, b.txs)
	return out
}

// Depth returns the proof length of every leaf of the batch.
func (b *Batch) Depth() int {
	return len(b.levels) - 1
}

func (b *Batch) key() string {
	return fmt.Sprintf("%s~%d", b.ChainID, b.BlockNumber)
}

func (b *Batch) indexError(i int) error {
	return coreerr.Newf(coreerr.ErrIndexOutOfRange, b.key(),
		"index %d outside batch of %d transactions", i, len(b.txs))
}

// GenerateProof walks from leaf index to the root collecting siblings.
func (b *Batch) GenerateProof(index int) (*Proof, error) {
	if index < 0 || index >= len(b.txs) {
		return nil, b.indexError(index)
	}

	proof := &Proof{
		LeafHash: b.levels[0][index],
		Index:    uint32(index),
		Path:     make([]ProofStep, 0, b.Depth()),
	}

	pos := index
	for level := 0; level < len(b.levels)-1; level++ {
		isRight := pos%2 == 1
		sibling := pos ^ 1
		proof.Path = append(proof.Path, ProofStep{
			Sibling: b.levels[level][sibling],
			IsLeft:  isRight,
		})
		pos /= 2
	}
	return proof, nil
}

// GenerateProof is the free-function form of Batch.GenerateProof.
func GenerateProof(b *Batch, index int) (*Proof, error) {
	return b.GenerateProof(index)
}

// BuildBatch fingerprints real transactions.  Every transaction must belong
// to chainID at blockNumber.
func BuildBatch(chainID string, blockNumber uint64, txs []wire.Transaction) (*Batch, error) {
	key := fmt.Sprintf("%s~%d", chainID, blockNumber)
	if chainID == "" {
		return nil, coreerr.New(coreerr.ErrInvalidInput, key, "chain id is empty")
	}
	if len(txs) == 0 {
		return nil, coreerr.New(coreerr.ErrInvalidInput, key, "batch has no transactions")
	}

	leaves := make([]chainhash.Hash, len(txs))
	for i := range txs {
		if txs[i].ChainID != chainID || txs[i].BlockNumber != blockNumber {
			return nil, coreerr.Newf(coreerr.ErrInvalidInput, key,
				"transaction %d belongs to %s~%d", i, txs[i].ChainID, txs[i].BlockNumber)
		}
		leaves[i] = txs[i].LeafHash()
	}

	levels := buildLevels(leaves)
	b := &Batch{
		ChainID:     chainID,
		BlockNumber: blockNumber,
		Root:        levels[len(levels)-1][0],
		txs:         append([]wire.Transaction(nil), txs...),
		levels:      levels,
	}

	log.Debug().Str("chain", chainID).Uint64("block", blockNumber).
		Int("transactions", len(txs)).Stringer("root", b.Root).Msg("batch built")
	return b, nil
}

// SyntheticTransactions returns count deterministic transactions for the
// given block.  The same arguments always produce the same content.
func SyntheticTransactions(chainID string, blockNumber uint64, count int) []wire.Transaction {
	txs := make([]wire.Transaction, count)
	for i := range txs {
		txs[i] = wire.Transaction{
			ID:          fmt.Sprintf("%s-%d-%d", chainID, blockNumber, i),
			ChainID:     chainID,
			BlockNumber: blockNumber,
			Index:       uint32(i),
			From:        fmt.Sprintf("%s-account-%d", chainID, i%16),
			To:          fmt.Sprintf("%s-account-%d", chainID, (i+1)%16),
			Amount:      uint64(i+1) * 100,
			Nonce:       uint64(i),
			Timestamp:   syntheticEpoch + int64(blockNumber),
		}
	}
	return txs
}

// CreateBatch builds a batch of count synthetic transactions.
func CreateBatch(chainID string, blockNumber uint64, count int) (*Batch, error) {
	if count <= 0 {
		return nil, coreerr.Newf(coreerr.ErrInvalidInput,
			fmt.Sprintf("%s~%d", chainID, blockNumber), "batch size %d must be positive", count)
	}
	return BuildBatch(chainID, blockNumber, SyntheticTransactions(chainID, blockNumber, count))
}
