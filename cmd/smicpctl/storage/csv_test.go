// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/jaxnet/smicp/node/merkle"
)

func TestTransactionsKeepTheRoot(t *testing.T) {
	batch, err := merkle.CreateBatch("side-a", 11, 7)
	require.NoError(t, err)

	repo := NewCSVStorage(filepath.Join(t.TempDir(), "batch.csv"))
	require.NoError(t, repo.SaveTransactions(batch.Transactions()))

	txs, err := repo.FetchTransactions()
	require.NoError(t, err)
	require.Len(t, txs, 7)

	rebuilt, err := merkle.BuildBatch("side-a", 11, txs)
	require.NoError(t, err)
	assert.Equal(t, batch.Root, rebuilt.Root)
}

func TestSaveTruncates(t *testing.T) {
	repo := NewCSVStorage(filepath.Join(t.TempDir(), "report.csv"))
	require.NoError(t, repo.SaveVerifications([]VerificationRow{
		{Index: 0, TxID: "a", Verified: true},
		{Index: 1, TxID: "b", Error: "ProofInvalid: bad path"},
	}))
	require.NoError(t, repo.SaveVerifications([]VerificationRow{{Index: 0, TxID: "c", Verified: true}}))

	rows, err := repo.FetchVerifications()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "c", rows[0].TxID)
}

func TestFetchMissingFile(t *testing.T) {
	_, err := NewCSVStorage(filepath.Join(t.TempDir(), "nope.csv")).FetchTransactions()
	assert.Error(t, err)
}
