// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"os"

	"github.com/gocarina/gocsv"
	"gitlab.com/jaxnet/smicp/types/wire"
)

// VerificationRow is one line of a batch verification report.
type VerificationRow struct {
	Index           int    `csv:"index"`
	TxID            string `csv:"tx_id"`
	TransactionHash string `csv:"transaction_hash"`
	Verified        bool   `csv:"verified"`
	Error           string `csv:"error"`
}

// CSVStorage reads and writes rows of one CSV file.
type CSVStorage struct {
	path string
	file *os.File
}

func NewCSVStorage(path string) *CSVStorage {
	return &CSVStorage{path: path}
}

func (storage *CSVStorage) open(readOnly, truncate bool) error {
	mode := os.O_RDWR | os.O_CREATE
	if truncate {
		mode |= os.O_TRUNC
	}

	if readOnly {
		mode = os.O_RDONLY
	}

	file, err := os.OpenFile(storage.path, mode, 0644)
	storage.file = file
	return err
}

func (storage *CSVStorage) Close() {
	if storage.file != nil {
		_ = storage.file.Close()
		storage.file = nil
	}
}

// FetchTransactions loads the transactions of a batch file.
func (storage *CSVStorage) FetchTransactions() ([]wire.Transaction, error) {
	if err := storage.open(true, false); err != nil {
		return nil, err
	}
	defer storage.Close()

	rows := make([]wire.Transaction, 0)
	err := gocsv.UnmarshalFile(storage.file, &rows)
	return rows, err
}

// SaveTransactions replaces the file content with txs.
func (storage *CSVStorage) SaveTransactions(txs []wire.Transaction) error {
	if err := storage.open(false, true); err != nil {
		return err
	}
	defer storage.Close()

	return gocsv.MarshalFile(&txs, storage.file)
}

// SaveVerifications replaces the file content with the report rows.
func (storage *CSVStorage) SaveVerifications(rows []VerificationRow) error {
	if err := storage.open(false, true); err != nil {
		return err
	}
	defer storage.Close()

	return gocsv.MarshalFile(&rows, storage.file)
}

// FetchVerifications loads a report written by SaveVerifications.
func (storage *CSVStorage) FetchVerifications() ([]VerificationRow, error) {
	if err := storage.open(true, false); err != nil {
		return nil, err
	}
	defer storage.Close()

	rows := make([]VerificationRow, 0)
	err := gocsv.UnmarshalFile(storage.file, &rows)
	return rows, err
}
