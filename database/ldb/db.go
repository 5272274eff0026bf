// Copyright (c) 2015-2016 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ldb

import (
	"os"

	"github.com/btcsuite/goleveldb/leveldb"
	"github.com/btcsuite/goleveldb/leveldb/filter"
	"github.com/btcsuite/goleveldb/leveldb/opt"
	"github.com/btcsuite/goleveldb/leveldb/storage"
	"github.com/btcsuite/goleveldb/leveldb/util"
	"gitlab.com/jaxnet/smicp/database"
)

type db struct {
	ldb *leveldb.DB
}

// convertErr converts the passed leveldb error into a database error with an
// equivalent error code  and the passed description.  It also sets the passed
// error as the underlying error.
func convertErr(desc string, ldbErr error) database.Error {
	// Use the driver-specific error code by default.  The code below will
	// update this with the converted error if it's recognized.
	var code = database.ErrDriverSpecific

	switch {
	case ldbErr == leveldb.ErrNotFound:
		code = database.ErrValueNotFound
	case ldbErr == leveldb.ErrClosed:
		code = database.ErrDbNotOpen
	}

	return database.MakeError(code, desc, ldbErr)
}

func openDB(dbPath string, create bool) (database.DB, error) {
	// Error if the database doesn't exist and the create flag is not set.
	if _, err := os.Stat(dbPath); !create && os.IsNotExist(err) {
		str := "database " + dbPath + " does not exist"
		return nil, database.MakeError(database.ErrDbDoesNotExist, str, nil)
	}

	opts := opt.Options{
		ErrorIfExist: false,
		Strict:       opt.DefaultStrict,
		Compression:  opt.NoCompression,
		Filter:       filter.NewBloomFilter(10),
	}
	ldb, err := leveldb.OpenFile(dbPath, &opts)
	if err != nil {
		return nil, convertErr(err.Error(), err)
	}

	log.Info().Str("path", dbPath).Msg("leveldb opened")
	return &db{ldb: ldb}, nil
}

// NewMemory opens a leveldb instance on in-memory storage.  Tests use it to
// exercise the real engine without touching disk.
func NewMemory() (database.DB, error) {
	ldb, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, convertErr("unable to open memory storage", err)
	}
	return &db{ldb: ldb}, nil
}

func (d *db) Type() string { return dbType }

func (d *db) Get(key []byte) ([]byte, error) {
	value, err := d.ldb.Get(key, nil)
	if err != nil {
		return nil, convertErr("failed to get "+string(key), err)
	}
	return value, nil
}

func (d *db) Has(key []byte) (bool, error) {
	ok, err := d.ldb.Has(key, nil)
	if err != nil {
		return false, convertErr("failed to check "+string(key), err)
	}
	return ok, nil
}

func (d *db) Put(key, value []byte) error {
	if len(key) == 0 {
		return database.MakeError(database.ErrInvalid, "empty key", nil)
	}
	if err := d.ldb.Put(key, value, nil); err != nil {
		return convertErr("failed to put "+string(key), err)
	}
	return nil
}

func (d *db) Delete(key []byte) error {
	if err := d.ldb.Delete(key, nil); err != nil {
		return convertErr("failed to delete "+string(key), err)
	}
	return nil
}

func (d *db) Write(batch *database.Batch) error {
	lb := new(leveldb.Batch)
	for _, op := range batch.Ops() {
		if len(op.Key) == 0 {
			return database.MakeError(database.ErrInvalid, "empty key", nil)
		}
		if op.Delete {
			lb.Delete(op.Key)
			continue
		}
		lb.Put(op.Key, op.Value)
	}

	if err := d.ldb.Write(lb, &opt.WriteOptions{Sync: true}); err != nil {
		return convertErr("failed to write batch", err)
	}
	return nil
}

func (d *db) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	// A snapshot keeps the scan consistent with concurrent batch writes.
	snap, err := d.ldb.GetSnapshot()
	if err != nil {
		return convertErr("failed to take snapshot", err)
	}
	defer snap.Release()

	iter := snap.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	for iter.Next() {
		// The iterator reuses its buffers between steps.
		key := append([]byte(nil), iter.Key()...)
		value := append([]byte(nil), iter.Value()...)
		if err := fn(key, value); err != nil {
			return err
		}
	}
	if err := iter.Error(); err != nil {
		return convertErr("iteration failed", err)
	}
	return nil
}

func (d *db) Close() error {
	if err := d.ldb.Close(); err != nil {
		return convertErr("failed to close", err)
	}
	return nil
}
