// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package memdb is an in-memory database backend kept in a B-tree, so prefix
// scans are ordered exactly like the on-disk engines.
package memdb

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/google/btree"
	"github.com/rs/zerolog"
	"gitlab.com/jaxnet/smicp/corelog"
	"gitlab.com/jaxnet/smicp/database"
)

const (
	dbType = "memdb"

	// btreeDegree is the branching factor of the backing tree.
	btreeDegree = 32
)

var log = corelog.Disabled

type item struct {
	key   []byte
	value []byte
}

func less(a, b item) bool {
	return bytes.Compare(a.key, b.key) < 0
}

type memDB struct {
	mtx    sync.RWMutex
	tree   *btree.BTreeG[item]
	closed bool
}

// New returns an empty in-memory database.
func New() database.DB {
	return &memDB{tree: btree.NewG(btreeDegree, less)}
}

func (db *memDB) Type() string { return dbType }

func (db *memDB) checkOpen() error {
	if db.closed {
		return database.MakeError(database.ErrDbNotOpen, "database is closed", nil)
	}
	return nil
}

func checkKey(key []byte) error {
	if len(key) == 0 {
		return database.MakeError(database.ErrInvalid, "empty key", nil)
	}
	return nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (db *memDB) Get(key []byte) ([]byte, error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	if err := db.checkOpen(); err != nil {
		return nil, err
	}

	it, ok := db.tree.Get(item{key: key})
	if !ok {
		str := fmt.Sprintf("key %q not found", key)
		return nil, database.MakeError(database.ErrValueNotFound, str, nil)
	}
	return clone(it.value), nil
}

func (db *memDB) Has(key []byte) (bool, error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	if err := db.checkOpen(); err != nil {
		return false, err
	}
	return db.tree.Has(item{key: key}), nil
}

func (db *memDB) Put(key, value []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	db.mtx.Lock()
	defer db.mtx.Unlock()
	if err := db.checkOpen(); err != nil {
		return err
	}
	db.tree.ReplaceOrInsert(item{key: clone(key), value: clone(value)})
	return nil
}

func (db *memDB) Delete(key []byte) error {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	if err := db.checkOpen(); err != nil {
		return err
	}
	db.tree.Delete(item{key: key})
	return nil
}

// Write holds the write lock for the whole batch, so readers see either none
// or all of it.
func (db *memDB) Write(batch *database.Batch) error {
	for _, op := range batch.Ops() {
		if err := checkKey(op.Key); err != nil {
			return err
		}
	}

	db.mtx.Lock()
	defer db.mtx.Unlock()
	if err := db.checkOpen(); err != nil {
		return err
	}
	for _, op := range batch.Ops() {
		if op.Delete {
			db.tree.Delete(item{key: op.Key})
			continue
		}
		db.tree.ReplaceOrInsert(item{key: clone(op.Key), value: clone(op.Value)})
	}
	log.Trace().Int("ops", batch.Len()).Msg("batch applied")
	return nil
}

// Iterate snapshots the matching range under the read lock and calls fn
// without holding it, so fn may call back into the database.
func (db *memDB) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	db.mtx.RLock()
	if err := db.checkOpen(); err != nil {
		db.mtx.RUnlock()
		return err
	}
	var snapshot []item
	db.tree.AscendGreaterOrEqual(item{key: prefix}, func(it item) bool {
		if !bytes.HasPrefix(it.key, prefix) {
			return false
		}
		snapshot = append(snapshot, item{key: clone(it.key), value: clone(it.value)})
		return true
	})
	db.mtx.RUnlock()

	for _, it := range snapshot {
		if err := fn(it.key, it.value); err != nil {
			return err
		}
	}
	return nil
}

func (db *memDB) Close() error {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	if err := db.checkOpen(); err != nil {
		return err
	}
	db.closed = true
	db.tree.Clear(false)
	return nil
}

func createDBDriver(args ...interface{}) (database.DB, error) {
	return New(), nil
}

// useLogger is the callback provided during driver registration that sets the
// current logger to the provided one.
func useLogger(logger zerolog.Logger) {
	log = logger
}

func init() {
	// Register the driver.
	driver := database.Driver{
		DbType:    dbType,
		Create:    createDBDriver,
		Open:      createDBDriver,
		UseLogger: useLogger,
	}
	if err := database.RegisterDriver(driver); err != nil {
		panic(fmt.Sprintf("Failed to regiser database driver '%s': %v",
			dbType, err))
	}
}
