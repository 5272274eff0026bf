// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package badgerdb implements the database backend on top of badger.
package badgerdb

import (
	"fmt"
	"os"

	"github.com/dgraph-io/badger"
	"github.com/rs/zerolog"
	"gitlab.com/jaxnet/smicp/corelog"
	"gitlab.com/jaxnet/smicp/database"
)

const dbType = "badger"

var log = corelog.Disabled

type db struct {
	db *badger.DB
}

// badgerLogger routes badger's internal messages into the unit logger.
type badgerLogger struct{}

func (badgerLogger) Errorf(f string, v ...interface{})   { log.Error().Msgf(f, v...) }
func (badgerLogger) Warningf(f string, v ...interface{}) { log.Warn().Msgf(f, v...) }
func (badgerLogger) Infof(f string, v ...interface{})    { log.Debug().Msgf(f, v...) }
func (badgerLogger) Debugf(f string, v ...interface{})   { log.Trace().Msgf(f, v...) }

func convertErr(desc string, err error) error {
	switch err {
	case nil:
		return nil
	case badger.ErrKeyNotFound:
		return database.MakeError(database.ErrValueNotFound, desc, err)
	case badger.ErrEmptyKey:
		return database.MakeError(database.ErrInvalid, desc, err)
	}
	return database.MakeError(database.ErrDriverSpecific, desc, err)
}

// Open opens or creates a badger database in the passed directory.
func Open(path string, create bool) (database.DB, error) {
	if _, err := os.Stat(path); !create && os.IsNotExist(err) {
		str := "database " + path + " does not exist"
		return nil, database.MakeError(database.ErrDbDoesNotExist, str, nil)
	}

	opts := badger.DefaultOptions(path).WithLogger(badgerLogger{})
	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, convertErr("unable to open "+path, err)
	}

	log.Info().Str("path", path).Msg("badger opened")
	return &db{db: bdb}, nil
}

func (d *db) Type() string { return dbType }

func (d *db) Get(key []byte) ([]byte, error) {
	var value []byte
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, convertErr("failed to get "+string(key), err)
	}
	return value, nil
}

func (d *db) Has(key []byte) (bool, error) {
	_, err := d.Get(key)
	if database.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

func (d *db) Put(key, value []byte) error {
	if len(key) == 0 {
		return database.MakeError(database.ErrInvalid, "empty key", nil)
	}
	err := d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	return convertErr("failed to put "+string(key), err)
}

func (d *db) Delete(key []byte) error {
	err := d.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	return convertErr("failed to delete "+string(key), err)
}

// Write applies the batch inside one read-write transaction, so either every
// operation becomes visible or none does.
func (d *db) Write(batch *database.Batch) error {
	err := d.db.Update(func(txn *badger.Txn) error {
		for _, op := range batch.Ops() {
			if len(op.Key) == 0 {
				return badger.ErrEmptyKey
			}
			if op.Delete {
				if err := txn.Delete(op.Key); err != nil {
					return err
				}
				continue
			}
			if err := txn.Set(op.Key, op.Value); err != nil {
				return err
			}
		}
		return nil
	})
	return convertErr("failed to write batch", err)
}

func (d *db) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	type pair struct{ k, v []byte }
	var pairs []pair

	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			pairs = append(pairs, pair{k: item.KeyCopy(nil), v: v})
		}
		return nil
	})
	if err != nil {
		return convertErr("iteration failed", err)
	}

	// Callbacks run outside the transaction so they may write back.
	for _, p := range pairs {
		if err := fn(p.k, p.v); err != nil {
			return err
		}
	}
	return nil
}

func (d *db) Close() error {
	return convertErr("failed to close", d.db.Close())
}

func createDBDriver(args ...interface{}) (database.DB, error) {
	path, err := database.ParsePathArg(dbType, "Create", args...)
	if err != nil {
		return nil, err
	}
	return Open(path, true)
}

func openDBDriver(args ...interface{}) (database.DB, error) {
	path, err := database.ParsePathArg(dbType, "Open", args...)
	if err != nil {
		return nil, err
	}
	return Open(path, false)
}

func init() {
	driver := database.Driver{
		DbType:    dbType,
		Create:    createDBDriver,
		Open:      openDBDriver,
		UseLogger: func(logger zerolog.Logger) { log = logger },
	}
	if err := database.RegisterDriver(driver); err != nil {
		panic(fmt.Sprintf("Failed to regiser database driver '%s': %v",
			dbType, err))
	}
}
