// Copyright (c) 2015-2016 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package database

// DB is the key/value collaborator.  Implementations must be safe for
// concurrent use, must apply a Batch atomically and must iterate in
// ascending key order.
type DB interface {
	// Type returns the database driver type the instance was created with.
	Type() string

	// Get returns the value stored under key.  ErrValueNotFound is
	// returned when the key does not exist.
	Get(key []byte) ([]byte, error)

	// Has reports whether key exists.
	Has(key []byte) (bool, error)

	// Put stores value under key, replacing any previous value.
	Put(key, value []byte) error

	// Delete removes key.  Deleting a missing key is not an error.
	Delete(key []byte) error

	// Write applies every operation of the batch or none of them.
	Write(batch *Batch) error

	// Iterate calls fn for every key with the given prefix in ascending
	// order.  Returning an error from fn stops the iteration and the error
	// is returned.  Keys and values passed to fn are copies.
	Iterate(prefix []byte, fn func(key, value []byte) error) error

	// Close cleanly shuts down the database.
	Close() error
}

// BatchOp is one queued mutation.
type BatchOp struct {
	Key    []byte
	Value  []byte
	Delete bool
}

// Batch collects mutations that must become visible together.
type Batch struct {
	ops []BatchOp
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Put queues a write.
func (b *Batch) Put(key, value []byte) {
	b.ops = append(b.ops, BatchOp{Key: copyBytes(key), Value: copyBytes(value)})
}

// Delete queues a deletion.
func (b *Batch) Delete(key []byte) {
	b.ops = append(b.ops, BatchOp{Key: copyBytes(key), Delete: true})
}

// Len returns the number of queued operations.
func (b *Batch) Len() int {
	return len(b.ops)
}

// Ops returns the queued operations in insertion order.
func (b *Batch) Ops() []BatchOp {
	return b.ops
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
