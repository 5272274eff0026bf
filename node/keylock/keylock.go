// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package keylock serializes mutations per logical key.  Keys are mapped to
// a fixed set of mutex stripes with siphash, so two different keys may share
// a stripe but the same key always lands on the same one.
package keylock

import (
	"crypto/rand"
	"sync"

	"github.com/aead/siphash"
)

// DefaultStripes is the stripe count used by New.
const DefaultStripes = 256

// Locker hands out exclusive per-key locks.
type Locker struct {
	key     [16]byte
	stripes []sync.Mutex
}

// New returns a Locker with DefaultStripes stripes.
func New() *Locker {
	return NewStriped(DefaultStripes)
}

// NewStriped returns a Locker with n stripes.  n < 1 is treated as 1.
func NewStriped(n int) *Locker {
	if n < 1 {
		n = 1
	}
	l := &Locker{stripes: make([]sync.Mutex, n)}
	// A random siphash key keeps stripe assignment unpredictable to callers
	// that pick key names.
	_, _ = rand.Read(l.key[:])
	return l
}

func (l *Locker) stripe(key string) *sync.Mutex {
	h := siphash.Sum64([]byte(key), &l.key)
	return &l.stripes[h%uint64(len(l.stripes))]
}

// Lock acquires the lock for key and returns its release function.
func (l *Locker) Lock(key string) (unlock func()) {
	m := l.stripe(key)
	m.Lock()
	return m.Unlock
}

// With runs fn while holding the lock for key.
func (l *Locker) With(key string, fn func() error) error {
	unlock := l.Lock(key)
	defer unlock()
	return fn()
}
