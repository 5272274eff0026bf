// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keylock

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSameKeySameStripe(t *testing.T) {
	l := New()
	assert.Same(t, l.stripe("epoch~e1"), l.stripe("epoch~e1"))
}

func TestWithSerializesKey(t *testing.T) {
	l := NewStriped(4)
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.With("root~A~1", func() error {
				v := counter
				v++
				counter = v
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestWithReturnsError(t *testing.T) {
	l := NewStriped(0)
	want := errors.New("boom")
	assert.Equal(t, want, l.With("k", func() error { return want }))

	// The stripe was released.
	unlock := l.Lock("k")
	unlock()
}
