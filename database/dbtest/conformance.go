// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package dbtest holds the behaviour every database backend must share.
package dbtest

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/jaxnet/smicp/database"
)

// RunConformance exercises db against the database.DB contract.  The caller
// owns db and closes it afterwards.
func RunConformance(t *testing.T, db database.DB) {
	t.Run("get missing", func(t *testing.T) {
		_, err := db.Get([]byte("missing"))
		require.Error(t, err)
		assert.True(t, database.IsNotFound(err))

		ok, err := db.Has([]byte("missing"))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("put get delete", func(t *testing.T) {
		require.NoError(t, db.Put([]byte("k1"), []byte("v1")))
		v, err := db.Get([]byte("k1"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), v)

		require.NoError(t, db.Put([]byte("k1"), []byte("v2")))
		v, err = db.Get([]byte("k1"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), v)

		ok, err := db.Has([]byte("k1"))
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, db.Delete([]byte("k1")))
		_, err = db.Get([]byte("k1"))
		assert.True(t, database.IsNotFound(err))

		require.NoError(t, db.Delete([]byte("never-stored")))
	})

	t.Run("empty key", func(t *testing.T) {
		assert.Error(t, db.Put(nil, []byte("v")))
	})

	t.Run("returned value is a copy", func(t *testing.T) {
		require.NoError(t, db.Put([]byte("copy"), []byte("abc")))
		v, err := db.Get([]byte("copy"))
		require.NoError(t, err)
		v[0] = 'x'
		v, err = db.Get([]byte("copy"))
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), v)
	})

	t.Run("batch", func(t *testing.T) {
		require.NoError(t, db.Put([]byte("b~gone"), []byte("x")))

		batch := database.NewBatch()
		batch.Put([]byte("b~1"), []byte("one"))
		batch.Put([]byte("b~2"), []byte("two"))
		batch.Delete([]byte("b~gone"))
		require.Equal(t, 3, batch.Len())
		require.NoError(t, db.Write(batch))

		for k, want := range map[string]string{"b~1": "one", "b~2": "two"} {
			v, err := db.Get([]byte(k))
			require.NoError(t, err)
			assert.Equal(t, want, string(v))
		}
		ok, err := db.Has([]byte("b~gone"))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("batch with invalid op applies nothing", func(t *testing.T) {
		batch := database.NewBatch()
		batch.Put([]byte("atomic~1"), []byte("x"))
		batch.Put(nil, []byte("bad"))
		require.Error(t, db.Write(batch))

		ok, err := db.Has([]byte("atomic~1"))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("iterate is ordered by prefix", func(t *testing.T) {
		keys := []string{"it~c", "it~a", "it~b", "iu~z", "is~0"}
		for _, k := range keys {
			require.NoError(t, db.Put([]byte(k), []byte("v"+k)))
		}

		var got []string
		err := db.Iterate([]byte("it~"), func(key, value []byte) error {
			got = append(got, string(key))
			assert.Equal(t, "v"+string(key), string(value))
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"it~a", "it~b", "it~c"}, got)
	})

	t.Run("iterate stops on error", func(t *testing.T) {
		stop := errors.New("stop")
		calls := 0
		err := db.Iterate([]byte("it~"), func(key, value []byte) error {
			calls++
			return stop
		})
		assert.Equal(t, stop, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("concurrent writers", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				for j := 0; j < 25; j++ {
					key := []byte(fmt.Sprintf("cc~%d~%02d", i, j))
					assert.NoError(t, db.Put(key, key))
				}
			}(i)
		}
		wg.Wait()

		count := 0
		require.NoError(t, db.Iterate([]byte("cc~"), func(key, value []byte) error {
			count++
			return nil
		}))
		assert.Equal(t, 200, count)
	})
}
