// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package badgerdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/jaxnet/smicp/database"
	"gitlab.com/jaxnet/smicp/database/dbtest"
)

func TestConformance(t *testing.T) {
	db, err := Open(t.TempDir(), true)
	require.NoError(t, err)
	defer db.Close()
	dbtest.RunConformance(t, db)
}

func TestReopenKeepsData(t *testing.T) {
	path := t.TempDir()
	db, err := database.Create(dbType, path)
	require.NoError(t, err)
	require.NoError(t, db.Put([]byte("epoch~e1"), []byte("state")))
	require.NoError(t, db.Close())

	db, err = database.Open(dbType, path)
	require.NoError(t, err)
	defer db.Close()

	v, err := db.Get([]byte("epoch~e1"))
	require.NoError(t, err)
	assert.Equal(t, "state", string(v))
}
