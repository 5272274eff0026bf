// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package memdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/jaxnet/smicp/database"
	"gitlab.com/jaxnet/smicp/database/dbtest"
)

func TestConformance(t *testing.T) {
	db := New()
	defer db.Close()
	dbtest.RunConformance(t, db)
}

func TestRegisteredDriver(t *testing.T) {
	db, err := database.Create(dbType)
	require.NoError(t, err)
	assert.Equal(t, "memdb", db.Type())

	require.NoError(t, db.Close())
	err = db.Put([]byte("k"), []byte("v"))
	require.Error(t, err)
	dbErr, ok := err.(database.Error)
	require.True(t, ok)
	assert.Equal(t, database.ErrDbNotOpen, dbErr.ErrorCode)
}
