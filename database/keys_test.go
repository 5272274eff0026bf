// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "root~A~1000", string(Key("root", "A", Uint(1000))))
	assert.Equal(t, "epoch~e1", string(Key("epoch", "e1")))
	assert.Equal(t, "root~A~", string(Prefix("root", "A")))
	assert.Equal(t, "root~", string(Prefix("root")))

	assert.True(t, ValidSegment("chain-A"))
	assert.False(t, ValidSegment(""))
	assert.False(t, ValidSegment("a~b"))
}
