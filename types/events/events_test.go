// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFanoutDeliversToAllSinks(t *testing.T) {
	var a, b Recorder
	var counted int
	f := &Fanout{}
	f.Attach(&a, &b, SinkFunc(func(evs ...Event) { counted += len(evs) }))

	now := time.Unix(1600000000, 0)
	f.Publish(New(RootAnchored, "root~A~1", now, nil), New(TrustedRootSet, "trusted~A~1", now, nil))
	f.Publish()

	assert.Equal(t, []Name{RootAnchored, TrustedRootSet}, a.Names())
	assert.Equal(t, a.Events(), b.Events())
	assert.Equal(t, 2, counted)
}
