// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coordinator

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/jaxnet/smicp/database/memdb"
	"gitlab.com/jaxnet/smicp/types/coreerr"
	"gitlab.com/jaxnet/smicp/types/events"
)

type fakeClock struct {
	mtx sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mtx.Lock()
	c.now = c.now.Add(d)
	c.mtx.Unlock()
}

func newCoordinator() (*Coordinator, *fakeClock) {
	clock := &fakeClock{now: time.Date(2020, 9, 1, 12, 0, 0, 0, time.UTC)}
	return New(Config{DB: memdb.New(), NodeID: "main", Now: clock.Now}), clock
}

func assertCode(t *testing.T, err error, code coreerr.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	assert.Truef(t, errors.Is(err, code), "want %v, got %v", code, err)
}

func TestHappyPath(t *testing.T) {
	c, clock := newCoordinator()

	epoch, evs, err := c.BeginEpoch("e1", []string{"A", "B"}, time.Second,
		map[string]string{"purpose": "swap"})
	require.NoError(t, err)
	assert.Equal(t, StatusPreparing, epoch.Status)
	assert.Equal(t, "main", epoch.Coordinator)
	assert.Equal(t, PrepareWaiting, epoch.Participants[0].Prepare)
	assert.Equal(t, events.EpochBegun, evs[0].Name)

	clock.Advance(100 * time.Millisecond)
	res, evs, err := c.Prepare("e1", "A", "lock-a")
	require.NoError(t, err)
	assert.False(t, res.AllPrepared)
	assert.Equal(t, StatusPreparing, res.Epoch.Status)
	assert.Equal(t, events.ParticipantPrepared, evs[0].Name)

	_, _, err = c.Commit("e1")
	assertCode(t, err, coreerr.ErrWrongState)

	res, _, err = c.Prepare("e1", "B", "lock-b")
	require.NoError(t, err)
	assert.True(t, res.AllPrepared)
	assert.Equal(t, StatusPrepared, res.Epoch.Status)

	epoch, evs, err = c.Commit("e1")
	require.NoError(t, err)
	assert.Equal(t, StatusCommitted, epoch.Status)
	assert.Equal(t, CommitPending, epoch.Participants[1].Commit)
	assert.Equal(t, events.EpochCommitted, evs[0].Name)

	_, _, err = c.Abort("e1", "changed my mind")
	assertCode(t, err, coreerr.ErrWrongState)

	conf, _, err := c.ConfirmCommit("e1", "B")
	require.NoError(t, err)
	assert.False(t, conf.AllConfirmed)

	_, _, err = c.ConfirmCommit("e1", "C")
	assertCode(t, err, coreerr.ErrNotAParticipant)

	conf, evs, err = c.ConfirmCommit("e1", "A")
	require.NoError(t, err)
	assert.True(t, conf.AllConfirmed)
	assert.Equal(t, StatusCompleted, conf.Epoch.Status)
	assert.Equal(t, events.CommitConfirmed, evs[0].Name)

	stored, err := c.GetEpochStatus("e1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, stored.Status)
	assert.Equal(t, "lock-a", stored.Participants[0].PrepareData)

	_, _, err = c.ConfirmCommit("e1", "A")
	assertCode(t, err, coreerr.ErrWrongState)
}

func TestPrepareAfterTimeout(t *testing.T) {
	c, clock := newCoordinator()

	_, _, err := c.BeginEpoch("e1", []string{"A", "B"}, 1000*time.Millisecond, nil)
	require.NoError(t, err)
	_, _, err = c.Prepare("e1", "A", "")
	require.NoError(t, err)

	clock.Advance(1100 * time.Millisecond)
	_, evs, err := c.Prepare("e1", "B", "")
	assertCode(t, err, coreerr.ErrEpochTimedOut)
	kind, _ := coreerr.KindOf(err)
	assert.Equal(t, coreerr.KindTimeout, kind)
	require.Len(t, evs, 1)
	assert.Equal(t, events.EpochAborted, evs[0].Name)

	epoch, err := c.GetEpochStatus("e1")
	require.NoError(t, err)
	assert.Equal(t, StatusAborted, epoch.Status)
	assert.Equal(t, ReasonTimeout, epoch.AbortReason)

	// Once dead, later preparations are state errors.
	_, _, err = c.Prepare("e1", "B", "")
	assertCode(t, err, coreerr.ErrWrongState)
}

func TestDeadlineIsInclusive(t *testing.T) {
	c, clock := newCoordinator()
	_, _, err := c.BeginEpoch("e1", []string{"A"}, time.Second, nil)
	require.NoError(t, err)

	clock.Advance(time.Second)
	res, _, err := c.Prepare("e1", "A", "")
	require.NoError(t, err)
	assert.True(t, res.AllPrepared)
}

func TestCommitAfterTimeout(t *testing.T) {
	c, clock := newCoordinator()
	_, _, err := c.BeginEpoch("e1", []string{"A"}, time.Second, nil)
	require.NoError(t, err)
	_, _, err = c.Prepare("e1", "A", "")
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, evs, err := c.Commit("e1")
	assertCode(t, err, coreerr.ErrEpochTimedOut)
	assert.Len(t, evs, 1)

	epoch, err := c.GetEpochStatus("e1")
	require.NoError(t, err)
	assert.Equal(t, StatusAborted, epoch.Status)
}

func TestCommittedEpochIgnoresDeadline(t *testing.T) {
	c, clock := newCoordinator()
	_, _, err := c.BeginEpoch("e1", []string{"A"}, time.Second, nil)
	require.NoError(t, err)
	_, _, err = c.Prepare("e1", "A", "")
	require.NoError(t, err)
	_, _, err = c.Commit("e1")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	aborted, _, err := c.CleanupTimeouts()
	require.NoError(t, err)
	assert.Empty(t, aborted)

	conf, _, err := c.ConfirmCommit("e1", "A")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, conf.Epoch.Status)
}

func TestCleanupTimeouts(t *testing.T) {
	c, clock := newCoordinator()
	_, _, err := c.BeginEpoch("slow", []string{"A", "B"}, time.Second, nil)
	require.NoError(t, err)
	_, _, err = c.BeginEpoch("ready", []string{"A"}, time.Second, nil)
	require.NoError(t, err)
	_, _, err = c.Prepare("ready", "A", "")
	require.NoError(t, err)
	_, _, err = c.BeginEpoch("fresh", []string{"A"}, time.Minute, nil)
	require.NoError(t, err)
	_, _, err = c.BeginEpoch("done", []string{"A"}, time.Second, nil)
	require.NoError(t, err)
	_, _, err = c.Abort("done", "operator")
	require.NoError(t, err)

	clock.Advance(5 * time.Second)
	aborted, evs, err := c.CleanupTimeouts()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"slow", "ready"}, aborted)
	assert.Len(t, evs, 2)

	for _, id := range aborted {
		epoch, err := c.GetEpochStatus(id)
		require.NoError(t, err)
		assert.Equal(t, StatusAborted, epoch.Status)
		assert.Equal(t, ReasonTimeout, epoch.AbortReason)

		_, _, err = c.Prepare(id, "A", "")
		assertCode(t, err, coreerr.ErrWrongState)
		_, _, err = c.Commit(id)
		assertCode(t, err, coreerr.ErrWrongState)
	}

	done, err := c.GetEpochStatus("done")
	require.NoError(t, err)
	assert.Equal(t, "operator", done.AbortReason)

	again, _, err := c.CleanupTimeouts()
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestBeginEpochValidation(t *testing.T) {
	c, _ := newCoordinator()

	_, _, err := c.BeginEpoch("e1", nil, time.Second, nil)
	assertCode(t, err, coreerr.ErrEmptyParticipantSet)
	kind, _ := coreerr.KindOf(err)
	assert.Equal(t, coreerr.KindValidation, kind)

	_, _, err = c.BeginEpoch("", []string{"A"}, time.Second, nil)
	assertCode(t, err, coreerr.ErrInvalidInput)
	_, _, err = c.BeginEpoch("e1", []string{"A", "A"}, time.Second, nil)
	assertCode(t, err, coreerr.ErrInvalidInput)
	_, _, err = c.BeginEpoch("e1", []string{"A"}, 0, nil)
	assertCode(t, err, coreerr.ErrInvalidInput)

	_, _, err = c.BeginEpoch("e1", []string{"A"}, time.Second, nil)
	require.NoError(t, err)
	_, _, err = c.BeginEpoch("e1", []string{"B"}, time.Second, nil)
	assertCode(t, err, coreerr.ErrDuplicateEpoch)
}

func TestUnknownEpochAndParticipant(t *testing.T) {
	c, _ := newCoordinator()

	_, _, err := c.Prepare("nope", "A", "")
	assertCode(t, err, coreerr.ErrEpochNotFound)
	_, err = c.GetEpochStatus("nope")
	assertCode(t, err, coreerr.ErrEpochNotFound)

	_, _, err = c.BeginEpoch("e1", []string{"A"}, time.Second, nil)
	require.NoError(t, err)
	_, _, err = c.Prepare("e1", "Z", "")
	assertCode(t, err, coreerr.ErrNotAParticipant)
	kind, _ := coreerr.KindOf(err)
	assert.Equal(t, coreerr.KindAuthorization, kind)

	_, _, err = c.ConfirmCommit("e1", "A")
	assertCode(t, err, coreerr.ErrWrongState)
	_, _, err = c.Abort("e1", "")
	assertCode(t, err, coreerr.ErrInvalidInput)
}

func TestRepeatedPrepareIsNoop(t *testing.T) {
	c, _ := newCoordinator()
	_, _, err := c.BeginEpoch("e1", []string{"A", "B"}, time.Second, nil)
	require.NoError(t, err)

	_, _, err = c.Prepare("e1", "A", "first")
	require.NoError(t, err)
	res, evs, err := c.Prepare("e1", "A", "second")
	require.NoError(t, err)
	assert.Empty(t, evs)
	assert.False(t, res.AllPrepared)
	assert.Equal(t, "first", res.Epoch.Participants[0].PrepareData)
}

func TestConcurrentPrepareCountsOnce(t *testing.T) {
	c, _ := newCoordinator()
	participants := make([]string, 20)
	for i := range participants {
		participants[i] = fmt.Sprintf("chain-%d", i)
	}
	_, _, err := c.BeginEpoch("e1", participants, time.Minute, nil)
	require.NoError(t, err)

	var (
		wg    sync.WaitGroup
		mtx   sync.Mutex
		evCnt int
		fin   int
	)
	for round := 0; round < 3; round++ {
		for _, p := range participants {
			wg.Add(1)
			go func(p string) {
				defer wg.Done()
				res, evs, err := c.Prepare("e1", p, "")
				if err != nil {
					// Late rounds land after the epoch left PREPARING.
					assert.True(t, coreerr.CodeIs(err, coreerr.ErrWrongState), err)
					return
				}
				mtx.Lock()
				evCnt += len(evs)
				if len(evs) > 0 && res.AllPrepared {
					fin++
				}
				mtx.Unlock()
			}(p)
		}
	}
	wg.Wait()

	assert.Equal(t, len(participants), evCnt)
	assert.Equal(t, 1, fin)

	epoch, err := c.GetEpochStatus("e1")
	require.NoError(t, err)
	assert.Equal(t, StatusPrepared, epoch.Status)
}

func TestListEpochs(t *testing.T) {
	c, clock := newCoordinator()
	for _, id := range []string{"b", "a", "c"} {
		_, _, err := c.BeginEpoch(id, []string{"A"}, time.Minute, nil)
		require.NoError(t, err)
		clock.Advance(time.Millisecond)
	}
	_, _, err := c.Abort("a", "test")
	require.NoError(t, err)

	all, err := c.ListEpochs("")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{all[0].ID, all[1].ID, all[2].ID})

	aborted, err := c.ListEpochs(StatusAborted)
	require.NoError(t, err)
	require.Len(t, aborted, 1)
	assert.Equal(t, "a", aborted[0].ID)

	_, err = c.ListEpochs("BOGUS")
	assertCode(t, err, coreerr.ErrInvalidInput)
}

func TestTransitionsAreMonotonic(t *testing.T) {
	e := &Epoch{Status: StatusCommitted}
	assert.Error(t, e.transition("k", StatusPreparing, time.Now()))
	assert.Error(t, e.transition("k", StatusAborted, time.Now()))
	assert.NoError(t, e.transition("k", StatusCompleted, time.Now()))
	assert.Error(t, e.transition("k", StatusAborted, time.Now()))
}
