// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package coordinator drives N-party two-phase commit epochs with a global
// deadline.
//
// Deadlines are checked lazily by Prepare and Commit and eagerly by
// CleanupTimeouts.  Nothing depends on a background scheduler; the node
// runs one only to reap abandoned epochs sooner.
package coordinator

import (
	"encoding/json"
	"sort"
	"time"

	"gitlab.com/jaxnet/smicp/database"
	"gitlab.com/jaxnet/smicp/node/keylock"
	"gitlab.com/jaxnet/smicp/types/coreerr"
	"gitlab.com/jaxnet/smicp/types/events"
)

const epochPrefix = "epoch"

// Config holds the coordinator collaborators.
type Config struct {
	DB database.DB

	// NodeID is recorded as the coordinator of every epoch begun here.
	NodeID string

	Locks *keylock.Locker
	Now   func() time.Time
}

// Coordinator is the CommitCoordinator.
type Coordinator struct {
	db     database.DB
	nodeID string
	locks  *keylock.Locker
	now    func() time.Time
}

// PrepareResult is returned by Prepare.
type PrepareResult struct {
	AllPrepared bool   `json:"all_prepared"`
	Epoch       *Epoch `json:"epoch"`
}

// ConfirmResult is returned by ConfirmCommit.
type ConfirmResult struct {
	AllConfirmed bool   `json:"all_confirmed"`
	Epoch        *Epoch `json:"epoch"`
}

// New builds a coordinator.
func New(cfg Config) *Coordinator {
	c := &Coordinator{db: cfg.DB, nodeID: cfg.NodeID, locks: cfg.Locks, now: cfg.Now}
	if c.locks == nil {
		c.locks = keylock.New()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// EpochKey returns the storage key of an epoch.
func EpochKey(epochID string) []byte {
	return database.Key(epochPrefix, epochID)
}

func (c *Coordinator) load(key []byte) (*Epoch, error) {
	raw, err := c.db.Get(key)
	if database.IsNotFound(err) {
		return nil, coreerr.New(coreerr.ErrEpochNotFound, string(key), "unknown epoch")
	}
	if err != nil {
		return nil, coreerr.Storage(string(key), err, "unable to read epoch")
	}
	epoch := new(Epoch)
	if err := json.Unmarshal(raw, epoch); err != nil {
		return nil, coreerr.Storage(string(key), err, "unable to decode epoch")
	}
	return epoch, nil
}

func (c *Coordinator) store(key []byte, epoch *Epoch) error {
	raw, err := json.Marshal(epoch)
	if err != nil {
		return coreerr.Storage(string(key), err, "unable to encode epoch")
	}
	if err := c.db.Put(key, raw); err != nil {
		return coreerr.Storage(string(key), err, "unable to store epoch")
	}
	return nil
}

// abortLocked moves epoch to ABORTED and persists it.  The caller holds the
// epoch lock.
func (c *Coordinator) abortLocked(key []byte, epoch *Epoch, reason string,
	now time.Time) ([]events.Event, error) {

	if err := epoch.transition(string(key), StatusAborted, now); err != nil {
		return nil, err
	}
	epoch.AbortReason = reason
	if err := c.store(key, epoch); err != nil {
		return nil, err
	}

	log.Info().Str("epoch", epoch.ID).Str("reason", reason).Msg("Epoch aborted")
	return []events.Event{events.New(events.EpochAborted, string(key), now, *epoch)}, nil
}

// expire aborts an overdue epoch with reason TIMEOUT.  The returned error
// is always a TimeoutError unless storing the abort failed.
func (c *Coordinator) expire(key []byte, epoch *Epoch, now time.Time) ([]events.Event, error) {
	evs, err := c.abortLocked(key, epoch, ReasonTimeout, now)
	if err != nil {
		return nil, err
	}
	return evs, coreerr.Newf(coreerr.ErrEpochTimedOut, string(key),
		"deadline of %s passed %s after start", epoch.Timeout, now.Sub(epoch.StartTime))
}

// BeginEpoch creates an epoch in PREPARING with every participant WAITING.
func (c *Coordinator) BeginEpoch(epochID string, participants []string, timeout time.Duration,
	metadata map[string]string) (*Epoch, []events.Event, error) {

	key := EpochKey(epochID)
	if !database.ValidSegment(epochID) {
		return nil, nil, coreerr.Newf(coreerr.ErrInvalidInput, string(key),
			"epoch id %q must be non-empty and must not contain %q", epochID, database.KeySeparator)
	}
	if len(participants) == 0 {
		return nil, nil, coreerr.New(coreerr.ErrEmptyParticipantSet, string(key),
			"epoch needs at least one participant")
	}
	if timeout <= 0 {
		return nil, nil, coreerr.Newf(coreerr.ErrInvalidInput, string(key),
			"timeout %s must be positive", timeout)
	}

	seen := make(map[string]struct{}, len(participants))
	members := make([]Participant, 0, len(participants))
	for _, id := range participants {
		if id == "" {
			return nil, nil, coreerr.New(coreerr.ErrInvalidInput, string(key),
				"participant id is empty")
		}
		if _, dup := seen[id]; dup {
			return nil, nil, coreerr.Newf(coreerr.ErrInvalidInput, string(key),
				"participant %s listed twice", id)
		}
		seen[id] = struct{}{}
		members = append(members, Participant{ID: id, Prepare: PrepareWaiting})
	}

	unlock := c.locks.Lock(string(key))
	defer unlock()

	exists, err := c.db.Has(key)
	if err != nil {
		return nil, nil, coreerr.Storage(string(key), err, "unable to check epoch")
	}
	if exists {
		return nil, nil, coreerr.New(coreerr.ErrDuplicateEpoch, string(key), "epoch already exists")
	}

	now := c.now().UTC()
	epoch := &Epoch{
		ID:           epochID,
		Participants: members,
		Status:       StatusPreparing,
		StartTime:    now,
		Timeout:      timeout,
		Coordinator:  c.nodeID,
		Metadata:     metadata,
		UpdatedAt:    now,
	}
	if err := c.store(key, epoch); err != nil {
		return nil, nil, err
	}

	log.Info().Str("epoch", epochID).Int("participants", len(members)).
		Dur("timeout", timeout).Msg("Epoch begun")
	return epoch, []events.Event{events.New(events.EpochBegun, string(key), now, *epoch)}, nil
}

// Prepare records that participantID is ready to commit.  The last
// participant to prepare moves the epoch to PREPARED.  Preparing again while
// the epoch is still PREPARING is a no-op; once PREPARED it fails with
// WrongState.  An overdue epoch is aborted with reason TIMEOUT instead, and the
// abort event is returned along with the TimeoutError.
func (c *Coordinator) Prepare(epochID, participantID, data string) (*PrepareResult, []events.Event, error) {
	key := EpochKey(epochID)
	unlock := c.locks.Lock(string(key))
	defer unlock()

	epoch, err := c.load(key)
	if err != nil {
		return nil, nil, err
	}
	idx := epoch.participant(participantID)
	if idx < 0 {
		return nil, nil, coreerr.Newf(coreerr.ErrNotAParticipant, string(key),
			"%s is not a participant", participantID)
	}
	if epoch.Status != StatusPreparing {
		return nil, nil, coreerr.Newf(coreerr.ErrWrongState, string(key),
			"epoch is %s, prepare needs %s", epoch.Status, StatusPreparing)
	}

	now := c.now().UTC()
	if epoch.Expired(now) {
		evs, err := c.expire(key, epoch, now)
		return nil, evs, err
	}

	p := &epoch.Participants[idx]
	if p.Prepare == PrepareDone {
		return &PrepareResult{AllPrepared: epoch.allPrepared(), Epoch: epoch}, nil, nil
	}
	p.Prepare = PrepareDone
	p.PrepareData = data
	p.PreparedAt = &now
	epoch.UpdatedAt = now

	all := epoch.allPrepared()
	if all {
		if err := epoch.transition(string(key), StatusPrepared, now); err != nil {
			return nil, nil, err
		}
	}
	if err := c.store(key, epoch); err != nil {
		return nil, nil, err
	}

	log.Debug().Str("epoch", epochID).Str("participant", participantID).
		Bool("all_prepared", all).Msg("Participant prepared")
	res := &PrepareResult{AllPrepared: all, Epoch: epoch}
	return res, []events.Event{events.New(events.ParticipantPrepared, string(key), now, *res)}, nil
}

// Commit moves a PREPARED epoch to COMMITTED.  There is no way back.
func (c *Coordinator) Commit(epochID string) (*Epoch, []events.Event, error) {
	key := EpochKey(epochID)
	unlock := c.locks.Lock(string(key))
	defer unlock()

	epoch, err := c.load(key)
	if err != nil {
		return nil, nil, err
	}

	now := c.now().UTC()
	if c.overdue(epoch, now) {
		evs, err := c.expire(key, epoch, now)
		return nil, evs, err
	}
	if epoch.Status != StatusPrepared {
		return nil, nil, coreerr.Newf(coreerr.ErrWrongState, string(key),
			"epoch is %s, commit needs %s", epoch.Status, StatusPrepared)
	}

	if err := epoch.transition(string(key), StatusCommitted, now); err != nil {
		return nil, nil, err
	}
	for i := range epoch.Participants {
		epoch.Participants[i].Commit = CommitPending
	}
	if err := c.store(key, epoch); err != nil {
		return nil, nil, err
	}

	log.Info().Str("epoch", epochID).Msg("Epoch committed")
	return epoch, []events.Event{events.New(events.EpochCommitted, string(key), now, *epoch)}, nil
}

// Abort moves a PREPARING or PREPARED epoch to ABORTED with reason.
func (c *Coordinator) Abort(epochID, reason string) (*Epoch, []events.Event, error) {
	key := EpochKey(epochID)
	if reason == "" {
		return nil, nil, coreerr.New(coreerr.ErrInvalidInput, string(key), "abort reason is empty")
	}

	unlock := c.locks.Lock(string(key))
	defer unlock()

	epoch, err := c.load(key)
	if err != nil {
		return nil, nil, err
	}
	evs, err := c.abortLocked(key, epoch, reason, c.now().UTC())
	if err != nil {
		return nil, nil, err
	}
	return epoch, evs, nil
}

// ConfirmCommit records that participantID applied the commit.  The last
// confirmation completes the epoch.  Confirming again is a no-op.
func (c *Coordinator) ConfirmCommit(epochID, participantID string) (*ConfirmResult, []events.Event, error) {
	key := EpochKey(epochID)
	unlock := c.locks.Lock(string(key))
	defer unlock()

	epoch, err := c.load(key)
	if err != nil {
		return nil, nil, err
	}
	if epoch.Status != StatusCommitted {
		return nil, nil, coreerr.Newf(coreerr.ErrWrongState, string(key),
			"epoch is %s, confirmation needs %s", epoch.Status, StatusCommitted)
	}
	idx := epoch.participant(participantID)
	if idx < 0 {
		return nil, nil, coreerr.Newf(coreerr.ErrNotAParticipant, string(key),
			"%s is not a participant", participantID)
	}

	p := &epoch.Participants[idx]
	if p.Commit == CommitConfirmed {
		return &ConfirmResult{AllConfirmed: epoch.allConfirmed(), Epoch: epoch}, nil, nil
	}

	now := c.now().UTC()
	p.Commit = CommitConfirmed
	p.ConfirmedAt = &now
	epoch.UpdatedAt = now

	all := epoch.allConfirmed()
	if all {
		if err := epoch.transition(string(key), StatusCompleted, now); err != nil {
			return nil, nil, err
		}
	}
	if err := c.store(key, epoch); err != nil {
		return nil, nil, err
	}

	log.Debug().Str("epoch", epochID).Str("participant", participantID).
		Bool("all_confirmed", all).Msg("Commit confirmed")
	res := &ConfirmResult{AllConfirmed: all, Epoch: epoch}
	return res, []events.Event{events.New(events.CommitConfirmed, string(key), now, *res)}, nil
}

// GetEpochStatus returns the epoch record.
func (c *Coordinator) GetEpochStatus(epochID string) (*Epoch, error) {
	return c.load(EpochKey(epochID))
}

// ListEpochs returns epochs with the given status, or all of them when
// status is empty, ordered by start time.
func (c *Coordinator) ListEpochs(status Status) ([]Epoch, error) {
	if status != "" && !status.Valid() {
		return nil, coreerr.Newf(coreerr.ErrInvalidInput, "", "unknown status %q", status)
	}

	prefix := database.Prefix(epochPrefix)
	epochs := []Epoch{}
	err := c.db.Iterate(prefix, func(key, value []byte) error {
		var e Epoch
		if err := json.Unmarshal(value, &e); err != nil {
			return coreerr.Storage(string(key), err, "unable to decode epoch")
		}
		if status == "" || e.Status == status {
			epochs = append(epochs, e)
		}
		return nil
	})
	if err != nil {
		if _, ok := coreerr.As(err); ok {
			return nil, err
		}
		return nil, coreerr.Storage(string(prefix), err, "unable to list epochs")
	}

	sort.SliceStable(epochs, func(i, j int) bool {
		if !epochs[i].StartTime.Equal(epochs[j].StartTime) {
			return epochs[i].StartTime.Before(epochs[j].StartTime)
		}
		return epochs[i].ID < epochs[j].ID
	})
	return epochs, nil
}

// CleanupTimeouts aborts every PREPARING or PREPARED epoch past its
// deadline with reason TIMEOUT and returns their ids.
func (c *Coordinator) CleanupTimeouts() ([]string, []events.Event, error) {
	candidates, err := c.ListEpochs("")
	if err != nil {
		return nil, nil, err
	}

	aborted := []string{}
	var evs []events.Event
	for i := range candidates {
		if !c.overdue(&candidates[i], c.now().UTC()) {
			continue
		}

		key := EpochKey(candidates[i].ID)
		unlock := c.locks.Lock(string(key))
		// Re-read under the lock; a concurrent call may have moved it.
		epoch, err := c.load(key)
		if err == nil && c.overdue(epoch, c.now().UTC()) {
			var abortEvs []events.Event
			abortEvs, err = c.abortLocked(key, epoch, ReasonTimeout, c.now().UTC())
			if err == nil {
				aborted = append(aborted, epoch.ID)
				evs = append(evs, abortEvs...)
			}
		}
		unlock()
		if err != nil {
			return aborted, evs, err
		}
	}

	if len(aborted) > 0 {
		log.Info().Strs("epochs", aborted).Msg("Reaped timed out epochs")
	}
	return aborted, evs, nil
}

func (c *Coordinator) overdue(e *Epoch, now time.Time) bool {
	return (e.Status == StatusPreparing || e.Status == StatusPrepared) && e.Expired(now)
}

