// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coordinator

import (
	"time"

	"gitlab.com/jaxnet/smicp/types/coreerr"
)

// Status is the state of an epoch.
type Status string

const (
	StatusPreparing Status = "PREPARING"
	StatusPrepared  Status = "PREPARED"
	StatusCommitted Status = "COMMITTED"
	StatusCompleted Status = "COMPLETED"
	StatusAborted   Status = "ABORTED"
)

// ReasonTimeout is the abort reason recorded when an epoch outlives its
// deadline.
const ReasonTimeout = "TIMEOUT"

// transitions lists the allowed moves of the epoch state machine.  There is
// no way back from COMMITTED, and terminal states have no exits.
var transitions = map[Status][]Status{
	StatusPreparing: {StatusPrepared, StatusAborted},
	StatusPrepared:  {StatusCommitted, StatusAborted},
	StatusCommitted: {StatusCompleted},
}

// IsTerminal reports whether s is COMPLETED or ABORTED.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusAborted
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPreparing, StatusPrepared, StatusCommitted, StatusCompleted, StatusAborted:
		return true
	}
	return false
}

// PrepareState is the per-participant preparation state.
type PrepareState string

const (
	PrepareWaiting PrepareState = "WAITING"
	PrepareDone    PrepareState = "PREPARED"
)

// CommitState is the per-participant commit confirmation state.  It stays
// empty until the epoch commits.
type CommitState string

const (
	CommitPending   CommitState = "PENDING"
	CommitConfirmed CommitState = "CONFIRMED"
)

// Participant is stored by value inside its epoch.
type Participant struct {
	ID          string       `json:"id"`
	Prepare     PrepareState `json:"prepare"`
	PrepareData string       `json:"prepare_data,omitempty"`
	PreparedAt  *time.Time   `json:"prepared_at,omitempty"`
	Commit      CommitState  `json:"commit,omitempty"`
	ConfirmedAt *time.Time   `json:"confirmed_at,omitempty"`
}

// Epoch is one atomic commit attempt.
type Epoch struct {
	ID           string            `json:"id"`
	Participants []Participant     `json:"participants"`
	Status       Status            `json:"status"`
	StartTime    time.Time         `json:"start_time"`
	Timeout      time.Duration     `json:"timeout"`
	Coordinator  string            `json:"coordinator"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	AbortReason  string            `json:"abort_reason,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Expired reports whether more than Timeout has elapsed since StartTime.
func (e *Epoch) Expired(now time.Time) bool {
	return now.Sub(e.StartTime) > e.Timeout
}

// participant returns the index of id, or -1.
func (e *Epoch) participant(id string) int {
	for i := range e.Participants {
		if e.Participants[i].ID == id {
			return i
		}
	}
	return -1
}

func (e *Epoch) allPrepared() bool {
	for i := range e.Participants {
		if e.Participants[i].Prepare != PrepareDone {
			return false
		}
	}
	return true
}

func (e *Epoch) allConfirmed() bool {
	for i := range e.Participants {
		if e.Participants[i].Commit != CommitConfirmed {
			return false
		}
	}
	return true
}

func (e *Epoch) transition(key string, to Status, at time.Time) error {
	for _, allowed := range transitions[e.Status] {
		if allowed == to {
			e.Status = to
			e.UpdatedAt = at
			return nil
		}
	}
	return coreerr.Newf(coreerr.ErrWrongState, key,
		"epoch is %s, cannot move to %s", e.Status, to)
}
