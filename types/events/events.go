// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package events describes the notifications produced by successful
// mutating operations.  Components return events next to their result
// instead of calling out to observers; the node decides where they go.
package events

import (
	"sync"
	"time"
)

// Name of an emitted event.
type Name string

const (
	RootAnchored        Name = "RootAnchored"
	TrustedRootSet      Name = "TrustedRootSet"
	TransactionVerified Name = "TransactionVerified"
	EpochBegun          Name = "EpochBegun"
	ParticipantPrepared Name = "ParticipantPrepared"
	EpochCommitted      Name = "EpochCommitted"
	EpochAborted        Name = "EpochAborted"
	CommitConfirmed     Name = "CommitConfirmed"
	ValidatorAdded      Name = "ValidatorAdded"
	ValidatorRemoved    Name = "ValidatorRemoved"
	QuorumChanged       Name = "QuorumChanged"
)

// Event carries the same record that was returned to the caller.
type Event struct {
	Name    Name        `json:"name"`
	Key     string      `json:"key"`
	Time    time.Time   `json:"time"`
	Payload interface{} `json:"payload"`
}

// New builds an event.
func New(name Name, key string, at time.Time, payload interface{}) Event {
	return Event{Name: name, Key: key, Time: at, Payload: payload}
}

// Sink consumes emitted events.
type Sink interface {
	Publish(evs ...Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(evs ...Event)

// Publish calls f(evs...).
func (f SinkFunc) Publish(evs ...Event) { f(evs...) }

// Fanout publishes to every attached sink in order.
type Fanout struct {
	mtx   sync.RWMutex
	sinks []Sink
}

// Attach adds sinks to the fan-out.
func (f *Fanout) Attach(sinks ...Sink) {
	f.mtx.Lock()
	f.sinks = append(f.sinks, sinks...)
	f.mtx.Unlock()
}

// Publish implements Sink.
func (f *Fanout) Publish(evs ...Event) {
	if len(evs) == 0 {
		return
	}
	f.mtx.RLock()
	defer f.mtx.RUnlock()
	for _, s := range f.sinks {
		s.Publish(evs...)
	}
}

// Recorder keeps every published event; tests use it as a sink.
type Recorder struct {
	mtx    sync.Mutex
	events []Event
}

// Publish implements Sink.
func (r *Recorder) Publish(evs ...Event) {
	r.mtx.Lock()
	r.events = append(r.events, evs...)
	r.mtx.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Names returns the names of the recorded events in order.
func (r *Recorder) Names() []Name {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	out := make([]Name, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Name)
	}
	return out
}
