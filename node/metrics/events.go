// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"gitlab.com/jaxnet/smicp/types/events"
)

// EventCounter counts published events by name.  It is an events.Sink.
type EventCounter struct {
	total *prometheus.CounterVec
}

// NewEventCounter registers the counter on reg.
func NewEventCounter(reg prometheus.Registerer) (*EventCounter, error) {
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "events",
		Name:      "total",
		Help:      "Events emitted by successful protocol operations.",
	}, []string{"name"})
	if err := reg.Register(total); err != nil {
		return nil, err
	}
	return &EventCounter{total: total}, nil
}

// Publish implements events.Sink.
func (c *EventCounter) Publish(evs ...events.Event) {
	for _, ev := range evs {
		c.total.WithLabelValues(string(ev.Name)).Inc()
	}
}
