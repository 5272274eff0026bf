// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package metrics exports protocol counters and gauges to prometheus.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "smicp"

// IMetric is a periodically refreshed metric group.
type IMetric interface {
	Read()
}

// Manager refreshes metric groups on an interval and serves the registry.
type Manager struct {
	registry *prometheus.Registry
	metrics  []IMetric
	interval time.Duration
}

// NewManager returns a manager with its own registry.
func NewManager(interval time.Duration) *Manager {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Manager{
		registry: prometheus.NewRegistry(),
		interval: interval,
	}
}

// Registry is where metric groups register their collectors.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Add appends metric groups.  Call it before Run.
func (m *Manager) Add(metrics ...IMetric) {
	m.metrics = append(m.metrics, metrics...)
}

// Run refreshes every group until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.readAll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.readAll()
		}
	}
}

func (m *Manager) readAll() {
	for _, v := range m.metrics {
		v.Read()
	}
}

// Handler serves the registry in the prometheus text format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Listen serves route on port until ctx is done.
func (m *Manager) Listen(ctx context.Context, route string, port uint16) error {
	mux := http.NewServeMux()
	mux.Handle(route, m.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	log.Info().Uint16("port", port).Str("route", route).Msg("Metrics listener started")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
