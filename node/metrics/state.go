// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package metrics

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Snapshot is the protocol state exported as gauges.
type Snapshot struct {
	Anchors            int
	TrustedRoots       int
	Validators         int
	RequiredSignatures int
	Epochs             map[string]int
}

// Source produces snapshots.
type Source interface {
	Snapshot() (Snapshot, error)
}

type stateMetrics struct {
	sync.Mutex
	reg           prometheus.Registerer
	source        Source
	dataDir       string
	metricsByName map[string]prometheus.Gauge
	epochs        *prometheus.GaugeVec
}

// StateMetrics returns a metric group refreshing protocol gauges from src
// and the size of dataDir.  An empty dataDir skips the size gauge.
func StateMetrics(reg prometheus.Registerer, src Source, dataDir string) (IMetric, error) {
	epochs := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "coordinator",
		Name:      "epochs",
		Help:      "Epochs by status.",
	}, []string{"status"})
	if err := reg.Register(epochs); err != nil {
		return nil, err
	}
	return &stateMetrics{
		reg:           reg,
		source:        src,
		dataDir:       dataDir,
		metricsByName: make(map[string]prometheus.Gauge),
		epochs:        epochs,
	}, nil
}

func (s *stateMetrics) Read() {
	snap, err := s.source.Snapshot()
	if err != nil {
		log.Error().Err(err).Msg("can't read protocol state")
		return
	}

	s.updateGauge(prometheus.BuildFQName(Namespace, "registry", "anchors"), float64(snap.Anchors))
	s.updateGauge(prometheus.BuildFQName(Namespace, "registry", "validators"), float64(snap.Validators))
	s.updateGauge(prometheus.BuildFQName(Namespace, "registry", "required_signatures"),
		float64(snap.RequiredSignatures))
	s.updateGauge(prometheus.BuildFQName(Namespace, "verifier", "trusted_roots"), float64(snap.TrustedRoots))

	s.epochs.Reset()
	for status, n := range snap.Epochs {
		s.epochs.WithLabelValues(status).Set(float64(n))
	}

	if s.dataDir == "" {
		return
	}
	dSize, err := dirSize(s.dataDir)
	if err != nil && !os.IsNotExist(err) {
		log.Error().Err(err).Msg("can't calculate data dir size")
		return
	}
	s.updateGauge(prometheus.BuildFQName(Namespace, "node", "data_size"), float64(dSize))
}

func (s *stateMetrics) updateGauge(name string, value float64) {
	s.Lock()
	defer s.Unlock()

	m, ok := s.metricsByName[name]
	if !ok {
		m = prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: name})
		if err := s.reg.Register(m); err != nil {
			log.Error().Err(err).Str("metric", name).Msg("can't register metric")
		}
		s.metricsByName[name] = m
	}
	m.Set(value)
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return err
	})
	return size, err
}
