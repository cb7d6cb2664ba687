/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package ntpauth

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Service bundles every long-running piece the daemon needs: the timebase
// readers hit through HTTP, and the sync/probe loops that keep it fed. It is
// the single object cmd/ntpauthd constructs and runs (spec §4.9, C9).
type Service struct {
	Config   Config
	Timebase *Timebase
	Stats    *ServerStats
	Metrics  *Metrics

	sync  *SyncLoop
	probe *ProbeLoop
}

// NewService wires a Config into a ready-to-run Service, registering its
// metrics against reg (cmd/ntpauthd passes a dedicated prometheus.Registry,
// which the HTTP layer also serves at /metrics).
func NewService(cfg Config, reg prometheus.Registerer) *Service {
	clock := systemClock{}
	client := NewClient()
	stats := NewServerStats(cfg.NTPServers)
	metrics := NewMetrics(reg)
	timebase := NewTimebase(clock, cfg.MonotonicOutput, cfg.OffsetBiasMS, cfg.AsymmetryBiasMS)

	onFailure := func(server string) { metrics.ServerFailures.WithLabelValues(server).Inc() }
	selector := NewSelector(cfg.NTPServers, client, stats, clock, cfg.SampleServersPerSync, cfg.MaxOffsetSkewMS, onFailure)

	return &Service{
		Config:   cfg,
		Timebase: timebase,
		Stats:    stats,
		Metrics:  metrics,
		sync:     NewSyncLoop(selector, timebase, metrics, cfg.SyncInterval, cfg.NTPTimeout, cfg.MaxStaleness),
		probe:    NewProbeLoop(cfg.NTPServers, client, stats, clock, metrics, cfg.NTPTimeout, cfg.ProbeMinInterval, cfg.ProbeMaxInterval),
	}
}

// Run drives the sync and probe loops until ctx is canceled, returning the
// first error either reports (normally just ctx.Err() on shutdown).
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("sync loop starting")
		return s.sync.Run(ctx)
	})
	g.Go(func() error {
		log.Info("probe loop starting")
		return s.probe.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		return nil
	})

	err := g.Wait()
	s.Metrics.ReadySince.Set(readyGaugeValue(s.Timebase.Ready()))
	return err
}

// NowMS returns the current authoritative time and whether the service has
// ever synchronized, also updating the anchor-age gauge as a side effect of
// the read (spec §4.9 step "serve /time").
func (s *Service) NowMS() (int64, bool) {
	ms, ready := s.Timebase.NowMS()
	s.Metrics.NtpStalenessSeconds.Set(float64(s.Timebase.AnchorAgeMS()) / 1000)
	s.Metrics.ReadySince.Set(readyGaugeValue(ready))
	return ms, ready
}

// Stale reports whether the current anchor is older than cfg.MaxStaleness.
// The HTTP handlers do not consult it: readiness is the one-way latch, and
// staleness only ever produces the sync loop's WARN log.
func (s *Service) Stale() bool {
	if s.Config.MaxStaleness <= 0 {
		return false
	}
	return s.Timebase.AnchorAgeMS() > s.Config.MaxStaleness.Milliseconds()
}

func readyGaugeValue(ready bool) float64 {
	if ready {
		return 1
	}
	return 0
}
