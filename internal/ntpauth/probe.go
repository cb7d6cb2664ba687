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
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"
)

// ProbeLoop keeps ServerStats fresh out-of-band with sync decisions, so
// newly-joined or previously-down servers re-enter the candidate pool
// naturally. On each tick it queries exactly one server: the one whose
// last successful query is oldest (never-succeeded servers count as
// oldest of all), breaking ties at random (spec §4.6, C6). It never touches
// the timebase; it only feeds stats and metrics.
type ProbeLoop struct {
	servers []string
	client  querier
	stats   *ServerStats
	clock   monotonicClock
	metrics *Metrics
	timeout time.Duration
	minInt  time.Duration
	maxInt  time.Duration
}

// NewProbeLoop creates a ProbeLoop over every configured server.
func NewProbeLoop(servers []string, client querier, stats *ServerStats, clock monotonicClock, metrics *Metrics, timeout, minInterval, maxInterval time.Duration) *ProbeLoop {
	return &ProbeLoop{
		servers: servers,
		client:  client,
		stats:   stats,
		clock:   clock,
		metrics: metrics,
		timeout: timeout,
		minInt:  minInterval,
		maxInt:  maxInterval,
	}
}

// Run blocks until ctx is canceled, probing one server per tick on a
// uniformly random interval in [PROBE_MIN_INTERVAL, PROBE_MAX_INTERVAL].
func (p *ProbeLoop) Run(ctx context.Context) error {
	if len(p.servers) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.randomInterval()):
		}
		p.probeOne(ctx)
	}
}

// probeOne queries the server selected by pickServer and records the
// outcome. Failures never stop the loop; they only affect stats.
func (p *ProbeLoop) probeOne(ctx context.Context) {
	server := p.pickServer()

	sample, err := p.client.Query(ctx, server, p.timeout)
	at := p.clock.Now()
	if err != nil {
		p.stats.RecordFailure(server, at)
		p.metrics.ServerFailures.WithLabelValues(server).Inc()
		log.WithError(err).WithField("server", server).Debug("probe query failed")
		return
	}
	p.stats.RecordSuccess(server, at, sample.RTTMS, sample.OffsetMS)
}

// pickServer returns the configured server whose last successful query is
// oldest (zero value, i.e. never succeeded, sorts as oldest of all), with
// ties broken uniformly at random.
func (p *ProbeLoop) pickServer() string {
	var oldest []string
	var oldestAt Instant

	for i, server := range p.servers {
		stat, _ := p.stats.Get(server)
		at := stat.LastSuccessAt
		switch {
		case i == 0:
			oldest, oldestAt = []string{server}, at
		case at.Before(oldestAt):
			oldest, oldestAt = []string{server}, at
		case at.Equal(oldestAt):
			oldest = append(oldest, server)
		}
	}
	return oldest[rand.Intn(len(oldest))]
}

func (p *ProbeLoop) randomInterval() time.Duration {
	span := p.maxInt - p.minInt
	if span <= 0 {
		return p.minInt
	}
	return p.minInt + time.Duration(rand.Int63n(int64(span)))
}
