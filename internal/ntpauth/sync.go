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

// SyncLoop repeatedly runs C3's selection round and, on success, installs
// the winner into the timebase. It is the only caller of Timebase.Install
// (spec §4.5, C5). It also owns the staleness check: MAX_STALENESS does not
// fail anything, it only governs when a WARN-level log fires (spec §6).
type SyncLoop struct {
	selector     *Selector
	timebase     *Timebase
	metrics      *Metrics
	interval     time.Duration
	timeout      time.Duration
	maxStaleness time.Duration
}

// NewSyncLoop wires a Selector and Timebase into a periodic sync driver.
// maxStaleness <= 0 disables the staleness warning entirely.
func NewSyncLoop(selector *Selector, timebase *Timebase, metrics *Metrics, interval, timeout, maxStaleness time.Duration) *SyncLoop {
	return &SyncLoop{selector: selector, timebase: timebase, metrics: metrics, interval: interval, timeout: timeout, maxStaleness: maxStaleness}
}

// Run blocks until ctx is canceled, running one sync round immediately and
// then on a jittered interval (±10%, so that many instances configured
// identically don't all hit the same servers in lockstep).
func (l *SyncLoop) Run(ctx context.Context) error {
	for {
		l.runOnce(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jitter(l.interval)):
		}
	}
}

func (l *SyncLoop) runOnce(ctx context.Context) {
	sample, ok := l.selector.RunSync(ctx, l.timeout)
	l.metrics.ObserveStats(l.selector.stats.Snapshot(l.selector.servers))
	if !ok {
		log.Warn("sync round produced no usable sample")
		l.metrics.NtpSyncErrorsTotal.Inc()
		l.checkStaleness()
		return
	}

	l.timebase.Install(sample)
	l.metrics.NtpSyncTotal.Inc()
	l.metrics.NtpLastSyncTimestampSecs.Set(float64(sample.ServerEpochMS) / 1000)
	l.metrics.NtpOffsetSeconds.Set(float64(sample.OffsetMS) / 1000)
	l.metrics.NtpRTTSeconds.Observe(float64(sample.RTTMS) / 1000)
	l.metrics.NtpStalenessSeconds.Set(0)

	log.WithFields(log.Fields{
		"server": sample.ServerKey,
		"offset": sample.OffsetMS,
		"rtt":    sample.RTTMS,
	}).Debug("sync round installed a new sample")
}

// checkStaleness logs a WARN when the timebase has a live anchor that has
// aged past maxStaleness. It never fails anything: the service keeps serving
// from the existing anchor regardless (spec §6, §7).
func (l *SyncLoop) checkStaleness() {
	if l.maxStaleness <= 0 || !l.timebase.Ready() {
		return
	}
	ageMS := l.timebase.AnchorAgeMS()
	if ageMS <= l.maxStaleness.Milliseconds() {
		return
	}
	log.WithFields(log.Fields{
		"anchor_age_ms": ageMS,
		"max_staleness": l.maxStaleness,
	}).Warn("timebase anchor older than MAX_STALENESS")
}

// jitter returns d scaled by a uniformly random factor in [0.9, 1.1].
func jitter(d time.Duration) time.Duration {
	factor := 0.9 + 0.2*rand.Float64()
	return time.Duration(float64(d) * factor)
}
