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
	"sync"
	"sync/atomic"
)

// anchor is the pair the timebase pivots every reading off of: an NTP epoch
// millisecond paired with the monotonic Instant it was installed at.
type anchor struct {
	ntpMS int64
	mono  Instant
}

// Timebase turns a sequence of winning NtpSamples into a single, strictly
// non-decreasing millisecond clock. It is the only component allowed to move
// the service's idea of "now"; every HTTP response reads through it.
type Timebase struct {
	mu    sync.RWMutex
	a     anchor
	ready readyLatch

	clock           monotonicClock
	monotonicOutput bool
	offsetBiasMS    int64
	asymmetryBiasMS int64

	lastEmitted int64 // atomic: fetch-max guard independent of mu, read by NowMS
}

// NewTimebase creates a Timebase. It reads unready until the first sample is
// installed.
func NewTimebase(clock monotonicClock, monotonicOutput bool, offsetBiasMS, asymmetryBiasMS int64) *Timebase {
	return &Timebase{
		clock:           clock,
		monotonicOutput: monotonicOutput,
		offsetBiasMS:    offsetBiasMS,
		asymmetryBiasMS: asymmetryBiasMS,
	}
}

// Install absorbs a fresh sample. The proposed anchor is derived from the
// sample's server_epoch_ms and the Instant the sample was taken, corrected
// by the configured bias terms. It is compared against the *live
// projection* of the existing anchor — not against whatever a reader has
// most recently observed — because no reader may have called NowMS between
// two installs at all. If the proposal would step backward and
// MONOTONIC_OUTPUT is set, the anchor is pinned at the live-projected value
// instead, so NowMS keeps advancing at real time from where it left off
// rather than regressing on the very next read (spec §4.4 step 4, §9).
func (t *Timebase) Install(sample NtpSample) {
	proposed := int64(sample.ServerEpochMS) + t.offsetBiasMS + t.asymmetryBiasMS

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.ready.isReady() {
		t.a = anchor{ntpMS: proposed, mono: sample.TRecv}
		t.ready.mark()
		return
	}

	current := t.a.ntpMS + sinceMs(t.a.mono, sample.TRecv)

	if proposed >= current || !t.monotonicOutput {
		t.a = anchor{ntpMS: proposed, mono: sample.TRecv}
		return
	}

	// Absorb the regression: keep advancing monotonically from the
	// anchor's live-projected value instead of snapping backward.
	t.a = anchor{ntpMS: current, mono: sample.TRecv}
}

// NowMS returns the current authoritative time, in Unix epoch milliseconds.
// It is computed by projecting the installed anchor forward using the
// monotonic clock's elapsed time since the anchor was installed, then
// fetch-maxed against the highest value ever returned so concurrent callers
// never observe time moving backward (spec §4.4 step 2, I-MONO).
func (t *Timebase) NowMS() (ms int64, ready bool) {
	if !t.ready.isReady() {
		return 0, false
	}

	t.mu.RLock()
	a := t.a
	t.mu.RUnlock()

	elapsed := sinceMs(a.mono, t.clock.Now())
	candidate := a.ntpMS + elapsed

	for {
		last := atomic.LoadInt64(&t.lastEmitted)
		if candidate <= last {
			return last, true
		}
		if atomic.CompareAndSwapInt64(&t.lastEmitted, last, candidate) {
			return candidate, true
		}
	}
}

// Ready reports whether at least one sample has ever been installed.
func (t *Timebase) Ready() bool {
	return t.ready.isReady()
}

// AnchorAgeMS reports how long ago, in monotonic milliseconds, the current
// anchor was installed. Used by the staleness check (spec §4.9, C7).
func (t *Timebase) AnchorAgeMS() int64 {
	t.mu.RLock()
	a := t.a
	t.mu.RUnlock()
	return sinceMs(a.mono, t.clock.Now())
}
