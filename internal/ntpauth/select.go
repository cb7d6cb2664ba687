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
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// querier is the subset of *Client the selector needs; lets tests swap in a
// canned querier instead of a real UDP client.
type querier interface {
	Query(ctx context.Context, server string, timeout time.Duration) (NtpSample, error)
}

// ChosenSample is the single sample run_sync decided to install, per C3.
type ChosenSample = NtpSample

// Selector implements the one supported strategy, rtt_min: among the
// surviving samples of a round, pick the lowest RTT, breaking ties by the
// lexicographically smallest server key. Other strategies are a future
// extension and intentionally not implemented (spec §4.3, §9).
type Selector struct {
	mu        sync.Mutex
	servers   []string
	cursor    int
	client    querier
	stats     *ServerStats
	clock     monotonicClock
	maxSkewMS int64
	k         int
	onFailure func(server string)
}

// NewSelector creates a Selector over a fixed, ordered server list.
// onFailure, if non-nil, is called once per failed query (used to drive the
// per-server failure counter); it may be nil in tests that don't care.
func NewSelector(servers []string, client querier, stats *ServerStats, clock monotonicClock, k int, maxSkewMS int64, onFailure func(server string)) *Selector {
	return &Selector{
		servers:   servers,
		client:    client,
		stats:     stats,
		clock:     clock,
		k:         k,
		maxSkewMS: maxSkewMS,
		onFailure: onFailure,
	}
}

// nextCandidates returns the next k servers from the configured list,
// cycling round-robin across invocations so every server gets exercised
// over time (spec §4.3 step 1).
func (s *Selector) nextCandidates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.servers)
	if n == 0 {
		return nil
	}
	k := s.k
	if k > n {
		k = n
	}
	out := make([]string, 0, k)
	for i := 0; i < k; i++ {
		out = append(out, s.servers[(s.cursor+i)%n])
	}
	s.cursor = (s.cursor + k) % n
	return out
}

// RunSync executes one sync round: query a round of candidates in
// parallel, update per-server stats, reject statistical outliers, and elect
// a winner by minimum RTT (spec §4.3).
func (s *Selector) RunSync(ctx context.Context, timeout time.Duration) (ChosenSample, bool) {
	candidates := s.nextCandidates()
	if len(candidates) == 0 {
		return ChosenSample{}, false
	}

	roundCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	samples := s.queryAll(roundCtx, candidates, timeout)
	if len(samples) == 0 {
		return ChosenSample{}, false
	}

	survivors := rejectOutliers(samples, s.maxSkewMS)
	winner := electWinner(survivors)
	return winner, true
}

func (s *Selector) queryAll(ctx context.Context, candidates []string, timeout time.Duration) []NtpSample {
	type result struct {
		sample NtpSample
		err    error
	}
	results := make(chan result, len(candidates))
	for _, server := range candidates {
		server := server
		go func() {
			sample, err := s.client.Query(ctx, server, timeout)
			at := s.clock.Now()
			if err != nil {
				s.stats.RecordFailure(server, at)
				if s.onFailure != nil {
					s.onFailure(server)
				}
			} else {
				s.stats.RecordSuccess(server, at, sample.RTTMS, sample.OffsetMS)
			}
			results <- result{sample: sample, err: err}
		}()
	}

	samples := make([]NtpSample, 0, len(candidates))
	for i := 0; i < len(candidates); i++ {
		r := <-results
		if r.err != nil {
			log.WithError(r.err).Debug("ntp query failed")
			continue
		}
		samples = append(samples, r.sample)
	}
	return samples
}

// rejectOutliers discards any sample whose offset deviates from the median
// by more than maxSkewMS. If that would discard everything, it keeps the
// single sample nearest the median instead (spec §4.3 step 4).
func rejectOutliers(samples []NtpSample, maxSkewMS int64) []NtpSample {
	if len(samples) <= 1 {
		return samples
	}
	med := medianOffset(samples)

	survivors := make([]NtpSample, 0, len(samples))
	for _, s := range samples {
		if abs64(s.OffsetMS-med) <= maxSkewMS {
			survivors = append(survivors, s)
		}
	}
	if len(survivors) > 0 {
		return survivors
	}

	nearest := samples[0]
	best := abs64(nearest.OffsetMS - med)
	for _, s := range samples[1:] {
		if d := abs64(s.OffsetMS - med); d < best {
			nearest, best = s, d
		}
	}
	return []NtpSample{nearest}
}

func medianOffset(samples []NtpSample) int64 {
	offsets := make([]int64, len(samples))
	for i, s := range samples {
		offsets[i] = s.OffsetMS
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	n := len(offsets)
	if n%2 == 1 {
		return offsets[n/2]
	}
	return (offsets[n/2-1] + offsets[n/2]) / 2
}

// electWinner picks the surviving sample with the smallest RTT, breaking
// ties by the lexicographically smallest server key (spec §4.3 step 5).
func electWinner(survivors []NtpSample) ChosenSample {
	winner := survivors[0]
	for _, s := range survivors[1:] {
		if s.RTTMS < winner.RTTMS || (s.RTTMS == winner.RTTMS && s.ServerKey < winner.ServerKey) {
			winner = s
		}
	}
	return winner
}

func abs64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}
