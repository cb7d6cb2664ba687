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

import "sync"

// maxConsecutiveFailures is the consecutive-failure count at which a server
// is marked down.
const maxConsecutiveFailures = 3

// ServerStat is the rolling health record for one configured server.
type ServerStat struct {
	LastRTTMS           int64
	LastOffsetMS        int64
	LastSuccessAt       Instant
	LastFailureAt       Instant
	ConsecutiveFailures uint32
	Up                  bool
}

// entry wraps a ServerStat behind its own mutex: writers for different
// servers never contend with each other, only with readers/writers of the
// same key.
type entry struct {
	mu   sync.Mutex
	stat ServerStat
}

// ServerStats is a fixed-membership map from server_key to ServerStat. The
// key set is determined once, by configuration, and never grows or shrinks.
type ServerStats struct {
	entries map[string]*entry
}

// NewServerStats creates the stats table for a fixed list of servers.
func NewServerStats(servers []string) *ServerStats {
	entries := make(map[string]*entry, len(servers))
	for _, s := range servers {
		entries[s] = &entry{}
	}
	return &ServerStats{entries: entries}
}

// RecordSuccess updates a server's stats after a successful query.
func (s *ServerStats) RecordSuccess(server string, at Instant, rttMS, offsetMS int64) {
	e, ok := s.entries[server]
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stat.LastRTTMS = rttMS
	e.stat.LastOffsetMS = offsetMS
	e.stat.LastSuccessAt = at
	e.stat.ConsecutiveFailures = 0
	e.stat.Up = true
}

// RecordFailure updates a server's stats after a failed query. Up flips to
// false only once three consecutive failures have accumulated.
func (s *ServerStats) RecordFailure(server string, at Instant) {
	e, ok := s.entries[server]
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stat.LastFailureAt = at
	e.stat.ConsecutiveFailures++
	if e.stat.ConsecutiveFailures >= maxConsecutiveFailures {
		e.stat.Up = false
	}
}

// Get returns a point-in-time copy of a server's stats.
func (s *ServerStats) Get(server string) (ServerStat, bool) {
	e, ok := s.entries[server]
	if !ok {
		return ServerStat{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stat, true
}

// StatEntry pairs a server key with a stats snapshot, for iteration order
// independent consumers like the metrics exporter.
type StatEntry struct {
	Server string
	Stat   ServerStat
}

// Snapshot returns every server's current stats, in configuration order.
func (s *ServerStats) Snapshot(order []string) []StatEntry {
	out := make([]StatEntry, 0, len(order))
	for _, server := range order {
		if stat, ok := s.Get(server); ok {
			out = append(out, StatEntry{Server: server, Stat: stat})
		}
	}
	return out
}
