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
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestSyncLoopRunOnceInstallsWinner(t *testing.T) {
	clock := newFakeClock()
	servers := []string{"a", "b"}
	q := newFakeQuerier()
	q.enqueue("a", NtpSample{ServerKey: "a", RTTMS: 10, OffsetMS: 3, ServerEpochMS: 1_700_000_000_000, TRecv: clock.Now()}, nil)
	q.enqueue("b", NtpSample{ServerKey: "b", RTTMS: 50, OffsetMS: 4, ServerEpochMS: 1_700_000_000_005, TRecv: clock.Now()}, nil)

	stats := NewServerStats(servers)
	selector := NewSelector(servers, q, stats, clock, 2, 1000, nil)
	timebase := NewTimebase(clock, true, 0, 0)
	metrics := NewMetrics(prometheus.NewRegistry())

	loop := NewSyncLoop(selector, timebase, metrics, time.Second, time.Second, 0)
	loop.runOnce(context.Background())

	require.True(t, timebase.Ready())
	ms, ready := timebase.NowMS()
	require.True(t, ready)
	require.Equal(t, int64(1_700_000_000_000), ms)
}

func TestSyncLoopRunOnceNoSamplesLeavesTimebaseUntouched(t *testing.T) {
	clock := newFakeClock()
	servers := []string{"a"}
	q := newFakeQuerier()
	q.enqueue("a", NtpSample{}, newQueryError(KindNetwork, "a", context.DeadlineExceeded))

	stats := NewServerStats(servers)
	selector := NewSelector(servers, q, stats, clock, 1, 1000, nil)
	timebase := NewTimebase(clock, true, 0, 0)
	metrics := NewMetrics(prometheus.NewRegistry())

	loop := NewSyncLoop(selector, timebase, metrics, time.Second, time.Second, 0)
	loop.runOnce(context.Background())

	require.False(t, timebase.Ready())
}

func TestSyncLoopRunStopsOnContextCancel(t *testing.T) {
	clock := newFakeClock()
	servers := []string{"a"}
	q := newFakeQuerier()
	q.enqueue("a", NtpSample{ServerKey: "a", RTTMS: 1, OffsetMS: 1, ServerEpochMS: 1_700_000_000_000, TRecv: clock.Now()}, nil)

	stats := NewServerStats(servers)
	selector := NewSelector(servers, q, stats, clock, 1, 1000, nil)
	timebase := NewTimebase(clock, true, 0, 0)
	metrics := NewMetrics(prometheus.NewRegistry())

	loop := NewSyncLoop(selector, timebase, metrics, time.Millisecond, time.Second, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := loop.Run(ctx)
	require.Error(t, err)
	require.True(t, timebase.Ready())
}
