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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimebaseUnreadyBeforeFirstInstall(t *testing.T) {
	clock := newFakeClock()
	tb := NewTimebase(clock, true, 0, 0)

	_, ready := tb.NowMS()
	require.False(t, ready)
	require.False(t, tb.Ready())
}

func TestTimebaseAdvancesWithMonotonicClock(t *testing.T) {
	clock := newFakeClock()
	tb := NewTimebase(clock, true, 0, 0)

	tb.Install(NtpSample{ServerEpochMS: 1_700_000_000_000, TRecv: clock.Now()})

	ms1, ready := tb.NowMS()
	require.True(t, ready)
	require.Equal(t, int64(1_700_000_000_000), ms1)

	clock.Advance(250 * time.Millisecond)
	ms2, ready := tb.NowMS()
	require.True(t, ready)
	require.Equal(t, int64(1_700_000_000_250), ms2)
}

func TestTimebaseNeverRegressesAcrossConcurrentReaders(t *testing.T) {
	clock := newFakeClock()
	tb := NewTimebase(clock, true, 0, 0)
	tb.Install(NtpSample{ServerEpochMS: 1_700_000_000_000, TRecv: clock.Now()})

	var wg sync.WaitGroup
	var mu sync.Mutex
	var maxSeen int64

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ms, ready := tb.NowMS()
			require.True(t, ready)
			mu.Lock()
			if ms > maxSeen {
				maxSeen = ms
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	ms, _ := tb.NowMS()
	require.GreaterOrEqual(t, ms, maxSeen)
}

func TestTimebaseAbsorbsRegressionWhenMonotonicOutputEnabled(t *testing.T) {
	clock := newFakeClock()
	tb := NewTimebase(clock, true, 0, 0)

	tb.Install(NtpSample{ServerEpochMS: 1_700_000_000_000, TRecv: clock.Now()})
	clock.Advance(5 * time.Second)
	before, _ := tb.NowMS()
	require.Equal(t, int64(1_700_000_005_000), before)

	// A fresh sample claims an earlier epoch than what's already been
	// emitted (e.g. a server correction swinging backward).
	tb.Install(NtpSample{ServerEpochMS: 1_700_000_001_000, TRecv: clock.Now()})

	after, ready := tb.NowMS()
	require.True(t, ready)
	require.GreaterOrEqual(t, after, before)
}

func TestTimebaseAbsorbsRegressionWithoutInterveningRead(t *testing.T) {
	clock := newFakeClock()
	tb := NewTimebase(clock, true, 0, 0)

	tb.Install(NtpSample{ServerEpochMS: 1_700_000_000_000, TRecv: clock.Now()})
	clock.Advance(5 * time.Second)

	// No NowMS call happens between the two installs, so lastEmitted is
	// still whatever it was (possibly zero) — the guard must compare
	// against the anchor's own live projection, not that counter.
	tb.Install(NtpSample{ServerEpochMS: 1_700_000_001_000, TRecv: clock.Now()})

	after, ready := tb.NowMS()
	require.True(t, ready)
	require.GreaterOrEqual(t, after, int64(1_700_000_005_000))
}

func TestTimebaseRegressesWhenMonotonicOutputDisabled(t *testing.T) {
	clock := newFakeClock()
	tb := NewTimebase(clock, false, 0, 0)

	tb.Install(NtpSample{ServerEpochMS: 1_700_000_005_000, TRecv: clock.Now()})
	before, _ := tb.NowMS()
	require.Equal(t, int64(1_700_000_005_000), before)

	tb.Install(NtpSample{ServerEpochMS: 1_700_000_001_000, TRecv: clock.Now()})
	after, ready := tb.NowMS()
	require.True(t, ready)
	require.Equal(t, int64(1_700_000_001_000), after)
}

func TestTimebaseAppliesBiasTerms(t *testing.T) {
	clock := newFakeClock()
	tb := NewTimebase(clock, true, 10, -3)

	tb.Install(NtpSample{ServerEpochMS: 1_700_000_000_000, TRecv: clock.Now()})
	ms, ready := tb.NowMS()
	require.True(t, ready)
	require.Equal(t, int64(1_700_000_000_007), ms)
}

func TestTimebaseAnchorAgeMS(t *testing.T) {
	clock := newFakeClock()
	tb := NewTimebase(clock, true, 0, 0)
	tb.Install(NtpSample{ServerEpochMS: 1_700_000_000_000, TRecv: clock.Now()})

	clock.Advance(3 * time.Second)
	require.Equal(t, int64(3000), tb.AnchorAgeMS())
}
