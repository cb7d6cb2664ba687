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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("NTP_SERVERS", "time1.example.com:123,time2.example.com:123")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	require.Equal(t, []string{"time1.example.com:123", "time2.example.com:123"}, cfg.NTPServers)
	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, 64*time.Second, cfg.SyncInterval)
	require.True(t, cfg.MonotonicOutput)
}

func TestConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("NTP_SERVERS", "a.example.com:123")
	t.Setenv("ADDR", ":9090")
	t.Setenv("SYNC_INTERVAL", "30")
	t.Setenv("MAX_OFFSET_SKEW_MS", "500")
	t.Setenv("MONOTONIC_OUTPUT", "false")
	t.Setenv("SAMPLE_SERVERS_PER_SYNC", "3")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Addr)
	require.Equal(t, 30*time.Second, cfg.SyncInterval)
	require.Equal(t, int64(500), cfg.MaxOffsetSkewMS)
	require.False(t, cfg.MonotonicOutput)
	require.Equal(t, 3, cfg.SampleServersPerSync)
}

func TestConfigFromEnvRejectsEmptyServerList(t *testing.T) {
	t.Setenv("NTP_SERVERS", "")
	_, err := ConfigFromEnv()
	require.Error(t, err)
}

func TestConfigFromEnvRejectsMalformedDuration(t *testing.T) {
	t.Setenv("NTP_SERVERS", "a.example.com:123")
	t.Setenv("SYNC_INTERVAL", "not-a-number")
	_, err := ConfigFromEnv()
	require.Error(t, err)
}

func TestConfigValidateProbeIntervalOrdering(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NTPServers = []string{"a.example.com:123"}
	cfg.ProbeMinInterval = 90 * time.Second
	cfg.ProbeMaxInterval = 30 * time.Second

	err := cfg.Validate()
	require.Error(t, err)
}
