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
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Config holds every tunable named in the environment configuration
// contract. It is immutable after startup: nothing in the sync loop, probe
// loop or timebase ever writes to it.
type Config struct {
	Addr                 string
	NTPServers           []string
	NTPTimeout           time.Duration
	SyncInterval         time.Duration
	ProbeMinInterval     time.Duration
	ProbeMaxInterval     time.Duration
	SampleServersPerSync int
	MaxOffsetSkewMS      int64
	MonotonicOutput      bool
	OffsetBiasMS         int64
	AsymmetryBiasMS      int64
	RequireSync          bool
	MaxStaleness         time.Duration
	ErrorTextNoSync      string
}

// DefaultConfig returns the configuration the service runs with when no
// environment variable overrides a given key.
func DefaultConfig() Config {
	return Config{
		Addr:                 ":8080",
		NTPTimeout:           2 * time.Second,
		SyncInterval:         64 * time.Second,
		ProbeMinInterval:     30 * time.Second,
		ProbeMaxInterval:     90 * time.Second,
		SampleServersPerSync: 4,
		MaxOffsetSkewMS:      1000,
		MonotonicOutput:      true,
		RequireSync:          true,
		MaxStaleness:         10 * time.Minute,
		ErrorTextNoSync:      "Service not yet synchronized with NTP",
	}
}

// ConfigFromEnv reads the environment configuration table (spec §6) on top
// of DefaultConfig, failing fast (ConfigError) if an env var is malformed.
func ConfigFromEnv() (Config, error) {
	c := DefaultConfig()

	if v, ok := os.LookupEnv("ADDR"); ok && v != "" {
		c.Addr = v
	}
	if v, ok := os.LookupEnv("NTP_SERVERS"); ok && v != "" {
		c.NTPServers = splitCSV(v)
	}
	if err := durationEnv("NTP_TIMEOUT", &c.NTPTimeout); err != nil {
		return c, err
	}
	if err := durationEnv("SYNC_INTERVAL", &c.SyncInterval); err != nil {
		return c, err
	}
	if err := durationEnv("PROBE_MIN_INTERVAL", &c.ProbeMinInterval); err != nil {
		return c, err
	}
	if err := durationEnv("PROBE_MAX_INTERVAL", &c.ProbeMaxInterval); err != nil {
		return c, err
	}
	if err := intEnv("SAMPLE_SERVERS_PER_SYNC", &c.SampleServersPerSync); err != nil {
		return c, err
	}
	if err := int64Env("MAX_OFFSET_SKEW_MS", &c.MaxOffsetSkewMS); err != nil {
		return c, err
	}
	if err := boolEnv("MONOTONIC_OUTPUT", &c.MonotonicOutput); err != nil {
		return c, err
	}
	if err := int64Env("OFFSET_BIAS_MS", &c.OffsetBiasMS); err != nil {
		return c, err
	}
	if err := int64Env("ASYMMETRY_BIAS_MS", &c.AsymmetryBiasMS); err != nil {
		return c, err
	}
	if err := boolEnv("REQUIRE_SYNC", &c.RequireSync); err != nil {
		return c, err
	}
	if err := durationSecondsEnv("MAX_STALENESS", &c.MaxStaleness); err != nil {
		return c, err
	}

	return c, c.Validate()
}

// Validate fails fast on a nonsensical configuration, before the HTTP
// listener ever binds. Per the error taxonomy (spec §7), ConfigError only
// ever surfaces at startup.
func (c *Config) Validate() error {
	if len(c.NTPServers) == 0 {
		return fmt.Errorf("config: NTP_SERVERS must list at least one server")
	}
	if c.NTPTimeout <= 0 {
		return fmt.Errorf("config: NTP_TIMEOUT must be positive")
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("config: SYNC_INTERVAL must be positive")
	}
	if c.ProbeMinInterval <= 0 || c.ProbeMaxInterval < c.ProbeMinInterval {
		return fmt.Errorf("config: PROBE_MIN_INTERVAL must be positive and <= PROBE_MAX_INTERVAL")
	}
	if c.SampleServersPerSync < 1 {
		return fmt.Errorf("config: SAMPLE_SERVERS_PER_SYNC must be at least 1")
	}
	if c.MaxOffsetSkewMS < 0 {
		return fmt.Errorf("config: MAX_OFFSET_SKEW_MS must not be negative")
	}
	return nil
}

// FileConfig is the optional -config file override: local-dev-friendly YAML
// for the handful of knobs that are awkward as a single env var (the server
// list, mainly), mirroring the layering used for the corpus's other
// YAML-configured clients. Every scalar field is a pointer, and an empty
// server list is ignored, so an absent key in the file leaves the
// environment/default value untouched.
type FileConfig struct {
	NTPServers           []string `yaml:"ntp_servers,omitempty"`
	MaxOffsetSkewMS      *int64   `yaml:"max_offset_skew_ms,omitempty"`
	SampleServersPerSync *int     `yaml:"sample_servers_per_sync,omitempty"`
}

// ApplyFile reads path as YAML and overlays it onto c.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if len(fc.NTPServers) > 0 {
		c.NTPServers = fc.NTPServers
	}
	if fc.MaxOffsetSkewMS != nil {
		c.MaxOffsetSkewMS = *fc.MaxOffsetSkewMS
	}
	if fc.SampleServersPerSync != nil {
		c.SampleServersPerSync = *fc.SampleServersPerSync
	}
	return c.Validate()
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func durationEnv(key string, dst *time.Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = time.Duration(secs * float64(time.Second))
	return nil
}

// durationSecondsEnv is identical to durationEnv; kept as a distinct name so
// call sites read like the environment table in spec §6 ("seconds" units).
func durationSecondsEnv(key string, dst *time.Duration) error {
	return durationEnv(key, dst)
}

func intEnv(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = n
	return nil
}

func int64Env(key string, dst *int64) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = n
	return nil
}

func boolEnv(key string, dst *bool) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = b
	return nil
}
