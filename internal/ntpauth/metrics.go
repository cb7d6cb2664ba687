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
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the prometheus surface for the service (spec §4.8). Names are
// a contract with the metrics scraper, so every metric below uses the
// literal name the spec assigns it rather than a namespaced variant;
// HTTPRequests/HTTPInflightRequests/BuildInfo/NtpRTTSeconds and friends are
// all exact matches. ReadySince (exported as ntp_ready) and ServerFailures
// are the two additions beyond the contract, kept because they're useful
// and don't collide with a required name. All
// fields are safe for concurrent use; callers just Set/Inc/Observe.
type Metrics struct {
	NtpSyncTotal             prometheus.Counter
	NtpSyncErrorsTotal       prometheus.Counter
	NtpConsecutiveFailures   *prometheus.GaugeVec
	NtpLastSyncTimestampSecs prometheus.Gauge
	NtpStalenessSeconds      prometheus.Gauge
	NtpOffsetSeconds         prometheus.Gauge
	NtpServerUp              *prometheus.GaugeVec
	NtpServerRTTMilliseconds *prometheus.GaugeVec
	NtpServerOffsetMS        *prometheus.GaugeVec
	NtpRTTSeconds            prometheus.Histogram
	ReadySince               prometheus.Gauge
	BuildInfo                *prometheus.GaugeVec
	HTTPRequests             *prometheus.CounterVec
	HTTPInflightRequests     prometheus.Gauge
	HTTPRequestDurationSecs  *prometheus.HistogramVec

	// ServerFailures is not part of the spec's named contract; it is kept
	// as an additional, more granular counter (total failed queries per
	// server, as opposed to the gauge-style current streak above).
	ServerFailures *prometheus.CounterVec
}

// NewMetrics registers the full metric set against reg and returns the
// handles the rest of the service uses to report observations.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NtpSyncTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ntp_sync_total",
			Help: "Count of completed sync rounds that installed a new anchor.",
		}),
		NtpSyncErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ntp_sync_errors_total",
			Help: "Count of sync rounds that produced no usable sample.",
		}),
		NtpConsecutiveFailures: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ntp_consecutive_failures",
			Help: "Current consecutive query failure streak for a server.",
		}, []string{"server"}),
		NtpLastSyncTimestampSecs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ntp_last_sync_timestamp_seconds",
			Help: "Unix timestamp, in seconds, of the last successful sync round.",
		}),
		NtpStalenessSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ntp_staleness_seconds",
			Help: "Seconds elapsed since the current timebase anchor was installed.",
		}),
		NtpOffsetSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ntp_offset_seconds",
			Help: "Offset, in seconds, of the most recently installed sample.",
		}),
		NtpServerUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ntp_server_up",
			Help: "1 if a configured server is currently considered healthy, else 0.",
		}, []string{"server"}),
		NtpServerRTTMilliseconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ntp_server_rtt_milliseconds",
			Help: "Round trip time, in milliseconds, of a server's last successful query.",
		}, []string{"server"}),
		NtpServerOffsetMS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ntp_server_offset_ms",
			Help: "Offset, in milliseconds, of a server's last successful query.",
		}, []string{"server"}),
		NtpRTTSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ntp_rtt_seconds",
			Help:    "Round trip time, in seconds, of every successful NTP query.",
			Buckets: prometheus.DefBuckets,
		}),
		ReadySince: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ntp_ready",
			Help: "1 once the service has synchronized at least once, else 0.",
		}),
		BuildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Always 1; labels carry the running build's version and git commit.",
		}, []string{"version", "git_sha"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Count of HTTP requests, partitioned by method, path and status class (2xx, 3xx, 4xx, 5xx).",
		}, []string{"method", "path", "status"}),
		HTTPInflightRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Number of HTTP requests currently being served.",
		}),
		HTTPRequestDurationSecs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds, partitioned by method and path.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		ServerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ntpauthd",
			Name:      "server_failures_total",
			Help:      "Count of failed queries per server.",
		}, []string{"server"}),
	}

	reg.MustRegister(
		m.NtpSyncTotal, m.NtpSyncErrorsTotal, m.NtpConsecutiveFailures,
		m.NtpLastSyncTimestampSecs, m.NtpStalenessSeconds, m.NtpOffsetSeconds,
		m.NtpServerUp, m.NtpServerRTTMilliseconds, m.NtpServerOffsetMS, m.NtpRTTSeconds,
		m.ReadySince, m.BuildInfo,
		m.HTTPRequests, m.HTTPInflightRequests, m.HTTPRequestDurationSecs,
		m.ServerFailures,
	)
	return m
}

// ObserveStats mirrors a ServerStats snapshot onto the per-server gauges.
// Called once per sync round from the sync loop.
func (m *Metrics) ObserveStats(snapshot []StatEntry) {
	for _, e := range snapshot {
		up := 0.0
		if e.Stat.Up {
			up = 1.0
		}
		m.NtpServerUp.WithLabelValues(e.Server).Set(up)
		m.NtpServerRTTMilliseconds.WithLabelValues(e.Server).Set(float64(e.Stat.LastRTTMS))
		m.NtpServerOffsetMS.WithLabelValues(e.Server).Set(float64(e.Stat.LastOffsetMS))
		m.NtpConsecutiveFailures.WithLabelValues(e.Server).Set(float64(e.Stat.ConsecutiveFailures))
	}
}
