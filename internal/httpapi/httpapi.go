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

// Package httpapi implements the service's external HTTP surface: the time
// endpoint clients poll, and the health/readiness/metrics endpoints an
// orchestrator polls.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/ntpauthd/ntpauthd/internal/ntpauth"
	"github.com/ntpauthd/ntpauthd/internal/version"
)

// TimeSource is the subset of *ntpauth.Service the HTTP layer reads.
type TimeSource interface {
	NowMS() (ms int64, ready bool)
	Stale() bool
}

type envelope struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
	Data    int64  `json:"data"`
	Error   string `json:"error,omitempty"`
}

// Handler builds the complete ServeMux for the service.
type Handler struct {
	svc             TimeSource
	requireSync     bool
	errorTextNoSync string
	metrics         *ntpauth.Metrics
	registry        *prometheus.Registry
}

// NewHandler wires a TimeSource into a ready-to-serve mux.
func NewHandler(svc TimeSource, requireSync bool, errorTextNoSync string, metrics *ntpauth.Metrics, registry *prometheus.Registry) *Handler {
	return &Handler{
		svc:             svc,
		requireSync:     requireSync,
		errorTextNoSync: errorTextNoSync,
		metrics:         metrics,
		registry:        registry,
	}
}

// Mux returns the fully assembled http.Handler, with instrumentation
// wrapping every route except /metrics (spec §4.10 / external interfaces).
func (h *Handler) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.instrument("/", h.handleTime))
	mux.HandleFunc("/time", h.instrument("/time", h.handleTime))
	mux.HandleFunc("/healthz", h.instrument("/healthz", h.handleHealthz))
	mux.HandleFunc("/readyz", h.instrument("/readyz", h.handleReadyz))
	mux.HandleFunc("/startupz", h.instrument("/startupz", h.handleReadyz))
	mux.HandleFunc("/version", h.instrument("/version", h.handleVersion))
	mux.Handle("/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
	return mux
}

func (h *Handler) handleTime(w http.ResponseWriter, _ *http.Request) {
	ms, ready := h.svc.NowMS()
	if h.requireSync && !ready {
		writeJSON(w, http.StatusServiceUnavailable, envelope{
			Message: "error",
			Status:  http.StatusServiceUnavailable,
			Data:    0,
			Error:   h.errorTextNoSync,
		})
		return
	}
	writeJSON(w, http.StatusOK, envelope{Message: "done", Status: http.StatusOK, Data: ms})
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	_, ready := h.svc.NowMS()
	if h.requireSync && !ready {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": version.Version, "git_sha": version.GitSHA})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Error("failed writing json response")
	}
}

// instrument wraps a handler with the http_requests_total / inflight /
// duration metrics (spec's ambient-stack HTTP instrumentation).
func (h *Handler) instrument(path string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.metrics.HTTPInflightRequests.Inc()
		defer h.metrics.HTTPInflightRequests.Dec()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		h.metrics.HTTPRequestDurationSecs.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		h.metrics.HTTPRequests.WithLabelValues(r.Method, path, statusBucket(rec.status)).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func statusBucket(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
