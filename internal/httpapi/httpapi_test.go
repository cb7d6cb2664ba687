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

package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ntpauthd/ntpauthd/internal/ntpauth"
)

type fakeSource struct {
	ms    int64
	ready bool
	stale bool
}

func (f *fakeSource) NowMS() (int64, bool) { return f.ms, f.ready }
func (f *fakeSource) Stale() bool          { return f.stale }

func newTestHandler(src *fakeSource, requireSync bool) *Handler {
	reg := prometheus.NewRegistry()
	m := ntpauth.NewMetrics(reg)
	return NewHandler(src, requireSync, "Service not yet synchronized with NTP", m, reg)
}

func TestHandleTimeReadyReturns200(t *testing.T) {
	src := &fakeSource{ms: 1_700_000_000_123, ready: true}
	h := newTestHandler(src, true)

	req := httptest.NewRequest(http.MethodGet, "/time", nil)
	w := httptest.NewRecorder()
	h.Mux().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "done", body["message"])
	require.Equal(t, float64(1_700_000_000_123), body["data"])
}

func TestHandleTimeNotReadyReturns503WhenRequireSync(t *testing.T) {
	src := &fakeSource{ready: false}
	h := newTestHandler(src, true)

	req := httptest.NewRequest(http.MethodGet, "/time", nil)
	w := httptest.NewRecorder()
	h.Mux().ServeHTTP(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "error", body["message"])
	require.Equal(t, "Service not yet synchronized with NTP", body["error"])
}

func TestHandleTimeNotReadyButSyncNotRequired(t *testing.T) {
	src := &fakeSource{ready: false}
	h := newTestHandler(src, false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	h.Mux().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestHandleHealthzAlwaysOK(t *testing.T) {
	src := &fakeSource{ready: false}
	h := newTestHandler(src, true)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.Mux().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestHandleReadyzMirrorsReadiness(t *testing.T) {
	src := &fakeSource{ready: false}
	h := newTestHandler(src, true)

	for _, path := range []string{"/readyz", "/startupz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		h.Mux().ServeHTTP(w, req)
		require.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}

	src.ready = true
	for _, path := range []string{"/readyz", "/startupz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		h.Mux().ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	src := &fakeSource{ready: true}
	h := newTestHandler(src, true)

	// Labelled vectors only appear in the exposition once they have a child,
	// so populate each one the way the running service does.
	h.metrics.BuildInfo.WithLabelValues("dev", "unknown").Set(1)
	h.metrics.NtpServerUp.WithLabelValues("a.example.com:123").Set(1)
	h.Mux().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/time", nil))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	h.Mux().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "ntp_server_up")
	require.Contains(t, w.Body.String(), "http_requests_total")
	require.Contains(t, w.Body.String(), "build_info")
}
