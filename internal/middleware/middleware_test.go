// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true}`))
	})
}

func TestRequestIDGeneratesAndPropagates(t *testing.T) {
	var seenID string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/offices", nil))

	headerID := rec.Header().Get("X-Request-ID")
	if headerID == "" {
		t.Fatal("X-Request-ID header not set")
	}
	if seenID != headerID {
		t.Errorf("Context request ID %q does not match header %q", seenID, headerID)
	}
}

func TestRequestIDKeepsUpstreamID(t *testing.T) {
	handler := RequestID(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "upstream-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "upstream-123" {
		t.Errorf("X-Request-ID = %q, want upstream-123", got)
	}
}

func TestAdminKeyRejectsWrongKey(t *testing.T) {
	handler := AdminKey("secret")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/admin/sync", nil)
	req.Header.Set("X-Admin-Key", "wrong")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "admin key") {
		t.Errorf("Body = %q, want admin key error", rec.Body.String())
	}
}

func TestAdminKeyAcceptsCorrectKey(t *testing.T) {
	handler := AdminKey("secret")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/admin/sync", nil)
	req.Header.Set("X-Admin-Key", "secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want 200", rec.Code)
	}
}

func TestAdminKeyEmptyKeyDisablesSurface(t *testing.T) {
	handler := AdminKey("")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/admin/sync", nil)
	req.Header.Set("X-Admin-Key", "anything")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want 404 when admin key is unset", rec.Code)
	}
}

func TestCompressionGzipsWhenAccepted(t *testing.T) {
	handler := Compression(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", got)
	}

	gz, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("Failed to create gzip reader: %v", err)
	}
	body, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("Failed to decompress body: %v", err)
	}
	if string(body) != `{"success":true}` {
		t.Errorf("Body = %q", string(body))
	}
}

func TestCompressionSkipsWithoutAcceptHeader(t *testing.T) {
	handler := Compression(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rec.Header().Get("Content-Encoding"); got != "" {
		t.Errorf("Content-Encoding = %q, want empty", got)
	}
	if rec.Body.String() != `{"success":true}` {
		t.Errorf("Body = %q", rec.Body.String())
	}
}

func TestMetricsMiddlewarePassesThrough(t *testing.T) {
	handler := Metrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("Status = %d, want 418", rec.Code)
	}
}

func TestPerformanceMonitorStats(t *testing.T) {
	pm := NewPerformanceMonitor(100)

	for i := 0; i < 10; i++ {
		pm.RecordRequest(&RequestMetrics{
			Path:       "/api/v1/offices",
			Method:     http.MethodGet,
			DurationMS: int64(i * 10),
			StatusCode: http.StatusOK,
			Timestamp:  time.Now(),
		})
	}

	stats := pm.GetStats()
	if len(stats) != 1 {
		t.Fatalf("GetStats() returned %d endpoints, want 1", len(stats))
	}
	s := stats[0]
	if s.RequestCount != 10 {
		t.Errorf("RequestCount = %d, want 10", s.RequestCount)
	}
	if s.MinDuration != 0 || s.MaxDuration != 90 {
		t.Errorf("Min/Max = %d/%d, want 0/90", s.MinDuration, s.MaxDuration)
	}
	if s.AvgDuration != 45 {
		t.Errorf("AvgDuration = %f, want 45", s.AvgDuration)
	}
	if s.P50Duration != 40 {
		t.Errorf("P50Duration = %d, want 40", s.P50Duration)
	}
}

func TestPerformanceMonitorSlidingWindow(t *testing.T) {
	pm := NewPerformanceMonitor(5)

	for i := 0; i < 8; i++ {
		pm.RecordRequest(&RequestMetrics{
			Path:       "/api/v1/stats",
			Method:     http.MethodGet,
			DurationMS: int64(i),
		})
	}

	recent := pm.GetRecentMetrics(10)
	if len(recent) != 5 {
		t.Fatalf("GetRecentMetrics() returned %d, want window of 5", len(recent))
	}
	if recent[0].DurationMS != 3 || recent[4].DurationMS != 7 {
		t.Errorf("Window = %d..%d, want 3..7", recent[0].DurationMS, recent[4].DurationMS)
	}
}

func TestPerformanceMonitorMiddleware(t *testing.T) {
	pm := NewPerformanceMonitor(10)
	handler := pm.Middleware(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users", nil))

	recent := pm.GetRecentMetrics(1)
	if len(recent) != 1 {
		t.Fatalf("Expected one recorded metric, got %d", len(recent))
	}
	if recent[0].Path != "/api/v1/users" || recent[0].StatusCode != http.StatusOK {
		t.Errorf("Recorded metric = %+v", recent[0])
	}
}
