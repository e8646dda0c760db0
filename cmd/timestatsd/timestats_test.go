package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/getsentry/timestats/internal/promexport"
	"github.com/getsentry/timestats/internal/testutil"
	"github.com/getsentry/timestats/internal/timestats"
)

func newTestEnvironment(t *testing.T) *environment {
	t.Helper()
	logger := zerolog.Nop()
	clock := testutil.NewClock(time.Date(2023, time.January, 1, 12, 0, 0, 0, time.UTC))
	e := &environment{
		service:  timestats.New(timestats.Config{Clock: clock, Logger: &logger}),
		registry: prometheus.NewRegistry(),
	}
	if err := e.registry.Register(promexport.NewCollector(e.service)); err != nil {
		t.Fatalf("collector should register: %v", err)
	}
	e.service.Enable()
	for i := 0; i <= 2; i++ {
		postTime := int64(i) * 16_000_000
		e.service.SetPostTime("com.app/A#0", uint64(i), postTime)
		e.service.SetPresentTime("com.app/A#0", uint64(i), postTime+16_000_000)
	}
	return e
}

func serve(t *testing.T, e *environment, r *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	router, err := e.newRouter()
	if err != nil {
		t.Fatalf("router should be set up: %v", err)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	return w
}

func TestGetHealth(t *testing.T) {
	w := serve(t, newTestEnvironment(t), httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusNoContent)
	}
}

func TestPostTimeStats(t *testing.T) {
	tests := []struct {
		name        string
		target      string
		body        string
		wantStatus  int
		wantContent string
	}{
		{
			name:        "text dump from body",
			target:      "/timestats",
			body:        "-dump",
			wantStatus:  http.StatusOK,
			wantContent: "layerName = com.app/A#0",
		},
		{
			name:        "text dump from query",
			target:      "/timestats?args=-dump+-maxlayers+1",
			wantStatus:  http.StatusOK,
			wantContent: "present2present histogram is as below:",
		},
		{
			name:        "quoted max layers",
			target:      "/timestats",
			body:        `-dump -maxlayers " 1"`,
			wantStatus:  http.StatusOK,
			wantContent: "layerName = com.app/A#0",
		},
		{
			name:       "no dump",
			target:     "/timestats",
			body:       "-enable",
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "too many args",
			target:     "/timestats",
			body:       strings.Repeat("-dump ", 11),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unbalanced quotes",
			target:     "/timestats",
			body:       `-dump "`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, tt.target, strings.NewReader(tt.body))
			w := serve(t, newTestEnvironment(t), r)
			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), tt.wantContent) {
				t.Fatalf("response is missing %q:\n%s", tt.wantContent, w.Body.String())
			}
		})
	}
}

func TestPostTimeStatsStructured(t *testing.T) {
	var body bytes.Buffer
	bw := brotli.NewWriter(&body)
	_, _ = bw.Write([]byte("-dump"))
	if err := bw.Close(); err != nil {
		t.Fatalf("couldn't compress the body: %v", err)
	}
	r := httptest.NewRequest(http.MethodPost, "/timestats?format=json", &body)
	r.Header.Set("Content-Encoding", "br")

	w := serve(t, newTestEnvironment(t), r)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("got content type %q, want application/json", ct)
	}
	b, err := io.ReadAll(w.Body)
	if err != nil {
		t.Fatalf("couldn't read the response: %v", err)
	}
	var stats timestats.GlobalStats
	if err := json.Unmarshal(b, &stats); err != nil {
		t.Fatalf("response should be valid JSON: %v", err)
	}
	if len(stats.Layers) != 1 || stats.Layers[0].TotalFrames != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestGetMetrics(t *testing.T) {
	w := serve(t, newTestEnvironment(t), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `timestats_layer_frames{layer="com.app/A#0",package="com.app"} 2`) {
		t.Fatalf("metrics are missing the layer frames:\n%s", w.Body.String())
	}
}

func TestPostReplay(t *testing.T) {
	trace := `{"type":"post","layer":"com.app/A#0","frame":3,"ts":48000000}
{"type":"present","layer":"com.app/A#0","frame":3,"ts":64000000}
{"type":"missed_frame"}
`
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "valid trace", body: trace, wantStatus: http.StatusNoContent},
		{name: "unknown event", body: `{"type":"vsync"}`, wantStatus: http.StatusBadRequest},
		{name: "malformed trace", body: `{"type":1}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnvironment(t)
			r := httptest.NewRequest(http.MethodPost, "/replay", strings.NewReader(tt.body))
			w := serve(t, e, r)
			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}

	e := newTestEnvironment(t)
	serve(t, e, httptest.NewRequest(http.MethodPost, "/replay", strings.NewReader(trace)))
	stats, _ := e.service.Snapshot(nil)
	if stats.MissedFrames != 1 || stats.Layers[0].TotalFrames != 3 {
		t.Fatalf("trace wasn't applied: %+v", stats)
	}
}
