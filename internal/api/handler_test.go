package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/garage-discordbot/internal/storage"
)

type controllableClock struct {
	mu  sync.RWMutex
	now time.Time
}

func newControllableClock(initial time.Time) *controllableClock {
	return &controllableClock{now: initial}
}

func (c *controllableClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

func (c *controllableClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixedLatency time.Duration

func (f fixedLatency) Latency() time.Duration { return time.Duration(f) }

type failingStorage struct {
	storage.Storage
}

func (failingStorage) GetStatus() (storage.Status, error) {
	return storage.Status{}, errors.New("status unavailable")
}

func setupTestRouter(t *testing.T) (http.Handler, *storage.MemoryStorage, *controllableClock) {
	t.Helper()

	store := storage.NewMemoryStorage()
	clock := newControllableClock(time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC))

	handler := NewHandler(store, fixedLatency(37*time.Millisecond), WithClock(clock.Now))
	logger := zaptest.NewLogger(t)
	router := NewRouter(handler, logger, WithLogging(false))

	return router, store, clock
}

func serve(router http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRequestIDHelpers(t *testing.T) {
	ctx := contextWithRequestID(context.Background(), "abc")
	if got := requestIDFromContext(ctx); got != "abc" {
		t.Fatalf("expected abc, got %s", got)
	}
	if got := requestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty request ID, got %s", got)
	}
	resp := httptest.NewRecorder()
	writeInternalError(resp, assertError("boom"))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 status, got %d", resp.Code)
	}
}

type assertError string

func (a assertError) Error() string { return string(a) }

func TestHealthEndpoint(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	rec := serve(router, "/healthcheck")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body != (healthResponse{Status: "ok", Message: "Bot is running"}) {
		t.Fatalf("unexpected health body %+v", body)
	}
}

func TestHealthEndpointDoesNotDependOnBot(t *testing.T) {
	handler := NewHandler(failingStorage{}, nil)
	router := NewRouter(handler, zaptest.NewLogger(t), WithLogging(false))

	if rec := serve(router, "/healthcheck"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 even without a bot, got %d", rec.Code)
	}
}

func TestReadyEndpoint(t *testing.T) {
	router, store, clock := setupTestRouter(t)

	rec := serve(router, "/readyz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before ready, got %d", rec.Code)
	}
	var body readyResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Status != "not_ready" {
		t.Fatalf("expected not_ready, got %s", body.Status)
	}

	if err := store.MarkReady("garage-bot", "42", clock.Now()); err != nil {
		t.Fatalf("MarkReady: %v", err)
	}

	rec = serve(router, "/readyz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 once ready, got %d", rec.Code)
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Status != "ready" {
		t.Fatalf("expected ready, got %s", body.Status)
	}
}

func TestStatusEndpoint(t *testing.T) {
	router, store, clock := setupTestRouter(t)

	connectedAt := clock.Now()
	if err := store.MarkReady("garage-bot", "42", connectedAt); err != nil {
		t.Fatalf("MarkReady: %v", err)
	}
	_ = store.RecordMessage(connectedAt)
	_ = store.RecordMessage(connectedAt)
	_ = store.RecordReply(connectedAt)
	clock.Advance(90 * time.Second)

	rec := serve(router, "/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body statusResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if !body.Ready || body.User != "garage-bot" || body.UserID != "42" {
		t.Fatalf("unexpected identity in %+v", body)
	}
	if body.LatencyMs != 37 {
		t.Fatalf("expected latency 37ms, got %d", body.LatencyMs)
	}
	if body.UptimeSeconds != 90 {
		t.Fatalf("expected uptime 90s, got %d", body.UptimeSeconds)
	}
	if body.MessagesSeen != 2 || body.RepliesSent != 1 {
		t.Fatalf("unexpected counters %d/%d", body.MessagesSeen, body.RepliesSent)
	}
	if body.ConnectedAt == nil || !body.ConnectedAt.Equal(connectedAt) {
		t.Fatalf("expected connectedAt %s, got %v", connectedAt, body.ConnectedAt)
	}
	if !body.Timestamp.Equal(clock.Now()) {
		t.Fatalf("expected timestamp %s, got %s", clock.Now(), body.Timestamp)
	}
}

func TestStatusEndpointBeforeReady(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	rec := serve(router, "/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var raw map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if raw["ready"] != false {
		t.Fatalf("expected ready=false, got %v", raw["ready"])
	}
	if _, ok := raw["connectedAt"]; ok {
		t.Fatalf("connectedAt should be omitted before the first ready event")
	}
	if raw["uptimeSeconds"] != float64(0) {
		t.Fatalf("expected zero uptime, got %v", raw["uptimeSeconds"])
	}
}

func TestStatusEndpointAfterDisconnectReportsNoUptime(t *testing.T) {
	router, store, clock := setupTestRouter(t)

	_ = store.MarkReady("garage-bot", "42", clock.Now())
	clock.Advance(time.Minute)
	_ = store.MarkDisconnected(clock.Now())

	var body statusResponse
	if err := json.NewDecoder(serve(router, "/status").Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Ready || body.UptimeSeconds != 0 {
		t.Fatalf("expected not ready with zero uptime, got %+v", body)
	}
	if body.ConnectedAt == nil {
		t.Fatalf("expected last connectedAt to be kept")
	}
}

func TestStorageFailuresReturnInternalError(t *testing.T) {
	handler := NewHandler(failingStorage{}, nil)
	router := NewRouter(handler, zaptest.NewLogger(t), WithLogging(false))

	for _, path := range []string{"/readyz", "/status"} {
		rec := serve(router, path)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("%s: expected 500, got %d", path, rec.Code)
		}

		var body errorResponse
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if body.Error != "Internal error" || body.Details != "status unavailable" {
			t.Fatalf("%s: unexpected error body %+v", path, body)
		}
	}
}

func TestUnknownRouteAndMethod(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	if rec := serve(router, "/api/health"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown route, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for POST /status, got %d", rec.Code)
	}
}
