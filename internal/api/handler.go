package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/eugenenazirov/garage-discordbot/internal/storage"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// LatencySource reports the gateway heartbeat latency.
type LatencySource interface {
	Latency() time.Duration
}

// Handler exposes the bot status held in storage over HTTP.
type Handler struct {
	storage storage.Storage
	latency LatencySource

	clock func() time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// NewHandler constructs a Handler. latency may be nil, in which case zero is
// reported.
func NewHandler(store storage.Storage, latency LatencySource, opts ...HandlerOption) *Handler {
	h := &Handler{
		storage: store,
		latency: latency,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Message: "Bot is running",
	})
}

func (h *Handler) handleReady(w http.ResponseWriter, _ *http.Request) {
	status, err := h.storage.GetStatus()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	if !status.Ready {
		writeJSON(w, http.StatusServiceUnavailable, readyResponse{Status: "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, readyResponse{Status: "ready"})
}

func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status, err := h.storage.GetStatus()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	now := h.clock()
	resp := statusResponse{
		Ready:        status.Ready,
		User:         status.Username,
		UserID:       status.UserID,
		MessagesSeen: status.MessagesSeen,
		RepliesSent:  status.RepliesSent,
		Timestamp:    now,
	}
	if h.latency != nil {
		resp.LatencyMs = h.latency.Latency().Milliseconds()
	}
	if !status.ConnectedAt.IsZero() {
		connectedAt := status.ConnectedAt
		resp.ConnectedAt = &connectedAt
		if status.Ready {
			resp.UptimeSeconds = int64(now.Sub(connectedAt).Seconds())
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type readyResponse struct {
	Status string `json:"status"`
}

type statusResponse struct {
	Ready         bool       `json:"ready"`
	User          string     `json:"user,omitempty"`
	UserID        string     `json:"userId,omitempty"`
	LatencyMs     int64      `json:"latencyMs"`
	ConnectedAt   *time.Time `json:"connectedAt,omitempty"`
	UptimeSeconds int64      `json:"uptimeSeconds"`
	MessagesSeen  int64      `json:"messagesSeen"`
	RepliesSent   int64      `json:"repliesSent"`
	Timestamp     time.Time  `json:"timestamp"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, errorResponse{
		Error:   message,
		Details: details,
	})
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
