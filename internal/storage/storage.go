package storage

import (
	"errors"
	"strings"
	"sync"
	"time"
)

var (
	// ErrInvalidStatus indicates a status update violates validation rules.
	ErrInvalidStatus = errors.New("ready status requires a bot username")
)

// Status is a snapshot of the bot's gateway connection and activity.
type Status struct {
	Ready        bool
	Username     string
	UserID       string
	ConnectedAt  time.Time
	LastEventAt  time.Time
	MessagesSeen int64
	RepliesSent  int64
}

// Storage provides access to the bot status shared between the gateway
// handlers and the HTTP API.
type Storage interface {
	GetStatus() (Status, error)
	MarkReady(username, userID string, at time.Time) error
	MarkDisconnected(at time.Time) error
	MarkResumed(at time.Time) error
	RecordMessage(at time.Time) error
	RecordReply(at time.Time) error
}

// MemoryStorage keeps the status in-memory and guards access with a RWMutex.
type MemoryStorage struct {
	mu     sync.RWMutex
	status Status
}

// NewMemoryStorage initialises storage with a not-ready status.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// GetStatus returns a copy of the current status.
func (s *MemoryStorage) GetStatus() (Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.status, nil
}

// MarkReady records the bot identity after a successful gateway handshake.
func (s *MemoryStorage) MarkReady(username, userID string, at time.Time) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrInvalidStatus
	}

	s.mu.Lock()
	s.status.Ready = true
	s.status.Username = username
	s.status.UserID = userID
	s.status.ConnectedAt = at
	s.status.LastEventAt = at
	s.mu.Unlock()

	return nil
}

// MarkDisconnected clears the ready flag but keeps the identity and counters.
func (s *MemoryStorage) MarkDisconnected(at time.Time) error {
	s.mu.Lock()
	s.status.Ready = false
	s.status.LastEventAt = at
	s.mu.Unlock()

	return nil
}

// MarkResumed sets the ready flag again after a resumed session. A session
// that never became ready stays not ready.
func (s *MemoryStorage) MarkResumed(at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Username == "" {
		return ErrInvalidStatus
	}
	s.status.Ready = true
	s.status.LastEventAt = at
	return nil
}

// RecordMessage counts an incoming message from another user.
func (s *MemoryStorage) RecordMessage(at time.Time) error {
	s.mu.Lock()
	s.status.MessagesSeen++
	s.status.LastEventAt = at
	s.mu.Unlock()

	return nil
}

// RecordReply counts a reply the bot sent.
func (s *MemoryStorage) RecordReply(at time.Time) error {
	s.mu.Lock()
	s.status.RepliesSent++
	s.status.LastEventAt = at
	s.mu.Unlock()

	return nil
}
