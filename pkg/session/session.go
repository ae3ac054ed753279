// Package session stores conversation state between pipeline runs.
//
// A session holds the chat history plus the most recent validated circuit,
// so follow-up requests ("make the tail device wider") carry the context of
// what was generated before. Three backends implement the Store interface:
//   - memory: in-process storage for development and tests
//   - file: JSON files in a config directory, for the CLI
//   - redis: shared storage for multi-instance API deployments
//
// # Usage
//
//	store := session.NewMemoryStore()
//
//	sess := session.New(session.DefaultTTL)
//	sess.Record("design an inverter", result)
//	store.Set(ctx, sess)
//
//	sess, err := store.Get(ctx, sessionID)
//	if err != nil {
//	    return err
//	}
//	if sess == nil {
//	    // not found or expired
//	}
package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ordlab/ordpilot/pkg/llm"
)

// Default limits.
const (
	// DefaultTTL is the default session duration.
	DefaultTTL = 24 * time.Hour

	// MaxHistory bounds the number of messages kept per session. Older
	// exchanges are dropped pairwise so the history always starts with a
	// user message.
	MaxHistory = 40
)

// Session stores one conversation and its latest artifact.
type Session struct {
	ID        string        `json:"id"`
	Messages  []llm.Message `json:"messages,omitempty"`
	Source    string        `json:"source,omitempty"`
	SVG       string        `json:"svg,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// New creates an empty session with a fresh ID.
func New(ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Append adds one user/assistant exchange to the history and trims it to
// MaxHistory messages.
func (s *Session) Append(userMessage, assistantReply string) {
	s.Messages = append(s.Messages,
		llm.Message{Role: llm.RoleUser, Content: userMessage},
		llm.Message{Role: llm.RoleAssistant, Content: assistantReply},
	)
	if excess := len(s.Messages) - MaxHistory; excess > 0 {
		if excess%2 != 0 {
			excess++
		}
		s.Messages = append(s.Messages[:0:0], s.Messages[excess:]...)
	}
	s.UpdatedAt = time.Now()
}

// SetArtifact records the latest validated circuit for the session.
func (s *Session) SetArtifact(source, svg string) {
	s.Source = source
	s.SVG = svg
	s.UpdatedAt = time.Now()
}

// Store is the interface for session storage backends.
type Store interface {
	// Get retrieves a session by ID.
	// Returns nil, nil if the session doesn't exist or has expired.
	Get(ctx context.Context, sessionID string) (*Session, error)

	// Set stores a session.
	Set(ctx context.Context, session *Session) error

	// Delete removes a session.
	Delete(ctx context.Context, sessionID string) error

	// Cleanup removes expired sessions (may be a no-op for backends with
	// native expiration).
	Cleanup(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
