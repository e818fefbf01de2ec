// Package session holds per-user conversational state over one piece
// of captured content. Sessions live only in memory: they are working
// state, not the source of truth, and a restart drops them.
package session

import (
	"time"

	"github.com/kalambet/engram/internal/content"
)

// Turn is one entry in a session's conversation history.
type Turn struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the conversational state of one user over one content
// unit. History is append-only for the session's lifetime and is
// non-empty only when Unit is set; the first entry is always the
// assistant's initial summary.
type Session struct {
	UserID       string
	Unit         *content.Unit
	History      []Turn
	CreatedAt    time.Time
	LastActiveAt time.Time
}

// New creates a session seeded with the content unit and its summary.
func New(userID string, unit *content.Unit, summary string) *Session {
	now := time.Now().UTC()
	return &Session{
		UserID:       userID,
		Unit:         unit,
		History:      []Turn{{Role: "assistant", Text: summary, Timestamp: now}},
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// Append adds a turn to the history and bumps LastActiveAt.
func (s *Session) Append(role, text string) {
	now := time.Now().UTC()
	s.History = append(s.History, Turn{Role: role, Text: text, Timestamp: now})
	s.LastActiveAt = now
}

// Summary returns the assistant's initial digest of the content.
func (s *Session) Summary() string {
	if len(s.History) == 0 {
		return ""
	}
	return s.History[0].Text
}

// QATurns reports how many question/answer exchanges followed the
// initial summary.
func (s *Session) QATurns() int {
	if len(s.History) < 1 {
		return 0
	}
	return (len(s.History) - 1) / 2
}
