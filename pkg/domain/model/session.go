package model

import (
	"time"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
)

// Turn is a single query/answer exchange within a session. Turns store
// the verbatim query and the synthesized answer only, not the retrieved
// chunks, to bound per-session storage.
type Turn struct {
	Query     string
	Answer    string
	CreatedAt time.Time
}

// Session is a bounded conversational context. Turns are append-only and
// ordered; mutation is serialized per session ID by the session manager.
type Session struct {
	ID           types.SessionID
	Turns        []Turn
	CreatedAt    time.Time
	LastActiveAt time.Time
}

// NewSession creates an empty session with the given ID
func NewSession(id types.SessionID) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:           id,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// Append records a completed exchange and bumps the activity timestamp
func (s *Session) Append(query, answer string) {
	now := time.Now().UTC()
	s.Turns = append(s.Turns, Turn{
		Query:     query,
		Answer:    answer,
		CreatedAt: now,
	})
	s.LastActiveAt = now
}

// LastTurns returns up to k most recent turns, oldest first, so that
// serializing them into a prompt biases recency toward the end.
func (s *Session) LastTurns(k int) []Turn {
	if k <= 0 || len(s.Turns) == 0 {
		return nil
	}
	if k > len(s.Turns) {
		k = len(s.Turns)
	}
	out := make([]Turn, k)
	copy(out, s.Turns[len(s.Turns)-k:])
	return out
}

// ExpiredBy reports whether the session has been idle longer than ttl
func (s *Session) ExpiredBy(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(s.LastActiveAt) > ttl
}
