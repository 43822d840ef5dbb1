package model

import (
	"time"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
)

// SearchSource is an auditable reference from an answer back to the
// retrieved evidence that was actually included in the generation prompt.
type SearchSource struct {
	DocumentID types.DocumentID
	FileName   string
	Content    string
	Score      float64
}

// RagResponse is the final product of a query: the synthesized answer
// plus the sources it was conditioned on. Immutable once constructed.
type RagResponse struct {
	Query       string
	Answer      string
	Sources     []SearchSource
	SessionID   types.SessionID
	GeneratedAt time.Time
}

// NewRagResponse constructs a response stamped with the generation time
func NewRagResponse(sessionID types.SessionID, query, answer string, sources []SearchSource) *RagResponse {
	return &RagResponse{
		Query:       query,
		Answer:      answer,
		Sources:     sources,
		SessionID:   sessionID,
		GeneratedAt: time.Now().UTC(),
	}
}
