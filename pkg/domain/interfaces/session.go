package interfaces

import (
	"context"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/model"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
)

// SessionRepository defines the interface for conversation session
// persistence. The session manager owns serialization of turn writes;
// implementations only need last-writer-wins Put semantics.
type SessionRepository interface {
	// Get retrieves a session by ID, or a not-found error
	Get(ctx context.Context, id types.SessionID) (*model.Session, error)

	// Put stores the full session state
	Put(ctx context.Context, session *model.Session) error

	// Delete removes a session and its turns
	Delete(ctx context.Context, id types.SessionID) error

	// List returns all stored sessions (for expiry sweeps)
	List(ctx context.Context) ([]*model.Session, error)
}
