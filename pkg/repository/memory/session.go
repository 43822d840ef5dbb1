package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/model"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

type sessionRepository struct {
	mu       sync.RWMutex
	sessions map[types.SessionID]*model.Session
}

func newSessionRepository() *sessionRepository {
	return &sessionRepository{
		sessions: make(map[types.SessionID]*model.Session),
	}
}

func copySession(s *model.Session) *model.Session {
	copied := &model.Session{
		ID:           s.ID,
		CreatedAt:    s.CreatedAt,
		LastActiveAt: s.LastActiveAt,
	}
	if s.Turns != nil {
		copied.Turns = make([]model.Turn, len(s.Turns))
		copy(copied.Turns, s.Turns)
	}
	return copied
}

func (r *sessionRepository) Get(ctx context.Context, id types.SessionID) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "session not found", goerr.V("id", id))
	}
	return copySession(session), nil
}

func (r *sessionRepository) Put(ctx context.Context, session *model.Session) error {
	if err := session.ID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid session")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.ID] = copySession(session)
	return nil
}

func (r *sessionRepository) Delete(ctx context.Context, id types.SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; !exists {
		return goerr.Wrap(ErrNotFound, "session not found", goerr.V("id", id))
	}
	delete(r.sessions, id)
	return nil
}

func (r *sessionRepository) List(ctx context.Context) ([]*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*model.Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, copySession(session))
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastActiveAt.After(sessions[j].LastActiveAt)
	})
	return sessions, nil
}
