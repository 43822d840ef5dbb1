// Package memory provides an in-memory repository backend for
// development and testing. Vector similarity search is brute-force
// cosine over deep-copied entries.
package memory

import (
	"context"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = goerr.New("not found", goerr.T(types.TagNotFound))

type Memory struct {
	documents *documentRepository
	vectors   *vectorIndex
	sessions  *sessionRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		documents: newDocumentRepository(),
		vectors:   newVectorIndex(),
		sessions:  newSessionRepository(),
	}
}

func (m *Memory) Document() interfaces.DocumentRepository {
	return m.documents
}

func (m *Memory) Vector() interfaces.VectorIndex {
	return m.vectors
}

func (m *Memory) Session() interfaces.SessionRepository {
	return m.sessions
}

func (m *Memory) Close(ctx context.Context) error {
	return nil
}
