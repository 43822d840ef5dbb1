package interfaces

import "context"

// Repository defines the interface for data persistence. Conversation
// storage is deliberately a separate sub-repository from document and
// vector storage so the two can live on different backends.
type Repository interface {
	Document() DocumentRepository
	Vector() VectorIndex
	Session() SessionRepository

	Close(ctx context.Context) error
}
