package interfaces

import (
	"context"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/model"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
)

// DocumentRepository defines the interface for Document persistence
type DocumentRepository interface {
	// Put stores a document (including its chunk texts, excluding vectors)
	Put(ctx context.Context, doc *model.Document) error

	// Get retrieves a document by ID
	Get(ctx context.Context, id types.DocumentID) (*model.Document, error)

	// List retrieves all documents, newest first
	List(ctx context.Context) ([]*model.Document, error)

	// Delete removes a document. Deleting an absent document succeeds.
	// Vector cleanup is the caller's job via VectorIndex.DeleteByDocument
	// so partial failures stay observable.
	Delete(ctx context.Context, id types.DocumentID) error

	// DeleteAll removes every document
	DeleteAll(ctx context.Context) error

	// Count returns the number of stored documents and chunks
	Count(ctx context.Context) (docs int, chunks int, err error)
}
