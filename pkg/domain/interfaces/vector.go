package interfaces

import (
	"context"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/model"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
)

// VectorIndex defines the uniform contract over pluggable vector
// storage backends. Scores returned by Query are normalized to [0,1]
// so results are comparable across backends.
type VectorIndex interface {
	// Upsert stores a chunk with its embedding. Idempotent per chunk ID:
	// re-upserting the same ID overwrites the prior vector.
	Upsert(ctx context.Context, chunk *model.Chunk) error

	// Query returns up to topK chunks ranked by similarity, score
	// descending, ties broken by insertion order.
	Query(ctx context.Context, vector []float32, topK int) ([]*model.SearchResult, error)

	// DeleteByDocument removes every vector belonging to a document
	DeleteByDocument(ctx context.Context, docID types.DocumentID) error

	// Clear removes all vectors
	Clear(ctx context.Context) error

	// Stats reports the current size of the index
	Stats(ctx context.Context) (*model.StorageStatistics, error)
}
