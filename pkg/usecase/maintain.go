package usecase

import (
	"context"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/model"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/athenaeum-lab/mnemosyne/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// RegenerateAllEmbeddings re-embeds every stored chunk and overwrites
// the vector index. Chunk IDs are deterministic, so re-upserting
// replaces rather than duplicates.
func (uc *UseCases) RegenerateAllEmbeddings(ctx context.Context) (int, error) {
	docs, err := uc.repo.Document().List(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to list documents")
	}

	logger := logging.From(ctx)
	regenerated := 0
	for _, listed := range docs {
		doc, err := uc.repo.Document().Get(ctx, listed.ID)
		if err != nil {
			return regenerated, goerr.Wrap(err, "failed to load document", goerr.V("documentID", listed.ID))
		}

		if err := uc.embedChunks(ctx, doc.Chunks); err != nil {
			return regenerated, goerr.Wrap(err, "failed to re-embed document", goerr.V("documentID", doc.ID))
		}

		for _, chunk := range doc.Chunks {
			if err := uc.repo.Vector().Upsert(ctx, chunk); err != nil {
				return regenerated, goerr.Wrap(err, "failed to upsert regenerated vector", goerr.V("chunkID", chunk.ID))
			}
			if uc.keywords != nil {
				if err := uc.keywords.Add(ctx, chunk); err != nil {
					return regenerated, goerr.Wrap(err, "failed to re-index chunk keywords", goerr.V("chunkID", chunk.ID))
				}
			}
			regenerated++
		}
	}

	logger.Info("regenerated embeddings", "chunks", regenerated, "documents", len(docs))
	return regenerated, nil
}

// RebuildKeywordIndex replays every stored chunk through the keyword
// index. The index lives in memory only, so a server starting against
// a durable backend has to warm it from the document store.
func (uc *UseCases) RebuildKeywordIndex(ctx context.Context) (int, error) {
	if uc.keywords == nil {
		return 0, nil
	}

	docs, err := uc.repo.Document().List(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to list documents")
	}

	indexed := 0
	for _, listed := range docs {
		doc, err := uc.repo.Document().Get(ctx, listed.ID)
		if err != nil {
			return indexed, goerr.Wrap(err, "failed to load document", goerr.V("documentID", listed.ID))
		}
		for _, chunk := range doc.Chunks {
			if err := uc.keywords.Add(ctx, chunk); err != nil {
				return indexed, goerr.Wrap(err, "failed to index chunk keywords", goerr.V("chunkID", chunk.ID))
			}
			indexed++
		}
	}

	logging.From(ctx).Info("keyword index rebuilt", "chunks", indexed, "documents", len(docs))
	return indexed, nil
}

// ClearAllEmbeddings empties the vector index but keeps the documents
func (uc *UseCases) ClearAllEmbeddings(ctx context.Context) error {
	if err := uc.repo.Vector().Clear(ctx); err != nil {
		return goerr.Wrap(err, "failed to clear vector index")
	}
	if uc.keywords != nil {
		if err := uc.keywords.Clear(ctx); err != nil {
			return goerr.Wrap(err, "failed to clear keyword index")
		}
	}
	return nil
}

// ClearAllDocuments removes every document, its chunks, and all vectors
func (uc *UseCases) ClearAllDocuments(ctx context.Context) error {
	if err := uc.repo.Document().DeleteAll(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete documents")
	}
	return uc.ClearAllEmbeddings(ctx)
}

// DeleteDocument removes one document and everything derived from it
func (uc *UseCases) DeleteDocument(ctx context.Context, id types.DocumentID) error {
	if err := uc.repo.Vector().DeleteByDocument(ctx, id); err != nil {
		return goerr.Wrap(err, "failed to delete document vectors", goerr.V("documentID", id))
	}
	if uc.keywords != nil {
		if err := uc.keywords.DeleteByDocument(ctx, id); err != nil {
			return goerr.Wrap(err, "failed to delete document keywords", goerr.V("documentID", id))
		}
	}
	if err := uc.repo.Document().Delete(ctx, id); err != nil {
		return goerr.Wrap(err, "failed to delete document", goerr.V("documentID", id))
	}
	return nil
}

// SweepSessions deletes every expired conversation session and
// returns how many were removed.
func (uc *UseCases) SweepSessions(ctx context.Context) (int, error) {
	return uc.sessions.Sweep(ctx)
}

// GetStorageStatistics reports document, chunk, and vector counts for
// the active backend.
func (uc *UseCases) GetStorageStatistics(ctx context.Context) (*model.StorageStatistics, error) {
	stats, err := uc.repo.Vector().Stats(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to collect vector statistics")
	}

	docCount, chunkCount, err := uc.repo.Document().Count(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to count documents")
	}
	stats.DocumentCount = docCount
	stats.ChunkCount = chunkCount

	return stats, nil
}
