package pgvector

import (
	"context"
	"time"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/model"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/m-mizutani/goerr/v2"
	pgv "github.com/pgvector/pgvector-go"
)

type vectorIndex struct {
	pool *pgxpool.Pool
}

func (r *vectorIndex) Upsert(ctx context.Context, chunk *model.Chunk) error {
	if err := chunk.ID.Validate(); err != nil {
		return err
	}
	if len(chunk.Embedding) == 0 {
		return goerr.New("chunk has no embedding", goerr.V("chunkID", chunk.ID))
	}

	// seq is assigned on first insert only so ranking ties stay stable
	// across embedding regeneration.
	_, err := r.pool.Exec(ctx, `
		INSERT INTO vectors (id, document_id, chunk_index, content, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			document_id = EXCLUDED.document_id,
			chunk_index = EXCLUDED.chunk_index,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			created_at = EXCLUDED.created_at`,
		chunk.ID.String(), chunk.DocumentID.String(), chunk.Index, chunk.Content,
		pgv.NewVector(chunk.Embedding), chunk.CreatedAt)
	if err != nil {
		return goerr.Wrap(err, "failed to upsert vector", goerr.V("chunkID", chunk.ID))
	}
	return nil
}

func (r *vectorIndex) Query(ctx context.Context, vector []float32, topK int) ([]*model.SearchResult, error) {
	if len(vector) == 0 {
		return nil, goerr.New("query vector is empty")
	}
	if topK <= 0 {
		topK = 10
	}

	// The <=> operator yields cosine distance in [0, 2]; 1 - d/2 maps
	// it onto the [0, 1] similarity scale shared by all backends.
	rows, err := r.pool.Query(ctx, `
		SELECT id, document_id, chunk_index, content, embedding, created_at,
			1 - (embedding <=> $1) / 2 AS score
		FROM vectors
		ORDER BY embedding <=> $1, seq
		LIMIT $2`,
		pgv.NewVector(vector), topK)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to execute vector query")
	}
	defer rows.Close()

	var results []*model.SearchResult
	for rows.Next() {
		chunk := &model.Chunk{}
		var chunkID, docID string
		var embedding pgv.Vector
		var score float64
		if err := rows.Scan(&chunkID, &docID, &chunk.Index, &chunk.Content, &embedding, &chunk.CreatedAt, &score); err != nil {
			return nil, goerr.Wrap(err, "failed to scan vector row")
		}
		chunk.ID = types.ChunkID(chunkID)
		chunk.DocumentID = types.DocumentID(docID)
		chunk.Embedding = embedding.Slice()
		results = append(results, &model.SearchResult{
			Chunk:         chunk,
			Score:         score,
			SemanticScore: score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate vector rows")
	}

	return results, nil
}

func (r *vectorIndex) DeleteByDocument(ctx context.Context, id types.DocumentID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM vectors WHERE document_id = $1`, id.String()); err != nil {
		return goerr.Wrap(err, "failed to delete vectors", goerr.V("documentID", id))
	}
	return nil
}

func (r *vectorIndex) Clear(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM vectors`); err != nil {
		return goerr.Wrap(err, "failed to clear vectors")
	}
	return nil
}

func (r *vectorIndex) Stats(ctx context.Context) (*model.StorageStatistics, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM vectors`).Scan(&count); err != nil {
		return nil, goerr.Wrap(err, "failed to count vectors")
	}

	dimension := 0
	if count > 0 {
		var embedding pgv.Vector
		if err := r.pool.QueryRow(ctx, `SELECT embedding FROM vectors LIMIT 1`).Scan(&embedding); err != nil {
			return nil, goerr.Wrap(err, "failed to probe vector dimension")
		}
		dimension = len(embedding.Slice())
	}

	return &model.StorageStatistics{
		Backend:     "pgvector",
		VectorCount: count,
		Dimension:   dimension,
		CollectedAt: time.Now(),
	}, nil
}
