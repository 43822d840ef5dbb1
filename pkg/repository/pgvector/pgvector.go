// Package pgvector provides the PostgreSQL repository backend. Vector
// similarity runs on the pgvector extension using the cosine distance
// operator, with distances remapped to the [0, 1] score scale used by
// the other backends.
package pgvector

import (
	"context"
	"fmt"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/m-mizutani/goerr/v2"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = goerr.New("not found", goerr.T(types.TagNotFound))

type PgVector struct {
	pool      *pgxpool.Pool
	documents *documentRepository
	vectors   *vectorIndex
	sessions  *sessionRepository
}

var _ interfaces.Repository = &PgVector{}

// New connects to PostgreSQL and prepares the schema. The dimension
// fixes the vector column width, so changing the embedding model
// requires clearing the index first.
func New(ctx context.Context, dsn string, dimension int) (*PgVector, error) {
	if dimension <= 0 {
		return nil, goerr.Wrap(types.ErrInvalidConfiguration, "embedding dimension must be positive",
			goerr.V("dimension", dimension))
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, goerr.Wrap(types.ErrStorageUnavailable, "failed to create connection pool",
			goerr.V("cause", err.Error()))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, goerr.Wrap(types.ErrStorageUnavailable, "failed to ping database",
			goerr.V("cause", err.Error()))
	}

	p := &PgVector{
		pool:      pool,
		documents: &documentRepository{pool: pool},
		vectors:   &vectorIndex{pool: pool},
		sessions:  &sessionRepository{pool: pool},
	}

	if err := p.migrate(ctx, dimension); err != nil {
		pool.Close()
		return nil, err
	}

	return p, nil
}

func (p *PgVector) migrate(ctx context.Context, dimension int) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			file_name TEXT NOT NULL,
			content_type TEXT NOT NULL,
			content TEXT NOT NULL,
			uploaded_by TEXT NOT NULL DEFAULT '',
			uploaded_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			chunk_index INT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS vectors (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			chunk_index INT NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			seq BIGSERIAL
		)`, dimension),
		`CREATE INDEX IF NOT EXISTS idx_vectors_document_id ON vectors (document_id)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			turns JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL,
			last_active_at TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return goerr.Wrap(types.ErrStorageUnavailable, "failed to prepare schema",
				goerr.V("cause", err.Error()))
		}
	}
	return nil
}

func (p *PgVector) Document() interfaces.DocumentRepository {
	return p.documents
}

func (p *PgVector) Vector() interfaces.VectorIndex {
	return p.vectors
}

func (p *PgVector) Session() interfaces.SessionRepository {
	return p.sessions
}

func (p *PgVector) Close(ctx context.Context) error {
	p.pool.Close()
	return nil
}
