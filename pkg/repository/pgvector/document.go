package pgvector

import (
	"context"
	"errors"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/model"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/m-mizutani/goerr/v2"
)

type documentRepository struct {
	pool *pgxpool.Pool
}

func (r *documentRepository) Put(ctx context.Context, doc *model.Document) error {
	if err := doc.ID.Validate(); err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO documents (id, file_name, content_type, content, uploaded_by, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			file_name = EXCLUDED.file_name,
			content_type = EXCLUDED.content_type,
			content = EXCLUDED.content,
			uploaded_by = EXCLUDED.uploaded_by,
			uploaded_at = EXCLUDED.uploaded_at`,
		doc.ID.String(), doc.FileName, doc.ContentType, doc.Content, doc.UploadedBy, doc.UploadedAt)
	if err != nil {
		return goerr.Wrap(err, "failed to put document", goerr.V("documentID", doc.ID))
	}

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, doc.ID.String()); err != nil {
		return goerr.Wrap(err, "failed to clear chunks", goerr.V("documentID", doc.ID))
	}

	for _, chunk := range doc.Chunks {
		_, err := tx.Exec(ctx, `
			INSERT INTO chunks (id, document_id, chunk_index, content, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			chunk.ID.String(), chunk.DocumentID.String(), chunk.Index, chunk.Content, chunk.CreatedAt)
		if err != nil {
			return goerr.Wrap(err, "failed to insert chunk", goerr.V("chunkID", chunk.ID))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return goerr.Wrap(err, "failed to commit document", goerr.V("documentID", doc.ID))
	}
	return nil
}

func (r *documentRepository) Get(ctx context.Context, id types.DocumentID) (*model.Document, error) {
	doc := &model.Document{}
	var idStr string
	err := r.pool.QueryRow(ctx, `
		SELECT id, file_name, content_type, content, uploaded_by, uploaded_at
		FROM documents WHERE id = $1`, id.String()).
		Scan(&idStr, &doc.FileName, &doc.ContentType, &doc.Content, &doc.UploadedBy, &doc.UploadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, goerr.Wrap(ErrNotFound, "document not found", goerr.V("documentID", id))
		}
		return nil, goerr.Wrap(err, "failed to get document", goerr.V("documentID", id))
	}
	doc.ID = types.DocumentID(idStr)

	rows, err := r.pool.Query(ctx, `
		SELECT id, document_id, chunk_index, content, created_at
		FROM chunks WHERE document_id = $1 ORDER BY chunk_index`, id.String())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query chunks", goerr.V("documentID", id))
	}
	defer rows.Close()

	for rows.Next() {
		chunk := &model.Chunk{}
		var chunkID, docID string
		if err := rows.Scan(&chunkID, &docID, &chunk.Index, &chunk.Content, &chunk.CreatedAt); err != nil {
			return nil, goerr.Wrap(err, "failed to scan chunk", goerr.V("documentID", id))
		}
		chunk.ID = types.ChunkID(chunkID)
		chunk.DocumentID = types.DocumentID(docID)
		doc.Chunks = append(doc.Chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate chunks", goerr.V("documentID", id))
	}

	return doc, nil
}

func (r *documentRepository) List(ctx context.Context) ([]*model.Document, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, file_name, content_type, content, uploaded_by, uploaded_at
		FROM documents ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query documents")
	}
	defer rows.Close()

	var docs []*model.Document
	for rows.Next() {
		doc := &model.Document{}
		var idStr string
		if err := rows.Scan(&idStr, &doc.FileName, &doc.ContentType, &doc.Content, &doc.UploadedBy, &doc.UploadedAt); err != nil {
			return nil, goerr.Wrap(err, "failed to scan document")
		}
		doc.ID = types.DocumentID(idStr)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate documents")
	}

	return docs, nil
}

func (r *documentRepository) Delete(ctx context.Context, id types.DocumentID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id.String()); err != nil {
		return goerr.Wrap(err, "failed to delete document", goerr.V("documentID", id))
	}
	return nil
}

func (r *documentRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM documents`); err != nil {
		return goerr.Wrap(err, "failed to delete all documents")
	}
	return nil
}

func (r *documentRepository) Count(ctx context.Context) (int, int, error) {
	var docCount, chunkCount int
	err := r.pool.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM documents), (SELECT COUNT(*) FROM chunks)`).
		Scan(&docCount, &chunkCount)
	if err != nil {
		return 0, 0, goerr.Wrap(err, "failed to count documents")
	}
	return docCount, chunkCount, nil
}
