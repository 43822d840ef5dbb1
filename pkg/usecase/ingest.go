package usecase

import (
	"context"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/model"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/athenaeum-lab/mnemosyne/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
)

// Upload is one document submitted for ingestion
type Upload struct {
	FileName    string
	ContentType string
	Raw         []byte
	UploadedBy  string
}

// UploadResult reports the outcome for one submitted document. A batch
// never aborts on a per-document failure; failed entries carry Err.
type UploadResult struct {
	FileName   string
	DocumentID types.DocumentID
	ChunkCount int
	Err        error
}

// UploadDocuments ingests a batch of documents: parse, chunk, embed,
// store. Documents are processed with bounded parallelism; failures are
// collected per document and returned alongside successes.
func (uc *UseCases) UploadDocuments(ctx context.Context, uploads []Upload) ([]UploadResult, error) {
	if len(uploads) == 0 {
		return nil, goerr.New("no documents to upload", goerr.T(types.TagBadRequest))
	}

	results := make([]UploadResult, len(uploads))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(uc.ingestionWorkers)

	for i, upload := range uploads {
		eg.Go(func() error {
			docID, chunkCount, err := uc.ingestOne(gctx, upload)
			results[i] = UploadResult{
				FileName:   upload.FileName,
				DocumentID: docID,
				ChunkCount: chunkCount,
				Err:        err,
			}
			// Cancellation is the only error that stops the batch
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return results, goerr.Wrap(err, "upload batch cancelled")
	}

	logger := logging.From(ctx)
	succeeded := 0
	for _, result := range results {
		if result.Err == nil {
			succeeded++
		}
	}
	logger.Info("upload batch finished",
		"total", len(uploads),
		"succeeded", succeeded,
		"failed", len(uploads)-succeeded)

	return results, nil
}

func (uc *UseCases) ingestOne(ctx context.Context, upload Upload) (types.DocumentID, int, error) {
	text, err := uc.parser.Parse(ctx, upload.Raw, upload.ContentType)
	if err != nil {
		return "", 0, goerr.Wrap(err, "failed to parse document", goerr.V("fileName", upload.FileName))
	}

	doc := model.NewDocument(upload.FileName, upload.ContentType, text, upload.UploadedBy)

	pieces := uc.splitter.Split(text)
	doc.Chunks = make([]*model.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		doc.Chunks = append(doc.Chunks, model.NewChunk(doc.ID, i, piece))
	}

	if err := uc.embedChunks(ctx, doc.Chunks); err != nil {
		return "", 0, err
	}

	if err := uc.repo.Document().Put(ctx, doc); err != nil {
		return "", 0, goerr.Wrap(err, "failed to store document", goerr.V("documentID", doc.ID))
	}

	for _, chunk := range doc.Chunks {
		if err := uc.repo.Vector().Upsert(ctx, chunk); err != nil {
			return "", 0, goerr.Wrap(err, "failed to store chunk vector", goerr.V("chunkID", chunk.ID))
		}
		if uc.keywords != nil {
			if err := uc.keywords.Add(ctx, chunk); err != nil {
				return "", 0, goerr.Wrap(err, "failed to index chunk keywords", goerr.V("chunkID", chunk.ID))
			}
		}
	}

	return doc.ID, len(doc.Chunks), nil
}

// embedChunks fills in chunk embeddings in provider-call batches.
// Chunk order and index metadata stay deterministic regardless of how
// the provider batches complete.
func (uc *UseCases) embedChunks(ctx context.Context, chunks []*model.Chunk) error {
	for start := 0; start < len(chunks); start += uc.embedBatchSize {
		end := start + uc.embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Content
		}

		vectors, err := uc.gateway.Embed(ctx, texts)
		if err != nil {
			return goerr.Wrap(err, "failed to embed chunk batch",
				goerr.V("offset", start), goerr.V("size", len(batch)))
		}
		if len(vectors) != len(batch) {
			return goerr.New("embedding count mismatch",
				goerr.V("expected", len(batch)), goerr.V("got", len(vectors)))
		}
		for i, vector := range vectors {
			batch[i].Embedding = vector
		}
	}
	return nil
}
