package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/model"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

type documentRepository struct {
	mu        sync.RWMutex
	documents map[types.DocumentID]*model.Document
}

func newDocumentRepository() *documentRepository {
	return &documentRepository{
		documents: make(map[types.DocumentID]*model.Document),
	}
}

// copyDocument creates a deep copy of a document and its chunks
func copyDocument(d *model.Document) *model.Document {
	copied := &model.Document{
		ID:          d.ID,
		FileName:    d.FileName,
		ContentType: d.ContentType,
		Content:     d.Content,
		UploadedBy:  d.UploadedBy,
		UploadedAt:  d.UploadedAt,
	}
	if d.Chunks != nil {
		copied.Chunks = make([]*model.Chunk, len(d.Chunks))
		for i, c := range d.Chunks {
			copied.Chunks[i] = copyChunk(c)
		}
	}
	return copied
}

func copyChunk(c *model.Chunk) *model.Chunk {
	copied := &model.Chunk{
		ID:         c.ID,
		DocumentID: c.DocumentID,
		Index:      c.Index,
		Content:    c.Content,
		CreatedAt:  c.CreatedAt,
	}
	if c.Embedding != nil {
		copied.Embedding = make([]float32, len(c.Embedding))
		copy(copied.Embedding, c.Embedding)
	}
	return copied
}

func (r *documentRepository) Put(ctx context.Context, doc *model.Document) error {
	if err := doc.ID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid document")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.documents[doc.ID] = copyDocument(doc)
	return nil
}

func (r *documentRepository) Get(ctx context.Context, id types.DocumentID) (*model.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, exists := r.documents[id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "document not found", goerr.V("id", id))
	}
	return copyDocument(doc), nil
}

func (r *documentRepository) List(ctx context.Context) ([]*model.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.Document, 0, len(r.documents))
	for _, d := range r.documents {
		result = append(result, copyDocument(d))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UploadedAt.After(result[j].UploadedAt)
	})
	return result, nil
}

func (r *documentRepository) Delete(ctx context.Context, id types.DocumentID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Deleting an absent document is not an error; all backends share
	// that contract
	delete(r.documents, id)
	return nil
}

func (r *documentRepository) DeleteAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.documents = make(map[types.DocumentID]*model.Document)
	return nil
}

func (r *documentRepository) Count(ctx context.Context) (int, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chunks := 0
	for _, d := range r.documents {
		chunks += len(d.Chunks)
	}
	return len(r.documents), chunks, nil
}
