// Package lexical maintains an in-memory keyword index over chunk text.
// It supplies the keyword half of hybrid retrieval; scores are raw bleve
// relevance values and are normalized by the retriever.
package lexical

import (
	"context"
	"sync"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/model"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/m-mizutani/goerr/v2"
)

type indexedChunk struct {
	Content string `json:"content"`
}

type Index struct {
	mu       sync.RWMutex
	index    bleve.Index
	byDoc    map[types.DocumentID][]types.ChunkID
	docOfChk map[types.ChunkID]types.DocumentID
}

func newBleveIndex() (bleve.Index, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) keeps exact
	// word queries matching across languages.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create keyword index")
	}
	return index, nil
}

func New() (*Index, error) {
	index, err := newBleveIndex()
	if err != nil {
		return nil, err
	}
	return &Index{
		index:    index,
		byDoc:    make(map[types.DocumentID][]types.ChunkID),
		docOfChk: make(map[types.ChunkID]types.DocumentID),
	}, nil
}

// Add indexes a chunk's text. Re-adding the same chunk ID replaces the
// previous entry.
func (x *Index) Add(ctx context.Context, chunk *model.Chunk) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.index.Index(chunk.ID.String(), indexedChunk{Content: chunk.Content}); err != nil {
		return goerr.Wrap(err, "failed to index chunk", goerr.V("chunkID", chunk.ID))
	}

	if prev, ok := x.docOfChk[chunk.ID]; !ok || prev != chunk.DocumentID {
		x.docOfChk[chunk.ID] = chunk.DocumentID
		x.byDoc[chunk.DocumentID] = append(x.byDoc[chunk.DocumentID], chunk.ID)
	}
	return nil
}

// Search returns raw keyword relevance scores keyed by chunk ID
func (x *Index) Search(ctx context.Context, query string, limit int) (map[types.ChunkID]float64, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = limit
	results, err := x.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search keyword index", goerr.V("query", query))
	}

	scores := make(map[types.ChunkID]float64, len(results.Hits))
	for _, hit := range results.Hits {
		scores[types.ChunkID(hit.ID)] = hit.Score
	}
	return scores, nil
}

// DeleteByDocument removes every chunk indexed for the document
func (x *Index) DeleteByDocument(ctx context.Context, docID types.DocumentID) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, chunkID := range x.byDoc[docID] {
		if err := x.index.Delete(chunkID.String()); err != nil {
			return goerr.Wrap(err, "failed to delete chunk from keyword index",
				goerr.V("chunkID", chunkID))
		}
		delete(x.docOfChk, chunkID)
	}
	delete(x.byDoc, docID)
	return nil
}

// Clear drops the whole index and starts fresh
func (x *Index) Clear(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	fresh, err := newBleveIndex()
	if err != nil {
		return err
	}
	_ = x.index.Close()
	x.index = fresh
	x.byDoc = make(map[types.DocumentID][]types.ChunkID)
	x.docOfChk = make(map[types.ChunkID]types.DocumentID)
	return nil
}

func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.index.Close()
}
