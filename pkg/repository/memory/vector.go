package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/model"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

type vectorEntry struct {
	chunk *model.Chunk
	seq   int // insertion order, the stable tie-breaker
}

type vectorIndex struct {
	mu      sync.RWMutex
	entries map[types.ChunkID]*vectorEntry
	nextSeq int
}

func newVectorIndex() *vectorIndex {
	return &vectorIndex{
		entries: make(map[types.ChunkID]*vectorEntry),
	}
}

func (r *vectorIndex) Upsert(ctx context.Context, chunk *model.Chunk) error {
	if chunk == nil || chunk.ID == "" {
		return goerr.New("chunk with ID is required")
	}
	if len(chunk.Embedding) == 0 {
		return goerr.New("chunk embedding is required", goerr.V("id", chunk.ID))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-upserting an existing ID overwrites the vector but keeps the
	// original insertion position so tie-breaking stays stable.
	if prev, exists := r.entries[chunk.ID]; exists {
		prev.chunk = copyChunk(chunk)
		return nil
	}

	r.entries[chunk.ID] = &vectorEntry{chunk: copyChunk(chunk), seq: r.nextSeq}
	r.nextSeq++
	return nil
}

func (r *vectorIndex) Query(ctx context.Context, vector []float32, topK int) ([]*model.SearchResult, error) {
	if topK <= 0 {
		topK = 10
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	type scored struct {
		entry *vectorEntry
		score float64
	}

	candidates := make([]scored, 0, len(r.entries))
	for _, e := range r.entries {
		candidates = append(candidates, scored{
			entry: e,
			score: normalizedCosine(vector, e.chunk.Embedding),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].entry.seq < candidates[j].entry.seq
	})

	if topK > len(candidates) {
		topK = len(candidates)
	}

	results := make([]*model.SearchResult, topK)
	for i := 0; i < topK; i++ {
		results[i] = &model.SearchResult{
			Chunk:         copyChunk(candidates[i].entry.chunk),
			Score:         candidates[i].score,
			SemanticScore: candidates[i].score,
		}
	}
	return results, nil
}

func (r *vectorIndex) DeleteByDocument(ctx context.Context, docID types.DocumentID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.entries {
		if e.chunk.DocumentID == docID {
			delete(r.entries, id)
		}
	}
	return nil
}

func (r *vectorIndex) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[types.ChunkID]*vectorEntry)
	r.nextSeq = 0
	return nil
}

func (r *vectorIndex) Stats(ctx context.Context) (*model.StorageStatistics, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dimension := 0
	for _, e := range r.entries {
		dimension = len(e.chunk.Embedding)
		break
	}

	return &model.StorageStatistics{
		Backend:     "memory",
		VectorCount: len(r.entries),
		Dimension:   dimension,
		CollectedAt: time.Now().UTC(),
	}, nil
}

// normalizedCosine maps cosine similarity from [-1,1] into [0,1] so
// scores are comparable across backends.
func normalizedCosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}

	return (dot/denom + 1) / 2
}
