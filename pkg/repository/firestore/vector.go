package firestore

import (
	"context"
	"math"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/model"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultVectorCollection = "vectors"

	// FindNearest returns at most this many candidates before scores are
	// recomputed in-process. Wider than any topK we serve so ranking ties
	// are resolved consistently.
	maxNearestCandidates = 100
)

type vectorIndex struct {
	client           *firestore.Client
	collectionPrefix string
}

func newVectorIndex(client *firestore.Client) *vectorIndex {
	return &vectorIndex{client: client}
}

func (r *vectorIndex) collection() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + defaultVectorCollection)
}

type vectorDoc struct {
	ID         string             `firestore:"id"`
	DocumentID string             `firestore:"document_id"`
	Index      int                `firestore:"index"`
	Content    string             `firestore:"content"`
	Embedding  firestore.Vector32 `firestore:"embedding"`
	CreatedAt  time.Time          `firestore:"created_at"`
	Seq        int64              `firestore:"seq"`
}

func toVectorDoc(chunk *model.Chunk, seq int64) *vectorDoc {
	return &vectorDoc{
		ID:         chunk.ID.String(),
		DocumentID: chunk.DocumentID.String(),
		Index:      chunk.Index,
		Content:    chunk.Content,
		Embedding:  firestore.Vector32(chunk.Embedding),
		CreatedAt:  chunk.CreatedAt,
		Seq:        seq,
	}
}

func fromVectorDoc(d *vectorDoc) *model.Chunk {
	return &model.Chunk{
		ID:         types.ChunkID(d.ID),
		DocumentID: types.DocumentID(d.DocumentID),
		Index:      d.Index,
		Content:    d.Content,
		Embedding:  []float32(d.Embedding),
		CreatedAt:  d.CreatedAt,
	}
}

func (r *vectorIndex) Upsert(ctx context.Context, chunk *model.Chunk) error {
	if err := chunk.ID.Validate(); err != nil {
		return err
	}
	if len(chunk.Embedding) == 0 {
		return goerr.New("chunk has no embedding", goerr.V("chunkID", chunk.ID))
	}

	docRef := r.collection().Doc(chunkDocName(chunk.ID))

	// Re-upserting a chunk keeps its original sequence number so
	// ranking ties stay stable across embedding regeneration.
	seq := time.Now().UnixNano()
	snapshot, err := docRef.Get(ctx)
	if err == nil {
		var existing vectorDoc
		if err := snapshot.DataTo(&existing); err == nil && existing.Seq > 0 {
			seq = existing.Seq
		}
	} else if status.Code(err) != codes.NotFound {
		return goerr.Wrap(err, "failed to check existing vector", goerr.V("chunkID", chunk.ID))
	}

	if _, err := docRef.Set(ctx, toVectorDoc(chunk, seq)); err != nil {
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

	limit := maxNearestCandidates
	if topK > limit {
		limit = topK
	}

	vq := r.collection().FindNearest("embedding",
		firestore.Vector32(vector),
		limit,
		firestore.DistanceMeasureCosine,
		nil)

	iter := vq.Documents(ctx)
	defer iter.Stop()

	type scored struct {
		chunk *model.Chunk
		score float64
		seq   int64
	}

	var results []scored
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to execute vector query")
		}
		var d vectorDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to decode vector")
		}
		score := normalizedCosine(vector, []float32(d.Embedding))
		results = append(results, scored{chunk: fromVectorDoc(&d), score: score, seq: d.Seq})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].seq < results[j].seq
	})

	if len(results) > topK {
		results = results[:topK]
	}

	out := make([]*model.SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, &model.SearchResult{
			Chunk:         r.chunk,
			Score:         r.score,
			SemanticScore: r.score,
		})
	}
	return out, nil
}

func (r *vectorIndex) DeleteByDocument(ctx context.Context, id types.DocumentID) error {
	iter := r.collection().Where("document_id", "==", id.String()).Documents(ctx)
	defer iter.Stop()

	batch := r.client.BulkWriter(ctx)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "failed to iterate vectors for delete", goerr.V("documentID", id))
		}
		if _, err := batch.Delete(snap.Ref); err != nil {
			return goerr.Wrap(err, "failed to enqueue vector delete", goerr.V("ref", snap.Ref.ID))
		}
	}
	batch.End()
	return nil
}

func (r *vectorIndex) Clear(ctx context.Context) error {
	iter := r.collection().Documents(ctx)
	defer iter.Stop()

	batch := r.client.BulkWriter(ctx)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "failed to iterate vectors for clear")
		}
		if _, err := batch.Delete(snap.Ref); err != nil {
			return goerr.Wrap(err, "failed to enqueue vector delete", goerr.V("ref", snap.Ref.ID))
		}
	}
	batch.End()
	return nil
}

func (r *vectorIndex) Stats(ctx context.Context) (*model.StorageStatistics, error) {
	iter := r.collection().Documents(ctx)
	defer iter.Stop()

	count := 0
	dimension := 0
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate vectors for stats")
		}
		count++
		if dimension == 0 {
			var d vectorDoc
			if err := snap.DataTo(&d); err == nil {
				dimension = len(d.Embedding)
			}
		}
	}

	return &model.StorageStatistics{
		Backend:     "firestore",
		VectorCount: count,
		Dimension:   dimension,
		CollectedAt: time.Now(),
	}, nil
}

// normalizedCosine maps cosine similarity from [-1, 1] into [0, 1] so
// semantic scores can be blended with keyword scores directly.
func normalizedCosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return (cos + 1) / 2
}
