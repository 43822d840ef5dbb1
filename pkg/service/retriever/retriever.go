// Package retriever blends semantic vector search with keyword search
// into a single ranked result list.
package retriever

import (
	"context"
	"sort"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/model"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/athenaeum-lab/mnemosyne/pkg/service/lexical"
	"github.com/athenaeum-lab/mnemosyne/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Embedder produces embedding vectors for query text
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Config struct {
	TopK           int
	SemanticWeight float64
	KeywordWeight  float64
	// MinScore drops candidates whose blended score falls below it,
	// applied before ranking.
	MinScore float64
	// WidenFactor multiplies TopK for the semantic candidate window so
	// keyword evidence can promote chunks outside the strict top K.
	WidenFactor int
}

func DefaultConfig() Config {
	return Config{
		TopK:           5,
		SemanticWeight: 0.7,
		KeywordWeight:  0.3,
		MinScore:       0,
		WidenFactor:    3,
	}
}

func (c *Config) Validate() error {
	if c.TopK <= 0 {
		return goerr.Wrap(types.ErrInvalidConfiguration, "topK must be positive",
			goerr.V("topK", c.TopK))
	}
	if c.SemanticWeight < 0 || c.KeywordWeight < 0 {
		return goerr.Wrap(types.ErrInvalidConfiguration, "weights must not be negative",
			goerr.V("semanticWeight", c.SemanticWeight), goerr.V("keywordWeight", c.KeywordWeight))
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		return goerr.Wrap(types.ErrInvalidConfiguration, "minScore must be within [0, 1]",
			goerr.V("minScore", c.MinScore))
	}
	if c.WidenFactor < 1 {
		return goerr.Wrap(types.ErrInvalidConfiguration, "widenFactor must be at least 1",
			goerr.V("widenFactor", c.WidenFactor))
	}
	return nil
}

type Retriever struct {
	embedder Embedder
	vectors  interfaces.VectorIndex
	keywords *lexical.Index
	cfg      Config
}

func New(embedder Embedder, vectors interfaces.VectorIndex, keywords *lexical.Index, cfg Config) (*Retriever, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Retriever{
		embedder: embedder,
		vectors:  vectors,
		keywords: keywords,
		cfg:      cfg,
	}, nil
}

// Retrieve runs hybrid search for the query and returns up to TopK
// results ordered by blended score.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]*model.SearchResult, error) {
	if query == "" {
		return nil, goerr.New("query must not be empty")
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query")
	}
	if len(vectors) != 1 {
		return nil, goerr.New("unexpected embedding count", goerr.V("count", len(vectors)))
	}

	window := r.cfg.TopK * r.cfg.WidenFactor
	candidates, err := r.vectors.Query(ctx, vectors[0], window)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query vector index")
	}

	keywordScores := map[types.ChunkID]float64{}
	if r.keywords != nil && r.cfg.KeywordWeight > 0 {
		keywordScores, err = r.keywords.Search(ctx, query, window)
		if err != nil {
			// Keyword search is best-effort: semantic results still stand
			logging.From(ctx).Warn("keyword search failed, falling back to semantic only",
				"error", err)
			keywordScores = map[types.ChunkID]float64{}
		}
	}

	results := r.blend(candidates, keywordScores)

	filtered := results[:0]
	for _, result := range results {
		if result.Score >= r.cfg.MinScore {
			filtered = append(filtered, result)
		}
	}
	results = filtered

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].SemanticScore > results[j].SemanticScore
	})

	if len(results) > r.cfg.TopK {
		results = results[:r.cfg.TopK]
	}
	return results, nil
}

// blend combines the semantic score of each candidate with its
// max-normalized keyword score, weighted and normalized by the weight
// sum so scores stay within [0, 1].
func (r *Retriever) blend(candidates []*model.SearchResult, keywordScores map[types.ChunkID]float64) []*model.SearchResult {
	maxKeyword := 0.0
	for _, score := range keywordScores {
		if score > maxKeyword {
			maxKeyword = score
		}
	}

	weightSum := r.cfg.SemanticWeight + r.cfg.KeywordWeight
	if weightSum == 0 {
		// Degenerate configuration: keep semantic ordering
		weightSum = 1
	}

	out := make([]*model.SearchResult, 0, len(candidates))
	for _, candidate := range candidates {
		keyword := 0.0
		if maxKeyword > 0 {
			keyword = keywordScores[candidate.Chunk.ID] / maxKeyword
		}
		blended := (r.cfg.SemanticWeight*candidate.SemanticScore + r.cfg.KeywordWeight*keyword) / weightSum
		out = append(out, &model.SearchResult{
			Chunk:         candidate.Chunk,
			Score:         blended,
			SemanticScore: candidate.SemanticScore,
			KeywordScore:  keyword,
		})
	}
	return out
}
