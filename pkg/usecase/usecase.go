package usecase

import (
	"context"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/athenaeum-lab/mnemosyne/pkg/service/chunker"
	"github.com/athenaeum-lab/mnemosyne/pkg/service/lexical"
	"github.com/athenaeum-lab/mnemosyne/pkg/service/retriever"
	"github.com/athenaeum-lab/mnemosyne/pkg/service/session"
	"github.com/athenaeum-lab/mnemosyne/pkg/service/sqlbridge"
	"github.com/athenaeum-lab/mnemosyne/pkg/service/synthesizer"
)

// Gateway is the provider surface the use cases depend on
type Gateway interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Generate(ctx context.Context, systemPrompt, prompt string) (string, error)
}

type UseCases struct {
	repo        interfaces.Repository
	parser      interfaces.Parser
	gateway     Gateway
	splitter    *chunker.Splitter
	keywords    *lexical.Index
	retriever   *retriever.Retriever
	sessions    *session.Manager
	synthesizer *synthesizer.Synthesizer
	coordinator *sqlbridge.Coordinator

	embedBatchSize   int
	ingestionWorkers int
}

type Option func(*UseCases)

// WithCoordinator enables relational context gathering for queries
func WithCoordinator(coordinator *sqlbridge.Coordinator) Option {
	return func(uc *UseCases) {
		uc.coordinator = coordinator
	}
}

// WithEmbedBatchSize sets how many chunk texts go into one provider call
func WithEmbedBatchSize(n int) Option {
	return func(uc *UseCases) {
		if n > 0 {
			uc.embedBatchSize = n
		}
	}
}

// WithIngestionWorkers bounds document-level ingestion parallelism
func WithIngestionWorkers(n int) Option {
	return func(uc *UseCases) {
		if n > 0 {
			uc.ingestionWorkers = n
		}
	}
}

func New(
	repo interfaces.Repository,
	parser interfaces.Parser,
	gateway Gateway,
	splitter *chunker.Splitter,
	keywords *lexical.Index,
	retriever *retriever.Retriever,
	sessions *session.Manager,
	synthesizer *synthesizer.Synthesizer,
	opts ...Option,
) *UseCases {
	uc := &UseCases{
		repo:             repo,
		parser:           parser,
		gateway:          gateway,
		splitter:         splitter,
		keywords:         keywords,
		retriever:        retriever,
		sessions:         sessions,
		synthesizer:      synthesizer,
		embedBatchSize:   16,
		ingestionWorkers: 4,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}
