package cli

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/athenaeum-lab/mnemosyne/pkg/cli/config"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/athenaeum-lab/mnemosyne/pkg/service/chunker"
	"github.com/athenaeum-lab/mnemosyne/pkg/service/lexical"
	"github.com/athenaeum-lab/mnemosyne/pkg/service/parser"
	"github.com/athenaeum-lab/mnemosyne/pkg/service/retriever"
	"github.com/athenaeum-lab/mnemosyne/pkg/service/session"
	"github.com/athenaeum-lab/mnemosyne/pkg/service/sqlbridge"
	"github.com/athenaeum-lab/mnemosyne/pkg/service/synthesizer"
	"github.com/athenaeum-lab/mnemosyne/pkg/usecase"
	"github.com/athenaeum-lab/mnemosyne/pkg/utils/logging"
)

// appFlags groups the configuration shared by every command that runs
// the full pipeline.
type appFlags struct {
	provider     config.Provider
	repository   config.Repository
	chunking     config.Chunking
	retrieval    config.Retrieval
	conversation config.Conversation
	sources      config.Sources
}

func (a *appFlags) flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, a.provider.Flags()...)
	flags = append(flags, a.repository.Flags()...)
	flags = append(flags, a.chunking.Flags()...)
	flags = append(flags, a.retrieval.Flags()...)
	flags = append(flags, a.conversation.Flags()...)
	flags = append(flags, a.sources.Flags()...)
	return flags
}

// runtime is a fully wired pipeline plus the handles that need closing
// on shutdown.
type runtime struct {
	uc          *usecase.UseCases
	repo        interfaces.Repository
	keywords    *lexical.Index
	coordinator *sqlbridge.Coordinator
}

func (a *appFlags) build(ctx context.Context) (*runtime, error) {
	gw, err := a.provider.Configure(ctx)
	if err != nil {
		return nil, err
	}
	repo, err := a.repository.Configure(ctx, a.provider.Dimension())
	if err != nil {
		return nil, err
	}

	keywords, err := lexical.New()
	if err != nil {
		return nil, err
	}

	splitter, err := chunker.New(a.chunking.Config())
	if err != nil {
		return nil, err
	}

	ret, err := retriever.New(gw, repo.Vector(), keywords, a.retrieval.Config())
	if err != nil {
		return nil, err
	}

	sessions, err := session.New(repo.Session(), a.conversation.SessionConfig())
	if err != nil {
		return nil, err
	}

	synth, err := synthesizer.New(gw, a.conversation.SynthesizerConfig())
	if err != nil {
		return nil, err
	}

	coordinator, err := a.sources.Configure(ctx, gw)
	if err != nil {
		return nil, err
	}

	var opts []usecase.Option
	if coordinator != nil {
		opts = append(opts, usecase.WithCoordinator(coordinator))
	}

	uc := usecase.New(repo, parser.New(), gw, splitter, keywords, ret, sessions, synth, opts...)

	// The keyword index lives in memory only; warm it from whatever the
	// backend already holds.
	if _, err := uc.RebuildKeywordIndex(ctx); err != nil {
		return nil, err
	}

	return &runtime{
		uc:          uc,
		repo:        repo,
		keywords:    keywords,
		coordinator: coordinator,
	}, nil
}

func (r *runtime) close(ctx context.Context) {
	if r.coordinator != nil {
		if err := r.coordinator.Close(); err != nil {
			logging.Default().Error("failed to close relational sources", "error", err.Error())
		}
	}
	if err := r.keywords.Close(); err != nil {
		logging.Default().Error("failed to close keyword index", "error", err.Error())
	}
	if err := r.repo.Close(ctx); err != nil {
		logging.Default().Error("failed to close repository", "error", err.Error())
	}
}
