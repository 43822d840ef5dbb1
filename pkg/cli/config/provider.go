package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/claude"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/m-mizutani/gollem/llm/openai"
	"github.com/urfave/cli/v3"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/athenaeum-lab/mnemosyne/pkg/service/gateway"
)

// Provider holds CLI flags for the AI provider chain: the primary
// provider, the ordered fallback list, and the retry budget shared by
// every call.
type Provider struct {
	primary   string
	fallbacks []string
	dimension int

	openaiAPIKey   string
	claudeAPIKey   string
	geminiProject  string
	geminiLocation string

	retryPolicy    string
	maxAttempts    int
	retryDelay     time.Duration
	maxDelay       time.Duration
	enableFallback bool

	breakerEnabled   bool
	breakerThreshold int
	breakerCooldown  time.Duration
}

// Flags returns CLI flags for provider configuration
func (p *Provider) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "provider",
			Usage:       "Primary AI provider (openai, claude, gemini)",
			Value:       "openai",
			Category:    "Provider",
			Sources:     cli.EnvVars("MNEMOSYNE_PROVIDER"),
			Destination: &p.primary,
		},
		&cli.StringSliceFlag{
			Name:        "provider-fallback",
			Usage:       "Ordered fallback providers tried after the primary is exhausted",
			Category:    "Provider",
			Sources:     cli.EnvVars("MNEMOSYNE_PROVIDER_FALLBACK"),
			Destination: &p.fallbacks,
		},
		&cli.IntFlag{
			Name:        "embedding-dimension",
			Usage:       "Embedding vector dimension (must match across all providers)",
			Value:       1536,
			Category:    "Provider",
			Sources:     cli.EnvVars("MNEMOSYNE_EMBEDDING_DIMENSION"),
			Destination: &p.dimension,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "OpenAI API key",
			Category:    "Provider",
			Sources:     cli.EnvVars("MNEMOSYNE_OPENAI_API_KEY", "OPENAI_API_KEY"),
			Destination: &p.openaiAPIKey,
		},
		&cli.StringFlag{
			Name:        "claude-api-key",
			Usage:       "Anthropic API key",
			Category:    "Provider",
			Sources:     cli.EnvVars("MNEMOSYNE_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"),
			Destination: &p.claudeAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Category:    "Provider",
			Sources:     cli.EnvVars("MNEMOSYNE_GEMINI_PROJECT"),
			Destination: &p.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Category:    "Provider",
			Sources:     cli.EnvVars("MNEMOSYNE_GEMINI_LOCATION"),
			Destination: &p.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "retry-policy",
			Usage:       "Retry policy per provider (none, fixed, linear, exponential)",
			Value:       "exponential",
			Category:    "Provider",
			Sources:     cli.EnvVars("MNEMOSYNE_RETRY_POLICY"),
			Destination: &p.retryPolicy,
		},
		&cli.IntFlag{
			Name:        "retry-max-attempts",
			Usage:       "Attempts per provider, including the first",
			Value:       3,
			Category:    "Provider",
			Sources:     cli.EnvVars("MNEMOSYNE_RETRY_MAX_ATTEMPTS"),
			Destination: &p.maxAttempts,
		},
		&cli.DurationFlag{
			Name:        "retry-delay",
			Usage:       "Base delay between retry attempts",
			Value:       500 * time.Millisecond,
			Category:    "Provider",
			Sources:     cli.EnvVars("MNEMOSYNE_RETRY_DELAY"),
			Destination: &p.retryDelay,
		},
		&cli.DurationFlag{
			Name:        "retry-max-delay",
			Usage:       "Backoff delay cap",
			Value:       30 * time.Second,
			Category:    "Provider",
			Sources:     cli.EnvVars("MNEMOSYNE_RETRY_MAX_DELAY"),
			Destination: &p.maxDelay,
		},
		&cli.BoolFlag{
			Name:        "provider-fallback-enabled",
			Usage:       "Fall back to the next provider when the retry budget is spent",
			Value:       true,
			Category:    "Provider",
			Sources:     cli.EnvVars("MNEMOSYNE_PROVIDER_FALLBACK_ENABLED"),
			Destination: &p.enableFallback,
		},
		&cli.BoolFlag{
			Name:        "breaker-enabled",
			Usage:       "Enable the per-provider circuit breaker",
			Category:    "Provider",
			Sources:     cli.EnvVars("MNEMOSYNE_BREAKER_ENABLED"),
			Destination: &p.breakerEnabled,
		},
		&cli.IntFlag{
			Name:        "breaker-threshold",
			Usage:       "Consecutive failures before the circuit opens",
			Value:       5,
			Category:    "Provider",
			Sources:     cli.EnvVars("MNEMOSYNE_BREAKER_THRESHOLD"),
			Destination: &p.breakerThreshold,
		},
		&cli.DurationFlag{
			Name:        "breaker-cooldown",
			Usage:       "How long an open circuit rejects calls",
			Value:       30 * time.Second,
			Category:    "Provider",
			Sources:     cli.EnvVars("MNEMOSYNE_BREAKER_COOLDOWN"),
			Destination: &p.breakerCooldown,
		},
	}
}

// Dimension returns the configured embedding dimension
func (p *Provider) Dimension() int {
	return p.dimension
}

// LogAttrs returns log attributes for the provider configuration.
// API keys are deliberately absent.
func (p *Provider) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("primary", p.primary),
		slog.Any("fallbacks", p.fallbacks),
		slog.Int("dimension", p.dimension),
		slog.String("retry_policy", p.retryPolicy),
		slog.Bool("fallback_enabled", p.enableFallback),
		slog.Bool("breaker_enabled", p.breakerEnabled),
	}
}

// Configure builds the provider gateway from the flags. The primary
// provider comes first in the chain, followed by the fallbacks in the
// order given.
func (p *Provider) Configure(ctx context.Context) (*gateway.Gateway, error) {
	policy, err := types.ParseRetryPolicy(p.retryPolicy)
	if err != nil {
		return nil, goerr.Wrap(types.ErrInvalidConfiguration, "unknown retry policy", goerr.V("policy", p.retryPolicy))
	}

	chain := append([]string{p.primary}, p.fallbacks...)
	providers := make([]interfaces.ProviderClient, 0, len(chain))
	for _, name := range chain {
		id, err := types.ParseProviderID(name)
		if err != nil {
			return nil, goerr.Wrap(types.ErrInvalidConfiguration, "unknown provider", goerr.V("provider", name))
		}

		client, err := p.newClient(ctx, id)
		if err != nil {
			return nil, err
		}

		provider, err := gateway.NewGollemProvider(id, client, p.dimension)
		if err != nil {
			return nil, err
		}
		providers = append(providers, provider)
	}

	cfg := gateway.Config{
		RetryPolicy:    policy,
		MaxAttempts:    p.maxAttempts,
		RetryDelay:     p.retryDelay,
		MaxDelay:       p.maxDelay,
		EnableFallback: p.enableFallback,
		Breaker: gateway.BreakerConfig{
			Enabled:   p.breakerEnabled,
			Threshold: p.breakerThreshold,
			Cooldown:  p.breakerCooldown,
		},
	}

	return gateway.New(cfg, providers...)
}

func (p *Provider) newClient(ctx context.Context, id types.ProviderID) (gollem.LLMClient, error) {
	switch id {
	case types.ProviderOpenAI:
		if p.openaiAPIKey == "" {
			return nil, goerr.Wrap(types.ErrInvalidConfiguration, "openai-api-key is required for the openai provider")
		}
		client, err := openai.New(ctx, p.openaiAPIKey)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create OpenAI client")
		}
		return client, nil

	case types.ProviderClaude:
		if p.claudeAPIKey == "" {
			return nil, goerr.Wrap(types.ErrInvalidConfiguration, "claude-api-key is required for the claude provider")
		}
		client, err := claude.New(ctx, p.claudeAPIKey)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create Claude client")
		}
		return client, nil

	case types.ProviderGemini:
		if p.geminiProject == "" {
			return nil, goerr.Wrap(types.ErrInvalidConfiguration, "gemini-project is required for the gemini provider")
		}
		client, err := gemini.New(ctx, p.geminiProject, p.geminiLocation)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create Gemini client")
		}
		return client, nil

	default:
		return nil, goerr.Wrap(types.ErrInvalidConfiguration, "unknown provider", goerr.V("provider", id))
	}
}
