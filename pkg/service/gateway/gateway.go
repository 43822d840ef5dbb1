// Package gateway wraps the configured AI providers behind a uniform
// embed/generate contract with retry, ordered fallback, and an optional
// per-provider circuit breaker.
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/athenaeum-lab/mnemosyne/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Config holds retry and fallback behavior for every provider call
type Config struct {
	RetryPolicy    types.RetryPolicy
	MaxAttempts    int           // attempts per provider, including the first
	RetryDelay     time.Duration // base delay between attempts
	MaxDelay       time.Duration // backoff cap
	EnableFallback bool
	Breaker        BreakerConfig
}

// DefaultConfig returns the gateway defaults
func DefaultConfig() Config {
	return Config{
		RetryPolicy: types.RetryExponentialBackoff,
		MaxAttempts: 3,
		RetryDelay:  500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Breaker:     DefaultBreakerConfig(),
	}
}

// Validate checks the gateway configuration
func (c Config) Validate() error {
	if !c.RetryPolicy.IsValid() {
		return goerr.Wrap(types.ErrInvalidConfiguration, "unknown retry policy", goerr.V("policy", c.RetryPolicy))
	}
	if c.MaxAttempts < 1 {
		return goerr.Wrap(types.ErrInvalidConfiguration, "max attempts must be at least 1", goerr.V("maxAttempts", c.MaxAttempts))
	}
	if c.RetryDelay < 0 || c.MaxDelay < 0 {
		return goerr.Wrap(types.ErrInvalidConfiguration, "retry delays must not be negative")
	}
	return nil
}

// Gateway routes embed/generate calls across an ordered provider list.
// The first provider is the primary; the rest are fallbacks tried in
// order only when fallback is enabled and the previous provider's retry
// budget is spent.
type Gateway struct {
	providers []interfaces.ProviderClient
	breakers  map[types.ProviderID]*breaker
	cfg       Config
}

// New creates a Gateway. At least one provider is required and the
// fallback list must not repeat the primary.
func New(cfg Config, providers ...interfaces.ProviderClient) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(providers) == 0 {
		return nil, goerr.Wrap(types.ErrInvalidConfiguration, "at least one provider is required")
	}

	seen := make(map[types.ProviderID]bool, len(providers))
	breakers := make(map[types.ProviderID]*breaker, len(providers))
	for _, p := range providers {
		if seen[p.ID()] {
			return nil, goerr.Wrap(types.ErrInvalidConfiguration, "duplicate provider in fallback chain", goerr.V("provider", p.ID()))
		}
		seen[p.ID()] = true
		breakers[p.ID()] = newBreaker(cfg.Breaker)
	}

	return &Gateway{
		providers: providers,
		breakers:  breakers,
		cfg:       cfg,
	}, nil
}

// Embed converts texts into embedding vectors, one per input in input order
func (g *Gateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, goerr.New("no texts to embed", goerr.T(types.TagBadRequest))
	}

	var vectors [][]float32
	err := g.call(ctx, "embed", func(ctx context.Context, p interfaces.ProviderClient) error {
		vs, err := p.Embed(ctx, texts)
		if err != nil {
			return err
		}
		if len(vs) != len(texts) {
			return goerr.New("provider returned wrong embedding count",
				goerr.V("want", len(texts)), goerr.V("got", len(vs)))
		}
		vectors = vs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

// Generate produces text for the prompt under the same retry and
// fallback semantics as Embed.
func (g *Gateway) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	if prompt == "" {
		return "", goerr.New("empty prompt", goerr.T(types.TagBadRequest))
	}

	var out string
	err := g.call(ctx, "generate", func(ctx context.Context, p interfaces.ProviderClient) error {
		text, err := p.Complete(ctx, systemPrompt, prompt)
		if err != nil {
			return err
		}
		out = text
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

// call runs op against the provider chain: full retry budget on the
// primary, then each fallback in order. Failures of every provider are
// collected into the final ErrAllProvidersExhausted.
func (g *Gateway) call(ctx context.Context, opName string, op func(context.Context, interfaces.ProviderClient) error) error {
	logger := logging.From(ctx)

	chain := g.providers
	if !g.cfg.EnableFallback {
		chain = chain[:1]
	}

	var failures []*goerr.Error
	for _, p := range chain {
		br := g.breakers[p.ID()]
		if !br.allow() {
			logger.Debug("skipping provider with open circuit", "provider", p.ID(), "op", opName)
			failures = append(failures, goerr.New("circuit open", goerr.V("provider", p.ID())))
			continue
		}

		err := g.callProvider(ctx, p, br, op)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			// Cancellation is the caller's doing, not provider exhaustion
			return goerr.Wrap(ctx.Err(), "provider call canceled", goerr.V("provider", p.ID()))
		}

		logger.Warn("provider failed, trying next in chain",
			"provider", p.ID(), "op", opName, "error", err.Error())
		failures = append(failures, goerr.Wrap(err, "provider failed", goerr.V("provider", p.ID())))
	}

	values := make([]goerr.Option, 0, len(failures)+1)
	values = append(values, goerr.V("op", opName))
	for i, f := range failures {
		values = append(values, goerr.V(fmt.Sprintf("failure_%d", i), f.Error()))
	}
	return goerr.Wrap(types.ErrAllProvidersExhausted, "no provider could serve the call", values...)
}

// callProvider spends the retry budget on a single provider. Only
// transient failures are retried; a permanent failure stops immediately
// and is handed back for the chain to decide on fallback.
func (g *Gateway) callProvider(ctx context.Context, p interfaces.ProviderClient, br *breaker, op func(context.Context, interfaces.ProviderClient) error) error {
	maxAttempts := g.cfg.MaxAttempts
	if g.cfg.RetryPolicy == types.RetryNone {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := retryDelay(g.cfg.RetryPolicy, attempt, g.cfg.RetryDelay, g.cfg.MaxDelay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := op(ctx, p)
		if err == nil {
			br.recordSuccess()
			return nil
		}
		br.recordFailure()
		lastErr = err

		if !types.IsTransient(err) {
			return err
		}
	}
	return lastErr
}
