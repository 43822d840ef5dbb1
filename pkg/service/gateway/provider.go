package gateway

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
)

// gollemProvider adapts a gollem LLM client to the ProviderClient
// contract, tagging returned errors as transient or permanent so the
// gateway's retry loop can inspect them.
type gollemProvider struct {
	id        types.ProviderID
	client    gollem.LLMClient
	dimension int
}

// NewGollemProvider wraps a gollem client as a gateway provider
func NewGollemProvider(id types.ProviderID, client gollem.LLMClient, dimension int) (*gollemProvider, error) {
	if client == nil {
		return nil, goerr.Wrap(types.ErrInvalidConfiguration, "LLM client is required", goerr.V("provider", id))
	}
	if dimension <= 0 {
		return nil, goerr.Wrap(types.ErrInvalidConfiguration, "embedding dimension must be positive",
			goerr.V("provider", id), goerr.V("dimension", dimension))
	}
	return &gollemProvider{
		id:        id,
		client:    client,
		dimension: dimension,
	}, nil
}

func (p *gollemProvider) ID() types.ProviderID {
	return p.id
}

func (p *gollemProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings, err := p.client.GenerateEmbedding(ctx, p.dimension, texts)
	if err != nil {
		return nil, classify(err, "failed to generate embeddings")
	}
	if len(embeddings) != len(texts) {
		return nil, goerr.New("embedding count mismatch",
			goerr.V("want", len(texts)), goerr.V("got", len(embeddings)))
	}

	vectors := make([][]float32, len(embeddings))
	for i, emb := range embeddings {
		vec := make([]float32, len(emb))
		for j, v := range emb {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (p *gollemProvider) Complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	opts := []gollem.SessionOption{}
	if systemPrompt != "" {
		opts = append(opts, gollem.WithSessionSystemPrompt(systemPrompt))
	}

	session, err := p.client.NewSession(ctx, opts...)
	if err != nil {
		return "", classify(err, "failed to create LLM session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(prompt))
	if err != nil {
		return "", classify(err, "failed to generate content")
	}
	if resp == nil || len(resp.Texts) == 0 {
		return "", goerr.New("empty completion response", goerr.T(types.TagTransient))
	}

	return resp.Texts[0], nil
}

// transientMarkers are substrings of vendor error messages that signal
// a retryable condition. Matching on message text is unavoidable here:
// gollem flattens the vendor SDK errors before they reach us.
var transientMarkers = []string{
	"rate limit",
	"rate_limit",
	"too many requests",
	"429",
	"overloaded",
	"capacity",
	"unavailable",
	"503",
	"502",
	"500",
	"timeout",
	"deadline exceeded",
	"connection reset",
	"internal server error",
}

var permanentMarkers = []string{
	"api key",
	"unauthorized",
	"401",
	"403",
	"permission",
	"invalid request",
	"400",
	"not found",
	"404",
}

// classify wraps a provider error with a transient or permanent tag
func classify(err error, msg string) error {
	if err == nil {
		return nil
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return goerr.Wrap(err, msg, goerr.T(types.TagTransient))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return goerr.Wrap(err, msg, goerr.T(types.TagTransient))
	}

	text := strings.ToLower(err.Error())
	for _, marker := range permanentMarkers {
		if strings.Contains(text, marker) {
			return goerr.Wrap(err, msg, goerr.T(types.TagPermanent))
		}
	}
	for _, marker := range transientMarkers {
		if strings.Contains(text, marker) {
			return goerr.Wrap(err, msg, goerr.T(types.TagTransient))
		}
	}

	// Unknown failures are treated as permanent so a misbehaving
	// provider does not burn the whole retry budget.
	return goerr.Wrap(err, msg, goerr.T(types.TagPermanent))
}
