// Package synthesizer turns retrieved evidence and conversation history
// into a generation prompt and produces the final answer.
package synthesizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/model"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"github.com/pkoukk/tiktoken-go"
)

// Generator produces completion text from a system prompt and user prompt
type Generator interface {
	Generate(ctx context.Context, systemPrompt, prompt string) (string, error)
}

const defaultSystemPrompt = `You are a knowledge assistant. Answer the user's question using the provided context excerpts when they are relevant. If the context does not contain the answer, say so plainly instead of guessing. Keep answers concise and cite facts from the excerpts rather than inventing them.`

type Config struct {
	SystemPrompt string
	// MaxContextTokens bounds the assembled prompt. Excerpts are dropped
	// lowest-relevance first, then oldest turns, until the prompt fits.
	MaxContextTokens int
}

func DefaultConfig() Config {
	return Config{
		SystemPrompt:     defaultSystemPrompt,
		MaxContextTokens: 6000,
	}
}

func (c *Config) Validate() error {
	if c.MaxContextTokens <= 0 {
		return goerr.Wrap(types.ErrInvalidConfiguration, "maxContextTokens must be positive",
			goerr.V("maxContextTokens", c.MaxContextTokens))
	}
	return nil
}

// Input carries everything a single synthesis needs. Results must be in
// descending relevance order. FileNames resolves document IDs for the
// source references; unknown documents fall back to the raw ID.
type Input struct {
	Query     string
	SessionID types.SessionID
	Turns     []model.Turn
	Results   []*model.SearchResult
	// Facts are pre-formatted context lines from relational sources,
	// included verbatim ahead of the document excerpts.
	Facts     []string
	FileNames map[types.DocumentID]string
}

type Synthesizer struct {
	generator Generator
	cfg       Config
	encoder   *tiktoken.Tiktoken
}

func New(generator Generator, cfg Config) (*Synthesizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}

	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load token encoder")
	}

	return &Synthesizer{
		generator: generator,
		cfg:       cfg,
		encoder:   encoder,
	}, nil
}

func (s *Synthesizer) countTokens(text string) int {
	return len(s.encoder.Encode(text, nil, nil))
}

// Synthesize builds the prompt and generates the answer. Empty retrieval
// is not an error: the model answers from conversation context alone.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) (*model.RagResponse, error) {
	if strings.TrimSpace(in.Query) == "" {
		return nil, goerr.New("query must not be empty", goerr.T(types.TagBadRequest))
	}

	prompt, included := s.buildPrompt(in)

	answer, err := s.generator.Generate(ctx, s.cfg.SystemPrompt, prompt)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate answer")
	}

	sources := make([]model.SearchSource, 0, len(included))
	for _, result := range included {
		fileName := in.FileNames[result.Chunk.DocumentID]
		if fileName == "" {
			fileName = result.Chunk.DocumentID.String()
		}
		sources = append(sources, model.SearchSource{
			DocumentID: result.Chunk.DocumentID,
			FileName:   fileName,
			Content:    result.Chunk.Content,
			Score:      result.Score,
		})
	}

	return model.NewRagResponse(in.SessionID, in.Query, answer, sources), nil
}

// buildPrompt assembles history, facts, and excerpts under the token
// budget and reports which results were actually included.
func (s *Synthesizer) buildPrompt(in Input) (string, []*model.SearchResult) {
	query := strings.TrimSpace(in.Query)
	budget := s.cfg.MaxContextTokens - s.countTokens(s.cfg.SystemPrompt) - s.countTokens(query)

	excerpts := dedupeByDocument(in.Results)

	var history []string
	for _, turn := range in.Turns {
		history = append(history, fmt.Sprintf("User: %s\nAssistant: %s", turn.Query, turn.Answer))
	}

	// Excerpts are trimmed lowest-relevance first, then the oldest turns
	included := excerpts
	for {
		cost := 0
		for _, line := range history {
			cost += s.countTokens(line)
		}
		for _, fact := range in.Facts {
			cost += s.countTokens(fact)
		}
		for _, result := range included {
			cost += s.countTokens(result.Chunk.Content)
		}
		if cost <= budget {
			break
		}
		if len(included) > 0 {
			included = included[:len(included)-1]
			continue
		}
		if len(history) > 0 {
			history = history[1:]
			continue
		}
		break
	}

	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, line := range history {
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if len(in.Facts) > 0 {
		b.WriteString("Known facts from connected databases:\n")
		for _, fact := range in.Facts {
			b.WriteString("- ")
			b.WriteString(fact)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if len(included) > 0 {
		b.WriteString("Context excerpts, most relevant first:\n")
		for i, result := range included {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, result.Chunk.Content)
		}
		b.WriteString("\n")
	}
	b.WriteString("Question: ")
	b.WriteString(query)

	return b.String(), included
}

// dedupeByDocument keeps only the highest-ranked excerpt per document,
// preserving relevance order.
func dedupeByDocument(results []*model.SearchResult) []*model.SearchResult {
	seen := make(map[types.DocumentID]bool, len(results))
	out := make([]*model.SearchResult, 0, len(results))
	for _, result := range results {
		if seen[result.Chunk.DocumentID] {
			continue
		}
		seen[result.Chunk.DocumentID] = true
		out = append(out, result)
	}
	return out
}
