package config

import (
	"time"

	"github.com/urfave/cli/v3"

	"github.com/athenaeum-lab/mnemosyne/pkg/service/chunker"
	"github.com/athenaeum-lab/mnemosyne/pkg/service/retriever"
	"github.com/athenaeum-lab/mnemosyne/pkg/service/session"
	"github.com/athenaeum-lab/mnemosyne/pkg/service/synthesizer"
)

// Chunking holds CLI flags for the document splitter
type Chunking struct {
	maxSize int
	minSize int
	overlap int
}

// Flags returns CLI flags for chunking configuration
func (c *Chunking) Flags() []cli.Flag {
	defaults := chunker.DefaultConfig()
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "chunk-max-size",
			Usage:       "Maximum chunk size in runes",
			Value:       defaults.MaxSize,
			Category:    "Chunking",
			Sources:     cli.EnvVars("MNEMOSYNE_CHUNK_MAX_SIZE"),
			Destination: &c.maxSize,
		},
		&cli.IntFlag{
			Name:        "chunk-min-size",
			Usage:       "Minimum chunk size in runes",
			Value:       defaults.MinSize,
			Category:    "Chunking",
			Sources:     cli.EnvVars("MNEMOSYNE_CHUNK_MIN_SIZE"),
			Destination: &c.minSize,
		},
		&cli.IntFlag{
			Name:        "chunk-overlap",
			Usage:       "Overlap between consecutive chunks in runes",
			Value:       defaults.Overlap,
			Category:    "Chunking",
			Sources:     cli.EnvVars("MNEMOSYNE_CHUNK_OVERLAP"),
			Destination: &c.overlap,
		},
	}
}

// Config converts the flags into a chunker configuration
func (c *Chunking) Config() chunker.Config {
	return chunker.Config{
		MaxSize: c.maxSize,
		MinSize: c.minSize,
		Overlap: c.overlap,
	}
}

// Retrieval holds CLI flags for hybrid search ranking
type Retrieval struct {
	topK           int
	semanticWeight float64
	keywordWeight  float64
	minScore       float64
}

// Flags returns CLI flags for retrieval configuration
func (r *Retrieval) Flags() []cli.Flag {
	defaults := retriever.DefaultConfig()
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "retrieval-top-k",
			Usage:       "Number of chunks returned per query",
			Value:       defaults.TopK,
			Category:    "Retrieval",
			Sources:     cli.EnvVars("MNEMOSYNE_RETRIEVAL_TOP_K"),
			Destination: &r.topK,
		},
		&cli.FloatFlag{
			Name:        "retrieval-semantic-weight",
			Usage:       "Weight of the vector similarity score",
			Value:       defaults.SemanticWeight,
			Category:    "Retrieval",
			Sources:     cli.EnvVars("MNEMOSYNE_RETRIEVAL_SEMANTIC_WEIGHT"),
			Destination: &r.semanticWeight,
		},
		&cli.FloatFlag{
			Name:        "retrieval-keyword-weight",
			Usage:       "Weight of the keyword match score",
			Value:       defaults.KeywordWeight,
			Category:    "Retrieval",
			Sources:     cli.EnvVars("MNEMOSYNE_RETRIEVAL_KEYWORD_WEIGHT"),
			Destination: &r.keywordWeight,
		},
		&cli.FloatFlag{
			Name:        "retrieval-min-score",
			Usage:       "Minimum blended score for a chunk to be returned",
			Value:       defaults.MinScore,
			Category:    "Retrieval",
			Sources:     cli.EnvVars("MNEMOSYNE_RETRIEVAL_MIN_SCORE"),
			Destination: &r.minScore,
		},
	}
}

// Config converts the flags into a retriever configuration
func (r *Retrieval) Config() retriever.Config {
	cfg := retriever.DefaultConfig()
	cfg.TopK = r.topK
	cfg.SemanticWeight = r.semanticWeight
	cfg.KeywordWeight = r.keywordWeight
	cfg.MinScore = r.minScore
	return cfg
}

// Conversation holds CLI flags for session handling and answer
// synthesis.
type Conversation struct {
	maxContextTurns  int
	idleTTL          time.Duration
	maxContextTokens int
	systemPrompt     string
}

// Flags returns CLI flags for conversation configuration
func (c *Conversation) Flags() []cli.Flag {
	sessionDefaults := session.DefaultConfig()
	synthDefaults := synthesizer.DefaultConfig()
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "session-max-context-turns",
			Usage:       "Recent turns carried into each generation prompt",
			Value:       sessionDefaults.MaxContextTurns,
			Category:    "Conversation",
			Sources:     cli.EnvVars("MNEMOSYNE_SESSION_MAX_CONTEXT_TURNS"),
			Destination: &c.maxContextTurns,
		},
		&cli.DurationFlag{
			Name:        "session-idle-ttl",
			Usage:       "Idle time after which a session expires",
			Value:       sessionDefaults.IdleTTL,
			Category:    "Conversation",
			Sources:     cli.EnvVars("MNEMOSYNE_SESSION_IDLE_TTL"),
			Destination: &c.idleTTL,
		},
		&cli.IntFlag{
			Name:        "synthesizer-max-context-tokens",
			Usage:       "Token budget for the generation prompt",
			Value:       synthDefaults.MaxContextTokens,
			Category:    "Conversation",
			Sources:     cli.EnvVars("MNEMOSYNE_SYNTHESIZER_MAX_CONTEXT_TOKENS"),
			Destination: &c.maxContextTokens,
		},
		&cli.StringFlag{
			Name:        "synthesizer-system-prompt",
			Usage:       "Override for the generation system prompt",
			Category:    "Conversation",
			Sources:     cli.EnvVars("MNEMOSYNE_SYNTHESIZER_SYSTEM_PROMPT"),
			Destination: &c.systemPrompt,
		},
	}
}

// SessionConfig converts the flags into a session manager configuration
func (c *Conversation) SessionConfig() session.Config {
	cfg := session.DefaultConfig()
	cfg.MaxContextTurns = c.maxContextTurns
	cfg.IdleTTL = c.idleTTL
	return cfg
}

// SynthesizerConfig converts the flags into a synthesizer configuration
func (c *Conversation) SynthesizerConfig() synthesizer.Config {
	cfg := synthesizer.DefaultConfig()
	cfg.MaxContextTokens = c.maxContextTokens
	if c.systemPrompt != "" {
		cfg.SystemPrompt = c.systemPrompt
	}
	return cfg
}
