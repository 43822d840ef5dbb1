// Package chunker splits normalized document text into overlapping
// windows bounded by configured min/max sizes.
package chunker

import (
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// Config holds the chunking window parameters. Sizes and overlap are
// measured in runes, not bytes, so multi-byte text chunks cleanly.
type Config struct {
	MaxSize int
	MinSize int
	Overlap int
}

// DefaultConfig returns the chunking defaults
func DefaultConfig() Config {
	return Config{
		MaxSize: 1000,
		MinSize: 100,
		Overlap: 200,
	}
}

// Validate checks the window parameters
func (c Config) Validate() error {
	if c.MaxSize <= 0 {
		return goerr.Wrap(types.ErrInvalidConfiguration, "max chunk size must be positive", goerr.V("maxSize", c.MaxSize))
	}
	if c.MinSize < 1 {
		return goerr.Wrap(types.ErrInvalidConfiguration, "min chunk size must be at least 1", goerr.V("minSize", c.MinSize))
	}
	if c.MinSize > c.MaxSize {
		return goerr.Wrap(types.ErrInvalidConfiguration, "min chunk size exceeds max chunk size",
			goerr.V("minSize", c.MinSize), goerr.V("maxSize", c.MaxSize))
	}
	if c.Overlap < 0 {
		return goerr.Wrap(types.ErrInvalidConfiguration, "overlap must not be negative", goerr.V("overlap", c.Overlap))
	}
	if c.Overlap >= c.MaxSize {
		return goerr.Wrap(types.ErrInvalidConfiguration, "overlap must be smaller than max chunk size",
			goerr.V("overlap", c.Overlap), goerr.V("maxSize", c.MaxSize))
	}
	return nil
}

// effectiveOverlap caps the configured overlap at MaxSize-MinSize so a
// window always advances past the copied tail.
func (c Config) effectiveOverlap() int {
	limit := c.MaxSize - c.MinSize
	if c.Overlap > limit {
		return limit
	}
	return c.Overlap
}

// Splitter is a pure, restartable text chunker
type Splitter struct {
	cfg Config
}

// New creates a Splitter after validating the configuration
func New(cfg Config) (*Splitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Splitter{cfg: cfg}, nil
}

// Split returns the chunk texts for the input. Every chunk is at most
// MaxSize runes, every chunk but the last is at least MinSize runes, and
// the last Overlap runes of chunk i are copied verbatim into the head of
// chunk i+1. Splitting prefers sentence and paragraph boundaries when
// one falls inside the allowed window.
func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	overlap := s.cfg.effectiveOverlap()

	// Window floor: large overlaps need cut > pos+overlap or the next
	// window would not advance.
	floor := s.cfg.MinSize
	if overlap+1 > floor {
		floor = overlap + 1
	}

	var chunks []string
	pos := 0
	for pos < len(runes) {
		end := pos + s.cfg.MaxSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[pos:]))
			break
		}

		cut := boundaryCut(runes, pos+floor, end)
		chunks = append(chunks, string(runes[pos:cut]))
		pos = cut - overlap
	}

	return chunks
}

// boundaryCut finds the latest sentence or paragraph boundary in
// (low, high], falling back to high when the window contains none.
func boundaryCut(runes []rune, low, high int) int {
	for i := high; i > low; i-- {
		if isBoundary(runes[i-1]) {
			return i
		}
	}
	return high
}

func isBoundary(r rune) bool {
	switch r {
	case '.', '!', '?', '\n':
		return true
	default:
		return false
	}
}
