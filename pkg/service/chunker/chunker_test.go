package chunker_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/athenaeum-lab/mnemosyne/pkg/service/chunker"
	"github.com/m-mizutani/gt"
)

func reconstruct(chunks []string, cfg chunker.Config) string {
	overlap := cfg.Overlap
	if limit := cfg.MaxSize - cfg.MinSize; overlap > limit {
		overlap = limit
	}

	var sb strings.Builder
	for i, c := range chunks {
		runes := []rune(c)
		if i == 0 {
			sb.WriteString(c)
			continue
		}
		sb.WriteString(string(runes[overlap:]))
	}
	return sb.String()
}

func TestSplitterValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  chunker.Config
	}{
		{"min exceeds max", chunker.Config{MaxSize: 10, MinSize: 20, Overlap: 0}},
		{"overlap equals max", chunker.Config{MaxSize: 10, MinSize: 5, Overlap: 10}},
		{"overlap exceeds max", chunker.Config{MaxSize: 10, MinSize: 5, Overlap: 15}},
		{"zero max", chunker.Config{MaxSize: 0, MinSize: 0, Overlap: 0}},
		{"negative overlap", chunker.Config{MaxSize: 10, MinSize: 5, Overlap: -1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := chunker.New(tc.cfg)
			gt.Error(t, err)
			gt.True(t, errors.Is(err, types.ErrInvalidConfiguration))
		})
	}
}

func TestSplitSentences(t *testing.T) {
	s := gt.R1(chunker.New(chunker.Config{MaxSize: 20, MinSize: 5, Overlap: 5})).NoError(t)

	text := "The cat sat. The dog ran. The bird flew."
	chunks := s.Split(text)

	gt.Number(t, len(chunks)).GreaterOrEqual(3)
	for _, c := range chunks {
		gt.Number(t, len([]rune(c))).LessOrEqual(20)
	}

	gt.String(t, chunks[0]).Contains("The cat sat.")
	gt.Value(t, reconstruct(chunks, chunker.Config{MaxSize: 20, MinSize: 5, Overlap: 5})).Equal(text)
}

func TestSplitProperties(t *testing.T) {
	texts := []string{
		"Hello world. This is a longer piece of text with several sentences. Some are short. Some are a fair bit longer than the others, so windows land mid-sentence too.",
		strings.Repeat("word ", 200),
		"no punctuation at all just one very long run of tokens " + strings.Repeat("x", 300),
		"multi\nline\ntext\n\nwith paragraph breaks\n\nand more content after them to split across windows",
		"短い文です。これは日本語のテキストで、マルチバイト文字の境界を確認します。文はまだ続きます。",
	}
	configs := []chunker.Config{
		{MaxSize: 50, MinSize: 10, Overlap: 5},
		{MaxSize: 30, MinSize: 5, Overlap: 20},
		{MaxSize: 100, MinSize: 100, Overlap: 0},
		{MaxSize: 40, MinSize: 10, Overlap: 39}, // capped at MaxSize-MinSize
	}

	for _, cfg := range configs {
		s := gt.R1(chunker.New(cfg)).NoError(t)
		for _, text := range texts {
			chunks := s.Split(text)
			gt.Array(t, chunks).Longer(0)

			for i, c := range chunks {
				n := len([]rune(c))
				gt.Number(t, n).LessOrEqual(cfg.MaxSize)
				if i < len(chunks)-1 {
					gt.Number(t, n).GreaterOrEqual(cfg.MinSize)
				}
			}

			gt.Value(t, reconstruct(chunks, cfg)).Equal(text)
		}
	}
}

func TestSplitOverlapIsVerbatim(t *testing.T) {
	cfg := chunker.Config{MaxSize: 25, MinSize: 10, Overlap: 8}
	s := gt.R1(chunker.New(cfg)).NoError(t)

	chunks := s.Split("One sentence here. Another sentence there. And a third one to round it out nicely.")
	gt.Number(t, len(chunks)).GreaterOrEqual(2)

	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		cur := []rune(chunks[i])
		tail := string(prev[len(prev)-cfg.Overlap:])
		head := string(cur[:cfg.Overlap])
		gt.Value(t, head).Equal(tail)
	}
}

func TestSplitEdgeCases(t *testing.T) {
	s := gt.R1(chunker.New(chunker.Config{MaxSize: 100, MinSize: 20, Overlap: 10})).NoError(t)

	t.Run("empty text yields no chunks", func(t *testing.T) {
		gt.Array(t, s.Split("")).Length(0)
	})

	t.Run("short text is a single chunk even below min size", func(t *testing.T) {
		chunks := s.Split("tiny")
		gt.Array(t, chunks).Length(1)
		gt.Value(t, chunks[0]).Equal("tiny")
	})

	t.Run("text exactly max size is a single chunk", func(t *testing.T) {
		text := strings.Repeat("a", 100)
		chunks := s.Split(text)
		gt.Array(t, chunks).Length(1)
		gt.Value(t, chunks[0]).Equal(text)
	})
}
