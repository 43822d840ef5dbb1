package synthesizer_test

import (
	"context"
	"strings"
	"testing"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/model"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/athenaeum-lab/mnemosyne/pkg/service/synthesizer"
	"github.com/m-mizutani/gt"
)

type captureGenerator struct {
	system string
	prompt string
	answer string
}

func (g *captureGenerator) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	g.system = systemPrompt
	g.prompt = prompt
	if g.answer == "" {
		return "generated answer", nil
	}
	return g.answer, nil
}

func result(docID types.DocumentID, index int, content string, score float64) *model.SearchResult {
	chunk := model.NewChunk(docID, index, content)
	return &model.SearchResult{Chunk: chunk, Score: score, SemanticScore: score}
}

func TestSynthesizeIncludesEvidenceAndHistory(t *testing.T) {
	ctx := context.Background()
	gen := &captureGenerator{}
	s := gt.R1(synthesizer.New(gen, synthesizer.DefaultConfig())).NoError(t)

	doc := model.NewDocument("handbook.md", "text/markdown", "", "tester")
	in := synthesizer.Input{
		Query:     "what is the escalation path?",
		SessionID: types.NewSessionID(),
		Turns: []model.Turn{
			{Query: "who is on call?", Answer: "The SRE rotation is on call."},
		},
		Results: []*model.SearchResult{
			result(doc.ID, 0, "Escalations go to the on-call lead first.", 0.9),
		},
		Facts:     []string{"incidents table holds 42 rows"},
		FileNames: map[types.DocumentID]string{doc.ID: "handbook.md"},
	}

	resp := gt.R1(s.Synthesize(ctx, in)).NoError(t)

	gt.Value(t, resp.Answer).Equal("generated answer")
	gt.Value(t, resp.Query).Equal("what is the escalation path?")
	gt.Array(t, resp.Sources).Length(1)
	gt.Value(t, resp.Sources[0].FileName).Equal("handbook.md")
	gt.Value(t, resp.Sources[0].DocumentID).Equal(doc.ID)

	gt.String(t, gen.prompt).Contains("Escalations go to the on-call lead first.")
	gt.String(t, gen.prompt).Contains("who is on call?")
	gt.String(t, gen.prompt).Contains("incidents table holds 42 rows")
	gt.String(t, gen.prompt).Contains("what is the escalation path?")
	gt.True(t, gen.system != "")
}

func TestSynthesizeEmptyRetrievalIsChatOnly(t *testing.T) {
	ctx := context.Background()
	gen := &captureGenerator{answer: "just chatting"}
	s := gt.R1(synthesizer.New(gen, synthesizer.DefaultConfig())).NoError(t)

	in := synthesizer.Input{
		Query:     "hello there",
		SessionID: types.NewSessionID(),
	}

	resp := gt.R1(s.Synthesize(ctx, in)).NoError(t)
	gt.Value(t, resp.Answer).Equal("just chatting")
	gt.Array(t, resp.Sources).Length(0)
	gt.False(t, strings.Contains(gen.prompt, "Context excerpts"))
}

func TestSynthesizeDedupesSourcesByDocument(t *testing.T) {
	ctx := context.Background()
	gen := &captureGenerator{}
	s := gt.R1(synthesizer.New(gen, synthesizer.DefaultConfig())).NoError(t)

	docA := model.NewDocument("a.md", "text/markdown", "", "tester")
	docB := model.NewDocument("b.md", "text/markdown", "", "tester")
	in := synthesizer.Input{
		Query: "what happened?",
		Results: []*model.SearchResult{
			result(docA.ID, 0, "first excerpt from A", 0.9),
			result(docA.ID, 1, "second excerpt from A", 0.8),
			result(docB.ID, 0, "excerpt from B", 0.7),
		},
	}

	resp := gt.R1(s.Synthesize(ctx, in)).NoError(t)
	gt.Array(t, resp.Sources).Length(2)
	gt.Value(t, resp.Sources[0].Content).Equal("first excerpt from A")
	gt.Value(t, resp.Sources[1].Content).Equal("excerpt from B")
	gt.False(t, strings.Contains(gen.prompt, "second excerpt from A"))
}

func TestSynthesizeTrimsToTokenBudget(t *testing.T) {
	ctx := context.Background()
	gen := &captureGenerator{}

	cfg := synthesizer.DefaultConfig()
	cfg.SystemPrompt = "answer briefly"
	cfg.MaxContextTokens = 60
	s := gt.R1(synthesizer.New(gen, cfg)).NoError(t)

	docA := model.NewDocument("a.md", "text/markdown", "", "tester")
	docB := model.NewDocument("b.md", "text/markdown", "", "tester")
	long := strings.Repeat("lengthy evidence text ", 20)
	in := synthesizer.Input{
		Query: "summarize",
		Results: []*model.SearchResult{
			result(docA.ID, 0, "short but vital excerpt", 0.9),
			result(docB.ID, 0, long, 0.5),
		},
	}

	resp := gt.R1(s.Synthesize(ctx, in)).NoError(t)

	// The oversized low-relevance excerpt is dropped, the vital one kept
	gt.Array(t, resp.Sources).Length(1)
	gt.Value(t, resp.Sources[0].Content).Equal("short but vital excerpt")
	gt.False(t, strings.Contains(gen.prompt, long))
}

func TestSynthesizeRejectsEmptyQuery(t *testing.T) {
	ctx := context.Background()
	s := gt.R1(synthesizer.New(&captureGenerator{}, synthesizer.DefaultConfig())).NoError(t)

	_, err := s.Synthesize(ctx, synthesizer.Input{Query: "   "})
	gt.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	cfg := synthesizer.DefaultConfig()
	cfg.MaxContextTokens = 0
	gt.Error(t, cfg.Validate())
}
