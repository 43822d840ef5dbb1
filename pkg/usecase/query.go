package usecase

import (
	"context"
	"strings"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/model"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/athenaeum-lab/mnemosyne/pkg/service/session"
	"github.com/athenaeum-lab/mnemosyne/pkg/service/sqlbridge"
	"github.com/athenaeum-lab/mnemosyne/pkg/service/synthesizer"
	"github.com/athenaeum-lab/mnemosyne/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// SearchDocuments runs hybrid retrieval without generation
func (uc *UseCases) SearchDocuments(ctx context.Context, query string) ([]*model.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, goerr.New("query must not be empty", goerr.T(types.TagBadRequest))
	}
	return uc.retriever.Retrieve(ctx, strings.TrimSpace(query))
}

// QueryIntelligence answers a query with retrieval-augmented
// generation inside a conversation session. Session commands (/new,
// /reset, /clear) are applied before the pipeline runs. An empty
// retrieval falls back to chat-only generation.
func (uc *UseCases) QueryIntelligence(ctx context.Context, sessionID types.SessionID, rawQuery string) (*model.RagResponse, error) {
	in := session.Parse(rawQuery)
	if in.Query == "" && in.Command == session.CommandNone {
		return nil, goerr.New("query must not be empty", goerr.T(types.TagBadRequest))
	}

	sess, err := uc.sessions.Resolve(ctx, sessionID, in)
	if err != nil {
		return nil, err
	}

	// Bare command with no follow-up query: acknowledge without generation
	if in.Query == "" {
		return model.NewRagResponse(sess.ID, rawQuery, "Started a new conversation.", nil), nil
	}

	logger := logging.From(ctx)

	results, err := uc.retriever.Retrieve(ctx, in.Query)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		logger.Info("empty retrieval, answering from conversation only", "session_id", sess.ID)
	}

	var facts []string
	if uc.coordinator.Enabled() {
		tableRows, err := uc.coordinator.Gather(ctx, in.Query)
		if err != nil {
			return nil, err
		}
		facts = sqlbridge.FormatFacts(tableRows)
	}

	fileNames, err := uc.fileNames(ctx, results)
	if err != nil {
		return nil, err
	}

	resp, err := uc.synthesizer.Synthesize(ctx, synthesizer.Input{
		Query:     in.Query,
		SessionID: sess.ID,
		Turns:     uc.sessions.Context(sess),
		Results:   results,
		Facts:     facts,
		FileNames: fileNames,
	})
	if err != nil {
		return nil, err
	}

	// A cancelled query must not leave a partial turn behind
	if ctx.Err() != nil {
		return nil, goerr.Wrap(ctx.Err(), "query cancelled before session write")
	}
	if err := uc.sessions.Record(ctx, sess.ID, in.Query, resp.Answer); err != nil {
		return nil, err
	}

	return resp, nil
}

// fileNames resolves document metadata for source attribution. Missing
// documents are tolerated; the synthesizer falls back to the raw ID.
func (uc *UseCases) fileNames(ctx context.Context, results []*model.SearchResult) (map[types.DocumentID]string, error) {
	names := make(map[types.DocumentID]string, len(results))
	for _, result := range results {
		docID := result.Chunk.DocumentID
		if _, ok := names[docID]; ok {
			continue
		}
		doc, err := uc.repo.Document().Get(ctx, docID)
		if err != nil {
			if goerr.HasTag(err, types.TagNotFound) {
				continue
			}
			return nil, goerr.Wrap(err, "failed to resolve document", goerr.V("documentID", docID))
		}
		names[docID] = doc.FileName
	}
	return names, nil
}
