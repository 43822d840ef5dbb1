package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
)

type queryRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

type sourceResponse struct {
	DocumentID string  `json:"document_id"`
	FileName   string  `json:"file_name"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

type queryResponse struct {
	SessionID   string           `json:"session_id"`
	Query       string           `json:"query"`
	Answer      string           `json:"answer"`
	Sources     []sourceResponse `json:"sources"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// queryIntelligence answers a conversational query. The session ID in
// the request is optional; the response carries the session to continue
// with.
func (s *Server) queryIntelligence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleError(ctx, w, goerr.Wrap(err, "failed to decode query request", goerr.T(types.TagBadRequest)))
		return
	}

	resp, err := s.uc.QueryIntelligence(ctx, types.SessionID(req.SessionID), req.Query)
	if err != nil {
		handleError(ctx, w, err)
		return
	}

	out := queryResponse{
		SessionID:   resp.SessionID.String(),
		Query:       resp.Query,
		Answer:      resp.Answer,
		Sources:     make([]sourceResponse, len(resp.Sources)),
		GeneratedAt: resp.GeneratedAt,
	}
	for i, source := range resp.Sources {
		out.Sources[i] = sourceResponse{
			DocumentID: source.DocumentID.String(),
			FileName:   source.FileName,
			Content:    source.Content,
			Score:      source.Score,
		}
	}
	respondJSON(ctx, w, http.StatusOK, out)
}
