package http

import (
	"net/http"
	"time"
)

func (s *Server) regenerateEmbeddings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	count, err := s.uc.RegenerateAllEmbeddings(ctx)
	if err != nil {
		handleError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]int{"regenerated_chunks": count})
}

func (s *Server) clearEmbeddings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.uc.ClearAllEmbeddings(ctx); err != nil {
		handleError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type statsResponse struct {
	Backend       string    `json:"backend"`
	DocumentCount int       `json:"document_count"`
	ChunkCount    int       `json:"chunk_count"`
	VectorCount   int       `json:"vector_count"`
	Dimension     int       `json:"dimension"`
	CollectedAt   time.Time `json:"collected_at"`
}

func (s *Server) storageStatistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := s.uc.GetStorageStatistics(ctx)
	if err != nil {
		handleError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, statsResponse{
		Backend:       stats.Backend,
		DocumentCount: stats.DocumentCount,
		ChunkCount:    stats.ChunkCount,
		VectorCount:   stats.VectorCount,
		Dimension:     stats.Dimension,
		CollectedAt:   stats.CollectedAt,
	})
}
