package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/model"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/athenaeum-lab/mnemosyne/pkg/usecase"
	"github.com/athenaeum-lab/mnemosyne/pkg/utils/errutil"
	"github.com/athenaeum-lab/mnemosyne/pkg/utils/logging"
	"github.com/athenaeum-lab/mnemosyne/pkg/utils/safe"
)

// UseCase is the application surface the HTTP layer exposes
type UseCase interface {
	UploadDocuments(ctx context.Context, uploads []usecase.Upload) ([]usecase.UploadResult, error)
	SearchDocuments(ctx context.Context, query string) ([]*model.SearchResult, error)
	QueryIntelligence(ctx context.Context, sessionID types.SessionID, rawQuery string) (*model.RagResponse, error)
	RegenerateAllEmbeddings(ctx context.Context) (int, error)
	ClearAllEmbeddings(ctx context.Context) error
	ClearAllDocuments(ctx context.Context) error
	DeleteDocument(ctx context.Context, id types.DocumentID) error
	GetStorageStatistics(ctx context.Context) (*model.StorageStatistics, error)
}

type Server struct {
	router        *chi.Mux
	uc            UseCase
	maxUploadSize int64
}

type Options func(*Server)

// WithMaxUploadSize bounds the accepted multipart request body in bytes
func WithMaxUploadSize(n int64) Options {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadSize = n
		}
	}
}

func New(uc UseCase, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:        r,
		uc:            uc,
		maxUploadSize: 32 << 20,
	}
	for _, opt := range opts {
		opt(s)
	}

	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler)

	r.Route("/api", func(r chi.Router) {
		r.Route("/documents", func(r chi.Router) {
			r.Post("/", s.uploadDocuments)
			r.Delete("/", s.deleteAllDocuments)
			r.Delete("/{documentID}", s.deleteDocument)
		})
		r.Get("/search", s.searchDocuments)
		r.Post("/query", s.queryIntelligence)
		r.Route("/embeddings", func(r chi.Router) {
			r.Post("/regenerate", s.regenerateEmbeddings)
			r.Delete("/", s.clearEmbeddings)
		})
		r.Get("/stats", s.storageStatistics)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// statusFromError maps application errors to HTTP status codes.
// Client-caused failures become 4xx; provider and storage outages map
// to gateway statuses so operators can tell them apart from bugs.
func statusFromError(err error) int {
	switch {
	case goerr.HasTag(err, types.TagBadRequest):
		return http.StatusBadRequest
	case goerr.HasTag(err, types.TagNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrAllProvidersExhausted):
		return http.StatusBadGateway
	case errors.Is(err, types.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func handleError(ctx context.Context, w http.ResponseWriter, err error) {
	errutil.HandleHTTP(ctx, w, err, statusFromError(err))
}

func respondJSON(ctx context.Context, w http.ResponseWriter, statusCode int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	safe.Write(ctx, w, data)
}
