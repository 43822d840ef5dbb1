package http

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/athenaeum-lab/mnemosyne/pkg/usecase"
	"github.com/athenaeum-lab/mnemosyne/pkg/utils/async"
	"github.com/athenaeum-lab/mnemosyne/pkg/utils/safe"
)

type uploadResultResponse struct {
	FileName   string `json:"file_name"`
	DocumentID string `json:"document_id,omitempty"`
	ChunkCount int    `json:"chunk_count"`
	Error      string `json:"error,omitempty"`
}

type uploadResponse struct {
	Results []uploadResultResponse `json:"results"`
}

// uploadDocuments ingests documents submitted as multipart form files.
// Per-file failures are reported inside the response body; the request
// itself fails only when the batch cannot start at all.
func (s *Server) uploadDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	if err := r.ParseMultipartForm(s.maxUploadSize); err != nil {
		handleError(ctx, w, goerr.Wrap(err, "failed to parse multipart form", goerr.T(types.TagBadRequest)))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			safe.Close(ctx, multipartCloser{r.MultipartForm})
		}
	}()

	uploadedBy := r.FormValue("uploaded_by")

	var uploads []usecase.Upload
	for _, header := range r.MultipartForm.File["file"] {
		raw, err := readPart(header)
		if err != nil {
			handleError(ctx, w, err)
			return
		}
		uploads = append(uploads, usecase.Upload{
			FileName:    header.Filename,
			ContentType: partContentType(header),
			Raw:         raw,
			UploadedBy:  uploadedBy,
		})
	}

	// Async mode detaches ingestion from the request so large batches
	// survive client timeouts. Failures land in the log only.
	if r.URL.Query().Get("async") == "true" {
		if len(uploads) == 0 {
			handleError(ctx, w, goerr.New("no documents to upload", goerr.T(types.TagBadRequest)))
			return
		}
		async.Dispatch(ctx, func(ctx context.Context) error {
			_, err := s.uc.UploadDocuments(ctx, uploads)
			return err
		})
		w.WriteHeader(http.StatusAccepted)
		return
	}

	results, err := s.uc.UploadDocuments(ctx, uploads)
	if err != nil {
		handleError(ctx, w, err)
		return
	}

	resp := uploadResponse{Results: make([]uploadResultResponse, len(results))}
	for i, result := range results {
		out := uploadResultResponse{
			FileName:   result.FileName,
			DocumentID: result.DocumentID.String(),
			ChunkCount: result.ChunkCount,
		}
		if result.Err != nil {
			out.Error = result.Err.Error()
			out.DocumentID = ""
		}
		resp.Results[i] = out
	}
	respondJSON(ctx, w, http.StatusOK, resp)
}

func readPart(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open uploaded file", goerr.V("fileName", header.Filename))
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read uploaded file", goerr.V("fileName", header.Filename))
	}
	return raw, nil
}

// partContentType resolves the content type of an uploaded part.
// Multipart clients commonly send application/octet-stream for
// everything, so the filename extension wins in that case.
func partContentType(header *multipart.FileHeader) string {
	contentType := header.Header.Get("Content-Type")
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".md", ".markdown":
		return "text/markdown"
	case ".json":
		return "application/json"
	default:
		if byExt := mime.TypeByExtension(filepath.Ext(header.Filename)); byExt != "" {
			return byExt
		}
		return contentType
	}
}

type multipartCloser struct {
	form *multipart.Form
}

func (c multipartCloser) Close() error {
	return c.form.RemoveAll()
}

type searchResultResponse struct {
	DocumentID    string  `json:"document_id"`
	ChunkID       string  `json:"chunk_id"`
	Index         int     `json:"index"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	SemanticScore float64 `json:"semantic_score"`
	KeywordScore  float64 `json:"keyword_score"`
}

func (s *Server) searchDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	results, err := s.uc.SearchDocuments(ctx, r.URL.Query().Get("q"))
	if err != nil {
		handleError(ctx, w, err)
		return
	}

	resp := make([]searchResultResponse, len(results))
	for i, result := range results {
		resp[i] = searchResultResponse{
			DocumentID:    result.Chunk.DocumentID.String(),
			ChunkID:       result.Chunk.ID.String(),
			Index:         result.Chunk.Index,
			Content:       result.Chunk.Content,
			Score:         result.Score,
			SemanticScore: result.SemanticScore,
			KeywordScore:  result.KeywordScore,
		}
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"results": resp})
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	docID := types.DocumentID(chi.URLParam(r, "documentID"))
	if docID == "" {
		handleError(ctx, w, goerr.New("document ID is required", goerr.T(types.TagBadRequest)))
		return
	}

	if err := s.uc.DeleteDocument(ctx, docID); err != nil {
		handleError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteAllDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.uc.ClearAllDocuments(ctx); err != nil {
		handleError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
