package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	ctrl "github.com/athenaeum-lab/mnemosyne/pkg/controller/http"
	"github.com/athenaeum-lab/mnemosyne/pkg/repository/memory"
	"github.com/athenaeum-lab/mnemosyne/pkg/service/chunker"
	"github.com/athenaeum-lab/mnemosyne/pkg/service/lexical"
	"github.com/athenaeum-lab/mnemosyne/pkg/service/parser"
	"github.com/athenaeum-lab/mnemosyne/pkg/service/retriever"
	"github.com/athenaeum-lab/mnemosyne/pkg/service/session"
	"github.com/athenaeum-lab/mnemosyne/pkg/service/synthesizer"
	"github.com/athenaeum-lab/mnemosyne/pkg/usecase"
)

type fixedGateway struct {
	answer string
}

func (g *fixedGateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vector := []float32{0.01, 0.01}
		if strings.Contains(strings.ToLower(text), "payment") {
			vector[0] = 1
		} else {
			vector[1] = 1
		}
		out[i] = vector
	}
	return out, nil
}

func (g *fixedGateway) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	return g.answer, nil
}

func newTestServer(t *testing.T) *ctrl.Server {
	t.Helper()

	repo := memory.New()
	keywords := gt.R1(lexical.New()).NoError(t)
	t.Cleanup(func() { _ = keywords.Close() })

	gw := &fixedGateway{answer: "Refunds return to the original payment method."}
	splitter := gt.R1(chunker.New(chunker.DefaultConfig())).NoError(t)
	ret := gt.R1(retriever.New(gw, repo.Vector(), keywords, retriever.DefaultConfig())).NoError(t)
	sessions := gt.R1(session.New(repo.Session(), session.DefaultConfig())).NoError(t)
	synth := gt.R1(synthesizer.New(gw, synthesizer.DefaultConfig())).NoError(t)

	uc := usecase.New(repo, parser.New(), gw, splitter, keywords, ret, sessions, synth)
	return ctrl.New(uc)
}

func multipartUpload(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range files {
		part := gt.R1(writer.CreateFormFile("file", name)).NoError(t)
		gt.R1(part.Write([]byte(content))).NoError(t)
	}
	gt.NoError(t, writer.WriteField("uploaded_by", "tester"))
	gt.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func uploadFixture(t *testing.T, server *ctrl.Server) string {
	t.Helper()

	body, contentType := multipartUpload(t, map[string]string{
		"payments.txt": "Refunds are issued to the original payment method.",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	gt.Value(t, rec.Code).Equal(http.StatusOK)

	var resp struct {
		Results []struct {
			DocumentID string `json:"document_id"`
			ChunkCount int    `json:"chunk_count"`
			Error      string `json:"error"`
		} `json:"results"`
	}
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	gt.Array(t, resp.Results).Length(1)
	gt.Value(t, resp.Results[0].Error).Equal("")
	gt.Value(t, resp.Results[0].ChunkCount).Equal(1)
	gt.True(t, resp.Results[0].DocumentID != "")
	return resp.Results[0].DocumentID
}

func TestHealth(t *testing.T) {
	server := newTestServer(t)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	gt.Value(t, rec.Code).Equal(http.StatusOK)
	gt.String(t, rec.Body.String()).Contains(`"status":"ok"`)
}

func TestUploadAndSearch(t *testing.T) {
	server := newTestServer(t)
	docID := uploadFixture(t, server)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=payment+refund", nil))
	gt.Value(t, rec.Code).Equal(http.StatusOK)

	var resp struct {
		Results []struct {
			DocumentID string  `json:"document_id"`
			Content    string  `json:"content"`
			Score      float64 `json:"score"`
		} `json:"results"`
	}
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	gt.Array(t, resp.Results).Longer(0)
	gt.Value(t, resp.Results[0].DocumentID).Equal(docID)
}

func TestUploadWithoutFiles(t *testing.T) {
	server := newTestServer(t)

	body, contentType := multipartUpload(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
}

func TestUploadAsync(t *testing.T) {
	server := newTestServer(t)

	body, contentType := multipartUpload(t, map[string]string{
		"payments.txt": "Refunds are issued to the original payment method.",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/documents?async=true", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	gt.Value(t, rec.Code).Equal(http.StatusAccepted)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec = httptest.NewRecorder()
		server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
		var stats struct {
			DocumentCount int `json:"document_count"`
		}
		gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
		if stats.DocumentCount == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("async upload never completed")
}

func TestSearchEmptyQuery(t *testing.T) {
	server := newTestServer(t)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search", nil))

	gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
}

func TestQueryConversation(t *testing.T) {
	server := newTestServer(t)
	uploadFixture(t, server)

	post := func(body string) (*httptest.ResponseRecorder, map[string]any) {
		req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)

		var resp map[string]any
		if rec.Code == http.StatusOK {
			gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		}
		return rec, resp
	}

	rec, first := post(`{"query": "how do payment refunds work?"}`)
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	gt.Value(t, first["answer"].(string)).Equal("Refunds return to the original payment method.")
	sessionID := first["session_id"].(string)
	gt.True(t, sessionID != "")
	gt.Array(t, first["sources"].([]any)).Longer(0)

	// The returned session ID continues the same conversation
	rec, second := post(`{"session_id": "` + sessionID + `", "query": "anything else?"}`)
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	gt.Value(t, second["session_id"].(string)).Equal(sessionID)

	rec, _ = post(`{"query": ""}`)
	gt.Value(t, rec.Code).Equal(http.StatusBadRequest)

	rec, _ = post(`not json`)
	gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
}

func TestDeleteDocument(t *testing.T) {
	server := newTestServer(t)
	docID := uploadFixture(t, server)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/documents/"+docID, nil))
	gt.Value(t, rec.Code).Equal(http.StatusNoContent)

	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	gt.Value(t, rec.Code).Equal(http.StatusOK)

	var stats struct {
		DocumentCount int `json:"document_count"`
		VectorCount   int `json:"vector_count"`
	}
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	gt.Value(t, stats.DocumentCount).Equal(0)
	gt.Value(t, stats.VectorCount).Equal(0)
}

func TestEmbeddingMaintenance(t *testing.T) {
	server := newTestServer(t)
	uploadFixture(t, server)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/embeddings/regenerate", nil))
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	gt.String(t, rec.Body.String()).Contains(`"regenerated_chunks":1`)

	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/embeddings", nil))
	gt.Value(t, rec.Code).Equal(http.StatusNoContent)

	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	var stats struct {
		DocumentCount int `json:"document_count"`
		VectorCount   int `json:"vector_count"`
	}
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	gt.Value(t, stats.DocumentCount).Equal(1)
	gt.Value(t, stats.VectorCount).Equal(0)
}
