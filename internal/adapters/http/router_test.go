package httpadapter

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/clinical-rag/internal/core/domain"
	"github.com/kirillkom/clinical-rag/internal/core/ports"
	"github.com/kirillkom/clinical-rag/internal/core/usecase"
	"github.com/kirillkom/clinical-rag/internal/infrastructure/chunking"
	"github.com/kirillkom/clinical-rag/internal/infrastructure/embedding/hashed"
	"github.com/kirillkom/clinical-rag/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/clinical-rag/internal/infrastructure/index/memory"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	store := memory.NewStore(hashed.New(0))
	search := usecase.NewSearchUseCase(store, 0.5)
	ingest := usecase.NewIngestUseCase(
		[]ports.ExtractorStrategy{plaintext.New()},
		chunking.NewChunker(),
		nil,
		search,
		512, 64,
	)
	return NewRouter(search, ingest, Options{Service: "test"}).Handler()
}

func doJSON(t *testing.T, handler http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestIndexThenSearchReturnsRankedResults(t *testing.T) {
	handler := newTestHandler(t)

	res := doJSON(t, handler, http.MethodPost, "/rag/index", map[string]any{
		"documents": []map[string]any{
			{"doc_id": "a", "text": "early goal-directed therapy in sepsis"},
			{"doc_id": "b", "text": "unrelated text about nutrition"},
		},
	})
	if res.Code != http.StatusOK {
		t.Fatalf("index status = %d, body %s", res.Code, res.Body.String())
	}
	stats := decodeBody(t, res)
	if stats["status"] != "ok" {
		t.Fatalf("status = %v, want ok", stats["status"])
	}
	if stats["indexed_count"].(float64) != 2 {
		t.Fatalf("indexed_count = %v", stats["indexed_count"])
	}

	res = doJSON(t, handler, http.MethodPost, "/rag/search", map[string]any{
		"query": "sepsis early therapy",
		"top_k": 5,
	})
	if res.Code != http.StatusOK {
		t.Fatalf("search status = %d, body %s", res.Code, res.Body.String())
	}
	body := decodeBody(t, res)
	results := body["results"].([]any)
	if len(results) == 0 {
		t.Fatalf("expected results")
	}
	first := results[0].(map[string]any)
	if first["doc_id"] != "a" {
		t.Fatalf("top result = %v, want a", first["doc_id"])
	}
	scores := first["scores"].(map[string]any)
	for _, key := range []string{"lexical", "vector", "hybrid"} {
		if _, ok := scores[key]; !ok {
			t.Fatalf("missing score key %q", key)
		}
	}
	if body["used_alpha"].(float64) != 0.5 {
		t.Fatalf("used_alpha = %v", body["used_alpha"])
	}
}

func TestSearchBlankQueryRejectedBeforeEngine(t *testing.T) {
	handler := newTestHandler(t)

	for _, query := range []string{"", "   "} {
		res := doJSON(t, handler, http.MethodPost, "/rag/search", map[string]any{"query": query})
		if res.Code != http.StatusBadRequest {
			t.Fatalf("query %q: status = %d, want 400", query, res.Code)
		}
	}
}

func TestSearchValidatesTopKAndAlpha(t *testing.T) {
	handler := newTestHandler(t)

	cases := []map[string]any{
		{"query": "q", "top_k": 0},
		{"query": "q", "top_k": 101},
		{"query": "q", "alpha": -0.1},
		{"query": "q", "alpha": 1.1},
	}
	for _, payload := range cases {
		res := doJSON(t, handler, http.MethodPost, "/rag/search", payload)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("payload %v: status = %d, want 400", payload, res.Code)
		}
	}
}

func TestSearchAlphaOverridesDefaultPerCall(t *testing.T) {
	handler := newTestHandler(t)

	doJSON(t, handler, http.MethodPost, "/rag/index", map[string]any{
		"documents": []map[string]any{{"doc_id": "a", "text": "sepsis care bundle"}},
	})

	res := doJSON(t, handler, http.MethodPost, "/rag/search", map[string]any{
		"query": "sepsis",
		"alpha": 0.9,
	})
	if res.Code != http.StatusOK {
		t.Fatalf("status = %d", res.Code)
	}
	if got := decodeBody(t, res)["used_alpha"].(float64); got != 0.9 {
		t.Fatalf("used_alpha = %v, want 0.9", got)
	}

	// Next call without alpha falls back to the configured default.
	res = doJSON(t, handler, http.MethodPost, "/rag/search", map[string]any{"query": "sepsis"})
	if got := decodeBody(t, res)["used_alpha"].(float64); got != 0.5 {
		t.Fatalf("used_alpha after override = %v, want 0.5", got)
	}
}

func TestResetEmptiesIndex(t *testing.T) {
	handler := newTestHandler(t)

	doJSON(t, handler, http.MethodPost, "/rag/index", map[string]any{
		"documents": []map[string]any{{"doc_id": "a", "text": "some text"}},
	})

	res := doJSON(t, handler, http.MethodPost, "/rag/reset", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("reset status = %d", res.Code)
	}
	if got := decodeBody(t, res)["total_indexed"].(float64); got != 0 {
		t.Fatalf("total_indexed = %v, want 0", got)
	}

	res = doJSON(t, handler, http.MethodPost, "/rag/search", map[string]any{"query": "some text"})
	if res.Code != http.StatusOK {
		t.Fatalf("search after reset status = %d", res.Code)
	}
	if results := decodeBody(t, res)["results"]; results != nil {
		if arr, ok := results.([]any); ok && len(arr) != 0 {
			t.Fatalf("expected no results after reset, got %d", len(arr))
		}
	}
}

func TestIndexRejectsEmptyDocumentList(t *testing.T) {
	handler := newTestHandler(t)

	res := doJSON(t, handler, http.MethodPost, "/rag/index", map[string]any{"documents": []any{}})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.Code)
	}
}

func TestUploadWithoutPipelineReturns503(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/rag/upload", strings.NewReader(""))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", res.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/rag/search", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", res.Code)
	}
}

func TestRequestIDHeaderIsEchoed(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-42")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if got := res.Header().Get("X-Request-Id"); got != "req-42" {
		t.Fatalf("request id header = %q", got)
	}
}

func TestIndexDocTypeConflictReturnsConflict(t *testing.T) {
	handler := newTestHandler(t)

	doJSON(t, handler, http.MethodPost, "/rag/index", map[string]any{
		"documents": []map[string]any{
			{"doc_id": "x", "text": "section body", "metadata": map[string]any{domain.MetaDocType: domain.DocTypeSection}},
		},
	})

	res := doJSON(t, handler, http.MethodPost, "/rag/index", map[string]any{
		"documents": []map[string]any{
			{"doc_id": "x", "text": "chunk body", "metadata": map[string]any{domain.MetaDocType: domain.DocTypeChunk}},
		},
	})
	if res.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", res.Code)
	}
}
