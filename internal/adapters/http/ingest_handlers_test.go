package httpadapter

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/kirillkom/clinical-rag/internal/core/ports"
	"github.com/kirillkom/clinical-rag/internal/core/usecase"
	"github.com/kirillkom/clinical-rag/internal/infrastructure/chunking"
	"github.com/kirillkom/clinical-rag/internal/infrastructure/embedding/hashed"
	"github.com/kirillkom/clinical-rag/internal/infrastructure/extractor/htmltext"
	"github.com/kirillkom/clinical-rag/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/clinical-rag/internal/infrastructure/fetch"
	"github.com/kirillkom/clinical-rag/internal/infrastructure/index/memory"
)

func newIngestHandler(t *testing.T, fetcher ports.Fetcher) http.Handler {
	t.Helper()
	store := memory.NewStore(hashed.New(0))
	search := usecase.NewSearchUseCase(store, 0.5)
	ingest := usecase.NewIngestUseCase(
		[]ports.ExtractorStrategy{htmltext.New(), plaintext.New()},
		chunking.NewChunker(),
		fetcher,
		search,
		512, 64,
	)
	return NewRouter(search, ingest, Options{Service: "test"}).Handler()
}

func multipartRequest(t *testing.T, path, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field %s: %v", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestIndexFileIngestsAndReportsCounts(t *testing.T) {
	handler := newIngestHandler(t, nil)

	req := multipartRequest(t, "/rag/index-file", "notes.txt",
		"Fluid resuscitation guidance for septic shock patients.",
		map[string]string{"base_id": "sepsis-notes"})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", res.Code, res.Body.String())
	}
	var summary map[string]any
	if err := json.NewDecoder(res.Body).Decode(&summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary["status"] != "ok" {
		t.Fatalf("status = %v, want ok", summary["status"])
	}
	if summary["base_id"] != "sepsis-notes" {
		t.Fatalf("base_id = %v", summary["base_id"])
	}
	if summary["chunks_indexed"].(float64) < 1 {
		t.Fatalf("chunks_indexed = %v", summary["chunks_indexed"])
	}
}

func TestIndexFileHonorsDocIDAndSourceURL(t *testing.T) {
	handler := newIngestHandler(t, nil)

	req := multipartRequest(t, "/rag/index-file", "guide.txt",
		"Empiric antibiotic selection for community acquired pneumonia.",
		map[string]string{
			"doc_id":     "cap-guide",
			"source_url": "https://example.org/cap-guide.pdf",
		})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", res.Code, res.Body.String())
	}
	var summary map[string]any
	if err := json.NewDecoder(res.Body).Decode(&summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary["base_id"] != "cap-guide" {
		t.Fatalf("base_id = %v, want cap-guide", summary["base_id"])
	}

	// The supplied source_url becomes the provenance of every derived doc.
	search := doJSON(t, handler, http.MethodPost, "/rag/search", map[string]any{
		"query": "empiric antibiotic pneumonia",
	})
	if search.Code != http.StatusOK {
		t.Fatalf("search status = %d", search.Code)
	}
	results := decodeBody(t, search)["results"].([]any)
	if len(results) == 0 {
		t.Fatalf("expected search results")
	}
	meta := results[0].(map[string]any)["metadata"].(map[string]any)
	if meta["source"] != "https://example.org/cap-guide.pdf" {
		t.Fatalf("source = %v", meta["source"])
	}
}

func TestIndexFileNothingParseableReturns400(t *testing.T) {
	handler := newIngestHandler(t, nil)

	req := multipartRequest(t, "/rag/index-file", "empty.txt", "   ", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.Code)
	}
}

func TestIndexFileMissingFileFieldReturns400(t *testing.T) {
	handler := newIngestHandler(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/rag/index-file", strings.NewReader("plain body"))
	req.Header.Set("Content-Type", "text/plain")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.Code)
	}
}

func TestIndexFileRejectsBadTokenBounds(t *testing.T) {
	handler := newIngestHandler(t, nil)

	req := multipartRequest(t, "/rag/index-file", "notes.txt", "body",
		map[string]string{"target_tokens": "ten"})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.Code)
	}
}

func TestIndexURLFetchesAndIndexes(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body><h1>Dosing</h1><p>Vancomycin trough targets.</p></body></html>"))
	}))
	defer upstream.Close()

	handler := newIngestHandler(t, fetch.New())

	res := doJSON(t, handler, http.MethodPost, "/rag/index-url", map[string]any{
		"url":     upstream.URL,
		"base_id": "vanc-page",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", res.Code, res.Body.String())
	}
	summary := decodeBody(t, res)
	if summary["status"] != "ok" {
		t.Fatalf("status = %v, want ok", summary["status"])
	}
	if summary["sections_indexed"].(float64) < 1 {
		t.Fatalf("sections_indexed = %v", summary["sections_indexed"])
	}
}

func TestIndexURLAcceptsFormEncoding(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body><h1>Sepsis</h1><p>Lactate clearance targets.</p></body></html>"))
	}))
	defer upstream.Close()

	handler := newIngestHandler(t, fetch.New())

	form := url.Values{}
	form.Set("url", upstream.URL)
	form.Set("doc_id", "sepsis-page")
	req := httptest.NewRequest(http.MethodPost, "/rag/index-url", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", res.Code, res.Body.String())
	}
	summary := decodeBody(t, res)
	if summary["status"] != "ok" {
		t.Fatalf("status = %v, want ok", summary["status"])
	}
	if summary["base_id"] != "sepsis-page" {
		t.Fatalf("base_id = %v, want sepsis-page", summary["base_id"])
	}
}

func TestIndexURLFormRejectsBadTokenBounds(t *testing.T) {
	handler := newIngestHandler(t, fetch.New())

	form := url.Values{}
	form.Set("url", "http://example.com/doc")
	form.Set("overlap_tokens", "-5")
	req := httptest.NewRequest(http.MethodPost, "/rag/index-url", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.Code)
	}
}

func TestIndexURLUnreachableHostReturns502(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	handler := newIngestHandler(t, fetch.New())

	res := doJSON(t, handler, http.MethodPost, "/rag/index-url", map[string]any{"url": deadURL})
	if res.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", res.Code)
	}
}

func TestIndexURLRequiresURL(t *testing.T) {
	handler := newIngestHandler(t, fetch.New())

	res := doJSON(t, handler, http.MethodPost, "/rag/index-url", map[string]any{"url": " "})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.Code)
	}
}
