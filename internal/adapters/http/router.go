// Package httpadapter exposes the retrieval engine and the ingestion
// pipeline over HTTP.
package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/clinical-rag/internal/core/domain"
	"github.com/kirillkom/clinical-rag/internal/core/ports"
	"github.com/kirillkom/clinical-rag/internal/observability/metrics"
)

const (
	defaultTopK = 10
	maxTopK     = 100
)

type Router struct {
	search  ports.SearchService
	ingest  ports.IngestService
	upload  ports.UploadService
	jobs    ports.JobReader
	metrics *metrics.HTTPServerMetrics
	service string
	traffic TrafficConfig
}

// Options carries the optional collaborators. Upload and Jobs may be nil
// when the async pipeline is not deployed; the related endpoints then
// answer 503.
type Options struct {
	Upload  ports.UploadService
	Jobs    ports.JobReader
	Metrics *metrics.HTTPServerMetrics
	Service string
	Traffic TrafficConfig
}

func NewRouter(search ports.SearchService, ingest ports.IngestService, opts Options) *Router {
	service := opts.Service
	if service == "" {
		service = "clinical-rag-api"
	}
	return &Router{
		search:  search,
		ingest:  ingest,
		upload:  opts.Upload,
		jobs:    opts.Jobs,
		metrics: opts.Metrics,
		service: service,
		traffic: opts.Traffic.normalize(),
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/rag/index", rt.indexDocuments)
	mux.HandleFunc("/rag/search", rt.searchDocuments)
	mux.HandleFunc("/rag/reset", rt.resetIndex)
	mux.HandleFunc("/rag/index-file", rt.indexFile)
	mux.HandleFunc("/rag/index-url", rt.indexURL)
	mux.HandleFunc("/rag/upload", rt.uploadFile)
	mux.HandleFunc("/rag/jobs/", rt.getJob)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = rateLimitMiddleware(handler, rt.traffic)
	handler = backpressureMiddleware(handler, rt.traffic.MaxInFlight, rt.traffic.BackpressureWait)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) indexDocuments(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Documents []domain.IndexedDocument `json:"documents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, "documents must not be empty")
		return
	}

	stats, err := rt.search.IndexDocuments(r.Context(), req.Documents)
	if err != nil {
		// Partial success still reports what was indexed.
		if stats.IndexedCount > 0 {
			writeJSON(w, mapErrorToHTTPStatus(err), map[string]any{
				"error":         err.Error(),
				"indexed_count": stats.IndexedCount,
				"total_indexed": stats.TotalIndexed,
			})
			return
		}
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordIndexed(rt.service, "document", stats.IndexedCount)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"indexed_count": stats.IndexedCount,
		"total_indexed": stats.TotalIndexed,
	})
}

func (rt *Router) searchDocuments(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Query string   `json:"query"`
		TopK  *int     `json:"top_k"`
		Alpha *float64 `json:"alpha"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	// Validation happens before the engine is touched.
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query must not be blank")
		return
	}
	topK := defaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	if topK < 1 || topK > maxTopK {
		writeError(w, http.StatusBadRequest, "top_k must be between 1 and 100")
		return
	}
	if req.Alpha != nil && (*req.Alpha < 0 || *req.Alpha > 1) {
		writeError(w, http.StatusBadRequest, "alpha must be between 0 and 1")
		return
	}

	start := time.Now()
	results, usedAlpha, err := rt.search.Search(r.Context(), req.Query, topK, req.Alpha)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordSearch(rt.service, len(results), time.Since(start))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results":       results,
		"used_alpha":    usedAlpha,
		"total_indexed": rt.search.TotalIndexed(),
	})
}

func (rt *Router) resetIndex(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	if err := rt.search.Reset(r.Context()); err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordReset(rt.service)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"total_indexed": rt.search.TotalIndexed(),
	})
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
