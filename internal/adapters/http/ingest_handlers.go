package httpadapter

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/kirillkom/clinical-rag/internal/core/domain"
)

// maxUploadSize bounds synchronous and asynchronous file ingestion alike.
const maxUploadSize = 64 << 20

// ingestResponse is the wire shape of every synchronous ingest endpoint.
type ingestResponse struct {
	Status string `json:"status"`
	domain.IngestSummary
}

func (rt *Router) indexFile(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	file, header, opts, ok := rt.parseIngestForm(w, r)
	if !ok {
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read uploaded file: "+err.Error())
		return
	}

	summary, err := rt.ingest.IndexBytes(r.Context(), content, header.Filename, opts)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordIndexed(rt.service, "section", summary.SectionsIndexed)
		rt.metrics.RecordIndexed(rt.service, "chunk", summary.ChunksIndexed)
	}
	writeJSON(w, http.StatusOK, ingestResponse{Status: "ok", IngestSummary: summary})
}

type indexURLRequest struct {
	URL           string `json:"url"`
	DocID         string `json:"doc_id"`
	BaseID        string `json:"base_id"`
	Language      string `json:"language"`
	TargetTokens  int    `json:"target_tokens"`
	OverlapTokens int    `json:"overlap_tokens"`
}

func (rt *Router) indexURL(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	req, ok := decodeIndexURLRequest(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	summary, err := rt.ingest.IndexURL(r.Context(), req.URL, domain.IngestOptions{
		BaseID:        firstNonEmpty(req.DocID, req.BaseID),
		SourceURL:     req.URL,
		Language:      req.Language,
		TargetTokens:  req.TargetTokens,
		OverlapTokens: req.OverlapTokens,
	})
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordIndexed(rt.service, "section", summary.SectionsIndexed)
		rt.metrics.RecordIndexed(rt.service, "chunk", summary.ChunksIndexed)
	}
	writeJSON(w, http.StatusOK, ingestResponse{Status: "ok", IngestSummary: summary})
}

// decodeIndexURLRequest accepts form fields as the primary encoding and a
// JSON body as an alternative for programmatic callers.
func decodeIndexURLRequest(w http.ResponseWriter, r *http.Request) (indexURLRequest, bool) {
	var req indexURLRequest

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return req, false
		}
		return req, true
	}

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return req, false
	}
	req.URL = r.FormValue("url")
	req.DocID = r.FormValue("doc_id")
	req.BaseID = r.FormValue("base_id")
	req.Language = r.FormValue("language")

	var err error
	if req.TargetTokens, err = formInt(r, "target_tokens"); err == nil {
		req.OverlapTokens, err = formInt(r, "overlap_tokens")
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	return req, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (rt *Router) uploadFile(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if rt.upload == nil {
		writeError(w, http.StatusServiceUnavailable, "asynchronous upload pipeline is not configured")
		return
	}

	file, header, opts, ok := rt.parseIngestForm(w, r)
	if !ok {
		return
	}
	defer file.Close()

	job, err := rt.upload.Upload(
		r.Context(),
		header.Filename,
		header.Header.Get("Content-Type"),
		io.LimitReader(file, maxUploadSize),
		opts,
	)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (rt *Router) getJob(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if rt.jobs == nil {
		writeError(w, http.StatusServiceUnavailable, "asynchronous upload pipeline is not configured")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/rag/jobs/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "job id is required")
		return
	}

	job, err := rt.jobs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (rt *Router) parseIngestForm(w http.ResponseWriter, r *http.Request) (file multipart.File, header *multipart.FileHeader, opts domain.IngestOptions, ok bool) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return nil, nil, opts, false
	}

	f, fh, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return nil, nil, opts, false
	}

	opts = domain.IngestOptions{
		BaseID:    firstNonEmpty(r.FormValue("doc_id"), r.FormValue("base_id")),
		SourceURL: r.FormValue("source_url"),
		Language:  r.FormValue("language"),
	}
	opts.TargetTokens, err = formInt(r, "target_tokens")
	if err == nil {
		opts.OverlapTokens, err = formInt(r, "overlap_tokens")
	}
	if err != nil {
		_ = f.Close()
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, nil, opts, false
	}

	return f, fh, opts, true
}

func formInt(r *http.Request, field string) (int, error) {
	raw := strings.TrimSpace(r.FormValue(field))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "parse form",
			errInvalidField(field))
	}
	return value, nil
}

type errInvalidField string

func (e errInvalidField) Error() string {
	return string(e) + " must be a non-negative integer"
}
