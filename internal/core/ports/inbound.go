package ports

import (
	"context"
	"io"

	"github.com/kirillkom/clinical-rag/internal/core/domain"
)

// SearchService is the inbound contract for the hybrid retrieval engine.
// A nil alpha means "use the configured default"; the returned float is
// the alpha actually applied.
type SearchService interface {
	IndexDocuments(ctx context.Context, docs []domain.IndexedDocument) (domain.IndexStats, error)
	Search(ctx context.Context, query string, topK int, alpha *float64) ([]domain.ScoredResult, float64, error)
	Reset(ctx context.Context) error
	TotalIndexed() int
}

// IngestService normalizes raw bytes or URLs into sections and chunks,
// and optionally indexes them under derived document IDs.
type IngestService interface {
	IngestBytes(ctx context.Context, content []byte, filename string, opts domain.IngestOptions) ([]domain.Section, []domain.Chunk, error)
	IngestURL(ctx context.Context, rawURL string, opts domain.IngestOptions) ([]domain.Section, []domain.Chunk, error)
	IndexBytes(ctx context.Context, content []byte, filename string, opts domain.IngestOptions) (domain.IngestSummary, error)
	IndexURL(ctx context.Context, rawURL string, opts domain.IngestOptions) (domain.IngestSummary, error)
}

// UploadService is the inbound contract for asynchronous ingestion.
type UploadService interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader, opts domain.IngestOptions) (*domain.IngestJob, error)
}

// JobReader exposes ingest job state to the API.
type JobReader interface {
	GetByID(ctx context.Context, id string) (*domain.IngestJob, error)
}

// JobProcessor is the worker-side contract for processing uploaded jobs.
type JobProcessor interface {
	ProcessByID(ctx context.Context, jobID string) error
}
