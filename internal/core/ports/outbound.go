package ports

import (
	"context"
	"io"

	"github.com/kirillkom/clinical-rag/internal/core/domain"
)

// Candidate is one document scored with both raw similarity measures.
// Normalization and alpha fusion happen above the index so that per-call
// alpha overrides never touch shared state.
type Candidate struct {
	Doc     domain.IndexedDocument
	Lexical float64
	Vector  float64
}

// DocumentIndex owns the in-memory document store and its derived term
// statistics and embeddings.
type DocumentIndex interface {
	Upsert(ctx context.Context, docs []domain.IndexedDocument) (domain.IndexStats, error)
	Candidates(ctx context.Context, query string) ([]Candidate, error)
	Reset()
	Count() int
}

// Embedder builds fixed-dimension vectors for documents and queries.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits normalized text into sections and overlapping chunks.
type Chunker interface {
	Chunk(text string, hints domain.StructureHints, targetTokens, overlapTokens int) ([]domain.Section, []domain.Chunk, error)
}

// ExtractorStrategy converts one source format into normalized text with
// structure hints. Strategies are tried in registration order; returning
// an error or an empty extraction hands over to the next strategy.
type ExtractorStrategy interface {
	Name() string
	Supports(filename, contentType string) bool
	Extract(content []byte) (domain.Extraction, error)
}

// Fetcher retrieves remote content for URL ingestion.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (content []byte, contentType string, err error)
}

// ObjectStorage stores uploaded source documents for the async pipeline.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingest job events.
type MessageQueue interface {
	PublishIngestJob(ctx context.Context, jobID string) error
	SubscribeIngestJobs(ctx context.Context, handler func(context.Context, string) error) error
}

// JobRepository persists ingest job state.
type JobRepository interface {
	Create(ctx context.Context, job *domain.IngestJob) error
	GetByID(ctx context.Context, id string) (*domain.IngestJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.JobStatus, errMessage string) error
	SaveResult(ctx context.Context, id string, sections, chunks int) error
}
