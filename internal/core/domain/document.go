package domain

import "time"

const (
	DocTypeSection = "section"
	DocTypeChunk   = "chunk"

	RootSectionKey = "ROOT"

	RoleNarrative = "narrative"
	RoleTable     = "table"

	// SectionPathSeparator joins heading titles into a section key.
	SectionPathSeparator = " > "
)

// Metadata keys shared between the ingestion pipeline, the index and the
// HTTP layer. Metadata is an open map; these are the keys the core writes.
const (
	MetaDocType     = "doc_type"
	MetaSource      = "source"
	MetaLanguage    = "language"
	MetaSectionKey  = "section_key"
	MetaSectionPath = "section_path"
	MetaPage        = "page"
	MetaPageFrom    = "page_from"
	MetaPageTo      = "page_to"
	MetaChunkIndex  = "chunk_index"
	MetaRole        = "role"
)

// IndexedDocument is the unit of retrieval: either a section summary or a
// chunk. ID is globally unique; re-indexing the same ID replaces the
// previous content.
type IndexedDocument struct {
	ID       string         `json:"doc_id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Section is a node of the reconstructed document outline. Path holds the
// ancestor heading titles root-most first; it is empty only for the ROOT
// section of an unstructured document.
type Section struct {
	Key      string   `json:"section_key"`
	Path     []string `json:"section_path"`
	Text     string   `json:"text"`
	PageFrom int      `json:"page_from,omitempty"`
	PageTo   int      `json:"page_to,omitempty"`
}

// Chunk is a token-bounded slice of document text, the atomic retrieval
// unit. SectionKey is empty when sectionization produced nothing usable.
type Chunk struct {
	Text       string `json:"text"`
	Role       string `json:"role"`
	SectionKey string `json:"section_key,omitempty"`
	Page       int    `json:"page,omitempty"`
	Index      int    `json:"chunk_index"`
}

// ScoredResult is a single ranked search hit. Scores always carries the
// "lexical", "vector" and "hybrid" keys. Citation fields are derived from
// Metadata at response-assembly time, never stored in the index.
type ScoredResult struct {
	DocID    string             `json:"doc_id"`
	Text     string             `json:"text"`
	Metadata map[string]any     `json:"metadata,omitempty"`
	Scores   map[string]float64 `json:"scores"`
	Citation string             `json:"citation,omitempty"`
	Page     int                `json:"page,omitempty"`
	PageFrom int                `json:"page_from,omitempty"`
	PageTo   int                `json:"page_to,omitempty"`
}

// IndexStats reports the outcome of an index mutation.
type IndexStats struct {
	IndexedCount int `json:"indexed_count"`
	TotalIndexed int `json:"total_indexed"`
}

type JobStatus string

const (
	JobUploaded   JobStatus = "uploaded"
	JobProcessing JobStatus = "processing"
	JobReady      JobStatus = "ready"
	JobFailed     JobStatus = "failed"
)

// IngestJob tracks an asynchronous upload through the worker pipeline.
type IngestJob struct {
	ID            string    `json:"id"`
	Filename      string    `json:"filename"`
	MimeType      string    `json:"mime_type"`
	StoragePath   string    `json:"storage_path"`
	SourceURL     string    `json:"source_url,omitempty"`
	Language      string    `json:"language,omitempty"`
	TargetTokens  int       `json:"target_tokens"`
	OverlapTokens int       `json:"overlap_tokens"`
	SectionCount  int       `json:"sections_indexed"`
	ChunkCount    int       `json:"chunks_indexed"`
	Status        JobStatus `json:"status"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
