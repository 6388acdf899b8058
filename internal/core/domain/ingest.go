package domain

// Extraction is the uniform output of every extraction strategy: plain
// text plus whatever structure the format exposed.
type Extraction struct {
	Text  string
	Hints StructureHints
}

// IsEmpty reports whether the strategy produced nothing indexable.
func (e Extraction) IsEmpty() bool {
	return e.Text == ""
}

// IngestOptions parameterizes one ingestion call. Zero token values fall
// back to the configured defaults.
type IngestOptions struct {
	BaseID        string
	SourceURL     string
	Language      string
	TargetTokens  int
	OverlapTokens int
}

// IngestSummary reports what an ingest-and-index call put into the store.
type IngestSummary struct {
	BaseID          string `json:"base_id"`
	SectionsIndexed int    `json:"sections_indexed"`
	ChunksIndexed   int    `json:"chunks_indexed"`
}
