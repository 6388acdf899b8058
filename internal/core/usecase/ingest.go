package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/clinical-rag/internal/core/domain"
	"github.com/kirillkom/clinical-rag/internal/core/ports"
)

// IngestUseCase turns raw bytes or URLs into sections and chunks by trying
// extraction strategies in order, then optionally indexes the result under
// derived document IDs.
type IngestUseCase struct {
	strategies []ports.ExtractorStrategy
	chunker    ports.Chunker
	fetcher    ports.Fetcher
	search     ports.SearchService

	defaultTargetTokens  int
	defaultOverlapTokens int
}

func NewIngestUseCase(
	strategies []ports.ExtractorStrategy,
	chunker ports.Chunker,
	fetcher ports.Fetcher,
	search ports.SearchService,
	defaultTargetTokens, defaultOverlapTokens int,
) *IngestUseCase {
	if defaultTargetTokens <= 0 {
		defaultTargetTokens = 512
	}
	if defaultOverlapTokens < 0 || defaultOverlapTokens >= defaultTargetTokens {
		defaultOverlapTokens = defaultTargetTokens / 8
	}
	return &IngestUseCase{
		strategies:           strategies,
		chunker:              chunker,
		fetcher:              fetcher,
		search:               search,
		defaultTargetTokens:  defaultTargetTokens,
		defaultOverlapTokens: defaultOverlapTokens,
	}
}

func (uc *IngestUseCase) IngestBytes(
	ctx context.Context,
	content []byte,
	filename string,
	opts domain.IngestOptions,
) ([]domain.Section, []domain.Chunk, error) {
	return uc.ingest(ctx, content, filename, "", opts)
}

func (uc *IngestUseCase) IngestURL(
	ctx context.Context,
	rawURL string,
	opts domain.IngestOptions,
) ([]domain.Section, []domain.Chunk, error) {
	content, contentType, err := uc.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, nil, err
	}
	if opts.SourceURL == "" {
		opts.SourceURL = rawURL
	}
	return uc.ingest(ctx, content, filenameFromURL(rawURL), SniffContentType(contentType), opts)
}

// ingest tries every matching strategy in order. A strategy that errors or
// yields no text hands over to the next one; only when all of them come up
// empty does the call return empty lists. Chunker configuration errors are
// caller mistakes and abort immediately.
func (uc *IngestUseCase) ingest(
	_ context.Context,
	content []byte,
	filename, contentType string,
	opts domain.IngestOptions,
) ([]domain.Section, []domain.Chunk, error) {
	target, overlap := uc.tokenBounds(opts)

	for _, strategy := range uc.strategies {
		if !strategy.Supports(filename, contentType) {
			continue
		}

		extraction, err := strategy.Extract(content)
		if err != nil {
			slog.Warn("extraction_strategy_failed",
				"strategy", strategy.Name(),
				"filename", filename,
				"error", err,
			)
			continue
		}
		if extraction.IsEmpty() {
			continue
		}

		sections, chunks, err := uc.chunker.Chunk(extraction.Text, extraction.Hints, target, overlap)
		if err != nil {
			return nil, nil, err
		}
		if len(chunks) == 0 {
			continue
		}
		return sections, chunks, nil
	}

	return nil, nil, nil
}

func (uc *IngestUseCase) IndexBytes(
	ctx context.Context,
	content []byte,
	filename string,
	opts domain.IngestOptions,
) (domain.IngestSummary, error) {
	sections, chunks, err := uc.IngestBytes(ctx, content, filename, opts)
	if err != nil {
		return domain.IngestSummary{}, err
	}
	return uc.indexExtracted(ctx, sections, chunks, filename, opts)
}

func (uc *IngestUseCase) IndexURL(
	ctx context.Context,
	rawURL string,
	opts domain.IngestOptions,
) (domain.IngestSummary, error) {
	sections, chunks, err := uc.IngestURL(ctx, rawURL, opts)
	if err != nil {
		return domain.IngestSummary{}, err
	}
	if opts.SourceURL == "" {
		opts.SourceURL = rawURL
	}
	return uc.indexExtracted(ctx, sections, chunks, filenameFromURL(rawURL), opts)
}

func (uc *IngestUseCase) indexExtracted(
	ctx context.Context,
	sections []domain.Section,
	chunks []domain.Chunk,
	filename string,
	opts domain.IngestOptions,
) (domain.IngestSummary, error) {
	if len(sections) == 0 && len(chunks) == 0 {
		return domain.IngestSummary{}, domain.WrapError(domain.ErrExtraction, "ingest",
			errors.New("all extraction strategies yielded empty text"))
	}

	baseID := opts.BaseID
	if baseID == "" {
		baseID = deriveBaseID(filename, opts.SourceURL)
	}
	source := opts.SourceURL
	if source == "" {
		source = filename
	}

	docs := make([]domain.IndexedDocument, 0, len(sections)+len(chunks))
	for _, section := range sections {
		docs = append(docs, sectionDocument(baseID, source, opts.Language, section))
	}
	for _, chunk := range chunks {
		docs = append(docs, chunkDocument(baseID, source, opts.Language, chunk))
	}

	if _, err := uc.search.IndexDocuments(ctx, docs); err != nil {
		return domain.IngestSummary{}, fmt.Errorf("index extracted documents: %w", err)
	}

	return domain.IngestSummary{
		BaseID:          baseID,
		SectionsIndexed: len(sections),
		ChunksIndexed:   len(chunks),
	}, nil
}

func sectionDocument(baseID, source, language string, section domain.Section) domain.IndexedDocument {
	key := section.Key
	if key == "" {
		key = domain.RootSectionKey
	}
	meta := map[string]any{
		domain.MetaDocType:    domain.DocTypeSection,
		domain.MetaSource:     source,
		domain.MetaSectionKey: key,
	}
	if language != "" {
		meta[domain.MetaLanguage] = language
	}
	if len(section.Path) > 0 {
		meta[domain.MetaSectionPath] = section.Path
	}
	if section.PageFrom > 0 {
		meta[domain.MetaPageFrom] = section.PageFrom
	}
	if section.PageTo > 0 {
		meta[domain.MetaPageTo] = section.PageTo
	}
	return domain.IndexedDocument{
		ID:       fmt.Sprintf("%s::section::%s", baseID, key),
		Text:     section.Text,
		Metadata: meta,
	}
}

func chunkDocument(baseID, source, language string, chunk domain.Chunk) domain.IndexedDocument {
	meta := map[string]any{
		domain.MetaDocType:    domain.DocTypeChunk,
		domain.MetaSource:     source,
		domain.MetaChunkIndex: chunk.Index,
		domain.MetaRole:       chunk.Role,
	}
	if language != "" {
		meta[domain.MetaLanguage] = language
	}
	if chunk.SectionKey != "" {
		meta[domain.MetaSectionKey] = chunk.SectionKey
	}
	if chunk.Page > 0 {
		meta[domain.MetaPage] = chunk.Page
	}
	return domain.IndexedDocument{
		// Chunk ordinals are 1-based in the public ID.
		ID:       fmt.Sprintf("%s#p=%d", baseID, chunk.Index+1),
		Text:     chunk.Text,
		Metadata: meta,
	}
}

// tokenBounds defaults target and overlap independently. A defaulted
// overlap that would not fit a caller-supplied target is clamped below
// it; an explicit oversized overlap is left for the chunker to reject.
func (uc *IngestUseCase) tokenBounds(opts domain.IngestOptions) (int, int) {
	target := opts.TargetTokens
	if target <= 0 {
		target = uc.defaultTargetTokens
	}
	overlap := opts.OverlapTokens
	if overlap <= 0 {
		overlap = uc.defaultOverlapTokens
		if overlap >= target {
			overlap = target / 8
		}
	}
	return target, overlap
}

func deriveBaseID(filename, sourceURL string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if base == "" || base == "." {
		base = "document"
	}
	base = sanitizeIDPart(base)
	if sourceURL != "" && filename == "" {
		base = sanitizeIDPart(path.Base(sourceURL))
	}
	return base + "-" + uuid.NewString()[:8]
}

func sanitizeIDPart(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
	if s == "" {
		return "document"
	}
	return s
}

func filenameFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Path == "" || parsed.Path == "/" {
		return ""
	}
	return path.Base(parsed.Path)
}

// SniffContentType normalizes a Content-Type header down to its media type.
func SniffContentType(header string) string {
	if header == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(header))
	}
	return mediaType
}
