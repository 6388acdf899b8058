package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kirillkom/clinical-rag/internal/core/domain"
	"github.com/kirillkom/clinical-rag/internal/core/ports"
)

type entry struct {
	doc      domain.IndexedDocument
	termFreq map[string]int
	length   int
	vector   []float32
}

// Store is the single in-memory document index shared by all requests.
// All reads take the read lock; Upsert and Reset take the write lock, so
// searches never observe a torn upsert. The index does not survive process
// restart.
type Store struct {
	embedder ports.Embedder

	mu       sync.RWMutex
	entries  map[string]*entry
	docFreq  map[string]int
	totalLen int
}

func NewStore(embedder ports.Embedder) *Store {
	return &Store{
		embedder: embedder,
		entries:  make(map[string]*entry),
		docFreq:  make(map[string]int),
	}
}

// Upsert replaces-or-inserts every document by ID. Documents that violate
// index invariants (empty ID, doc_type conflict with the entry they would
// replace) are skipped; the remaining documents are still indexed and the
// skips are reported as a single error.
func (s *Store) Upsert(ctx context.Context, docs []domain.IndexedDocument) (domain.IndexStats, error) {
	if len(docs) == 0 {
		s.mu.RLock()
		total := len(s.entries)
		s.mu.RUnlock()
		return domain.IndexStats{TotalIndexed: total}, nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return domain.IndexStats{}, fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return domain.IndexStats{}, domain.WrapError(domain.ErrConsistency, "embed documents",
			fmt.Errorf("vectors/documents mismatch: %d/%d", len(vectors), len(docs)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var failures []error
	indexed := 0
	for i, doc := range docs {
		if doc.ID == "" {
			failures = append(failures, domain.WrapError(domain.ErrInvalidInput, "index document",
				errors.New("empty doc_id")))
			continue
		}
		if prev, ok := s.entries[doc.ID]; ok {
			if conflict := docTypeConflict(prev.doc, doc); conflict != nil {
				failures = append(failures, domain.WrapError(domain.ErrConsistency, "index document", conflict))
				continue
			}
			s.removeLocked(prev)
		}

		tf, length := termFrequencies(doc.Text)
		e := &entry{doc: doc, termFreq: tf, length: length, vector: vectors[i]}
		s.entries[doc.ID] = e
		for term := range tf {
			s.docFreq[term]++
		}
		s.totalLen += length
		indexed++
	}

	stats := domain.IndexStats{IndexedCount: indexed, TotalIndexed: len(s.entries)}
	if len(failures) > 0 {
		return stats, errors.Join(failures...)
	}
	return stats, nil
}

func docTypeConflict(prev, next domain.IndexedDocument) error {
	prevType, _ := prev.Metadata[domain.MetaDocType].(string)
	nextType, _ := next.Metadata[domain.MetaDocType].(string)
	if prevType == "" || nextType == "" || prevType == nextType {
		return nil
	}
	return fmt.Errorf("doc %s: doc_type %q conflicts with indexed %q", next.ID, nextType, prevType)
}

func (s *Store) removeLocked(e *entry) {
	for term := range e.termFreq {
		if s.docFreq[term] <= 1 {
			delete(s.docFreq, term)
		} else {
			s.docFreq[term]--
		}
	}
	s.totalLen -= e.length
	delete(s.entries, e.doc.ID)
}

// Reset clears the whole store. Irreversible.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*entry)
	s.docFreq = make(map[string]int)
	s.totalLen = 0
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Candidates scores every indexed document against the query with both
// raw BM25 and raw cosine similarity. Normalization and fusion happen in
// the use case so that alpha stays a pure per-call parameter.
func (s *Store) Candidates(ctx context.Context, query string) ([]ports.Candidate, error) {
	queryVec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	queryTerms := tokenizeLower(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 {
		return nil, nil
	}

	avgLen := float64(s.totalLen) / float64(len(s.entries))
	out := make([]ports.Candidate, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, ports.Candidate{
			Doc:     e.doc,
			Lexical: bm25Score(queryTerms, e.termFreq, e.length, len(s.entries), s.docFreq, avgLen),
			Vector:  cosine(queryVec, e.vector),
		})
	}
	return out, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
