package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/clinical-rag/internal/core/domain"
	"github.com/kirillkom/clinical-rag/internal/core/ports"
)

const (
	ScoreLexical = "lexical"
	ScoreVector  = "vector"
	ScoreHybrid  = "hybrid"
)

// SearchUseCase fronts the in-memory index with validation, score fusion
// and citation enrichment. The per-call alpha override is threaded through
// as a parameter and never written back to the use case.
type SearchUseCase struct {
	index        ports.DocumentIndex
	defaultAlpha float64
}

func NewSearchUseCase(index ports.DocumentIndex, defaultAlpha float64) *SearchUseCase {
	if defaultAlpha < 0 || defaultAlpha > 1 {
		defaultAlpha = 0.5
	}
	return &SearchUseCase{index: index, defaultAlpha: defaultAlpha}
}

func (uc *SearchUseCase) IndexDocuments(ctx context.Context, docs []domain.IndexedDocument) (domain.IndexStats, error) {
	for _, doc := range docs {
		if strings.TrimSpace(doc.Text) == "" {
			return domain.IndexStats{}, domain.WrapError(domain.ErrInvalidInput, "index documents",
				fmt.Errorf("document %q has empty text", doc.ID))
		}
	}
	return uc.index.Upsert(ctx, docs)
}

func (uc *SearchUseCase) Search(
	ctx context.Context,
	query string,
	topK int,
	alphaOverride *float64,
) ([]domain.ScoredResult, float64, error) {
	if strings.TrimSpace(query) == "" {
		return nil, 0, domain.WrapError(domain.ErrInvalidInput, "search", errors.New("query is empty"))
	}
	if topK <= 0 {
		return nil, 0, domain.WrapError(domain.ErrInvalidInput, "search",
			fmt.Errorf("top_k must be positive, got %d", topK))
	}

	alpha := uc.defaultAlpha
	if alphaOverride != nil {
		if *alphaOverride < 0 || *alphaOverride > 1 {
			return nil, 0, domain.WrapError(domain.ErrInvalidInput, "search",
				fmt.Errorf("alpha %f outside [0,1]", *alphaOverride))
		}
		alpha = *alphaOverride
	}

	candidates, err := uc.index.Candidates(ctx, query)
	if err != nil {
		return nil, alpha, fmt.Errorf("score candidates: %w", err)
	}

	results := fuseCandidates(candidates, alpha)
	if len(results) > topK {
		results = results[:topK]
	}
	for i := range results {
		enrichCitation(&results[i])
	}
	return results, alpha, nil
}

func (uc *SearchUseCase) Reset(context.Context) error {
	uc.index.Reset()
	return nil
}

func (uc *SearchUseCase) TotalIndexed() int {
	return uc.index.Count()
}
