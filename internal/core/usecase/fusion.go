package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/clinical-rag/internal/core/domain"
	"github.com/kirillkom/clinical-rag/internal/core/ports"
)

// fuseCandidates min-max normalizes both raw score lists so alpha keeps a
// consistent meaning regardless of corpus size, then blends them:
//
//	hybrid = alpha*vector + (1-alpha)*lexical
//
// Ties break by lexical score descending, then doc_id ascending, so
// repeated runs produce identical orderings.
func fuseCandidates(candidates []ports.Candidate, alpha float64) []domain.ScoredResult {
	if len(candidates) == 0 {
		return nil
	}

	lexical := normalizeScores(candidates, func(c ports.Candidate) float64 { return c.Lexical })
	vector := normalizeScores(candidates, func(c ports.Candidate) float64 { return c.Vector })

	out := make([]domain.ScoredResult, len(candidates))
	for i, c := range candidates {
		out[i] = domain.ScoredResult{
			DocID:    c.Doc.ID,
			Text:     c.Doc.Text,
			Metadata: c.Doc.Metadata,
			Scores: map[string]float64{
				ScoreLexical: lexical[i],
				ScoreVector:  vector[i],
				ScoreHybrid:  alpha*vector[i] + (1-alpha)*lexical[i],
			},
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Scores[ScoreHybrid] != out[j].Scores[ScoreHybrid] {
			return out[i].Scores[ScoreHybrid] > out[j].Scores[ScoreHybrid]
		}
		if out[i].Scores[ScoreLexical] != out[j].Scores[ScoreLexical] {
			return out[i].Scores[ScoreLexical] > out[j].Scores[ScoreLexical]
		}
		return out[i].DocID < out[j].DocID
	})
	return out
}

// normalizeScores maps raw scores into [0,1] by min-max. A degenerate
// range maps positives to 1 and the rest to 0, mirroring the rerank
// normalization this replaces.
func normalizeScores(candidates []ports.Candidate, pick func(ports.Candidate) float64) []float64 {
	minScore := pick(candidates[0])
	maxScore := minScore
	for _, c := range candidates[1:] {
		v := pick(c)
		if v < minScore {
			minScore = v
		}
		if v > maxScore {
			maxScore = v
		}
	}

	out := make([]float64, len(candidates))
	scoreRange := maxScore - minScore
	for i, c := range candidates {
		v := pick(c)
		if scoreRange <= 0 {
			if v > 0 {
				out[i] = 1
			}
			continue
		}
		out[i] = (v - minScore) / scoreRange
	}
	return out
}

// enrichCitation derives the citation fields from metadata at
// response-assembly time; nothing here is stored back into the index.
func enrichCitation(res *domain.ScoredResult) {
	meta := res.Metadata
	res.Page = metaInt(meta, domain.MetaPage)
	res.PageFrom = metaInt(meta, domain.MetaPageFrom)
	res.PageTo = metaInt(meta, domain.MetaPageTo)

	parts := make([]string, 0, 3)
	if source := metaString(meta, domain.MetaSource); source != "" {
		parts = append(parts, source)
	}
	if path := metaStrings(meta, domain.MetaSectionPath); len(path) > 0 {
		parts = append(parts, strings.Join(path, domain.SectionPathSeparator))
	} else if key := metaString(meta, domain.MetaSectionKey); key != "" && key != domain.RootSectionKey {
		parts = append(parts, key)
	}

	switch {
	case res.Page > 0:
		parts = append(parts, fmt.Sprintf("p. %d", res.Page))
	case res.PageFrom > 0 && res.PageTo > res.PageFrom:
		parts = append(parts, fmt.Sprintf("pp. %d-%d", res.PageFrom, res.PageTo))
	case res.PageFrom > 0:
		parts = append(parts, fmt.Sprintf("p. %d", res.PageFrom))
	}

	if len(parts) == 0 {
		parts = append(parts, res.DocID)
	}
	res.Citation = strings.Join(parts, ", ")
}

func metaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	s, _ := meta[key].(string)
	return s
}

// metaInt tolerates both native ints and JSON-decoded float64 values.
func metaInt(meta map[string]any, key string) int {
	if meta == nil {
		return 0
	}
	switch v := meta[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func metaStrings(meta map[string]any, key string) []string {
	if meta == nil {
		return nil
	}
	switch v := meta[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
