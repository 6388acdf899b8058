package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/kirillkom/clinical-rag/internal/core/domain"
)

// MatchBy selects how a result is judged relevant for a query case.
type MatchBy string

const (
	// MatchAuto uses IDs when the case has them, substrings otherwise.
	MatchAuto      MatchBy = "auto"
	MatchByID      MatchBy = "id"
	MatchSubstring MatchBy = "substring"
)

// SearchClient is the retrieval surface the runner measures.
type SearchClient interface {
	Search(ctx context.Context, query string, topK int, alpha *float64) ([]domain.ScoredResult, error)
}

type Runner struct {
	client  SearchClient
	topK    int
	alpha   *float64
	matchBy MatchBy
}

func NewRunner(client SearchClient, topK int, alpha *float64, matchBy MatchBy) (*Runner, error) {
	if client == nil {
		return nil, fmt.Errorf("benchmark: search client is required")
	}
	if topK < 1 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "new runner",
			fmt.Errorf("top_k must be positive, got %d", topK))
	}
	switch matchBy {
	case MatchAuto, MatchByID, MatchSubstring:
	case "":
		matchBy = MatchAuto
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "new runner",
			fmt.Errorf("unknown match_by %q", matchBy))
	}
	return &Runner{client: client, topK: topK, alpha: alpha, matchBy: matchBy}, nil
}

// QueryResult holds per-query metrics plus enough detail to debug a miss.
type QueryResult struct {
	Query        string  `json:"query"`
	ResultCount  int     `json:"result_count"`
	FirstHitRank int     `json:"first_hit_rank,omitempty"`
	Recall       float64 `json:"recall_at_k"`
	NDCG         float64 `json:"ndcg_at_k"`
	MRR          float64 `json:"mrr_at_k"`
	Unlabeled    bool    `json:"unlabeled,omitempty"`
}

type Aggregate struct {
	QueryCount int     `json:"query_count"`
	MeanRecall float64 `json:"mean_recall_at_k"`
	MeanNDCG   float64 `json:"mean_ndcg_at_k"`
	MeanMRR    float64 `json:"mean_mrr_at_k"`
}

type Report struct {
	TopK      int           `json:"top_k"`
	Alpha     *float64      `json:"alpha,omitempty"`
	MatchBy   MatchBy       `json:"match_by"`
	Queries   []QueryResult `json:"queries"`
	Aggregate Aggregate     `json:"aggregate"`
}

func (r *Runner) Run(ctx context.Context, cases []QueryCase) (*Report, error) {
	if len(cases) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "run benchmark",
			fmt.Errorf("no query cases"))
	}

	report := &Report{
		TopK:    r.topK,
		Alpha:   r.alpha,
		MatchBy: r.matchBy,
	}

	for _, c := range cases {
		results, err := r.client.Search(ctx, c.Query, r.topK, r.alpha)
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", c.Query, err)
		}
		report.Queries = append(report.Queries, r.scoreQuery(c, results))
	}

	for _, q := range report.Queries {
		report.Aggregate.MeanRecall += q.Recall
		report.Aggregate.MeanNDCG += q.NDCG
		report.Aggregate.MeanMRR += q.MRR
	}
	n := float64(len(report.Queries))
	report.Aggregate.QueryCount = len(report.Queries)
	report.Aggregate.MeanRecall /= n
	report.Aggregate.MeanNDCG /= n
	report.Aggregate.MeanMRR /= n

	return report, nil
}

func (r *Runner) scoreQuery(c QueryCase, results []domain.ScoredResult) QueryResult {
	out := QueryResult{Query: c.Query, ResultCount: len(results)}

	relevant, totalRelevant := r.judge(c, results)
	if totalRelevant == 0 {
		// No relevance labels: recall counts the query as answered when
		// anything came back at all, so unlabeled smoke queries do not
		// zero the aggregate. nDCG and MRR have no relevant item to rank
		// against and stay 0.
		out.Unlabeled = true
		if len(results) > 0 {
			out.Recall = 1
		}
		return out
	}

	out.Recall = recallAtK(relevant, totalRelevant, r.topK)
	out.NDCG = ndcgAtK(relevant, totalRelevant, r.topK)
	out.MRR = mrrAtK(relevant, r.topK)
	for i, hit := range relevant {
		if hit {
			out.FirstHitRank = i + 1
			break
		}
	}
	return out
}

// judge returns per-rank relevance flags and the number of known relevant
// documents for the case.
func (r *Runner) judge(c QueryCase, results []domain.ScoredResult) ([]bool, int) {
	useIDs := len(c.RelevantIDs) > 0
	useSubstrings := len(c.RelevantSubstrings) > 0
	switch r.matchBy {
	case MatchByID:
		useSubstrings = false
	case MatchSubstring:
		useIDs = false
	}

	totalRelevant := 0
	if useIDs {
		totalRelevant = len(c.RelevantIDs)
	} else if useSubstrings {
		totalRelevant = len(c.RelevantSubstrings)
	}
	if totalRelevant == 0 {
		return nil, 0
	}

	flags := make([]bool, len(results))
	for i, result := range results {
		if useIDs {
			for _, id := range c.RelevantIDs {
				if result.DocID == id {
					flags[i] = true
					break
				}
			}
		}
		if !flags[i] && useSubstrings {
			text := strings.ToLower(result.Text)
			for _, sub := range c.RelevantSubstrings {
				if sub != "" && strings.Contains(text, strings.ToLower(sub)) {
					flags[i] = true
					break
				}
			}
		}
	}
	return flags, totalRelevant
}

// WriteJSON renders the report for files or stdout.
func (rep *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
