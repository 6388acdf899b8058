package benchmark

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/kirillkom/clinical-rag/internal/core/domain"
)

type fakeSearch struct {
	results map[string][]domain.ScoredResult
}

func (f *fakeSearch) Search(_ context.Context, query string, _ int, _ *float64) ([]domain.ScoredResult, error) {
	return f.results[query], nil
}

func results(ids ...string) []domain.ScoredResult {
	out := make([]domain.ScoredResult, len(ids))
	for i, id := range ids {
		out[i] = domain.ScoredResult{DocID: id, Text: "text for " + id}
	}
	return out
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRelevantAtRankThree(t *testing.T) {
	client := &fakeSearch{results: map[string][]domain.ScoredResult{
		"sepsis bundle": results("x", "y", "guide#p=3", "z", "w"),
	}}
	runner, err := NewRunner(client, 5, nil, MatchByID)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	report, err := runner.Run(context.Background(), []QueryCase{
		{Query: "sepsis bundle", RelevantIDs: []string{"guide#p=3"}},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	q := report.Queries[0]
	if !almostEqual(q.MRR, 1.0/3.0) {
		t.Fatalf("MRR = %f, want 1/3", q.MRR)
	}
	if !almostEqual(q.Recall, 1.0) {
		t.Fatalf("Recall = %f, want 1", q.Recall)
	}
	if q.FirstHitRank != 3 {
		t.Fatalf("first hit rank = %d, want 3", q.FirstHitRank)
	}
	if q.NDCG <= 0 || q.NDCG >= 1 {
		t.Fatalf("nDCG = %f, want strictly between 0 and 1 for a rank-3 hit", q.NDCG)
	}
}

func TestPerfectRankingScoresOne(t *testing.T) {
	client := &fakeSearch{results: map[string][]domain.ScoredResult{
		"q": results("a", "b", "x", "y", "z"),
	}}
	runner, _ := NewRunner(client, 5, nil, MatchByID)

	report, err := runner.Run(context.Background(), []QueryCase{
		{Query: "q", RelevantIDs: []string{"a", "b"}},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	q := report.Queries[0]
	if !almostEqual(q.Recall, 1) || !almostEqual(q.NDCG, 1) || !almostEqual(q.MRR, 1) {
		t.Fatalf("metrics = %f/%f/%f, want 1/1/1", q.Recall, q.NDCG, q.MRR)
	}
}

func TestNoHitsScoreZero(t *testing.T) {
	client := &fakeSearch{results: map[string][]domain.ScoredResult{
		"q": results("x", "y"),
	}}
	runner, _ := NewRunner(client, 5, nil, MatchByID)

	report, err := runner.Run(context.Background(), []QueryCase{
		{Query: "q", RelevantIDs: []string{"absent"}},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	q := report.Queries[0]
	if q.Recall != 0 || q.NDCG != 0 || q.MRR != 0 {
		t.Fatalf("metrics = %f/%f/%f, want zeros", q.Recall, q.NDCG, q.MRR)
	}
}

func TestRecallDenominatorCappedAtK(t *testing.T) {
	// Three relevant docs, K=2, both returned slots hit.
	client := &fakeSearch{results: map[string][]domain.ScoredResult{
		"q": results("a", "b"),
	}}
	runner, _ := NewRunner(client, 2, nil, MatchByID)

	report, err := runner.Run(context.Background(), []QueryCase{
		{Query: "q", RelevantIDs: []string{"a", "b", "c"}},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := report.Queries[0].Recall; !almostEqual(got, 1) {
		t.Fatalf("Recall = %f, want 1 with capped denominator", got)
	}
}

func TestSubstringMatchingIsCaseInsensitive(t *testing.T) {
	client := &fakeSearch{results: map[string][]domain.ScoredResult{
		"q": {
			{DocID: "a", Text: "Administer VANCOMYCIN per protocol"},
			{DocID: "b", Text: "unrelated"},
		},
	}}
	runner, _ := NewRunner(client, 5, nil, MatchSubstring)

	report, err := runner.Run(context.Background(), []QueryCase{
		{Query: "q", RelevantSubstrings: []string{"vancomycin"}},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := report.Queries[0].MRR; !almostEqual(got, 1) {
		t.Fatalf("MRR = %f, want 1", got)
	}
}

func TestAutoMatchPrefersIDsWhenPresent(t *testing.T) {
	client := &fakeSearch{results: map[string][]domain.ScoredResult{
		"q": {
			// Text matches the substring but the ID does not match.
			{DocID: "other", Text: "contains magic words"},
			{DocID: "target", Text: "nothing special"},
		},
	}}
	runner, _ := NewRunner(client, 5, nil, MatchAuto)

	report, err := runner.Run(context.Background(), []QueryCase{
		{Query: "q", RelevantIDs: []string{"target"}, RelevantSubstrings: []string{"magic words"}},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// With IDs present, both label kinds apply; rank 1 hits via substring.
	if got := report.Queries[0].MRR; !almostEqual(got, 1) {
		t.Fatalf("MRR = %f, want 1", got)
	}
}

func TestAggregateAveragesAcrossQueries(t *testing.T) {
	client := &fakeSearch{results: map[string][]domain.ScoredResult{
		"hit":  results("a"),
		"miss": results("x"),
	}}
	runner, _ := NewRunner(client, 5, nil, MatchByID)

	report, err := runner.Run(context.Background(), []QueryCase{
		{Query: "hit", RelevantIDs: []string{"a"}},
		{Query: "miss", RelevantIDs: []string{"absent"}},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Aggregate.QueryCount != 2 {
		t.Fatalf("query count = %d", report.Aggregate.QueryCount)
	}
	if !almostEqual(report.Aggregate.MeanRecall, 0.5) {
		t.Fatalf("mean recall = %f, want 0.5", report.Aggregate.MeanRecall)
	}
	if !almostEqual(report.Aggregate.MeanMRR, 0.5) {
		t.Fatalf("mean MRR = %f, want 0.5", report.Aggregate.MeanMRR)
	}
}

func TestUnlabeledQueryCountsAsAnsweredWhenResultsReturn(t *testing.T) {
	client := &fakeSearch{results: map[string][]domain.ScoredResult{
		"smoke": results("anything"),
		"empty": nil,
	}}
	runner, _ := NewRunner(client, 5, nil, MatchAuto)

	report, err := runner.Run(context.Background(), []QueryCase{
		{Query: "smoke"},
		{Query: "empty"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	smoke := report.Queries[0]
	if !smoke.Unlabeled || smoke.Recall != 1 {
		t.Fatalf("smoke query = %+v", smoke)
	}
	// Without labels there is no relevant item to rank, so the ranking
	// metrics must stay 0 even though recall counts the answer.
	if smoke.NDCG != 0 || smoke.MRR != 0 {
		t.Fatalf("smoke query ndcg/mrr = %f/%f, want 0/0", smoke.NDCG, smoke.MRR)
	}
	if smoke.FirstHitRank != 0 {
		t.Fatalf("smoke query first hit rank = %d, want unset", smoke.FirstHitRank)
	}
	if report.Queries[1].Recall != 0 {
		t.Fatalf("empty query recall = %f, want 0", report.Queries[1].Recall)
	}
}

func TestParseDatasetArrayAndJSONL(t *testing.T) {
	array := `[{"query":"one","relevant_ids":["a"]},{"query":"two"}]`
	cases, err := ParseDataset([]byte(array))
	if err != nil {
		t.Fatalf("ParseDataset(array) error = %v", err)
	}
	if len(cases) != 2 || cases[0].Query != "one" {
		t.Fatalf("array cases = %+v", cases)
	}

	jsonl := strings.Join([]string{
		`{"query":"one","relevant_substrings":["x"]}`,
		``,
		`{"query":"two","relevant_ids":["b"]}`,
	}, "\n")
	cases, err = ParseDataset([]byte(jsonl))
	if err != nil {
		t.Fatalf("ParseDataset(jsonl) error = %v", err)
	}
	if len(cases) != 2 || cases[1].RelevantIDs[0] != "b" {
		t.Fatalf("jsonl cases = %+v", cases)
	}
}

func TestParseDatasetRejectsBlankQuery(t *testing.T) {
	_, err := ParseDataset([]byte(`[{"query":"  "}]`))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
