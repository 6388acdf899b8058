package benchmark

import "math"

// relevanceAt flags, per rank, whether the result at that rank is
// relevant. All metric functions take the flags already truncated to K.

// recallAtK is the share of relevant documents found within the first K
// ranks, with the denominator capped at K so a query with more relevant
// documents than K can still score 1.
func recallAtK(relevant []bool, totalRelevant, k int) float64 {
	if totalRelevant <= 0 {
		return 0
	}
	hits := 0
	for i := 0; i < len(relevant) && i < k; i++ {
		if relevant[i] {
			hits++
		}
	}
	denominator := totalRelevant
	if denominator > k {
		denominator = k
	}
	return float64(hits) / float64(denominator)
}

// ndcgAtK computes binary-gain nDCG with the standard log2 discount. The
// ideal ranking front-loads all relevant documents.
func ndcgAtK(relevant []bool, totalRelevant, k int) float64 {
	if totalRelevant <= 0 {
		return 0
	}

	dcg := 0.0
	for i := 0; i < len(relevant) && i < k; i++ {
		if relevant[i] {
			dcg += 1 / math.Log2(float64(i)+2)
		}
	}

	ideal := totalRelevant
	if ideal > k {
		ideal = k
	}
	idcg := 0.0
	for i := 0; i < ideal; i++ {
		idcg += 1 / math.Log2(float64(i)+2)
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

// mrrAtK is the reciprocal rank of the first relevant result within K,
// zero when none appears.
func mrrAtK(relevant []bool, k int) float64 {
	for i := 0; i < len(relevant) && i < k; i++ {
		if relevant[i] {
			return 1 / float64(i+1)
		}
	}
	return 0
}
