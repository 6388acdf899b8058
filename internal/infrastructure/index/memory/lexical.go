package memory

import (
	"math"
	"strings"
	"unicode"
)

// BM25 parameters. k1 controls term frequency saturation; b is the
// standard document length normalization.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

func bm25Score(
	queryTerms []string,
	termFreq map[string]int,
	docLen int,
	corpusSize int,
	docFreq map[string]int,
	avgLen float64,
) float64 {
	if docLen == 0 || avgLen == 0 {
		return 0
	}

	var score float64
	for _, term := range queryTerms {
		tf := termFreq[term]
		if tf == 0 {
			continue
		}
		df := docFreq[term]
		idf := math.Log(1.0 + (float64(corpusSize)-float64(df)+0.5)/(float64(df)+0.5))
		norm := float64(tf) * (bm25K1 + 1.0) /
			(float64(tf) + bm25K1*(1.0-bm25B+bm25B*float64(docLen)/avgLen))
		score += idf * norm
	}
	return score
}

func termFrequencies(text string) (map[string]int, int) {
	tokens := tokenizeLower(text)
	tf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}
	return tf, len(tokens)
}

func tokenizeLower(s string) []string {
	if s == "" {
		return nil
	}
	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
