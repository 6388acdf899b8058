// Package benchmark measures retrieval quality against a labeled query
// set, reporting Recall@K, nDCG@K and MRR@K per query and aggregated.
package benchmark

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/kirillkom/clinical-rag/internal/core/domain"
)

// QueryCase is one labeled benchmark query. Relevance can be expressed as
// exact doc IDs, as substrings expected in relevant result texts, or both.
type QueryCase struct {
	Query              string   `json:"query"`
	RelevantIDs        []string `json:"relevant_ids,omitempty"`
	RelevantSubstrings []string `json:"relevant_substrings,omitempty"`
}

// LoadDataset reads a query set from path. Both a JSON array and JSONL
// (one object per line) are accepted.
func LoadDataset(path string) ([]QueryCase, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return ParseDataset(raw)
}

func ParseDataset(raw []byte) ([]QueryCase, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse dataset",
			fmt.Errorf("dataset is empty"))
	}

	var cases []QueryCase
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &cases); err != nil {
			return nil, fmt.Errorf("parse dataset array: %w", err)
		}
	} else {
		scanner := bufio.NewScanner(bytes.NewReader(trimmed))
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			var c QueryCase
			if err := json.Unmarshal([]byte(text), &c); err != nil {
				return nil, fmt.Errorf("parse dataset line %d: %w", line, err)
			}
			cases = append(cases, c)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
	}

	for i, c := range cases {
		if strings.TrimSpace(c.Query) == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "parse dataset",
				fmt.Errorf("case %d has a blank query", i+1))
		}
	}
	if len(cases) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse dataset",
			fmt.Errorf("dataset has no cases"))
	}
	return cases, nil
}
