package plaintext

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/clinical-rag/internal/core/domain"
)

// Extractor is the terminal fallback strategy: any valid UTF-8 payload is
// treated as unstructured text.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Name() string {
	return "plaintext"
}

func (e *Extractor) Supports(string, string) bool {
	return true
}

func (e *Extractor) Extract(content []byte) (domain.Extraction, error) {
	if !utf8.Valid(content) {
		return domain.Extraction{}, errors.New("content is not valid utf-8 text")
	}
	return domain.Extraction{Text: strings.TrimSpace(string(content))}, nil
}
