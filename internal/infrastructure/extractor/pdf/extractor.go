// Package pdf extracts text from PDF documents page by page, recording
// page-start offsets so chunks keep their page provenance.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/clinical-rag/internal/core/domain"
)

type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Name() string {
	return "pdf"
}

func (e *Extractor) Supports(filename, contentType string) bool {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return true
	}
	return contentType == "application/pdf"
}

func (e *Extractor) Extract(content []byte) (domain.Extraction, error) {
	if len(content) == 0 {
		return domain.Extraction{}, errors.New("empty pdf content")
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("open pdf: %w", err)
	}

	var text strings.Builder
	var pageStarts []int

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// Unreadable pages are skipped, not fatal.
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}

		if text.Len() > 0 {
			text.WriteString("\n\n")
			pageStarts = append(pageStarts, text.Len())
		}
		text.WriteString(pageText)
	}

	return domain.Extraction{
		Text:  text.String(),
		Hints: domain.StructureHints{PageStarts: pageStarts},
	}, nil
}
