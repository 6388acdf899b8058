// Package xlsx turns spreadsheet workbooks into indexable text. Every sheet
// becomes a level-1 heading and rows are flattened tab-separated, so tabular
// material keeps its row structure inside a chunk.
package xlsx

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/clinical-rag/internal/core/domain"
)

type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Name() string {
	return "xlsx"
}

func (e *Extractor) Supports(filename, contentType string) bool {
	if strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		return true
	}
	return strings.Contains(contentType, "spreadsheetml")
}

func (e *Extractor) Extract(content []byte) (domain.Extraction, error) {
	book, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("open workbook: %w", err)
	}
	defer book.Close()

	var text strings.Builder
	var headings []domain.Heading

	for _, sheet := range book.GetSheetList() {
		rows, err := book.GetRows(sheet)
		if err != nil {
			return domain.Extraction{}, fmt.Errorf("read sheet %s: %w", sheet, err)
		}

		if text.Len() > 0 {
			text.WriteString("\n")
		}
		headings = append(headings, domain.Heading{
			Offset: text.Len(),
			Level:  1,
			Title:  sheet,
		})
		text.WriteString(sheet)
		text.WriteString("\n")

		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line == "" {
				continue
			}
			text.WriteString(line)
			text.WriteString("\n")
		}
	}

	return domain.Extraction{
		Text: strings.TrimSpace(text.String()),
		Hints: domain.StructureHints{
			Headings: headings,
			Role:     domain.RoleTable,
		},
	}, nil
}
