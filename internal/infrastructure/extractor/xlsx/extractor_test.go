package xlsx

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/clinical-rag/internal/core/domain"
)

func buildWorkbook(t *testing.T) []byte {
	t.Helper()
	book := excelize.NewFile()
	defer book.Close()

	if err := book.SetSheetName("Sheet1", "Dosing"); err != nil {
		t.Fatalf("rename sheet: %v", err)
	}
	rows := [][]any{
		{"Drug", "Dose", "Route"},
		{"Vancomycin", "15 mg/kg", "IV"},
		{"Ceftriaxone", "2 g", "IV"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := book.SetSheetRow("Dosing", cell, &row); err != nil {
			t.Fatalf("write row: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := book.Write(&buf); err != nil {
		t.Fatalf("serialize workbook: %v", err)
	}
	return buf.Bytes()
}

func TestExtractSheetsAsSections(t *testing.T) {
	got, err := New().Extract(buildWorkbook(t))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if len(got.Hints.Headings) != 1 {
		t.Fatalf("headings = %d, want 1", len(got.Hints.Headings))
	}
	if got.Hints.Headings[0].Title != "Dosing" {
		t.Fatalf("sheet heading = %q", got.Hints.Headings[0].Title)
	}
	if got.Hints.Role != domain.RoleTable {
		t.Fatalf("role = %q, want %q", got.Hints.Role, domain.RoleTable)
	}
	if !strings.Contains(got.Text, "Vancomycin\t15 mg/kg\tIV") {
		t.Fatalf("row not flattened tab-separated: %q", got.Text)
	}
}

func TestExtractRejectsNonWorkbook(t *testing.T) {
	if _, err := New().Extract([]byte("not a zip archive")); err == nil {
		t.Fatalf("expected error for invalid workbook")
	}
}

func TestSupportsSpreadsheetInputsOnly(t *testing.T) {
	e := New()
	if !e.Supports("labs.xlsx", "") {
		t.Fatalf("extension match failed")
	}
	if !e.Supports("upload", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet") {
		t.Fatalf("content-type match failed")
	}
	if e.Supports("notes.txt", "text/plain") {
		t.Fatalf("must not claim plain text")
	}
}
