package pdf

import "testing"

func TestSupportsPDFInputsOnly(t *testing.T) {
	e := New()
	if !e.Supports("guideline.PDF", "") {
		t.Fatalf("extension match failed")
	}
	if !e.Supports("download", "application/pdf") {
		t.Fatalf("content-type match failed")
	}
	if e.Supports("notes.txt", "text/plain") {
		t.Fatalf("must not claim plain text")
	}
}

func TestExtractRejectsEmptyContent(t *testing.T) {
	if _, err := New().Extract(nil); err == nil {
		t.Fatalf("expected error for empty content")
	}
}

func TestExtractRejectsNonPDFContent(t *testing.T) {
	if _, err := New().Extract([]byte("plain text pretending to be a pdf")); err == nil {
		t.Fatalf("expected error for non-pdf bytes")
	}
}
