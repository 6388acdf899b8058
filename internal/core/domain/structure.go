package domain

// Heading is a structural hint emitted by format-aware extractors. Offset
// is a byte offset into the normalized text, Level follows HTML semantics
// (1 is the outermost).
type Heading struct {
	Offset int
	Level  int
	Title  string
}

// StructureHints carries whatever structure a source format exposed.
// PageStarts holds byte offsets at which pages 2..N begin; page 1 starts at
// offset zero. An empty value means the source had no detectable structure.
type StructureHints struct {
	Headings   []Heading
	PageStarts []int
	Role       string
}

// HasStructure reports whether any sectionization hints are present.
func (h StructureHints) HasStructure() bool {
	return len(h.Headings) > 0
}

// PageAt resolves the 1-based page number of a byte offset. Returns 0 when
// the source exposed no page boundaries.
func (h StructureHints) PageAt(offset int) int {
	if len(h.PageStarts) == 0 {
		return 0
	}
	page := 1
	for _, start := range h.PageStarts {
		if start > offset {
			break
		}
		page++
	}
	return page
}
