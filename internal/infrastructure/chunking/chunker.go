package chunking

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/kirillkom/clinical-rag/internal/core/domain"
)

const defaultRole = domain.RoleNarrative

// Chunker converts normalized text into a section outline and overlapping
// token-window chunks. Token counting is fixed to whitespace-delimited
// fields so that chunk boundaries are reproducible byte-for-byte.
type Chunker struct{}

func NewChunker() *Chunker {
	return &Chunker{}
}

type token struct {
	start int
	end   int
}

// Chunk splits text into sections and overlapping chunks. overlapTokens
// must be strictly smaller than targetTokens; equal or larger values would
// never advance the window.
func (c *Chunker) Chunk(
	text string,
	hints domain.StructureHints,
	targetTokens, overlapTokens int,
) ([]domain.Section, []domain.Chunk, error) {
	if targetTokens <= 0 {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "chunk",
			fmt.Errorf("target_tokens must be positive, got %d", targetTokens))
	}
	if overlapTokens < 0 || overlapTokens >= targetTokens {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "chunk",
			fmt.Errorf("overlap_tokens %d must be in [0, target_tokens=%d)", overlapTokens, targetTokens))
	}

	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil, nil, nil
	}

	sections, spans := sectionize(text, tokens, hints)
	chunks := window(text, tokens, spans, hints, targetTokens, overlapTokens)
	return sections, chunks, nil
}

// tokenize records the byte span of every whitespace-delimited field.
func tokenize(text string) []token {
	tokens := make([]token, 0, len(text)/6)
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, token{start: start, end: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, token{start: start, end: len(text)})
	}
	return tokens
}

type sectionSpan struct {
	key   string
	start int
	end   int
}

// sectionize builds the section outline from heading hints. Without hints
// the whole document becomes a single ROOT section. Preamble text before
// the first heading also lands in ROOT.
func sectionize(text string, tokens []token, hints domain.StructureHints) ([]domain.Section, []sectionSpan) {
	lastEnd := tokens[len(tokens)-1].end

	if !hints.HasStructure() {
		root := domain.Section{
			Key:      domain.RootSectionKey,
			Text:     strings.TrimSpace(text),
			PageFrom: hints.PageAt(tokens[0].start),
			PageTo:   hints.PageAt(lastEnd - 1),
		}
		return []domain.Section{root}, []sectionSpan{{key: root.Key, start: 0, end: len(text)}}
	}

	headings := make([]domain.Heading, len(hints.Headings))
	copy(headings, hints.Headings)
	sort.SliceStable(headings, func(i, j int) bool { return headings[i].Offset < headings[j].Offset })

	sections := make([]domain.Section, 0, len(headings)+1)
	spans := make([]sectionSpan, 0, len(headings)+1)

	if preamble := strings.TrimSpace(text[:headings[0].Offset]); preamble != "" {
		sections = append(sections, domain.Section{
			Key:      domain.RootSectionKey,
			Text:     preamble,
			PageFrom: hints.PageAt(0),
			PageTo:   hints.PageAt(headings[0].Offset - 1),
		})
		spans = append(spans, sectionSpan{key: domain.RootSectionKey, start: 0, end: headings[0].Offset})
	}

	type stackEntry struct {
		level int
		title string
	}
	var stack []stackEntry

	for i, h := range headings {
		for len(stack) > 0 && stack[len(stack)-1].level >= h.Level {
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, stackEntry{level: h.Level, title: h.Title})

		path := make([]string, len(stack))
		for j, e := range stack {
			path[j] = e.title
		}

		end := len(text)
		if i+1 < len(headings) {
			end = headings[i+1].Offset
		}
		body := strings.TrimSpace(text[h.Offset:end])
		if body == "" {
			continue
		}

		key := strings.Join(path, domain.SectionPathSeparator)
		sections = append(sections, domain.Section{
			Key:      key,
			Path:     path,
			Text:     body,
			PageFrom: hints.PageAt(h.Offset),
			PageTo:   hints.PageAt(end - 1),
		})
		spans = append(spans, sectionSpan{key: key, start: h.Offset, end: end})
	}

	if len(sections) == 0 {
		root := domain.Section{
			Key:      domain.RootSectionKey,
			Text:     strings.TrimSpace(text),
			PageFrom: hints.PageAt(tokens[0].start),
			PageTo:   hints.PageAt(lastEnd - 1),
		}
		return []domain.Section{root}, []sectionSpan{{key: root.Key, start: 0, end: len(text)}}
	}

	return sections, spans
}

// window slides a token window of targetTokens, advancing by
// targetTokens-overlapTokens. Chunk text is the original byte span of its
// tokens, so source spacing survives.
func window(
	text string,
	tokens []token,
	spans []sectionSpan,
	hints domain.StructureHints,
	targetTokens, overlapTokens int,
) []domain.Chunk {
	role := hints.Role
	if role == "" {
		role = defaultRole
	}

	step := targetTokens - overlapTokens
	chunks := make([]domain.Chunk, 0, len(tokens)/step+1)

	for start := 0; start < len(tokens); start += step {
		end := start + targetTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		window := tokens[start:end]

		chunks = append(chunks, domain.Chunk{
			Text:       text[window[0].start:window[len(window)-1].end],
			Role:       role,
			SectionKey: majoritySection(window, spans),
			Page:       hints.PageAt(window[0].start),
			Index:      len(chunks),
		})

		if end == len(tokens) {
			break
		}
	}
	return chunks
}

// majoritySection assigns a chunk to the section holding most of its
// tokens; the earlier section wins ties.
func majoritySection(window []token, spans []sectionSpan) string {
	if len(spans) == 0 {
		return ""
	}
	if len(spans) == 1 {
		return spans[0].key
	}

	best := ""
	bestCount := 0
	for _, span := range spans {
		count := 0
		for _, tok := range window {
			if tok.start >= span.start && tok.start < span.end {
				count++
			}
		}
		if count > bestCount {
			bestCount = count
			best = span.key
		}
	}
	return best
}
