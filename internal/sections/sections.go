// Package sections splits a document tree into heading-scoped plain-text
// sections bounded by an estimated token size, for indexing and search.
package sections

import (
	"strings"

	"github.com/dgallion1/docshift/internal/doctree"
)

// Config controls splitting.
type Config struct {
	MaxTokens int // target section size
	Overlap   int // tokens repeated at the start of a continuation
	MinTokens int // smaller sections are dropped
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens: 1500,
		Overlap:   200,
		MinTokens: 1,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxTokens <= 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.Overlap < 0 || c.Overlap >= c.MaxTokens {
		c.Overlap = 0
	}
	if c.MinTokens <= 0 {
		c.MinTokens = d.MinTokens
	}
	return c
}

// Section is one piece of document text with its heading path.
type Section struct {
	Index      int      `json:"index"`
	Breadcrumb []string `json:"breadcrumb"`
	Text       string   `json:"text"`
	Tokens     int      `json:"tokens"`
	Page       int      `json:"page,omitempty"`
}

// Split walks the top-level blocks of doc. Each heading closes the running
// section and replaces the breadcrumb entries at its level and below.
func Split(doc *doctree.Document, cfg Config) []Section {
	cfg = cfg.withDefaults()

	var (
		out   []Section
		trail []string
		paras []string
		page  int
	)
	flush := func() {
		text := strings.Join(paras, "\n\n")
		paras, page = nil, 0
		if text == "" {
			return
		}
		for _, part := range splitText(text, cfg.MaxTokens, cfg.Overlap) {
			tokens := EstimateTokens(part)
			if tokens < cfg.MinTokens {
				continue
			}
			out = append(out, Section{
				Index:      len(out),
				Breadcrumb: copyBreadcrumb(trail),
				Text:       part,
				Tokens:     tokens,
				Page:       page,
			})
		}
	}

	for _, n := range doc.Children {
		if h, ok := n.(*doctree.Heading); ok {
			flush()
			depth := max(h.Level-1, 0)
			if depth < len(trail) {
				trail = trail[:depth]
			}
			trail = append(trail, strings.TrimSpace(doctree.PlainText(h)))
			continue
		}
		text := blockText(n)
		if text == "" {
			continue
		}
		if page == 0 {
			if src := n.Common().Source; src != nil {
				page = src.Page
			}
		}
		paras = append(paras, text)
	}
	flush()
	return out
}

// blockText flattens a block. Lists and tables keep one line per item or row.
func blockText(n doctree.Node) string {
	switch t := n.(type) {
	case *doctree.CodeBlock:
		return strings.TrimSpace(t.Content)
	case *doctree.List:
		lines := make([]string, 0, len(t.Items))
		for _, item := range t.Items {
			if s := strings.TrimSpace(doctree.PlainText(item)); s != "" {
				lines = append(lines, s)
			}
		}
		return strings.Join(lines, "\n")
	case *doctree.Table:
		lines := make([]string, 0, len(t.Rows))
		for _, row := range t.Rows {
			cells := make([]string, len(row.Cells))
			for i, c := range row.Cells {
				cells[i] = strings.TrimSpace(doctree.PlainText(c))
			}
			lines = append(lines, strings.Join(cells, " | "))
		}
		return strings.Join(lines, "\n")
	case *doctree.ThematicBreak, *doctree.RawBlock:
		return ""
	}
	return strings.TrimSpace(doctree.PlainText(n))
}

// splitText breaks text into parts of about targetTokens, carrying
// overlapTokens of trailing words into the next part.
func splitText(text string, targetTokens, overlapTokens int) []string {
	if EstimateTokens(text) <= targetTokens {
		return []string{text}
	}

	var result []string
	var current strings.Builder
	currentTokens := 0

	for _, para := range splitByParagraphs(text) {
		paraTokens := EstimateTokens(para)

		if paraTokens > targetTokens {
			if currentTokens > 0 {
				result = append(result, current.String())
				current.Reset()
				currentTokens = 0
			}
			result = append(result, splitBySentences(para, targetTokens, overlapTokens)...)
			continue
		}

		if currentTokens+paraTokens > targetTokens && currentTokens > 0 {
			result = append(result, current.String())
			overlap := overlapText(current.String(), overlapTokens)
			current.Reset()
			currentTokens = 0
			if overlap != "" {
				current.WriteString(overlap)
				currentTokens = EstimateTokens(overlap)
			}
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
		currentTokens += paraTokens
	}

	if currentTokens > 0 {
		result = append(result, current.String())
	}
	return result
}

func splitByParagraphs(text string) []string {
	var result []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

// splitBySentences packs sentences of one oversized paragraph. A single
// sentence longer than targetTokens is kept whole.
func splitBySentences(text string, targetTokens, overlapTokens int) []string {
	var result []string
	var current strings.Builder
	currentTokens := 0

	for _, sent := range splitSentences(text) {
		sentTokens := EstimateTokens(sent)

		if currentTokens+sentTokens > targetTokens && currentTokens > 0 {
			result = append(result, current.String())
			overlap := overlapText(current.String(), overlapTokens)
			current.Reset()
			currentTokens = 0
			if overlap != "" {
				current.WriteString(overlap)
				currentTokens = EstimateTokens(overlap)
			}
		}

		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sent)
		currentTokens += sentTokens
	}

	if currentTokens > 0 {
		result = append(result, current.String())
	}
	return result
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\n') {
			sentences = append(sentences, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// overlapText returns roughly the last targetTokens worth of words.
func overlapText(text string, targetTokens int) string {
	words := strings.Fields(text)
	targetWords := int(float64(targetTokens) / 1.33)
	if targetWords <= 0 || len(words) <= targetWords {
		return ""
	}
	return strings.Join(words[len(words)-targetWords:], " ")
}

func copyBreadcrumb(bc []string) []string {
	out := make([]string, len(bc))
	copy(out, bc)
	return out
}
