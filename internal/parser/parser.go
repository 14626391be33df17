package parser

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dgallion1/docshift/internal/doctree"
)

var ErrUnsupportedFormat = errors.New("unsupported input format")

// Parser converts raw document bytes into a document tree. Every document
// carries "title" and "source_format" metadata.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.Document, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: true}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("%w: file extension %q", ErrUnsupportedFormat, ext)
	}
}

// ForFormat returns the parser for a format name such as "markdown" or "pdf".
func ForFormat(format string) (Parser, error) {
	switch strings.ToLower(format) {
	case "text", "txt":
		return &TextParser{}, nil
	case "markdown", "md":
		return &MarkdownParser{}, nil
	case "csv":
		return &CSVParser{}, nil
	case "html", "htm":
		return &HTMLParser{}, nil
	case "pdf":
		return &PDFParser{FallbackPdftotext: true}, nil
	case "docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// Extensions returns the supported extensions, sorted.
func Extensions() []string {
	out := make([]string, 0, len(SupportedExtensions))
	for ext := range SupportedExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// newDocument returns an empty document titled after the file name stem.
func newDocument(format, filename string) *doctree.Document {
	title := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return &doctree.Document{Base: doctree.Base{Metadata: map[string]any{
		"title":         title,
		"source_format": format,
	}}}
}

// source returns a provenance record, or nil when nothing is known.
func source(format string, page, line int, id string) *doctree.SourceLocation {
	if page == 0 && line == 0 && id == "" {
		return nil
	}
	return &doctree.SourceLocation{Format: format, Page: page, Line: line, ElementID: id}
}

// appendText appends s to nodes, merging it into a trailing plain text node.
func appendText(nodes []doctree.Node, s string) []doctree.Node {
	if s == "" {
		return nodes
	}
	if n := len(nodes); n > 0 {
		if t, ok := nodes[n-1].(*doctree.Text); ok && t.Metadata == nil && t.Source == nil {
			t.Content += s
			return nodes
		}
	}
	return append(nodes, &doctree.Text{Content: s})
}

// textLines converts newline-separated text into text nodes joined by soft
// line breaks.
func textLines(s string) []doctree.Node {
	var out []doctree.Node
	for i, line := range strings.Split(s, "\n") {
		if i > 0 {
			out = append(out, &doctree.LineBreak{Soft: true})
		}
		out = appendText(out, line)
	}
	return out
}
