// Package render selects an output serializer by format name.
package render

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dgallion1/docshift/internal/doctree"
	"github.com/dgallion1/docshift/internal/render/html"
	"github.com/dgallion1/docshift/internal/render/markdown"
)

var ErrUnsupportedFormat = errors.New("unsupported output format")

// Serializer turns a document into output text.
type Serializer interface {
	Serialize(doc *doctree.Document, options any) (string, error)
}

var serializers = map[string]Serializer{
	"markdown": markdown.Serializer{},
	"md":       markdown.Serializer{},
	"html":     html.Serializer{},
}

// contentTypes maps canonical format names to MIME types.
var contentTypes = map[string]string{
	"markdown": "text/markdown; charset=utf-8",
	"html":     "text/html; charset=utf-8",
}

// ForFormat returns the serializer for name ("markdown", "md" or "html").
func ForFormat(name string) (Serializer, error) {
	s, ok := serializers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
	return s, nil
}

// Canonical returns the canonical name of a format alias.
func Canonical(name string) string {
	name = strings.ToLower(name)
	if name == "md" {
		return "markdown"
	}
	return name
}

// ContentType returns the MIME type for a supported format.
func ContentType(name string) string {
	if ct, ok := contentTypes[Canonical(name)]; ok {
		return ct
	}
	return "text/plain; charset=utf-8"
}

// Extension returns the file extension, with dot, for a format.
func Extension(name string) string {
	if Canonical(name) == "html" {
		return ".html"
	}
	return ".md"
}

// Formats lists the canonical format names.
func Formats() []string {
	out := make([]string, 0, len(contentTypes))
	for name := range contentTypes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
