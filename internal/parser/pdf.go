package parser

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/dgallion1/docshift/internal/doctree"
)

// PDFParser handles PDF files. It tries the Go library first,
// then falls back to pdftotext if available.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	// ledongthuc/pdf opens by path, so the input is spooled to a temp file.
	tmp, err := os.CreateTemp("", "docshift-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	text, err := extractPDFText(tmpPath)
	if err != nil && p.FallbackPdftotext {
		text, err = extractPdftotext(tmpPath)
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	doc := newDocument("pdf", filename)
	pages := splitPages(text)
	for i, page := range pages {
		if strings.TrimSpace(page) == "" {
			continue
		}
		num := i + 1
		doc.Children = append(doc.Children, &doctree.Heading{
			Base:     doctree.Base{Source: source("pdf", num, 0, "")},
			Level:    2,
			Children: []doctree.Node{&doctree.Text{Content: fmt.Sprintf("Page %d", num)}},
		})
		doc.Children = append(doc.Children, pageParagraphs(page, num)...)
	}
	doctree.SetMeta(doc, "pages", len(pages))
	return doc, nil
}

// pageParagraphs splits page text on blank lines.
func pageParagraphs(page string, num int) []doctree.Node {
	var out []doctree.Node
	for _, block := range strings.Split(strings.ReplaceAll(page, "\r\n", "\n"), "\n\n") {
		var lines []string
		for _, l := range strings.Split(block, "\n") {
			if l = strings.TrimSpace(l); l != "" {
				lines = append(lines, l)
			}
		}
		if len(lines) == 0 {
			continue
		}
		out = append(out, &doctree.Paragraph{
			Base:     doctree.Base{Source: source("pdf", num, 0, "")},
			Children: textLines(strings.Join(lines, "\n")),
		})
	}
	return out
}

func extractPDFText(path string) (string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		if i > 1 {
			buf.WriteString("\f")
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(text)
	}
	return buf.String(), nil
}

func extractPdftotext(path string) (string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}

// splitPages splits on form feeds, which both extractors emit between pages.
func splitPages(text string) []string {
	text = strings.TrimSuffix(text, "\f")
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return strings.Split(text, "\f")
}
