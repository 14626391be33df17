package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/docshift/internal/doctree"
)

// TextParser handles plain text files. Blank-line separated blocks become
// paragraphs; line breaks inside a block are kept as soft breaks.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	doc := newDocument("text", filename)

	var current strings.Builder
	lineNo, start := 0, 0
	flush := func() {
		if current.Len() == 0 {
			return
		}
		doc.Children = append(doc.Children, &doctree.Paragraph{
			Base:     doctree.Base{Source: source("text", 0, start, "")},
			Children: textLines(current.String()),
		})
		current.Reset()
	}

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		} else {
			start = lineNo
		}
		current.WriteString(line)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return doc, nil
}
