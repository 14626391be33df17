package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/docshift/internal/doctree"
)

// DOCXParser handles .docx files. Heading styles become headings, the Title
// style sets the document title, and list paragraph styles become lists.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	parsed, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	doc := newDocument("docx", filename)
	var list *doctree.List

	for i, item := range parsed.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := docxParagraphText(para)
		if text == "" {
			continue
		}
		src := source("docx", 0, 0, fmt.Sprintf("p%d", i+1))
		style := docxStyle(para)

		if ordered, isList := docxListStyle(style); isList {
			if list == nil || list.Ordered != ordered {
				list = &doctree.List{Ordered: ordered, Tight: true}
				if ordered {
					list.Start = 1
				}
				doc.Children = append(doc.Children, list)
			}
			list.Items = append(list.Items, &doctree.ListItem{
				Base:     doctree.Base{Source: src},
				Children: []doctree.Node{&doctree.Paragraph{Children: textLines(text)}},
			})
			continue
		}
		list = nil

		if strings.EqualFold(style, "Title") {
			doc.Metadata["title"] = text
			doc.Children = append(doc.Children, &doctree.Heading{
				Base: doctree.Base{Source: src}, Level: 1, Children: textLines(text),
			})
			continue
		}
		if level := docxHeadingLevel(style); level > 0 {
			doc.Children = append(doc.Children, &doctree.Heading{
				Base: doctree.Base{Source: src}, Level: level, Children: textLines(text),
			})
			continue
		}
		doc.Children = append(doc.Children, &doctree.Paragraph{
			Base: doctree.Base{Source: src}, Children: textLines(text),
		})
	}
	return doc, nil
}

func docxStyle(para *docx.Paragraph) string {
	if para.Properties == nil || para.Properties.Style == nil {
		return ""
	}
	return para.Properties.Style.Val
}

// docxHeadingLevel accepts both "Heading2" and "heading 2" style ids.
func docxHeadingLevel(style string) int {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	if rest, ok := strings.CutPrefix(s, "heading"); ok && len(rest) == 1 && rest[0] >= '1' && rest[0] <= '6' {
		return int(rest[0] - '0')
	}
	return 0
}

func docxListStyle(style string) (ordered, isList bool) {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	switch {
	case strings.HasPrefix(s, "listnumber"):
		return true, true
	case strings.HasPrefix(s, "listbullet"), s == "listparagraph":
		return false, true
	}
	return false, false
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
