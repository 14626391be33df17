package parser

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/dgallion1/docshift/internal/doctree"
)

// MarkdownParser handles Markdown files using goldmark with the GFM,
// definition list and footnote extensions. A leading YAML front matter
// block is merged into the document metadata.
type MarkdownParser struct{}

var md = goldmark.New(goldmark.WithExtensions(
	extension.GFM,
	extension.DefinitionList,
	extension.Footnote,
))

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	meta, body, offset := splitFrontMatter(src)

	doc := newDocument("markdown", filename)
	for k, v := range meta {
		doc.Metadata[k] = v
	}
	if t, ok := doc.Metadata["title"]; ok {
		if _, isString := t.(string); !isString {
			doc.Metadata["title"] = fmt.Sprint(t)
		}
	}
	doc.Metadata["source_format"] = "markdown"

	root := md.Parser().Parse(text.NewReader(body))
	c := &mdConverter{src: body, starts: lineStarts(body), offset: offset}
	doc.Children = c.blocks(root)
	return doc, nil
}

// splitFrontMatter strips a "---" delimited YAML mapping from the top of src.
// offset is the number of lines removed. Anything that is not a YAML mapping
// is left in the body.
func splitFrontMatter(src []byte) (meta map[string]any, body []byte, offset int) {
	if !bytes.HasPrefix(src, []byte("---\n")) && !bytes.HasPrefix(src, []byte("---\r\n")) {
		return nil, src, 0
	}
	lines := bytes.SplitAfter(src, []byte("\n"))
	for i := 1; i < len(lines); i++ {
		l := string(bytes.TrimRight(lines[i], "\r\n"))
		if l != "---" && l != "..." {
			continue
		}
		if err := yaml.Unmarshal(bytes.Join(lines[1:i], nil), &meta); err != nil {
			return nil, src, 0
		}
		return meta, bytes.Join(lines[i+1:], nil), i + 1
	}
	return nil, src, 0
}

func lineStarts(src []byte) []int {
	starts := []int{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

type mdConverter struct {
	src    []byte
	starts []int
	offset int
}

// line returns the 1-based source line of a block, searching into the first
// child of containers that carry no lines themselves.
func (c *mdConverter) line(n ast.Node) int {
	for n != nil && n.Type() == ast.TypeBlock {
		if lines := n.Lines(); lines.Len() > 0 {
			off := lines.At(0).Start
			return sort.Search(len(c.starts), func(i int) bool { return c.starts[i] > off }) + c.offset
		}
		n = n.FirstChild()
	}
	return 0
}

func (c *mdConverter) lineText(n ast.Node) string {
	var b bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(c.src))
	}
	return b.String()
}

func (c *mdConverter) blocks(parent ast.Node) []doctree.Node {
	var out []doctree.Node
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		out = append(out, c.block(n)...)
	}
	return out
}

func (c *mdConverter) block(n ast.Node) []doctree.Node {
	var out doctree.Node
	switch t := n.(type) {
	case *ast.Heading:
		out = &doctree.Heading{Level: t.Level, Children: c.inlines(t)}
	case *ast.Paragraph, *ast.TextBlock:
		children := c.inlines(n)
		if len(children) == 0 {
			return nil
		}
		out = &doctree.Paragraph{Children: children}
	case *ast.ThematicBreak:
		out = &doctree.ThematicBreak{}
	case *ast.FencedCodeBlock:
		out = &doctree.CodeBlock{Language: string(t.Language(c.src)), Content: c.lineText(t)}
	case *ast.CodeBlock:
		out = &doctree.CodeBlock{Content: c.lineText(t)}
	case *ast.Blockquote:
		out = &doctree.BlockQuote{Children: c.blocks(t)}
	case *ast.List:
		out = c.list(t)
	case *ast.HTMLBlock:
		content := c.lineText(t)
		if t.HasClosure() {
			content += string(t.ClosureLine.Value(c.src))
		}
		out = &doctree.RawBlock{Format: "html", Content: content}
	case *east.Table:
		out = c.table(t)
	case *east.DefinitionList:
		out = c.definitions(t)
	case *east.FootnoteList:
		return c.blocks(t)
	case *east.Footnote:
		out = &doctree.FootnoteDefinition{Label: strconv.Itoa(t.Index), Children: c.blocks(t)}
	default:
		return c.blocks(n)
	}
	out.Common().Source = source("markdown", 0, c.line(n), "")
	return []doctree.Node{out}
}

func (c *mdConverter) list(l *ast.List) *doctree.List {
	out := &doctree.List{Ordered: l.IsOrdered(), Tight: l.IsTight}
	if out.Ordered {
		out.Start = l.Start
	}
	for n := l.FirstChild(); n != nil; n = n.NextSibling() {
		item := &doctree.ListItem{Base: doctree.Base{Source: source("markdown", 0, c.line(n), "")}}
		if box := taskBox(n); box != nil {
			checked := box.IsChecked
			item.Checked = &checked
		}
		item.Children = c.blocks(n)
		out.Items = append(out.Items, item)
	}
	return out
}

func taskBox(item ast.Node) *east.TaskCheckBox {
	first := item.FirstChild()
	if first == nil {
		return nil
	}
	box, _ := first.FirstChild().(*east.TaskCheckBox)
	return box
}

func (c *mdConverter) table(t *east.Table) *doctree.Table {
	out := &doctree.Table{}
	for r := t.FirstChild(); r != nil; r = r.NextSibling() {
		row := &doctree.TableRow{Base: doctree.Base{Source: source("markdown", 0, c.line(r), "")}}
		_, row.Header = r.(*east.TableHeader)
		for cell := r.FirstChild(); cell != nil; cell = cell.NextSibling() {
			tc, ok := cell.(*east.TableCell)
			if !ok {
				continue
			}
			row.Cells = append(row.Cells, &doctree.TableCell{
				Align:    alignment(tc.Alignment),
				Children: c.inlines(tc),
			})
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

func alignment(a east.Alignment) doctree.Alignment {
	switch a {
	case east.AlignLeft:
		return doctree.AlignLeft
	case east.AlignCenter:
		return doctree.AlignCenter
	case east.AlignRight:
		return doctree.AlignRight
	}
	return doctree.AlignNone
}

func (c *mdConverter) definitions(dl *east.DefinitionList) *doctree.DefinitionList {
	out := &doctree.DefinitionList{}
	for n := dl.FirstChild(); n != nil; n = n.NextSibling() {
		switch n.(type) {
		case *east.DefinitionTerm:
			out.Items = append(out.Items, doctree.DefinitionItem{
				Term: &doctree.Paragraph{Children: c.inlines(n)},
			})
		case *east.DefinitionDescription:
			if len(out.Items) == 0 {
				out.Items = append(out.Items, doctree.DefinitionItem{})
			}
			last := &out.Items[len(out.Items)-1]
			// One description per block keeps each description a single node.
			last.Descriptions = append(last.Descriptions, c.blocks(n)...)
		}
	}
	return out
}

func (c *mdConverter) inlines(parent ast.Node) []doctree.Node {
	var out []doctree.Node
	trimNext := false
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		switch t := n.(type) {
		case *ast.Text:
			s := string(t.Segment.Value(c.src))
			if trimNext {
				s = strings.TrimLeft(s, " \t")
				trimNext = false
			}
			out = appendText(out, s)
			switch {
			case t.HardLineBreak():
				out = append(out, &doctree.LineBreak{})
			case t.SoftLineBreak():
				out = append(out, &doctree.LineBreak{Soft: true})
			}
		case *ast.String:
			out = appendText(out, string(t.Value))
		case *ast.CodeSpan:
			out = append(out, &doctree.Code{Content: c.plain(t)})
		case *ast.Emphasis:
			if t.Level >= 2 {
				out = append(out, &doctree.Strong{Children: c.inlines(t)})
			} else {
				out = append(out, &doctree.Emphasis{Children: c.inlines(t)})
			}
		case *ast.Link:
			out = append(out, &doctree.Link{
				URL:      string(t.Destination),
				Title:    string(t.Title),
				Children: c.inlines(t),
			})
		case *ast.Image:
			out = append(out, &doctree.Image{
				URL:   string(t.Destination),
				Title: string(t.Title),
				Alt:   c.plain(t),
			})
		case *ast.AutoLink:
			out = append(out, &doctree.Link{
				URL:      string(t.URL(c.src)),
				Children: []doctree.Node{&doctree.Text{Content: string(t.Label(c.src))}},
			})
		case *ast.RawHTML:
			var b bytes.Buffer
			for i := 0; i < t.Segments.Len(); i++ {
				seg := t.Segments.At(i)
				b.Write(seg.Value(c.src))
			}
			out = append(out, &doctree.RawInline{Format: "html", Content: b.String()})
		case *east.Strikethrough:
			out = append(out, &doctree.Strikethrough{Children: c.inlines(t)})
		case *east.FootnoteLink:
			out = append(out, &doctree.FootnoteReference{Label: strconv.Itoa(t.Index)})
		case *east.TaskCheckBox:
			trimNext = true
		case *east.FootnoteBacklink:
		default:
			out = append(out, c.inlines(n)...)
		}
	}
	return out
}

// plain returns the concatenated text below n.
func (c *mdConverter) plain(n ast.Node) string {
	var b bytes.Buffer
	_ = ast.Walk(n, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(c.src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}
