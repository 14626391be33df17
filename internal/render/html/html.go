// Package html serializes document trees as HTML.
package html

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dgallion1/docshift/internal/doctree"
)

// Options control the output shape.
type Options struct {
	// Fragment renders only the body content, without the html, head and body
	// elements.
	Fragment bool
	// Title overrides the document "title" metadata in the head.
	Title string
}

func optionsFrom(v any) Options {
	switch t := v.(type) {
	case Options:
		return t
	case *Options:
		if t != nil {
			return *t
		}
	case map[string]any:
		var o Options
		o.Fragment, _ = t["fragment"].(bool)
		o.Title, _ = t["title"].(string)
		return o
	}
	return Options{}
}

// Serializer implements pipeline.Serializer.
type Serializer struct{}

// Serialize renders doc. An empty document renders as the empty string.
func (Serializer) Serialize(doc *doctree.Document, options any) (string, error) {
	if doc == nil || len(doc.Children) == 0 {
		return "", nil
	}
	opts := optionsFrom(options)

	var nodes []*xhtml.Node
	for _, n := range doc.Children {
		nodes = append(nodes, convert(n)...)
	}

	var buf bytes.Buffer
	if opts.Fragment {
		for _, n := range nodes {
			if err := xhtml.Render(&buf, n); err != nil {
				return "", fmt.Errorf("render html: %w", err)
			}
			buf.WriteByte('\n')
		}
		return buf.String(), nil
	}

	title := opts.Title
	if title == "" {
		title, _ = doctree.Meta(doc, "title").(string)
	}
	root := &xhtml.Node{Type: xhtml.DocumentNode}
	root.AppendChild(&xhtml.Node{Type: xhtml.DoctypeNode, Data: "html"})
	htmlEl := element(atom.Html)
	head := element(atom.Head)
	head.AppendChild(element(atom.Meta, "charset", "utf-8"))
	if title != "" {
		t := element(atom.Title)
		t.AppendChild(text(title))
		head.AppendChild(t)
	}
	body := element(atom.Body)
	for _, n := range nodes {
		body.AppendChild(n)
	}
	htmlEl.AppendChild(head)
	htmlEl.AppendChild(body)
	root.AppendChild(htmlEl)

	if err := xhtml.Render(&buf, root); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	buf.WriteByte('\n')
	return buf.String(), nil
}

func element(a atom.Atom, attrs ...string) *xhtml.Node {
	n := &xhtml.Node{Type: xhtml.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(attrs); i += 2 {
		if attrs[i+1] == "" {
			continue
		}
		n.Attr = append(n.Attr, xhtml.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

func text(s string) *xhtml.Node {
	return &xhtml.Node{Type: xhtml.TextNode, Data: s}
}

func appendAll(parent *xhtml.Node, children []doctree.Node) *xhtml.Node {
	for _, c := range children {
		for _, n := range convert(c) {
			parent.AppendChild(n)
		}
	}
	return parent
}

// convert maps one tree node to zero or more html nodes.
func convert(n doctree.Node) []*xhtml.Node {
	switch t := n.(type) {
	case *doctree.Heading:
		level := min(max(t.Level, 1), 6)
		a := atom.Lookup([]byte("h" + strconv.Itoa(level)))
		id, _ := doctree.Meta(t, "id").(string)
		return one(appendAll(element(a, "id", id), t.Children))
	case *doctree.Paragraph:
		return one(appendAll(element(atom.P), t.Children))
	case *doctree.List:
		return one(list(t))
	case *doctree.ListItem:
		return one(listItem(t))
	case *doctree.Table:
		return one(table(t))
	case *doctree.CodeBlock:
		code := element(atom.Code)
		if t.Language != "" {
			code.Attr = append(code.Attr, xhtml.Attribute{Key: "class", Val: "language-" + t.Language})
		}
		code.AppendChild(text(t.Content))
		pre := element(atom.Pre)
		pre.AppendChild(code)
		return one(pre)
	case *doctree.BlockQuote:
		return one(appendAll(element(atom.Blockquote), t.Children))
	case *doctree.ThematicBreak:
		return one(element(atom.Hr))
	case *doctree.DefinitionList:
		dl := element(atom.Dl)
		for _, item := range t.Items {
			if item.Term != nil {
				dl.AppendChild(appendAll(element(atom.Dt), []doctree.Node{item.Term}))
			}
			for _, d := range item.Descriptions {
				dl.AppendChild(appendAll(element(atom.Dd), []doctree.Node{d}))
			}
		}
		return one(dl)
	case *doctree.FootnoteDefinition:
		div := element(atom.Div, "class", "footnote", "id", "fn-"+t.Label)
		return one(appendAll(div, t.Children))
	case *doctree.RawBlock:
		return raw(t.Format, t.Content)
	case *doctree.Text:
		return one(text(t.Content))
	case *doctree.Strong:
		return one(appendAll(element(atom.Strong), t.Children))
	case *doctree.Emphasis:
		return one(appendAll(element(atom.Em), t.Children))
	case *doctree.Underline:
		return one(appendAll(element(atom.U), t.Children))
	case *doctree.Strikethrough:
		return one(appendAll(element(atom.Del), t.Children))
	case *doctree.Subscript:
		return one(appendAll(element(atom.Sub), t.Children))
	case *doctree.Superscript:
		return one(appendAll(element(atom.Sup), t.Children))
	case *doctree.Link:
		return one(appendAll(element(atom.A, "href", t.URL, "title", t.Title), t.Children))
	case *doctree.Image:
		img := element(atom.Img, "src", t.URL, "title", t.Title)
		img.Attr = append(img.Attr, xhtml.Attribute{Key: "alt", Val: t.Alt})
		return one(img)
	case *doctree.Code:
		code := element(atom.Code)
		code.AppendChild(text(t.Content))
		return one(code)
	case *doctree.LineBreak:
		if t.Soft {
			return one(text("\n"))
		}
		return one(element(atom.Br))
	case *doctree.FootnoteReference:
		sup := element(atom.Sup, "class", "footnote-ref")
		a := element(atom.A, "href", "#fn-"+t.Label)
		a.AppendChild(text(t.Label))
		sup.AppendChild(a)
		return one(sup)
	case *doctree.InlineMath:
		span := element(atom.Span, "class", "math inline")
		span.AppendChild(text(t.Content))
		return one(span)
	case *doctree.RawInline:
		return raw(t.Format, t.Content)
	}
	return nil
}

func one(n *xhtml.Node) []*xhtml.Node { return []*xhtml.Node{n} }

func raw(format, content string) []*xhtml.Node {
	if !strings.EqualFold(format, "html") {
		return nil
	}
	return one(&xhtml.Node{Type: xhtml.RawNode, Data: content})
}

func list(l *doctree.List) *xhtml.Node {
	el := element(atom.Ul)
	if l.Ordered {
		el = element(atom.Ol)
		if l.Start > 1 {
			el.Attr = append(el.Attr, xhtml.Attribute{Key: "start", Val: strconv.Itoa(l.Start)})
		}
	}
	for _, item := range l.Items {
		el.AppendChild(listItem(item))
	}
	return el
}

func listItem(item *doctree.ListItem) *xhtml.Node {
	li := element(atom.Li)
	if item.Checked != nil {
		box := element(atom.Input, "type", "checkbox", "disabled", "disabled")
		if *item.Checked {
			box.Attr = append(box.Attr, xhtml.Attribute{Key: "checked", Val: "checked"})
		}
		li.AppendChild(box)
		li.AppendChild(text(" "))
	}
	return appendAll(li, item.Children)
}

func table(t *doctree.Table) *xhtml.Node {
	tbl := element(atom.Table)
	if t.Caption != "" {
		c := element(atom.Caption)
		c.AppendChild(text(t.Caption))
		tbl.AppendChild(c)
	}
	var thead, tbody *xhtml.Node
	for _, r := range t.Rows {
		tr := element(atom.Tr)
		cellAtom := atom.Td
		if r.Header {
			cellAtom = atom.Th
		}
		for _, c := range r.Cells {
			style := ""
			if c.Align != doctree.AlignNone {
				style = "text-align: " + string(c.Align)
			}
			tr.AppendChild(appendAll(element(cellAtom, "style", style), c.Children))
		}
		if r.Header {
			if thead == nil {
				thead = element(atom.Thead)
				tbl.AppendChild(thead)
			}
			thead.AppendChild(tr)
			continue
		}
		if tbody == nil {
			tbody = element(atom.Tbody)
			tbl.AppendChild(tbody)
		}
		tbody.AppendChild(tr)
	}
	return tbl
}
