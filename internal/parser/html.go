package parser

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dgallion1/docshift/internal/doctree"
)

// HTMLParser handles HTML files. The <body> is converted structurally;
// <title> and a few <meta> entries become document metadata.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	doc := newDocument("html", filename)
	if title := findTitle(root); title != "" {
		doc.Metadata["title"] = title
	}
	collectMeta(root, doc.Metadata)

	body := findElement(root, atom.Body)
	if body == nil {
		body = root
	}
	doc.Children = htmlBlocks(body)
	return doc, nil
}

var blockAtoms = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Details: true, atom.Div: true, atom.Dl: true, atom.Fieldset: true,
	atom.Figure: true, atom.Figcaption: true, atom.Footer: true, atom.Form: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Header: true, atom.Hr: true, atom.Main: true, atom.Nav: true, atom.Ol: true,
	atom.P: true, atom.Pre: true, atom.Section: true, atom.Table: true, atom.Ul: true,
	atom.Script: true, atom.Style: true, atom.Noscript: true, atom.Template: true,
	atom.Summary: true,
}

// skipped elements carry no document content.
var skipped = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Noscript: true, atom.Template: true,
	atom.Nav: true, atom.Footer: true, atom.Header: true, atom.Head: true,
}

func htmlBlocks(parent *html.Node) []doctree.Node {
	var out, run []doctree.Node
	flush := func() {
		if inlines := trimInlines(run); len(inlines) > 0 {
			out = append(out, &doctree.Paragraph{Children: inlines})
		}
		run = nil
	}
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && blockAtoms[c.DataAtom] {
			flush()
			out = append(out, htmlBlock(c)...)
			continue
		}
		run = appendInlines(run, htmlInline(c))
	}
	flush()
	return out
}

func htmlBlock(n *html.Node) []doctree.Node {
	if skipped[n.DataAtom] {
		return nil
	}
	var out doctree.Node
	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		h := &doctree.Heading{Level: headingLevel(n.Data), Children: trimInlines(htmlInlines(n))}
		if id := attr(n, "id"); id != "" {
			doctree.SetMeta(h, "id", id)
		}
		out = h
	case atom.P:
		inlines := trimInlines(htmlInlines(n))
		if len(inlines) == 0 {
			return nil
		}
		out = &doctree.Paragraph{Children: inlines}
	case atom.Ul, atom.Ol:
		out = htmlList(n)
	case atom.Pre:
		out = htmlPre(n)
	case atom.Blockquote:
		out = &doctree.BlockQuote{Children: htmlBlocks(n)}
	case atom.Hr:
		out = &doctree.ThematicBreak{}
	case atom.Table:
		out = htmlTable(n)
	case atom.Dl:
		out = htmlDefinitions(n)
	default:
		return htmlBlocks(n)
	}
	out.Common().Source = source("html", 0, 0, attr(n, "id"))
	return []doctree.Node{out}
}

func htmlList(n *html.Node) *doctree.List {
	list := &doctree.List{Ordered: n.DataAtom == atom.Ol, Tight: true}
	if list.Ordered {
		list.Start = 1
		if s, err := strconv.Atoi(attr(n, "start")); err == nil {
			list.Start = s
		}
	}
	for li := n.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.DataAtom != atom.Li {
			continue
		}
		item := &doctree.ListItem{Base: doctree.Base{Source: source("html", 0, 0, attr(li, "id"))}}
		if box := findElement(li, atom.Input); box != nil && attr(box, "type") == "checkbox" {
			checked := hasAttr(box, "checked")
			item.Checked = &checked
		}
		if findElement(li, atom.P) != nil {
			list.Tight = false
		}
		item.Children = htmlBlocks(li)
		list.Items = append(list.Items, item)
	}
	return list
}

func htmlPre(n *html.Node) *doctree.CodeBlock {
	block := &doctree.CodeBlock{}
	if code := findElement(n, atom.Code); code != nil {
		for _, class := range strings.Fields(attr(code, "class")) {
			if lang, ok := strings.CutPrefix(class, "language-"); ok {
				block.Language = lang
				break
			}
		}
	}
	var b strings.Builder
	rawText(n, &b)
	block.Content = b.String()
	if block.Content != "" && !strings.HasSuffix(block.Content, "\n") {
		block.Content += "\n"
	}
	return block
}

func htmlTable(n *html.Node) *doctree.Table {
	table := &doctree.Table{}
	var visit func(*html.Node, bool)
	visit = func(n *html.Node, header bool) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Caption:
				table.Caption = textContent(c)
			case atom.Thead:
				visit(c, true)
			case atom.Tbody, atom.Tfoot:
				visit(c, false)
			case atom.Tr:
				table.Rows = append(table.Rows, htmlRow(c, header))
			}
		}
	}
	visit(n, false)
	return table
}

func htmlRow(tr *html.Node, header bool) *doctree.TableRow {
	row := &doctree.TableRow{Header: header}
	allTH := true
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || (c.DataAtom != atom.Td && c.DataAtom != atom.Th) {
			continue
		}
		allTH = allTH && c.DataAtom == atom.Th
		row.Cells = append(row.Cells, &doctree.TableCell{
			Align:    cellAlign(c),
			Children: trimInlines(htmlInlines(c)),
		})
	}
	if len(row.Cells) > 0 && allTH {
		row.Header = true
	}
	return row
}

func cellAlign(n *html.Node) doctree.Alignment {
	v := strings.ToLower(attr(n, "align"))
	if v == "" {
		style := strings.ToLower(attr(n, "style"))
		if _, rest, ok := strings.Cut(style, "text-align:"); ok {
			v, _, _ = strings.Cut(rest, ";")
			v = strings.TrimSpace(v)
		}
	}
	switch v {
	case "left":
		return doctree.AlignLeft
	case "center":
		return doctree.AlignCenter
	case "right":
		return doctree.AlignRight
	}
	return doctree.AlignNone
}

func htmlDefinitions(n *html.Node) *doctree.DefinitionList {
	list := &doctree.DefinitionList{}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.Dt:
			list.Items = append(list.Items, doctree.DefinitionItem{
				Term: &doctree.Paragraph{Children: trimInlines(htmlInlines(c))},
			})
		case atom.Dd:
			if len(list.Items) == 0 {
				list.Items = append(list.Items, doctree.DefinitionItem{})
			}
			last := &list.Items[len(list.Items)-1]
			last.Descriptions = append(last.Descriptions, htmlBlocks(c)...)
		}
	}
	return list
}

func htmlInlines(parent *html.Node) []doctree.Node {
	var out []doctree.Node
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		out = appendInlines(out, htmlInline(c))
	}
	return out
}

var whitespace = regexp.MustCompile(`[ \t\r\n\f]+`)

func htmlInline(n *html.Node) []doctree.Node {
	switch n.Type {
	case html.TextNode:
		s := whitespace.ReplaceAllString(n.Data, " ")
		if s == "" {
			return nil
		}
		return []doctree.Node{&doctree.Text{Content: s}}
	case html.ElementNode:
	default:
		return nil
	}
	if skipped[n.DataAtom] {
		return nil
	}

	var out doctree.Node
	switch n.DataAtom {
	case atom.Strong, atom.B:
		out = &doctree.Strong{Children: htmlInlines(n)}
	case atom.Em, atom.I:
		out = &doctree.Emphasis{Children: htmlInlines(n)}
	case atom.U, atom.Ins:
		out = &doctree.Underline{Children: htmlInlines(n)}
	case atom.S, atom.Del, atom.Strike:
		out = &doctree.Strikethrough{Children: htmlInlines(n)}
	case atom.Sub:
		out = &doctree.Subscript{Children: htmlInlines(n)}
	case atom.Sup:
		out = &doctree.Superscript{Children: htmlInlines(n)}
	case atom.A:
		out = &doctree.Link{URL: attr(n, "href"), Title: attr(n, "title"), Children: htmlInlines(n)}
	case atom.Img:
		out = &doctree.Image{URL: attr(n, "src"), Alt: attr(n, "alt"), Title: attr(n, "title")}
	case atom.Code, atom.Kbd, atom.Samp, atom.Tt:
		var b strings.Builder
		rawText(n, &b)
		out = &doctree.Code{Content: b.String()}
	case atom.Br:
		out = &doctree.LineBreak{}
	case atom.Input:
		return nil
	case atom.Span:
		if hasClass(n, "math") {
			out = &doctree.InlineMath{Content: textContent(n)}
		} else {
			return htmlInlines(n)
		}
	default:
		return htmlInlines(n)
	}
	return []doctree.Node{out}
}

// appendInlines appends nodes to dst, merging adjacent text and collapsing the
// whitespace at the seam.
func appendInlines(dst, nodes []doctree.Node) []doctree.Node {
	for _, n := range nodes {
		t, ok := n.(*doctree.Text)
		if !ok {
			dst = append(dst, n)
			continue
		}
		s := t.Content
		if k := len(dst); k > 0 {
			if prev, ok := dst[k-1].(*doctree.Text); ok && strings.HasSuffix(prev.Content, " ") {
				s = strings.TrimLeft(s, " ")
			}
		}
		dst = appendText(dst, s)
	}
	return dst
}

// trimInlines trims the outer whitespace of an inline run and returns nil
// when nothing visible is left.
func trimInlines(nodes []doctree.Node) []doctree.Node {
	for len(nodes) > 0 {
		t, ok := nodes[0].(*doctree.Text)
		if !ok {
			break
		}
		if t.Content = strings.TrimLeft(t.Content, " "); t.Content != "" {
			break
		}
		nodes = nodes[1:]
	}
	for len(nodes) > 0 {
		last := len(nodes) - 1
		t, ok := nodes[last].(*doctree.Text)
		if !ok {
			break
		}
		if t.Content = strings.TrimRight(t.Content, " "); t.Content != "" {
			break
		}
		nodes = nodes[:last]
	}
	if len(nodes) == 0 {
		return nil
	}
	return nodes
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func rawText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		rawText(c, b)
	}
}

func textContent(n *html.Node) string {
	var b strings.Builder
	rawText(n, &b)
	return strings.TrimSpace(whitespace.ReplaceAllString(b.String(), " "))
}

func findTitle(n *html.Node) string {
	if t := findElement(n, atom.Title); t != nil {
		return textContent(t)
	}
	return ""
}

// collectMeta copies description, author and keywords <meta> entries.
func collectMeta(root *html.Node, meta map[string]any) {
	head := findElement(root, atom.Head)
	if head == nil {
		return
	}
	for c := head.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.DataAtom != atom.Meta {
			continue
		}
		switch name := strings.ToLower(attr(c, "name")); name {
		case "description", "author", "keywords":
			if content := attr(c, "content"); content != "" {
				meta[name] = content
			}
		}
	}
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}
