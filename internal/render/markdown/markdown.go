// Package markdown serializes document trees as CommonMark with GFM tables,
// task lists, strikethrough, footnotes and definition lists.
package markdown

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dgallion1/docshift/internal/doctree"
)

// Options control marker choice. Zero values select the defaults.
type Options struct {
	BulletMarker   string // "-", "*" or "+"
	EmphasisMarker string // "*" or "_"
	CodeFence      string // "```" or "~~~"
	// BackslashBreaks writes hard line breaks as "\" instead of two spaces.
	BackslashBreaks bool
}

func (o Options) withDefaults() Options {
	if o.BulletMarker == "" {
		o.BulletMarker = "-"
	}
	if o.EmphasisMarker == "" {
		o.EmphasisMarker = "*"
	}
	if o.CodeFence == "" {
		o.CodeFence = "```"
	}
	return o
}

// optionsFrom accepts Options, *Options or a map as decoded from YAML or JSON.
// Anything else yields the defaults.
func optionsFrom(v any) Options {
	switch t := v.(type) {
	case Options:
		return t.withDefaults()
	case *Options:
		if t != nil {
			return t.withDefaults()
		}
	case map[string]any:
		var o Options
		o.BulletMarker, _ = t["bullet_marker"].(string)
		o.EmphasisMarker, _ = t["emphasis_marker"].(string)
		o.CodeFence, _ = t["code_fence"].(string)
		o.BackslashBreaks, _ = t["backslash_breaks"].(bool)
		return o.withDefaults()
	}
	return Options{}.withDefaults()
}

// Serializer implements pipeline.Serializer.
type Serializer struct{}

// Serialize renders doc. An empty document renders as the empty string.
func (Serializer) Serialize(doc *doctree.Document, options any) (string, error) {
	if doc == nil {
		return "", nil
	}
	w := &writer{opts: optionsFrom(options)}
	out := w.blocks(doc.Children)
	if out == "" {
		return "", nil
	}
	return out + "\n", nil
}

// Render is Serializer{}.Serialize with opts.
func Render(doc *doctree.Document, opts Options) string {
	out, _ := Serializer{}.Serialize(doc, opts)
	return out
}

type writer struct {
	opts Options
}

// blocks renders block children separated by blank lines. Runs of inline
// nodes are rendered as a single paragraph.
func (w *writer) blocks(nodes []doctree.Node) string {
	var parts []string
	var run []doctree.Node
	flush := func() {
		if len(run) > 0 {
			if s := w.inline(run); s != "" {
				parts = append(parts, s)
			}
			run = nil
		}
	}
	for _, n := range nodes {
		if n.Kind().IsInline() {
			run = append(run, n)
			continue
		}
		flush()
		if s := w.block(n); s != "" {
			parts = append(parts, s)
		}
	}
	flush()
	return strings.Join(parts, "\n\n")
}

func (w *writer) block(n doctree.Node) string {
	switch t := n.(type) {
	case *doctree.Heading:
		level := min(max(t.Level, 1), 6)
		return strings.Repeat("#", level) + " " + singleLine(w.inline(t.Children))
	case *doctree.Paragraph:
		return w.inline(t.Children)
	case *doctree.List:
		return w.list(t)
	case *doctree.Table:
		return w.table(t)
	case *doctree.CodeBlock:
		return w.codeBlock(t)
	case *doctree.BlockQuote:
		inner := w.blocks(t.Children)
		if inner == "" {
			return ">"
		}
		return indent(inner, "> ", "> ")
	case *doctree.ThematicBreak:
		return "---"
	case *doctree.DefinitionList:
		return w.definitions(t)
	case *doctree.FootnoteDefinition:
		return indent(w.blocks(t.Children), "[^"+t.Label+"]: ", "    ")
	case *doctree.RawBlock:
		if passThrough(t.Format) {
			return strings.TrimRight(t.Content, "\n")
		}
		return ""
	case *doctree.ListItem, *doctree.TableRow, *doctree.TableCell:
		return w.blocks(doctree.Children(t))
	}
	return ""
}

func (w *writer) list(l *doctree.List) string {
	start := l.Start
	if start == 0 {
		start = 1
	}
	sep := "\n\n"
	if l.Tight {
		sep = "\n"
	}
	items := make([]string, 0, len(l.Items))
	for i, item := range l.Items {
		marker := w.opts.BulletMarker
		if l.Ordered {
			marker = strconv.Itoa(start+i) + "."
		}
		body := w.blocks(item.Children)
		if item.Checked != nil {
			box := "[ ] "
			if *item.Checked {
				box = "[x] "
			}
			body = box + body
		}
		pad := strings.Repeat(" ", len(marker)+1)
		items = append(items, indent(body, marker+" ", pad))
	}
	return strings.Join(items, sep)
}

func (w *writer) table(t *doctree.Table) string {
	if len(t.Rows) == 0 {
		return ""
	}
	cols := 0
	for _, r := range t.Rows {
		cols = max(cols, len(r.Cells))
	}
	if cols == 0 {
		return ""
	}

	row := func(r *doctree.TableRow) string {
		cells := make([]string, cols)
		for i := range cols {
			if i < len(r.Cells) {
				cells[i] = w.cell(r.Cells[i])
			}
		}
		return "| " + strings.Join(cells, " | ") + " |"
	}

	header := t.Rows[0]
	lines := []string{row(header)}
	delims := make([]string, cols)
	for i := range cols {
		align := doctree.AlignNone
		if i < len(header.Cells) {
			align = header.Cells[i].Align
		}
		switch align {
		case doctree.AlignLeft:
			delims[i] = ":---"
		case doctree.AlignCenter:
			delims[i] = ":---:"
		case doctree.AlignRight:
			delims[i] = "---:"
		default:
			delims[i] = "---"
		}
	}
	lines = append(lines, "| "+strings.Join(delims, " | ")+" |")
	for _, r := range t.Rows[1:] {
		lines = append(lines, row(r))
	}
	out := strings.Join(lines, "\n")
	if t.Caption != "" {
		out += "\n\n" + escapeText(t.Caption)
	}
	return out
}

func (w *writer) cell(c *doctree.TableCell) string {
	var parts []string
	for _, n := range c.Children {
		var s string
		if n.Kind().IsInline() {
			s = w.inline([]doctree.Node{n})
		} else if p, ok := n.(*doctree.Paragraph); ok {
			s = w.inline(p.Children)
		} else {
			s = escapeText(doctree.PlainText(n))
		}
		if s != "" {
			parts = append(parts, s)
		}
	}
	s := singleLine(strings.Join(parts, " "))
	return strings.ReplaceAll(s, "|", `\|`)
}

func (w *writer) codeBlock(c *doctree.CodeBlock) string {
	fence := w.opts.CodeFence
	ch := fence[:1]
	if n := longestRun(c.Content, ch[0]); n >= len(fence) {
		fence = strings.Repeat(ch, n+1)
	}
	content := strings.TrimRight(c.Content, "\n")
	if content == "" {
		return fence + c.Language + "\n" + fence
	}
	return fence + c.Language + "\n" + content + "\n" + fence
}

func (w *writer) definitions(dl *doctree.DefinitionList) string {
	var entries []string
	for _, item := range dl.Items {
		var b strings.Builder
		if item.Term != nil {
			b.WriteString(singleLine(w.fragment(item.Term)))
		}
		for _, d := range item.Descriptions {
			b.WriteString("\n")
			b.WriteString(indent(w.fragment(d), ": ", "  "))
		}
		entries = append(entries, b.String())
	}
	return strings.Join(entries, "\n\n")
}

// fragment renders a node that may be block or inline.
func (w *writer) fragment(n doctree.Node) string {
	if n.Kind().IsInline() {
		return w.inline([]doctree.Node{n})
	}
	return w.block(n)
}

func (w *writer) inline(nodes []doctree.Node) string {
	var b strings.Builder
	for _, n := range nodes {
		w.writeInline(&b, n)
	}
	return b.String()
}

func (w *writer) writeInline(b *strings.Builder, n doctree.Node) {
	switch t := n.(type) {
	case *doctree.Text:
		b.WriteString(escapeText(t.Content))
	case *doctree.Strong:
		b.WriteString("**" + w.inline(t.Children) + "**")
	case *doctree.Emphasis:
		m := w.opts.EmphasisMarker
		b.WriteString(m + w.inline(t.Children) + m)
	case *doctree.Underline:
		b.WriteString("<u>" + w.inline(t.Children) + "</u>")
	case *doctree.Strikethrough:
		b.WriteString("~~" + w.inline(t.Children) + "~~")
	case *doctree.Subscript:
		b.WriteString("<sub>" + w.inline(t.Children) + "</sub>")
	case *doctree.Superscript:
		b.WriteString("<sup>" + w.inline(t.Children) + "</sup>")
	case *doctree.Link:
		fmt.Fprintf(b, "[%s](%s%s)", w.inline(t.Children), destination(t.URL), title(t.Title))
	case *doctree.Image:
		fmt.Fprintf(b, "![%s](%s%s)", escapeText(t.Alt), destination(t.URL), title(t.Title))
	case *doctree.Code:
		b.WriteString(codeSpan(t.Content))
	case *doctree.LineBreak:
		switch {
		case t.Soft:
			b.WriteString("\n")
		case w.opts.BackslashBreaks:
			b.WriteString("\\\n")
		default:
			b.WriteString("  \n")
		}
	case *doctree.FootnoteReference:
		b.WriteString("[^" + t.Label + "]")
	case *doctree.InlineMath:
		b.WriteString("$" + t.Content + "$")
	case *doctree.RawInline:
		if passThrough(t.Format) {
			b.WriteString(t.Content)
		}
	default:
		b.WriteString(escapeText(doctree.PlainText(n)))
	}
}

func passThrough(format string) bool {
	switch strings.ToLower(format) {
	case "", "markdown", "md", "html":
		return true
	}
	return false
}

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
)

func escapeText(s string) string {
	return textEscaper.Replace(s)
}

func destination(url string) string {
	if strings.ContainsAny(url, " ()<>") {
		return "<" + strings.NewReplacer("<", "%3C", ">", "%3E").Replace(url) + ">"
	}
	return url
}

func title(t string) string {
	if t == "" {
		return ""
	}
	return ` "` + strings.ReplaceAll(t, `"`, `\"`) + `"`
}

func codeSpan(s string) string {
	fence := strings.Repeat("`", longestRun(s, '`')+1)
	if strings.HasPrefix(s, "`") || strings.HasSuffix(s, "`") {
		return fence + " " + s + " " + fence
	}
	return fence + s + fence
}

func longestRun(s string, c byte) int {
	best, cur := 0, 0
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			cur++
			best = max(best, cur)
		} else {
			cur = 0
		}
	}
	return best
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "  \n", " ")), " ")
}

// indent prefixes the first line with first and the others with rest.
// Blank lines get rest without its trailing spaces.
func indent(s, first, rest string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		p := rest
		if i == 0 {
			p = first
		}
		if l == "" && i > 0 {
			lines[i] = strings.TrimRight(p, " ")
			continue
		}
		lines[i] = p + l
	}
	return strings.Join(lines, "\n")
}
