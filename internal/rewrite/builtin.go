package rewrite

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/dgallion1/docshift/internal/doctree"
)

// RemoveImages drops every image node.
func RemoveImages() *Rewriter {
	return RemoveKinds("remove-images", doctree.KindImage)
}

// RemoveKinds drops every node of the given kinds.
func RemoveKinds(name string, kinds ...doctree.Kind) *Rewriter {
	return New(name, KindRule(func(*Rewriter, doctree.Node) (Result, error) {
		return Delete(), nil
	}, kinds...))
}

// HeadingOffset shifts heading levels by offset, clamped to 1..6.
func HeadingOffset(offset int) *Rewriter {
	return New("heading-offset", KindRule(func(r *Rewriter, n doctree.Node) (Result, error) {
		res, err := r.Descend(n)
		if err != nil || res.Deleted() {
			return res, err
		}
		h := res.Node().(*doctree.Heading)
		h.Level = clampLevel(h.Level + offset)
		return res, nil
	}, doctree.KindHeading))
}

func clampLevel(level int) int {
	if level < 1 {
		return 1
	}
	if level > 6 {
		return 6
	}
	return level
}

// TextReplace replaces every occurrence of find in text nodes.
func TextReplace(find, replace string) *Rewriter {
	return textRewriter(func(s string) string {
		if find == "" {
			return s
		}
		return strings.ReplaceAll(s, find, replace)
	})
}

// TextReplaceRegexp replaces matches of re in text nodes. replace may use
// $1-style expansions.
func TextReplaceRegexp(re *regexp.Regexp, replace string) *Rewriter {
	return textRewriter(func(s string) string {
		return re.ReplaceAllString(s, replace)
	})
}

func textRewriter(fn func(string) string) *Rewriter {
	return New("text-replace", KindRule(func(_ *Rewriter, n doctree.Node) (Result, error) {
		t := doctree.CopyNode(n).(*doctree.Text)
		t.Content = fn(t.Content)
		return Replace(t), nil
	}, doctree.KindText))
}

// HeadingIDs stores a unique slug of each heading's text under the "id"
// metadata key. Headings that already carry an id keep it.
type HeadingIDs struct {
	Prefix string
}

func (h HeadingIDs) Name() string { return "heading-ids" }

func (h HeadingIDs) Transform(doc *doctree.Document) (*doctree.Document, error) {
	taken := make(map[string]bool)
	doctree.Walk(doc, func(n doctree.Node) bool {
		if n.Kind() == doctree.KindHeading {
			if id, ok := doctree.Meta(n, "id").(string); ok && id != "" {
				taken[id] = true
			}
		}
		return true
	})

	r := New(h.Name(), KindRule(func(r *Rewriter, n doctree.Node) (Result, error) {
		res, err := r.Descend(n)
		if err != nil || res.Deleted() {
			return res, err
		}
		heading := res.Node()
		if id, ok := doctree.Meta(heading, "id").(string); ok && id != "" {
			return res, nil
		}
		base := h.Prefix + Slugify(doctree.PlainText(heading))
		if base == h.Prefix {
			base = h.Prefix + "section"
		}
		id := base
		for i := 1; taken[id]; i++ {
			id = base + "-" + strconv.Itoa(i)
		}
		taken[id] = true
		doctree.SetMeta(heading, "id", id)
		return res, nil
	}, doctree.KindHeading))
	return r.Transform(doc)
}

var (
	nonSlug   = regexp.MustCompile(`[^a-z0-9-]`)
	dashRun   = regexp.MustCompile(`-+`)
	wordSplit = regexp.MustCompile(`\S+`)
)

// Slugify lowercases s, strips accents and reduces it to [a-z0-9-], at most
// 50 bytes.
func Slugify(s string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(stripMarks, s); err == nil {
		s = folded
	}
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonSlug.ReplaceAllString(s, "-")
	s = dashRun.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 50 {
		s = strings.TrimRight(s[:50], "-")
	}
	return s
}

// TableOfContents inserts a nested list of links to headings at the top of
// the document. Headings need an "id" metadata value, see HeadingIDs.
type TableOfContents struct {
	MaxLevel int    // Deepest heading level listed (default 3)
	Title    string // Optional heading emitted above the list
}

func (t TableOfContents) Name() string { return "table-of-contents" }

func (t TableOfContents) Transform(doc *doctree.Document) (*doctree.Document, error) {
	maxLevel := t.MaxLevel
	if maxLevel <= 0 {
		maxLevel = 3
	}

	type stackEntry struct {
		list  *doctree.List
		level int
	}
	root := &doctree.List{Tight: true}
	stack := []stackEntry{{list: root, level: 0}}

	doctree.Walk(doc, func(n doctree.Node) bool {
		h, ok := n.(*doctree.Heading)
		if !ok {
			return true
		}
		id, _ := doctree.Meta(h, "id").(string)
		if id == "" || h.Level > maxLevel {
			return false
		}
		for len(stack) > 1 && stack[len(stack)-1].level >= h.Level {
			stack = stack[:len(stack)-1]
		}
		item := &doctree.ListItem{Children: []doctree.Node{
			&doctree.Paragraph{Children: []doctree.Node{
				&doctree.Link{URL: "#" + id, Children: []doctree.Node{&doctree.Text{Content: doctree.PlainText(h)}}},
			}},
		}}
		parent := stack[len(stack)-1].list
		parent.Items = append(parent.Items, item)
		sub := &doctree.List{Tight: true}
		item.Children = append(item.Children, sub)
		stack = append(stack, stackEntry{list: sub, level: h.Level})
		return false
	})

	out := doctree.CloneDocument(doc)
	if len(root.Items) == 0 {
		return out, nil
	}
	pruneEmptyLists(root)

	toc := []doctree.Node{}
	if t.Title != "" {
		toc = append(toc, &doctree.Heading{
			Level:    2,
			Base:     doctree.Base{Metadata: map[string]any{"toc": true}},
			Children: []doctree.Node{&doctree.Text{Content: t.Title}},
		})
	}
	root.Metadata = map[string]any{"toc": true}
	toc = append(toc, root)
	out.Children = append(toc, out.Children...)
	return out, nil
}

func pruneEmptyLists(l *doctree.List) {
	for _, item := range l.Items {
		last := len(item.Children) - 1
		sub, ok := item.Children[last].(*doctree.List)
		if !ok {
			continue
		}
		if len(sub.Items) == 0 {
			item.Children = item.Children[:last]
			continue
		}
		pruneEmptyLists(sub)
	}
}

// WordCount records the number of words in the document under the
// "word_count" metadata key.
type WordCount struct{}

func (WordCount) Name() string { return "word-count" }

func (WordCount) Transform(doc *doctree.Document) (*doctree.Document, error) {
	words := 0
	doctree.Walk(doc, func(n doctree.Node) bool {
		switch t := n.(type) {
		case *doctree.Text:
			words += len(wordSplit.FindAllStringIndex(t.Content, -1))
		case *doctree.CodeBlock, *doctree.RawBlock:
			return false
		}
		return true
	})
	out := doctree.CloneDocument(doc)
	doctree.SetMeta(out, "word_count", words)
	return out, nil
}

// TextReplacePattern compiles pattern and returns a regexp text rewriter.
func TextReplacePattern(pattern, replace string) (*Rewriter, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	return TextReplaceRegexp(re, replace), nil
}
