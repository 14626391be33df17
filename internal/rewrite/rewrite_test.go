package rewrite

import (
	"errors"
	"strings"
	"testing"

	"github.com/dgallion1/docshift/internal/doctree"
	"github.com/google/go-cmp/cmp"
)

func docWithImages() *doctree.Document {
	return &doctree.Document{
		Children: []doctree.Node{
			&doctree.Heading{Level: 1, Children: []doctree.Node{&doctree.Text{Content: "Title"}}},
			&doctree.Paragraph{Children: []doctree.Node{
				&doctree.Text{Content: "before "},
				&doctree.Image{URL: "a.png", Alt: "a"},
			}},
			// Collapses once its only child is removed.
			&doctree.Paragraph{Children: []doctree.Node{&doctree.Image{URL: "b.png"}}},
			&doctree.Paragraph{Children: []doctree.Node{
				&doctree.Link{URL: "https://x.test", Children: []doctree.Node{&doctree.Image{URL: "c.png"}}},
				&doctree.Text{Content: " after"},
			}},
		},
	}
}

func TestRemoveImages(t *testing.T) {
	doc := docWithImages()
	out, err := RemoveImages().Transform(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := doctree.Count(out, doctree.KindImage); n != 0 {
		t.Errorf("expected 0 images, got %d", n)
	}
	if n := doctree.Count(out, doctree.KindLink); n != 0 {
		t.Errorf("expected the image-only link to collapse, got %d links", n)
	}
	if len(out.Children) != 3 {
		t.Fatalf("expected image-only paragraph to be dropped, got %d children", len(out.Children))
	}
	last := out.Children[2].(*doctree.Paragraph)
	if len(last.Children) != 1 || last.Children[0].(*doctree.Text).Content != " after" {
		t.Errorf("unexpected last paragraph: %+v", last.Children)
	}

	// Input is untouched.
	if n := doctree.Count(doc, doctree.KindImage); n != 3 {
		t.Errorf("expected original to keep 3 images, got %d", n)
	}
}

func TestRewriter_NilRuleCopies(t *testing.T) {
	doc := docWithImages()
	out, err := New("copy", nil).Transform(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(doc, out); diff != "" {
		t.Fatalf("copy differs (-want +got):\n%s", diff)
	}
	if out == doc || out.Children[0] == doc.Children[0] {
		t.Error("expected fresh nodes in output")
	}
}

func TestRewriter_ReplaceSameNodeIsCloned(t *testing.T) {
	text := &doctree.Text{Content: "x"}
	doc := &doctree.Document{Children: []doctree.Node{&doctree.Paragraph{Children: []doctree.Node{text}}}}
	r := New("same", KindRule(func(_ *Rewriter, n doctree.Node) (Result, error) {
		return Replace(n), nil
	}, doctree.KindText))
	out, err := r.Transform(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := out.Children[0].(*doctree.Paragraph).Children[0]
	if got == text {
		t.Error("expected returned input node to be cloned")
	}
}

func TestRewriter_RootDeleted(t *testing.T) {
	r := New("nuke", func(*Rewriter, doctree.Node) (Result, error) { return Delete(), nil })
	_, err := r.Transform(&doctree.Document{})
	if !errors.Is(err, ErrRootDeleted) {
		t.Fatalf("expected ErrRootDeleted, got %v", err)
	}
}

func TestRewriter_RuleErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	r := New("fail", KindRule(func(*Rewriter, doctree.Node) (Result, error) {
		return Result{}, boom
	}, doctree.KindText))
	_, err := r.Transform(docWithImages())
	if !errors.Is(err, boom) {
		t.Fatalf("expected rule error, got %v", err)
	}
}

func TestRewriter_SlotMismatch(t *testing.T) {
	doc := &doctree.Document{Children: []doctree.Node{
		&doctree.List{Items: []*doctree.ListItem{{Children: []doctree.Node{&doctree.Text{Content: "a"}}}}},
	}}
	r := New("bad", KindRule(func(*Rewriter, doctree.Node) (Result, error) {
		return Replace(&doctree.Paragraph{}), nil
	}, doctree.KindListItem))
	_, err := r.Transform(doc)
	if !errors.Is(err, doctree.ErrSlotMismatch) {
		t.Fatalf("expected ErrSlotMismatch, got %v", err)
	}
}

func TestHeadingOffset(t *testing.T) {
	tests := []struct {
		offset int
		in     []int
		want   []int
	}{
		{1, []int{1, 2, 6}, []int{2, 3, 6}},
		{-2, []int{1, 3, 4}, []int{1, 1, 2}},
		{0, []int{2}, []int{2}},
	}
	for _, tt := range tests {
		doc := &doctree.Document{}
		for _, lvl := range tt.in {
			doc.Children = append(doc.Children, &doctree.Heading{Level: lvl, Children: []doctree.Node{&doctree.Text{Content: "h"}}})
		}
		out, err := HeadingOffset(tt.offset).Transform(doc)
		if err != nil {
			t.Fatalf("offset %d: unexpected error: %v", tt.offset, err)
		}
		for i, w := range tt.want {
			if got := out.Children[i].(*doctree.Heading).Level; got != w {
				t.Errorf("offset %d heading %d: expected level %d, got %d", tt.offset, i, w, got)
			}
		}
	}
}

func TestTextReplace(t *testing.T) {
	doc := &doctree.Document{Children: []doctree.Node{
		&doctree.Paragraph{Children: []doctree.Node{
			&doctree.Text{Content: "colour and colour"},
			&doctree.Code{Content: "colour"},
		}},
	}}
	out, err := TextReplace("colour", "color").Transform(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := out.Children[0].(*doctree.Paragraph)
	if got := p.Children[0].(*doctree.Text).Content; got != "color and color" {
		t.Errorf("expected replaced text, got %q", got)
	}
	if got := p.Children[1].(*doctree.Code).Content; got != "colour" {
		t.Errorf("expected code untouched, got %q", got)
	}

	re, err := TextReplacePattern(`(\w+)@example\.com`, "$1 at example")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc2 := &doctree.Document{Children: []doctree.Node{&doctree.Text{Content: "mail bob@example.com"}}}
	out2, err := re.Transform(doc2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out2.Children[0].(*doctree.Text).Content; got != "mail bob at example" {
		t.Errorf("expected regexp replacement, got %q", got)
	}

	if _, err := TextReplacePattern("(", ""); err == nil {
		t.Error("expected invalid pattern error")
	}
}

func TestHeadingIDs(t *testing.T) {
	doc := &doctree.Document{Children: []doctree.Node{
		&doctree.Heading{Level: 1, Children: []doctree.Node{&doctree.Text{Content: "Getting Started!"}}},
		&doctree.Heading{Level: 2, Children: []doctree.Node{&doctree.Text{Content: "Getting started"}}},
		&doctree.Heading{Level: 2, Base: doctree.Base{Metadata: map[string]any{"id": "custom"}}, Children: []doctree.Node{&doctree.Text{Content: "x"}}},
		&doctree.Heading{Level: 3, Children: []doctree.Node{&doctree.Text{Content: "???"}}},
	}}
	out, err := HeadingIDs{}.Transform(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"getting-started", "getting-started-1", "custom", "section"}
	for i, w := range want {
		if got := doctree.Meta(out.Children[i], "id"); got != w {
			t.Errorf("heading %d: expected id %q, got %v", i, w, got)
		}
	}
	if doctree.Meta(doc.Children[0], "id") != nil {
		t.Error("expected input headings untouched")
	}
}

func TestHeadingIDs_NoCollisions(t *testing.T) {
	heading := func(text, id string) doctree.Node {
		h := &doctree.Heading{Level: 2, Children: []doctree.Node{&doctree.Text{Content: text}}}
		if id != "" {
			doctree.SetMeta(h, "id", id)
		}
		return h
	}
	tests := []struct {
		name     string
		headings []doctree.Node
		want     []string
	}{
		{
			name:     "suffix already generated",
			headings: []doctree.Node{heading("Intro 2", ""), heading("Intro", ""), heading("Intro", ""), heading("Intro", "")},
			want:     []string{"intro-2", "intro", "intro-1", "intro-3"},
		},
		{
			name:     "explicit id later in document",
			headings: []doctree.Node{heading("Setup", ""), heading("Other", "setup")},
			want:     []string{"setup-1", "setup"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := HeadingIDs{}.Transform(&doctree.Document{Children: tt.headings})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var got []string
			for _, c := range out.Children {
				id, _ := doctree.Meta(c, "id").(string)
				got = append(got, id)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Hello World":            "hello-world",
		"  --API  v2.0 --":       "api-v2-0",
		"Café déjà vu":           "cafe-deja-vu",
		strings.Repeat("ab ", 30): strings.TrimRight(strings.Repeat("ab-", 17), "-"),
	}
	for in, want := range tests {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTableOfContents(t *testing.T) {
	doc := &doctree.Document{Children: []doctree.Node{
		&doctree.Heading{Level: 1, Children: []doctree.Node{&doctree.Text{Content: "A"}}},
		&doctree.Heading{Level: 2, Children: []doctree.Node{&doctree.Text{Content: "A1"}}},
		&doctree.Heading{Level: 4, Children: []doctree.Node{&doctree.Text{Content: "deep"}}},
		&doctree.Heading{Level: 1, Children: []doctree.Node{&doctree.Text{Content: "B"}}},
	}}
	withIDs, err := HeadingIDs{}.Transform(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := TableOfContents{Title: "Contents"}.Transform(withIDs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Children) != 6 {
		t.Fatalf("expected title + list + 4 headings, got %d children", len(out.Children))
	}
	toc := out.Children[1].(*doctree.List)
	if len(toc.Items) != 2 {
		t.Fatalf("expected 2 top-level entries, got %d", len(toc.Items))
	}
	first := toc.Items[0]
	link := first.Children[0].(*doctree.Paragraph).Children[0].(*doctree.Link)
	if link.URL != "#a" {
		t.Errorf("expected #a, got %q", link.URL)
	}
	nested := first.Children[1].(*doctree.List)
	if len(nested.Items) != 1 {
		t.Fatalf("expected 1 nested entry, got %d", len(nested.Items))
	}
	if len(toc.Items[1].Children) != 1 {
		t.Error("expected empty sub-list to be pruned")
	}
}

func TestTableOfContents_NoHeadings(t *testing.T) {
	doc := &doctree.Document{Children: []doctree.Node{&doctree.Paragraph{Children: []doctree.Node{&doctree.Text{Content: "x"}}}}}
	out, err := TableOfContents{}.Transform(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Children) != 1 {
		t.Errorf("expected document unchanged, got %d children", len(out.Children))
	}
}

func TestWordCount(t *testing.T) {
	doc := &doctree.Document{Children: []doctree.Node{
		&doctree.Paragraph{Children: []doctree.Node{&doctree.Text{Content: "one two  three"}}},
		&doctree.CodeBlock{Content: "not counted at all"},
		&doctree.Heading{Level: 1, Children: []doctree.Node{&doctree.Text{Content: "four"}}},
	}}
	out, err := WordCount{}.Transform(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := doctree.Meta(out, "word_count"); got != 4 {
		t.Errorf("expected 4 words, got %v", got)
	}
}
