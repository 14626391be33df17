package rewrite

import (
	"errors"
	"testing"

	"github.com/dgallion1/docshift/internal/doctree"
)

func urlDoc(link, img string) *doctree.Document {
	return &doctree.Document{Children: []doctree.Node{
		&doctree.Paragraph{Children: []doctree.Node{
			&doctree.Link{URL: link, Children: []doctree.Node{&doctree.Text{Content: "x"}}},
			&doctree.Image{URL: img},
		}},
	}}
}

func urls(doc *doctree.Document) (link, img string) {
	p := doc.Children[0].(*doctree.Paragraph)
	return p.Children[0].(*doctree.Link).URL, p.Children[1].(*doctree.Image).URL
}

func TestCheckScheme(t *testing.T) {
	allowed := map[string]bool{"http": true, "https": true, "mailto": true}
	tests := []struct {
		in     string
		unsafe bool
	}{
		{"", false},
		{"#top", false},
		{"/abs/path", false},
		{"relative/page.md", false},
		{"page.md?q=a:b", false},
		{"https://example.com", false},
		{"MAILTO:me@example.com", false},
		{"javascript:alert(1)", true},
		{"JavaScript:alert(1)", true},
		{"java\tscript:alert(1)", true},
		{" data:text/html;base64,xx", true},
		{"ftp://files", true},
	}
	for _, tt := range tests {
		err := CheckScheme(tt.in, allowed)
		if got := errors.Is(err, ErrUnsafeURL); got != tt.unsafe {
			t.Errorf("CheckScheme(%q) unsafe = %v, want %v (err %v)", tt.in, got, tt.unsafe, err)
		}
	}
}

func TestURLRewriter_BaseAndMapping(t *testing.T) {
	mapper, err := BaseURLMapper("https://docs.example/guide/", map[string]string{"old.md": "new.md"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := NewURLRewriter(mapper, URLOptions{}).Transform(urlDoc("intro.md", "img/a.png"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	link, img := urls(out)
	if link != "https://docs.example/guide/intro.md" {
		t.Errorf("unexpected link %q", link)
	}
	if img != "https://docs.example/guide/img/a.png" {
		t.Errorf("unexpected image %q", img)
	}

	out, _ = NewURLRewriter(mapper, URLOptions{}).Transform(urlDoc("old.md", "#frag"))
	if link, img = urls(out); link != "new.md" || img != "#frag" {
		t.Errorf("unexpected urls %q %q", link, img)
	}
}

func TestURLRewriter_LinksOnly(t *testing.T) {
	upper := func(s string) string { return "https://cdn.example/" + s }
	out, err := NewURLRewriter(upper, URLOptions{Links: true}).Transform(urlDoc("a", "b"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link, img := urls(out); link != "https://cdn.example/a" || img != "b" {
		t.Errorf("unexpected urls %q %q", link, img)
	}
}

func TestURLRewriter_RejectsUnsafe(t *testing.T) {
	identity := func(s string) string { return s }
	doc := urlDoc("javascript:alert(1)", "a.png")
	if _, err := NewURLRewriter(identity, URLOptions{}).Transform(doc); !errors.Is(err, ErrUnsafeURL) {
		t.Fatalf("expected ErrUnsafeURL, got %v", err)
	}
	out, err := NewURLRewriter(identity, URLOptions{SkipValidation: true}).Transform(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link, _ := urls(out); link != "javascript:alert(1)" {
		t.Errorf("expected url to pass through, got %q", link)
	}
	if _, err := NewURLRewriter(identity, URLOptions{AllowedSchemes: []string{"javascript"}}).Transform(doc); err != nil {
		t.Errorf("expected custom allow-list to accept javascript:, got %v", err)
	}
}

func TestBaseURLMapper_InvalidBase(t *testing.T) {
	if _, err := BaseURLMapper("://bad", nil); err == nil {
		t.Error("expected error for invalid base url")
	}
}
