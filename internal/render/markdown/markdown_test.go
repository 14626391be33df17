package markdown

import (
	"testing"

	"github.com/dgallion1/docshift/internal/doctree"
)

func txt(s string) doctree.Node { return &doctree.Text{Content: s} }

func para(nodes ...doctree.Node) *doctree.Paragraph {
	return &doctree.Paragraph{Children: nodes}
}

func TestSerialize_Empty(t *testing.T) {
	for _, doc := range []*doctree.Document{nil, {}, {Children: []doctree.Node{&doctree.RawBlock{Format: "latex", Content: `\newpage`}}}} {
		got, err := Serializer{}.Serialize(doc, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "" {
			t.Errorf("expected empty output, got %q", got)
		}
	}
}

func TestSerialize_Document(t *testing.T) {
	doc := &doctree.Document{Children: []doctree.Node{
		&doctree.Heading{Level: 1, Children: []doctree.Node{txt("Title")}},
		para(txt("Some "), &doctree.Strong{Children: []doctree.Node{txt("bold")}},
			txt(" and "), &doctree.Emphasis{Children: []doctree.Node{txt("em")}}, txt(".")),
		&doctree.List{Tight: true, Items: []*doctree.ListItem{
			{Children: []doctree.Node{para(txt("one"))}},
			{Children: []doctree.Node{para(txt("two"))}},
		}},
		&doctree.CodeBlock{Language: "go", Content: "fmt.Println()\n"},
		&doctree.Table{Rows: []*doctree.TableRow{
			{Header: true, Cells: []*doctree.TableCell{
				{Align: doctree.AlignLeft, Children: []doctree.Node{txt("a")}},
				{Children: []doctree.Node{txt("b")}},
			}},
			{Cells: []*doctree.TableCell{
				{Children: []doctree.Node{txt("1")}},
				{Children: []doctree.Node{txt("2|3")}},
			}},
		}},
	}}

	want := "# Title\n\n" +
		"Some **bold** and *em*.\n\n" +
		"- one\n- two\n\n" +
		"```go\nfmt.Println()\n```\n\n" +
		"| a | b |\n| :--- | --- |\n| 1 | 2\\|3 |\n"

	got, err := Serializer{}.Serialize(doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("unexpected output:\n got: %q\nwant: %q", got, want)
	}
}

func TestSerialize_Blocks(t *testing.T) {
	checked := true
	tests := []struct {
		name string
		node doctree.Node
		want string
	}{
		{"blockquote", &doctree.BlockQuote{Children: []doctree.Node{para(txt("a")), para(txt("b"))}}, "> a\n>\n> b"},
		{"loose ordered list", &doctree.List{Ordered: true, Start: 3, Items: []*doctree.ListItem{
			{Children: []doctree.Node{para(txt("x")), para(txt("y"))}},
			{Children: []doctree.Node{para(txt("z"))}},
		}}, "3. x\n\n   y\n\n4. z"},
		{"task item", &doctree.List{Tight: true, Items: []*doctree.ListItem{
			{Checked: &checked, Children: []doctree.Node{para(txt("done"))}},
		}}, "- [x] done"},
		{"definition list", &doctree.DefinitionList{Items: []doctree.DefinitionItem{
			{Term: txt("Term"), Descriptions: []doctree.Node{para(txt("Def"))}},
		}}, "Term\n: Def"},
		{"footnote", &doctree.FootnoteDefinition{Label: "1", Children: []doctree.Node{para(txt("Note."))}}, "[^1]: Note."},
		{"fence grows", &doctree.CodeBlock{Content: "```\nx\n```"}, "````\n```\nx\n```\n````"},
		{"thematic break", &doctree.ThematicBreak{}, "---"},
		{"raw html", &doctree.RawBlock{Format: "html", Content: "<div>x</div>\n"}, "<div>x</div>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Render(&doctree.Document{Children: []doctree.Node{tt.node}}, Options{})
			if got != tt.want+"\n" {
				t.Errorf("got %q, want %q", got, tt.want+"\n")
			}
		})
	}
}

func TestSerialize_Inline(t *testing.T) {
	tests := []struct {
		name string
		node doctree.Node
		want string
	}{
		{"escape", txt("a_b*c"), `a\_b\*c`},
		{"link", &doctree.Link{URL: "https://go.dev", Title: "Go", Children: []doctree.Node{txt("go")}}, `[go](https://go.dev "Go")`},
		{"link with space", &doctree.Link{URL: "a b.md", Children: []doctree.Node{txt("x")}}, "[x](<a b.md>)"},
		{"image", &doctree.Image{URL: "a.png", Alt: "alt"}, "![alt](a.png)"},
		{"code", &doctree.Code{Content: "x"}, "`x`"},
		{"code with backtick", &doctree.Code{Content: "a`b"}, "``a`b``"},
		{"strike", &doctree.Strikethrough{Children: []doctree.Node{txt("x")}}, "~~x~~"},
		{"footnote ref", &doctree.FootnoteReference{Label: "n"}, "[^n]"},
		{"math", &doctree.InlineMath{Content: "x^2"}, "$x^2$"},
		{"sup", &doctree.Superscript{Children: []doctree.Node{txt("2")}}, "<sup>2</sup>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Render(&doctree.Document{Children: []doctree.Node{para(tt.node)}}, Options{})
			if got != tt.want+"\n" {
				t.Errorf("got %q, want %q", got, tt.want+"\n")
			}
		})
	}
}

func TestSerialize_Options(t *testing.T) {
	doc := &doctree.Document{Children: []doctree.Node{
		&doctree.List{Tight: true, Items: []*doctree.ListItem{{Children: []doctree.Node{
			para(&doctree.Emphasis{Children: []doctree.Node{txt("a")}}, &doctree.LineBreak{}, txt("b")),
		}}}},
	}}

	fromMap, err := Serializer{}.Serialize(doc, map[string]any{"bullet_marker": "*", "emphasis_marker": "_", "backslash_breaks": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "* _a_\\\n  b\n"; fromMap != want {
		t.Errorf("map options: got %q, want %q", fromMap, want)
	}

	// Unknown option types fall back to defaults.
	def, _ := Serializer{}.Serialize(doc, 42)
	if want := "- *a*  \n  b\n"; def != want {
		t.Errorf("default options: got %q, want %q", def, want)
	}
}
