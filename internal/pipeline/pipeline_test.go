package pipeline

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/dgallion1/docshift/internal/doctree"
	"github.com/dgallion1/docshift/internal/hooks"
	"github.com/dgallion1/docshift/internal/rewrite"
	"github.com/dgallion1/docshift/internal/transforms"
	"github.com/google/go-cmp/cmp"
)

type failingTransform struct {
	panics bool
	nilDoc bool
}

func (f *failingTransform) Name() string { return "failing" }

func (f *failingTransform) Transform(doc *doctree.Document) (*doctree.Document, error) {
	switch {
	case f.panics:
		panic("broken rewrite")
	case f.nilDoc:
		return nil, nil
	}
	return nil, errors.New("rewrite failed")
}

func testRegistry(t *testing.T) *transforms.Registry {
	t.Helper()
	r := transforms.NewRegistry()
	for _, md := range []transforms.Metadata{
		{Name: "add-prefix-a", Priority: 10, Factory: prefixFactory("add-prefix-a", "A")},
		{Name: "add-prefix-b", Priority: 20, Factory: prefixFactory("add-prefix-b", "B")},
		{Name: "needs-a", Priority: 5, Dependencies: []string{"add-prefix-a"}, Factory: prefixFactory("needs-a", "N")},
	} {
		if err := r.Register(md); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	return r
}

func prefixFactory(name, prefix string) transforms.Factory {
	return func(transforms.Params) (transforms.Transform, error) {
		return prefixText(name, prefix), nil
	}
}

// prefixText is a rewriter that prepends prefix to every text node.
func prefixText(name, prefix string) *rewrite.Rewriter {
	return rewrite.New(name, rewrite.KindRule(func(_ *rewrite.Rewriter, n doctree.Node) (rewrite.Result, error) {
		t := n.(*doctree.Text)
		return rewrite.Replace(&doctree.Text{Content: prefix + t.Content}), nil
	}, doctree.KindText))
}

func names(ts []transforms.Transform) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Name()
	}
	return out
}

func sampleDoc() *doctree.Document {
	return &doctree.Document{
		Base: doctree.Base{Metadata: map[string]any{"title": "Sample"}},
		Children: []doctree.Node{
			&doctree.Heading{Level: 1, Children: []doctree.Node{&doctree.Text{Content: "Title"}}},
			&doctree.Paragraph{Children: []doctree.Node{
				&doctree.Text{Content: "See "},
				&doctree.Link{URL: "https://old.example", Children: []doctree.Node{&doctree.Text{Content: "link"}}},
				&doctree.Image{URL: "a.png", Alt: "a"},
			}},
		},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestResolve_InterleavedNamesAndInstances(t *testing.T) {
	inst1 := prefixText("instance-1", "1")
	inst2 := prefixText("instance-2", "2")
	p, err := New(Config{
		Transforms: []any{"add-prefix-a", inst1, "add-prefix-b", inst2},
		Registry:   testRegistry(t),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := p.Resolve()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"add-prefix-a", "instance-1", "add-prefix-b", "instance-2"}
	if diff := cmp.Diff(want, names(got)); diff != "" {
		t.Errorf("resolve order mismatch (-want +got):\n%s", diff)
	}
	if got[1] != transforms.Transform(inst1) || got[3] != transforms.Transform(inst2) {
		t.Error("expected instances to be kept as given")
	}
}

func TestResolve_FirstOccurrenceWins(t *testing.T) {
	inst := prefixText("instance", "I")
	p, err := New(Config{
		Transforms: []any{"needs-a", inst, "add-prefix-a", inst, "needs-a", "add-prefix-b"},
		Registry:   testRegistry(t),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := p.Resolve()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"add-prefix-a", "needs-a", "instance", "add-prefix-b"}
	if diff := cmp.Diff(want, names(got)); diff != "" {
		t.Errorf("resolve order mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_RequestParams(t *testing.T) {
	p, err := New(Config{Transforms: []any{
		transforms.Request{Name: "heading-offset", Params: transforms.Params{"offset": 2}},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc := &doctree.Document{Children: []doctree.Node{
		&doctree.Heading{Level: 1, Children: []doctree.Node{&doctree.Text{Content: "x"}}},
	}}
	out, err := p.Apply(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lvl := out.Children[0].(*doctree.Heading).Level; lvl != 3 {
		t.Errorf("expected level 3, got %d", lvl)
	}
}

func TestNew_InvalidTransformSpecification(t *testing.T) {
	var nilRewriter *rewrite.Rewriter
	for _, entry := range []any{123, nil, "", transforms.Request{}, nilRewriter} {
		if _, err := New(Config{Transforms: []any{entry}}); !errors.Is(err, ErrInvalidTransformSpecification) {
			t.Errorf("entry %#v: expected ErrInvalidTransformSpecification, got %v", entry, err)
		}
	}
}

func TestRender_Errors(t *testing.T) {
	if _, err := Render(sampleDoc(), nil, []any{123}, nil); !errors.Is(err, ErrInvalidTransformSpecification) {
		t.Errorf("expected ErrInvalidTransformSpecification, got %v", err)
	}
	if _, err := Render(sampleDoc(), nil, []any{"nonexistent"}, nil); !errors.Is(err, transforms.ErrUnknownTransform) {
		t.Errorf("expected ErrUnknownTransform, got %v", err)
	}
}

func TestRender_EmptyDocument(t *testing.T) {
	got, err := Render(&doctree.Document{}, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestApply_PreRenderSeesRewrittenDocument(t *testing.T) {
	images := -1
	hm := hooks.Map{hooks.PreRender: {hooks.DocumentFunc(func(d *doctree.Document, ctx *hooks.Context) (*doctree.Document, error) {
		images = doctree.Count(ctx.Document(), doctree.KindImage)
		return d, nil
	})}}
	if _, err := Apply(sampleDoc(), []any{"remove-images"}, hm); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if images != 0 {
		t.Errorf("expected pre_render to observe 0 images, got %d", images)
	}
}

func TestApply_PreRenderRemovingDocument(t *testing.T) {
	hm := hooks.Map{hooks.PreRender: {hooks.DocumentFunc(func(*doctree.Document, *hooks.Context) (*doctree.Document, error) {
		return nil, nil
	})}}
	if _, err := Apply(sampleDoc(), nil, hm); !errors.Is(err, ErrDocumentRemoved) {
		t.Fatalf("expected ErrDocumentRemoved, got %v", err)
	}
}

func TestApply_PostASTRemovingDocument(t *testing.T) {
	hm := hooks.Map{hooks.PostAST: {hooks.DocumentFunc(func(*doctree.Document, *hooks.Context) (*doctree.Document, error) {
		return nil, nil
	})}}
	if _, err := Render(sampleDoc(), nil, nil, hm); !errors.Is(err, ErrDocumentRemoved) {
		t.Fatalf("expected ErrDocumentRemoved, got %v", err)
	}
}

func TestPostRender_OnlyInRenderMode(t *testing.T) {
	calls := 0
	var seen string
	hm := hooks.Map{hooks.PostRender: {hooks.RenderFunc(func(out string, _ *hooks.Context) (string, error) {
		calls++
		seen = out
		return strings.ToUpper(out), nil
	})}}

	if _, err := Apply(sampleDoc(), nil, hm); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected apply to skip post_render, got %d calls", calls)
	}

	out, err := Render(sampleDoc(), nil, nil, hm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly one post_render call, got %d", calls)
	}
	if !strings.HasPrefix(seen, "# Title") {
		t.Errorf("expected post_render to receive serialized markdown, got %q", seen)
	}
	if out != strings.ToUpper(seen) {
		t.Errorf("expected hook output to be returned, got %q", out)
	}
}

func TestExecute_StageOrder(t *testing.T) {
	var order []string
	record := func(stage string) hooks.DocumentFunc {
		return func(d *doctree.Document, _ *hooks.Context) (*doctree.Document, error) {
			order = append(order, stage)
			return d, nil
		}
	}
	p, err := New(Config{
		Transforms: []any{rewrite.New("mark", func(*rewrite.Rewriter, doctree.Node) (rewrite.Result, error) {
			order = append(order, "transform")
			return rewrite.Pass(), nil
		})},
		Hooks: hooks.Map{
			hooks.PostAST:   {record("post_ast")},
			hooks.PreRender: {record("pre_render")},
			"document": {hooks.ElementFunc(func(n doctree.Node, _ *hooks.Context) (doctree.Node, error) {
				order = append(order, "element")
				return n, nil
			})},
			hooks.PostRender: {hooks.RenderFunc(func(s string, _ *hooks.Context) (string, error) {
				order = append(order, "post_render")
				return s, nil
			})},
		},
		Serializer: SerializerFunc(func(*doctree.Document, any) (string, error) {
			order = append(order, "serialize")
			return "out", nil
		}),
		Logger: quietLogger(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The mark rule passes every node of a three-node tree.
	doc := &doctree.Document{Children: []doctree.Node{&doctree.Paragraph{Children: []doctree.Node{&doctree.Text{Content: "x"}}}}}
	if _, err := p.Execute(doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"transform", "transform", "transform", "pre_render", "element", "post_ast", "serialize", "post_render"}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("stage order mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_TransformFailuresAreFatal(t *testing.T) {
	for _, tr := range []*failingTransform{{}, {panics: true}, {nilDoc: true}} {
		p, err := New(Config{Transforms: []any{tr}, Logger: quietLogger()})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, err = p.Execute(sampleDoc())
		var te *TransformError
		if !errors.As(err, &te) {
			t.Fatalf("expected *TransformError, got %v", err)
		}
		if te.Name != "failing" {
			t.Errorf("expected transform name in error, got %q", te.Name)
		}
		if tr.nilDoc && !errors.Is(err, ErrDocumentRemoved) {
			t.Errorf("expected nil result to wrap ErrDocumentRemoved, got %v", err)
		}
	}
}

func TestExecute_HookFailuresAreRecoverable(t *testing.T) {
	var logs bytes.Buffer
	p, err := New(Config{
		Hooks: hooks.Map{"link": {hooks.ElementFunc(func(doctree.Node, *hooks.Context) (doctree.Node, error) {
			panic("bad hook")
		})}},
		Logger: slog.New(slog.NewTextHandler(&logs, nil)),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := p.Execute(sampleDoc())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "[link](https://old.example)") {
		t.Errorf("expected link to be rendered unchanged, got %q", out)
	}
	if !strings.Contains(logs.String(), "bad hook") {
		t.Errorf("expected hook failure to be logged, got %s", logs.String())
	}
}

func TestApply_InputUntouched(t *testing.T) {
	doc := sampleDoc()
	hm := hooks.Map{"text": {hooks.ElementFunc(func(n doctree.Node, _ *hooks.Context) (doctree.Node, error) {
		n.(*doctree.Text).Content = "mutated"
		return n, nil
	})}}
	if _, err := Apply(doc, []any{"heading-offset"}, hm); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(sampleDoc(), doc); diff != "" {
		t.Errorf("input document changed (-want +got):\n%s", diff)
	}
}

func TestApply_DefinitionDescriptionRewrite(t *testing.T) {
	drop := rewrite.New("drop", rewrite.KindRule(func(_ *rewrite.Rewriter, n doctree.Node) (rewrite.Result, error) {
		if doctree.PlainText(n) == "drop" {
			return rewrite.Delete(), nil
		}
		return rewrite.Pass(), nil
	}, doctree.KindParagraph))
	para := func(s string) doctree.Node {
		return &doctree.Paragraph{Children: []doctree.Node{&doctree.Text{Content: s}}}
	}
	doc := &doctree.Document{Children: []doctree.Node{
		&doctree.DefinitionList{Items: []doctree.DefinitionItem{
			{Term: &doctree.Text{Content: "alone"}, Descriptions: []doctree.Node{para("drop")}},
			{Term: &doctree.Text{Content: "pair"}, Descriptions: []doctree.Node{para("drop"), para("keep")}},
		}},
	}}
	out, err := Apply(doc, []any{drop}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dl := out.Children[0].(*doctree.DefinitionList)
	if len(dl.Items) != 1 || len(dl.Items[0].Descriptions) != 1 {
		t.Fatalf("unexpected definition list: %+v", dl.Items)
	}
	if got := doctree.PlainText(dl.Items[0].Descriptions[0]); got != "keep" {
		t.Errorf("expected remaining description %q, got %q", "keep", got)
	}
}

func TestContext_SharedStateAcrossHooks(t *testing.T) {
	hm := hooks.Map{
		"text": {hooks.ElementFunc(func(n doctree.Node, ctx *hooks.Context) (doctree.Node, error) {
			ctx.Set("texts", hooks.Value(ctx, "texts", 0)+1)
			return n, nil
		})},
		hooks.PostAST: {hooks.DocumentFunc(func(d *doctree.Document, ctx *hooks.Context) (*doctree.Document, error) {
			doctree.SetMeta(d, "texts", hooks.Value(ctx, "texts", 0))
			if title, _ := ctx.Meta("title"); title != "Sample" {
				return nil, errors.New("missing metadata snapshot")
			}
			return d, nil
		})},
	}
	out, err := Apply(sampleDoc(), nil, hm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := doctree.Meta(out, "texts"); got != 3 {
		t.Errorf("expected 3 texts counted, got %v", got)
	}
}
