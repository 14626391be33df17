package hooks

import (
	"fmt"

	"github.com/dgallion1/docshift/internal/doctree"
)

// Outcome is the result of one hook call. When Failure is set the other
// fields are meaningless and the hook's input is kept.
type Outcome struct {
	Node     doctree.Node
	Document *doctree.Document
	Output   string
	Failure  error
}

// Failed reports whether the hook errored or panicked.
func (o Outcome) Failed() bool { return o.Failure != nil }

// HookError describes a recoverable hook failure.
type HookError struct {
	Key string
	Err error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("hook %s: %v", e.Key, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

func callElement(key string, fn ElementFunc, n doctree.Node, ctx *Context) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Failure: &HookError{Key: key, Err: fmt.Errorf("panic: %v", r)}}
		}
	}()
	node, err := fn(n, ctx)
	if err != nil {
		return Outcome{Failure: &HookError{Key: key, Err: err}}
	}
	return Outcome{Node: node}
}

func callDocument(key string, fn DocumentFunc, doc *doctree.Document, ctx *Context) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Failure: &HookError{Key: key, Err: fmt.Errorf("panic: %v", r)}}
		}
	}()
	d, err := fn(doc, ctx)
	if err != nil {
		return Outcome{Failure: &HookError{Key: key, Err: err}}
	}
	return Outcome{Document: d}
}

func callRender(fn RenderFunc, output string, ctx *Context) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Failure: &HookError{Key: PostRender, Err: fmt.Errorf("panic: %v", r)}}
		}
	}()
	s, err := fn(output, ctx)
	if err != nil {
		return Outcome{Failure: &HookError{Key: PostRender, Err: err}}
	}
	return Outcome{Output: s}
}

func (m *Manager) warn(key string, err error) {
	m.log.Warn("hook failed", "key", key, "error", err)
}

// RunDocument runs the pre_render or post_ast hooks in order, rebinding the
// context document after each. A hook returning nil is ErrDocumentRemoved.
func (m *Manager) RunDocument(key string, doc *doctree.Document, ctx *Context) (*doctree.Document, error) {
	for _, h := range m.hooks[key] {
		out := callDocument(key, h.(DocumentFunc), doc, ctx)
		if out.Failed() {
			m.warn(key, out.Failure)
			continue
		}
		if out.Document == nil {
			return nil, fmt.Errorf("%s: %w", key, ErrDocumentRemoved)
		}
		doc = out.Document
		ctx.SetDocument(doc)
	}
	return doc, nil
}

// RunRender runs the post_render hooks over the serialized output.
func (m *Manager) RunRender(output string, ctx *Context) string {
	for _, h := range m.hooks[PostRender] {
		out := callRender(h.(RenderFunc), output, ctx)
		if out.Failed() {
			m.warn(PostRender, out.Failure)
			continue
		}
		output = out.Output
	}
	return output
}

// Walk runs the element hooks over doc top-down and returns the rebuilt
// document. Hooks receive copies, so doc itself is never modified.
func (m *Manager) Walk(doc *doctree.Document, ctx *Context) (*doctree.Document, error) {
	if !m.hasElementHooks() {
		return doc, nil
	}

	ctx.push(doc)
	defer ctx.pop()

	key := doctree.KindDocument.String()
	var cur doctree.Node = doc
	for _, h := range m.hooks[key] {
		out := callElement(key, h.(ElementFunc), doctree.CopyNode(cur), ctx)
		if out.Failed() {
			m.warn(key, out.Failure)
			continue
		}
		if out.Node == nil {
			return nil, fmt.Errorf("%s hook: %w", key, ErrDocumentRemoved)
		}
		d, ok := out.Node.(*doctree.Document)
		if !ok {
			m.warn(key, fmt.Errorf("%w: %s returned for the document root", doctree.ErrSlotMismatch, out.Node.Kind()))
			continue
		}
		cur = d
		ctx.replaceTop(d)
		ctx.SetDocument(d)
	}

	rebuilt, _, err := doctree.MapChildren(cur, func(child doctree.Node, slot doctree.Slot) (doctree.Node, error) {
		return m.visit(child, slot, ctx)
	})
	if err != nil {
		return nil, err
	}
	return rebuilt.(*doctree.Document), nil
}

// visit fires the hooks of n and descends into whatever node is in place
// afterwards. A nil node means n was deleted.
func (m *Manager) visit(n doctree.Node, slot doctree.Slot, ctx *Context) (doctree.Node, error) {
	ctx.push(n)
	defer ctx.pop()

	key := n.Kind().String()
	cur := n
	for _, h := range m.hooks[key] {
		out := callElement(key, h.(ElementFunc), doctree.CopyNode(cur), ctx)
		if out.Failed() {
			m.warn(key, out.Failure)
			continue
		}
		if out.Node == nil {
			return nil, nil
		}
		if !slot.Accepts(out.Node) {
			m.warn(key, fmt.Errorf("%w: %s in %s slot", doctree.ErrSlotMismatch, out.Node.Kind(), slot))
			continue
		}
		cur = out.Node
		ctx.replaceTop(cur)
	}

	rebuilt, collapsed, err := doctree.MapChildren(cur, func(child doctree.Node, slot doctree.Slot) (doctree.Node, error) {
		return m.visit(child, slot, ctx)
	})
	if err != nil {
		return nil, err
	}
	if collapsed {
		return nil, nil
	}
	return rebuilt, nil
}
