package hooks

import "github.com/dgallion1/docshift/internal/doctree"

// Context is shared by every hook of one pipeline run.
type Context struct {
	doc      *doctree.Document
	metadata map[string]any
	shared   map[string]any
	path     []doctree.Node
}

// NewContext returns a context bound to doc. The document metadata is
// snapshotted at this point.
func NewContext(doc *doctree.Document) *Context {
	ctx := &Context{shared: make(map[string]any)}
	if doc != nil {
		ctx.metadata = doctree.CopyMetadata(doc.Metadata)
	}
	ctx.doc = doc
	return ctx
}

// Document returns the current document root.
func (c *Context) Document() *doctree.Document { return c.doc }

// SetDocument rebinds the current document root.
func (c *Context) SetDocument(doc *doctree.Document) { c.doc = doc }

// Metadata returns a copy of the document metadata captured at run start.
func (c *Context) Metadata() map[string]any {
	return doctree.CopyMetadata(c.metadata)
}

// Meta returns one value of the run-start metadata snapshot.
func (c *Context) Meta(key string) (any, bool) {
	v, ok := c.metadata[key]
	return v, ok
}

// Get returns the shared value stored under key, or def.
func (c *Context) Get(key string, def any) any {
	if v, ok := c.shared[key]; ok {
		return v
	}
	return def
}

// Set stores a shared value for later hooks of the same run.
func (c *Context) Set(key string, value any) {
	c.shared[key] = value
}

// Value returns the shared value under key as a T, or def when it is absent
// or of another type.
func Value[T any](c *Context, key string, def T) T {
	if v, ok := c.shared[key].(T); ok {
		return v
	}
	return def
}

// Path returns the nodes from the root down to and including the node
// currently visited. It is empty outside of element hooks.
func (c *Context) Path() []doctree.Node {
	return append([]doctree.Node(nil), c.path...)
}

// Parent returns the closest ancestor of the current node, or nil.
func (c *Context) Parent() doctree.Node {
	if len(c.path) < 2 {
		return nil
	}
	return c.path[len(c.path)-2]
}

func (c *Context) push(n doctree.Node) { c.path = append(c.path, n) }

func (c *Context) replaceTop(n doctree.Node) { c.path[len(c.path)-1] = n }

func (c *Context) pop() { c.path = c.path[:len(c.path)-1] }
