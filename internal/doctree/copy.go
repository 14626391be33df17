package doctree

// CopyMetadata returns a deep copy of m. Nested maps and slices are copied so
// that mutating the result never reaches the original.
func CopyMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CopyMetadata(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out
	default:
		return v
	}
}

func (b Base) copy() Base {
	out := Base{Metadata: CopyMetadata(b.Metadata)}
	if b.Source != nil {
		src := *b.Source
		out.Source = &src
	}
	return out
}

func copyNodes(in []Node) []Node {
	if in == nil {
		return nil
	}
	return append(make([]Node, 0, len(in)), in...)
}

// CopyNode returns a shallow copy of n: a new node value with copied metadata,
// provenance and child slices, whose children are the same nodes as n's.
func CopyNode(n Node) Node {
	switch t := n.(type) {
	case nil:
		return nil
	case *Document:
		c := *t
		c.Base = t.Base.copy()
		c.Children = copyNodes(t.Children)
		return &c
	case *Heading:
		c := *t
		c.Base = t.Base.copy()
		c.Children = copyNodes(t.Children)
		return &c
	case *Paragraph:
		c := *t
		c.Base = t.Base.copy()
		c.Children = copyNodes(t.Children)
		return &c
	case *List:
		c := *t
		c.Base = t.Base.copy()
		if t.Items != nil {
			c.Items = append(make([]*ListItem, 0, len(t.Items)), t.Items...)
		}
		return &c
	case *ListItem:
		c := *t
		c.Base = t.Base.copy()
		c.Children = copyNodes(t.Children)
		if t.Checked != nil {
			v := *t.Checked
			c.Checked = &v
		}
		return &c
	case *Table:
		c := *t
		c.Base = t.Base.copy()
		if t.Rows != nil {
			c.Rows = append(make([]*TableRow, 0, len(t.Rows)), t.Rows...)
		}
		return &c
	case *TableRow:
		c := *t
		c.Base = t.Base.copy()
		if t.Cells != nil {
			c.Cells = append(make([]*TableCell, 0, len(t.Cells)), t.Cells...)
		}
		return &c
	case *TableCell:
		c := *t
		c.Base = t.Base.copy()
		c.Children = copyNodes(t.Children)
		return &c
	case *CodeBlock:
		c := *t
		c.Base = t.Base.copy()
		return &c
	case *BlockQuote:
		c := *t
		c.Base = t.Base.copy()
		c.Children = copyNodes(t.Children)
		return &c
	case *ThematicBreak:
		c := *t
		c.Base = t.Base.copy()
		return &c
	case *DefinitionList:
		c := *t
		c.Base = t.Base.copy()
		if t.Items != nil {
			c.Items = make([]DefinitionItem, len(t.Items))
			for i, item := range t.Items {
				c.Items[i] = DefinitionItem{Term: item.Term, Descriptions: copyNodes(item.Descriptions)}
			}
		}
		return &c
	case *FootnoteDefinition:
		c := *t
		c.Base = t.Base.copy()
		c.Children = copyNodes(t.Children)
		return &c
	case *RawBlock:
		c := *t
		c.Base = t.Base.copy()
		return &c
	case *Text:
		c := *t
		c.Base = t.Base.copy()
		return &c
	case *Strong:
		c := *t
		c.Base = t.Base.copy()
		c.Children = copyNodes(t.Children)
		return &c
	case *Emphasis:
		c := *t
		c.Base = t.Base.copy()
		c.Children = copyNodes(t.Children)
		return &c
	case *Underline:
		c := *t
		c.Base = t.Base.copy()
		c.Children = copyNodes(t.Children)
		return &c
	case *Strikethrough:
		c := *t
		c.Base = t.Base.copy()
		c.Children = copyNodes(t.Children)
		return &c
	case *Subscript:
		c := *t
		c.Base = t.Base.copy()
		c.Children = copyNodes(t.Children)
		return &c
	case *Superscript:
		c := *t
		c.Base = t.Base.copy()
		c.Children = copyNodes(t.Children)
		return &c
	case *Link:
		c := *t
		c.Base = t.Base.copy()
		c.Children = copyNodes(t.Children)
		return &c
	case *Image:
		c := *t
		c.Base = t.Base.copy()
		return &c
	case *Code:
		c := *t
		c.Base = t.Base.copy()
		return &c
	case *LineBreak:
		c := *t
		c.Base = t.Base.copy()
		return &c
	case *FootnoteReference:
		c := *t
		c.Base = t.Base.copy()
		return &c
	case *InlineMath:
		c := *t
		c.Base = t.Base.copy()
		return &c
	case *RawInline:
		c := *t
		c.Base = t.Base.copy()
		return &c
	}
	panic("doctree: unknown node type")
}

// Clone returns a deep copy of the subtree rooted at n.
func Clone(n Node) Node {
	if n == nil {
		return nil
	}
	out, _, err := MapChildren(n, func(child Node, _ Slot) (Node, error) {
		return Clone(child), nil
	})
	if err != nil {
		// Clone returns nodes of the same type, so slots always accept them.
		panic(err)
	}
	return out
}

// CloneDocument is Clone for a document root.
func CloneDocument(doc *Document) *Document {
	if doc == nil {
		return nil
	}
	return Clone(doc).(*Document)
}
