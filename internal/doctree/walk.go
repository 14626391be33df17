package doctree

import "strings"

// Children returns the direct children of n in document order. For a
// definition list this is each term followed by its descriptions.
func Children(n Node) []Node {
	switch t := n.(type) {
	case *Document:
		return t.Children
	case *Heading:
		return t.Children
	case *Paragraph:
		return t.Children
	case *List:
		out := make([]Node, len(t.Items))
		for i, item := range t.Items {
			out[i] = item
		}
		return out
	case *ListItem:
		return t.Children
	case *Table:
		out := make([]Node, len(t.Rows))
		for i, row := range t.Rows {
			out[i] = row
		}
		return out
	case *TableRow:
		out := make([]Node, len(t.Cells))
		for i, cell := range t.Cells {
			out[i] = cell
		}
		return out
	case *TableCell:
		return t.Children
	case *BlockQuote:
		return t.Children
	case *DefinitionList:
		var out []Node
		for _, item := range t.Items {
			if item.Term != nil {
				out = append(out, item.Term)
			}
			out = append(out, item.Descriptions...)
		}
		return out
	case *FootnoteDefinition:
		return t.Children
	case *Strong:
		return t.Children
	case *Emphasis:
		return t.Children
	case *Underline:
		return t.Children
	case *Strikethrough:
		return t.Children
	case *Subscript:
		return t.Children
	case *Superscript:
		return t.Children
	case *Link:
		return t.Children
	}
	return nil
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the node's children.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, fn)
	}
}

// Count returns the number of nodes of kind k in the subtree rooted at n.
func Count(n Node, k Kind) int {
	count := 0
	Walk(n, func(c Node) bool {
		if c.Kind() == k {
			count++
		}
		return true
	})
	return count
}

// PlainText concatenates the text content of the subtree rooted at n.
func PlainText(n Node) string {
	var sb strings.Builder
	Walk(n, func(c Node) bool {
		switch t := c.(type) {
		case *Text:
			sb.WriteString(t.Content)
		case *Code:
			sb.WriteString(t.Content)
		case *InlineMath:
			sb.WriteString(t.Content)
		case *CodeBlock:
			sb.WriteString(t.Content)
		case *Image:
			sb.WriteString(t.Alt)
		case *LineBreak:
			sb.WriteString(" ")
		}
		return true
	})
	return sb.String()
}
