package doctree

import (
	"errors"
	"fmt"
)

// ErrSlotMismatch is returned when a replacement node cannot occupy the
// position of the node it replaces (e.g. a paragraph in place of a list item).
var ErrSlotMismatch = errors.New("node does not fit its slot")

// Slot identifies the position a child occupies in its parent.
type Slot int

const (
	SlotChild Slot = iota
	SlotListItem
	SlotTableRow
	SlotTableCell
	SlotTerm
	SlotDescription
)

func (s Slot) String() string {
	switch s {
	case SlotChild:
		return "child"
	case SlotListItem:
		return "list item"
	case SlotTableRow:
		return "table row"
	case SlotTableCell:
		return "table cell"
	case SlotTerm:
		return "definition term"
	case SlotDescription:
		return "definition description"
	default:
		return "unknown"
	}
}

// Accepts reports whether n may occupy slot s.
func (s Slot) Accepts(n Node) bool {
	switch s {
	case SlotListItem:
		_, ok := n.(*ListItem)
		return ok
	case SlotTableRow:
		_, ok := n.(*TableRow)
		return ok
	case SlotTableCell:
		_, ok := n.(*TableCell)
		return ok
	default:
		_, isDoc := n.(*Document)
		return n != nil && !isDoc
	}
}

// MapFunc maps one child. Returning a nil node deletes the child.
type MapFunc func(child Node, slot Slot) (Node, error)

// MapChildren returns a copy of n (see CopyNode) whose children are the results
// of fn. Deleted children are removed. A definition entry is removed when its
// term is deleted or when all of its descriptions are deleted.
//
// collapsed reports that n had at least one child or entry and all of them were
// deleted. Table cells and documents never report collapse.
func MapChildren(n Node, fn MapFunc) (out Node, collapsed bool, err error) {
	out = CopyNode(n)
	switch t := out.(type) {
	case *Document:
		t.Children, _, err = mapNodes(t.Children, SlotChild, fn)
		return t, false, err
	case *Heading:
		t.Children, collapsed, err = mapNodes(t.Children, SlotChild, fn)
	case *Paragraph:
		t.Children, collapsed, err = mapNodes(t.Children, SlotChild, fn)
	case *List:
		t.Items, collapsed, err = mapTyped(t.Items, SlotListItem, fn)
	case *ListItem:
		t.Children, collapsed, err = mapNodes(t.Children, SlotChild, fn)
	case *Table:
		t.Rows, collapsed, err = mapTyped(t.Rows, SlotTableRow, fn)
	case *TableRow:
		t.Cells, collapsed, err = mapTyped(t.Cells, SlotTableCell, fn)
	case *TableCell:
		t.Children, _, err = mapNodes(t.Children, SlotChild, fn)
		return t, false, err
	case *BlockQuote:
		t.Children, collapsed, err = mapNodes(t.Children, SlotChild, fn)
	case *DefinitionList:
		t.Items, collapsed, err = mapDefinitions(t.Items, fn)
	case *FootnoteDefinition:
		t.Children, collapsed, err = mapNodes(t.Children, SlotChild, fn)
	case *Strong:
		t.Children, collapsed, err = mapNodes(t.Children, SlotChild, fn)
	case *Emphasis:
		t.Children, collapsed, err = mapNodes(t.Children, SlotChild, fn)
	case *Underline:
		t.Children, collapsed, err = mapNodes(t.Children, SlotChild, fn)
	case *Strikethrough:
		t.Children, collapsed, err = mapNodes(t.Children, SlotChild, fn)
	case *Subscript:
		t.Children, collapsed, err = mapNodes(t.Children, SlotChild, fn)
	case *Superscript:
		t.Children, collapsed, err = mapNodes(t.Children, SlotChild, fn)
	case *Link:
		t.Children, collapsed, err = mapNodes(t.Children, SlotChild, fn)
	default:
		// Leaf node.
		return out, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return out, collapsed, nil
}

func mapNodes(in []Node, slot Slot, fn MapFunc) ([]Node, bool, error) {
	if len(in) == 0 {
		return in, false, nil
	}
	out := make([]Node, 0, len(in))
	for _, child := range in {
		r, err := fn(child, slot)
		if err != nil {
			return nil, false, err
		}
		if r == nil {
			continue
		}
		if !slot.Accepts(r) {
			return nil, false, fmt.Errorf("%w: %s in %s", ErrSlotMismatch, r.Kind(), slot)
		}
		out = append(out, r)
	}
	return out, len(out) == 0, nil
}

func mapTyped[T Node](in []T, slot Slot, fn MapFunc) ([]T, bool, error) {
	if len(in) == 0 {
		return in, false, nil
	}
	out := make([]T, 0, len(in))
	for _, child := range in {
		r, err := fn(child, slot)
		if err != nil {
			return nil, false, err
		}
		if r == nil {
			continue
		}
		typed, ok := r.(T)
		if !ok {
			return nil, false, fmt.Errorf("%w: %s in %s", ErrSlotMismatch, r.Kind(), slot)
		}
		out = append(out, typed)
	}
	return out, len(out) == 0, nil
}

func mapDefinitions(in []DefinitionItem, fn MapFunc) ([]DefinitionItem, bool, error) {
	if len(in) == 0 {
		return in, false, nil
	}
	out := make([]DefinitionItem, 0, len(in))
	for _, item := range in {
		var entry DefinitionItem
		if item.Term != nil {
			term, err := fn(item.Term, SlotTerm)
			if err != nil {
				return nil, false, err
			}
			if term == nil {
				continue
			}
			if !SlotTerm.Accepts(term) {
				return nil, false, fmt.Errorf("%w: %s in %s", ErrSlotMismatch, term.Kind(), SlotTerm)
			}
			entry.Term = term
		}
		descs, emptied, err := mapNodes(item.Descriptions, SlotDescription, fn)
		if err != nil {
			return nil, false, err
		}
		if emptied {
			continue
		}
		entry.Descriptions = descs
		out = append(out, entry)
	}
	return out, len(out) == 0, nil
}
