// Package rewrite implements rule-driven recursive rewriting of document trees.
//
// A Rewriter consults its Rule for every node, top-down. The rule either
// passes (the node is rebuilt with rewritten children), replaces the node, or
// deletes it. Deletions propagate upward through the collapse rules of
// doctree.MapChildren.
package rewrite

import (
	"errors"
	"fmt"

	"github.com/dgallion1/docshift/internal/doctree"
)

// ErrRootDeleted is returned when a rule deletes the document root.
var ErrRootDeleted = errors.New("rewrite deleted the document root")

type action int

const (
	actionPass action = iota
	actionReplace
	actionDelete
)

// Result is the outcome of visiting one node.
type Result struct {
	action action
	node   doctree.Node
}

// Pass asks for the default behavior: rebuild the node with rewritten children.
func Pass() Result { return Result{action: actionPass} }

// Replace substitutes n for the visited node. n is used as-is; rules that
// also want n's children rewritten should build it from Descend.
func Replace(n doctree.Node) Result {
	if n == nil {
		return Delete()
	}
	return Result{action: actionReplace, node: n}
}

// Delete removes the visited node from its parent.
func Delete() Result { return Result{action: actionDelete} }

// Deleted reports whether the result removes the node.
func (r Result) Deleted() bool { return r.action == actionDelete }

// Node returns the resulting node, or nil for Pass and Delete.
func (r Result) Node() doctree.Node { return r.node }

// Rule decides what happens to a single node.
type Rule func(r *Rewriter, n doctree.Node) (Result, error)

// Rewriter applies a Rule over a whole tree. The input tree is never modified:
// every node of the output is a fresh copy.
type Rewriter struct {
	name string
	rule Rule
}

// New returns a Rewriter named name. A nil rule copies the tree unchanged.
func New(name string, rule Rule) *Rewriter {
	return &Rewriter{name: name, rule: rule}
}

// Name returns the rewriter's name.
func (r *Rewriter) Name() string { return r.name }

// Rewrite visits n: the rule runs first and, if it passes, n is rebuilt by
// Descend.
func (r *Rewriter) Rewrite(n doctree.Node) (Result, error) {
	if r.rule != nil {
		res, err := r.rule(r, n)
		if err != nil {
			return Result{}, err
		}
		switch res.action {
		case actionDelete:
			return res, nil
		case actionReplace:
			if res.node == n {
				// Never hand back a node of the input tree.
				return Replace(doctree.Clone(n)), nil
			}
			return res, nil
		}
	}
	return r.Descend(n)
}

// Descend rebuilds n with each child passed through Rewrite. It returns
// Delete when every child of a non-empty container was deleted.
func (r *Rewriter) Descend(n doctree.Node) (Result, error) {
	out, collapsed, err := doctree.MapChildren(n, func(child doctree.Node, _ doctree.Slot) (doctree.Node, error) {
		res, err := r.Rewrite(child)
		if err != nil {
			return nil, err
		}
		return res.node, nil
	})
	if err != nil {
		return Result{}, err
	}
	if collapsed {
		return Delete(), nil
	}
	return Result{action: actionReplace, node: out}, nil
}

// Transform rewrites a whole document.
func (r *Rewriter) Transform(doc *doctree.Document) (*doctree.Document, error) {
	res, err := r.Rewrite(doc)
	if err != nil {
		return nil, err
	}
	if res.Deleted() {
		return nil, ErrRootDeleted
	}
	out, ok := res.node.(*doctree.Document)
	if !ok {
		return nil, fmt.Errorf("%w: root replaced by %s", doctree.ErrSlotMismatch, res.node.Kind())
	}
	return out, nil
}

// KindRule returns a rule that applies fn to nodes of the given kinds and
// passes every other node.
func KindRule(fn Rule, kinds ...doctree.Kind) Rule {
	set := make(map[doctree.Kind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return func(r *Rewriter, n doctree.Node) (Result, error) {
		if !set[n.Kind()] {
			return Pass(), nil
		}
		return fn(r, n)
	}
}
