// Package hooks provides ad-hoc observation and mutation callbacks keyed by
// pipeline stage or node kind, and the traversal that invokes them.
package hooks

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dgallion1/docshift/internal/doctree"
)

// Pipeline stage keys.
const (
	PreRender  = "pre_render"
	PostAST    = "post_ast"
	PostRender = "post_render"
)

var (
	ErrUnknownKey      = errors.New("unknown hook key")
	ErrHookKind        = errors.New("hook type does not match key")
	ErrDocumentRemoved = errors.New("hook removed the document")
)

// Hook is one of ElementFunc, DocumentFunc or RenderFunc.
type Hook interface {
	hook()
}

// ElementFunc observes or replaces a node. Returning a nil node deletes it.
type ElementFunc func(n doctree.Node, ctx *Context) (doctree.Node, error)

// DocumentFunc observes or replaces the whole document (pre_render, post_ast).
type DocumentFunc func(doc *doctree.Document, ctx *Context) (*doctree.Document, error)

// RenderFunc observes or replaces the serialized output (post_render).
type RenderFunc func(output string, ctx *Context) (string, error)

func (ElementFunc) hook()  {}
func (DocumentFunc) hook() {}
func (RenderFunc) hook()   {}

// Map is a set of hooks by key, in registration order per key.
type Map map[string][]Hook

// IsStage reports whether key names a pipeline stage.
func IsStage(key string) bool {
	return key == PreRender || key == PostAST || key == PostRender
}

// ValidKey reports whether key is a stage or a node kind name.
func ValidKey(key string) bool {
	if IsStage(key) {
		return true
	}
	_, ok := doctree.ParseKind(key)
	return ok
}

// Keys returns every valid hook key: the stages followed by the node kinds.
func Keys() []string {
	keys := []string{PreRender, PostAST, PostRender}
	for _, k := range doctree.Kinds() {
		keys = append(keys, k.String())
	}
	return keys
}

// Manager stores hooks and runs them.
type Manager struct {
	hooks map[string][]Hook
	log   *slog.Logger
}

// NewManager returns an empty manager. A nil logger uses slog.Default().
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{hooks: make(map[string][]Hook), log: log}
}

// Register appends h to the hooks for key.
func (m *Manager) Register(key string, h Hook) error {
	if !ValidKey(key) {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if h == nil {
		return fmt.Errorf("%w: nil hook for %q", ErrHookKind, key)
	}
	if err := checkHookKind(key, h); err != nil {
		return err
	}
	m.hooks[key] = append(m.hooks[key], h)
	return nil
}

func checkHookKind(key string, h Hook) error {
	var ok bool
	switch key {
	case PreRender, PostAST:
		var fn DocumentFunc
		fn, ok = h.(DocumentFunc)
		ok = ok && fn != nil
	case PostRender:
		var fn RenderFunc
		fn, ok = h.(RenderFunc)
		ok = ok && fn != nil
	default:
		var fn ElementFunc
		fn, ok = h.(ElementFunc)
		ok = ok && fn != nil
	}
	if !ok {
		return fmt.Errorf("%w: %T for %q", ErrHookKind, h, key)
	}
	return nil
}

// RegisterMap registers every hook in hm. Keys are processed in sorted order;
// the order within a key is preserved.
func (m *Manager) RegisterMap(hm Map) error {
	keys := make([]string, 0, len(hm))
	for key := range hm {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		for _, h := range hm[key] {
			if err := m.Register(key, h); err != nil {
				return err
			}
		}
	}
	return nil
}

// Hooks returns the hooks registered for key.
func (m *Manager) Hooks(key string) []Hook {
	return m.hooks[key]
}

// Has reports whether any hook is registered for key.
func (m *Manager) Has(key string) bool {
	return len(m.hooks[key]) > 0
}

// hasElementHooks reports whether any node-kind hook is registered.
func (m *Manager) hasElementHooks() bool {
	for key, hs := range m.hooks {
		if !IsStage(key) && len(hs) > 0 {
			return true
		}
	}
	return false
}
