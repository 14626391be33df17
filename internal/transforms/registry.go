// Package transforms provides a catalog of named, reusable document
// transforms with dependency and priority metadata, and a deterministic
// resolver that expands requested names into an execution order.
//
// A Registry is not safe for concurrent mutation. Register everything at
// startup; concurrent lookups afterwards are fine.
package transforms

import (
	"container/heap"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dgallion1/docshift/internal/doctree"
)

var (
	ErrUnknownTransform   = errors.New("unknown transform")
	ErrDuplicateTransform = errors.New("transform already registered")
	ErrDependencyCycle    = errors.New("circular dependency")
	ErrInvalidMetadata    = errors.New("invalid transform metadata")
	ErrInvalidParams      = errors.New("invalid transform parameters")
)

// Transform rewrites a document tree. Implementations return a new document
// and must not modify the one they are given.
type Transform interface {
	Name() string
	Transform(doc *doctree.Document) (*doctree.Document, error)
}

// Factory constructs a transform instance from parameters.
type Factory func(params Params) (Transform, error)

// Metadata describes a registered transform.
type Metadata struct {
	Name         string
	Description  string
	Factory      Factory
	Dependencies []string
	Priority     int // lower runs first among independent transforms
	Params       map[string]ParamSpec
}

// CycleError reports the transforms left unresolved by a dependency cycle.
type CycleError struct {
	Names []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s detected involving transforms: %s", ErrDependencyCycle, strings.Join(e.Names, ", "))
}

func (e *CycleError) Unwrap() error { return ErrDependencyCycle }

// Registry holds transform metadata by name.
type Registry struct {
	entries map[string]Metadata
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Metadata)}
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide registry, populated with the built-in
// transforms on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = NewRegistry()
		if err := RegisterBuiltins(defaultReg); err != nil {
			panic(err)
		}
	})
	return defaultReg
}

// Register adds a transform. Names must be unique.
func (r *Registry) Register(md Metadata) error {
	if md.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidMetadata)
	}
	if md.Factory == nil {
		return fmt.Errorf("%w: %q has no factory", ErrInvalidMetadata, md.Name)
	}
	if _, exists := r.entries[md.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTransform, md.Name)
	}
	md.Dependencies = append([]string(nil), md.Dependencies...)
	r.entries[md.Name] = md
	return nil
}

// Get returns the metadata registered under name.
func (r *Registry) Get(name string) (Metadata, bool) {
	md, ok := r.entries[name]
	return md, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Create builds an instance of the named transform. Parameter defaults from
// the metadata are applied under params.
func (r *Registry) Create(name string, params Params) (Transform, error) {
	md, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransform, name)
	}
	merged := make(Params, len(md.Params)+len(params))
	for key, spec := range md.Params {
		if spec.Default != nil {
			merged[key] = spec.Default
		}
	}
	for key, v := range params {
		merged[key] = v
	}
	t, err := md.Factory(merged)
	if err != nil {
		return nil, fmt.Errorf("%w: transform %q: %w", ErrInvalidParams, name, err)
	}
	return t, nil
}

// List returns all registered names, sorted.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear removes every registration. Intended for tests.
func (r *Registry) Clear() {
	r.entries = make(map[string]Metadata)
}

// ResolveDependencies returns the requested transforms and all of their
// transitive dependencies in execution order. Every transform appears after
// its dependencies; among transforms whose dependencies are all satisfied the
// lowest priority runs first, then the lowest name.
func (r *Registry) ResolveDependencies(names ...string) ([]string, error) {
	closure, err := r.closure(names)
	if err != nil {
		return nil, err
	}

	// dep -> dependents, and remaining in-degree per node.
	graph := make(map[string][]string, len(closure))
	inDegree := make(map[string]int, len(closure))
	for name := range closure {
		if _, exists := inDegree[name]; !exists {
			inDegree[name] = 0
		}
		for _, dep := range uniq(r.entries[name].Dependencies) {
			graph[dep] = append(graph[dep], name)
			inDegree[name]++
		}
	}

	ready := &readyQueue{reg: r}
	for name, deg := range inDegree {
		if deg == 0 {
			heap.Push(ready, name)
		}
	}

	order := make([]string, 0, len(closure))
	for ready.Len() > 0 {
		current := heap.Pop(ready).(string)
		order = append(order, current)
		for _, dependent := range graph[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				heap.Push(ready, dependent)
			}
		}
	}

	if len(order) != len(closure) {
		var unresolved []string
		for name, deg := range inDegree {
			if deg > 0 {
				unresolved = append(unresolved, name)
			}
		}
		sort.Strings(unresolved)
		return nil, &CycleError{Names: unresolved}
	}
	return order, nil
}

// closure collects names and their transitive dependencies.
func (r *Registry) closure(names []string) (map[string]bool, error) {
	seen := make(map[string]bool)
	stack := append([]string(nil), names...)
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[name] {
			continue
		}
		md, ok := r.entries[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTransform, name)
		}
		seen[name] = true
		for _, dep := range md.Dependencies {
			if !r.Has(dep) {
				return nil, fmt.Errorf("%w: %q (dependency of %q)", ErrUnknownTransform, dep, name)
			}
			stack = append(stack, dep)
		}
	}
	return seen, nil
}

func uniq(in []string) []string {
	if len(in) < 2 {
		return in
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// readyQueue is a min-heap of names ordered by (priority, name).
type readyQueue struct {
	reg   *Registry
	names []string
}

func (q *readyQueue) Len() int { return len(q.names) }

func (q *readyQueue) Less(i, j int) bool {
	pi, pj := q.reg.entries[q.names[i]].Priority, q.reg.entries[q.names[j]].Priority
	if pi != pj {
		return pi < pj
	}
	return q.names[i] < q.names[j]
}

func (q *readyQueue) Swap(i, j int) { q.names[i], q.names[j] = q.names[j], q.names[i] }

func (q *readyQueue) Push(x any) { q.names = append(q.names, x.(string)) }

func (q *readyQueue) Pop() any {
	last := q.names[len(q.names)-1]
	q.names = q.names[:len(q.names)-1]
	return last
}
