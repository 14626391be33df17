// Package pipeline resolves transforms, runs them over a document, fires hooks
// and hands the result to a serializer.
//
// A pipeline run is synchronous and owns its document copy and hook context
// for its whole duration.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/dgallion1/docshift/internal/doctree"
	"github.com/dgallion1/docshift/internal/hooks"
	"github.com/dgallion1/docshift/internal/render/markdown"
	"github.com/dgallion1/docshift/internal/transforms"
)

var (
	ErrInvalidTransformSpecification = errors.New("invalid transform specification")
	ErrDocumentRemoved               = hooks.ErrDocumentRemoved
)

// Serializer turns a document into output text. Options are passed through
// unvalidated.
type Serializer interface {
	Serialize(doc *doctree.Document, options any) (string, error)
}

// SerializerFunc adapts a function to Serializer.
type SerializerFunc func(doc *doctree.Document, options any) (string, error)

func (f SerializerFunc) Serialize(doc *doctree.Document, options any) (string, error) {
	return f(doc, options)
}

// TransformError reports a transform that failed or panicked. It aborts the run.
type TransformError struct {
	Name  string
	Index int
	Err   error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %q (#%d): %v", e.Name, e.Index, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// Config describes a pipeline.
//
// Transforms entries are a registered name (string), a name with params
// (transforms.Request) or a transforms.Transform instance, in any mix.
type Config struct {
	Transforms []any
	Hooks      hooks.Map
	Options    any

	Registry   *transforms.Registry // nil uses transforms.Default()
	Serializer Serializer           // nil uses the markdown serializer
	Logger     *slog.Logger
}

// Pipeline is a validated Config.
type Pipeline struct {
	entries []any
	options any
	reg     *transforms.Registry
	ser     Serializer
	hooks   *hooks.Manager
	log     *slog.Logger
}

// New validates cfg. Entries of an unsupported type are rejected with
// ErrInvalidTransformSpecification.
func New(cfg Config) (*Pipeline, error) {
	for i, e := range cfg.Transforms {
		switch t := e.(type) {
		case string:
			if t == "" {
				return nil, fmt.Errorf("%w: entry %d: empty name", ErrInvalidTransformSpecification, i)
			}
		case transforms.Request:
			if t.Name == "" {
				return nil, fmt.Errorf("%w: entry %d: empty name", ErrInvalidTransformSpecification, i)
			}
		case transforms.Transform:
			if isNil(t) {
				return nil, fmt.Errorf("%w: entry %d: nil transform", ErrInvalidTransformSpecification, i)
			}
		default:
			return nil, fmt.Errorf("%w: entry %d: unsupported type %T", ErrInvalidTransformSpecification, i, e)
		}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	reg := cfg.Registry
	if reg == nil {
		reg = transforms.Default()
	}
	ser := cfg.Serializer
	if ser == nil {
		ser = markdown.Serializer{}
	}

	hm := hooks.NewManager(log)
	if err := hm.RegisterMap(cfg.Hooks); err != nil {
		return nil, err
	}

	return &Pipeline{
		entries: append([]any(nil), cfg.Transforms...),
		options: cfg.Options,
		reg:     reg,
		ser:     ser,
		hooks:   hm,
		log:     log,
	}, nil
}

// Resolve returns the transforms in execution order. Each name is expanded
// with its dependencies at its own position; anything already emitted
// earlier is skipped.
func (p *Pipeline) Resolve() ([]transforms.Transform, error) {
	var out []transforms.Transform
	names := make(map[string]bool)
	instances := make(map[identity]bool)

	expand := func(name string, params transforms.Params) error {
		order, err := p.reg.ResolveDependencies(name)
		if err != nil {
			return err
		}
		for _, n := range order {
			if names[n] {
				continue
			}
			var prm transforms.Params
			if n == name {
				prm = params
			}
			t, err := p.reg.Create(n, prm)
			if err != nil {
				return err
			}
			names[n] = true
			out = append(out, t)
		}
		return nil
	}

	for _, e := range p.entries {
		switch t := e.(type) {
		case string:
			if err := expand(t, nil); err != nil {
				return nil, err
			}
		case transforms.Request:
			if err := expand(t.Name, t.Params); err != nil {
				return nil, err
			}
		case transforms.Transform:
			if id, ok := identityOf(t); ok {
				if instances[id] {
					continue
				}
				instances[id] = true
			}
			out = append(out, t)
		}
	}
	return out, nil
}

// Execute runs the full pipeline and returns the serialized output.
func (p *Pipeline) Execute(doc *doctree.Document) (string, error) {
	doc, ctx, err := p.run(doc)
	if err != nil {
		return "", err
	}
	out, err := p.ser.Serialize(doc, p.options)
	if err != nil {
		return "", fmt.Errorf("serialize: %w", err)
	}
	return p.hooks.RunRender(out, ctx), nil
}

// Apply runs the pipeline without serializing. post_render hooks never run.
func (p *Pipeline) Apply(doc *doctree.Document) (*doctree.Document, error) {
	doc, _, err := p.run(doc)
	return doc, err
}

func (p *Pipeline) run(doc *doctree.Document) (*doctree.Document, *hooks.Context, error) {
	if doc == nil {
		return nil, nil, fmt.Errorf("nil input: %w", ErrDocumentRemoved)
	}
	resolved, err := p.Resolve()
	if err != nil {
		return nil, nil, err
	}

	doc = doctree.CloneDocument(doc)
	ctx := hooks.NewContext(doc)

	for i, t := range resolved {
		next, err := p.applyTransform(i, t, doc)
		if err != nil {
			return nil, nil, err
		}
		doc = next
		ctx.SetDocument(doc)
	}

	if doc, err = p.hooks.RunDocument(hooks.PreRender, doc, ctx); err != nil {
		return nil, nil, err
	}
	if doc, err = p.hooks.Walk(doc, ctx); err != nil {
		return nil, nil, err
	}
	ctx.SetDocument(doc)
	if doc, err = p.hooks.RunDocument(hooks.PostAST, doc, ctx); err != nil {
		return nil, nil, err
	}
	return doc, ctx, nil
}

func (p *Pipeline) applyTransform(i int, t transforms.Transform, doc *doctree.Document) (out *doctree.Document, err error) {
	name := t.Name()
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, &TransformError{Name: name, Index: i, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	start := time.Now()
	out, err = t.Transform(doc)
	if err != nil {
		return nil, &TransformError{Name: name, Index: i, Err: err}
	}
	if out == nil {
		return nil, &TransformError{Name: name, Index: i, Err: ErrDocumentRemoved}
	}
	p.log.Debug("transform applied", "transform", name, "index", i, "duration", time.Since(start))
	return out, nil
}

type identity struct {
	typ reflect.Type
	ptr uintptr
}

// identityOf returns a key for pointer instances of non-zero-size types.
// Distinct zero-size allocations may share an address, so those are never
// treated as repeats.
func identityOf(t transforms.Transform) (identity, bool) {
	v := reflect.ValueOf(t)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Type().Elem().Size() == 0 {
		return identity{}, false
	}
	return identity{typ: v.Type(), ptr: v.Pointer()}, true
}

func isNil(t transforms.Transform) bool {
	if t == nil {
		return true
	}
	v := reflect.ValueOf(t)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Interface, reflect.Slice, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// Render runs transforms and hooks over doc with the default registry and
// renders markdown. options are handed to the serializer.
func Render(doc *doctree.Document, options any, transforms []any, hm hooks.Map) (string, error) {
	p, err := New(Config{Transforms: transforms, Hooks: hm, Options: options})
	if err != nil {
		return "", err
	}
	return p.Execute(doc)
}

// Apply runs transforms and hooks over doc with the default registry and
// returns the resulting tree.
func Apply(doc *doctree.Document, transforms []any, hm hooks.Map) (*doctree.Document, error) {
	p, err := New(Config{Transforms: transforms, Hooks: hm})
	if err != nil {
		return nil, err
	}
	return p.Apply(doc)
}
