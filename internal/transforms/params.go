package transforms

import (
	"fmt"
	"strconv"
)

// ParamSpec documents one constructor parameter for introspection.
type ParamSpec struct {
	Type    string // "string", "int", "bool", "[]string" or "map[string]string"
	Default any
	Help    string
}

// Params are named constructor arguments. Values usually come from Go code,
// YAML pipeline files or form fields, so getters accept the common encodings.
type Params map[string]any

// String returns the string value of key, or def.
func (p Params) String(key, def string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case fmt.Stringer:
		return t.String(), nil
	}
	return "", fmt.Errorf("param %q: expected string, got %T", key, v)
}

// Int returns the integer value of key, or def.
func (p Params) Int(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		if t != float64(int(t)) {
			return 0, fmt.Errorf("param %q: expected integer, got %v", key, t)
		}
		return int(t), nil
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0, fmt.Errorf("param %q: %w", key, err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("param %q: expected int, got %T", key, v)
}

// Bool returns the boolean value of key, or def.
func (p Params) Bool(key string, def bool) (bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(t)
		if err != nil {
			return false, fmt.Errorf("param %q: %w", key, err)
		}
		return b, nil
	}
	return false, fmt.Errorf("param %q: expected bool, got %T", key, v)
}

// Strings returns a list value of key, or def. A single string is a
// one-element list.
func (p Params) Strings(key string, def []string) ([]string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch t := v.(type) {
	case []string:
		return t, nil
	case string:
		return []string{t}, nil
	case []any:
		out := make([]string, 0, len(t))
		for i, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("param %q[%d]: expected string, got %T", key, i, e)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("param %q: expected list of strings, got %T", key, v)
}

// StringMap returns a string-to-string mapping value of key.
func (p Params) StringMap(key string) (map[string]string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case map[string]string:
		return t, nil
	case map[string]any:
		out := make(map[string]string, len(t))
		for k, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("param %q[%q]: expected string, got %T", key, k, e)
			}
			out[k] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("param %q: expected mapping, got %T", key, v)
}

// Request names a registered transform together with parameters.
type Request struct {
	Name   string
	Params Params
}
