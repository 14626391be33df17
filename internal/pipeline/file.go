package pipeline

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dgallion1/docshift/internal/transforms"
)

var ErrInvalidFile = errors.New("invalid pipeline file")

// File is a pipeline definition loaded from YAML:
//
//	format: html
//	transforms:
//	  - remove-images
//	  - name: heading-offset
//	    params: {offset: 1}
//	options:
//	  fragment: true
type File struct {
	Format     string          `yaml:"format"`
	Transforms []FileTransform `yaml:"transforms"`
	Options    map[string]any  `yaml:"options"`
}

// FileTransform is one transforms entry: a bare name or a name with params.
type FileTransform struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:"params"`
}

func (t *FileTransform) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		t.Name = value.Value
		return nil
	}
	type plain FileTransform
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*t = FileTransform(p)
	return nil
}

// ParseFile decodes and validates a pipeline definition.
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	for i, t := range f.Transforms {
		if t.Name == "" {
			return nil, fmt.Errorf("%w: transforms[%d]: missing name", ErrInvalidFile, i)
		}
	}
	return &f, nil
}

// LoadFile reads and parses the pipeline definition at path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline file: %w", err)
	}
	f, err := ParseFile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Entries returns the transforms as Config.Transforms values.
func (f *File) Entries() []any {
	out := make([]any, 0, len(f.Transforms))
	for _, t := range f.Transforms {
		if len(t.Params) == 0 {
			out = append(out, t.Name)
			continue
		}
		out = append(out, transforms.Request{Name: t.Name, Params: transforms.Params(t.Params)})
	}
	return out
}
