package transforms

import (
	"fmt"

	"github.com/dgallion1/docshift/internal/doctree"
	"github.com/dgallion1/docshift/internal/rewrite"
)

// priority constants (gaps allow future insertion)
const (
	prRemove     = 100
	prHeadings   = 200
	prText       = 300
	prURLs       = 400
	prHeadingIDs = 500
	prTOC        = 600
	prWordCount  = 900
)

// Builtins returns metadata for the transforms shipped with docshift.
func Builtins() []Metadata {
	return []Metadata{
		{
			Name:        "remove-images",
			Description: "Remove all image nodes",
			Priority:    prRemove,
			Factory: func(Params) (Transform, error) {
				return rewrite.RemoveImages(), nil
			},
		},
		{
			Name:        "remove-nodes",
			Description: "Remove all nodes of the given kinds",
			Priority:    prRemove,
			Params: map[string]ParamSpec{
				"kinds": {Type: "[]string", Help: "node kind names, e.g. image or raw_block"},
			},
			Factory: newRemoveNodes,
		},
		{
			Name:        "heading-offset",
			Description: "Shift heading levels, clamped to 1..6",
			Priority:    prHeadings,
			Params: map[string]ParamSpec{
				"offset": {Type: "int", Default: 1, Help: "levels to add (negative to promote)"},
			},
			Factory: func(p Params) (Transform, error) {
				offset, err := p.Int("offset", 1)
				if err != nil {
					return nil, err
				}
				return rewrite.HeadingOffset(offset), nil
			},
		},
		{
			Name:        "text-replace",
			Description: "Find and replace in text content",
			Priority:    prText,
			Params: map[string]ParamSpec{
				"find":    {Type: "string", Help: "text or pattern to find"},
				"replace": {Type: "string", Default: "", Help: "replacement"},
				"regex":   {Type: "bool", Default: false, Help: "treat find as a regular expression"},
			},
			Factory: newTextReplace,
		},
		{
			Name:        "rewrite-urls",
			Description: "Rewrite link and image URLs, rejecting unsafe schemes",
			Priority:    prURLs,
			Params: map[string]ParamSpec{
				"base_url":        {Type: "string", Help: "base for resolving relative URLs"},
				"mapping":         {Type: "map[string]string", Help: "exact URL replacements"},
				"allowed_schemes": {Type: "[]string", Help: "accepted URL schemes"},
				"validate":        {Type: "bool", Default: true, Help: "reject schemes outside the allow-list"},
				"links":           {Type: "bool", Default: true, Help: "rewrite link URLs"},
				"images":          {Type: "bool", Default: true, Help: "rewrite image URLs"},
			},
			Factory: newRewriteURLs,
		},
		{
			Name:        "heading-ids",
			Description: "Assign unique slug ids to headings",
			Priority:    prHeadingIDs,
			Params: map[string]ParamSpec{
				"prefix": {Type: "string", Default: "", Help: "prefix for generated ids"},
			},
			Factory: func(p Params) (Transform, error) {
				prefix, err := p.String("prefix", "")
				if err != nil {
					return nil, err
				}
				return &rewrite.HeadingIDs{Prefix: prefix}, nil
			},
		},
		{
			Name:         "table-of-contents",
			Description:  "Insert a table of contents linking to heading ids",
			Priority:     prTOC,
			Dependencies: []string{"heading-ids"},
			Params: map[string]ParamSpec{
				"max_level": {Type: "int", Default: 3, Help: "deepest heading level listed"},
				"title":     {Type: "string", Default: "", Help: "heading above the list"},
			},
			Factory: func(p Params) (Transform, error) {
				maxLevel, err := p.Int("max_level", 3)
				if err != nil {
					return nil, err
				}
				title, err := p.String("title", "")
				if err != nil {
					return nil, err
				}
				return &rewrite.TableOfContents{MaxLevel: maxLevel, Title: title}, nil
			},
		},
		{
			Name:        "word-count",
			Description: "Record the document word count in metadata",
			Priority:    prWordCount,
			Factory: func(Params) (Transform, error) {
				return &rewrite.WordCount{}, nil
			},
		},
	}
}

// RegisterBuiltins registers every built-in transform in r.
func RegisterBuiltins(r *Registry) error {
	for _, md := range Builtins() {
		if err := r.Register(md); err != nil {
			return err
		}
	}
	return nil
}

func newRemoveNodes(p Params) (Transform, error) {
	names, err := p.Strings("kinds", nil)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("param %q is required", "kinds")
	}
	kinds := make([]doctree.Kind, 0, len(names))
	for _, name := range names {
		k, ok := doctree.ParseKind(name)
		if !ok {
			return nil, fmt.Errorf("param %q: unknown node kind %q", "kinds", name)
		}
		if k == doctree.KindDocument {
			return nil, fmt.Errorf("param %q: the document root cannot be removed", "kinds")
		}
		kinds = append(kinds, k)
	}
	return rewrite.RemoveKinds("remove-nodes", kinds...), nil
}

func newTextReplace(p Params) (Transform, error) {
	find, err := p.String("find", "")
	if err != nil {
		return nil, err
	}
	if find == "" {
		return nil, fmt.Errorf("param %q is required", "find")
	}
	replace, err := p.String("replace", "")
	if err != nil {
		return nil, err
	}
	regex, err := p.Bool("regex", false)
	if err != nil {
		return nil, err
	}
	if regex {
		return rewrite.TextReplacePattern(find, replace)
	}
	return rewrite.TextReplace(find, replace), nil
}

func newRewriteURLs(p Params) (Transform, error) {
	base, err := p.String("base_url", "")
	if err != nil {
		return nil, err
	}
	mapping, err := p.StringMap("mapping")
	if err != nil {
		return nil, err
	}
	schemes, err := p.Strings("allowed_schemes", nil)
	if err != nil {
		return nil, err
	}
	validate, err := p.Bool("validate", true)
	if err != nil {
		return nil, err
	}
	links, err := p.Bool("links", true)
	if err != nil {
		return nil, err
	}
	images, err := p.Bool("images", true)
	if err != nil {
		return nil, err
	}
	if !links && !images {
		return nil, fmt.Errorf("at least one of %q and %q must be enabled", "links", "images")
	}
	mapper, err := rewrite.BaseURLMapper(base, mapping)
	if err != nil {
		return nil, err
	}
	return rewrite.NewURLRewriter(mapper, rewrite.URLOptions{
		AllowedSchemes: schemes,
		SkipValidation: !validate,
		Links:          links,
		Images:         images,
	}), nil
}
