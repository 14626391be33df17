package rewrite

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/dgallion1/docshift/internal/doctree"
)

// ErrUnsafeURL is returned when a rewritten URL uses a scheme outside the
// allow-list.
var ErrUnsafeURL = errors.New("url scheme not allowed")

// DefaultAllowedSchemes are accepted by NewURLRewriter when no list is given.
// Scheme-less (relative) URLs and fragments are always accepted.
var DefaultAllowedSchemes = []string{"http", "https", "mailto", "ftp", "tel"}

// URLOptions configures NewURLRewriter.
type URLOptions struct {
	AllowedSchemes []string // nil means DefaultAllowedSchemes
	SkipValidation bool     // Accept any scheme, including javascript: and data:
	Links          bool     // Rewrite link URLs
	Images         bool     // Rewrite image URLs
}

// URLMapper maps one URL to its replacement.
type URLMapper func(string) string

// NewURLRewriter rewrites link and image URLs through fn. When neither Links
// nor Images is set both are rewritten.
func NewURLRewriter(fn URLMapper, opts URLOptions) *Rewriter {
	allowed := opts.AllowedSchemes
	if allowed == nil {
		allowed = DefaultAllowedSchemes
	}
	schemes := make(map[string]bool, len(allowed))
	for _, s := range allowed {
		schemes[strings.ToLower(s)] = true
	}
	links, images := opts.Links, opts.Images
	if !links && !images {
		links, images = true, true
	}

	mapURL := func(raw string) (string, error) {
		out := fn(raw)
		if opts.SkipValidation {
			return out, nil
		}
		if err := CheckScheme(out, schemes); err != nil {
			return "", err
		}
		return out, nil
	}

	return New("rewrite-urls", func(r *Rewriter, n doctree.Node) (Result, error) {
		switch n.(type) {
		case *doctree.Link:
			if !links {
				return Pass(), nil
			}
			res, err := r.Descend(n)
			if err != nil || res.Deleted() {
				return res, err
			}
			link := res.Node().(*doctree.Link)
			if link.URL, err = mapURL(link.URL); err != nil {
				return Result{}, err
			}
			return res, nil
		case *doctree.Image:
			if !images {
				return Pass(), nil
			}
			img := doctree.CopyNode(n).(*doctree.Image)
			var err error
			if img.URL, err = mapURL(img.URL); err != nil {
				return Result{}, err
			}
			return Replace(img), nil
		}
		return Pass(), nil
	})
}

// CheckScheme returns ErrUnsafeURL when raw has a scheme not in allowed.
func CheckScheme(raw string, allowed map[string]bool) error {
	s := strings.TrimSpace(raw)
	if s == "" || strings.HasPrefix(s, "#") || strings.HasPrefix(s, "/") {
		return nil
	}
	// Browsers ignore control characters inside a scheme ("java\tscript:").
	cleaned := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || r == ' ' {
			return -1
		}
		return r
	}, s)
	colon := strings.IndexByte(cleaned, ':')
	if colon < 0 {
		return nil
	}
	if slash := strings.IndexAny(cleaned, "/?#"); slash >= 0 && slash < colon {
		// The colon belongs to a path or query, not a scheme.
		return nil
	}
	scheme := strings.ToLower(cleaned[:colon])
	if !allowed[scheme] {
		return fmt.Errorf("%w: %q in %q", ErrUnsafeURL, scheme, raw)
	}
	return nil
}

// BaseURLMapper resolves relative URLs against base and then applies the
// exact-match replacements in mapping. Fragment-only URLs are left alone.
func BaseURLMapper(base string, mapping map[string]string) (URLMapper, error) {
	var baseURL *url.URL
	if base != "" {
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		baseURL = u
	}
	return func(raw string) string {
		if to, ok := mapping[raw]; ok {
			return to
		}
		if baseURL == nil || raw == "" || strings.HasPrefix(raw, "#") {
			return raw
		}
		ref, err := url.Parse(raw)
		if err != nil || ref.IsAbs() {
			return raw
		}
		return baseURL.ResolveReference(ref).String()
	}, nil
}
