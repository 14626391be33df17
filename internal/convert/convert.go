// Package convert runs a whole conversion: parse an input file, run the
// transform pipeline and serialize to the requested output format.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docshift/internal/doctree"
	"github.com/dgallion1/docshift/internal/hooks"
	"github.com/dgallion1/docshift/internal/metrics"
	"github.com/dgallion1/docshift/internal/parser"
	"github.com/dgallion1/docshift/internal/pipeline"
	"github.com/dgallion1/docshift/internal/render"
	"github.com/dgallion1/docshift/internal/sections"
	"github.com/dgallion1/docshift/internal/stats"
	"github.com/dgallion1/docshift/internal/transforms"
)

// ErrParse wraps failures reading the input document.
var ErrParse = errors.New("parse failed")

// Phase names a step of a conversion.
type Phase string

const (
	PhaseParsing    Phase = "parsing"
	PhaseConverting Phase = "converting"
)

// Request describes one conversion.
type Request struct {
	Filename   string
	Data       []byte
	From       string // input format; empty selects by file extension
	To         string // output format; empty is markdown
	Transforms []any
	Options    any
	Hooks      hooks.Map

	// OnPhase, when set, is called as each phase starts.
	OnPhase func(Phase)
}

// Result is the output of a conversion.
type Result struct {
	Output      string        `json:"output"`
	Format      string        `json:"format"`
	ContentType string        `json:"content_type"`
	Title       string        `json:"title"`
	ContentHash string        `json:"content_hash"`
	Duration    time.Duration `json:"-"`
}

// Converter holds what every conversion shares.
type Converter struct {
	Registry    *transforms.Registry // nil uses transforms.Default()
	Stats       *stats.Conversions   // optional
	Metrics     *metrics.Recorder    // optional
	Log         *slog.Logger
	PDFFallback bool // use pdftotext when the Go PDF reader fails
}

func (c *Converter) logger() *slog.Logger {
	if c.Log == nil {
		return slog.Default()
	}
	return c.Log
}

// Convert runs req. Parse and pipeline errors are returned as is so callers
// can match them with errors.Is.
func (c *Converter) Convert(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	to := render.Canonical(req.To)
	if to == "" {
		to = "markdown"
	}

	res, err := c.convert(ctx, req, to)
	elapsed := time.Since(start)
	if c.Stats != nil {
		c.Stats.Record(to, elapsed, err != nil)
	}
	c.Metrics.ObserveConversion(to, elapsed, err != nil)
	if err != nil {
		return nil, err
	}
	res.Duration = elapsed
	c.logger().Info("converted",
		"filename", req.Filename,
		"to", to,
		"bytes_in", len(req.Data),
		"bytes_out", len(res.Output),
		"duration_ms", elapsed.Milliseconds(),
	)
	return res, nil
}

func (c *Converter) convert(ctx context.Context, req Request, to string) (*Result, error) {
	ser, err := render.ForFormat(to)
	if err != nil {
		return nil, err
	}
	pl, doc, err := c.prepare(ctx, req, ser)
	if err != nil {
		return nil, err
	}
	out, err := pl.Execute(doc)
	if err != nil {
		return nil, err
	}

	title, _ := doc.Metadata["title"].(string)
	return &Result{
		Output:      out,
		Format:      to,
		ContentType: render.ContentType(to),
		Title:       title,
		ContentHash: ContentHashHex([]byte(out)),
	}, nil
}

// SplitResult is a transformed document cut into sections.
type SplitResult struct {
	Title    string             `json:"title"`
	Sections []sections.Section `json:"sections"`
}

// Split parses and transforms req like Convert, then cuts the resulting
// tree into sections instead of serializing it. req.To is ignored.
func (c *Converter) Split(ctx context.Context, req Request, cfg sections.Config) (*SplitResult, error) {
	start := time.Now()
	res, err := c.split(ctx, req, cfg)
	elapsed := time.Since(start)
	if c.Stats != nil {
		c.Stats.Record("sections", elapsed, err != nil)
	}
	c.Metrics.ObserveConversion("sections", elapsed, err != nil)
	if err != nil {
		return nil, err
	}
	c.logger().Info("split",
		"filename", req.Filename,
		"sections", len(res.Sections),
		"duration_ms", elapsed.Milliseconds(),
	)
	return res, nil
}

func (c *Converter) split(ctx context.Context, req Request, cfg sections.Config) (*SplitResult, error) {
	pl, doc, err := c.prepare(ctx, req, nil)
	if err != nil {
		return nil, err
	}
	out, err := pl.Apply(doc)
	if err != nil {
		return nil, err
	}
	title, _ := out.Metadata["title"].(string)
	return &SplitResult{Title: title, Sections: sections.Split(out, cfg)}, nil
}

// prepare parses the input and builds the pipeline for req.
func (c *Converter) prepare(ctx context.Context, req Request, ser pipeline.Serializer) (*pipeline.Pipeline, *doctree.Document, error) {
	phase(req, PhaseParsing)
	p, err := c.parserFor(req)
	if err != nil {
		return nil, nil, err
	}
	doc, err := p.Parse(bytes.NewReader(req.Data), req.Filename)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrParse, req.Filename, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	phase(req, PhaseConverting)
	pl, err := pipeline.New(pipeline.Config{
		Transforms: req.Transforms,
		Hooks:      req.Hooks,
		Options:    req.Options,
		Registry:   c.Registry,
		Serializer: ser,
		Logger:     c.logger(),
	})
	if err != nil {
		return nil, nil, err
	}
	return pl, doc, nil
}

func (c *Converter) parserFor(req Request) (parser.Parser, error) {
	var p parser.Parser
	var err error
	if req.From != "" {
		p, err = parser.ForFormat(req.From)
	} else {
		p, err = parser.ForFile(req.Filename)
	}
	if err != nil {
		return nil, err
	}
	if pdf, ok := p.(*parser.PDFParser); ok {
		pdf.FallbackPdftotext = c.PDFFallback
	}
	return p, nil
}

func phase(req Request, p Phase) {
	if req.OnPhase != nil {
		req.OnPhase(p)
	}
}
