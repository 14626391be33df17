// Command docshift converts a document from the command line.
//
// Usage:
//
//	docshift [flags] <file|->
//	docshift --list-transforms
//
// Examples:
//
//	docshift --to html -t heading-ids -t table-of-contents README.md
//	docshift --pipeline site.yaml -o out.html notes.docx
//	cat notes.md | docshift --from markdown -
//	docshift --sections --max-tokens 500 manual.pdf
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"
	flag "github.com/spf13/pflag"

	"github.com/dgallion1/docshift/internal/convert"
	"github.com/dgallion1/docshift/internal/pipeline"
	"github.com/dgallion1/docshift/internal/sections"
	"github.com/dgallion1/docshift/internal/transforms"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type options struct {
	to             string
	from           string
	transforms     []string
	pipeline       string
	output         string
	opts           map[string]string
	listTransforms bool
	sections       bool
	maxTokens      int
	verbose        bool
}

func parseFlags(errOut io.Writer, args []string) (options, []string, error) {
	var o options
	fs := flag.NewFlagSet("docshift", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&o.to, "to", "", "output format: markdown or html (default markdown)")
	fs.StringVar(&o.from, "from", "", "input format; required when reading stdin")
	fs.StringArrayVarP(&o.transforms, "transform", "t", nil, "transform to apply, repeatable")
	fs.StringVarP(&o.pipeline, "pipeline", "p", "", "YAML pipeline file")
	fs.StringVarP(&o.output, "output", "o", "", "write output to this file instead of stdout")
	fs.StringToStringVar(&o.opts, "opt", nil, "serializer option key=value, repeatable")
	fs.BoolVar(&o.listTransforms, "list-transforms", false, "list available transforms and exit")
	fs.BoolVar(&o.sections, "sections", false, "print heading-scoped text sections as JSON instead of converting")
	fs.IntVar(&o.maxTokens, "max-tokens", sections.DefaultConfig().MaxTokens, "target section size for --sections")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "log pipeline activity to stderr")
	fs.Usage = func() {
		fmt.Fprintln(errOut, "Usage: docshift [flags] <file|->")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return o, nil, err
	}
	return o, fs.Args(), nil
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	o, rest, err := parseFlags(stderr, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	reg := transforms.Default()

	if o.listTransforms {
		printTransforms(stdout, reg)
		return 0
	}
	if len(rest) != 1 {
		fmt.Fprintln(stderr, "error: expected exactly one input file")
		return 2
	}

	req, err := buildRequest(o, rest[0], stdin)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	conv := &convert.Converter{Registry: reg, Log: log, PDFFallback: true}
	output, err := produce(conv, o, req)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	if o.output == "" {
		io.WriteString(stdout, output)
		return 0
	}
	if err := atomic.WriteFile(o.output, strings.NewReader(output)); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	log.Info("wrote output", "path", o.output, "bytes", len(output))
	return 0
}

func produce(conv *convert.Converter, o options, req convert.Request) (string, error) {
	ctx := context.Background()
	if !o.sections {
		res, err := conv.Convert(ctx, req)
		if err != nil {
			return "", err
		}
		return res.Output, nil
	}

	cfg := sections.DefaultConfig()
	cfg.MaxTokens = o.maxTokens
	res, err := conv.Split(ctx, req, cfg)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

func buildRequest(o options, input string, stdin io.Reader) (convert.Request, error) {
	req := convert.Request{From: o.from, To: o.to}

	if input == "-" {
		if o.from == "" {
			return req, errors.New("--from is required when reading stdin")
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return req, fmt.Errorf("read stdin: %w", err)
		}
		req.Filename, req.Data = "stdin", data
	} else {
		data, err := os.ReadFile(input)
		if err != nil {
			return req, err
		}
		req.Filename, req.Data = filepath.Base(input), data
	}

	serializerOpts := map[string]any{}
	if o.pipeline != "" {
		pf, err := pipeline.LoadFile(o.pipeline)
		if err != nil {
			return req, err
		}
		req.Transforms = pf.Entries()
		for k, v := range pf.Options {
			serializerOpts[k] = v
		}
		if req.To == "" {
			req.To = pf.Format
		}
	}
	for _, name := range o.transforms {
		req.Transforms = append(req.Transforms, name)
	}
	for k, v := range o.opts {
		serializerOpts[k] = optionValue(v)
	}
	if len(serializerOpts) > 0 {
		req.Options = serializerOpts
	}
	return req, nil
}

// optionValue turns "true" and "false" into bools so flags can set boolean
// serializer options.
func optionValue(v string) any {
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return v
}

func printTransforms(w io.Writer, reg *transforms.Registry) {
	for _, name := range reg.List() {
		md, _ := reg.Get(name)
		fmt.Fprintf(w, "%-20s %s\n", md.Name, md.Description)
		if len(md.Dependencies) > 0 {
			fmt.Fprintf(w, "%-20s depends on: %s\n", "", strings.Join(md.Dependencies, ", "))
		}
		params := make([]string, 0, len(md.Params))
		for p := range md.Params {
			params = append(params, p)
		}
		sort.Strings(params)
		for _, p := range params {
			spec := md.Params[p]
			fmt.Fprintf(w, "%-20s   %s (%s, default %v): %s\n", "", p, spec.Type, spec.Default, spec.Help)
		}
	}
}
