package api

import (
	"net/http"
	"sort"

	"github.com/dgallion1/docshift/internal/parser"
	"github.com/dgallion1/docshift/internal/render"
)

type paramInfo struct {
	Type    string `json:"type"`
	Default any    `json:"default,omitempty"`
	Help    string `json:"help,omitempty"`
}

type transformInfo struct {
	Name         string               `json:"name"`
	Description  string               `json:"description"`
	Priority     int                  `json:"priority"`
	Dependencies []string             `json:"dependencies"`
	Params       map[string]paramInfo `json:"params"`
}

// handleListTransforms describes every registered transform.
func (s *Server) handleListTransforms(w http.ResponseWriter, r *http.Request) {
	names := s.reg.List()
	out := make([]transformInfo, 0, len(names))
	for _, name := range names {
		md, ok := s.reg.Get(name)
		if !ok {
			continue
		}
		info := transformInfo{
			Name:         md.Name,
			Description:  md.Description,
			Priority:     md.Priority,
			Dependencies: append([]string{}, md.Dependencies...),
			Params:       make(map[string]paramInfo, len(md.Params)),
		}
		for pname, spec := range md.Params {
			info.Params[pname] = paramInfo{Type: spec.Type, Default: spec.Default, Help: spec.Help}
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	jsonResponse(w, map[string]any{"transforms": out}, http.StatusOK)
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]any{
		"input_extensions": parser.Extensions(),
		"output_formats":   render.Formats(),
		"default":          s.cfg.DefaultFormat,
	}, http.StatusOK)
}

// handleConvertStats returns conversion latency percentiles over the
// configured window, overall and per output format.
func (s *Server) handleConvertStats(w http.ResponseWriter, r *http.Request) {
	if s.conv.Stats == nil {
		jsonError(w, "stats not available", http.StatusServiceUnavailable)
		return
	}
	var depth int
	if s.queue != nil {
		depth = s.queue.Depth()
	}
	jsonResponse(w, map[string]any{
		"window":      s.cfg.StatsWindow.String(),
		"overall":     s.conv.Stats.Snapshot(),
		"by_format":   s.conv.Stats.ByLabel(),
		"queue_depth": depth,
	}, http.StatusOK)
}
