package api

import (
	"net/http"
	"strconv"

	"github.com/dgallion1/docshift/internal/sections"
)

// handleSections parses and transforms an upload like /api/convert but
// answers with heading-scoped text sections. Optional form fields:
// max_tokens, overlap and min_tokens.
func (s *Server) handleSections(w http.ResponseWriter, r *http.Request) {
	req, rerr := s.readConvertRequest(w, r)
	if rerr != nil {
		jsonError(w, rerr.msg, rerr.status)
		return
	}

	cfg := sections.DefaultConfig()
	for _, f := range []struct {
		name string
		dst  *int
	}{
		{"max_tokens", &cfg.MaxTokens},
		{"overlap", &cfg.Overlap},
		{"min_tokens", &cfg.MinTokens},
	} {
		v := r.FormValue(f.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			jsonError(w, f.name+" must be an integer", http.StatusBadRequest)
			return
		}
		*f.dst = n
	}

	res, err := s.conv.Split(r.Context(), req, cfg)
	if err != nil {
		s.log.Warn("split failed", "filename", req.Filename, "error", err)
		jsonError(w, err.Error(), errorStatus(err))
		return
	}
	jsonResponse(w, res, http.StatusOK)
}
