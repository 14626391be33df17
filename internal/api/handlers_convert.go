package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docshift/internal/convert"
	"github.com/dgallion1/docshift/internal/hooks"
	"github.com/dgallion1/docshift/internal/parser"
	"github.com/dgallion1/docshift/internal/pipeline"
	"github.com/dgallion1/docshift/internal/render"
	"github.com/dgallion1/docshift/internal/rewrite"
	"github.com/dgallion1/docshift/internal/transforms"
)

// requestError carries an HTTP status for a rejected request.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) *requestError {
	return &requestError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

// handleConvert converts an uploaded file synchronously and returns the
// serialized output as the response body.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	req, rerr := s.readConvertRequest(w, r)
	if rerr != nil {
		jsonError(w, rerr.msg, rerr.status)
		return
	}

	res, err := s.conv.Convert(r.Context(), req)
	if err != nil {
		s.log.Warn("conversion failed", "filename", req.Filename, "error", err)
		jsonError(w, err.Error(), errorStatus(err))
		return
	}
	writeOutput(w, req.Filename, res)
}

// readConvertRequest parses the multipart form shared by /api/convert and
// /api/jobs. Fields: file (required), from, to, pipeline (YAML) and
// repeated transform names.
func (s *Server) readConvertRequest(w http.ResponseWriter, r *http.Request) (convert.Request, *requestError) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return convert.Request{}, &requestError{status: http.StatusRequestEntityTooLarge, msg: "file too large"}
		}
		return convert.Request{}, badRequest("invalid multipart form: %v", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return convert.Request{}, badRequest("file field is required")
	}
	defer file.Close()

	if header.Size > s.cfg.MaxUploadBytes {
		return convert.Request{}, &requestError{
			status: http.StatusRequestEntityTooLarge,
			msg:    fmt.Sprintf("file too large: %d bytes (max %d)", header.Size, s.cfg.MaxUploadBytes),
		}
	}

	filename := sanitizeFilename(header.Filename)
	from := r.FormValue("from")
	if from == "" && !parser.IsSupportedExtension(filename) {
		return convert.Request{}, badRequest("unsupported file type: %s", filepath.Ext(filename))
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return convert.Request{}, badRequest("read file: %v", err)
	}

	req := convert.Request{
		Filename: filename,
		Data:     data,
		From:     from,
		To:       r.FormValue("to"),
	}

	if def := r.FormValue("pipeline"); def != "" {
		pf, err := pipeline.ParseFile([]byte(def))
		if err != nil {
			return convert.Request{}, badRequest("%v", err)
		}
		req.Transforms = pf.Entries()
		if len(pf.Options) > 0 {
			req.Options = pf.Options
		}
		if req.To == "" {
			req.To = pf.Format
		}
	}
	for _, name := range r.MultipartForm.Value["transform"] {
		if name = strings.TrimSpace(name); name != "" {
			req.Transforms = append(req.Transforms, name)
		}
	}
	if len(req.Transforms) == 0 {
		for _, name := range s.cfg.DefaultTransforms {
			req.Transforms = append(req.Transforms, name)
		}
	}

	if req.To == "" {
		req.To = s.cfg.DefaultFormat
	}
	if _, err := render.ForFormat(req.To); err != nil {
		return convert.Request{}, badRequest("%v", err)
	}
	return req, nil
}

// errorStatus maps conversion errors to HTTP statuses. Configuration
// problems are the caller's fault; anything that failed while processing
// the document itself is unprocessable.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, parser.ErrUnsupportedFormat),
		errors.Is(err, render.ErrUnsupportedFormat),
		errors.Is(err, transforms.ErrUnknownTransform),
		errors.Is(err, transforms.ErrDependencyCycle),
		errors.Is(err, transforms.ErrInvalidParams),
		errors.Is(err, pipeline.ErrInvalidTransformSpecification),
		errors.Is(err, pipeline.ErrInvalidFile),
		errors.Is(err, hooks.ErrUnknownKey):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, convert.ErrParse),
		errors.Is(err, rewrite.ErrUnsafeURL),
		errors.Is(err, pipeline.ErrDocumentRemoved):
		return http.StatusUnprocessableEntity
	}
	var te *pipeline.TransformError
	if errors.As(err, &te) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeOutput(w http.ResponseWriter, filename string, res *convert.Result) {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", stem+render.Extension(res.Format)))
	w.Header().Set("X-Content-Sha256", res.ContentHash)
	w.Write([]byte(res.Output))
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "")
	name = strings.Map(func(r rune) rune {
		if r < 32 || r == '/' || r == '\\' {
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." {
		return "upload"
	}
	return name
}

func jsonResponse(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	jsonResponse(w, map[string]string{"error": msg}, status)
}
