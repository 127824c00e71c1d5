package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/c360studio/semharvest/extract"
	"github.com/c360studio/semharvest/harvest"
)

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)

	data, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			jsonError(w, fmt.Sprintf("request body exceeds %d bytes", s.maxBody), http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	if len(data) == 0 {
		jsonError(w, "empty request body", http.StatusBadRequest)
		return
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	filename := sanitizeFilename(r.URL.Query().Get("filename"))

	var res *harvest.Result
	switch mediaType {
	case "text/html", "application/xhtml+xml":
		if filename == "" {
			filename = "page.html"
		}
		res, err = harvest.HTML(r.Context(), filename, data, s.opts)
	case "", "text/markdown", "text/x-markdown", "text/plain":
		if filename == "" {
			filename = "request.md"
		}
		res, err = harvest.Markdown(r.Context(), filename, data, s.opts)
	default:
		jsonError(w, "unsupported content type: "+mediaType, http.StatusUnsupportedMediaType)
		return
	}

	if err != nil {
		s.metrics.Observe(nil, err)
		switch {
		case extract.IsDocumentTooLarge(err), extract.IsNestingTooDeep(err):
			jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			jsonError(w, "extraction failed: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}
	s.metrics.Observe(res, nil)

	// Persistence is best effort; the caller still gets their result.
	if s.store != nil {
		if _, err := s.store.SaveResult(r.Context(), res); err != nil {
			s.log.Warn("failed to store result",
				"doc_id", res.Document.ID,
				"error", err.Error())
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	if name == "" {
		return ""
	}
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
