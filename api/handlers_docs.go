package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/c360studio/semharvest/storage"
)

// handleListDocuments lists all stored document records.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.ListDocuments(r.Context())
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	if !storage.ValidKey(docID) {
		jsonError(w, "invalid document id", http.StatusBadRequest)
		return
	}

	doc, err := s.store.GetDocument(r.Context(), docID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			jsonError(w, "document not found", http.StatusNotFound)
			return
		}
		jsonError(w, "failed to get document: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

// handleGetReport returns the latest stored report for a document. The
// payload field carries the full result envelope.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	if !storage.ValidKey(docID) {
		jsonError(w, "invalid document id", http.StatusBadRequest)
		return
	}

	report, err := s.store.GetReport(r.Context(), docID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			jsonError(w, "report not found", http.StatusNotFound)
			return
		}
		jsonError(w, "failed to get report: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	if !storage.ValidKey(docID) {
		jsonError(w, "invalid document id", http.StatusBadRequest)
		return
	}

	if err := s.store.DeleteDocument(r.Context(), docID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			jsonError(w, "document not found", http.StatusNotFound)
			return
		}
		jsonError(w, "failed to delete document: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"deleted": docID})
}
