package httpapi

import (
	"encoding/base64"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lifeops-dev/lifeops/internal/lifeops"
	"github.com/lifeops-dev/lifeops/internal/metrics"
)

func (s *Server) handleDocumentList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": s.documents.Documents(),
		"syncing":   s.documents.Syncing(),
	})
}

func (s *Server) handleDocumentSync(w http.ResponseWriter, r *http.Request) {
	documents, err := s.documents.Sync(r.Context())
	metrics.CountSyncRun("documents", err)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": documents})
}

type documentCreateRequest struct {
	Title       string `json:"title"`
	Type        string `json:"type"`
	Content     string `json:"content,omitempty"` // base64
	ContentType string `json:"contentType,omitempty"`
}

func (s *Server) handleDocumentCreate(w http.ResponseWriter, r *http.Request) {
	var req documentCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var content []byte
	if req.Content != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "content must be base64")
			return
		}
		content = decoded
	}
	document, err := s.documents.Create(r.Context(), req.Title, lifeops.DocType(req.Type), content, req.ContentType)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, document)
}

func (s *Server) handleDocumentRename(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.documents.Rename(r.Context(), id, req.Title); err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"renamed": id})
}

func (s *Server) handleDocumentDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.documents.Delete(r.Context(), id); err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"trashed": id})
}

func (s *Server) handleDayLogGet(w http.ResponseWriter, r *http.Request) {
	entry, err := s.daylog.Today(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDayLogSave(w http.ResponseWriter, r *http.Request) {
	var entry lifeops.DayLogEntry
	if !decodeJSON(w, r, &entry) {
		return
	}
	saved, err := s.daylog.Save(r.Context(), entry)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}
