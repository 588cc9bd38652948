package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lifeops-dev/lifeops/internal/lifeops"
	"github.com/lifeops-dev/lifeops/internal/metrics"
)

func (s *Server) handleAnchorList(w http.ResponseWriter, _ *http.Request) {
	anchors, err := s.anchors.List()
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"anchors": anchors,
		"syncing": s.anchors.Syncing(),
	})
}

func (s *Server) handleAnchorAdd(w http.ResponseWriter, r *http.Request) {
	var anchor lifeops.Anchor
	if !decodeJSON(w, r, &anchor) {
		return
	}
	created, err := s.anchors.Add(r.Context(), anchor)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleAnchorUpdate(w http.ResponseWriter, r *http.Request) {
	var update lifeops.AnchorUpdate
	if !decodeJSON(w, r, &update) {
		return
	}
	updated, err := s.anchors.Update(r.Context(), chi.URLParam(r, "id"), update)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleAnchorRemove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.anchors.Remove(r.Context(), id); err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"removed": id})
}

// handleAnchorSync runs a full convergence pass. Per-anchor failures come
// back as a 207 with the joined message; the pass itself still ran to the
// end.
func (s *Server) handleAnchorSync(w http.ResponseWriter, r *http.Request) {
	err := s.anchors.SyncAll(r.Context())
	metrics.CountSyncRun("anchors", err)
	if err != nil {
		if isRemoteAuthError(err) {
			s.respondError(w, err)
			return
		}
		anchors, listErr := s.anchors.List()
		if listErr != nil {
			s.respondError(w, listErr)
			return
		}
		writeJSON(w, http.StatusMultiStatus, map[string]any{
			"anchors": anchors,
			"errors":  err.Error(),
		})
		return
	}
	anchors, err := s.anchors.List()
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"anchors": anchors})
}

func (s *Server) handleAnchorExport(w http.ResponseWriter, _ *http.Request) {
	payload, err := s.anchors.ExportICS()
	if err != nil {
		s.respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="anchors.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(payload))
}
