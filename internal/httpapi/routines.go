package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lifeops-dev/lifeops/internal/lifeops"
	"github.com/lifeops-dev/lifeops/internal/metrics"
)

type routinesResponse struct {
	Date      string                    `json:"date"`
	Templates []lifeops.RoutineTemplate `json:"templates"`
	Items     []lifeops.RoutineLogItem  `json:"items"`
	Syncing   bool                      `json:"syncing"`
}

func (s *Server) handleRoutinesToday(w http.ResponseWriter, r *http.Request) {
	items, err := s.routines.Today(r.Context())
	metrics.CountSyncRun("routines", err)
	if err != nil {
		s.respondError(w, err)
		return
	}
	date, templates, _ := s.routines.Snapshot()
	writeJSON(w, http.StatusOK, routinesResponse{
		Date:      date,
		Templates: templates,
		Items:     items,
		Syncing:   s.routines.Syncing(),
	})
}

func (s *Server) handleRoutinesRefresh(w http.ResponseWriter, r *http.Request) {
	items, err := s.routines.Refresh(r.Context())
	metrics.CountSyncRun("routines", err)
	if err != nil {
		s.respondError(w, err)
		return
	}
	date, templates, _ := s.routines.Snapshot()
	writeJSON(w, http.StatusOK, routinesResponse{Date: date, Templates: templates, Items: items})
}

func (s *Server) handleRoutinesReset(w http.ResponseWriter, r *http.Request) {
	items, err := s.routines.ResetToday(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	date, templates, _ := s.routines.Snapshot()
	writeJSON(w, http.StatusOK, routinesResponse{Date: date, Templates: templates, Items: items})
}

func (s *Server) handleTemplateAdd(w http.ResponseWriter, r *http.Request) {
	var template lifeops.RoutineTemplate
	if !decodeJSON(w, r, &template) {
		return
	}
	if err := s.routines.AddTemplate(r.Context(), template); err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, template)
}

func (s *Server) handleTemplateRemove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.routines.RemoveTemplate(r.Context(), id); err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"removed": id})
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := s.routines.Toggle(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handlePostpone(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.routines.Postpone(r.Context(), id); err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"postponed": id})
}
