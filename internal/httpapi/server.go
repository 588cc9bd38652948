package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lifeops-dev/lifeops/internal/auth"
	"github.com/lifeops-dev/lifeops/internal/lifeops"
	"github.com/lifeops-dev/lifeops/internal/metrics"
)

type ServerOptions struct {
	Auth      *auth.Service
	Routines  *lifeops.RoutineStore
	Anchors   *lifeops.AnchorStore
	Documents *lifeops.DocumentStore
	DayLog    *lifeops.DayLogStore
	Hub       *Hub
	Logger    lifeops.Logger
}

// Server is the UI-facing HTTP API over the feature stores.
type Server struct {
	auth      *auth.Service
	routines  *lifeops.RoutineStore
	anchors   *lifeops.AnchorStore
	documents *lifeops.DocumentStore
	daylog    *lifeops.DayLogStore
	hub       *Hub
	log       lifeops.Logger
}

func NewServer(opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logDiscard{}
	}
	hub := opts.Hub
	if hub == nil {
		hub = NewHub(logger)
	}
	return &Server{
		auth:      opts.Auth,
		routines:  opts.Routines,
		anchors:   opts.Anchors,
		documents: opts.Documents,
		daylog:    opts.DayLog,
		hub:       hub,
		log:       logger,
	}
}

// Hub exposes the notifier the stores should be wired to.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(authRateLimit(time.Second, 5))
		r.Get("/auth/login", s.auth.BeginLogin)
		r.Get("/auth/callback", s.auth.Callback)
		r.Post("/auth/logout", s.handleLogout)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.auth.RequireSession)

		r.Route("/v1/routines", func(r chi.Router) {
			r.Get("/today", s.handleRoutinesToday)
			r.Post("/refresh", s.handleRoutinesRefresh)
			r.Post("/reset", s.handleRoutinesReset)
			r.Post("/templates", s.handleTemplateAdd)
			r.Delete("/templates/{id}", s.handleTemplateRemove)
			r.Post("/today/{id}/toggle", s.handleToggle)
			r.Post("/today/{id}/postpone", s.handlePostpone)
		})

		r.Route("/v1/anchors", func(r chi.Router) {
			r.Get("/", s.handleAnchorList)
			r.Post("/", s.handleAnchorAdd)
			r.Patch("/{id}", s.handleAnchorUpdate)
			r.Delete("/{id}", s.handleAnchorRemove)
			r.Post("/sync", s.handleAnchorSync)
			r.Get("/export.ics", s.handleAnchorExport)
		})

		r.Route("/v1/documents", func(r chi.Router) {
			r.Get("/", s.handleDocumentList)
			r.Post("/sync", s.handleDocumentSync)
			r.Post("/", s.handleDocumentCreate)
			r.Patch("/{id}", s.handleDocumentRename)
			r.Delete("/{id}", s.handleDocumentDelete)
		})

		r.Get("/v1/daylog", s.handleDayLogGet)
		r.Put("/v1/daylog/today", s.handleDayLogSave)

		r.Method(http.MethodGet, "/v1/stream", s.hub)
	})

	return r
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Sessions().Clear(w, r)
	s.auth.SignOut()
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}
