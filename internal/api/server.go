// Package api exposes the HTTP read interface over the file-backed data
// tree: articles, sources, dimensions, health, pipeline status, and the
// processed intel feeds. It never writes crawl data; its only mutations
// are the enabled override, article annotations, and manual triggers.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Ryder-MHumble/deanagent/internal/source"
	"github.com/Ryder-MHumble/deanagent/internal/storage"
)

// Trigger is the slice of the scheduler the API can poke.
type Trigger interface {
	Trigger(sourceID string) error
	TriggerPipeline()
	InFlight() int
}

// Server wires HTTP handlers over the catalog and storage.
type Server struct {
	router    chi.Router
	catalog   *source.Catalog
	store     *storage.Store
	scheduler Trigger
	logger    *zap.Logger
	startedAt time.Time
}

// NewServer constructs a Server with middleware and routes.
func NewServer(catalog *source.Catalog, store *storage.Store, scheduler Trigger, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		catalog:   catalog,
		store:     store,
		scheduler: scheduler,
		logger:    logger,
		startedAt: time.Now().UTC(),
	}

	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/articles", s.listArticles)
		r.Post("/articles/{url_hash}/annotation", s.setAnnotation)

		r.Route("/sources", func(r chi.Router) {
			r.Get("/", s.listSources)
			r.Route("/{source_id}", func(r chi.Router) {
				r.Get("/", s.getSource)
				r.Get("/logs", s.getSourceLogs)
				r.Post("/toggle", s.toggleSource)
				r.Post("/trigger", s.triggerSource)
			})
		})

		r.Get("/dimensions", s.listDimensions)
		r.Get("/dimensions/{dimension}/articles", s.listDimensionArticles)

		r.Get("/health", s.health)
		r.Get("/pipeline/status", s.pipelineStatus)
		r.Post("/pipeline/trigger", s.triggerPipeline)

		r.Route("/intel", func(r chi.Router) {
			r.Get("/policy/feed", s.intelFeed("policy_intel", "feed.json"))
			r.Get("/policy/opportunities", s.intelFeed("policy_intel", "opportunities.json"))
			r.Get("/personnel/feed", s.intelFeed("personnel_intel", "feed.json"))
			r.Get("/personnel/changes", s.intelFeed("personnel_intel", "changes.json"))
			r.Get("/personnel/enriched", s.intelFeed("personnel_intel", "enriched_feed.json"))
			r.Get("/tech-frontier/topics", s.intelFeed("tech_frontier", "topics.json"))
			r.Get("/tech-frontier/opportunities", s.intelFeed("tech_frontier", "opportunities.json"))
			r.Get("/tech-frontier/stats", s.intelFeed("tech_frontier", "stats.json"))
			r.Get("/university/feed", s.intelFeed("university_eco", "feed.json"))
			r.Get("/university/overview", s.intelFeed("university_eco", "overview.json"))
			r.Get("/university/research-outputs", s.intelFeed("university_eco", "research_outputs.json"))
			r.Get("/briefing/daily", s.intelFeed("daily_briefing", "briefing.json"))
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(started)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("handler panic",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
				)
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
