package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Ryder-MHumble/deanagent/internal/crawler"
	"github.com/Ryder-MHumble/deanagent/internal/pipeline"
	"github.com/Ryder-MHumble/deanagent/internal/source"
)

// failingThreshold is the consecutive-failure count that marks a source
// failing in the health rollup.
const failingThreshold = 3

type sourceView struct {
	source.Definition
	Enabled             bool       `json:"enabled"`
	LastCrawlAt         *time.Time `json:"last_crawl_at,omitempty"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
}

func (s *Server) sourceView(def source.Definition, state crawler.SourceState) sourceView {
	enabled := def.IsEnabled()
	if state.IsEnabledOverride != nil {
		enabled = *state.IsEnabledOverride
	}
	return sourceView{
		Definition:          def,
		Enabled:             enabled,
		LastCrawlAt:         state.LastCrawlAt,
		LastSuccessAt:       state.LastSuccessAt,
		ConsecutiveFailures: state.ConsecutiveFailures,
	}
}

func (s *Server) listSources(w http.ResponseWriter, r *http.Request) {
	dimension := r.URL.Query().Get("dimension")
	states := s.store.SourceStates()

	var views []sourceView
	for _, def := range s.catalog.All() {
		if dimension != "" && def.Dimension != dimension {
			continue
		}
		views = append(views, s.sourceView(def, states[def.ID]))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total": len(views),
		"items": views,
	})
}

func (s *Server) getSource(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "source_id")
	def, ok := s.catalog.Get(sourceID)
	if !ok {
		writeError(w, http.StatusNotFound, "source not found")
		return
	}
	writeJSON(w, http.StatusOK, s.sourceView(def, s.store.SourceState(sourceID)))
}

func (s *Server) getSourceLogs(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "source_id")
	if _, ok := s.catalog.Get(sourceID); !ok {
		writeError(w, http.StatusNotFound, "source not found")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	logs := s.store.RunLogs(sourceID, limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"source_id": sourceID,
		"total":     len(logs),
		"items":     logs,
	})
}

func (s *Server) toggleSource(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "source_id")
	if _, ok := s.catalog.Get(sourceID); !ok {
		writeError(w, http.StatusNotFound, "source not found")
		return
	}
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
		writeError(w, http.StatusBadRequest, "missing enabled flag")
		return
	}
	if err := s.store.SetEnabledOverride(sourceID, *body.Enabled); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source_id": sourceID,
		"enabled":   *body.Enabled,
	})
}

func (s *Server) triggerSource(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "source_id")
	if s.scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not running")
		return
	}
	if err := s.scheduler.Trigger(sourceID); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"source_id": sourceID,
		"status":    "triggered",
	})
}

func (s *Server) triggerPipeline(w http.ResponseWriter, _ *http.Request) {
	if s.scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not running")
		return
	}
	s.scheduler.TriggerPipeline()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}

func (s *Server) listDimensions(w http.ResponseWriter, _ *http.Request) {
	states := s.store.SourceStates()
	type dimensionView struct {
		Dimension   string     `json:"dimension"`
		SourceCount int        `json:"source_count"`
		Enabled     int        `json:"enabled_count"`
		LastUpdated *time.Time `json:"last_updated,omitempty"`
	}

	var views []dimensionView
	for _, dim := range s.catalog.Dimensions() {
		view := dimensionView{Dimension: dim}
		for _, def := range s.catalog.ByDimension(dim) {
			view.SourceCount++
			state := states[def.ID]
			enabled := def.IsEnabled()
			if state.IsEnabledOverride != nil {
				enabled = *state.IsEnabledOverride
			}
			if enabled {
				view.Enabled++
			}
			if state.LastSuccessAt != nil &&
				(view.LastUpdated == nil || state.LastSuccessAt.After(*view.LastUpdated)) {
				view.LastUpdated = state.LastSuccessAt
			}
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total": len(views),
		"items": views,
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	states := s.store.SourceStates()
	healthy, warning, failing := 0, 0, 0
	for _, def := range s.catalog.All() {
		state := states[def.ID]
		switch {
		case state.ConsecutiveFailures >= failingThreshold:
			failing++
		case state.ConsecutiveFailures > 0:
			warning++
		default:
			healthy++
		}
	}
	crawls, newItems := s.store.RecentRunStats(24 * time.Hour)

	inFlight := 0
	schedulerUp := s.scheduler != nil
	if schedulerUp {
		inFlight = s.scheduler.InFlight()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"scheduler_up":     schedulerUp,
		"in_flight_crawls": inFlight,
		"uptime_seconds":   int(time.Since(s.startedAt).Seconds()),
		"sources": map[string]int{
			"healthy": healthy,
			"warning": warning,
			"failing": failing,
		},
		"last_24h": map[string]int{
			"crawls":       crawls,
			"new_articles": newItems,
		},
	})
}

func (s *Server) pipelineStatus(w http.ResponseWriter, _ *http.Request) {
	result, err := pipeline.LatestStatus(s.store.DataDir())
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "never_run"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}
