package crawler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Ryder-MHumble/deanagent/internal/source"
	"github.com/Ryder-MHumble/deanagent/internal/urlutil"
)

// Fetcher turns one source definition into a list of items. A non-nil
// error alongside a non-empty item list signals a partial run; strategies
// never panic outward.
type Fetcher interface {
	FetchAndParse(ctx context.Context) ([]Item, error)
}

// FetcherBuilder resolves a source definition to its fetcher.
type FetcherBuilder func(def source.Definition) (Fetcher, error)

// Store is the slice of the storage layer the run protocol needs.
type Store interface {
	// PriorHashes returns the url_hash set from the previous artifact for
	// this source, or an empty set when none exists.
	PriorHashes(def source.Definition) (map[string]struct{}, error)
	// WriteArtifact atomically persists the run's items as the latest
	// artifact for the source.
	WriteArtifact(def source.Definition, result *Result) error
	// AppendRunLog appends a bounded run-log entry for the source.
	AppendRunLog(sourceID string, entry RunLogEntry) error
	// RecordRun updates the per-source state after a run.
	RecordRun(sourceID string, success bool, at time.Time) error
}

// Runner wraps a fetcher run with dedup, status classification, and
// persistence. Fetch errors never escape as errors: they become failed
// results so the scheduler keeps running.
type Runner struct {
	build  FetcherBuilder
	store  Store
	logger *zap.Logger
}

// NewRunner builds a Runner.
func NewRunner(build FetcherBuilder, store Store, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{build: build, store: store, logger: logger}
}

// Run executes one crawl for def and persists artifact, run log, and state.
func (r *Runner) Run(ctx context.Context, def source.Definition) *Result {
	result := &Result{
		SourceID:  def.ID,
		StartedAt: time.Now().UTC(),
		Items:     []Item{},
	}

	fetcher, err := r.build(def)
	if err != nil {
		r.finish(result, StatusFailed, err.Error())
		r.persist(def, result)
		return result
	}

	items, fetchErr := fetcher.FetchAndParse(ctx)
	items = r.normalize(def, items)

	switch {
	case fetchErr != nil && len(items) == 0:
		r.finish(result, StatusFailed, fetchErr.Error())
	case fetchErr != nil:
		result.Items = items
		r.classify(def, result)
		r.finish(result, StatusPartial, fetchErr.Error())
	default:
		result.Items = items
		r.classify(def, result)
		// A run that only re-observed known items carries no new content,
		// even when the listing itself was non-empty.
		if result.ItemsNew == 0 {
			r.finish(result, StatusNoNewContent, "")
		} else {
			r.finish(result, StatusSuccess, "")
		}
	}

	r.persist(def, result)

	r.logger.Info("crawl complete",
		zap.String("source_id", def.ID),
		zap.String("status", string(result.Status)),
		zap.Int("items_new", result.ItemsNew),
		zap.Int("items_total", result.ItemsTotal),
		zap.Float64("duration_s", result.DurationSeconds),
	)
	return result
}

// normalize fills derived fields and enforces per-run url_hash uniqueness.
func (r *Runner) normalize(def source.Definition, items []Item) []Item {
	seen := make(map[string]struct{}, len(items))
	out := make([]Item, 0, len(items))
	for _, item := range items {
		if item.URLHash == "" {
			item.URLHash = urlutil.URLHash(item.URL)
		}
		if _, dup := seen[item.URLHash]; dup {
			continue
		}
		seen[item.URLHash] = struct{}{}
		if item.SourceID == "" {
			item.SourceID = def.ID
		}
		if item.Dimension == "" {
			item.Dimension = def.Dimension
		}
		item.Tags = mergeTags(def.Tags, item.Tags)
		out = append(out, item)
	}
	return out
}

// classify marks items new against the prior artifact and counts them.
func (r *Runner) classify(def source.Definition, result *Result) {
	prior, err := r.store.PriorHashes(def)
	if err != nil {
		r.logger.Warn("prior artifact unreadable, treating all items as new",
			zap.String("source_id", def.ID), zap.Error(err))
		prior = map[string]struct{}{}
	}
	for i := range result.Items {
		_, known := prior[result.Items[i].URLHash]
		result.Items[i].IsNew = !known
		if !known {
			result.ItemsNew++
		}
	}
	result.ItemsTotal = len(result.Items)
}

func (r *Runner) finish(result *Result, status Status, errMsg string) {
	result.Status = status
	result.ErrorMessage = errMsg
	result.EndedAt = time.Now().UTC()
	result.DurationSeconds = result.EndedAt.Sub(result.StartedAt).Seconds()
}

func (r *Runner) persist(def source.Definition, result *Result) {
	if result.Status != StatusFailed {
		if err := r.store.WriteArtifact(def, result); err != nil {
			r.logger.Error("artifact write failed",
				zap.String("source_id", def.ID), zap.Error(err))
		}
	}

	entry := RunLogEntry{
		SourceID:        result.SourceID,
		Status:          result.Status,
		ItemsTotal:      result.ItemsTotal,
		ItemsNew:        result.ItemsNew,
		ErrorMessage:    result.ErrorMessage,
		StartedAt:       result.StartedAt,
		EndedAt:         result.EndedAt,
		DurationSeconds: result.DurationSeconds,
		CreatedAt:       time.Now().UTC(),
	}
	if err := r.store.AppendRunLog(def.ID, entry); err != nil {
		r.logger.Error("run log append failed",
			zap.String("source_id", def.ID), zap.Error(err))
	}

	success := result.Status == StatusSuccess || result.Status == StatusNoNewContent
	if err := r.store.RecordRun(def.ID, success, result.EndedAt); err != nil {
		r.logger.Error("source state update failed",
			zap.String("source_id", def.ID), zap.Error(err))
	}
}

func mergeTags(sourceTags, itemTags []string) []string {
	if len(sourceTags) == 0 && len(itemTags) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(sourceTags)+len(itemTags))
	out := make([]string, 0, len(sourceTags)+len(itemTags))
	for _, t := range append(append([]string{}, sourceTags...), itemTags...) {
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
