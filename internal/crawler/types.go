// Package crawler defines the core crawl types and the run protocol shared
// by every fetch strategy.
package crawler

import (
	"time"
)

// Status classifies the outcome of one source run.
type Status string

// Crawl statuses persisted in run logs and artifacts.
const (
	StatusSuccess      Status = "success"
	StatusNoNewContent Status = "no_new_content"
	StatusPartial      Status = "partial"
	StatusFailed       Status = "failed"
)

// Item is a single article/entry extracted by a fetcher.
type Item struct {
	Title       string         `json:"title"`
	URL         string         `json:"url"`
	URLHash     string         `json:"url_hash"`
	PublishedAt *time.Time     `json:"published_at"`
	Author      string         `json:"author,omitempty"`
	Summary     string         `json:"summary,omitempty"`
	Content     string         `json:"content,omitempty"`
	ContentHTML string         `json:"content_html,omitempty"`
	ContentHash string         `json:"content_hash,omitempty"`
	SourceID    string         `json:"source_id"`
	Dimension   string         `json:"dimension"`
	Tags        []string       `json:"tags"`
	Extra       map[string]any `json:"extra,omitempty"`
	IsNew       bool           `json:"is_new"`
}

// Result is the record of one source run.
type Result struct {
	SourceID        string    `json:"source_id"`
	Status          Status    `json:"status"`
	ItemsTotal      int       `json:"items_total"`
	ItemsNew        int       `json:"items_new"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	DurationSeconds float64   `json:"duration_seconds"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	Items           []Item    `json:"items"`
}

// RunLogEntry is one bounded run-log record for a source.
type RunLogEntry struct {
	SourceID        string    `json:"source_id"`
	Status          Status    `json:"status"`
	ItemsTotal      int       `json:"items_total"`
	ItemsNew        int       `json:"items_new"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	DurationSeconds float64   `json:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at"`
}

// SourceState is the mutable per-source runtime state.
type SourceState struct {
	LastCrawlAt         *time.Time `json:"last_crawl_at,omitempty"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	IsEnabledOverride   *bool      `json:"is_enabled_override,omitempty"`
}
