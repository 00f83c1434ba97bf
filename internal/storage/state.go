package storage

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Ryder-MHumble/deanagent/internal/crawler"
)

// keyedMutex serializes writers per key (one mutex per source run log).
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}

func (s *Store) statePath() string {
	return filepath.Join(s.dataDir, "state", "source_state.json")
}

// SourceStates loads the whole state map. Corrupted or missing files yield
// an empty map: state is reconstructible from subsequent runs.
func (s *Store) SourceStates() map[string]crawler.SourceState {
	var state map[string]crawler.SourceState
	if err := readJSON(s.statePath(), &state); err != nil || state == nil {
		return map[string]crawler.SourceState{}
	}
	return state
}

// SourceState returns the state for one source (zero value when absent).
func (s *Store) SourceState(sourceID string) crawler.SourceState {
	return s.SourceStates()[sourceID]
}

// updateState applies fn to the state map under the state mutex and writes
// the result atomically.
func (s *Store) updateState(fn func(map[string]crawler.SourceState)) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	state := s.SourceStates()
	fn(state)
	return writeJSONAtomic(s.statePath(), state)
}

// RecordRun updates last-crawl bookkeeping after a run. Success resets the
// consecutive-failure counter; failure increments it.
func (s *Store) RecordRun(sourceID string, success bool, at time.Time) error {
	return s.updateState(func(state map[string]crawler.SourceState) {
		entry := state[sourceID]
		t := at
		entry.LastCrawlAt = &t
		if success {
			entry.LastSuccessAt = &t
			entry.ConsecutiveFailures = 0
		} else {
			entry.ConsecutiveFailures++
		}
		state[sourceID] = entry
	})
}

// SetEnabledOverride records the API-driven enabled toggle for a source.
func (s *Store) SetEnabledOverride(sourceID string, enabled bool) error {
	return s.updateState(func(state map[string]crawler.SourceState) {
		entry := state[sourceID]
		entry.IsEnabledOverride = &enabled
		state[sourceID] = entry
	})
}

// ClearEnabledOverride removes the override so the catalog flag applies.
func (s *Store) ClearEnabledOverride(sourceID string) error {
	return s.updateState(func(state map[string]crawler.SourceState) {
		entry := state[sourceID]
		entry.IsEnabledOverride = nil
		state[sourceID] = entry
	})
}

func (s *Store) annotationsPath() string {
	return filepath.Join(s.dataDir, "state", "article_annotations.json")
}

// Annotation holds reader-maintained flags for one article.
type Annotation struct {
	IsRead     bool   `json:"is_read,omitempty"`
	Importance string `json:"importance,omitempty"`
}

// Annotations loads the article annotation map (url_hash → flags).
func (s *Store) Annotations() map[string]Annotation {
	var out map[string]Annotation
	if err := readJSON(s.annotationsPath(), &out); err != nil || out == nil {
		return map[string]Annotation{}
	}
	return out
}

// SetAnnotation upserts the flags for one article.
func (s *Store) SetAnnotation(urlHash string, ann Annotation) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	all := s.Annotations()
	all[urlHash] = ann
	return writeJSONAtomic(s.annotationsPath(), all)
}

// HasRawData reports whether any artifact exists under the raw tree. The
// scheduler uses it to decide first-run priming.
func (s *Store) HasRawData() bool {
	found := false
	_ = filepath.WalkDir(s.RawDir(), func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() && d.Name() == "latest.json" {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found
}
