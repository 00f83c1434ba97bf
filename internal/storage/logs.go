package storage

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Ryder-MHumble/deanagent/internal/crawler"
)

// maxLogsPerSource bounds each source's run log; the oldest entry drops
// when the cap is exceeded.
const maxLogsPerSource = 100

func (s *Store) runLogPath(sourceID string) string {
	return filepath.Join(s.dataDir, "logs", sourceID, "crawl_logs.json")
}

// AppendRunLog appends one run-log entry for a source, trimming to the cap.
// Writers for the same source are serialized; the log file is assumed to
// have no external writers.
func (s *Store) AppendRunLog(sourceID string, entry crawler.RunLogEntry) error {
	mu := s.logsMu.get(sourceID)
	mu.Lock()
	defer mu.Unlock()

	logs := s.readRunLogs(sourceID)
	logs = append(logs, entry)
	if len(logs) > maxLogsPerSource {
		logs = logs[len(logs)-maxLogsPerSource:]
	}
	return writeJSONAtomic(s.runLogPath(sourceID), logs)
}

func (s *Store) readRunLogs(sourceID string) []crawler.RunLogEntry {
	var logs []crawler.RunLogEntry
	if err := readJSON(s.runLogPath(sourceID), &logs); err != nil {
		return nil
	}
	return logs
}

// RunLogs returns up to limit entries for one source, newest first.
func (s *Store) RunLogs(sourceID string, limit int) []crawler.RunLogEntry {
	logs := s.readRunLogs(sourceID)
	sort.Slice(logs, func(i, j int) bool {
		return logs[i].StartedAt.After(logs[j].StartedAt)
	})
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs
}

// AllRunLogs returns up to limit entries across all sources, newest first.
func (s *Store) AllRunLogs(limit int) []crawler.RunLogEntry {
	logsDir := filepath.Join(s.dataDir, "logs")
	entries, err := os.ReadDir(logsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return nil
	}
	var all []crawler.RunLogEntry
	for _, e := range entries {
		if e.IsDir() {
			all = append(all, s.readRunLogs(e.Name())...)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].StartedAt.After(all[j].StartedAt)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

// RecentRunStats aggregates crawl and new-article counts over a window.
// The health endpoint surfaces these.
func (s *Store) RecentRunStats(window time.Duration) (crawls, newItems int) {
	cutoff := time.Now().UTC().Add(-window)
	for _, entry := range s.AllRunLogs(0) {
		if entry.StartedAt.After(cutoff) {
			crawls++
			newItems += entry.ItemsNew
		}
	}
	return crawls, newItems
}
