package storage

import (
	"path/filepath"
	"time"
)

// Snapshot is one captured version of a change-tracked page.
type Snapshot struct {
	CapturedAt    time.Time `json:"captured_at"`
	ContentHash   string    `json:"content_hash"`
	ContentLength int       `json:"content_length"`
	ContentText   string    `json:"content_text,omitempty"`
	DiffSummary   string    `json:"diff_summary,omitempty"`
}

func (s *Store) snapshotPath(sourceID string) string {
	return filepath.Join(s.dataDir, "state", "snapshots", sourceID+".json")
}

// Snapshots returns the stored snapshot history for a source, oldest first.
func (s *Store) Snapshots(sourceID string) []Snapshot {
	var snaps []Snapshot
	if err := readJSON(s.snapshotPath(sourceID), &snaps); err != nil {
		return nil
	}
	return snaps
}

// LastSnapshot returns the most recent snapshot, or nil when none exists.
func (s *Store) LastSnapshot(sourceID string) *Snapshot {
	snaps := s.Snapshots(sourceID)
	if len(snaps) == 0 {
		return nil
	}
	last := snaps[len(snaps)-1]
	return &last
}

// AppendSnapshot appends a snapshot record. Only the newest record keeps
// the full content text; older entries are trimmed to hash metadata so the
// history file stays small.
func (s *Store) AppendSnapshot(sourceID string, snap Snapshot) error {
	snaps := s.Snapshots(sourceID)
	for i := range snaps {
		snaps[i].ContentText = ""
	}
	snaps = append(snaps, snap)
	return writeJSONAtomic(s.snapshotPath(sourceID), snaps)
}
