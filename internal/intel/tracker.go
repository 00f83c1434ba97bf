package intel

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// HashTracker records which raw items each module has already processed,
// keyed url_hash → content_hash at processing time. An item is "new or
// changed" iff its current content hash differs from the stored one.
type HashTracker struct {
	path   string
	hashes map[string]string
}

type trackerFile struct {
	Hashes  map[string]string `json:"hashes"`
	LastRun time.Time         `json:"last_run"`
}

// NewHashTracker loads the tracker file for a module's processed dir.
// Missing or corrupted files start empty.
func NewHashTracker(processedDir string) *HashTracker {
	t := &HashTracker{
		path:   filepath.Join(processedDir, "_processed_hashes.json"),
		hashes: make(map[string]string),
	}
	raw, err := os.ReadFile(t.path)
	if err != nil {
		return t
	}
	var file trackerFile
	if err := json.Unmarshal(raw, &file); err == nil && file.Hashes != nil {
		t.hashes = file.Hashes
	}
	return t
}

// NeedsProcessing reports whether the item is new or its content changed
// since it was last processed.
func (t *HashTracker) NeedsProcessing(urlHash, contentHash string) bool {
	prev, seen := t.hashes[urlHash]
	return !seen || prev != contentHash
}

// MarkProcessed records the item's content hash.
func (t *HashTracker) MarkProcessed(urlHash, contentHash string) {
	t.hashes[urlHash] = contentHash
}

// Len reports how many items have been processed.
func (t *HashTracker) Len() int { return len(t.hashes) }

// Save persists the tracker atomically.
func (t *HashTracker) Save() error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0o750); err != nil {
		return err
	}
	payload := trackerFile{Hashes: t.hashes, LastRun: time.Now().UTC()}
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, t.path)
}

// Reset clears the tracker (used by force runs).
func (t *HashTracker) Reset() {
	t.hashes = make(map[string]string)
}

// SaveOutputJSON writes a standard feed document atomically: the
// generated_at / item_count / items envelope every processed feed carries.
func SaveOutputJSON(processedDir, filename string, itemCount int, items any, extra map[string]any) error {
	if err := os.MkdirAll(processedDir, 0o750); err != nil {
		return err
	}
	payload := map[string]any{
		"generated_at": time.Now().UTC(),
		"item_count":   itemCount,
		"items":        items,
	}
	for k, v := range extra {
		payload[k] = v
	}
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(processedDir, filename)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
