// Package storage implements the file-backed persistence layer: raw crawl
// artifacts with new-item deltas, per-source runtime state, bounded run
// logs, snapshot history, and processed-feed output helpers.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// StorageError wraps disk-level failures (permissions, full disk).
type StorageError struct {
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error at %s: %v", e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IntegrityError marks a corrupted on-disk JSON document.
type IntegrityError struct {
	Path string
	Err  error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("corrupted artifact at %s: %v", e.Path, e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// writeJSONAtomic serializes v to a temp file in the target directory and
// renames it over path. Readers never observe a partial write; on failure
// the prior file is untouched.
func writeJSONAtomic(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return &StorageError{Path: dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &StorageError{Path: path, Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	enc := json.NewEncoder(tmp)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return &StorageError{Path: path, Err: fmt.Errorf("encode: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		return &StorageError{Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return &StorageError{Path: path, Err: err}
	}
	return nil
}

// readJSON loads path into v. A missing file returns os.ErrNotExist;
// malformed JSON returns an IntegrityError.
func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &IntegrityError{Path: path, Err: err}
	}
	return nil
}
