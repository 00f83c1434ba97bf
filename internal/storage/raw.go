package storage

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Ryder-MHumble/deanagent/internal/crawler"
	"github.com/Ryder-MHumble/deanagent/internal/source"
)

// Artifact is the on-disk shape of one source's latest crawl output.
type Artifact struct {
	SourceID          string         `json:"source_id"`
	Dimension         string         `json:"dimension"`
	Group             string         `json:"group,omitempty"`
	SourceName        string         `json:"source_name"`
	CrawledAt         time.Time      `json:"crawled_at"`
	PreviousCrawledAt *time.Time     `json:"previous_crawled_at,omitempty"`
	ItemCount         int            `json:"item_count"`
	NewItemCount      int            `json:"new_item_count"`
	Items             []crawler.Item `json:"items"`
}

// Store is the root of the data directory tree.
type Store struct {
	dataDir string
	logger  *zap.Logger

	stateMu sync.Mutex
	logsMu  keyedMutex
}

// New builds a Store rooted at dataDir.
func New(dataDir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dataDir: dataDir, logger: logger}
}

// DataDir returns the store root.
func (s *Store) DataDir() string { return s.dataDir }

// RawDir returns the raw artifact root.
func (s *Store) RawDir() string { return filepath.Join(s.dataDir, "raw") }

// ProcessedDir returns the processed-feed directory for a module.
func (s *Store) ProcessedDir(module string) string {
	return filepath.Join(s.dataDir, "processed", module)
}

func (s *Store) artifactPath(def source.Definition) string {
	if def.Group != "" {
		return filepath.Join(s.RawDir(), def.Dimension, def.Group, def.ID, "latest.json")
	}
	return filepath.Join(s.RawDir(), def.Dimension, def.ID, "latest.json")
}

// ReadArtifact loads the latest artifact for a source definition.
func (s *Store) ReadArtifact(def source.Definition) (*Artifact, error) {
	var a Artifact
	if err := readJSON(s.artifactPath(def), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// PriorHashes returns the url_hash set from the previous artifact. A
// missing artifact yields an empty set; a corrupted one is an error the
// caller may choose to tolerate.
func (s *Store) PriorHashes(def source.Definition) (map[string]struct{}, error) {
	artifact, err := s.ReadArtifact(def)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]struct{}{}, nil
		}
		return nil, err
	}
	hashes := make(map[string]struct{}, len(artifact.Items))
	for _, item := range artifact.Items {
		hashes[item.URLHash] = struct{}{}
	}
	return hashes, nil
}

// WriteArtifact atomically replaces the latest artifact with the run's
// items. The previous crawl timestamp is carried over for delta context.
func (s *Store) WriteArtifact(def source.Definition, result *crawler.Result) error {
	var previous *time.Time
	if prior, err := s.ReadArtifact(def); err == nil {
		t := prior.CrawledAt
		previous = &t
	}

	items := result.Items
	if items == nil {
		items = []crawler.Item{}
	}
	artifact := Artifact{
		SourceID:          def.ID,
		Dimension:         def.Dimension,
		Group:             def.Group,
		SourceName:        def.Name,
		CrawledAt:         result.EndedAt,
		PreviousCrawledAt: previous,
		ItemCount:         len(items),
		NewItemCount:      result.ItemsNew,
		Items:             items,
	}
	return writeJSONAtomic(s.artifactPath(def), &artifact)
}

// ReadDimensionArtifacts loads every artifact under one dimension.
func (s *Store) ReadDimensionArtifacts(dimension string) ([]*Artifact, error) {
	root := filepath.Join(s.RawDir(), dimension)
	return s.readArtifactsUnder(root)
}

// ReadAllArtifacts loads every artifact in the raw tree.
func (s *Store) ReadAllArtifacts() ([]*Artifact, error) {
	return s.readArtifactsUnder(s.RawDir())
}

func (s *Store) readArtifactsUnder(root string) ([]*Artifact, error) {
	var artifacts []*Artifact
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || d.Name() != "latest.json" {
			return nil
		}
		var a Artifact
		if readErr := readJSON(path, &a); readErr != nil {
			s.logger.Warn("skipping unreadable artifact", zap.String("path", path), zap.Error(readErr))
			return nil
		}
		artifacts = append(artifacts, &a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return artifacts, nil
}
