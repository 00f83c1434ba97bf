// Package index generates data/index.json, the catalog-plus-counts
// summary the read API and frontend consume.
package index

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/Ryder-MHumble/deanagent/internal/crawler"
	"github.com/Ryder-MHumble/deanagent/internal/source"
	"github.com/Ryder-MHumble/deanagent/internal/storage"
)

// SourceEntry summarizes one source in the index.
type SourceEntry struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Dimension     string     `json:"dimension"`
	Group         string     `json:"group,omitempty"`
	Enabled       bool       `json:"enabled"`
	Schedule      string     `json:"schedule"`
	ArticleCount  int        `json:"article_count"`
	LastCrawlAt   *time.Time `json:"last_crawl_at,omitempty"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
}

// DimensionEntry summarizes one dimension.
type DimensionEntry struct {
	Dimension    string     `json:"dimension"`
	SourceCount  int        `json:"source_count"`
	ArticleCount int        `json:"article_count"`
	LastUpdated  *time.Time `json:"last_updated,omitempty"`
}

// Index is the document written to data/index.json.
type Index struct {
	GeneratedAt   time.Time        `json:"generated_at"`
	TotalSources  int              `json:"total_sources"`
	TotalEnabled  int              `json:"total_enabled"`
	TotalArticles int              `json:"total_articles"`
	Dimensions    []DimensionEntry `json:"dimensions"`
	Sources       []SourceEntry    `json:"sources"`
}

// Generate builds the index from the catalog, artifacts, and source state,
// and writes it atomically under the store's data dir.
func Generate(catalog *source.Catalog, store *storage.Store) (*Index, error) {
	artifacts, err := store.ReadAllArtifacts()
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	updated := make(map[string]time.Time)
	for _, artifact := range artifacts {
		counts[artifact.SourceID] = artifact.ItemCount
		updated[artifact.SourceID] = artifact.CrawledAt
	}

	states := store.SourceStates()
	idx := &Index{GeneratedAt: time.Now().UTC()}

	dimAgg := make(map[string]*DimensionEntry)
	for _, def := range catalog.All() {
		state := states[def.ID]
		enabled := resolveEnabled(def, state)
		entry := SourceEntry{
			ID:            def.ID,
			Name:          def.Name,
			Dimension:     def.Dimension,
			Group:         def.Group,
			Enabled:       enabled,
			Schedule:      def.Schedule,
			ArticleCount:  counts[def.ID],
			LastCrawlAt:   state.LastCrawlAt,
			LastSuccessAt: state.LastSuccessAt,
		}
		idx.Sources = append(idx.Sources, entry)
		idx.TotalSources++
		if enabled {
			idx.TotalEnabled++
		}
		idx.TotalArticles += entry.ArticleCount

		agg, ok := dimAgg[def.Dimension]
		if !ok {
			agg = &DimensionEntry{Dimension: def.Dimension}
			dimAgg[def.Dimension] = agg
			idx.Dimensions = append(idx.Dimensions, DimensionEntry{})
		}
		agg.SourceCount++
		agg.ArticleCount += entry.ArticleCount
		if ts, ok := updated[def.ID]; ok {
			if agg.LastUpdated == nil || ts.After(*agg.LastUpdated) {
				t := ts
				agg.LastUpdated = &t
			}
		}
	}

	idx.Dimensions = idx.Dimensions[:0]
	for _, dim := range catalog.Dimensions() {
		if agg, ok := dimAgg[dim]; ok {
			idx.Dimensions = append(idx.Dimensions, *agg)
		}
	}

	if err := write(idx, store.DataDir()); err != nil {
		return nil, err
	}
	return idx, nil
}

func resolveEnabled(def source.Definition, state crawler.SourceState) bool {
	if state.IsEnabledOverride != nil {
		return *state.IsEnabledOverride
	}
	return def.IsEnabled()
}

func write(idx *Index, dataDir string) error {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(dataDir, "index.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads a previously generated index.
func Load(dataDir string) (*Index, error) {
	raw, err := os.ReadFile(filepath.Join(dataDir, "index.json"))
	if err != nil {
		return nil, err
	}
	var idx Index
	if err := json.Unmarshal(raw, &idx); err != nil {
		return nil, err
	}
	return &idx, nil
}
