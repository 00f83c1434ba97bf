package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// catalogFile is the YAML layout of one per-dimension file under sources/.
type catalogFile struct {
	Dimension            string       `yaml:"dimension"`
	DefaultKeywordFilter []string     `yaml:"default_keyword_filter"`
	Sources              []Definition `yaml:"sources"`
}

// Catalog is the loaded, validated source set.
type Catalog struct {
	defs []Definition
	byID map[string]Definition
}

// LoadCatalog reads every *.yaml file under dir, applies per-file dimension
// and keyword-filter defaults, validates, and enforces global ID uniqueness.
func LoadCatalog(dir string, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read sources dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	cat := &Catalog{byID: make(map[string]Definition)}
	for _, name := range names {
		path := filepath.Join(dir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		for _, def := range file.Sources {
			// Per-item dimension wins (twitter.yaml mixes dimensions).
			if def.Dimension == "" {
				def.Dimension = file.Dimension
			}
			if def.KeywordFilter == nil {
				def.KeywordFilter = file.DefaultKeywordFilter
			}
			if err := def.Validate(); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			if _, dup := cat.byID[def.ID]; dup {
				return nil, fmt.Errorf("%s: duplicate source id %q", path, def.ID)
			}
			cat.byID[def.ID] = def
			cat.defs = append(cat.defs, def)
		}
	}

	logger.Info("loaded source catalog",
		zap.Int("sources", len(cat.defs)),
		zap.String("dir", dir),
	)
	return cat, nil
}

// All returns every definition in catalog order.
func (c *Catalog) All() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Get looks up a definition by ID.
func (c *Catalog) Get(id string) (Definition, bool) {
	d, ok := c.byID[id]
	return d, ok
}

// ByDimension returns definitions belonging to one dimension.
func (c *Catalog) ByDimension(dimension string) []Definition {
	var out []Definition
	for _, d := range c.defs {
		if d.Dimension == dimension {
			out = append(out, d)
		}
	}
	return out
}

// Dimensions returns the sorted distinct dimensions present in the catalog.
func (c *Catalog) Dimensions() []string {
	seen := make(map[string]struct{})
	for _, d := range c.defs {
		seen[d.Dimension] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for dim := range seen {
		out = append(out, dim)
	}
	sort.Strings(out)
	return out
}
