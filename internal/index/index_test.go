package index

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ryder-MHumble/deanagent/internal/crawler"
	"github.com/Ryder-MHumble/deanagent/internal/source"
	"github.com/Ryder-MHumble/deanagent/internal/storage"
)

func testCatalog(t *testing.T) *source.Catalog {
	t.Helper()
	dir := t.TempDir()
	content := `
dimension: technology
sources:
  - {id: t1, name: Source One, url: "https://a/", fetch_strategy: static, schedule: daily}
  - {id: t2, name: Source Two, url: "https://b/", fetch_strategy: static, schedule: daily, enabled: false}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "technology.yaml"), []byte(content), 0o644))
	cat, err := source.LoadCatalog(dir, zap.NewNop())
	require.NoError(t, err)
	return cat
}

func TestGenerate(t *testing.T) {
	catalog := testCatalog(t)
	store := storage.New(t.TempDir(), zap.NewNop())

	def, _ := catalog.Get("t1")
	require.NoError(t, store.WriteArtifact(def, &crawler.Result{
		SourceID: "t1",
		EndedAt:  time.Now().UTC(),
		ItemsNew: 2,
		Items: []crawler.Item{
			{URLHash: "h1", Title: "一"},
			{URLHash: "h2", Title: "二"},
		},
	}))
	require.NoError(t, store.RecordRun("t1", true, time.Now().UTC()))

	idx, err := Generate(catalog, store)
	require.NoError(t, err)

	assert.Equal(t, 2, idx.TotalSources)
	assert.Equal(t, 1, idx.TotalEnabled)
	assert.Equal(t, 2, idx.TotalArticles)
	require.Len(t, idx.Dimensions, 1)
	assert.Equal(t, "technology", idx.Dimensions[0].Dimension)
	assert.Equal(t, 2, idx.Dimensions[0].SourceCount)
	assert.Equal(t, 2, idx.Dimensions[0].ArticleCount)
	require.NotNil(t, idx.Dimensions[0].LastUpdated)

	// Round-trips through data/index.json.
	loaded, err := Load(store.DataDir())
	require.NoError(t, err)
	assert.Equal(t, idx.TotalArticles, loaded.TotalArticles)
	require.Len(t, loaded.Sources, 2)
}

func TestGenerateHonorsOverride(t *testing.T) {
	catalog := testCatalog(t)
	store := storage.New(t.TempDir(), zap.NewNop())
	require.NoError(t, store.SetEnabledOverride("t2", true))

	idx, err := Generate(catalog, store)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.TotalEnabled, "override re-enables the catalog-disabled source")
}
