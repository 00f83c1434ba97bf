package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeCatalogFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	writeCatalogFile(t, dir, "technology.yaml", `
dimension: technology
default_keyword_filter: ["AI", "大模型"]
sources:
  - id: tech_news
    name: Tech News
    url: https://example.com/news/
    fetch_strategy: static
    schedule: 4h
    list_selectors:
      list_item: "ul.list li"
      title: "a"
      link: "a"
  - id: tech_feed
    name: Tech Feed
    url: https://example.com/feed
    fetch_strategy: rss
    schedule: 2h
    keyword_filter: []
`)
	writeCatalogFile(t, dir, "twitter.yaml", `
dimension: twitter
sources:
  - id: kol_timeline
    name: KOL Timeline
    dimension: sentiment
    parser_kind: twitter_kol
    schedule: daily
`)

	cat, err := LoadCatalog(dir, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, cat.All(), 3)

	tech, ok := cat.Get("tech_news")
	require.True(t, ok)
	assert.Equal(t, "technology", tech.Dimension)
	assert.Equal(t, []string{"AI", "大模型"}, tech.KeywordFilter, "nil filter inherits dimension default")
	assert.True(t, tech.IsEnabled())

	feed, _ := cat.Get("tech_feed")
	assert.Empty(t, feed.KeywordFilter, "explicit empty filter means no filtering")
	assert.NotNil(t, feed.KeywordFilter)

	kol, _ := cat.Get("kol_timeline")
	assert.Equal(t, "sentiment", kol.Dimension, "per-item dimension overrides the file dimension")
	assert.Equal(t, "twitter_kol", kol.ParserKind)
}

func TestLoadCatalogRejectsDuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	writeCatalogFile(t, dir, "a.yaml", `
dimension: technology
sources:
  - {id: dup, url: "https://a/", fetch_strategy: static, schedule: daily}
`)
	writeCatalogFile(t, dir, "b.yaml", `
dimension: industry
sources:
  - {id: dup, url: "https://b/", fetch_strategy: static, schedule: daily}
`)

	_, err := LoadCatalog(dir, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate source id")
}

func TestLoadCatalogRejectsUnknownStrategy(t *testing.T) {
	dir := t.TempDir()
	writeCatalogFile(t, dir, "a.yaml", `
dimension: technology
sources:
  - {id: x, url: "https://a/", fetch_strategy: quantum, schedule: daily}
`)
	_, err := LoadCatalog(dir, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown fetch_strategy")
}

func TestLoadCatalogRejectsUnknownDimension(t *testing.T) {
	dir := t.TempDir()
	writeCatalogFile(t, dir, "a.yaml", `
dimension: astrology
sources:
  - {id: x, url: "https://a/", fetch_strategy: static, schedule: daily}
`)
	_, err := LoadCatalog(dir, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown dimension")
}

func TestByDimensionAndDimensions(t *testing.T) {
	dir := t.TempDir()
	writeCatalogFile(t, dir, "u.yaml", `
dimension: universities
sources:
  - {id: u1, url: "https://u1/", fetch_strategy: static, schedule: daily}
  - {id: u2, url: "https://u2/", fetch_strategy: static, schedule: daily}
`)
	cat, err := LoadCatalog(dir, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, cat.ByDimension("universities"), 2)
	assert.Empty(t, cat.ByDimension("technology"))
	assert.Equal(t, []string{"universities"}, cat.Dimensions())
}

func TestDisabledSource(t *testing.T) {
	dir := t.TempDir()
	writeCatalogFile(t, dir, "a.yaml", `
dimension: technology
sources:
  - {id: off, url: "https://a/", fetch_strategy: static, schedule: daily, enabled: false}
`)
	cat, err := LoadCatalog(dir, zap.NewNop())
	require.NoError(t, err)
	def, _ := cat.Get("off")
	assert.False(t, def.IsEnabled())
}
