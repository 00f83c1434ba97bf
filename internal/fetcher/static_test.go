package fetcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ryder-MHumble/deanagent/internal/extract"
	"github.com/Ryder-MHumble/deanagent/internal/source"
)

const listPage = `
<html><body><ul class="list">
  <li><a href="/news/t20260215_001.html">人工智能新政策</a></li>
  <li><a href="/news/t20260220_002.html">算力基础设施公告</a></li>
</ul></body></html>`

func staticDef() source.Definition {
	return source.Definition{
		ID:            "ex1",
		Name:          "Example",
		Dimension:     "national_policy",
		URL:           "https://site.cn/news/",
		FetchStrategy: source.StrategyStatic,
		ListSelectors: source.ListSelectors{
			ListItem: "ul.list li",
			Title:    "a",
			Link:     "a",
		},
	}
}

func TestStaticFetcherListOnly(t *testing.T) {
	http := &fakeHTTP{pages: map[string]string{
		"https://site.cn/news/": listPage,
	}}
	f := newStaticFetcher(staticDef(), depsWith(http))

	items, err := f.FetchAndParse(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "人工智能新政策", items[0].Title)
	assert.Equal(t, "https://site.cn/news/t20260215_001.html", items[0].URL)
	require.NotNil(t, items[0].PublishedAt)
	assert.Equal(t, "2026-02-15", items[0].PublishedAt.Format("2006-01-02"))
	assert.Equal(t, "2026-02-20", items[1].PublishedAt.Format("2006-01-02"))
	assert.Empty(t, items[0].Content, "no detail selectors configured")
}

func TestStaticFetcherWithDetails(t *testing.T) {
	def := staticDef()
	def.DetailSelectors = &source.DetailSelectors{Content: "#content"}

	http := &fakeHTTP{pages: map[string]string{
		"https://site.cn/news/":                   listPage,
		"https://site.cn/news/t20260215_001.html": `<div id="content"><p>正文一，资助上限 500 万元。</p></div>`,
		"https://site.cn/news/t20260220_002.html": `<div id="content"><p>正文二。</p><p><a href="/f/doc.pdf">附件</a></p></div>`,
	}}
	f := newStaticFetcher(def, depsWith(http))

	items, err := f.FetchAndParse(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Contains(t, items[0].Content, "资助上限 500 万元")
	assert.NotEmpty(t, items[0].ContentHash)
	require.NotNil(t, items[1].Extra)
	assert.Equal(t, "https://site.cn/f/doc.pdf", items[1].Extra["pdf_url"])
}

func TestStaticFetcherDetailFailureDegrades(t *testing.T) {
	def := staticDef()
	def.DetailSelectors = &source.DetailSelectors{Content: "#content"}

	http := &fakeHTTP{
		pages: map[string]string{
			"https://site.cn/news/":                   listPage,
			"https://site.cn/news/t20260215_001.html": `<div id="content"><p>正文一</p></div>`,
		},
		failures: map[string]error{
			"https://site.cn/news/t20260220_002.html": errors.New("connection reset"),
		},
	}
	f := newStaticFetcher(def, depsWith(http))

	items, err := f.FetchAndParse(context.Background())
	require.Error(t, err, "partial detail failure surfaces as an error alongside items")
	assert.Contains(t, err.Error(), "1 of 2 detail pages failed")
	require.Len(t, items, 2, "the failed item is kept with empty content fields")
	assert.NotEmpty(t, items[0].Content)
	assert.Empty(t, items[1].Content)
}

func TestStaticFetcherSelectorMiss(t *testing.T) {
	http := &fakeHTTP{pages: map[string]string{
		"https://site.cn/news/": "<html><body><p>layout changed</p></body></html>",
	}}
	f := newStaticFetcher(staticDef(), depsWith(http))

	_, err := f.FetchAndParse(context.Background())
	var miss *extract.SelectorMissError
	require.ErrorAs(t, err, &miss)
}

func TestDynamicFetcher(t *testing.T) {
	def := staticDef()
	def.FetchStrategy = source.StrategyDynamic
	def.WaitCondition = ".loaded"
	def.DetailSelectors = &source.DetailSelectors{Content: "#content"}

	http := &fakeHTTP{pages: map[string]string{
		"https://site.cn/news/":                   listPage,
		"https://site.cn/news/t20260215_001.html": `<div id="content"><p>渲染正文一</p></div>`,
		"https://site.cn/news/t20260220_002.html": `<div id="content"><p>渲染正文二</p></div>`,
	}}
	f := newDynamicFetcher(def, depsWith(http))

	items, err := f.FetchAndParse(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Contains(t, items[0].Content, "渲染正文一")
}

func TestRegistryPrecedenceAndUnknown(t *testing.T) {
	reg := NewRegistry(depsWith(&fakeHTTP{}))

	// parser_kind wins over fetch_strategy.
	def := staticDef()
	def.ParserKind = "arxiv_api"
	f, err := reg.Build(def)
	require.NoError(t, err)
	_, isArxiv := f.(*arxivFetcher)
	assert.True(t, isArxiv)

	// Unknown parser kind fails.
	def.ParserKind = "nonexistent_api"
	_, err = reg.Build(def)
	var unknown *UnknownKindError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nonexistent_api", unknown.Kind)

	// Unknown strategy fails.
	def = staticDef()
	def.FetchStrategy = "quantum"
	_, err = reg.Build(def)
	require.ErrorAs(t, err, &unknown)
}

func TestRegistryAllStrategies(t *testing.T) {
	reg := NewRegistry(depsWith(&fakeHTTP{}))
	for _, strategy := range []string{
		source.StrategyStatic, source.StrategyDynamic, source.StrategyRSS,
		source.StrategySnapshot, source.StrategyFaculty,
	} {
		def := staticDef()
		def.FetchStrategy = strategy
		_, err := reg.Build(def)
		require.NoError(t, err, "strategy %s must resolve", strategy)
	}
}
