package fetcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/Ryder-MHumble/deanagent/internal/crawler"
	"github.com/Ryder-MHumble/deanagent/internal/extract"
	"github.com/Ryder-MHumble/deanagent/internal/source"
)

// staticFetcher implements the static strategy: plain HTTP list page plus
// optional per-item detail pages, all through the shared extractor.
type staticFetcher struct {
	def  source.Definition
	deps Deps
}

func newStaticFetcher(def source.Definition, deps Deps) *staticFetcher {
	return &staticFetcher{def: def, deps: deps}
}

func (f *staticFetcher) FetchAndParse(ctx context.Context) ([]crawler.Item, error) {
	html, err := f.deps.HTTP.FetchPage(ctx, f.def.URL, httpOpts(f.def))
	if err != nil {
		return nil, fmt.Errorf("fetch list page: %w", err)
	}

	listItems, err := parseList(html, f.def)
	if err != nil {
		return nil, err
	}

	items := make([]crawler.Item, 0, len(listItems))
	var detailFailures int
	for _, li := range listItems {
		item := baseItem(f.def, li)
		if f.def.DetailSelectors != nil && f.def.DetailSelectors.Content != "" {
			detailHTML, detailErr := f.deps.HTTP.FetchPage(ctx, li.URL, httpOpts(f.def))
			if detailErr != nil {
				detailFailures++
				f.deps.logger().Warn("detail fetch failed",
					zap.String("source_id", f.def.ID),
					zap.String("url", li.URL),
					zap.Error(detailErr),
				)
			} else {
				applyDetail(&item, extract.ParseDetailPage(detailHTML, f.def.DetailSelectors, li.URL))
			}
		}
		items = append(items, item)
	}

	if detailFailures > 0 {
		return items, fmt.Errorf("%d of %d detail pages failed", detailFailures, len(listItems))
	}
	return items, nil
}

// parseList parses list HTML through the shared extractor with the source's
// selector bundle and filters.
func parseList(html string, def source.Definition) ([]extract.ListItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse list html: %w", err)
	}
	base := def.BaseURL
	if base == "" {
		base = def.URL
	}
	return extract.ParseListPage(doc, def.ListSelectors, base, def.KeywordFilter, def.KeywordBlacklist)
}

// baseItem builds a crawler item from a list entry before detail filling.
func baseItem(def source.Definition, li extract.ListItem) crawler.Item {
	return crawler.Item{
		Title:       li.Title,
		URL:         li.URL,
		PublishedAt: li.PublishedAt,
		SourceID:    def.ID,
		Dimension:   def.Dimension,
		Tags:        def.Tags,
	}
}

// applyDetail fills content fields from a detail extraction result.
func applyDetail(item *crawler.Item, detail extract.Detail) {
	item.Content = detail.Content
	item.ContentHTML = detail.ContentHTML
	item.ContentHash = detail.ContentHash
	if detail.Author != "" {
		item.Author = detail.Author
	}
	extra := map[string]any{}
	if detail.PDFURL != "" {
		extra["pdf_url"] = detail.PDFURL
	}
	if len(detail.Images) > 0 {
		extra["images"] = detail.Images
	}
	for field, value := range detail.Sections {
		extra[field] = value
	}
	if len(extra) > 0 {
		item.Extra = extra
	}
}
