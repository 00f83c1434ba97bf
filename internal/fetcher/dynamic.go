package fetcher

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Ryder-MHumble/deanagent/internal/crawler"
	"github.com/Ryder-MHumble/deanagent/internal/extract"
	"github.com/Ryder-MHumble/deanagent/internal/source"
)

// dynamicFetcher implements the dynamic strategy: the list page renders in
// a headless browser; detail pages reuse the same tab session unless the
// source opts into plain HTTP.
type dynamicFetcher struct {
	def  source.Definition
	deps Deps
}

func newDynamicFetcher(def source.Definition, deps Deps) *dynamicFetcher {
	return &dynamicFetcher{def: def, deps: deps}
}

func (f *dynamicFetcher) waitTimeout() time.Duration {
	if f.def.WaitTimeoutMs > 0 {
		return time.Duration(f.def.WaitTimeoutMs) * time.Millisecond
	}
	return 15 * time.Second
}

func (f *dynamicFetcher) FetchAndParse(ctx context.Context) ([]crawler.Item, error) {
	var items []crawler.Item
	var detailFailures, total int

	err := f.deps.Browser.WithTab(ctx, func(tab TabSession) error {
		html, err := tab.Load(f.def.URL, f.def.WaitCondition, f.waitTimeout())
		if err != nil {
			return fmt.Errorf("render list page: %w", err)
		}

		listItems, err := parseList(html, f.def)
		if err != nil {
			return err
		}
		total = len(listItems)

		wantDetails := f.def.DetailSelectors != nil && f.def.DetailSelectors.Content != ""
		for _, li := range listItems {
			item := baseItem(f.def, li)
			if wantDetails {
				detailHTML, detailErr := f.fetchDetail(ctx, tab, li.URL)
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
		return nil
	})
	if err != nil {
		return nil, err
	}

	if detailFailures > 0 {
		return items, fmt.Errorf("%d of %d detail pages failed", detailFailures, total)
	}
	return items, nil
}

// fetchDetail retrieves one detail page, either in the shared tab (cookies
// carry over, bypassing client-side defenses) or via the plain HTTP client
// when the source requests it.
func (f *dynamicFetcher) fetchDetail(ctx context.Context, tab TabSession, url string) (string, error) {
	if f.def.DetailViaPlainHTTP {
		return f.deps.HTTP.FetchPage(ctx, url, httpOpts(f.def))
	}
	return tab.LoadDetail(url, f.def.DetailSelectors.Content)
}
