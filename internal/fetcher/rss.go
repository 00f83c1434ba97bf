package fetcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/Ryder-MHumble/deanagent/internal/crawler"
	"github.com/Ryder-MHumble/deanagent/internal/extract"
	"github.com/Ryder-MHumble/deanagent/internal/source"
	"github.com/Ryder-MHumble/deanagent/internal/urlutil"
)

const defaultMaxEntries = 50

// rssFetcher implements the rss strategy for RSS 2.0 / Atom / RDF feeds.
type rssFetcher struct {
	def  source.Definition
	deps Deps
}

func newRSSFetcher(def source.Definition, deps Deps) *rssFetcher {
	return &rssFetcher{def: def, deps: deps}
}

func (f *rssFetcher) FetchAndParse(ctx context.Context) ([]crawler.Item, error) {
	raw, err := f.deps.HTTP.FetchPage(ctx, f.def.URL, httpOpts(f.def))
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}

	feed, err := gofeed.NewParser().ParseString(raw)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	maxEntries := f.def.MaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}

	var items []crawler.Item
	for _, entry := range feed.Items {
		if len(items) >= maxEntries {
			break
		}
		title := strings.TrimSpace(entry.Title)
		link := strings.TrimSpace(entry.Link)
		if title == "" || link == "" {
			continue
		}

		if !matchesKeywords(title+" "+entry.Description, f.def.KeywordFilter) {
			continue
		}

		item := crawler.Item{
			Title:     title,
			URL:       link,
			SourceID:  f.def.ID,
			Dimension: f.def.Dimension,
			Tags:      f.def.Tags,
			Summary:   extract.HTMLToText(extract.SanitizeHTML(entry.Description)),
		}
		if entry.PublishedParsed != nil {
			t := entry.PublishedParsed.UTC()
			item.PublishedAt = &t
		} else if entry.UpdatedParsed != nil {
			t := entry.UpdatedParsed.UTC()
			item.PublishedAt = &t
		}
		if len(entry.Authors) > 0 {
			item.Author = entry.Authors[0].Name
		}

		content := entry.Content
		if content == "" {
			content = entry.Description
		}
		if content != "" {
			item.ContentHTML = extract.SanitizeHTML(content)
			item.Content = extract.HTMLToText(item.ContentHTML)
			if item.Content != "" {
				item.ContentHash = urlutil.ContentHash(item.Content)
			}
		}

		if len(entry.Categories) > 0 {
			item.Extra = map[string]any{"categories": entry.Categories}
		}

		items = append(items, item)
	}
	return items, nil
}

func matchesKeywords(text string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
