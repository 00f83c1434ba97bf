package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/Ryder-MHumble/deanagent/internal/crawler"
	"github.com/Ryder-MHumble/deanagent/internal/source"
	"github.com/Ryder-MHumble/deanagent/internal/urlutil"
)

const arxivAPIURL = "http://export.arxiv.org/api/query"

// arxivFetcher pulls recent papers from the ArXiv Atom API.
type arxivFetcher struct {
	def  source.Definition
	deps Deps
}

func newArxivFetcher(def source.Definition, deps Deps) *arxivFetcher {
	return &arxivFetcher{def: def, deps: deps}
}

func (f *arxivFetcher) FetchAndParse(ctx context.Context) ([]crawler.Item, error) {
	query := f.def.SearchQuery
	if query == "" {
		query = "cat:cs.AI"
	}
	maxResults := f.def.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}
	sortBy := f.def.SortBy
	if sortBy == "" {
		sortBy = "submittedDate"
	}

	queryURL := fmt.Sprintf("%s?search_query=%s&sortBy=%s&sortOrder=descending&max_results=%d",
		arxivAPIURL, url.QueryEscape(query), url.QueryEscape(sortBy), maxResults)

	raw, err := f.deps.HTTP.FetchPage(ctx, queryURL, httpOpts(f.def))
	if err != nil {
		return nil, fmt.Errorf("fetch arxiv feed: %w", err)
	}

	feed, err := gofeed.NewParser().ParseString(raw)
	if err != nil {
		return nil, fmt.Errorf("parse arxiv feed: %w", err)
	}

	var items []crawler.Item
	for _, entry := range feed.Items {
		if len(items) >= maxResults {
			break
		}
		title := strings.Join(strings.Fields(entry.Title), " ")
		link := strings.TrimSpace(entry.Link)
		if title == "" || link == "" {
			continue
		}

		abstract := strings.Join(strings.Fields(entry.Description), " ")

		item := crawler.Item{
			Title:     title,
			URL:       link,
			Author:    foldAuthors(entry.Authors),
			Content:   abstract,
			SourceID:  f.def.ID,
			Dimension: f.def.Dimension,
		}
		if abstract != "" {
			item.ContentHash = urlutil.ContentHash(abstract)
		}
		if entry.PublishedParsed != nil {
			t := entry.PublishedParsed.UTC()
			item.PublishedAt = &t
		}

		categories := entry.Categories
		item.Tags = f.def.Tags
		if len(categories) > 0 {
			extraTags := categories
			if len(extraTags) > 3 {
				extraTags = extraTags[:3]
			}
			item.Tags = append(append([]string{}, f.def.Tags...), extraTags...)
			item.Extra = map[string]any{"categories": categories}
		}

		items = append(items, item)
	}
	return items, nil
}

// foldAuthors joins the first five authors, appending an "et al." marker
// for longer lists.
func foldAuthors(authors []*gofeed.Person) string {
	if len(authors) == 0 {
		return ""
	}
	names := make([]string, 0, 5)
	for _, a := range authors {
		if a == nil || a.Name == "" {
			continue
		}
		names = append(names, a.Name)
		if len(names) == 5 {
			break
		}
	}
	joined := strings.Join(names, ", ")
	if len(authors) > 5 {
		joined += fmt.Sprintf(" et al. (%d authors)", len(authors))
	}
	return joined
}
