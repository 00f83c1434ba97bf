package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/Ryder-MHumble/deanagent/internal/crawler"
	"github.com/Ryder-MHumble/deanagent/internal/source"
	"github.com/Ryder-MHumble/deanagent/internal/urlutil"
)

const githubSearchURL = "https://api.github.com/search/repositories"

type githubSearchResponse struct {
	Items []struct {
		FullName    string   `json:"full_name"`
		HTMLURL     string   `json:"html_url"`
		Description string   `json:"description"`
		PushedAt    string   `json:"pushed_at"`
		Language    string   `json:"language"`
		Stars       int      `json:"stargazers_count"`
		Forks       int      `json:"forks_count"`
		Topics      []string `json:"topics"`
		Owner       struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"items"`
}

// githubFetcher pulls trending repositories from the GitHub search API.
type githubFetcher struct {
	def  source.Definition
	deps Deps
}

func newGitHubFetcher(def source.Definition, deps Deps) *githubFetcher {
	return &githubFetcher{def: def, deps: deps}
}

func (f *githubFetcher) FetchAndParse(ctx context.Context) ([]crawler.Item, error) {
	maxResults := f.def.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}
	query := f.def.SearchQuery
	if query == "" {
		query = "AI language:python"
	}
	sortField := f.def.SortBy
	if sortField == "" {
		sortField = "stars"
	}

	opts := httpOpts(f.def)
	opts.Params = map[string]string{
		"q":        query,
		"sort":     sortField,
		"order":    "desc",
		"per_page": fmt.Sprintf("%d", maxResults),
	}
	if opts.Headers == nil {
		opts.Headers = map[string]string{}
	}
	opts.Headers["Accept"] = "application/vnd.github.v3+json"

	var resp githubSearchResponse
	if err := f.deps.HTTP.FetchJSON(ctx, githubSearchURL, opts, &resp); err != nil {
		return nil, fmt.Errorf("fetch github search: %w", err)
	}

	var items []crawler.Item
	for _, repo := range resp.Items {
		if len(items) >= maxResults {
			break
		}
		if repo.FullName == "" || repo.HTMLURL == "" {
			continue
		}

		item := crawler.Item{
			Title:     repo.FullName,
			URL:       repo.HTMLURL,
			Author:    repo.Owner.Login,
			Content:   repo.Description,
			SourceID:  f.def.ID,
			Dimension: f.def.Dimension,
			Tags:      f.def.Tags,
			Extra: map[string]any{
				"stars":    repo.Stars,
				"forks":    repo.Forks,
				"language": repo.Language,
			},
		}
		if repo.Description != "" {
			item.Summary = repo.Description
			item.ContentHash = urlutil.ContentHash(repo.Description)
		}
		if repo.PushedAt != "" {
			if t, err := time.Parse(time.RFC3339, repo.PushedAt); err == nil {
				utc := t.UTC()
				item.PublishedAt = &utc
			}
		}
		if len(repo.Topics) > 0 {
			topicTags := repo.Topics
			if len(topicTags) > 5 {
				topicTags = topicTags[:5]
			}
			item.Tags = append(append([]string{}, f.def.Tags...), topicTags...)
		}
		items = append(items, item)
	}
	return items, nil
}
