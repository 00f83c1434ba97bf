package fetcher

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Ryder-MHumble/deanagent/internal/crawler"
	"github.com/Ryder-MHumble/deanagent/internal/source"
	"github.com/Ryder-MHumble/deanagent/internal/urlutil"
)

const (
	hnTopURL  = "https://hacker-news.firebaseio.com/v0/topstories.json"
	hnItemURL = "https://hacker-news.firebaseio.com/v0/item/%d.json"
	// hnDetailConcurrency bounds parallel per-story fetches.
	hnDetailConcurrency = 10
)

var hnDefaultKeywords = []string{
	"AI", "artificial intelligence", "machine learning", "deep learning",
	"LLM", "GPT", "neural network", "transformer", "diffusion",
	"人工智能", "大模型", "机器学习",
}

type hnStory struct {
	ID          int    `json:"id"`
	Type        string `json:"type"`
	Deleted     bool   `json:"deleted"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Text        string `json:"text"`
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
}

// hackerNewsFetcher is the two-step Hacker News parser: top-story IDs, then
// per-story detail with bounded concurrency and a keyword filter.
type hackerNewsFetcher struct {
	def  source.Definition
	deps Deps
}

func newHackerNewsFetcher(def source.Definition, deps Deps) *hackerNewsFetcher {
	return &hackerNewsFetcher{def: def, deps: deps}
}

func (f *hackerNewsFetcher) FetchAndParse(ctx context.Context) ([]crawler.Item, error) {
	maxResults := f.def.MaxResults
	if maxResults <= 0 {
		maxResults = 30
	}
	keywords := f.def.KeywordFilter
	if keywords == nil {
		keywords = hnDefaultKeywords
	}

	var ids []int
	if err := f.deps.HTTP.FetchJSON(ctx, hnTopURL, httpOpts(f.def), &ids); err != nil {
		return nil, fmt.Errorf("fetch top stories: %w", err)
	}
	if len(ids) > maxResults {
		ids = ids[:maxResults]
	}

	stories := f.fetchStories(ctx, ids)

	var items []crawler.Item
	for _, story := range stories {
		if story.Type != "story" || story.Deleted || story.Title == "" {
			continue
		}
		if len(keywords) > 0 && !matchesKeywords(story.Title, keywords) {
			continue
		}

		storyURL := story.URL
		if storyURL == "" {
			storyURL = fmt.Sprintf("https://news.ycombinator.com/item?id=%d", story.ID)
		}

		item := crawler.Item{
			Title:     story.Title,
			URL:       storyURL,
			Author:    story.By,
			SourceID:  f.def.ID,
			Dimension: f.def.Dimension,
			Tags:      f.def.Tags,
			Extra: map[string]any{
				"score":    story.Score,
				"comments": story.Descendants,
			},
		}
		if story.Time > 0 {
			t := time.Unix(story.Time, 0).UTC()
			item.PublishedAt = &t
		}
		if text := strings.TrimSpace(story.Text); text != "" {
			item.Content = text
			item.ContentHash = urlutil.ContentHash(text)
		}
		items = append(items, item)
	}
	return items, nil
}

// fetchStories fans out per-story fetches under a concurrency bound,
// preserving the top-story ordering in the result.
func (f *hackerNewsFetcher) fetchStories(ctx context.Context, ids []int) []hnStory {
	type indexed struct {
		idx   int
		story hnStory
		ok    bool
	}

	sem := make(chan struct{}, hnDetailConcurrency)
	results := make([]indexed, len(ids))
	var wg sync.WaitGroup

	for i, id := range ids {
		wg.Add(1)
		go func(idx, storyID int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			var story hnStory
			url := fmt.Sprintf(hnItemURL, storyID)
			opts := httpOpts(f.def)
			opts.MaxRetries = 2
			opts.RequestDelay = 0.1
			if err := f.deps.HTTP.FetchJSON(ctx, url, opts, &story); err != nil {
				f.deps.logger().Warn("hn story fetch failed",
					zap.Int("story_id", storyID), zap.Error(err))
				return
			}
			results[idx] = indexed{idx: idx, story: story, ok: true}
		}(i, id)
	}
	wg.Wait()

	sort.SliceStable(results, func(i, j int) bool { return results[i].idx < results[j].idx })
	stories := make([]hnStory, 0, len(results))
	for _, r := range results {
		if r.ok {
			stories = append(stories, r.story)
		}
	}
	return stories
}
