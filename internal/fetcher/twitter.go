package fetcher

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Ryder-MHumble/deanagent/internal/crawler"
	"github.com/Ryder-MHumble/deanagent/internal/httpclient"
	"github.com/Ryder-MHumble/deanagent/internal/source"
	"github.com/Ryder-MHumble/deanagent/internal/urlutil"
)

const (
	twitterUserTweetsURL = "https://api.twitterapi.io/twitter/user/last_tweets"
	twitterSearchURL     = "https://api.twitterapi.io/twitter/tweet/advanced_search"
)

type twitterTweet struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	URL          string `json:"url"`
	CreatedAt    string `json:"createdAt"`
	LikeCount    int    `json:"likeCount"`
	RetweetCount int    `json:"retweetCount"`
	ReplyCount   int    `json:"replyCount"`
	ViewCount    int    `json:"viewCount"`
	Lang         string `json:"lang"`
	IsReply      bool   `json:"isReply"`
	Author       struct {
		UserName  string `json:"userName"`
		Name      string `json:"name"`
		Followers int    `json:"followers"`
	} `json:"author"`
	RetweetedTweet *struct {
		ID string `json:"id"`
	} `json:"retweeted_tweet"`
}

type twitterTweetsResponse struct {
	Tweets []twitterTweet `json:"tweets"`
}

// twitterKOLFetcher pulls recent original tweets from a curated account
// list via the twitterapi.io REST API.
type twitterKOLFetcher struct {
	def  source.Definition
	deps Deps
}

func newTwitterKOLFetcher(def source.Definition, deps Deps) *twitterKOLFetcher {
	return &twitterKOLFetcher{def: def, deps: deps}
}

func (f *twitterKOLFetcher) FetchAndParse(ctx context.Context) ([]crawler.Item, error) {
	if f.deps.TwitterAPIKey == "" {
		return nil, fmt.Errorf("TWITTER_API_KEY not configured")
	}
	if len(f.def.TwitterAccounts) == 0 {
		return nil, nil
	}

	maxPerAccount := f.def.MaxTweetsPerAccount
	if maxPerAccount <= 0 {
		maxPerAccount = 20
	}

	var items []crawler.Item
	var failures int
	for _, username := range f.def.TwitterAccounts {
		opts := twitterOpts(f.def, f.deps.TwitterAPIKey)
		opts.Params = map[string]string{"userName": username}

		var resp twitterTweetsResponse
		if err := f.deps.HTTP.FetchJSON(ctx, twitterUserTweetsURL, opts, &resp); err != nil {
			failures++
			f.deps.logger().Warn("kol timeline fetch failed",
				zap.String("username", username), zap.Error(err))
			continue
		}

		count := 0
		for _, tweet := range resp.Tweets {
			if count >= maxPerAccount {
				break
			}
			if tweet.IsReply || tweet.RetweetedTweet != nil {
				continue
			}
			if tweet.LikeCount < f.def.MinLikes {
				continue
			}
			items = append(items, f.itemFromTweet(tweet))
			count++
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return likeCount(items[i]) > likeCount(items[j])
	})

	if failures > 0 && len(items) > 0 {
		return items, fmt.Errorf("%d of %d accounts failed", failures, len(f.def.TwitterAccounts))
	}
	if failures > 0 && len(items) == 0 {
		return nil, fmt.Errorf("all %d accounts failed", len(f.def.TwitterAccounts))
	}
	return items, nil
}

func (f *twitterKOLFetcher) itemFromTweet(tweet twitterTweet) crawler.Item {
	return tweetItem(f.def, tweet)
}

// twitterSearchFetcher runs a saved search query against the tweet search
// API.
type twitterSearchFetcher struct {
	def  source.Definition
	deps Deps
}

func newTwitterSearchFetcher(def source.Definition, deps Deps) *twitterSearchFetcher {
	return &twitterSearchFetcher{def: def, deps: deps}
}

func (f *twitterSearchFetcher) FetchAndParse(ctx context.Context) ([]crawler.Item, error) {
	if f.deps.TwitterAPIKey == "" {
		return nil, fmt.Errorf("TWITTER_API_KEY not configured")
	}
	query := f.def.SearchQuery
	if query == "" {
		return nil, fmt.Errorf("source %s: search_query is required", f.def.ID)
	}
	maxResults := f.def.MaxResults
	if maxResults <= 0 {
		maxResults = 30
	}

	opts := twitterOpts(f.def, f.deps.TwitterAPIKey)
	opts.Params = map[string]string{"query": query, "queryType": "Latest"}

	var resp twitterTweetsResponse
	if err := f.deps.HTTP.FetchJSON(ctx, twitterSearchURL, opts, &resp); err != nil {
		return nil, fmt.Errorf("tweet search: %w", err)
	}

	var items []crawler.Item
	for _, tweet := range resp.Tweets {
		if len(items) >= maxResults {
			break
		}
		if tweet.LikeCount < f.def.MinLikes {
			continue
		}
		items = append(items, tweetItem(f.def, tweet))
	}
	return items, nil
}

func twitterOpts(def source.Definition, apiKey string) httpclient.Options {
	opts := httpOpts(def)
	if opts.Headers == nil {
		opts.Headers = map[string]string{}
	}
	opts.Headers["X-API-Key"] = apiKey
	return opts
}

func tweetItem(def source.Definition, tweet twitterTweet) crawler.Item {
	text := strings.TrimSpace(tweet.Text)
	title := text
	if runes := []rune(title); len(runes) > 120 {
		title = string(runes[:120]) + "..."
	}

	tags := append([]string{}, def.Tags...)
	if tweet.Author.UserName != "" {
		tags = append(tags, "@"+tweet.Author.UserName)
	}
	if tweet.Lang != "" {
		tags = append(tags, "lang:"+tweet.Lang)
	}

	item := crawler.Item{
		Title:     title,
		URL:       tweet.URL,
		Author:    fmt.Sprintf("%s (@%s)", tweet.Author.Name, tweet.Author.UserName),
		Content:   text,
		SourceID:  def.ID,
		Dimension: def.Dimension,
		Tags:      tags,
		Extra: map[string]any{
			"tweet_id":         tweet.ID,
			"like_count":       tweet.LikeCount,
			"retweet_count":    tweet.RetweetCount,
			"reply_count":      tweet.ReplyCount,
			"view_count":       tweet.ViewCount,
			"author_username":  tweet.Author.UserName,
			"author_followers": tweet.Author.Followers,
			"lang":             tweet.Lang,
		},
	}
	if text != "" {
		item.ContentHash = urlutil.ContentHash(text)
	}
	if tweet.CreatedAt != "" {
		for _, layout := range []string{time.RFC3339, time.RubyDate} {
			if t, err := time.Parse(layout, tweet.CreatedAt); err == nil {
				utc := t.UTC()
				item.PublishedAt = &utc
				break
			}
		}
	}
	return item
}

func likeCount(item crawler.Item) int {
	if item.Extra == nil {
		return 0
	}
	if v, ok := item.Extra["like_count"].(int); ok {
		return v
	}
	return 0
}
