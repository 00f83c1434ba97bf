package intel

import (
	"regexp"
	"time"

	"github.com/Ryder-MHumble/deanagent/internal/crawler"
	"github.com/Ryder-MHumble/deanagent/internal/storage"
)

// Article is a raw item joined with its artifact-level metadata; the unit
// every processor consumes.
type Article struct {
	crawler.Item
	SourceName string `json:"source_name"`
	Group      string `json:"group,omitempty"`
}

// ArtifactReader is the slice of the storage layer the loaders need.
type ArtifactReader interface {
	ReadDimensionArtifacts(dimension string) ([]*storage.Artifact, error)
	ReadAllArtifacts() ([]*storage.Artifact, error)
}

// LoadArticles flattens the artifacts of the given dimensions into
// articles, deduplicated by url_hash across sources.
func LoadArticles(store ArtifactReader, dimensions ...string) []Article {
	var articles []Article
	seen := make(map[string]struct{})
	for _, dim := range dimensions {
		artifacts, err := store.ReadDimensionArtifacts(dim)
		if err != nil {
			continue
		}
		articles = appendArticles(articles, seen, artifacts)
	}
	return articles
}

// LoadAllArticles flattens every raw artifact into articles.
func LoadAllArticles(store ArtifactReader) []Article {
	artifacts, err := store.ReadAllArtifacts()
	if err != nil {
		return nil
	}
	return appendArticles(nil, make(map[string]struct{}), artifacts)
}

func appendArticles(articles []Article, seen map[string]struct{}, artifacts []*storage.Artifact) []Article {
	for _, artifact := range artifacts {
		for _, item := range artifact.Items {
			if item.URLHash == "" {
				continue
			}
			if _, dup := seen[item.URLHash]; dup {
				continue
			}
			seen[item.URLHash] = struct{}{}
			if item.SourceID == "" {
				item.SourceID = artifact.SourceID
			}
			if item.Dimension == "" {
				item.Dimension = artifact.Dimension
			}
			articles = append(articles, Article{
				Item:       item,
				SourceName: artifact.SourceName,
				Group:      artifact.Group,
			})
		}
	}
	return articles
}

var (
	urlDateCompact = regexp.MustCompile(`/t(\d{4})(\d{2})(\d{2})_`)
	urlDateMonth   = regexp.MustCompile(`/(\d{4})(\d{2})/t\d+`)
)

// Date resolves the best display date for an article: published_at, then
// URL-path conventions, then today.
func (a Article) Date() string {
	if a.PublishedAt != nil {
		return a.PublishedAt.Format("2006-01-02")
	}
	if m := urlDateCompact.FindStringSubmatch(a.URL); m != nil {
		return m[1] + "-" + m[2] + "-" + m[3]
	}
	if m := urlDateMonth.FindStringSubmatch(a.URL); m != nil {
		return m[1] + "-" + m[2] + "-01"
	}
	return time.Now().UTC().Format("2006-01-02")
}

// Timestamp resolves the best sortable time for an article.
func (a Article) Timestamp() time.Time {
	if a.PublishedAt != nil {
		return *a.PublishedAt
	}
	if t, err := time.Parse("2006-01-02", a.Date()); err == nil {
		return t
	}
	return time.Now().UTC()
}

// Text joins title and a bounded content prefix for keyword scoring.
func (a Article) Text(contentLimit int) string {
	content := a.Content
	if contentLimit > 0 {
		runes := []rune(content)
		if len(runes) > contentLimit {
			content = string(runes[:contentLimit])
		}
	}
	return a.Title + "\n" + content
}
