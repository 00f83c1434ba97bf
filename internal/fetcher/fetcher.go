// Package fetcher implements the fetch strategies (static, dynamic, rss,
// snapshot, faculty) and the bespoke API parsers, plus the registry that
// resolves a source definition to exactly one of them.
package fetcher

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Ryder-MHumble/deanagent/internal/browser"
	"github.com/Ryder-MHumble/deanagent/internal/crawler"
	"github.com/Ryder-MHumble/deanagent/internal/httpclient"
	"github.com/Ryder-MHumble/deanagent/internal/source"
	"github.com/Ryder-MHumble/deanagent/internal/storage"
)

// UnknownKindError reports a source whose parser kind or fetch strategy has
// no registered constructor.
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown fetcher kind: %s", e.Kind)
}

// PageFetcher is the slice of the HTTP client the strategies need.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string, opts httpclient.Options) (string, error)
	FetchJSON(ctx context.Context, url string, opts httpclient.Options, out any) error
}

// TabSession is one browser tab; loads within a session share cookies.
type TabSession interface {
	Load(url, waitCondition string, timeout time.Duration) (string, error)
	LoadDetail(url, waitCondition string) (string, error)
}

// Renderer is the slice of the browser pool the dynamic strategies need.
type Renderer interface {
	Render(ctx context.Context, url, waitCondition string, timeout time.Duration) (string, error)
	WithTab(ctx context.Context, fn func(tab TabSession) error) error
}

// BrowserRenderer adapts *browser.Pool to the Renderer interface.
type BrowserRenderer struct {
	Pool *browser.Pool
}

// Render proxies to the pool.
func (b BrowserRenderer) Render(ctx context.Context, url, waitCondition string, timeout time.Duration) (string, error) {
	return b.Pool.Render(ctx, url, waitCondition, timeout)
}

// WithTab proxies to the pool, narrowing the tab to the TabSession surface.
func (b BrowserRenderer) WithTab(ctx context.Context, fn func(tab TabSession) error) error {
	return b.Pool.WithTab(ctx, func(tab *browser.Tab) error {
		return fn(tab)
	})
}

// SnapshotStore is the slice of the storage layer the snapshot strategy
// needs.
type SnapshotStore interface {
	LastSnapshot(sourceID string) *storage.Snapshot
	AppendSnapshot(sourceID string, snap storage.Snapshot) error
}

// Deps bundles the shared infrastructure injected into every strategy.
type Deps struct {
	HTTP          PageFetcher
	Browser       Renderer
	Snapshots     SnapshotStore
	Logger        *zap.Logger
	TwitterAPIKey string
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// parserConstructors maps parser_kind values to API parser constructors.
// Construction is cheap; the table keeps lookup explicit and closed.
var parserConstructors = map[string]func(def source.Definition, deps Deps) crawler.Fetcher{
	"arxiv_api":       func(def source.Definition, deps Deps) crawler.Fetcher { return newArxivFetcher(def, deps) },
	"hacker_news_api": func(def source.Definition, deps Deps) crawler.Fetcher { return newHackerNewsFetcher(def, deps) },
	"github_api":      func(def source.Definition, deps Deps) crawler.Fetcher { return newGitHubFetcher(def, deps) },
	"twitter_kol":     func(def source.Definition, deps Deps) crawler.Fetcher { return newTwitterKOLFetcher(def, deps) },
	"twitter_search":  func(def source.Definition, deps Deps) crawler.Fetcher { return newTwitterSearchFetcher(def, deps) },
}

// Registry resolves source definitions to fetchers.
type Registry struct {
	deps Deps
}

// NewRegistry builds a Registry over shared infrastructure.
func NewRegistry(deps Deps) *Registry {
	return &Registry{deps: deps}
}

// Build resolves def to its fetcher. A parser_kind takes precedence over
// the fetch strategy; unknown kinds fail with UnknownKindError.
func (r *Registry) Build(def source.Definition) (crawler.Fetcher, error) {
	if def.ParserKind != "" {
		ctor, ok := parserConstructors[def.ParserKind]
		if !ok {
			return nil, &UnknownKindError{Kind: def.ParserKind}
		}
		return ctor(def, r.deps), nil
	}

	switch def.FetchStrategy {
	case source.StrategyStatic:
		return newStaticFetcher(def, r.deps), nil
	case source.StrategyDynamic:
		return newDynamicFetcher(def, r.deps), nil
	case source.StrategyRSS:
		return newRSSFetcher(def, r.deps), nil
	case source.StrategySnapshot:
		return newSnapshotFetcher(def, r.deps), nil
	case source.StrategyFaculty:
		return newFacultyFetcher(def, r.deps), nil
	default:
		return nil, &UnknownKindError{Kind: def.FetchStrategy}
	}
}

// ParserKinds lists registered API parser names.
func ParserKinds() []string {
	kinds := make([]string, 0, len(parserConstructors))
	for k := range parserConstructors {
		kinds = append(kinds, k)
	}
	return kinds
}

// httpOpts maps the per-source request knobs onto client options.
func httpOpts(def source.Definition) httpclient.Options {
	opts := httpclient.Options{
		Headers:      def.Headers,
		Encoding:     def.Encoding,
		RequestDelay: def.RequestDelaySeconds,
	}
	if def.VerifySSL != nil {
		opts.VerifyTLS = def.VerifySSL
	}
	return opts
}
