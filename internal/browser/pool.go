// Package browser manages a single headless Chrome instance with a bounded
// pool of tab contexts for JavaScript-rendered fetches.
package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RenderError reports a browser-side failure (navigation, wait, evaluate).
type RenderError struct {
	URL string
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render error for %s: %v", e.URL, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Symbolic wait conditions; anything else is treated as a CSS selector.
const (
	WaitLoad        = "load"
	WaitNetworkIdle = "networkidle"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Config controls pool sizing and timeouts.
type Config struct {
	MaxContexts     int
	WaitTimeout     time.Duration
	DetailTimeout   time.Duration
	ShutdownTimeout time.Duration
	// DomainQPS caps render navigations per host; 0 disables the limiter.
	DomainQPS float64
}

// Pool is the process-wide browser. The underlying Chrome starts lazily on
// first use; Close tears it down.
type Pool struct {
	cfg    Config
	logger *zap.Logger

	mu              sync.Mutex
	started         bool
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc

	sem            chan struct{}
	domainLimiters sync.Map
}

// NewPool builds an idle pool; no browser process is spawned yet.
func NewPool(cfg Config, logger *zap.Logger) *Pool {
	if cfg.MaxContexts <= 0 {
		cfg.MaxContexts = 3
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = 15 * time.Second
	}
	if cfg.DetailTimeout <= 0 {
		cfg.DetailTimeout = 10 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		cfg:    cfg,
		logger: logger,
		sem:    make(chan struct{}, cfg.MaxContexts),
	}
}

func (p *Pool) ensureStarted() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(defaultUserAgent),
	)
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		allocatorCancel()
		browserCancel()
		return fmt.Errorf("chromedp warmup: %w", err)
	}

	p.allocatorCancel = allocatorCancel
	p.browserCtx = browserCtx
	p.browserCancel = browserCancel
	p.started = true
	p.logger.Info("headless browser started", zap.Int("max_contexts", p.cfg.MaxContexts))
	return nil
}

// Close tears down the browser. Errors are logged, never returned: shutdown
// must not mask the primary teardown path.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	done := make(chan struct{})
	go func() {
		p.browserCancel()
		p.allocatorCancel()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(p.cfg.ShutdownTimeout):
		p.logger.Warn("browser close timed out")
	}
	p.started = false
	p.logger.Info("headless browser closed")
}

func (p *Pool) acquire(ctx context.Context) (func(), error) {
	select {
	case p.sem <- struct{}{}:
		return func() { <-p.sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire browser context: %w", ctx.Err())
	}
}

// Render navigates to rawURL in a fresh tab, applies the wait condition,
// and returns the rendered outer HTML.
func (p *Pool) Render(ctx context.Context, rawURL, waitCondition string, timeout time.Duration) (string, error) {
	var html string
	err := p.WithTab(ctx, func(tab *Tab) error {
		rendered, loadErr := tab.Load(rawURL, waitCondition, timeout)
		if loadErr != nil {
			return loadErr
		}
		html = rendered
		return nil
	})
	if err != nil {
		return "", err
	}
	return html, nil
}

// Tab is one pooled browser session. All loads within a Tab share cookies
// and client-side state, which keeps detail fetches inside the same session
// the list page established.
type Tab struct {
	ctx  context.Context
	pool *Pool
}

// Load navigates the tab, applies the wait condition, and returns the
// rendered outer HTML.
func (t *Tab) Load(rawURL, waitCondition string, timeout time.Duration) (string, error) {
	html, err := t.pool.renderInTab(t.ctx, rawURL, waitCondition, timeout)
	if err != nil {
		return "", &RenderError{URL: rawURL, Err: err}
	}
	return html, nil
}

// LoadDetail is Load with the shorter detail-page timeout.
func (t *Tab) LoadDetail(rawURL, waitCondition string) (string, error) {
	return t.Load(rawURL, waitCondition, t.pool.cfg.DetailTimeout)
}

// WithTab acquires a pool slot, opens a fresh tab, runs fn, and releases
// the slot on every exit path including panic unwinding via defer.
func (p *Pool) WithTab(ctx context.Context, fn func(tab *Tab) error) error {
	if err := p.ensureStarted(); err != nil {
		return err
	}
	release, err := p.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	tabCtx, cancelTab := chromedp.NewContext(p.browserCtx)
	defer cancelTab()

	stopForward := forwardCancel(ctx, cancelTab)
	defer stopForward()

	return fn(&Tab{ctx: tabCtx, pool: p})
}

// RenderWithDetails renders the list page, then fetches each detail URL in
// the same tab so cookies and client-side state carry over. Per-detail
// failures are recorded as missing map entries rather than failing the run.
func (p *Pool) RenderWithDetails(ctx context.Context, rawURL, waitCondition string, detailURLs []string, detailWait string) (string, map[string]string, error) {
	var listHTML string
	details := make(map[string]string, len(detailURLs))
	err := p.WithTab(ctx, func(tab *Tab) error {
		html, err := tab.Load(rawURL, waitCondition, p.cfg.WaitTimeout)
		if err != nil {
			return err
		}
		listHTML = html
		for _, detailURL := range detailURLs {
			if ctx.Err() != nil {
				break
			}
			detailHTML, detailErr := tab.LoadDetail(detailURL, detailWait)
			if detailErr != nil {
				p.logger.Warn("detail render failed",
					zap.String("url", detailURL),
					zap.Error(detailErr),
				)
				continue
			}
			details[detailURL] = detailHTML
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return listHTML, details, nil
}

func (p *Pool) renderInTab(tabCtx context.Context, rawURL, waitCondition string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = p.cfg.WaitTimeout
	}
	if err := p.waitDomainBudget(tabCtx, rawURL); err != nil {
		return "", fmt.Errorf("render rate limit: %w", err)
	}
	taskCtx, cancelTask := context.WithTimeout(tabCtx, timeout)
	defer cancelTask()

	tasks := chromedp.Tasks{
		emulation.SetUserAgentOverride(defaultUserAgent),
		chromedp.Navigate(rawURL),
		waitTask(waitCondition),
	}
	var html string
	tasks = append(tasks, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, nil
}

func waitTask(condition string) chromedp.Action {
	switch strings.TrimSpace(condition) {
	case "", WaitLoad:
		return chromedp.WaitReady("body", chromedp.ByQuery)
	case WaitNetworkIdle:
		// chromedp has no first-class network-idle signal; a short settle
		// delay after the load event approximates it for list pages.
		return chromedp.Tasks{
			chromedp.WaitReady("body", chromedp.ByQuery),
			chromedp.Sleep(500 * time.Millisecond),
		}
	default:
		return chromedp.WaitVisible(condition, chromedp.ByQuery)
	}
}

func (p *Pool) waitDomainBudget(ctx context.Context, rawURL string) error {
	if p.cfg.DomainQPS <= 0 {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse render url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	val, _ := p.domainLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(p.cfg.DomainQPS), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait limiter: %w", err)
	}
	return nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
