// Package httpclient implements the shared polite HTTP fetch layer:
// User-Agent rotation, per-domain pacing, retry with exponential backoff
// and jitter, charset decoding, and an opt-in TLS-laxity mode for legacy
// government servers.
package httpclient

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
)

// userAgents is the rotation pool. One is picked uniformly at random per
// request unless the caller supplies its own User-Agent header.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.2 Safari/605.1.15",
}

// Options carries per-request knobs. The zero value uses client defaults.
type Options struct {
	Headers      map[string]string
	Params       map[string]string
	Encoding     string // charset override, e.g. "gbk"
	VerifyTLS    *bool  // nil → verify; false → lax mode
	MaxRetries   int    // 0 → client default
	Timeout      time.Duration
	RequestDelay float64 // seconds between requests to the same host; 0 → default
}

// Config controls client-wide behavior.
type Config struct {
	PerDomainMax        int
	DefaultRequestDelay float64
	Timeout             time.Duration
	MaxRetries          int
	BackoffInitial      time.Duration
	BackoffJitter       time.Duration
}

type domainGate struct {
	sem      chan struct{}
	mu       sync.Mutex
	lastSent time.Time
}

// Client is the shared fetch layer. Safe for concurrent use.
type Client struct {
	cfg     Config
	std     *http.Client
	lax     *http.Client
	logger  *zap.Logger
	gatesMu sync.Mutex
	gates   map[string]*domainGate
	rngMu   sync.Mutex
	rng     *rand.Rand
}

// New builds a Client. Zero config fields fall back to spec defaults.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.PerDomainMax <= 0 {
		cfg.PerDomainMax = 2
	}
	if cfg.DefaultRequestDelay <= 0 {
		cfg.DefaultRequestDelay = 1.0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = time.Second
	}
	if cfg.BackoffJitter <= 0 {
		cfg.BackoffJitter = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	laxTransport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			// Lax mode exists for legacy servers with weak chains and old
			// cipher suites; it lowers both validation and suite policy.
			InsecureSkipVerify: true, //nolint:gosec
			MinVersion:         tls.VersionTLS10,
			CipherSuites:       legacyCipherSuites(),
		},
	}

	return &Client{
		cfg:    cfg,
		std:    &http.Client{Timeout: cfg.Timeout},
		lax:    &http.Client{Timeout: cfg.Timeout, Transport: laxTransport},
		logger: logger,
		gates:  make(map[string]*domainGate),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func legacyCipherSuites() []uint16 {
	ids := make([]uint16, 0, 32)
	for _, s := range tls.CipherSuites() {
		ids = append(ids, s.ID)
	}
	for _, s := range tls.InsecureCipherSuites() {
		ids = append(ids, s.ID)
	}
	return ids
}

// FetchPage fetches url and returns the body decoded to UTF-8.
func (c *Client) FetchPage(ctx context.Context, rawURL string, opts Options) (string, error) {
	body, contentType, err := c.fetch(ctx, rawURL, opts)
	if err != nil {
		return "", err
	}
	decoded, err := decodeCharset(body, contentType, opts.Encoding)
	if err != nil {
		return "", &DecodeError{URL: rawURL, Err: err}
	}
	return decoded, nil
}

// FetchJSON fetches url and unmarshals the response body into out.
func (c *Client) FetchJSON(ctx context.Context, rawURL string, opts Options, out any) error {
	body, _, err := c.fetch(ctx, rawURL, opts)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &DecodeError{URL: rawURL, Err: err}
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, rawURL string, opts Options) ([]byte, string, error) {
	target, err := buildURL(rawURL, opts.Params)
	if err != nil {
		return nil, "", &PermanentError{URL: rawURL, Err: err}
	}

	gate := c.gate(target.Hostname())
	select {
	case gate.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, "", fmt.Errorf("acquire domain slot: %w", ctx.Err())
	}
	defer func() { <-gate.sem }()

	if err := c.waitDomainDelay(ctx, gate, opts.RequestDelay); err != nil {
		return nil, "", err
	}

	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = c.cfg.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, c.backoff(attempt-1)); err != nil {
				return nil, "", err
			}
		}
		body, contentType, err := c.doRequest(ctx, target.String(), opts)
		if err == nil {
			return body, contentType, nil
		}
		var perm *PermanentError
		if errors.As(err, &perm) {
			return nil, "", err
		}
		lastErr = err
		c.logger.Warn("request failed, will retry",
			zap.String("url", target.String()),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
		)
	}
	return nil, "", lastErr
}

func (c *Client) doRequest(ctx context.Context, target string, opts Options) ([]byte, string, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", &PermanentError{URL: target, Err: err}
	}

	req.Header.Set("User-Agent", c.pickUserAgent(opts.Headers))
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	httpc := c.std
	if opts.VerifyTLS != nil && !*opts.VerifyTLS {
		httpc = c.lax
	}

	resp, err := httpc.Do(req)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return nil, "", &PermanentError{URL: target, Err: err}
		}
		return nil, "", &TransientError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, "", &TransientError{URL: target, StatusCode: resp.StatusCode, Err: fmt.Errorf("server error")}
	}
	if resp.StatusCode >= 400 {
		return nil, "", &PermanentError{URL: target, StatusCode: resp.StatusCode, Err: fmt.Errorf("client error")}
	}

	reader, err := contentReader(resp)
	if err != nil {
		return nil, "", &DecodeError{URL: target, Err: err}
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", &TransientError{URL: target, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// contentReader unwraps Content-Encoding. The standard transport handles
// gzip transparently only when it set the Accept-Encoding header itself,
// which our explicit header disables, so all three encodings are handled
// here.
func contentReader(resp *http.Response) (io.Reader, error) {
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "br":
		return brotli.NewReader(resp.Body), nil
	case "gzip":
		return newGzipReader(resp.Body)
	case "deflate":
		return newDeflateReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}

func decodeCharset(body []byte, contentType, override string) (string, error) {
	label := override
	if label == "" {
		if _, params, err := parseMediaType(contentType); err == nil {
			label = params["charset"]
		}
	}
	if label == "" || strings.EqualFold(label, "utf-8") {
		return string(body), nil
	}
	enc, _ := charset.Lookup(label)
	if enc == nil {
		return string(body), nil
	}
	decoded, err := io.ReadAll(enc.NewDecoder().Reader(strings.NewReader(string(body))))
	if err != nil {
		return "", fmt.Errorf("charset %s: %w", label, err)
	}
	return string(decoded), nil
}

func buildURL(rawURL string, params map[string]string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if len(params) > 0 {
		q := u.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}

func (c *Client) gate(host string) *domainGate {
	key := strings.ToLower(host)
	c.gatesMu.Lock()
	defer c.gatesMu.Unlock()
	g, ok := c.gates[key]
	if !ok {
		g = &domainGate{sem: make(chan struct{}, c.cfg.PerDomainMax)}
		c.gates[key] = g
	}
	return g
}

func (c *Client) waitDomainDelay(ctx context.Context, gate *domainGate, delaySeconds float64) error {
	if delaySeconds <= 0 {
		delaySeconds = c.cfg.DefaultRequestDelay
	}
	delay := time.Duration(delaySeconds * float64(time.Second))

	gate.mu.Lock()
	wait := delay - time.Since(gate.lastSent)
	gate.lastSent = time.Now().Add(max(wait, 0))
	gate.mu.Unlock()

	if wait > 0 {
		return c.sleep(ctx, wait)
	}
	return nil
}

func (c *Client) backoff(attempt int) time.Duration {
	base := float64(c.cfg.BackoffInitial) * math.Pow(2, float64(attempt))
	c.rngMu.Lock()
	jitter := time.Duration(c.rng.Int63n(int64(c.cfg.BackoffJitter)))
	c.rngMu.Unlock()
	return time.Duration(base) + jitter
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) pickUserAgent(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, "User-Agent") {
			return v
		}
	}
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return userAgents[c.rng.Intn(len(userAgents))]
}
