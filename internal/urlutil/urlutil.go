// Package urlutil provides URL canonicalization and hashing used for
// article deduplication across crawl runs.
package urlutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Tracking parameters stripped during canonicalization.
var trackingParams = map[string]struct{}{
	"utm_source":     {},
	"utm_medium":     {},
	"utm_campaign":   {},
	"utm_term":       {},
	"utm_content":    {},
	"from":           {},
	"spm":            {},
	"ref":            {},
	"share_token":    {},
	"wfr":            {},
	"isappinstalled": {},
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Canonicalize standardizes a URL for deduplication.
// It lowercases the scheme and host, strips tracking query parameters,
// sorts the remaining parameters, and trims the trailing slash from the
// path (except on the root). The fragment is preserved: the snapshot
// strategy encodes a content hash into it.
func Canonicalize(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	q := u.Query()
	for key := range q {
		if _, tracked := trackingParams[strings.ToLower(key)]; tracked {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode() // Encode sorts keys

	if u.Path != "/" {
		u.Path = strings.TrimRight(u.Path, "/")
	}
	if u.Path == "" && u.Host != "" {
		u.Path = "/"
	}

	return u.String(), nil
}

// URLHash computes the SHA-256 hex digest of the canonical form of rawURL.
// Unparseable URLs are hashed as-is so that a malformed link still yields
// a stable key.
func URLHash(rawURL string) string {
	canonical, err := Canonicalize(rawURL)
	if err != nil {
		canonical = rawURL
	}
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// ContentHash computes the SHA-256 hex digest of whitespace-collapsed text.
// Runs of whitespace fold to a single space so that formatting-only changes
// do not register as new content.
func ContentHash(text string) string {
	cleaned := whitespaceRun.ReplaceAllString(strings.TrimSpace(text), " ")
	sum := sha256.Sum256([]byte(cleaned))
	return hex.EncodeToString(sum[:])
}

// NormalizeBaseURL ensures base ends with "/" so relative-link resolution
// treats the final path segment as a directory. A last segment containing a
// dot is treated as a file (e.g. index.html) and left alone.
func NormalizeBaseURL(base string) string {
	if base == "" {
		return base
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	path := u.Path
	if path == "" || strings.HasSuffix(path, "/") {
		return base
	}
	last := path[strings.LastIndex(path, "/")+1:]
	if strings.Contains(last, ".") {
		return base
	}
	u.Path = path + "/"
	return u.String()
}

// Resolve joins a possibly-relative link against a normalized base URL.
func Resolve(base, link string) string {
	baseURL, err := url.Parse(NormalizeBaseURL(base))
	if err != nil {
		return link
	}
	ref, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return link
	}
	return baseURL.ResolveReference(ref).String()
}
