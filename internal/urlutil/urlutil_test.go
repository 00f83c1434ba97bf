package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "lowercases scheme and host",
			in:   "HTTPS://Example.COM/News/Item",
			want: "https://example.com/News/Item",
		},
		{
			name: "strips tracking params and sorts the rest",
			in:   "https://site.cn/a?utm_source=wx&b=2&a=1&spm=xyz",
			want: "https://site.cn/a?a=1&b=2",
		},
		{
			name: "drops trailing slash except root",
			in:   "https://site.cn/news/",
			want: "https://site.cn/news",
		},
		{
			name: "keeps root slash",
			in:   "https://site.cn/",
			want: "https://site.cn/",
		},
		{
			name: "preserves fragment",
			in:   "https://site.cn/leaders#snapshot-abc123def456",
			want: "https://site.cn/leaders#snapshot-abc123def456",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Canonicalize(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	urls := []string{
		"https://Example.com/a/b/?utm_source=x&z=1&a=2",
		"http://site.cn/news/t20260215_001.html",
		"https://site.cn/leaders#snapshot-0123456789ab",
	}
	for _, raw := range urls {
		once, err := Canonicalize(raw)
		require.NoError(t, err)
		twice, err := Canonicalize(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice, "canonicalize must be idempotent for %s", raw)
	}
}

func TestURLHash(t *testing.T) {
	h := URLHash("https://site.cn/a?b=2&a=1")
	assert.Len(t, h, 64)

	// URLs differing only in blacklisted params hash identically.
	h2 := URLHash("https://site.cn/a?a=1&utm_campaign=news&b=2")
	assert.Equal(t, h, h2)

	// Distinct fragments produce distinct hashes (snapshot versioning).
	s1 := URLHash("https://site.cn/leaders#snapshot-aaaaaaaaaaaa")
	s2 := URLHash("https://site.cn/leaders#snapshot-bbbbbbbbbbbb")
	assert.NotEqual(t, s1, s2)
}

func TestContentHash(t *testing.T) {
	a := ContentHash("hello   world\n\tfoo")
	b := ContentHash(" hello world foo ")
	assert.Equal(t, a, b, "whitespace runs must collapse before hashing")
	assert.NotEqual(t, a, ContentHash("hello world bar"))
}

func TestNormalizeBaseURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://x/a/b", "https://x/a/b/"},
		{"https://x/a/b/", "https://x/a/b/"},
		{"https://x/a/index.html", "https://x/a/index.html"},
		{"https://x", "https://x"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeBaseURL(tc.in), "input %q", tc.in)
	}
}

func TestResolve(t *testing.T) {
	// With trailing-slash normalization the sibling resolves under /a/b/.
	got := Resolve("https://x/a/b", "c.html")
	assert.Equal(t, "https://x/a/b/c.html", got)

	got = Resolve("https://site.cn/news/", "./202602/t20260215_001.html")
	assert.Equal(t, "https://site.cn/news/202602/t20260215_001.html", got)

	got = Resolve("https://site.cn/news/", "https://other.cn/x")
	assert.Equal(t, "https://other.cn/x", got)
}
