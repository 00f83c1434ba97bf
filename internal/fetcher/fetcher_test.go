package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/Ryder-MHumble/deanagent/internal/httpclient"
	"github.com/Ryder-MHumble/deanagent/internal/storage"
)

// fakeHTTP serves canned pages keyed by URL (query string included).
type fakeHTTP struct {
	pages    map[string]string
	failures map[string]error
	requests []string
}

func (f *fakeHTTP) FetchPage(_ context.Context, rawURL string, opts httpclient.Options) (string, error) {
	key := keyWithParams(rawURL, opts)
	f.requests = append(f.requests, key)
	if err, ok := f.failures[key]; ok {
		return "", err
	}
	page, ok := f.pages[key]
	if !ok {
		// Fall back to the bare URL so tests that don't care about the
		// exact query string can key by endpoint.
		page, ok = f.pages[rawURL]
	}
	if !ok {
		return "", fmt.Errorf("no canned page for %s", key)
	}
	return page, nil
}

func (f *fakeHTTP) FetchJSON(ctx context.Context, rawURL string, opts httpclient.Options, out any) error {
	raw, err := f.FetchPage(ctx, rawURL, opts)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), out)
}

// keyWithParams mirrors the real client's query merging so canned pages can
// be keyed by the final URL.
func keyWithParams(rawURL string, opts httpclient.Options) string {
	if len(opts.Params) == 0 {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	for k, v := range opts.Params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// fakeTab implements TabSession over canned pages.
type fakeTab struct {
	http *fakeHTTP
}

func (t *fakeTab) Load(url, _ string, _ time.Duration) (string, error) {
	return t.http.FetchPage(context.Background(), url, httpclient.Options{})
}

func (t *fakeTab) LoadDetail(url, _ string) (string, error) {
	return t.Load(url, "", 0)
}

// fakeRenderer implements Renderer over the same canned pages.
type fakeRenderer struct {
	http *fakeHTTP
}

func (r *fakeRenderer) Render(ctx context.Context, url, wait string, timeout time.Duration) (string, error) {
	return r.http.FetchPage(ctx, url, httpclient.Options{})
}

func (r *fakeRenderer) WithTab(_ context.Context, fn func(tab TabSession) error) error {
	return fn(&fakeTab{http: r.http})
}

// memSnapshots is an in-memory SnapshotStore.
type memSnapshots struct {
	snaps map[string][]storage.Snapshot
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{snaps: make(map[string][]storage.Snapshot)}
}

func (m *memSnapshots) LastSnapshot(sourceID string) *storage.Snapshot {
	list := m.snaps[sourceID]
	if len(list) == 0 {
		return nil
	}
	last := list[len(list)-1]
	return &last
}

func (m *memSnapshots) AppendSnapshot(sourceID string, snap storage.Snapshot) error {
	m.snaps[sourceID] = append(m.snaps[sourceID], snap)
	return nil
}

func depsWith(http *fakeHTTP) Deps {
	return Deps{
		HTTP:      http,
		Browser:   &fakeRenderer{http: http},
		Snapshots: newMemSnapshots(),
	}
}
