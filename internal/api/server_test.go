package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ryder-MHumble/deanagent/internal/crawler"
	"github.com/Ryder-MHumble/deanagent/internal/intel"
	"github.com/Ryder-MHumble/deanagent/internal/source"
	"github.com/Ryder-MHumble/deanagent/internal/storage"
)

type fakeTrigger struct {
	triggered []string
	pipelines int
	err       error
}

func (f *fakeTrigger) Trigger(sourceID string) error {
	if f.err != nil {
		return f.err
	}
	f.triggered = append(f.triggered, sourceID)
	return nil
}

func (f *fakeTrigger) TriggerPipeline() { f.pipelines++ }
func (f *fakeTrigger) InFlight() int    { return 0 }

func testServer(t *testing.T) (*Server, *storage.Store, *fakeTrigger) {
	t.Helper()
	dir := t.TempDir()
	catalogDir := filepath.Join(dir, "sources")
	require.NoError(t, os.MkdirAll(catalogDir, 0o755))
	catalogYAML := `
dimension: technology
sources:
  - {id: tech_news, name: "科技日报", url: "https://a/", fetch_strategy: static, schedule: daily}
  - {id: tech_feed, name: "Tech Feed", url: "https://b/", fetch_strategy: rss, schedule: 2h}
`
	require.NoError(t, os.WriteFile(filepath.Join(catalogDir, "technology.yaml"), []byte(catalogYAML), 0o644))
	catalog, err := source.LoadCatalog(catalogDir, zap.NewNop())
	require.NoError(t, err)

	store := storage.New(filepath.Join(dir, "data"), zap.NewNop())
	trigger := &fakeTrigger{}
	return NewServer(catalog, store, trigger, zap.NewNop()), store, trigger
}

func seedArticles(t *testing.T, store *storage.Store) {
	t.Helper()
	published := time.Now().UTC()
	def := source.Definition{ID: "tech_news", Name: "科技日报", Dimension: "technology"}
	result := &crawler.Result{
		SourceID: "tech_news",
		EndedAt:  published,
		ItemsNew: 2,
		Items: []crawler.Item{
			{Title: "大模型新进展", URL: "https://a/1", URLHash: "h1", PublishedAt: &published, SourceID: "tech_news", Dimension: "technology"},
			{Title: "芯片产业动态", URL: "https://a/2", URLHash: "h2", PublishedAt: &published, SourceID: "tech_news", Dimension: "technology"},
		},
	}
	require.NoError(t, store.WriteArtifact(def, result))
}

func doRequest(t *testing.T, s *Server, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	s, _, _ := testServer(t)
	rec := doRequest(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListArticles(t *testing.T) {
	s, store, _ := testServer(t)
	seedArticles(t, store)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/articles", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 2, body["total"])

	rec = doRequest(t, s, http.MethodGet, "/api/v1/articles?keyword=大模型", "")
	body = decodeBody(t, rec)
	assert.EqualValues(t, 1, body["total"])

	rec = doRequest(t, s, http.MethodGet, "/api/v1/articles?source_id=nonexistent", "")
	body = decodeBody(t, rec)
	assert.EqualValues(t, 0, body["total"])
}

func TestListArticlesPagination(t *testing.T) {
	s, store, _ := testServer(t)
	seedArticles(t, store)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/articles?page=1&page_size=1", "")
	body := decodeBody(t, rec)
	assert.EqualValues(t, 2, body["total"])
	items := body["items"].([]any)
	assert.Len(t, items, 1)
}

func TestSourcesEndpoints(t *testing.T) {
	s, store, _ := testServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/sources/", "")
	body := decodeBody(t, rec)
	assert.EqualValues(t, 2, body["total"])

	rec = doRequest(t, s, http.MethodGet, "/api/v1/sources/tech_news/", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/sources/nope/", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Toggle writes the override.
	rec = doRequest(t, s, http.MethodPost, "/api/v1/sources/tech_news/toggle", `{"enabled": false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	override := store.SourceState("tech_news").IsEnabledOverride
	require.NotNil(t, override)
	assert.False(t, *override)
}

func TestSourceLogs(t *testing.T) {
	s, store, _ := testServer(t)
	require.NoError(t, store.AppendRunLog("tech_news", crawler.RunLogEntry{
		SourceID:  "tech_news",
		Status:    crawler.StatusSuccess,
		ItemsNew:  3,
		StartedAt: time.Now().UTC(),
	}))

	rec := doRequest(t, s, http.MethodGet, "/api/v1/sources/tech_news/logs", "")
	body := decodeBody(t, rec)
	assert.EqualValues(t, 1, body["total"])
}

func TestTriggerSource(t *testing.T) {
	s, _, trigger := testServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/sources/tech_news/trigger", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"tech_news"}, trigger.triggered)

	trigger.err = errors.New("already running")
	rec = doRequest(t, s, http.MethodPost, "/api/v1/sources/tech_news/trigger", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDimensionsOverview(t *testing.T) {
	s, store, _ := testServer(t)
	require.NoError(t, store.RecordRun("tech_news", true, time.Now().UTC()))

	rec := doRequest(t, s, http.MethodGet, "/api/v1/dimensions", "")
	body := decodeBody(t, rec)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	dim := items[0].(map[string]any)
	assert.Equal(t, "technology", dim["dimension"])
	assert.EqualValues(t, 2, dim["source_count"])
	assert.NotNil(t, dim["last_updated"])
}

func TestHealthRollup(t *testing.T) {
	s, store, _ := testServer(t)
	now := time.Now().UTC()
	// tech_news fails three times → failing; tech_feed healthy.
	for i := 0; i < 3; i++ {
		require.NoError(t, store.RecordRun("tech_news", false, now))
	}

	rec := doRequest(t, s, http.MethodGet, "/api/v1/health", "")
	body := decodeBody(t, rec)
	sources := body["sources"].(map[string]any)
	assert.EqualValues(t, 1, sources["failing"])
	assert.EqualValues(t, 1, sources["healthy"])
	assert.Equal(t, true, body["scheduler_up"])
}

func TestPipelineStatusNeverRun(t *testing.T) {
	s, _, _ := testServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/v1/pipeline/status", "")
	body := decodeBody(t, rec)
	assert.Equal(t, "never_run", body["status"])
}

func TestIntelFeedMissingFile(t *testing.T) {
	s, _, _ := testServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/v1/intel/policy/feed", "")
	body := decodeBody(t, rec)
	assert.EqualValues(t, 0, body["item_count"])
}

func TestIntelFeedSourceFilterQuadruple(t *testing.T) {
	s, store, _ := testServer(t)

	dir := store.ProcessedDir("policy_intel")
	require.NoError(t, intel.SaveOutputJSON(dir, "feed.json", 2, []map[string]any{
		{"id": "1", "title": "方案甲", "source_id": "bjkw_policy", "source": "北京市科委", "date": "2026-05-10"},
		{"id": "2", "title": "方案乙", "source_id": "most_policy", "source": "科技部", "date": "2026-05-12"},
	}, nil))

	rec := doRequest(t, s, http.MethodGet, "/api/v1/intel/policy/feed?source_id=bjkw_policy", "")
	body := decodeBody(t, rec)
	assert.EqualValues(t, 1, body["item_count"])

	rec = doRequest(t, s, http.MethodGet, "/api/v1/intel/policy/feed?source_ids=bjkw_policy,most_policy", "")
	body = decodeBody(t, rec)
	assert.EqualValues(t, 2, body["item_count"])

	// Fuzzy name match: case- and whitespace-insensitive substring.
	rec = doRequest(t, s, http.MethodGet, "/api/v1/intel/policy/feed?source_name="+urlEncode("科 委"), "")
	body = decodeBody(t, rec)
	assert.EqualValues(t, 1, body["item_count"])

	rec = doRequest(t, s, http.MethodGet, "/api/v1/intel/policy/feed?source_names="+urlEncode("科技部,北京"), "")
	body = decodeBody(t, rec)
	assert.EqualValues(t, 2, body["item_count"])

	rec = doRequest(t, s, http.MethodGet, "/api/v1/intel/policy/feed?date_from=2026-05-11", "")
	body = decodeBody(t, rec)
	assert.EqualValues(t, 1, body["item_count"])
}

func TestAnnotation(t *testing.T) {
	s, store, _ := testServer(t)
	rec := doRequest(t, s, http.MethodPost, "/api/v1/articles/h1/annotation", `{"is_read": true, "importance": "high"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	ann := store.Annotations()["h1"]
	assert.True(t, ann.IsRead)
	assert.Equal(t, "high", ann.Importance)
}

func urlEncode(s string) string {
	return url.QueryEscape(s)
}
