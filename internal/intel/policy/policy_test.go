package policy

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ryder-MHumble/deanagent/internal/crawler"
	"github.com/Ryder-MHumble/deanagent/internal/intel"
	"github.com/Ryder-MHumble/deanagent/internal/storage"
)

type fakeReader struct {
	byDim map[string][]*storage.Artifact
}

func (f *fakeReader) ReadDimensionArtifacts(dim string) ([]*storage.Artifact, error) {
	return f.byDim[dim], nil
}

func (f *fakeReader) ReadAllArtifacts() ([]*storage.Artifact, error) {
	var all []*storage.Artifact
	for _, arts := range f.byDim {
		all = append(all, arts...)
	}
	return all, nil
}

func policyArticleAI() *storage.Artifact {
	published := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	return &storage.Artifact{
		SourceID:   "bjkw_policy",
		SourceName: "北京市科委",
		Dimension:  "beijing_policy",
		Items: []crawler.Item{{
			Title:       "关于加快人工智能产业发展的实施方案",
			URL:         "https://site.cn/policy/1.html",
			URLHash:     "hash-ai-policy",
			ContentHash: "content-1",
			PublishedAt: &published,
			Content:     "为推动大模型创新，资助上限 500 万元，申报截止 2026-06-30，请各单位申报。",
			SourceID:    "bjkw_policy",
			Dimension:   "beijing_policy",
		}},
	}
}

func TestMatchScoreS5(t *testing.T) {
	artifact := policyArticleAI()
	a := intel.Article{Item: artifact.Items[0], SourceName: artifact.SourceName}

	score := MatchScore(a)
	assert.GreaterOrEqual(t, score, 70, "AI policy with funding keywords must score high")

	e := EnrichByRules(a)
	assert.Equal(t, intel.ImportanceHigh, e.Importance)
	assert.True(t, e.IsOpportunity)
	assert.Equal(t, "500万元", e.Funding)
	assert.Equal(t, "2026-06-30", e.Deadline)
	assert.Equal(t, "北京市科委/中关村管委会", e.Agency)
	assert.Equal(t, TierRules, e.Tier)
}

func TestEnrichByRulesImportanceBands(t *testing.T) {
	low := intel.Article{Item: crawler.Item{
		Title:   "机关食堂菜单更新",
		Content: "本周菜单如下。",
	}}
	e := EnrichByRules(low)
	assert.Equal(t, intel.ImportanceLow, e.Importance)
	assert.False(t, e.IsOpportunity)
}

func TestIsOpportunityRequiresBothSignals(t *testing.T) {
	titleOnly := intel.Article{Item: crawler.Item{
		Title:   "关于开展专项申报的通知",
		Content: "没有金额也没有时间。",
	}}
	assert.False(t, IsOpportunity(titleOnly))

	bodyOnly := intel.Article{Item: crawler.Item{
		Title:   "产业动态速递",
		Content: "资助上限 300 万元，截止日期为2026年9月30日。",
	}}
	assert.False(t, IsOpportunity(bodyOnly))
}

func TestProcessWritesOutputs(t *testing.T) {
	reader := &fakeReader{byDim: map[string][]*storage.Artifact{
		"beijing_policy": {policyArticleAI()},
	}}
	root := t.TempDir()
	p := New(reader, root, zap.NewNop())

	summary, err := p.Process(Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary["new_processed"])
	assert.Equal(t, 1, summary["feed_items"])
	assert.Equal(t, 1, summary["opportunities"])

	var feed struct {
		ItemCount int        `json:"item_count"`
		Items     []FeedItem `json:"items"`
	}
	raw, err := os.ReadFile(filepath.Join(root, Module, "feed.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &feed))
	require.Len(t, feed.Items, 1)
	assert.Equal(t, "hash-ai-policy", feed.Items[0].ID)
	assert.Equal(t, "2026-05-10", feed.Items[0].Date)

	var opps struct {
		Items []OpportunityItem `json:"items"`
	}
	raw, err = os.ReadFile(filepath.Join(root, Module, "opportunities.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &opps))
	require.Len(t, opps.Items, 1)
	assert.Equal(t, "500万元", opps.Items[0].Funding)
	assert.Equal(t, "2026-06-30", opps.Items[0].Deadline)
	assert.Equal(t, "beijing", opps.Items[0].AgencyType)
}

func TestProcessIsIncremental(t *testing.T) {
	reader := &fakeReader{byDim: map[string][]*storage.Artifact{
		"beijing_policy": {policyArticleAI()},
	}}
	root := t.TempDir()
	p := New(reader, root, zap.NewNop())

	first, err := p.Process(Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, first["new_processed"])

	second, err := p.Process(Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, second["new_processed"], "unchanged items are skipped")

	forced, err := p.Process(Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, forced["new_processed"], "force reprocesses everything")
}

func TestProcessContentChangeReprocesses(t *testing.T) {
	artifact := policyArticleAI()
	reader := &fakeReader{byDim: map[string][]*storage.Artifact{
		"beijing_policy": {artifact},
	}}
	root := t.TempDir()
	p := New(reader, root, zap.NewNop())

	_, err := p.Process(Options{})
	require.NoError(t, err)

	artifact.Items[0].ContentHash = "content-2"
	summary, err := p.Process(Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary["new_processed"], "changed content hash forces reprocessing")
}

func TestProcessExcludesPersonnelGroup(t *testing.T) {
	personnel := policyArticleAI()
	personnel.Group = "news_personnel"
	personnel.Items[0].URLHash = "hash-personnel"
	reader := &fakeReader{byDim: map[string][]*storage.Artifact{
		"beijing_policy": {personnel},
	}}
	p := New(reader, t.TempDir(), zap.NewNop())

	summary, err := p.Process(Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, summary["total"])
}

func TestProcessDryRunWritesNothing(t *testing.T) {
	reader := &fakeReader{byDim: map[string][]*storage.Artifact{
		"beijing_policy": {policyArticleAI()},
	}}
	root := t.TempDir()
	p := New(reader, root, zap.NewNop())

	_, err := p.Process(Options{DryRun: true})
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(root, Module, "feed.json"))
	assert.True(t, os.IsNotExist(statErr))
}

type fakeOracle struct {
	response string
	err      error
	calls    int
}

func (f *fakeOracle) CompleteJSON(context.Context, string, string) (json.RawMessage, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.response), nil
}

func TestEnrichWithOracle(t *testing.T) {
	reader := &fakeReader{byDim: map[string][]*storage.Artifact{
		"beijing_policy": {policyArticleAI()},
	}}
	root := t.TempDir()
	p := New(reader, root, zap.NewNop())
	_, err := p.Process(Options{})
	require.NoError(t, err)

	o := &fakeOracle{response: `{"summary":"AI产业专项资助","importance":"重要","matchScore":85,"category":"政策机会","aiInsight":"与研究院方向高度契合","signals":["申报窗口开放"]}`}
	summary, err := p.EnrichWithOracle(context.Background(), o, 40, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, summary["oracle_enriched"])
	assert.Equal(t, 1, o.calls)

	// Re-running skips already-enriched records: oracle output is cached.
	summary, err = p.EnrichWithOracle(context.Background(), o, 40, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, summary["oracle_enriched"])
	assert.Equal(t, 1, summary["already"])
	assert.Equal(t, 1, o.calls, "cached enrichment must not call the oracle again")

	var feed struct {
		Items []FeedItem `json:"items"`
	}
	raw, err := os.ReadFile(filepath.Join(root, Module, "feed.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &feed))
	require.Len(t, feed.Items, 1)
	assert.Equal(t, "AI产业专项资助", feed.Items[0].Summary)
	assert.Equal(t, "与研究院方向高度契合", feed.Items[0].AIInsight)
}

func TestOracleFailureKeepsRuleFields(t *testing.T) {
	reader := &fakeReader{byDim: map[string][]*storage.Artifact{
		"beijing_policy": {policyArticleAI()},
	}}
	root := t.TempDir()
	p := New(reader, root, zap.NewNop())
	_, err := p.Process(Options{})
	require.NoError(t, err)

	o := &fakeOracle{err: assert.AnError}
	summary, err := p.EnrichWithOracle(context.Background(), o, 40, 1)
	require.NoError(t, err, "oracle failures are non-fatal")
	assert.Equal(t, 0, summary["oracle_enriched"])
	assert.Equal(t, 1, summary["oracle_errors"])

	var feed struct {
		Items []FeedItem `json:"items"`
	}
	raw, readErr := os.ReadFile(filepath.Join(root, Module, "feed.json"))
	require.NoError(t, readErr)
	require.NoError(t, json.Unmarshal(raw, &feed))
	require.Len(t, feed.Items, 1)
	assert.NotZero(t, feed.Items[0].MatchScore, "rule-engine fields survive oracle failure")
}
