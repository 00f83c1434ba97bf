package briefing

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
	"github.com/Ryder-MHumble/deanagent/internal/storage"
)

type fakeReader struct {
	artifacts []*storage.Artifact
}

func (f *fakeReader) ReadDimensionArtifacts(dim string) ([]*storage.Artifact, error) {
	var out []*storage.Artifact
	for _, a := range f.artifacts {
		if a.Dimension == dim {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeReader) ReadAllArtifacts() ([]*storage.Artifact, error) {
	return f.artifacts, nil
}

func recentItem(hash, title string) crawler.Item {
	published := time.Now().UTC().Add(-6 * time.Hour)
	return crawler.Item{
		Title:       title,
		URL:         "https://example.com/" + hash,
		URLHash:     hash,
		PublishedAt: &published,
	}
}

func oldItem(hash, title string) crawler.Item {
	published := time.Now().UTC().AddDate(0, 0, -10)
	return crawler.Item{
		Title:       title,
		URLHash:     hash,
		PublishedAt: &published,
	}
}

func testReader() *fakeReader {
	return &fakeReader{artifacts: []*storage.Artifact{
		{
			SourceID: "gov", SourceName: "中国政府网", Dimension: "national_policy",
			Items: []crawler.Item{
				recentItem("p1", "人工智能+行动意见"),
				recentItem("p2", "科研经费管理办法"),
				oldItem("p3", "去年的旧政策"),
			},
		},
		{
			SourceID: "tech", SourceName: "科技媒体", Dimension: "technology",
			Items: []crawler.Item{recentItem("t1", "新模型发布")},
		},
	}}
}

func TestProcessRuleNarrative(t *testing.T) {
	root := t.TempDir()
	p := New(testReader(), root, zap.NewNop())

	summary, err := p.Process(context.Background(), nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, summary["total"], "items outside the window are excluded")
	assert.Equal(t, "rules", summary["narrative_by"])

	raw, err := os.ReadFile(filepath.Join(root, Module, "briefing.json"))
	require.NoError(t, err)
	var doc struct {
		Items Briefing `json:"items"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))

	briefing := doc.Items
	assert.Equal(t, 3, briefing.TotalCount)
	assert.NotEmpty(t, briefing.Narrative)
	require.Len(t, briefing.Sections, 2)
	assert.Equal(t, "national_policy", briefing.Sections[0].Dimension, "sections sort by volume")
	assert.Equal(t, 2, briefing.Sections[0].ItemCount)
	require.NotEmpty(t, briefing.MetricCards)
	assert.Equal(t, "policy-intel", briefing.MetricCards[0].ModuleID)
}

type fakeOracle struct {
	response string
	err      error
}

func (f *fakeOracle) CompleteJSON(context.Context, string, string) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.response), nil
}

func TestProcessOracleNarrative(t *testing.T) {
	p := New(testReader(), t.TempDir(), zap.NewNop())

	o := &fakeOracle{response: `{"narrative":"今日政策面聚焦人工智能+行动。"}`}
	summary, err := p.Process(context.Background(), o, Options{})
	require.NoError(t, err)
	assert.Equal(t, "oracle", summary["narrative_by"])
}

func TestProcessOracleFailureFallsBack(t *testing.T) {
	p := New(testReader(), t.TempDir(), zap.NewNop())

	o := &fakeOracle{err: assert.AnError}
	summary, err := p.Process(context.Background(), o, Options{})
	require.NoError(t, err, "oracle failure is non-fatal")
	assert.Equal(t, "rules", summary["narrative_by"])
}

func TestProcessEmptyWindow(t *testing.T) {
	reader := &fakeReader{artifacts: []*storage.Artifact{{
		SourceID: "gov", Dimension: "national_policy",
		Items: []crawler.Item{oldItem("p3", "旧政策")},
	}}}
	root := t.TempDir()
	p := New(reader, root, zap.NewNop())

	summary, err := p.Process(context.Background(), nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, summary["total"])

	raw, err := os.ReadFile(filepath.Join(root, Module, "briefing.json"))
	require.NoError(t, err)
	var doc struct {
		Items Briefing `json:"items"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "今日暂无新增情报。", doc.Items.Narrative)
}
