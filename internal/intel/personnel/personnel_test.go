package personnel

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

func articleOf(title, content string) intel.Article {
	published := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	return intel.Article{
		Item: crawler.Item{
			Title:       title,
			URLHash:     "hash-1",
			Content:     content,
			PublishedAt: &published,
		},
		SourceName: "中国政府网",
	}
}

func TestExtractChangesAppointmentS6(t *testing.T) {
	a := articleOf("国务院任命张三为教育部副部长", "")
	changes := ExtractChanges(a)
	require.Len(t, changes, 1)

	c := changes[0]
	assert.Equal(t, "张三", c.Name)
	assert.Equal(t, ActionAppointed, c.Action)
	assert.Equal(t, "教育部副部长", c.Position)
	assert.Equal(t, "国务院", c.Organization)
	assert.Equal(t, "2026-07-01", c.Date)
	assert.Len(t, c.ID, 16)
}

func TestExtractChangesMultiple(t *testing.T) {
	content := "国务院决定：任命黄如（女）为国家发展和改革委员会副主任；免去孙其信的中国农业大学校长职务。"
	a := articleOf("国务院任免国家工作人员", content)
	changes := ExtractChanges(a)
	require.Len(t, changes, 2)

	byAction := map[string]Change{}
	for _, c := range changes {
		byAction[c.Action] = c
	}
	appointed := byAction[ActionAppointed]
	assert.Equal(t, "黄如", appointed.Name, "parenthetical annotations are skipped")
	assert.Equal(t, "国家发展和改革委员会副主任", appointed.Position)
	assert.Equal(t, "国家发改委", appointed.Organization)

	removed := byAction[ActionRemoved]
	assert.Equal(t, "孙其信", removed.Name)
	assert.Equal(t, "中国农业大学校长", removed.Position)
	assert.Equal(t, "中国农业大学", removed.Organization)
}

func TestExtractChangesElectionAndRetirement(t *testing.T) {
	a := articleOf("学界动态", "王强当选中国科学院院士。李明卸任北京大学校长。")
	changes := ExtractChanges(a)
	require.Len(t, changes, 2)

	assert.Equal(t, ActionElected, changes[0].Action)
	assert.Equal(t, "王强", changes[0].Name)
	assert.Equal(t, "中国科学院", changes[0].Organization)

	assert.Equal(t, ActionRetired, changes[1].Action)
	assert.Equal(t, "李明", changes[1].Name)
	assert.Equal(t, "北京大学", changes[1].Organization)
}

func TestExtractChangesDedup(t *testing.T) {
	content := "任命张三为教育部副部长。任命张三为教育部副部长。"
	changes := ExtractChanges(articleOf("重复通知", content))
	assert.Len(t, changes, 1)
}

func TestChangeIDStable(t *testing.T) {
	id1 := ChangeID("张三", ActionAppointed, "教育部副部长")
	id2 := ChangeID("张三", ActionAppointed, "教育部副部长")
	assert.Equal(t, id1, id2)
	assert.NotEqual(t, id1, ChangeID("张三", ActionRemoved, "教育部副部长"))
}

func personnelArtifact() *storage.Artifact {
	published := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	return &storage.Artifact{
		SourceID:   "gov_renshi",
		SourceName: "中国政府网",
		Dimension:  "personnel",
		Items: []crawler.Item{{
			Title:       "国务院任命张三为教育部副部长",
			URL:         "https://gov.cn/renshi/1.html",
			URLHash:     "hash-renshi-1",
			ContentHash: "c1",
			PublishedAt: &published,
			SourceID:    "gov_renshi",
			Dimension:   "personnel",
		}},
	}
}

func TestProcessWritesFeedAndChanges(t *testing.T) {
	reader := &fakeReader{byDim: map[string][]*storage.Artifact{
		"personnel": {personnelArtifact()},
	}}
	root := t.TempDir()
	p := New(reader, root, zap.NewNop())

	summary, err := p.Process(Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary["articles"])
	assert.Equal(t, 1, summary["changes"])

	var feed struct {
		Items []FeedItem `json:"items"`
	}
	raw, err := os.ReadFile(filepath.Join(root, Module, "feed.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &feed))
	require.Len(t, feed.Items, 1)
	// Title mentions 教育部: importance is at least 重要 per S6.
	assert.Equal(t, intel.ImportanceHigh, feed.Items[0].Importance)
	assert.Equal(t, 1, feed.Items[0].ChangeCount)

	var changes struct {
		Items []Change `json:"items"`
	}
	raw, err = os.ReadFile(filepath.Join(root, Module, "changes.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &changes))
	require.Len(t, changes.Items, 1)
	assert.Equal(t, "张三", changes.Items[0].Name)
	assert.Equal(t, "国务院", changes.Items[0].Organization)
}

type fakeOracle struct {
	response string
}

func (f *fakeOracle) CompleteJSON(context.Context, string, string) (json.RawMessage, error) {
	return json.RawMessage(f.response), nil
}

func TestEnrichWithOracle(t *testing.T) {
	reader := &fakeReader{byDim: map[string][]*storage.Artifact{
		"personnel": {personnelArtifact()},
	}}
	root := t.TempDir()
	p := New(reader, root, zap.NewNop())
	_, err := p.Process(Options{})
	require.NoError(t, err)

	o := &fakeOracle{response: `{"relevance":"高","importance":"重要","group":"政府","note":"教育口关键岗位变动","signals":["关注后续政策走向"]}`}
	summary, err := p.EnrichWithOracle(context.Background(), o, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, summary["enriched"])

	var enriched struct {
		Items []EnrichedChange `json:"items"`
	}
	raw, err := os.ReadFile(filepath.Join(root, Module, "enriched_feed.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &enriched))
	require.Len(t, enriched.Items, 1)
	assert.Equal(t, "张三", enriched.Items[0].Name)
	assert.Equal(t, "高", enriched.Items[0].Relevance)
	assert.Equal(t, "政府", enriched.Items[0].Group)
}
