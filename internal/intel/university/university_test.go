package university

import (
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
	artifacts []*storage.Artifact
}

func (f *fakeReader) ReadDimensionArtifacts(string) ([]*storage.Artifact, error) {
	return f.artifacts, nil
}

func (f *fakeReader) ReadAllArtifacts() ([]*storage.Artifact, error) {
	return f.artifacts, nil
}

func articleOf(title, content, sourceName string) intel.Article {
	published := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	return intel.Article{
		Item: crawler.Item{
			Title:       title,
			URLHash:     "h-" + title,
			Content:     content,
			PublishedAt: &published,
		},
		SourceName: sourceName,
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		title, content, want string
	}{
		{"我校论文被NeurIPS录用", "课题组研究成果发表于顶会。", CategoryResearch},
		{"学校任命新院长", "经研究决定聘任张某为计算机学院院长。", CategoryPersonnel},
		{"人工智能前沿论坛举办", "研讨会邀请多位学者作报告。", CategoryEvents},
		{"校园秋季风景", "银杏叶黄了。", CategoryGeneral},
	}
	for _, tc := range cases {
		a := articleOf(tc.title, tc.content, "清华大学新闻网")
		assert.Equal(t, tc.want, Classify(a), "title %q", tc.title)
	}
}

func TestResearchTypeAndInfluence(t *testing.T) {
	paper := articleOf("团队在Nature发表论文", "一作为博士生。", "清华大学")
	assert.Equal(t, ResearchPaper, ResearchType(paper))
	assert.Equal(t, "高", Influence(paper))

	patent := articleOf("发明专利获授权并实现成果转化", "知识产权产业化。", "浙大新闻")
	assert.Equal(t, ResearchPatent, ResearchType(patent))

	award := articleOf("学生团队荣获挑战赛特等奖", "表彰大会举行。", "北航新闻")
	assert.Equal(t, ResearchAward, ResearchType(award))
}

func TestInstitution(t *testing.T) {
	assert.Equal(t, "清华大学", Institution(articleOf("新闻", "", "清华大学新闻网")))
	assert.Equal(t, "哈尔滨工业大学", Institution(articleOf("哈工大新进展", "", "校园网")))
	assert.Equal(t, "示例大学", Institution(articleOf("示例大学动态", "", "某新闻源")))
}

func TestProcessWritesOutputs(t *testing.T) {
	artifact := &storage.Artifact{
		SourceID: "tsinghua_news", SourceName: "清华大学新闻网", Dimension: "universities",
		Items: []crawler.Item{
			articleOf("我校论文被NeurIPS录用", "课题组研究成果发表于顶会。", "").Item,
			articleOf("学校任命新院长", "经研究决定聘任张某为计算机学院院长。", "").Item,
		},
	}
	reader := &fakeReader{artifacts: []*storage.Artifact{artifact}}
	root := t.TempDir()
	p := New(reader, root, zap.NewNop())

	summary, err := p.Process(Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary["articles"])
	assert.Equal(t, 1, summary["research_outputs"])

	var feed struct {
		Items []FeedItem `json:"items"`
	}
	raw, err := os.ReadFile(filepath.Join(root, Module, "feed.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &feed))
	require.Len(t, feed.Items, 2)

	var research struct {
		Items []FeedItem `json:"items"`
	}
	raw, err = os.ReadFile(filepath.Join(root, Module, "research_outputs.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &research))
	require.Len(t, research.Items, 1)
	assert.Equal(t, CategoryResearch, research.Items[0].Category)
	assert.NotEmpty(t, research.Items[0].ResearchType)

	var overview struct {
		CategoryCounts map[string]int `json:"category_counts"`
	}
	raw, err = os.ReadFile(filepath.Join(root, Module, "overview.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &overview))
	assert.Equal(t, 1, overview.CategoryCounts[CategoryResearch])
	assert.Equal(t, 1, overview.CategoryCounts[CategoryPersonnel])
}
