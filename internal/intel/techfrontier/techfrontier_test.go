package techfrontier

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

func recentItem(hash, title, content string) crawler.Item {
	published := time.Now().UTC().AddDate(0, 0, -1)
	return crawler.Item{
		Title:       title,
		URL:         "https://example.com/" + hash,
		URLHash:     hash,
		Content:     content,
		PublishedAt: &published,
	}
}

func TestClassifyArticle(t *testing.T) {
	a := intel.Article{Item: recentItem("h1",
		"人形机器人运动规划新进展",
		"具身智能方向的 sim-to-real 研究。")}
	matches := ClassifyArticle(a)
	require.NotEmpty(t, matches)
	assert.Equal(t, "embodied_ai", matches[0].TopicID)
	assert.GreaterOrEqual(t, matches[0].MatchScore, TopicMatchThreshold)

	none := ClassifyArticle(intel.Article{Item: recentItem("h2", "本地天气预报", "明天多云。")})
	assert.Empty(t, none)
}

func TestDetectNewsType(t *testing.T) {
	funding := intel.Article{Item: recentItem("h1", "AI芯片公司完成B轮融资", "估值达到十亿美元。")}
	assert.Equal(t, "投融资", DetectNewsType(funding))

	defaultType := intel.Article{Item: recentItem("h2", "没有类型信号的标题", "")}
	assert.Equal(t, "新产品", DetectNewsType(defaultType))
}

func TestAssessImpact(t *testing.T) {
	assert.Equal(t, "重大", AssessImpact(60))
	assert.Equal(t, "较大", AssessImpact(35))
	assert.Equal(t, "一般", AssessImpact(10))
}

func TestHeatTrend(t *testing.T) {
	trend, label := HeatTrend(5, 0)
	assert.Equal(t, "surging", trend)
	assert.Equal(t, "+500%", label)

	trend, _ = HeatTrend(0, 0)
	assert.Equal(t, "stable", trend)

	trend, label = HeatTrend(15, 10)
	assert.Equal(t, "rising", trend)
	assert.Equal(t, "+50%", label)

	trend, _ = HeatTrend(10, 10)
	assert.Equal(t, "stable", trend)

	trend, label = HeatTrend(2, 10)
	assert.Equal(t, "declining", trend)
	assert.Equal(t, "-80%", label)
}

func TestSplitByPeriod(t *testing.T) {
	now := time.Now().UTC()
	recent := now.AddDate(0, 0, -2)
	older := now.AddDate(0, 0, -10)
	ancient := now.AddDate(0, 0, -30)

	articles := []intel.Article{
		{Item: crawler.Item{URLHash: "a", PublishedAt: &recent}},
		{Item: crawler.Item{URLHash: "b", PublishedAt: &older}},
		{Item: crawler.Item{URLHash: "c", PublishedAt: &ancient}},
	}
	current, previous := SplitByPeriod(articles, 7)
	require.Len(t, current, 1)
	require.Len(t, previous, 1)
	assert.Equal(t, "a", current[0].URLHash)
	assert.Equal(t, "b", previous[0].URLHash)
}

func TestDetectOpportunity(t *testing.T) {
	conference := intel.Article{Item: recentItem("h-conf",
		"世界人工智能峰会邀请函", "诚挚邀请贵单位参加本届大会论坛。")}
	opp := DetectOpportunity(conference)
	require.NotNil(t, opp)
	assert.Equal(t, "会议", opp.Type)

	plain := intel.Article{Item: recentItem("h-plain", "一则普通新闻", "没有任何机会信号。")}
	assert.Nil(t, DetectOpportunity(plain))
}

func TestProcessWritesAllOutputs(t *testing.T) {
	tech := &storage.Artifact{
		SourceID: "tech_blog", SourceName: "Tech Blog", Dimension: "technology",
		Items: []crawler.Item{
			recentItem("h1", "多模态大模型发布", "视频生成能力显著提升，文生视频效果领先。"),
			recentItem("h2", "大语言模型预训练新方法", "Scaling Law 研究与 RLHF 微调。"),
		},
	}
	kol := &storage.Artifact{
		SourceID: "twitter_ai_kol_international", SourceName: "AI KOL", Dimension: "twitter",
		Items: []crawler.Item{
			recentItem("h3", "Impressive multimodal video generation results", "vision-language breakthrough"),
		},
	}
	reader := &fakeReader{byDim: map[string][]*storage.Artifact{
		"technology": {tech},
		"twitter":    {kol},
	}}
	root := t.TempDir()
	p := New(reader, root, zap.NewNop())

	summary, err := p.Process(Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, summary["articles"])
	assert.GreaterOrEqual(t, summary["classified"].(int), 2)

	var topicsDoc struct {
		ItemCount int     `json:"item_count"`
		Items     []Topic `json:"items"`
	}
	raw, err := os.ReadFile(filepath.Join(root, Module, "topics.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &topicsDoc))
	require.Len(t, topicsDoc.Items, 8, "all 8 topics are always present")

	var multimodal *Topic
	for i := range topicsDoc.Items {
		if topicsDoc.Items[i].ID == "multimodal" {
			multimodal = &topicsDoc.Items[i]
		}
	}
	require.NotNil(t, multimodal)
	assert.NotEmpty(t, multimodal.News, "classified news lands under its topic")
	assert.NotEmpty(t, multimodal.KOLVoices, "KOL sources feed kolVoices, not news")
	assert.Equal(t, "surging", multimodal.HeatTrend)

	for _, path := range []string{"opportunities.json", "stats.json"} {
		_, statErr := os.Stat(filepath.Join(root, Module, path))
		assert.NoError(t, statErr)
	}
}
