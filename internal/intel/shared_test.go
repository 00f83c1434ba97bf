package intel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordScore(t *testing.T) {
	keywords := []Keyword{
		{Word: "人工智能", Weight: 20},
		{Word: "AI", Weight: 15},
		{Word: "算力", Weight: 18},
	}
	assert.Equal(t, 35, KeywordScore("发展人工智能与ai芯片", keywords), "matching is case-insensitive")
	assert.Equal(t, 0, KeywordScore("普通新闻", keywords))
	assert.Equal(t, 53, KeywordScore("人工智能 AI 算力", keywords))
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 100, ClampScore(140))
	assert.Equal(t, 0, ClampScore(-5))
	assert.Equal(t, 55, ClampScore(55))
}

func TestExtractFunding(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"资助上限 500 万元，请申报", "500万元"},
		{"支持额度为3000万", "3000万元"},
		{"总规模 2.5 亿元", "2.5亿元"},
		{"没有金额", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ExtractFunding(tc.in), "input %q", tc.in)
	}
}

func TestExtractDeadline(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"申报截止日期为2026年6月30日", "2026-06-30"},
		{"请于2026年9月1日前提交", "2026-09-01"},
		{"截止时间：2026-12-15", "2026-12-15"},
		{"申报截止 2026-06-30", "2026-06-30"},
		{"长期有效", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ExtractDeadline(tc.in), "input %q", tc.in)
	}
}

func TestExtractLeader(t *testing.T) {
	assert.Equal(t, "张三", ExtractLeader("教育部副部长张三出席会议"))
	assert.Equal(t, "李四", ExtractLeader("副市长李四调研中关村"))
	assert.Empty(t, ExtractLeader("没有领导出现"))
}

func TestDaysLeft(t *testing.T) {
	assert.Nil(t, DaysLeft(""))
	assert.Nil(t, DaysLeft("not-a-date"))

	past := DaysLeft("2020-01-01")
	require.NotNil(t, past)
	assert.Equal(t, 0, *past, "past deadlines clamp to zero")

	future := DaysLeft("2099-01-01")
	require.NotNil(t, future)
	assert.Greater(t, *future, 1000)
}

func TestComputeImportance(t *testing.T) {
	assert.Equal(t, ImportanceHigh, ComputeImportance(80, "", "普通标题", nil))
	assert.Equal(t, ImportanceHigh, ComputeImportance(10, "", "人工智能专项", nil))
	assert.Equal(t, ImportanceWatch, ComputeImportance(50, "", "普通标题", nil))
	assert.Equal(t, ImportanceLow, ComputeImportance(10, "", "普通标题", nil))
	assert.Equal(t, ImportanceHigh, ComputeImportance(10, "", "校长任命", []string{"校长"}))
}

func TestHashTrackerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	tracker := NewHashTracker(dir)

	assert.True(t, tracker.NeedsProcessing("h1", "c1"))
	tracker.MarkProcessed("h1", "c1")
	assert.False(t, tracker.NeedsProcessing("h1", "c1"))
	assert.True(t, tracker.NeedsProcessing("h1", "c2"), "changed content needs reprocessing")
	require.NoError(t, tracker.Save())

	reloaded := NewHashTracker(dir)
	assert.False(t, reloaded.NeedsProcessing("h1", "c1"))
	assert.Equal(t, 1, reloaded.Len())
}
