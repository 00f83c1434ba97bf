// Package techfrontier implements the tech-frontier processor: binning raw
// technology/industry/social items into fixed research topics, computing
// per-topic heat from week-over-week volume, and surfacing signals,
// opportunities, and KOL voices.
package techfrontier

import (
	"fmt"
	"strings"
	"time"

	"github.com/Ryder-MHumble/deanagent/internal/intel"
)

// TopicMatchThreshold is the minimum keyword score to bin an article into
// a topic.
const TopicMatchThreshold = 15

// OpportunityThreshold is the minimum score to flag an opportunity.
const OpportunityThreshold = 20

// TopicConfig is one fixed research topic.
type TopicConfig struct {
	ID          string
	Topic       string
	Description string
	Tags        []string
	OurStatus   string
	GapLevel    string
	Keywords    []intel.Keyword
}

// Topics is the fixed 8-topic taxonomy.
var Topics = []TopicConfig{
	{
		ID: "embodied_ai", Topic: "具身智能",
		Description: "将AI与物理世界交互的关键技术方向，涵盖机器人控制、运动规划、导航等",
		Tags:        []string{"机器人", "运动控制", "仿真", "感知"},
		OurStatus:   "none", GapLevel: "high",
		Keywords: []intel.Keyword{
			{Word: "具身智能", Weight: 20}, {Word: "embodied intelligence", Weight: 18},
			{Word: "embodied ai", Weight: 18}, {Word: "humanoid robot", Weight: 15},
			{Word: "人形机器人", Weight: 15}, {Word: "机器人控制", Weight: 12},
			{Word: "运动规划", Weight: 10}, {Word: "motion planning", Weight: 10},
			{Word: "robotics", Weight: 8}, {Word: "manipulation", Weight: 8},
			{Word: "locomotion", Weight: 8}, {Word: "sim-to-real", Weight: 10},
			{Word: "触觉感知", Weight: 8},
		},
	},
	{
		ID: "multimodal", Topic: "多模态大模型",
		Description: "整合视觉、语音、文本等多种模态的大模型技术",
		Tags:        []string{"大模型", "视觉", "视频生成", "长上下文"},
		OurStatus:   "deployed", GapLevel: "low",
		Keywords: []intel.Keyword{
			{Word: "多模态", Weight: 18}, {Word: "multimodal", Weight: 18},
			{Word: "视觉语言", Weight: 15}, {Word: "vision-language", Weight: 15},
			{Word: "视频生成", Weight: 15}, {Word: "video generation", Weight: 15},
			{Word: "图像生成", Weight: 12}, {Word: "image generation", Weight: 12},
			{Word: "文生图", Weight: 12}, {Word: "文生视频", Weight: 12},
			{Word: "text-to-image", Weight: 10}, {Word: "text-to-video", Weight: 10},
			{Word: "长上下文", Weight: 8}, {Word: "long context", Weight: 8},
		},
	},
	{
		ID: "ai_agent", Topic: "AI Agent",
		Description: "自主完成复杂任务的智能代理系统，涵盖工具调用、多Agent协作、自主编程等",
		Tags:        []string{"AI编程", "Agent框架", "工具调用", "自主任务"},
		OurStatus:   "weak", GapLevel: "medium",
		Keywords: []intel.Keyword{
			{Word: "AI Agent", Weight: 20}, {Word: "智能体", Weight: 15},
			{Word: "agent", Weight: 10}, {Word: "tool use", Weight: 12},
			{Word: "工具调用", Weight: 12}, {Word: "function calling", Weight: 10},
			{Word: "多Agent", Weight: 15}, {Word: "multi-agent", Weight: 15},
			{Word: "自主编程", Weight: 12}, {Word: "agentic", Weight: 12},
			{Word: "任务规划", Weight: 8}, {Word: "思维链", Weight: 8},
			{Word: "chain of thought", Weight: 8},
		},
	},
	{
		ID: "ai_for_science", Topic: "AI for Science",
		Description: "利用AI加速科学发现的新范式，涵盖药物发现、蛋白质结构预测、分子模拟等",
		Tags:        []string{"科学计算", "药物发现", "蛋白质", "开源模型"},
		OurStatus:   "deployed", GapLevel: "low",
		Keywords: []intel.Keyword{
			{Word: "AI for Science", Weight: 20}, {Word: "ai4science", Weight: 18},
			{Word: "科学计算", Weight: 15}, {Word: "药物发现", Weight: 15},
			{Word: "drug discovery", Weight: 15}, {Word: "蛋白质", Weight: 12},
			{Word: "protein", Weight: 10}, {Word: "AlphaFold", Weight: 15},
			{Word: "分子模拟", Weight: 12}, {Word: "molecular dynamics", Weight: 12},
			{Word: "材料设计", Weight: 10}, {Word: "基因组", Weight: 8},
		},
	},
	{
		ID: "edge_ai", Topic: "端侧AI推理",
		Description: "将AI推理从云端迁移到边缘设备，涉及模型压缩、专用芯片、高效推理等技术",
		Tags:        []string{"边缘计算", "模型压缩", "AI芯片", "推理优化"},
		OurStatus:   "none", GapLevel: "high",
		Keywords: []intel.Keyword{
			{Word: "端侧", Weight: 18}, {Word: "edge ai", Weight: 18},
			{Word: "on-device", Weight: 15}, {Word: "模型压缩", Weight: 15},
			{Word: "model compression", Weight: 15}, {Word: "量化", Weight: 12},
			{Word: "quantization", Weight: 12}, {Word: "知识蒸馏", Weight: 12},
			{Word: "distillation", Weight: 10}, {Word: "NPU", Weight: 12},
			{Word: "AI芯片", Weight: 15}, {Word: "ai chip", Weight: 15},
			{Word: "推理优化", Weight: 12}, {Word: "剪枝", Weight: 8},
		},
	},
	{
		ID: "llm_foundation", Topic: "大语言模型",
		Description: "基础语言模型的预训练、微调、推理等核心技术",
		Tags:        []string{"预训练", "微调", "Scaling Law", "架构创新"},
		OurStatus:   "deployed", GapLevel: "medium",
		Keywords: []intel.Keyword{
			{Word: "大语言模型", Weight: 15}, {Word: "大模型", Weight: 10},
			{Word: "LLM", Weight: 15}, {Word: "预训练", Weight: 12},
			{Word: "pre-training", Weight: 12}, {Word: "Scaling Law", Weight: 15},
			{Word: "微调", Weight: 10}, {Word: "fine-tuning", Weight: 10},
			{Word: "RLHF", Weight: 12}, {Word: "instruction tuning", Weight: 10},
			{Word: "指令微调", Weight: 10}, {Word: "Transformer", Weight: 8},
			{Word: "foundation model", Weight: 12}, {Word: "基础模型", Weight: 12},
			{Word: "开源模型", Weight: 8},
		},
	},
	{
		ID: "ai_safety", Topic: "AI安全与治理",
		Description: "AI系统的安全性、可控性与社会治理，涵盖对齐、可解释性、监管政策等",
		Tags:        []string{"对齐", "可解释性", "监管", "红队测试"},
		OurStatus:   "weak", GapLevel: "medium",
		Keywords: []intel.Keyword{
			{Word: "AI安全", Weight: 20}, {Word: "AI safety", Weight: 20},
			{Word: "alignment", Weight: 15}, {Word: "对齐", Weight: 15},
			{Word: "治理", Weight: 12}, {Word: "governance", Weight: 12},
			{Word: "监管", Weight: 10}, {Word: "可解释性", Weight: 12},
			{Word: "explainability", Weight: 12}, {Word: "红队", Weight: 12},
			{Word: "red team", Weight: 12}, {Word: "幻觉", Weight: 10},
			{Word: "hallucination", Weight: 10}, {Word: "负责任AI", Weight: 10},
		},
	},
	{
		ID: "genai_apps", Topic: "生成式AI应用",
		Description: "基于生成式AI的应用落地，包括内容生成、AI编程、设计工具、教育等场景",
		Tags:        []string{"AIGC", "AI编程", "内容创作", "应用落地"},
		OurStatus:   "weak", GapLevel: "medium",
		Keywords: []intel.Keyword{
			{Word: "生成式AI", Weight: 18}, {Word: "generative AI", Weight: 18},
			{Word: "AIGC", Weight: 15}, {Word: "AI绘画", Weight: 12},
			{Word: "AI编程", Weight: 12}, {Word: "AI coding", Weight: 12},
			{Word: "内容生成", Weight: 10}, {Word: "content generation", Weight: 10},
			{Word: "AI助手", Weight: 10}, {Word: "AI assistant", Weight: 10},
			{Word: "AI教育", Weight: 10}, {Word: "AI写作", Weight: 10},
			{Word: "AI应用", Weight: 8}, {Word: "商业化", Weight: 6},
		},
	},
}

// TopicMatch records one topic assignment for an article.
type TopicMatch struct {
	TopicID    string
	MatchScore int
}

// ClassifyArticle bins an article into every topic whose keyword score
// clears the threshold.
func ClassifyArticle(a intel.Article) []TopicMatch {
	text := a.Title + " " + a.Content
	var matches []TopicMatch
	for _, topic := range Topics {
		score := intel.KeywordScore(text, topic.Keywords)
		if score >= TopicMatchThreshold {
			matches = append(matches, TopicMatch{TopicID: topic.ID, MatchScore: score})
		}
	}
	return matches
}

var newsTypeKeywords = []struct {
	name     string
	keywords []intel.Keyword
}{
	{"投融资", []intel.Keyword{
		{Word: "融资", Weight: 15}, {Word: "估值", Weight: 12}, {Word: "投资", Weight: 10},
		{Word: "A轮", Weight: 12}, {Word: "B轮", Weight: 12}, {Word: "IPO", Weight: 12},
		{Word: "funding", Weight: 12}, {Word: "valuation", Weight: 10},
	}},
	{"收购", []intel.Keyword{
		{Word: "收购", Weight: 20}, {Word: "并购", Weight: 18}, {Word: "合并", Weight: 15},
		{Word: "acquisition", Weight: 18}, {Word: "acquire", Weight: 15}, {Word: "merger", Weight: 12},
	}},
	{"政策", []intel.Keyword{
		{Word: "政策", Weight: 15}, {Word: "意见", Weight: 10}, {Word: "通知", Weight: 8},
		{Word: "规划", Weight: 10}, {Word: "监管", Weight: 12}, {Word: "法规", Weight: 10},
		{Word: "国务院", Weight: 12}, {Word: "工信部", Weight: 10},
	}},
	{"合作", []intel.Keyword{
		{Word: "合作", Weight: 12}, {Word: "联合", Weight: 10}, {Word: "共建", Weight: 12},
		{Word: "战略合作", Weight: 15}, {Word: "签约", Weight: 10},
		{Word: "联合实验室", Weight: 15}, {Word: "产学研", Weight: 12},
	}},
	{"新产品", []intel.Keyword{
		{Word: "发布", Weight: 10}, {Word: "推出", Weight: 10}, {Word: "发布会", Weight: 12},
		{Word: "上线", Weight: 8}, {Word: "开源", Weight: 10}, {Word: "launch", Weight: 10},
		{Word: "release", Weight: 10}, {Word: "open source", Weight: 10},
	}},
}

// DetectNewsType picks the best-scoring news category; 新产品 by default.
func DetectNewsType(a intel.Article) string {
	text := a.Title + " " + truncateRunes(a.Content, 500)
	best, bestScore := "新产品", 0
	for _, entry := range newsTypeKeywords {
		if score := intel.KeywordScore(text, entry.keywords); score > bestScore {
			best, bestScore = entry.name, score
		}
	}
	return best
}

// AssessImpact bands a topic match score into an impact label.
func AssessImpact(matchScore int) string {
	switch {
	case matchScore >= 60:
		return "重大"
	case matchScore >= 30:
		return "较大"
	default:
		return "一般"
	}
}

var opportunityTypeKeywords = []struct {
	name     string
	keywords []intel.Keyword
}{
	{"会议", []intel.Keyword{
		{Word: "峰会", Weight: 15}, {Word: "会议", Weight: 12}, {Word: "论坛", Weight: 12},
		{Word: "大会", Weight: 12}, {Word: "邀请", Weight: 12}, {Word: "conference", Weight: 12},
		{Word: "summit", Weight: 12}, {Word: "workshop", Weight: 10},
	}},
	{"合作", []intel.Keyword{
		{Word: "联合实验室", Weight: 18}, {Word: "产学研", Weight: 15}, {Word: "专项", Weight: 15},
		{Word: "申报", Weight: 12}, {Word: "基金", Weight: 12}, {Word: "资助", Weight: 12},
		{Word: "招标", Weight: 12}, {Word: "合作", Weight: 10}, {Word: "共建", Weight: 12},
	}},
	{"内参", []intel.Keyword{
		{Word: "内参", Weight: 18}, {Word: "征稿", Weight: 12}, {Word: "政策解读", Weight: 12},
		{Word: "白皮书", Weight: 12}, {Word: "报告", Weight: 8}, {Word: "指南", Weight: 8},
	}},
}

// Opportunity is one actionable signal surfaced from the stream.
type Opportunity struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Source    string `json:"source"`
	Priority  string `json:"priority"`
	Deadline  string `json:"deadline"`
	Summary   string `json:"summary"`
	SourceURL string `json:"sourceUrl"`
}

// DetectOpportunity flags conference/collaboration/briefing opportunities.
func DetectOpportunity(a intel.Article) *Opportunity {
	text := a.Title + " " + truncateRunes(a.Content, 800)
	bestType, bestScore := "", 0
	for _, entry := range opportunityTypeKeywords {
		if score := intel.KeywordScore(text, entry.keywords); score > bestScore {
			bestType, bestScore = entry.name, score
		}
	}
	if bestScore < OpportunityThreshold {
		return nil
	}

	deadline := intel.ExtractDeadline(text)
	summarySource := a.Content
	if summarySource == "" {
		summarySource = a.Title
	}
	sourceName := a.SourceName
	if sourceName == "" {
		sourceName = a.SourceID
	}
	return &Opportunity{
		ID:        "opp_" + truncateRunes(a.URLHash, 16),
		Name:      truncateRunes(a.Title, 60),
		Type:      bestType,
		Source:    sourceName,
		Priority:  opportunityPriority(bestScore, deadline),
		Deadline:  deadline,
		Summary:   truncateRunes(summarySource, 300),
		SourceURL: a.URL,
	}
}

func opportunityPriority(score int, deadline string) string {
	days := intel.DaysLeft(deadline)
	if days != nil && *days > 0 && *days <= 7 {
		return "紧急"
	}
	if score >= 40 || (days != nil && *days > 0 && *days <= 14) {
		return "高"
	}
	if score >= 25 {
		return "中"
	}
	return "低"
}

var platformMap = map[string]string{
	"arxiv_cs_ai":     "ArXiv",
	"arxiv_cs_lg":     "ArXiv",
	"arxiv_cs_cl":     "ArXiv",
	"github_trending": "GitHub",
	"hacker_news":     "GitHub",
}

var kolSourceIDs = map[string]struct{}{
	"twitter_ai_kol_international": {},
	"twitter_ai_kol_chinese":       {},
}

// MapPlatform resolves a display platform for a source.
func MapPlatform(sourceID string) string {
	if platform, ok := platformMap[sourceID]; ok {
		return platform
	}
	if strings.HasPrefix(sourceID, "twitter_") {
		return "X"
	}
	return "博客"
}

// IsKOLSource reports whether a source carries KOL voices.
func IsKOLSource(sourceID string) bool {
	_, ok := kolSourceIDs[sourceID]
	return ok
}

// HeatTrend computes the week-over-week trend and label for a topic.
func HeatTrend(currentCount, previousCount int) (trend, label string) {
	if previousCount == 0 {
		if currentCount > 0 {
			return "surging", fmt.Sprintf("+%d%%", currentCount*100)
		}
		return "stable", "+0%"
	}
	pct := float64(currentCount-previousCount) / float64(previousCount) * 100
	switch {
	case pct > 100:
		trend = "surging"
	case pct > 20:
		trend = "rising"
	case pct >= -20:
		trend = "stable"
	default:
		trend = "declining"
	}
	sign := ""
	if pct >= 0 {
		sign = "+"
	}
	return trend, fmt.Sprintf("%s%d%%", sign, int(pct))
}

// SplitByPeriod partitions articles into the last N days and the N days
// before that.
func SplitByPeriod(articles []intel.Article, days int) (current, previous []intel.Article) {
	now := time.Now().UTC()
	cutoffCurrent := now.AddDate(0, 0, -days)
	cutoffPrevious := now.AddDate(0, 0, -2*days)
	for _, a := range articles {
		ts := a.Timestamp()
		switch {
		case !ts.Before(cutoffCurrent):
			current = append(current, a)
		case !ts.Before(cutoffPrevious):
			previous = append(previous, a)
		}
	}
	return current, previous
}

// aiInstituteSources limits the universities dimension to AI research
// institutes for topic binning.
var aiInstituteSources = map[string]struct{}{
	"baai_news": {}, "tsinghua_air": {}, "shlab_news": {}, "pcl_news": {},
	"ia_cas_news": {}, "ict_cas_news": {}, "sii_news": {}, "slai_news": {},
	"cesi_news": {}, "iie_cas_news": {},
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
