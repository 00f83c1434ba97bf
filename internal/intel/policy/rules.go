// Package policy implements the policy-intelligence processor: rule-based
// scoring and opportunity extraction over policy dimensions, with optional
// oracle enrichment for top-scoring articles.
package policy

import (
	"strings"

	"github.com/Ryder-MHumble/deanagent/internal/intel"
)

// Tier A: highly specific to the institute's mandate.
var keywordsTierA = []intel.Keyword{
	{Word: "人工智能研究院", Weight: 30},
	{Word: "新型研发机构", Weight: 25},
	{Word: "具身智能", Weight: 25},
	{Word: "大模型", Weight: 20},
	{Word: "人工智能", Weight: 20},
	{Word: "智能计算", Weight: 20},
	{Word: "算力", Weight: 18},
	{Word: "中关村", Weight: 18},
	{Word: "AI", Weight: 15},
	{Word: "海淀", Weight: 12},
}

// Tier B: directly related fields.
var keywordsTierB = []intel.Keyword{
	{Word: "科技成果转化", Weight: 12},
	{Word: "科技人才", Weight: 12},
	{Word: "机器人", Weight: 12},
	{Word: "卓越工程师", Weight: 10},
	{Word: "自然科学基金", Weight: 10},
	{Word: "数字经济", Weight: 10},
	{Word: "数据要素", Weight: 10},
	{Word: "智能制造", Weight: 10},
	{Word: "科研经费", Weight: 10},
	{Word: "人才引进", Weight: 10},
	{Word: "基础研究", Weight: 10},
	{Word: "科技", Weight: 8},
	{Word: "创新", Weight: 8},
	{Word: "人才", Weight: 8},
	{Word: "高新技术", Weight: 8},
}

// Tier C: indirectly related.
var keywordsTierC = []intel.Keyword{
	{Word: "专项资金", Weight: 8},
	{Word: "教育", Weight: 5},
	{Word: "高校", Weight: 5},
	{Word: "科学", Weight: 5},
	{Word: "数字", Weight: 5},
	{Word: "信息化", Weight: 5},
	{Word: "知识产权", Weight: 5},
	{Word: "补贴", Weight: 5},
	{Word: "申报", Weight: 5},
}

var allKeywords = func() []intel.Keyword {
	all := make([]intel.Keyword, 0, len(keywordsTierA)+len(keywordsTierB)+len(keywordsTierC))
	all = append(all, keywordsTierA...)
	all = append(all, keywordsTierB...)
	all = append(all, keywordsTierC...)
	return all
}()

// sourceScoreBonus boosts inherently relevant publishers.
var sourceScoreBonus = map[string]int{
	"bjkw_policy":  15,
	"zgc_policy":   15,
	"ncsti_policy": 10,
	"most_policy":  10,
	"ndrc_policy":  5,
	"nsfc_news":    8,
}

// opportunityTitleKeywords flag fundable policy calls in titles.
var opportunityTitleKeywords = []string{
	"征集", "申报", "通知", "补贴", "资助", "专项",
	"课题", "评审", "遴选", "招标", "入围",
}

// agencyMap names the publishing agency per source.
var agencyMap = map[string]string{
	"gov_cn_zhengce":  "国务院",
	"ndrc_policy":     "国家发改委",
	"moe_policy":      "教育部",
	"most_policy":     "科技部",
	"miit_policy":     "工信部",
	"nsfc_news":       "国家自然科学基金委",
	"beijing_zhengce": "北京市政府",
	"bjkw_policy":     "北京市科委/中关村管委会",
	"bjjw_policy":     "北京市教委",
	"bjrsj_policy":    "北京市人社局",
	"zgc_policy":      "中关村管委会",
	"ncsti_policy":    "国际科创中心",
	"bjfgw_policy":    "北京市发改委",
	"bjhd_policy":     "海淀区政府",
	"beijing_ywdt":    "首都之窗",
	"bjrd_renshi":     "北京市人大常委会",
	"mohrss_rsrm":     "人社部",
	"moe_renshi":      "教育部",
}

const contentScoreLimit = 3000

// MatchScore computes the keyword-based relevance score for an article.
func MatchScore(a intel.Article) int {
	score := intel.KeywordScore(a.Text(contentScoreLimit), allKeywords)
	score += sourceScoreBonus[a.SourceID]
	return intel.ClampScore(score)
}

// IsOpportunity reports whether the article looks like a fundable policy
// call: an opportunity keyword in the title plus a funding amount or a
// deadline in the body.
func IsOpportunity(a intel.Article) bool {
	hasKeyword := false
	for _, kw := range opportunityTitleKeywords {
		if strings.Contains(a.Title, kw) {
			hasKeyword = true
			break
		}
	}
	if !hasKeyword {
		return false
	}
	text := a.Text(0)
	return intel.ExtractFunding(text) != "" || intel.ExtractDeadline(text) != ""
}

// Tags derives up to six keyword tags from high-weight matches.
func Tags(a intel.Article) []string {
	text := strings.ToLower(a.Text(2000))
	var tags []string
	for _, kw := range append(append([]intel.Keyword{}, keywordsTierA...), keywordsTierB...) {
		if kw.Weight < 10 {
			continue
		}
		if strings.Contains(text, strings.ToLower(kw.Word)) {
			tags = append(tags, kw.Word)
			if len(tags) == 6 {
				break
			}
		}
	}
	return tags
}

// Agency resolves the publishing agency display name.
func Agency(a intel.Article) string {
	if name, ok := agencyMap[a.SourceID]; ok {
		return name
	}
	if a.SourceName != "" {
		return a.SourceName
	}
	return "未知"
}

// EnrichByRules runs the full Tier-1 enrichment for one article.
func EnrichByRules(a intel.Article) Enrichment {
	text := a.Text(0)
	matchScore := MatchScore(a)
	deadline := intel.ExtractDeadline(text)

	summary := a.Title
	if runes := []rune(summary); len(runes) > 80 {
		summary = string(runes[:80])
	}
	if summary == "" {
		summary = "无摘要"
	}

	return Enrichment{
		Summary:       summary,
		Importance:    intel.ComputeImportance(matchScore, deadline, a.Title, nil),
		MatchScore:    matchScore,
		Relevance:     matchScore,
		IsOpportunity: IsOpportunity(a),
		Funding:       intel.ExtractFunding(text),
		Deadline:      deadline,
		DaysLeft:      intel.DaysLeft(deadline),
		Agency:        Agency(a),
		Leader:        intel.ExtractLeader(text),
		Tags:          Tags(a),
		Tier:          TierRules,
	}
}
