// Package university implements the university-ecosystem processor:
// keyword classification of campus news into personnel, research outputs,
// events, and general updates, with influence banding on research items.
package university

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Ryder-MHumble/deanagent/internal/intel"
)

// Module is the processed-feed directory name for this processor.
const Module = "university_eco"

// Categories for campus news.
const (
	CategoryPersonnel = "personnel"
	CategoryResearch  = "research_outputs"
	CategoryEvents    = "events"
	CategoryGeneral   = "general"
)

// Research output types.
const (
	ResearchPaper  = "论文"
	ResearchPatent = "专利"
	ResearchAward  = "获奖"
)

var keywordsPersonnel = []intel.Keyword{
	{Word: "任命", Weight: 30}, {Word: "履新", Weight: 25}, {Word: "上任", Weight: 20},
	{Word: "当选", Weight: 20}, {Word: "卸任", Weight: 25}, {Word: "免去", Weight: 25},
	{Word: "校长", Weight: 15}, {Word: "院长", Weight: 12}, {Word: "书记", Weight: 12},
	{Word: "人事", Weight: 15}, {Word: "聘任", Weight: 20},
}

var keywordsPaper = []intel.Keyword{
	{Word: "论文", Weight: 30}, {Word: "paper", Weight: 25}, {Word: "发表", Weight: 20},
	{Word: "录用", Weight: 25}, {Word: "期刊", Weight: 20}, {Word: "journal", Weight: 20},
	{Word: "science", Weight: 30}, {Word: "nature", Weight: 30}, {Word: "cell", Weight: 20},
	{Word: "cvpr", Weight: 20}, {Word: "neurips", Weight: 20}, {Word: "aaai", Weight: 20},
	{Word: "iclr", Weight: 20}, {Word: "icml", Weight: 20}, {Word: "acl", Weight: 15},
	{Word: "arxiv", Weight: 15}, {Word: "研究成果", Weight: 20}, {Word: "学术", Weight: 15},
	{Word: "顶会", Weight: 20}, {Word: "顶刊", Weight: 20}, {Word: "一作", Weight: 15},
	{Word: "通讯作者", Weight: 15},
}

var keywordsPatent = []intel.Keyword{
	{Word: "专利", Weight: 40}, {Word: "patent", Weight: 35}, {Word: "发明", Weight: 25},
	{Word: "实用新型", Weight: 30}, {Word: "知识产权", Weight: 25}, {Word: "技术转让", Weight: 20},
	{Word: "成果转化", Weight: 20}, {Word: "产业化", Weight: 15},
}

var keywordsAward = []intel.Keyword{
	{Word: "获奖", Weight: 35}, {Word: "荣获", Weight: 35}, {Word: "奖项", Weight: 30},
	{Word: "一等奖", Weight: 30}, {Word: "二等奖", Weight: 25}, {Word: "特等奖", Weight: 35},
	{Word: "金奖", Weight: 30}, {Word: "表彰", Weight: 20}, {Word: "院士", Weight: 15},
	{Word: "国家奖", Weight: 30}, {Word: "自然科学奖", Weight: 30}, {Word: "科技进步奖", Weight: 30},
	{Word: "最佳论文", Weight: 25}, {Word: "best paper", Weight: 25},
	{Word: "长江学者", Weight: 20}, {Word: "杰青", Weight: 20}, {Word: "优青", Weight: 15},
	{Word: "挑战赛", Weight: 15},
}

var keywordsEvents = []intel.Keyword{
	{Word: "论坛", Weight: 25}, {Word: "讲座", Weight: 25}, {Word: "报告会", Weight: 25},
	{Word: "研讨会", Weight: 25}, {Word: "会议", Weight: 15}, {Word: "峰会", Weight: 20},
	{Word: "举办", Weight: 15}, {Word: "开幕", Weight: 15}, {Word: "召开", Weight: 12},
	{Word: "邀请", Weight: 10},
}

var keywordsHighInfluence = []intel.Keyword{
	{Word: "science", Weight: 40}, {Word: "nature", Weight: 40}, {Word: "cell", Weight: 35},
	{Word: "院士", Weight: 20}, {Word: "国家级", Weight: 30}, {Word: "国家奖", Weight: 30},
	{Word: "重大突破", Weight: 30}, {Word: "世界首次", Weight: 30}, {Word: "全球首个", Weight: 30},
	{Word: "特等奖", Weight: 30}, {Word: "一等奖", Weight: 25},
	{Word: "neurips", Weight: 20}, {Word: "icml", Weight: 20}, {Word: "cvpr", Weight: 20},
	{Word: "长江学者", Weight: 20}, {Word: "杰青", Weight: 20},
}

var keywordsMedInfluence = []intel.Keyword{
	{Word: "aaai", Weight: 15}, {Word: "iclr", Weight: 15}, {Word: "acl", Weight: 15},
	{Word: "ieee", Weight: 10}, {Word: "acm", Weight: 10},
	{Word: "省级", Weight: 10}, {Word: "教育部", Weight: 10}, {Word: "科技部", Weight: 10},
	{Word: "二等奖", Weight: 10}, {Word: "金奖", Weight: 10}, {Word: "优青", Weight: 10},
}

// institutionPatterns map name fragments to canonical institution names,
// checked in order.
var institutionPatterns = []struct{ fragment, name string }{
	{"清华", "清华大学"},
	{"北京大学", "北京大学"},
	{"北大", "北京大学"},
	{"复旦", "复旦大学"},
	{"上海交通", "上海交通大学"},
	{"浙江大学", "浙江大学"},
	{"浙大", "浙江大学"},
	{"中国科学技术大学", "中国科学技术大学"},
	{"中科大", "中国科学技术大学"},
	{"南京大学", "南京大学"},
	{"哈尔滨工业大学", "哈尔滨工业大学"},
	{"哈工大", "哈尔滨工业大学"},
	{"人民大学", "中国人民大学"},
	{"北航", "北京航空航天大学"},
	{"北京理工", "北京理工大学"},
}

var universityNameRe = regexp.MustCompile(`[\x{4e00}-\x{9fa5}]{2,10}(?:大学|学院|研究院)`)

const classifyThreshold = 20

// Classify assigns one category to a campus article.
func Classify(a intel.Article) string {
	text := a.Title + "\n" + truncateRunes(a.Content, 1000)
	scores := map[string]int{
		CategoryPersonnel: intel.KeywordScore(text, keywordsPersonnel),
		CategoryResearch:  researchScore(text),
		CategoryEvents:    intel.KeywordScore(text, keywordsEvents),
	}
	best, bestScore := CategoryGeneral, 0
	for _, category := range []string{CategoryPersonnel, CategoryResearch, CategoryEvents} {
		if scores[category] > bestScore {
			best, bestScore = category, scores[category]
		}
	}
	if bestScore < classifyThreshold {
		return CategoryGeneral
	}
	return best
}

func researchScore(text string) int {
	score := intel.KeywordScore(text, keywordsPaper)
	if s := intel.KeywordScore(text, keywordsPatent); s > score {
		score = s
	}
	if s := intel.KeywordScore(text, keywordsAward); s > score {
		score = s
	}
	return score
}

// ResearchType names the dominant research-output type for an article.
func ResearchType(a intel.Article) string {
	text := a.Title + "\n" + truncateRunes(a.Content, 1000)
	paper := intel.KeywordScore(text, keywordsPaper)
	patent := intel.KeywordScore(text, keywordsPatent)
	award := intel.KeywordScore(text, keywordsAward)
	switch {
	case award >= paper && award >= patent:
		return ResearchAward
	case patent >= paper:
		return ResearchPatent
	default:
		return ResearchPaper
	}
}

// Influence bands an article as 高 / 中 / 一般.
func Influence(a intel.Article) string {
	text := a.Title + "\n" + truncateRunes(a.Content, 1000)
	if intel.KeywordScore(text, keywordsHighInfluence) >= 30 {
		return "高"
	}
	if intel.KeywordScore(text, keywordsMedInfluence) >= 10 {
		return "中"
	}
	return "一般"
}

// Institution resolves a canonical institution name from the article or
// its source.
func Institution(a intel.Article) string {
	text := a.SourceName + " " + a.Title
	for _, entry := range institutionPatterns {
		if strings.Contains(text, entry.fragment) {
			return entry.name
		}
	}
	return universityNameRe.FindString(text)
}

// FeedItem is one classified entry in feed.json.
type FeedItem struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Category     string `json:"category"`
	Institution  string `json:"institution,omitempty"`
	ResearchType string `json:"research_type,omitempty"`
	Influence    string `json:"influence,omitempty"`
	Date         string `json:"date"`
	Source       string `json:"source"`
	SourceID     string `json:"source_id"`
	SourceURL    string `json:"sourceUrl"`
	Summary      string `json:"summary,omitempty"`
}

// Options controls a processor run.
type Options struct {
	DryRun bool
	Force  bool
}

// Processor is the university-ecosystem pipeline stage.
type Processor struct {
	store  intel.ArtifactReader
	outDir string
	logger *zap.Logger
}

// New builds a Processor writing under processedRoot/university_eco.
func New(store intel.ArtifactReader, processedRoot string, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		store:  store,
		outDir: filepath.Join(processedRoot, Module),
		logger: logger,
	}
}

// Process classifies every campus article and writes feed.json,
// overview.json, and research_outputs.json.
func (p *Processor) Process(opts Options) (map[string]any, error) {
	articles := intel.LoadArticles(p.store, "universities")

	var feed []FeedItem
	var research []FeedItem
	categoryCounts := map[string]int{}
	institutionCounts := map[string]int{}
	for _, a := range articles {
		category := Classify(a)
		categoryCounts[category]++
		institution := Institution(a)
		if institution != "" {
			institutionCounts[institution]++
		}

		item := FeedItem{
			ID:          a.URLHash,
			Title:       a.Title,
			Category:    category,
			Institution: institution,
			Date:        a.Date(),
			Source:      a.SourceName,
			SourceID:    a.SourceID,
			SourceURL:   a.URL,
			Summary:     truncateRunes(a.Content, 200),
		}
		if category == CategoryResearch {
			item.ResearchType = ResearchType(a)
			item.Influence = Influence(a)
			research = append(research, item)
		}
		feed = append(feed, item)
	}

	sort.Slice(feed, func(i, j int) bool { return feed[i].Date > feed[j].Date })
	sort.Slice(research, func(i, j int) bool { return research[i].Date > research[j].Date })

	if opts.DryRun {
		return map[string]any{"articles": len(feed), "dry_run": true}, nil
	}

	if err := intel.SaveOutputJSON(p.outDir, "feed.json", len(feed), feed, nil); err != nil {
		return nil, err
	}
	overview := map[string]any{
		"category_counts":    categoryCounts,
		"institution_counts": institutionCounts,
	}
	if err := intel.SaveOutputJSON(p.outDir, "overview.json", len(feed), []any{}, overview); err != nil {
		return nil, err
	}
	if err := intel.SaveOutputJSON(p.outDir, "research_outputs.json", len(research), research, nil); err != nil {
		return nil, err
	}

	p.logger.Info("university processing complete",
		zap.Int("articles", len(feed)),
		zap.Int("research_outputs", len(research)),
	)
	return map[string]any{
		"articles":         len(feed),
		"research_outputs": len(research),
		"categories":       categoryCounts,
	}, nil
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
