package techfrontier

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/Ryder-MHumble/deanagent/internal/intel"
	"github.com/Ryder-MHumble/deanagent/internal/oracle"
)

// Module is the processed-feed directory name for this processor.
const Module = "tech_frontier"

// Options controls a processor run.
type Options struct {
	DryRun bool
	Force  bool
}

// TopicNews is one classified news entry under a topic.
type TopicNews struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Source    string `json:"source"`
	SourceID  string `json:"source_id"`
	SourceURL string `json:"sourceUrl"`
	Type      string `json:"type"`
	Date      string `json:"date"`
	Impact    string `json:"impact"`
	Summary   string `json:"summary"`
	AIInsight string `json:"aiAnalysis,omitempty"`
}

// KOLVoice is one influential social-media statement under a topic.
type KOLVoice struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Influence string `json:"influence"`
	Statement string `json:"statement"`
	Platform  string `json:"platform"`
	SourceURL string `json:"sourceUrl"`
	Date      string `json:"date"`
}

// Topic is one of the 8 output topic objects in topics.json.
type Topic struct {
	ID          string      `json:"id"`
	Topic       string      `json:"topic"`
	Description string      `json:"description"`
	Tags        []string    `json:"tags"`
	OurStatus   string      `json:"ourStatus"`
	GapLevel    string      `json:"gapLevel"`
	HeatTrend   string      `json:"heatTrend"`
	HeatLabel   string      `json:"heatLabel"`
	NewsCount   int         `json:"newsCount"`
	News        []TopicNews `json:"relatedNews"`
	KOLVoices   []KOLVoice  `json:"kolVoices"`
	AIInsight   string      `json:"aiInsight,omitempty"`
}

// Stats is the KPI block written to stats.json.
type Stats struct {
	TotalArticles     int            `json:"total_articles"`
	ClassifiedCount   int            `json:"classified_count"`
	TopicCounts       map[string]int `json:"topic_counts"`
	OpportunityCount  int            `json:"opportunity_count"`
	KOLVoiceCount     int            `json:"kol_voice_count"`
	SurgingTopicCount int            `json:"surging_topic_count"`
}

// maxNewsPerTopic bounds the related-news array per topic.
const maxNewsPerTopic = 20

// maxKOLPerTopic bounds the KOL-voice array per topic.
const maxKOLPerTopic = 10

// heatWindowDays is the heat comparison window.
const heatWindowDays = 7

// Processor is the tech-frontier pipeline stage.
type Processor struct {
	store  intel.ArtifactReader
	outDir string
	logger *zap.Logger
}

// New builds a Processor writing under processedRoot/tech_frontier.
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

func (p *Processor) loadInput() []intel.Article {
	articles := intel.LoadArticles(p.store, "technology", "industry", "twitter")
	for _, a := range intel.LoadArticles(p.store, "universities") {
		if _, ok := aiInstituteSources[a.SourceID]; ok {
			articles = append(articles, a)
		}
	}
	return articles
}

// Process bins the stream into topics and writes topics.json,
// opportunities.json, and stats.json.
func (p *Processor) Process(opts Options) (map[string]any, error) {
	articles := p.loadInput()
	current, previous := SplitByPeriod(articles, heatWindowDays)

	type binned struct {
		news  []TopicNews
		kol   []KOLVoice
		count int
	}
	bins := make(map[string]*binned, len(Topics))
	for _, topic := range Topics {
		bins[topic.ID] = &binned{}
	}
	prevCounts := make(map[string]int, len(Topics))
	for _, a := range previous {
		for _, match := range ClassifyArticle(a) {
			prevCounts[match.TopicID]++
		}
	}

	classified := 0
	kolTotal := 0
	var opportunities []Opportunity
	for _, a := range current {
		matches := ClassifyArticle(a)
		if len(matches) > 0 {
			classified++
		}
		for _, match := range matches {
			bin := bins[match.TopicID]
			bin.count++
			if IsKOLSource(a.SourceID) {
				if len(bin.kol) < maxKOLPerTopic {
					bin.kol = append(bin.kol, buildKOLVoice(a))
					kolTotal++
				}
				continue
			}
			if len(bin.news) < maxNewsPerTopic {
				bin.news = append(bin.news, buildTopicNews(a, match.MatchScore))
			}
		}
		if opp := DetectOpportunity(a); opp != nil {
			opportunities = append(opportunities, *opp)
		}
	}

	topics := make([]Topic, 0, len(Topics))
	surging := 0
	topicCounts := make(map[string]int, len(Topics))
	for _, cfg := range Topics {
		bin := bins[cfg.ID]
		trend, label := HeatTrend(bin.count, prevCounts[cfg.ID])
		if trend == "surging" {
			surging++
		}
		topicCounts[cfg.ID] = bin.count
		sort.Slice(bin.news, func(i, j int) bool { return bin.news[i].Date > bin.news[j].Date })
		topics = append(topics, Topic{
			ID:          cfg.ID,
			Topic:       cfg.Topic,
			Description: cfg.Description,
			Tags:        cfg.Tags,
			OurStatus:   cfg.OurStatus,
			GapLevel:    cfg.GapLevel,
			HeatTrend:   trend,
			HeatLabel:   label,
			NewsCount:   bin.count,
			News:        bin.news,
			KOLVoices:   bin.kol,
		})
	}

	sort.Slice(opportunities, func(i, j int) bool {
		return priorityRank(opportunities[i].Priority) < priorityRank(opportunities[j].Priority)
	})

	stats := Stats{
		TotalArticles:     len(current),
		ClassifiedCount:   classified,
		TopicCounts:       topicCounts,
		OpportunityCount:  len(opportunities),
		KOLVoiceCount:     kolTotal,
		SurgingTopicCount: surging,
	}

	if opts.DryRun {
		return map[string]any{"articles": len(current), "classified": classified, "dry_run": true}, nil
	}

	if err := intel.SaveOutputJSON(p.outDir, "topics.json", len(topics), topics, nil); err != nil {
		return nil, err
	}
	if err := intel.SaveOutputJSON(p.outDir, "opportunities.json", len(opportunities), opportunities, nil); err != nil {
		return nil, err
	}
	if err := intel.SaveOutputJSON(p.outDir, "stats.json", 1, stats, nil); err != nil {
		return nil, err
	}

	p.logger.Info("tech frontier processing complete",
		zap.Int("articles", len(current)),
		zap.Int("classified", classified),
		zap.Int("opportunities", len(opportunities)),
	)
	return map[string]any{
		"articles":      len(current),
		"classified":    classified,
		"opportunities": len(opportunities),
		"kol_voices":    kolTotal,
	}, nil
}

const oracleSystemPrompt = "你是一名技术情报分析师。针对一个技术主题的近况输出 JSON 对象，字段：" +
	`aiInsight(该主题近一周动向研判, 120字内)。只输出 JSON。`

// EnrichWithOracle adds per-topic insight to topics.json.
func (p *Processor) EnrichWithOracle(ctx context.Context, o oracle.Oracle) (map[string]any, error) {
	path := filepath.Join(p.outDir, "topics.json")
	var topics []Topic
	if err := readItems(path, &topics); err != nil {
		return map[string]any{"skipped": true, "reason": "no topics.json yet"}, nil
	}

	enriched, failed := 0, 0
	for i := range topics {
		topic := &topics[i]
		if topic.NewsCount == 0 {
			continue
		}
		var titles []string
		for _, n := range topic.News {
			titles = append(titles, n.Title)
			if len(titles) == 10 {
				break
			}
		}
		prompt := fmt.Sprintf("主题: %s\n近一周热度: %s (%s)\n代表新闻:\n- %s",
			topic.Topic, topic.HeatTrend, topic.HeatLabel, joinLines(titles))
		raw, err := o.CompleteJSON(ctx, oracleSystemPrompt, prompt)
		if err != nil {
			failed++
			p.logger.Warn("topic enrichment failed",
				zap.String("topic", topic.ID), zap.Error(err))
			continue
		}
		var patch struct {
			AIInsight string `json:"aiInsight"`
		}
		if err := json.Unmarshal(raw, &patch); err != nil || patch.AIInsight == "" {
			failed++
			continue
		}
		topic.AIInsight = patch.AIInsight
		enriched++
	}

	if enriched > 0 {
		if err := intel.SaveOutputJSON(p.outDir, "topics.json", len(topics), topics, nil); err != nil {
			return nil, err
		}
	}
	return map[string]any{"enriched_topics": enriched, "oracle_errors": failed}, nil
}

func buildTopicNews(a intel.Article, matchScore int) TopicNews {
	summarySource := a.Content
	if summarySource == "" {
		summarySource = a.Title
	}
	sourceName := a.SourceName
	if sourceName == "" {
		sourceName = a.SourceID
	}
	return TopicNews{
		ID:        a.URLHash,
		Title:     a.Title,
		Source:    sourceName,
		SourceID:  a.SourceID,
		SourceURL: a.URL,
		Type:      DetectNewsType(a),
		Date:      a.Date(),
		Impact:    AssessImpact(matchScore),
		Summary:   truncateRunes(summarySource, 200),
	}
}

func buildKOLVoice(a intel.Article) KOLVoice {
	name := a.Author
	if name == "" {
		name = a.SourceName
	}
	return KOLVoice{
		ID:        a.URLHash,
		Name:      name,
		Influence: "高",
		Statement: truncateRunes(a.Title, 200),
		Platform:  MapPlatform(a.SourceID),
		SourceURL: a.URL,
		Date:      a.Date(),
	}
}

func priorityRank(priority string) int {
	switch priority {
	case "紧急":
		return 0
	case "高":
		return 1
	case "中":
		return 2
	default:
		return 3
	}
}

func joinLines(lines []string) string {
	out := ""
	for i, line := range lines {
		if i > 0 {
			out += "\n- "
		}
		out += line
	}
	return out
}

func readItems(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc struct {
		Items json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return json.Unmarshal(doc.Items, out)
}
