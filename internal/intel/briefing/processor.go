// Package briefing implements the daily-briefing processor: it reads the
// raw articles crawled within the lookback window, groups them by
// dimension, keeps the most recent items of each, and renders a single
// briefing document with metric cards and a short narrative. It does not
// read the per-module processed feeds and does not rank items by score.
package briefing

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Ryder-MHumble/deanagent/internal/intel"
	"github.com/Ryder-MHumble/deanagent/internal/oracle"
)

// Module is the processed-feed directory name for this processor.
const Module = "daily_briefing"

// dimensionModule maps raw dimensions to frontend modules.
var dimensionModule = map[string]string{
	"national_policy": "policy-intel",
	"beijing_policy":  "policy-intel",
	"technology":      "tech-frontier",
	"industry":        "tech-frontier",
	"twitter":         "tech-frontier",
	"talent":          "talent-radar",
	"personnel":       "talent-radar",
	"universities":    "university-eco",
	"events":          "smart-schedule",
}

// dimensionDisplay names dimensions for section headers.
var dimensionDisplay = map[string]string{
	"national_policy": "国家政策",
	"beijing_policy":  "北京政策",
	"technology":      "技术动态",
	"industry":        "产业动态",
	"twitter":         "Twitter/KOL",
	"talent":          "人才政策",
	"personnel":       "人事变动",
	"universities":    "高校动态",
	"events":          "活动会议",
}

var moduleTitles = map[string]string{
	"policy-intel":   "政策情报",
	"tech-frontier":  "科技前沿",
	"talent-radar":   "人事动态",
	"university-eco": "高校生态",
	"smart-schedule": "智能日程",
}

var moduleIcons = map[string]string{
	"policy-intel":   "policy",
	"tech-frontier":  "tech",
	"talent-radar":   "talent",
	"university-eco": "university",
	"smart-schedule": "calendar",
}

// maxItemsPerSection bounds the per-dimension highlight list.
const maxItemsPerSection = 5

// SectionItem is one highlighted article in a briefing section.
type SectionItem struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Source    string `json:"source"`
	SourceURL string `json:"sourceUrl"`
	Date      string `json:"date"`
}

// Section is one per-dimension block of the briefing.
type Section struct {
	Dimension   string        `json:"dimension"`
	DisplayName string        `json:"display_name"`
	ModuleID    string        `json:"module_id"`
	ItemCount   int           `json:"item_count"`
	Items       []SectionItem `json:"items"`
}

// MetricCard is one per-module KPI card.
type MetricCard struct {
	ModuleID string `json:"module_id"`
	Title    string `json:"title"`
	Icon     string `json:"icon"`
	Count    int    `json:"count"`
}

// Briefing is the daily document written to briefing.json.
type Briefing struct {
	Date        string       `json:"date"`
	GeneratedAt time.Time    `json:"generated_at"`
	Narrative   string       `json:"narrative"`
	NarrativeBy string       `json:"narrative_by"`
	TotalCount  int          `json:"total_count"`
	MetricCards []MetricCard `json:"metric_cards"`
	Sections    []Section    `json:"sections"`
}

// Options controls a processor run.
type Options struct {
	DryRun       bool
	Force        bool
	LookbackDays int
}

// Processor is the daily-briefing pipeline stage.
type Processor struct {
	store  intel.ArtifactReader
	outDir string
	logger *zap.Logger
}

// New builds a Processor writing under processedRoot/daily_briefing.
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

// Process builds the briefing from the raw window, with a rule-composed
// narrative. Pass a non-nil oracle to upgrade the narrative.
func (p *Processor) Process(ctx context.Context, o oracle.Oracle, opts Options) (map[string]any, error) {
	lookback := opts.LookbackDays
	if lookback <= 0 {
		lookback = 1
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -lookback)

	byDimension := make(map[string][]intel.Article)
	total := 0
	for _, a := range intel.LoadAllArticles(p.store) {
		if a.Timestamp().Before(cutoff) {
			continue
		}
		byDimension[a.Dimension] = append(byDimension[a.Dimension], a)
		total++
	}

	var sections []Section
	moduleCounts := make(map[string]int)
	for dimension, articles := range byDimension {
		sort.Slice(articles, func(i, j int) bool {
			return articles[i].Timestamp().After(articles[j].Timestamp())
		})
		items := make([]SectionItem, 0, maxItemsPerSection)
		for _, a := range articles {
			if len(items) == maxItemsPerSection {
				break
			}
			items = append(items, SectionItem{
				ID:        a.URLHash,
				Title:     a.Title,
				Source:    a.SourceName,
				SourceURL: a.URL,
				Date:      a.Date(),
			})
		}
		moduleID := dimensionModule[dimension]
		if moduleID == "" {
			moduleID = "tech-frontier"
		}
		moduleCounts[moduleID] += len(articles)
		display := dimensionDisplay[dimension]
		if display == "" {
			display = dimension
		}
		sections = append(sections, Section{
			Dimension:   dimension,
			DisplayName: display,
			ModuleID:    moduleID,
			ItemCount:   len(articles),
			Items:       items,
		})
	}
	sort.Slice(sections, func(i, j int) bool { return sections[i].ItemCount > sections[j].ItemCount })

	var cards []MetricCard
	for moduleID, count := range moduleCounts {
		cards = append(cards, MetricCard{
			ModuleID: moduleID,
			Title:    moduleTitles[moduleID],
			Icon:     moduleIcons[moduleID],
			Count:    count,
		})
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].Count > cards[j].Count })

	narrative, narrativeBy := p.narrative(ctx, o, total, sections)

	briefing := Briefing{
		Date:        time.Now().UTC().Format("2006-01-02"),
		GeneratedAt: time.Now().UTC(),
		Narrative:   narrative,
		NarrativeBy: narrativeBy,
		TotalCount:  total,
		MetricCards: cards,
		Sections:    sections,
	}

	if opts.DryRun {
		return map[string]any{"total": total, "sections": len(sections), "dry_run": true}, nil
	}

	if err := intel.SaveOutputJSON(p.outDir, "briefing.json", total, briefing, nil); err != nil {
		return nil, err
	}
	p.logger.Info("briefing generated",
		zap.Int("total", total),
		zap.Int("sections", len(sections)),
		zap.String("narrative_by", narrativeBy),
	)
	return map[string]any{"total": total, "sections": len(sections), "narrative_by": narrativeBy}, nil
}

const oracleSystemPrompt = "你是研究院院长的情报助理。根据当日各板块要点输出 JSON 对象，字段：" +
	`narrative(150字内的当日情报综述，突出与人工智能研究院最相关的动向)。只输出 JSON。`

// narrative composes the day's summary, preferring the oracle when
// available and falling back to rules on any failure.
func (p *Processor) narrative(ctx context.Context, o oracle.Oracle, total int, sections []Section) (string, string) {
	if o != nil && total > 0 {
		prompt := narrativePrompt(total, sections)
		if raw, err := o.CompleteJSON(ctx, oracleSystemPrompt, prompt); err == nil {
			var patch struct {
				Narrative string `json:"narrative"`
			}
			if json.Unmarshal(raw, &patch) == nil && patch.Narrative != "" {
				return patch.Narrative, "oracle"
			}
		} else {
			p.logger.Warn("narrative oracle call failed", zap.Error(err))
		}
	}
	return ruleNarrative(total, sections), "rules"
}

func narrativePrompt(total int, sections []Section) string {
	var b strings.Builder
	fmt.Fprintf(&b, "今日共 %d 条情报。\n", total)
	for _, section := range sections {
		fmt.Fprintf(&b, "[%s] %d 条：\n", section.DisplayName, section.ItemCount)
		for _, item := range section.Items {
			fmt.Fprintf(&b, "- %s\n", item.Title)
		}
	}
	return b.String()
}

// ruleNarrative composes a deterministic one-paragraph summary.
func ruleNarrative(total int, sections []Section) string {
	if total == 0 {
		return "今日暂无新增情报。"
	}
	var parts []string
	for i, section := range sections {
		if i == 3 {
			break
		}
		parts = append(parts, fmt.Sprintf("%s %d 条", section.DisplayName, section.ItemCount))
	}
	lead := ""
	if len(sections) > 0 && len(sections[0].Items) > 0 {
		lead = fmt.Sprintf("重点关注：%s。", sections[0].Items[0].Title)
	}
	return fmt.Sprintf("今日新增情报 %d 条（%s）。%s", total, strings.Join(parts, "，"), lead)
}
