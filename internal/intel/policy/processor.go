package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/Ryder-MHumble/deanagent/internal/intel"
	"github.com/Ryder-MHumble/deanagent/internal/oracle"
)

// Module is the processed-feed directory name for this processor.
const Module = "policy_intel"

// Enrichment tiers.
const (
	TierRules  = "rules"
	TierOracle = "oracle"
)

// Enrichment is the per-article analytical record, shared by the rule
// engine and the oracle pass.
type Enrichment struct {
	Summary       string   `json:"summary"`
	Importance    string   `json:"importance"`
	MatchScore    int      `json:"matchScore"`
	Relevance     int      `json:"relevance"`
	IsOpportunity bool     `json:"isOpportunity"`
	Funding       string   `json:"funding,omitempty"`
	Deadline      string   `json:"deadline,omitempty"`
	DaysLeft      *int     `json:"daysLeft,omitempty"`
	Agency        string   `json:"agency"`
	Signals       []string `json:"signals,omitempty"`
	AIInsight     string   `json:"aiInsight,omitempty"`
	Detail        string   `json:"detail,omitempty"`
	Leader        string   `json:"leader,omitempty"`
	Category      string   `json:"category,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Tier          string   `json:"enrichment_tier"`
}

type enrichedRecord struct {
	Article intel.Article `json:"article"`
	Result  Enrichment    `json:"llm"`
}

// Options controls a processor run.
type Options struct {
	DryRun bool
	Force  bool
}

// Processor is the policy-intelligence pipeline stage.
type Processor struct {
	store  intel.ArtifactReader
	outDir string
	logger *zap.Logger
}

// New builds a Processor writing under processedRoot/policy_intel.
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

var policyDimensions = []string{"national_policy", "beijing_policy"}

// loadInput pulls the policy-relevant raw articles, excluding personnel
// groups that belong to the personnel pipeline.
func (p *Processor) loadInput() []intel.Article {
	articles := intel.LoadArticles(p.store, policyDimensions...)
	filtered := articles[:0]
	for _, a := range articles {
		if a.Dimension == "beijing_policy" && a.Group == "news_personnel" {
			continue
		}
		filtered = append(filtered, a)
	}
	return filtered
}

// Process runs the Tier-1 rule engine incrementally and rebuilds the
// output feeds from the full enrichment cache.
func (p *Processor) Process(opts Options) (map[string]any, error) {
	articles := p.loadInput()

	tracker := intel.NewHashTracker(p.outDir)
	if opts.Force {
		tracker.Reset()
	}

	newCount := 0
	for _, a := range articles {
		if !tracker.NeedsProcessing(a.URLHash, a.ContentHash) {
			continue
		}
		enrichment := EnrichByRules(a)
		if !opts.DryRun {
			if err := p.saveEnriched(a, enrichment); err != nil {
				return nil, fmt.Errorf("save enrichment: %w", err)
			}
		}
		tracker.MarkProcessed(a.URLHash, a.ContentHash)
		newCount++
	}

	if opts.DryRun {
		return map[string]any{"total": len(articles), "new_processed": newCount, "dry_run": true}, nil
	}

	if err := tracker.Save(); err != nil {
		return nil, fmt.Errorf("save tracker: %w", err)
	}

	feedCount, oppCount, err := p.rebuildOutputs()
	if err != nil {
		return nil, err
	}

	p.logger.Info("policy processing complete",
		zap.Int("total", len(articles)),
		zap.Int("new_processed", newCount),
		zap.Int("feed_items", feedCount),
		zap.Int("opportunities", oppCount),
	)
	return map[string]any{
		"total":         len(articles),
		"new_processed": newCount,
		"feed_items":    feedCount,
		"opportunities": oppCount,
	}, nil
}

// EnrichWithOracle runs the Tier-2 pass: articles above the score
// threshold that have not been oracle-enriched yet, with bounded
// concurrency. Failures leave the rule-based record in place.
func (p *Processor) EnrichWithOracle(ctx context.Context, o oracle.Oracle, threshold, concurrency int) (map[string]any, error) {
	records, err := p.loadEnriched()
	if err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		concurrency = 3
	}

	var candidates []enrichedRecord
	alreadyEnriched, belowThreshold := 0, 0
	for _, rec := range records {
		switch {
		case rec.Result.Tier == TierOracle:
			alreadyEnriched++
		case rec.Result.MatchScore < threshold:
			belowThreshold++
		default:
			candidates = append(candidates, rec)
		}
	}

	var mu sync.Mutex
	enriched, failed := 0, 0
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for _, rec := range candidates {
		rec := rec
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			result, enrichErr := p.oracleEnrichOne(ctx, o, rec)
			mu.Lock()
			defer mu.Unlock()
			if enrichErr != nil {
				failed++
				p.logger.Warn("oracle enrichment failed",
					zap.String("url_hash", rec.Article.URLHash),
					zap.Error(enrichErr),
				)
				return
			}
			if err := p.saveEnriched(rec.Article, result); err != nil {
				failed++
				return
			}
			enriched++
		}()
	}
	wg.Wait()

	if enriched > 0 {
		if _, _, err := p.rebuildOutputs(); err != nil {
			return nil, err
		}
	}
	return map[string]any{
		"oracle_enriched": enriched,
		"oracle_errors":   failed,
		"already":         alreadyEnriched,
		"below_threshold": belowThreshold,
	}, nil
}

const oracleSystemPrompt = "你是一名政策情报分析师。根据文章输出 JSON 对象，字段：" +
	`summary(50字内摘要), importance(紧急|重要|关注|一般), matchScore(0-100), ` +
	`category(政策机会|国家政策|北京政策|一般), aiInsight(对人工智能研究院的影响, 100字内), ` +
	`signals(字符串数组, 最多3条)。只输出 JSON。`

func (p *Processor) oracleEnrichOne(ctx context.Context, o oracle.Oracle, rec enrichedRecord) (Enrichment, error) {
	prompt := fmt.Sprintf("标题: %s\n机构: %s\n正文:\n%s",
		rec.Article.Title, rec.Result.Agency, truncate(rec.Article.Content, 3000))

	raw, err := o.CompleteJSON(ctx, oracleSystemPrompt, prompt)
	if err != nil {
		return Enrichment{}, err
	}

	var patch struct {
		Summary    string   `json:"summary"`
		Importance string   `json:"importance"`
		MatchScore *int     `json:"matchScore"`
		Category   string   `json:"category"`
		AIInsight  string   `json:"aiInsight"`
		Signals    []string `json:"signals"`
	}
	if err := json.Unmarshal(raw, &patch); err != nil {
		return Enrichment{}, &oracle.Error{Err: err}
	}

	result := rec.Result
	if patch.Summary != "" {
		result.Summary = patch.Summary
	}
	if patch.Importance != "" {
		result.Importance = patch.Importance
	}
	if patch.MatchScore != nil {
		result.MatchScore = intel.ClampScore(*patch.MatchScore)
		result.Relevance = result.MatchScore
	}
	result.Category = patch.Category
	result.AIInsight = patch.AIInsight
	result.Signals = patch.Signals
	result.Tier = TierOracle
	return result, nil
}

// FeedItem is one entry in feed.json.
type FeedItem struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Summary    string   `json:"summary"`
	Category   string   `json:"category"`
	Importance string   `json:"importance"`
	Date       string   `json:"date"`
	Source     string   `json:"source"`
	SourceID   string   `json:"source_id"`
	Tags       []string `json:"tags"`
	MatchScore int      `json:"matchScore"`
	Funding    string   `json:"funding,omitempty"`
	DaysLeft   *int     `json:"daysLeft,omitempty"`
	Leader     string   `json:"leader,omitempty"`
	Signals    []string `json:"signals,omitempty"`
	SourceURL  string   `json:"sourceUrl"`
	AIInsight  string   `json:"aiInsight,omitempty"`
	Content    string   `json:"content,omitempty"`
}

// OpportunityItem is one entry in opportunities.json.
type OpportunityItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Agency     string `json:"agency"`
	AgencyType string `json:"agencyType"`
	MatchScore int    `json:"matchScore"`
	Funding    string `json:"funding"`
	Deadline   string `json:"deadline"`
	DaysLeft   int    `json:"daysLeft"`
	Status     string `json:"status"`
	AIInsight  string `json:"aiInsight,omitempty"`
	SourceURL  string `json:"sourceUrl"`
}

func (p *Processor) rebuildOutputs() (int, int, error) {
	records, err := p.loadEnriched()
	if err != nil {
		return 0, 0, err
	}

	var feed []FeedItem
	var opportunities []OpportunityItem
	for _, rec := range records {
		a, e := rec.Article, rec.Result
		mergedTags := mergeUnique(a.Tags, e.Tags)

		feed = append(feed, FeedItem{
			ID:         a.URLHash,
			Title:      a.Title,
			Summary:    e.Summary,
			Category:   category(a, e),
			Importance: e.Importance,
			Date:       a.Date(),
			Source:     a.SourceName,
			SourceID:   a.SourceID,
			Tags:       mergedTags,
			MatchScore: e.MatchScore,
			Funding:    e.Funding,
			DaysLeft:   e.DaysLeft,
			Leader:     e.Leader,
			Signals:    e.Signals,
			SourceURL:  a.URL,
			AIInsight:  e.AIInsight,
			Content:    a.Content,
		})

		if e.IsOpportunity {
			opportunities = append(opportunities, buildOpportunity(a, e))
		}
	}

	sort.Slice(feed, func(i, j int) bool { return feed[i].Date > feed[j].Date })
	sort.Slice(opportunities, func(i, j int) bool {
		return opportunities[i].DaysLeft < opportunities[j].DaysLeft
	})

	if err := intel.SaveOutputJSON(p.outDir, "feed.json", len(feed), feed, nil); err != nil {
		return 0, 0, err
	}
	if err := intel.SaveOutputJSON(p.outDir, "opportunities.json", len(opportunities), opportunities, nil); err != nil {
		return 0, 0, err
	}
	return len(feed), len(opportunities), nil
}

func buildOpportunity(a intel.Article, e Enrichment) OpportunityItem {
	funding := e.Funding
	if funding == "" {
		funding = "待确认"
	}
	deadline := e.Deadline
	if deadline == "" {
		deadline = "待确认"
	}
	daysLeft := 999
	if e.DaysLeft != nil {
		daysLeft = *e.DaysLeft
	}
	return OpportunityItem{
		ID:         a.URLHash,
		Name:       a.Title,
		Agency:     e.Agency,
		AgencyType: agencyType(a),
		MatchScore: e.MatchScore,
		Funding:    funding,
		Deadline:   deadline,
		DaysLeft:   daysLeft,
		Status:     opportunityStatus(e.DaysLeft),
		AIInsight:  e.AIInsight,
		SourceURL:  a.URL,
	}
}

func category(a intel.Article, e Enrichment) string {
	if e.Category != "" {
		return e.Category
	}
	if e.IsOpportunity {
		return "政策机会"
	}
	switch a.Dimension {
	case "beijing_policy":
		return "北京政策"
	case "national_policy":
		return "国家政策"
	}
	return "一般"
}

func agencyType(a intel.Article) string {
	switch a.Dimension {
	case "national_policy":
		return "national"
	case "beijing_policy":
		return "beijing"
	}
	return "ministry"
}

func opportunityStatus(daysLeft *int) string {
	if daysLeft == nil {
		return "tracking"
	}
	if *daysLeft <= 7 {
		return "urgent"
	}
	if *daysLeft <= 30 {
		return "active"
	}
	return "tracking"
}

func (p *Processor) enrichedDir() string {
	return filepath.Join(p.outDir, "_enriched")
}

func (p *Processor) saveEnriched(a intel.Article, e Enrichment) error {
	dir := p.enrichedDir()
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(enrichedRecord{Article: a, Result: e}, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(dir, a.URLHash+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (p *Processor) loadEnriched() ([]enrichedRecord, error) {
	entries, err := os.ReadDir(p.enrichedDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var records []enrichedRecord
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(p.enrichedDir(), entry.Name()))
		if err != nil {
			continue
		}
		var rec enrichedRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			p.logger.Warn("skipping invalid enrichment cache file",
				zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func mergeUnique(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, v := range list {
			if v == "" {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
