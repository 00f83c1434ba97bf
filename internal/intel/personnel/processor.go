package personnel

import (
	"context"
	"encoding/json"
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
const Module = "personnel_intel"

// Options controls a processor run.
type Options struct {
	DryRun bool
	Force  bool
}

// FeedItem is one article-level entry in feed.json.
type FeedItem struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Importance  string   `json:"importance"`
	MatchScore  int      `json:"matchScore"`
	Date        string   `json:"date"`
	Source      string   `json:"source"`
	SourceID    string   `json:"source_id"`
	SourceURL   string   `json:"sourceUrl"`
	ChangeCount int      `json:"change_count"`
	Changes     []Change `json:"changes"`
	Content     string   `json:"content,omitempty"`
}

// EnrichedChange is a person-level change with oracle commentary.
type EnrichedChange struct {
	Change
	Relevance        string   `json:"relevance,omitempty"`
	Importance       string   `json:"importance,omitempty"`
	Group            string   `json:"group,omitempty"`
	Note             string   `json:"note,omitempty"`
	ActionSuggestion string   `json:"action_suggestion,omitempty"`
	Background       string   `json:"background,omitempty"`
	Signals          []string `json:"signals,omitempty"`
	AIInsight        string   `json:"ai_insight,omitempty"`
}

// Processor is the personnel-intelligence pipeline stage.
type Processor struct {
	store  intel.ArtifactReader
	outDir string
	logger *zap.Logger
}

// New builds a Processor writing under processedRoot/personnel_intel.
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
	articles := intel.LoadArticles(p.store, "personnel")
	// Personnel-tagged groups under beijing_policy belong here too.
	for _, a := range intel.LoadArticles(p.store, "beijing_policy") {
		if a.Group == "news_personnel" {
			articles = append(articles, a)
		}
	}
	return articles
}

// Process extracts change records from every personnel article and writes
// feed.json (article level) and changes.json (person level).
func (p *Processor) Process(opts Options) (map[string]any, error) {
	articles := p.loadInput()

	tracker := intel.NewHashTracker(p.outDir)
	if opts.Force {
		tracker.Reset()
	}

	var feed []FeedItem
	var allChanges []Change
	newCount := 0
	for _, a := range articles {
		if tracker.NeedsProcessing(a.URLHash, a.ContentHash) {
			newCount++
			tracker.MarkProcessed(a.URLHash, a.ContentHash)
		}
		matchScore := MatchScore(a)
		changes := ExtractChanges(a)
		allChanges = append(allChanges, changes...)
		feed = append(feed, FeedItem{
			ID:          a.URLHash,
			Title:       a.Title,
			Importance:  Importance(a, matchScore),
			MatchScore:  matchScore,
			Date:        a.Date(),
			Source:      a.SourceName,
			SourceID:    a.SourceID,
			SourceURL:   a.URL,
			ChangeCount: len(changes),
			Changes:     changes,
			Content:     a.Content,
		})
	}

	sort.Slice(feed, func(i, j int) bool { return feed[i].Date > feed[j].Date })
	allChanges = dedupChanges(allChanges)
	sort.Slice(allChanges, func(i, j int) bool { return allChanges[i].Date > allChanges[j].Date })

	if opts.DryRun {
		return map[string]any{
			"articles": len(feed), "changes": len(allChanges),
			"new_processed": newCount, "dry_run": true,
		}, nil
	}

	if err := tracker.Save(); err != nil {
		return nil, fmt.Errorf("save tracker: %w", err)
	}
	if err := intel.SaveOutputJSON(p.outDir, "feed.json", len(feed), feed, nil); err != nil {
		return nil, err
	}
	if err := intel.SaveOutputJSON(p.outDir, "changes.json", len(allChanges), allChanges, nil); err != nil {
		return nil, err
	}

	p.logger.Info("personnel processing complete",
		zap.Int("articles", len(feed)),
		zap.Int("changes", len(allChanges)),
		zap.Int("new_processed", newCount),
	)
	return map[string]any{
		"articles":      len(feed),
		"changes":       len(allChanges),
		"new_processed": newCount,
	}, nil
}

const oracleSystemPrompt = "你是一名人事情报分析师。针对一条人事变动输出 JSON 对象，字段：" +
	`relevance(高|中|低), importance(重要|关注|一般), group(政府|高校|科研机构|企业|其他), ` +
	`note(一句话判断), action_suggestion(建议动作, 50字内), background(人物背景, 100字内), ` +
	`signals(字符串数组, 最多3条), ai_insight(对研究院的启示, 80字内)。只输出 JSON。`

// EnrichWithOracle annotates each extracted change and writes
// enriched_feed.json. Failed calls keep the bare change record.
func (p *Processor) EnrichWithOracle(ctx context.Context, o oracle.Oracle, concurrency int) (map[string]any, error) {
	var changes []Change
	if err := readItems(filepath.Join(p.outDir, "changes.json"), &changes); err != nil {
		return map[string]any{"skipped": true, "reason": "no changes.json yet"}, nil
	}
	if concurrency <= 0 {
		concurrency = 3
	}

	enriched := make([]EnrichedChange, len(changes))
	var mu sync.Mutex
	errCount := 0
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i, change := range changes {
		i, change := i, change
		enriched[i] = EnrichedChange{Change: change}
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			prompt := fmt.Sprintf("人事变动: %s %s %s（机构: %s, 日期: %s）",
				change.Name, change.Action, change.Position, change.Organization, change.Date)
			raw, err := o.CompleteJSON(ctx, oracleSystemPrompt, prompt)
			if err != nil {
				mu.Lock()
				errCount++
				mu.Unlock()
				p.logger.Warn("oracle change enrichment failed",
					zap.String("change_id", change.ID), zap.Error(err))
				return
			}
			var patch EnrichedChange
			if err := json.Unmarshal(raw, &patch); err != nil {
				mu.Lock()
				errCount++
				mu.Unlock()
				return
			}
			patch.Change = change
			mu.Lock()
			enriched[i] = patch
			mu.Unlock()
		}()
	}
	wg.Wait()

	if err := intel.SaveOutputJSON(p.outDir, "enriched_feed.json", len(enriched), enriched, nil); err != nil {
		return nil, err
	}
	return map[string]any{"enriched": len(enriched) - errCount, "oracle_errors": errCount}, nil
}

func dedupChanges(changes []Change) []Change {
	seen := make(map[string]struct{}, len(changes))
	out := changes[:0]
	for _, c := range changes {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
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
