package fetcher

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/Ryder-MHumble/deanagent/internal/crawler"
	"github.com/Ryder-MHumble/deanagent/internal/source"
	"github.com/Ryder-MHumble/deanagent/internal/storage"
	"github.com/Ryder-MHumble/deanagent/internal/urlutil"
)

// snapshotFetcher implements the snapshot strategy for pages without news
// lists (leadership rosters, member directories). It hashes the selected
// content area and emits one change item when the hash moves.
type snapshotFetcher struct {
	def  source.Definition
	deps Deps
}

func newSnapshotFetcher(def source.Definition, deps Deps) *snapshotFetcher {
	return &snapshotFetcher{def: def, deps: deps}
}

func (f *snapshotFetcher) FetchAndParse(ctx context.Context) ([]crawler.Item, error) {
	html, err := f.deps.HTTP.FetchPage(ctx, f.def.URL, httpOpts(f.def))
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot page: %w", err)
	}

	text, err := f.contentText(html)
	if err != nil {
		return nil, err
	}
	for _, pattern := range f.def.IgnorePatterns {
		re, reErr := regexp.Compile(pattern)
		if reErr != nil {
			return nil, fmt.Errorf("bad ignore pattern %q: %w", pattern, reErr)
		}
		text = re.ReplaceAllString(text, "")
	}
	text = strings.TrimSpace(text)

	contentHash := urlutil.ContentHash(text)
	last := f.deps.Snapshots.LastSnapshot(f.def.ID)
	if last != nil && last.ContentHash == contentHash {
		return nil, nil
	}

	var content string
	if last != nil && last.ContentText != "" {
		content = diffSummary(last.ContentText, text)
	} else {
		content = firstSnapshotSummary(text)
	}

	snap := storage.Snapshot{
		CapturedAt:    time.Now().UTC(),
		ContentHash:   contentHash,
		ContentLength: len(text),
		ContentText:   text,
		DiffSummary:   content,
	}
	if err := f.deps.Snapshots.AppendSnapshot(f.def.ID, snap); err != nil {
		return nil, fmt.Errorf("store snapshot: %w", err)
	}

	item := crawler.Item{
		Title:       fmt.Sprintf("[变更检测] %s", f.displayName()),
		URL:         fmt.Sprintf("%s#snapshot-%s", f.def.URL, contentHash[:12]),
		Content:     content,
		ContentHash: contentHash,
		SourceID:    f.def.ID,
		Dimension:   f.def.Dimension,
		Tags:        append(append([]string{}, f.def.Tags...), "snapshot_diff"),
		Extra:       map[string]any{"is_first_snapshot": last == nil},
	}
	return []crawler.Item{item}, nil
}

func (f *snapshotFetcher) displayName() string {
	if f.def.Name != "" {
		return f.def.Name
	}
	return f.def.ID
}

func (f *snapshotFetcher) contentText(rawHTML string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("parse snapshot html: %w", err)
	}
	sel := f.def.ListSelectors.ContentArea
	target := doc.Selection
	if sel != "" {
		target = doc.Find(sel).First()
		if target.Length() == 0 {
			return "", fmt.Errorf("content area selector %q matched nothing at %s", sel, f.def.URL)
		}
	}
	return lineText(target), nil
}

// blockTags end a text line when walking the DOM; <br> does too.
var blockTags = map[string]struct{}{
	"p": {}, "div": {}, "li": {}, "tr": {}, "ul": {}, "ol": {},
	"table": {}, "section": {}, "article": {},
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
}

// lineText extracts text with line breaks at block boundaries so the diff
// operates on meaningful lines rather than one concatenated blob.
func lineText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, node := range sel.Nodes {
		walkText(node, &b)
	}
	lines := strings.Split(b.String(), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func walkText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.Data {
		case "br":
			b.WriteByte('\n')
			return
		case "script", "style":
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, b)
	}
	if n.Type == html.ElementNode {
		if _, block := blockTags[n.Data]; block {
			b.WriteByte('\n')
		}
	}
}

// diffSummary produces a line-level +/- summary between two snapshots.
func diffSummary(before, after string) string {
	beforeLines := strings.Split(before, "\n")
	afterLines := strings.Split(after, "\n")

	beforeSet := lineSet(beforeLines)
	afterSet := lineSet(afterLines)

	var b strings.Builder
	for _, line := range afterLines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if _, existed := beforeSet[trimmed]; !existed {
			b.WriteString("+ " + trimmed + "\n")
		}
	}
	for _, line := range beforeLines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if _, remains := afterSet[trimmed]; !remains {
			b.WriteString("- " + trimmed + "\n")
		}
	}
	summary := strings.TrimSpace(b.String())
	if summary == "" {
		summary = "内容顺序或空白发生变化"
	}
	return summary
}

func lineSet(lines []string) map[string]struct{} {
	set := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			set[trimmed] = struct{}{}
		}
	}
	return set
}

func firstSnapshotSummary(text string) string {
	const limit = 500
	runes := []rune(text)
	if len(runes) > limit {
		text = string(runes[:limit])
	}
	return "初次快照: " + text
}
