package fetcher

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/Ryder-MHumble/deanagent/internal/crawler"
	"github.com/Ryder-MHumble/deanagent/internal/source"
	"github.com/Ryder-MHumble/deanagent/internal/urlutil"
)

var emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// researchAreaSeparators splits a research-areas blob into individual areas.
var researchAreaSeparators = regexp.MustCompile(`[;；、,，/\n]+`)

// facultyFetcher implements the roster strategy: person cards with
// structured fields instead of dated news items. Pagination walks numbered
// page suffixes up to max_pages.
type facultyFetcher struct {
	def  source.Definition
	deps Deps
}

func newFacultyFetcher(def source.Definition, deps Deps) *facultyFetcher {
	return &facultyFetcher{def: def, deps: deps}
}

func (f *facultyFetcher) FetchAndParse(ctx context.Context) ([]crawler.Item, error) {
	sel := f.def.FacultySelectors
	if sel == nil || sel.ListItem == "" {
		return nil, fmt.Errorf("source %s: faculty_selectors.list_item is required", f.def.ID)
	}

	maxPages := f.def.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}

	var items []crawler.Item
	seen := make(map[string]struct{})
	for page := 1; page <= maxPages; page++ {
		pageURL := f.pageURL(page)
		html, err := f.fetchHTML(ctx, pageURL)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("fetch faculty page: %w", err)
			}
			f.deps.logger().Warn("faculty pagination stopped",
				zap.String("source_id", f.def.ID),
				zap.Int("page", page),
				zap.Error(err),
			)
			break
		}

		pageItems, err := f.parseRoster(html)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			break
		}
		if len(pageItems) == 0 {
			break
		}

		added := 0
		for _, item := range pageItems {
			key := item.URL
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			items = append(items, item)
			added++
		}
		// A page of nothing-but-repeats means pagination wrapped around.
		if added == 0 {
			break
		}
	}
	return items, nil
}

func (f *facultyFetcher) pageURL(page int) string {
	if page == 1 {
		return f.def.URL
	}
	if strings.Contains(f.def.URL, "%d") {
		return fmt.Sprintf(f.def.URL, page)
	}
	return fmt.Sprintf("%s?page=%d", f.def.URL, page)
}

func (f *facultyFetcher) fetchHTML(ctx context.Context, url string) (string, error) {
	if f.def.UseBrowser {
		return f.deps.Browser.Render(ctx, url, f.def.WaitCondition, 15*time.Second)
	}
	return f.deps.HTTP.FetchPage(ctx, url, httpOpts(f.def))
}

func (f *facultyFetcher) parseRoster(html string) ([]crawler.Item, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse roster html: %w", err)
	}
	sel := f.def.FacultySelectors

	cards := doc.Find(sel.ListItem)
	if cards.Length() == 0 {
		return nil, fmt.Errorf("faculty selector %q matched nothing at %s", sel.ListItem, f.def.URL)
	}

	base := f.def.BaseURL
	if base == "" {
		base = f.def.URL
	}

	var items []crawler.Item
	cards.Each(func(_ int, card *goquery.Selection) {
		name := cardText(card, sel.Name, "h2")
		if name == "" {
			return
		}

		profileURL := f.profileURL(card, base)
		bio := cardText(card, sel.Bio, "")
		position := cardText(card, sel.Position, "")
		email := cardText(card, sel.Email, "")
		if email == "" {
			email = emailRe.FindString(card.Text())
		}
		photo := cardImage(card, sel.Photo, base)

		person := map[string]any{
			"name":        name,
			"position":    position,
			"bio":         bio,
			"email":       email,
			"photo_url":   photo,
			"profile_url": profileURL,
			"university":  f.def.University,
			"department":  f.def.Department,
		}
		if areas := parseResearchAreas(bio); len(areas) > 0 {
			person["research_areas"] = areas
		}

		item := crawler.Item{
			Title:     name,
			URL:       profileURL,
			Content:   bio,
			SourceID:  f.def.ID,
			Dimension: f.def.Dimension,
			Tags:      f.def.Tags,
			Extra:     person,
		}
		if bio != "" {
			item.ContentHash = urlutil.ContentHash(bio)
		}
		items = append(items, item)
	})
	return items, nil
}

// profileURL resolves the person's profile link; cards without a navigable
// link fall back to a stable fragment of the roster URL so the record still
// has a dedup key.
func (f *facultyFetcher) profileURL(card *goquery.Selection, base string) string {
	sel := f.def.FacultySelectors.Link
	if sel == "" {
		sel = "a"
	}
	href, _ := card.Find(sel).First().Attr("href")
	href = strings.TrimSpace(href)
	lower := strings.ToLower(href)
	if href == "" || href == "#" || strings.HasPrefix(lower, "javascript:") {
		name := cardText(card, f.def.FacultySelectors.Name, "h2")
		return fmt.Sprintf("%s#person-%s", f.def.URL, urlutil.ContentHash(name)[:12])
	}
	return urlutil.Resolve(base, href)
}

func cardText(card *goquery.Selection, selector, fallback string) string {
	if selector == "" {
		selector = fallback
	}
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(card.Find(selector).First().Text())
}

func cardImage(card *goquery.Selection, selector, base string) string {
	if selector == "" {
		return ""
	}
	src, _ := card.Find(selector).First().Attr("src")
	src = strings.TrimSpace(src)
	if src == "" {
		return ""
	}
	return urlutil.Resolve(base, src)
}

func parseResearchAreas(text string) []string {
	if text == "" {
		return nil
	}
	var areas []string
	for _, part := range researchAreaSeparators.Split(text, -1) {
		part = strings.TrimSpace(part)
		if part != "" && len([]rune(part)) <= 30 {
			areas = append(areas, part)
		}
	}
	if len(areas) < 2 {
		return nil
	}
	return areas
}
