// Package extract implements the selector-driven extraction engine shared
// by the static and dynamic fetch strategies: list-page parsing with date
// fallbacks, detail-page body extraction, and HTML sanitization.
package extract

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Ryder-MHumble/deanagent/internal/source"
	"github.com/Ryder-MHumble/deanagent/internal/urlutil"
)

// SelectorMissError reports that a configured selector matched nothing.
type SelectorMissError struct {
	Selector string
	URL      string
}

func (e *SelectorMissError) Error() string {
	return fmt.Sprintf("selector %q matched no elements at %s", e.Selector, e.URL)
}

// ListItem is the intermediate record produced by list-page extraction.
type ListItem struct {
	Title       string
	URL         string
	PublishedAt *time.Time
}

// selfSelector marks that the list element itself carries the title/link.
const selfSelector = "_self"

var (
	urlDateCompact = regexp.MustCompile(`/t(\d{4})(\d{2})(\d{2})_`)
	urlDateDashed  = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
	urlDateMonth   = regexp.MustCompile(`/(\d{4})(\d{2})/t\d+`)
)

// ParseListPage extracts (title, absolute URL, date) triples from a parsed
// list page. Items are deduplicated by title: several government portals
// expose the same article via multiple URL paths.
func ParseListPage(doc *goquery.Document, sel source.ListSelectors, baseURL string, keywordFilter, keywordBlacklist []string) ([]ListItem, error) {
	listSel := sel.ListItem
	if listSel == "" {
		listSel = "li"
	}
	elements := doc.Find(listSel)
	if elements.Length() == 0 {
		pageURL := ""
		if doc.Url != nil {
			pageURL = doc.Url.String()
		}
		return nil, &SelectorMissError{Selector: listSel, URL: pageURL}
	}

	base := urlutil.NormalizeBaseURL(baseURL)
	var items []ListItem
	elements.Each(func(_ int, el *goquery.Selection) {
		title := extractText(el, sel.Title, "a")
		if title == "" {
			return
		}

		link := extractLink(el, sel)
		if link == "" {
			return
		}
		absolute := urlutil.Resolve(base, link)

		if !passesKeywordFilter(title, keywordFilter) {
			return
		}
		if hitsBlacklist(title, keywordBlacklist) {
			return
		}

		published := extractDate(el, sel)
		if published == nil {
			published = dateFromURL(absolute)
		}

		items = append(items, ListItem{Title: title, URL: absolute, PublishedAt: published})
	})

	return dedupByTitle(items), nil
}

func extractText(el *goquery.Selection, selector, fallback string) string {
	if selector == "" {
		selector = fallback
	}
	if selector == selfSelector {
		return strings.TrimSpace(el.Text())
	}
	return strings.TrimSpace(el.Find(selector).First().Text())
}

func extractLink(el *goquery.Selection, sel source.ListSelectors) string {
	linkSel := sel.Link
	if linkSel == "" {
		linkSel = "a"
	}
	target := el
	if linkSel != selfSelector {
		target = el.Find(linkSel).First()
	}
	attr := sel.LinkAttr
	if attr == "" {
		attr = "href"
	}
	link, _ := target.Attr(attr)
	return strings.TrimSpace(link)
}

// extractDate parses the date sub-element using the configured layout,
// optionally pre-extracting the date string with a regex. Both the inline
// text and a space-joined variant are attempted: some sites split the date
// across child elements.
func extractDate(el *goquery.Selection, sel source.ListSelectors) *time.Time {
	if sel.Date == "" || sel.DateFormat == "" {
		return nil
	}
	dateEl := el.Find(sel.Date).First()
	if dateEl.Length() == 0 {
		return nil
	}

	var re *regexp.Regexp
	if sel.DateRegex != "" {
		var err error
		re, err = regexp.Compile(sel.DateRegex)
		if err != nil {
			return nil
		}
	}

	for _, text := range []string{
		strings.TrimSpace(dateEl.Text()),
		strings.Join(strings.Fields(dateEl.Text()), " "),
	} {
		candidate := text
		if re != nil {
			m := re.FindString(candidate)
			if m == "" {
				continue
			}
			candidate = m
		}
		if ts, err := time.ParseInLocation(sel.DateFormat, candidate, time.UTC); err == nil {
			return &ts
		}
	}
	return nil
}

// dateFromURL recovers a publication date from URL path conventions common
// on Chinese government sites: /t20260215_001.html, 2026-02-15 anywhere in
// the path, or a /202602/t… segment (day defaults to the 1st).
func dateFromURL(rawURL string) *time.Time {
	if m := urlDateCompact.FindStringSubmatch(rawURL); m != nil {
		if ts, err := time.Parse("20060102", m[1]+m[2]+m[3]); err == nil {
			return &ts
		}
	}
	if m := urlDateDashed.FindStringSubmatch(rawURL); m != nil {
		if ts, err := time.Parse("2006-01-02", m[1]+"-"+m[2]+"-"+m[3]); err == nil {
			return &ts
		}
	}
	if m := urlDateMonth.FindStringSubmatch(rawURL); m != nil {
		if ts, err := time.Parse("200601", m[1]+m[2]); err == nil {
			return &ts
		}
	}
	return nil
}

func passesKeywordFilter(title string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	lower := strings.ToLower(title)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func hitsBlacklist(title string, blacklist []string) bool {
	lower := strings.ToLower(title)
	for _, kw := range blacklist {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func dedupByTitle(items []ListItem) []ListItem {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, item := range items {
		if _, dup := seen[item.Title]; dup {
			continue
		}
		seen[item.Title] = struct{}{}
		out = append(out, item)
	}
	return out
}
