package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Ryder-MHumble/deanagent/internal/source"
	"github.com/Ryder-MHumble/deanagent/internal/urlutil"
)

// Image is one inline image reference found in sanitized content.
type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// Detail is the result of detail-page extraction. A page whose content
// selector misses yields the zero value: detail failures are non-fatal.
type Detail struct {
	Content     string
	ContentHTML string
	ContentHash string
	Author      string
	Images      []Image
	PDFURL      string
	Sections    map[string]string
}

var labelPrefixRe = regexp.MustCompile(`^\s*([^:：]{1,20})[:：]\s*(.+)$`)

// ParseDetailPage extracts and sanitizes the article body from detail-page
// HTML. Relative image and link URLs are resolved against pageURL before
// sanitization so content_html survives being served from another origin.
func ParseDetailPage(html string, sel *source.DetailSelectors, pageURL string) Detail {
	var out Detail
	if sel == nil {
		return out
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return out
	}

	if sel.Content != "" {
		contentEl := doc.Find(sel.Content).First()
		if contentEl.Length() > 0 {
			absolutizeURLs(contentEl, pageURL)

			raw, _ := goquery.OuterHtml(contentEl)
			out.ContentHTML = SanitizeHTML(raw)
			out.Content = htmlToText(out.ContentHTML)
			if out.Content != "" {
				out.ContentHash = urlutil.ContentHash(out.Content)
			}
			out.Images = collectImages(out.ContentHTML)
			out.PDFURL = findPDF(contentEl, pageURL)
		}
	}

	if sel.Author != "" {
		out.Author = strings.TrimSpace(doc.Find(sel.Author).First().Text())
	}

	sections := make(map[string]string)
	extractHeadingSections(doc, sel.HeadingSections, sections)
	extractLabelPrefixSections(doc, sel.LabelPrefixSections, sections)
	if len(sections) > 0 {
		out.Sections = sections
	}

	return out
}

func absolutizeURLs(el *goquery.Selection, pageURL string) {
	if pageURL == "" {
		return
	}
	el.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr("src"); ok {
			img.SetAttr("src", urlutil.Resolve(pageURL, src))
		}
	})
	el.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok {
			a.SetAttr("href", urlutil.Resolve(pageURL, href))
		}
	})
}

// HTMLToText derives plain text from sanitized HTML, keeping block
// boundaries as newlines.
func HTMLToText(html string) string {
	return htmlToText(html)
}

func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	var b strings.Builder
	doc.Find("p, div, li, h1, h2, h3, h4, h5, h6, tr, blockquote, pre").Each(func(_ int, el *goquery.Selection) {
		// Skip containers with block children to avoid duplicating text.
		if el.ChildrenFiltered("p, div, li, ul, ol, table, h1, h2, h3, h4, h5, h6, blockquote").Length() > 0 {
			return
		}
		text := strings.TrimSpace(el.Text())
		if text != "" {
			b.WriteString(text)
			b.WriteByte('\n')
		}
	})
	text := strings.TrimSpace(b.String())
	if text == "" {
		text = strings.TrimSpace(doc.Text())
	}
	return text
}

func collectImages(sanitizedHTML string) []Image {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(sanitizedHTML))
	if err != nil {
		return nil
	}
	var images []Image
	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if src == "" {
			return
		}
		alt, _ := img.Attr("alt")
		images = append(images, Image{Src: src, Alt: alt})
	})
	return images
}

func findPDF(el *goquery.Selection, pageURL string) string {
	var pdf string
	el.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if strings.HasSuffix(strings.ToLower(strings.TrimSpace(href)), ".pdf") {
			pdf = urlutil.Resolve(pageURL, href)
			return false
		}
		return true
	})
	return pdf
}

// extractHeadingSections maps configured {field: heading text} pairs to the
// text between the matched heading and the next heading-level element.
func extractHeadingSections(doc *goquery.Document, config map[string]string, out map[string]string) {
	if len(config) == 0 {
		return
	}
	headings := doc.Find("h2, h3, h4, p, div")
	for field, headingText := range config {
		headings.EachWithBreak(func(_ int, h *goquery.Selection) bool {
			text := strings.TrimSpace(h.Text())
			if !isHeadingMatch(text, headingText) {
				return true
			}
			var parts []string
			for sib := h.Next(); sib.Length() > 0; sib = sib.Next() {
				if goquery.NodeName(sib) == "h2" || goquery.NodeName(sib) == "h3" || goquery.NodeName(sib) == "h4" {
					break
				}
				sibText := strings.TrimSpace(sib.Text())
				if sibText == "" {
					continue
				}
				if isSectionHeading(sibText, config) {
					break
				}
				parts = append(parts, sibText)
			}
			if len(parts) > 0 {
				out[field] = strings.Join(parts, "\n")
			}
			return false
		})
	}
}

// isHeadingMatch accepts exact heading text, or a short line containing it.
// The length bound keeps container elements (whose text includes every
// heading on the page) from matching.
func isHeadingMatch(text, heading string) bool {
	if text == heading {
		return true
	}
	return strings.Contains(text, heading) && len([]rune(text)) <= len([]rune(heading))+12
}

func isSectionHeading(text string, config map[string]string) bool {
	for _, heading := range config {
		if text == heading {
			return true
		}
	}
	return false
}

// extractLabelPrefixSections scans p/li lines of the form "Label: Value"
// (ASCII or fullwidth colon) for configured labels.
func extractLabelPrefixSections(doc *goquery.Document, config map[string]string, out map[string]string) {
	if len(config) == 0 {
		return
	}
	doc.Find("p, li").Each(func(_ int, el *goquery.Selection) {
		m := labelPrefixRe.FindStringSubmatch(strings.TrimSpace(el.Text()))
		if m == nil {
			return
		}
		label := strings.TrimSpace(m[1])
		value := strings.TrimSpace(m[2])
		for field, wantLabel := range config {
			if label == wantLabel {
				if _, exists := out[field]; !exists {
					out[field] = value
				}
			}
		}
	})
}
