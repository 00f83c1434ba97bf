package extract

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// sanitizePolicy keeps the content-meaningful tag/attribute whitelist used
// for the content_html field. Everything else is stripped; unknown tags
// keep their text content.
var sanitizePolicy = buildSanitizePolicy()

func buildSanitizePolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "div", "span",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"a", "img",
		"table", "thead", "tbody", "tr", "td", "th",
		"ul", "ol", "li",
		"br", "strong", "em", "b", "i",
		"blockquote", "pre", "code",
	)
	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowAttrs("src", "alt", "title").OnElements("img")
	p.AllowAttrs("colspan", "rowspan").OnElements("td", "th")
	return p
}

// SanitizeHTML cleans raw HTML to the safe subset used for content_html.
func SanitizeHTML(html string) string {
	return strings.TrimSpace(sanitizePolicy.Sanitize(html))
}
