// Package source defines the declarative source catalog: the immutable
// per-source configuration records loaded from YAML files.
package source

import (
	"fmt"
)

// Fetch strategies selectable via the fetch_strategy field.
const (
	StrategyStatic   = "static"
	StrategyDynamic  = "dynamic"
	StrategyRSS      = "rss"
	StrategySnapshot = "snapshot"
	StrategyFaculty  = "faculty"
)

// Dimensions form a closed set; catalog validation rejects anything else.
var validDimensions = map[string]struct{}{
	"national_policy":    {},
	"beijing_policy":     {},
	"technology":         {},
	"talent":             {},
	"industry":           {},
	"universities":       {},
	"events":             {},
	"personnel":          {},
	"sentiment":          {},
	"twitter":            {},
	"university_faculty": {},
}

// ListSelectors configures list-page extraction.
type ListSelectors struct {
	ListItem   string `yaml:"list_item" json:"list_item"`
	Title      string `yaml:"title" json:"title"`
	Link       string `yaml:"link" json:"link"`
	LinkAttr   string `yaml:"link_attr" json:"link_attr"`
	Date       string `yaml:"date" json:"date"`
	DateFormat string `yaml:"date_format" json:"date_format"`
	DateRegex  string `yaml:"date_regex" json:"date_regex"`
	// ContentArea is used by the snapshot strategy only.
	ContentArea string `yaml:"content_area" json:"content_area"`
}

// DetailSelectors configures detail-page extraction.
type DetailSelectors struct {
	Content             string            `yaml:"content" json:"content"`
	Author              string            `yaml:"author" json:"author"`
	HeadingSections     map[string]string `yaml:"heading_sections" json:"heading_sections"`
	LabelPrefixSections map[string]string `yaml:"label_prefix_sections" json:"label_prefix_sections"`
}

// FacultySelectors configures person-card extraction for roster pages.
type FacultySelectors struct {
	ListItem string `yaml:"list_item" json:"list_item"`
	Name     string `yaml:"name" json:"name"`
	Bio      string `yaml:"bio" json:"bio"`
	Link     string `yaml:"link" json:"link"`
	Photo    string `yaml:"photo" json:"photo"`
	Position string `yaml:"position" json:"position"`
	Email    string `yaml:"email" json:"email"`
}

// Definition is one immutable source record from the catalog.
type Definition struct {
	ID            string `yaml:"id" json:"id"`
	Name          string `yaml:"name" json:"name"`
	Dimension     string `yaml:"dimension" json:"dimension"`
	Group         string `yaml:"group" json:"group,omitempty"`
	URL           string `yaml:"url" json:"url"`
	FetchStrategy string `yaml:"fetch_strategy" json:"fetch_strategy"`
	// ParserKind names a bespoke API parser; it takes precedence over
	// FetchStrategy when both are set.
	ParserKind string `yaml:"parser_kind" json:"parser_kind,omitempty"`
	Schedule   string `yaml:"schedule" json:"schedule"`
	Enabled    *bool  `yaml:"enabled" json:"enabled"`
	Priority   int    `yaml:"priority" json:"priority"`

	ListSelectors   ListSelectors    `yaml:"list_selectors" json:"list_selectors"`
	DetailSelectors *DetailSelectors `yaml:"detail_selectors" json:"detail_selectors,omitempty"`

	WaitCondition string `yaml:"wait_condition" json:"wait_condition,omitempty"`
	WaitTimeoutMs int    `yaml:"wait_timeout_ms" json:"wait_timeout_ms,omitempty"`
	// DetailViaPlainHTTP routes dynamic detail fetches through the plain
	// HTTP client instead of the shared browser context.
	DetailViaPlainHTTP bool `yaml:"detail_via_plain_http" json:"detail_via_plain_http,omitempty"`

	// KeywordFilter: nil → inherit the dimension default; empty → no filter.
	KeywordFilter    []string `yaml:"keyword_filter" json:"keyword_filter,omitempty"`
	KeywordBlacklist []string `yaml:"keyword_blacklist" json:"keyword_blacklist,omitempty"`

	BaseURL             string            `yaml:"base_url" json:"base_url,omitempty"`
	Tags                []string          `yaml:"tags" json:"tags,omitempty"`
	Headers             map[string]string `yaml:"headers" json:"headers,omitempty"`
	Encoding            string            `yaml:"encoding" json:"encoding,omitempty"`
	RequestDelaySeconds float64           `yaml:"request_delay_seconds" json:"request_delay_seconds,omitempty"`
	VerifySSL           *bool             `yaml:"verify_ssl" json:"verify_ssl,omitempty"`

	// Faculty strategy extras.
	FacultySelectors *FacultySelectors `yaml:"faculty_selectors" json:"faculty_selectors,omitempty"`
	University       string            `yaml:"university" json:"university,omitempty"`
	Department       string            `yaml:"department" json:"department,omitempty"`
	UseBrowser       bool              `yaml:"use_browser" json:"use_browser,omitempty"`

	// Strategy-specific extras.
	MaxEntries     int      `yaml:"max_entries" json:"max_entries,omitempty"`         // rss
	IgnorePatterns []string `yaml:"ignore_patterns" json:"ignore_patterns,omitempty"` // snapshot
	MaxPages       int      `yaml:"max_pages" json:"max_pages,omitempty"`             // faculty
	SearchQuery    string   `yaml:"search_query" json:"search_query,omitempty"`       // api parsers
	MaxResults     int      `yaml:"max_results" json:"max_results,omitempty"`         // api parsers
	SortBy         string   `yaml:"sort_by" json:"sort_by,omitempty"`                 // api parsers

	// Twitter parser extras.
	TwitterAccounts     []string `yaml:"twitter_accounts" json:"twitter_accounts,omitempty"`
	MaxTweetsPerAccount int      `yaml:"max_tweets_per_account" json:"max_tweets_per_account,omitempty"`
	MinLikes            int      `yaml:"min_likes" json:"min_likes,omitempty"`
}

// IsEnabled reports the static enabled flag (default true when absent).
func (d Definition) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// Validate enforces the catalog invariants for a single definition.
func (d Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("source has no id")
	}
	if _, ok := validDimensions[d.Dimension]; !ok {
		return fmt.Errorf("source %s: unknown dimension %q", d.ID, d.Dimension)
	}
	if d.ParserKind == "" {
		switch d.FetchStrategy {
		case StrategyStatic, StrategyDynamic, StrategyRSS, StrategySnapshot, StrategyFaculty:
		case "":
			return fmt.Errorf("source %s: neither parser_kind nor fetch_strategy set", d.ID)
		default:
			return fmt.Errorf("source %s: unknown fetch_strategy %q", d.ID, d.FetchStrategy)
		}
	}
	if d.ParserKind == "" && d.FetchStrategy != StrategyRSS && d.URL == "" {
		return fmt.Errorf("source %s: url is required", d.ID)
	}
	return nil
}
