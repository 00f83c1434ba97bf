// Package intel hosts the analytical layer shared by the domain
// processors: keyword scoring, regex field extraction, importance banding,
// incremental hash tracking, and processed-feed output helpers.
package intel

import (
	"regexp"
	"strings"
	"time"
)

// Keyword pairs a match substring with its score weight.
type Keyword struct {
	Word   string
	Weight int
}

// KeywordScore scans text for keyword matches and accumulates weights.
// Matching is case-insensitive substring containment; each keyword counts
// once.
func KeywordScore(text string, keywords []Keyword) int {
	lower := strings.ToLower(text)
	score := 0
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw.Word)) {
			score += kw.Weight
		}
	}
	return score
}

// ClampScore bounds a score into [0,100].
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Importance levels, ordered.
const (
	ImportanceUrgent = "紧急"
	ImportanceHigh   = "重要"
	ImportanceWatch  = "关注"
	ImportanceLow    = "一般"
)

var defaultHighKeywords = []string{"人工智能", "AI", "中关村", "大模型"}

// ComputeImportance bands an article by score, deadline proximity, and
// title keywords. A deadline within 14 days is urgent regardless of score.
func ComputeImportance(matchScore int, deadline, title string, highKeywords []string) string {
	if highKeywords == nil {
		highKeywords = defaultHighKeywords
	}
	if days := DaysLeft(deadline); days != nil && *days > 0 && *days <= 14 {
		return ImportanceUrgent
	}
	if matchScore >= 70 {
		return ImportanceHigh
	}
	for _, kw := range highKeywords {
		if strings.Contains(title, kw) {
			return ImportanceHigh
		}
	}
	if matchScore >= 40 {
		return ImportanceWatch
	}
	return ImportanceLow
}

var (
	fundingWan = regexp.MustCompile(`(?:不超过|最高|最多|上限)?\s*(\d+(?:\.\d+)?(?:\s*[-~至到]\s*\d+(?:\.\d+)?)?)\s*万(?:元)?`)
	fundingYi  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*亿(?:元)?`)
)

var deadlinePatterns = []*regexp.Regexp{
	regexp.MustCompile(`截止[日时]?[期间]?[为：:\s]*(\d{4})\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})\s*日`),
	regexp.MustCompile(`(\d{4})\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})\s*日\s*[前止]`),
	regexp.MustCompile(`截止[日时]?[期间]?[为：:\s]*(\d{4})[/-](\d{1,2})[/-](\d{1,2})`),
	regexp.MustCompile(`申报截止\s*(\d{4})[/-](\d{1,2})[/-](\d{1,2})`),
}

var leaderTitles = `总理|副总理|部长|副部长|主任|副主任|书记|副书记` +
	`|院长|副院长|局长|副局长|委员|主席|副主席` +
	`|市长|副市长|区长|副区长|司长|副司长`

// Name captures are lazy: greedy matching would swallow trailing prose
// after the surname on unsegmented Chinese text.
var (
	leaderTitleFirstRe = regexp.MustCompile(`(?:` + leaderTitles + `)\s*([\x{4e00}-\x{9fa5}]{2,4}?)`)
	leaderNameFirstRe  = regexp.MustCompile(`([\x{4e00}-\x{9fa5}]{2,4}?)\s*(?:` + leaderTitles + `)`)
)

// ExtractFunding returns the first funding amount normalized to
// "<number>万元" / "<number>亿元", or "".
func ExtractFunding(text string) string {
	if m := fundingWan.FindStringSubmatch(text); m != nil {
		return strings.ReplaceAll(m[1], " ", "") + "万元"
	}
	if m := fundingYi.FindStringSubmatch(text); m != nil {
		return m[1] + "亿元"
	}
	return ""
}

// ExtractDeadline returns the first deadline as YYYY-MM-DD, or "".
func ExtractDeadline(text string) string {
	for _, re := range deadlinePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		date, err := time.Parse("2006-1-2", m[1]+"-"+m[2]+"-"+m[3])
		if err != nil {
			continue
		}
		return date.Format("2006-01-02")
	}
	return ""
}

// ExtractLeader returns a leader name adjacent to a title keyword, or "".
// A name following a title ("副部长张三") is preferred over a name
// preceding one, so an organization before the title is not taken as
// the name.
func ExtractLeader(text string) string {
	if m := leaderTitleFirstRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := leaderNameFirstRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// DaysLeft computes whole days from today (UTC) to a YYYY-MM-DD deadline.
// Nil when the deadline is empty or unparseable; never negative.
func DaysLeft(deadline string) *int {
	if deadline == "" {
		return nil
	}
	dl, err := time.Parse("2006-01-02", deadline)
	if err != nil {
		return nil
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	days := int(dl.Sub(today).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return &days
}
