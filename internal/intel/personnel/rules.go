// Package personnel implements the personnel-intelligence processor:
// regex extraction of appointment and dismissal records from government
// personnel notices, with optional oracle enrichment.
package personnel

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/Ryder-MHumble/deanagent/internal/intel"
)

var keywords = []intel.Keyword{
	// Tier A: directly relevant departments.
	{Word: "人工智能", Weight: 25},
	{Word: "教育部", Weight: 20},
	{Word: "科技部", Weight: 20},
	{Word: "中关村", Weight: 20},
	{Word: "海淀", Weight: 18},
	{Word: "科学技术", Weight: 15},
	// Tier B: related departments and roles.
	{Word: "研究院", Weight: 12},
	{Word: "发改委", Weight: 10},
	{Word: "工信部", Weight: 10},
	{Word: "基金委", Weight: 10},
	{Word: "高校", Weight: 10},
	{Word: "校长", Weight: 10},
	{Word: "副校长", Weight: 10},
	{Word: "院长", Weight: 8},
	// Tier C: general government.
	{Word: "国务院", Weight: 5},
	{Word: "北京市", Weight: 5},
	{Word: "部长", Weight: 5},
	{Word: "副部长", Weight: 5},
}

var highImportanceKeywords = []string{"教育部", "科技部", "人工智能", "中关村", "校长"}

// Actions for a change record.
const (
	ActionAppointed = "任命"
	ActionElected   = "当选"
	ActionRemoved   = "免去"
	ActionRetired   = "卸任"
)

// "国务院任命黄如（女）为国家发展和改革委员会副主任" — the optional prefix
// captures the appointing body.
var appointmentRe = regexp.MustCompile(
	`([\x{4e00}-\x{9fa5}]{2,12})?任命\s*([\x{4e00}-\x{9fa5}]{2,4})(?:（[^）]*）)?\s*为\s*([^；。\n]+)`)

// "免去孙其信的中国农业大学校长职务"
var dismissalRe = regexp.MustCompile(
	`免去\s*([\x{4e00}-\x{9fa5}]{2,4})(?:（[^）]*）)?\s*的\s*(.+?)职务`)

// "张三当选中国科学院院士"
var electionRe = regexp.MustCompile(
	`([\x{4e00}-\x{9fa5}]{2,4})\s*当选(?:为)?\s*([^；。，\n]+)`)

// "李四卸任北京大学校长"
var retirementRe = regexp.MustCompile(
	`([\x{4e00}-\x{9fa5}]{2,4})\s*卸任\s*([^；。，\n]+)`)

// departmentMap infers organizations from position text, checked in order.
var departmentMap = []struct{ keyword, department string }{
	{"教育部", "教育部"},
	{"科技部", "科技部"},
	{"国家发展和改革委员会", "国家发改委"},
	{"发展改革委", "国家发改委"},
	{"工业和信息化部", "工信部"},
	{"工信部", "工信部"},
	{"人力资源和社会保障部", "人社部"},
	{"住房和城乡建设部", "住建部"},
	{"商务部", "商务部"},
	{"自然科学基金委", "国家自然科学基金委"},
	{"中国科学院", "中国科学院"},
	{"国务院", "国务院"},
	{"北京市", "北京市政府"},
	{"海淀", "海淀区"},
	{"中关村", "中关村"},
}

var universityRe = regexp.MustCompile(`[\x{4e00}-\x{9fa5}]{2,8}(?:大学|学院|研究院)`)

// Change is one structured personnel change record.
type Change struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Action       string `json:"action"`
	Position     string `json:"position"`
	Organization string `json:"organization,omitempty"`
	Date         string `json:"date,omitempty"`
	ArticleID    string `json:"source_article_id"`
}

// ChangeID derives a stable ID from the change identity.
func ChangeID(name, action, position string) string {
	sum := sha256.Sum256([]byte(name + "-" + action + "-" + position))
	return hex.EncodeToString(sum[:])[:16]
}

func inferOrganization(position string) string {
	for _, entry := range departmentMap {
		if strings.Contains(position, entry.keyword) {
			return entry.department
		}
	}
	return universityRe.FindString(position)
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// ExtractChanges pulls every personnel change out of an article. One
// article may yield several records; duplicates collapse on identity.
func ExtractChanges(a intel.Article) []Change {
	text := a.Text(0)
	date := ""
	if a.PublishedAt != nil {
		date = a.PublishedAt.Format("2006-01-02")
	}

	seen := make(map[string]struct{})
	var changes []Change

	add := func(name, action, position, appointer string) {
		name = strings.TrimSpace(name)
		position = whitespaceRe.ReplaceAllString(strings.TrimSpace(position), "")
		if name == "" || position == "" {
			return
		}
		id := ChangeID(name, action, position)
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		org := ""
		if appointer != "" {
			org = inferOrganization(appointer)
		}
		if org == "" {
			org = inferOrganization(position)
		}
		changes = append(changes, Change{
			ID:           id,
			Name:         name,
			Action:       action,
			Position:     position,
			Organization: org,
			Date:         date,
			ArticleID:    a.URLHash,
		})
	}

	for _, m := range appointmentRe.FindAllStringSubmatch(text, -1) {
		add(m[2], ActionAppointed, m[3], m[1])
	}
	for _, m := range dismissalRe.FindAllStringSubmatch(text, -1) {
		add(m[1], ActionRemoved, m[2], "")
	}
	for _, m := range electionRe.FindAllStringSubmatch(text, -1) {
		add(m[1], ActionElected, m[2], "")
	}
	for _, m := range retirementRe.FindAllStringSubmatch(text, -1) {
		add(m[1], ActionRetired, m[2], "")
	}
	return changes
}

// MatchScore scores a personnel article for institutional relevance.
func MatchScore(a intel.Article) int {
	return intel.ClampScore(intel.KeywordScore(a.Text(3000), keywords))
}

// Importance bands a personnel article.
func Importance(a intel.Article, matchScore int) string {
	return intel.ComputeImportance(matchScore, "", a.Title, highImportanceKeywords)
}
