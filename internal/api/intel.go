package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// intelFeed serves one processed feed document with the common filter set:
// keyword, date range, limit, and the source-filter quadruple (source_id,
// source_ids, source_name, source_names).
func (s *Server) intelFeed(module, filename string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(s.store.ProcessedDir(module), filename)
		raw, err := os.ReadFile(path)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{
				"generated_at": nil,
				"item_count":   0,
				"items":        []any{},
			})
			return
		}

		var doc map[string]json.RawMessage
		if err := json.Unmarshal(raw, &doc); err != nil {
			writeError(w, http.StatusInternalServerError, "corrupted feed document")
			return
		}

		var items []map[string]any
		if rawItems, ok := doc["items"]; ok {
			// items may be an object (briefing, stats); pass those through.
			if err := json.Unmarshal(rawItems, &items); err != nil {
				passthrough(w, doc)
				return
			}
		}

		filtered := filterFeedItems(items, r)

		out := make(map[string]any, len(doc)+1)
		for key, value := range doc {
			if key == "items" || key == "item_count" {
				continue
			}
			var decoded any
			_ = json.Unmarshal(value, &decoded)
			out[key] = decoded
		}
		out["item_count"] = len(filtered)
		out["items"] = filtered
		writeJSON(w, http.StatusOK, out)
	}
}

func passthrough(w http.ResponseWriter, doc map[string]json.RawMessage) {
	out := make(map[string]any, len(doc))
	for key, value := range doc {
		var decoded any
		_ = json.Unmarshal(value, &decoded)
		out[key] = decoded
	}
	writeJSON(w, http.StatusOK, out)
}

func filterFeedItems(items []map[string]any, r *http.Request) []map[string]any {
	q := r.URL.Query()
	sourceID := q.Get("source_id")
	sourceIDs := splitList(q.Get("source_ids"))
	sourceName := q.Get("source_name")
	sourceNames := splitList(q.Get("source_names"))
	keyword := strings.ToLower(q.Get("keyword"))
	dateFrom := q.Get("date_from")
	dateTo := q.Get("date_to")
	limit, _ := strconv.Atoi(q.Get("limit"))

	filtered := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if sourceID != "" && itemSourceID(item) != sourceID {
			continue
		}
		if len(sourceIDs) > 0 && !containsString(sourceIDs, itemSourceID(item)) {
			continue
		}
		if sourceName != "" && !fuzzyNameMatch(itemSourceName(item), sourceName) {
			continue
		}
		if len(sourceNames) > 0 && !anyFuzzyNameMatch(itemSourceName(item), sourceNames) {
			continue
		}
		if keyword != "" && !itemMatchesKeyword(item, keyword) {
			continue
		}
		if date := stringField(item, "date"); date != "" {
			if dateFrom != "" && date < dateFrom {
				continue
			}
			if dateTo != "" && date > dateTo {
				continue
			}
		}
		filtered = append(filtered, item)
		if limit > 0 && len(filtered) == limit {
			break
		}
	}
	return filtered
}

func itemSourceID(item map[string]any) string {
	if id := stringField(item, "source_id"); id != "" {
		return id
	}
	return stringField(item, "sourceId")
}

func itemSourceName(item map[string]any) string {
	if name := stringField(item, "source_name"); name != "" {
		return name
	}
	return stringField(item, "source")
}

// fuzzyNameMatch is the case- and whitespace-insensitive substring match
// used by the source_name filter.
func fuzzyNameMatch(name, query string) bool {
	normalize := func(s string) string {
		return strings.ToLower(strings.Join(strings.Fields(s), ""))
	}
	n, q := normalize(name), normalize(query)
	if q == "" {
		return true
	}
	return n != "" && strings.Contains(n, q)
}

func anyFuzzyNameMatch(name string, queries []string) bool {
	for _, q := range queries {
		if fuzzyNameMatch(name, q) {
			return true
		}
	}
	return false
}

func itemMatchesKeyword(item map[string]any, keyword string) bool {
	for _, field := range []string{"title", "name", "summary", "content"} {
		if strings.Contains(strings.ToLower(stringField(item, field)), keyword) {
			return true
		}
	}
	return false
}

func stringField(item map[string]any, key string) string {
	if v, ok := item[key].(string); ok {
		return v
	}
	return ""
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func containsString(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
