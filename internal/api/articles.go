package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Ryder-MHumble/deanagent/internal/intel"
	"github.com/Ryder-MHumble/deanagent/internal/storage"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type articleView struct {
	intel.Article
	IsRead     bool   `json:"is_read,omitempty"`
	Importance string `json:"importance,omitempty"`
}

func (s *Server) listArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dimension := q.Get("dimension")

	var articles []intel.Article
	if dimension != "" {
		articles = intel.LoadArticles(s.store, dimension)
	} else {
		articles = intel.LoadAllArticles(s.store)
	}

	articles = filterArticles(articles, q.Get("source_id"), q.Get("keyword"), q.Get("date_from"), q.Get("date_to"))
	sort.Slice(articles, func(i, j int) bool {
		return articles[i].Timestamp().After(articles[j].Timestamp())
	})

	page, pageSize := pagination(q.Get("page"), q.Get("page_size"))
	total := len(articles)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	annotations := s.store.Annotations()
	views := make([]articleView, 0, end-start)
	for _, a := range articles[start:end] {
		view := articleView{Article: a}
		if ann, ok := annotations[a.URLHash]; ok {
			view.IsRead = ann.IsRead
			view.Importance = ann.Importance
		}
		views = append(views, view)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total":     total,
		"page":      page,
		"page_size": pageSize,
		"items":     views,
	})
}

func (s *Server) listDimensionArticles(w http.ResponseWriter, r *http.Request) {
	dimension := chi.URLParam(r, "dimension")
	q := r.URL.Query()
	q.Set("dimension", dimension)
	r.URL.RawQuery = q.Encode()
	s.listArticles(w, r)
}

func (s *Server) setAnnotation(w http.ResponseWriter, r *http.Request) {
	urlHash := chi.URLParam(r, "url_hash")
	var ann storage.Annotation
	if err := json.NewDecoder(r.Body).Decode(&ann); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := s.store.SetAnnotation(urlHash, ann); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func filterArticles(articles []intel.Article, sourceID, keyword, dateFrom, dateTo string) []intel.Article {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	out := articles[:0]
	for _, a := range articles {
		if sourceID != "" && a.SourceID != sourceID {
			continue
		}
		if keyword != "" &&
			!strings.Contains(strings.ToLower(a.Title), keyword) &&
			!strings.Contains(strings.ToLower(a.Content), keyword) {
			continue
		}
		date := a.Date()
		if dateFrom != "" && date < dateFrom {
			continue
		}
		if dateTo != "" && date > dateTo {
			continue
		}
		out = append(out, a)
	}
	return out
}

func pagination(pageStr, sizeStr string) (page, size int) {
	page, _ = strconv.Atoi(pageStr)
	if page < 1 {
		page = 1
	}
	size, _ = strconv.Atoi(sizeStr)
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}
