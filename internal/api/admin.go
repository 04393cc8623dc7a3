package api

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"evidencevault/internal/models"
	"evidencevault/internal/util"
)

func (h *Handlers) AuditLog(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	q := r.URL.Query()
	items, total, err := h.svc.ListAudit(r.Context(), identity(r), models.AuditQuery{
		Scope:  strings.ToLower(strings.TrimSpace(q.Get("scope"))),
		Action: q.Get("action"),
		UserID: strings.TrimSpace(q.Get("user_id")),
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]any{"items": items, "page": page, "page_size": pageSize, "total": total})
}

func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context(), identity(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, stats)
}

// maxPage keeps (page-1)*page_size well inside int range.
const maxPage = math.MaxInt32 / 100

// parsePagination reads page and page_size (limit is accepted as an alias),
// clamping page to [1,maxPage] and page_size to [1,100].
func parsePagination(r *http.Request) (int, int) {
	page := 1
	pageSize := 25
	if v := r.URL.Query().Get("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			page = min(p, maxPage)
		}
	}
	v := r.URL.Query().Get("page_size")
	if v == "" {
		v = r.URL.Query().Get("limit")
	}
	if v != "" {
		if ps, err := strconv.Atoi(v); err == nil {
			if ps < 1 {
				ps = 1
			}
			if ps > 100 {
				ps = 100
			}
			pageSize = ps
		}
	}
	return page, pageSize
}
