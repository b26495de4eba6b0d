package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/logger"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/models"

	"gorm.io/gorm"
)

type LogsResponse struct {
	Logs    []models.LogEntry `json:"logs"`
	Total   int64             `json:"total"`
	Page    int               `json:"page"`
	PerPage int               `json:"per_page"`
}

func (h *Handler) GetLogs(w http.ResponseWriter, r *http.Request) {
	logs := []models.LogEntry{}
	q := h.db.WithContext(r.Context()).Model(&models.LogEntry{})

	// Pagination
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 50
	}

	// Filters
	if level := r.URL.Query().Get("level"); level != "" {
		q = q.Where("level = ?", level)
	}
	if source := r.URL.Query().Get("source"); source != "" {
		q = q.Where("source = ?", source)
	}
	if userID, err := strconv.ParseUint(r.URL.Query().Get("user_id"), 10, 64); err == nil {
		q = q.Where("user_id = ?", userID)
	}
	if search := r.URL.Query().Get("search"); search != "" {
		q = q.Where("message LIKE ? OR data LIKE ?", "%"+search+"%", "%"+search+"%")
	}

	// Count and Find each get their own copy of the filtered statement
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		fail(w, r, err)
		return
	}

	offset := (page - 1) * perPage
	err := q.Preload("User").Order("created_at DESC").Offset(offset).Limit(perPage).Find(&logs).Error
	if err != nil {
		fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, LogsResponse{
		Logs:    logs,
		Total:   total,
		Page:    page,
		PerPage: perPage,
	})
}

func (h *Handler) GetLogSources(w http.ResponseWriter, r *http.Request) {
	sources := []string{}
	err := h.db.WithContext(r.Context()).Model(&models.LogEntry{}).
		Distinct("source").Where("source != ''").Order("source").Pluck("source", &sources).Error
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sources)
}

type TimelinePoint struct {
	Time  string `json:"time"`
	Count int    `json:"count"`
}

// GetLogTimeline buckets entries by minute, hour or day. "range" limits the
// window to a duration such as "24h"; unparsable values are ignored.
func (h *Handler) GetLogTimeline(w http.ResponseWriter, r *http.Request) {
	var format string
	switch r.URL.Query().Get("interval") {
	case "minute":
		format = "%Y-%m-%d %H:%M"
	case "day":
		format = "%Y-%m-%d"
	default:
		format = "%Y-%m-%d %H:00"
	}

	q := h.db.WithContext(r.Context()).Model(&models.LogEntry{})
	if d, err := time.ParseDuration(r.URL.Query().Get("range")); err == nil && d > 0 {
		q = q.Where("created_at >= ?", time.Now().Add(-d).UTC())
	}

	results := []TimelinePoint{}
	err := q.Select("strftime(?, created_at) as time, count(*) as count", format).
		Group("time").
		Order("time ASC").
		Limit(100).
		Scan(&results).Error
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// BulkDeleteRequest selects entries by id or, with Before set, every entry
// older than that instant.
type BulkDeleteRequest struct {
	IDs    []uint     `json:"ids"`
	Before *time.Time `json:"before,omitempty"`
}

func (h *Handler) DeleteLogs(w http.ResponseWriter, r *http.Request) {
	var req BulkDeleteRequest
	if !decode(w, r, &req) {
		return
	}

	if req.Before != nil {
		n, err := logger.PruneLogs(r.Context(), h.db, *req.Before)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
		return
	}

	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "no ids provided")
		return
	}

	res := h.db.WithContext(r.Context()).Delete(&models.LogEntry{}, req.IDs)
	if res.Error != nil {
		fail(w, r, res.Error)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": res.RowsAffected})
}
