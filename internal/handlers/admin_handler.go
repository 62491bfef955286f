package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/lijuniwawanah-jpg/docvault/internal/audit"
	"github.com/lijuniwawanah-jpg/docvault/internal/database/models"
	"github.com/lijuniwawanah-jpg/docvault/internal/httpjson"
	"github.com/lijuniwawanah-jpg/docvault/internal/share"
)

type AdminHandler struct {
	db     *gorm.DB
	issuer *share.Issuer
	audit  *audit.Recorder
}

func NewAdminHandler(db *gorm.DB, issuer *share.Issuer, recorder *audit.Recorder) *AdminHandler {
	return &AdminHandler{db: db, issuer: issuer, audit: recorder}
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var userCount, docCount, trashCount int64
	var storageUsed int64

	if err := h.db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "failed to gather stats")
		return
	}
	if err := h.db.Model(&models.Document{}).Count(&docCount).Error; err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "failed to gather stats")
		return
	}
	if err := h.db.Model(&models.TrashedDocument{}).Count(&trashCount).Error; err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "failed to gather stats")
		return
	}
	// COALESCE so an empty table yields 0 instead of NULL
	if err := h.db.Model(&models.Document{}).
		Select("COALESCE(SUM(file_size), 0)").Scan(&storageUsed).Error; err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "failed to gather stats")
		return
	}

	activeShares, err := h.issuer.CountActive()
	if err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "failed to gather stats")
		return
	}

	httpjson.OK(w, http.StatusOK, map[string]any{
		"users":              userCount,
		"documents":          docCount,
		"trashed_documents":  trashCount,
		"storage_used_bytes": storageUsed,
		"active_share_links": activeShares,
	})
}

func (h *AdminHandler) RecentLogs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	entries, err := h.audit.Recent(limit)
	if err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "failed to load logs")
		return
	}

	logs := make([]map[string]any, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		logs = append(logs, map[string]any{
			"id":         e.ID,
			"user_id":    e.UserID,
			"action":     e.Action,
			"detail":     e.Detail.Data(),
			"created_at": e.CreatedAt,
		})
	}
	httpjson.OK(w, http.StatusOK, map[string]any{"logs": logs})
}

// escapeSQLLike escapes LIKE wildcards in user-supplied search input.
func escapeSQLLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func (h *AdminHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		httpjson.Error(w, http.StatusBadRequest, "missing q parameter")
		return
	}

	pattern := "%" + escapeSQLLike(query) + "%"

	// ESCAPE is spelled out because SQLite has no default escape character
	var users []models.User
	if err := h.db.
		Where(`full_name LIKE ? ESCAPE '\' OR email LIKE ? ESCAPE '\' OR phone LIKE ? ESCAPE '\'`,
			pattern, pattern, pattern).
		Limit(50).Find(&users).Error; err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "search failed")
		return
	}

	var docs []models.Document
	if err := h.db.
		Where(`original_name LIKE ? ESCAPE '\'`, pattern).
		Limit(50).Find(&docs).Error; err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "search failed")
		return
	}

	userResults := make([]map[string]any, 0, len(users))
	for i := range users {
		userResults = append(userResults, userBody(&users[i]))
	}
	docResults := make([]map[string]any, 0, len(docs))
	for i := range docs {
		d := &docs[i]
		body := documentBody(d)
		body["user_id"] = d.UserID
		docResults = append(docResults, body)
	}

	httpjson.OK(w, http.StatusOK, map[string]any{
		"users":     userResults,
		"documents": docResults,
	})
}
