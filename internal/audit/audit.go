// Package audit records user activity for the admin dashboard. Recording is
// best-effort: a missing table or failed insert downgrades the entry to a
// log line and never fails the operation being audited.
package audit

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/lijuniwawanah-jpg/docvault/internal/database/models"
	"github.com/lijuniwawanah-jpg/docvault/internal/logger"
)

// Recorder writes audit entries to the audit_logs table.
type Recorder struct {
	db *gorm.DB
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// Record stores one activity entry. userID may be nil for anonymous
// actions (e.g. an OTP request before the account exists).
func (r *Recorder) Record(userID *uint, action string, detail map[string]string) {
	entry := models.AuditLog{
		UserID: userID,
		Action: action,
		Detail: datatypes.NewJSONType(detail),
	}
	if err := r.db.Create(&entry).Error; err != nil {
		logger.Warn("audit entry not persisted", "action", action, "error", err)
	}
}

// Recent returns the latest entries, newest first.
func (r *Recorder) Recent(limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var entries []models.AuditLog
	err := r.db.Order("created_at DESC, id DESC").Limit(limit).Find(&entries).Error
	return entries, err
}
