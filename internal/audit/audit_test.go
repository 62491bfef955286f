package audit

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite" // registers the pure-Go "sqlite" driver

	"github.com/lijuniwawanah-jpg/docvault/internal/database/models"
)

func newTestRecorder(t *testing.T) (*Recorder, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.AuditLog{}); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return NewRecorder(db), db
}

func TestRecordAndRecent(t *testing.T) {
	recorder, _ := newTestRecorder(t)

	userID := uint(7)
	recorder.Record(&userID, "login", map[string]string{"by": "otp", "phone": "+447700900000"})
	recorder.Record(nil, "request_otp", map[string]string{"phone": "+447700900000"})

	entries, err := recorder.Recent(10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Recent returned %d entries, want 2", len(entries))
	}

	// Newest first
	if entries[0].Action != "request_otp" {
		t.Errorf("entries[0].Action = %q, want request_otp (newest first)", entries[0].Action)
	}
	if entries[1].UserID == nil || *entries[1].UserID != userID {
		t.Error("login entry should carry the user id")
	}
	if entries[1].Detail.Data()["by"] != "otp" {
		t.Errorf("detail = %v, want by=otp", entries[1].Detail.Data())
	}
}

func TestRecentLimitClamped(t *testing.T) {
	recorder, _ := newTestRecorder(t)

	for i := 0; i < 60; i++ {
		recorder.Record(nil, "noise", nil)
	}

	// Zero and negative fall back to the default of 50
	entries, err := recorder.Recent(0)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 50 {
		t.Errorf("Recent(0) returned %d entries, want default 50", len(entries))
	}

	entries, err = recorder.Recent(-5)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 50 {
		t.Errorf("Recent(-5) returned %d entries, want default 50", len(entries))
	}
}

func TestRecordSurvivesMissingTable(t *testing.T) {
	recorder, db := newTestRecorder(t)

	if err := db.Migrator().DropTable(&models.AuditLog{}); err != nil {
		t.Fatalf("failed to drop table: %v", err)
	}

	// Best-effort: a failed write must not panic or error the caller
	recorder.Record(nil, "orphan", map[string]string{"k": "v"})
}
