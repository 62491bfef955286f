package share

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite" // registers the pure-Go "sqlite" driver

	"github.com/lijuniwawanah-jpg/docvault/internal/audit"
	"github.com/lijuniwawanah-jpg/docvault/internal/config"
	"github.com/lijuniwawanah-jpg/docvault/internal/database/models"
)

func newTestIssuer(t *testing.T) (*Issuer, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	err = db.AutoMigrate(&models.User{}, &models.Document{}, &models.ShareLink{}, &models.AuditLog{})
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	cfg := &config.Config{
		BaseURL:            "http://localhost:8080",
		ShareDefaultTTLMin: 60,
	}
	return NewIssuer(db, cfg, audit.NewRecorder(db)), db
}

func seedUserAndDoc(t *testing.T, db *gorm.DB, publicID string) (*models.User, *models.Document) {
	t.Helper()

	user := &models.User{PublicID: publicID, FullName: "Owner", Role: "user"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	doc := &models.Document{
		UserID:       user.ID,
		StoredName:   "blob.txt",
		OriginalName: "doc.txt",
		StoragePath:  "blob.txt",
		FileSize:     4,
	}
	if err := db.Create(doc).Error; err != nil {
		t.Fatalf("failed to create document: %v", err)
	}
	return user, doc
}

func TestCreateLink(t *testing.T) {
	issuer, db := newTestIssuer(t)
	user, doc := seedUserAndDoc(t, db, "USHR000001")

	link, downloadURL, err := issuer.CreateLink(user.ID, doc.ID, 30)
	if err != nil {
		t.Fatalf("CreateLink failed: %v", err)
	}

	if len(link.Token) != 48 {
		t.Errorf("token length = %d, want 48 hex chars", len(link.Token))
	}
	if link.ExpiresAt == nil {
		t.Fatal("link should have an expiry")
	}
	until := time.Until(*link.ExpiresAt)
	if until < 29*time.Minute || until > 31*time.Minute {
		t.Errorf("expiry %v from now, want ~30 minutes", until)
	}
	if !strings.Contains(downloadURL, fmt.Sprintf("doc_id=%d", doc.ID)) ||
		!strings.Contains(downloadURL, "token="+link.Token) {
		t.Errorf("download URL %q missing doc_id or token", downloadURL)
	}
	if !strings.HasPrefix(downloadURL, "http://localhost:8080/share/download?") {
		t.Errorf("download URL %q not rooted at base URL", downloadURL)
	}
}

func TestCreateLinkDefaultTTL(t *testing.T) {
	issuer, db := newTestIssuer(t)
	user, doc := seedUserAndDoc(t, db, "USHR000002")

	link, _, err := issuer.CreateLink(user.ID, doc.ID, 0)
	if err != nil {
		t.Fatalf("CreateLink failed: %v", err)
	}

	until := time.Until(*link.ExpiresAt)
	if until < 59*time.Minute || until > 61*time.Minute {
		t.Errorf("expiry %v from now, want the 60 minute default", until)
	}
}

func TestCreateLinkOwnerOnly(t *testing.T) {
	issuer, db := newTestIssuer(t)
	_, doc := seedUserAndDoc(t, db, "USHR000003")

	other := &models.User{PublicID: "USHR000004", FullName: "Intruder", Role: "user"}
	if err := db.Create(other).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	if _, _, err := issuer.CreateLink(other.ID, doc.ID, 30); !errors.Is(err, ErrForbidden) {
		t.Errorf("CreateLink by non-owner = %v, want ErrForbidden", err)
	}
	if _, _, err := issuer.CreateLink(other.ID, 9999, 30); !errors.Is(err, ErrNotFound) {
		t.Errorf("CreateLink for unknown document = %v, want ErrNotFound", err)
	}
}

func TestResolve(t *testing.T) {
	issuer, db := newTestIssuer(t)
	user, doc := seedUserAndDoc(t, db, "USHR000005")

	link, _, err := issuer.CreateLink(user.ID, doc.ID, 30)
	if err != nil {
		t.Fatalf("CreateLink failed: %v", err)
	}

	resolved, err := issuer.Resolve(doc.ID, link.Token)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if resolved.ID != link.ID {
		t.Errorf("Resolve returned link %d, want %d", resolved.ID, link.ID)
	}

	if _, err := issuer.Resolve(doc.ID, "wrong-token"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve with wrong token = %v, want ErrNotFound", err)
	}
	// Token is bound to the document id it was minted for
	if _, err := issuer.Resolve(doc.ID+1, link.Token); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve with wrong doc id = %v, want ErrNotFound", err)
	}
}

func TestResolveExpired(t *testing.T) {
	issuer, db := newTestIssuer(t)
	user, doc := seedUserAndDoc(t, db, "USHR000006")

	link, _, err := issuer.CreateLink(user.ID, doc.ID, 30)
	if err != nil {
		t.Fatalf("CreateLink failed: %v", err)
	}

	past := time.Now().Add(-time.Second)
	if err := db.Model(&models.ShareLink{}).Where("id = ?", link.ID).
		Update("expires_at", past).Error; err != nil {
		t.Fatalf("failed to expire link: %v", err)
	}

	if _, err := issuer.Resolve(doc.ID, link.Token); !errors.Is(err, ErrLinkUnusable) {
		t.Errorf("Resolve of expired link = %v, want ErrLinkUnusable", err)
	}
}

func TestResolveDeactivated(t *testing.T) {
	issuer, db := newTestIssuer(t)
	user, doc := seedUserAndDoc(t, db, "USHR000007")

	link, _, err := issuer.CreateLink(user.ID, doc.ID, 30)
	if err != nil {
		t.Fatalf("CreateLink failed: %v", err)
	}

	if err := db.Model(&models.ShareLink{}).Where("id = ?", link.ID).
		Update("is_active", false).Error; err != nil {
		t.Fatalf("failed to deactivate link: %v", err)
	}

	if _, err := issuer.Resolve(doc.ID, link.Token); !errors.Is(err, ErrLinkUnusable) {
		t.Errorf("Resolve of deactivated link = %v, want ErrLinkUnusable", err)
	}
}

func TestUsableExpiryBoundary(t *testing.T) {
	now := time.Now()

	at := func(ts time.Time) *time.Time { return &ts }
	tests := []struct {
		name string
		link models.ShareLink
		want bool
	}{
		{"future expiry", models.ShareLink{IsActive: true, ExpiresAt: at(now.Add(time.Minute))}, true},
		{"no expiry", models.ShareLink{IsActive: true}, true},
		{"past expiry", models.ShareLink{IsActive: true, ExpiresAt: at(now.Add(-time.Minute))}, false},
		{"expiry exactly now", models.ShareLink{IsActive: true, ExpiresAt: at(now)}, false},
		{"inactive", models.ShareLink{IsActive: false, ExpiresAt: at(now.Add(time.Minute))}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.link.Usable(now); got != tt.want {
				t.Errorf("Usable = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetLinkOwnerScoped(t *testing.T) {
	issuer, db := newTestIssuer(t)
	user, doc := seedUserAndDoc(t, db, "USHR000008")

	link, _, err := issuer.CreateLink(user.ID, doc.ID, 30)
	if err != nil {
		t.Fatalf("CreateLink failed: %v", err)
	}

	got, err := issuer.GetLink(user.ID, link.ID)
	if err != nil {
		t.Fatalf("GetLink failed: %v", err)
	}
	if got.Token != link.Token {
		t.Error("GetLink returned a different link")
	}

	if _, err := issuer.GetLink(user.ID+1, link.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetLink by non-owner = %v, want ErrNotFound", err)
	}
}

func TestCountActive(t *testing.T) {
	issuer, db := newTestIssuer(t)
	user, doc := seedUserAndDoc(t, db, "USHR000009")

	if _, _, err := issuer.CreateLink(user.ID, doc.ID, 30); err != nil {
		t.Fatalf("CreateLink failed: %v", err)
	}

	expired, _, err := issuer.CreateLink(user.ID, doc.ID, 30)
	if err != nil {
		t.Fatalf("CreateLink failed: %v", err)
	}
	db.Model(&models.ShareLink{}).Where("id = ?", expired.ID).
		Update("expires_at", time.Now().Add(-time.Hour))

	inactive, _, err := issuer.CreateLink(user.ID, doc.ID, 30)
	if err != nil {
		t.Fatalf("CreateLink failed: %v", err)
	}
	db.Model(&models.ShareLink{}).Where("id = ?", inactive.ID).
		Update("is_active", false)

	count, err := issuer.CountActive()
	if err != nil {
		t.Fatalf("CountActive failed: %v", err)
	}
	if count != 1 {
		t.Errorf("CountActive = %d, want 1", count)
	}
}
