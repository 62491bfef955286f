package auth

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite" // registers the pure-Go "sqlite" driver

	"github.com/lijuniwawanah-jpg/docvault/internal/database/models"
)

// testDB opens a fresh in-memory database named after the test, so tests
// sharing this process never see each other's data.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.AuthToken{},
		&models.OTPChallenge{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

func createTestUser(t *testing.T, db *gorm.DB, publicID string) *models.User {
	t.Helper()

	email := publicID + "@example.com"
	user := &models.User{
		PublicID: publicID,
		FullName: "Test User",
		Email:    &email,
		Role:     "user",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func TestGenerateToken(t *testing.T) {
	t1, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	t2, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if len(t1) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(t1))
	}
	if t1 == t2 {
		t.Error("two generated tokens should differ")
	}
}

func TestCreateAndValidateToken(t *testing.T) {
	db := testDB(t)
	user := createTestUser(t, db, "UTOKEN00001")

	token, err := CreateToken(db, user.ID, time.Hour)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	// The raw token must never be stored
	var record models.AuthToken
	if err := db.First(&record).Error; err != nil {
		t.Fatalf("token record not persisted: %v", err)
	}
	if record.TokenHash == token {
		t.Error("raw token stored instead of its hash")
	}

	got, err := ValidateToken(db, token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("ValidateToken returned user %d, want %d", got.ID, user.ID)
	}
}

func TestValidateTokenUnknown(t *testing.T) {
	db := testDB(t)

	if _, err := ValidateToken(db, "no-such-token"); err != ErrTokenInvalid {
		t.Errorf("ValidateToken(unknown) = %v, want ErrTokenInvalid", err)
	}
}

func TestValidateTokenExpired(t *testing.T) {
	db := testDB(t)
	user := createTestUser(t, db, "UTOKEN00002")

	token, err := CreateToken(db, user.ID, time.Hour)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	// Push the expiry into the past; validity is strictly before expiry
	if err := db.Model(&models.AuthToken{}).
		Where("user_id = ?", user.ID).
		Update("expires_at", time.Now().Add(-time.Second)).Error; err != nil {
		t.Fatalf("failed to expire token: %v", err)
	}

	if _, err := ValidateToken(db, token); err != ErrTokenInvalid {
		t.Errorf("ValidateToken(expired) = %v, want ErrTokenInvalid", err)
	}
}

func TestDeleteToken(t *testing.T) {
	db := testDB(t)
	user := createTestUser(t, db, "UTOKEN00003")

	token, err := CreateToken(db, user.ID, time.Hour)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	if err := DeleteToken(db, token); err != nil {
		t.Fatalf("DeleteToken failed: %v", err)
	}

	if _, err := ValidateToken(db, token); err != ErrTokenInvalid {
		t.Errorf("token should be invalid after deletion, got %v", err)
	}

	// Deleting again is a no-op
	if err := DeleteToken(db, token); err != nil {
		t.Errorf("DeleteToken on revoked token should be a no-op, got %v", err)
	}
}
