package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/lijuniwawanah-jpg/docvault/internal/database/models"
	"gorm.io/gorm"
)

// ErrTokenInvalid is returned when a bearer token is unknown or expired.
var ErrTokenInvalid = errors.New("invalid or expired token")

// GenerateToken returns a 32-byte random token, hex-encoded.
func GenerateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// hashToken derives the stored lookup key from a raw token. SHA-256 keeps
// the database free of usable credentials while staying indexable, unlike
// a salted hash.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// CreateToken issues a bearer token for the user and persists its hash.
// The raw token is returned exactly once.
func CreateToken(db *gorm.DB, userID uint, ttl time.Duration) (string, error) {
	token, err := GenerateToken()
	if err != nil {
		return "", err
	}

	record := models.AuthToken{
		UserID:     userID,
		TokenHash:  hashToken(token),
		ExpiresAt:  time.Now().Add(ttl),
		LastUsedAt: time.Now(),
	}

	if err := db.Create(&record).Error; err != nil {
		return "", err
	}

	return token, nil
}

// ValidateToken resolves a raw bearer token to its user. A token is valid
// only strictly before its expiry; a token whose expiry equals the current
// time is already expired. Expired rows are left in place and rejected at
// lookup.
func ValidateToken(db *gorm.DB, token string) (*models.User, error) {
	var record models.AuthToken
	err := db.Where("token_hash = ? AND expires_at > ?", hashToken(token), time.Now()).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}

	db.Model(&record).Update("last_used_at", time.Now())

	var user models.User
	if err := db.First(&user, record.UserID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteToken revokes a bearer token. Unknown tokens are a no-op.
func DeleteToken(db *gorm.DB, token string) error {
	return db.Where("token_hash = ?", hashToken(token)).Delete(&models.AuthToken{}).Error
}
