package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/lijuniwawanah-jpg/docvault/internal/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrOTPNotFound means no challenge exists for the phone number.
	ErrOTPNotFound = errors.New("no otp challenge for this phone")
	// ErrOTPExpired means the challenge exists but its validity window has passed.
	ErrOTPExpired = errors.New("otp challenge expired")
	// ErrOTPInvalidCode means the submitted code does not match the challenge.
	ErrOTPInvalidCode = errors.New("otp code mismatch")
)

const otpDigits = 6

// GenerateOTPCode returns a zero-padded numeric code from a
// cryptographically strong random source.
func GenerateOTPCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < otpDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n), nil
}

// RequestOTP creates a challenge for the phone number, replacing any prior
// challenge for the same phone. At most one challenge is live per phone.
func RequestOTP(db *gorm.DB, phone string, ttl time.Duration) (*models.OTPChallenge, error) {
	code, err := GenerateOTPCode()
	if err != nil {
		return nil, err
	}

	challenge := models.OTPChallenge{
		Phone:     phone,
		Code:      code,
		ExpiresAt: time.Now().Add(ttl),
	}

	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "phone"}},
		DoUpdates: clause.AssignmentColumns([]string{"code", "expires_at", "created_at"}),
	}).Create(&challenge).Error
	if err != nil {
		return nil, err
	}

	return &challenge, nil
}

// VerifyOTP checks a submitted code against the live challenge for the
// phone. Expiry is checked before the code so a stale challenge never
// reveals whether the code would have matched. The challenge is left in
// place; callers consume it with ConsumeOTP once login has fully succeeded,
// so a failure after verification does not burn the code.
func VerifyOTP(db *gorm.DB, phone, code string) error {
	var challenge models.OTPChallenge
	if err := db.Where("phone = ?", phone).First(&challenge).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOTPNotFound
		}
		return err
	}

	if time.Now().After(challenge.ExpiresAt) {
		return ErrOTPExpired
	}

	if challenge.Code != code {
		return ErrOTPInvalidCode
	}

	return nil
}

// ConsumeOTP removes the live challenge for the phone. Removing an already
// consumed challenge is not an error.
func ConsumeOTP(db *gorm.DB, phone string) error {
	return db.Where("phone = ?", phone).Delete(&models.OTPChallenge{}).Error
}
