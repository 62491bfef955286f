package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Role is the closed set of account roles. The database stores the raw
// role string for compatibility with records created by older deployments
// ("admin", "Administrator", "1", ...); ParseRole resolves it once at the
// data-access boundary.
type Role int

const (
	RoleUser Role = iota
	RoleAdmin
)

// ParseRole maps a stored role string onto the Role enum. The admin
// allow-set is compared case-insensitively; anything else is a regular user.
func ParseRole(raw string) Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin", "administrator", "1":
		return RoleAdmin
	default:
		return RoleUser
	}
}

type User struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	PublicID     string  `gorm:"uniqueIndex;not null;size:20" json:"public_id"`
	FullName     string  `gorm:"size:100" json:"full_name"`
	Email        *string `gorm:"uniqueIndex;size:255" json:"email,omitempty"`
	Phone        *string `gorm:"uniqueIndex;size:32" json:"phone,omitempty"`
	PasswordHash *string `gorm:"size:255" json:"-"`
	Role         string  `gorm:"not null;size:32;default:'user'" json:"role"`
	StorageQuota int64   `gorm:"not null;default:10737418240" json:"storage_quota"`
	StorageUsed  int64   `gorm:"not null;default:0" json:"storage_used"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Documents []Document `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// IsAdmin reports whether the stored role resolves to RoleAdmin.
func (u *User) IsAdmin() bool {
	return ParseRole(u.Role) == RoleAdmin
}

// Document is an active (not trashed) uploaded file. Rows live either here
// or in trashed_documents, never both: trashing moves the record across.
type Document struct {
	ID           uint                                  `gorm:"primaryKey" json:"id"`
	UserID       uint                                  `gorm:"not null;index" json:"user_id"`
	StoredName   string                                `gorm:"not null;size:255;index" json:"stored_name"`
	OriginalName string                                `gorm:"not null;size:255" json:"original_name"`
	StoragePath  string                                `gorm:"not null;size:1024" json:"storage_path"`
	MimeType     string                                `gorm:"size:100" json:"mime_type"`
	FileSize     int64                                 `gorm:"not null" json:"file_size"`
	Description  string                                `gorm:"size:500" json:"description,omitempty"`
	Metadata     datatypes.JSONType[map[string]string] `json:"metadata"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

// TrashedDocument is a snapshot of a Document that has been soft-deleted.
// DocumentID preserves the original identifier so a restore can re-insert
// the active row with the same id.
type TrashedDocument struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	DocumentID   uint      `gorm:"not null;index" json:"document_id"`
	UserID       uint      `gorm:"not null;index" json:"user_id"`
	StoredName   string    `gorm:"not null;size:255" json:"stored_name"`
	OriginalName string    `gorm:"not null;size:255" json:"original_name"`
	StoragePath  string    `gorm:"not null;size:1024" json:"storage_path"`
	MimeType     string    `gorm:"size:100" json:"mime_type"`
	FileSize     int64     `gorm:"not null" json:"file_size"`
	Description  string    `gorm:"size:500" json:"description,omitempty"`
	TrashedAt    time.Time `gorm:"not null;index" json:"trashed_at"`
}

// AuthToken is a bearer token issued by the OTP login flow. The raw token is
// never stored; TokenHash is its SHA-256 digest, hex-encoded. Validity is
// checked lazily at lookup time (strictly before ExpiresAt); expired rows
// are not actively purged.
type AuthToken struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	TokenHash  string    `gorm:"uniqueIndex;not null;size:64" json:"-"`
	ExpiresAt  time.Time `gorm:"not null;index" json:"expires_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	CreatedAt  time.Time `json:"created_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

// OTPChallenge is a short-lived login code bound to a phone number. The
// unique index on Phone makes a later request replace the earlier one, so
// at most one challenge is live per phone.
type OTPChallenge struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Phone     string    `gorm:"uniqueIndex;not null;size:32" json:"phone"`
	Code      string    `gorm:"not null;size:6" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// ShareLink grants token-authenticated download access to one document.
// Expired or deactivated links are kept for accounting; they simply stop
// resolving.
type ShareLink struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	DocumentID uint       `gorm:"not null;index" json:"document_id"`
	UserID     uint       `gorm:"not null;index" json:"user_id"`
	Token      string     `gorm:"uniqueIndex;not null;size:64" json:"-"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	IsActive   bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Usable reports whether the link currently grants access: the active flag
// must be set and the expiry, when present, must be strictly in the future.
func (l *ShareLink) Usable(now time.Time) bool {
	if !l.IsActive {
		return false
	}
	return l.ExpiresAt == nil || l.ExpiresAt.After(now)
}

// AuditLog is a best-effort activity record. Writes are allowed to fail
// without affecting the operation being audited.
type AuditLog struct {
	ID        uint                                  `gorm:"primaryKey" json:"id"`
	UserID    *uint                                 `gorm:"index" json:"user_id,omitempty"`
	Action    string                                `gorm:"not null;size:50;index" json:"action"`
	Detail    datatypes.JSONType[map[string]string] `json:"detail"`
	CreatedAt time.Time                             `gorm:"index" json:"created_at"`
}
