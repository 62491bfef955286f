// Package share mints and resolves time-limited share links. A link binds
// an opaque token to one document and its owner; presenting the token
// grants download access to that document without authenticating as the
// owner.
package share

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/lijuniwawanah-jpg/docvault/internal/audit"
	"github.com/lijuniwawanah-jpg/docvault/internal/config"
	"github.com/lijuniwawanah-jpg/docvault/internal/database/models"
	"github.com/lijuniwawanah-jpg/docvault/internal/metrics"
)

var (
	// ErrNotFound means no matching link (or document) exists for the caller.
	ErrNotFound = errors.New("share link not found")
	// ErrForbidden means the document exists but belongs to someone else.
	ErrForbidden = errors.New("not the document owner")
	// ErrLinkUnusable means the token matched but the link is inactive or expired.
	ErrLinkUnusable = errors.New("share link expired or deactivated")
)

// Issuer creates and resolves share links.
type Issuer struct {
	db    *gorm.DB
	cfg   *config.Config
	audit *audit.Recorder
}

func NewIssuer(db *gorm.DB, cfg *config.Config, recorder *audit.Recorder) *Issuer {
	return &Issuer{db: db, cfg: cfg, audit: recorder}
}

// generateShareToken returns a 24-byte random token, hex-encoded.
func generateShareToken() (string, error) {
	bytes := make([]byte, 24)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// CreateLink mints a share link for a document the caller owns. ttlMinutes
// <= 0 falls back to the configured default. The returned URL embeds the
// document id and token and is directly downloadable.
func (i *Issuer) CreateLink(userID, docID uint, ttlMinutes int) (*models.ShareLink, string, error) {
	var doc models.Document
	if err := i.db.First(&doc, docID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrNotFound
		}
		return nil, "", err
	}
	if doc.UserID != userID {
		return nil, "", ErrForbidden
	}

	token, err := generateShareToken()
	if err != nil {
		return nil, "", err
	}

	if ttlMinutes <= 0 {
		ttlMinutes = i.cfg.ShareDefaultTTLMin
	}
	expiresAt := time.Now().Add(time.Duration(ttlMinutes) * time.Minute)

	link := models.ShareLink{
		DocumentID: docID,
		UserID:     userID,
		Token:      token,
		ExpiresAt:  &expiresAt,
		IsActive:   true,
	}
	if err := i.db.Create(&link).Error; err != nil {
		return nil, "", err
	}

	metrics.ShareLinksCreated.Inc()
	i.audit.Record(&userID, "create_share", map[string]string{
		"document_id":    strconv.FormatUint(uint64(docID), 10),
		"expires_in_min": strconv.Itoa(ttlMinutes),
	})

	return &link, i.DownloadURL(&link), nil
}

// DownloadURL builds the public download URL for a link.
func (i *Issuer) DownloadURL(link *models.ShareLink) string {
	return fmt.Sprintf("%s/share/download?doc_id=%d&token=%s",
		i.cfg.BaseURL, link.DocumentID, url.QueryEscape(link.Token))
}

// GetLink fetches a link by id, scoped to its owner.
func (i *Issuer) GetLink(userID, linkID uint) (*models.ShareLink, error) {
	var link models.ShareLink
	err := i.db.Where("id = ? AND user_id = ?", linkID, userID).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &link, nil
}

// ListLinks returns the owner's links for a document, newest first.
func (i *Issuer) ListLinks(userID, docID uint) ([]models.ShareLink, error) {
	var links []models.ShareLink
	err := i.db.Where("user_id = ? AND document_id = ?", userID, docID).
		Order("created_at DESC").Find(&links).Error
	return links, err
}

// Resolve authenticates a download attempt: the token must match a link
// for the given document, the link must be active, and its expiry must be
// strictly in the future (a link expiring exactly now is already expired).
func (i *Issuer) Resolve(docID uint, token string) (*models.ShareLink, error) {
	var link models.ShareLink
	err := i.db.Where("document_id = ? AND token = ?", docID, token).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !link.Usable(time.Now()) {
		return nil, ErrLinkUnusable
	}
	return &link, nil
}

// CountActive reports links that still grant access, for admin statistics.
func (i *Issuer) CountActive() (int64, error) {
	var count int64
	err := i.db.Model(&models.ShareLink{}).
		Where("is_active = ? AND (expires_at IS NULL OR expires_at > ?)", true, time.Now()).
		Count(&count).Error
	return count, err
}
