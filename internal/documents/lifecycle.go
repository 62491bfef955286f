// Package documents owns the document lifecycle state machine:
// active -> trashed -> (restored | purged). Active documents live in the
// documents table, trashed ones as snapshots in trashed_documents; a row is
// in exactly one of the two. Both transitions that touch the pair of tables
// run inside a single transaction.
package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/maruel/natural"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/lijuniwawanah-jpg/docvault/internal/audit"
	"github.com/lijuniwawanah-jpg/docvault/internal/config"
	"github.com/lijuniwawanah-jpg/docvault/internal/database/models"
	"github.com/lijuniwawanah-jpg/docvault/internal/logger"
	"github.com/lijuniwawanah-jpg/docvault/internal/metrics"
	"github.com/lijuniwawanah-jpg/docvault/internal/storage"
)

var (
	// ErrNotFound covers both a missing record and a record owned by
	// someone else; callers cannot distinguish the two.
	ErrNotFound = errors.New("document not found")
	// ErrBlobMissing means metadata exists but the stored bytes are gone.
	ErrBlobMissing = errors.New("stored file missing")
	// ErrQuotaExceeded means the upload would push the owner past their quota.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// Service implements the document lifecycle against a relational metadata
// store and a blob store.
type Service struct {
	db      *gorm.DB
	storage storage.Backend
	cfg     *config.Config
	audit   *audit.Recorder
}

func NewService(db *gorm.DB, cfg *config.Config, backend storage.Backend, recorder *audit.Recorder) *Service {
	return &Service{
		db:      db,
		storage: backend,
		cfg:     cfg,
		audit:   recorder,
	}
}

// UploadInput carries the client-declared attributes of an upload.
type UploadInput struct {
	OriginalName string
	MimeType     string
	Description  string
	Metadata     map[string]string
}

// Upload stores the byte stream and inserts document metadata. The blob is
// written first; if the metadata insert fails the blob is removed again, so
// no orphaned blobs survive a failed upload.
func (s *Service) Upload(ctx context.Context, user *models.User, r io.Reader, in UploadInput) (*models.Document, error) {
	result, err := s.storage.Save(ctx, r, storage.SaveOptions{OriginalFilename: in.OriginalName})
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	if user.StorageUsed+result.Size > user.StorageQuota {
		if delErr := s.storage.Delete(ctx, result.Path); delErr != nil {
			logger.Warn("failed to remove over-quota blob", "path", result.Path, "error", delErr)
		}
		return nil, ErrQuotaExceeded
	}

	doc := models.Document{
		UserID:       user.ID,
		StoredName:   result.Path,
		OriginalName: in.OriginalName,
		StoragePath:  result.Path,
		MimeType:     in.MimeType,
		FileSize:     result.Size,
		Description:  in.Description,
	}
	if in.Metadata != nil {
		doc.Metadata = datatypes.NewJSONType(in.Metadata)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&doc).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", user.ID).
			UpdateColumn("storage_used", gorm.Expr("storage_used + ?", result.Size)).Error
	})
	if err != nil {
		// Compensating action: the metadata insert failed, take the blob
		// back out so nothing is orphaned.
		if delErr := s.storage.Delete(ctx, result.Path); delErr != nil {
			logger.Warn("failed to remove orphaned blob", "path", result.Path, "error", delErr)
		}
		return nil, fmt.Errorf("failed to record document: %w", err)
	}

	user.StorageUsed += result.Size
	metrics.DocumentsUploaded.Inc()
	metrics.StorageUsageBytes.WithLabelValues(strconv.FormatUint(uint64(user.ID), 10)).Set(float64(user.StorageUsed))
	s.audit.Record(&user.ID, "upload", map[string]string{
		"document_id": strconv.FormatUint(uint64(doc.ID), 10),
		"file_name":   doc.OriginalName,
	})

	return &doc, nil
}

// Get fetches an active document by id, scoped to its owner.
func (s *Service) Get(userID, docID uint) (*models.Document, error) {
	var doc models.Document
	err := s.db.Where("id = ? AND user_id = ?", docID, userID).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// GetAny fetches an active document by id regardless of owner. Reserved for
// callers that have already authorized access another way (share links).
func (s *Service) GetAny(docID uint) (*models.Document, error) {
	var doc models.Document
	err := s.db.First(&doc, docID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// List returns the user's active documents in natural name order.
func (s *Service) List(userID uint) ([]models.Document, error) {
	var docs []models.Document
	if err := s.db.Where("user_id = ?", userID).Find(&docs).Error; err != nil {
		return nil, err
	}
	sort.Slice(docs, func(i, j int) bool {
		return natural.Less(strings.ToLower(docs[i].OriginalName), strings.ToLower(docs[j].OriginalName))
	})
	return docs, nil
}

// ListTrash returns the user's trashed documents, most recently trashed first.
func (s *Service) ListTrash(userID uint) ([]models.TrashedDocument, error) {
	var items []models.TrashedDocument
	err := s.db.Where("user_id = ?", userID).Order("trashed_at DESC").Find(&items).Error
	return items, err
}

// Open resolves the blob for an active document and returns a reader. The
// stored path is tried first, then the stored name as a fallback key for
// records migrated from layouts where the two differed.
func (s *Service) Open(ctx context.Context, userID, docID uint) (*models.Document, io.ReadCloser, error) {
	doc, err := s.Get(userID, docID)
	if err != nil {
		return nil, nil, err
	}
	reader, err := s.openBlob(ctx, doc)
	if err != nil {
		return nil, nil, err
	}
	return doc, reader, nil
}

// OpenShared resolves the blob for an active document without an ownership
// check. Callers must have authorized access already (share-link token).
func (s *Service) OpenShared(ctx context.Context, docID uint) (*models.Document, io.ReadCloser, error) {
	doc, err := s.GetAny(docID)
	if err != nil {
		return nil, nil, err
	}
	reader, err := s.openBlob(ctx, doc)
	if err != nil {
		return nil, nil, err
	}
	return doc, reader, nil
}

func (s *Service) openBlob(ctx context.Context, doc *models.Document) (io.ReadCloser, error) {
	for _, key := range blobCandidates(doc.StoragePath, doc.StoredName) {
		reader, err := s.storage.Open(ctx, key)
		if err == nil {
			return reader, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrBlobMissing
}

// blobCandidates lists the keys to try for a document's bytes, in order.
func blobCandidates(storagePath, storedName string) []string {
	if storagePath == storedName || storagePath == "" {
		return []string{storedName}
	}
	return []string{storagePath, storedName}
}

// Trash moves an active document to the trash: the snapshot insert and the
// active-row delete commit together or not at all, so a concurrent restore
// or second delete can never observe the document in both tables.
func (s *Service) Trash(ctx context.Context, userID, docID uint) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var doc models.Document
		if err := tx.Where("id = ? AND user_id = ?", docID, userID).First(&doc).Error; err != nil {
			return err
		}

		snapshot := models.TrashedDocument{
			DocumentID:   doc.ID,
			UserID:       doc.UserID,
			StoredName:   doc.StoredName,
			OriginalName: doc.OriginalName,
			StoragePath:  doc.StoragePath,
			MimeType:     doc.MimeType,
			FileSize:     doc.FileSize,
			Description:  doc.Description,
			TrashedAt:    time.Now(),
		}
		if err := tx.Create(&snapshot).Error; err != nil {
			return err
		}

		// Under READ COMMITTED a concurrent Trash can delete the active row
		// between the First above and this Delete; treating the zero-row
		// delete as not-found rolls back the snapshot insert, otherwise two
		// snapshots for one document id would both commit and a later purge
		// of the stale one would destroy the restored document's blob.
		res := tx.Delete(&doc)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	metrics.DocumentsTrashed.Inc()
	s.audit.Record(&userID, "trash", map[string]string{
		"document_id": strconv.FormatUint(uint64(docID), 10),
	})
	return nil
}

// Restore moves a trashed document back to the active set, preserving the
// original identifier, names, and path. The restore timestamp is fresh.
func (s *Service) Restore(ctx context.Context, userID, docID uint) (*models.Document, error) {
	var doc models.Document
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var snapshot models.TrashedDocument
		if err := tx.Where("document_id = ? AND user_id = ?", docID, userID).First(&snapshot).Error; err != nil {
			return err
		}

		doc = models.Document{
			ID:           snapshot.DocumentID,
			UserID:       snapshot.UserID,
			StoredName:   snapshot.StoredName,
			OriginalName: snapshot.OriginalName,
			StoragePath:  snapshot.StoragePath,
			MimeType:     snapshot.MimeType,
			FileSize:     snapshot.FileSize,
			Description:  snapshot.Description,
		}
		if err := tx.Create(&doc).Error; err != nil {
			return err
		}

		return tx.Delete(&snapshot).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	metrics.DocumentsRestored.Inc()
	s.audit.Record(&userID, "restore", map[string]string{
		"document_id": strconv.FormatUint(uint64(docID), 10),
	})
	return &doc, nil
}

// Purge permanently removes a trashed document: blob first (absence is not
// an error), then the snapshot row, then the owner's usage accounting.
func (s *Service) Purge(ctx context.Context, userID, docID uint) error {
	var snapshot models.TrashedDocument
	err := s.db.Where("document_id = ? AND user_id = ?", docID, userID).First(&snapshot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := s.purgeSnapshot(ctx, &snapshot); err != nil {
		return err
	}

	metrics.DocumentsPurged.WithLabelValues("user").Inc()
	s.audit.Record(&userID, "purge", map[string]string{
		"document_id": strconv.FormatUint(uint64(docID), 10),
	})
	return nil
}

// EmptyTrash purges every trashed document the user owns and returns how
// many were removed. A failure on one row does not stop the rest.
func (s *Service) EmptyTrash(ctx context.Context, userID uint) (int, error) {
	snapshots, err := s.ListTrash(userID)
	if err != nil {
		return 0, err
	}

	purged := 0
	for i := range snapshots {
		if err := s.purgeSnapshot(ctx, &snapshots[i]); err != nil {
			logger.Error("failed to purge trashed document", "document_id", snapshots[i].DocumentID, "error", err)
			continue
		}
		metrics.DocumentsPurged.WithLabelValues("user").Inc()
		purged++
	}

	s.audit.Record(&userID, "empty_trash", map[string]string{
		"purged": strconv.Itoa(purged),
	})
	return purged, nil
}

// Sweep purges every trashed document older than the retention window,
// across all users. It is a maintenance operation: no owner check, and a
// failure on one row does not abort the rest. Returns the purge count.
func (s *Service) Sweep(ctx context.Context) int {
	if s.cfg.TrashRetentionDays <= 0 {
		return 0
	}

	cutoff := time.Now().Add(-time.Duration(s.cfg.TrashRetentionDays) * 24 * time.Hour)

	var expired []models.TrashedDocument
	if err := s.db.Where("trashed_at < ?", cutoff).Find(&expired).Error; err != nil {
		logger.Error("trash sweep: failed to list expired documents", "error", err)
		return 0
	}

	purged := 0
	for i := range expired {
		if err := s.purgeSnapshot(ctx, &expired[i]); err != nil {
			logger.Error("trash sweep: failed to purge document", "document_id", expired[i].DocumentID, "error", err)
			continue
		}
		metrics.DocumentsPurged.WithLabelValues("sweep").Inc()
		purged++
	}

	if purged > 0 {
		logger.Info("trash sweep complete", "purged", purged)
	}
	return purged
}

// purgeSnapshot removes the blob (double-delete tolerant) and then the
// snapshot row plus usage accounting in one transaction.
func (s *Service) purgeSnapshot(ctx context.Context, snapshot *models.TrashedDocument) error {
	if err := s.storage.Delete(ctx, snapshot.StoragePath); err != nil {
		return fmt.Errorf("failed to delete blob: %w", err)
	}

	var remaining int64
	accounted := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", snapshot.ID).Delete(&models.TrashedDocument{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race to a concurrent purge; nothing left to account for.
			return nil
		}
		if err := tx.Model(&models.User{}).Where("id = ?", snapshot.UserID).
			UpdateColumn("storage_used",
				gorm.Expr("CASE WHEN storage_used >= ? THEN storage_used - ? ELSE 0 END",
					snapshot.FileSize, snapshot.FileSize)).Error; err != nil {
			return err
		}
		accounted = true
		return tx.Model(&models.User{}).Select("storage_used").
			Where("id = ?", snapshot.UserID).Scan(&remaining).Error
	})
	if err != nil {
		return err
	}
	if accounted {
		metrics.StorageUsageBytes.WithLabelValues(strconv.FormatUint(uint64(snapshot.UserID), 10)).Set(float64(remaining))
	}
	return nil
}
