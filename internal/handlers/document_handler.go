package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/lijuniwawanah-jpg/docvault/internal/auth"
	"github.com/lijuniwawanah-jpg/docvault/internal/config"
	"github.com/lijuniwawanah-jpg/docvault/internal/database/models"
	"github.com/lijuniwawanah-jpg/docvault/internal/documents"
	"github.com/lijuniwawanah-jpg/docvault/internal/httpjson"
	"github.com/lijuniwawanah-jpg/docvault/internal/logger"
)

type DocumentHandler struct {
	svc *documents.Service
	cfg *config.Config
}

func NewDocumentHandler(svc *documents.Service, cfg *config.Config) *DocumentHandler {
	return &DocumentHandler{svc: svc, cfg: cfg}
}

// parseIDParam reads an unsigned integer from the named query parameter.
func parseIDParam(r *http.Request, name string) (uint, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, fmt.Errorf("missing %s parameter", name)
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}
	return uint(id), nil
}

func documentBody(doc *models.Document) map[string]any {
	return map[string]any{
		"id":          doc.ID,
		"file_name":   doc.OriginalName,
		"file_path":   doc.StoragePath,
		"mime_type":   doc.MimeType,
		"file_size":   doc.FileSize,
		"description": doc.Description,
		"metadata":    doc.Metadata.Data(),
		"uploaded_at": doc.CreatedAt,
	}
}

func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)

	// Reject oversized requests before buffering any multipart parts
	if r.ContentLength > h.cfg.MaxUploadSize {
		httpjson.Error(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds maximum upload size of %d bytes", h.cfg.MaxUploadSize))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			httpjson.Error(w, http.StatusBadRequest, "no file provided")
			return
		}
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			httpjson.Error(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("file exceeds maximum upload size of %d bytes", h.cfg.MaxUploadSize))
			return
		}
		httpjson.Error(w, http.StatusBadRequest, "invalid upload request")
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	doc, err := h.svc.Upload(r.Context(), user, file, documents.UploadInput{
		OriginalName: header.Filename,
		MimeType:     mimeType,
		Description:  r.FormValue("description"),
	})
	if err != nil {
		if errors.Is(err, documents.ErrQuotaExceeded) {
			httpjson.Error(w, http.StatusRequestEntityTooLarge, "storage quota exceeded")
			return
		}
		logger.Error("upload failed", "user_id", user.ID, "error", err)
		httpjson.Error(w, http.StatusInternalServerError, "failed to store document")
		return
	}

	httpjson.OK(w, http.StatusCreated, map[string]any{
		"document_id": doc.ID,
		"file_name":   doc.OriginalName,
		"file_path":   doc.StoragePath,
	})
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)

	docs, err := h.svc.List(user.ID)
	if err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "failed to list documents")
		return
	}

	items := make([]map[string]any, 0, len(docs))
	for i := range docs {
		items = append(items, documentBody(&docs[i]))
	}
	httpjson.OK(w, http.StatusOK, map[string]any{"documents": items})
}

func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)

	docID, err := parseIDParam(r, "id")
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, reader, err := h.svc.Open(r.Context(), user.ID, docID)
	if err != nil {
		h.writeOpenError(w, err)
		return
	}
	defer reader.Close()

	writeAttachment(w, doc, reader)
}

type deleteRequest struct {
	ID uint `json:"id"`
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)

	// Accept the id either as ?id= or in a JSON body
	docID, err := parseIDParam(r, "id")
	if err != nil {
		var req deleteRequest
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil || req.ID == 0 {
			httpjson.Error(w, http.StatusBadRequest, "missing document id")
			return
		}
		docID = req.ID
	}

	if err := h.svc.Trash(r.Context(), user.ID, docID); err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			httpjson.Error(w, http.StatusNotFound, "document not found")
			return
		}
		httpjson.Error(w, http.StatusInternalServerError, "failed to move document to trash")
		return
	}

	httpjson.OK(w, http.StatusOK, map[string]any{"message": "document moved to trash"})
}

func (h *DocumentHandler) writeOpenError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, documents.ErrNotFound):
		httpjson.Error(w, http.StatusNotFound, "document not found")
	case errors.Is(err, documents.ErrBlobMissing):
		httpjson.Error(w, http.StatusNotFound, "document file not found in storage")
	default:
		httpjson.Error(w, http.StatusInternalServerError, "failed to open document")
	}
}

// writeAttachment streams a document blob as a file download. The plain
// filename= form is a fallback for old clients; filename* carries the
// RFC 5987 encoded name.
func writeAttachment(w http.ResponseWriter, doc *models.Document, reader io.Reader) {
	fallback := strings.ReplaceAll(doc.OriginalName, `"`, `\"`)
	encoded := url.PathEscape(doc.OriginalName)

	w.Header().Set("Content-Type", doc.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(doc.FileSize, 10))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, fallback, encoded))
	w.Header().Set("X-Content-Type-Options", "nosniff")

	if _, err := io.Copy(w, reader); err != nil {
		logger.Warn("download stream interrupted", "document_id", doc.ID, "error", err)
	}
}
