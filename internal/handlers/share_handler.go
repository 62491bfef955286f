package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lijuniwawanah-jpg/docvault/internal/auth"
	"github.com/lijuniwawanah-jpg/docvault/internal/documents"
	"github.com/lijuniwawanah-jpg/docvault/internal/httpjson"
	"github.com/lijuniwawanah-jpg/docvault/internal/share"
)

type ShareHandler struct {
	issuer *share.Issuer
	docs   *documents.Service
}

func NewShareHandler(issuer *share.Issuer, docs *documents.Service) *ShareHandler {
	return &ShareHandler{issuer: issuer, docs: docs}
}

type CreateShareRequest struct {
	DocID     uint `json:"doc_id"`
	ExpireMin int  `json:"expire_min"`
}

func (h *ShareHandler) CreateLink(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)

	var req CreateShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DocID == 0 {
		httpjson.Error(w, http.StatusBadRequest, "doc_id is required")
		return
	}

	link, downloadURL, err := h.issuer.CreateLink(user.ID, req.DocID, req.ExpireMin)
	if err != nil {
		switch {
		case errors.Is(err, share.ErrNotFound):
			httpjson.Error(w, http.StatusNotFound, "document not found")
		case errors.Is(err, share.ErrForbidden):
			httpjson.Error(w, http.StatusForbidden, "you do not own this document")
		default:
			httpjson.Error(w, http.StatusInternalServerError, "failed to create share link")
		}
		return
	}

	httpjson.OK(w, http.StatusCreated, map[string]any{
		"share_token":  link.Token,
		"expires_at":   link.ExpiresAt,
		"download_url": downloadURL,
	})
}

func (h *ShareHandler) GetLink(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)

	raw := chi.URLParam(r, "id")
	linkID, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid link id")
		return
	}

	link, err := h.issuer.GetLink(user.ID, uint(linkID))
	if err != nil {
		if errors.Is(err, share.ErrNotFound) {
			httpjson.Error(w, http.StatusNotFound, "share link not found")
			return
		}
		httpjson.Error(w, http.StatusInternalServerError, "failed to load share link")
		return
	}

	httpjson.OK(w, http.StatusOK, map[string]any{
		"id":           link.ID,
		"document_id":  link.DocumentID,
		"share_token":  link.Token,
		"expires_at":   link.ExpiresAt,
		"is_active":    link.IsActive,
		"download_url": h.issuer.DownloadURL(link),
	})
}

// SharedDownload is the public endpoint a share link points at. The token
// authorizes access, so no session or ownership check applies here.
func (h *ShareHandler) SharedDownload(w http.ResponseWriter, r *http.Request) {
	docID, err := parseIDParam(r, "doc_id")
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		httpjson.Error(w, http.StatusBadRequest, "missing token parameter")
		return
	}

	if _, err := h.issuer.Resolve(docID, token); err != nil {
		switch {
		case errors.Is(err, share.ErrNotFound):
			httpjson.Error(w, http.StatusNotFound, "share link not found")
		case errors.Is(err, share.ErrLinkUnusable):
			httpjson.Error(w, http.StatusUnauthorized, "share link has expired")
		default:
			httpjson.Error(w, http.StatusInternalServerError, "failed to resolve share link")
		}
		return
	}

	doc, reader, err := h.docs.OpenShared(r.Context(), docID)
	if err != nil {
		switch {
		case errors.Is(err, documents.ErrNotFound):
			httpjson.Error(w, http.StatusNotFound, "document not found")
		case errors.Is(err, documents.ErrBlobMissing):
			httpjson.Error(w, http.StatusNotFound, "document file not found in storage")
		default:
			httpjson.Error(w, http.StatusInternalServerError, "failed to open document")
		}
		return
	}
	defer reader.Close()

	writeAttachment(w, doc, reader)
}
