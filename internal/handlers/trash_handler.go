package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/lijuniwawanah-jpg/docvault/internal/auth"
	"github.com/lijuniwawanah-jpg/docvault/internal/config"
	"github.com/lijuniwawanah-jpg/docvault/internal/database/models"
	"github.com/lijuniwawanah-jpg/docvault/internal/documents"
	"github.com/lijuniwawanah-jpg/docvault/internal/httpjson"
	"github.com/lijuniwawanah-jpg/docvault/internal/logger"
)

// TrashHandler serves the trash endpoints and owns the background sweep
// worker that purges snapshots past their retention window.
type TrashHandler struct {
	svc *documents.Service
	cfg *config.Config

	stopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewTrashHandler(svc *documents.Service, cfg *config.Config) *TrashHandler {
	h := &TrashHandler{
		svc:      svc,
		cfg:      cfg,
		stopChan: make(chan struct{}),
	}

	h.wg.Add(1)
	go h.sweepWorker()

	return h
}

func (h *TrashHandler) sweepWorker() {
	defer h.wg.Done()

	interval := time.Duration(h.cfg.TrashSweepIntervalMin) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Tests construct and tear the handler down quickly; skipping the
	// startup sweep keeps them deterministic.
	if h.cfg.Env != "test" {
		h.runSweep()
	}

	for {
		select {
		case <-ticker.C:
			h.runSweep()
		case <-h.stopChan:
			return
		}
	}
}

func (h *TrashHandler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	purged := h.svc.Sweep(ctx)
	if purged > 0 {
		logger.Info("trash sweep purged expired documents", "count", purged)
	}
}

// Shutdown stops the sweep worker and waits for an in-flight sweep to finish.
func (h *TrashHandler) Shutdown() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
	})
	h.wg.Wait()
}

func trashedBody(item *models.TrashedDocument) map[string]any {
	return map[string]any{
		"id":          item.DocumentID,
		"file_name":   item.OriginalName,
		"file_size":   item.FileSize,
		"mime_type":   item.MimeType,
		"description": item.Description,
		"trashed_at":  item.TrashedAt,
	}
}

func (h *TrashHandler) ListTrash(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)

	items, err := h.svc.ListTrash(user.ID)
	if err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "failed to list trash")
		return
	}

	body := make([]map[string]any, 0, len(items))
	for i := range items {
		body = append(body, trashedBody(&items[i]))
	}
	httpjson.OK(w, http.StatusOK, map[string]any{"documents": body})
}

func (h *TrashHandler) Restore(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)

	docID, err := parseIDParam(r, "id")
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.svc.Restore(r.Context(), user.ID, docID)
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			httpjson.Error(w, http.StatusNotFound, "document not found in trash")
			return
		}
		httpjson.Error(w, http.StatusInternalServerError, "failed to restore document")
		return
	}

	httpjson.OK(w, http.StatusOK, map[string]any{
		"document_id": doc.ID,
		"file_name":   doc.OriginalName,
	})
}

func (h *TrashHandler) DeleteForever(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)

	docID, err := parseIDParam(r, "id")
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Purge(r.Context(), user.ID, docID); err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			httpjson.Error(w, http.StatusNotFound, "document not found in trash")
			return
		}
		httpjson.Error(w, http.StatusInternalServerError, "failed to delete document")
		return
	}

	httpjson.OK(w, http.StatusOK, map[string]any{"message": "document permanently deleted"})
}

func (h *TrashHandler) EmptyTrash(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)

	purged, err := h.svc.EmptyTrash(r.Context(), user.ID)
	if err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "failed to empty trash")
		return
	}

	httpjson.OK(w, http.StatusOK, map[string]any{"purged": purged})
}
