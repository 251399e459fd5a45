package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"picturehub/internal/storage"
)

// ObjectHandler serves stored objects when the object store has no public
// endpoint of its own, e.g. the local backend.
type ObjectHandler struct {
	log   *zap.Logger
	store storage.Storage
}

func NewObjectHandler(log *zap.Logger, store storage.Storage) *ObjectHandler {
	return &ObjectHandler{log: log, store: store}
}

func (h *ObjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if key == "" {
		http.NotFound(w, r)
		return
	}

	body, err := h.store.GetObject(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.log.Error("failed to read object", zap.String("key", key), zap.Error(err))
		http.Error(w, "failed to read object", http.StatusInternalServerError)
		return
	}
	defer body.Close()

	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := io.Copy(w, body); err != nil {
		h.log.Debug("object copy interrupted", zap.String("key", key), zap.Error(err))
	}
}
