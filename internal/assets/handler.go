package assets

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter serves GET /assets/* for URLs issued by signer.
func NewRouter(store Store, signer *Signer, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	h := &handler{store: store, signer: signer, log: log}
	r.Get("/assets/*", h.serve)
	return r
}

type handler struct {
	store  Store
	signer *Signer
	log    *slog.Logger
}

func (h *handler) serve(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	q := r.URL.Query()

	switch err := h.signer.Verify(key, q.Get("exp"), q.Get("sig")); {
	case errors.Is(err, ErrExpired):
		http.Error(w, "link expired", http.StatusGone)
		return
	case err != nil:
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	rc, err := h.store.Open(r.Context(), key)
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidKey):
		http.NotFound(w, r)
		return
	case err != nil:
		h.log.Error("open asset failed", "key", key, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	ct := mime.TypeByExtension(path.Ext(key))
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "private, max-age=300")
	if _, err := io.Copy(w, rc); err != nil {
		h.log.Warn("asset write aborted", "key", key, "err", err)
	}
}
