package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/lehigh-university-libraries/productphoto/internal/storage"
)

// Routes wires every endpoint served by `productphoto serve`.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})

	r.Route("/api/upload", func(r chi.Router) {
		r.Post("/", h.HandleUpload)
		r.Get("/list", h.HandleList)
		r.Get("/{filename}", h.HandleFileInfo)
		r.Delete("/{filename}", h.HandleDelete)
	})

	r.Route("/api/session", func(r chi.Router) {
		r.Post("/", h.HandleStartSession)
		r.Get("/", h.HandleGetSession)
		r.Delete("/", h.HandleFinishSession)
		r.Post("/photos", h.HandleAddPhoto)
		r.Delete("/photos/{index}", h.HandleRemovePhoto)
		r.Post("/run", h.HandleRun)
	})

	r.Post("/api/scan", h.HandleScan)
	r.Get(storage.PublicPrefix+"{filename}", h.HandleStatic)

	return r
}
