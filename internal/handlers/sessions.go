package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/lehigh-university-libraries/productphoto/internal/barcode"
	"github.com/lehigh-university-libraries/productphoto/internal/pipeline"
)

// HandleStartSession opens a session for a product code, replacing any active one.
func (h *Handler) HandleStartSession(w http.ResponseWriter, r *http.Request) {
	var request struct {
		ProductCode string `json:"product_code"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	code, err := barcode.Manual(request.ProductCode)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if previous, ok := h.sessions.Current(); ok {
		slog.Info("Discarding previous session", "session_id", previous.Session.ID, "product_code", previous.Session.ProductCode)
	}

	active, err := h.sessions.Start(code)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	slog.Info("Session started", "session_id", active.Session.ID, "product_code", code)
	h.writeJSON(w, http.StatusCreated, active.Pipeline.Status())
}

func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	active, ok := h.getSessionOrError(w)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, active.Pipeline.Status())
}

func (h *Handler) HandleFinishSession(w http.ResponseWriter, r *http.Request) {
	active, ok := h.sessions.Finish()
	if !ok {
		h.writeError(w, "No active session", http.StatusNotFound)
		return
	}

	slog.Info("Session finished", "session_id", active.Session.ID, "product_code", active.Session.ProductCode)
	h.writeJSON(w, http.StatusOK, active.Pipeline.Status())
}

// HandleAddPhoto stores a captured frame and appends it to the session queue.
func (h *Handler) HandleAddPhoto(w http.ResponseWriter, r *http.Request) {
	active, ok := h.getSessionOrError(w)
	if !ok {
		return
	}

	fileData, header, _, err := readImageFile(w, r)
	if err != nil {
		h.writeError(w, err.Error(), uploadStatus(err))
		return
	}

	capturePath, err := h.saveCapture(fileData, header.Filename)
	if err != nil {
		if errors.Is(err, pipeline.ErrCaptureFailure) {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	photo, err := active.Pipeline.Enqueue(capturePath)
	if err != nil {
		h.writePipelineError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, photo)
}

// HandleRemovePhoto deletes the photo at a 0-based index.
func (h *Handler) HandleRemovePhoto(w http.ResponseWriter, r *http.Request) {
	active, ok := h.getSessionOrError(w)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.writeError(w, "Invalid photo index", http.StatusBadRequest)
		return
	}

	if err := active.Pipeline.Remove(index); err != nil {
		h.writePipelineError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, active.Pipeline.Status())
}

// HandleRun starts processing the queue in the background and returns at once.
// Progress is read back through HandleGetSession.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	active, ok := h.getSessionOrError(w)
	if !ok {
		return
	}

	if err := active.Pipeline.Start(context.Background()); err != nil {
		h.writePipelineError(w, err)
		return
	}

	slog.Info("Processing started", "session_id", active.Session.ID, "product_code", active.Session.ProductCode)
	h.writeJSON(w, http.StatusAccepted, map[string]any{
		"session_id": active.Session.ID,
		"message":    "Processing started",
		"photos":     active.Pipeline.Status().Total,
	})
}

func (h *Handler) writePipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrRunning), errors.Is(err, pipeline.ErrProcessed):
		h.writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, pipeline.ErrOutOfRange):
		h.writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, pipeline.ErrNoPhotos), errors.Is(err, pipeline.ErrInvalidPhoto):
		h.writeError(w, err.Error(), http.StatusBadRequest)
	default:
		h.writeError(w, err.Error(), http.StatusInternalServerError)
	}
}
