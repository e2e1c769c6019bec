package handlers

import (
	"errors"
	"net/http"

	"github.com/lehigh-university-libraries/productphoto/internal/barcode"
)

func (h *Handler) HandleScan(w http.ResponseWriter, r *http.Request) {
	if h.scanner == nil {
		h.writeError(w, "Barcode scanning is not configured", http.StatusServiceUnavailable)
		return
	}

	fileData, _, _, err := readImageFile(w, r)
	if err != nil {
		h.writeError(w, err.Error(), uploadStatus(err))
		return
	}

	code, err := h.scanner.Read(r.Context(), fileData)
	if err != nil {
		if errors.Is(err, barcode.ErrScanNotFound) {
			h.writeError(w, "No barcode found, retry or enter the code manually", http.StatusUnprocessableEntity)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"product_code": code,
	})
}
