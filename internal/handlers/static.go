package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HandleStatic serves stored product images under /uploads/products/.
func (h *Handler) HandleStatic(w http.ResponseWriter, r *http.Request) {
	path, err := h.products.Path(chi.URLParam(r, "filename"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}
