package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/keyfinger/internal/store"
)

// AttributionHandler serves the attribution history.
type AttributionHandler struct {
	store *store.Store
}

// NewAttributionHandler creates an AttributionHandler with the given store.
func NewAttributionHandler(s *store.Store) *AttributionHandler {
	return &AttributionHandler{store: s}
}

type listAttributionsResponse struct {
	Attributions []*store.Attribution `json:"attributions"`
}

// ServeHTTP routes /api/attributions, /api/attributions/stats and
// /api/attributions/{id}.
func (h *AttributionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/attributions")
	path = strings.TrimPrefix(path, "/")

	switch path {
	case "":
		h.list(w, r)
	case "stats":
		h.stats(w, r)
	default:
		h.get(w, r, path)
	}
}

// list handles GET /api/attributions?limit=N.
func (h *AttributionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	rows, err := h.store.Attributions().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list attributions")
		return
	}
	if rows == nil {
		rows = []*store.Attribution{}
	}

	writeJSON(w, http.StatusOK, listAttributionsResponse{Attributions: rows})
}

// stats handles GET /api/attributions/stats.
func (h *AttributionHandler) stats(w http.ResponseWriter, r *http.Request) {
	s, err := h.store.Attributions().Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// get handles GET /api/attributions/{id}.
func (h *AttributionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	a, err := h.store.Attributions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Attribution not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get attribution")
		return
	}
	writeJSON(w, http.StatusOK, a)
}
