package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/keyfinger/internal/calibration"
	"github.com/ayusman/keyfinger/internal/engine"
)

// CalibrationHandler serves stored calibrations.
type CalibrationHandler struct {
	engine *engine.Engine
}

// NewCalibrationHandler creates a CalibrationHandler.
func NewCalibrationHandler(e *engine.Engine) *CalibrationHandler {
	return &CalibrationHandler{engine: e}
}

type listCalibrationsResponse struct {
	Reference    string              `json:"reference"`
	Calibrations []calibration.Entry `json:"calibrations"`
}

// ServeHTTP routes /api/calibrations and /api/calibrations/{key}.
func (h *CalibrationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/api/calibrations")
	key = strings.TrimPrefix(key, "/")

	if key == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, key)
	case http.MethodPut:
		h.put(w, r, key)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// list handles GET /api/calibrations.
func (h *CalibrationHandler) list(w http.ResponseWriter, r *http.Request) {
	entries, err := h.engine.Calibrations()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list calibrations")
		return
	}
	if entries == nil {
		entries = []calibration.Entry{}
	}

	writeJSON(w, http.StatusOK, listCalibrationsResponse{
		Reference:    string(h.engine.Reference()),
		Calibrations: entries,
	})
}

// get handles GET /api/calibrations/{key}.
func (h *CalibrationHandler) get(w http.ResponseWriter, r *http.Request, key string) {
	pos, err := h.engine.Store().Lookup(key)
	if err != nil {
		if errors.Is(err, calibration.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Calibration not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get calibration")
		return
	}

	writeJSON(w, http.StatusOK, calibration.Entry{Key: key, Position: pos})
}

// put handles PUT /api/calibrations/{key} with a {"x":..,"y":..} body.
func (h *CalibrationHandler) put(w http.ResponseWriter, r *http.Request, key string) {
	var pos calibration.Position
	if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := h.engine.Record(key, pos); err != nil {
		if errors.Is(err, calibration.ErrInvalidKey) {
			writeError(w, http.StatusBadRequest, "Invalid key")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to save calibration")
		return
	}

	writeJSON(w, http.StatusOK, calibration.Entry{Key: key, Position: pos})
}
