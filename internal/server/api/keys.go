package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/keyfinger/internal/annotate"
	"github.com/ayusman/keyfinger/internal/attribution"
	"github.com/ayusman/keyfinger/internal/calibration"
	"github.com/ayusman/keyfinger/internal/capture"
	"github.com/ayusman/keyfinger/internal/coach"
	"github.com/ayusman/keyfinger/internal/engine"
)

// Route prefixes. The short forms are kept for the desktop client.
var (
	RecordPrefixes = []string{"/api/record/", "/record/", "/calibrate/"}
	InferPrefixes  = []string{"/api/infer/", "/infer/"}
)

// KeyHandler records calibrations and attributes keystrokes for a key
// named in the URL path.
type KeyHandler struct {
	engine    *engine.Engine
	source    capture.Source
	annotator *annotate.Annotator
	log       *logrus.Entry
}

// NewKeyHandler creates a KeyHandler. source and annotator may be nil.
func NewKeyHandler(e *engine.Engine, source capture.Source, annotator *annotate.Annotator, log *logrus.Entry) *KeyHandler {
	if log == nil {
		log = logrus.WithField("component", "api")
	}
	return &KeyHandler{engine: e, source: source, annotator: annotator, log: log}
}

// Response types

type recordResponse struct {
	Key      string               `json:"key"`
	Position calibration.Position `json:"position"`
	Finger   string               `json:"finger"`
	Image    string               `json:"image,omitempty"`
	Status   string               `json:"status"`
}

type inferResponse struct {
	Key           string                    `json:"key"`
	ClosestFinger *string                   `json:"closest_finger"`
	FingerName    *string                   `json:"finger_name"`
	Distance      *float64                  `json:"distance"`
	KeyPosition   calibration.Position      `json:"key_position"`
	Fingertips    []attribution.Observation `json:"fingertips"`
	OutputFile    string                    `json:"output_file,omitempty"`
	Verdict       *coach.Verdict            `json:"verdict,omitempty"`
}

// ServeHTTP routes POST requests on the record and infer prefixes.
func (h *KeyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if key, ok := trimRoute(r.URL.Path, RecordPrefixes); ok {
		h.serve(w, r, key, h.record)
		return
	}
	if key, ok := trimRoute(r.URL.Path, InferPrefixes); ok {
		h.serve(w, r, key, h.infer)
		return
	}
	writeError(w, http.StatusNotFound, "Not found")
}

func (h *KeyHandler) serve(w http.ResponseWriter, r *http.Request, key string, fn func(http.ResponseWriter, *http.Request, string)) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := calibration.ValidateKey(key); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid key")
		return
	}
	fn(w, r, key)
}

// record handles POST /api/record/{key}.
func (h *KeyHandler) record(w http.ResponseWriter, r *http.Request, key string) {
	frame, err := readFrame(w, r, h.source)
	if err != nil {
		writeError(w, frameErrorStatus(r, err), err.Error())
		return
	}
	defer frame.Close()

	rec, err := h.engine.RecordCalibration(key, frame)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrNotDetected):
			writeError(w, http.StatusUnprocessableEntity,
				fmt.Sprintf("Reference finger (%s) not detected", h.engine.Reference().Name()))
		default:
			h.log.WithError(err).WithField("key", key).Error("record failed")
			writeError(w, http.StatusInternalServerError, "Failed to record calibration")
		}
		return
	}

	image, err := h.annotator.Calibration(frame, rec)
	if err != nil {
		h.log.WithError(err).Warn("failed to save calibration image")
	}

	writeJSON(w, http.StatusCreated, recordResponse{
		Key:      rec.Key,
		Position: rec.Position,
		Finger:   string(rec.Finger),
		Image:    image,
		Status:   "recorded",
	})
}

// infer handles POST /api/infer/{key}.
func (h *KeyHandler) infer(w http.ResponseWriter, r *http.Request, key string) {
	frame, err := readFrame(w, r, h.source)
	if err != nil {
		writeError(w, frameErrorStatus(r, err), err.Error())
		return
	}
	defer frame.Close()

	a, err := h.engine.InferAttribution(key, frame)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrNotCalibrated):
			writeError(w, http.StatusNotFound, fmt.Sprintf("Key %s not calibrated", key))
		default:
			h.log.WithError(err).WithField("key", key).Error("infer failed")
			writeError(w, http.StatusInternalServerError, "Failed to attribute keystroke")
		}
		return
	}

	output, err := h.annotator.Attribution(frame, a)
	if err != nil {
		h.log.WithError(err).Warn("failed to save annotated image")
	}

	writeJSON(w, http.StatusOK, toInferResponse(a, output))
}

func toInferResponse(a *engine.Attribution, output string) inferResponse {
	resp := inferResponse{
		Key:         a.Key,
		KeyPosition: a.Target,
		Fingertips:  a.Fingertips,
		OutputFile:  output,
		Verdict:     a.Verdict,
	}
	if resp.Fingertips == nil {
		resp.Fingertips = []attribution.Observation{}
	}
	if a.Match.Found {
		label := string(a.Match.Label)
		name := a.Match.Label.Name()
		d := math.Round(a.Match.Distance*10) / 10
		resp.ClosestFinger = &label
		resp.FingerName = &name
		resp.Distance = &d
	}
	return resp
}
