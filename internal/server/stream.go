package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/keyfinger/internal/annotate"
	"github.com/ayusman/keyfinger/internal/capture"
	"github.com/ayusman/keyfinger/internal/engine"
)

// streamInterval paces the preview at roughly 15 FPS.
const streamInterval = 66 * time.Millisecond

// StreamHandler serves an MJPEG preview of the frame source with the
// calibrated keys drawn on top. With ?hands=1 detected hands are drawn too.
type StreamHandler struct {
	source capture.Source
	engine *engine.Engine
	log    *logrus.Entry
}

// NewStreamHandler creates a StreamHandler. e may be nil, in which case
// frames are sent without overlays.
func NewStreamHandler(source capture.Source, e *engine.Engine, log *logrus.Entry) *StreamHandler {
	return &StreamHandler{source: source, engine: e, log: log}
}

// ServeHTTP streams MJPEG frames until the client disconnects.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	hands := r.URL.Query().Get("hands") == "1"

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		data, err := h.nextFrame(hands)
		if err != nil {
			h.log.WithError(err).Debug("stream frame skipped")
			continue
		}

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(data))
		if _, err := w.Write(data); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}

// nextFrame reads, annotates and encodes one frame.
func (h *StreamHandler) nextFrame(hands bool) ([]byte, error) {
	frame, err := h.source.ReadFrame()
	if err != nil {
		return nil, err
	}
	defer frame.Close()

	if h.engine != nil {
		if hands {
			if detected, err := h.engine.Detect(frame); err == nil {
				annotate.DrawHands(frame, detected)
			}
		}
		if entries, err := h.engine.Calibrations(); err == nil {
			annotate.DrawKeys(frame, entries)
		}
	}

	return capture.Encode(frame)
}
