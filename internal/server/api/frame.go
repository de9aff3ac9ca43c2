package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"gocv.io/x/gocv"

	"github.com/ayusman/keyfinger/internal/capture"
)

// maxUploadBytes bounds an uploaded frame.
const maxUploadBytes = 32 << 20

// errNoFrame is returned when the request carries no image and no source
// is configured.
var errNoFrame = errors.New("no image uploaded and no camera configured")

// readFrame returns the frame for a record or infer request: the multipart
// "file" field, a raw image body, or else a frame from src.
func readFrame(w http.ResponseWriter, r *http.Request, src capture.Source) (*gocv.Mat, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	ct := r.Header.Get("Content-Type")

	switch {
	case strings.HasPrefix(ct, "multipart/form-data"):
		file, _, err := r.FormFile("file")
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) {
				break
			}
			return nil, fmt.Errorf("read upload: %w", err)
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		return capture.Decode(data)

	case strings.HasPrefix(ct, "image/"):
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		return capture.Decode(data)
	}

	if src == nil {
		return nil, errNoFrame
	}
	return src.ReadFrame()
}

// frameErrorStatus maps a readFrame error to a status code: problems with
// the client's upload are 400, a failing camera is 503.
func frameErrorStatus(r *http.Request, err error) int {
	ct := r.Header.Get("Content-Type")
	if errors.Is(err, errNoFrame) || strings.HasPrefix(ct, "multipart/form-data") || strings.HasPrefix(ct, "image/") {
		return http.StatusBadRequest
	}
	return http.StatusServiceUnavailable
}
