// Package capture supplies frames for calibration and attribution when the
// caller does not upload an image.
package capture

import (
	"errors"

	"gocv.io/x/gocv"
)

// ErrNoSource is returned when no frame source is configured.
var ErrNoSource = errors.New("no frame source configured")

// Source yields single frames on demand.
type Source interface {
	// ReadFrame returns the latest frame. The caller closes the Mat.
	ReadFrame() (*gocv.Mat, error)
	Close() error
}

// Config selects a frame source. URL wins over Device; a negative Device
// with no URL means no source.
type Config struct {
	Device int
	URL    string
}

// Open opens the source described by cfg.
func Open(cfg Config) (Source, error) {
	switch {
	case cfg.URL != "":
		return NewURLSource(cfg.URL, nil), nil
	case cfg.Device >= 0:
		cam := NewCamera(cfg.Device)
		if err := cam.Open(); err != nil {
			return nil, err
		}
		return cam, nil
	default:
		return nil, ErrNoSource
	}
}
