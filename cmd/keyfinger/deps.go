package main

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/ayusman/keyfinger/internal/annotate"
	"github.com/ayusman/keyfinger/internal/calibration"
	"github.com/ayusman/keyfinger/internal/capture"
	"github.com/ayusman/keyfinger/internal/coach"
	"github.com/ayusman/keyfinger/internal/config"
	"github.com/ayusman/keyfinger/internal/detector"
	"github.com/ayusman/keyfinger/internal/engine"
	"github.com/ayusman/keyfinger/internal/finger"
	"github.com/ayusman/keyfinger/internal/store"
)

// calibrations is the configured calibration backend. db is set for the
// sqlite backend only and doubles as the attribution history.
type calibrations struct {
	store calibration.Store
	db    *store.Store
}

func (c *calibrations) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// openCalibrations opens the backend selected by calibration.backend.
func (a *app) openCalibrations() (*calibrations, error) {
	s := a.settings.Calibration

	switch s.Backend {
	case config.BackendSQLite:
		db, err := store.New(s.Database)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		return &calibrations{store: db.Calibrations(), db: db}, nil
	default:
		fs, err := calibration.OpenFile(s.File, a.component("calibration"))
		if err != nil {
			return nil, fmt.Errorf("open calibration file: %w", err)
		}
		return &calibrations{store: fs}, nil
	}
}

// openDetector starts the MediaPipe detector described by the settings.
func (a *app) openDetector() (detector.Detector, error) {
	s := a.settings.Detector

	cfg := detector.DefaultConfig()
	cfg.MaxHands = s.MaxHands
	cfg.MinConfidence = s.MinConfidence
	cfg.MinTrackingConf = s.MinTrackingConfidence
	cfg.ScriptPath = s.Script
	cfg.PythonPath = s.Python
	cfg.IdleTimeout = s.IdleTimeout

	d, err := detector.NewMediaPipeDetector(cfg, a.component("detector"))
	if err != nil {
		return nil, fmt.Errorf("hand detector: %w", err)
	}
	return d, nil
}

// newEngine builds an engine over store with the configured reference
// finger and coach. Extra options are appended.
func (a *app) newEngine(d detector.Detector, s calibration.Store, opts ...engine.Option) *engine.Engine {
	base := []engine.Option{
		engine.WithReference(finger.Label(a.settings.Calibration.Reference)),
		engine.WithLogger(a.component("engine")),
	}
	if a.settings.Coach.Enabled {
		base = append(base, engine.WithCoach(coach.New(nil)))
	}
	return engine.New(d, s, append(base, opts...)...)
}

// openSource opens the configured camera or snapshot URL. It returns a nil
// source without error when neither is configured.
func (a *app) openSource() (capture.Source, error) {
	src, err := capture.Open(capture.Config{
		Device: a.settings.Camera.Device,
		URL:    a.settings.Camera.URL,
	})
	if errors.Is(err, capture.ErrNoSource) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open frame source: %w", err)
	}
	return src, nil
}

// openAnnotator returns nil when output.dir is not configured.
func (a *app) openAnnotator() (*annotate.Annotator, error) {
	if a.settings.Output.Dir == "" {
		return nil, nil
	}
	ann, err := annotate.New(a.settings.Output.Dir)
	if err != nil {
		return nil, fmt.Errorf("output dir: %w", err)
	}
	return ann, nil
}

// loadFrame reads an image file, or grabs a frame from the configured source
// when path is empty. The caller closes the Mat.
func (a *app) loadFrame(path string) (*gocv.Mat, error) {
	if path != "" {
		m := gocv.IMRead(path, gocv.IMReadColor)
		if m.Empty() {
			m.Close()
			return nil, fmt.Errorf("could not read image %s", path)
		}
		return &m, nil
	}

	src, err := a.openSource()
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, errors.New("no image given and no camera configured (use --image, --camera or --camera-url)")
	}
	defer src.Close()

	return src.ReadFrame()
}
