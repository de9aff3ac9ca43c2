// Package engine records key calibrations and attributes keystrokes to
// fingers using a hand detector and a calibration store.
package engine

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/keyfinger/internal/attribution"
	"github.com/ayusman/keyfinger/internal/calibration"
	"github.com/ayusman/keyfinger/internal/coach"
	"github.com/ayusman/keyfinger/internal/detector"
	"github.com/ayusman/keyfinger/internal/finger"
	"github.com/ayusman/keyfinger/internal/metrics"
)

// DefaultReference is the finger recorded as a key's position: the index
// fingertip of the hand the detector labels "Left".
const DefaultReference = finger.RightIndex

var (
	// ErrNotDetected is returned when the reference fingertip is not in the frame.
	ErrNotDetected = errors.New("reference finger not detected")
	// ErrNotCalibrated is returned when a key has no calibration position.
	ErrNotCalibrated = fmt.Errorf("key not calibrated: %w", calibration.ErrNotFound)
)

// Recorded is the outcome of a successful calibration.
type Recorded struct {
	Key        string                    `json:"key"`
	Position   calibration.Position      `json:"position"`
	Finger     finger.Label              `json:"finger"`
	Fingertips []attribution.Observation `json:"fingertips"`
	Time       time.Time                 `json:"time"`
}

// Attribution is the outcome of an inference. Match.Found is false when no
// fingertips were detected.
type Attribution struct {
	Key        string                    `json:"key"`
	Target     calibration.Position      `json:"key_position"`
	Fingertips []attribution.Observation `json:"fingertips"`
	Match      attribution.Match         `json:"-"`
	// Verdict is nil when coaching is disabled.
	Verdict *coach.Verdict `json:"verdict,omitempty"`
	Time    time.Time      `json:"time"`
}

// Engine ties a detector to a calibration store.
type Engine struct {
	detector  detector.Detector
	store     calibration.Store
	reference finger.Label
	coach     atomic.Pointer[coach.Coach]
	metrics   *metrics.Metrics
	log       *logrus.Entry

	onCalibration []func(*Recorded)
	onAttribution []func(*Attribution)
}

// Option configures an Engine.
type Option func(*Engine)

// WithReference sets the finger whose tip is recorded during calibration.
func WithReference(l finger.Label) Option {
	return func(e *Engine) { e.reference = l }
}

// WithCoach enables verdicts on attributions.
func WithCoach(c *coach.Coach) Option {
	return func(e *Engine) { e.coach.Store(c) }
}

// WithMetrics records outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logrus.Entry) Option {
	return func(e *Engine) { e.log = l }
}

// OnCalibration registers fn to be called after every recorded calibration.
func OnCalibration(fn func(*Recorded)) Option {
	return func(e *Engine) { e.onCalibration = append(e.onCalibration, fn) }
}

// OnAttribution registers fn to be called after every attribution,
// including ones without a match.
func OnAttribution(fn func(*Attribution)) Option {
	return func(e *Engine) { e.onAttribution = append(e.onAttribution, fn) }
}

// New creates an Engine.
func New(d detector.Detector, s calibration.Store, opts ...Option) *Engine {
	e := &Engine{
		detector:  d,
		store:     s,
		reference: DefaultReference,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logrus.WithField("component", "engine")
	}
	if !e.reference.Valid() {
		e.log.WithField("reference", string(e.reference)).Warn("invalid reference finger, using default")
		e.reference = DefaultReference
	}
	return e
}

// Reference returns the finger recorded during calibration.
func (e *Engine) Reference() finger.Label {
	return e.reference
}

// SetCoach replaces the coach used for verdicts. nil disables coaching.
// It is safe to call while attributions are running.
func (e *Engine) SetCoach(c *coach.Coach) {
	e.coach.Store(c)
}

// Coach returns the current coach, or nil when coaching is disabled.
func (e *Engine) Coach() *coach.Coach {
	return e.coach.Load()
}

// Store returns the calibration store.
func (e *Engine) Store() calibration.Store {
	return e.store
}

// RecordCalibration detects hands in frame and stores the reference
// fingertip position for key. Nothing is stored when the reference finger
// is not visible.
func (e *Engine) RecordCalibration(key string, frame *gocv.Mat) (*Recorded, error) {
	if err := calibration.ValidateKey(key); err != nil {
		return nil, err
	}

	tips, err := e.fingertips(frame)
	if err != nil {
		return nil, err
	}

	ref, ok := attribution.Find(tips, e.reference)
	if !ok {
		e.metrics.ObserveCalibration(false)
		e.log.WithFields(logrus.Fields{"key": key, "hands": len(tips) / 5}).Debug("reference finger not detected")
		return nil, ErrNotDetected
	}

	if err := e.store.Record(key, ref.Position); err != nil {
		return nil, fmt.Errorf("engine: record %q: %w", key, err)
	}
	e.metrics.ObserveCalibration(true)

	rec := &Recorded{
		Key:        key,
		Position:   ref.Position,
		Finger:     ref.Label,
		Fingertips: tips,
		Time:       time.Now(),
	}
	e.log.WithFields(logrus.Fields{"key": key, "x": ref.Position.X, "y": ref.Position.Y}).Info("calibration recorded")

	for _, fn := range e.onCalibration {
		fn(rec)
	}
	return rec, nil
}

// InferAttribution finds the fingertip closest to key's calibration
// position. The detector is not consulted for uncalibrated keys.
func (e *Engine) InferAttribution(key string, frame *gocv.Mat) (*Attribution, error) {
	target, err := e.store.Lookup(key)
	if err != nil {
		if errors.Is(err, calibration.ErrNotFound) {
			e.metrics.ObserveAttribution(metrics.ResultNotCalibrated, "", 0)
			return nil, ErrNotCalibrated
		}
		e.metrics.ObserveAttribution(metrics.ResultError, "", 0)
		return nil, fmt.Errorf("engine: lookup %q: %w", key, err)
	}

	tips, err := e.fingertips(frame)
	if err != nil {
		e.metrics.ObserveAttribution(metrics.ResultError, "", 0)
		return nil, err
	}

	return e.attribute(key, target, tips), nil
}

// Attribute runs the matching step on fingertips already derived from a frame.
func (e *Engine) Attribute(key string, tips []attribution.Observation) (*Attribution, error) {
	target, err := e.store.Lookup(key)
	if err != nil {
		if errors.Is(err, calibration.ErrNotFound) {
			e.metrics.ObserveAttribution(metrics.ResultNotCalibrated, "", 0)
			return nil, ErrNotCalibrated
		}
		return nil, fmt.Errorf("engine: lookup %q: %w", key, err)
	}
	return e.attribute(key, target, tips), nil
}

func (e *Engine) attribute(key string, target calibration.Position, tips []attribution.Observation) *Attribution {
	a := &Attribution{
		Key:        key,
		Target:     target,
		Fingertips: tips,
		Match:      attribution.Nearest(target, tips),
		Time:       time.Now(),
	}

	fields := logrus.Fields{"key": key}
	if a.Match.Found {
		e.metrics.ObserveAttribution(metrics.ResultMatch, string(a.Match.Label), a.Match.Distance)
		fields["finger"] = string(a.Match.Label)
		fields["distance"] = a.Match.Distance
	} else {
		e.metrics.ObserveAttribution(metrics.ResultNoMatch, "", 0)
	}

	if c := e.coach.Load(); c != nil {
		v := c.Judge(key, a.Match.Label)
		a.Verdict = &v
		if v.Known {
			e.metrics.ObserveVerdict(v.Correct)
			fields["correct"] = v.Correct
		}
	}

	e.log.WithFields(fields).Debug("attribution")

	for _, fn := range e.onAttribution {
		fn(a)
	}
	return a
}

// Record stores a position directly, bypassing detection.
func (e *Engine) Record(key string, pos calibration.Position) error {
	if err := e.store.Record(key, pos); err != nil {
		return fmt.Errorf("engine: record %q: %w", key, err)
	}
	return nil
}

// Calibrations returns every stored calibration entry.
func (e *Engine) Calibrations() ([]calibration.Entry, error) {
	return e.store.Entries()
}

// Detect runs the detector on frame without touching the store.
func (e *Engine) Detect(frame *gocv.Mat) ([]detector.HandLandmarks, error) {
	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("engine: %w", detector.ErrEmptyFrame)
	}
	start := time.Now()
	hands, err := e.detector.Detect(frame)
	e.metrics.ObserveDetect(time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("engine: detect: %w", err)
	}
	return hands, nil
}

// Close closes the detector.
func (e *Engine) Close() error {
	if e.detector == nil {
		return nil
	}
	return e.detector.Close()
}

func (e *Engine) fingertips(frame *gocv.Mat) ([]attribution.Observation, error) {
	hands, err := e.Detect(frame)
	if err != nil {
		return nil, err
	}
	return attribution.Fingertips(hands, frame.Cols(), frame.Rows()), nil
}
