// Package metrics provides Prometheus metrics for calibration and attribution.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Attribution results.
const (
	ResultMatch         = "match"
	ResultNoMatch       = "no_match"
	ResultNotCalibrated = "not_calibrated"
	ResultNotDetected   = "not_detected"
	ResultError         = "error"
)

// Metrics holds the keyfinger collectors and the registry they live on.
type Metrics struct {
	CalibrationsRecorded *prometheus.CounterVec
	Attributions         *prometheus.CounterVec
	AttributedFingers    *prometheus.CounterVec
	Distance             prometheus.Histogram
	DetectDuration       prometheus.Histogram
	Verdicts             *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates the collectors on a private registry. Go runtime and process
// collectors are registered alongside.
func New() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.CalibrationsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyfinger_calibrations_recorded_total",
			Help: "Total number of calibration positions recorded.",
		},
		[]string{"status"},
	)
	m.Attributions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyfinger_attributions_total",
			Help: "Total number of attribution requests partitioned by result.",
		},
		[]string{"result"},
	)
	m.AttributedFingers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyfinger_attributed_finger_total",
			Help: "Total number of keystrokes attributed to each finger.",
		},
		[]string{"finger"},
	)
	m.Distance = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "keyfinger_attribution_distance_pixels",
			Help:    "Distance in pixels between the key position and the winning fingertip.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 11), // 1px to ~1024px
		},
	)
	m.DetectDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "keyfinger_detect_duration_seconds",
			Help:    "Time taken by the hand detector for one frame.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
		},
	)
	m.Verdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyfinger_coach_verdicts_total",
			Help: "Total number of coach verdicts partitioned by correctness.",
		},
		[]string{"correct"},
	)

	for _, c := range []prometheus.Collector{
		m.CalibrationsRecorded,
		m.Attributions,
		m.AttributedFingers,
		m.Distance,
		m.DetectDuration,
		m.Verdicts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return m, nil
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCalibration counts a record attempt.
func (m *Metrics) ObserveCalibration(ok bool) {
	if m == nil {
		return
	}
	status := "success"
	if !ok {
		status = "not_detected"
	}
	m.CalibrationsRecorded.WithLabelValues(status).Inc()
}

// ObserveAttribution counts an attribution outcome. finger and distance are
// only used for ResultMatch.
func (m *Metrics) ObserveAttribution(result, finger string, distance float64) {
	if m == nil {
		return
	}
	m.Attributions.WithLabelValues(result).Inc()
	if result == ResultMatch {
		m.AttributedFingers.WithLabelValues(finger).Inc()
		m.Distance.Observe(distance)
	}
}

// ObserveDetect records how long one detection took.
func (m *Metrics) ObserveDetect(d time.Duration) {
	if m == nil {
		return
	}
	m.DetectDuration.Observe(d.Seconds())
}

// ObserveVerdict counts a coach verdict for a known key.
func (m *Metrics) ObserveVerdict(correct bool) {
	if m == nil {
		return
	}
	m.Verdicts.WithLabelValues(fmt.Sprint(correct)).Inc()
}
