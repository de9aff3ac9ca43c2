package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observe(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.ObserveCalibration(true)
	m.ObserveCalibration(false)
	m.ObserveAttribution(ResultMatch, "ri", 12.5)
	m.ObserveAttribution(ResultMatch, "ri", 3)
	m.ObserveAttribution(ResultNoMatch, "", 0)
	m.ObserveDetect(25 * time.Millisecond)
	m.ObserveVerdict(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CalibrationsRecorded.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CalibrationsRecorded.WithLabelValues("not_detected")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Attributions.WithLabelValues(ResultMatch)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Attributions.WithLabelValues(ResultNoMatch)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AttributedFingers.WithLabelValues("ri")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Verdicts.WithLabelValues("true")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCalibration(true)
		m.ObserveAttribution(ResultMatch, "li", 1)
		m.ObserveDetect(time.Millisecond)
		m.ObserveVerdict(false)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	m.ObserveAttribution(ResultNotCalibrated, "", 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `keyfinger_attributions_total{result="not_calibrated"} 1`)
}
