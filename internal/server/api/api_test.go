package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/keyfinger/internal/calibration"
	"github.com/ayusman/keyfinger/internal/capture"
	"github.com/ayusman/keyfinger/internal/coach"
	"github.com/ayusman/keyfinger/internal/detector"
	"github.com/ayusman/keyfinger/internal/engine"
	"github.com/ayusman/keyfinger/internal/logging"
	"github.com/ayusman/keyfinger/internal/store"
)

// newTestEngine creates an engine over a temporary calibration file and a
// mock detector showing both hands on the home row.
func newTestEngine(t *testing.T) (*engine.Engine, *detector.MockDetector) {
	t.Helper()

	cal, err := calibration.OpenFile(filepath.Join(t.TempDir(), "keyboard_calibration.txt"), logging.Discard())
	if err != nil {
		t.Fatalf("failed to open calibration file: %v", err)
	}

	mock := detector.NewMockDetector()
	mock.SetHands(detector.HomeRowHands())
	e := engine.New(mock, cal, engine.WithLogger(logging.Discard()), engine.WithCoach(coach.New(nil)))
	return e, mock
}

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// jpegUpload builds a multipart body carrying a blank 640x480 JPEG.
func jpegUpload(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()

	mat := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer mat.Close()
	data, err := capture.Encode(&mat)
	if err != nil {
		t.Fatalf("failed to encode frame: %v", err)
	}

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", "frame.jpg")
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	mw.Close()
	return body, mw.FormDataContentType()
}

func post(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := jpegUpload(t)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestKeyHandler_RecordThenInfer(t *testing.T) {
	e, _ := newTestEngine(t)
	h := NewKeyHandler(e, nil, nil, logging.Discard())

	rec := post(t, h, "/api/record/J")
	if rec.Code != http.StatusCreated {
		t.Fatalf("record status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var recorded struct {
		Key      string               `json:"key"`
		Position calibration.Position `json:"position"`
		Finger   string               `json:"finger"`
		Status   string               `json:"status"`
	}
	decode(t, rec, &recorded)
	if recorded.Key != "J" || recorded.Finger != "ri" || recorded.Status != "recorded" {
		t.Errorf("record response = %+v", recorded)
	}

	rec = post(t, h, "/api/infer/J")
	if rec.Code != http.StatusOK {
		t.Fatalf("infer status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var inferred struct {
		Key           string               `json:"key"`
		ClosestFinger *string              `json:"closest_finger"`
		FingerName    *string              `json:"finger_name"`
		Distance      *float64             `json:"distance"`
		KeyPosition   calibration.Position `json:"key_position"`
		Fingertips    []json.RawMessage    `json:"fingertips"`
		Verdict       *coach.Verdict       `json:"verdict"`
	}
	decode(t, rec, &inferred)

	if inferred.ClosestFinger == nil || *inferred.ClosestFinger != "ri" {
		t.Errorf("closest_finger = %v, want ri", inferred.ClosestFinger)
	}
	if inferred.FingerName == nil || *inferred.FingerName != "Right Index" {
		t.Errorf("finger_name = %v, want Right Index", inferred.FingerName)
	}
	if inferred.Distance == nil || *inferred.Distance != 0 {
		t.Errorf("distance = %v, want 0", inferred.Distance)
	}
	if inferred.KeyPosition != recorded.Position {
		t.Errorf("key_position = %+v, want %+v", inferred.KeyPosition, recorded.Position)
	}
	if len(inferred.Fingertips) != 10 {
		t.Errorf("fingertips = %d, want 10", len(inferred.Fingertips))
	}
	if inferred.Verdict == nil || !inferred.Verdict.Correct {
		t.Errorf("verdict = %+v, want correct", inferred.Verdict)
	}
}

func TestKeyHandler_LegacyRoutes(t *testing.T) {
	e, _ := newTestEngine(t)
	h := NewKeyHandler(e, nil, nil, logging.Discard())

	for _, path := range []string{"/record/A", "/calibrate/B"} {
		if rec := post(t, h, path); rec.Code != http.StatusCreated {
			t.Errorf("POST %s status = %d, want %d", path, rec.Code, http.StatusCreated)
		}
	}
	if rec := post(t, h, "/infer/A"); rec.Code != http.StatusOK {
		t.Errorf("POST /infer/A status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestKeyHandler_NotCalibrated(t *testing.T) {
	e, mock := newTestEngine(t)
	h := NewKeyHandler(e, nil, nil, logging.Discard())

	rec := post(t, h, "/api/infer/Q")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if mock.Calls() != 0 {
		t.Errorf("detector called %d times for uncalibrated key", mock.Calls())
	}
}

func TestKeyHandler_NotDetected(t *testing.T) {
	e, mock := newTestEngine(t)
	mock.SetHands(nil)
	h := NewKeyHandler(e, nil, nil, logging.Discard())

	rec := post(t, h, "/api/record/J")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
}

func TestKeyHandler_NoMatch(t *testing.T) {
	e, mock := newTestEngine(t)
	if err := e.Record("J", calibration.Position{X: 10, Y: 10}); err != nil {
		t.Fatal(err)
	}
	mock.SetHands(nil)
	h := NewKeyHandler(e, nil, nil, logging.Discard())

	rec := post(t, h, "/api/infer/J")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp map[string]any
	decode(t, rec, &resp)
	if resp["closest_finger"] != nil || resp["distance"] != nil {
		t.Errorf("expected null closest_finger and distance, got %v and %v", resp["closest_finger"], resp["distance"])
	}
}

func TestKeyHandler_FrameSource(t *testing.T) {
	e, _ := newTestEngine(t)
	cam := capture.NewBlankCamera(640, 480)
	h := NewKeyHandler(e, cam, nil, logging.Discard())

	req := httptest.NewRequest(http.MethodPost, "/api/record/K", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	if cam.Reads() != 1 {
		t.Errorf("camera reads = %d, want 1", cam.Reads())
	}
}

func TestKeyHandler_BadRequests(t *testing.T) {
	e, _ := newTestEngine(t)
	h := NewKeyHandler(e, nil, nil, logging.Discard())

	tests := []struct {
		name   string
		method string
		path   string
		ct     string
		body   string
		want   int
	}{
		{name: "GET not allowed", method: http.MethodGet, path: "/api/infer/J", want: http.StatusMethodNotAllowed},
		{name: "no frame and no camera", method: http.MethodPost, path: "/api/record/J", want: http.StatusBadRequest},
		{name: "garbage image", method: http.MethodPost, path: "/api/record/J", ct: "image/jpeg", body: "nope", want: http.StatusBadRequest},
		{name: "empty key", method: http.MethodPost, path: "/api/record/", want: http.StatusBadRequest},
		{name: "key with comma", method: http.MethodPost, path: "/api/record/a,b", want: http.StatusBadRequest},
		{name: "unknown route", method: http.MethodPost, path: "/api/other/J", want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			if tt.ct != "" {
				req.Header.Set("Content-Type", tt.ct)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestCalibrationHandler(t *testing.T) {
	e, _ := newTestEngine(t)
	h := NewCalibrationHandler(e)

	t.Run("empty list", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/calibrations", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var resp listCalibrationsResponse
		decode(t, rec, &resp)
		if resp.Reference != "ri" || len(resp.Calibrations) != 0 {
			t.Errorf("response = %+v", resp)
		}
	})

	t.Run("put then get", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/calibrations/SPACE", bytes.NewBufferString(`{"x":320,"y":400}`)))
		if rec.Code != http.StatusOK {
			t.Fatalf("PUT status = %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/calibrations/SPACE", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET status = %d", rec.Code)
		}
		var entry calibration.Entry
		decode(t, rec, &entry)
		if entry.Position != (calibration.Position{X: 320, Y: 400}) {
			t.Errorf("entry = %+v", entry)
		}
	})

	t.Run("missing key", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/calibrations/NOPE", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})

	t.Run("bad json", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/calibrations/X", bytes.NewBufferString(`{`)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})
}

func TestAttributionHandler(t *testing.T) {
	s := newTestStore(t)
	h := NewAttributionHandler(s)

	d := 2.5
	correct := true
	row := &store.Attribution{Key: "J", Finger: "ri", Distance: &d, Expected: "ri", Correct: &correct}
	if err := s.Attributions().Create(row); err != nil {
		t.Fatal(err)
	}

	t.Run("list", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/attributions?limit=10", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var resp listAttributionsResponse
		decode(t, rec, &resp)
		if len(resp.Attributions) != 1 || resp.Attributions[0].Key != "J" {
			t.Errorf("response = %+v", resp)
		}
	})

	t.Run("stats", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/attributions/stats", nil))
		var stats store.Stats
		decode(t, rec, &stats)
		if stats.Total != 1 || stats.Correct != 1 {
			t.Errorf("stats = %+v", stats)
		}
	})

	t.Run("get by id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/attributions/"+row.ID, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/attributions/missing", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})

	t.Run("bad limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/attributions?limit=x", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})
}
