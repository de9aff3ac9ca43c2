package capture

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"gocv.io/x/gocv"
)

func TestEncodeDecode(t *testing.T) {
	src := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer src.Close()

	data, err := Encode(&src)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	out, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	defer out.Close()

	if out.Cols() != 160 || out.Rows() != 120 {
		t.Errorf("decoded size = %dx%d, want 160x120", out.Cols(), out.Rows())
	}
}

func TestDecode_Invalid(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("not an image")} {
		if _, err := Decode(data); err == nil {
			t.Errorf("Decode(%q) expected error", data)
		}
	}
}

func TestURLSource_ReadFrame(t *testing.T) {
	src := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer src.Close()
	jpeg, err := Encode(&src)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/shot.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(jpeg)
	}))
	defer srv.Close()

	frame, err := NewURLSource(srv.URL+"/shot.jpg", srv.Client()).ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	defer frame.Close()
	if frame.Cols() != 64 || frame.Rows() != 48 {
		t.Errorf("frame size = %dx%d, want 64x48", frame.Cols(), frame.Rows())
	}

	if _, err := NewURLSource(srv.URL+"/missing", srv.Client()).ReadFrame(); err == nil {
		t.Error("expected error for 404 snapshot")
	}
}
