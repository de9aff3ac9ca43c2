package capture

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"gocv.io/x/gocv"
)

// maxSnapshotBytes bounds a single downloaded frame.
const maxSnapshotBytes = 32 << 20

// URLSource fetches a JPEG or PNG snapshot over HTTP for every frame, such
// as a phone camera app exposing /shot.jpg.
type URLSource struct {
	url    string
	client *http.Client
}

// NewURLSource creates a URLSource. A nil client uses a 5 second timeout.
func NewURLSource(url string, client *http.Client) *URLSource {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &URLSource{url: url, client: client}
}

// ReadFrame downloads and decodes one snapshot.
func (s *URLSource) ReadFrame() (*gocv.Mat, error) {
	resp, err := s.client.Get(s.url)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch snapshot: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	return Decode(data)
}

// Close is a no-op.
func (s *URLSource) Close() error {
	return nil
}

// Decode turns encoded image bytes into a BGR Mat.
func Decode(data []byte) (*gocv.Mat, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("decode image: empty input")
	}
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("decode image: not a supported image")
	}
	return &mat, nil
}

// Encode returns frame as JPEG bytes.
func Encode(frame *gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
