// Package annotate draws calibration and attribution overlays on frames.
package annotate

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"

	"github.com/ayusman/keyfinger/internal/attribution"
	"github.com/ayusman/keyfinger/internal/calibration"
	"github.com/ayusman/keyfinger/internal/detector"
	"github.com/ayusman/keyfinger/internal/engine"
)

// File names written by the Annotator.
const (
	CalibrationFile = "calibration.jpg"
	attributionFmt  = "annotated_%s.jpg"
)

var (
	colorTip       = color.RGBA{R: 0, G: 200, B: 255, A: 0}
	colorReference = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	colorKey       = color.RGBA{R: 255, G: 0, B: 255, A: 0}
	colorWinner    = color.RGBA{R: 255, G: 64, B: 64, A: 0}
	colorBone      = color.RGBA{R: 200, G: 200, B: 200, A: 0}
)

// DrawFingertips marks every fingertip with a dot and its label.
func DrawFingertips(dst *gocv.Mat, tips []attribution.Observation) {
	for _, o := range tips {
		p := point(o.Position)
		gocv.Circle(dst, p, 6, colorTip, -1)
		gocv.PutText(dst, string(o.Label), p.Add(image.Pt(8, -8)), gocv.FontHersheySimplex, 0.5, colorTip, 1)
	}
}

// DrawKey draws a ring and the key name at a calibration position.
func DrawKey(dst *gocv.Mat, key string, pos calibration.Position) {
	p := point(pos)
	gocv.Circle(dst, p, 14, colorKey, 2)
	gocv.PutText(dst, key, p.Add(image.Pt(16, 20)), gocv.FontHersheySimplex, 0.7, colorKey, 2)
}

// DrawKeys draws every calibrated key.
func DrawKeys(dst *gocv.Mat, entries []calibration.Entry) {
	for _, e := range entries {
		DrawKey(dst, e.Key, e.Position)
	}
}

// DrawHands draws hand skeletons for a frame of the given size.
func DrawHands(dst *gocv.Mat, hands []detector.HandLandmarks) {
	w, h := dst.Cols(), dst.Rows()
	for _, hand := range hands {
		for _, c := range detector.HandConnections {
			a := point(attribution.ToPixel(hand.Points[c[0]], w, h))
			b := point(attribution.ToPixel(hand.Points[c[1]], w, h))
			gocv.Line(dst, a, b, colorBone, 2)
		}
	}
}

// DrawCalibration draws a recorded calibration.
func DrawCalibration(dst *gocv.Mat, rec *engine.Recorded) {
	DrawFingertips(dst, rec.Fingertips)
	p := point(rec.Position)
	gocv.Circle(dst, p, 10, colorReference, -1)
	DrawKey(dst, rec.Key, rec.Position)
}

// DrawAttribution draws the key position, every fingertip and a line to
// the winning fingertip.
func DrawAttribution(dst *gocv.Mat, a *engine.Attribution) {
	DrawFingertips(dst, a.Fingertips)
	DrawKey(dst, a.Key, a.Target)

	if !a.Match.Found {
		gocv.PutText(dst, "no fingertips", image.Pt(16, 32), gocv.FontHersheySimplex, 0.8, colorWinner, 2)
		return
	}

	if o, ok := attribution.Find(a.Fingertips, a.Match.Label); ok {
		gocv.Line(dst, point(a.Target), point(o.Position), colorWinner, 2)
	}
	caption := fmt.Sprintf("%s: %s (%.1fpx)", a.Key, a.Match.Label.Name(), a.Match.Distance)
	if a.Verdict != nil && a.Verdict.Known && !a.Verdict.Correct {
		caption += " expected " + a.Verdict.Expected.Name()
	}
	gocv.PutText(dst, caption, image.Pt(16, 32), gocv.FontHersheySimplex, 0.8, colorWinner, 2)
}

// Annotator writes annotated copies of frames to a directory. A nil
// Annotator does nothing.
type Annotator struct {
	dir string
}

// New creates an Annotator writing to dir, creating it if needed.
func New(dir string) (*Annotator, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Annotator{dir: dir}, nil
}

// Dir returns the output directory.
func (a *Annotator) Dir() string {
	return a.dir
}

// Calibration saves frame with the calibration overlay and returns the file path.
func (a *Annotator) Calibration(frame *gocv.Mat, rec *engine.Recorded) (string, error) {
	if a == nil {
		return "", nil
	}
	out := frame.Clone()
	defer out.Close()

	DrawCalibration(&out, rec)
	return Save(a.dir, CalibrationFile, &out)
}

// Attribution saves frame with the attribution overlay and returns the file path.
func (a *Annotator) Attribution(frame *gocv.Mat, attr *engine.Attribution) (string, error) {
	if a == nil {
		return "", nil
	}
	out := frame.Clone()
	defer out.Close()

	DrawAttribution(&out, attr)
	return Save(a.dir, AttributionFile(attr.Key), &out)
}

// AttributionFile returns the file name used for key's annotated frame.
func AttributionFile(key string) string {
	return fmt.Sprintf(attributionFmt, sanitize(key))
}

// Save writes mat as an image under dir.
func Save(dir, name string, mat *gocv.Mat) (string, error) {
	path := filepath.Join(dir, name)
	if ok := gocv.IMWrite(path, *mat); !ok {
		return "", fmt.Errorf("write %s: failed", path)
	}
	return path, nil
}

func point(p calibration.Position) image.Point {
	return image.Pt(p.X, p.Y)
}

// sanitize keeps key names safe as file name components.
func sanitize(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, key)
}
