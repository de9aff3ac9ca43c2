// Package testdata generates synthetic keyboard frames and hand poses for
// end-to-end tests.
package testdata

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/keyfinger/internal/attribution"
	"github.com/ayusman/keyfinger/internal/capture"
	"github.com/ayusman/keyfinger/internal/detector"
	"github.com/ayusman/keyfinger/internal/finger"
)

// Keys maps key names to their normalized center on the synthetic keyboard.
var Keys = map[string]detector.Point3D{}

func init() {
	rows := []struct {
		keys string
		x, y float64
	}{
		{"QWERTYUIOP", 0.10, 0.40},
		{"ASDFGHJKL", 0.12, 0.55},
		{"ZXCVBNM", 0.16, 0.68},
	}
	for _, r := range rows {
		for i, k := range r.keys {
			Keys[string(k)] = detector.Point3D{X: r.x + 0.08*float64(i), Y: r.y}
		}
	}
	Keys["SPACE"] = detector.Point3D{X: 0.50, Y: 0.82}
}

// Keyboard draws the synthetic keyboard on a dark frame. The caller closes
// the Mat.
func Keyboard(width, height int) gocv.Mat {
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 40, 40, 0), height, width, gocv.MatTypeCV8UC3)

	white := color.RGBA{R: 220, G: 220, B: 220}
	halfW := int(0.035 * float64(width))
	halfH := int(0.055 * float64(height))

	for key, c := range Keys {
		cx, cy := int(c.X*float64(width)), int(c.Y*float64(height))
		w := halfW
		if key == "SPACE" {
			w = halfW * 6
		}
		gocv.Rectangle(&m, image.Rect(cx-w, cy-halfH, cx+w, cy+halfH), white, 1)
		gocv.PutText(&m, key, image.Pt(cx-w+4, cy+5), gocv.FontHersheySimplex, 0.4, white, 1)
	}
	return m
}

// KeyboardJPEG returns Keyboard encoded as JPEG.
func KeyboardJPEG(width, height int) ([]byte, error) {
	m := Keyboard(width, height)
	defer m.Close()
	return capture.Encode(&m)
}

// Pressing returns both hands resting on the keyboard with label's fingertip
// on key. Every other fingertip is lifted away from the keys so the pressing
// finger is the unambiguous nearest one.
func Pressing(key string, label finger.Label) []detector.HandLandmarks {
	hands := detector.HomeRowHands()

	// HomeRowHands lists the subject's left hand first.
	pressing := 0
	if label.Side() == finger.Right {
		pressing = 1
	}
	tip, _ := attribution.TipLandmark(label.Digit())

	for i := range hands {
		for _, d := range []finger.Digit{finger.Thumb, finger.Index, finger.Middle, finger.Ring, finger.Pinky} {
			idx, _ := attribution.TipLandmark(d)
			if i == pressing && idx == tip {
				continue
			}
			hands[i].Points[idx].Y -= 0.25
		}
	}
	hands[pressing].Points[tip] = Keys[key]
	return hands
}
