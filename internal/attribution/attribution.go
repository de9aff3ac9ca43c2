// Package attribution picks the fingertip that most likely pressed a key.
//
// Fingertips are derived from detector landmarks and compared against the
// key's calibration position; the closest fingertip wins. There is no
// distance cutoff: an arbitrarily distant fingertip is still selected when
// nothing is closer.
package attribution

import (
	"math"

	"github.com/ayusman/keyfinger/internal/calibration"
	"github.com/ayusman/keyfinger/internal/detector"
	"github.com/ayusman/keyfinger/internal/finger"
)

// tipLandmarks maps each digit to its fingertip landmark, in the order
// fingertips are emitted for a hand.
var tipLandmarks = []struct {
	digit    finger.Digit
	landmark int
}{
	{finger.Thumb, detector.ThumbTip},
	{finger.Index, detector.IndexTip},
	{finger.Middle, detector.MiddleTip},
	{finger.Ring, detector.RingTip},
	{finger.Pinky, detector.PinkyTip},
}

// TipLandmark returns the landmark index of a digit's fingertip.
func TipLandmark(d finger.Digit) (int, bool) {
	for _, t := range tipLandmarks {
		if t.digit == d {
			return t.landmark, true
		}
	}
	return 0, false
}

// Observation is a fingertip position with its finger label.
type Observation struct {
	Position calibration.Position `json:"position"`
	Label    finger.Label         `json:"finger"`
}

// Match is the outcome of Nearest. Found is false when there were no
// candidates, in which case Label and Distance are zero.
type Match struct {
	Label    finger.Label
	Distance float64
	Found    bool
}

// Fingertips converts detected hands into pixel-space fingertip observations
// for a frame of the given size. Each hand yields five observations, thumb
// to pinky, labeled with the mirrored side of its handedness.
func Fingertips(hands []detector.HandLandmarks, width, height int) []Observation {
	out := make([]Observation, 0, len(hands)*len(tipLandmarks))
	for _, hand := range hands {
		side := finger.SideForHandedness(hand.Handedness)
		for _, t := range tipLandmarks {
			p := hand.Points[t.landmark]
			out = append(out, Observation{
				Position: ToPixel(p, width, height),
				Label:    finger.NewLabel(side, t.digit),
			})
		}
	}
	return out
}

// ToPixel scales a normalized landmark to pixel coordinates, truncating
// toward zero.
func ToPixel(p detector.Point3D, width, height int) calibration.Position {
	return calibration.Position{
		X: int(p.X * float64(width)),
		Y: int(p.Y * float64(height)),
	}
}

// Distance is the Euclidean distance between two pixel positions.
func Distance(a, b calibration.Position) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// Nearest returns the candidate closest to target. Ties keep the earliest
// candidate, so the result depends on candidate order.
func Nearest(target calibration.Position, candidates []Observation) Match {
	var best Match
	for _, c := range candidates {
		d := Distance(c.Position, target)
		if !best.Found || d < best.Distance {
			best = Match{Label: c.Label, Distance: d, Found: true}
		}
	}
	return best
}

// Find returns the first observation carrying label.
func Find(observations []Observation, label finger.Label) (Observation, bool) {
	for _, o := range observations {
		if o.Label == label {
			return o, true
		}
	}
	return Observation{}, false
}
