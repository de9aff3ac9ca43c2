// Package coach judges attributed fingers against a touch-typing chart.
package coach

import (
	"strings"

	"github.com/ayusman/keyfinger/internal/finger"
)

// Chart maps key names to the finger a touch typist should use.
type Chart map[string]finger.Label

// DefaultChart is a standard QWERTY touch-typing assignment. Key names
// follow the desktop key listener ("LEFT SHIFT", "SQUARE BRACKET OPEN"...).
var DefaultChart = Chart{
	"LEFT CTRL":  finger.LeftPinky,
	"LEFT SHIFT": finger.LeftPinky,
	"LEFT META":  finger.LeftThumb,
	"LEFT ALT":   finger.LeftThumb,
	"FN":         finger.LeftPinky,
	"BACKTICK":   finger.LeftPinky,
	"1":          finger.LeftRing,
	"2":          finger.LeftRing,
	"3":          finger.LeftIndex,
	"4":          finger.LeftIndex,
	"5":          finger.LeftIndex,
	"Q":          finger.LeftPinky,
	"A":          finger.LeftPinky,
	"Z":          finger.LeftPinky,
	"W":          finger.LeftRing,
	"S":          finger.LeftRing,
	"X":          finger.LeftRing,
	"E":          finger.LeftMiddle,
	"D":          finger.LeftMiddle,
	"C":          finger.LeftIndex,
	"R":          finger.LeftIndex,
	"F":          finger.LeftIndex,
	"V":          finger.LeftIndex,
	"T":          finger.LeftIndex,
	"G":          finger.LeftIndex,
	"B":          finger.LeftIndex,
	"SPACE":      finger.LeftThumb,

	"6":                    finger.RightIndex,
	"7":                    finger.RightIndex,
	"Y":                    finger.RightIndex,
	"H":                    finger.RightIndex,
	"N":                    finger.RightIndex,
	"J":                    finger.RightIndex,
	"M":                    finger.RightIndex,
	"U":                    finger.RightMiddle,
	"8":                    finger.RightMiddle,
	"I":                    finger.RightMiddle,
	"K":                    finger.RightMiddle,
	"COMMA":                finger.RightMiddle,
	"9":                    finger.RightRing,
	"O":                    finger.RightRing,
	"L":                    finger.RightRing,
	"DOT":                  finger.RightRing,
	"P":                    finger.RightRing,
	"0":                    finger.RightPinky,
	"MINUS":                finger.RightPinky,
	"EQUALS":               finger.RightPinky,
	"BACKSPACE":            finger.RightPinky,
	"BACKSLASH":            finger.RightPinky,
	"SQUARE BRACKET OPEN":  finger.RightPinky,
	"SQUARE BRACKET CLOSE": finger.RightPinky,
	"SEMICOLON":            finger.RightPinky,
	"QUOTE":                finger.RightPinky,
	"RETURN":               finger.RightPinky,
	"FORWARD SLASH":        finger.RightPinky,
	"RIGHT SHIFT":          finger.RightPinky,
	"RIGHT ALT":            finger.RightPinky,
	"RIGHT META":           finger.RightPinky,
	"DOWN ARROW":           finger.RightPinky,
	"LEFT ARROW":           finger.RightPinky,
	"UP ARROW":             finger.RightPinky,
}

// Verdict is the coach's judgement of one attributed keystroke.
type Verdict struct {
	Key      string       `json:"key"`
	Expected finger.Label `json:"expected,omitempty"`
	Detected finger.Label `json:"detected,omitempty"`
	// Known is false when the chart has no entry for the key.
	Known   bool `json:"known"`
	Correct bool `json:"correct"`
}

// Coach judges keystrokes against a chart.
type Coach struct {
	chart Chart
}

// New creates a Coach. A nil chart uses DefaultChart.
func New(chart Chart) *Coach {
	if chart == nil {
		chart = DefaultChart
	}
	return &Coach{chart: chart}
}

// Expected returns the chart finger for key.
func (c *Coach) Expected(key string) (finger.Label, bool) {
	l, ok := c.chart[normalize(key)]
	return l, ok
}

// Judge compares the detected finger with the chart. An empty detected
// label (no fingertip found) is never correct. Either thumb is accepted for
// the space bar.
func (c *Coach) Judge(key string, detected finger.Label) Verdict {
	v := Verdict{Key: key, Detected: detected}

	expected, ok := c.Expected(key)
	if !ok {
		return v
	}
	v.Known = true
	v.Expected = expected

	if detected == "" {
		return v
	}

	if normalize(key) == "SPACE" {
		v.Correct = detected.Digit() == finger.Thumb
		return v
	}

	v.Correct = detected == expected
	return v
}

func normalize(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}
