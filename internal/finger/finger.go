// Package finger defines the two-character finger labels used to attribute keystrokes.
//
// A label is a hand-side prefix ('l' or 'r') followed by a digit code
// ('t' thumb, 'i' index, 'm' middle, 'r' ring, 'p' pinky), e.g. "li" for the
// left index finger.
package finger

// Side identifies the subject's physical hand.
type Side byte

const (
	Left  Side = 'l'
	Right Side = 'r'
)

// Digit identifies a finger on a hand.
type Digit byte

const (
	Thumb  Digit = 't'
	Index  Digit = 'i'
	Middle Digit = 'm'
	Ring   Digit = 'r'
	Pinky  Digit = 'p'
)

// Digits lists every digit in landmark order (thumb first).
var Digits = []Digit{Thumb, Index, Middle, Ring, Pinky}

// Label is a handedness-qualified finger code such as "li" or "rp".
type Label string

// Common labels.
const (
	LeftThumb   Label = "lt"
	LeftIndex   Label = "li"
	LeftMiddle  Label = "lm"
	LeftRing    Label = "lr"
	LeftPinky   Label = "lp"
	RightThumb  Label = "rt"
	RightIndex  Label = "ri"
	RightMiddle Label = "rm"
	RightRing   Label = "rr"
	RightPinky  Label = "rp"
)

// NewLabel builds the label for a side and digit.
func NewLabel(side Side, digit Digit) Label {
	return Label([]byte{byte(side), byte(digit)})
}

// Side returns the hand-side prefix of the label.
func (l Label) Side() Side {
	if len(l) != 2 {
		return 0
	}
	return Side(l[0])
}

// Digit returns the digit code of the label.
func (l Label) Digit() Digit {
	if len(l) != 2 {
		return 0
	}
	return Digit(l[1])
}

// Valid reports whether l is one of the ten known labels.
func (l Label) Valid() bool {
	_, ok := names[l]
	return ok
}

// Name returns a human-readable name such as "Left Index".
// Unknown labels are returned unchanged.
func (l Label) Name() string {
	if n, ok := names[l]; ok {
		return n
	}
	return string(l)
}

func (l Label) String() string {
	return string(l)
}

var names = map[Label]string{
	LeftPinky:   "Left Pinky",
	LeftRing:    "Left Ring",
	LeftMiddle:  "Left Middle",
	LeftIndex:   "Left Index",
	LeftThumb:   "Left Thumb",
	RightPinky:  "Right Pinky",
	RightRing:   "Right Ring",
	RightMiddle: "Right Middle",
	RightIndex:  "Right Index",
	RightThumb:  "Right Thumb",
}

// SideForHandedness maps a detector handedness classification to the
// subject's physical hand.
//
// The detector labels hands as seen from the camera, which mirrors the
// subject: "Left" is the subject's right hand and every other label is
// treated as the left hand.
func SideForHandedness(handedness string) Side {
	if handedness == "Left" {
		return Right
	}
	return Left
}

// Parse validates s as a finger label.
func Parse(s string) (Label, bool) {
	l := Label(s)
	return l, l.Valid()
}
