package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	hands []HandLandmarks
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// TypingHand returns a hand resting on a keyboard as the detector would
// report it. handedness is the detector's label ("Left" is the subject's
// right hand). The fingertips sit at the normalized positions in tips,
// ordered thumb, index, middle, ring, pinky.
func TypingHand(handedness string, tips [5]Point3D) HandLandmarks {
	hand := HandLandmarks{
		Handedness: handedness,
		Score:      0.97,
	}

	// Knuckles and wrist trail below the tips so the skeleton looks plausible.
	wrist := Point3D{X: (tips[1].X + tips[4].X) / 2, Y: tips[2].Y + 0.30}
	hand.Points[Wrist] = wrist

	chains := [5][4]int{
		{ThumbCMC, ThumbMCP, ThumbIP, ThumbTip},
		{IndexMCP, IndexPIP, IndexDIP, IndexTip},
		{MiddleMCP, MiddlePIP, MiddleDIP, MiddleTip},
		{RingMCP, RingPIP, RingDIP, RingTip},
		{PinkyMCP, PinkyPIP, PinkyDIP, PinkyTip},
	}
	for f, chain := range chains {
		tip := tips[f]
		for j, idx := range chain[:3] {
			t := float64(j+1) / 4
			hand.Points[idx] = Point3D{
				X: wrist.X + (tip.X-wrist.X)*t,
				Y: wrist.Y + (tip.Y-wrist.Y)*t,
				Z: -0.02 * t,
			}
		}
		hand.Points[chain[3]] = tip
	}

	return hand
}

// HomeRowHands returns both hands resting on the home row of a keyboard
// filling the frame. The detector's "Right" hand (subject's left) comes first.
func HomeRowHands() []HandLandmarks {
	subjectLeft := TypingHand(HandRight, [5]Point3D{
		{X: 0.42, Y: 0.80}, // thumb on space
		{X: 0.34, Y: 0.55}, // F
		{X: 0.27, Y: 0.54}, // D
		{X: 0.20, Y: 0.55}, // S
		{X: 0.13, Y: 0.57}, // A
	})
	subjectRight := TypingHand(HandLeft, [5]Point3D{
		{X: 0.58, Y: 0.80}, // thumb on space
		{X: 0.66, Y: 0.55}, // J
		{X: 0.73, Y: 0.54}, // K
		{X: 0.80, Y: 0.55}, // L
		{X: 0.87, Y: 0.57}, // ;
	})
	return []HandLandmarks{subjectLeft, subjectRight}
}
