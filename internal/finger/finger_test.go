package finger

import "testing"

func TestSideForHandedness(t *testing.T) {
	tests := []struct {
		handedness string
		want       Side
	}{
		{"Left", Right},
		{"Right", Left},
		{"", Left},
		{"left", Left},
	}

	for _, tt := range tests {
		t.Run(tt.handedness, func(t *testing.T) {
			if got := SideForHandedness(tt.handedness); got != tt.want {
				t.Errorf("SideForHandedness(%q) = %c, want %c", tt.handedness, got, tt.want)
			}
		})
	}
}

func TestNewLabel(t *testing.T) {
	if got := NewLabel(Left, Index); got != LeftIndex {
		t.Errorf("NewLabel(Left, Index) = %q, want %q", got, LeftIndex)
	}
	if got := NewLabel(Right, Pinky); got != RightPinky {
		t.Errorf("NewLabel(Right, Pinky) = %q, want %q", got, RightPinky)
	}

	// Every side/digit pair yields a known label
	for _, side := range []Side{Left, Right} {
		for _, d := range Digits {
			l := NewLabel(side, d)
			if !l.Valid() {
				t.Errorf("label %q should be valid", l)
			}
			if l.Side() != side || l.Digit() != d {
				t.Errorf("label %q split into %c/%c", l, l.Side(), l.Digit())
			}
		}
	}
}

func TestLabel_Name(t *testing.T) {
	if got := RightMiddle.Name(); got != "Right Middle" {
		t.Errorf("Name() = %q, want %q", got, "Right Middle")
	}
	if got := Label("xx").Name(); got != "xx" {
		t.Errorf("unknown label Name() = %q, want %q", got, "xx")
	}
}

func TestParse(t *testing.T) {
	if _, ok := Parse("lt"); !ok {
		t.Error("lt should parse")
	}
	if _, ok := Parse("l"); ok {
		t.Error("single character should not parse")
	}
	if _, ok := Parse("ix"); ok {
		t.Error("ix should not parse")
	}
}
