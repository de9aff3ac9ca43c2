// Package calibration stores the reference pixel position recorded for each key.
package calibration

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned by Lookup for a key that has never been recorded.
	ErrNotFound = errors.New("calibration not found")

	// ErrInvalidKey is returned when a key cannot be stored in the line format.
	ErrInvalidKey = errors.New("invalid calibration key")
)

// Position is a pixel coordinate in the source image.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Entry is a single key calibration.
type Entry struct {
	Key      string   `json:"key"`
	Position Position `json:"position"`
}

// Store persists key calibrations. Implementations keep at most one
// position per key; recording a key again replaces its position.
type Store interface {
	// Lookup returns the position recorded for key or ErrNotFound.
	Lookup(key string) (Position, error)

	// Record inserts or replaces the position for key and persists it.
	Record(key string, pos Position) error

	// Entries returns every calibration in persisted order.
	Entries() ([]Entry, error)
}

// ValidateKey rejects keys that would not survive a write/parse cycle.
func ValidateKey(key string) error {
	if key == "" || strings.ContainsAny(key, ",\r\n") {
		return ErrInvalidKey
	}
	return nil
}
