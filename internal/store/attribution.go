package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/keyfinger/internal/engine"
)

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 100

// Attribution is one stored attribution. Finger is empty and Distance nil
// when no fingertip was found. Correct is nil when the keystroke was not
// judged.
type Attribution struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Finger    string    `json:"finger,omitempty"`
	Distance  *float64  `json:"distance"`
	Expected  string    `json:"expected,omitempty"`
	Correct   *bool     `json:"correct"`
	CreatedAt time.Time `json:"created_at"`
}

// FromEngine converts an engine attribution into a history row.
func FromEngine(a *engine.Attribution) *Attribution {
	rec := &Attribution{Key: a.Key, CreatedAt: a.Time}
	if a.Match.Found {
		d := a.Match.Distance
		rec.Finger = string(a.Match.Label)
		rec.Distance = &d
	}
	if a.Verdict != nil && a.Verdict.Known {
		correct := a.Verdict.Correct
		rec.Expected = string(a.Verdict.Expected)
		rec.Correct = &correct
	}
	return rec
}

// FingerCount is the number of attributions to one finger.
type FingerCount struct {
	Finger string `json:"finger"`
	Count  int    `json:"count"`
}

// Stats summarizes the attribution history.
type Stats struct {
	Total    int           `json:"total"`
	Matched  int           `json:"matched"`
	Judged   int           `json:"judged"`
	Correct  int           `json:"correct"`
	ByFinger []FingerCount `json:"by_finger"`
}

// AttributionRepository stores attribution history.
type AttributionRepository struct {
	db *sql.DB
}

// Attributions returns the attribution repository for this store.
func (s *Store) Attributions() *AttributionRepository {
	return &AttributionRepository{db: s.db}
}

// Create inserts a. ID and CreatedAt are filled in when empty.
func (r *AttributionRepository) Create(a *Attribution) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	var finger sql.NullString
	if a.Finger != "" {
		finger = sql.NullString{String: a.Finger, Valid: true}
	}
	var distance sql.NullFloat64
	if a.Distance != nil {
		distance = sql.NullFloat64{Float64: *a.Distance, Valid: true}
	}
	var correct sql.NullBool
	if a.Correct != nil {
		correct = sql.NullBool{Bool: *a.Correct, Valid: true}
	}

	_, err := r.db.Exec(
		`INSERT INTO attributions (id, key_id, finger, distance, expected, correct, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Key, finger, distance, a.Expected, correct, a.CreatedAt,
	)
	return err
}

// GetByID retrieves an attribution by its ID.
func (r *AttributionRepository) GetByID(id string) (*Attribution, error) {
	row := r.db.QueryRow(
		`SELECT id, key_id, finger, distance, expected, correct, created_at
		 FROM attributions WHERE id = ?`,
		id,
	)
	a, err := scanAttribution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// List returns the most recent attributions, newest first. A limit <= 0
// uses DefaultListLimit.
func (r *AttributionRepository) List(limit int) ([]*Attribution, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.db.Query(
		`SELECT id, key_id, finger, distance, expected, correct, created_at
		 FROM attributions ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Attribution
	for rows.Next() {
		a, err := scanAttribution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// Stats summarizes all stored attributions.
func (r *AttributionRepository) Stats() (*Stats, error) {
	s := &Stats{ByFinger: []FingerCount{}}

	err := r.db.QueryRow(
		`SELECT COUNT(*),
		        COUNT(finger),
		        COUNT(correct),
		        COALESCE(SUM(CASE WHEN correct = 1 THEN 1 ELSE 0 END), 0)
		 FROM attributions`,
	).Scan(&s.Total, &s.Matched, &s.Judged, &s.Correct)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(
		`SELECT finger, COUNT(*) FROM attributions
		 WHERE finger IS NOT NULL
		 GROUP BY finger ORDER BY COUNT(*) DESC, finger`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var fc FingerCount
		if err := rows.Scan(&fc.Finger, &fc.Count); err != nil {
			return nil, err
		}
		s.ByFinger = append(s.ByFinger, fc)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAttribution(row scanner) (*Attribution, error) {
	a := &Attribution{}
	var finger sql.NullString
	var distance sql.NullFloat64
	var correct sql.NullBool

	if err := row.Scan(&a.ID, &a.Key, &finger, &distance, &a.Expected, &correct, &a.CreatedAt); err != nil {
		return nil, err
	}

	a.Finger = finger.String
	if distance.Valid {
		d := distance.Float64
		a.Distance = &d
	}
	if correct.Valid {
		c := correct.Bool
		a.Correct = &c
	}
	return a, nil
}
