package store

import (
	"database/sql"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ayusman/keyfinger/internal/calibration"
)

// CalibrationRepository stores key calibrations. It implements
// calibration.Store, serving lookups from a read-through cache.
type CalibrationRepository struct {
	db    *sql.DB
	cache *gocache.Cache
}

var _ calibration.Store = (*CalibrationRepository)(nil)

// Calibrations returns the calibration repository for this store.
func (s *Store) Calibrations() *CalibrationRepository {
	return &CalibrationRepository{db: s.db, cache: s.cache}
}

// Lookup returns the position recorded for key or calibration.ErrNotFound.
func (r *CalibrationRepository) Lookup(key string) (calibration.Position, error) {
	if v, ok := r.cache.Get(cacheKey(key)); ok {
		return v.(calibration.Position), nil
	}

	var pos calibration.Position
	err := r.db.QueryRow(
		`SELECT x, y FROM calibrations WHERE key_id = ?`,
		key,
	).Scan(&pos.X, &pos.Y)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return calibration.Position{}, calibration.ErrNotFound
		}
		return calibration.Position{}, err
	}

	r.cache.Set(cacheKey(key), pos, gocache.DefaultExpiration)
	return pos, nil
}

// Record inserts or replaces the position for key. A replaced key keeps
// its original position in Entries.
func (r *CalibrationRepository) Record(key string, pos calibration.Position) error {
	if err := calibration.ValidateKey(key); err != nil {
		return err
	}

	_, err := r.db.Exec(
		`INSERT INTO calibrations (key_id, x, y, seq, updated_at)
		 VALUES (?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM calibrations), ?)
		 ON CONFLICT(key_id) DO UPDATE SET x = excluded.x, y = excluded.y, updated_at = excluded.updated_at`,
		key, pos.X, pos.Y, time.Now(),
	)
	if err != nil {
		r.cache.Delete(cacheKey(key))
		return err
	}

	r.cache.Set(cacheKey(key), pos, gocache.DefaultExpiration)
	return nil
}

// Entries returns every calibration in first-recorded order.
func (r *CalibrationRepository) Entries() ([]calibration.Entry, error) {
	rows, err := r.db.Query(`SELECT key_id, x, y FROM calibrations ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []calibration.Entry
	for rows.Next() {
		var e calibration.Entry
		if err := rows.Scan(&e.Key, &e.Position.X, &e.Position.Y); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func cacheKey(key string) string {
	return "calibration:" + key
}
