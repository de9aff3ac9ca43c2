package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// One row per key; seq keeps first-recorded order across overwrites.
		`CREATE TABLE IF NOT EXISTS calibrations (
			key_id TEXT PRIMARY KEY,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Attribution history. finger and distance are NULL when no fingertip was found.
		`CREATE TABLE IF NOT EXISTS attributions (
			id TEXT PRIMARY KEY,
			key_id TEXT NOT NULL,
			finger TEXT,
			distance REAL,
			expected TEXT NOT NULL DEFAULT '',
			correct INTEGER,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_calibrations_seq ON calibrations(seq)`,
		`CREATE INDEX IF NOT EXISTS idx_attributions_key_id ON attributions(key_id)`,
		`CREATE INDEX IF NOT EXISTS idx_attributions_created_at ON attributions(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
