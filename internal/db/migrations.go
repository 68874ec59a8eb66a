package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS challans (
		id              TEXT PRIMARY KEY,
		plate           TEXT NOT NULL,
		owner_name      TEXT NOT NULL,
		issued_at       TIMESTAMPTZ NOT NULL,
		violation       TEXT NOT NULL,
		violations      JSONB,
		fine_amount     NUMERIC(12,2) NOT NULL,
		status          TEXT NOT NULL DEFAULT 'Pending',
		official_id     TEXT NOT NULL,
		official_name   TEXT NOT NULL,
		proof_image     TEXT,
		location        TEXT,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_challans_plate_status ON challans(plate, status);`,
	`CREATE INDEX IF NOT EXISTS idx_challans_issued_at ON challans(issued_at);`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'challans_status_check') THEN
			ALTER TABLE challans ADD CONSTRAINT challans_status_check CHECK (status IN ('Pending', 'Paid'));
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS captures (
		id              TEXT PRIMARY KEY,
		plate           TEXT NOT NULL,
		confidence      DOUBLE PRECISION NOT NULL,
		image_ref       TEXT NOT NULL,
		camera_id       TEXT,
		captured_at     TIMESTAMPTZ NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_captures_captured_at ON captures(captured_at);`,
	`CREATE INDEX IF NOT EXISTS idx_captures_plate ON captures(plate);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
