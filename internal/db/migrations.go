package db

import (
	"fmt"

	"gorm.io/gorm"
)

// Only the submissions table is owned by this service. The satellite tables
// (inverter_records, weather_records, meter_records, sites and the
// generation aggregates) are created and migrated by the sibling services;
// this service only updates status columns on them.
var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'submission_status') THEN
			CREATE TYPE submission_status AS ENUM (
				'Draft', 'Site Publish', 'Send to HQ Approval', 'HQ Approved', 'Site Hold'
			);
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS submissions (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		site VARCHAR(255) NOT NULL,
		date TIMESTAMPTZ NOT NULL,
		inv_gen NUMERIC(18,2) NOT NULL DEFAULT 0,
		abt_export NUMERIC(18,2) NOT NULL DEFAULT 0,
		poa NUMERIC(18,2) NOT NULL DEFAULT 0,
		status submission_status NOT NULL DEFAULT 'Draft',
		previous_status submission_status,
		submitted_by UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_submissions_site ON submissions (site);`,
	`CREATE INDEX IF NOT EXISTS idx_submissions_date ON submissions (date);`,
	`CREATE INDEX IF NOT EXISTS idx_submissions_site_date ON submissions (site, date);`,
	`CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions (status);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
