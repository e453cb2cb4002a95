package db

import (
	"database/sql"
	"fmt"
)

// migrations is a list of SQL statements applied in order after schema
// creation. Each migration must be idempotent. Append new migrations
// at the end. The history table is append-only: no migration may ever
// rewrite or drop its rows.
var migrations = []string{
	// Migration 1: one pending invite per email per transaction, so a
	// re-sent invite refreshes the existing row instead of piling up.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_witnesses_invite_email
	     ON witnesses(transaction_id, invite_email)
	     WHERE invite_email IS NOT NULL AND invite_email != ''`,
}

// Migrate creates the schema and runs the migrations.
func Migrate(db *sql.DB) error {
	if err := EnsureSchema(db); err != nil {
		return err
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
