package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/seyio/owemi/internal/model"
)

// appendHistory writes one audit entry inside the caller's transaction.
// Every mutating operation in this package calls it before committing:
// if the append fails, the whole mutation rolls back. The business
// state change and its audit record are one atomic unit.
func appendHistory(ctx context.Context, tx *sql.Tx, entityType string, entityID int64, changeType string, previous, next any, actingUserID int64) error {
	var prevJSON, nextJSON any

	if previous != nil {
		data, err := json.Marshal(previous)
		if err != nil {
			return model.Fatal("encoding previous state", err)
		}
		prevJSON = string(data)
	}
	if next != nil {
		data, err := json.Marshal(next)
		if err != nil {
			return model.Fatal("encoding new state", err)
		}
		nextJSON = string(data)
	}

	// created_at is bound here rather than left to the column default,
	// so timestamp comparisons elsewhere see one consistent format.
	_, err := tx.ExecContext(ctx,
		`INSERT INTO history (entity_type, entity_id, change_type, previous_state, new_state, acting_user_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entityType, entityID, changeType, prevJSON, nextJSON, actingUserID, time.Now().UTC(),
	)
	if err != nil {
		return model.Fatal("appending history entry", err)
	}
	return nil
}

// ListHistory returns all history entries for an entity, oldest first.
// Caller is responsible for having checked entity ownership.
func ListHistory(ctx context.Context, db *sql.DB, entityType string, entityID int64) ([]model.HistoryEntry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, entity_type, entity_id, change_type, previous_state, new_state, acting_user_id, created_at
		 FROM history
		 WHERE entity_type = ? AND entity_id = ?
		 ORDER BY id`,
		entityType, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	var entries []model.HistoryEntry
	for rows.Next() {
		var e model.HistoryEntry
		var prev, next sql.NullString
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.ChangeType,
			&prev, &next, &e.ActingUserID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		if prev.Valid {
			e.PreviousState = json.RawMessage(prev.String)
		}
		if next.Valid {
			e.NewState = json.RawMessage(next.String)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountHistory returns the number of entries for an entity. Used by
// tests asserting exactly-once audit semantics.
func CountHistory(ctx context.Context, db *sql.DB, entityType string, entityID int64) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM history WHERE entity_type = ? AND entity_id = ?`,
		entityType, entityID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting history: %w", err)
	}
	return n, nil
}
