package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/seyio/owemi/internal/model"
)

// CreateContact creates a contact owned by the acting user.
func CreateContact(ctx context.Context, db *sql.DB, actingUserID int64, c *model.Contact) (*model.Contact, error) {
	c.UserID = actingUserID
	if err := c.Validate(); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO contacts (user_id, name, email, phone, linked_user_id, invited_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		actingUserID, c.Name, c.Email, c.Phone, c.LinkedUserID, c.InvitedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating contact: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting contact id: %w", err)
	}

	c.ID = id
	if err := appendHistory(ctx, tx, model.EntityContact, id, model.ChangeCreate, nil, c, actingUserID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing contact: %w", err)
	}

	return GetContact(ctx, db, actingUserID, id)
}

// GetContact returns a contact by ID, scoped to its owner. A contact
// owned by another user reads the same as a missing one.
func GetContact(ctx context.Context, db *sql.DB, userID, id int64) (*model.Contact, error) {
	c := &model.Contact{}
	var email, phone sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, user_id, name, email, phone, linked_user_id, invited_at, created_at, deleted_at
		 FROM contacts WHERE id = ? AND user_id = ?`, id, userID,
	).Scan(&c.ID, &c.UserID, &c.Name, &email, &phone, &c.LinkedUserID, &c.InvitedAt, &c.CreatedAt, &c.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting contact: %w", err)
	}
	c.Email = email.String
	c.Phone = phone.String
	return c, nil
}

// ListContacts returns all non-deleted contacts for a user.
func ListContacts(ctx context.Context, db *sql.DB, userID int64) ([]model.Contact, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, name, email, phone, linked_user_id, invited_at, created_at, deleted_at
		 FROM contacts WHERE user_id = ? AND deleted_at IS NULL ORDER BY name`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing contacts: %w", err)
	}
	defer rows.Close()

	var contacts []model.Contact
	for rows.Next() {
		var c model.Contact
		var email, phone sql.NullString
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &email, &phone,
			&c.LinkedUserID, &c.InvitedAt, &c.CreatedAt, &c.DeletedAt); err != nil {
			return nil, fmt.Errorf("scanning contact: %w", err)
		}
		c.Email = email.String
		c.Phone = phone.String
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// UpdateContact replaces a contact's editable fields.
func UpdateContact(ctx context.Context, db *sql.DB, actingUserID, id int64, in *model.Contact) (*model.Contact, error) {
	existing, err := GetContact(ctx, db, actingUserID, id)
	if err != nil {
		return nil, err
	}
	if existing == nil || existing.DeletedAt != nil {
		return nil, model.NotFound("contact")
	}

	in.ID = id
	in.UserID = actingUserID
	if err := in.Validate(); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE contacts SET name = ?, email = ?, phone = ?, linked_user_id = ?, invited_at = ?
		 WHERE id = ? AND user_id = ?`,
		in.Name, in.Email, in.Phone, in.LinkedUserID, in.InvitedAt, id, actingUserID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating contact: %w", err)
	}

	if err := appendHistory(ctx, tx, model.EntityContact, id, model.ChangeUpdate, existing, in, actingUserID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing contact update: %w", err)
	}

	return GetContact(ctx, db, actingUserID, id)
}

// DeleteContact soft-deletes a contact. Rejected while the contact
// still has non-tombstoned transactions: the ledger must stay
// explicable per counterparty.
func DeleteContact(ctx context.Context, db *sql.DB, actingUserID, id int64) error {
	existing, err := GetContact(ctx, db, actingUserID, id)
	if err != nil {
		return err
	}
	if existing == nil || existing.DeletedAt != nil {
		return model.NotFound("contact")
	}

	var active int
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE contact_id = ? AND deleted_at IS NULL`, id,
	).Scan(&active)
	if err != nil {
		return fmt.Errorf("checking contact transactions: %w", err)
	}
	if active > 0 {
		return model.Conflictf("contact has %d active transactions", active)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE contacts SET deleted_at = ? WHERE id = ? AND user_id = ?`,
		now, id, actingUserID,
	)
	if err != nil {
		return fmt.Errorf("deleting contact: %w", err)
	}

	removed := *existing
	removed.DeletedAt = &now
	if err := appendHistory(ctx, tx, model.EntityContact, id, model.ChangeRemove, existing, &removed, actingUserID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing contact delete: %w", err)
	}
	return nil
}
