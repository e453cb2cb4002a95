package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/seyio/owemi/internal/ledger"
	"github.com/seyio/owemi/internal/model"
)

// TransactionFilter narrows ListTransactions. Zero values mean "no
// filter" for their field.
type TransactionFilter struct {
	ContactID int64
	Category  string
	Type      string
	Currency  string
	From      time.Time
	To        time.Time
	Search    string
}

const transactionColumns = `t.id, t.user_id, t.contact_id, t.category, t.type,
	t.amount, t.currency, t.item_name, t.quantity, t.return_direction,
	t.parent_id, t.description, t.occurred_at, t.receipt_mime,
	t.created_at, t.updated_at, t.deleted_at, c.name`

// CreateTransaction validates and inserts a transaction, appending its
// CREATE history entry in the same database transaction.
func CreateTransaction(ctx context.Context, db *sql.DB, actingUserID int64, t *model.Transaction) (*model.Transaction, error) {
	t.UserID = actingUserID
	if t.ParentID != nil {
		return nil, model.Validationf("parent_id is set by the convert operation")
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	if t.ContactID != nil {
		contact, err := GetContact(ctx, db, actingUserID, *t.ContactID)
		if err != nil {
			return nil, err
		}
		if contact == nil || contact.DeletedAt != nil {
			return nil, model.NotFound("contact")
		}
		t.ContactName = contact.Name
	}

	// An item return may never push the outstanding quantity below
	// zero; reject over-returns before any state change.
	if t.Category == model.CategoryItem && t.Type == model.TypeReturned {
		if err := checkItemReturn(ctx, db, actingUserID, t, 0); err != nil {
			return nil, err
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO transactions
		 (user_id, contact_id, category, type, amount, currency, item_name, quantity,
		  return_direction, parent_id, description, occurred_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		actingUserID, t.ContactID, t.Category, t.Type,
		amountValue(t), currencyValue(t), itemValue(t), quantityValue(t),
		directionValue(t), nil, t.Description, t.OccurredAt, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting transaction id: %w", err)
	}

	t.ID = id
	t.CreatedAt = now
	t.UpdatedAt = now
	if err := appendHistory(ctx, tx, model.EntityTransaction, id, model.ChangeCreate, nil, snapshot(t), actingUserID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return GetTransaction(ctx, db, actingUserID, id)
}

// UpdateTransaction replaces a transaction's fields (full replacement)
// and appends an UPDATE history entry. If the edit changes the verified
// facts (amount, type, date, direction, item fields), every currently
// acknowledged witness is force-transitioned to modified with one
// history entry per witness, all in the same database transaction.
func UpdateTransaction(ctx context.Context, db *sql.DB, actingUserID, id int64, in *model.Transaction) (*model.Transaction, error) {
	existing, err := GetTransaction(ctx, db, actingUserID, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, model.NotFound("transaction")
	}
	if existing.DeletedAt != nil {
		return nil, model.Conflictf("transaction was removed")
	}

	in.ID = id
	in.UserID = actingUserID
	in.ParentID = existing.ParentID
	if err := in.Validate(); err != nil {
		return nil, err
	}

	// A conversion link pins the facts both sides share. Once a gift
	// child exists (or this row is one), category, type, currency and
	// contact stay fixed, otherwise the forgiven amount stops
	// cancelling the debt it came from.
	if existing.ParentID != nil || len(existing.Conversions) > 0 {
		if in.Category != existing.Category || in.Type != existing.Type ||
			in.Currency != existing.Currency || !sameContact(in.ContactID, existing.ContactID) {
			return nil, model.Conflictf("transaction is linked by a conversion; category, type, currency and contact cannot change")
		}
	}

	if in.ContactID != nil {
		contact, err := GetContact(ctx, db, actingUserID, *in.ContactID)
		if err != nil {
			return nil, err
		}
		if contact == nil || contact.DeletedAt != nil {
			return nil, model.NotFound("contact")
		}
		in.ContactName = contact.Name
	}

	if in.Category == model.CategoryItem && in.Type == model.TypeReturned {
		if err := checkItemReturn(ctx, db, actingUserID, in, id); err != nil {
			return nil, err
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE transactions SET contact_id = ?, category = ?, type = ?, amount = ?,
		 currency = ?, item_name = ?, quantity = ?, return_direction = ?,
		 description = ?, occurred_at = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		in.ContactID, in.Category, in.Type, amountValue(in), currencyValue(in),
		itemValue(in), quantityValue(in), directionValue(in),
		in.Description, in.OccurredAt, now, id, actingUserID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating transaction: %w", err)
	}

	in.CreatedAt = existing.CreatedAt
	in.UpdatedAt = now
	if err := appendHistory(ctx, tx, model.EntityTransaction, id, model.ChangeUpdate, snapshot(existing), snapshot(in), actingUserID); err != nil {
		return nil, err
	}

	// Prevent a verified record from silently drifting out from under
	// its verification: material edits demote acknowledged witnesses.
	if existing.MateriallyDiffers(in) {
		if err := demoteAcknowledgedWitnesses(ctx, tx, id, actingUserID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction update: %w", err)
	}

	return GetTransaction(ctx, db, actingUserID, id)
}

// RemoveTransaction tombstones a transaction. The row stops feeding
// aggregates but remains readable, and its history is preserved.
func RemoveTransaction(ctx context.Context, db *sql.DB, actingUserID, id int64) (*model.Transaction, error) {
	existing, err := GetTransaction(ctx, db, actingUserID, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, model.NotFound("transaction")
	}
	if existing.DeletedAt != nil {
		return nil, model.Conflictf("transaction already removed")
	}

	// A parent cannot go while its gift children still feed the
	// balance; remove the conversions first.
	if len(existing.Conversions) > 0 {
		return nil, model.Conflictf("transaction has %d active conversions", len(existing.Conversions))
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE transactions SET deleted_at = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		now, now, id, actingUserID,
	)
	if err != nil {
		return nil, fmt.Errorf("removing transaction: %w", err)
	}

	removed := *existing
	removed.DeletedAt = &now
	removed.UpdatedAt = now
	if err := appendHistory(ctx, tx, model.EntityTransaction, id, model.ChangeRemove, snapshot(existing), snapshot(&removed), actingUserID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction removal: %w", err)
	}

	return GetTransaction(ctx, db, actingUserID, id)
}

// ConvertTransaction creates a gift transaction that forgives part of
// an earlier given/received one. The child shares the parent's
// currency and contact and points back via parent_id; its direction is
// derived from the parent's type. The parent's own amount is never
// touched — the forgiven portion lives entirely in the child.
func ConvertTransaction(ctx context.Context, db *sql.DB, actingUserID, parentID int64, amount decimal.Decimal, description string) (*model.Transaction, error) {
	parent, err := GetTransaction(ctx, db, actingUserID, parentID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, model.NotFound("transaction")
	}
	if parent.DeletedAt != nil {
		return nil, model.Conflictf("cannot convert a removed transaction")
	}
	if parent.Category != model.CategoryFunds {
		return nil, model.Validationf("only funds transactions can be converted")
	}
	if parent.ContactID == nil {
		return nil, model.Validationf("only contact transactions can be converted")
	}

	var direction string
	switch parent.Type {
	case model.TypeGiven:
		direction = model.DirectionToContact
	case model.TypeReceived:
		direction = model.DirectionToMe
	default:
		return nil, model.Validationf("only given or received transactions can be converted")
	}

	now := time.Now().UTC()
	child := &model.Transaction{
		UserID:          actingUserID,
		ContactID:       parent.ContactID,
		Category:        model.CategoryFunds,
		Type:            model.TypeGift,
		Amount:          amount,
		Currency:        parent.Currency,
		ReturnDirection: direction,
		ParentID:        &parentID,
		Description:     description,
		OccurredAt:      now,
	}
	if err := child.Validate(); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO transactions
		 (user_id, contact_id, category, type, amount, currency, return_direction,
		  parent_id, description, occurred_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		actingUserID, child.ContactID, child.Category, child.Type,
		child.Amount.String(), child.Currency, child.ReturnDirection,
		parentID, child.Description, child.OccurredAt, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating conversion: %w", err)
	}

	childID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting conversion id: %w", err)
	}

	child.ID = childID
	child.CreatedAt = now
	child.UpdatedAt = now
	if err := appendHistory(ctx, tx, model.EntityTransaction, childID, model.ChangeCreate, nil, snapshot(child), actingUserID); err != nil {
		return nil, err
	}
	if err := appendHistory(ctx, tx, model.EntityTransaction, parentID, model.ChangeConvert, snapshot(parent), snapshot(child), actingUserID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing conversion: %w", err)
	}

	return GetTransaction(ctx, db, actingUserID, childID)
}

// GetTransaction returns a transaction by ID scoped to its owner,
// including its parent (if any), its conversions, the already
// converted sum, and its witnesses. Tombstoned transactions are still
// returned so the audit view stays reachable; a transaction owned by
// another user reads the same as a missing one.
func GetTransaction(ctx context.Context, db *sql.DB, userID, id int64) (*model.Transaction, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions t
		 LEFT JOIN contacts c ON c.id = t.contact_id
		 WHERE t.id = ? AND t.user_id = ?`, id, userID,
	)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting transaction: %w", err)
	}

	if t.ParentID != nil {
		parent, err := getTransactionShallow(ctx, db, userID, *t.ParentID)
		if err != nil {
			return nil, err
		}
		t.Parent = parent
	}

	if err := loadConversions(ctx, db, t); err != nil {
		return nil, err
	}

	witnesses, err := ListWitnesses(ctx, db, t.ID)
	if err != nil {
		return nil, err
	}
	t.Witnesses = witnesses

	history, err := ListHistory(ctx, db, model.EntityTransaction, t.ID)
	if err != nil {
		return nil, err
	}
	t.History = history

	return t, nil
}

// ListTransactions returns all non-tombstoned transactions for a user
// matching the filter, newest first.
func ListTransactions(ctx context.Context, db *sql.DB, userID int64, f TransactionFilter) ([]model.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
	          FROM transactions t
	          LEFT JOIN contacts c ON c.id = t.contact_id
	          WHERE t.user_id = ? AND t.deleted_at IS NULL`
	args := []any{userID}

	if f.ContactID > 0 {
		query += ` AND t.contact_id = ?`
		args = append(args, f.ContactID)
	}
	if f.Category != "" {
		query += ` AND t.category = ?`
		args = append(args, f.Category)
	}
	if f.Type != "" {
		query += ` AND t.type = ?`
		args = append(args, f.Type)
	}
	if f.Currency != "" {
		query += ` AND t.currency = ?`
		args = append(args, f.Currency)
	}
	if !f.From.IsZero() {
		query += ` AND t.occurred_at >= ?`
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		query += ` AND t.occurred_at <= ?`
		args = append(args, f.To)
	}
	if f.Search != "" {
		query += ` AND (t.description LIKE ? OR t.item_name LIKE ?)`
		pattern := "%" + f.Search + "%"
		args = append(args, pattern, pattern)
	}

	query += ` ORDER BY t.occurred_at DESC, t.id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var txs []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		txs = append(txs, *t)
	}
	return txs, rows.Err()
}

// SetReceipt attaches a processed receipt image to a transaction.
func SetReceipt(ctx context.Context, db *sql.DB, userID, id int64, data []byte, mime string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE transactions SET receipt = ?, receipt_mime = ? WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		data, mime, id, userID,
	)
	if err != nil {
		return fmt.Errorf("storing receipt: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("storing receipt: %w", err)
	}
	if n == 0 {
		return model.NotFound("transaction")
	}
	return nil
}

// GetReceipt returns a transaction's receipt image, if any.
func GetReceipt(ctx context.Context, db *sql.DB, userID, id int64) ([]byte, string, error) {
	var data []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT receipt, receipt_mime FROM transactions WHERE id = ? AND user_id = ?`,
		id, userID,
	).Scan(&data, &mime)
	if err == sql.ErrNoRows {
		return nil, "", model.NotFound("transaction")
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt: %w", err)
	}
	if len(data) == 0 {
		return nil, "", model.NotFound("receipt")
	}
	return data, mime.String, nil
}

// checkItemReturn rejects a return of more than the outstanding
// quantity for the (item, contact) pair. excludeID skips the row being
// edited so an update is checked against the rest of the set.
func checkItemReturn(ctx context.Context, db *sql.DB, userID int64, t *model.Transaction, excludeID int64) error {
	existing, err := ListTransactions(ctx, db, userID, TransactionFilter{
		ContactID: *t.ContactID,
		Category:  model.CategoryItem,
	})
	if err != nil {
		return err
	}
	if excludeID > 0 {
		kept := existing[:0]
		for _, e := range existing {
			if e.ID != excludeID {
				kept = append(kept, e)
			}
		}
		existing = kept
	}

	outstanding := ledger.OutstandingQuantity(existing, t.ItemName, *t.ContactID)
	if t.Quantity > outstanding {
		return model.Conflictf("cannot return %d of %q: only %d outstanding",
			t.Quantity, t.ItemName, outstanding)
	}
	return nil
}

// getTransactionShallow loads a single row without its graph.
func getTransactionShallow(ctx context.Context, db *sql.DB, userID, id int64) (*model.Transaction, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions t
		 LEFT JOIN contacts c ON c.id = t.contact_id
		 WHERE t.id = ? AND t.user_id = ?`, id, userID,
	)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting parent transaction: %w", err)
	}
	return t, nil
}

// loadConversions fills t.Conversions and t.ConvertedTotal with the
// non-tombstoned children, oldest first.
func loadConversions(ctx context.Context, db *sql.DB, t *model.Transaction) error {
	rows, err := db.QueryContext(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions t
		 LEFT JOIN contacts c ON c.id = t.contact_id
		 WHERE t.parent_id = ? AND t.deleted_at IS NULL
		 ORDER BY t.id`, t.ID,
	)
	if err != nil {
		return fmt.Errorf("listing conversions: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		child, err := scanTransaction(rows)
		if err != nil {
			return fmt.Errorf("scanning conversion: %w", err)
		}
		total = total.Add(child.Amount)
		t.Conversions = append(t.Conversions, *child)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	t.ConvertedTotal = total
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	t := &model.Transaction{}
	var amount, currency, itemName, direction, description, receiptMime, contactName sql.NullString
	var quantity sql.NullInt64

	err := row.Scan(&t.ID, &t.UserID, &t.ContactID, &t.Category, &t.Type,
		&amount, &currency, &itemName, &quantity, &direction,
		&t.ParentID, &description, &t.OccurredAt, &receiptMime,
		&t.CreatedAt, &t.UpdatedAt, &t.DeletedAt, &contactName)
	if err != nil {
		return nil, err
	}

	if amount.Valid {
		// A malformed amount is left at zero; the read-side engines
		// treat it as an integrity violation and skip the row.
		if d, err := decimal.NewFromString(amount.String); err == nil {
			t.Amount = d
		}
	}
	t.Currency = currency.String
	t.ItemName = itemName.String
	t.Quantity = int(quantity.Int64)
	t.ReturnDirection = direction.String
	t.Description = description.String
	t.ReceiptMime = receiptMime.String
	t.ContactName = contactName.String
	return t, nil
}

// snapshot returns a copy of t stripped of joined sub-objects, for
// history serialization.
func snapshot(t *model.Transaction) *model.Transaction {
	s := *t
	s.Parent = nil
	s.Conversions = nil
	s.Witnesses = nil
	s.History = nil
	return &s
}

func amountValue(t *model.Transaction) any {
	if t.Category == model.CategoryFunds {
		return t.Amount.String()
	}
	return nil
}

func currencyValue(t *model.Transaction) any {
	if t.Category == model.CategoryFunds {
		return t.Currency
	}
	return nil
}

func itemValue(t *model.Transaction) any {
	if t.Category == model.CategoryItem {
		return t.ItemName
	}
	return nil
}

func quantityValue(t *model.Transaction) any {
	if t.Category == model.CategoryItem {
		return t.Quantity
	}
	return nil
}

func directionValue(t *model.Transaction) any {
	if t.ReturnDirection == "" {
		return nil
	}
	return t.ReturnDirection
}

func sameContact(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
