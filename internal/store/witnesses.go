package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/seyio/owemi/internal/model"
	"github.com/seyio/owemi/internal/quota"
)

// AddWitnesses invites witnesses to a transaction: registered users by
// id, and not-yet-registered people by invite payload. The quota check
// runs up front against the total requested count, so the operation is
// all-or-nothing — it never partially adds witnesses. Only the rows
// created by this call are returned; witnesses already on the
// transaction are left alone.
func AddWitnesses(ctx context.Context, db *sql.DB, qs quota.Service, actingUserID, transactionID int64, userIDs []int64, invites []model.WitnessInvite) ([]model.Witness, error) {
	t, err := GetTransaction(ctx, db, actingUserID, transactionID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, model.NotFound("transaction")
	}
	if t.DeletedAt != nil {
		return nil, model.Conflictf("cannot witness a removed transaction")
	}

	total := len(userIDs) + len(invites)
	if total == 0 {
		return nil, model.Validationf("at least one witness is required")
	}

	for i := range invites {
		if err := invites[i].Validate(); err != nil {
			return nil, err
		}
	}
	usernames := make(map[int64]string, len(userIDs))
	for _, uid := range userIDs {
		if uid == actingUserID {
			return nil, model.Validationf("cannot witness your own transaction")
		}
		u, err := GetUser(ctx, db, uid)
		if err != nil {
			return nil, err
		}
		if u == nil || u.DeletedAt != nil {
			return nil, model.NotFound("user")
		}
		usernames[uid] = u.Username
	}

	pro, err := qs.IsPro(ctx, actingUserID)
	if err != nil {
		return nil, err
	}
	if !pro {
		remaining, err := qs.RemainingWitnessInvites(ctx, actingUserID)
		if err != nil {
			return nil, err
		}
		if total > remaining {
			return nil, model.QuotaExceeded(remaining)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	created := make([]model.Witness, 0, total)
	for _, uid := range userIDs {
		w := model.Witness{
			TransactionID: transactionID,
			UserID:        &uid,
			Status:        model.WitnessPending,
			InvitedAt:     now,
			WitnessName:   usernames[uid],
		}
		result, err := tx.ExecContext(ctx,
			`INSERT INTO witnesses (transaction_id, user_id, status, invited_at)
			 VALUES (?, ?, ?, ?)`,
			transactionID, uid, model.WitnessPending, now,
		)
		if err != nil {
			return nil, fmt.Errorf("creating witness: %w", err)
		}
		w.ID, _ = result.LastInsertId()
		if err := appendHistory(ctx, tx, model.EntityWitness, w.ID, model.ChangeInvite, nil, &w, actingUserID); err != nil {
			return nil, err
		}
		created = append(created, w)
	}

	for _, inv := range invites {
		w := model.Witness{
			TransactionID: transactionID,
			InviteName:    inv.Name,
			InviteEmail:   inv.Email,
			InvitePhone:   inv.Phone,
			InviteToken:   uuid.NewString(),
			Status:        model.WitnessPending,
			InvitedAt:     now,
			WitnessName:   inv.Name,
		}
		result, err := tx.ExecContext(ctx,
			`INSERT INTO witnesses (transaction_id, invite_name, invite_email, invite_phone, invite_token, status, invited_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			transactionID, inv.Name, inv.Email, inv.Phone, w.InviteToken, model.WitnessPending, now,
		)
		if err != nil {
			return nil, fmt.Errorf("creating witness invite: %w", err)
		}
		w.ID, _ = result.LastInsertId()
		if err := appendHistory(ctx, tx, model.EntityWitness, w.ID, model.ChangeInvite, nil, &w, actingUserID); err != nil {
			return nil, err
		}
		created = append(created, w)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing witnesses: %w", err)
	}

	return created, nil
}

// AcknowledgeWitness records the invited witness's verdict. Legal only
// from pending or modified; a second attempt on a terminal witness is
// a conflict and writes no duplicate history. The history entry lands
// on the parent transaction so the audit view shows who verified what.
func AcknowledgeWitness(ctx context.Context, db *sql.DB, actingUserID, witnessID int64, status string) (*model.Witness, error) {
	if status != model.WitnessAcknowledged && status != model.WitnessDeclined {
		return nil, model.Validationf("status must be %q or %q", model.WitnessAcknowledged, model.WitnessDeclined)
	}

	w, err := getWitness(ctx, db, witnessID)
	if err != nil {
		return nil, err
	}
	// Only the invited account may act; anyone else sees not-found.
	if w == nil || w.UserID == nil || *w.UserID != actingUserID {
		return nil, model.NotFound("witness")
	}
	if !w.Actionable() {
		return nil, model.Conflictf("witness already %s", w.Status)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE witnesses SET status = ?, acknowledged_at = ? WHERE id = ?`,
		status, now, witnessID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating witness: %w", err)
	}

	updated := *w
	updated.Status = status
	updated.AcknowledgedAt = &now

	changeType := model.ChangeAcknowledge
	if status == model.WitnessDeclined {
		changeType = model.ChangeDecline
	}
	if err := appendHistory(ctx, tx, model.EntityTransaction, w.TransactionID, changeType, w, &updated, actingUserID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing witness acknowledgment: %w", err)
	}

	return getWitness(ctx, db, witnessID)
}

// ResendWitness refreshes a pending or modified invite. The status is
// unchanged; invited_at moves so the notification collaborator can be
// retriggered by the caller.
func ResendWitness(ctx context.Context, db *sql.DB, actingUserID, witnessID int64) (*model.Witness, error) {
	w, err := getWitnessForOwner(ctx, db, actingUserID, witnessID)
	if err != nil {
		return nil, err
	}
	if !w.Actionable() {
		return nil, model.Conflictf("witness already %s", w.Status)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE witnesses SET invited_at = ? WHERE id = ?`, now, witnessID,
	)
	if err != nil {
		return nil, fmt.Errorf("resending witness invite: %w", err)
	}

	updated := *w
	updated.InvitedAt = now
	if err := appendHistory(ctx, tx, model.EntityWitness, witnessID, model.ChangeResend, w, &updated, actingUserID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing witness resend: %w", err)
	}

	return getWitness(ctx, db, witnessID)
}

// RemoveWitness deletes a witness row. An acknowledged witness can
// never be removed — verified facts are append-only. The invite
// history entry is retained.
func RemoveWitness(ctx context.Context, db *sql.DB, actingUserID, witnessID int64) error {
	w, err := getWitnessForOwner(ctx, db, actingUserID, witnessID)
	if err != nil {
		return err
	}
	if w.Status == model.WitnessAcknowledged {
		return model.Conflictf("cannot remove an acknowledged witness")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `DELETE FROM witnesses WHERE id = ?`, witnessID)
	if err != nil {
		return fmt.Errorf("removing witness: %w", err)
	}

	if err := appendHistory(ctx, tx, model.EntityWitness, witnessID, model.ChangeRemove, w, nil, actingUserID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing witness removal: %w", err)
	}
	return nil
}

// ClaimWitnessInvites links email-keyed invites to a freshly registered
// account, so the invitee can act through the normal witness endpoints.
// Invites on the claimer's own transactions are skipped (a user never
// witnesses their own record) and the invite token is cleared once the
// account takes over. Returns the number of claimed invites.
func ClaimWitnessInvites(ctx context.Context, db *sql.DB, actingUserID int64, email string) (int, error) {
	if email == "" {
		return 0, nil
	}

	rows, err := db.QueryContext(ctx,
		`SELECT w.id, w.transaction_id, w.user_id, w.invite_name, w.invite_email,
		        w.invite_phone, w.invite_token, w.status, w.invited_at, w.acknowledged_at,
		        w.invite_name AS witness_name
		 FROM witnesses w
		 JOIN transactions t ON t.id = w.transaction_id
		 WHERE w.invite_email = ? AND w.user_id IS NULL AND t.user_id != ?
		 ORDER BY w.id`, email, actingUserID,
	)
	if err != nil {
		return 0, fmt.Errorf("finding claimable invites: %w", err)
	}

	var pending []model.Witness
	for rows.Next() {
		w, err := scanWitness(rows)
		if err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning witness: %w", err)
		}
		pending = append(pending, *w)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	if len(pending) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range pending {
		w := &pending[i]
		_, err := tx.ExecContext(ctx,
			`UPDATE witnesses SET user_id = ?, invite_token = NULL WHERE id = ?`,
			actingUserID, w.ID,
		)
		if err != nil {
			return 0, fmt.Errorf("claiming witness invite: %w", err)
		}

		updated := *w
		updated.UserID = &actingUserID
		updated.InviteToken = ""
		if err := appendHistory(ctx, tx, model.EntityWitness, w.ID, model.ChangeClaim, w, &updated, actingUserID); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing invite claim: %w", err)
	}
	return len(pending), nil
}

// ListWitnesses returns all witnesses on a transaction, oldest first.
func ListWitnesses(ctx context.Context, db *sql.DB, transactionID int64) ([]model.Witness, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT w.id, w.transaction_id, w.user_id, w.invite_name, w.invite_email,
		        w.invite_phone, w.invite_token, w.status, w.invited_at, w.acknowledged_at,
		        COALESCE(u.username, w.invite_name, '') AS witness_name
		 FROM witnesses w
		 LEFT JOIN users u ON u.id = w.user_id
		 WHERE w.transaction_id = ?
		 ORDER BY w.id`, transactionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing witnesses: %w", err)
	}
	defer rows.Close()

	var witnesses []model.Witness
	for rows.Next() {
		w, err := scanWitness(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning witness: %w", err)
		}
		witnesses = append(witnesses, *w)
	}
	return witnesses, rows.Err()
}

// ListPendingWitnessRequests returns the witness rows awaiting action
// from the given user across all transactions, oldest invite first.
func ListPendingWitnessRequests(ctx context.Context, db *sql.DB, userID int64) ([]model.Witness, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT w.id, w.transaction_id, w.user_id, w.invite_name, w.invite_email,
		        w.invite_phone, w.invite_token, w.status, w.invited_at, w.acknowledged_at,
		        COALESCE(u.username, w.invite_name, '') AS witness_name
		 FROM witnesses w
		 LEFT JOIN users u ON u.id = w.user_id
		 WHERE w.user_id = ? AND w.status IN (?, ?)
		 ORDER BY w.invited_at`, userID, model.WitnessPending, model.WitnessModified,
	)
	if err != nil {
		return nil, fmt.Errorf("listing witness requests: %w", err)
	}
	defer rows.Close()

	var witnesses []model.Witness
	for rows.Next() {
		w, err := scanWitness(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning witness: %w", err)
		}
		witnesses = append(witnesses, *w)
	}
	return witnesses, rows.Err()
}

// demoteAcknowledgedWitnesses flips every acknowledged witness on a
// transaction to modified, with one history entry per witness. Runs
// inside the caller's update transaction.
func demoteAcknowledgedWitnesses(ctx context.Context, tx *sql.Tx, transactionID, actingUserID int64) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT w.id, w.transaction_id, w.user_id, w.invite_name, w.invite_email,
		        w.invite_phone, w.invite_token, w.status, w.invited_at, w.acknowledged_at,
		        '' AS witness_name
		 FROM witnesses w
		 WHERE w.transaction_id = ? AND w.status = ?`,
		transactionID, model.WitnessAcknowledged,
	)
	if err != nil {
		return fmt.Errorf("finding acknowledged witnesses: %w", err)
	}

	var acknowledged []model.Witness
	for rows.Next() {
		w, err := scanWitness(rows)
		if err != nil {
			rows.Close()
			return fmt.Errorf("scanning witness: %w", err)
		}
		acknowledged = append(acknowledged, *w)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for i := range acknowledged {
		w := &acknowledged[i]
		_, err := tx.ExecContext(ctx,
			`UPDATE witnesses SET status = ? WHERE id = ?`,
			model.WitnessModified, w.ID,
		)
		if err != nil {
			return fmt.Errorf("demoting witness: %w", err)
		}

		updated := *w
		updated.Status = model.WitnessModified
		if err := appendHistory(ctx, tx, model.EntityWitness, w.ID, model.ChangeUpdate, w, &updated, actingUserID); err != nil {
			return err
		}
	}
	return nil
}

// getWitness loads a witness row without authorization checks.
func getWitness(ctx context.Context, db *sql.DB, id int64) (*model.Witness, error) {
	row := db.QueryRowContext(ctx,
		`SELECT w.id, w.transaction_id, w.user_id, w.invite_name, w.invite_email,
		        w.invite_phone, w.invite_token, w.status, w.invited_at, w.acknowledged_at,
		        COALESCE(u.username, w.invite_name, '') AS witness_name
		 FROM witnesses w
		 LEFT JOIN users u ON u.id = w.user_id
		 WHERE w.id = ?`, id,
	)
	w, err := scanWitness(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting witness: %w", err)
	}
	return w, nil
}

// getWitnessForOwner loads a witness and verifies the acting user owns
// the underlying transaction.
func getWitnessForOwner(ctx context.Context, db *sql.DB, actingUserID, id int64) (*model.Witness, error) {
	w, err := getWitness(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, model.NotFound("witness")
	}

	var ownerID int64
	err = db.QueryRowContext(ctx,
		`SELECT user_id FROM transactions WHERE id = ?`, w.TransactionID,
	).Scan(&ownerID)
	if err != nil {
		return nil, fmt.Errorf("checking witness ownership: %w", err)
	}
	if ownerID != actingUserID {
		return nil, model.NotFound("witness")
	}
	return w, nil
}

func scanWitness(row rowScanner) (*model.Witness, error) {
	w := &model.Witness{}
	var name, email, phone, token, witnessName sql.NullString
	err := row.Scan(&w.ID, &w.TransactionID, &w.UserID, &name, &email,
		&phone, &token, &w.Status, &w.InvitedAt, &w.AcknowledgedAt, &witnessName)
	if err != nil {
		return nil, err
	}
	w.InviteName = name.String
	w.InviteEmail = email.String
	w.InvitePhone = phone.String
	w.InviteToken = token.String
	w.WitnessName = witnessName.String
	return w, nil
}
