// Package quota exposes the subscription-tier collaborator consulted
// before witness invites. The ledger core only needs a yes/no
// capability answer; billing itself lives elsewhere.
package quota

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/seyio/owemi/internal/model"
)

// Service answers how many witness invites a user may still send.
type Service interface {
	// RemainingWitnessInvites returns the user's unused invite
	// allowance for the current period.
	RemainingWitnessInvites(ctx context.Context, userID int64) (int, error)

	// IsPro reports whether the user's plan lifts the invite cap.
	IsPro(ctx context.Context, userID int64) (bool, error)
}

// Store is the database-backed Service: free users get a fixed number
// of invites per calendar month (UTC), pro users are uncapped.
type Store struct {
	DB                 *sql.DB
	FreeMonthlyInvites int
}

// IsPro implements Service.
func (s *Store) IsPro(ctx context.Context, userID int64) (bool, error) {
	var plan string
	err := s.DB.QueryRowContext(ctx,
		`SELECT plan FROM users WHERE id = ? AND deleted_at IS NULL`, userID,
	).Scan(&plan)
	if err == sql.ErrNoRows {
		return false, model.NotFound("user")
	}
	if err != nil {
		return false, fmt.Errorf("checking plan: %w", err)
	}
	return plan == model.PlanPro, nil
}

// RemainingWitnessInvites implements Service. Usage is counted from
// the immutable invite audit entries, not from witness rows: witness
// timestamps move on resends and rows disappear on removal, and
// neither hands the quota back.
func (s *Store) RemainingWitnessInvites(ctx context.Context, userID int64) (int, error) {
	pro, err := s.IsPro(ctx, userID)
	if err != nil {
		return 0, err
	}
	if pro {
		// Uncapped; report the full allowance so callers never block.
		return int(^uint(0) >> 1), nil
	}

	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	var used int
	err = s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*)
		 FROM history
		 WHERE entity_type = ? AND change_type = ? AND acting_user_id = ? AND created_at >= ?`,
		model.EntityWitness, model.ChangeInvite, userID, monthStart,
	).Scan(&used)
	if err != nil {
		return 0, fmt.Errorf("counting invites: %w", err)
	}

	remaining := s.FreeMonthlyInvites - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
