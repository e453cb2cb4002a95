// Package notify is the delivery collaborator for witness invites.
// Sends are best-effort by contract: a failed notification must never
// roll back the ledger mutation that triggered it, so callers invoke
// the service after their database transaction commits and only log
// failures.
package notify

import (
	"context"
	"log/slog"

	"github.com/seyio/owemi/internal/model"
)

// Service delivers witness invitations.
type Service interface {
	SendWitnessInvite(ctx context.Context, w model.Witness, t model.Transaction) error
	ResendWitnessInvite(ctx context.Context, w model.Witness, t model.Transaction) error
}

// Log is a Service that records deliveries instead of sending them.
// It stands in for the real email/SMS gateway in development and tests.
type Log struct {
	Logger *slog.Logger
}

// SendWitnessInvite implements Service.
func (l *Log) SendWitnessInvite(_ context.Context, w model.Witness, t model.Transaction) error {
	l.Logger.Info("witness invite",
		"witness", w.ID, "transaction", t.ID,
		"recipient", recipient(w))
	return nil
}

// ResendWitnessInvite implements Service.
func (l *Log) ResendWitnessInvite(_ context.Context, w model.Witness, t model.Transaction) error {
	l.Logger.Info("witness invite resent",
		"witness", w.ID, "transaction", t.ID,
		"recipient", recipient(w))
	return nil
}

func recipient(w model.Witness) string {
	if w.UserID != nil {
		return w.WitnessName
	}
	return w.InviteEmail
}
