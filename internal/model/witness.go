package model

import "time"

// Witness attaches a third-party verifier to exactly one transaction.
// Either UserID (a registered account) or the invite fields (a
// not-yet-registered person keyed by email) identify the verifier.
type Witness struct {
	ID            int64 `json:"id"`
	TransactionID int64 `json:"transaction_id"`

	UserID *int64 `json:"user_id,omitempty"`

	InviteName  string `json:"invite_name,omitempty"`
	InviteEmail string `json:"invite_email,omitempty"`
	InvitePhone string `json:"invite_phone,omitempty"`
	InviteToken string `json:"invite_token,omitempty"`

	Status         string     `json:"status"`
	InvitedAt      time.Time  `json:"invited_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`

	// Joined fields (not always populated).
	WitnessName string `json:"witness_name,omitempty"`
}

// Witness statuses.
const (
	WitnessPending      = "pending"
	WitnessModified     = "modified"
	WitnessAcknowledged = "acknowledged"
	WitnessDeclined     = "declined"
)

// WitnessInvite is the payload for inviting a person without an
// account.
type WitnessInvite struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Validate checks an invite payload.
func (i *WitnessInvite) Validate() error {
	if i.Name == "" {
		return Validationf("witness invite name is required")
	}
	if i.Email == "" {
		return Validationf("witness invite email is required")
	}
	return nil
}

// Actionable reports whether the witness may still acknowledge or
// decline. Modified behaves like pending here: the underlying
// transaction changed after the invite and awaits re-review.
func (w *Witness) Actionable() bool {
	return w.Status == WitnessPending || w.Status == WitnessModified
}
