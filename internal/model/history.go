package model

import (
	"encoding/json"
	"time"
)

// HistoryEntry is one append-only record of a state transition on a
// transaction, witness, or contact. Entries are never mutated or
// deleted; both snapshots are carried so a reader can diff.
type HistoryEntry struct {
	ID         int64 `json:"id"`
	EntityType string `json:"entity_type"`
	EntityID   int64 `json:"entity_id"`

	ChangeType string `json:"change_type"`

	// PreviousState is null for create entries.
	PreviousState json.RawMessage `json:"previous_state,omitempty"`
	NewState      json.RawMessage `json:"new_state,omitempty"`

	ActingUserID int64     `json:"acting_user_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// History entity types.
const (
	EntityTransaction = "transaction"
	EntityWitness     = "witness"
	EntityContact     = "contact"
)

// History change types.
const (
	ChangeCreate      = "create"
	ChangeUpdate      = "update"
	ChangeConvert     = "convert"
	ChangeAcknowledge = "acknowledge"
	ChangeDecline     = "decline"
	ChangeRemove      = "remove"
	ChangeInvite      = "invite"
	ChangeResend      = "resend"
	ChangeClaim       = "claim"
)
