package model

import "time"

// Contact represents a counterparty in a user's personal ledger.
// Contacts are owned exclusively by the user who created them and may
// or may not correspond to a platform account. Balance is always
// derived from the transaction set, never stored here.
type Contact struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"user_id"`
	Name         string     `json:"name"`
	Email        string     `json:"email,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	LinkedUserID *int64     `json:"linked_user_id,omitempty"`
	InvitedAt    *time.Time `json:"invited_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// OnPlatform reports whether the contact is linked to an account.
func (c *Contact) OnPlatform() bool {
	return c.LinkedUserID != nil
}

// Validate checks contact input.
func (c *Contact) Validate() error {
	if c.Name == "" {
		return Validationf("name is required")
	}
	return nil
}
