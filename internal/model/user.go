package model

import "time"

// User represents an account holder.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Plan         string     `json:"plan"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// Subscription plans.
const (
	PlanFree = "free"
	PlanPro  = "pro"
)
