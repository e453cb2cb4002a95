package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents one recorded financial or item movement.
// Identity is immutable; fields are mutable via full replacement,
// with every change captured in the history log. Transactions are
// never physically deleted — removal sets DeletedAt (tombstone).
type Transaction struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	ContactID *int64 `json:"contact_id,omitempty"`

	Category string `json:"category"`
	Type     string `json:"type"`

	// FUNDS fields.
	Amount   decimal.Decimal `json:"amount,omitempty"`
	Currency string          `json:"currency,omitempty"`

	// ITEM fields.
	ItemName string `json:"item_name,omitempty"`
	Quantity int    `json:"quantity,omitempty"`

	// Required for RETURNED and GIFT when a contact is set.
	ReturnDirection string `json:"return_direction,omitempty"`

	// Conversion source; set when this transaction reclassifies part
	// of an earlier one (debt forgiven into a gift).
	ParentID *int64 `json:"parent_id,omitempty"`

	Description string    `json:"description,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
	ReceiptMime string    `json:"receipt_mime,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	// Joined/derived fields (not always populated).
	ContactName    string          `json:"contact_name,omitempty"`
	Witnesses      []Witness       `json:"witnesses,omitempty"`
	Parent         *Transaction    `json:"parent,omitempty"`
	Conversions    []Transaction   `json:"conversions,omitempty"`
	ConvertedTotal decimal.Decimal `json:"converted_total"`
	History        []HistoryEntry  `json:"history,omitempty"`
}

// Transaction categories.
const (
	CategoryFunds = "funds"
	CategoryItem  = "item"
)

// Transaction types.
const (
	TypeGiven    = "given"
	TypeReceived = "received"
	TypeReturned = "returned"
	TypeGift     = "gift"
	TypeExpense  = "expense"
	TypeIncome   = "income"
)

// Return directions.
const (
	DirectionToMe      = "to_me"
	DirectionToContact = "to_contact"
)

// contactTypes are the types legal when a contact is set.
var contactTypes = map[string]bool{
	TypeGiven:    true,
	TypeReceived: true,
	TypeReturned: true,
	TypeGift:     true,
}

// personalTypes are the types legal without a contact.
var personalTypes = map[string]bool{
	TypeExpense: true,
	TypeIncome:  true,
}

// directedTypes require a return direction when a contact is set.
var directedTypes = map[string]bool{
	TypeReturned: true,
	TypeGift:     true,
}

// Validate checks the write-time invariants. Violations are rejected
// before any state change; an unknown type can therefore never reach
// the read-side aggregation.
func (t *Transaction) Validate() error {
	switch t.Category {
	case CategoryFunds, CategoryItem:
	default:
		return Validationf("category must be %q or %q", CategoryFunds, CategoryItem)
	}

	if t.ContactID != nil {
		if !contactTypes[t.Type] {
			return Validationf("type %q requires no contact", t.Type)
		}
	} else {
		if !personalTypes[t.Type] {
			return Validationf("type %q requires a contact", t.Type)
		}
	}

	switch t.Category {
	case CategoryFunds:
		if !t.Amount.IsPositive() {
			return Validationf("amount must be positive")
		}
		if len(t.Currency) != 3 {
			return Validationf("currency must be a 3-letter ISO code")
		}
		if t.ItemName != "" || t.Quantity != 0 {
			return Validationf("item fields are not allowed on funds transactions")
		}
	case CategoryItem:
		if t.ItemName == "" {
			return Validationf("item_name is required")
		}
		if t.Quantity < 1 {
			return Validationf("quantity must be at least 1")
		}
		if !t.Amount.IsZero() || t.Currency != "" {
			return Validationf("amount and currency are not allowed on item transactions")
		}
		if t.ContactID == nil {
			return Validationf("item transactions require a contact")
		}
	}

	if t.ContactID != nil && directedTypes[t.Type] && t.Category == CategoryFunds {
		if t.ReturnDirection != DirectionToMe && t.ReturnDirection != DirectionToContact {
			return Validationf("return_direction must be %q or %q", DirectionToMe, DirectionToContact)
		}
	}

	if t.OccurredAt.IsZero() {
		return Validationf("occurred_at is required")
	}

	return nil
}

// MateriallyDiffers reports whether an edit changes the facts a
// witness verified: amount, type, date, or direction. Such an edit
// forces acknowledged witnesses back to the modified state.
func (t *Transaction) MateriallyDiffers(other *Transaction) bool {
	return !t.Amount.Equal(other.Amount) ||
		t.Type != other.Type ||
		!t.OccurredAt.Equal(other.OccurredAt) ||
		t.ReturnDirection != other.ReturnDirection ||
		t.Quantity != other.Quantity ||
		t.ItemName != other.ItemName ||
		t.Currency != other.Currency
}
