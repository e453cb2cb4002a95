package ledger

import (
	"sort"
	"strings"
	"time"

	"github.com/seyio/owemi/internal/model"
)

// AggregatedItem is the reconciled outstanding-quantity view for one
// (item, contact) pair.
type AggregatedItem struct {
	ItemName    string    `json:"item_name"`
	ContactID   int64     `json:"contact_id"`
	ContactName string    `json:"contact_name"`
	Quantity    int       `json:"quantity"`
	Status      string    `json:"status"`
	LastUpdated time.Time `json:"last_updated"`
}

// Aggregated item statuses.
const (
	ItemLent     = "lent"
	ItemBorrowed = "borrowed"
	ItemReturned = "returned"
)

type itemKey struct {
	contactID int64
	itemName  string
}

type itemState struct {
	// outstanding is signed: positive means lent to the contact,
	// negative means borrowed from them.
	outstanding int
	contactName string
	lastUpdated time.Time
}

// ReconcileItems folds item transactions chronologically into one
// AggregatedItem per (item, contact) pair. A return nets against
// whichever side is outstanding and is floored at zero; write-time
// validation guarantees it never crosses (see OutstandingQuantity).
func ReconcileItems(txs []model.Transaction) []AggregatedItem {
	ordered := make([]model.Transaction, 0, len(txs))
	for _, t := range txs {
		if t.Category == model.CategoryItem && t.ContactID != nil {
			ordered = append(ordered, t)
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].OccurredAt.Equal(ordered[j].OccurredAt) {
			return ordered[i].OccurredAt.Before(ordered[j].OccurredAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	states := make(map[itemKey]*itemState)
	var keys []itemKey

	for _, t := range ordered {
		key := itemKey{contactID: *t.ContactID, itemName: t.ItemName}
		st, ok := states[key]
		if !ok {
			st = &itemState{contactName: t.ContactName}
			states[key] = st
			keys = append(keys, key)
		}
		st.apply(&t)
	}

	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if c := strings.Compare(a.itemName, b.itemName); c != 0 {
			return c < 0
		}
		return states[a].contactName < states[b].contactName
	})

	items := make([]AggregatedItem, 0, len(keys))
	for _, key := range keys {
		st := states[key]
		items = append(items, AggregatedItem{
			ItemName:    key.itemName,
			ContactID:   key.contactID,
			ContactName: st.contactName,
			Quantity:    abs(st.outstanding),
			Status:      st.status(),
			LastUpdated: st.lastUpdated,
		})
	}
	return items
}

// OutstandingQuantity returns the current outstanding quantity for one
// (item, contact) pair, in either direction. The store consults it
// before accepting a return so the quantity can never go negative.
func OutstandingQuantity(txs []model.Transaction, itemName string, contactID int64) int {
	ordered := make([]model.Transaction, 0, len(txs))
	for _, t := range txs {
		if t.Category == model.CategoryItem && t.ContactID != nil &&
			*t.ContactID == contactID && t.ItemName == itemName {
			ordered = append(ordered, t)
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].OccurredAt.Equal(ordered[j].OccurredAt) {
			return ordered[i].OccurredAt.Before(ordered[j].OccurredAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	st := itemState{}
	for _, t := range ordered {
		st.apply(&t)
	}
	return abs(st.outstanding)
}

func (st *itemState) apply(t *model.Transaction) {
	switch t.Type {
	case model.TypeGiven:
		st.outstanding += t.Quantity
	case model.TypeReceived:
		st.outstanding -= t.Quantity
	case model.TypeReturned:
		// Direction is irrelevant for items: the return moves the
		// single outstanding quantity toward zero, floored there.
		switch {
		case st.outstanding > 0:
			st.outstanding -= min(t.Quantity, st.outstanding)
		case st.outstanding < 0:
			st.outstanding += min(t.Quantity, -st.outstanding)
		}
	}
	if t.OccurredAt.After(st.lastUpdated) {
		st.lastUpdated = t.OccurredAt
	}
}

func (st *itemState) status() string {
	switch {
	case st.outstanding > 0:
		return ItemLent
	case st.outstanding < 0:
		return ItemBorrowed
	default:
		return ItemReturned
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
