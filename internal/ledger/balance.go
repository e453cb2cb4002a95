// Package ledger holds the pure aggregation engines: the per-currency
// balance fold and the item-quantity reconciliation. Both recompute
// from the transaction set on every read instead of maintaining
// running totals, so edits, removals, and conversions can never leave
// a stale counter behind.
package ledger

import (
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/seyio/owemi/internal/model"
)

// Summary is the per-currency balance view for one user, optionally
// scoped to one contact. Net is positive when contacts owe the user.
type Summary struct {
	Currency string `json:"currency"`

	Given           decimal.Decimal `json:"total_given"`
	Received        decimal.Decimal `json:"total_received"`
	ReturnedToMe    decimal.Decimal `json:"total_returned_to_me"`
	ReturnedToOther decimal.Decimal `json:"total_returned_to_other"`
	Income          decimal.Decimal `json:"total_income"`
	Expense         decimal.Decimal `json:"total_expense"`
	GiftGiven       decimal.Decimal `json:"total_gift_given"`
	GiftReceived    decimal.Decimal `json:"total_gift_received"`

	Net decimal.Decimal `json:"net_balance"`

	// Forgiven portions from conversion-linked gifts. A gift created
	// by converting a given/received transaction cancels part of the
	// outstanding debt; a standalone gift never moves the net.
	forgivenReceivable decimal.Decimal
	forgivenPayable    decimal.Decimal
}

// ContactSummary pairs a contact with its per-currency summaries.
type ContactSummary struct {
	ContactID   int64     `json:"contact_id"`
	ContactName string    `json:"contact_name"`
	Summaries   []Summary `json:"summaries"`
}

// Summarize folds funds transactions into one Summary per currency
// present in the input. Item transactions are ignored (see
// ReconcileItems). Tombstoned rows must already be excluded by the
// caller. A funds row without a positive amount is a data-integrity
// violation: it is logged and skipped so one bad row cannot take the
// whole dashboard down.
func Summarize(txs []model.Transaction, logger *slog.Logger) []Summary {
	byCurrency := make(map[string]*Summary)

	for i := range txs {
		t := &txs[i]
		if t.Category != model.CategoryFunds {
			continue
		}
		if !t.Amount.IsPositive() {
			logger.Warn("skipping funds transaction with invalid amount",
				"transaction", t.ID, "amount", t.Amount)
			continue
		}

		s, ok := byCurrency[t.Currency]
		if !ok {
			s = &Summary{Currency: t.Currency}
			byCurrency[t.Currency] = s
		}
		accumulate(s, t, logger)
	}

	summaries := make([]Summary, 0, len(byCurrency))
	for _, s := range byCurrency {
		s.Net = net(s)
		summaries = append(summaries, *s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Currency < summaries[j].Currency
	})
	return summaries
}

// SummarizeByContact runs the same fold once per distinct contact.
// Transactions without a contact (expense/income) are excluded here;
// they only feed the ungrouped Summarize view.
func SummarizeByContact(txs []model.Transaction, logger *slog.Logger) []ContactSummary {
	byContact := make(map[int64][]model.Transaction)
	names := make(map[int64]string)
	var order []int64

	for _, t := range txs {
		if t.ContactID == nil {
			continue
		}
		id := *t.ContactID
		if _, ok := byContact[id]; !ok {
			order = append(order, id)
			names[id] = t.ContactName
		}
		byContact[id] = append(byContact[id], t)
	}

	sort.Slice(order, func(i, j int) bool { return names[order[i]] < names[order[j]] })

	grouped := make([]ContactSummary, 0, len(order))
	for _, id := range order {
		grouped = append(grouped, ContactSummary{
			ContactID:   id,
			ContactName: names[id],
			Summaries:   Summarize(byContact[id], logger),
		})
	}
	return grouped
}

// accumulate routes one funds transaction into exactly one bucket
// based on (type, direction).
func accumulate(s *Summary, t *model.Transaction, logger *slog.Logger) {
	switch t.Type {
	case model.TypeGiven:
		s.Given = s.Given.Add(t.Amount)
	case model.TypeReceived:
		s.Received = s.Received.Add(t.Amount)
	case model.TypeReturned:
		if t.ReturnDirection == model.DirectionToMe {
			s.ReturnedToMe = s.ReturnedToMe.Add(t.Amount)
		} else {
			s.ReturnedToOther = s.ReturnedToOther.Add(t.Amount)
		}
	case model.TypeGift:
		if t.ReturnDirection == model.DirectionToMe {
			s.GiftReceived = s.GiftReceived.Add(t.Amount)
			if t.ParentID != nil {
				s.forgivenPayable = s.forgivenPayable.Add(t.Amount)
			}
		} else {
			s.GiftGiven = s.GiftGiven.Add(t.Amount)
			if t.ParentID != nil {
				s.forgivenReceivable = s.forgivenReceivable.Add(t.Amount)
			}
		}
	case model.TypeExpense:
		s.Expense = s.Expense.Add(t.Amount)
	case model.TypeIncome:
		s.Income = s.Income.Add(t.Amount)
	default:
		// Unknown types are rejected at write time; reaching this
		// means the row predates the current rules.
		logger.Warn("skipping funds transaction with unknown type",
			"transaction", t.ID, "type", t.Type)
	}
}

// net computes (given − returnedToMe) − (received − returnedToOther),
// with conversion-linked gifts cancelling the forgiven portion of the
// side they came from. A standalone gift never moves the net: it
// creates no debt in either direction.
func net(s *Summary) decimal.Decimal {
	owedToUser := s.Given.Sub(s.ReturnedToMe).Sub(s.forgivenReceivable)
	owedByUser := s.Received.Sub(s.ReturnedToOther).Sub(s.forgivenPayable)
	return owedToUser.Sub(owedByUser)
}
