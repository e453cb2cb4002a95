package ledger

import (
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seyio/owemi/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func fundsTx(id int64, typ, amount, currency string) model.Transaction {
	contactID := int64(1)
	return model.Transaction{
		ID:         id,
		ContactID:  &contactID,
		Category:   model.CategoryFunds,
		Type:       typ,
		Amount:     dec(amount),
		Currency:   currency,
		OccurredAt: time.Date(2026, 3, int(id), 12, 0, 0, 0, time.UTC),
	}
}

func TestSummarizeLendAndPartialReturn(t *testing.T) {
	given := fundsTx(1, model.TypeGiven, "1000", "NGN")
	returned := fundsTx(2, model.TypeReturned, "400", "NGN")
	returned.ReturnDirection = model.DirectionToMe

	summaries := Summarize([]model.Transaction{given, returned}, discardLogger())
	require.Len(t, summaries, 1)

	s := summaries[0]
	assert.Equal(t, "NGN", s.Currency)
	assert.True(t, s.Given.Equal(dec("1000")))
	assert.True(t, s.ReturnedToMe.Equal(dec("400")))
	assert.True(t, s.Net.Equal(dec("600")), "net should be 600, got %s", s.Net)
}

func TestSummarizeConvertedGiftZeroesDebt(t *testing.T) {
	// 1000 lent, 400 returned, remaining 600 forgiven by converting it
	// into a gift linked to the original entry.
	given := fundsTx(1, model.TypeGiven, "1000", "NGN")
	returned := fundsTx(2, model.TypeReturned, "400", "NGN")
	returned.ReturnDirection = model.DirectionToMe

	parentID := given.ID
	gift := fundsTx(3, model.TypeGift, "600", "NGN")
	gift.ReturnDirection = model.DirectionToContact
	gift.ParentID = &parentID

	summaries := Summarize([]model.Transaction{given, returned, gift}, discardLogger())
	require.Len(t, summaries, 1)

	s := summaries[0]
	assert.True(t, s.Net.IsZero(), "net should be zero after forgiving, got %s", s.Net)
	assert.True(t, s.GiftGiven.Equal(dec("600")))
	// The original entry is untouched by conversion.
	assert.True(t, s.Given.Equal(dec("1000")))
}

func TestSummarizeStandaloneGiftNeverMovesNet(t *testing.T) {
	gift := fundsTx(1, model.TypeGift, "250", "EUR")
	gift.ReturnDirection = model.DirectionToContact

	received := fundsTx(2, model.TypeGift, "90", "EUR")
	received.ReturnDirection = model.DirectionToMe

	summaries := Summarize([]model.Transaction{gift, received}, discardLogger())
	require.Len(t, summaries, 1)

	s := summaries[0]
	assert.True(t, s.GiftGiven.Equal(dec("250")))
	assert.True(t, s.GiftReceived.Equal(dec("90")))
	assert.True(t, s.Net.IsZero(), "standalone gifts must not move the net, got %s", s.Net)
}

func TestSummarizePersonalFlows(t *testing.T) {
	income := fundsTx(1, model.TypeIncome, "5000", "USD")
	income.ContactID = nil
	expense := fundsTx(2, model.TypeExpense, "1200", "USD")
	expense.ContactID = nil

	summaries := Summarize([]model.Transaction{income, expense}, discardLogger())
	require.Len(t, summaries, 1)

	s := summaries[0]
	assert.True(t, s.Income.Equal(dec("5000")))
	assert.True(t, s.Expense.Equal(dec("1200")))
	// Income and expense track personal flows; they are not debts.
	assert.True(t, s.Net.IsZero())
}

func TestSummarizeCurrenciesNeverMix(t *testing.T) {
	txs := []model.Transaction{
		fundsTx(1, model.TypeGiven, "100", "NGN"),
		fundsTx(2, model.TypeGiven, "100", "USD"),
		fundsTx(3, model.TypeReceived, "30", "USD"),
	}

	summaries := Summarize(txs, discardLogger())
	require.Len(t, summaries, 2)

	// Sorted by currency code.
	assert.Equal(t, "NGN", summaries[0].Currency)
	assert.True(t, summaries[0].Net.Equal(dec("100")))
	assert.Equal(t, "USD", summaries[1].Currency)
	assert.True(t, summaries[1].Net.Equal(dec("70")))
}

func TestSummarizeSkipsInvalidRows(t *testing.T) {
	bad := fundsTx(1, model.TypeGiven, "0", "NGN")
	good := fundsTx(2, model.TypeGiven, "50", "NGN")

	item := model.Transaction{
		ID:       3,
		Category: model.CategoryItem,
		Type:     model.TypeGiven,
		ItemName: "Ladder",
		Quantity: 1,
	}

	summaries := Summarize([]model.Transaction{bad, good, item}, discardLogger())
	require.Len(t, summaries, 1)
	assert.True(t, summaries[0].Given.Equal(dec("50")))
}

func TestSummarizeByContactGroups(t *testing.T) {
	ada, bola := int64(1), int64(2)

	t1 := fundsTx(1, model.TypeGiven, "100", "NGN")
	t1.ContactID = &ada
	t1.ContactName = "Ada"

	t2 := fundsTx(2, model.TypeReceived, "40", "NGN")
	t2.ContactID = &bola
	t2.ContactName = "Bola"

	personal := fundsTx(3, model.TypeIncome, "900", "NGN")
	personal.ContactID = nil

	grouped := SummarizeByContact([]model.Transaction{t1, t2, personal}, discardLogger())
	require.Len(t, grouped, 2)

	assert.Equal(t, "Ada", grouped[0].ContactName)
	require.Len(t, grouped[0].Summaries, 1)
	assert.True(t, grouped[0].Summaries[0].Net.Equal(dec("100")))

	assert.Equal(t, "Bola", grouped[1].ContactName)
	require.Len(t, grouped[1].Summaries, 1)
	assert.True(t, grouped[1].Summaries[0].Net.Equal(dec("-40")))
}
