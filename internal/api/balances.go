package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/seyio/owemi/internal/ledger"
	"github.com/seyio/owemi/internal/store"
)

// BalancesHandler serves derived balance views. Balances are computed
// from the transaction set on every request, never stored.
type BalancesHandler struct {
	DB *sql.DB
}

// Total handles GET /api/balance: per-currency totals across the whole
// ledger, narrowed by the same filters as the transaction list.
func (h *BalancesHandler) Total(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	txs, err := store.ListTransactions(r.Context(), h.DB, claims.UserID, filter)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to compute balance")
		return
	}

	summaries := ledger.Summarize(txs, slog.Default())
	if summaries == nil {
		summaries = []ledger.Summary{}
	}
	jsonResponse(w, http.StatusOK, summaries)
}

// ByContact handles GET /api/balance/contacts: per-contact,
// per-currency breakdown.
func (h *BalancesHandler) ByContact(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	txs, err := store.ListTransactions(r.Context(), h.DB, claims.UserID, filter)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to compute balance")
		return
	}

	summaries := ledger.SummarizeByContact(txs, slog.Default())
	if summaries == nil {
		summaries = []ledger.ContactSummary{}
	}
	jsonResponse(w, http.StatusOK, summaries)
}
