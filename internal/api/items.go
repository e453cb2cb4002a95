package api

import (
	"database/sql"
	"net/http"

	"github.com/seyio/owemi/internal/ledger"
	"github.com/seyio/owemi/internal/store"
)

// ItemsHandler serves the reconciled view of lent and borrowed items.
type ItemsHandler struct {
	DB *sql.DB
}

// List handles GET /api/items: every (item, contact) pair with its
// outstanding quantity and direction.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	txs, err := store.ListTransactions(r.Context(), h.DB, claims.UserID, filter)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}

	items := ledger.ReconcileItems(txs)
	if items == nil {
		items = []ledger.AggregatedItem{}
	}
	jsonResponse(w, http.StatusOK, items)
}
