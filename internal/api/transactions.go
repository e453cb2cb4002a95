package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/seyio/owemi/internal/imaging"
	"github.com/seyio/owemi/internal/model"
	"github.com/seyio/owemi/internal/store"
)

// TransactionsHandler handles ledger entry endpoints.
type TransactionsHandler struct {
	DB *sql.DB
}

type transactionRequest struct {
	ContactID       *int64 `json:"contact_id"`
	Category        string `json:"category"`
	Type            string `json:"type"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	ItemName        string `json:"item_name"`
	Quantity        int    `json:"quantity"`
	ReturnDirection string `json:"return_direction"`
	Description     string `json:"description"`
	OccurredAt      string `json:"occurred_at"`
}

// toModel parses the wire form into a transaction. Amounts come in as
// strings so the client never round-trips money through a float.
func (req *transactionRequest) toModel() (*model.Transaction, error) {
	t := &model.Transaction{
		ContactID:       req.ContactID,
		Category:        req.Category,
		Type:            req.Type,
		Currency:        req.Currency,
		ItemName:        req.ItemName,
		Quantity:        req.Quantity,
		ReturnDirection: req.ReturnDirection,
		Description:     req.Description,
	}

	if req.Amount != "" {
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			return nil, model.Validationf("invalid amount %q", req.Amount)
		}
		t.Amount = amount
	}

	if req.OccurredAt != "" {
		occurred, err := time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			return nil, model.Validationf("occurred_at must be RFC 3339")
		}
		t.OccurredAt = occurred.UTC()
	} else {
		t.OccurredAt = time.Now().UTC()
	}

	return t, nil
}

// Create handles POST /api/transactions.
func (h *TransactionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := req.toModel()
	if err != nil {
		writeError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	created, err := store.CreateTransaction(r.Context(), h.DB, claims.UserID, t)
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("transaction recorded", "user", claims.Username,
		"category", created.Category, "type", created.Type)
	jsonResponse(w, http.StatusCreated, created)
}

// List handles GET /api/transactions with optional filters.
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	txs, err := store.ListTransactions(r.Context(), h.DB, claims.UserID, filter)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}
	if txs == nil {
		txs = []model.Transaction{}
	}
	jsonResponse(w, http.StatusOK, txs)
}

// Get handles GET /api/transactions/{id}.
func (h *TransactionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	claims := GetClaims(r.Context())
	t, err := store.GetTransaction(r.Context(), h.DB, claims.UserID, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if t == nil {
		jsonError(w, http.StatusNotFound, "transaction not found")
		return
	}
	jsonResponse(w, http.StatusOK, t)
}

// Update handles PUT /api/transactions/{id}.
func (h *TransactionsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := req.toModel()
	if err != nil {
		writeError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	updated, err := store.UpdateTransaction(r.Context(), h.DB, claims.UserID, id, t)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, updated)
}

// Remove handles DELETE /api/transactions/{id}. The entry is
// tombstoned, never erased: it drops out of lists and balances but
// stays readable with its full history.
func (h *TransactionsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	claims := GetClaims(r.Context())
	removed, err := store.RemoveTransaction(r.Context(), h.DB, claims.UserID, id)
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("transaction removed", "user", claims.Username, "transaction", id)
	jsonResponse(w, http.StatusOK, removed)
}

type convertRequest struct {
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

// Convert handles POST /api/transactions/{id}/convert. Writes off part
// or all of a debt as a gift linked to the original entry.
func (h *TransactionsHandler) Convert(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req convertRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	claims := GetClaims(r.Context())
	gift, err := store.ConvertTransaction(r.Context(), h.DB, claims.UserID, id, amount, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("transaction converted to gift", "user", claims.Username,
		"parent", id, "amount", amount)
	jsonResponse(w, http.StatusCreated, gift)
}

// History handles GET /api/transactions/{id}/history.
func (h *TransactionsHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	claims := GetClaims(r.Context())
	t, err := store.GetTransaction(r.Context(), h.DB, claims.UserID, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if t == nil {
		jsonError(w, http.StatusNotFound, "transaction not found")
		return
	}

	entries, err := store.ListHistory(r.Context(), h.DB, model.EntityTransaction, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	if entries == nil {
		entries = []model.HistoryEntry{}
	}
	jsonResponse(w, http.StatusOK, entries)
}

// UploadReceipt handles PUT /api/transactions/{id}/receipt. The image
// is normalised before storage so the database never holds an
// oversized original.
func (h *TransactionsHandler) UploadReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	receipt, err := imaging.ProcessReceipt(r.Body)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	claims := GetClaims(r.Context())
	if err := store.SetReceipt(r.Context(), h.DB, claims.UserID, id, receipt.Data, receipt.MIME); err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusNoContent, nil)
}

// GetReceipt handles GET /api/transactions/{id}/receipt.
func (h *TransactionsHandler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	claims := GetClaims(r.Context())
	data, mime, err := store.GetReceipt(r.Context(), h.DB, claims.UserID, id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// parseFilter reads list filters from query parameters.
func parseFilter(r *http.Request) (store.TransactionFilter, error) {
	var f store.TransactionFilter
	q := r.URL.Query()

	if raw := q.Get("contact_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return f, model.Validationf("invalid contact_id %q", raw)
		}
		f.ContactID = id
	}
	f.Category = q.Get("category")
	f.Type = q.Get("type")
	f.Currency = q.Get("currency")
	f.Search = q.Get("q")

	if raw := q.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, model.Validationf("from must be RFC 3339")
		}
		f.From = from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, model.Validationf("to must be RFC 3339")
		}
		f.To = to
	}
	return f, nil
}
