package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/seyio/owemi/internal/model"
	"github.com/seyio/owemi/internal/notify"
	"github.com/seyio/owemi/internal/quota"
	"github.com/seyio/owemi/internal/store"
)

// WitnessesHandler handles witness endpoints.
type WitnessesHandler struct {
	DB       *sql.DB
	Quota    quota.Service
	Notifier notify.Service
}

type addWitnessesRequest struct {
	UserIDs []int64               `json:"user_ids"`
	Invites []model.WitnessInvite `json:"invites"`
}

// Add handles POST /api/transactions/{id}/witnesses. Invites are
// delivered after the database commit; a delivery failure is logged
// and never undoes the attachment.
func (h *WitnessesHandler) Add(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req addWitnessesRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	witnesses, err := store.AddWitnesses(r.Context(), h.DB, h.Quota, claims.UserID, id, req.UserIDs, req.Invites)
	if err != nil {
		writeError(w, err)
		return
	}

	t, err := store.GetTransaction(r.Context(), h.DB, claims.UserID, id)
	if err == nil && t != nil {
		for _, wit := range witnesses {
			if err := h.Notifier.SendWitnessInvite(r.Context(), wit, *t); err != nil {
				slog.Warn("witness invite delivery failed", "witness", wit.ID, "error", err)
			}
		}
	}

	slog.Info("witnesses added", "user", claims.Username, "transaction", id, "count", len(witnesses))
	jsonResponse(w, http.StatusCreated, witnesses)
}

// Requests handles GET /api/witnesses/requests: transactions waiting
// on the calling user's acknowledgement.
func (h *WitnessesHandler) Requests(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	requests, err := store.ListPendingWitnessRequests(r.Context(), h.DB, claims.UserID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list witness requests")
		return
	}
	if requests == nil {
		requests = []model.Witness{}
	}
	jsonResponse(w, http.StatusOK, requests)
}

type acknowledgeRequest struct {
	Decline bool `json:"decline"`
}

// Acknowledge handles POST /api/witnesses/{id}/acknowledge. The body's
// decline flag turns the response into a refusal; both outcomes are
// final.
func (h *WitnessesHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req acknowledgeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status := model.WitnessAcknowledged
	if req.Decline {
		status = model.WitnessDeclined
	}

	claims := GetClaims(r.Context())
	witness, err := store.AcknowledgeWitness(r.Context(), h.DB, claims.UserID, id, status)
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("witness responded", "user", claims.Username, "witness", id, "status", status)
	jsonResponse(w, http.StatusOK, witness)
}

// Resend handles POST /api/witnesses/{id}/resend.
func (h *WitnessesHandler) Resend(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	claims := GetClaims(r.Context())
	witness, err := store.ResendWitness(r.Context(), h.DB, claims.UserID, id)
	if err != nil {
		writeError(w, err)
		return
	}

	t, err := store.GetTransaction(r.Context(), h.DB, claims.UserID, witness.TransactionID)
	if err == nil && t != nil {
		if err := h.Notifier.ResendWitnessInvite(r.Context(), *witness, *t); err != nil {
			slog.Warn("witness invite delivery failed", "witness", witness.ID, "error", err)
		}
	}

	jsonResponse(w, http.StatusOK, witness)
}

// Remove handles DELETE /api/witnesses/{id}.
func (h *WitnessesHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	claims := GetClaims(r.Context())
	if err := store.RemoveWitness(r.Context(), h.DB, claims.UserID, id); err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusNoContent, nil)
}
