package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/seyio/owemi/internal/model"
	"github.com/seyio/owemi/internal/store"
)

// ContactsHandler handles contact endpoints.
type ContactsHandler struct {
	DB *sql.DB
}

type contactRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	LinkedUserID *int64 `json:"linked_user_id"`
}

// Create handles POST /api/contacts.
func (h *ContactsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	contact, err := store.CreateContact(r.Context(), h.DB, claims.UserID, &model.Contact{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		LinkedUserID: req.LinkedUserID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("contact created", "user", claims.Username, "contact", contact.Name)
	jsonResponse(w, http.StatusCreated, contact)
}

// List handles GET /api/contacts.
func (h *ContactsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	contacts, err := store.ListContacts(r.Context(), h.DB, claims.UserID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list contacts")
		return
	}
	if contacts == nil {
		contacts = []model.Contact{}
	}
	jsonResponse(w, http.StatusOK, contacts)
}

// Get handles GET /api/contacts/{id}.
func (h *ContactsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	claims := GetClaims(r.Context())
	contact, err := store.GetContact(r.Context(), h.DB, claims.UserID, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if contact == nil || contact.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "contact not found")
		return
	}
	jsonResponse(w, http.StatusOK, contact)
}

// Update handles PUT /api/contacts/{id}.
func (h *ContactsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req contactRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	contact, err := store.UpdateContact(r.Context(), h.DB, claims.UserID, id, &model.Contact{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		LinkedUserID: req.LinkedUserID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, contact)
}

// Delete handles DELETE /api/contacts/{id}.
func (h *ContactsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	claims := GetClaims(r.Context())
	if err := store.DeleteContact(r.Context(), h.DB, claims.UserID, id); err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusNoContent, nil)
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}
