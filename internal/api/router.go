package api

import (
	"database/sql"
	"net/http"

	"github.com/seyio/owemi/internal/notify"
	"github.com/seyio/owemi/internal/quota"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string, qs quota.Service, ns notify.Service) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	contactsHandler := &ContactsHandler{DB: db}
	transactionsHandler := &TransactionsHandler{DB: db}
	balancesHandler := &BalancesHandler{DB: db}
	itemsHandler := &ItemsHandler{DB: db}
	witnessesHandler := &WitnessesHandler{DB: db, Quota: qs, Notifier: ns}

	authMW := AuthMiddleware(jwtSecret, db)

	// Public: account creation and login.
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Session management.
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))

	// Contacts.
	mux.Handle("GET /api/contacts", authMW(http.HandlerFunc(contactsHandler.List)))
	mux.Handle("POST /api/contacts", authMW(http.HandlerFunc(contactsHandler.Create)))
	mux.Handle("GET /api/contacts/{id}", authMW(http.HandlerFunc(contactsHandler.Get)))
	mux.Handle("PUT /api/contacts/{id}", authMW(http.HandlerFunc(contactsHandler.Update)))
	mux.Handle("DELETE /api/contacts/{id}", authMW(http.HandlerFunc(contactsHandler.Delete)))

	// Transactions.
	mux.Handle("GET /api/transactions", authMW(http.HandlerFunc(transactionsHandler.List)))
	mux.Handle("POST /api/transactions", authMW(http.HandlerFunc(transactionsHandler.Create)))
	mux.Handle("GET /api/transactions/{id}", authMW(http.HandlerFunc(transactionsHandler.Get)))
	mux.Handle("PUT /api/transactions/{id}", authMW(http.HandlerFunc(transactionsHandler.Update)))
	mux.Handle("DELETE /api/transactions/{id}", authMW(http.HandlerFunc(transactionsHandler.Remove)))
	mux.Handle("POST /api/transactions/{id}/convert", authMW(http.HandlerFunc(transactionsHandler.Convert)))
	mux.Handle("GET /api/transactions/{id}/history", authMW(http.HandlerFunc(transactionsHandler.History)))
	mux.Handle("PUT /api/transactions/{id}/receipt", authMW(http.HandlerFunc(transactionsHandler.UploadReceipt)))
	mux.Handle("GET /api/transactions/{id}/receipt", authMW(http.HandlerFunc(transactionsHandler.GetReceipt)))

	// Derived views.
	mux.Handle("GET /api/balance", authMW(http.HandlerFunc(balancesHandler.Total)))
	mux.Handle("GET /api/balance/contacts", authMW(http.HandlerFunc(balancesHandler.ByContact)))
	mux.Handle("GET /api/items", authMW(http.HandlerFunc(itemsHandler.List)))

	// Witnesses.
	mux.Handle("POST /api/transactions/{id}/witnesses", authMW(http.HandlerFunc(witnessesHandler.Add)))
	mux.Handle("GET /api/witnesses/requests", authMW(http.HandlerFunc(witnessesHandler.Requests)))
	mux.Handle("POST /api/witnesses/{id}/acknowledge", authMW(http.HandlerFunc(witnessesHandler.Acknowledge)))
	mux.Handle("POST /api/witnesses/{id}/resend", authMW(http.HandlerFunc(witnessesHandler.Resend)))
	mux.Handle("DELETE /api/witnesses/{id}", authMW(http.HandlerFunc(witnessesHandler.Remove)))

	return mux
}
