// Package httpapi wires the HTTP surface of the finbook service.
// It keeps handlers thin, delegating business rules to the service layer.
package httpapi

import (
	"log/slog"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/finbook/finbook/internal/service/account"
	"github.com/finbook/finbook/internal/service/category"
	"github.com/finbook/finbook/internal/service/pending"
	"github.com/finbook/finbook/internal/service/txn"
)

// Server wires handlers and middleware using Chi.
// It composes the services over a single Storage implementation.
type Server struct {
	txnSvc      txn.Service
	accountSvc  account.Service
	categorySvc category.Service
	pendingSvc  pending.Service
	store       Storage
	log         *slog.Logger
	rt          *chi.Mux
}

// New constructs the HTTP server with routes and middleware.
// The logger is used by basic request/response logging and panic recovery.
func New(store Storage, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(metricsMiddleware)

	s := &Server{
		txnSvc:      txn.New(store),
		accountSvc:  account.New(store, store),
		categorySvc: category.New(store, store),
		pendingSvc:  pending.New(store, store),
		store:       store,
		rt:          r,
		log:         logger,
	}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints and attaches any per-route middleware.
func (s *Server) routes() {
	// Transactions (v1)
	s.rt.With(s.validatePostTransaction()).Post("/v1/transactions", s.postTransaction)
	s.rt.With(s.validateUserQuery()).Get("/v1/transactions", s.listTransactions)
	s.rt.Get("/v1/transactions/{id}", s.getTransaction)
	s.rt.Patch("/v1/transactions/{id}", s.patchTransaction)
	s.rt.Delete("/v1/transactions/{id}", s.deleteTransaction)
	// Pending expenses (v1)
	s.rt.Post("/v1/pending-expenses", s.postPendingExpense)
	s.rt.With(s.validateUserQuery()).Get("/v1/pending-expenses", s.listPendingExpenses)
	s.rt.Get("/v1/pending-expenses/{id}", s.getPendingExpense)
	s.rt.Post("/v1/pending-expenses/{id}/convert", s.convertPendingExpense)
	// Accounts (v1)
	s.rt.Post("/v1/accounts", s.postAccount)
	s.rt.With(s.validateUserQuery()).Get("/v1/accounts", s.listAccounts)
	s.rt.Get("/v1/accounts/{id}", s.getAccount)
	s.rt.Patch("/v1/accounts/{id}", s.updateAccount)
	s.rt.Delete("/v1/accounts/{id}", s.deactivateAccount)
	// Categories (v1)
	s.rt.Post("/v1/categories", s.postCategory)
	s.rt.With(s.validateUserQuery()).Get("/v1/categories", s.listCategories)
	s.rt.Get("/v1/categories/{id}", s.getCategory)
	s.rt.Delete("/v1/categories/{id}", s.deactivateCategory)
	// Dictionary
	s.rt.Get("/v1/dictionary/categories", s.getCategoriesDictionary)
	// Health and metrics (unversioned)
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Method(http.MethodGet, "/metrics", metricsHandler())
}
