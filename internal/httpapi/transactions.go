package httpapi

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/finbook/finbook/internal/meta"
	"github.com/finbook/finbook/internal/service/txn"
)

// postTransaction handles POST /v1/transactions. The request was validated by
// middleware. Supports replay via the Idempotency-Key header: a repeated key
// returns the previously created transaction instead of posting again.
func (s *Server) postTransaction(w http.ResponseWriter, r *http.Request) {
	req, ok := r.Context().Value(ctxKeyPostTransaction).(postTransactionRequest)
	if !ok {
		writeErr(w, http.StatusInternalServerError, "internal_error", "internal_error")
		return
	}

	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" {
		if id, found, err := s.store.IdempotentTransactionID(r.Context(), req.UserID, idemKey); err == nil && found {
			t, err := s.txnSvc.Get(r.Context(), req.UserID, id)
			if err != nil {
				writeDomainErr(w, err)
				return
			}
			toJSON(w, http.StatusOK, mutationResponse{Transaction: toTransactionResponse(t), Accounts: []accountResponse{}})
			return
		}
	}

	res, err := s.txnSvc.Create(r.Context(), txn.CreateInput{
		UserID:               req.UserID,
		CategoryID:           req.CategoryID,
		AccountID:            req.AccountID,
		DestinationAccountID: req.DestinationAccountID,
		AmountMinor:          req.AmountMinor,
		Date:                 req.Date,
		Memo:                 req.Memo,
		Metadata:             meta.New(req.Metadata),
	})
	observeLedgerOp("create", err)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if idemKey != "" {
		if err := s.store.SaveIdempotencyKey(r.Context(), req.UserID, idemKey, res.Transaction.ID); err != nil {
			s.log.Error("save idempotency key", "err", err)
		}
	}
	toJSON(w, http.StatusCreated, toMutationResponse(res))
}

// listTransactions handles GET /v1/transactions. Soft-deleted rows are hidden
// unless include_deleted=true.
func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(ctxKeyUserID).(uuid.UUID)
	if !ok {
		writeErr(w, http.StatusInternalServerError, "internal_error", "internal_error")
		return
	}
	includeDeleted := r.URL.Query().Get("include_deleted") == "true"
	all, err := s.txnSvc.List(r.Context(), userID, includeDeleted)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	items := make([]transactionResponse, 0, len(all))
	for _, t := range all {
		items = append(items, toTransactionResponse(t))
	}
	toJSON(w, http.StatusOK, struct {
		Items []transactionResponse `json:"items"`
	}{Items: items})
}

// getTransaction handles GET /v1/transactions/{id}.
func (s *Server) getTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromQuery(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	t, err := s.txnSvc.Get(r.Context(), userID, id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toTransactionResponse(t))
}
