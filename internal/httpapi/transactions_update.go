package httpapi

import (
	"encoding/json"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/finbook/finbook/internal/meta"
	"github.com/finbook/finbook/internal/service/txn"
)

// patchTransaction handles PATCH /v1/transactions/{id}. Absent fields keep
// their stored values; the engine reverses the old effect and applies the new
// one atomically.
func (s *Server) patchTransaction(w http.ResponseWriter, r *http.Request) {
	if !requireJSON(w, r) {
		return
	}
	id, ok := pathID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req patchTransactionRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if req.UserID == uuid.Nil {
		badRequest(w, "user_id is required")
		return
	}
	if req.AmountMinor != nil && *req.AmountMinor <= 0 {
		unprocessable(w, "amount_minor must be > 0", "invalid_amount")
		return
	}
	patch := txn.Patch{
		CategoryID:           req.CategoryID,
		AccountID:            req.AccountID,
		DestinationAccountID: req.DestinationAccountID,
		AmountMinor:          req.AmountMinor,
		Date:                 req.Date,
		Memo:                 req.Memo,
	}
	if req.Metadata != nil {
		patch.Metadata = meta.New(req.Metadata)
	}
	res, err := s.txnSvc.Update(r.Context(), req.UserID, id, patch)
	observeLedgerOp("update", err)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toMutationResponse(res))
}

// deleteTransaction handles DELETE /v1/transactions/{id}. The row is soft
// deleted and its balance effect reversed; the response reports the restored
// account states.
func (s *Server) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromQuery(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	res, err := s.txnSvc.Delete(r.Context(), userID, id)
	observeLedgerOp("delete", err)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toMutationResponse(res))
}
