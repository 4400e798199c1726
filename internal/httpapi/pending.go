package httpapi

import (
	"encoding/json"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/finbook/finbook/internal/meta"
	"github.com/finbook/finbook/internal/service/pending"
)

// postPendingExpense handles POST /v1/pending-expenses.
func (s *Server) postPendingExpense(w http.ResponseWriter, r *http.Request) {
	if !requireJSON(w, r) {
		return
	}
	var req postPendingExpenseRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	p, err := s.pendingSvc.Create(r.Context(), pending.CreateInput{
		UserID:      req.UserID,
		CategoryID:  req.CategoryID,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Memo:        req.Memo,
		DueDate:     req.DueDate,
		Recurrence:  meta.New(req.Recurrence),
	})
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toPendingExpenseResponse(p))
}

// listPendingExpenses handles GET /v1/pending-expenses.
func (s *Server) listPendingExpenses(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(ctxKeyUserID).(uuid.UUID)
	if !ok {
		writeErr(w, http.StatusInternalServerError, "internal_error", "internal_error")
		return
	}
	all, err := s.pendingSvc.List(r.Context(), userID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	items := make([]pendingExpenseResponse, 0, len(all))
	for _, p := range all {
		items = append(items, toPendingExpenseResponse(p))
	}
	toJSON(w, http.StatusOK, struct {
		Items []pendingExpenseResponse `json:"items"`
	}{Items: items})
}

// getPendingExpense handles GET /v1/pending-expenses/{id}.
func (s *Server) getPendingExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromQuery(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	p, err := s.pendingSvc.Get(r.Context(), userID, id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toPendingExpenseResponse(p))
}

// convertPendingExpense handles POST /v1/pending-expenses/{id}/convert. It
// posts the pending amount against the given account and marks the pending
// expense paid, in one atomic step.
func (s *Server) convertPendingExpense(w http.ResponseWriter, r *http.Request) {
	if !requireJSON(w, r) {
		return
	}
	id, ok := pathID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req convertPendingExpenseRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if req.UserID == uuid.Nil || req.AccountID == uuid.Nil {
		badRequest(w, "user_id and account_id are required")
		return
	}
	res, err := s.txnSvc.Convert(r.Context(), req.UserID, id, req.AccountID)
	observeLedgerOp("convert", err)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, convertResponse{
		mutationResponse: toMutationResponse(res.Result),
		Pending:          toPendingExpenseResponse(res.Pending),
	})
}
