package httpapi

import (
	"encoding/json"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/finbook/finbook/internal/service/account"
)

// postAccount handles POST /v1/accounts.
func (s *Server) postAccount(w http.ResponseWriter, r *http.Request) {
	if !requireJSON(w, r) {
		return
	}
	var req postAccountRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	a, err := s.accountSvc.Create(r.Context(), account.CreateInput{
		UserID:              req.UserID,
		Name:                req.Name,
		Currency:            req.Currency,
		OpeningBalanceMinor: req.OpeningBalanceMinor,
	})
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toAccountResponse(a))
}

// listAccounts handles GET /v1/accounts.
func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(ctxKeyUserID).(uuid.UUID)
	if !ok {
		writeErr(w, http.StatusInternalServerError, "internal_error", "internal_error")
		return
	}
	all, err := s.accountSvc.List(r.Context(), userID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	items := make([]accountResponse, 0, len(all))
	for _, a := range all {
		items = append(items, toAccountResponse(a))
	}
	toJSON(w, http.StatusOK, struct {
		Items []accountResponse `json:"items"`
	}{Items: items})
}

// getAccount handles GET /v1/accounts/{id}.
func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromQuery(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	a, err := s.accountSvc.Get(r.Context(), userID, id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toAccountResponse(a))
}

// updateAccount handles PATCH /v1/accounts/{id}. Only the name is mutable;
// balances move exclusively through transactions.
func (s *Server) updateAccount(w http.ResponseWriter, r *http.Request) {
	if !requireJSON(w, r) {
		return
	}
	id, ok := pathID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req patchAccountRequest
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
	a, err := s.accountSvc.Rename(r.Context(), req.UserID, id, req.Name)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toAccountResponse(a))
}

// deactivateAccount handles DELETE /v1/accounts/{id} (soft delete).
func (s *Server) deactivateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromQuery(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if err := s.accountSvc.Deactivate(r.Context(), userID, id); err != nil {
		writeDomainErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
