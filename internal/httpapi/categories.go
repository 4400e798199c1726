package httpapi

import (
	"encoding/json"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/finbook/finbook/internal/finance"
)

// postCategory handles POST /v1/categories.
func (s *Server) postCategory(w http.ResponseWriter, r *http.Request) {
	if !requireJSON(w, r) {
		return
	}
	var req postCategoryRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	c, err := s.categorySvc.Create(r.Context(), req.UserID, req.Name, finance.TransactionType(req.Type))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toCategoryResponse(c))
}

// listCategories handles GET /v1/categories.
func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(ctxKeyUserID).(uuid.UUID)
	if !ok {
		writeErr(w, http.StatusInternalServerError, "internal_error", "internal_error")
		return
	}
	all, err := s.categorySvc.List(r.Context(), userID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	items := make([]categoryResponse, 0, len(all))
	for _, c := range all {
		items = append(items, toCategoryResponse(c))
	}
	toJSON(w, http.StatusOK, struct {
		Items []categoryResponse `json:"items"`
	}{Items: items})
}

// getCategory handles GET /v1/categories/{id}.
func (s *Server) getCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromQuery(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	c, err := s.categorySvc.Get(r.Context(), userID, id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toCategoryResponse(c))
}

// deactivateCategory handles DELETE /v1/categories/{id} (soft delete).
func (s *Server) deactivateCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromQuery(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if err := s.categorySvc.Deactivate(r.Context(), userID, id); err != nil {
		writeDomainErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
