package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/finbook/finbook/internal/meta"
)

type ctxKey string

const ctxKeyPostTransaction ctxKey = "validatedPostTransaction"
const ctxKeyUserID ctxKey = "validatedUserID"

// validatePostTransaction parses and validates POST /v1/transactions and
// stores the request struct in the request context for the handler to use.
func (s *Server) validatePostTransaction() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requireJSON(w, r) {
				return
			}
			var req postTransactionRequest
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				badRequest(w, "invalid JSON: "+err.Error())
				return
			}
			if req.UserID == uuid.Nil || req.CategoryID == uuid.Nil || req.AccountID == uuid.Nil {
				badRequest(w, "user_id, category_id and account_id are required")
				return
			}
			if req.AmountMinor <= 0 {
				unprocessable(w, "amount_minor must be > 0", "invalid_amount")
				return
			}
			if req.Metadata != nil {
				if err := meta.New(req.Metadata).Validate(); err != nil {
					unprocessable(w, "validation_error", "validation_error")
					return
				}
			}
			ctx := context.WithValue(r.Context(), ctxKeyPostTransaction, req)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validateUserQuery parses and validates the user_id query param used by the
// list endpoints and stores it in the request context.
func (s *Server) validateUserQuery() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.URL.Query().Get("user_id")
			if raw == "" {
				badRequest(w, "user_id is required")
				return
			}
			userID, err := uuid.Parse(raw)
			if err != nil {
				badRequest(w, "invalid user_id")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyUserID, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// userFromQuery parses user_id for handlers without the middleware. Writes a
// 400 and returns false when missing or malformed.
func userFromQuery(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		badRequest(w, "user_id is required")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		badRequest(w, "invalid user_id")
		return uuid.Nil, false
	}
	return userID, true
}

// pathID parses a uuid path parameter already extracted by chi.
func pathID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		badRequest(w, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}
