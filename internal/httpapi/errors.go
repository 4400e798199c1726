package httpapi

import (
	"errors"
	"net/http"

	"github.com/finbook/finbook/internal/errs"
	"github.com/finbook/finbook/internal/service/account"
	"github.com/finbook/finbook/internal/service/category"
)

// errorResponse is the standard error payload for the API.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) { writeErr(w, http.StatusBadRequest, msg, "") }
func notFound(w http.ResponseWriter)               { writeErr(w, http.StatusNotFound, "not_found", "not_found") }
func conflict(w http.ResponseWriter, msg, code string) {
	writeErr(w, http.StatusConflict, msg, code)
}
func unprocessable(w http.ResponseWriter, msg, code string) {
	writeErr(w, http.StatusUnprocessableEntity, msg, code)
}

// writeDomainErr maps service errors onto HTTP responses. Not-found sentinels
// collapse to 404 so the API does not leak which resource check failed first.
func writeDomainErr(w http.ResponseWriter, err error) {
	var insufficient *errs.InsufficientBalanceError
	switch {
	case errors.As(err, &insufficient):
		conflict(w, insufficient.Error(), "insufficient_balance")
	case errors.Is(err, errs.ErrAlreadyPaid):
		conflict(w, err.Error(), "already_paid")
	case errors.Is(err, account.ErrNameExists), errors.Is(err, category.ErrNameExists):
		conflict(w, err.Error(), "name_exists")
	case errors.Is(err, errs.ErrNotFound):
		notFound(w)
	case errors.Is(err, errs.ErrInvalidAmount):
		unprocessable(w, err.Error(), "invalid_amount")
	case errors.Is(err, errs.ErrCurrencyMismatch):
		unprocessable(w, err.Error(), "currency_mismatch")
	case errors.Is(err, errs.ErrSameAccountTransfer):
		unprocessable(w, err.Error(), "same_account_transfer")
	case errors.Is(err, errs.ErrTransferRequiresDestination):
		unprocessable(w, err.Error(), "transfer_requires_destination")
	case errors.Is(err, errs.ErrInvalid):
		badRequest(w, err.Error())
	default:
		writeErr(w, http.StatusInternalServerError, "internal_error", "internal_error")
	}
}
