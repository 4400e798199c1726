package httpapi

import (
	"time"

	"github.com/google/uuid"

	"github.com/finbook/finbook/internal/finance"
	"github.com/finbook/finbook/internal/meta"
	"github.com/finbook/finbook/internal/service/txn"
)

type postTransactionRequest struct {
	UserID               uuid.UUID         `json:"user_id"`
	CategoryID           uuid.UUID         `json:"category_id"`
	AccountID            uuid.UUID         `json:"account_id"`
	DestinationAccountID *uuid.UUID        `json:"destination_account_id,omitempty"`
	AmountMinor          int64             `json:"amount_minor"`
	Date                 time.Time         `json:"date"`
	Memo                 string            `json:"memo"`
	Metadata             map[string]string `json:"metadata,omitempty"`
}

type patchTransactionRequest struct {
	UserID               uuid.UUID         `json:"user_id"`
	CategoryID           *uuid.UUID        `json:"category_id,omitempty"`
	AccountID            *uuid.UUID        `json:"account_id,omitempty"`
	DestinationAccountID *uuid.UUID        `json:"destination_account_id,omitempty"`
	AmountMinor          *int64            `json:"amount_minor,omitempty"`
	Date                 *time.Time        `json:"date,omitempty"`
	Memo                 *string           `json:"memo,omitempty"`
	Metadata             map[string]string `json:"metadata,omitempty"`
}

type postAccountRequest struct {
	UserID              uuid.UUID `json:"user_id"`
	Name                string    `json:"name"`
	Currency            string    `json:"currency"`
	OpeningBalanceMinor int64     `json:"opening_balance_minor"`
}

type patchAccountRequest struct {
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
}

type postCategoryRequest struct {
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
	Type   string    `json:"type"`
}

type postPendingExpenseRequest struct {
	UserID      uuid.UUID         `json:"user_id"`
	CategoryID  uuid.UUID         `json:"category_id"`
	AmountMinor int64             `json:"amount_minor"`
	Currency    string            `json:"currency"`
	Memo        string            `json:"memo"`
	DueDate     *time.Time        `json:"due_date,omitempty"`
	Recurrence  map[string]string `json:"recurrence,omitempty"`
}

type convertPendingExpenseRequest struct {
	UserID    uuid.UUID `json:"user_id"`
	AccountID uuid.UUID `json:"account_id"`
}

type transactionResponse struct {
	ID                   uuid.UUID     `json:"id"`
	UserID               uuid.UUID     `json:"user_id"`
	CategoryID           uuid.UUID     `json:"category_id"`
	AccountID            uuid.UUID     `json:"account_id"`
	DestinationAccountID *uuid.UUID    `json:"destination_account_id,omitempty"`
	AmountMinor          int64         `json:"amount_minor"`
	Currency             string        `json:"currency"`
	Date                 time.Time     `json:"date"`
	Memo                 string        `json:"memo"`
	Metadata             meta.Metadata `json:"metadata,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
	DeletedAt            *time.Time    `json:"deleted_at,omitempty"`
}

type accountResponse struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	Name         string    `json:"name"`
	Currency     string    `json:"currency"`
	BalanceMinor int64     `json:"balance_minor"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type categoryResponse struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
	Type   string    `json:"type"`
	Active bool      `json:"active"`
}

type pendingExpenseResponse struct {
	ID            uuid.UUID     `json:"id"`
	UserID        uuid.UUID     `json:"user_id"`
	CategoryID    uuid.UUID     `json:"category_id"`
	AmountMinor   int64         `json:"amount_minor"`
	Currency      string        `json:"currency"`
	Memo          string        `json:"memo"`
	Status        string        `json:"status"`
	DueDate       *time.Time    `json:"due_date,omitempty"`
	Recurrence    meta.Metadata `json:"recurrence,omitempty"`
	TransactionID *uuid.UUID    `json:"transaction_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// mutationResponse reports the persisted transaction and every account whose
// balance the mutation changed.
type mutationResponse struct {
	Transaction transactionResponse `json:"transaction"`
	Accounts    []accountResponse   `json:"accounts"`
}

type convertResponse struct {
	mutationResponse
	Pending pendingExpenseResponse `json:"pending_expense"`
}

func toTransactionResponse(t finance.Transaction) transactionResponse {
	minor, _ := t.Amount.MinorUnits()
	return transactionResponse{
		ID:                   t.ID,
		UserID:               t.UserID,
		CategoryID:           t.CategoryID,
		AccountID:            t.AccountID,
		DestinationAccountID: t.DestinationAccountID,
		AmountMinor:          minor,
		Currency:             t.Currency,
		Date:                 t.Date,
		Memo:                 t.Memo,
		Metadata:             t.Metadata,
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
		DeletedAt:            t.DeletedAt,
	}
}

func toAccountResponse(a finance.Account) accountResponse {
	minor, _ := a.Balance.MinorUnits()
	return accountResponse{
		ID:           a.ID,
		UserID:       a.UserID,
		Name:         a.Name,
		Currency:     a.Currency,
		BalanceMinor: minor,
		Active:       a.Active,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func toCategoryResponse(c finance.Category) categoryResponse {
	return categoryResponse{ID: c.ID, UserID: c.UserID, Name: c.Name, Type: string(c.Type), Active: c.Active}
}

func toPendingExpenseResponse(p finance.PendingExpense) pendingExpenseResponse {
	minor, _ := p.Amount.MinorUnits()
	return pendingExpenseResponse{
		ID:            p.ID,
		UserID:        p.UserID,
		CategoryID:    p.CategoryID,
		AmountMinor:   minor,
		Currency:      p.Currency,
		Memo:          p.Memo,
		Status:        string(p.Status),
		DueDate:       p.DueDate,
		Recurrence:    p.Recurrence,
		TransactionID: p.TransactionID,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func toMutationResponse(res txn.Result) mutationResponse {
	accounts := make([]accountResponse, 0, len(res.Accounts))
	for _, a := range res.Accounts {
		accounts = append(accounts, toAccountResponse(a))
	}
	return mutationResponse{Transaction: toTransactionResponse(res.Transaction), Accounts: accounts}
}
