// Package finance defines the domain entities shared across services and storage.
package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/finbook/finbook/internal/meta"
)

// TransactionType enumerates how a transaction moves money between accounts.
type TransactionType string

const (
	// TypeIncome adds the amount to the source account.
	TypeIncome TransactionType = "income"
	// TypeExpense subtracts the amount from the source account.
	TypeExpense TransactionType = "expense"
	// TypeTransfer moves the amount from the source to the destination account.
	TypeTransfer TransactionType = "transfer"
)

// Valid reports whether t is one of the three known types.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeIncome, TypeExpense, TypeTransfer:
		return true
	}
	return false
}

// Types lists all transaction types in display order.
func Types() []TransactionType {
	return []TransactionType{TypeIncome, TypeExpense, TypeTransfer}
}

// User captures the owner of finance data.
type User struct {
	ID    uuid.UUID
	Email *string
}

// Account is a balance-carrying account belonging to a user.
// Balance is mutated only by the ledger engine; account CRUD touches
// descriptive fields and the active flag.
type Account struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Name     string
	Currency string
	Balance  money.Amount
	// Active indicates whether the account is active (soft-delete when false).
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Category labels transactions and carries the type that determines posting.
// Immutable with respect to the engine: once created, its type never changes.
type Category struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Name   string
	Type   TransactionType
	Active bool
}

// Transaction records a single money movement against one or two accounts.
// Rows are never physically deleted; DeletedAt marks soft deletion so the
// balance history stays computable.
type Transaction struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	CategoryID uuid.UUID
	AccountID  uuid.UUID
	// DestinationAccountID is set iff the category type is transfer.
	DestinationAccountID *uuid.UUID
	Amount               money.Amount
	Currency             string
	Date                 time.Time
	Memo                 string
	// Metadata holds additional key-value attributes for the transaction.
	Metadata  meta.Metadata `json:"metadata,omitempty"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Active reports whether the transaction still counts toward balances.
func (t Transaction) Active() bool { return t.DeletedAt == nil }

// PendingStatus tracks the lifecycle of a pending expense.
type PendingStatus string

const (
	PendingStatusPending PendingStatus = "pending"
	PendingStatusPaid    PendingStatus = "paid"
)

// PendingExpense is a planned expense that has not hit an account yet.
// It transitions pending to paid exactly once, through conversion.
type PendingExpense struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	CategoryID uuid.UUID
	Amount     money.Amount
	Currency   string
	Memo       string
	Status     PendingStatus
	DueDate    *time.Time
	// Recurrence holds schedule attributes. Stored verbatim, never interpreted here.
	Recurrence meta.Metadata `json:"recurrence,omitempty"`
	// TransactionID links to the transaction created by conversion.
	TransactionID *uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
