package errs

import (
	"errors"
	"fmt"
)

// Common sentinel errors for cross-layer signaling. The HTTP layer maps these
// to status codes; services never format user-facing messages themselves.
var (
	ErrNotFound = errors.New("not_found")
	ErrInvalid  = errors.New("invalid")
)

// Validation failures, rejected before any storage mutation.
var (
	ErrInvalidAmount               = errors.New("amount must be > 0")
	ErrSameAccountTransfer         = errors.New("transfer source and destination must differ")
	ErrTransferRequiresDestination = errors.New("transfer requires a destination account")
	ErrCurrencyMismatch            = errors.New("currency mismatch")
)

// Caller input failures outside the engine. All unwrap to ErrInvalid.
var (
	ErrNameRequired    = fmt.Errorf("name is required: %w", ErrInvalid)
	ErrInvalidCurrency = fmt.Errorf("currency must be a 3-letter code: %w", ErrInvalid)
	ErrUnknownCurrency = fmt.Errorf("unknown currency code: %w", ErrInvalid)
	ErrInvalidType     = fmt.Errorf("type must be income, expense or transfer: %w", ErrInvalid)
)

// Not-found failures: the entity is missing, soft-deleted, or owned by
// another user. All unwrap to ErrNotFound.
var (
	ErrAccountNotFound        = fmt.Errorf("account %w", ErrNotFound)
	ErrCategoryNotFound       = fmt.Errorf("category %w", ErrNotFound)
	ErrTransactionNotFound    = fmt.Errorf("transaction %w", ErrNotFound)
	ErrPendingExpenseNotFound = fmt.Errorf("pending expense %w", ErrNotFound)
	// ErrTypeNotFound guards against a dangling type reference on a category.
	ErrTypeNotFound = fmt.Errorf("transaction type %w", ErrNotFound)
)

// Business-rule conflicts discovered during the guarded apply step. The
// storage transaction is rolled back; no partial effect survives.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrAlreadyPaid indicates a pending expense was converted before (single-use).
	ErrAlreadyPaid = errors.New("pending expense already paid")
)

// InsufficientBalanceError carries the detail needed to render a precise
// user-facing message. Match with errors.As, or errors.Is against
// ErrInsufficientBalance.
type InsufficientBalanceError struct {
	AccountName    string
	Currency       string
	AvailableMinor int64
	RequiredMinor  int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance on %q: have %d, need %d %s minor units",
		e.AccountName, e.AvailableMinor, e.RequiredMinor, e.Currency)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }
