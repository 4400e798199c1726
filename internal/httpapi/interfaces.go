package httpapi

import (
	"context"

	"github.com/google/uuid"

	"github.com/finbook/finbook/internal/service/account"
	"github.com/finbook/finbook/internal/service/category"
	"github.com/finbook/finbook/internal/service/pending"
	"github.com/finbook/finbook/internal/service/txn"
)

// IdempotencyStore abstracts idempotency key operations for transaction creation.
type IdempotencyStore interface {
	// IdempotentTransactionID resolves a previously created transaction by key.
	IdempotentTransactionID(ctx context.Context, userID uuid.UUID, key string) (uuid.UUID, bool, error)
	// SaveIdempotencyKey stores an idempotency key mapping for a transaction.
	SaveIdempotencyKey(ctx context.Context, userID uuid.UUID, key string, transactionID uuid.UUID) error
}

// Storage is the full set of store capabilities the API needs. Both the
// postgres and the in-memory store satisfy it.
type Storage interface {
	txn.Store
	account.Repo
	account.Writer
	category.Repo
	category.Writer
	pending.Repo
	pending.Writer
	IdempotencyStore
}

// ReadyChecker is optionally implemented by stores to indicate readiness.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}
