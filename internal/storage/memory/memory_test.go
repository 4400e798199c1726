package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/finbook/finbook/internal/errs"
	"github.com/finbook/finbook/internal/finance"
)

func seedAccount(s *Store, userID uuid.UUID, minor int64) finance.Account {
	amt, _ := money.NewAmountFromMinorUnits("GBP", minor)
	a := finance.Account{ID: uuid.New(), UserID: userID, Name: "Cash", Currency: "GBP", Balance: amt, Active: true}
	s.SeedAccount(a)
	return a
}

func TestTxCommitFoldsStagedWrites(t *testing.T) {
	s := New()
	userID := uuid.New()
	acc := seedAccount(s, userID, 100)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	got, err := tx.AccountForUpdate(ctx, userID, acc.ID)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	next, _ := money.NewAmountFromMinorUnits("GBP", 250)
	got.Balance = next
	if err := tx.SaveAccountBalance(ctx, got); err != nil {
		t.Fatalf("save: %v", err)
	}
	// staged write visible inside the tx
	again, err := tx.AccountForUpdate(ctx, userID, acc.ID)
	if err != nil {
		t.Fatalf("reread: %v", err)
	}
	if minor, _ := again.Balance.MinorUnits(); minor != 250 {
		t.Fatalf("tx must observe its own writes, got %d", minor)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	after, err := s.GetAccount(ctx, userID, acc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if minor, _ := after.Balance.MinorUnits(); minor != 250 {
		t.Fatalf("commit lost the staged write, got %d", minor)
	}
}

func TestTxRollbackDiscards(t *testing.T) {
	s := New()
	userID := uuid.New()
	acc := seedAccount(s, userID, 100)
	ctx := context.Background()

	tx, _ := s.Begin(ctx)
	got, _ := tx.AccountForUpdate(ctx, userID, acc.ID)
	next, _ := money.NewAmountFromMinorUnits("GBP", 999)
	got.Balance = next
	_ = tx.SaveAccountBalance(ctx, got)
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	after, _ := s.GetAccount(ctx, userID, acc.ID)
	if minor, _ := after.Balance.MinorUnits(); minor != 100 {
		t.Fatalf("rollback leaked a write, got %d", minor)
	}
	// rollback after commit or rollback is a no-op
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("second rollback: %v", err)
	}
}

func TestOwnershipChecks(t *testing.T) {
	s := New()
	userID := uuid.New()
	acc := seedAccount(s, userID, 0)
	ctx := context.Background()

	if _, err := s.GetAccount(ctx, uuid.New(), acc.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found for other user, got %v", err)
	}
	tx, _ := s.Begin(ctx)
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.AccountForUpdate(ctx, uuid.New(), acc.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found inside tx, got %v", err)
	}
}

func TestIdempotencyMap(t *testing.T) {
	s := New()
	userID := uuid.New()
	ctx := context.Background()
	txID := uuid.New()

	if _, found, _ := s.IdempotentTransactionID(ctx, userID, "k"); found {
		t.Fatalf("unknown key resolved")
	}
	if err := s.SaveIdempotencyKey(ctx, userID, "k", txID); err != nil {
		t.Fatalf("save: %v", err)
	}
	id, found, err := s.IdempotentTransactionID(ctx, userID, "k")
	if err != nil || !found || id != txID {
		t.Fatalf("resolve: id=%s found=%v err=%v", id, found, err)
	}
	// keys are scoped per user
	if _, found, _ := s.IdempotentTransactionID(ctx, uuid.New(), "k"); found {
		t.Fatalf("key leaked across users")
	}
}
