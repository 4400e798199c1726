// Package txn implements the ledger consistency engine: every mutation of a
// transaction row and the balance changes that justify it happen inside one
// storage transaction, so an account's stored balance always equals its
// opening balance plus the signed deltas of its active transactions.
package txn

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/finbook/finbook/internal/errs"
	"github.com/finbook/finbook/internal/finance"
	"github.com/finbook/finbook/internal/meta"
)

// Store provides reads outside a transaction and opens atomic transactions.
type Store interface {
	TransactionByID(ctx context.Context, userID, transactionID uuid.UUID) (finance.Transaction, error)
	TransactionsByUserID(ctx context.Context, userID uuid.UUID) ([]finance.Transaction, error)
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one atomic storage transaction. Reads through it must observe the
// transaction's own earlier writes, and AccountForUpdate must take a row
// lock so concurrent operations on the same account serialize.
type Tx interface {
	CategoryByID(ctx context.Context, userID, categoryID uuid.UUID) (finance.Category, error)
	AccountForUpdate(ctx context.Context, userID, accountID uuid.UUID) (finance.Account, error)
	SaveAccountBalance(ctx context.Context, a finance.Account) error
	TransactionByID(ctx context.Context, userID, transactionID uuid.UUID) (finance.Transaction, error)
	InsertTransaction(ctx context.Context, t finance.Transaction) error
	UpdateTransaction(ctx context.Context, t finance.Transaction) error
	PendingExpenseByID(ctx context.Context, userID, pendingID uuid.UUID) (finance.PendingExpense, error)
	UpdatePendingExpense(ctx context.Context, p finance.PendingExpense) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// CreateInput carries the fields needed to post a new transaction.
type CreateInput struct {
	UserID               uuid.UUID
	CategoryID           uuid.UUID
	AccountID            uuid.UUID
	DestinationAccountID *uuid.UUID
	AmountMinor          int64
	Date                 time.Time
	Memo                 string
	Metadata             meta.Metadata
}

// Patch describes a partial update. Nil fields mean "unchanged"; the stored
// value is kept. There is no way to clear a transfer's destination through a
// patch: switching to a non-transfer category drops it instead.
type Patch struct {
	CategoryID           *uuid.UUID
	AccountID            *uuid.UUID
	DestinationAccountID *uuid.UUID
	AmountMinor          *int64
	Date                 *time.Time
	Memo                 *string
	Metadata             meta.Metadata
}

// Result carries the persisted transaction and the accounts whose balances changed.
type Result struct {
	Transaction finance.Transaction
	Accounts    []finance.Account
}

// ConvertResult extends Result with the pending expense marked paid.
type ConvertResult struct {
	Result
	Pending finance.PendingExpense
}

// Service sequences validate, reverse, apply, persist, commit for the
// transaction lifecycle, and the one-shot pending-expense conversion.
type Service interface {
	Create(ctx context.Context, in CreateInput) (Result, error)
	Update(ctx context.Context, userID, transactionID uuid.UUID, patch Patch) (Result, error)
	Delete(ctx context.Context, userID, transactionID uuid.UUID) (Result, error)
	Convert(ctx context.Context, userID, pendingID, accountID uuid.UUID) (ConvertResult, error)
	Get(ctx context.Context, userID, transactionID uuid.UUID) (finance.Transaction, error)
	List(ctx context.Context, userID uuid.UUID, includeDeleted bool) ([]finance.Transaction, error)
}

type service struct {
	store Store
}

func New(store Store) Service { return &service{store: store} }

// Create validates the category and accounts, applies the deltas under the
// non-negative guard, and inserts the transaction row, all in one storage
// transaction. Any failure after Begin rolls everything back.
func (s *service) Create(ctx context.Context, in CreateInput) (Result, error) {
	if in.UserID == uuid.Nil || in.CategoryID == uuid.Nil || in.AccountID == uuid.Nil {
		return Result{}, errs.ErrInvalid
	}
	if in.AmountMinor <= 0 {
		return Result{}, errs.ErrInvalidAmount
	}
	if err := in.Metadata.Validate(); err != nil {
		return Result{}, errs.ErrInvalid
	}
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	res, err := s.createInTx(ctx, tx, in)
	if err != nil {
		return Result{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Result{}, err
	}
	return res, nil
}

// createInTx is the shared create path, also used by Convert so the pending
// status flip commits atomically with the new transaction.
func (s *service) createInTx(ctx context.Context, tx Tx, in CreateInput) (Result, error) {
	cat, err := tx.CategoryByID(ctx, in.UserID, in.CategoryID)
	if err != nil {
		return Result{}, err
	}
	if !cat.Active {
		return Result{}, errs.ErrCategoryNotFound
	}
	kind, err := classify(cat)
	if err != nil {
		return Result{}, err
	}
	deltas, err := computeDeltas(kind, in.AmountMinor, in.AccountID, in.DestinationAccountID)
	if err != nil {
		return Result{}, err
	}
	accounts, err := applyDeltas(ctx, tx, in.UserID, deltas, true)
	if err != nil {
		return Result{}, err
	}
	currency, err := sharedCurrency(accounts)
	if err != nil {
		return Result{}, err
	}
	amount, err := money.NewAmountFromMinorUnits(currency, in.AmountMinor)
	if err != nil {
		return Result{}, errs.ErrInvalidAmount
	}

	now := time.Now().UTC()
	date := in.Date
	if date.IsZero() {
		date = now
	}
	t := finance.Transaction{
		ID:         uuid.New(),
		UserID:     in.UserID,
		CategoryID: cat.ID,
		AccountID:  in.AccountID,
		Amount:     amount,
		Currency:   currency,
		Date:       date,
		Memo:       in.Memo,
		Metadata:   in.Metadata.Clone(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	// Destination is populated iff the kind is transfer.
	if kind == finance.TypeTransfer {
		t.DestinationAccountID = in.DestinationAccountID
	}
	if err := tx.InsertTransaction(ctx, t); err != nil {
		return Result{}, err
	}
	return Result{Transaction: t, Accounts: accounts}, nil
}

// Update reverses the transaction's old effect, resolves the patched fields
// (falling back to stored values), then applies the new effect with the
// guard judged against the already-reversed balances.
func (s *service) Update(ctx context.Context, userID, transactionID uuid.UUID, patch Patch) (Result, error) {
	if userID == uuid.Nil || transactionID == uuid.Nil {
		return Result{}, errs.ErrInvalid
	}
	if patch.AmountMinor != nil && *patch.AmountMinor <= 0 {
		return Result{}, errs.ErrInvalidAmount
	}
	if err := patch.Metadata.Validate(); err != nil {
		return Result{}, errs.ErrInvalid
	}
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	old, oldDeltas, err := s.loadEffect(ctx, tx, userID, transactionID)
	if err != nil {
		return Result{}, err
	}
	// Reversal first, unguarded: it restores the pre-transaction state so the
	// guard below judges the new amount against the true available balance.
	reversed, err := applyDeltas(ctx, tx, userID, invert(oldDeltas), false)
	if err != nil {
		return Result{}, err
	}

	next := old
	if patch.CategoryID != nil {
		next.CategoryID = *patch.CategoryID
	}
	if patch.AccountID != nil {
		next.AccountID = *patch.AccountID
	}
	if patch.DestinationAccountID != nil {
		next.DestinationAccountID = patch.DestinationAccountID
	}
	if patch.Date != nil {
		next.Date = *patch.Date
	}
	if patch.Memo != nil {
		next.Memo = *patch.Memo
	}
	if patch.Metadata != nil {
		next.Metadata = patch.Metadata.Clone()
	}
	amountMinor, ok := old.Amount.MinorUnits()
	if !ok {
		return Result{}, errs.ErrInvalid
	}
	if patch.AmountMinor != nil {
		amountMinor = *patch.AmountMinor
	}

	cat, err := tx.CategoryByID(ctx, userID, next.CategoryID)
	if err != nil {
		return Result{}, err
	}
	if !cat.Active {
		return Result{}, errs.ErrCategoryNotFound
	}
	kind, err := classify(cat)
	if err != nil {
		return Result{}, err
	}
	newDeltas, err := computeDeltas(kind, amountMinor, next.AccountID, next.DestinationAccountID)
	if err != nil {
		return Result{}, err
	}
	accounts, err := applyDeltas(ctx, tx, userID, newDeltas, true)
	if err != nil {
		return Result{}, err
	}
	currency, err := sharedCurrency(accounts)
	if err != nil {
		return Result{}, err
	}
	amount, err := money.NewAmountFromMinorUnits(currency, amountMinor)
	if err != nil {
		return Result{}, errs.ErrInvalidAmount
	}

	next.Amount = amount
	next.Currency = currency
	if kind != finance.TypeTransfer {
		next.DestinationAccountID = nil
	}
	next.UpdatedAt = time.Now().UTC()
	if err := tx.UpdateTransaction(ctx, next); err != nil {
		return Result{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Result{}, err
	}
	return Result{Transaction: next, Accounts: mergeAccounts(reversed, accounts)}, nil
}

// mergeAccounts combines the accounts touched by the reversal and the
// re-apply, keeping the latest state of each.
func mergeAccounts(older, newer []finance.Account) []finance.Account {
	out := make([]finance.Account, 0, len(older)+len(newer))
	seen := make(map[uuid.UUID]int, len(older)+len(newer))
	for _, a := range older {
		seen[a.ID] = len(out)
		out = append(out, a)
	}
	for _, a := range newer {
		if i, ok := seen[a.ID]; ok {
			out[i] = a
			continue
		}
		seen[a.ID] = len(out)
		out = append(out, a)
	}
	return out
}

// Delete reverses the transaction's effect and marks it soft-deleted. No
// guard runs on the reversal; removal always restores the history balance.
func (s *service) Delete(ctx context.Context, userID, transactionID uuid.UUID) (Result, error) {
	if userID == uuid.Nil || transactionID == uuid.Nil {
		return Result{}, errs.ErrInvalid
	}
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	old, deltas, err := s.loadEffect(ctx, tx, userID, transactionID)
	if err != nil {
		return Result{}, err
	}
	accounts, err := applyDeltas(ctx, tx, userID, invert(deltas), false)
	if err != nil {
		return Result{}, err
	}
	now := time.Now().UTC()
	old.DeletedAt = &now
	old.UpdatedAt = now
	if err := tx.UpdateTransaction(ctx, old); err != nil {
		return Result{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Result{}, err
	}
	return Result{Transaction: old, Accounts: accounts}, nil
}

// Convert turns a pending expense into a real transaction against the given
// account and marks it paid, atomically. A failed create (e.g. insufficient
// balance) leaves the pending expense untouched and convertible again.
func (s *service) Convert(ctx context.Context, userID, pendingID, accountID uuid.UUID) (ConvertResult, error) {
	if userID == uuid.Nil || pendingID == uuid.Nil || accountID == uuid.Nil {
		return ConvertResult{}, errs.ErrInvalid
	}
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return ConvertResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	p, err := tx.PendingExpenseByID(ctx, userID, pendingID)
	if err != nil {
		return ConvertResult{}, err
	}
	if p.Status != finance.PendingStatusPending {
		return ConvertResult{}, errs.ErrAlreadyPaid
	}
	amountMinor, ok := p.Amount.MinorUnits()
	if !ok {
		return ConvertResult{}, errs.ErrInvalid
	}
	res, err := s.createInTx(ctx, tx, CreateInput{
		UserID:      userID,
		CategoryID:  p.CategoryID,
		AccountID:   accountID,
		AmountMinor: amountMinor,
		Memo:        p.Memo,
	})
	if err != nil {
		return ConvertResult{}, err
	}
	if p.Currency != "" && p.Currency != res.Transaction.Currency {
		return ConvertResult{}, errs.ErrCurrencyMismatch
	}
	now := time.Now().UTC()
	p.Status = finance.PendingStatusPaid
	p.TransactionID = &res.Transaction.ID
	p.UpdatedAt = now
	if err := tx.UpdatePendingExpense(ctx, p); err != nil {
		return ConvertResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ConvertResult{}, err
	}
	return ConvertResult{Result: res, Pending: p}, nil
}

func (s *service) Get(ctx context.Context, userID, transactionID uuid.UUID) (finance.Transaction, error) {
	if userID == uuid.Nil || transactionID == uuid.Nil {
		return finance.Transaction{}, errs.ErrInvalid
	}
	return s.store.TransactionByID(ctx, userID, transactionID)
}

func (s *service) List(ctx context.Context, userID uuid.UUID, includeDeleted bool) ([]finance.Transaction, error) {
	if userID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	all, err := s.store.TransactionsByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if includeDeleted {
		return all, nil
	}
	out := make([]finance.Transaction, 0, len(all))
	for _, t := range all {
		if t.Active() {
			out = append(out, t)
		}
	}
	return out, nil
}

// loadEffect re-reads a transaction with its category and recomputes the
// deltas it previously applied. Shared by the update and delete paths so
// reversal is always derived the same single way.
func (s *service) loadEffect(ctx context.Context, tx Tx, userID, transactionID uuid.UUID) (finance.Transaction, []Delta, error) {
	t, err := tx.TransactionByID(ctx, userID, transactionID)
	if err != nil {
		return finance.Transaction{}, nil, err
	}
	if !t.Active() {
		return finance.Transaction{}, nil, errs.ErrTransactionNotFound
	}
	// The category may have been deactivated since posting; its type is still
	// the one that shaped the original deltas, so no active check here.
	cat, err := tx.CategoryByID(ctx, userID, t.CategoryID)
	if err != nil {
		return finance.Transaction{}, nil, err
	}
	kind, err := classify(cat)
	if err != nil {
		return finance.Transaction{}, nil, err
	}
	amountMinor, ok := t.Amount.MinorUnits()
	if !ok {
		return finance.Transaction{}, nil, errs.ErrInvalid
	}
	deltas, err := computeDeltas(kind, amountMinor, t.AccountID, t.DestinationAccountID)
	if err != nil {
		return finance.Transaction{}, nil, err
	}
	return t, deltas, nil
}

// applyDeltas is the balance mutator. It locks each affected account row,
// enforces the non-negative guard on negative deltas when guard is set, and
// writes the new balances. Rows are locked in ascending account-id order so
// two operations touching the same pair of accounts cannot deadlock.
// Reversals run with guard=false: they must succeed even against accounts
// deactivated after posting, and never fail on balance.
func applyDeltas(ctx context.Context, tx Tx, userID uuid.UUID, deltas []Delta, guard bool) ([]finance.Account, error) {
	ordered := make([]Delta, len(deltas))
	copy(ordered, deltas)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].AccountID.String() < ordered[j].AccountID.String()
	})
	out := make([]finance.Account, 0, len(ordered))
	for _, d := range ordered {
		acc, err := tx.AccountForUpdate(ctx, userID, d.AccountID)
		if err != nil {
			return nil, err
		}
		if guard && !acc.Active {
			return nil, errs.ErrAccountNotFound
		}
		current, ok := acc.Balance.MinorUnits()
		if !ok {
			return nil, errs.ErrInvalid
		}
		next := current + d.MinorUnits
		if guard && d.MinorUnits < 0 && next < 0 {
			return nil, &errs.InsufficientBalanceError{
				AccountName:    acc.Name,
				Currency:       acc.Currency,
				AvailableMinor: current,
				RequiredMinor:  -d.MinorUnits,
			}
		}
		balance, err := money.NewAmountFromMinorUnits(acc.Currency, next)
		if err != nil {
			return nil, err
		}
		acc.Balance = balance
		acc.UpdatedAt = time.Now().UTC()
		if err := tx.SaveAccountBalance(ctx, acc); err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, nil
}

// sharedCurrency requires every touched account to use one currency; the
// engine does no conversion.
func sharedCurrency(accounts []finance.Account) (string, error) {
	if len(accounts) == 0 {
		return "", errs.ErrInvalid
	}
	currency := accounts[0].Currency
	for _, a := range accounts[1:] {
		if a.Currency != currency {
			return "", errs.ErrCurrencyMismatch
		}
	}
	return currency, nil
}
