// Package memory provides an in-memory Store for development and tests.
// It implements the same interfaces as the postgres store, including the
// transactional Tx used by the ledger engine.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/finbook/finbook/internal/errs"
	"github.com/finbook/finbook/internal/finance"
	"github.com/finbook/finbook/internal/service/txn"
)

type Store struct {
	mu           sync.Mutex
	users        map[uuid.UUID]finance.User
	accounts     map[uuid.UUID]finance.Account
	categories   map[uuid.UUID]finance.Category
	transactions map[uuid.UUID]finance.Transaction
	pendings     map[uuid.UUID]finance.PendingExpense
	idempotency  map[string]uuid.UUID
}

func New() *Store {
	return &Store{
		users:        make(map[uuid.UUID]finance.User),
		accounts:     make(map[uuid.UUID]finance.Account),
		categories:   make(map[uuid.UUID]finance.Category),
		transactions: make(map[uuid.UUID]finance.Transaction),
		pendings:     make(map[uuid.UUID]finance.PendingExpense),
		idempotency:  make(map[string]uuid.UUID),
	}
}

// Seed helpers for tests and the dev server. They bypass validation.

func (s *Store) SeedUser(u finance.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) SeedAccount(a finance.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
}

func (s *Store) SeedCategory(c finance.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.ID] = c
}

func (s *Store) SeedTransaction(t finance.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[t.ID] = t
}

func (s *Store) SeedPendingExpense(p finance.PendingExpense) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendings[p.ID] = p
}

// Accounts

func (s *Store) ListAccounts(ctx context.Context, userID uuid.UUID) ([]finance.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]finance.Account, 0)
	for _, a := range s.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) GetAccount(ctx context.Context, userID, accountID uuid.UUID) (finance.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getAccountLocked(userID, accountID)
}

func (s *Store) getAccountLocked(userID, accountID uuid.UUID) (finance.Account, error) {
	a, ok := s.accounts[accountID]
	if !ok || a.UserID != userID {
		return finance.Account{}, errs.ErrAccountNotFound
	}
	return a, nil
}

func (s *Store) CreateAccount(ctx context.Context, a finance.Account) (finance.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
	return a, nil
}

// UpdateAccount persists descriptive fields and the active flag. The stored
// balance is kept; only the engine's Tx writes balances.
func (s *Store) UpdateAccount(ctx context.Context, a finance.Account) (finance.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.getAccountLocked(a.UserID, a.ID)
	if err != nil {
		return finance.Account{}, err
	}
	current.Name = a.Name
	current.Active = a.Active
	current.UpdatedAt = a.UpdatedAt
	s.accounts[current.ID] = current
	return current, nil
}

// Categories

func (s *Store) ListCategories(ctx context.Context, userID uuid.UUID) ([]finance.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]finance.Category, 0)
	for _, c := range s.categories {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) GetCategory(ctx context.Context, userID, categoryID uuid.UUID) (finance.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getCategoryLocked(userID, categoryID)
}

func (s *Store) getCategoryLocked(userID, categoryID uuid.UUID) (finance.Category, error) {
	c, ok := s.categories[categoryID]
	if !ok || c.UserID != userID {
		return finance.Category{}, errs.ErrCategoryNotFound
	}
	return c, nil
}

func (s *Store) CreateCategory(ctx context.Context, c finance.Category) (finance.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) UpdateCategory(ctx context.Context, c finance.Category) (finance.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.getCategoryLocked(c.UserID, c.ID)
	if err != nil {
		return finance.Category{}, err
	}
	current.Name = c.Name
	current.Active = c.Active
	s.categories[current.ID] = current
	return current, nil
}

// Transactions

func (s *Store) TransactionByID(ctx context.Context, userID, transactionID uuid.UUID) (finance.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[transactionID]
	if !ok || t.UserID != userID {
		return finance.Transaction{}, errs.ErrTransactionNotFound
	}
	return t, nil
}

func (s *Store) TransactionsByUserID(ctx context.Context, userID uuid.UUID) ([]finance.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]finance.Transaction, 0)
	for _, t := range s.transactions {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

// Pending expenses

func (s *Store) ListPendingExpenses(ctx context.Context, userID uuid.UUID) ([]finance.PendingExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]finance.PendingExpense, 0)
	for _, p := range s.pendings {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) GetPendingExpense(ctx context.Context, userID, pendingID uuid.UUID) (finance.PendingExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pendings[pendingID]
	if !ok || p.UserID != userID {
		return finance.PendingExpense{}, errs.ErrPendingExpenseNotFound
	}
	return p, nil
}

func (s *Store) CreatePendingExpense(ctx context.Context, p finance.PendingExpense) (finance.PendingExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendings[p.ID] = p
	return p, nil
}

// Idempotency

func (s *Store) SaveIdempotencyKey(ctx context.Context, userID uuid.UUID, key string, transactionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idempotency[userID.String()+"/"+key] = transactionID
	return nil
}

func (s *Store) IdempotentTransactionID(ctx context.Context, userID uuid.UUID, key string) (uuid.UUID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.idempotency[userID.String()+"/"+key]
	return id, ok, nil
}

// Begin opens a transaction. The store mutex is held from Begin until Commit
// or Rollback, which serializes writers the way row locks do in postgres.
// Changes are staged in the Tx and only folded into the store on Commit.
func (s *Store) Begin(ctx context.Context) (txn.Tx, error) {
	s.mu.Lock()
	return &Tx{
		store:        s,
		accounts:     make(map[uuid.UUID]finance.Account),
		transactions: make(map[uuid.UUID]finance.Transaction),
		pendings:     make(map[uuid.UUID]finance.PendingExpense),
	}, nil
}

type Tx struct {
	store        *Store
	done         bool
	accounts     map[uuid.UUID]finance.Account
	transactions map[uuid.UUID]finance.Transaction
	pendings     map[uuid.UUID]finance.PendingExpense
}

func (tx *Tx) CategoryByID(ctx context.Context, userID, categoryID uuid.UUID) (finance.Category, error) {
	return tx.store.getCategoryLocked(userID, categoryID)
}

// AccountForUpdate reads an account for mutation. The whole store is already
// locked, so no per-row lock is needed; staged writes shadow stored rows.
func (tx *Tx) AccountForUpdate(ctx context.Context, userID, accountID uuid.UUID) (finance.Account, error) {
	if a, ok := tx.accounts[accountID]; ok {
		if a.UserID != userID {
			return finance.Account{}, errs.ErrAccountNotFound
		}
		return a, nil
	}
	return tx.store.getAccountLocked(userID, accountID)
}

func (tx *Tx) SaveAccountBalance(ctx context.Context, a finance.Account) error {
	tx.accounts[a.ID] = a
	return nil
}

func (tx *Tx) TransactionByID(ctx context.Context, userID, transactionID uuid.UUID) (finance.Transaction, error) {
	if t, ok := tx.transactions[transactionID]; ok {
		if t.UserID != userID {
			return finance.Transaction{}, errs.ErrTransactionNotFound
		}
		return t, nil
	}
	t, ok := tx.store.transactions[transactionID]
	if !ok || t.UserID != userID {
		return finance.Transaction{}, errs.ErrTransactionNotFound
	}
	return t, nil
}

func (tx *Tx) InsertTransaction(ctx context.Context, t finance.Transaction) error {
	tx.transactions[t.ID] = t
	return nil
}

func (tx *Tx) UpdateTransaction(ctx context.Context, t finance.Transaction) error {
	tx.transactions[t.ID] = t
	return nil
}

func (tx *Tx) PendingExpenseByID(ctx context.Context, userID, pendingID uuid.UUID) (finance.PendingExpense, error) {
	if p, ok := tx.pendings[pendingID]; ok {
		if p.UserID != userID {
			return finance.PendingExpense{}, errs.ErrPendingExpenseNotFound
		}
		return p, nil
	}
	p, ok := tx.store.pendings[pendingID]
	if !ok || p.UserID != userID {
		return finance.PendingExpense{}, errs.ErrPendingExpenseNotFound
	}
	return p, nil
}

func (tx *Tx) UpdatePendingExpense(ctx context.Context, p finance.PendingExpense) error {
	tx.pendings[p.ID] = p
	return nil
}

func (tx *Tx) Commit(ctx context.Context) error {
	if tx.done {
		return nil
	}
	for id, a := range tx.accounts {
		tx.store.accounts[id] = a
	}
	for id, t := range tx.transactions {
		tx.store.transactions[id] = t
	}
	for id, p := range tx.pendings {
		tx.store.pendings[id] = p
	}
	tx.done = true
	tx.store.mu.Unlock()
	return nil
}

func (tx *Tx) Rollback(ctx context.Context) error {
	if tx.done {
		return nil
	}
	tx.done = true
	tx.store.mu.Unlock()
	return nil
}
