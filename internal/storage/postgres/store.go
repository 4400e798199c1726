package postgres

// Package postgres provides a pgx-backed storage implementation that satisfies
// the repository and writer interfaces used by the services, plus the
// transactional Tx the ledger engine runs its mutations through.
//
// It is intentionally small and explicit: mapping between domain entities and
// SQL rows, and the statements needed to run them. The schema lives under
// migrations/ and is applied by RunMigrations.

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/govalues/money"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finbook/finbook/internal/dictionary"
	"github.com/finbook/finbook/internal/errs"
	"github.com/finbook/finbook/internal/finance"
	"github.com/finbook/finbook/internal/meta"
	"github.com/finbook/finbook/internal/service/txn"
)

// Store holds a pgx connection pool. All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil { return nil, err }
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil { return nil, err }
	if err := pool.Ping(ctx); err != nil { pool.Close(); return nil, err }
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() { if s.pool != nil { s.pool.Close() } }

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// SeedDev inserts a user with two accounts and the curated default categories
// for quick local testing. Fresh UUIDs each run.
func (s *Store) SeedDev(ctx context.Context) (finance.User, []finance.Account, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil { return finance.User{}, nil, err }
	defer func() { _ = tx.Rollback(ctx) }()
	user := finance.User{ID: uuid.New()}
	if _, err := tx.Exec(ctx, `insert into users (id, email) values ($1, null)`, user.ID); err != nil {
		return finance.User{}, nil, err
	}
	checking := finance.Account{ID: uuid.New(), UserID: user.ID, Name: "Checking", Currency: "GBP", Active: true}
	savings := finance.Account{ID: uuid.New(), UserID: user.ID, Name: "Savings", Currency: "GBP", Active: true}
	accs := []finance.Account{checking, savings}
	for _, a := range accs {
		if _, err := tx.Exec(ctx, `
			insert into accounts (id, user_id, name, currency, balance_minor, active)
			values ($1,$2,$3,$4,0,$5)
		`, a.ID, a.UserID, a.Name, a.Currency, a.Active); err != nil {
			return finance.User{}, nil, err
		}
	}
	for _, typ := range finance.Types() {
		for _, def := range dictionary.CategoriesFor(&typ) {
			if _, err := tx.Exec(ctx, `
				insert into categories (id, user_id, name, type, active)
				values ($1,$2,$3,$4,true)
			`, uuid.New(), user.ID, def.Label, string(typ)); err != nil {
				return finance.User{}, nil, err
			}
		}
	}
	if err := tx.Commit(ctx); err != nil { return finance.User{}, nil, err }
	return user, accs, nil
}

// --- Account reads ---

const accountCols = `id, user_id, name, currency, balance_minor, active, created_at, updated_at`

func scanAccount(row pgx.Row) (finance.Account, error) {
	var a finance.Account
	var minor int64
	if err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Currency, &minor, &a.Active, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return finance.Account{}, err
	}
	balance, err := money.NewAmountFromMinorUnits(a.Currency, minor)
	if err != nil { return finance.Account{}, err }
	a.Balance = balance
	return a, nil
}

// ListAccounts returns all accounts for a user.
func (s *Store) ListAccounts(ctx context.Context, userID uuid.UUID) ([]finance.Account, error) {
	rows, err := s.pool.Query(ctx, `
		select `+accountCols+`
		from accounts
		where user_id = $1
		order by name
	`, userID)
	if err != nil { return nil, err }
	defer rows.Close()
	out := make([]finance.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil { return nil, err }
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAccount fetches a single account by id for a user.
func (s *Store) GetAccount(ctx context.Context, userID, accountID uuid.UUID) (finance.Account, error) {
	a, err := scanAccount(s.pool.QueryRow(ctx, `
		select `+accountCols+`
		from accounts
		where id = $1 and user_id = $2
	`, accountID, userID))
	if errors.Is(err, pgx.ErrNoRows) { return finance.Account{}, errs.ErrAccountNotFound }
	if err != nil { return finance.Account{}, err }
	return a, nil
}

// --- Account writes ---

// CreateAccount inserts an account row, balance included: creation is the one
// time account CRUD sets a balance (the opening balance).
func (s *Store) CreateAccount(ctx context.Context, a finance.Account) (finance.Account, error) {
	minor, ok := a.Balance.MinorUnits()
	if !ok { return finance.Account{}, errs.ErrInvalidAmount }
	_, err := s.pool.Exec(ctx, `
		insert into accounts (id, user_id, name, currency, balance_minor, active, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
	`, a.ID, a.UserID, a.Name, strings.ToUpper(a.Currency), minor, a.Active, a.CreatedAt, a.UpdatedAt)
	if err != nil { return finance.Account{}, err }
	return a, nil
}

// UpdateAccount updates descriptive fields and the active flag. It never
// touches balance_minor; balances change only through the engine's Tx.
func (s *Store) UpdateAccount(ctx context.Context, a finance.Account) (finance.Account, error) {
	ct, err := s.pool.Exec(ctx, `
		update accounts
		set name=$1, active=$2, updated_at=$3
		where id=$4 and user_id=$5
	`, a.Name, a.Active, a.UpdatedAt, a.ID, a.UserID)
	if err != nil { return finance.Account{}, err }
	if ct.RowsAffected() == 0 { return finance.Account{}, errs.ErrAccountNotFound }
	return s.GetAccount(ctx, a.UserID, a.ID)
}

// --- Category reads/writes ---

func scanCategory(row pgx.Row) (finance.Category, error) {
	var c finance.Category
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Type, &c.Active); err != nil {
		return finance.Category{}, err
	}
	return c, nil
}

// ListCategories returns all categories for a user.
func (s *Store) ListCategories(ctx context.Context, userID uuid.UUID) ([]finance.Category, error) {
	rows, err := s.pool.Query(ctx, `
		select id, user_id, name, type, active
		from categories
		where user_id = $1
		order by type, name
	`, userID)
	if err != nil { return nil, err }
	defer rows.Close()
	out := make([]finance.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil { return nil, err }
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCategory fetches a single category by id for a user.
func (s *Store) GetCategory(ctx context.Context, userID, categoryID uuid.UUID) (finance.Category, error) {
	c, err := scanCategory(s.pool.QueryRow(ctx, `
		select id, user_id, name, type, active
		from categories
		where id = $1 and user_id = $2
	`, categoryID, userID))
	if errors.Is(err, pgx.ErrNoRows) { return finance.Category{}, errs.ErrCategoryNotFound }
	if err != nil { return finance.Category{}, err }
	return c, nil
}

// CreateCategory inserts a category row.
func (s *Store) CreateCategory(ctx context.Context, c finance.Category) (finance.Category, error) {
	_, err := s.pool.Exec(ctx, `
		insert into categories (id, user_id, name, type, active)
		values ($1,$2,$3,$4,$5)
	`, c.ID, c.UserID, c.Name, string(c.Type), c.Active)
	if err != nil { return finance.Category{}, err }
	return c, nil
}

// UpdateCategory updates name and active. Type is immutable.
func (s *Store) UpdateCategory(ctx context.Context, c finance.Category) (finance.Category, error) {
	ct, err := s.pool.Exec(ctx, `
		update categories
		set name=$1, active=$2
		where id=$3 and user_id=$4
	`, c.Name, c.Active, c.ID, c.UserID)
	if err != nil { return finance.Category{}, err }
	if ct.RowsAffected() == 0 { return finance.Category{}, errs.ErrCategoryNotFound }
	return c, nil
}

// --- Transaction reads ---

const transactionCols = `id, user_id, category_id, account_id, destination_account_id,
	amount_minor, currency, date, memo, metadata, created_at, updated_at, deleted_at`

func scanTransaction(row pgx.Row) (finance.Transaction, error) {
	var t finance.Transaction
	var minor int64
	var mdBytes []byte
	if err := row.Scan(&t.ID, &t.UserID, &t.CategoryID, &t.AccountID, &t.DestinationAccountID,
		&minor, &t.Currency, &t.Date, &t.Memo, &mdBytes, &t.CreatedAt, &t.UpdatedAt, &t.DeletedAt); err != nil {
		return finance.Transaction{}, err
	}
	amount, err := money.NewAmountFromMinorUnits(t.Currency, minor)
	if err != nil { return finance.Transaction{}, err }
	t.Amount = amount
	if len(mdBytes) > 0 {
		var m meta.Metadata
		if err := m.UnmarshalJSON(mdBytes); err == nil { t.Metadata = m }
	}
	return t, nil
}

// TransactionByID fetches a transaction by id for a user, deleted or not.
func (s *Store) TransactionByID(ctx context.Context, userID, transactionID uuid.UUID) (finance.Transaction, error) {
	t, err := scanTransaction(s.pool.QueryRow(ctx, `
		select `+transactionCols+`
		from transactions
		where id = $1 and user_id = $2
	`, transactionID, userID))
	if errors.Is(err, pgx.ErrNoRows) { return finance.Transaction{}, errs.ErrTransactionNotFound }
	if err != nil { return finance.Transaction{}, err }
	return t, nil
}

// TransactionsByUserID returns all of a user's transactions, soft-deleted
// included; callers filter.
func (s *Store) TransactionsByUserID(ctx context.Context, userID uuid.UUID) ([]finance.Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		select `+transactionCols+`
		from transactions
		where user_id = $1
		order by date asc, id asc
	`, userID)
	if err != nil { return nil, err }
	defer rows.Close()
	out := make([]finance.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil { return nil, err }
		out = append(out, t)
	}
	return out, rows.Err()
}

// --- Pending expense reads/writes ---

const pendingCols = `id, user_id, category_id, amount_minor, currency, memo, status,
	due_date, recurrence, transaction_id, created_at, updated_at`

func scanPending(row pgx.Row) (finance.PendingExpense, error) {
	var p finance.PendingExpense
	var minor int64
	var recBytes []byte
	if err := row.Scan(&p.ID, &p.UserID, &p.CategoryID, &minor, &p.Currency, &p.Memo, &p.Status,
		&p.DueDate, &recBytes, &p.TransactionID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return finance.PendingExpense{}, err
	}
	amount, err := money.NewAmountFromMinorUnits(p.Currency, minor)
	if err != nil { return finance.PendingExpense{}, err }
	p.Amount = amount
	if len(recBytes) > 0 {
		var m meta.Metadata
		if err := m.UnmarshalJSON(recBytes); err == nil { p.Recurrence = m }
	}
	return p, nil
}

// ListPendingExpenses returns all pending expenses for a user, paid included.
func (s *Store) ListPendingExpenses(ctx context.Context, userID uuid.UUID) ([]finance.PendingExpense, error) {
	rows, err := s.pool.Query(ctx, `
		select `+pendingCols+`
		from pending_expenses
		where user_id = $1
		order by due_date asc nulls last, created_at asc
	`, userID)
	if err != nil { return nil, err }
	defer rows.Close()
	out := make([]finance.PendingExpense, 0)
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil { return nil, err }
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetPendingExpense fetches a single pending expense by id for a user.
func (s *Store) GetPendingExpense(ctx context.Context, userID, pendingID uuid.UUID) (finance.PendingExpense, error) {
	p, err := scanPending(s.pool.QueryRow(ctx, `
		select `+pendingCols+`
		from pending_expenses
		where id = $1 and user_id = $2
	`, pendingID, userID))
	if errors.Is(err, pgx.ErrNoRows) { return finance.PendingExpense{}, errs.ErrPendingExpenseNotFound }
	if err != nil { return finance.PendingExpense{}, err }
	return p, nil
}

// CreatePendingExpense inserts a pending expense row.
func (s *Store) CreatePendingExpense(ctx context.Context, p finance.PendingExpense) (finance.PendingExpense, error) {
	minor, ok := p.Amount.MinorUnits()
	if !ok { return finance.PendingExpense{}, errs.ErrInvalidAmount }
	rec, _ := p.Recurrence.MarshalStableJSON()
	_, err := s.pool.Exec(ctx, `
		insert into pending_expenses (id, user_id, category_id, amount_minor, currency, memo, status,
			due_date, recurrence, transaction_id, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, p.ID, p.UserID, p.CategoryID, minor, p.Currency, p.Memo, string(p.Status),
		p.DueDate, rec, p.TransactionID, p.CreatedAt, p.UpdatedAt)
	if err != nil { return finance.PendingExpense{}, err }
	return p, nil
}

// --- Idempotency ---

// SaveIdempotencyKey stores a mapping from (user, key) to transaction id.
func (s *Store) SaveIdempotencyKey(ctx context.Context, userID uuid.UUID, key string, transactionID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		insert into transaction_idempotency (user_id, key, transaction_id)
		values ($1,$2,$3)
		on conflict (user_id, key) do nothing
	`, userID, key, transactionID)
	return err
}

// IdempotentTransactionID resolves a transaction id by idempotency key.
func (s *Store) IdempotentTransactionID(ctx context.Context, userID uuid.UUID, key string) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		select transaction_id from transaction_idempotency where user_id=$1 and key=$2
	`, userID, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) { return uuid.Nil, false, nil }
	if err != nil { return uuid.Nil, false, err }
	return id, true, nil
}

// --- Engine transactions ---

// Begin opens a storage transaction for the ledger engine.
func (s *Store) Begin(ctx context.Context) (txn.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil { return nil, err }
	return &Tx{tx: tx}, nil
}

// Tx wraps a pgx.Tx with the methods the ledger engine mutates through.
type Tx struct{ tx pgx.Tx }

func (t *Tx) CategoryByID(ctx context.Context, userID, categoryID uuid.UUID) (finance.Category, error) {
	c, err := scanCategory(t.tx.QueryRow(ctx, `
		select id, user_id, name, type, active
		from categories
		where id = $1 and user_id = $2
	`, categoryID, userID))
	if errors.Is(err, pgx.ErrNoRows) { return finance.Category{}, errs.ErrCategoryNotFound }
	if err != nil { return finance.Category{}, err }
	return c, nil
}

// AccountForUpdate reads an account and takes a row lock on it, so concurrent
// mutations touching the same account serialize at the database.
func (t *Tx) AccountForUpdate(ctx context.Context, userID, accountID uuid.UUID) (finance.Account, error) {
	a, err := scanAccount(t.tx.QueryRow(ctx, `
		select `+accountCols+`
		from accounts
		where id = $1 and user_id = $2
		for update
	`, accountID, userID))
	if errors.Is(err, pgx.ErrNoRows) { return finance.Account{}, errs.ErrAccountNotFound }
	if err != nil { return finance.Account{}, err }
	return a, nil
}

// SaveAccountBalance writes a balance computed by the engine. The only place
// balance_minor is updated after account creation.
func (t *Tx) SaveAccountBalance(ctx context.Context, a finance.Account) error {
	minor, ok := a.Balance.MinorUnits()
	if !ok { return errs.ErrInvalidAmount }
	ct, err := t.tx.Exec(ctx, `
		update accounts
		set balance_minor=$1, updated_at=$2
		where id=$3 and user_id=$4
	`, minor, a.UpdatedAt, a.ID, a.UserID)
	if err != nil { return err }
	if ct.RowsAffected() == 0 { return errs.ErrAccountNotFound }
	return nil
}

func (t *Tx) TransactionByID(ctx context.Context, userID, transactionID uuid.UUID) (finance.Transaction, error) {
	tr, err := scanTransaction(t.tx.QueryRow(ctx, `
		select `+transactionCols+`
		from transactions
		where id = $1 and user_id = $2
	`, transactionID, userID))
	if errors.Is(err, pgx.ErrNoRows) { return finance.Transaction{}, errs.ErrTransactionNotFound }
	if err != nil { return finance.Transaction{}, err }
	return tr, nil
}

func (t *Tx) InsertTransaction(ctx context.Context, tr finance.Transaction) error {
	minor, ok := tr.Amount.MinorUnits()
	if !ok { return errs.ErrInvalidAmount }
	md, _ := tr.Metadata.MarshalStableJSON()
	_, err := t.tx.Exec(ctx, `
		insert into transactions (id, user_id, category_id, account_id, destination_account_id,
			amount_minor, currency, date, memo, metadata, created_at, updated_at, deleted_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, tr.ID, tr.UserID, tr.CategoryID, tr.AccountID, tr.DestinationAccountID,
		minor, strings.ToUpper(tr.Currency), tr.Date, tr.Memo, md, tr.CreatedAt, tr.UpdatedAt, tr.DeletedAt)
	return err
}

func (t *Tx) UpdateTransaction(ctx context.Context, tr finance.Transaction) error {
	minor, ok := tr.Amount.MinorUnits()
	if !ok { return errs.ErrInvalidAmount }
	md, _ := tr.Metadata.MarshalStableJSON()
	ct, err := t.tx.Exec(ctx, `
		update transactions
		set category_id=$1, account_id=$2, destination_account_id=$3, amount_minor=$4,
			currency=$5, date=$6, memo=$7, metadata=$8, updated_at=$9, deleted_at=$10
		where id=$11 and user_id=$12
	`, tr.CategoryID, tr.AccountID, tr.DestinationAccountID, minor,
		strings.ToUpper(tr.Currency), tr.Date, tr.Memo, md, tr.UpdatedAt, tr.DeletedAt, tr.ID, tr.UserID)
	if err != nil { return err }
	if ct.RowsAffected() == 0 { return errs.ErrTransactionNotFound }
	return nil
}

func (t *Tx) PendingExpenseByID(ctx context.Context, userID, pendingID uuid.UUID) (finance.PendingExpense, error) {
	p, err := scanPending(t.tx.QueryRow(ctx, `
		select `+pendingCols+`
		from pending_expenses
		where id = $1 and user_id = $2
		for update
	`, pendingID, userID))
	if errors.Is(err, pgx.ErrNoRows) { return finance.PendingExpense{}, errs.ErrPendingExpenseNotFound }
	if err != nil { return finance.PendingExpense{}, err }
	return p, nil
}

func (t *Tx) UpdatePendingExpense(ctx context.Context, p finance.PendingExpense) error {
	ct, err := t.tx.Exec(ctx, `
		update pending_expenses
		set status=$1, transaction_id=$2, updated_at=$3
		where id=$4 and user_id=$5
	`, string(p.Status), p.TransactionID, p.UpdatedAt, p.ID, p.UserID)
	if err != nil { return err }
	if ct.RowsAffected() == 0 { return errs.ErrPendingExpenseNotFound }
	return nil
}

func (t *Tx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *Tx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }
