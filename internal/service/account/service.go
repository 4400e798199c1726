// Package account implements account management rules: descriptive edits and
// soft-deletes only. Balances belong to the ledger engine; nothing here ever
// performs balance arithmetic beyond setting the opening balance at creation.
package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/finbook/finbook/internal/errs"
	"github.com/finbook/finbook/internal/finance"
	"github.com/finbook/finbook/internal/slug"
)

type Repo interface {
	ListAccounts(ctx context.Context, userID uuid.UUID) ([]finance.Account, error)
	GetAccount(ctx context.Context, userID, accountID uuid.UUID) (finance.Account, error)
}

type Writer interface {
	CreateAccount(ctx context.Context, a finance.Account) (finance.Account, error)
	// UpdateAccount persists name/active changes only; balance is ignored.
	UpdateAccount(ctx context.Context, a finance.Account) (finance.Account, error)
}

// CreateInput carries the fields needed to open an account.
type CreateInput struct {
	UserID              uuid.UUID
	Name                string
	Currency            string
	OpeningBalanceMinor int64
}

type Service interface {
	Create(ctx context.Context, in CreateInput) (finance.Account, error)
	List(ctx context.Context, userID uuid.UUID) ([]finance.Account, error)
	Get(ctx context.Context, userID, accountID uuid.UUID) (finance.Account, error)
	Rename(ctx context.Context, userID, accountID uuid.UUID, name string) (finance.Account, error)
	Deactivate(ctx context.Context, userID, accountID uuid.UUID) error
}

type service struct {
	repo   Repo
	writer Writer
}

func New(repo Repo, writer Writer) Service { return &service{repo: repo, writer: writer} }

// ErrNameExists indicates an account with the same normalized name already exists for the user.
var ErrNameExists = errors.New("account name already exists for user")

func (s *service) Create(ctx context.Context, in CreateInput) (finance.Account, error) {
	if in.UserID == uuid.Nil {
		return finance.Account{}, errs.ErrInvalid
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return finance.Account{}, errs.ErrNameRequired
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if len(currency) != 3 {
		return finance.Account{}, errs.ErrInvalidCurrency
	}
	if in.OpeningBalanceMinor < 0 {
		return finance.Account{}, errs.ErrInvalidAmount
	}
	if err := s.ensureUniqueName(ctx, in.UserID, name, uuid.Nil); err != nil {
		return finance.Account{}, err
	}
	balance, err := money.NewAmountFromMinorUnits(currency, in.OpeningBalanceMinor)
	if err != nil {
		return finance.Account{}, errs.ErrUnknownCurrency
	}
	now := time.Now().UTC()
	a := finance.Account{
		ID:        uuid.New(),
		UserID:    in.UserID,
		Name:      name,
		Currency:  currency,
		Balance:   balance,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.writer.CreateAccount(ctx, a)
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]finance.Account, error) {
	if userID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	return s.repo.ListAccounts(ctx, userID)
}

func (s *service) Get(ctx context.Context, userID, accountID uuid.UUID) (finance.Account, error) {
	if userID == uuid.Nil || accountID == uuid.Nil {
		return finance.Account{}, errs.ErrInvalid
	}
	return s.repo.GetAccount(ctx, userID, accountID)
}

// Rename changes the display name. Currency and balance are immutable here.
func (s *service) Rename(ctx context.Context, userID, accountID uuid.UUID, name string) (finance.Account, error) {
	if userID == uuid.Nil || accountID == uuid.Nil {
		return finance.Account{}, errs.ErrInvalid
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return finance.Account{}, errs.ErrNameRequired
	}
	current, err := s.repo.GetAccount(ctx, userID, accountID)
	if err != nil {
		return finance.Account{}, err
	}
	if !current.Active {
		return finance.Account{}, errs.ErrAccountNotFound
	}
	if err := s.ensureUniqueName(ctx, userID, name, accountID); err != nil {
		return finance.Account{}, err
	}
	current.Name = name
	current.UpdatedAt = time.Now().UTC()
	return s.writer.UpdateAccount(ctx, current)
}

// Deactivate sets Active=false (soft delete). History referencing the account
// is kept so past transactions remain reversible.
func (s *service) Deactivate(ctx context.Context, userID, accountID uuid.UUID) error {
	if userID == uuid.Nil || accountID == uuid.Nil {
		return errs.ErrInvalid
	}
	acc, err := s.repo.GetAccount(ctx, userID, accountID)
	if err != nil {
		return err
	}
	acc.Active = false
	acc.UpdatedAt = time.Now().UTC()
	_, err = s.writer.UpdateAccount(ctx, acc)
	return err
}

// ensureUniqueName enforces per-user uniqueness on the slugified name among
// active accounts, excluding the account being edited.
func (s *service) ensureUniqueName(ctx context.Context, userID uuid.UUID, name string, selfID uuid.UUID) error {
	existing, err := s.repo.ListAccounts(ctx, userID)
	if err != nil {
		return err
	}
	desired := slug.Slugify(name)
	for _, other := range existing {
		if other.ID == selfID || !other.Active {
			continue
		}
		if slug.Slugify(other.Name) == desired {
			return ErrNameExists
		}
	}
	return nil
}
