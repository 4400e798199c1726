// Package pending implements scheduled expenses that have not hit an account
// yet. A pending expense carries no account and moves no money; conversion
// into a real transaction is owned by the ledger engine.
package pending

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/finbook/finbook/internal/errs"
	"github.com/finbook/finbook/internal/finance"
	"github.com/finbook/finbook/internal/meta"
)

type Repo interface {
	ListPendingExpenses(ctx context.Context, userID uuid.UUID) ([]finance.PendingExpense, error)
	GetPendingExpense(ctx context.Context, userID, pendingID uuid.UUID) (finance.PendingExpense, error)
	GetCategory(ctx context.Context, userID, categoryID uuid.UUID) (finance.Category, error)
}

type Writer interface {
	CreatePendingExpense(ctx context.Context, p finance.PendingExpense) (finance.PendingExpense, error)
}

// CreateInput carries the fields needed to schedule an expense.
type CreateInput struct {
	UserID      uuid.UUID
	CategoryID  uuid.UUID
	AmountMinor int64
	Currency    string
	Memo        string
	DueDate     *time.Time
	Recurrence  meta.Metadata
}

type Service interface {
	Create(ctx context.Context, in CreateInput) (finance.PendingExpense, error)
	List(ctx context.Context, userID uuid.UUID) ([]finance.PendingExpense, error)
	Get(ctx context.Context, userID, pendingID uuid.UUID) (finance.PendingExpense, error)
}

type service struct {
	repo   Repo
	writer Writer
}

func New(repo Repo, writer Writer) Service { return &service{repo: repo, writer: writer} }

func (s *service) Create(ctx context.Context, in CreateInput) (finance.PendingExpense, error) {
	if in.UserID == uuid.Nil || in.CategoryID == uuid.Nil {
		return finance.PendingExpense{}, errs.ErrInvalid
	}
	if in.AmountMinor <= 0 {
		return finance.PendingExpense{}, errs.ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if len(currency) != 3 {
		return finance.PendingExpense{}, errs.ErrInvalidCurrency
	}
	amount, err := money.NewAmountFromMinorUnits(currency, in.AmountMinor)
	if err != nil {
		return finance.PendingExpense{}, errs.ErrUnknownCurrency
	}
	if err := in.Recurrence.Validate(); err != nil {
		return finance.PendingExpense{}, fmt.Errorf("recurrence %v: %w", err, errs.ErrInvalid)
	}
	cat, err := s.repo.GetCategory(ctx, in.UserID, in.CategoryID)
	if err != nil {
		return finance.PendingExpense{}, err
	}
	if !cat.Active {
		return finance.PendingExpense{}, errs.ErrCategoryNotFound
	}
	// Only expense categories can be scheduled; income and transfers are
	// posted directly when they happen.
	if cat.Type != finance.TypeExpense {
		return finance.PendingExpense{}, errs.ErrInvalid
	}
	now := time.Now().UTC()
	p := finance.PendingExpense{
		ID:         uuid.New(),
		UserID:     in.UserID,
		CategoryID: in.CategoryID,
		Amount:     amount,
		Currency:   currency,
		Memo:       strings.TrimSpace(in.Memo),
		Status:     finance.PendingStatusPending,
		DueDate:    in.DueDate,
		Recurrence: in.Recurrence.Clone(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return s.writer.CreatePendingExpense(ctx, p)
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]finance.PendingExpense, error) {
	if userID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	return s.repo.ListPendingExpenses(ctx, userID)
}

func (s *service) Get(ctx context.Context, userID, pendingID uuid.UUID) (finance.PendingExpense, error) {
	if userID == uuid.Nil || pendingID == uuid.Nil {
		return finance.PendingExpense{}, errs.ErrInvalid
	}
	return s.repo.GetPendingExpense(ctx, userID, pendingID)
}
