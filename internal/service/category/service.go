// Package category implements category management. A category binds a name to
// exactly one transaction type; the type is immutable once created because the
// engine re-derives historical deltas from it.
package category

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/finbook/finbook/internal/errs"
	"github.com/finbook/finbook/internal/finance"
	"github.com/finbook/finbook/internal/slug"
)

type Repo interface {
	ListCategories(ctx context.Context, userID uuid.UUID) ([]finance.Category, error)
	GetCategory(ctx context.Context, userID, categoryID uuid.UUID) (finance.Category, error)
}

type Writer interface {
	CreateCategory(ctx context.Context, c finance.Category) (finance.Category, error)
	UpdateCategory(ctx context.Context, c finance.Category) (finance.Category, error)
}

type Service interface {
	Create(ctx context.Context, userID uuid.UUID, name string, kind finance.TransactionType) (finance.Category, error)
	List(ctx context.Context, userID uuid.UUID) ([]finance.Category, error)
	Get(ctx context.Context, userID, categoryID uuid.UUID) (finance.Category, error)
	Deactivate(ctx context.Context, userID, categoryID uuid.UUID) error
}

type service struct {
	repo   Repo
	writer Writer
}

func New(repo Repo, writer Writer) Service { return &service{repo: repo, writer: writer} }

// ErrNameExists indicates a category with the same normalized name already exists for the user.
var ErrNameExists = errors.New("category name already exists for user")

func (s *service) Create(ctx context.Context, userID uuid.UUID, name string, kind finance.TransactionType) (finance.Category, error) {
	if userID == uuid.Nil {
		return finance.Category{}, errs.ErrInvalid
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return finance.Category{}, errs.ErrNameRequired
	}
	if !kind.Valid() {
		return finance.Category{}, errs.ErrInvalidType
	}
	existing, err := s.repo.ListCategories(ctx, userID)
	if err != nil {
		return finance.Category{}, err
	}
	desired := slug.Slugify(name)
	for _, other := range existing {
		if other.Active && slug.Slugify(other.Name) == desired {
			return finance.Category{}, ErrNameExists
		}
	}
	c := finance.Category{
		ID:     uuid.New(),
		UserID: userID,
		Name:   name,
		Type:   kind,
		Active: true,
	}
	return s.writer.CreateCategory(ctx, c)
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]finance.Category, error) {
	if userID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	return s.repo.ListCategories(ctx, userID)
}

func (s *service) Get(ctx context.Context, userID, categoryID uuid.UUID) (finance.Category, error) {
	if userID == uuid.Nil || categoryID == uuid.Nil {
		return finance.Category{}, errs.ErrInvalid
	}
	return s.repo.GetCategory(ctx, userID, categoryID)
}

// Deactivate soft-deletes a category. Existing transactions keep referencing
// it; the engine still reads its type when reversing them.
func (s *service) Deactivate(ctx context.Context, userID, categoryID uuid.UUID) error {
	if userID == uuid.Nil || categoryID == uuid.Nil {
		return errs.ErrInvalid
	}
	c, err := s.repo.GetCategory(ctx, userID, categoryID)
	if err != nil {
		return err
	}
	c.Active = false
	_, err = s.writer.UpdateCategory(ctx, c)
	return err
}
