package category

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"ms-events/internal/models"
)

type DBLayer interface {
	CreateCategory(ctx context.Context, category models.Category) error
	GetCategoryByName(ctx context.Context, name string) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
}

type CategoryService struct {
	DB DBLayer
}

func NewCategoryService(db DBLayer) *CategoryService {
	return &CategoryService{DB: db}
}

// Create adds a category unless one with the same name (ignoring case)
// already exists, in which case the existing one is returned.
func (s *CategoryService) Create(ctx context.Context, name string) (*models.Category, error) {
	existing, err := s.DB.GetCategoryByName(ctx, name)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up category %q: %w", name, err)
	}
	if existing != nil {
		return existing, nil
	}

	category := models.Category{
		ID:   uuid.NewString(),
		Name: name,
	}
	if err := s.DB.CreateCategory(ctx, category); err != nil {
		return nil, fmt.Errorf("failed to create category %q: %w", name, err)
	}

	return &category, nil
}

func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	return s.DB.ListCategories(ctx)
}
