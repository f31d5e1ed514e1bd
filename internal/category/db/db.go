package db

import (
	"context"
	"strings"

	"github.com/uptrace/bun"

	"ms-events/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// CreateCategory → insert new category
func (d *DB) CreateCategory(ctx context.Context, category models.Category) error {
	_, err := d.Bun.NewInsert().Model(&category).Exec(ctx)
	return err
}

// GetCategoryByName → case-insensitive exact-name lookup
func (d *DB) GetCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	var category models.Category
	err := d.Bun.NewSelect().
		Model(&category).
		Where("lower(name) = ?", strings.ToLower(name)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// ListCategories → all categories sorted by name
func (d *DB) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := d.Bun.NewSelect().
		Model(&categories).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return categories, nil
}
