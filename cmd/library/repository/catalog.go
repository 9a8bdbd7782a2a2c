package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sitewise/estimator/common/db"
	"github.com/sitewise/estimator/common/models"
)

// CatalogRepository reads reference rates from the external rate catalog
type CatalogRepository struct {
	db *db.DB
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(database *db.DB) *CatalogRepository {
	return &CatalogRepository{db: database}
}

// ReferenceRates returns the catalog's code-to-rate map for a category
func (r *CatalogRepository) ReferenceRates(ctx context.Context, category models.RateCategory) (models.RateMap, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("invalid rate category: %s", category)
	}

	query := `SELECT code, rate FROM catalog_items WHERE category = $1`

	rows, err := r.db.Query(ctx, query, category)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog reference rates: %w", err)
	}
	defer rows.Close()

	rates := models.RateMap{}
	for rows.Next() {
		var code string
		var rate float64
		if err := rows.Scan(&code, &rate); err != nil {
			return nil, fmt.Errorf("failed to scan catalog rate: %w", err)
		}
		rates[code] = rate
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating catalog rates: %w", err)
	}

	return rates, nil
}

// ReferenceRate returns the catalog rate for one code.
// ErrNotFound means the catalog has no entry for the code.
func (r *CatalogRepository) ReferenceRate(ctx context.Context, category models.RateCategory, code string) (float64, error) {
	if !category.Valid() {
		return 0, fmt.Errorf("invalid rate category: %s", category)
	}

	query := `SELECT rate FROM catalog_items WHERE category = $1 AND code = $2`

	var rate float64
	err := r.db.QueryRow(ctx, query, category, code).Scan(&rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to get catalog rate: %w", err)
	}

	return rate, nil
}
