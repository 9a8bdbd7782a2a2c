package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sitewise/estimator/common/db"
	"github.com/sitewise/estimator/common/models"
)

const factorColumns = `id, library_item_id, item_code, item_name, unit, quantity, rate, created_at, updated_at`

// FactorRepository handles database operations for the three factor tables
type FactorRepository struct {
	db *db.DB
}

// NewFactorRepository creates a new factor repository
func NewFactorRepository(database *db.DB) *FactorRepository {
	return &FactorRepository{db: database}
}

// Create inserts a factor into its kind's table
func (r *FactorRepository) Create(ctx context.Context, factor *models.Factor) error {
	if !factor.Kind.Valid() {
		return fmt.Errorf("invalid factor kind: %s", factor.Kind)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (`+factorColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, factor.Kind.Table())

	_, err := r.db.Exec(ctx, query,
		factor.ID,
		factor.LibraryItemID,
		factor.ItemCode,
		factor.ItemName,
		factor.Unit,
		factor.Quantity,
		factor.Rate,
		factor.CreatedAt,
		factor.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create %s factor: %w", factor.Kind, err)
	}

	return nil
}

// Get retrieves one factor by kind and id
func (r *FactorRepository) Get(ctx context.Context, kind models.FactorKind, id uuid.UUID) (*models.Factor, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid factor kind: %s", kind)
	}

	query := fmt.Sprintf(`SELECT `+factorColumns+` FROM %s WHERE id = $1`, kind.Table())

	factor := &models.Factor{Kind: kind}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&factor.ID,
		&factor.LibraryItemID,
		&factor.ItemCode,
		&factor.ItemName,
		&factor.Unit,
		&factor.Quantity,
		&factor.Rate,
		&factor.CreatedAt,
		&factor.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s factor: %w", kind, err)
	}

	return factor, nil
}

// ListByItem returns all factors owned by the item across the three tables
func (r *FactorRepository) ListByItem(ctx context.Context, itemID uuid.UUID) ([]*models.Factor, error) {
	var factors []*models.Factor

	for _, kind := range models.FactorKinds {
		query := fmt.Sprintf(`SELECT `+factorColumns+` FROM %s WHERE library_item_id = $1 ORDER BY created_at`, kind.Table())

		rows, err := r.db.Query(ctx, query, itemID)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s factors: %w", kind, err)
		}

		for rows.Next() {
			factor := &models.Factor{Kind: kind}
			err := rows.Scan(
				&factor.ID,
				&factor.LibraryItemID,
				&factor.ItemCode,
				&factor.ItemName,
				&factor.Unit,
				&factor.Quantity,
				&factor.Rate,
				&factor.CreatedAt,
				&factor.UpdatedAt,
			)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan %s factor: %w", kind, err)
			}
			factors = append(factors, factor)
		}
		rows.Close()

		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("error iterating %s factors: %w", kind, err)
		}
	}

	return factors, nil
}

// HasAny reports whether the item owns at least one factor of any kind.
// The three existence checks run as a single OR'd query.
func (r *FactorRepository) HasAny(ctx context.Context, itemID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (SELECT 1 FROM material_factors WHERE library_item_id = $1)
			OR EXISTS (SELECT 1 FROM labor_factors WHERE library_item_id = $1)
			OR EXISTS (SELECT 1 FROM equipment_factors WHERE library_item_id = $1)
	`

	var exists bool
	if err := r.db.QueryRow(ctx, query, itemID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check factor existence: %w", err)
	}
	return exists, nil
}

// Update rewrites a factor's mutable fields
func (r *FactorRepository) Update(ctx context.Context, factor *models.Factor) error {
	if !factor.Kind.Valid() {
		return fmt.Errorf("invalid factor kind: %s", factor.Kind)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET item_code = $2, item_name = $3, unit = $4, quantity = $5, rate = $6, updated_at = $7
		WHERE id = $1
	`, factor.Kind.Table())

	tag, err := r.db.Exec(ctx, query,
		factor.ID,
		factor.ItemCode,
		factor.ItemName,
		factor.Unit,
		factor.Quantity,
		factor.Rate,
		factor.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update %s factor: %w", factor.Kind, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes one factor
func (r *FactorRepository) Delete(ctx context.Context, kind models.FactorKind, id uuid.UUID) error {
	if !kind.Valid() {
		return fmt.Errorf("invalid factor kind: %s", kind)
	}

	tag, err := r.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, kind.Table()), id)
	if err != nil {
		return fmt.Errorf("failed to delete %s factor: %w", kind, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByItem removes all factors owned by the item, across all three tables
func (r *FactorRepository) DeleteByItem(ctx context.Context, itemID uuid.UUID) error {
	for _, kind := range models.FactorKinds {
		if _, err := r.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE library_item_id = $1`, kind.Table()), itemID); err != nil {
			return fmt.Errorf("failed to delete %s factors: %w", kind, err)
		}
	}
	return nil
}
