package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sitewise/estimator/common/db"
	"github.com/sitewise/estimator/common/models"
)

const ratesColumns = `id, project_id, materials, labour, equipment, effective_date, expiry_date, change_reason, created_by, created_at, updated_at`

// RatesRepository handles the append-only project_rates time series
type RatesRepository struct {
	db *db.DB
}

// NewRatesRepository creates a new rates repository
func NewRatesRepository(database *db.DB) *RatesRepository {
	return &RatesRepository{db: database}
}

// Create inserts a new immutable rates row
func (r *RatesRepository) Create(ctx context.Context, rates *models.ProjectRates) error {
	materials, err := json.Marshal(rates.Materials)
	if err != nil {
		return fmt.Errorf("failed to marshal materials map: %w", err)
	}
	labour, err := json.Marshal(rates.Labour)
	if err != nil {
		return fmt.Errorf("failed to marshal labour map: %w", err)
	}
	equipment, err := json.Marshal(rates.Equipment)
	if err != nil {
		return fmt.Errorf("failed to marshal equipment map: %w", err)
	}

	query := `
		INSERT INTO project_rates (` + ratesColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.db.Exec(ctx, query,
		rates.ID,
		rates.ProjectID,
		materials,
		labour,
		equipment,
		rates.EffectiveDate,
		rates.ExpiryDate,
		nullableString(rates.ChangeReason),
		nullableString(rates.CreatedBy),
		rates.CreatedAt,
		rates.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create project rates: %w", err)
	}

	return nil
}

// GetCurrent returns the newest rates row whose effective date is <= asOf.
// ErrNotFound means the project has no applicable rates yet.
func (r *RatesRepository) GetCurrent(ctx context.Context, projectID uuid.UUID, asOf time.Time) (*models.ProjectRates, error) {
	query := `
		SELECT ` + ratesColumns + `
		FROM project_rates
		WHERE project_id = $1 AND effective_date <= $2
		ORDER BY effective_date DESC, created_at DESC
		LIMIT 1
	`

	rates, err := scanRates(r.db.QueryRow(ctx, query, projectID, asOf))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get current project rates: %w", err)
	}

	return rates, nil
}

// ListByProject returns all rates rows for a project, newest effective first
func (r *RatesRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.ProjectRates, error) {
	query := `
		SELECT ` + ratesColumns + `
		FROM project_rates
		WHERE project_id = $1
		ORDER BY effective_date DESC, created_at DESC
	`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project rates: %w", err)
	}
	defer rows.Close()

	var all []*models.ProjectRates
	for rows.Next() {
		rates, err := scanRates(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project rates: %w", err)
		}
		all = append(all, rates)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project rates: %w", err)
	}

	return all, nil
}

func scanRates(row pgx.Row) (*models.ProjectRates, error) {
	rates := &models.ProjectRates{}
	var materials, labour, equipment []byte
	var changeReason, createdBy *string

	err := row.Scan(
		&rates.ID,
		&rates.ProjectID,
		&materials,
		&labour,
		&equipment,
		&rates.EffectiveDate,
		&rates.ExpiryDate,
		&changeReason,
		&createdBy,
		&rates.CreatedAt,
		&rates.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(materials, &rates.Materials); err != nil {
		return nil, fmt.Errorf("failed to unmarshal materials map: %w", err)
	}
	if err := json.Unmarshal(labour, &rates.Labour); err != nil {
		return nil, fmt.Errorf("failed to unmarshal labour map: %w", err)
	}
	if err := json.Unmarshal(equipment, &rates.Equipment); err != nil {
		return nil, fmt.Errorf("failed to unmarshal equipment map: %w", err)
	}

	if changeReason != nil {
		rates.ChangeReason = *changeReason
	}
	if createdBy != nil {
		rates.CreatedBy = *createdBy
	}

	return rates, nil
}
