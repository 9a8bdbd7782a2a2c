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

const versionColumns = `id, library_item_id, version_number, state, change_note, created_by, created_at`

// VersionRepository handles the append-only version ledger.
// Rows are only ever inserted; there is no update or delete path.
type VersionRepository struct {
	db *db.DB
}

// NewVersionRepository creates a new version repository
func NewVersionRepository(database *db.DB) *VersionRepository {
	return &VersionRepository{db: database}
}

// Create appends a version snapshot
func (r *VersionRepository) Create(ctx context.Context, version *models.LibraryItemVersion) error {
	query := `
		INSERT INTO library_item_versions (` + versionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(ctx, query,
		version.ID,
		version.LibraryItemID,
		version.VersionNumber,
		version.State,
		nullableString(version.ChangeNote),
		nullableString(version.CreatedBy),
		version.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create item version: %w", err)
	}

	return nil
}

// GetByID retrieves one version snapshot
func (r *VersionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.LibraryItemVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM library_item_versions WHERE id = $1`

	version, err := scanVersion(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get item version: %w", err)
	}

	return version, nil
}

// ListByItem returns all snapshots for the item, newest first
func (r *VersionRepository) ListByItem(ctx context.Context, itemID uuid.UUID) ([]*models.LibraryItemVersion, error) {
	query := `
		SELECT ` + versionColumns + `
		FROM library_item_versions
		WHERE library_item_id = $1
		ORDER BY version_number DESC, created_at DESC
	`

	rows, err := r.db.Query(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list item versions: %w", err)
	}
	defer rows.Close()

	var versions []*models.LibraryItemVersion
	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item version: %w", err)
		}
		versions = append(versions, version)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item versions: %w", err)
	}

	return versions, nil
}

func scanVersion(row pgx.Row) (*models.LibraryItemVersion, error) {
	version := &models.LibraryItemVersion{}
	var changeNote, createdBy *string

	err := row.Scan(
		&version.ID,
		&version.LibraryItemID,
		&version.VersionNumber,
		&version.State,
		&changeNote,
		&createdBy,
		&version.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if changeNote != nil {
		version.ChangeNote = *changeNote
	}
	if createdBy != nil {
		version.CreatedBy = *createdBy
	}

	return version, nil
}
