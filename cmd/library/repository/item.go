package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sitewise/estimator/common/db"
	"github.com/sitewise/estimator/common/models"
)

const itemColumns = `id, code, name, description, unit, wastage_percentage, productivity_notes,
		status, version, is_active, assembly_id, confirmed_at, confirmed_by, actual_library_date,
		deleted_at, deleted_by, source_element_id, created_at, updated_at`

// ItemRepository handles database operations for library items
type ItemRepository struct {
	db *db.DB
}

// NewItemRepository creates a new item repository
func NewItemRepository(database *db.DB) *ItemRepository {
	return &ItemRepository{db: database}
}

// Create inserts a new library item
func (r *ItemRepository) Create(ctx context.Context, item *models.LibraryItem) error {
	query := `
		INSERT INTO library_items (` + itemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err := r.db.Exec(ctx, query,
		item.ID,
		item.Code,
		item.Name,
		item.Description,
		item.Unit,
		item.WastagePercentage,
		item.ProductivityNotes,
		item.Status,
		item.Version,
		item.IsActive,
		item.AssemblyID,
		item.ConfirmedAt,
		nullableString(item.ConfirmedBy),
		item.ActualLibraryDate,
		item.DeletedAt,
		nullableString(item.DeletedBy),
		item.SourceElementID,
		item.CreatedAt,
		item.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("code %s: %w", item.Code, ErrDuplicateCode)
		}
		return fmt.Errorf("failed to create library item: %w", err)
	}

	return nil
}

// GetByID retrieves an item by its ID
func (r *ItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.LibraryItem, error) {
	query := `SELECT ` + itemColumns + ` FROM library_items WHERE id = $1`

	item, err := scanItem(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get library item: %w", err)
	}

	return item, nil
}

// ListFilter narrows a library item listing
type ListFilter struct {
	Status     *models.ItemStatus
	IsActive   *bool
	AssemblyID *uuid.UUID
	Search     string
	Limit      int
	Offset     int
}

// List retrieves items matching the filter, newest first
func (r *ItemRepository) List(ctx context.Context, filter ListFilter) ([]*models.LibraryItem, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if filter.AssemblyID != nil {
		args = append(args, *filter.AssemblyID)
		conditions = append(conditions, fmt.Sprintf("assembly_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(code ILIKE $%d OR name ILIKE $%d)", n, n))
	}

	query := `SELECT ` + itemColumns + ` FROM library_items`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list library items: %w", err)
	}
	defer rows.Close()

	var items []*models.LibraryItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan library item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating library items: %w", err)
	}

	return items, nil
}

// Update writes all mutable fields conditioned on the version the caller read.
// The stored version is bumped by one. A mismatch returns ErrVersionConflict so
// concurrent edits surface instead of silently clobbering each other.
func (r *ItemRepository) Update(ctx context.Context, item *models.LibraryItem, expectedVersion int) error {
	query := `
		UPDATE library_items
		SET code = $3, name = $4, description = $5, unit = $6, wastage_percentage = $7,
			productivity_notes = $8, status = $9, version = $10, is_active = $11,
			assembly_id = $12, confirmed_at = $13, confirmed_by = $14,
			actual_library_date = $15, deleted_at = $16, deleted_by = $17,
			source_element_id = $18, updated_at = $19
		WHERE id = $1 AND version = $2
	`

	now := time.Now().UTC()
	tag, err := r.db.Exec(ctx, query,
		item.ID,
		expectedVersion,
		item.Code,
		item.Name,
		item.Description,
		item.Unit,
		item.WastagePercentage,
		item.ProductivityNotes,
		item.Status,
		expectedVersion+1,
		item.IsActive,
		item.AssemblyID,
		item.ConfirmedAt,
		nullableString(item.ConfirmedBy),
		item.ActualLibraryDate,
		item.DeletedAt,
		nullableString(item.DeletedBy),
		item.SourceElementID,
		now,
	)

	if err != nil {
		return fmt.Errorf("failed to update library item: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Distinguish a missing row from a stale version
		if _, getErr := r.GetByID(ctx, item.ID); getErr != nil {
			return getErr
		}
		return ErrVersionConflict
	}

	item.Version = expectedVersion + 1
	item.UpdatedAt = now
	return nil
}

// SetLifecycleFields updates only the status and lifecycle metadata columns.
// Used by transitions and soft delete/restore, which do not bump the version.
func (r *ItemRepository) SetLifecycleFields(ctx context.Context, item *models.LibraryItem) error {
	query := `
		UPDATE library_items
		SET status = $2, is_active = $3, confirmed_at = $4, confirmed_by = $5,
			actual_library_date = $6, deleted_at = $7, deleted_by = $8, updated_at = $9
		WHERE id = $1
	`

	now := time.Now().UTC()
	tag, err := r.db.Exec(ctx, query,
		item.ID,
		item.Status,
		item.IsActive,
		item.ConfirmedAt,
		nullableString(item.ConfirmedBy),
		item.ActualLibraryDate,
		item.DeletedAt,
		nullableString(item.DeletedBy),
		now,
	)

	if err != nil {
		return fmt.Errorf("failed to update item lifecycle fields: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	item.UpdatedAt = now
	return nil
}

// HardDelete removes the item row. Factor rows cascade at the store level.
func (r *ItemRepository) HardDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM library_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete library item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CodeExists reports whether an active item other than excludeID uses the code.
// The match is exact and case-sensitive.
func (r *ItemRepository) CodeExists(ctx context.Context, code string, excludeID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM library_items
			WHERE code = $1 AND is_active = true AND id != $2
		)
	`

	var exists bool
	if err := r.db.QueryRow(ctx, query, code, excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check code uniqueness: %w", err)
	}
	return exists, nil
}

// ListCodesByAssembly returns all item codes under an assembly
func (r *ItemRepository) ListCodesByAssembly(ctx context.Context, assemblyID uuid.UUID) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT code FROM library_items WHERE assembly_id = $1`, assemblyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list codes by assembly: %w", err)
	}
	defer rows.Close()

	return collectCodes(rows)
}

// ListFlatCodes returns all purely numeric 4-digit item codes, used by the
// flat-sequence fallback when no assembly context exists.
func (r *ItemRepository) ListFlatCodes(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT code FROM library_items WHERE code ~ '^[0-9]{4}$'`)
	if err != nil {
		return nil, fmt.Errorf("failed to list flat codes: %w", err)
	}
	defer rows.Close()

	return collectCodes(rows)
}

func collectCodes(rows pgx.Rows) ([]string, error) {
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan code: %w", err)
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating codes: %w", err)
	}
	return codes, nil
}

func scanItem(row pgx.Row) (*models.LibraryItem, error) {
	item := &models.LibraryItem{}
	var confirmedBy, deletedBy *string

	err := row.Scan(
		&item.ID,
		&item.Code,
		&item.Name,
		&item.Description,
		&item.Unit,
		&item.WastagePercentage,
		&item.ProductivityNotes,
		&item.Status,
		&item.Version,
		&item.IsActive,
		&item.AssemblyID,
		&item.ConfirmedAt,
		&confirmedBy,
		&item.ActualLibraryDate,
		&item.DeletedAt,
		&deletedBy,
		&item.SourceElementID,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if confirmedBy != nil {
		item.ConfirmedBy = *confirmedBy
	}
	if deletedBy != nil {
		item.DeletedBy = *deletedBy
	}

	return item, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
