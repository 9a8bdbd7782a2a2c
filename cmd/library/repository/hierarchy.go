package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sitewise/estimator/common/cache"
	"github.com/sitewise/estimator/common/db"
	"github.com/sitewise/estimator/common/models"
)

// HierarchyRepository resolves the division/section/assembly hierarchy.
// Assembly paths are cached because the hierarchy changes rarely and the code
// generator reads it on every creation.
type HierarchyRepository struct {
	db       *db.DB
	cache    cache.Cache
	cacheTTL time.Duration
}

// NewHierarchyRepository creates a new hierarchy repository. hierCache may be
// nil to disable caching.
func NewHierarchyRepository(database *db.DB, hierCache cache.Cache, ttl time.Duration) *HierarchyRepository {
	return &HierarchyRepository{db: database, cache: hierCache, cacheTTL: ttl}
}

// GetAssemblyPath returns the assembly's code path up to its division
func (r *HierarchyRepository) GetAssemblyPath(ctx context.Context, assemblyID uuid.UUID) (*models.AssemblyPath, error) {
	cacheKey := "hierarchy:path:" + assemblyID.String()

	if r.cache != nil {
		if cached, found, _ := r.cache.Get(ctx, cacheKey); found {
			path := &models.AssemblyPath{}
			if err := json.Unmarshal(cached, path); err == nil {
				return path, nil
			}
		}
	}

	query := `
		SELECT a.id, a.code, s.code, d.code
		FROM assemblies a
		JOIN sections s ON s.id = a.section_id
		JOIN divisions d ON d.id = s.division_id
		WHERE a.id = $1
	`

	path := &models.AssemblyPath{}
	err := r.db.QueryRow(ctx, query, assemblyID).Scan(
		&path.AssemblyID,
		&path.AssemblyCode,
		&path.SectionCode,
		&path.DivisionCode,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get assembly path: %w", err)
	}

	if r.cache != nil {
		if encoded, err := json.Marshal(path); err == nil {
			_ = r.cache.Set(ctx, cacheKey, encoded, r.cacheTTL)
		}
	}

	return path, nil
}

// FirstAssemblyBySection returns the first assembly under a section, by code order
func (r *HierarchyRepository) FirstAssemblyBySection(ctx context.Context, sectionID uuid.UUID) (uuid.UUID, error) {
	query := `SELECT id FROM assemblies WHERE section_id = $1 ORDER BY code LIMIT 1`

	var id uuid.UUID
	err := r.db.QueryRow(ctx, query, sectionID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to find assembly by section: %w", err)
	}

	return id, nil
}

// FirstAssemblyByDivision returns the first assembly under a division, by code order
func (r *HierarchyRepository) FirstAssemblyByDivision(ctx context.Context, divisionID uuid.UUID) (uuid.UUID, error) {
	query := `
		SELECT a.id
		FROM assemblies a
		JOIN sections s ON s.id = a.section_id
		WHERE s.division_id = $1
		ORDER BY a.code
		LIMIT 1
	`

	var id uuid.UUID
	err := r.db.QueryRow(ctx, query, divisionID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to find assembly by division: %w", err)
	}

	return id, nil
}
