package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sitewise/estimator/cmd/library/repository"
	"github.com/sitewise/estimator/common/models"
)

// Store interfaces consumed by the services. The repository types satisfy
// them; tests inject in-memory fakes.

// ItemStore persists library items
type ItemStore interface {
	Create(ctx context.Context, item *models.LibraryItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.LibraryItem, error)
	List(ctx context.Context, filter repository.ListFilter) ([]*models.LibraryItem, error)
	Update(ctx context.Context, item *models.LibraryItem, expectedVersion int) error
	SetLifecycleFields(ctx context.Context, item *models.LibraryItem) error
	HardDelete(ctx context.Context, id uuid.UUID) error
	CodeExists(ctx context.Context, code string, excludeID uuid.UUID) (bool, error)
	ListCodesByAssembly(ctx context.Context, assemblyID uuid.UUID) ([]string, error)
	ListFlatCodes(ctx context.Context) ([]string, error)
}

// FactorStore persists the three factor tables
type FactorStore interface {
	Create(ctx context.Context, factor *models.Factor) error
	Get(ctx context.Context, kind models.FactorKind, id uuid.UUID) (*models.Factor, error)
	ListByItem(ctx context.Context, itemID uuid.UUID) ([]*models.Factor, error)
	HasAny(ctx context.Context, itemID uuid.UUID) (bool, error)
	Update(ctx context.Context, factor *models.Factor) error
	Delete(ctx context.Context, kind models.FactorKind, id uuid.UUID) error
	DeleteByItem(ctx context.Context, itemID uuid.UUID) error
}

// VersionStore persists the append-only version ledger
type VersionStore interface {
	Create(ctx context.Context, version *models.LibraryItemVersion) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.LibraryItemVersion, error)
	ListByItem(ctx context.Context, itemID uuid.UUID) ([]*models.LibraryItemVersion, error)
}

// RatesStore persists the append-only project rates time series
type RatesStore interface {
	Create(ctx context.Context, rates *models.ProjectRates) error
	GetCurrent(ctx context.Context, projectID uuid.UUID, asOf time.Time) (*models.ProjectRates, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.ProjectRates, error)
}

// HierarchyStore resolves the division/section/assembly hierarchy
type HierarchyStore interface {
	GetAssemblyPath(ctx context.Context, assemblyID uuid.UUID) (*models.AssemblyPath, error)
	FirstAssemblyBySection(ctx context.Context, sectionID uuid.UUID) (uuid.UUID, error)
	FirstAssemblyByDivision(ctx context.Context, divisionID uuid.UUID) (uuid.UUID, error)
}

// CatalogStore reads reference rates from the external rate catalog
type CatalogStore interface {
	ReferenceRates(ctx context.Context, category models.RateCategory) (models.RateMap, error)
	ReferenceRate(ctx context.Context, category models.RateCategory, code string) (float64, error)
}

// Publisher is the event-bus surface the services publish to
type Publisher interface {
	Publish(ctx context.Context, topic string, key string, message []byte) error
}

// RateCache caches current-rates snapshots. The common redis client satisfies it.
type RateCache interface {
	Get(ctx context.Context, key string) (string, error)
	SetWithExpiry(ctx context.Context, key, value string, expiry time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
