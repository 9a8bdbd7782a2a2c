package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sitewise/estimator/cmd/library/repository"
	"github.com/sitewise/estimator/common/logger"
	"github.com/sitewise/estimator/common/models"
	commonredis "github.com/sitewise/estimator/common/redis"
)

// In-memory fakes for the store interfaces. They mimic the repository
// semantics the services rely on: copy-on-read, copy-on-write, CAS on item
// updates, and the duplicate-code constraint on active items.

func testLogger() *logger.Logger {
	return logger.New("error", "text")
}

type fakeItemStore struct {
	mu    sync.Mutex
	items map[uuid.UUID]*models.LibraryItem

	// createErrs are returned by successive Create calls before any insert
	createErrs []error
}

func newFakeItemStore() *fakeItemStore {
	return &fakeItemStore{items: make(map[uuid.UUID]*models.LibraryItem)}
}

func (f *fakeItemStore) Create(_ context.Context, item *models.LibraryItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return err
		}
	}

	for _, existing := range f.items {
		if existing.Code == item.Code && existing.IsActive && item.IsActive {
			return repository.ErrDuplicateCode
		}
	}

	clone := *item
	f.items[item.ID] = &clone
	return nil
}

func (f *fakeItemStore) GetByID(_ context.Context, id uuid.UUID) (*models.LibraryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	item, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *item
	return &clone, nil
}

func (f *fakeItemStore) List(_ context.Context, filter repository.ListFilter) ([]*models.LibraryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*models.LibraryItem
	for _, item := range f.items {
		if filter.Status != nil && item.Status != *filter.Status {
			continue
		}
		if filter.IsActive != nil && item.IsActive != *filter.IsActive {
			continue
		}
		clone := *item
		out = append(out, &clone)
	}
	return out, nil
}

func (f *fakeItemStore) Update(_ context.Context, item *models.LibraryItem, expectedVersion int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.items[item.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return repository.ErrVersionConflict
	}

	clone := *item
	clone.Version = expectedVersion + 1
	clone.UpdatedAt = time.Now().UTC()
	f.items[item.ID] = &clone

	item.Version = clone.Version
	item.UpdatedAt = clone.UpdatedAt
	return nil
}

func (f *fakeItemStore) SetLifecycleFields(_ context.Context, item *models.LibraryItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.items[item.ID]
	if !ok {
		return repository.ErrNotFound
	}

	stored.Status = item.Status
	stored.IsActive = item.IsActive
	stored.ConfirmedAt = item.ConfirmedAt
	stored.ConfirmedBy = item.ConfirmedBy
	stored.ActualLibraryDate = item.ActualLibraryDate
	stored.DeletedAt = item.DeletedAt
	stored.DeletedBy = item.DeletedBy
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeItemStore) HardDelete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

func (f *fakeItemStore) CodeExists(_ context.Context, code string, excludeID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, item := range f.items {
		if item.ID != excludeID && item.Code == code && item.IsActive {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeItemStore) ListCodesByAssembly(_ context.Context, assemblyID uuid.UUID) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var codes []string
	for _, item := range f.items {
		if item.AssemblyID != nil && *item.AssemblyID == assemblyID {
			codes = append(codes, item.Code)
		}
	}
	return codes, nil
}

func (f *fakeItemStore) ListFlatCodes(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var codes []string
	for _, item := range f.items {
		if len(item.Code) >= 4 && !strings.Contains(item.Code, ".") {
			codes = append(codes, item.Code)
		}
	}
	return codes, nil
}

type fakeFactorStore struct {
	mu      sync.Mutex
	factors map[uuid.UUID]*models.Factor
}

func newFakeFactorStore() *fakeFactorStore {
	return &fakeFactorStore{factors: make(map[uuid.UUID]*models.Factor)}
}

func (f *fakeFactorStore) Create(_ context.Context, factor *models.Factor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *factor
	f.factors[factor.ID] = &clone
	return nil
}

func (f *fakeFactorStore) Get(_ context.Context, kind models.FactorKind, id uuid.UUID) (*models.Factor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	factor, ok := f.factors[id]
	if !ok || factor.Kind != kind {
		return nil, repository.ErrNotFound
	}
	clone := *factor
	return &clone, nil
}

func (f *fakeFactorStore) ListByItem(_ context.Context, itemID uuid.UUID) ([]*models.Factor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Factor
	for _, factor := range f.factors {
		if factor.LibraryItemID == itemID {
			clone := *factor
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeFactorStore) HasAny(_ context.Context, itemID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, factor := range f.factors {
		if factor.LibraryItemID == itemID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeFactorStore) Update(_ context.Context, factor *models.Factor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.factors[factor.ID]; !ok {
		return repository.ErrNotFound
	}
	clone := *factor
	f.factors[factor.ID] = &clone
	return nil
}

func (f *fakeFactorStore) Delete(_ context.Context, kind models.FactorKind, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	factor, ok := f.factors[id]
	if !ok || factor.Kind != kind {
		return repository.ErrNotFound
	}
	delete(f.factors, id)
	return nil
}

func (f *fakeFactorStore) DeleteByItem(_ context.Context, itemID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, factor := range f.factors {
		if factor.LibraryItemID == itemID {
			delete(f.factors, id)
		}
	}
	return nil
}

type fakeVersionStore struct {
	mu       sync.Mutex
	versions []*models.LibraryItemVersion

	createErr error
}

func newFakeVersionStore() *fakeVersionStore {
	return &fakeVersionStore{}
}

func (f *fakeVersionStore) Create(_ context.Context, version *models.LibraryItemVersion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	clone := *version
	f.versions = append(f.versions, &clone)
	return nil
}

func (f *fakeVersionStore) GetByID(_ context.Context, id uuid.UUID) (*models.LibraryItemVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.versions {
		if v.ID == id {
			clone := *v
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeVersionStore) ListByItem(_ context.Context, itemID uuid.UUID) ([]*models.LibraryItemVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Newest first, like the repository
	var out []*models.LibraryItemVersion
	for i := len(f.versions) - 1; i >= 0; i-- {
		if f.versions[i].LibraryItemID == itemID {
			clone := *f.versions[i]
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeVersionStore) count(itemID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, v := range f.versions {
		if v.LibraryItemID == itemID {
			n++
		}
	}
	return n
}

type fakeHierarchyStore struct {
	paths            map[uuid.UUID]*models.AssemblyPath
	sectionAssembly  map[uuid.UUID]uuid.UUID
	divisionAssembly map[uuid.UUID]uuid.UUID
}

func newFakeHierarchyStore() *fakeHierarchyStore {
	return &fakeHierarchyStore{
		paths:            make(map[uuid.UUID]*models.AssemblyPath),
		sectionAssembly:  make(map[uuid.UUID]uuid.UUID),
		divisionAssembly: make(map[uuid.UUID]uuid.UUID),
	}
}

func (f *fakeHierarchyStore) GetAssemblyPath(_ context.Context, assemblyID uuid.UUID) (*models.AssemblyPath, error) {
	path, ok := f.paths[assemblyID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return path, nil
}

func (f *fakeHierarchyStore) FirstAssemblyBySection(_ context.Context, sectionID uuid.UUID) (uuid.UUID, error) {
	id, ok := f.sectionAssembly[sectionID]
	if !ok {
		return uuid.Nil, repository.ErrNotFound
	}
	return id, nil
}

func (f *fakeHierarchyStore) FirstAssemblyByDivision(_ context.Context, divisionID uuid.UUID) (uuid.UUID, error) {
	id, ok := f.divisionAssembly[divisionID]
	if !ok {
		return uuid.Nil, repository.ErrNotFound
	}
	return id, nil
}

type fakeRatesStore struct {
	mu   sync.Mutex
	rows []*models.ProjectRates

	createErr error
}

func newFakeRatesStore() *fakeRatesStore {
	return &fakeRatesStore{}
}

func (f *fakeRatesStore) Create(_ context.Context, rates *models.ProjectRates) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	clone := *rates
	f.rows = append(f.rows, &clone)
	return nil
}

func (f *fakeRatesStore) GetCurrent(_ context.Context, projectID uuid.UUID, asOf time.Time) (*models.ProjectRates, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var best *models.ProjectRates
	for _, row := range f.rows {
		if row.ProjectID != projectID || row.EffectiveDate.After(asOf) {
			continue
		}
		if best == nil || row.EffectiveDate.After(best.EffectiveDate) ||
			(row.EffectiveDate.Equal(best.EffectiveDate) && row.CreatedAt.After(best.CreatedAt)) {
			best = row
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	clone := *best
	return &clone, nil
}

func (f *fakeRatesStore) ListByProject(_ context.Context, projectID uuid.UUID) ([]*models.ProjectRates, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Newest first, like the repository
	var out []*models.ProjectRates
	for i := len(f.rows) - 1; i >= 0; i-- {
		if f.rows[i].ProjectID == projectID {
			clone := *f.rows[i]
			out = append(out, &clone)
		}
	}
	return out, nil
}

type fakeCatalogStore struct {
	rates map[models.RateCategory]models.RateMap
}

func newFakeCatalogStore() *fakeCatalogStore {
	return &fakeCatalogStore{rates: make(map[models.RateCategory]models.RateMap)}
}

func (f *fakeCatalogStore) ReferenceRates(_ context.Context, category models.RateCategory) (models.RateMap, error) {
	rates, ok := f.rates[category]
	if !ok {
		return models.RateMap{}, nil
	}
	return rates.Clone(), nil
}

func (f *fakeCatalogStore) ReferenceRate(_ context.Context, category models.RateCategory, code string) (float64, error) {
	rate, ok := f.rates[category][code]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return rate, nil
}

type publishedEvent struct {
	topic string
	key   string
	value []byte
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (f *fakePublisher) Publish(_ context.Context, topic string, key string, message []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{topic: topic, key: key, value: message})
	return nil
}

func (f *fakePublisher) topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.events {
		out = append(out, e.topic)
	}
	return out
}

type fakeRateCache struct {
	mu      sync.Mutex
	entries map[string]string
	deletes []string
}

func newFakeRateCache() *fakeRateCache {
	return &fakeRateCache{entries: make(map[string]string)}
}

func (f *fakeRateCache) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.entries[key]
	if !ok {
		return "", commonredis.ErrNotFound
	}
	return value, nil
}

func (f *fakeRateCache) SetWithExpiry(_ context.Context, key, value string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = value
	return nil
}

func (f *fakeRateCache) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.entries, key)
		f.deletes = append(f.deletes, key)
	}
	return nil
}
