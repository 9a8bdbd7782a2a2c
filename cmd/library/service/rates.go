package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sitewise/estimator/cmd/library/repository"
	"github.com/sitewise/estimator/common/logger"
	"github.com/sitewise/estimator/common/models"
	"github.com/sitewise/estimator/common/queue"
	commonredis "github.com/sitewise/estimator/common/redis"
	"github.com/sitewise/estimator/common/validation"
)

// RatesService maintains the append-only per-project rate override time series
// and reconciles rate sets across projects.
type RatesService struct {
	rates     RatesStore
	catalog   CatalogStore
	cache     RateCache
	cacheTTL  time.Duration
	limits    validation.RateLimits
	publisher Publisher
	log       *logger.Logger
}

// RatesServiceOpts contains options for creating a RatesService
type RatesServiceOpts struct {
	Rates     RatesStore
	Catalog   CatalogStore
	Cache     RateCache
	CacheTTL  time.Duration
	Limits    validation.RateLimits
	Publisher Publisher
	Logger    *logger.Logger
}

// NewRatesService creates a new rates service
func NewRatesService(opts *RatesServiceOpts) *RatesService {
	return &RatesService{
		rates:     opts.Rates,
		catalog:   opts.Catalog,
		cache:     opts.Cache,
		cacheTTL:  opts.CacheTTL,
		limits:    opts.Limits,
		publisher: opts.Publisher,
		log:       opts.Logger,
	}
}

// Current returns the newest rates row effective at asOf (now when nil).
// Projects without rates get an all-empty synthetic snapshot, never an error.
// The as-of-now snapshot is cached; historical queries always hit the store.
func (s *RatesService) Current(ctx context.Context, projectID uuid.UUID, asOf *time.Time) (*models.ProjectRates, error) {
	useCache := s.cache != nil && asOf == nil
	cacheKey := currentRatesKey(projectID)

	if useCache {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
			rates := &models.ProjectRates{}
			if err := json.Unmarshal([]byte(cached), rates); err == nil {
				return rates, nil
			}
		} else if !errors.Is(err, commonredis.ErrNotFound) {
			s.log.Warn("rates cache read failed", "project_id", projectID, "error", err)
		}
	}

	at := time.Now().UTC()
	if asOf != nil {
		at = *asOf
	}

	rates, err := s.rates.GetCurrent(ctx, projectID, at)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.EmptySnapshot(projectID), nil
		}
		return nil, err
	}

	if useCache {
		if encoded, err := json.Marshal(rates); err == nil {
			_ = s.cache.SetWithExpiry(ctx, cacheKey, string(encoded), s.cacheTTL)
		}
	}

	return rates, nil
}

// SetRatesRequest carries a full replacement rate set for a project
type SetRatesRequest struct {
	Materials     models.RateMap `json:"materials"`
	Labour        models.RateMap `json:"labour"`
	Equipment     models.RateMap `json:"equipment"`
	EffectiveDate *time.Time     `json:"effective_date"`
	ExpiryDate    *time.Time     `json:"expiry_date"`
	ChangeReason  string         `json:"change_reason"`
	CreatedBy     string         `json:"created_by"`
}

// Set validates and persists a new rates row. Negative rates are rejected
// outright; ceiling and catalog-deviation breaches come back as warnings.
func (s *RatesService) Set(ctx context.Context, projectID uuid.UUID, req *SetRatesRequest) (*models.ProjectRates, []string, error) {
	now := time.Now().UTC()
	effective := now
	if req.EffectiveDate != nil {
		effective = *req.EffectiveDate
	}

	row := &models.ProjectRates{
		ID:            uuid.New(),
		ProjectID:     projectID,
		Materials:     orEmpty(req.Materials),
		Labour:        orEmpty(req.Labour),
		Equipment:     orEmpty(req.Equipment),
		EffectiveDate: effective,
		ExpiryDate:    req.ExpiryDate,
		ChangeReason:  req.ChangeReason,
		CreatedBy:     req.CreatedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	result := validation.ValidateRates(row, s.referenceRates(ctx), s.limits)
	if !result.IsValid {
		return nil, result.Warnings, &RateValidationError{Errors: result.Errors}
	}

	if err := s.rates.Create(ctx, row); err != nil {
		return nil, result.Warnings, err
	}

	s.invalidateAndAnnounce(ctx, projectID)
	s.log.Info("project rates set",
		"project_id", projectID, "effective", effective, "created_by", req.CreatedBy)

	return row, result.Warnings, nil
}

// UpdateOverride changes a single code's override by copying the current maps
// forward into a new row. History rows are never mutated.
func (s *RatesService) UpdateOverride(ctx context.Context, projectID uuid.UUID, category models.RateCategory, code string, rate float64, reason, updatedBy string) (*models.ProjectRates, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("invalid rate category: %s", category)
	}
	if rate < 0 {
		return nil, &RateValidationError{Errors: []string{
			fmt.Sprintf("%s rate for %s is negative (%g)", category, code, rate),
		}}
	}

	current, err := s.Current(ctx, projectID, nil)
	if err != nil {
		return nil, err
	}

	updated := current.Category(category).Clone()
	updated[code] = rate

	req := &SetRatesRequest{
		Materials:    current.Materials.Clone(),
		Labour:       current.Labour.Clone(),
		Equipment:    current.Equipment.Clone(),
		ChangeReason: reason,
		CreatedBy:    updatedBy,
	}
	switch category {
	case models.CategoryMaterials:
		req.Materials = updated
	case models.CategoryLabour:
		req.Labour = updated
	case models.CategoryEquipment:
		req.Equipment = updated
	}

	row, _, err := s.Set(ctx, projectID, req)
	return row, err
}

// EffectiveRate resolves one code through the fallback chain: project override,
// then catalog reference, then zero. The source tag lets callers tell an
// intentional zero override apart from a miss.
func (s *RatesService) EffectiveRate(ctx context.Context, projectID uuid.UUID, category models.RateCategory, code string) (*models.EffectiveRate, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("invalid rate category: %s", category)
	}

	current, err := s.Current(ctx, projectID, nil)
	if err != nil {
		return nil, err
	}

	if rate, ok := current.Category(category)[code]; ok {
		return &models.EffectiveRate{Code: code, Rate: rate, Source: models.SourceProject}, nil
	}

	rate, err := s.catalog.ReferenceRate(ctx, category, code)
	if err == nil {
		return &models.EffectiveRate{Code: code, Rate: rate, Source: models.SourceCatalog}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	return &models.EffectiveRate{Code: code, Rate: 0, Source: models.SourceDefault}, nil
}

// Compare reconciles two projects' current rates. For every (code, category)
// pair in the union of both projects it classifies what would change in the
// source if the target's rates were imported into it.
func (s *RatesService) Compare(ctx context.Context, sourceID, targetID uuid.UUID) ([]*models.RateComparison, error) {
	source, err := s.Current(ctx, sourceID, nil)
	if err != nil {
		return nil, err
	}
	target, err := s.Current(ctx, targetID, nil)
	if err != nil {
		return nil, err
	}

	var comparisons []*models.RateComparison
	for _, category := range models.RateCategories {
		sourceMap := source.Category(category)
		targetMap := target.Category(category)

		for _, code := range unionCodes(sourceMap, targetMap) {
			comparisons = append(comparisons, compareOne(category, code, sourceMap, targetMap))
		}
	}

	return comparisons, nil
}

func compareOne(category models.RateCategory, code string, sourceMap, targetMap models.RateMap) *models.RateComparison {
	comparison := &models.RateComparison{Category: category, Code: code}

	sourceRate, inSource := sourceMap[code]
	targetRate, inTarget := targetMap[code]

	if inSource {
		comparison.SourceRate = &sourceRate
	}
	if inTarget {
		comparison.TargetRate = &targetRate
	}

	switch {
	case !inSource && inTarget:
		comparison.Action = models.ActionAdd
	case inSource && !inTarget:
		comparison.Action = models.ActionRemove
	case sourceRate == targetRate:
		comparison.Action = models.ActionUnchanged
	default:
		comparison.Action = models.ActionUpdate
	}

	comparison.Difference = targetRate - sourceRate
	if sourceRate != 0 {
		comparison.PercentDifference = comparison.Difference / sourceRate * 100
	}

	return comparison
}

// ImportOptions selects what to import and how conflicts resolve
type ImportOptions struct {
	SourceProjectID uuid.UUID                 `json:"source_project_id"`
	TargetProjectID uuid.UUID                 `json:"target_project_id"`
	Categories      []models.RateCategory     `json:"categories"`
	Resolution      models.ConflictResolution `json:"conflict_resolution"`
	EffectiveDate   *time.Time                `json:"effective_date"`
	ImportedBy      string                    `json:"imported_by"`
}

// Import merges the source project's rates into the target under the conflict
// policy and persists the result as one new row. A failed persist discards the
// tallied imported count and reports it as errors: callers must never trust a
// partial count from a failed import.
func (s *RatesService) Import(ctx context.Context, opts *ImportOptions) (*models.ImportResult, error) {
	if !opts.Resolution.Valid() {
		return nil, fmt.Errorf("invalid conflict resolution: %s", opts.Resolution)
	}
	categories := opts.Categories
	if len(categories) == 0 {
		categories = models.RateCategories
	}
	for _, category := range categories {
		if !category.Valid() {
			return nil, fmt.Errorf("invalid rate category: %s", category)
		}
	}

	source, err := s.Current(ctx, opts.SourceProjectID, nil)
	if err != nil {
		return nil, err
	}
	target, err := s.Current(ctx, opts.TargetProjectID, nil)
	if err != nil {
		return nil, err
	}

	result := &models.ImportResult{
		Categories: make(map[models.RateCategory]models.CategoryImportStats),
	}

	now := time.Now().UTC()
	effective := now
	if opts.EffectiveDate != nil {
		effective = *opts.EffectiveDate
	}

	merged := &models.ProjectRates{
		ID:            uuid.New(),
		ProjectID:     opts.TargetProjectID,
		Materials:     target.Materials.Clone(),
		Labour:        target.Labour.Clone(),
		Equipment:     target.Equipment.Clone(),
		EffectiveDate: effective,
		ChangeReason:  fmt.Sprintf("imported from project %s", opts.SourceProjectID),
		CreatedBy:     opts.ImportedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	for _, category := range categories {
		stats := models.CategoryImportStats{}
		sourceMap := source.Category(category)
		targetMap := merged.Category(category)

		for _, code := range sortedCodes(sourceMap) {
			sourceRate := sourceMap[code]
			targetRate, exists := targetMap[code]

			switch opts.Resolution {
			case models.ResolutionOverwrite:
				targetMap[code] = sourceRate
				stats.Imported++
			case models.ResolutionSkip:
				if exists {
					stats.Skipped++
				} else {
					targetMap[code] = sourceRate
					stats.Imported++
				}
			case models.ResolutionMerge:
				if exists {
					stats.Skipped++
					if targetRate != sourceRate {
						result.Warnings = append(result.Warnings, fmt.Sprintf(
							"%s %s: kept target rate %g, discarded source rate %g",
							category, code, targetRate, sourceRate))
					}
				} else {
					targetMap[code] = sourceRate
					stats.Imported++
				}
			}
		}

		result.Categories[category] = stats
		result.Imported += stats.Imported
		result.Skipped += stats.Skipped
	}

	if err := s.rates.Create(ctx, merged); err != nil {
		// The merged row never landed: everything tallied as imported failed
		result.Errors = result.Imported
		result.Imported = 0
		for category, stats := range result.Categories {
			stats.Errors = stats.Imported
			stats.Imported = 0
			result.Categories[category] = stats
		}
		return result, fmt.Errorf("failed to persist imported rates: %w", err)
	}

	s.invalidateAndAnnounce(ctx, opts.TargetProjectID)
	s.log.Info("project rates imported",
		"source", opts.SourceProjectID, "target", opts.TargetProjectID,
		"imported", result.Imported, "skipped", result.Skipped)

	return result, nil
}

// History returns the project's rates rows newest first, each with per-category
// change counts against the previous row.
func (s *RatesService) History(ctx context.Context, projectID uuid.UUID) ([]*models.RateHistoryEntry, error) {
	rows, err := s.rates.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	entries := make([]*models.RateHistoryEntry, 0, len(rows))
	for i, row := range rows {
		entry := &models.RateHistoryEntry{ProjectRates: *row}

		if i+1 < len(rows) {
			previous := rows[i+1]
			entry.MaterialChanges = countChanges(previous.Materials, row.Materials)
			entry.LabourChanges = countChanges(previous.Labour, row.Labour)
			entry.EquipmentChanges = countChanges(previous.Equipment, row.Equipment)
		} else {
			entry.MaterialChanges = len(row.Materials)
			entry.LabourChanges = len(row.Labour)
			entry.EquipmentChanges = len(row.Equipment)
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// referenceRates loads the catalog reference maps for deviation warnings.
// Catalog failures only cost the warnings, never the operation.
func (s *RatesService) referenceRates(ctx context.Context) map[models.RateCategory]models.RateMap {
	if s.catalog == nil {
		return nil
	}

	reference := make(map[models.RateCategory]models.RateMap, len(models.RateCategories))
	for _, category := range models.RateCategories {
		rates, err := s.catalog.ReferenceRates(ctx, category)
		if err != nil {
			s.log.Warn("failed to load catalog reference rates", "category", category, "error", err)
			continue
		}
		reference[category] = rates
	}
	return reference
}

func (s *RatesService) invalidateAndAnnounce(ctx context.Context, projectID uuid.UUID) {
	if s.cache != nil {
		if err := s.cache.Delete(ctx, currentRatesKey(projectID)); err != nil {
			s.log.Warn("failed to invalidate rates cache", "project_id", projectID, "error", err)
		}
	}

	if s.publisher != nil {
		payload, err := json.Marshal(map[string]string{"project_id": projectID.String()})
		if err != nil {
			return
		}
		if err := s.publisher.Publish(ctx, queue.TopicRatesUpdated, projectID.String(), payload); err != nil {
			s.log.Warn("failed to publish rates updated event", "project_id", projectID, "error", err)
		}
	}
}

func currentRatesKey(projectID uuid.UUID) string {
	return "rates:current:" + projectID.String()
}

func unionCodes(a, b models.RateMap) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for code := range a {
		seen[code] = struct{}{}
	}
	for code := range b {
		seen[code] = struct{}{}
	}

	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func sortedCodes(m models.RateMap) []string {
	codes := make([]string, 0, len(m))
	for code := range m {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func countChanges(previous, current models.RateMap) int {
	changes := 0
	for code, rate := range current {
		if prev, ok := previous[code]; !ok || prev != rate {
			changes++
		}
	}
	for code := range previous {
		if _, ok := current[code]; !ok {
			changes++
		}
	}
	return changes
}

func orEmpty(m models.RateMap) models.RateMap {
	if m == nil {
		return models.RateMap{}
	}
	return m
}
