package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sitewise/estimator/cmd/library/repository"
	"github.com/sitewise/estimator/common/logger"
	"github.com/sitewise/estimator/common/models"
	"github.com/sitewise/estimator/common/queue"
	"github.com/sitewise/estimator/common/validation"
)

// LibraryService orchestrates the library item lifecycle: creation, edits,
// status transitions, cloning, bulk operations and the version ledger.
type LibraryService struct {
	items     ItemStore
	factors   FactorStore
	hierarchy HierarchyStore
	ledger    *ledger
	policy    *validation.PolicyEvaluator
	publisher Publisher
	log       *logger.Logger
}

// LibraryServiceOpts contains options for creating a LibraryService
type LibraryServiceOpts struct {
	Items     ItemStore
	Factors   FactorStore
	Versions  VersionStore
	Hierarchy HierarchyStore
	Policy    *validation.PolicyEvaluator
	Publisher Publisher
	Logger    *logger.Logger
}

// NewLibraryService creates a new library service
func NewLibraryService(opts *LibraryServiceOpts) *LibraryService {
	return &LibraryService{
		items:     opts.Items,
		factors:   opts.Factors,
		hierarchy: opts.Hierarchy,
		ledger:    &ledger{versions: opts.Versions, log: opts.Logger},
		policy:    opts.Policy,
		publisher: opts.Publisher,
		log:       opts.Logger,
	}
}

// CreateItemRequest carries the fields for a new draft item
type CreateItemRequest struct {
	Code              string     `json:"code"`
	Name              string     `json:"name"`
	Description       string     `json:"description"`
	Unit              string     `json:"unit"`
	WastagePercentage float64    `json:"wastage_percentage"`
	ProductivityNotes string     `json:"productivity_notes"`
	AssemblyID        *uuid.UUID `json:"assembly_id"`
	SourceElementID   *uuid.UUID `json:"source_element_id"`
	CreatedBy         string     `json:"created_by"`
}

// CreateItem creates a new item in draft. Drafts may be incomplete, so no
// validation runs here. When no code is supplied one is generated from the
// assembly hierarchy; a duplicate-code insert retries once with a fresh code.
func (s *LibraryService) CreateItem(ctx context.Context, req *CreateItemRequest) (*models.LibraryItem, error) {
	if req.Name == "" {
		return nil, &ValidationError{Errors: []string{"Item name is required"}}
	}

	generated := req.Code == ""
	code := req.Code
	if generated {
		var err error
		code, err = s.generateCode(ctx, req.AssemblyID)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	item := &models.LibraryItem{
		ID:                uuid.New(),
		Code:              code,
		Name:              req.Name,
		Description:       req.Description,
		Unit:              req.Unit,
		WastagePercentage: req.WastagePercentage,
		ProductivityNotes: req.ProductivityNotes,
		Status:            models.StatusDraft,
		Version:           1,
		IsActive:          false,
		AssemblyID:        req.AssemblyID,
		SourceElementID:   req.SourceElementID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err := s.items.Create(ctx, item)
	if errors.Is(err, repository.ErrDuplicateCode) && generated {
		// Another creation raced the sequence; regenerate once and retry
		item.Code, err = s.generateCode(ctx, req.AssemblyID)
		if err != nil {
			return nil, err
		}
		err = s.items.Create(ctx, item)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("library item created",
		"item_id", item.ID, "code", item.Code, "created_by", req.CreatedBy)

	return item, nil
}

// ItemDetail is an item with its factor rows
type ItemDetail struct {
	Item    *models.LibraryItem `json:"item"`
	Factors []*models.Factor    `json:"factors"`
}

// GetItem returns an item with its factors
func (s *LibraryService) GetItem(ctx context.Context, id uuid.UUID) (*ItemDetail, error) {
	item, err := s.getItem(ctx, id)
	if err != nil {
		return nil, err
	}

	factors, err := s.factors.ListByItem(ctx, id)
	if err != nil {
		return nil, err
	}

	return &ItemDetail{Item: item, Factors: factors}, nil
}

// ListItems returns items matching the filter
func (s *LibraryService) ListItems(ctx context.Context, filter repository.ListFilter) ([]*models.LibraryItem, error) {
	return s.items.List(ctx, filter)
}

// UpdateItemRequest carries a partial update. Nil fields are left unchanged.
type UpdateItemRequest struct {
	Code              *string    `json:"code"`
	Name              *string    `json:"name"`
	Description       *string    `json:"description"`
	Unit              *string    `json:"unit"`
	WastagePercentage *float64   `json:"wastage_percentage"`
	ProductivityNotes *string    `json:"productivity_notes"`
	AssemblyID        *uuid.UUID `json:"assembly_id"`

	// ExpectedVersion, when non-zero, is the version the caller read. A
	// mismatch fails with ConflictError instead of clobbering a concurrent edit.
	ExpectedVersion int    `json:"expected_version"`
	ChangeNote      string `json:"change_note"`
	UpdatedBy       string `json:"updated_by"`
}

// UpdateItem snapshots the item's pre-update state to the version ledger, then
// applies the requested fields and bumps the version counter.
func (s *LibraryService) UpdateItem(ctx context.Context, id uuid.UUID, req *UpdateItemRequest) (*models.LibraryItem, error) {
	item, err := s.getItem(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.ExpectedVersion != 0 && req.ExpectedVersion != item.Version {
		return nil, &ConflictError{Resource: "library item", ID: id.String()}
	}

	// Ledger first: the pre-update state must never become unreachable
	s.ledger.snapshot(ctx, item, req.ChangeNote, req.UpdatedBy)

	if req.Code != nil {
		item.Code = *req.Code
	}
	if req.Name != nil {
		item.Name = *req.Name
	}
	if req.Description != nil {
		item.Description = *req.Description
	}
	if req.Unit != nil {
		item.Unit = *req.Unit
	}
	if req.WastagePercentage != nil {
		item.WastagePercentage = *req.WastagePercentage
	}
	if req.ProductivityNotes != nil {
		item.ProductivityNotes = *req.ProductivityNotes
	}
	if req.AssemblyID != nil {
		item.AssemblyID = req.AssemblyID
	}

	if err := s.items.Update(ctx, item, item.Version); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, &ConflictError{Resource: "library item", ID: id.String()}
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Resource: "library item", ID: id.String()}
		}
		return nil, err
	}

	s.log.Info("library item updated", "item_id", id, "version", item.Version)

	return item, nil
}

// Validate runs the confirmation rules without changing anything. Policy
// warnings are included, so callers can preflight a confirm.
func (s *LibraryService) Validate(ctx context.Context, id uuid.UUID) (*validation.Result, error) {
	item, err := s.getItem(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := s.validateItem(ctx, item)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *LibraryService) validateItem(ctx context.Context, item *models.LibraryItem) (validation.Result, error) {
	hasFactors, err := s.factors.HasAny(ctx, item.ID)
	if err != nil {
		return validation.Result{}, err
	}

	codeTaken, err := s.items.CodeExists(ctx, item.Code, item.ID)
	if err != nil {
		return validation.Result{}, err
	}

	result := validation.ValidateItem(validation.ItemInput{
		Item:       item,
		HasFactors: hasFactors,
		CodeTaken:  codeTaken,
	})

	if s.policy != nil {
		result.Warnings = append(result.Warnings, s.policy.Check(item)...)
	}

	return result, nil
}

// ConfirmItem transitions draft -> confirmed, gated by the validation engine
func (s *LibraryService) ConfirmItem(ctx context.Context, id uuid.UUID, confirmedBy string) (*models.LibraryItem, error) {
	item, err := s.getItem(ctx, id)
	if err != nil {
		return nil, err
	}

	if !item.Status.CanTransitionTo(models.StatusConfirmed) {
		return nil, &InvalidTransitionError{From: item.Status, To: models.StatusConfirmed}
	}

	result, err := s.validateItem(ctx, item)
	if err != nil {
		return nil, err
	}
	if !result.IsValid {
		return nil, &ValidationError{Errors: result.Errors, Warnings: result.Warnings}
	}

	now := time.Now().UTC()
	item.Status = models.StatusConfirmed
	item.IsActive = true
	item.ConfirmedAt = &now
	item.ConfirmedBy = confirmedBy

	if err := s.items.SetLifecycleFields(ctx, item); err != nil {
		return nil, s.mapStoreErr(err, id)
	}

	s.log.Info("library item confirmed", "item_id", id, "confirmed_by", confirmedBy)
	s.publishItemConfirmed(ctx, item)

	return item, nil
}

// MarkAsActual transitions confirmed -> actual
func (s *LibraryService) MarkAsActual(ctx context.Context, id uuid.UUID) (*models.LibraryItem, error) {
	item, err := s.getItem(ctx, id)
	if err != nil {
		return nil, err
	}

	if !item.Status.CanTransitionTo(models.StatusActual) {
		return nil, &InvalidTransitionError{From: item.Status, To: models.StatusActual}
	}

	now := time.Now().UTC()
	item.Status = models.StatusActual
	item.ActualLibraryDate = &now

	if err := s.items.SetLifecycleFields(ctx, item); err != nil {
		return nil, s.mapStoreErr(err, id)
	}

	s.log.Info("library item marked as actual", "item_id", id)

	return item, nil
}

// RevertToDraft moves a confirmed or actual item back to draft, clearing the
// confirmation and actual metadata. No re-validation runs.
func (s *LibraryService) RevertToDraft(ctx context.Context, id uuid.UUID) (*models.LibraryItem, error) {
	item, err := s.getItem(ctx, id)
	if err != nil {
		return nil, err
	}

	if !item.Status.CanTransitionTo(models.StatusDraft) {
		return nil, &InvalidTransitionError{From: item.Status, To: models.StatusDraft}
	}

	item.Status = models.StatusDraft
	item.IsActive = false
	item.ConfirmedAt = nil
	item.ConfirmedBy = ""
	item.ActualLibraryDate = nil

	if err := s.items.SetLifecycleFields(ctx, item); err != nil {
		return nil, s.mapStoreErr(err, id)
	}

	s.log.Info("library item reverted to draft", "item_id", id)

	return item, nil
}

// SoftDeleteItem marks the item inactive with deletion metadata. Factor rows
// are left untouched so a restore brings the item back whole.
func (s *LibraryService) SoftDeleteItem(ctx context.Context, id uuid.UUID, deletedBy string) error {
	item, err := s.getItem(ctx, id)
	if err != nil {
		return err
	}

	if item.DeletedAt != nil {
		return fmt.Errorf("library item %s is already deleted", id)
	}

	now := time.Now().UTC()
	item.IsActive = false
	item.DeletedAt = &now
	item.DeletedBy = deletedBy

	if err := s.items.SetLifecycleFields(ctx, item); err != nil {
		return s.mapStoreErr(err, id)
	}

	s.log.Info("library item soft-deleted", "item_id", id, "deleted_by", deletedBy)

	return nil
}

// RestoreItem clears deletion metadata. Confirmed items become active again.
func (s *LibraryService) RestoreItem(ctx context.Context, id uuid.UUID) error {
	item, err := s.getItem(ctx, id)
	if err != nil {
		return err
	}

	if item.DeletedAt == nil {
		return fmt.Errorf("library item %s is not deleted", id)
	}

	item.DeletedAt = nil
	item.DeletedBy = ""
	item.IsActive = item.Status != models.StatusDraft

	if err := s.items.SetLifecycleFields(ctx, item); err != nil {
		return s.mapStoreErr(err, id)
	}

	s.log.Info("library item restored", "item_id", id)

	return nil
}

// HardDeleteItem removes the item and its factor rows permanently
func (s *LibraryService) HardDeleteItem(ctx context.Context, id uuid.UUID) error {
	if _, err := s.getItem(ctx, id); err != nil {
		return err
	}

	if err := s.factors.DeleteByItem(ctx, id); err != nil {
		return err
	}
	if err := s.items.HardDelete(ctx, id); err != nil {
		return s.mapStoreErr(err, id)
	}

	s.log.Info("library item hard-deleted", "item_id", id)

	return nil
}

// CloneItem creates a brand-new draft from the source item. Scalar fields are
// copied, factor rows are deep-copied with new ids, and the source is never
// touched. The clone always starts in draft regardless of the source's status.
func (s *LibraryService) CloneItem(ctx context.Context, id uuid.UUID, clonedBy string) (*ItemDetail, error) {
	source, err := s.getItem(ctx, id)
	if err != nil {
		return nil, err
	}

	sourceFactors, err := s.factors.ListByItem(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	clone := &models.LibraryItem{
		ID:                uuid.New(),
		Code:              source.Code,
		Name:              source.Name,
		Description:       source.Description,
		Unit:              source.Unit,
		WastagePercentage: source.WastagePercentage,
		ProductivityNotes: source.ProductivityNotes,
		Status:            models.StatusDraft,
		Version:           1,
		IsActive:          false,
		AssemblyID:        source.AssemblyID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.items.Create(ctx, clone); err != nil {
		return nil, err
	}

	cloned := make([]*models.Factor, 0, len(sourceFactors))
	for _, factor := range sourceFactors {
		copied := factor.Clone(clone.ID, now)
		if err := s.factors.Create(ctx, copied); err != nil {
			return nil, err
		}
		cloned = append(cloned, copied)
	}

	s.log.Info("library item cloned",
		"source_id", id, "clone_id", clone.ID, "cloned_by", clonedBy)

	return &ItemDetail{Item: clone, Factors: cloned}, nil
}

// AddFactor attaches a factor to a draft item
func (s *LibraryService) AddFactor(ctx context.Context, itemID uuid.UUID, factor *models.Factor) (*models.Factor, error) {
	item, err := s.getItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Status != models.StatusDraft {
		return nil, fmt.Errorf("factors can only be added while the item is in draft (status: %s)", item.Status)
	}
	if err := validateFactorValues(factor); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	factor.ID = uuid.New()
	factor.LibraryItemID = itemID
	factor.CreatedAt = now
	factor.UpdatedAt = now

	if err := s.factors.Create(ctx, factor); err != nil {
		return nil, err
	}

	return factor, nil
}

// UpdateFactor rewrites a factor's values on a draft item
func (s *LibraryService) UpdateFactor(ctx context.Context, itemID uuid.UUID, factor *models.Factor) (*models.Factor, error) {
	item, err := s.getItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Status != models.StatusDraft {
		return nil, fmt.Errorf("factors can only be modified while the item is in draft (status: %s)", item.Status)
	}
	if err := validateFactorValues(factor); err != nil {
		return nil, err
	}

	existing, err := s.factors.Get(ctx, factor.Kind, factor.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Resource: "factor", ID: factor.ID.String()}
		}
		return nil, err
	}
	if existing.LibraryItemID != itemID {
		return nil, &NotFoundError{Resource: "factor", ID: factor.ID.String()}
	}

	factor.LibraryItemID = itemID
	factor.UpdatedAt = time.Now().UTC()

	if err := s.factors.Update(ctx, factor); err != nil {
		return nil, err
	}

	return factor, nil
}

// RemoveFactor deletes a factor from a draft item
func (s *LibraryService) RemoveFactor(ctx context.Context, itemID uuid.UUID, kind models.FactorKind, factorID uuid.UUID) error {
	item, err := s.getItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item.Status != models.StatusDraft {
		return fmt.Errorf("factors can only be removed while the item is in draft (status: %s)", item.Status)
	}

	if err := s.factors.Delete(ctx, kind, factorID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &NotFoundError{Resource: "factor", ID: factorID.String()}
		}
		return err
	}

	return nil
}

// BulkUpdateStatus applies the status transition to each id independently, in
// input order. One item's failure never blocks or rolls back another.
func (s *LibraryService) BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status models.ItemStatus, actor string) (*models.BulkOperationResult, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid status: %s", status)
	}

	result := &models.BulkOperationResult{}
	for _, id := range ids {
		var err error
		switch status {
		case models.StatusConfirmed:
			_, err = s.ConfirmItem(ctx, id, actor)
		case models.StatusActual:
			_, err = s.MarkAsActual(ctx, id)
		case models.StatusDraft:
			_, err = s.RevertToDraft(ctx, id)
		}
		if err != nil {
			err = fmt.Errorf("%s: %w", id, err)
		}
		result.Record(err)
	}

	return result, nil
}

// BulkDelete soft-deletes each id independently
func (s *LibraryService) BulkDelete(ctx context.Context, ids []uuid.UUID, deletedBy string) (*models.BulkOperationResult, error) {
	result := &models.BulkOperationResult{}
	for _, id := range ids {
		err := s.SoftDeleteItem(ctx, id, deletedBy)
		if err != nil {
			err = fmt.Errorf("%s: %w", id, err)
		}
		result.Record(err)
	}
	return result, nil
}

// BulkRestore restores each id independently
func (s *LibraryService) BulkRestore(ctx context.Context, ids []uuid.UUID) (*models.BulkOperationResult, error) {
	result := &models.BulkOperationResult{}
	for _, id := range ids {
		err := s.RestoreItem(ctx, id)
		if err != nil {
			err = fmt.Errorf("%s: %w", id, err)
		}
		result.Record(err)
	}
	return result, nil
}

// History returns the item's version snapshots, newest first, each with a
// field-level change summary against the previous snapshot.
func (s *LibraryService) History(ctx context.Context, itemID uuid.UUID) ([]*models.VersionHistoryEntry, error) {
	if _, err := s.getItem(ctx, itemID); err != nil {
		return nil, err
	}

	versions, err := s.ledger.versions.ListByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	return historyWithDiffs(versions), nil
}

// RestoreFromVersion applies a stored snapshot's descriptive fields back onto
// the item as a normal update. The current state is snapshotted first, so the
// state being replaced is never lost and the ledger stays strictly append-only.
// Identity, lifecycle and version fields from the stored state are ignored.
func (s *LibraryService) RestoreFromVersion(ctx context.Context, itemID, versionID uuid.UUID, restoredBy string) (*models.LibraryItem, error) {
	item, err := s.getItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	version, err := s.ledger.versions.GetByID(ctx, versionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Resource: "item version", ID: versionID.String()}
		}
		return nil, err
	}
	if version.LibraryItemID != itemID {
		return nil, &NotFoundError{Resource: "item version", ID: versionID.String()}
	}

	var stored models.LibraryItem
	if err := json.Unmarshal(version.State, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode stored item state: %w", err)
	}

	note := fmt.Sprintf("restored from version %d", version.VersionNumber)
	return s.UpdateItem(ctx, itemID, &UpdateItemRequest{
		Code:              &stored.Code,
		Name:              &stored.Name,
		Description:       &stored.Description,
		Unit:              &stored.Unit,
		WastagePercentage: &stored.WastagePercentage,
		ProductivityNotes: &stored.ProductivityNotes,
		AssemblyID:        stored.AssemblyID,
		ExpectedVersion:   item.Version,
		ChangeNote:        note,
		UpdatedBy:         restoredBy,
	})
}

func (s *LibraryService) getItem(ctx context.Context, id uuid.UUID) (*models.LibraryItem, error) {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapStoreErr(err, id)
	}
	return item, nil
}

func (s *LibraryService) mapStoreErr(err error, id uuid.UUID) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Resource: "library item", ID: id.String()}
	}
	return err
}

func (s *LibraryService) publishItemConfirmed(ctx context.Context, item *models.LibraryItem) {
	if s.publisher == nil {
		return
	}

	payload, err := json.Marshal(map[string]string{
		"item_id": item.ID.String(),
		"code":    item.Code,
	})
	if err != nil {
		return
	}

	if err := s.publisher.Publish(ctx, queue.TopicItemConfirmed, item.ID.String(), payload); err != nil {
		s.log.Warn("failed to publish item confirmed event", "item_id", item.ID, "error", err)
	}
}

func validateFactorValues(factor *models.Factor) error {
	var errs []string
	if !factor.Kind.Valid() {
		errs = append(errs, fmt.Sprintf("invalid factor kind: %s", factor.Kind))
	}
	if factor.Rate < 0 {
		errs = append(errs, fmt.Sprintf("factor rate is negative (%g)", factor.Rate))
	}
	if factor.Quantity < 0 {
		errs = append(errs, fmt.Sprintf("factor quantity is negative (%g)", factor.Quantity))
	}
	if len(errs) > 0 {
		return &RateValidationError{Errors: errs}
	}
	return nil
}
