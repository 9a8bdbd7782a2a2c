package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sitewise/estimator/cmd/library/repository"
	"github.com/sitewise/estimator/common/models"
	"github.com/sitewise/estimator/common/queue"
)

type libraryFixture struct {
	service   *LibraryService
	items     *fakeItemStore
	factors   *fakeFactorStore
	versions  *fakeVersionStore
	hierarchy *fakeHierarchyStore
	publisher *fakePublisher
}

func newLibraryFixture() *libraryFixture {
	f := &libraryFixture{
		items:     newFakeItemStore(),
		factors:   newFakeFactorStore(),
		versions:  newFakeVersionStore(),
		hierarchy: newFakeHierarchyStore(),
		publisher: &fakePublisher{},
	}
	f.service = NewLibraryService(&LibraryServiceOpts{
		Items:     f.items,
		Factors:   f.factors,
		Versions:  f.versions,
		Hierarchy: f.hierarchy,
		Publisher: f.publisher,
		Logger:    testLogger(),
	})
	return f
}

// seedAssembly registers an assembly with a hierarchy path and returns its id
func (f *libraryFixture) seedAssembly(div, sec, asm string) uuid.UUID {
	id := uuid.New()
	f.hierarchy.paths[id] = &models.AssemblyPath{
		AssemblyID:   id,
		AssemblyCode: asm,
		SectionCode:  sec,
		DivisionCode: div,
	}
	return id
}

// seedConfirmable creates a draft that passes every confirmation rule
func (f *libraryFixture) seedConfirmable(t *testing.T) *models.LibraryItem {
	t.Helper()
	assemblyID := f.seedAssembly("02", "10", "10")

	item, err := f.service.CreateItem(context.Background(), &CreateItemRequest{
		Name:              "Concrete Grade 25",
		Description:       "Ready-mix structural concrete",
		Unit:              "m3",
		ProductivityNotes: "Pump placement",
		AssemblyID:        &assemblyID,
		CreatedBy:         "alice",
	})
	require.NoError(t, err)

	_, err = f.service.AddFactor(context.Background(), item.ID, &models.Factor{
		Kind:     models.FactorMaterial,
		ItemCode: "CEM-001",
		ItemName: "Cement 42.5N",
		Unit:     "bag",
		Quantity: 7,
		Rate:     8.5,
	})
	require.NoError(t, err)

	return item
}

func TestCreateItem_StartsAsInactiveDraft(t *testing.T) {
	f := newLibraryFixture()

	item, err := f.service.CreateItem(context.Background(), &CreateItemRequest{
		Name:      "Blockwork 200mm",
		Code:      "BLK-200",
		CreatedBy: "alice",
	})

	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, item.Status)
	assert.Equal(t, 1, item.Version)
	assert.False(t, item.IsActive)
	assert.Equal(t, "BLK-200", item.Code)
}

func TestCreateItem_RequiresName(t *testing.T) {
	f := newLibraryFixture()

	_, err := f.service.CreateItem(context.Background(), &CreateItemRequest{})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Errors, "Item name is required")
}

func TestCreateItem_GeneratesHierarchicalCode(t *testing.T) {
	f := newLibraryFixture()
	assemblyID := f.seedAssembly("02", "10", "10")

	first, err := f.service.CreateItem(context.Background(), &CreateItemRequest{
		Name:       "Concrete Grade 25",
		AssemblyID: &assemblyID,
	})
	require.NoError(t, err)
	assert.Equal(t, "02.10.10.01", first.Code)

	second, err := f.service.CreateItem(context.Background(), &CreateItemRequest{
		Name:       "Concrete Grade 30",
		AssemblyID: &assemblyID,
	})
	require.NoError(t, err)
	assert.Equal(t, "02.10.10.02", second.Code)
}

func TestCreateItem_GeneratesFlatCodeWithoutAssembly(t *testing.T) {
	f := newLibraryFixture()

	item, err := f.service.CreateItem(context.Background(), &CreateItemRequest{Name: "Misc"})
	require.NoError(t, err)
	assert.Equal(t, "0001", item.Code)

	next, err := f.service.CreateItem(context.Background(), &CreateItemRequest{Name: "Misc 2"})
	require.NoError(t, err)
	assert.Equal(t, "0002", next.Code)
}

func TestCreateItem_RetriesGeneratedCodeOnce(t *testing.T) {
	f := newLibraryFixture()
	f.items.createErrs = []error{repository.ErrDuplicateCode}

	item, err := f.service.CreateItem(context.Background(), &CreateItemRequest{Name: "Raced"})

	require.NoError(t, err)
	assert.NotEmpty(t, item.Code)
}

func TestCreateItem_NoRetryForExplicitCode(t *testing.T) {
	f := newLibraryFixture()
	f.items.createErrs = []error{repository.ErrDuplicateCode}

	_, err := f.service.CreateItem(context.Background(), &CreateItemRequest{
		Name: "Taken",
		Code: "BLK-200",
	})

	assert.ErrorIs(t, err, repository.ErrDuplicateCode)
}

func TestUpdateItem_SnapshotsPriorStateAndBumpsVersion(t *testing.T) {
	f := newLibraryFixture()
	item := f.seedConfirmable(t)

	name := "Concrete Grade 25 (revised)"
	updated, err := f.service.UpdateItem(context.Background(), item.ID, &UpdateItemRequest{
		Name:      &name,
		UpdatedBy: "bob",
	})

	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, name, updated.Name)

	// The ledger holds the pre-update state tagged with the old version
	versions, err := f.versions.ListByItem(context.Background(), item.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].VersionNumber)
	assert.Contains(t, string(versions[0].State), "Concrete Grade 25")
}

func TestUpdateItem_StaleVersionConflicts(t *testing.T) {
	f := newLibraryFixture()
	item := f.seedConfirmable(t)

	name := "First edit"
	_, err := f.service.UpdateItem(context.Background(), item.ID, &UpdateItemRequest{
		Name:            &name,
		ExpectedVersion: item.Version,
	})
	require.NoError(t, err)

	// Second edit still carries the original version
	name = "Second edit"
	_, err = f.service.UpdateItem(context.Background(), item.ID, &UpdateItemRequest{
		Name:            &name,
		ExpectedVersion: item.Version,
	})

	var conflictErr *ConflictError
	assert.ErrorAs(t, err, &conflictErr)
}

func TestConfirmItem_HappyPath(t *testing.T) {
	f := newLibraryFixture()
	item := f.seedConfirmable(t)

	confirmed, err := f.service.ConfirmItem(context.Background(), item.ID, "bob")

	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, confirmed.Status)
	assert.True(t, confirmed.IsActive)
	assert.Equal(t, "bob", confirmed.ConfirmedBy)
	require.NotNil(t, confirmed.ConfirmedAt)

	// Confirmation does not bump the version counter
	assert.Equal(t, 1, confirmed.Version)

	assert.Contains(t, f.publisher.topics(), queue.TopicItemConfirmed)
}

func TestConfirmItem_FailsWithoutFactors(t *testing.T) {
	f := newLibraryFixture()
	assemblyID := f.seedAssembly("02", "10", "10")
	item, err := f.service.CreateItem(context.Background(), &CreateItemRequest{
		Name:       "No factors yet",
		Unit:       "m2",
		AssemblyID: &assemblyID,
	})
	require.NoError(t, err)

	_, err = f.service.ConfirmItem(context.Background(), item.ID, "bob")

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Errors, "Item must have at least one factor (material, labor, or equipment)")

	// The item is untouched
	detail, err := f.service.GetItem(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, detail.Item.Status)
}

func TestConfirmItem_AlreadyConfirmed(t *testing.T) {
	f := newLibraryFixture()
	item := f.seedConfirmable(t)
	_, err := f.service.ConfirmItem(context.Background(), item.ID, "bob")
	require.NoError(t, err)

	_, err = f.service.ConfirmItem(context.Background(), item.ID, "bob")

	var transitionErr *InvalidTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, models.StatusConfirmed, transitionErr.From)
	assert.Equal(t, models.StatusConfirmed, transitionErr.To)
}

func TestMarkAsActual_OnlyFromConfirmed(t *testing.T) {
	f := newLibraryFixture()
	item := f.seedConfirmable(t)

	_, err := f.service.MarkAsActual(context.Background(), item.ID)
	var transitionErr *InvalidTransitionError
	require.ErrorAs(t, err, &transitionErr)

	_, err = f.service.ConfirmItem(context.Background(), item.ID, "bob")
	require.NoError(t, err)

	actual, err := f.service.MarkAsActual(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActual, actual.Status)
	require.NotNil(t, actual.ActualLibraryDate)
}

func TestRevertToDraft_ClearsLifecycleMetadata(t *testing.T) {
	f := newLibraryFixture()
	item := f.seedConfirmable(t)
	_, err := f.service.ConfirmItem(context.Background(), item.ID, "bob")
	require.NoError(t, err)

	reverted, err := f.service.RevertToDraft(context.Background(), item.ID)

	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, reverted.Status)
	assert.False(t, reverted.IsActive)
	assert.Nil(t, reverted.ConfirmedAt)
	assert.Empty(t, reverted.ConfirmedBy)
}

func TestSoftDelete_IsOrthogonalToStatus(t *testing.T) {
	f := newLibraryFixture()
	item := f.seedConfirmable(t)
	_, err := f.service.ConfirmItem(context.Background(), item.ID, "bob")
	require.NoError(t, err)

	require.NoError(t, f.service.SoftDeleteItem(context.Background(), item.ID, "carol"))

	detail, err := f.service.GetItem(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, detail.Item.Status, "status survives deletion")
	assert.False(t, detail.Item.IsActive)
	require.NotNil(t, detail.Item.DeletedAt)
	assert.Equal(t, "carol", detail.Item.DeletedBy)

	// Restore clears the deletion marker and reactivates the confirmed item
	require.NoError(t, f.service.RestoreItem(context.Background(), item.ID))

	detail, err = f.service.GetItem(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Nil(t, detail.Item.DeletedAt)
	assert.True(t, detail.Item.IsActive)
	assert.Equal(t, models.StatusConfirmed, detail.Item.Status)
}

func TestSoftDelete_TwiceFails(t *testing.T) {
	f := newLibraryFixture()
	item := f.seedConfirmable(t)

	require.NoError(t, f.service.SoftDeleteItem(context.Background(), item.ID, "carol"))
	err := f.service.SoftDeleteItem(context.Background(), item.ID, "carol")
	assert.Error(t, err)
}

func TestRestoreItem_NotDeletedFails(t *testing.T) {
	f := newLibraryFixture()
	item := f.seedConfirmable(t)

	assert.Error(t, f.service.RestoreItem(context.Background(), item.ID))
}

func TestHardDelete_RemovesItemAndFactors(t *testing.T) {
	f := newLibraryFixture()
	item := f.seedConfirmable(t)

	require.NoError(t, f.service.HardDeleteItem(context.Background(), item.ID))

	_, err := f.service.GetItem(context.Background(), item.ID)
	var notFoundErr *NotFoundError
	assert.ErrorAs(t, err, &notFoundErr)

	remaining, err := f.factors.ListByItem(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestCloneItem_DeepCopiesFactors(t *testing.T) {
	f := newLibraryFixture()
	item := f.seedConfirmable(t)
	_, err := f.service.ConfirmItem(context.Background(), item.ID, "bob")
	require.NoError(t, err)

	detail, err := f.service.CloneItem(context.Background(), item.ID, "carol")

	require.NoError(t, err)
	clone := detail.Item
	assert.NotEqual(t, item.ID, clone.ID)
	assert.Equal(t, item.Code, clone.Code)
	assert.Equal(t, models.StatusDraft, clone.Status, "clone starts in draft regardless of source status")
	assert.Equal(t, 1, clone.Version)
	assert.False(t, clone.IsActive)

	require.Len(t, detail.Factors, 1)
	sourceFactors, err := f.factors.ListByItem(context.Background(), item.ID)
	require.NoError(t, err)
	require.Len(t, sourceFactors, 1)
	assert.NotEqual(t, sourceFactors[0].ID, detail.Factors[0].ID)
	assert.Equal(t, sourceFactors[0].Rate, detail.Factors[0].Rate)

	// Mutating the clone's factor must not touch the source
	detail.Factors[0].Rate = 99
	_, err = f.service.GetItem(context.Background(), item.ID)
	require.NoError(t, err)
	sourceFactors, _ = f.factors.ListByItem(context.Background(), item.ID)
	assert.Equal(t, 8.5, sourceFactors[0].Rate)
}

func TestAddFactor_DraftOnly(t *testing.T) {
	f := newLibraryFixture()
	item := f.seedConfirmable(t)
	_, err := f.service.ConfirmItem(context.Background(), item.ID, "bob")
	require.NoError(t, err)

	_, err = f.service.AddFactor(context.Background(), item.ID, &models.Factor{
		Kind: models.FactorLabor, Quantity: 1, Rate: 20,
	})

	assert.Error(t, err)
}

func TestAddFactor_RejectsNegativeValues(t *testing.T) {
	f := newLibraryFixture()
	item := f.seedConfirmable(t)

	_, err := f.service.AddFactor(context.Background(), item.ID, &models.Factor{
		Kind: models.FactorLabor, Quantity: -1, Rate: -20,
	})

	var rateErr *RateValidationError
	require.ErrorAs(t, err, &rateErr)
	assert.Len(t, rateErr.Errors, 2)
}

func TestBulkUpdateStatus_IndependentOutcomes(t *testing.T) {
	f := newLibraryFixture()
	good := f.seedConfirmable(t)
	incomplete, err := f.service.CreateItem(context.Background(), &CreateItemRequest{Name: "Incomplete"})
	require.NoError(t, err)
	missing := uuid.New()

	ids := []uuid.UUID{good.ID, incomplete.ID, missing}
	result, err := f.service.BulkUpdateStatus(context.Background(), ids, models.StatusConfirmed, "bob")

	require.NoError(t, err)
	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, len(ids), result.Successful+result.Failed)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], incomplete.ID.String())
	assert.Contains(t, result.Errors[1], missing.String())

	// The good item really was confirmed
	detail, err := f.service.GetItem(context.Background(), good.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, detail.Item.Status)
}

func TestBulkDeleteAndRestore(t *testing.T) {
	f := newLibraryFixture()
	first := f.seedConfirmable(t)
	second := f.seedConfirmable(t)

	result, err := f.service.BulkDelete(context.Background(), []uuid.UUID{first.ID, second.ID}, "carol")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Successful)

	// Restoring the two plus one unknown id
	result, err = f.service.BulkRestore(context.Background(), []uuid.UUID{first.ID, second.ID, uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 1, result.Failed)
}

func TestHistory_NewestFirstWithDiffs(t *testing.T) {
	f := newLibraryFixture()
	item := f.seedConfirmable(t)

	for _, name := range []string{"Edit one", "Edit two"} {
		n := name
		_, err := f.service.UpdateItem(context.Background(), item.ID, &UpdateItemRequest{Name: &n})
		require.NoError(t, err)
	}

	entries, err := f.service.History(context.Background(), item.ID)

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 2, entries[0].VersionNumber)
	assert.Equal(t, 1, entries[1].VersionNumber)

	// The newest entry's diff names the changed field; the oldest has none
	assert.Contains(t, string(entries[0].Changes), "name")
	assert.Empty(t, entries[1].Changes)
}

func TestRestoreFromVersion_AppendsExactlyOneSnapshot(t *testing.T) {
	f := newLibraryFixture()
	item := f.seedConfirmable(t)
	originalName := item.Name

	name := "Renamed"
	_, err := f.service.UpdateItem(context.Background(), item.ID, &UpdateItemRequest{Name: &name})
	require.NoError(t, err)

	versions, err := f.versions.ListByItem(context.Background(), item.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)

	restored, err := f.service.RestoreFromVersion(context.Background(), item.ID, versions[0].ID, "bob")

	require.NoError(t, err)
	assert.Equal(t, originalName, restored.Name)
	assert.Equal(t, 3, restored.Version, "restore is a normal update")
	assert.Equal(t, 2, f.versions.count(item.ID), "exactly one snapshot per restore")
}

func TestRestoreFromVersion_RejectsForeignVersion(t *testing.T) {
	f := newLibraryFixture()
	first := f.seedConfirmable(t)
	second := f.seedConfirmable(t)

	name := "Renamed"
	_, err := f.service.UpdateItem(context.Background(), first.ID, &UpdateItemRequest{Name: &name})
	require.NoError(t, err)

	versions, err := f.versions.ListByItem(context.Background(), first.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)

	_, err = f.service.RestoreFromVersion(context.Background(), second.ID, versions[0].ID, "bob")

	var notFoundErr *NotFoundError
	assert.ErrorAs(t, err, &notFoundErr)
}

func TestLedgerFailure_DoesNotBlockUpdate(t *testing.T) {
	f := newLibraryFixture()
	item := f.seedConfirmable(t)
	f.versions.createErr = assert.AnError

	name := "Still updates"
	updated, err := f.service.UpdateItem(context.Background(), item.ID, &UpdateItemRequest{Name: &name})

	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, 0, f.versions.count(item.ID))
}
