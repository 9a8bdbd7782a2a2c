package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sitewise/estimator/common/models"
)

func float(v float64) *float64 { return &v }

func TestQuickAdd_ExplicitAssembly(t *testing.T) {
	f := newLibraryFixture()
	assemblyID := f.seedAssembly("03", "20", "15")
	sourceID := uuid.New()

	detail, err := f.service.QuickAddFromEstimate(context.Background(), &QuickAddRequest{
		Name:            "Formwork to columns",
		Unit:            "m2",
		AssemblyID:      &assemblyID,
		MaterialRate:    float(12.5),
		LabourRate:      float(30),
		SourceElementID: &sourceID,
		CreatedBy:       "alice",
	})

	require.NoError(t, err)
	item := detail.Item
	assert.Equal(t, models.StatusDraft, item.Status)
	assert.Equal(t, "03.20.15.01", item.Code)
	require.NotNil(t, item.SourceElementID)
	assert.Equal(t, sourceID, *item.SourceElementID)

	// One generic factor per provided rate, none for equipment
	require.Len(t, detail.Factors, 2)
	suffix := strings.ToUpper(item.ID.String()[:8])
	assert.Equal(t, fmt.Sprintf("GEN-MAT-%s", suffix), detail.Factors[0].ItemCode)
	assert.Equal(t, fmt.Sprintf("GEN-LAB-%s", suffix), detail.Factors[1].ItemCode)
	assert.Contains(t, detail.Factors[0].ItemName, "requires specification")
	assert.Equal(t, 12.5, detail.Factors[0].Rate)
	assert.Equal(t, 30.0, detail.Factors[1].Rate)
}

func TestQuickAdd_FallsBackToSectionThenDivision(t *testing.T) {
	f := newLibraryFixture()
	assemblyID := f.seedAssembly("03", "20", "15")
	sectionID := uuid.New()
	divisionID := uuid.New()
	f.hierarchy.sectionAssembly[sectionID] = assemblyID
	f.hierarchy.divisionAssembly[divisionID] = assemblyID

	// Section resolves
	detail, err := f.service.QuickAddFromEstimate(context.Background(), &QuickAddRequest{
		Name:      "Section fallback",
		SectionID: &sectionID,
	})
	require.NoError(t, err)
	require.NotNil(t, detail.Item.AssemblyID)
	assert.Equal(t, assemblyID, *detail.Item.AssemblyID)

	// Unknown section falls through to the division
	unknownSection := uuid.New()
	detail, err = f.service.QuickAddFromEstimate(context.Background(), &QuickAddRequest{
		Name:       "Division fallback",
		SectionID:  &unknownSection,
		DivisionID: &divisionID,
	})
	require.NoError(t, err)
	require.NotNil(t, detail.Item.AssemblyID)
	assert.Equal(t, assemblyID, *detail.Item.AssemblyID)
}

func TestQuickAdd_ExhaustedChainFails(t *testing.T) {
	f := newLibraryFixture()
	divisionID := uuid.New()

	_, err := f.service.QuickAddFromEstimate(context.Background(), &QuickAddRequest{
		Name:       "Nowhere to go",
		DivisionID: &divisionID,
	})

	var resolutionErr *AssemblyResolutionError
	assert.ErrorAs(t, err, &resolutionErr)
}

func TestQuickAdd_PlaceholderCodesUniquePerItem(t *testing.T) {
	f := newLibraryFixture()
	assemblyID := f.seedAssembly("03", "20", "15")

	first, err := f.service.QuickAddFromEstimate(context.Background(), &QuickAddRequest{
		Name:         "First",
		AssemblyID:   &assemblyID,
		MaterialRate: float(10),
	})
	require.NoError(t, err)

	second, err := f.service.QuickAddFromEstimate(context.Background(), &QuickAddRequest{
		Name:         "Second",
		AssemblyID:   &assemblyID,
		MaterialRate: float(10),
	})
	require.NoError(t, err)

	assert.NotEqual(t, first.Factors[0].ItemCode, second.Factors[0].ItemCode)
}

func TestQuickAdd_NegativeRateRejected(t *testing.T) {
	f := newLibraryFixture()
	assemblyID := f.seedAssembly("03", "20", "15")

	_, err := f.service.QuickAddFromEstimate(context.Background(), &QuickAddRequest{
		Name:         "Bad rate",
		AssemblyID:   &assemblyID,
		MaterialRate: float(-1),
	})

	var rateErr *RateValidationError
	assert.ErrorAs(t, err, &rateErr)
}
