package validation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/sitewise/estimator/common/models"
)

func testLimits() RateLimits {
	return RateLimits{MaxRate: 10000, DeviationPercent: 100}
}

func ratesWith(materials models.RateMap) *models.ProjectRates {
	return &models.ProjectRates{
		ProjectID: uuid.New(),
		Materials: materials,
		Labour:    models.RateMap{},
		Equipment: models.RateMap{},
	}
}

func TestValidateRates_NegativeRateIsError(t *testing.T) {
	result := ValidateRates(ratesWith(models.RateMap{"CONC-001": -5}), nil, testLimits())

	assert.False(t, result.IsValid)
	assert.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "CONC-001")
	assert.Contains(t, result.Errors[0], "negative")
}

func TestValidateRates_CeilingBreachIsWarning(t *testing.T) {
	result := ValidateRates(ratesWith(models.RateMap{"CONC-001": 50000}), nil, testLimits())

	assert.True(t, result.IsValid)
	assert.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "exceeds ceiling")
}

func TestValidateRates_DeviationFromReference(t *testing.T) {
	reference := map[models.RateCategory]models.RateMap{
		models.CategoryMaterials: {"CONC-001": 100},
	}

	// 400% above reference, past the 100% limit
	result := ValidateRates(ratesWith(models.RateMap{"CONC-001": 500}), reference, testLimits())

	assert.True(t, result.IsValid)
	assert.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "deviates")
}

func TestValidateRates_WithinDeviationNoWarning(t *testing.T) {
	reference := map[models.RateCategory]models.RateMap{
		models.CategoryMaterials: {"CONC-001": 100},
	}

	result := ValidateRates(ratesWith(models.RateMap{"CONC-001": 150}), reference, testLimits())

	assert.True(t, result.IsValid)
	assert.Empty(t, result.Warnings)
}

func TestValidateRates_ZeroRateAllowed(t *testing.T) {
	result := ValidateRates(ratesWith(models.RateMap{"CONC-001": 0}), nil, testLimits())

	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}
