package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sitewise/estimator/common/models"
)

func TestPolicyEvaluator_SatisfiedRuleNoWarning(t *testing.T) {
	evaluator, errs := NewPolicyEvaluator([]string{
		`item.wastage_percentage <= 50.0`,
	})
	require.Empty(t, errs)
	require.Equal(t, 1, evaluator.RuleCount())

	warnings := evaluator.Check(&models.LibraryItem{WastagePercentage: 10})
	assert.Empty(t, warnings)
}

func TestPolicyEvaluator_ViolatedRuleWarns(t *testing.T) {
	evaluator, errs := NewPolicyEvaluator([]string{
		`item.wastage_percentage <= 50.0`,
		`item.name != ""`,
	})
	require.Empty(t, errs)

	warnings := evaluator.Check(&models.LibraryItem{WastagePercentage: 80})

	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "wastage_percentage")
	assert.Contains(t, warnings[1], `item.name != ""`)
}

func TestPolicyEvaluator_BrokenRuleSkipped(t *testing.T) {
	evaluator, errs := NewPolicyEvaluator([]string{
		`this is not CEL`,
		`item.unit != ""`,
	})

	// The broken rule is reported but the good one still works
	require.Len(t, errs, 1)
	assert.Equal(t, 1, evaluator.RuleCount())

	warnings := evaluator.Check(&models.LibraryItem{Unit: "m3"})
	assert.Empty(t, warnings)
}
