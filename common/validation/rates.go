package validation

import (
	"fmt"

	"github.com/sitewise/estimator/common/models"
)

// RateLimits holds the thresholds for rate validation
type RateLimits struct {
	// MaxRate is the absolute ceiling above which a rate draws a warning
	MaxRate float64

	// DeviationPercent is the allowed deviation from the catalog reference
	// rate before a warning is raised
	DeviationPercent float64
}

// ValidateRates checks every entry of a rates row against the limits.
// Negative rates are hard errors; ceiling and deviation breaches are warnings.
// reference maps category to the catalog's reference rates and may be nil.
func ValidateRates(rates *models.ProjectRates, reference map[models.RateCategory]models.RateMap, limits RateLimits) Result {
	result := Result{IsValid: true}

	for _, category := range models.RateCategories {
		for code, rate := range rates.Category(category) {
			if rate < 0 {
				result.addError(fmt.Sprintf("%s rate for %s is negative (%g)", category, code, rate))
				continue
			}
			if rate > limits.MaxRate {
				result.addWarning(fmt.Sprintf("%s rate for %s exceeds ceiling of %g (%g)", category, code, limits.MaxRate, rate))
			}
			if reference == nil {
				continue
			}
			ref, ok := reference[category][code]
			if !ok || ref == 0 {
				continue
			}
			deviation := (rate - ref) / ref * 100
			if deviation < 0 {
				deviation = -deviation
			}
			if deviation > limits.DeviationPercent {
				result.addWarning(fmt.Sprintf("%s rate for %s deviates %.0f%% from catalog reference %g", category, code, deviation, ref))
			}
		}
	}

	return result
}
