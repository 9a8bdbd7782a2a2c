package validation

import (
	"github.com/sitewise/estimator/common/models"
)

// Result accumulates validation outcomes. Every rule is evaluated; nothing
// short-circuits, so Errors lists every violated rule.
type Result struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (r *Result) addError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.IsValid = false
}

func (r *Result) addWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// ItemInput carries the item plus the store facts the rules need. The caller
// resolves factor existence and code uniqueness; the rules themselves stay pure.
type ItemInput struct {
	Item *models.LibraryItem

	// HasFactors is true when the item owns at least one material, labor or
	// equipment factor.
	HasFactors bool

	// CodeTaken is true when another active item already uses the item's code
	// (exact, case-sensitive match).
	CodeTaken bool
}

// ValidateItem checks an item's readiness for confirmation. Drafts are allowed
// to be incomplete, so creation never calls this.
func ValidateItem(in ItemInput) Result {
	result := Result{IsValid: true}
	item := in.Item

	if item.Code == "" {
		result.addError("Item code is required")
	}
	if item.Name == "" {
		result.addError("Item name is required")
	}
	if item.Unit == "" {
		result.addError("Item unit is required")
	}
	if item.AssemblyID == nil {
		result.addError("Item must be linked to an assembly")
	}
	if !in.HasFactors {
		result.addError("Item must have at least one factor (material, labor, or equipment)")
	}
	if in.CodeTaken {
		result.addError("Item code is already used by another active item")
	}

	if item.Description == "" {
		result.addWarning("Item has no description")
	}
	if item.ProductivityNotes == "" {
		result.addWarning("Item has no productivity notes")
	}

	return result
}
