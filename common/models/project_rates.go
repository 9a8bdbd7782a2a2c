package models

import (
	"time"

	"github.com/google/uuid"
)

// RateCategory identifies one of the three override maps on a rates row
type RateCategory string

const (
	CategoryMaterials RateCategory = "materials"
	CategoryLabour    RateCategory = "labour"
	CategoryEquipment RateCategory = "equipment"
)

// RateCategories lists all categories in a stable order
var RateCategories = []RateCategory{CategoryMaterials, CategoryLabour, CategoryEquipment}

// Valid reports whether c is a known category
func (c RateCategory) Valid() bool {
	switch c {
	case CategoryMaterials, CategoryLabour, CategoryEquipment:
		return true
	}
	return false
}

// RateMap maps item code to an override rate
type RateMap map[string]float64

// Clone returns a copy of the map
func (m RateMap) Clone() RateMap {
	out := make(RateMap, len(m))
	for code, rate := range m {
		out[code] = rate
	}
	return out
}

// ProjectRates is one immutable row of project rate overrides. Updates insert
// a new row with a new effective date; history is never mutated.
type ProjectRates struct {
	ID            uuid.UUID  `json:"id"`
	ProjectID     uuid.UUID  `json:"project_id"`
	Materials     RateMap    `json:"materials"`
	Labour        RateMap    `json:"labour"`
	Equipment     RateMap    `json:"equipment"`
	EffectiveDate time.Time  `json:"effective_date"`
	ExpiryDate    *time.Time `json:"expiry_date,omitempty"`
	ChangeReason  string     `json:"change_reason,omitempty"`
	CreatedBy     string     `json:"created_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Category returns the map for the given category
func (r *ProjectRates) Category(c RateCategory) RateMap {
	switch c {
	case CategoryMaterials:
		return r.Materials
	case CategoryLabour:
		return r.Labour
	case CategoryEquipment:
		return r.Equipment
	}
	return nil
}

// SetCategory replaces the map for the given category
func (r *ProjectRates) SetCategory(c RateCategory, m RateMap) {
	switch c {
	case CategoryMaterials:
		r.Materials = m
	case CategoryLabour:
		r.Labour = m
	case CategoryEquipment:
		r.Equipment = m
	}
}

// EmptySnapshot returns a synthetic all-empty rates row for projects that have
// no rates yet. It is never persisted.
func EmptySnapshot(projectID uuid.UUID) *ProjectRates {
	return &ProjectRates{
		ProjectID: projectID,
		Materials: RateMap{},
		Labour:    RateMap{},
		Equipment: RateMap{},
	}
}

// RateSource tags where an effective rate came from
type RateSource string

const (
	SourceProject RateSource = "project"
	SourceCatalog RateSource = "catalog"
	SourceDefault RateSource = "default"
)

// EffectiveRate is a resolved rate with its provenance, so callers can tell an
// intentional zero override apart from "nothing found".
type EffectiveRate struct {
	Code   string     `json:"code"`
	Rate   float64    `json:"rate"`
	Source RateSource `json:"source"`
}

// ComparisonAction classifies one (code, category) pair in a rate comparison
type ComparisonAction string

const (
	ActionAdd       ComparisonAction = "add"
	ActionRemove    ComparisonAction = "remove"
	ActionUpdate    ComparisonAction = "update"
	ActionUnchanged ComparisonAction = "unchanged"
)

// RateComparison is one row of a source-to-target comparison. Action reads as
// "what changes in the source if the target's rates were imported into it":
// add means the code exists only in the target, remove only in the source.
type RateComparison struct {
	Category          RateCategory     `json:"category"`
	Code              string           `json:"code"`
	SourceRate        *float64         `json:"source_rate,omitempty"`
	TargetRate        *float64         `json:"target_rate,omitempty"`
	Action            ComparisonAction `json:"action"`
	Difference        float64          `json:"difference"`
	PercentDifference float64          `json:"percent_difference"`
}

// ConflictResolution selects the import policy for codes present in both projects
type ConflictResolution string

const (
	ResolutionOverwrite ConflictResolution = "overwrite"
	ResolutionSkip      ConflictResolution = "skip"
	ResolutionMerge     ConflictResolution = "merge"
)

// Valid reports whether p is a known policy
func (p ConflictResolution) Valid() bool {
	switch p {
	case ResolutionOverwrite, ResolutionSkip, ResolutionMerge:
		return true
	}
	return false
}

// CategoryImportStats counts per-category outcomes of an import
type CategoryImportStats struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
}

// ImportResult aggregates the outcome of a rates import
type ImportResult struct {
	Imported   int                                  `json:"imported"`
	Skipped    int                                  `json:"skipped"`
	Errors     int                                  `json:"errors"`
	Categories map[RateCategory]CategoryImportStats `json:"categories"`
	Warnings   []string                             `json:"warnings"`
}

// RateHistoryEntry is a rates row enriched with per-category change counts
// against the previous row in effective-date order.
type RateHistoryEntry struct {
	ProjectRates
	MaterialChanges  int `json:"material_changes"`
	LabourChanges    int `json:"labour_changes"`
	EquipmentChanges int `json:"equipment_changes"`
}
