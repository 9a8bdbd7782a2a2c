package models

import (
	"time"

	"github.com/google/uuid"
)

// ItemStatus is the lifecycle status of a library item
type ItemStatus string

const (
	StatusDraft     ItemStatus = "draft"
	StatusConfirmed ItemStatus = "confirmed"
	StatusActual    ItemStatus = "actual"
)

// Valid reports whether s is a known status
func (s ItemStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusConfirmed, StatusActual:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving from s to target.
// Forward moves are draft -> confirmed -> actual; the only backward move is an
// explicit revert to draft.
func (s ItemStatus) CanTransitionTo(target ItemStatus) bool {
	switch target {
	case StatusConfirmed:
		return s == StatusDraft
	case StatusActual:
		return s == StatusConfirmed
	case StatusDraft:
		return s == StatusConfirmed || s == StatusActual
	}
	return false
}

// LibraryItem is a catalog entry in the estimating library.
// Code follows the hierarchy DIVISION.SECTION.ASSEMBLY.NN.
type LibraryItem struct {
	ID                uuid.UUID  `json:"id"`
	Code              string     `json:"code"`
	Name              string     `json:"name"`
	Description       string     `json:"description"`
	Unit              string     `json:"unit"`
	WastagePercentage float64    `json:"wastage_percentage"`
	ProductivityNotes string     `json:"productivity_notes"`
	Status            ItemStatus `json:"status"`
	Version           int        `json:"version"`
	IsActive          bool       `json:"is_active"`
	AssemblyID        *uuid.UUID `json:"assembly_id"`

	// Lifecycle metadata
	ConfirmedAt       *time.Time `json:"confirmed_at,omitempty"`
	ConfirmedBy       string     `json:"confirmed_by,omitempty"`
	ActualLibraryDate *time.Time `json:"actual_library_date,omitempty"`
	DeletedAt         *time.Time `json:"deleted_at,omitempty"`
	DeletedBy         string     `json:"deleted_by,omitempty"`

	// Optional link back to the estimate element that quick-added this item
	SourceElementID *uuid.UUID `json:"source_element_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Document returns the item as a generic map for policy evaluation
func (i *LibraryItem) Document() map[string]interface{} {
	return map[string]interface{}{
		"code":               i.Code,
		"name":               i.Name,
		"description":        i.Description,
		"unit":               i.Unit,
		"wastage_percentage": i.WastagePercentage,
		"productivity_notes": i.ProductivityNotes,
		"status":             string(i.Status),
		"is_active":          i.IsActive,
	}
}
