package models

import (
	"time"

	"github.com/google/uuid"
)

// FactorKind distinguishes the three factor tables
type FactorKind string

const (
	FactorMaterial  FactorKind = "material"
	FactorLabor     FactorKind = "labor"
	FactorEquipment FactorKind = "equipment"
)

// FactorKinds lists all kinds in a stable order
var FactorKinds = []FactorKind{FactorMaterial, FactorLabor, FactorEquipment}

// Valid reports whether k is a known factor kind
func (k FactorKind) Valid() bool {
	switch k {
	case FactorMaterial, FactorLabor, FactorEquipment:
		return true
	}
	return false
}

// Table returns the storage table for the kind
func (k FactorKind) Table() string {
	switch k {
	case FactorMaterial:
		return "material_factors"
	case FactorLabor:
		return "labor_factors"
	case FactorEquipment:
		return "equipment_factors"
	}
	return ""
}

// Factor is a denormalized snapshot of a catalog rate item owned by exactly
// one library item. Quantity holds hours for labor and equipment factors.
type Factor struct {
	ID            uuid.UUID  `json:"id"`
	LibraryItemID uuid.UUID  `json:"library_item_id"`
	Kind          FactorKind `json:"kind"`
	ItemCode      string     `json:"item_code"`
	ItemName      string     `json:"item_name"`
	Unit          string     `json:"unit"`
	Quantity      float64    `json:"quantity"`
	Rate          float64    `json:"rate"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Clone returns a copy of f owned by newParent with a fresh id and reset timestamps
func (f *Factor) Clone(newParent uuid.UUID, now time.Time) *Factor {
	clone := *f
	clone.ID = uuid.New()
	clone.LibraryItemID = newParent
	clone.CreatedAt = now
	clone.UpdatedAt = now
	return &clone
}
