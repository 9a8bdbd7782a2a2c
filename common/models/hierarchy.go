package models

import (
	"time"

	"github.com/google/uuid"
)

// Division is the top level of the catalog hierarchy
type Division struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Section belongs to a division
type Section struct {
	ID         uuid.UUID `json:"id"`
	DivisionID uuid.UUID `json:"division_id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
}

// Assembly belongs to a section; library items hang off assemblies
type Assembly struct {
	ID        uuid.UUID `json:"id"`
	SectionID uuid.UUID `json:"section_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// AssemblyPath carries the codes needed to build an item code
// DIVISION.SECTION.ASSEMBLY.NN
type AssemblyPath struct {
	AssemblyID   uuid.UUID `json:"assembly_id"`
	AssemblyCode string    `json:"assembly_code"`
	SectionCode  string    `json:"section_code"`
	DivisionCode string    `json:"division_code"`
}
