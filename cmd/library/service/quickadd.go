package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sitewise/estimator/cmd/library/repository"
	"github.com/sitewise/estimator/common/models"
)

// QuickAddRequest creates a draft item straight from an estimate row. It
// trades draft quality for speed: the caller supplies whatever hierarchy
// context it has and optional rates that become generic placeholder factors.
type QuickAddRequest struct {
	Name              string     `json:"name"`
	Unit              string     `json:"unit"`
	WastagePercentage float64    `json:"wastage_percentage"`

	// Assembly fallback chain: explicit assembly, else first assembly in the
	// section, else first assembly in the division.
	AssemblyID *uuid.UUID `json:"assembly_id"`
	SectionID  *uuid.UUID `json:"section_id"`
	DivisionID *uuid.UUID `json:"division_id"`

	// Optional rates; each one present yields a generic factor of that kind
	MaterialRate  *float64 `json:"material_rate"`
	LabourRate    *float64 `json:"labour_rate"`
	EquipmentRate *float64 `json:"equipment_rate"`

	// Optional link back to the originating estimate element
	SourceElementID *uuid.UUID `json:"source_element_id"`

	CreatedBy string `json:"created_by"`
}

// QuickAddFromEstimate creates a lower-quality draft in one call. The assembly
// is resolved through the fallback chain; failing the whole chain is an
// AssemblyResolutionError. Each provided rate attaches one generic factor
// tagged as requiring specification, with a placeholder code unique to the
// new item so repeated quick-adds never collide.
func (s *LibraryService) QuickAddFromEstimate(ctx context.Context, req *QuickAddRequest) (*ItemDetail, error) {
	if req.Name == "" {
		return nil, &ValidationError{Errors: []string{"Item name is required"}}
	}

	assemblyID, err := s.resolveAssembly(ctx, req)
	if err != nil {
		return nil, err
	}

	item, err := s.CreateItem(ctx, &CreateItemRequest{
		Name:              req.Name,
		Unit:              req.Unit,
		WastagePercentage: req.WastagePercentage,
		AssemblyID:        &assemblyID,
		SourceElementID:   req.SourceElementID,
		CreatedBy:         req.CreatedBy,
	})
	if err != nil {
		return nil, err
	}

	suffix := strings.ToUpper(item.ID.String()[:8])
	now := time.Now().UTC()

	var factors []*models.Factor
	addGeneric := func(kind models.FactorKind, tag string, rate float64) error {
		factor := &models.Factor{
			ID:            uuid.New(),
			LibraryItemID: item.ID,
			Kind:          kind,
			ItemCode:      fmt.Sprintf("GEN-%s-%s", tag, suffix),
			ItemName:      fmt.Sprintf("Generic %s (requires specification)", kind),
			Unit:          req.Unit,
			Quantity:      1,
			Rate:          rate,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := validateFactorValues(factor); err != nil {
			return err
		}
		if err := s.factors.Create(ctx, factor); err != nil {
			return err
		}
		factors = append(factors, factor)
		return nil
	}

	if req.MaterialRate != nil {
		if err := addGeneric(models.FactorMaterial, "MAT", *req.MaterialRate); err != nil {
			return nil, err
		}
	}
	if req.LabourRate != nil {
		if err := addGeneric(models.FactorLabor, "LAB", *req.LabourRate); err != nil {
			return nil, err
		}
	}
	if req.EquipmentRate != nil {
		if err := addGeneric(models.FactorEquipment, "EQP", *req.EquipmentRate); err != nil {
			return nil, err
		}
	}

	s.log.Info("library item quick-added",
		"item_id", item.ID, "code", item.Code, "factors", len(factors))

	return &ItemDetail{Item: item, Factors: factors}, nil
}

func (s *LibraryService) resolveAssembly(ctx context.Context, req *QuickAddRequest) (uuid.UUID, error) {
	if req.AssemblyID != nil {
		if _, err := s.hierarchy.GetAssemblyPath(ctx, *req.AssemblyID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return uuid.Nil, &AssemblyResolutionError{Detail: fmt.Sprintf("assembly %s does not exist", req.AssemblyID)}
			}
			return uuid.Nil, err
		}
		return *req.AssemblyID, nil
	}

	if req.SectionID != nil {
		id, err := s.hierarchy.FirstAssemblyBySection(ctx, *req.SectionID)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return uuid.Nil, err
		}
	}

	if req.DivisionID != nil {
		id, err := s.hierarchy.FirstAssemblyByDivision(ctx, *req.DivisionID)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return uuid.Nil, err
		}
	}

	return uuid.Nil, &AssemblyResolutionError{Detail: "no assembly, section or division yielded an assembly"}
}
