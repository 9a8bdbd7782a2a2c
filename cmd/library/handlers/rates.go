package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sitewise/estimator/cmd/library/middleware"
	"github.com/sitewise/estimator/cmd/library/service"
	"github.com/sitewise/estimator/common/bootstrap"
	"github.com/sitewise/estimator/common/models"
)

// RatesHandler handles HTTP requests for project rates
type RatesHandler struct {
	components *bootstrap.Components
	rates      *service.RatesService
}

// NewRatesHandler creates a new rates handler
func NewRatesHandler(components *bootstrap.Components, rates *service.RatesService) *RatesHandler {
	return &RatesHandler{
		components: components,
		rates:      rates,
	}
}

// Current returns the project's rates effective at as_of (now when omitted)
// GET /api/v1/projects/:id/rates?as_of=2025-06-01T00:00:00Z
func (h *RatesHandler) Current(c echo.Context) error {
	ctx := c.Request().Context()

	projectID, err := projectID(c)
	if err != nil {
		return badRequest(c, "invalid project id")
	}

	var asOf *time.Time
	if raw := c.QueryParam("as_of"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return badRequest(c, "invalid as_of timestamp, expected RFC 3339")
		}
		asOf = &parsed
	}

	rates, err := h.rates.Current(ctx, projectID, asOf)
	if err != nil {
		h.components.Logger.Error("failed to load project rates", "project_id", projectID, "error", err)
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusOK, rates)
}

// Set replaces the project's rate set with a new row
// PUT /api/v1/projects/:id/rates
func (h *RatesHandler) Set(c echo.Context) error {
	ctx := c.Request().Context()

	projectID, err := projectID(c)
	if err != nil {
		return badRequest(c, "invalid project id")
	}

	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	var req service.SetRatesRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	req.CreatedBy = actor

	rates, warnings, err := h.rates.Set(ctx, projectID, &req)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"rates":    rates,
		"warnings": warnings,
	})
}

// UpdateOverride changes a single code's override
// PATCH /api/v1/projects/:id/rates/:category/:code
func (h *RatesHandler) UpdateOverride(c echo.Context) error {
	ctx := c.Request().Context()

	projectID, err := projectID(c)
	if err != nil {
		return badRequest(c, "invalid project id")
	}
	category := models.RateCategory(c.Param("category"))
	if !category.Valid() {
		return badRequest(c, "invalid rate category: "+c.Param("category"))
	}
	code := c.Param("code")
	if code == "" {
		return badRequest(c, "code is required")
	}

	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	var req struct {
		Rate   float64 `json:"rate"`
		Reason string  `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	rates, err := h.rates.UpdateOverride(ctx, projectID, category, code, req.Rate, req.Reason, actor)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusOK, rates)
}

// EffectiveRate resolves one code through the fallback chain
// GET /api/v1/projects/:id/rates/:category/:code
func (h *RatesHandler) EffectiveRate(c echo.Context) error {
	ctx := c.Request().Context()

	projectID, err := projectID(c)
	if err != nil {
		return badRequest(c, "invalid project id")
	}
	category := models.RateCategory(c.Param("category"))
	if !category.Valid() {
		return badRequest(c, "invalid rate category: "+c.Param("category"))
	}

	rate, err := h.rates.EffectiveRate(ctx, projectID, category, c.Param("code"))
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusOK, rate)
}

// Compare reconciles this project's current rates against another project's
// GET /api/v1/projects/:id/rates/compare/:other_id
func (h *RatesHandler) Compare(c echo.Context) error {
	ctx := c.Request().Context()

	sourceID, err := projectID(c)
	if err != nil {
		return badRequest(c, "invalid project id")
	}
	targetID, err := uuid.Parse(c.Param("other_id"))
	if err != nil {
		return badRequest(c, "invalid comparison project id")
	}

	comparisons, err := h.rates.Compare(ctx, sourceID, targetID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"source_project_id": sourceID,
		"target_project_id": targetID,
		"comparisons":       comparisons,
		"count":             len(comparisons),
	})
}

// Import merges another project's rates into this one
// POST /api/v1/projects/:id/rates/import
func (h *RatesHandler) Import(c echo.Context) error {
	ctx := c.Request().Context()

	targetID, err := projectID(c)
	if err != nil {
		return badRequest(c, "invalid project id")
	}

	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	var req struct {
		SourceProjectID uuid.UUID                 `json:"source_project_id"`
		Categories      []models.RateCategory     `json:"categories"`
		Resolution      models.ConflictResolution `json:"conflict_resolution"`
		EffectiveDate   *time.Time                `json:"effective_date"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.SourceProjectID == uuid.Nil {
		return badRequest(c, "source_project_id is required")
	}
	if !req.Resolution.Valid() {
		return badRequest(c, "invalid conflict_resolution: "+string(req.Resolution))
	}

	result, err := h.rates.Import(ctx, &service.ImportOptions{
		SourceProjectID: req.SourceProjectID,
		TargetProjectID: targetID,
		Categories:      req.Categories,
		Resolution:      req.Resolution,
		EffectiveDate:   req.EffectiveDate,
		ImportedBy:      actor,
	})
	if err != nil {
		h.components.Logger.Error("rates import failed",
			"source", req.SourceProjectID, "target", targetID, "error", err)
		// A failed persist still carries the error tallies
		if result != nil {
			return c.JSON(http.StatusInternalServerError, map[string]interface{}{
				"error":  "failed to persist imported rates",
				"result": result,
			})
		}
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

// History returns the project's rates rows with change counts
// GET /api/v1/projects/:id/rates/history
func (h *RatesHandler) History(c echo.Context) error {
	ctx := c.Request().Context()

	projectID, err := projectID(c)
	if err != nil {
		return badRequest(c, "invalid project id")
	}

	entries, err := h.rates.History(ctx, projectID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"history": entries,
		"count":   len(entries),
	})
}

func projectID(c echo.Context) (uuid.UUID, error) {
	return uuid.Parse(c.Param("id"))
}
