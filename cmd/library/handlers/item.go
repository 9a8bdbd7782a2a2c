package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sitewise/estimator/cmd/library/middleware"
	"github.com/sitewise/estimator/cmd/library/repository"
	"github.com/sitewise/estimator/cmd/library/service"
	"github.com/sitewise/estimator/common/bootstrap"
	"github.com/sitewise/estimator/common/models"
)

// ItemHandler handles HTTP requests for library items
type ItemHandler struct {
	components *bootstrap.Components
	library    *service.LibraryService
}

// NewItemHandler creates a new item handler
func NewItemHandler(components *bootstrap.Components, library *service.LibraryService) *ItemHandler {
	return &ItemHandler{
		components: components,
		library:    library,
	}
}

// CreateItem creates a new draft item
// POST /api/v1/library-items
func (h *ItemHandler) CreateItem(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	var req service.CreateItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	req.CreatedBy = actor

	item, err := h.library.CreateItem(ctx, &req)
	if err != nil {
		h.components.Logger.Error("failed to create item", "error", err)
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, item)
}

// GetItem returns an item with its factors
// GET /api/v1/library-items/:id
func (h *ItemHandler) GetItem(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := itemID(c)
	if err != nil {
		return badRequest(c, "invalid item id")
	}

	detail, err := h.library.GetItem(ctx, id)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusOK, detail)
}

// ListItems returns items matching the query filters
// GET /api/v1/library-items?status=draft&is_active=true&search=concrete
func (h *ItemHandler) ListItems(c echo.Context) error {
	ctx := c.Request().Context()

	filter := repository.ListFilter{
		Search: c.QueryParam("search"),
	}

	if raw := c.QueryParam("status"); raw != "" {
		status := models.ItemStatus(raw)
		if !status.Valid() {
			return badRequest(c, "invalid status: "+raw)
		}
		filter.Status = &status
	}
	if raw := c.QueryParam("is_active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(c, "invalid is_active value")
		}
		filter.IsActive = &active
	}
	if raw := c.QueryParam("assembly_id"); raw != "" {
		assemblyID, err := uuid.Parse(raw)
		if err != nil {
			return badRequest(c, "invalid assembly_id")
		}
		filter.AssemblyID = &assemblyID
	}
	if raw := c.QueryParam("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			filter.Limit = limit
		}
	}
	if raw := c.QueryParam("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil {
			filter.Offset = offset
		}
	}

	items, err := h.library.ListItems(ctx, filter)
	if err != nil {
		h.components.Logger.Error("failed to list items", "error", err)
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"items": items,
		"count": len(items),
	})
}

// UpdateItem applies a partial update with optimistic concurrency
// PATCH /api/v1/library-items/:id
func (h *ItemHandler) UpdateItem(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := itemID(c)
	if err != nil {
		return badRequest(c, "invalid item id")
	}

	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	var req service.UpdateItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	req.UpdatedBy = actor

	item, err := h.library.UpdateItem(ctx, id, &req)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusOK, item)
}

// ValidateItem preflights the confirmation rules
// GET /api/v1/library-items/:id/validate
func (h *ItemHandler) ValidateItem(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := itemID(c)
	if err != nil {
		return badRequest(c, "invalid item id")
	}

	result, err := h.library.Validate(ctx, id)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

// ConfirmItem transitions draft -> confirmed
// POST /api/v1/library-items/:id/confirm
func (h *ItemHandler) ConfirmItem(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := itemID(c)
	if err != nil {
		return badRequest(c, "invalid item id")
	}

	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	item, err := h.library.ConfirmItem(ctx, id, actor)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusOK, item)
}

// MarkAsActual transitions confirmed -> actual
// POST /api/v1/library-items/:id/mark-actual
func (h *ItemHandler) MarkAsActual(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := itemID(c)
	if err != nil {
		return badRequest(c, "invalid item id")
	}

	item, err := h.library.MarkAsActual(ctx, id)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusOK, item)
}

// RevertToDraft moves a confirmed or actual item back to draft
// POST /api/v1/library-items/:id/revert-draft
func (h *ItemHandler) RevertToDraft(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := itemID(c)
	if err != nil {
		return badRequest(c, "invalid item id")
	}

	item, err := h.library.RevertToDraft(ctx, id)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusOK, item)
}

// DeleteItem soft-deletes an item
// DELETE /api/v1/library-items/:id
func (h *ItemHandler) DeleteItem(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := itemID(c)
	if err != nil {
		return badRequest(c, "invalid item id")
	}

	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	if err := h.library.SoftDeleteItem(ctx, id, actor); err != nil {
		return respondServiceError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// RestoreItem undoes a soft delete
// POST /api/v1/library-items/:id/restore
func (h *ItemHandler) RestoreItem(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := itemID(c)
	if err != nil {
		return badRequest(c, "invalid item id")
	}

	if err := h.library.RestoreItem(ctx, id); err != nil {
		return respondServiceError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// HardDeleteItem removes an item and its factors permanently
// DELETE /api/v1/library-items/:id/permanent
func (h *ItemHandler) HardDeleteItem(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := itemID(c)
	if err != nil {
		return badRequest(c, "invalid item id")
	}

	if err := h.library.HardDeleteItem(ctx, id); err != nil {
		return respondServiceError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// CloneItem creates a new draft copy of an item
// POST /api/v1/library-items/:id/clone
func (h *ItemHandler) CloneItem(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := itemID(c)
	if err != nil {
		return badRequest(c, "invalid item id")
	}

	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	detail, err := h.library.CloneItem(ctx, id, actor)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, detail)
}

// QuickAdd creates a draft straight from an estimate row
// POST /api/v1/library-items/quick-add
func (h *ItemHandler) QuickAdd(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	var req service.QuickAddRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	req.CreatedBy = actor

	detail, err := h.library.QuickAddFromEstimate(ctx, &req)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, detail)
}

// AddFactor attaches a factor to a draft item
// POST /api/v1/library-items/:id/factors
func (h *ItemHandler) AddFactor(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := itemID(c)
	if err != nil {
		return badRequest(c, "invalid item id")
	}

	var factor models.Factor
	if err := c.Bind(&factor); err != nil {
		return badRequest(c, "invalid request body")
	}

	created, err := h.library.AddFactor(ctx, id, &factor)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, created)
}

// UpdateFactor rewrites a factor on a draft item
// PUT /api/v1/library-items/:id/factors/:factor_id
func (h *ItemHandler) UpdateFactor(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := itemID(c)
	if err != nil {
		return badRequest(c, "invalid item id")
	}
	factorID, err := uuid.Parse(c.Param("factor_id"))
	if err != nil {
		return badRequest(c, "invalid factor id")
	}

	var factor models.Factor
	if err := c.Bind(&factor); err != nil {
		return badRequest(c, "invalid request body")
	}
	factor.ID = factorID

	updated, err := h.library.UpdateFactor(ctx, id, &factor)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusOK, updated)
}

// RemoveFactor deletes a factor from a draft item
// DELETE /api/v1/library-items/:id/factors/:kind/:factor_id
func (h *ItemHandler) RemoveFactor(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := itemID(c)
	if err != nil {
		return badRequest(c, "invalid item id")
	}
	factorID, err := uuid.Parse(c.Param("factor_id"))
	if err != nil {
		return badRequest(c, "invalid factor id")
	}
	kind := models.FactorKind(c.Param("kind"))
	if !kind.Valid() {
		return badRequest(c, "invalid factor kind: "+c.Param("kind"))
	}

	if err := h.library.RemoveFactor(ctx, id, kind, factorID); err != nil {
		return respondServiceError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

func itemID(c echo.Context) (uuid.UUID, error) {
	return uuid.Parse(c.Param("id"))
}
