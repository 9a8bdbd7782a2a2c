package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sitewise/estimator/cmd/library/middleware"
	"github.com/sitewise/estimator/cmd/library/service"
	"github.com/sitewise/estimator/common/bootstrap"
	"github.com/sitewise/estimator/common/models"
)

// BulkHandler handles batch operations over library items
type BulkHandler struct {
	components *bootstrap.Components
	library    *service.LibraryService
}

// NewBulkHandler creates a new bulk handler
func NewBulkHandler(components *bootstrap.Components, library *service.LibraryService) *BulkHandler {
	return &BulkHandler{
		components: components,
		library:    library,
	}
}

type bulkRequest struct {
	IDs    []uuid.UUID       `json:"ids"`
	Status models.ItemStatus `json:"status"`
}

// UpdateStatus applies a status transition to each id independently
// POST /api/v1/library-items/bulk/status
func (h *BulkHandler) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	var req bulkRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if len(req.IDs) == 0 {
		return badRequest(c, "ids array is required and cannot be empty")
	}
	if !req.Status.Valid() {
		return badRequest(c, "invalid status: "+string(req.Status))
	}

	result, err := h.library.BulkUpdateStatus(ctx, req.IDs, req.Status, actor)
	if err != nil {
		return respondServiceError(c, err)
	}

	h.components.Logger.Info("bulk status update finished",
		"status", req.Status, "successful", result.Successful, "failed", result.Failed)

	return c.JSON(http.StatusOK, result)
}

// Delete soft-deletes each id independently
// POST /api/v1/library-items/bulk/delete
func (h *BulkHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	var req bulkRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if len(req.IDs) == 0 {
		return badRequest(c, "ids array is required and cannot be empty")
	}

	result, err := h.library.BulkDelete(ctx, req.IDs, actor)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

// Restore restores each id independently
// POST /api/v1/library-items/bulk/restore
func (h *BulkHandler) Restore(c echo.Context) error {
	ctx := c.Request().Context()

	var req bulkRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if len(req.IDs) == 0 {
		return badRequest(c, "ids array is required and cannot be empty")
	}

	result, err := h.library.BulkRestore(ctx, req.IDs)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}
