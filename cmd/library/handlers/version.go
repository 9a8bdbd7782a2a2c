package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sitewise/estimator/cmd/library/middleware"
	"github.com/sitewise/estimator/cmd/library/service"
	"github.com/sitewise/estimator/common/bootstrap"
)

// VersionHandler exposes the item version ledger
type VersionHandler struct {
	components *bootstrap.Components
	library    *service.LibraryService
}

// NewVersionHandler creates a new version handler
func NewVersionHandler(components *bootstrap.Components, library *service.LibraryService) *VersionHandler {
	return &VersionHandler{
		components: components,
		library:    library,
	}
}

// History returns the item's version snapshots with field-level diffs
// GET /api/v1/library-items/:id/versions
func (h *VersionHandler) History(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := itemID(c)
	if err != nil {
		return badRequest(c, "invalid item id")
	}

	entries, err := h.library.History(ctx, id)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"versions": entries,
		"count":    len(entries),
	})
}

// Restore applies a stored snapshot back onto the item as a new version
// POST /api/v1/library-items/:id/versions/:version_id/restore
func (h *VersionHandler) Restore(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := itemID(c)
	if err != nil {
		return badRequest(c, "invalid item id")
	}
	versionID, err := uuid.Parse(c.Param("version_id"))
	if err != nil {
		return badRequest(c, "invalid version id")
	}

	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	item, err := h.library.RestoreFromVersion(ctx, id, versionID, actor)
	if err != nil {
		return respondServiceError(c, err)
	}

	h.components.Logger.Info("item restored from version",
		"item_id", id, "version_id", versionID, "restored_by", actor)

	return c.JSON(http.StatusOK, item)
}
