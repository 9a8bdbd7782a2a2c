package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/sitewise/estimator/cmd/library/container"
	"github.com/sitewise/estimator/cmd/library/handlers"
	"github.com/sitewise/estimator/cmd/library/middleware"
)

// RegisterItemRoutes registers all library item routes
func RegisterItemRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewItemHandler(c.Components, c.LibraryService)
	bulk := handlers.NewBulkHandler(c.Components, c.LibraryService)
	versions := handlers.NewVersionHandler(c.Components, c.LibraryService)

	// Item routes with actor extraction middleware
	items := e.Group("/api/v1/library-items")
	items.Use(middleware.ExtractActor()) // Extract X-User-ID into context
	{
		items.POST("", h.CreateItem)                  // POST /api/v1/library-items
		items.GET("", h.ListItems)                    // GET /api/v1/library-items?status=draft
		items.POST("/quick-add", h.QuickAdd)          // POST /api/v1/library-items/quick-add
		items.GET("/:id", h.GetItem)                  // GET /api/v1/library-items/{id}
		items.PATCH("/:id", h.UpdateItem)             // PATCH /api/v1/library-items/{id}
		items.DELETE("/:id", h.DeleteItem)            // DELETE /api/v1/library-items/{id}
		items.DELETE("/:id/permanent", h.HardDeleteItem) // DELETE /api/v1/library-items/{id}/permanent
		items.POST("/:id/restore", h.RestoreItem)     // POST /api/v1/library-items/{id}/restore
		items.POST("/:id/clone", h.CloneItem)         // POST /api/v1/library-items/{id}/clone

		// Lifecycle
		items.GET("/:id/validate", h.ValidateItem)        // GET /api/v1/library-items/{id}/validate
		items.POST("/:id/confirm", h.ConfirmItem)         // POST /api/v1/library-items/{id}/confirm
		items.POST("/:id/mark-actual", h.MarkAsActual)    // POST /api/v1/library-items/{id}/mark-actual
		items.POST("/:id/revert-draft", h.RevertToDraft)  // POST /api/v1/library-items/{id}/revert-draft

		// Factors
		items.POST("/:id/factors", h.AddFactor)                          // POST /api/v1/library-items/{id}/factors
		items.PUT("/:id/factors/:factor_id", h.UpdateFactor)             // PUT /api/v1/library-items/{id}/factors/{factor_id}
		items.DELETE("/:id/factors/:kind/:factor_id", h.RemoveFactor)    // DELETE /api/v1/library-items/{id}/factors/material/{factor_id}

		// Version ledger
		items.GET("/:id/versions", versions.History)                          // GET /api/v1/library-items/{id}/versions
		items.POST("/:id/versions/:version_id/restore", versions.Restore)    // POST /api/v1/library-items/{id}/versions/{version_id}/restore

		// Bulk operations
		items.POST("/bulk/status", bulk.UpdateStatus)   // POST /api/v1/library-items/bulk/status
		items.POST("/bulk/delete", bulk.Delete)         // POST /api/v1/library-items/bulk/delete
		items.POST("/bulk/restore", bulk.Restore)       // POST /api/v1/library-items/bulk/restore
	}
}
