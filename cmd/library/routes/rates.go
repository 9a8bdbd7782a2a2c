package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/sitewise/estimator/cmd/library/container"
	"github.com/sitewise/estimator/cmd/library/handlers"
	"github.com/sitewise/estimator/cmd/library/middleware"
)

// RegisterRatesRoutes registers all project rate routes
func RegisterRatesRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewRatesHandler(c.Components, c.RatesService)

	// Rates routes with actor extraction middleware
	rates := e.Group("/api/v1/projects/:id/rates")
	rates.Use(middleware.ExtractActor()) // Extract X-User-ID into context
	{
		rates.GET("", h.Current)                           // GET /api/v1/projects/{id}/rates?as_of=...
		rates.PUT("", h.Set)                               // PUT /api/v1/projects/{id}/rates
		rates.GET("/history", h.History)                   // GET /api/v1/projects/{id}/rates/history
		rates.GET("/compare/:other_id", h.Compare)         // GET /api/v1/projects/{id}/rates/compare/{other_id}
		rates.POST("/import", h.Import)                    // POST /api/v1/projects/{id}/rates/import
		rates.GET("/:category/:code", h.EffectiveRate)     // GET /api/v1/projects/{id}/rates/materials/CONC-001
		rates.PATCH("/:category/:code", h.UpdateOverride)  // PATCH /api/v1/projects/{id}/rates/materials/CONC-001
	}
}
