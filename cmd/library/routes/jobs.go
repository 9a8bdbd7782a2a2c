package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/sitewise/estimator/cmd/library/container"
	"github.com/sitewise/estimator/cmd/library/handlers"
)

// RegisterJobsRoutes registers the manual job trigger routes
func RegisterJobsRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewJobsHandler(c.Components, c.JobsClient)

	jobs := e.Group("/api/v1/jobs")
	{
		jobs.POST("/:name", h.Run) // POST /api/v1/jobs/aggregate-library-popularity
	}
}
