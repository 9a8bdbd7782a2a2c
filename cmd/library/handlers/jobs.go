package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sitewise/estimator/common/bootstrap"
	"github.com/sitewise/estimator/common/clients"
)

// JobsHandler triggers store-side background jobs on demand. The scheduled
// runs live in cmd/jobs; this endpoint exists for manual reruns.
type JobsHandler struct {
	components *bootstrap.Components
	jobs       *clients.JobsClient
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(components *bootstrap.Components, jobs *clients.JobsClient) *JobsHandler {
	return &JobsHandler{
		components: components,
		jobs:       jobs,
	}
}

// Run invokes one named job and waits for it
// POST /api/v1/jobs/:name
func (h *JobsHandler) Run(c echo.Context) error {
	ctx := c.Request().Context()

	name := c.Param("name")
	if !clients.KnownJob(name) {
		return badRequest(c, "unknown job: "+name)
	}

	result, err := h.jobs.Invoke(ctx, name)
	if err != nil {
		h.components.Logger.Error("job invocation failed", "job", name, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "job failed",
			"job":   name,
		})
	}

	return c.JSON(http.StatusOK, result)
}
