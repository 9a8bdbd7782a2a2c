package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sitewise/estimator/common/db"
	"github.com/sitewise/estimator/common/logger"
)

// Job names exposed by the store as remote procedures
const (
	JobAggregatePopularity  = "aggregate-library-popularity"
	JobCapturePriceSnapshot = "capture-price-snapshot"
	JobCalculateFactors     = "calculate-complex-factors"
)

// jobFunctions maps job names to their store-side function names
var jobFunctions = map[string]string{
	JobAggregatePopularity:  "aggregate_library_popularity",
	JobCapturePriceSnapshot: "capture_price_snapshot",
	JobCalculateFactors:     "calculate_complex_factors",
}

// JobResult is the store's response to a job invocation
type JobResult struct {
	Job      string          `json:"job"`
	Output   json.RawMessage `json:"output,omitempty"`
	Duration time.Duration   `json:"duration"`
}

// JobsClient invokes the store-side background jobs. The jobs themselves run
// inside the store; this client only triggers and awaits them.
type JobsClient struct {
	db  *db.DB
	log *logger.Logger
}

// NewJobsClient creates a new jobs client
func NewJobsClient(database *db.DB, log *logger.Logger) *JobsClient {
	return &JobsClient{db: database, log: log}
}

// KnownJob reports whether name is a recognized job
func KnownJob(name string) bool {
	_, ok := jobFunctions[name]
	return ok
}

// Invoke runs the named job and waits for it to finish
func (c *JobsClient) Invoke(ctx context.Context, name string) (*JobResult, error) {
	fn, ok := jobFunctions[name]
	if !ok {
		return nil, fmt.Errorf("unknown job: %s", name)
	}

	c.log.Info("invoking job", "job", name)
	start := time.Now()

	output, err := c.db.CallFunction(ctx, fn)
	if err != nil {
		return nil, fmt.Errorf("invoke job %s: %w", name, err)
	}

	elapsed := time.Since(start)
	c.log.Info("job finished", "job", name, "duration", elapsed)

	return &JobResult{
		Job:      name,
		Output:   output,
		Duration: elapsed,
	}, nil
}
