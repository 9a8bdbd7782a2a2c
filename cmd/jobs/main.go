package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/sitewise/estimator/common/bootstrap"
	"github.com/sitewise/estimator/common/clients"
	"github.com/sitewise/estimator/common/logger"
	"github.com/sitewise/estimator/common/server"
)

// The jobs runner triggers the store-side maintenance jobs on fixed
// intervals: popularity aggregation, price snapshots, and complex factor
// recalculation. The jobs themselves run inside the store; this process only
// schedules them, so a crash or redeploy never loses work.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := bootstrap.Setup(ctx, "jobs", bootstrap.WithoutQueue(), bootstrap.WithoutCache())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap jobs runner: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	jobsClient := clients.NewJobsClient(components.DB, components.Logger)

	cfg := components.Config.Jobs
	schedule := []struct {
		job      string
		interval time.Duration
	}{
		{clients.JobAggregatePopularity, cfg.PopularityInterval},
		{clients.JobCapturePriceSnapshot, cfg.PriceSnapshotInterval},
		{clients.JobCalculateFactors, cfg.ComplexFactorInterval},
	}

	for _, entry := range schedule {
		go runOnInterval(ctx, jobsClient, entry.job, entry.interval, components.Logger)
	}

	// Health endpoint only; all real work happens on the tickers
	mux := http.NewServeMux()
	mux.HandleFunc("/health", server.HealthHandler())

	srv := server.New("jobs runner", components.Config.Service.Port, mux, components.Logger)
	if err := srv.Start(); err != nil {
		components.Logger.Error("jobs runner stopped", "error", err)
		os.Exit(1)
	}
}

// runOnInterval invokes the job on every tick until ctx is cancelled. A
// failed run is logged and retried on the next tick.
func runOnInterval(ctx context.Context, client *clients.JobsClient, job string, interval time.Duration, log *logger.Logger) {
	if interval <= 0 {
		log.Warn("job disabled, interval not positive", "job", job)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("job scheduled", "job", job, "interval", interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := client.Invoke(ctx, job); err != nil {
				log.Error("scheduled job failed", "job", job, "error", err)
			}
		}
	}
}
