package service

import (
	"context"
	"fmt"

	"github.com/sitewise/estimator/common/logger"
	"github.com/sitewise/estimator/common/queue"
)

// Counter is the increment surface the popularity tracker needs. The common
// redis client satisfies it.
type Counter interface {
	IncrBy(ctx context.Context, key string, value int64) (int64, error)
}

// PopularityTracker bumps a per-item usage counter whenever an item is
// confirmed. The counters feed the nightly popularity aggregation job.
type PopularityTracker struct {
	counter Counter
	log     *logger.Logger
}

// NewPopularityTracker creates a new popularity tracker
func NewPopularityTracker(counter Counter, log *logger.Logger) *PopularityTracker {
	return &PopularityTracker{counter: counter, log: log}
}

// Start subscribes the tracker to item confirmation events
func (t *PopularityTracker) Start(ctx context.Context, q queue.Queue) error {
	return q.Subscribe(ctx, queue.TopicItemConfirmed, t.handleConfirmed)
}

func (t *PopularityTracker) handleConfirmed(ctx context.Context, key string, _ []byte) error {
	if key == "" {
		return fmt.Errorf("confirmation event without item id")
	}

	count, err := t.counter.IncrBy(ctx, popularityKey(key), 1)
	if err != nil {
		return fmt.Errorf("failed to increment popularity counter: %w", err)
	}

	t.log.Debug("popularity counter incremented", "item_id", key, "count", count)
	return nil
}

func popularityKey(itemID string) string {
	return "popularity:item:" + itemID
}
