package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"cinematch/contract"
	"cinematch/domain/event"
	"cinematch/repositories"
)

// QueueJanitorWorker evicts match queue entries whose owner has been
// waiting longer than the configured TTL and tells them through their
// user feed. Eviction runs on the server clock, so a client that
// disappeared without cancelling stops occupying the queue anyway.
type QueueJanitorWorker struct {
	log       *slog.Logger
	matches   repositories.IMatchRepository
	publisher contract.EventPublisher
	evictions prometheus.Counter
	ttl       time.Duration
	interval  time.Duration
}

func NewQueueJanitorWorker(
	log *slog.Logger,
	matches repositories.IMatchRepository,
	publisher contract.EventPublisher,
	evictions prometheus.Counter,
	ttl, interval time.Duration,
) *QueueJanitorWorker {
	return &QueueJanitorWorker{
		log:       log,
		matches:   matches,
		publisher: publisher,
		evictions: evictions,
		ttl:       ttl,
		interval:  interval,
	}
}

func (w *QueueJanitorWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping janitor")
			return nil
		case <-ticker.C:
			w.sweep(time.Now().UTC())
		}
	}
}

func (w *QueueJanitorWorker) sweep(now time.Time) {
	evicted, err := w.matches.Expire(now.Add(-w.ttl))
	if err != nil {
		w.log.Error("Queue sweep failed", "error", err)
		return
	}

	for _, entry := range evicted {
		w.evictions.Inc()
		w.log.Info("Evicted stale queue entry", "user", entry.UserID, "enqueued_at", entry.EnqueuedAt)

		expired := event.SearchExpired{UserID: entry.UserID, EnqueuedAt: entry.EnqueuedAt}
		if err := w.publisher.PublishUser(entry.UserID, expired); err != nil {
			w.log.Warn("Failed to notify expired search", "user", entry.UserID, "error", err)
		}
	}
}
