package workers

import (
	"context"
	"log/slog"
	"time"

	"cinematch/observability"
	"cinematch/repositories"
)

// SubscriptionCounter reports live feed subscriptions. Satisfied by
// the runtime registry.
type SubscriptionCounter interface {
	Counts() (rooms, users int)
}

// RuntimeStatsWorker refreshes the exported gauges on a fixed
// interval: queue depth, live subscriptions and the process health of
// the server itself.
type RuntimeStatsWorker struct {
	log      *slog.Logger
	metrics  *observability.Metrics
	probe    *observability.Probe
	matches  repositories.IMatchRepository
	counter  SubscriptionCounter
	interval time.Duration
}

func NewRuntimeStatsWorker(
	log *slog.Logger,
	metrics *observability.Metrics,
	probe *observability.Probe,
	matches repositories.IMatchRepository,
	counter SubscriptionCounter,
	interval time.Duration,
) *RuntimeStatsWorker {
	return &RuntimeStatsWorker{
		log:      log,
		metrics:  metrics,
		probe:    probe,
		matches:  matches,
		counter:  counter,
		interval: interval,
	}
}

func (w *RuntimeStatsWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping stats")
			return nil
		case <-ticker.C:
			w.refresh()
		}
	}
}

func (w *RuntimeStatsWorker) refresh() {
	depth, err := w.matches.Depth()
	if err != nil {
		w.log.Error("Error while reading queue depth", "err", err)
	} else {
		w.metrics.QueueDepth.Set(float64(depth))
	}

	rooms, users := w.counter.Counts()
	w.metrics.RoomSubscriptions.Set(float64(rooms))
	w.metrics.UserSubscriptions.Set(float64(users))

	if w.probe == nil {
		return
	}
	snap, err := w.probe.Sample()
	if err != nil {
		w.log.Error("Error while sampling process", "err", err)
		return
	}
	w.metrics.ProcessCPU.Set(snap.CPU)
	w.metrics.ProcessMemory.Set(float64(snap.Memory))
	w.log.Debug("Runtime stats refreshed",
		"queue_depth", depth,
		"room_subs", rooms,
		"user_subs", users,
		"status", snap.Status,
	)
}
