// Package runtime handles event propagation and the background
// workers around it. It orchestrates the system without containing
// business logic or domain rules.
package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"cinematch/bus"
	"cinematch/contract"
	"cinematch/observability"
	"cinematch/repositories"
	"cinematch/runtime/workers"
)

// Engine owns the supervised worker set: the fanout draining the bus,
// the janitor sweeping the match queue and the stats refresher.
// Start blocks until the context is canceled or Stop is called.
type Engine struct {
	mu              sync.Mutex
	log             *slog.Logger
	supervisor      contract.ISupervisor
	registry        *Registry
	eventBus        *bus.Bus
	metrics         *observability.Metrics
	matches         repositories.IMatchRepository
	permanentSinks  []contract.EventSink
	subs            []*nats.Subscription
	bufferSize      int
	sinkTimeout     time.Duration
	queueTTL        time.Duration
	janitorInterval time.Duration
	statsInterval   time.Duration
}

func NewEngine(log *slog.Logger, supervisor contract.ISupervisor,
	registry *Registry, eventBus *bus.Bus, metrics *observability.Metrics,
	matches repositories.IMatchRepository, bufferSize int,
	sinkTimeout, queueTTL, janitorInterval, statsInterval time.Duration) *Engine {
	return &Engine{
		log:             log,
		supervisor:      supervisor,
		registry:        registry,
		eventBus:        eventBus,
		metrics:         metrics,
		matches:         matches,
		bufferSize:      bufferSize,
		sinkTimeout:     sinkTimeout,
		queueTTL:        queueTTL,
		janitorInterval: janitorInterval,
		statsInterval:   statsInterval,
	}
}

// Registry exposes the subscription registry for transports.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Add registers permanent sinks that see every event crossing the
// fanout, regardless of subscriptions. Call before Start.
func (e *Engine) Add(sinks ...contract.EventSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.permanentSinks = append(e.permanentSinks, sinks...)
}

// Start initiates the engine by preparing all components and then
// starting the supervisor. It uses a preparation pattern to minimize
// mutex locking time.
func (e *Engine) Start(ctx context.Context) error {
	// 1. Preparation phase (No Lock)
	// Bus subscriptions must exist before the workers that drain them.
	roomMsgs, roomSub, err := e.eventBus.SubscribeRooms(e.bufferSize)
	if err != nil {
		return err
	}
	userMsgs, userSub, err := e.eventBus.SubscribeUsers(e.bufferSize)
	if err != nil {
		_ = roomSub.Unsubscribe()
		return err
	}

	probe, err := observability.NewProbe()
	if err != nil {
		// Gauges for the process stay flat, everything else works.
		e.log.Warn("Process probe unavailable", "error", err)
	}

	// 2. Critical Section (Short Lock)
	e.mu.Lock()
	e.subs = append(e.subs, roomSub, userSub)
	fanout := workers.NewEventFanoutWorker(
		e.log, e.registry, roomMsgs, userMsgs, e.sinkTimeout, e.permanentSinks...)
	janitor := workers.NewQueueJanitorWorker(
		e.log, e.matches, e.eventBus, e.metrics.QueueEvictions, e.queueTTL, e.janitorInterval)
	stats := workers.NewRuntimeStatsWorker(
		e.log, e.metrics, probe, e.matches, e.registry, e.statsInterval)
	e.supervisor.Add(fanout, janitor, stats)
	e.mu.Unlock()

	// 3. Execution phase (No Lock): blocks until shutdown
	e.log.Info("Starting engine and all supervised workers")
	e.supervisor.Run(ctx)
	return nil
}

// Stop initiates a graceful shutdown. Bus subscriptions are dropped
// first so the fanout channels stop filling, then the supervision
// context is canceled to let workers drain.
func (e *Engine) Stop() {
	e.log.Info("Requesting engine shutdown")

	e.mu.Lock()
	for _, sub := range e.subs {
		_ = sub.Unsubscribe()
	}
	e.subs = nil
	e.mu.Unlock()

	e.supervisor.Stop()
}
