package workers

import (
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"cinematch/observability"
	"cinematch/repositories"
)

type stubCounter struct {
	rooms int
	users int
}

func (s stubCounter) Counts() (int, int) { return s.rooms, s.users }

func TestRuntimeStatsWorker_RefreshUpdatesGauges(t *testing.T) {
	req := require.New(t)
	log := slog.Default()

	repository := repositories.NewMatchRepository(testBadger(t), log)
	_, err := repository.PopOrEnqueue("alice", time.Now().UTC())
	req.NoError(err)

	metrics := observability.NewMetrics()
	probe, err := observability.NewProbe()
	req.NoError(err)

	worker := NewRuntimeStatsWorker(log, metrics, probe, repository, stubCounter{rooms: 2, users: 1}, time.Hour)

	// When the gauges are refreshed
	worker.refresh()

	// Then they reflect the queue and the registry
	req.Equal(float64(1), testutil.ToFloat64(metrics.QueueDepth))
	req.Equal(float64(2), testutil.ToFloat64(metrics.RoomSubscriptions))
	req.Equal(float64(1), testutil.ToFloat64(metrics.UserSubscriptions))
}

func TestRuntimeStatsWorker_NilProbeIsTolerated(t *testing.T) {
	req := require.New(t)
	log := slog.Default()

	repository := repositories.NewMatchRepository(testBadger(t), log)
	metrics := observability.NewMetrics()

	// Given no process probe could be built
	worker := NewRuntimeStatsWorker(log, metrics, nil, repository, stubCounter{}, time.Hour)

	// When the gauges are refreshed
	worker.refresh()

	// Then the queue gauge still moved
	req.Equal(float64(0), testutil.ToFloat64(metrics.QueueDepth))
	req.Equal(float64(0), testutil.ToFloat64(metrics.ProcessCPU))
}
