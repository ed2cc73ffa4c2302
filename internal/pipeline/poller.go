package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/sensor-dashboard-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// DefaultPollInterval is the refresh period of the live views.
const DefaultPollInterval = 10 * time.Second

// CycleRunner produces one snapshot per call.
type CycleRunner interface {
	FetchCycle(ctx context.Context) *Snapshot
}

// SnapshotSink receives every snapshot the poller publishes.
type SnapshotSink interface {
	Publish(ctx context.Context, snap *Snapshot) error
}

// Poller refreshes the current snapshot on a fixed interval. Readers call
// Current at any time and always see a complete snapshot.
type Poller struct {
	runner   CycleRunner
	interval time.Duration
	clock    clockwork.Clock
	sinks    []SnapshotSink
	logger   *slog.Logger
	metrics  *observability.Metrics

	// mu makes the liveness check and the snapshot swap one step with
	// respect to Stop.
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
	alive   atomic.Bool
	ready   atomic.Bool

	stop     chan struct{}
	stopOnce sync.Once
}

// NewPoller creates a Poller. A non-positive interval falls back to
// DefaultPollInterval.
func NewPoller(runner CycleRunner, interval time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, sinks ...SnapshotSink) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Poller{
		runner:   runner,
		interval: interval,
		clock:    clock,
		sinks:    sinks,
		logger:   logger,
		metrics:  metrics,
		stop:     make(chan struct{}),
	}
}

// Current returns the latest snapshot, or nil before the first cycle completes.
func (p *Poller) Current() *Snapshot {
	return p.current.Load()
}

// CheckReadiness returns nil once a cycle has read at least one source.
func (p *Poller) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no source has been read yet")
	}
	return nil
}

// Run polls immediately and then once per interval until ctx is cancelled or
// Stop is called.
func (p *Poller) Run(ctx context.Context) error {
	select {
	case <-p.stop:
		return nil
	default:
	}

	p.alive.Store(true)
	defer p.alive.Store(false)

	p.logger.Info("poller started", "interval", p.interval)
	p.metrics.PollerRunning.Set(1)
	defer p.metrics.PollerRunning.Set(0)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopping", "reason", ctx.Err())
			return nil
		case <-p.stop:
			p.logger.Info("poller stopping", "reason", "stopped")
			return nil
		case <-ticker.Chan():
			p.poll(ctx)
		}
	}
}

// Stop ends polling. A cycle still in flight completes but its result is
// discarded.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.alive.Store(false)
		p.mu.Unlock()
		close(p.stop)
	})
}

func (p *Poller) poll(ctx context.Context) {
	snap := p.runner.FetchCycle(ctx)
	if !p.swap(ctx, snap) {
		p.logger.Debug("discarding cycle result after shutdown")
		return
	}

	for _, sink := range p.sinks {
		if err := sink.Publish(ctx, snap); err != nil {
			p.logger.Warn("snapshot publish failed", "error", err)
			continue
		}
		p.metrics.SnapshotsPublished.Inc()
	}
}

// swap stores snap unless the poller has been stopped or ctx is done.
func (p *Poller) swap(ctx context.Context, snap *Snapshot) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if snap == nil || ctx.Err() != nil || !p.alive.Load() {
		return false
	}
	p.current.Store(snap)
	if snap.Healthy() {
		p.ready.Store(true)
	}
	return true
}
