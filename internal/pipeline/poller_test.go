package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/sensor-dashboard-service/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type countingRunner struct {
	calls   atomic.Int64
	healthy bool
}

func (r *countingRunner) FetchCycle(_ context.Context) *pipeline.Snapshot {
	n := r.calls.Add(1)
	res := &pipeline.SourceResult{Source: "ku", Rows: int(n)}
	if !r.healthy {
		res.Err = errors.New("down")
	}
	return &pipeline.Snapshot{Sources: map[string]*pipeline.SourceResult{"ku": res}}
}

// blockingRunner holds each cycle until release is closed.
type blockingRunner struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *blockingRunner) FetchCycle(_ context.Context) *pipeline.Snapshot {
	r.once.Do(func() { close(r.started) })
	<-r.release
	return &pipeline.Snapshot{Sources: map[string]*pipeline.SourceResult{"ku": {Source: "ku"}}}
}

type recordingSink struct {
	mu    sync.Mutex
	snaps []*pipeline.Snapshot
	err   error
}

func (s *recordingSink) Publish(_ context.Context, snap *pipeline.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snaps)
}

// --- tests ---

func TestPoller_PollsOnInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	runner := &countingRunner{healthy: true}
	sink := &recordingSink{}
	p := pipeline.NewPoller(runner, 10*time.Second, clock, slog.Default(), newTestMetrics(), sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return p.Current() != nil }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, p.Current().Sources["ku"].Rows)
	require.NoError(t, p.CheckReadiness(ctx))

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(10 * time.Second)
	require.Eventually(t, func() bool { return p.Current().Sources["ku"].Rows == 2 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return sink.count() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancellation")
	}
}

func TestPoller_NotReadyUntilHealthyCycle(t *testing.T) {
	clock := clockwork.NewFakeClock()
	runner := &countingRunner{healthy: false}
	p := pipeline.NewPoller(runner, time.Second, clock, slog.Default(), newTestMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	require.Eventually(t, func() bool { return p.Current() != nil }, time.Second, 5*time.Millisecond)
	require.Error(t, p.CheckReadiness(ctx), "a cycle with only failed sources does not mark ready")
	assert.Error(t, p.Current().Sources["ku"].Err)
}

func TestPoller_Stop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	runner := &countingRunner{healthy: true}
	p := pipeline.NewPoller(runner, time.Second, clock, slog.Default(), newTestMetrics())

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()
	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	p.Stop()
	p.Stop() // idempotent

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}

	clock.Advance(5 * time.Second)
	assert.Equal(t, int64(1), runner.calls.Load(), "no cycles after Stop")
}

func TestPoller_DiscardsLateResult(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{}), release: make(chan struct{})}
	sink := &recordingSink{}
	p := pipeline.NewPoller(runner, time.Second, clockwork.NewFakeClock(), slog.Default(), newTestMetrics(), sink)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	<-runner.started
	p.Stop()
	close(runner.release)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
	assert.Nil(t, p.Current(), "result arriving after Stop must not be stored")
	assert.Zero(t, sink.count())
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPoller_RunAfterStop(t *testing.T) {
	runner := &countingRunner{healthy: true}
	p := pipeline.NewPoller(runner, time.Second, clockwork.NewFakeClock(), slog.Default(), newTestMetrics())
	p.Stop()

	require.NoError(t, p.Run(context.Background()))
	assert.Zero(t, runner.calls.Load())
}

func TestPoller_SinkErrorDoesNotStopPolling(t *testing.T) {
	clock := clockwork.NewFakeClock()
	runner := &countingRunner{healthy: true}
	sink := &recordingSink{err: errors.New("broker unavailable")}
	p := pipeline.NewPoller(runner, time.Second, clock, slog.Default(), newTestMetrics(), sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return sink.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.NotNil(t, p.Current())
}
