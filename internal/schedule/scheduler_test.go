package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/ohss-collector/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// blockingRunner holds each run open until release is closed.
type blockingRunner struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan struct{}, 10), release: make(chan struct{})}
}

func (r *blockingRunner) Run(ctx context.Context) model.RunResult {
	r.calls.Add(1)
	r.started <- struct{}{}
	select {
	case <-r.release:
	case <-ctx.Done():
	}
	return model.RunResult{RunID: "run", Success: true, RecordsFetched: 1}
}

func TestNew_InvalidSpec(t *testing.T) {
	_, err := New(newBlockingRunner(), Options{Spec: "every day at two"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule: parse")

	_, err = New(newBlockingRunner(), Options{Spec: "0 2 * * *", Timezone: "Nowhere/Special"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule: load timezone")
}

func TestNext_UsesTimezone(t *testing.T) {
	s, err := New(newBlockingRunner(), Options{Spec: "0 2 * * *", Timezone: "America/Chicago"})
	require.NoError(t, err)

	// 2026-10-16 12:00 UTC is 07:00 CDT; the next 02:00 CDT is 07:00 UTC the next day.
	next := s.Next(time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 10, 17, 7, 0, 0, 0, time.UTC), next.UTC())
}

func TestNext_Descriptor(t *testing.T) {
	s, err := New(newBlockingRunner(), Options{Spec: "@daily"})
	require.NoError(t, err)
	next := s.Next(time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC), next)
}

func TestTrigger_SkipsOverlappingRun(t *testing.T) {
	r := newBlockingRunner()
	s, err := New(r, Options{Spec: "@hourly"})
	require.NoError(t, err)

	done := make(chan bool)
	go func() {
		_, ran := s.Trigger(context.Background())
		done <- ran
	}()
	<-r.started

	_, ran := s.Trigger(context.Background())
	assert.False(t, ran, "second trigger skipped while first is active")

	close(r.release)
	assert.True(t, <-done)
	assert.Equal(t, int32(1), r.calls.Load())

	res, ran := s.Trigger(context.Background())
	assert.True(t, ran, "lock released after the run")
	assert.True(t, res.Success)
}

func TestRun_RunOnStartAndStop(t *testing.T) {
	r := newBlockingRunner()
	close(r.release)
	s, err := New(r, Options{Spec: "0 2 * * *", RunOnStart: true})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	select {
	case <-r.started:
	case <-time.After(5 * time.Second):
		t.Fatal("run on start did not fire")
	}
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestRun_WaitsForInFlightRun(t *testing.T) {
	r := newBlockingRunner()
	s, err := New(r, Options{Spec: "0 2 * * *", RunOnStart: true})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()
	<-r.started

	// The run observes cancellation and returns; Run must not return first.
	cancel()
	require.NoError(t, <-errCh)
	assert.Equal(t, int32(1), r.calls.Load())
}
