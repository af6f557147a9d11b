package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"example.com/garminsync/internal/domain"
)

type blockingRunner struct {
	started  chan struct{}
	release  chan struct{}
	runCount int
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{
		started: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
}

func (r *blockingRunner) Run(ctx context.Context) domain.SyncResult {
	r.runCount++
	r.started <- struct{}{}
	select {
	case <-r.release:
	case <-ctx.Done():
	}
	return domain.SyncResult{RunID: "run", Success: true}
}

func TestWorkerExecutesTrigger(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := newBlockingRunner()
	worker := NewWorker(runner, zap.NewNop())
	go worker.Start(ctx)

	require.True(t, worker.Trigger("webhook"))

	select {
	case <-runner.started:
	case <-time.After(time.Second):
		t.Fatal("run did not start")
	}

	close(runner.release)
	cancel()
	worker.Wait()
	require.Equal(t, 1, runner.runCount)
}

func TestWorkerCoalescesOverlappingTriggers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := newBlockingRunner()
	worker := NewWorker(runner, zap.NewNop())
	go worker.Start(ctx)

	require.True(t, worker.Trigger("webhook"))
	<-runner.started

	// One more trigger queues; the next is coalesced into it.
	require.True(t, worker.Trigger("schedule"))
	require.False(t, worker.Trigger("webhook"))

	close(runner.release)
	cancel()
	worker.Wait()
}

func TestWorkerStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	worker := NewWorker(newBlockingRunner(), zap.NewNop())
	go worker.Start(ctx)

	cancel()
	done := make(chan struct{})
	go func() {
		worker.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
