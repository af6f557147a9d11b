package sync

import (
	"context"

	"go.uber.org/zap"

	"example.com/garminsync/internal/domain"
)

// Runner executes one sync run.
type Runner interface {
	Run(ctx context.Context) domain.SyncResult
}

// Worker decouples trigger latency from run latency: triggers enqueue onto a
// single-slot channel and return immediately, while one goroutine executes
// runs sequentially. The single consumer doubles as the run-level lock; a
// trigger arriving while one is already queued is coalesced into it.
type Worker struct {
	runner   Runner
	triggers chan string
	done     chan struct{}
	logger   *zap.Logger
}

// NewWorker constructs a Worker.
func NewWorker(runner Runner, logger *zap.Logger) *Worker {
	return &Worker{
		runner:   runner,
		triggers: make(chan string, 1),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// Start runs the trigger loop until the context is cancelled. It should be
// called in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case reason := <-w.triggers:
			w.logger.Info("sync run starting", zap.String("trigger", reason))
			result := w.runner.Run(ctx)
			if result.Err != nil {
				w.logger.Error("sync run failed",
					zap.String("run_id", result.RunID),
					zap.String("trigger", reason),
					zap.Error(result.Err))
				continue
			}
			w.logger.Info("sync run finished",
				zap.String("run_id", result.RunID),
				zap.String("trigger", reason),
				zap.Int("processed", result.Processed))
		}
	}
}

// Wait blocks until the trigger loop has exited.
func (w *Worker) Wait() {
	<-w.done
}

// Trigger requests a sync run without blocking. It reports false when a run
// is already queued and the trigger was coalesced.
func (w *Worker) Trigger(reason string) bool {
	select {
	case w.triggers <- reason:
		return true
	default:
		w.logger.Info("sync already queued, coalescing trigger", zap.String("trigger", reason))
		return false
	}
}
