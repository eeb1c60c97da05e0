package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Task is a job run on a fixed interval.
type Task struct {
	Name     string
	Interval time.Duration
	// Delay postpones the first run so tasks do not all start together.
	Delay time.Duration
	Run   func(ctx context.Context) error
}

// Runner runs tasks concurrently until its context is cancelled.
type Runner struct {
	tasks      []Task
	runTimeout time.Duration
	logger     *zap.Logger
}

// NewRunner creates a Runner. Each task run gets its own context bounded
// by runTimeout.
func NewRunner(runTimeout time.Duration, logger *zap.Logger, tasks ...Task) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{tasks: tasks, runTimeout: runTimeout, logger: logger}
}

// Start blocks until ctx is cancelled and every task loop has returned.
func (r *Runner) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, task := range r.tasks {
		g.Go(func() error {
			r.loop(ctx, task)
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) loop(ctx context.Context, task Task) {
	logger := r.logger.Named(task.Name)

	if task.Delay > 0 {
		select {
		case <-time.After(task.Delay):
		case <-ctx.Done():
			return
		}
	}

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	logger.Info("scheduler task started", zap.Duration("interval", task.Interval))
	for {
		r.runOnce(ctx, logger, task)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			logger.Info("scheduler task stopped")
			return
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, logger *zap.Logger, task Task) {
	runCtx := ctx
	if r.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.runTimeout)
		defer cancel()
	}

	start := time.Now()
	if err := task.Run(runCtx); err != nil {
		logger.Error("scheduler run failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return
	}
	logger.Debug("scheduler run finished", zap.Duration("elapsed", time.Since(start)))
}
