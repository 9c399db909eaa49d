// Package worker runs periodic maintenance tasks in the background.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type scheduledTask struct {
	task     Task
	interval time.Duration
}

// Worker runs each registered task on its own ticker.
type Worker struct {
	tasks  []scheduledTask
	config Config
	logger *slog.Logger

	// Synchronization
	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a new Worker with the given configuration.
// The worker must be started with Start() and stopped with Stop().
func New(config Config, logger *slog.Logger) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Worker{
		config: config,
		logger: logger,
		stopCh: make(chan struct{}),
	}, nil
}

// Register adds a task that runs every interval. A zero interval uses
// Config.DefaultInterval. Call this before Start().
func (w *Worker) Register(task Task, interval time.Duration) {
	if interval <= 0 {
		interval = w.config.DefaultInterval
	}
	for _, st := range w.tasks {
		if st.task.Name() == task.Name() {
			w.logger.Warn("Registering duplicate task name", "task", task.Name())
		}
	}
	w.tasks = append(w.tasks, scheduledTask{task: task, interval: interval})
	w.logger.Debug("Registered task", "task", task.Name(), "interval", interval)
}

// Start launches one goroutine per registered task.
func (w *Worker) Start(ctx context.Context) {
	for _, st := range w.tasks {
		w.wg.Add(1)
		go w.runTask(ctx, st)
	}

	w.logger.Info("Worker started", "tasks", len(w.tasks))
}

// Stop signals all tasks to stop and waits for them to finish.
// It respects the configured ShutdownTimeout.
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.stopOnce.Do(func() { close(w.stopCh) })

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Worker stopped gracefully")
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn("Worker shutdown timeout exceeded, some tasks may still be running")
	}
}

// runTask is the loop for one task goroutine.
func (w *Worker) runTask(ctx context.Context, st scheduledTask) {
	defer w.wg.Done()

	logger := w.logger.With("task", st.task.Name())

	if w.config.RunOnStart {
		if !w.execute(ctx, st.task, logger) {
			return
		}
	}

	ticker := time.NewTicker(st.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			logger.Debug("Task stopping")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !w.execute(ctx, st.task, logger) {
				return
			}
		}
	}
}

// execute runs one pass of the task with a timeout. It reports false when
// the task asked not to run again.
func (w *Worker) execute(ctx context.Context, task Task, logger *slog.Logger) bool {
	taskCtx, cancel := context.WithTimeout(ctx, w.config.TaskTimeout)
	defer cancel()

	start := time.Now()
	err := task.Run(taskCtx)
	if err == nil {
		logger.Debug("Task completed", "duration", time.Since(start))
		return true
	}
	if IsPermanent(err) {
		logger.Error("Task failed permanently, disabling", "error", err)
		return false
	}
	logger.Error("Task failed", "error", err)
	return true
}
