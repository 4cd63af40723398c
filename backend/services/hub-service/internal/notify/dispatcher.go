package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is a named unit of detached work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Dispatcher executes tasks on a background worker, detached from the
// triggering call path. Dispatch never blocks and task failures are logged
// only; the operation that queued the task has already answered its caller.
type Dispatcher struct {
	tasks   chan Task
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
	once    sync.Once
}

// NewDispatcher builds dispatcher with the given queue capacity and per-task
// timeout.
func NewDispatcher(capacity int, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if capacity <= 0 {
		capacity = 64
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	d := &Dispatcher{
		tasks:   make(chan Task, capacity),
		timeout: timeout,
		logger:  logger,
	}
	d.wg.Add(1)
	go d.worker()
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for task := range d.tasks {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		if err := task.Run(ctx); err != nil {
			d.logger.Warn("background task failed", zap.String("task", task.Name), zap.Error(err))
		}
		cancel()
	}
}

// Dispatch queues a task. When the queue is full the task is dropped and
// logged; callers must never be held up by notification work.
func (d *Dispatcher) Dispatch(name string, run func(ctx context.Context) error) {
	select {
	case d.tasks <- Task{Name: name, Run: run}:
	default:
		d.logger.Warn("dropping background task, queue full", zap.String("task", name))
	}
}

// Close drains queued tasks and stops the worker.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.tasks)
	})
	d.wg.Wait()
}
