package tasks

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gregmarra/the-blue-alliance/pkg/metrics"
)

// LocalQueue runs tasks in-process on a fixed pool of workers. Enqueue
// never blocks: a full buffer drops the task with ErrQueueFull.
type LocalQueue struct {
	registry *Registry
	tasks    chan Task
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewLocalQueue(registry *Registry, workers, buffer int, metrics *metrics.Metrics, logger *slog.Logger) *LocalQueue {
	if workers <= 0 {
		workers = 1
	}
	if buffer <= 0 {
		buffer = 128
	}
	q := &LocalQueue{
		registry: registry,
		tasks:    make(chan Task, buffer),
		metrics:  metrics,
		logger:   logger,
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	return q
}

func (q *LocalQueue) Enqueue(_ context.Context, task Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.tasks <- task:
		q.observe(task.Name, "enqueued")
		return nil
	default:
		q.observe(task.Name, "dropped")
		return ErrQueueFull
	}
}

// Close stops accepting tasks and waits for the buffered ones to finish.
func (q *LocalQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *LocalQueue) work() {
	defer q.wg.Done()
	for task := range q.tasks {
		// Tasks outlive the request that enqueued them.
		if err := q.registry.Dispatch(context.Background(), task); err != nil {
			q.logger.Debug("local task dropped", slog.String("task", task.Name), slog.Any("error", err))
		}
	}
}

func (q *LocalQueue) observe(name, outcome string) {
	if q.metrics != nil {
		q.metrics.ObserveTask(name, outcome)
	}
}
