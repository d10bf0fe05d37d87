package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gregmarra/the-blue-alliance/pkg/metrics"
)

var (
	ErrUnknownTask = errors.New("unknown task")
	ErrQueueFull   = errors.New("task queue full")
	ErrQueueClosed = errors.New("task queue closed")
)

// Task is a unit of deferred work. Payload is handler specific JSON.
type Task struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// New encodes payload into a fresh Task.
func New(name string, payload any) (Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Task{}, fmt.Errorf("encode %s payload: %w", name, err)
	}
	return Task{
		ID:        uuid.New(),
		Name:      name,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the payload into out.
func (t Task) Decode(out any) error {
	if err := json.Unmarshal(t.Payload, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", t.Name, err)
	}
	return nil
}

// Queue accepts tasks for asynchronous execution. Enqueue must not block
// on the work itself.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
}

// Handler executes one task.
type Handler func(ctx context.Context, task Task) error

// Registry maps task names to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewRegistry(metrics *metrics.Metrics, logger *slog.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		metrics:  metrics,
		logger:   logger,
	}
}

// Register installs h for name, replacing any previous handler.
func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Dispatch runs the handler registered for task.Name.
func (r *Registry) Dispatch(ctx context.Context, task Task) error {
	r.mu.RLock()
	h, ok := r.handlers[task.Name]
	r.mu.RUnlock()
	if !ok {
		r.observe(task.Name, "unknown")
		return fmt.Errorf("%w: %s", ErrUnknownTask, task.Name)
	}

	if err := h(ctx, task); err != nil {
		r.observe(task.Name, "failed")
		r.logger.Warn("task failed",
			slog.String("task", task.Name),
			slog.String("task_id", task.ID.String()),
			slog.Any("error", err),
		)
		return err
	}
	r.observe(task.Name, "done")
	return nil
}

func (r *Registry) observe(name, outcome string) {
	if r.metrics != nil {
		r.metrics.ObserveTask(name, outcome)
	}
}
