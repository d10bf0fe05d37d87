package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/gregmarra/the-blue-alliance/internal/tasks"
)

// Dispatcher runs a decoded task.
type Dispatcher interface {
	Dispatch(ctx context.Context, task tasks.Task) error
}

// TaskConsumer drains deferred tasks published by the API.
type TaskConsumer struct {
	base       *BaseConsumer
	dispatcher Dispatcher
	logger     *slog.Logger
}

func NewTaskConsumer(base *BaseConsumer, dispatcher Dispatcher, logger *slog.Logger) *TaskConsumer {
	return &TaskConsumer{
		base:       base,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

func (t *TaskConsumer) Start(ctx context.Context) error {
	return t.base.Start(ctx, t.handleDelivery)
}

func (t *TaskConsumer) handleDelivery(ctx context.Context, msg amqp.Delivery) error {
	var task tasks.Task
	if err := json.Unmarshal(msg.Body, &task); err != nil {
		t.logger.Error("failed to unmarshal task", slog.Any("error", err))
		_ = msg.Reject(false)
		return err
	}

	if err := t.dispatcher.Dispatch(ctx, task); err != nil {
		if errors.Is(err, tasks.ErrUnknownTask) {
			_ = msg.Reject(false)
			return err
		}
		// Deferred work is best effort: one redelivery, then drop.
		_ = msg.Nack(false, !msg.Redelivered)
		return err
	}
	return msg.Ack(false)
}
