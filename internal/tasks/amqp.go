package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"

	"github.com/gregmarra/the-blue-alliance/pkg/metrics"
)

// Exchange and routing key deferred tasks travel on.
const (
	Exchange   = "tasks.direct"
	RoutingKey = "deferred"
)

// Publisher is the part of *amqp.Channel the queue needs.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPQueue publishes tasks to RabbitMQ for the worker to run.
type AMQPQueue struct {
	mu        sync.Mutex
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewAMQPQueue(publisher Publisher, metrics *metrics.Metrics, logger *slog.Logger) *AMQPQueue {
	return &AMQPQueue{
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// DeclareExchange makes sure the task exchange exists before publishing.
func DeclareExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(
		Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
}

func (q *AMQPQueue) Enqueue(_ context.Context, task Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}

	q.mu.Lock()
	err = q.publisher.Publish(Exchange, RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    task.ID.String(),
		Timestamp:    task.CreatedAt,
		Type:         task.Name,
		Body:         body,
	})
	q.mu.Unlock()

	if err != nil {
		q.observe(task.Name, "dropped")
		return fmt.Errorf("publish task: %w", err)
	}
	q.observe(task.Name, "enqueued")
	return nil
}

func (q *AMQPQueue) observe(name, outcome string) {
	if q.metrics != nil {
		q.metrics.ObserveTask(name, outcome)
	}
}
