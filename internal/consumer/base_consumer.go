package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"
)

// Binding describes where a consumer's queue lives.
type Binding struct {
	Exchange   string
	RoutingKey string
	Queue      string
	// DeadLetterQueue receives rejected messages when set.
	DeadLetterQueue string
}

// BaseConsumer wires RabbitMQ connectivity, queue declaration and worker handling.
type BaseConsumer struct {
	conn        *amqp.Connection
	binding     Binding
	prefetch    int
	workerCount int
	logger      *slog.Logger
}

func NewBaseConsumer(conn *amqp.Connection, binding Binding, prefetch, workerCount int, logger *slog.Logger) *BaseConsumer {
	if prefetch <= 0 {
		prefetch = 50
	}
	if workerCount <= 0 {
		workerCount = 5
	}
	return &BaseConsumer{
		conn:        conn,
		binding:     binding,
		prefetch:    prefetch,
		workerCount: workerCount,
		logger:      logger.With(slog.String("queue", binding.Queue)),
	}
}

func (c *BaseConsumer) Start(ctx context.Context, handler func(context.Context, amqp.Delivery) error) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := c.setupQueue(ch); err != nil {
		return fmt.Errorf("queue setup failed: %w", err)
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("qos configuration failed: %w", err)
	}

	deliveries, err := ch.Consume(
		c.binding.Queue,
		"",
		false, // autoAck
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	c.logger.Info("consumer started", slog.Int("workers", c.workerCount))

	var wg sync.WaitGroup
	for i := 0; i < c.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-deliveries:
					if !ok {
						return
					}
					if err := handler(ctx, msg); err != nil {
						c.logger.Error("handler returned error", slog.Any("error", err))
					}
				}
			}
		}()
	}

	<-ctx.Done()
	wg.Wait()
	return nil
}

func (c *BaseConsumer) setupQueue(ch *amqp.Channel) error {
	args := amqp.Table{}
	if c.binding.DeadLetterQueue != "" {
		args["x-dead-letter-exchange"] = ""
		args["x-dead-letter-routing-key"] = c.binding.DeadLetterQueue
	}

	if err := ch.ExchangeDeclare(
		c.binding.Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(
		c.binding.Queue,
		true,
		false,
		false,
		false,
		args,
	); err != nil {
		return err
	}

	if err := ch.QueueBind(
		c.binding.Queue,
		c.binding.RoutingKey,
		c.binding.Exchange,
		false,
		nil,
	); err != nil {
		return err
	}

	if c.binding.DeadLetterQueue != "" {
		if _, err := ch.QueueDeclare(
			c.binding.DeadLetterQueue,
			true,
			false,
			false,
			false,
			nil,
		); err != nil {
			return err
		}
	}
	return nil
}

// deliveryAttempts counts earlier deliveries of msg. Quorum queues report
// the count in x-delivery-count; classic queues only flag a redelivery.
func deliveryAttempts(msg *amqp.Delivery) int {
	switch count := msg.Headers["x-delivery-count"].(type) {
	case int64:
		return int(count)
	case int32:
		return int(count)
	case int:
		return count
	}
	if msg.Redelivered {
		return 1
	}
	return 0
}
