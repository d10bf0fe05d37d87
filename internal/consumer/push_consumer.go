package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/gregmarra/the-blue-alliance/internal/models"
	"github.com/gregmarra/the-blue-alliance/internal/services"
)

// JobProcessor handles one decoded push job.
type JobProcessor interface {
	Process(ctx context.Context, job *models.PushJob) error
}

// PushConsumer feeds push jobs to a JobProcessor. maxDeliveries bounds how
// many times the broker hands out one job before it is dead-lettered.
type PushConsumer struct {
	base          *BaseConsumer
	processor     JobProcessor
	logger        *slog.Logger
	maxDeliveries int
}

func NewPushConsumer(base *BaseConsumer, processor JobProcessor, logger *slog.Logger, maxDeliveries int) *PushConsumer {
	if maxDeliveries <= 0 {
		maxDeliveries = 2
	}
	return &PushConsumer{
		base:          base,
		processor:     processor,
		logger:        logger,
		maxDeliveries: maxDeliveries,
	}
}

func (p *PushConsumer) Start(ctx context.Context) error {
	return p.base.Start(ctx, p.handleDelivery)
}

func (p *PushConsumer) handleDelivery(ctx context.Context, msg amqp.Delivery) error {
	var job models.PushJob
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		p.logger.Error("failed to unmarshal push job", slog.Any("error", err))
		_ = msg.Reject(false)
		return err
	}

	if err := p.processor.Process(ctx, &job); err != nil {
		requeue := !errors.Is(err, services.ErrPermanent) && p.shouldRetry(&msg)
		if requeue {
			p.logger.Warn("processing failed, message requeued", slog.String("request_id", job.RequestID), slog.Any("error", err))
		} else {
			p.logger.Error("processing failed, message dead-lettered", slog.String("request_id", job.RequestID), slog.Any("error", err))
		}
		_ = msg.Nack(false, requeue)
		return err
	}

	return msg.Ack(false)
}

// shouldRetry requeues while the broker has delivered msg fewer than
// maxDeliveries times, counting this delivery.
func (p *PushConsumer) shouldRetry(msg *amqp.Delivery) bool {
	return deliveryAttempts(msg)+1 < p.maxDeliveries
}
