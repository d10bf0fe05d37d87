package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregmarra/the-blue-alliance/internal/models"
	"github.com/gregmarra/the-blue-alliance/internal/services"
	"github.com/gregmarra/the-blue-alliance/internal/tasks"
	"github.com/gregmarra/the-blue-alliance/pkg/logger"
)

type ackRecorder struct {
	outcome string
	requeue bool
}

func (a *ackRecorder) Ack(uint64, bool) error { a.outcome = "ack"; return nil }

func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.outcome, a.requeue = "nack", requeue
	return nil
}

func (a *ackRecorder) Reject(_ uint64, requeue bool) error {
	a.outcome, a.requeue = "reject", requeue
	return nil
}

type processorFunc func(ctx context.Context, job *models.PushJob) error

func (f processorFunc) Process(ctx context.Context, job *models.PushJob) error { return f(ctx, job) }

func delivery(t *testing.T, body any, ack amqp.Acknowledger) amqp.Delivery {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, Body: raw}
}

func TestPushConsumerAcksSuccess(t *testing.T) {
	var got *models.PushJob
	c := NewPushConsumer(nil, processorFunc(func(_ context.Context, job *models.PushJob) error {
		got = job
		return nil
	}), logger.Discard(), 3)

	ack := &ackRecorder{}
	err := c.handleDelivery(context.Background(), delivery(t, models.PushJob{RequestID: "r1", Type: "ping", Topic: "broadcasts"}, ack))
	require.NoError(t, err)
	assert.Equal(t, "ack", ack.outcome)
	require.NotNil(t, got)
	assert.Equal(t, "r1", got.RequestID)
}

func TestPushConsumerRejectsGarbage(t *testing.T) {
	c := NewPushConsumer(nil, processorFunc(func(context.Context, *models.PushJob) error { return nil }), logger.Discard(), 3)
	ack := &ackRecorder{}
	err := c.handleDelivery(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte("{not json")})
	assert.Error(t, err)
	assert.Equal(t, "reject", ack.outcome)
	assert.False(t, ack.requeue)
}

func TestPushConsumerFailureHandling(t *testing.T) {
	transient := errors.New("fcm: status 503")
	permanent := fmt.Errorf("%w: invalid-argument", services.ErrPermanent)

	tests := []struct {
		name          string
		err           error
		maxDeliveries int
		redelivered   bool
		headers       amqp.Table
		wantRequeue   bool
	}{
		{name: "transient first delivery", err: transient, maxDeliveries: 2, wantRequeue: true},
		{name: "transient redelivery at limit", err: transient, maxDeliveries: 2, redelivered: true, wantRequeue: false},
		{name: "permanent", err: permanent, maxDeliveries: 5, wantRequeue: false},
		{name: "single delivery allowed", err: transient, maxDeliveries: 1, wantRequeue: false},
		{
			name:          "quorum count below limit",
			err:           transient,
			maxDeliveries: 4,
			redelivered:   true,
			headers:       amqp.Table{"x-delivery-count": int64(2)},
			wantRequeue:   true,
		},
		{
			name:          "quorum count reaches limit",
			err:           transient,
			maxDeliveries: 4,
			redelivered:   true,
			headers:       amqp.Table{"x-delivery-count": int64(3)},
			wantRequeue:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewPushConsumer(nil, processorFunc(func(context.Context, *models.PushJob) error { return tt.err }), logger.Discard(), tt.maxDeliveries)
			ack := &ackRecorder{}
			msg := delivery(t, models.PushJob{RequestID: "r"}, ack)
			msg.Redelivered = tt.redelivered
			msg.Headers = tt.headers

			assert.ErrorIs(t, c.handleDelivery(context.Background(), msg), tt.err)
			assert.Equal(t, "nack", ack.outcome)
			assert.Equal(t, tt.wantRequeue, ack.requeue)
		})
	}
}

func TestDeliveryAttempts(t *testing.T) {
	assert.Equal(t, 0, deliveryAttempts(&amqp.Delivery{}))
	assert.Equal(t, 1, deliveryAttempts(&amqp.Delivery{Redelivered: true}))
	assert.Equal(t, 4, deliveryAttempts(&amqp.Delivery{Redelivered: true, Headers: amqp.Table{
		"x-delivery-count": int64(4),
	}}))
	assert.Equal(t, 2, deliveryAttempts(&amqp.Delivery{Headers: amqp.Table{
		"x-delivery-count": int32(2),
	}}))
}

func TestTaskConsumer(t *testing.T) {
	registry := tasks.NewRegistry(nil, logger.Discard())
	var ran []string
	registry.Register("ok", func(_ context.Context, task tasks.Task) error {
		ran = append(ran, task.Name)
		return nil
	})
	registry.Register("flaky", func(context.Context, tasks.Task) error { return errors.New("upstream 503") })

	c := NewTaskConsumer(nil, registry, logger.Discard())

	okTask, _ := tasks.New("ok", nil)
	ack := &ackRecorder{}
	require.NoError(t, c.handleDelivery(context.Background(), delivery(t, okTask, ack)))
	assert.Equal(t, "ack", ack.outcome)
	assert.Equal(t, []string{"ok"}, ran)

	unknown, _ := tasks.New("nope", nil)
	ack = &ackRecorder{}
	assert.ErrorIs(t, c.handleDelivery(context.Background(), delivery(t, unknown, ack)), tasks.ErrUnknownTask)
	assert.Equal(t, "reject", ack.outcome)

	flaky, _ := tasks.New("flaky", nil)
	ack = &ackRecorder{}
	assert.Error(t, c.handleDelivery(context.Background(), delivery(t, flaky, ack)))
	assert.Equal(t, "nack", ack.outcome)
	assert.True(t, ack.requeue)

	ack = &ackRecorder{}
	msg := delivery(t, flaky, ack)
	msg.Redelivered = true
	assert.Error(t, c.handleDelivery(context.Background(), msg))
	assert.False(t, ack.requeue)
}
