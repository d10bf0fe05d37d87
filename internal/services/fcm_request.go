package services

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gregmarra/the-blue-alliance/internal/models"
)

var (
	ErrNoDeliveryOption        = errors.New("fcm request requires a delivery option - token, topic, or condition")
	ErrMultipleDeliveryOptions = errors.New("fcm request only accepts one delivery option - token, topic, or condition")
	ErrInvalidDeliveryOption   = errors.New("fcm request delivery option must be a non-empty string")
)

// DeliveryOption selects the FCM target of a request.
type DeliveryOption func(*deliveryTarget)

type deliveryTarget struct {
	kind  string
	value string
	count int
}

// WithToken targets a single registration token.
func WithToken(token string) DeliveryOption {
	return target("token", token)
}

// WithTopic targets a topic name.
func WithTopic(topic string) DeliveryOption {
	return target("topic", topic)
}

// WithCondition targets a topic condition expression.
func WithCondition(condition string) DeliveryOption {
	return target("condition", condition)
}

func target(kind, value string) DeliveryOption {
	return func(t *deliveryTarget) {
		t.count++
		t.kind = kind
		t.value = value
	}
}

// FCMRequest pairs a Notification with exactly one delivery target.
type FCMRequest struct {
	notification *models.Notification
	targetKind   string
	targetValue  string
}

// NewFCMRequest validates the delivery target and builds the request.
func NewFCMRequest(notification *models.Notification, opts ...DeliveryOption) (*FCMRequest, error) {
	if notification == nil {
		return nil, errors.New("fcm request requires a notification")
	}
	var t deliveryTarget
	for _, opt := range opts {
		opt(&t)
	}
	switch {
	case t.count == 0:
		return nil, ErrNoDeliveryOption
	case t.count > 1:
		return nil, ErrMultipleDeliveryOptions
	case t.value == "":
		return nil, ErrInvalidDeliveryOption
	}
	return &FCMRequest{
		notification: notification,
		targetKind:   t.kind,
		targetValue:  t.value,
	}, nil
}

// Target returns the delivery option kind ("token", "topic" or "condition") and its value.
func (r *FCMRequest) Target() (string, string) {
	return r.targetKind, r.targetValue
}

func (r *FCMRequest) Notification() *models.Notification { return r.notification }

func (r *FCMRequest) String() string {
	return fmt.Sprintf("FCMRequest(%s=%q, notification=%s)", r.targetKind, r.targetValue, r.notification)
}

// Message builds the FCM v1 message object (the value of "message").
func (r *FCMRequest) Message() map[string]any {
	msg := map[string]any{
		r.targetKind: r.targetValue,
	}

	data := r.notification.Data()
	data["message_type"] = r.notification.Type().String()
	msg["data"] = data

	if display := r.notification.Display().Dict(); display != nil {
		msg["notification"] = display
	}

	shared := r.notification.PlatformPayload()
	for _, platform := range models.Platforms {
		if payload := models.ResolvePlatformPayload(platform, r.notification.Override(platform), shared); payload != nil {
			msg[platform.Key()] = payload
		}
	}
	return msg
}

// JSON renders the request body sent to FCM: {"message": {...}}.
func (r *FCMRequest) JSON() ([]byte, error) {
	return json.Marshal(map[string]any{"message": r.Message()})
}
