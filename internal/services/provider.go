package services

import (
	"context"

	"github.com/gregmarra/the-blue-alliance/internal/models"
)

// Sender delivers a single FCM request. Delivery failures are reported in
// the returned response, never as an error.
type Sender interface {
	Name() string
	Send(ctx context.Context, req *FCMRequest) models.NotificationResponse
}
