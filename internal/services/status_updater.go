package services

import (
	"context"
	"log/slog"

	"github.com/gregmarra/the-blue-alliance/internal/models"
	"github.com/gregmarra/the-blue-alliance/internal/repository"
)

// DeliveryStore persists push delivery transitions.
type DeliveryStore interface {
	UpdateStatus(ctx context.Context, u repository.DeliveryUpdate) error
}

// StatusUpdater records delivery transitions. Store failures are logged,
// never returned: bookkeeping must not fail a send.
type StatusUpdater struct {
	store  DeliveryStore
	logger *slog.Logger
}

func NewStatusUpdater(store DeliveryStore, logger *slog.Logger) *StatusUpdater {
	return &StatusUpdater{
		store:  store,
		logger: logger,
	}
}

func (s *StatusUpdater) MarkProcessing(ctx context.Context, requestID, target string) {
	s.update(ctx, repository.DeliveryUpdate{RequestID: requestID, Status: models.StatusProcessing, Target: target})
}

func (s *StatusUpdater) MarkSuppressed(ctx context.Context, requestID, target string) {
	s.update(ctx, repository.DeliveryUpdate{RequestID: requestID, Status: models.StatusSuppressed, Target: target})
}

// MarkResult records the terminal outcome carried by resp.
func (s *StatusUpdater) MarkResult(ctx context.Context, requestID, target string, resp models.NotificationResponse) {
	u := repository.DeliveryUpdate{
		RequestID:  requestID,
		Target:     target,
		StatusCode: resp.StatusCode,
	}
	if resp.OK() {
		u.Status = models.StatusDelivered
	} else {
		u.Status = models.StatusFailed
		u.ErrorCode = string(resp.ErrorCode())
		u.Detail = resp.Detail
	}
	s.update(ctx, u)
}

// MarkFailed records a failure that happened before anything was sent.
func (s *StatusUpdater) MarkFailed(ctx context.Context, requestID, target, detail string) {
	s.update(ctx, repository.DeliveryUpdate{RequestID: requestID, Status: models.StatusFailed, Target: target, Detail: detail})
}

func (s *StatusUpdater) update(ctx context.Context, u repository.DeliveryUpdate) {
	if s.store == nil {
		return
	}
	if err := s.store.UpdateStatus(ctx, u); err != nil {
		s.logger.Error("failed to update delivery status",
			slog.String("request_id", u.RequestID),
			slog.String("status", u.Status),
			slog.Any("error", err),
		)
	}
}
