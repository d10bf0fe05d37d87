package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gregmarra/the-blue-alliance/internal/models"
	"github.com/gregmarra/the-blue-alliance/pkg/metrics"
	"github.com/gregmarra/the-blue-alliance/pkg/retry"
)

// ErrPermanent marks a job failure that redelivery cannot fix.
var ErrPermanent = errors.New("permanent push failure")

// TokenCache tracks registration tokens FCM reported as unregistered.
type TokenCache interface {
	IsTokenSuppressed(ctx context.Context, token string) (bool, error)
	SuppressToken(ctx context.Context, token string, ttl time.Duration) error
}

// PushProcessor turns queued PushJobs into FCM sends. It is the caller of
// the sender, so retries and token hygiene live here.
type PushProcessor struct {
	sender        Sender
	statusUpdater *StatusUpdater
	tokens        TokenCache
	metrics       *metrics.Metrics
	logger        *slog.Logger
	retryCfg      retry.Config
}

func NewPushProcessor(
	sender Sender,
	statusUpdater *StatusUpdater,
	tokens TokenCache,
	metrics *metrics.Metrics,
	logger *slog.Logger,
	retryCfg retry.Config,
) *PushProcessor {
	return &PushProcessor{
		sender:        sender,
		statusUpdater: statusUpdater,
		tokens:        tokens,
		metrics:       metrics,
		logger:        logger,
		retryCfg:      retryCfg,
	}
}

// Process handles one job. A nil return means the job is finished
// (delivered or suppressed); errors wrapping ErrPermanent must not be
// redelivered.
func (p *PushProcessor) Process(ctx context.Context, job *models.PushJob) error {
	p.metrics.IncConsumed()
	target := describeTarget(job)

	req, err := BuildRequest(job)
	if err != nil {
		p.metrics.IncFailed()
		p.statusUpdater.MarkFailed(ctx, job.RequestID, target, err.Error())
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	}

	if job.Token != "" {
		if job.ClientType != "" && !models.SupportsFCM(job.ClientType) {
			p.metrics.IncFailed()
			p.statusUpdater.MarkFailed(ctx, job.RequestID, target, "client type does not use fcm")
			return fmt.Errorf("%w: unsupported client type %q", ErrPermanent, job.ClientType)
		}
		if p.tokens != nil {
			suppressed, err := p.tokens.IsTokenSuppressed(ctx, job.Token)
			if err != nil {
				p.logger.Error("failed to check token suppression", slog.Any("error", err))
				return err
			}
			if suppressed {
				p.metrics.IncSuppressed()
				p.statusUpdater.MarkSuppressed(ctx, job.RequestID, target)
				return nil
			}
		}
	}

	p.statusUpdater.MarkProcessing(ctx, job.RequestID, target)

	var resp models.NotificationResponse
	attempt := 0
	sendErr := retry.Do(ctx, p.retryCfg, func() error {
		attempt++
		if attempt > 1 {
			p.metrics.IncRetried()
		}
		resp = p.sender.Send(ctx, req)
		if resp.OK() {
			return nil
		}
		err := fmt.Errorf("%s: status %d: %s", p.sender.Name(), resp.StatusCode, resp.Content)
		if !IsRetryable(resp) {
			return retry.Permanent(err)
		}
		p.logger.Warn("push send failed, retrying",
			slog.String("request_id", job.RequestID),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
		return err
	})

	p.statusUpdater.MarkResult(ctx, job.RequestID, target, resp)

	if sendErr == nil {
		p.metrics.IncDelivered()
		return nil
	}

	p.metrics.IncFailed()
	if resp.ErrorCode() == models.FCMErrorUnregistered && job.Token != "" && p.tokens != nil {
		if err := p.tokens.SuppressToken(ctx, job.Token, 0); err != nil {
			p.logger.Error("failed to suppress token", slog.Any("error", err))
		}
	}
	if !IsRetryable(resp) {
		return fmt.Errorf("%w: %v", ErrPermanent, sendErr)
	}
	return sendErr
}

// IsRetryable reports whether a failed response may succeed on a later attempt.
func IsRetryable(resp models.NotificationResponse) bool {
	if resp.OK() {
		return false
	}
	switch resp.ErrorCode() {
	case models.FCMErrorUnavailable, models.FCMErrorInternal, models.FCMErrorRateExceeded:
		return true
	}
	return resp.StatusCode >= http.StatusInternalServerError
}

// BuildRequest converts a queued job into an FCMRequest.
func BuildRequest(job *models.PushJob) (*FCMRequest, error) {
	kind, ok := models.ParseNotificationType(job.Type)
	if !ok {
		return nil, fmt.Errorf("unknown notification type %q", job.Type)
	}

	opts := []models.NotificationOption{models.WithData(job.Data)}
	title := RenderText(job.Title, job.Variables)
	body := RenderText(job.Body, job.Variables)
	if title != "" || body != "" {
		opts = append(opts, models.WithDisplay(title, body))
	}
	if priority := models.ParsePriority(job.Priority); priority != models.PriorityUnset || job.CollapseKey != "" {
		opts = append(opts, models.WithPlatformPayload(models.PlatformPayload{Priority: priority, CollapseKey: job.CollapseKey}))
	}
	if job.Android != nil {
		opts = append(opts, models.WithAndroid(*job.Android))
	}
	if job.Apns != nil {
		opts = append(opts, models.WithApns(*job.Apns))
	}
	if job.Webpush != nil {
		opts = append(opts, models.WithWebpush(*job.Webpush))
	}

	var targets []DeliveryOption
	if job.Token != "" {
		targets = append(targets, WithToken(job.Token))
	}
	if job.Topic != "" {
		targets = append(targets, WithTopic(job.Topic))
	}
	if job.Condition != "" {
		targets = append(targets, WithCondition(job.Condition))
	}
	return NewFCMRequest(models.NewNotification(kind, opts...), targets...)
}

func describeTarget(job *models.PushJob) string {
	switch {
	case job.Token != "":
		return "token"
	case job.Topic != "":
		return "topic:" + job.Topic
	case job.Condition != "":
		return "condition"
	default:
		return ""
	}
}
