package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/gregmarra/the-blue-alliance/internal/models"
)

// FirebaseMessagingScope is the OAuth scope needed for messages:send.
const FirebaseMessagingScope = "https://www.googleapis.com/auth/firebase.messaging"

const fcmErrorType = "type.googleapis.com/google.firebase.fcm.v1.FcmError"

// fcmErrorCodes maps FCM v1 error codes (and canonical statuses) to local codes.
var fcmErrorCodes = map[string]models.FCMErrorCode{
	// FCM v1 error codes
	"APNS_AUTH_ERROR":        models.FCMErrorInvalidAPNSCreds,
	"INTERNAL":               models.FCMErrorInternal,
	"INVALID_ARGUMENT":       models.FCMErrorInvalidArgument,
	"QUOTA_EXCEEDED":         models.FCMErrorRateExceeded,
	"SENDER_ID_MISMATCH":     models.FCMErrorMismatchedCred,
	"THIRD_PARTY_AUTH_ERROR": models.FCMErrorThirdPartyAuthError,
	"UNAVAILABLE":            models.FCMErrorUnavailable,
	"UNREGISTERED":           models.FCMErrorUnregistered,
	// canonical error codes
	"NOT_FOUND":          models.FCMErrorUnregistered,
	"PERMISSION_DENIED":  models.FCMErrorMismatchedCred,
	"RESOURCE_EXHAUSTED": models.FCMErrorRateExceeded,
	"UNAUTHENTICATED":    models.FCMErrorInvalidAPNSCreds,
}

// FCMClient posts FCMRequests to the FCM HTTP v1 API.
type FCMClient struct {
	projectID string
	baseURL   string
	tokens    oauth2.TokenSource
	client    *http.Client
	logger    *slog.Logger
}

// NewFCMClient builds a client for projectID. baseURL defaults to
// https://fcm.googleapis.com.
func NewFCMClient(projectID, baseURL string, tokens oauth2.TokenSource, timeout time.Duration, logger *slog.Logger) *FCMClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://fcm.googleapis.com"
	}
	return &FCMClient{
		projectID: projectID,
		baseURL:   strings.TrimRight(baseURL, "/"),
		tokens:    tokens,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// DefaultTokenSource returns application-default credentials scoped for FCM.
// credentialsFile, when set, takes precedence.
func DefaultTokenSource(ctx context.Context, credentialsFile string) (oauth2.TokenSource, error) {
	if credentialsFile != "" {
		raw, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, raw, FirebaseMessagingScope)
		if err != nil {
			return nil, fmt.Errorf("parse credentials: %w", err)
		}
		return creds.TokenSource, nil
	}
	return google.DefaultTokenSource(ctx, FirebaseMessagingScope)
}

func (c *FCMClient) Name() string {
	return "fcm"
}

// URL is the messages:send endpoint for the configured project.
func (c *FCMClient) URL() string {
	return fmt.Sprintf("%s/v1/projects/%s/messages:send", c.baseURL, c.projectID)
}

// Send performs one POST. Transport and credential failures come back as a
// 500 response carrying the error text.
func (c *FCMClient) Send(ctx context.Context, req *FCMRequest) models.NotificationResponse {
	resp, err := c.send(ctx, req)
	if err != nil {
		c.logger.Warn("fcm send failed", slog.String("request", req.String()), slog.Any("error", err))
		return models.NotificationResponse{StatusCode: http.StatusInternalServerError, Content: err.Error()}
	}
	if !resp.OK() {
		c.logger.Info("fcm returned error",
			slog.String("request", req.String()),
			slog.Int("status", resp.StatusCode),
			slog.String("code", resp.Content),
			slog.String("detail", resp.Detail),
		)
	}
	return resp
}

func (c *FCMClient) send(ctx context.Context, req *FCMRequest) (models.NotificationResponse, error) {
	body, err := req.JSON()
	if err != nil {
		return models.NotificationResponse{}, err
	}

	token, err := c.tokens.Token()
	if err != nil {
		return models.NotificationResponse{}, fmt.Errorf("fcm access token: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(), bytes.NewReader(body))
	if err != nil {
		return models.NotificationResponse{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return models.NotificationResponse{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.NotificationResponse{}, err
	}
	return TransformFCMResponse(resp.StatusCode, raw)
}

type fcmErrorBody struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Type      string `json:"@type"`
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

// TransformFCMResponse maps an FCM HTTP response onto a NotificationResponse.
// Without an "error" object the status and body pass through unchanged.
// With one, the FcmError detail code (or the canonical status) is mapped to
// the local taxonomy and the provider message moves to Detail.
func TransformFCMResponse(status int, body []byte) (models.NotificationResponse, error) {
	var parsed fcmErrorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return models.NotificationResponse{}, fmt.Errorf("decode fcm response: %w", err)
	}
	if parsed.Error == nil {
		return models.NotificationResponse{StatusCode: status, Content: string(body)}, nil
	}

	var code string
	for _, detail := range parsed.Error.Details {
		if detail.Type == fcmErrorType {
			code = detail.ErrorCode
			break
		}
	}
	if code == "" {
		code = parsed.Error.Status
	}

	mapped, ok := fcmErrorCodes[code]
	if !ok {
		mapped = models.FCMErrorUnknown
	}
	statusCode := parsed.Error.Code
	if statusCode == 0 {
		statusCode = status
	}
	return models.NotificationResponse{
		StatusCode: statusCode,
		Content:    string(mapped),
		Detail:     parsed.Error.Message,
	}, nil
}
