package models

import (
	"fmt"
	"net/http"
)

// FCMErrorCode is the local error taxonomy FCM errors are normalized into.
type FCMErrorCode string

const (
	FCMErrorInvalidArgument     FCMErrorCode = "invalid-argument"
	FCMErrorInternal            FCMErrorCode = "internal-error"
	FCMErrorRateExceeded        FCMErrorCode = "message-rate-exceeded"
	FCMErrorMismatchedCred      FCMErrorCode = "mismatched-credential"
	FCMErrorUnavailable         FCMErrorCode = "server-unavailable"
	FCMErrorUnregistered        FCMErrorCode = "registration-token-not-registered"
	FCMErrorInvalidAPNSCreds    FCMErrorCode = "invalid-apns-credentials"
	FCMErrorThirdPartyAuthError FCMErrorCode = "third-party-auth-error"
	FCMErrorUnknown             FCMErrorCode = "unknown-error"
)

// NotificationResponse is the terminal value of a send attempt. Content is
// the raw provider body on success, or the mapped FCMErrorCode when the
// provider reported a structured error.
type NotificationResponse struct {
	StatusCode int
	Content    string
	// Detail carries the provider's human-readable error message, when one
	// was present. It is for logs only.
	Detail string
}

// OK reports a 2xx status.
func (r NotificationResponse) OK() bool {
	return r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}

// ErrorCode returns the mapped error code, or "" for successful responses.
func (r NotificationResponse) ErrorCode() FCMErrorCode {
	if r.OK() {
		return ""
	}
	return FCMErrorCode(r.Content)
}

func (r NotificationResponse) String() string {
	return fmt.Sprintf("NotificationResponse(code=%d content=%q)", r.StatusCode, r.Content)
}

// Delivery statuses recorded per push job.
const (
	StatusProcessing = "processing"
	StatusDelivered  = "delivered"
	StatusFailed     = "failed"
	StatusSuppressed = "suppressed"
)
