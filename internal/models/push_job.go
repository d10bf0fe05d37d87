package models

import "time"

// PushJob is the queue message the dispatch worker consumes. Exactly one of
// Token, Topic or Condition must be set.
type PushJob struct {
	RequestID  string    `json:"request_id"`
	CreatedAt  time.Time `json:"created_at"`
	Type       string    `json:"type"`
	Token      string    `json:"token,omitempty"`
	ClientType string    `json:"client_type,omitempty"`
	Topic      string    `json:"topic,omitempty"`
	Condition  string    `json:"condition,omitempty"`

	Data      map[string]any `json:"data,omitempty"`
	Title     string         `json:"title,omitempty"`
	Body      string         `json:"body,omitempty"`
	Variables map[string]any `json:"variables,omitempty"`

	Priority    string `json:"priority,omitempty"`
	CollapseKey string `json:"collapse_key,omitempty"`

	Android *AndroidPayload `json:"android,omitempty"`
	Apns    *ApnsPayload    `json:"apns,omitempty"`
	Webpush *WebpushPayload `json:"webpush,omitempty"`
}

// ParsePriority maps "high"/"normal" to a Priority.
func ParsePriority(raw string) Priority {
	switch raw {
	case "high", "HIGH":
		return PriorityHigh
	case "normal", "NORMAL":
		return PriorityNormal
	default:
		return PriorityUnset
	}
}
