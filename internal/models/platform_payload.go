package models

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Platform is one of the delivery platforms FCM accepts overrides for.
type Platform int

const (
	PlatformAndroid Platform = iota
	PlatformAPNS
	PlatformWebpush
)

// Platforms lists every supported platform in envelope order.
var Platforms = []Platform{PlatformAndroid, PlatformAPNS, PlatformWebpush}

// Key is the envelope field name for the platform.
func (p Platform) Key() string {
	switch p {
	case PlatformAndroid:
		return "android"
	case PlatformAPNS:
		return "apns"
	case PlatformWebpush:
		return "webpush"
	default:
		return ""
	}
}

// Priority is the cross-platform delivery priority.
type Priority int

const (
	PriorityUnset Priority = iota
	PriorityNormal
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	default:
		return ""
	}
}

func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts the names ParsePriority knows. An empty string or
// null leaves the priority unset.
func (p *Priority) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("priority must be a string: %w", err)
	}
	if raw == nil || *raw == "" {
		*p = PriorityUnset
		return nil
	}
	parsed := ParsePriority(*raw)
	if parsed == PriorityUnset {
		return fmt.Errorf("unknown priority %q", *raw)
	}
	*p = parsed
	return nil
}

// PayloadDicter is implemented by payloads that render into an envelope
// field. A nil or empty result means "omit".
type PayloadDicter interface {
	Dict() map[string]any
}

// PlatformPayload is the shared payload adapted for each platform.
type PlatformPayload struct {
	Priority    Priority
	CollapseKey string
}

// PlatformDict adapts the shared payload for one platform. Returns nil when
// nothing applies.
func (p *PlatformPayload) PlatformDict(platform Platform) map[string]any {
	if p == nil {
		return nil
	}
	switch platform {
	case PlatformAndroid:
		out := map[string]any{}
		if p.CollapseKey != "" {
			out["collapse_key"] = p.CollapseKey
		}
		switch p.Priority {
		case PriorityHigh:
			out["priority"] = "HIGH"
		case PriorityNormal:
			out["priority"] = "NORMAL"
		}
		return nonEmpty(out)
	case PlatformAPNS:
		headers := map[string]any{}
		if p.CollapseKey != "" {
			headers["apns-collapse-id"] = p.CollapseKey
		}
		switch p.Priority {
		case PriorityHigh:
			headers["apns-priority"] = "10"
		case PriorityNormal:
			headers["apns-priority"] = "5"
		}
		if len(headers) == 0 {
			return nil
		}
		return map[string]any{"headers": headers}
	case PlatformWebpush:
		headers := map[string]any{}
		if p.CollapseKey != "" {
			headers["Topic"] = p.CollapseKey
		}
		switch p.Priority {
		case PriorityHigh:
			headers["Urgency"] = "high"
		case PriorityNormal:
			headers["Urgency"] = "normal"
		}
		if len(headers) == 0 {
			return nil
		}
		return map[string]any{"headers": headers}
	}
	return nil
}

// AndroidPayload overrides the shared payload for Android.
type AndroidPayload struct {
	CollapseKey string            `json:"collapse_key,omitempty"`
	Priority    Priority          `json:"priority,omitempty"`
	TTL         string            `json:"ttl,omitempty"`
	Data        map[string]string `json:"data,omitempty"`
}

func (p *AndroidPayload) Dict() map[string]any {
	if p == nil {
		return nil
	}
	out := map[string]any{}
	if p.CollapseKey != "" {
		out["collapse_key"] = p.CollapseKey
	}
	switch p.Priority {
	case PriorityHigh:
		out["priority"] = "HIGH"
	case PriorityNormal:
		out["priority"] = "NORMAL"
	}
	if p.TTL != "" {
		out["ttl"] = p.TTL
	}
	if len(p.Data) > 0 {
		out["data"] = maps.Clone(p.Data)
	}
	return nonEmpty(out)
}

// ApnsPayload overrides the shared payload for APNs.
type ApnsPayload struct {
	Headers map[string]string `json:"headers,omitempty"`
	Payload map[string]any    `json:"payload,omitempty"`
}

func (p *ApnsPayload) Dict() map[string]any {
	if p == nil {
		return nil
	}
	out := map[string]any{}
	if len(p.Headers) > 0 {
		out["headers"] = maps.Clone(p.Headers)
	}
	if len(p.Payload) > 0 {
		out["payload"] = maps.Clone(p.Payload)
	}
	return nonEmpty(out)
}

// WebpushPayload overrides the shared payload for web push.
type WebpushPayload struct {
	Headers      map[string]string `json:"headers,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
	Notification map[string]any    `json:"notification,omitempty"`
}

func (p *WebpushPayload) Dict() map[string]any {
	if p == nil {
		return nil
	}
	out := map[string]any{}
	if len(p.Headers) > 0 {
		out["headers"] = maps.Clone(p.Headers)
	}
	if len(p.Data) > 0 {
		out["data"] = maps.Clone(p.Data)
	}
	if len(p.Notification) > 0 {
		out["notification"] = maps.Clone(p.Notification)
	}
	return nonEmpty(out)
}

// ResolvePlatformPayload picks the envelope content for one platform: the
// override when present, otherwise the shared payload adapted for the
// platform. A nil result means the platform field is omitted.
func ResolvePlatformPayload(platform Platform, override PayloadDicter, shared *PlatformPayload) map[string]any {
	if override != nil {
		return nonEmpty(override.Dict())
	}
	if shared != nil {
		return shared.PlatformDict(platform)
	}
	return nil
}

func nonEmpty(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	return m
}
