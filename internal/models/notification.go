package models

import "maps"

// NotificationType identifies the concrete notification variant. Its wire
// name is sent to clients as data.message_type.
type NotificationType int

const (
	NotificationUpcomingMatch NotificationType = iota
	NotificationMatchScore
	NotificationLevelStarting
	NotificationAllianceSelection
	NotificationAwardsPosted
	NotificationMediaPosted
	NotificationDistrictPointsUpdated
	NotificationScheduleUpdated
	NotificationFinalResults
	NotificationPing
	NotificationBroadcast
	NotificationMatchVideo
	NotificationEventMatchVideo
	NotificationUpdateFavorites
	NotificationUpdateSubscriptions
	NotificationVerification
)

var notificationTypeNames = map[NotificationType]string{
	NotificationUpcomingMatch:         "upcoming_match",
	NotificationMatchScore:            "match_score",
	NotificationLevelStarting:         "starting_comp_level",
	NotificationAllianceSelection:     "alliance_selection",
	NotificationAwardsPosted:          "awards_posted",
	NotificationMediaPosted:           "media_posted",
	NotificationDistrictPointsUpdated: "district_points_updated",
	NotificationScheduleUpdated:       "schedule_updated",
	NotificationFinalResults:          "final_results",
	NotificationPing:                  "ping",
	NotificationBroadcast:             "broadcast",
	NotificationMatchVideo:            "match_video",
	NotificationEventMatchVideo:       "event_match_video",
	NotificationUpdateFavorites:       "update_favorites",
	NotificationUpdateSubscriptions:   "update_subscriptions",
	NotificationVerification:          "verification",
}

// String returns the wire name, or "unknown".
func (t NotificationType) String() string {
	if name, ok := notificationTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseNotificationType maps a wire name back to its type.
func ParseNotificationType(name string) (NotificationType, bool) {
	for t, n := range notificationTypeNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}

// NotificationPayload is the generic display payload (title/body).
type NotificationPayload struct {
	Title string
	Body  string
}

// Dict returns the FCM "notification" object, or nil when both fields are empty.
func (p *NotificationPayload) Dict() map[string]any {
	if p == nil {
		return nil
	}
	out := map[string]any{}
	if p.Title != "" {
		out["title"] = p.Title
	}
	if p.Body != "" {
		out["body"] = p.Body
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Notification is an immutable push message. Build it with NewNotification.
type Notification struct {
	kind    NotificationType
	data    map[string]any
	display *NotificationPayload
	shared  *PlatformPayload
	android *AndroidPayload
	apns    *ApnsPayload
	webpush *WebpushPayload
}

// NotificationOption configures a Notification under construction.
type NotificationOption func(*Notification)

// WithData sets the data payload. The map is copied.
func WithData(data map[string]any) NotificationOption {
	return func(n *Notification) { n.data = maps.Clone(data) }
}

// WithDisplay sets the generic display payload.
func WithDisplay(title, body string) NotificationOption {
	return func(n *Notification) { n.display = &NotificationPayload{Title: title, Body: body} }
}

// WithPlatformPayload sets the shared cross-platform payload.
func WithPlatformPayload(p PlatformPayload) NotificationOption {
	return func(n *Notification) { n.shared = &p }
}

// WithAndroid sets the Android override.
func WithAndroid(p AndroidPayload) NotificationOption {
	return func(n *Notification) { n.android = &p }
}

// WithApns sets the APNs override.
func WithApns(p ApnsPayload) NotificationOption {
	return func(n *Notification) { n.apns = &p }
}

// WithWebpush sets the web push override.
func WithWebpush(p WebpushPayload) NotificationOption {
	return func(n *Notification) { n.webpush = &p }
}

// NewNotification builds a Notification of the given type.
func NewNotification(kind NotificationType, opts ...NotificationOption) *Notification {
	n := &Notification{kind: kind}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Notification) Type() NotificationType { return n.kind }

// Data returns a copy of the data payload (never nil).
func (n *Notification) Data() map[string]any {
	if n.data == nil {
		return map[string]any{}
	}
	return maps.Clone(n.data)
}

func (n *Notification) Display() *NotificationPayload { return n.display }

func (n *Notification) PlatformPayload() *PlatformPayload { return n.shared }

// Override returns the platform-specific override for p, or nil.
func (n *Notification) Override(p Platform) PayloadDicter {
	switch p {
	case PlatformAndroid:
		if n.android != nil {
			return n.android
		}
	case PlatformAPNS:
		if n.apns != nil {
			return n.apns
		}
	case PlatformWebpush:
		if n.webpush != nil {
			return n.webpush
		}
	}
	return nil
}

func (n *Notification) String() string {
	title := ""
	if n.display != nil {
		title = n.display.Title
	}
	return "Notification(" + n.kind.String() + ", title=" + title + ")"
}
