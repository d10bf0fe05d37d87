package models

import "strings"

// ClientType normalizes the client type a device token was registered
// from. Only FCM-backed clients can receive pushes.
func ClientType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "android", "os_android":
		return "android"
	case "ios", "os_ios":
		return "ios"
	case "web", "webhook_web":
		return "web"
	default:
		return "unknown"
	}
}

// SupportsFCM reports whether tokens from this client type go through FCM.
func SupportsFCM(clientType string) bool {
	switch ClientType(clientType) {
	case "android", "ios", "web":
		return true
	default:
		return false
	}
}
