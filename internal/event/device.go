package event

import (
	"strings"

	"security-monitor/internal/model"
)

// Ordered so Edge is checked before Chrome and Chrome before Safari; their
// user-agent strings embed each other's tokens.
var browserTokens = []struct {
	token   string
	browser string
}{
	{"edg", "Edge"},
	{"chrome", "Chrome"},
	{"firefox", "Firefox"},
	{"safari", "Safari"},
}

// iOS before macOS: iPhone user agents carry "like Mac OS X".
var osTokens = []struct {
	token string
	os    string
}{
	{"android", "Android"},
	{"iphone", "iOS"},
	{"ipad", "iOS"},
	{"windows", "Windows"},
	{"mac os", "macOS"},
	{"macintosh", "macOS"},
	{"linux", "Linux"},
}

// ParseDevice derives coarse device info from a user-agent string by
// substring matching. Anything unrecognized comes back as "Unknown".
func ParseDevice(userAgent string) *model.DeviceInfo {
	info := &model.DeviceInfo{
		Type:    "Unknown",
		OS:      "Unknown",
		Browser: "Unknown",
	}
	if userAgent == "" {
		return info
	}

	ua := strings.ToLower(userAgent)

	for _, t := range osTokens {
		if strings.Contains(ua, t.token) {
			info.OS = t.os
			break
		}
	}
	for _, t := range browserTokens {
		if strings.Contains(ua, t.token) {
			info.Browser = t.browser
			break
		}
	}

	switch info.OS {
	case "Android", "iOS":
		info.Type = "mobile"
	case "Windows", "macOS", "Linux":
		info.Type = "desktop"
	}

	return info
}
