package presence

import (
	"strings"

	"tools.zach/dev/jellycord/internal/jellyfin"
)

// mobileMarkers are the substrings that classify a device or client as mobile.
var mobileMarkers = []string{"mobile", "android", "ios", "iphone", "ipad"}

// IsMobile reports whether the session's device name or client name contains
// any mobile marker, ignoring case.
func IsMobile(s jellyfin.Session) bool {
	device := strings.ToLower(s.DeviceName)
	client := strings.ToLower(s.Client)
	for _, m := range mobileMarkers {
		if strings.Contains(device, m) || strings.Contains(client, m) {
			return true
		}
	}
	return false
}

// Select picks the session to display for userID. Sessions belonging to other
// users (compared case-insensitively) and idle sessions are ignored. The first
// mobile session wins; otherwise the first remaining session in the given
// order. The boolean is false when no session qualifies.
func Select(sessions []jellyfin.Session, userID string) (jellyfin.Session, bool) {
	var first *jellyfin.Session
	for i := range sessions {
		s := &sessions[i]
		if !strings.EqualFold(s.UserID, userID) || s.Idle() {
			continue
		}
		if IsMobile(*s) {
			return *s, true
		}
		if first == nil {
			first = s
		}
	}
	if first == nil {
		return jellyfin.Session{}, false
	}
	return *first, true
}
