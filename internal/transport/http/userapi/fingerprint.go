package userapi

import "strings"

// BrowserFamily reduces a User-Agent header to a coarse family name. Sessions
// are scoped to this family, not the full UA string, so a browser patch
// release does not invalidate the session.
//
// Order matters: Edge and Opera embed "Chrome" in their UA, and Chrome
// embeds "Safari".
func BrowserFamily(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case ua == "":
		return "unknown"
	case strings.Contains(ua, "edg/"), strings.Contains(ua, "edge/"):
		return "edge"
	case strings.Contains(ua, "opr/"), strings.Contains(ua, "opera"):
		return "opera"
	case strings.Contains(ua, "firefox/"):
		return "firefox"
	case strings.Contains(ua, "chrome/"), strings.Contains(ua, "crios/"):
		return "chrome"
	case strings.Contains(ua, "safari/"):
		return "safari"
	default:
		return "other"
	}
}
