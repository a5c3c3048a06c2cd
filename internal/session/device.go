package session

import (
	"fmt"

	"github.com/mssola/useragent"
)

// DeviceName condenses a User-Agent header into a short display name stored
// on the session for audit visibility ("Chrome on Linux", "Mobile Safari on
// iPhone"). Unknown agents fall back to a stable placeholder.
func DeviceName(userAgent string) string {
	if userAgent == "" {
		return "Unknown device"
	}
	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	os := ua.OS()
	switch {
	case browser != "" && os != "":
		return fmt.Sprintf("%s on %s", browser, os)
	case browser != "":
		return browser
	case os != "":
		return os
	default:
		return "Unknown device"
	}
}
