package internal

import "strings"

type DeviceClass string

const (
	DeviceMobile  DeviceClass = "Mobile"
	DeviceTablet  DeviceClass = "Tablet"
	DeviceDesktop DeviceClass = "Desktop"
)

// ClassifyDevice buckets a user agent into a coarse device class. "mobile"
// wins over "tablet" when both appear; everything else is Desktop.
func ClassifyDevice(userAgent string) DeviceClass {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "mobile"):
		return DeviceMobile
	case strings.Contains(ua, "tablet"):
		return DeviceTablet
	default:
		return DeviceDesktop
	}
}
