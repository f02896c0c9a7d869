package internal

import "time"

// Rows produced by the storage layer's grouping queries and consumed by the
// analytics aggregator.

type LinkClicks struct {
	Link
	ClickCount int64
}

type LinkWindowClicks struct {
	Link
	RecentClicks int64
	TotalClicks  int64
}

// DayCount is a click count for one UTC calendar day formatted YYYY-MM-DD.
type DayCount struct {
	Day    string
	Clicks int64
}

type DeviceCount struct {
	Device DeviceClass
	Count  int64
}

type DayDeviceCount struct {
	Day    string
	Device DeviceClass
	Count  int64
}

// Window is a half-open time range [From, To).
type Window struct {
	From time.Time
	To   time.Time
}
