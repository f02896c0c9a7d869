package analytics

import (
	"time"

	"github.com/MagnunAVF/shortlink/internal"
)

const noTopLink = "None"

type LinkSummary struct {
	ID               string                    `json:"id"`
	OriginalURL      string                    `json:"originalUrl"`
	ShortCode        string                    `json:"shortCode"`
	Title            string                    `json:"title"`
	CreatedAt        time.Time                 `json:"createdAt"`
	ExpiresAt        *time.Time                `json:"expiresAt"`
	ClickCount       int64                     `json:"clickCount"`
	ExpirationStatus internal.ExpirationStatus `json:"expirationStatus"`
}

type Totals struct {
	TotalLinks        int     `json:"totalLinks"`
	TotalClicks       int64   `json:"totalClicks"`
	AvgClicksPerLink  float64 `json:"avgClicksPerLink"`
	TopPerformingLink string  `json:"topPerformingLink"`
}

type Summary struct {
	Links   []LinkSummary `json:"links"`
	Summary Totals        `json:"summary"`
}

type DailyClickBucket struct {
	Date   string `json:"date"`
	Clicks int64  `json:"clicks"`
}

type DailyStats struct {
	Today         int64   `json:"today"`
	Yesterday     int64   `json:"yesterday"`
	Weekly        int64   `json:"weekly"`
	DailyGrowth   float64 `json:"dailyGrowth"`
	WeeklyAverage float64 `json:"weeklyAverage"`
}

type DeviceBreakdownEntry struct {
	Device     internal.DeviceClass `json:"device"`
	Count      int64                `json:"count"`
	Percentage float64              `json:"percentage"`
}

type DeviceBreakdown struct {
	Devices []DeviceBreakdownEntry `json:"devices"`
	Total   int64                  `json:"total"`
}

type LinkPerformanceEntry struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	ShortCode         string    `json:"shortCode"`
	OriginalURL       string    `json:"originalUrl"`
	CreatedAt         time.Time `json:"createdAt"`
	RecentClicks      int64     `json:"recentClicks"`
	TotalClicks       int64     `json:"totalClicks"`
	PercentageOfTotal float64   `json:"percentageOfTotal"`
	ClicksPerDay      float64   `json:"clicksPerDay"`
}

type LinkPerformance struct {
	Links             []LinkPerformanceEntry `json:"links"`
	TotalRecentClicks int64                  `json:"totalRecentClicks"`
	Period            string                 `json:"period"`
}

type DeviceCount struct {
	Device internal.DeviceClass `json:"device"`
	Count  int64                `json:"count"`
}

type DayDetail struct {
	Date    string        `json:"date"`
	Devices []DeviceCount `json:"devices"`
	Total   int64         `json:"total"`
}

// LinkDetail is the per-day, per-device history of a single link.
type LinkDetail struct {
	Link        LinkSummary `json:"link"`
	Days        []DayDetail `json:"clicks"`
	TotalClicks int64       `json:"totalClicks"`
}
