// Package analytics builds owner-scoped click reports from the storage
// layer's grouped counts.
package analytics

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/MagnunAVF/shortlink/internal"
)

const (
	DefaultTimelineDays    = 30
	DefaultPerformanceDays = 7
	MaxWindowDays          = 365
	DefaultTimeout         = 10 * time.Second

	dayLayout = "2006-01-02"
)

// Source is implemented by store.Analytics. Every owner-scoped method counts
// only clicks whose short code belongs to one of the owner's links.
type Source interface {
	LinkClickCounts(ctx context.Context, ownerID string) ([]internal.LinkClicks, error)
	DailyClickCounts(ctx context.Context, ownerID string, w internal.Window) ([]internal.DayCount, error)
	CountClicks(ctx context.Context, ownerID string, windows ...internal.Window) ([]int64, error)
	DeviceCounts(ctx context.Context, ownerID string) ([]internal.DeviceCount, error)
	LinkWindowCounts(ctx context.Context, ownerID string, w internal.Window) ([]internal.LinkWindowClicks, error)
	LinkByID(ctx context.Context, id int64) (*internal.Link, error)
	LinkDayDeviceCounts(ctx context.Context, code string) ([]internal.DayDeviceCount, error)
}

type Aggregator struct {
	source  Source
	now     func() time.Time
	loc     *time.Location
	timeout time.Duration
}

type Option func(*Aggregator)

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithLocation sets where "today" starts for DailyStats. Timeline buckets are
// always UTC days.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.loc = loc
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func NewAggregator(source Source, opts ...Option) *Aggregator {
	a := &Aggregator{source: source, now: time.Now, loc: time.UTC, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Aggregator) Summary(ctx context.Context, ownerID string) (*Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	rows, err := a.source.LinkClickCounts(ctx, ownerID)
	if err != nil {
		return nil, deadlineErr(ctx, err)
	}
	now := a.now()
	links := lo.Map(rows, func(r internal.LinkClicks, _ int) LinkSummary {
		return toLinkSummary(&r.Link, r.ClickCount, now)
	})

	totals := Totals{
		TotalLinks:        len(links),
		TotalClicks:       lo.SumBy(links, func(l LinkSummary) int64 { return l.ClickCount }),
		TopPerformingLink: noTopLink,
	}
	if totals.TotalLinks > 0 {
		totals.AvgClicksPerLink = round2(float64(totals.TotalClicks) / float64(totals.TotalLinks))
	}
	// MaxBy keeps the first of equal candidates.
	top := lo.MaxBy(links, func(x, y LinkSummary) bool { return x.ClickCount > y.ClickCount })
	if top.ClickCount > 0 {
		totals.TopPerformingLink = top.ShortCode
	}

	return &Summary{Links: links, Summary: totals}, nil
}

// ClicksOverTime returns days+1 consecutive UTC day buckets ending today.
func (a *Aggregator) ClicksOverTime(ctx context.Context, ownerID string, days int) ([]DailyClickBucket, error) {
	if err := checkDays(days); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	today := midnight(a.now(), time.UTC)
	first := today.AddDate(0, 0, -days)
	rows, err := a.source.DailyClickCounts(ctx, ownerID, internal.Window{From: first, To: today.AddDate(0, 0, 1)})
	if err != nil {
		return nil, deadlineErr(ctx, err)
	}
	byDay := lo.SliceToMap(rows, func(r internal.DayCount) (string, int64) { return r.Day, r.Clicks })

	buckets := make([]DailyClickBucket, 0, days+1)
	for d := first; !d.After(today); d = d.AddDate(0, 0, 1) {
		day := d.Format(dayLayout)
		buckets = append(buckets, DailyClickBucket{Date: day, Clicks: byDay[day]})
	}
	return buckets, nil
}

func (a *Aggregator) DailyStats(ctx context.Context, ownerID string) (*DailyStats, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	today := midnight(a.now(), a.loc)
	tomorrow := today.AddDate(0, 0, 1)
	counts, err := a.source.CountClicks(ctx, ownerID,
		internal.Window{From: today, To: tomorrow},
		internal.Window{From: today.AddDate(0, 0, -1), To: today},
		internal.Window{From: today.AddDate(0, 0, -7), To: tomorrow},
	)
	if err != nil {
		return nil, deadlineErr(ctx, err)
	}
	if len(counts) != 3 {
		return nil, fmt.Errorf("daily stats: %w: expected 3 counts, got %d", internal.ErrStorage, len(counts))
	}

	stats := &DailyStats{
		Today:         counts[0],
		Yesterday:     counts[1],
		Weekly:        counts[2],
		DailyGrowth:   100,
		WeeklyAverage: round2(float64(counts[2]) / 7),
	}
	if stats.Yesterday != 0 {
		stats.DailyGrowth = round2(float64(stats.Today-stats.Yesterday) / float64(stats.Yesterday) * 100)
	}
	return stats, nil
}

func (a *Aggregator) DeviceBreakdown(ctx context.Context, ownerID string) (*DeviceBreakdown, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	rows, err := a.source.DeviceCounts(ctx, ownerID)
	if err != nil {
		return nil, deadlineErr(ctx, err)
	}
	total := lo.SumBy(rows, func(r internal.DeviceCount) int64 { return r.Count })
	devices := lo.Map(rows, func(r internal.DeviceCount, _ int) DeviceBreakdownEntry {
		return DeviceBreakdownEntry{Device: r.Device, Count: r.Count, Percentage: percentage(r.Count, total)}
	})
	slices.SortFunc(devices, func(x, y DeviceBreakdownEntry) int {
		return cmp.Or(cmp.Compare(y.Count, x.Count), cmp.Compare(x.Device, y.Device))
	})
	return &DeviceBreakdown{Devices: devices, Total: total}, nil
}

// LinkPerformance ranks the owner's links by clicks in the last days days,
// breaking ties on all-time clicks.
func (a *Aggregator) LinkPerformance(ctx context.Context, ownerID string, days int) (*LinkPerformance, error) {
	if err := checkDays(days); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	now := a.now().UTC()
	rows, err := a.source.LinkWindowCounts(ctx, ownerID, internal.Window{From: now.AddDate(0, 0, -days), To: now})
	if err != nil {
		return nil, deadlineErr(ctx, err)
	}
	slices.SortStableFunc(rows, func(x, y internal.LinkWindowClicks) int {
		return cmp.Or(cmp.Compare(y.RecentClicks, x.RecentClicks), cmp.Compare(y.TotalClicks, x.TotalClicks))
	})

	recent := lo.SumBy(rows, func(r internal.LinkWindowClicks) int64 { return r.RecentClicks })
	links := lo.Map(rows, func(r internal.LinkWindowClicks, _ int) LinkPerformanceEntry {
		return LinkPerformanceEntry{
			ID:                r.PublicID(),
			Title:             r.Title,
			ShortCode:         r.ShortCode,
			OriginalURL:       r.OriginalURL,
			CreatedAt:         r.CreatedAt,
			RecentClicks:      r.RecentClicks,
			TotalClicks:       r.TotalClicks,
			PercentageOfTotal: percentage(r.RecentClicks, recent),
			ClicksPerDay:      round2(float64(r.RecentClicks) / float64(days)),
		}
	})
	return &LinkPerformance{
		Links:             links,
		TotalRecentClicks: recent,
		Period:            fmt.Sprintf("Last %d days", days),
	}, nil
}

// LinkDetail returns the click history of one of the owner's links grouped
// by UTC day and device class.
func (a *Aggregator) LinkDetail(ctx context.Context, ownerID string, linkID int64) (*LinkDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	link, err := a.source.LinkByID(ctx, linkID)
	if err != nil {
		return nil, deadlineErr(ctx, err)
	}
	if link.OwnerID != ownerID {
		return nil, fmt.Errorf("link %d: %w", linkID, internal.ErrForbidden)
	}
	rows, err := a.source.LinkDayDeviceCounts(ctx, link.ShortCode)
	if err != nil {
		return nil, deadlineErr(ctx, err)
	}

	grouped := lo.GroupBy(rows, func(r internal.DayDeviceCount) string { return r.Day })
	days := lo.Keys(grouped)
	slices.Sort(days)

	detail := &LinkDetail{Days: make([]DayDetail, 0, len(days))}
	for _, day := range days {
		entry := DayDetail{Date: day}
		for _, r := range grouped[day] {
			entry.Devices = append(entry.Devices, DeviceCount{Device: r.Device, Count: r.Count})
			entry.Total += r.Count
		}
		detail.Days = append(detail.Days, entry)
		detail.TotalClicks += entry.Total
	}
	detail.Link = toLinkSummary(link, detail.TotalClicks, a.now())
	return detail, nil
}

func toLinkSummary(l *internal.Link, clicks int64, now time.Time) LinkSummary {
	return LinkSummary{
		ID:               l.PublicID(),
		OriginalURL:      l.OriginalURL,
		ShortCode:        l.ShortCode,
		Title:            l.Title,
		CreatedAt:        l.CreatedAt,
		ExpiresAt:        l.ExpiresAt,
		ClickCount:       clicks,
		ExpirationStatus: l.ExpirationStatus(now),
	}
}

// deadlineErr reports a query cut short by the aggregation timeout as
// ErrUnavailable rather than a storage failure.
func deadlineErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, internal.ErrUnavailable) {
		return fmt.Errorf("%w: %v", internal.ErrUnavailable, err)
	}
	return err
}

func checkDays(days int) error {
	if days < 1 || days > MaxWindowDays {
		return internal.NewValidationError("days", fmt.Sprintf("days must be between 1 and %d", MaxWindowDays))
	}
	return nil
}

func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func percentage(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(part) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
