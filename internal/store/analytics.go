package store

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/MagnunAVF/shortlink/internal"
)

// Every query below reaches clicks through the owner's links, so clicks with
// no owning link are never counted. Each report is a single statement and
// therefore sees one consistent snapshot.

const utcDay = "to_char(c.clicked_at AT TIME ZONE 'UTC', 'YYYY-MM-DD')"

type Analytics struct {
	db *gorm.DB
}

func NewAnalytics(db *gorm.DB) *Analytics {
	return &Analytics{db: db}
}

func (s *Analytics) ownerClicks(ctx context.Context, ownerID string) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("clicks AS c").
		Joins("JOIN links AS l ON l.short_code = c.short_code").
		Where("l.owner_id = ?", ownerID)
}

func (s *Analytics) LinkClickCounts(ctx context.Context, ownerID string) ([]internal.LinkClicks, error) {
	return NewLinks(s.db).ListByOwner(ctx, ownerID)
}

func (s *Analytics) DailyClickCounts(ctx context.Context, ownerID string, w internal.Window) ([]internal.DayCount, error) {
	var rows []internal.DayCount
	err := s.ownerClicks(ctx, ownerID).
		Select(utcDay+" AS day, COUNT(*) AS clicks").
		Where("c.clicked_at >= ? AND c.clicked_at < ?", w.From, w.To).
		Group("day").
		Order("day").
		Scan(&rows).Error
	if err != nil {
		return nil, storageErr("daily click counts", err)
	}
	return rows, nil
}

// CountClicks counts the owner's clicks in each window with one scan.
func (s *Analytics) CountClicks(ctx context.Context, ownerID string, windows ...internal.Window) ([]int64, error) {
	if len(windows) == 0 {
		return nil, nil
	}
	cols := make([]string, len(windows))
	args := make([]any, 0, len(windows)*2)
	for i, w := range windows {
		cols[i] = fmt.Sprintf("COUNT(*) FILTER (WHERE c.clicked_at >= ? AND c.clicked_at < ?) AS w%d", i)
		args = append(args, w.From, w.To)
	}

	row := s.ownerClicks(ctx, ownerID).Select(strings.Join(cols, ", "), args...).Row()
	counts := make([]int64, len(windows))
	dest := make([]any, len(windows))
	for i := range counts {
		dest[i] = &counts[i]
	}
	if err := row.Scan(dest...); err != nil {
		return nil, storageErr("count clicks", err)
	}
	return counts, nil
}

func (s *Analytics) DeviceCounts(ctx context.Context, ownerID string) ([]internal.DeviceCount, error) {
	var rows []internal.DeviceCount
	err := s.ownerClicks(ctx, ownerID).
		Select("c.device_class AS device, COUNT(*) AS count").
		Group("c.device_class").
		Scan(&rows).Error
	if err != nil {
		return nil, storageErr("device counts", err)
	}
	return rows, nil
}

func (s *Analytics) LinkWindowCounts(ctx context.Context, ownerID string, w internal.Window) ([]internal.LinkWindowClicks, error) {
	var rows []internal.LinkWindowClicks
	err := s.db.WithContext(ctx).
		Table("links AS l").
		Select("l.*, "+
			"COUNT(c.id) FILTER (WHERE c.clicked_at >= ? AND c.clicked_at < ?) AS recent_clicks, "+
			"COUNT(c.id) AS total_clicks", w.From, w.To).
		Joins("LEFT JOIN clicks AS c ON c.short_code = l.short_code").
		Where("l.owner_id = ?", ownerID).
		Group("l.id").
		Order("l.created_at DESC, l.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, storageErr("link window counts", err)
	}
	return rows, nil
}

func (s *Analytics) LinkByID(ctx context.Context, id int64) (*internal.Link, error) {
	return NewLinks(s.db).FindByID(ctx, id)
}

func (s *Analytics) LinkDayDeviceCounts(ctx context.Context, code string) ([]internal.DayDeviceCount, error) {
	var rows []internal.DayDeviceCount
	err := s.db.WithContext(ctx).
		Table("clicks AS c").
		Select(utcDay+" AS day, c.device_class AS device, COUNT(*) AS count").
		Where("c.short_code = ?", code).
		Group("day, c.device_class").
		Order("day, c.device_class").
		Scan(&rows).Error
	if err != nil {
		return nil, storageErr("link day device counts", err)
	}
	return rows, nil
}
