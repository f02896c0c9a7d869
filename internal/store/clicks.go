package store

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MagnunAVF/shortlink/internal"
)

const insertBatchSize = 500

type Clicks struct {
	db *gorm.DB
}

func NewClicks(db *gorm.DB) *Clicks {
	return &Clicks{db: db}
}

// Record appends a single click. It is the in-process click sink used when
// the api-service runs without a queue.
func (s *Clicks) Record(ctx context.Context, code string, at time.Time, ip, userAgent string) error {
	n, err := s.AppendBatch(ctx, []internal.ClickEvent{internal.NewClickEvent(code, at, ip, userAgent)})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("record click for %q: %w", code, internal.ErrNotFound)
	}
	return nil
}

// AppendBatch stores the events whose short code still belongs to a link and
// returns how many rows were written. The matching links are share-locked
// for the duration of the transaction, so a concurrent delete either runs
// first (and the events are dropped) or waits and cascades over the new rows.
func (s *Clicks) AppendBatch(ctx context.Context, events []internal.ClickEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	codes := lo.Uniq(lo.Map(events, func(e internal.ClickEvent, _ int) string { return e.ShortCode }))

	var written int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var live []string
		if err := tx.Model(&internal.Link{}).
			Clauses(clause.Locking{Strength: "SHARE"}).
			Where("short_code IN ?", codes).
			Pluck("short_code", &live).Error; err != nil {
			return err
		}
		known := lo.SliceToMap(live, func(c string) (string, struct{}) { return c, struct{}{} })

		clicks := lo.FilterMap(events, func(e internal.ClickEvent, _ int) (internal.Click, bool) {
			_, ok := known[e.ShortCode]
			return e.Click(), ok
		})
		if len(clicks) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(&clicks, insertBatchSize).Error; err != nil {
			return err
		}
		written = len(clicks)
		return nil
	})
	if err != nil {
		return 0, storageErr("append clicks", err)
	}
	return written, nil
}
