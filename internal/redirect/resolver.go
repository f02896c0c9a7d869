// Package redirect turns a visited short code into a destination and hands
// the click off to a recorder without waiting for it.
package redirect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MagnunAVF/shortlink/internal"
	"github.com/MagnunAVF/shortlink/internal/logger"
)

const (
	DefaultLookupTimeout = 500 * time.Millisecond
	DefaultRecordTimeout = 5 * time.Second
)

type Finder interface {
	FindByCode(ctx context.Context, code string) (*internal.Link, error)
}

// Recorder is satisfied by queue.Publisher and store.Clicks.
type Recorder interface {
	Record(ctx context.Context, code string, at time.Time, ip, userAgent string) error
}

type Visit struct {
	Code      string
	IPAddress string
	UserAgent string
}

type Resolver struct {
	finder        Finder
	recorder      Recorder
	lookupTimeout time.Duration
	recordTimeout time.Duration
	now           func() time.Time
	wg            sync.WaitGroup
}

type Option func(*Resolver)

func WithLookupTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.lookupTimeout = d
		}
	}
}

func WithRecordTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.recordTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func NewResolver(finder Finder, recorder Recorder, opts ...Option) *Resolver {
	r := &Resolver{
		finder:        finder,
		recorder:      recorder,
		lookupTimeout: DefaultLookupTimeout,
		recordTimeout: DefaultRecordTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the live link for v.Code and schedules one click for it.
// Expired links return ErrExpired and record nothing.
func (r *Resolver) Resolve(ctx context.Context, v Visit) (*internal.Link, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	link, err := r.finder.FindByCode(lookupCtx, v.Code)
	if err != nil {
		if errors.Is(lookupCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, internal.ErrUnavailable) {
			return nil, fmt.Errorf("resolve %q: %w: %v", v.Code, internal.ErrUnavailable, err)
		}
		return nil, err
	}

	now := r.now().UTC()
	if link.Expired(now) {
		return nil, fmt.Errorf("resolve %q: %w", v.Code, internal.ErrExpired)
	}

	r.record(ctx, link.ShortCode, now, v)
	return link, nil
}

// record runs detached from the request; its context only carries the
// request's logger values.
func (r *Resolver) record(ctx context.Context, code string, at time.Time, v Visit) {
	log := logger.FromContext(ctx)
	recordCtx := context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(recordCtx, r.recordTimeout)
		defer cancel()

		if err := r.recorder.Record(ctx, code, at, v.IPAddress, v.UserAgent); err != nil {
			err = fmt.Errorf("%w: %w", internal.ErrRecording, err)
			log.Error("Error recording click", "short_code", code, "err", err)
		}
	}()
}

// Wait blocks until every click scheduled so far has been handed off.
func (r *Resolver) Wait() {
	r.wg.Wait()
}
