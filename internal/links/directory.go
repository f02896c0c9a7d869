// Package links owns the mapping from short codes to destinations.
package links

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/MagnunAVF/shortlink/internal"
	"github.com/MagnunAVF/shortlink/internal/idgen"
	"github.com/MagnunAVF/shortlink/internal/validate"
)

const defaultTitleLen = 30

type Store interface {
	Insert(ctx context.Context, link *internal.Link) error
	CodeExists(ctx context.Context, code string) (bool, error)
	FindByCode(ctx context.Context, code string) (*internal.Link, error)
	FindByID(ctx context.Context, id int64) (*internal.Link, error)
	Update(ctx context.Context, link *internal.Link, previousCode string) error
	Delete(ctx context.Context, link *internal.Link) error
	ListByOwner(ctx context.Context, ownerID string) ([]internal.LinkClicks, error)
}

// Cache fronts FindByCode and must be told when a code's link changes.
type Cache interface {
	FindByCode(ctx context.Context, code string) (*internal.Link, error)
	Invalidate(ctx context.Context, codes ...string)
}

type CreateInput struct {
	OriginalURL string     `json:"originalUrl" validate:"required,url,max=2048"`
	Code        string     `json:"customAlias" validate:"required,max=64"`
	OwnerID     string     `json:"ownerId" validate:"required"`
	Title       string     `json:"title" validate:"max=255"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

// UpdateInput changes only the fields that are set. ClearExpiry removes the
// expiration and wins over ExpiresAt.
type UpdateInput struct {
	Title       *string    `json:"title" validate:"omitempty,max=255"`
	Code        *string    `json:"customAlias"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	ClearExpiry bool       `json:"-"`
}

type Directory struct {
	store Store
	cache Cache
	ids   idgen.Source
	now   func() time.Time
}

type Option func(*Directory)

func WithCache(c Cache) Option {
	return func(d *Directory) { d.cache = c }
}

func WithClock(now func() time.Time) Option {
	return func(d *Directory) { d.now = now }
}

func NewDirectory(store Store, ids idgen.Source, opts ...Option) *Directory {
	d := &Directory{store: store, ids: ids, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Create registers a new link under the requested alias. The existence
// check only gives an early answer; the storage insert is the authority and
// a lost race still surfaces as ErrDuplicateCode.
func (d *Directory) Create(ctx context.Context, in CreateInput) (*internal.Link, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if err := validate.Alias("customAlias", in.Code); err != nil {
		return nil, err
	}
	now := d.now().UTC()
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return nil, internal.NewValidationError("expiresAt", "expiresAt must be in the future")
	}

	exists, err := d.store.CodeExists(ctx, in.Code)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("create %q: %w", in.Code, internal.ErrDuplicateCode)
	}

	id, err := d.ids.NextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not generate id: %w: %v", internal.ErrStorage, err)
	}

	title := in.Title
	if title == "" {
		title = truncate(in.OriginalURL, defaultTitleLen)
	}
	link := &internal.Link{
		ID:          int64(id),
		ShortCode:   in.Code,
		OriginalURL: in.OriginalURL,
		OwnerID:     in.OwnerID,
		Title:       title,
		CreatedAt:   now,
		ExpiresAt:   utcPtr(in.ExpiresAt),
	}
	if err := d.store.Insert(ctx, link); err != nil {
		return nil, err
	}
	return link, nil
}

func (d *Directory) FindByCode(ctx context.Context, code string) (*internal.Link, error) {
	if d.cache != nil {
		return d.cache.FindByCode(ctx, code)
	}
	return d.store.FindByCode(ctx, code)
}

// Get returns the link only if ownerID owns it.
func (d *Directory) Get(ctx context.Context, id int64, ownerID string) (*internal.Link, error) {
	link, err := d.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if link.OwnerID != ownerID {
		return nil, fmt.Errorf("link %d: %w", id, internal.ErrForbidden)
	}
	return link, nil
}

func (d *Directory) Update(ctx context.Context, id int64, ownerID string, in UpdateInput) (*internal.Link, error) {
	link, err := d.Get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	previous := link.ShortCode
	if in.Code != nil && *in.Code != previous {
		if err := validate.Alias("customAlias", *in.Code); err != nil {
			return nil, err
		}
		exists, err := d.store.CodeExists(ctx, *in.Code)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("update %q: %w", *in.Code, internal.ErrDuplicateCode)
		}
		link.ShortCode = *in.Code
	}
	if in.Title != nil && *in.Title != "" {
		link.Title = *in.Title
	}
	switch {
	case in.ClearExpiry:
		link.ExpiresAt = nil
	case in.ExpiresAt != nil:
		if !in.ExpiresAt.After(d.now()) {
			return nil, internal.NewValidationError("expiresAt", "expiresAt must be in the future")
		}
		link.ExpiresAt = utcPtr(in.ExpiresAt)
	}

	if err := d.store.Update(ctx, link, previous); err != nil {
		return nil, err
	}
	d.invalidate(ctx, previous, link.ShortCode)
	return link, nil
}

// Delete removes the link together with its click history.
func (d *Directory) Delete(ctx context.Context, id int64, ownerID string) error {
	link, err := d.Get(ctx, id, ownerID)
	if err != nil {
		return err
	}
	if err := d.store.Delete(ctx, link); err != nil {
		return err
	}
	d.invalidate(ctx, link.ShortCode)
	return nil
}

func (d *Directory) ListByOwner(ctx context.Context, ownerID string) ([]internal.LinkClicks, error) {
	return d.store.ListByOwner(ctx, ownerID)
}

func (d *Directory) invalidate(ctx context.Context, codes ...string) {
	if d.cache != nil {
		d.cache.Invalidate(ctx, codes...)
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
