// Package cache keeps resolved links in Redis so redirects rarely touch
// Postgres.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MagnunAVF/shortlink/internal"
	"github.com/MagnunAVF/shortlink/internal/logger"
)

const (
	keyPrefix = "link:"
	genPrefix = "linkgen:"

	// genTTL outlives any single lookup so a fill never sees a reset
	// generation as unchanged.
	genTTL = 24 * time.Hour
)

// fillScript stores the entry only if the code's generation still matches
// the one read before the uncached lookup.
var fillScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[2])
if not cur then cur = '' end
if cur ~= ARGV[1] then return 0 end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// Finder is the uncached lookup the cache sits in front of.
type Finder interface {
	FindByCode(ctx context.Context, code string) (*internal.Link, error)
}

type entry struct {
	ID          int64      `json:"id"`
	ShortCode   string     `json:"shortCode"`
	OriginalURL string     `json:"originalUrl"`
	OwnerID     string     `json:"ownerId"`
	Title       string     `json:"title"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// Links is a read-through cache of links keyed by short code. Redis errors
// never fail a lookup; they are logged and the lookup falls through.
type Links struct {
	rdb  redis.UniversalClient
	next Finder
	ttl  time.Duration
}

func NewLinks(rdb redis.UniversalClient, next Finder, ttl time.Duration) *Links {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Links{rdb: rdb, next: next, ttl: ttl}
}

// Both keys of a code share a hash tag so the fill script stays on one
// cluster slot.
func key(code string) string {
	return keyPrefix + "{" + code + "}"
}

func genKey(code string) string {
	return genPrefix + "{" + code + "}"
}

func (c *Links) FindByCode(ctx context.Context, code string) (*internal.Link, error) {
	raw, err := c.rdb.Get(ctx, key(code)).Bytes()
	switch {
	case err == nil:
		var e entry
		if jerr := json.Unmarshal(raw, &e); jerr == nil {
			return e.link(), nil
		}
		logger.FromContext(ctx).Warn("dropping undecodable cache entry", "short_code", code)
	case errors.Is(err, redis.Nil):
	default:
		if ctx.Err() != nil {
			return nil, fmt.Errorf("cache lookup %q: %w", code, internal.ErrUnavailable)
		}
		logger.FromContext(ctx).Warn("error reading cache", "short_code", code, "err", err)
	}

	gen, genErr := c.rdb.Get(ctx, genKey(code)).Result()
	if errors.Is(genErr, redis.Nil) {
		gen, genErr = "", nil
	}

	link, err := c.next.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	// Without a generation the fill could resurrect an invalidated entry.
	if genErr == nil {
		c.fill(ctx, link, gen)
	}
	return link, nil
}

// Set stores the link unconditionally. A link that expires sooner than the
// TTL is kept only until its expiration.
func (c *Links) Set(ctx context.Context, link *internal.Link) {
	data, ttl, ok := c.encode(link)
	if !ok {
		return
	}
	if err := c.rdb.Set(ctx, key(link.ShortCode), data, ttl).Err(); err != nil {
		logger.FromContext(ctx).Warn("error setting cache", "short_code", link.ShortCode, "err", err)
	}
}

func (c *Links) fill(ctx context.Context, link *internal.Link, gen string) {
	data, ttl, ok := c.encode(link)
	if !ok {
		return
	}
	keys := []string{key(link.ShortCode), genKey(link.ShortCode)}
	if err := fillScript.Run(ctx, c.rdb, keys, gen, data, ttl.Milliseconds()).Err(); err != nil {
		logger.FromContext(ctx).Warn("error setting cache", "short_code", link.ShortCode, "err", err)
	}
}

func (c *Links) encode(link *internal.Link) ([]byte, time.Duration, bool) {
	ttl := c.ttl
	if link.ExpiresAt != nil {
		if until := time.Until(*link.ExpiresAt); until < ttl {
			ttl = until
		}
	}
	if ttl < time.Millisecond {
		return nil, 0, false
	}
	data, err := json.Marshal(newEntry(link))
	if err != nil {
		return nil, 0, false
	}
	return data, ttl, true
}

// Invalidate drops the cached entries and bumps each code's generation, so
// a lookup that read the old row before the change cannot store it again.
func (c *Links) Invalidate(ctx context.Context, codes ...string) {
	if len(codes) == 0 {
		return
	}
	// The generation moves before the delete: a fill racing this call
	// either fails the check or lands before the delete.
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, code := range codes {
			pipe.Incr(ctx, genKey(code))
			pipe.Expire(ctx, genKey(code), genTTL)
			pipe.Del(ctx, key(code))
		}
		return nil
	})
	if err != nil {
		logger.FromContext(ctx).Error("error invalidating cache", "short_codes", codes, "err", err)
	}
}

func (c *Links) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func newEntry(l *internal.Link) entry {
	return entry{
		ID:          l.ID,
		ShortCode:   l.ShortCode,
		OriginalURL: l.OriginalURL,
		OwnerID:     l.OwnerID,
		Title:       l.Title,
		CreatedAt:   l.CreatedAt,
		ExpiresAt:   l.ExpiresAt,
	}
}

func (e entry) link() *internal.Link {
	return &internal.Link{
		ID:          e.ID,
		ShortCode:   e.ShortCode,
		OriginalURL: e.OriginalURL,
		OwnerID:     e.OwnerID,
		Title:       e.Title,
		CreatedAt:   e.CreatedAt,
		ExpiresAt:   e.ExpiresAt,
	}
}
