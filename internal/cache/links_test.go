package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MagnunAVF/shortlink/internal"
)

type MockFinder struct {
	mock.Mock
}

func (m *MockFinder) FindByCode(ctx context.Context, code string) (*internal.Link, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*internal.Link), args.Error(1)
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestLinks_ReadThrough(t *testing.T) {
	mr, client := setupTestRedis(t)
	finder := new(MockFinder)
	c := NewLinks(client, finder, time.Hour)
	ctx := context.Background()

	link := &internal.Link{ID: 7, ShortCode: "promo", OriginalURL: "https://example.com/long/path", OwnerID: "u1"}
	finder.On("FindByCode", ctx, "promo").Return(link, nil).Once()

	got, err := c.FindByCode(ctx, "promo")
	require.NoError(t, err)
	assert.Equal(t, link.OriginalURL, got.OriginalURL)
	assert.True(t, mr.Exists(key("promo")))

	// second lookup is served from redis; the mock would fail on a second call
	got, err = c.FindByCode(ctx, "promo")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, "u1", got.OwnerID)

	finder.AssertExpectations(t)
}

func TestLinks_NotFoundIsNotCached(t *testing.T) {
	mr, client := setupTestRedis(t)
	finder := new(MockFinder)
	c := NewLinks(client, finder, time.Hour)
	ctx := context.Background()

	finder.On("FindByCode", ctx, "missing").Return(nil, internal.ErrNotFound).Twice()

	_, err := c.FindByCode(ctx, "missing")
	assert.ErrorIs(t, err, internal.ErrNotFound)
	_, err = c.FindByCode(ctx, "missing")
	assert.ErrorIs(t, err, internal.ErrNotFound)

	assert.False(t, mr.Exists(key("missing")))
	finder.AssertExpectations(t)
}

func TestLinks_TTLCappedByExpiry(t *testing.T) {
	mr, client := setupTestRedis(t)
	c := NewLinks(client, new(MockFinder), time.Hour)
	ctx := context.Background()

	soon := time.Now().Add(10 * time.Minute)
	c.Set(ctx, &internal.Link{ShortCode: "soon", ExpiresAt: &soon})
	ttl := mr.TTL(key("soon"))
	assert.True(t, ttl > 9*time.Minute && ttl <= 10*time.Minute, "ttl %s", ttl)

	past := time.Now().Add(-time.Minute)
	c.Set(ctx, &internal.Link{ShortCode: "past", ExpiresAt: &past})
	assert.False(t, mr.Exists(key("past")))
}

func TestLinks_Invalidate(t *testing.T) {
	mr, client := setupTestRedis(t)
	c := NewLinks(client, new(MockFinder), time.Hour)
	ctx := context.Background()

	c.Set(ctx, &internal.Link{ShortCode: "a"})
	c.Set(ctx, &internal.Link{ShortCode: "b"})
	c.Invalidate(ctx, "a", "b")

	assert.False(t, mr.Exists(key("a")))
	assert.False(t, mr.Exists(key("b")))
}

func TestLinks_RedisDownFallsThrough(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	finder := new(MockFinder)
	c := NewLinks(client, finder, time.Hour)
	ctx := context.Background()

	link := &internal.Link{ShortCode: "promo", OriginalURL: "https://example.com"}
	finder.On("FindByCode", ctx, "promo").Return(link, nil).Once()

	got, err := c.FindByCode(ctx, "promo")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", got.OriginalURL)
	assert.Error(t, c.Ping(ctx))
}

// blockingFinder parks the lookup after the cache miss until released.
type blockingFinder struct {
	link    *internal.Link
	entered chan struct{}
	release chan struct{}
	calls   int
}

func (f *blockingFinder) FindByCode(ctx context.Context, code string) (*internal.Link, error) {
	f.calls++
	if f.calls > 1 {
		return nil, internal.ErrNotFound
	}
	close(f.entered)
	<-f.release
	return f.link, nil
}

func TestLinks_InvalidateDuringLookupIsNotOverwritten(t *testing.T) {
	mr, client := setupTestRedis(t)
	finder := &blockingFinder{
		link:    &internal.Link{ID: 7, ShortCode: "promo", OriginalURL: "https://example.com"},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	c := NewLinks(client, finder, time.Hour)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := c.FindByCode(ctx, "promo")
		done <- err
	}()

	<-finder.entered
	// the link is deleted while the lookup holds the old row
	c.Invalidate(ctx, "promo")
	close(finder.release)
	require.NoError(t, <-done)

	assert.False(t, mr.Exists(key("promo")))
	_, err := c.FindByCode(ctx, "promo")
	assert.ErrorIs(t, err, internal.ErrNotFound)
}

func TestLinks_FillAfterInvalidateStillCaches(t *testing.T) {
	mr, client := setupTestRedis(t)
	finder := new(MockFinder)
	c := NewLinks(client, finder, time.Hour)
	ctx := context.Background()

	c.Invalidate(ctx, "promo")
	assert.True(t, mr.Exists(genKey("promo")))

	link := &internal.Link{ShortCode: "promo", OriginalURL: "https://example.com/new"}
	finder.On("FindByCode", ctx, "promo").Return(link, nil).Once()

	_, err := c.FindByCode(ctx, "promo")
	require.NoError(t, err)
	assert.True(t, mr.Exists(key("promo")))
	assert.Equal(t, time.Hour, mr.TTL(key("promo")))
	finder.AssertExpectations(t)
}
