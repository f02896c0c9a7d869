package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MagnunAVF/shortlink/internal"
	"github.com/MagnunAVF/shortlink/internal/analytics"
	"github.com/MagnunAVF/shortlink/internal/auth"
	"github.com/MagnunAVF/shortlink/internal/links"
	"github.com/MagnunAVF/shortlink/internal/redirect"
)

const (
	testSecret = "test-secret"
	testOwner  = "owner-1"
)

type MockLinks struct {
	mock.Mock
}

func (m *MockLinks) Create(ctx context.Context, in links.CreateInput) (*internal.Link, error) {
	args := m.Called(ctx, in)
	link, _ := args.Get(0).(*internal.Link)
	return link, args.Error(1)
}

func (m *MockLinks) Update(ctx context.Context, id int64, ownerID string, in links.UpdateInput) (*internal.Link, error) {
	args := m.Called(ctx, id, ownerID, in)
	link, _ := args.Get(0).(*internal.Link)
	return link, args.Error(1)
}

func (m *MockLinks) Delete(ctx context.Context, id int64, ownerID string) error {
	return m.Called(ctx, id, ownerID).Error(0)
}

func (m *MockLinks) ListByOwner(ctx context.Context, ownerID string) ([]internal.LinkClicks, error) {
	args := m.Called(ctx, ownerID)
	rows, _ := args.Get(0).([]internal.LinkClicks)
	return rows, args.Error(1)
}

type MockAccounts struct {
	mock.Mock
}

func (m *MockAccounts) Register(ctx context.Context, in auth.Credentials) (*internal.User, error) {
	args := m.Called(ctx, in)
	user, _ := args.Get(0).(*internal.User)
	return user, args.Error(1)
}

func (m *MockAccounts) Login(ctx context.Context, in auth.Credentials) (string, error) {
	args := m.Called(ctx, in)
	return args.String(0), args.Error(1)
}

// memLinks is an in-memory link lookup for the redirect path.
type memLinks map[string]*internal.Link

func (m memLinks) FindByCode(_ context.Context, code string) (*internal.Link, error) {
	if l, ok := m[code]; ok {
		return l, nil
	}
	return nil, internal.ErrNotFound
}

type countingRecorder struct {
	mu    sync.Mutex
	codes []string
}

func (r *countingRecorder) Record(_ context.Context, code string, _ time.Time, _, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes = append(r.codes, code)
	return nil
}

func (r *countingRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.codes)
}

// deviceSource feeds fixed device counts to a real aggregator.
type deviceSource struct {
	analytics.Source
	devices []internal.DeviceCount
}

func (s deviceSource) DeviceCounts(context.Context, string) ([]internal.DeviceCount, error) {
	return s.devices, nil
}

type fixture struct {
	app      *fiber.App
	links    *MockLinks
	accounts *MockAccounts
	recorder *countingRecorder
	resolver *redirect.Resolver
	codes    memLinks
}

func newFixture(t *testing.T, source analytics.Source, checks map[string]Check) *fixture {
	t.Helper()
	f := &fixture{
		links:    new(MockLinks),
		accounts: new(MockAccounts),
		recorder: &countingRecorder{},
		codes:    memLinks{},
	}
	f.resolver = redirect.NewResolver(f.codes, f.recorder)
	if source == nil {
		source = deviceSource{}
	}
	f.app = New(Config{AppDomain: "https://sho.rt/"}, Deps{
		Links:        f.links,
		Resolver:     f.resolver,
		Reports:      analytics.NewAggregator(source),
		Accounts:     f.accounts,
		Authenticate: auth.NewService(nil, testSecret).Middleware(),
		Checks:       checks,
	})
	return f
}

func bearer(t *testing.T) string {
	t.Helper()
	claims := &jwt.RegisteredClaims{
		Subject:   testOwner,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func do(t *testing.T, app *fiber.App, method, path string, body any, authz string) (*http.Response, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var out map[string]any
	if len(raw) > 0 && resp.Header.Get("Content-Type") == fiber.MIMEApplicationJSON {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func TestShorten_Promo(t *testing.T) {
	f := newFixture(t, nil, nil)
	created := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	f.links.On("Create", mock.Anything, links.CreateInput{
		OriginalURL: "https://example.com/long/path",
		Code:        "promo",
		OwnerID:     testOwner,
	}).Return(&internal.Link{
		ID:          42,
		ShortCode:   "promo",
		OriginalURL: "https://example.com/long/path",
		OwnerID:     testOwner,
		Title:       "https://example.com/long/path",
		CreatedAt:   created,
	}, nil).Once()

	resp, body := do(t, f.app, "POST", "/shorten",
		fiber.Map{"originalUrl": "https://example.com/long/path", "customAlias": "promo"}, bearer(t))

	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "promo", data["shortCode"])
	assert.Equal(t, "https://sho.rt/promo", data["shortUrl"])
	assert.Equal(t, internal.EncodeID(42), data["id"])
	assert.Equal(t, float64(0), data["clicks"])
	f.links.AssertExpectations(t)
}

func TestShorten_DuplicateAlias(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.links.On("Create", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("create %q: %w", "promo", internal.ErrDuplicateCode)).Once()

	resp, body := do(t, f.app, "POST", "/shorten",
		fiber.Map{"originalUrl": "https://example.com/other", "customAlias": "promo"}, bearer(t))

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Custom alias already in use", body["message"])
}

func TestShorten_ValidationErrorsListed(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.links.On("Create", mock.Anything, mock.Anything).
		Return(nil, internal.NewValidationError("customAlias", "customAlias cannot be empty")).Once()

	resp, body := do(t, f.app, "POST", "/shorten", fiber.Map{"originalUrl": "https://example.com"}, bearer(t))

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	errs := body["errors"].([]any)
	require.Len(t, errs, 1)
	assert.Equal(t, "customAlias", errs[0].(map[string]any)["field"])
}

func TestShorten_RequiresToken(t *testing.T) {
	f := newFixture(t, nil, nil)

	resp, body := do(t, f.app, "POST", "/shorten", fiber.Map{"originalUrl": "https://example.com"}, "")

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	f.links.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRedirect_Live(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.codes["promo"] = &internal.Link{ShortCode: "promo", OriginalURL: "https://example.com/long/path"}

	resp, _ := do(t, f.app, "GET", "/promo", nil, "")
	f.resolver.Wait()

	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://example.com/long/path", resp.Header.Get("Location"))
	assert.Equal(t, 1, f.recorder.count())
}

func TestRedirect_ExpiredPromo(t *testing.T) {
	f := newFixture(t, nil, nil)
	past := time.Now().Add(-time.Hour)
	f.codes["promo"] = &internal.Link{ShortCode: "promo", OriginalURL: "https://example.com", ExpiresAt: &past}

	resp, body := do(t, f.app, "GET", "/promo", nil, "")
	f.resolver.Wait()

	assert.Equal(t, fiber.StatusGone, resp.StatusCode)
	assert.Equal(t, "Link has expired", body["message"])
	assert.Zero(t, f.recorder.count())
}

func TestRedirect_Unknown(t *testing.T) {
	f := newFixture(t, nil, nil)

	resp, _ := do(t, f.app, "GET", "/missing", nil, "")
	f.resolver.Wait()

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Zero(t, f.recorder.count())
}

func TestListLinks(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.links.On("ListByOwner", mock.Anything, testOwner).Return([]internal.LinkClicks{
		{Link: internal.Link{ID: 2, ShortCode: "b"}, ClickCount: 4},
		{Link: internal.Link{ID: 1, ShortCode: "a"}},
	}, nil).Once()

	resp, body := do(t, f.app, "GET", "/links", nil, bearer(t))

	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	data := body["data"].([]any)
	require.Len(t, data, 2)
	assert.Equal(t, float64(4), data[0].(map[string]any)["clicks"])
	assert.Equal(t, "N/A", data[1].(map[string]any)["expirationStatus"])
}

func TestUpdateLink(t *testing.T) {
	f := newFixture(t, nil, nil)
	alias := "spring"
	f.links.On("Update", mock.Anything, int64(7), testOwner, links.UpdateInput{Code: &alias}).
		Return(&internal.Link{ID: 7, ShortCode: "spring"}, nil).Once()

	resp, body := do(t, f.app, "PATCH", "/links/"+internal.EncodeID(7), fiber.Map{"customAlias": "spring"}, bearer(t))

	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, "spring", data["shortCode"])
	// an update has no live count to report
	assert.NotContains(t, data, "clicks")
}

func TestLinkResponse_UsesServerClock(t *testing.T) {
	expires := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)
	link := &internal.Link{ID: 7, ShortCode: "promo", ExpiresAt: &expires}

	before := &server{cfg: Config{Now: func() time.Time { return expires.Add(-time.Hour) }}}
	assert.Equal(t, internal.ExpirationActive, before.toLinkResponse(link, nil).ExpirationStatus)

	after := &server{cfg: Config{Now: func() time.Time { return expires }}}
	assert.Equal(t, internal.ExpirationExpired, after.toLinkResponse(link, nil).ExpirationStatus)
}

func TestDeleteLink(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"deleted", nil, fiber.StatusOK},
		{"someone else's", fmt.Errorf("link 7: %w", internal.ErrForbidden), fiber.StatusNotFound},
		{"missing", internal.ErrNotFound, fiber.StatusNotFound},
		{"storage", fmt.Errorf("delete link: %w: %v", internal.ErrStorage, errors.New("conn reset")), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, nil)
			f.links.On("Delete", mock.Anything, int64(7), testOwner).Return(tt.err).Once()

			resp, body := do(t, f.app, "DELETE", "/links/"+internal.EncodeID(7), nil, bearer(t))

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus == fiber.StatusInternalServerError {
				assert.Equal(t, "Server error", body["message"])
			}
		})
	}
}

func TestLinkID_Undecodable(t *testing.T) {
	f := newFixture(t, nil, nil)

	resp, _ := do(t, f.app, "DELETE", "/links/0OIl", nil, bearer(t))

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	f.links.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeviceBreakdown_MobileMobileDesktop(t *testing.T) {
	source := deviceSource{devices: []internal.DeviceCount{
		{Device: internal.DeviceMobile, Count: 2},
		{Device: internal.DeviceDesktop, Count: 1},
	}}
	f := newFixture(t, source, nil)

	resp, body := do(t, f.app, "GET", "/analytics/devices", nil, bearer(t))

	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(3), data["total"])
	devices := data["devices"].([]any)
	require.Len(t, devices, 2)
	assert.Equal(t, 66.67, devices[0].(map[string]any)["percentage"])
	assert.Equal(t, 33.33, devices[1].(map[string]any)["percentage"])
}

func TestClicksOverTime_BadDays(t *testing.T) {
	f := newFixture(t, nil, nil)

	for _, q := range []string{"abc", "0", "400"} {
		resp, _ := do(t, f.app, "GET", "/analytics/clicks?days="+q, nil, bearer(t))
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, "days=%s", q)
	}
}

func TestAuthRoutes(t *testing.T) {
	f := newFixture(t, nil, nil)
	creds := auth.Credentials{Email: "ana@example.com", Password: "s3cret-pass"}

	f.accounts.On("Register", mock.Anything, creds).Return(&internal.User{ID: "u1", Email: creds.Email}, nil).Once()
	f.accounts.On("Login", mock.Anything, creds).Return("signed.token.value", nil).Once()
	f.accounts.On("Login", mock.Anything, mock.Anything).Return("", internal.ErrInvalidCredentials).Once()

	resp, body := do(t, f.app, "POST", "/auth/register", creds, "")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "u1", body["data"].(map[string]any)["id"])
	assert.NotContains(t, body["data"], "passwordHash")

	resp, body = do(t, f.app, "POST", "/auth/login", creds, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "signed.token.value", body["data"].(map[string]any)["token"])

	resp, _ = do(t, f.app, "POST", "/auth/login", auth.Credentials{Email: creds.Email, Password: "nope-nope"}, "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestReadyz(t *testing.T) {
	up := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	f := newFixture(t, nil, map[string]Check{"database": up, "redis": up})
	resp, body := do(t, f.app, "GET", "/readyz", nil, "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "up", body["status"])

	f = newFixture(t, nil, map[string]Check{"database": up, "redis": down})
	resp, body = do(t, f.app, "GET", "/readyz", nil, "")
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "down", body["status"])
}

func TestRequestIDEchoed(t *testing.T) {
	f := newFixture(t, nil, nil)
	resp, _ := do(t, f.app, "GET", "/healthz", nil, "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}
