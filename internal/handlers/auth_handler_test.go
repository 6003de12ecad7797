package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Varun5711/talentlens/internal/auth"
	"github.com/Varun5711/talentlens/internal/logger"
	"github.com/Varun5711/talentlens/internal/metrics"
	"github.com/Varun5711/talentlens/internal/middleware"
	"github.com/Varun5711/talentlens/internal/models"
	usermodel "github.com/Varun5711/talentlens/internal/models/user"
	"github.com/Varun5711/talentlens/internal/service"
	"github.com/Varun5711/talentlens/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	handler http.Handler
	issuer  *auth.TokenIssuer
	store   *storage.MemoryUserStore
}

type serverOptions struct {
	accessTTL    time.Duration
	secure       bool
	maxBodyBytes int64
	trustProxy   bool
}

func newTestServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()
	if opts.accessTTL == 0 {
		opts.accessTTL = 15 * time.Minute
	}
	if opts.maxBodyBytes == 0 {
		opts.maxBodyBytes = 10 << 20
	}

	store := storage.NewMemoryUserStore()
	issuer := auth.NewTokenIssuer(
		auth.NewJWTManager("access-secret", opts.accessTTL),
		auth.NewJWTManager("refresh-secret", 7*24*time.Hour),
	)
	m := metrics.New()
	quiet := logger.New("test").WithOutput(io.Discard)

	sessions := service.NewSessionService(store, issuer, nil, m).WithLogger(quiet)
	authHandler := NewAuthHandler(sessions, CookieConfig{Secure: opts.secure, MaxAge: 7 * 24 * time.Hour})
	authHandler.log = quiet

	handler := NewRouter(RouterConfig{
		Auth:          authHandler,
		Guard:         middleware.NewAuthMiddleware(issuer),
		Health:        NewHealthHandler(),
		Metrics:       m,
		AuthLimiter:   middleware.NewLocalRateLimiter("auth", 5, 15*time.Minute, m),
		GlobalLimiter: middleware.NewLocalRateLimiter("global", 1000, time.Minute, m),
		CORSOrigins:   []string{"http://localhost:3000"},
		MaxBodyBytes:  opts.maxBodyBytes,
		TrustProxy:    opts.trustProxy,
		Log:           quiet,
	})

	return &testServer{handler: handler, issuer: issuer, store: store}
}

type call struct {
	method    string
	path      string
	body      string
	token     string
	cookie    *http.Cookie
	ip        string
	forwarded string
}

func (s *testServer) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if c.body != "" {
		body = strings.NewReader(c.body)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	if c.ip != "" {
		req.RemoteAddr = c.ip + ":40000"
	}
	if c.forwarded != "" {
		req.Header.Set("X-Forwarded-For", c.forwarded)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func accessToken(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func refreshCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.RefreshCookieName {
			return c
		}
	}
	t.Fatal("refresh cookie not set")
	return nil
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

const aliceRegistration = `{"email":"alice@example.com","password":"Str0ngP@ss","fullName":"Alice"}`

func TestRegisterThenMe_NoSecretsInPayload(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	rec := s.do(t, call{method: http.MethodPost, path: "/auth/register", body: aliceRegistration})
	require.Equal(t, http.StatusCreated, rec.Code)
	token := accessToken(t, rec)

	cookie := refreshCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, 7*24*60*60, cookie.MaxAge)
	assert.Equal(t, "/", cookie.Path)
	assert.False(t, cookie.Secure)

	var registered map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &registered))
	assert.NotContains(t, registered, "refresh_token", "refresh token only travels in the cookie")

	rec = s.do(t, call{method: http.MethodGet, path: "/auth/me", token: token})
	require.Equal(t, http.StatusOK, rec.Code)

	var profile map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, "alice@example.com", profile["email"])
	assert.Equal(t, "Alice", profile["fullName"])
	assert.NotEmpty(t, profile["createdAt"])
	assert.NotEmpty(t, profile["updatedAt"])
	for _, secret := range []string{"passwordHash", "password_hash", "PasswordHash", "refreshTokenHash", "RefreshTokenHash"} {
		assert.NotContains(t, profile, secret)
	}
}

func TestRegister_SecureCookieInProduction(t *testing.T) {
	s := newTestServer(t, serverOptions{secure: true})

	rec := s.do(t, call{method: http.MethodPost, path: "/auth/register", body: aliceRegistration})
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.True(t, refreshCookie(t, rec).Secure)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	require.Equal(t, http.StatusCreated, s.do(t, call{method: http.MethodPost, path: "/auth/register", body: aliceRegistration}).Code)

	rec := s.do(t, call{method: http.MethodPost, path: "/auth/register", body: aliceRegistration})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "duplicate_email", errorBody(t, rec).Error)
}

func TestRegister_ValidationAndDecoding(t *testing.T) {
	s := newTestServer(t, serverOptions{maxBodyBytes: 256})

	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"weak password", `{"email":"bob@example.com","password":"password","fullName":"Bob"}`, http.StatusBadRequest, "validation_error"},
		{"bad email", `{"email":"bob","password":"Str0ngP@ss","fullName":"Bob"}`, http.StatusBadRequest, "validation_error"},
		{"short name", `{"email":"bob@example.com","password":"Str0ngP@ss","fullName":"B"}`, http.StatusBadRequest, "validation_error"},
		{"unknown field", `{"email":"bob@example.com","password":"Str0ngP@ss","fullName":"Bob","role":"admin"}`, http.StatusBadRequest, "invalid_request"},
		{"trailing data", `{"email":"bob@example.com","password":"Str0ngP@ss","fullName":"Bob"}{}`, http.StatusBadRequest, "invalid_request"},
		{"not json", `email=bob`, http.StatusBadRequest, "invalid_request"},
		{"too large", `{"email":"bob@example.com","password":"Str0ngP@ss","fullName":"` + strings.Repeat("B", 300) + `"}`, http.StatusRequestEntityTooLarge, "payload_too_large"},
	}

	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ip := fmt.Sprintf("10.1.0.%d", i+1)
			rec := s.do(t, call{method: http.MethodPost, path: "/auth/register", body: tc.body, ip: ip})
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, errorBody(t, rec).Error)
		})
	}
	assert.Equal(t, 0, s.store.Count())
}

func TestLogin_UndifferentiatedFailures(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	require.Equal(t, http.StatusCreated, s.do(t, call{method: http.MethodPost, path: "/auth/register", body: aliceRegistration}).Code)

	wrongPassword := s.do(t, call{method: http.MethodPost, path: "/auth/login", body: `{"email":"alice@example.com","password":"Wr0ngP@ss"}`})
	unknownEmail := s.do(t, call{method: http.MethodPost, path: "/auth/login", body: `{"email":"nobody@example.com","password":"Wr0ngP@ss"}`})

	assert.Equal(t, http.StatusForbidden, wrongPassword.Code)
	assert.Equal(t, http.StatusForbidden, unknownEmail.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())

	ok := s.do(t, call{method: http.MethodPost, path: "/auth/login", body: `{"email":"alice@example.com","password":"Str0ngP@ss"}`})
	require.Equal(t, http.StatusOK, ok.Code)
	accessToken(t, ok)
	refreshCookie(t, ok)
}

func TestRefresh_AfterAccessExpiry_ThenReplayIsRejected(t *testing.T) {
	// access tokens are born expired so the refresh path is the only way forward
	s := newTestServer(t, serverOptions{accessTTL: -time.Minute})

	rec := s.do(t, call{method: http.MethodPost, path: "/auth/register", body: aliceRegistration})
	require.Equal(t, http.StatusCreated, rec.Code)
	expired := accessToken(t, rec)
	oldCookie := refreshCookie(t, rec)

	me := s.do(t, call{method: http.MethodGet, path: "/auth/me", token: expired})
	assert.Equal(t, http.StatusUnauthorized, me.Code)

	refreshed := s.do(t, call{method: http.MethodPost, path: "/auth/refresh", cookie: oldCookie})
	require.Equal(t, http.StatusOK, refreshed.Code)
	assert.NotEqual(t, expired, accessToken(t, refreshed))
	newCookie := refreshCookie(t, refreshed)
	assert.NotEqual(t, oldCookie.Value, newCookie.Value)

	replay := s.do(t, call{method: http.MethodPost, path: "/auth/refresh", cookie: oldCookie})
	assert.Equal(t, http.StatusForbidden, replay.Code)
	assert.Equal(t, "access_denied", errorBody(t, replay).Error)

	again := s.do(t, call{method: http.MethodPost, path: "/auth/refresh", cookie: newCookie})
	assert.Equal(t, http.StatusOK, again.Code)
}

func TestRefresh_RequiresCookie(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	rec := s.do(t, call{method: http.MethodPost, path: "/auth/register", body: aliceRegistration})
	require.Equal(t, http.StatusCreated, rec.Code)
	cookie := refreshCookie(t, rec)

	// a refresh token offered as a bearer header is ignored
	noCookie := s.do(t, call{method: http.MethodPost, path: "/auth/refresh", token: cookie.Value})
	assert.Equal(t, http.StatusUnauthorized, noCookie.Code)
}

func TestLogout_ClearsCookieAndEndsSession(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	rec := s.do(t, call{method: http.MethodPost, path: "/auth/register", body: aliceRegistration})
	require.Equal(t, http.StatusCreated, rec.Code)
	token := accessToken(t, rec)
	cookie := refreshCookie(t, rec)

	for i := 0; i < 2; i++ {
		out := s.do(t, call{method: http.MethodPost, path: "/auth/logout", token: token})
		require.Equal(t, http.StatusOK, out.Code)

		var msg map[string]string
		require.NoError(t, json.Unmarshal(out.Body.Bytes(), &msg))
		assert.NotEmpty(t, msg["message"])

		cleared := refreshCookie(t, out)
		assert.Empty(t, cleared.Value)
		assert.Equal(t, -1, cleared.MaxAge)
	}

	rec = s.do(t, call{method: http.MethodPost, path: "/auth/refresh", cookie: cookie})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLogout_RequiresAccessToken(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	rec := s.do(t, call{method: http.MethodPost, path: "/auth/logout"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMe_VanishedUser(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	pair, err := s.issuer.Issue(context.Background(), "0b0c6a5e-5d2c-4d35-9a3e-0d8f5b7f6a11", "ghost@example.com")
	require.NoError(t, err)

	rec := s.do(t, call{method: http.MethodGet, path: "/auth/me", token: pair.AccessToken})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "not_found", errorBody(t, rec).Error)
}

func TestUpdateProfile(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	rec := s.do(t, call{method: http.MethodPost, path: "/auth/register", body: aliceRegistration})
	require.Equal(t, http.StatusCreated, rec.Code)
	alice := accessToken(t, rec)

	require.Equal(t, http.StatusCreated, s.do(t, call{
		method: http.MethodPost, path: "/auth/register",
		body: `{"email":"bob@example.com","password":"Str0ngP@ss","fullName":"Bob"}`,
	}).Code)

	before, err := s.store.FindByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)

	rec = s.do(t, call{method: http.MethodPost, path: "/auth/profile", token: alice, body: `{"title":"Data Scientist","location":"Lisbon"}`})
	require.Equal(t, http.StatusOK, rec.Code)
	var profile usermodel.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, "Data Scientist", profile.Title)
	assert.Equal(t, "Lisbon", profile.Location)
	assert.Equal(t, "Alice", profile.FullName)
	assert.False(t, profile.UpdatedAt.Before(before.UpdatedAt), "updatedAt moves forward on update")
	assert.True(t, profile.CreatedAt.Equal(before.CreatedAt))

	rec = s.do(t, call{method: http.MethodPost, path: "/auth/profile", token: alice, body: `{"email":"bob@example.com"}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "duplicate_email", errorBody(t, rec).Error)

	rec = s.do(t, call{method: http.MethodPost, path: "/auth/profile", token: alice, body: `{}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", errorBody(t, rec).Error)
}

func TestLogin_RateLimited(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	body := `{"email":"alice@example.com","password":"Wr0ngP@ss"}`

	for i := 0; i < 5; i++ {
		rec := s.do(t, call{method: http.MethodPost, path: "/auth/login", body: body, ip: "192.0.2.10"})
		require.Equal(t, http.StatusForbidden, rec.Code, "attempt %d", i+1)
	}

	rec := s.do(t, call{method: http.MethodPost, path: "/auth/login", body: body, ip: "192.0.2.10"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", errorBody(t, rec).Error)
}

func TestLogin_RateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	body := `{"email":"alice@example.com","password":"Wr0ngP@ss"}`

	limited := 0
	for i := 0; i < 20; i++ {
		rec := s.do(t, call{
			method:    http.MethodPost,
			path:      "/auth/login",
			body:      body,
			ip:        "192.0.2.10",
			forwarded: fmt.Sprintf("10.0.0.%d", i),
		})
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}

	assert.Equal(t, 15, limited)
}

func TestLogin_TrustedProxyKeysOnForwardedFor(t *testing.T) {
	s := newTestServer(t, serverOptions{trustProxy: true})
	body := `{"email":"alice@example.com","password":"Wr0ngP@ss"}`

	for i := 0; i < 5; i++ {
		rec := s.do(t, call{method: http.MethodPost, path: "/auth/login", body: body, ip: "10.9.0.1", forwarded: "203.0.113.7"})
		require.Equal(t, http.StatusForbidden, rec.Code, "attempt %d", i+1)
	}

	rec := s.do(t, call{method: http.MethodPost, path: "/auth/login", body: body, ip: "10.9.0.1", forwarded: "203.0.113.7"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = s.do(t, call{method: http.MethodPost, path: "/auth/login", body: body, ip: "10.9.0.1", forwarded: "203.0.113.8"})
	assert.Equal(t, http.StatusForbidden, rec.Code, "a different client behind the same proxy has its own budget")
}

func TestUnknownRouteAndMetrics(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	rec := s.do(t, call{method: http.MethodGet, path: "/nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, call{method: http.MethodGet, path: "/metrics"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "talentlens_http_requests_total")
}

func TestHealth(t *testing.T) {
	h := NewHealthHandler()
	h.Register("postgres", func(context.Context) error { return nil })

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	h.Register("redis", func(context.Context) error { return errors.New("dial tcp: refused") })
	rec = httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body models.HealthResponse
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "up", body.Checks["postgres"])
	assert.Equal(t, "down", body.Checks["redis"])
	assert.NotContains(t, rec.Body.String(), "refused")
}
