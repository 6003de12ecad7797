package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/Varun5711/talentlens/internal/logger"
	"github.com/Varun5711/talentlens/internal/models"
	usermodel "github.com/Varun5711/talentlens/internal/models/user"
)

var (
	ErrSessionExpired = errors.New("session expired, please log in again")
	ErrNotLoggedIn    = errors.New("not logged in")
)

// APIError is a non-2xx response from the auth service.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status))
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

type Option func(*SessionManager)

func WithTokenStore(store TokenStore) Option {
	return func(m *SessionManager) { m.tokens = store }
}

func WithHTTPClient(c *http.Client) Option {
	return func(m *SessionManager) { m.http = c }
}

// WithSessionExpired registers the callback fired when a refresh fails
// mid-request and the user must log in again.
func WithSessionExpired(fn func()) Option {
	return func(m *SessionManager) { m.onExpired = fn }
}

func WithUserAgent(ua string) Option {
	return func(m *SessionManager) { m.userAgent = ua }
}

func WithLogger(l *logger.Logger) Option {
	return func(m *SessionManager) { m.log = l }
}

// SessionManager talks to the auth service on behalf of one user. The
// refresh cookie stays inside the cookie jar; callers never see it.
type SessionManager struct {
	baseURL   string
	http      *http.Client
	tokens    TokenStore
	onExpired func()
	userAgent string
	log       *logger.Logger
}

func NewSessionManager(baseURL string, opts ...Option) (*SessionManager, error) {
	m := &SessionManager{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  NewMemoryTokenStore(),
		log:     logger.New("session-client"),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.http == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		m.http = &http.Client{Jar: jar, Timeout: 10 * time.Second}
	}
	if m.http.Jar == nil {
		return nil, errors.New("http client must have a cookie jar")
	}

	return m, nil
}

func (m *SessionManager) LoggedIn() bool {
	return m.tokens.Get() != ""
}

// Bootstrap restores a session from the refresh cookie when no access token
// is held. Failures mean "not logged in" and are not reported.
func (m *SessionManager) Bootstrap(ctx context.Context) bool {
	if m.LoggedIn() {
		return true
	}
	if err := m.refresh(ctx); err != nil {
		m.log.Debug("No session to restore: %v", err)
		return false
	}
	return true
}

// Do performs an authenticated request. A 401 triggers exactly one refresh
// and one retry. If the refresh fails the local token is dropped, the
// expiry callback fires and ErrSessionExpired is returned.
func (m *SessionManager) Do(ctx context.Context, method, path string, body, out interface{}) error {
	payload, err := encodeBody(body)
	if err != nil {
		return err
	}

	resp, err := m.send(ctx, method, path, payload, m.tokens.Get())
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)

		if err := m.refresh(ctx); err != nil {
			m.log.Info("Refresh after 401 failed: %v", err)
			m.expire()
			return ErrSessionExpired
		}

		resp, err = m.send(ctx, method, path, payload, m.tokens.Get())
		if err != nil {
			return err
		}
	}

	return decodeResponse(resp, out)
}

func (m *SessionManager) Register(ctx context.Context, email, password, fullName string) error {
	return m.authenticate(ctx, "/auth/register", usermodel.RegisterRequest{
		Email:    email,
		Password: password,
		FullName: fullName,
	})
}

func (m *SessionManager) Login(ctx context.Context, email, password string) error {
	return m.authenticate(ctx, "/auth/login", usermodel.LoginRequest{
		Email:    email,
		Password: password,
	})
}

// Logout tells the server to end the session and always clears local state,
// even when the server call fails.
func (m *SessionManager) Logout(ctx context.Context) error {
	defer m.tokens.Clear()

	if !m.LoggedIn() {
		return nil
	}

	resp, err := m.send(ctx, http.MethodPost, "/auth/logout", nil, m.tokens.Get())
	if err != nil {
		return err
	}
	return decodeResponse(resp, nil)
}

func (m *SessionManager) Me(ctx context.Context) (*usermodel.Profile, error) {
	var profile usermodel.Profile
	if err := m.Do(ctx, http.MethodGet, "/auth/me", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (m *SessionManager) UpdateProfile(ctx context.Context, req *usermodel.UpdateProfileRequest) (*usermodel.Profile, error) {
	var profile usermodel.Profile
	if err := m.Do(ctx, http.MethodPost, "/auth/profile", req, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (m *SessionManager) authenticate(ctx context.Context, path string, body interface{}) error {
	payload, err := encodeBody(body)
	if err != nil {
		return err
	}

	resp, err := m.send(ctx, http.MethodPost, path, payload, "")
	if err != nil {
		return err
	}

	var tokens usermodel.AccessTokenResponse
	if err := decodeResponse(resp, &tokens); err != nil {
		return err
	}

	m.tokens.Set(tokens.AccessToken)
	return nil
}

func (m *SessionManager) refresh(ctx context.Context) error {
	resp, err := m.send(ctx, http.MethodPost, "/auth/refresh", nil, "")
	if err != nil {
		return err
	}

	var tokens usermodel.AccessTokenResponse
	if err := decodeResponse(resp, &tokens); err != nil {
		return err
	}
	if tokens.AccessToken == "" {
		return ErrNotLoggedIn
	}

	m.tokens.Set(tokens.AccessToken)
	return nil
}

func (m *SessionManager) expire() {
	m.tokens.Clear()
	if m.onExpired != nil {
		m.onExpired()
	}
}

func (m *SessionManager) send(ctx context.Context, method, path string, payload []byte, token string) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if m.userAgent != "" {
		req.Header.Set("User-Agent", m.userAgent)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func encodeBody(body interface{}) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return payload, nil
}

func decodeResponse(resp *http.Response, out interface{}) error {
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var body models.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
			apiErr.Code = body.Error
			apiErr.Message = body.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
