package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Varun5711/talentlens/internal/auth"
	"github.com/Varun5711/talentlens/internal/logger"
)

const RefreshCookieName = "refresh_token"

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated caller attached to the request context by a guard.
// RefreshToken is only set by the refresh guard.
type Identity struct {
	UserID       string
	Email        string
	RefreshToken string
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

func GetUserID(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}

type TokenVerifier interface {
	VerifyAccess(token string) (*auth.Claims, error)
	VerifyRefresh(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
	log      *logger.Logger
}

func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		log:      logger.New("auth-middleware"),
	}
}

// RequireAccess admits requests carrying a valid bearer access token.
func (m *AuthMiddleware) RequireAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Authorization header required")
			return
		}

		claims, err := m.verifier.VerifyAccess(token)
		if err != nil {
			m.log.Debug("Rejected access token: %v", err)
			writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
			return
		}

		ctx := WithIdentity(r.Context(), Identity{
			UserID: claims.UserID,
			Email:  claims.Email,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRefresh admits requests whose refresh_token cookie verifies. The
// token is read from the cookie only; headers and body are never consulted.
func (m *AuthMiddleware) RequireRefresh(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(RefreshCookieName)
		if err != nil || cookie.Value == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Refresh token required")
			return
		}

		claims, err := m.verifier.VerifyRefresh(cookie.Value)
		if err != nil {
			m.log.Debug("Rejected refresh token: %v", err)
			writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired refresh token")
			return
		}

		ctx := WithIdentity(r.Context(), Identity{
			UserID:       claims.UserID,
			Email:        claims.Email,
			RefreshToken: cookie.Value,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
