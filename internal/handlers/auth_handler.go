package handlers

import (
	"context"
	"net/http"

	"github.com/Varun5711/talentlens/internal/audit"
	"github.com/Varun5711/talentlens/internal/logger"
	"github.com/Varun5711/talentlens/internal/middleware"
	usermodel "github.com/Varun5711/talentlens/internal/models/user"
	"github.com/Varun5711/talentlens/internal/validation"
)

type SessionService interface {
	Register(ctx context.Context, email, password, fullName string) (*usermodel.TokenPair, error)
	Login(ctx context.Context, email, password string) (*usermodel.TokenPair, error)
	Logout(ctx context.Context, userID string)
	RefreshTokens(ctx context.Context, userID, presentedRefreshToken string) (*usermodel.TokenPair, error)
	UpdateProfile(ctx context.Context, userID string, req *usermodel.UpdateProfileRequest) (*usermodel.Profile, error)
	GetProfile(ctx context.Context, userID string) (*usermodel.Profile, error)
}

type AuthHandler struct {
	sessions SessionService
	cookies  CookieConfig
	log      *logger.Logger
}

func NewAuthHandler(sessions SessionService, cookies CookieConfig) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		cookies:  cookies,
		log:      logger.New("auth-handler"),
	}
}

// clientContext attaches caller metadata for audit events.
func clientContext(r *http.Request) context.Context {
	return audit.WithClient(r.Context(), audit.ClientInfo{
		IP:        middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req usermodel.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}

	if err := validation.ValidateRegister(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	pair, err := h.sessions.Register(clientContext(r), req.Email, req.Password, req.FullName)
	if err != nil {
		respondServiceError(w, r, h.log, err)
		return
	}

	h.cookies.set(w, pair.RefreshToken)
	respondJSON(w, http.StatusCreated, usermodel.AccessTokenResponse{AccessToken: pair.AccessToken})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req usermodel.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}

	if err := validation.ValidateLogin(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	pair, err := h.sessions.Login(clientContext(r), req.Email, req.Password)
	if err != nil {
		respondServiceError(w, r, h.log, err)
		return
	}

	h.cookies.set(w, pair.RefreshToken)
	respondJSON(w, http.StatusOK, usermodel.AccessTokenResponse{AccessToken: pair.AccessToken})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(clientContext(r), middleware.GetUserID(r.Context()))

	h.cookies.clear(w)
	respondJSON(w, http.StatusOK, usermodel.MessageResponse{Message: "Logged out successfully"})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())

	pair, err := h.sessions.RefreshTokens(clientContext(r), identity.UserID, identity.RefreshToken)
	if err != nil {
		respondServiceError(w, r, h.log, err)
		return
	}

	h.cookies.set(w, pair.RefreshToken)
	respondJSON(w, http.StatusOK, usermodel.AccessTokenResponse{AccessToken: pair.AccessToken})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	profile, err := h.sessions.GetProfile(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, profile)
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req usermodel.UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}

	if err := validation.ValidateUpdateProfile(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	profile, err := h.sessions.UpdateProfile(clientContext(r), middleware.GetUserID(r.Context()), &req)
	if err != nil {
		respondServiceError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, profile)
}
