package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Varun5711/talentlens/internal/audit"
	"github.com/Varun5711/talentlens/internal/auth"
	"github.com/Varun5711/talentlens/internal/logger"
	"github.com/Varun5711/talentlens/internal/metrics"
	usermodel "github.com/Varun5711/talentlens/internal/models/user"
	"github.com/Varun5711/talentlens/internal/storage"
)

var (
	ErrDuplicateEmail = errors.New("email already in use")
	// ErrAccessDenied covers unknown users, wrong passwords and stale refresh
	// tokens alike. Callers must not distinguish between them.
	ErrAccessDenied = errors.New("access denied")
	ErrNotFound     = errors.New("user not found")
)

type SessionService struct {
	store   storage.UserStore
	issuer  *auth.TokenIssuer
	audit   audit.Publisher
	metrics *metrics.Metrics
	log     *logger.Logger
}

func NewSessionService(store storage.UserStore, issuer *auth.TokenIssuer, publisher audit.Publisher, m *metrics.Metrics) *SessionService {
	if publisher == nil {
		publisher = audit.NopPublisher{}
	}
	return &SessionService{
		store:   store,
		issuer:  issuer,
		audit:   publisher,
		metrics: m,
		log:     logger.New("session-service"),
	}
}

// WithLogger replaces the service logger; used by tests to capture output.
func (s *SessionService) WithLogger(l *logger.Logger) *SessionService {
	s.log = l
	return s
}

func (s *SessionService) Register(ctx context.Context, email, password, fullName string) (*usermodel.TokenPair, error) {
	email = strings.TrimSpace(email)

	existing, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.metrics.AuthOperation("register", "duplicate")
		return nil, ErrDuplicateEmail
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.store.Create(ctx, &storage.CreateUserParams{
		Email:        email,
		PasswordHash: passwordHash,
		FullName:     strings.TrimSpace(fullName),
	})
	if errors.Is(err, storage.ErrDuplicateEmail) {
		s.metrics.AuthOperation("register", "duplicate")
		return nil, ErrDuplicateEmail
	}
	if err != nil {
		return nil, err
	}

	pair, err := s.issueAndStore(ctx, user)
	if err != nil {
		return nil, err
	}

	s.log.Info("Registered user %s", user.ID)
	s.metrics.AuthOperation("register", "success")
	s.publish(ctx, audit.EventRegister, user.ID, user.Email)

	return pair, nil
}

func (s *SessionService) Login(ctx context.Context, email, password string) (*usermodel.TokenPair, error) {
	email = strings.TrimSpace(email)

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if user == nil {
		auth.BurnPasswordCheck(password)
		s.denyLogin(ctx, email)
		return nil, ErrAccessDenied
	}

	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		s.denyLogin(ctx, email)
		return nil, ErrAccessDenied
	}

	pair, err := s.issueAndStore(ctx, user)
	if err != nil {
		return nil, err
	}

	s.metrics.AuthOperation("login", "success")
	s.publish(ctx, audit.EventLogin, user.ID, user.Email)

	return pair, nil
}

func (s *SessionService) denyLogin(ctx context.Context, email string) {
	s.metrics.AuthOperation("login", "denied")
	s.publish(ctx, audit.EventLoginFailed, "", email)
}

// Logout clears the stored refresh hash. It never fails: storage errors are
// logged and the session is treated as ended either way.
func (s *SessionService) Logout(ctx context.Context, userID string) {
	if err := s.store.ClearRefreshHash(ctx, userID); err != nil {
		s.log.Warn("Failed to clear refresh hash for %s: %v", userID, err)
	}

	s.metrics.AuthOperation("logout", "success")
	s.publish(ctx, audit.EventLogout, userID, "")
}

// RefreshTokens rotates the pair. The presented token must hash to the stored
// value, and the stored value is swapped atomically so a token can be spent once.
func (s *SessionService) RefreshTokens(ctx context.Context, userID, presentedRefreshToken string) (*usermodel.TokenPair, error) {
	user, err := s.store.FindSession(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user == nil || !user.HasSession() || !auth.TokenMatches(*user.RefreshTokenHash, presentedRefreshToken) {
		s.denyRefresh(ctx, userID)
		return nil, ErrAccessDenied
	}

	pair, err := s.issuer.Issue(ctx, user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	swapped, err := s.store.SwapRefreshHash(ctx, user.ID, *user.RefreshTokenHash, auth.HashToken(pair.RefreshToken))
	if err != nil {
		return nil, err
	}
	if !swapped {
		s.log.Warn("Refresh for %s lost a concurrent rotation", user.ID)
		s.denyRefresh(ctx, userID)
		return nil, ErrAccessDenied
	}

	s.metrics.AuthOperation("refresh", "success")
	s.publish(ctx, audit.EventRefresh, user.ID, user.Email)

	return pair, nil
}

func (s *SessionService) denyRefresh(ctx context.Context, userID string) {
	s.metrics.AuthOperation("refresh", "denied")
	s.publish(ctx, audit.EventRefreshDenied, userID, "")
}

func (s *SessionService) UpdateProfile(ctx context.Context, userID string, req *usermodel.UpdateProfileRequest) (*usermodel.Profile, error) {
	current, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNotFound
	}

	params := &storage.UpdateUserParams{
		FullName: trimmed(req.FullName),
		Email:    trimmed(req.Email),
		Title:    trimmed(req.Title),
		Location: trimmed(req.Location),
	}

	if params.Email != nil && *params.Email != current.Email {
		owner, err := s.store.FindByEmail(ctx, *params.Email)
		if err != nil {
			return nil, err
		}
		if owner != nil && owner.ID != current.ID {
			s.metrics.AuthOperation("profile_update", "duplicate")
			return nil, ErrDuplicateEmail
		}
	}

	updated, err := s.store.Update(ctx, userID, params)
	if errors.Is(err, storage.ErrDuplicateEmail) {
		s.metrics.AuthOperation("profile_update", "duplicate")
		return nil, ErrDuplicateEmail
	}
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrNotFound
	}

	s.metrics.AuthOperation("profile_update", "success")
	s.publish(ctx, audit.EventProfileUpdate, updated.ID, updated.Email)

	return updated.Profile(), nil
}

func (s *SessionService) GetProfile(ctx context.Context, userID string) (*usermodel.Profile, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user.Profile(), nil
}

func (s *SessionService) issueAndStore(ctx context.Context, user *usermodel.User) (*usermodel.TokenPair, error) {
	pair, err := s.issuer.Issue(ctx, user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetRefreshHash(ctx, user.ID, auth.HashToken(pair.RefreshToken)); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	return pair, nil
}

func (s *SessionService) publish(ctx context.Context, typ audit.EventType, userID, email string) {
	if err := s.audit.Publish(ctx, audit.NewEvent(ctx, typ, userID, email)); err != nil {
		s.metrics.AuditPublishFailed()
		s.log.Warn("Failed to publish %s audit event: %v", typ, err)
	}
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}
