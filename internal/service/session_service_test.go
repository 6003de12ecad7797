package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Varun5711/talentlens/internal/audit"
	"github.com/Varun5711/talentlens/internal/auth"
	"github.com/Varun5711/talentlens/internal/logger"
	"github.com/Varun5711/talentlens/internal/metrics"
	usermodel "github.com/Varun5711/talentlens/internal/models/user"
	"github.com/Varun5711/talentlens/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*audit.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e *audit.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []audit.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]audit.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// failingClearStore wraps a memory store and fails ClearRefreshHash.
type failingClearStore struct {
	*storage.MemoryUserStore
}

func (failingClearStore) ClearRefreshHash(context.Context, string) error {
	return errors.New("connection reset")
}

// replicaLagStore serves FindByID from a copy that never saw a session.
type replicaLagStore struct {
	*storage.MemoryUserStore
}

func (s replicaLagStore) FindByID(ctx context.Context, id string) (*usermodel.User, error) {
	user, err := s.MemoryUserStore.FindByID(ctx, id)
	if user != nil {
		user.RefreshTokenHash = nil
	}
	return user, err
}

type fixture struct {
	svc   *SessionService
	store *storage.MemoryUserStore
	pub   *recordingPublisher
	logs  *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewMemoryUserStore()
	return newFixtureWithStore(t, store, store)
}

func newFixtureWithStore(t *testing.T, store storage.UserStore, mem *storage.MemoryUserStore) *fixture {
	t.Helper()
	issuer := auth.NewTokenIssuer(
		auth.NewJWTManager("access-secret", 15*time.Minute),
		auth.NewJWTManager("refresh-secret", 7*24*time.Hour),
	)
	pub := &recordingPublisher{}
	logs := &bytes.Buffer{}
	svc := NewSessionService(store, issuer, pub, metrics.New()).
		WithLogger(logger.New("session-service").WithOutput(logs))

	return &fixture{svc: svc, store: mem, pub: pub, logs: logs}
}

func userIDFromPair(t *testing.T, pair *usermodel.TokenPair) string {
	t.Helper()
	claims, err := auth.NewJWTManager("access-secret", time.Minute).ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	return claims.UserID
}

func TestRegisterThenLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	registered, err := f.svc.Register(ctx, "alice@example.com", "Str0ngP@ss", "Alice")
	require.NoError(t, err)
	assert.NotEmpty(t, registered.AccessToken)
	assert.NotEmpty(t, registered.RefreshToken)

	loggedIn, err := f.svc.Login(ctx, "alice@example.com", "Str0ngP@ss")
	require.NoError(t, err)
	assert.NotEmpty(t, loggedIn.AccessToken)
	assert.NotEqual(t, registered.RefreshToken, loggedIn.RefreshToken)

	assert.Equal(t, []audit.EventType{audit.EventRegister, audit.EventLogin}, f.pub.types())
}

func TestRegister_StoresHashedSecrets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.svc.Register(ctx, "  alice@example.com ", "Str0ngP@ss", "Alice")
	require.NoError(t, err)

	u, err := f.store.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, u)

	assert.NotEqual(t, "Str0ngP@ss", u.PasswordHash)
	assert.NoError(t, auth.CheckPassword(u.PasswordHash, "Str0ngP@ss"))
	require.NotNil(t, u.RefreshTokenHash)
	assert.Equal(t, auth.HashToken(pair.RefreshToken), *u.RefreshTokenHash)
	assert.NotEqual(t, pair.RefreshToken, *u.RefreshTokenHash)
}

func TestRegister_DuplicateEmailLeavesRecordUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "alice@example.com", "Str0ngP@ss", "Alice")
	require.NoError(t, err)
	before, _ := f.store.FindByEmail(ctx, "alice@example.com")

	_, err = f.svc.Register(ctx, "alice@example.com", "Other1@pass", "Mallory")
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	after, _ := f.store.FindByEmail(ctx, "alice@example.com")
	assert.Equal(t, before, after)
	assert.Equal(t, 1, f.store.Count())
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "alice@example.com", "Str0ngP@ss", "Alice")
	require.NoError(t, err)

	_, wrongPassword := f.svc.Login(ctx, "alice@example.com", "Wr0ngP@ss")
	_, unknownEmail := f.svc.Login(ctx, "nobody@example.com", "Str0ngP@ss")

	require.ErrorIs(t, wrongPassword, ErrAccessDenied)
	require.ErrorIs(t, unknownEmail, ErrAccessDenied)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestLogin_UnknownEmailStillPaysHashCost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "alice@example.com", "Str0ngP@ss", "Alice")
	require.NoError(t, err)

	measure := func(email string) time.Duration {
		var total time.Duration
		for i := 0; i < 3; i++ {
			start := time.Now()
			_, _ = f.svc.Login(ctx, email, "Wr0ngP@ss")
			total += time.Since(start)
		}
		return total / 3
	}

	wrongPassword := measure("alice@example.com")
	unknownEmail := measure("nobody@example.com")

	// both paths run exactly one bcrypt comparison at the same cost
	assert.Greater(t, unknownEmail, wrongPassword/3)
	assert.Greater(t, wrongPassword, unknownEmail/3)
}

func TestRefreshTokens_RotationInvalidatesOldToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.svc.Register(ctx, "alice@example.com", "Str0ngP@ss", "Alice")
	require.NoError(t, err)
	userID := userIDFromPair(t, pair)

	rotated, err := f.svc.RefreshTokens(ctx, userID, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	_, err = f.svc.RefreshTokens(ctx, userID, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = f.svc.RefreshTokens(ctx, userID, rotated.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshTokens_IgnoresLaggingReads(t *testing.T) {
	mem := storage.NewMemoryUserStore()
	f := newFixtureWithStore(t, replicaLagStore{mem}, mem)
	ctx := context.Background()

	pair, err := f.svc.Register(ctx, "alice@example.com", "Str0ngP@ss", "Alice")
	require.NoError(t, err)
	userID := userIDFromPair(t, pair)

	rotated, err := f.svc.RefreshTokens(ctx, userID, pair.RefreshToken)
	require.NoError(t, err)

	_, err = f.svc.RefreshTokens(ctx, userID, rotated.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshTokens_UnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RefreshTokens(context.Background(), "missing", "whatever")
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Contains(t, f.pub.types(), audit.EventRefreshDenied)
}

func TestRefreshTokens_ConcurrentUseHasOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.svc.Register(ctx, "alice@example.com", "Str0ngP@ss", "Alice")
	require.NoError(t, err)
	userID := userIDFromPair(t, pair)

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []*usermodel.TokenPair
		denied  int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := f.svc.RefreshTokens(ctx, userID, pair.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, p)
				return
			}
			assert.ErrorIs(t, err, ErrAccessDenied)
			denied++
		}()
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, callers-1, denied)

	_, err = f.svc.RefreshTokens(ctx, userID, winners[0].RefreshToken)
	assert.NoError(t, err)
}

func TestLogout_IdempotentAndEndsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.svc.Register(ctx, "alice@example.com", "Str0ngP@ss", "Alice")
	require.NoError(t, err)
	userID := userIDFromPair(t, pair)

	f.svc.Logout(ctx, userID)
	f.svc.Logout(ctx, userID)

	_, err = f.svc.RefreshTokens(ctx, userID, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestLogout_SwallowsStorageErrors(t *testing.T) {
	mem := storage.NewMemoryUserStore()
	f := newFixtureWithStore(t, failingClearStore{mem}, mem)

	assert.NotPanics(t, func() {
		f.svc.Logout(context.Background(), "vanished-user")
	})
	assert.Contains(t, f.logs.String(), "connection reset")
}

func TestAuditFailureDoesNotBreakFlow(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("redis down")

	_, err := f.svc.Register(context.Background(), "alice@example.com", "Str0ngP@ss", "Alice")
	assert.NoError(t, err)
	assert.Contains(t, f.logs.String(), "redis down")
}

func TestGetProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.svc.Register(ctx, "alice@example.com", "Str0ngP@ss", "Alice")
	require.NoError(t, err)

	profile, err := f.svc.GetProfile(ctx, userIDFromPair(t, pair))
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", profile.Email)
	assert.Equal(t, "Alice", profile.FullName)

	_, err = f.svc.GetProfile(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func strPtr(s string) *string { return &s }

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.svc.Register(ctx, "alice@example.com", "Str0ngP@ss", "Alice")
	require.NoError(t, err)
	userID := userIDFromPair(t, pair)

	profile, err := f.svc.UpdateProfile(ctx, userID, &usermodel.UpdateProfileRequest{
		Title:    strPtr("Staff Engineer"),
		Location: strPtr("Berlin"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Staff Engineer", profile.Title)
	assert.Equal(t, "Berlin", profile.Location)
	assert.Equal(t, "Alice", profile.FullName)

	profile, err = f.svc.UpdateProfile(ctx, userID, &usermodel.UpdateProfileRequest{
		Email: strPtr("alice@example.com"),
	})
	require.NoError(t, err, "keeping the same email is not a conflict")
	assert.Equal(t, "alice@example.com", profile.Email)
}

func TestUpdateProfile_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice, err := f.svc.Register(ctx, "alice@example.com", "Str0ngP@ss", "Alice")
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, "bob@example.com", "Str0ngP@ss", "Bob")
	require.NoError(t, err)

	_, err = f.svc.UpdateProfile(ctx, userIDFromPair(t, alice), &usermodel.UpdateProfileRequest{
		Email:    strPtr("bob@example.com"),
		FullName: strPtr("Alice B"),
	})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	unchanged, _ := f.store.FindByEmail(ctx, "alice@example.com")
	require.NotNil(t, unchanged)
	assert.Equal(t, "Alice", unchanged.FullName)
}

func TestUpdateProfile_MissingUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.UpdateProfile(context.Background(), "missing", &usermodel.UpdateProfileRequest{Title: strPtr("x")})
	assert.ErrorIs(t, err, ErrNotFound)
}
