package auth

import (
	"context"
	"fmt"

	usermodel "github.com/Varun5711/talentlens/internal/models/user"
	"golang.org/x/sync/errgroup"
)

// TokenIssuer mints and verifies access/refresh pairs. The two halves use
// separate secrets so a leaked access secret cannot forge refresh tokens.
type TokenIssuer struct {
	access  *JWTManager
	refresh *JWTManager
}

func NewTokenIssuer(access, refresh *JWTManager) *TokenIssuer {
	return &TokenIssuer{
		access:  access,
		refresh: refresh,
	}
}

func (i *TokenIssuer) Issue(ctx context.Context, userID, email string) (*usermodel.TokenPair, error) {
	pair := &usermodel.TokenPair{}

	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		token, expiresAt, err := i.access.GenerateToken(userID, email)
		if err != nil {
			return fmt.Errorf("access token: %w", err)
		}
		pair.AccessToken = token
		pair.AccessExpiresAt = expiresAt
		return nil
	})

	g.Go(func() error {
		token, expiresAt, err := i.refresh.GenerateToken(userID, email)
		if err != nil {
			return fmt.Errorf("refresh token: %w", err)
		}
		pair.RefreshToken = token
		pair.RefreshExpiresAt = expiresAt
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}

	return pair, nil
}

func (i *TokenIssuer) VerifyAccess(token string) (*Claims, error) {
	return i.access.ValidateToken(token)
}

func (i *TokenIssuer) VerifyRefresh(token string) (*Claims, error) {
	return i.refresh.ValidateToken(token)
}

func (i *TokenIssuer) RefreshTTL() int {
	return int(i.refresh.Duration().Seconds())
}
