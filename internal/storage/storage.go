package storage

import (
	"context"
	"errors"

	usermodel "github.com/Varun5711/talentlens/internal/models/user"
)

var ErrDuplicateEmail = errors.New("email already registered")

// UserStore is the credential and session persistence boundary.
// Lookups return (nil, nil) when no record matches.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*usermodel.User, error)
	FindByID(ctx context.Context, id string) (*usermodel.User, error)
	// FindSession is FindByID without replica lag, for reads whose result
	// feeds a refresh hash comparison.
	FindSession(ctx context.Context, id string) (*usermodel.User, error)
	Create(ctx context.Context, params *CreateUserParams) (*usermodel.User, error)
	Update(ctx context.Context, id string, params *UpdateUserParams) (*usermodel.User, error)
	SetRefreshHash(ctx context.Context, id, hash string) error
	// SwapRefreshHash replaces the stored hash only if it still equals expected.
	SwapRefreshHash(ctx context.Context, id, expected, next string) (bool, error)
	ClearRefreshHash(ctx context.Context, id string) error
}

type CreateUserParams struct {
	Email        string
	PasswordHash string
	FullName     string
}

// UpdateUserParams holds a partial profile update; nil fields are untouched.
type UpdateUserParams struct {
	Email    *string
	FullName *string
	Title    *string
	Location *string
}
