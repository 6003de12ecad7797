package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Varun5711/talentlens/internal/database"
	usermodel "github.com/Varun5711/talentlens/internal/models/user"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const userColumns = `id, email, password_hash, refresh_token_hash, full_name, title, location, created_at, updated_at`

type PostgresUserStore struct {
	db *database.DBManager
}

func NewPostgresUserStore(db *database.DBManager) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

func scanUser(row pgx.Row) (*usermodel.User, error) {
	var user usermodel.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.RefreshTokenHash,
		&user.FullName,
		&user.Title,
		&user.Location,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail reads from the primary so uniqueness checks and logins never see replica lag.
func (s *PostgresUserStore) FindByEmail(ctx context.Context, email string) (*usermodel.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(s.db.Write().QueryRow(ctx, query, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return user, nil
}

func (s *PostgresUserStore) FindByID(ctx context.Context, id string) (*usermodel.User, error) {
	return s.findByID(ctx, s.db.Read(), id)
}

// FindSession reads from the primary: a replica that has not yet seen the
// last rotation would reject a legitimate refresh.
func (s *PostgresUserStore) FindSession(ctx context.Context, id string) (*usermodel.User, error) {
	return s.findByID(ctx, s.db.Write(), id)
}

func (s *PostgresUserStore) findByID(ctx context.Context, pool *pgxpool.Pool, id string) (*usermodel.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

func (s *PostgresUserStore) Create(ctx context.Context, params *CreateUserParams) (*usermodel.User, error) {
	now := time.Now().UTC()

	query := `
		INSERT INTO users (id, email, password_hash, full_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING ` + userColumns

	user, err := scanUser(s.db.Write().QueryRow(ctx, query,
		uuid.New().String(),
		params.Email,
		params.PasswordHash,
		params.FullName,
		now,
	))
	if isUniqueViolation(err) {
		return nil, ErrDuplicateEmail
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

func (s *PostgresUserStore) Update(ctx context.Context, id string, params *UpdateUserParams) (*usermodel.User, error) {
	query := `
		UPDATE users
		SET email      = COALESCE($2, email),
		    full_name  = COALESCE($3, full_name),
		    title      = COALESCE($4, title),
		    location   = COALESCE($5, location),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(s.db.Write().QueryRow(ctx, query,
		id,
		params.Email,
		params.FullName,
		params.Title,
		params.Location,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if isUniqueViolation(err) {
		return nil, ErrDuplicateEmail
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return user, nil
}

func (s *PostgresUserStore) SetRefreshHash(ctx context.Context, id, hash string) error {
	query := `UPDATE users SET refresh_token_hash = $2, updated_at = NOW() WHERE id = $1`

	if _, err := s.db.Write().Exec(ctx, query, id, hash); err != nil {
		return fmt.Errorf("failed to store refresh hash: %w", err)
	}
	return nil
}

func (s *PostgresUserStore) SwapRefreshHash(ctx context.Context, id, expected, next string) (bool, error) {
	query := `
		UPDATE users
		SET refresh_token_hash = $3, updated_at = NOW()
		WHERE id = $1 AND refresh_token_hash = $2
	`

	tag, err := s.db.Write().Exec(ctx, query, id, expected, next)
	if err != nil {
		return false, fmt.Errorf("failed to rotate refresh hash: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresUserStore) ClearRefreshHash(ctx context.Context, id string) error {
	query := `UPDATE users SET refresh_token_hash = NULL, updated_at = NOW() WHERE id = $1 AND refresh_token_hash IS NOT NULL`

	if _, err := s.db.Write().Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to clear refresh hash: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
