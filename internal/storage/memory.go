package storage

import (
	"context"
	"sync"
	"time"

	usermodel "github.com/Varun5711/talentlens/internal/models/user"
	"github.com/google/uuid"
)

type MemoryUserStore struct {
	mu      sync.RWMutex
	users   map[string]*usermodel.User
	byEmail map[string]string
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		users:   make(map[string]*usermodel.User),
		byEmail: make(map[string]string),
	}
}

// copies are handed out so callers cannot mutate stored records
func cloneUser(u *usermodel.User) *usermodel.User {
	c := *u
	if u.RefreshTokenHash != nil {
		h := *u.RefreshTokenHash
		c.RefreshTokenHash = &h
	}
	return &c
}

func (s *MemoryUserStore) FindByEmail(ctx context.Context, email string) (*usermodel.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byEmail[email]
	if !exists {
		return nil, nil
	}
	return cloneUser(s.users[id]), nil
}

func (s *MemoryUserStore) FindByID(ctx context.Context, id string) (*usermodel.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[id]
	if !exists {
		return nil, nil
	}
	return cloneUser(user), nil
}

// FindSession is FindByID; the memory store has a single copy.
func (s *MemoryUserStore) FindSession(ctx context.Context, id string) (*usermodel.User, error) {
	return s.FindByID(ctx, id)
}

func (s *MemoryUserStore) Create(ctx context.Context, params *CreateUserParams) (*usermodel.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[params.Email]; exists {
		return nil, ErrDuplicateEmail
	}

	now := time.Now().UTC()
	user := &usermodel.User{
		ID:           uuid.New().String(),
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		FullName:     params.FullName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.users[user.ID] = user
	s.byEmail[user.Email] = user.ID

	return cloneUser(user), nil
}

func (s *MemoryUserStore) Update(ctx context.Context, id string, params *UpdateUserParams) (*usermodel.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[id]
	if !exists {
		return nil, nil
	}

	if params.Email != nil && *params.Email != user.Email {
		if _, taken := s.byEmail[*params.Email]; taken {
			return nil, ErrDuplicateEmail
		}
		delete(s.byEmail, user.Email)
		user.Email = *params.Email
		s.byEmail[user.Email] = user.ID
	}
	if params.FullName != nil {
		user.FullName = *params.FullName
	}
	if params.Title != nil {
		user.Title = *params.Title
	}
	if params.Location != nil {
		user.Location = *params.Location
	}
	user.UpdatedAt = time.Now().UTC()

	return cloneUser(user), nil
}

func (s *MemoryUserStore) SetRefreshHash(ctx context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user, exists := s.users[id]; exists {
		user.RefreshTokenHash = &hash
		user.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (s *MemoryUserStore) SwapRefreshHash(ctx context.Context, id, expected, next string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[id]
	if !exists || user.RefreshTokenHash == nil || *user.RefreshTokenHash != expected {
		return false, nil
	}

	user.RefreshTokenHash = &next
	user.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *MemoryUserStore) ClearRefreshHash(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user, exists := s.users[id]; exists {
		user.RefreshTokenHash = nil
	}
	return nil
}

func (s *MemoryUserStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}
