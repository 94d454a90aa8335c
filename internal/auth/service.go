package auth

import (
	"context"
	"fmt"
)

// Service wraps the user repository with registration and credential
// checking.
type Service struct {
	users UserRepository
}

// NewService creates an auth service over the given repository.
func NewService(users UserRepository) *Service {
	return &Service{users: users}
}

// Register validates and creates a new account. Passwords are stored
// only as Argon2id hashes; the plaintext never leaves this function.
func (s *Service) Register(ctx context.Context, username, email, password string) (*User, error) {
	if !IsValidUsername(username) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUsername, username)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: minimum %d characters", ErrWeakPassword, minPasswordLength)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Authenticate checks a username/password pair and returns the account
// on success. Unknown usernames and wrong passwords both map to
// ErrInvalidCredentials so callers cannot probe for accounts.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// Lookup retrieves an account by ID.
func (s *Service) Lookup(ctx context.Context, id string) (*User, error) {
	return s.users.GetByID(ctx, id)
}
