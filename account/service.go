// Package account implements the credential store: account creation,
// password verification, and password replacement. Password hashes never
// leave this package in raw comparable form.
package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jcarver/latchkey/internal/util"
	"github.com/jcarver/latchkey/storage"
)

const (
	// MinPasswordLen is the minimum accepted password length. A plain
	// length floor; complexity rules beyond that are not enforced.
	MinPasswordLen = 8
	maxUsernameLen = 150
)

// Service provides account credential operations over a storage.Repository.
type Service struct {
	repo      storage.Repository
	kdfParams util.Argon2idParams
}

// Option configures a Service.
type Option func(*Service)

// WithKDFParams overrides the argon2id parameters used for password hashing.
// Tests use cheap parameters to keep the suite fast.
func WithKDFParams(params util.Argon2idParams) Option {
	return func(s *Service) {
		s.kdfParams = params
	}
}

// NewService creates an account Service with default argon2id parameters.
func NewService(repo storage.Repository, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		kdfParams: util.DefaultArgon2idParams(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a new account. Returns storage.ErrUsernameTaken when the
// username is already registered, ErrInvalidUsername or ErrWeakPassword on
// bad input.
func (s *Service) Create(ctx context.Context, username, password string) (*storage.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(username) > maxUsernameLen {
		return nil, ErrInvalidUsername
	}
	if len(password) < MinPasswordLen {
		return nil, ErrWeakPassword
	}

	hash, err := HashPassword(password, s.kdfParams)
	if err != nil {
		return nil, err
	}
	acct := &storage.Account{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.CreateAccount(ctx, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// VerifyPassword authenticates a username/password pair. Any mismatch,
// unknown username or wrong password, returns ErrInvalidCredentials.
func (s *Service) VerifyPassword(ctx context.Context, username, password string) (*storage.Account, error) {
	acct, err := s.repo.AccountByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(password, acct.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return acct, nil
}

// SetPassword replaces the account's password. The caller is responsible for
// having authorized the change (login session or verified recovery session).
func (s *Service) SetPassword(ctx context.Context, accountID, newPassword string) error {
	if len(newPassword) < MinPasswordLen {
		return ErrWeakPassword
	}
	hash, err := HashPassword(newPassword, s.kdfParams)
	if err != nil {
		return err
	}
	return s.repo.UpdateAccountPassword(ctx, accountID, hash)
}
