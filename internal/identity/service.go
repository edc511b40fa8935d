package identity

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Sentinel errors for the identity store.
var (
	ErrUserNotFound       = errors.New("identity: user not found")
	ErrDuplicateUser      = errors.New("identity: email already registered")
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	Exists(ctx context.Context, userID int64) (bool, error)
	GetByEmail(ctx context.Context, email string) (User, string, error)
	Insert(ctx context.Context, email, name, passwordHash string) (User, error)
	List(ctx context.Context) ([]User, error)
}

// Service handles identity operations.
type Service struct {
	repo RepositoryPort
}

// NewService builds the identity service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Exists reports whether the user id is known.
func (s *Service) Exists(ctx context.Context, userID int64) (bool, error) {
	return s.repo.Exists(ctx, userID)
}

// Authenticate verifies the credentials of an active user.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, hash, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if !user.IsActive {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// CreateUser registers a user with a bcrypt-hashed password.
func (s *Service) CreateUser(ctx context.Context, email, name, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return User{}, errors.New("identity: email required")
	}
	if len(password) < 8 {
		return User{}, errors.New("identity: password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return s.repo.Insert(ctx, email, strings.TrimSpace(name), string(hash))
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}
