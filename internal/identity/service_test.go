package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryUserRepo struct {
	users  map[string]User
	hashes map[string]string
	nextID int64
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[string]User), hashes: make(map[string]string)}
}

func (r *memoryUserRepo) Exists(ctx context.Context, userID int64) (bool, error) {
	for _, u := range r.users {
		if u.ID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryUserRepo) GetByEmail(ctx context.Context, email string) (User, string, error) {
	u, ok := r.users[email]
	if !ok {
		return User{}, "", ErrUserNotFound
	}
	return u, r.hashes[email], nil
}

func (r *memoryUserRepo) Insert(ctx context.Context, email, name, passwordHash string) (User, error) {
	if _, ok := r.users[email]; ok {
		return User{}, ErrDuplicateUser
	}
	r.nextID++
	u := User{ID: r.nextID, Email: email, Name: name, IsActive: true}
	r.users[email] = u
	r.hashes[email] = passwordHash
	return u, nil
}

func (r *memoryUserRepo) List(ctx context.Context) ([]User, error) {
	var out []User
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

func TestCreateUserAndAuthenticate(t *testing.T) {
	svc := NewService(newMemoryUserRepo())
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, " Admin@Centinela.Local ", "Administrador", "centinela-admin")
	require.NoError(t, err)
	require.Equal(t, "admin@centinela.local", created.Email)

	user, err := svc.Authenticate(ctx, "admin@centinela.local", "centinela-admin")
	require.NoError(t, err)
	require.Equal(t, created.ID, user.ID)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	svc := NewService(newMemoryUserRepo())
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "admin@centinela.local", "Administrador", "centinela-admin")
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "admin@centinela.local", "wrong-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateUnknownEmail(t *testing.T) {
	svc := NewService(newMemoryUserRepo())

	_, err := svc.Authenticate(context.Background(), "nadie@centinela.local", "whatever123")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateUserRejectsShortPassword(t *testing.T) {
	svc := NewService(newMemoryUserRepo())

	_, err := svc.CreateUser(context.Background(), "admin@centinela.local", "Administrador", "corta")
	require.Error(t, err)
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	svc := NewService(newMemoryUserRepo())
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "admin@centinela.local", "Administrador", "centinela-admin")
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, "ADMIN@centinela.local", "Otra", "centinela-admin")
	require.ErrorIs(t, err, ErrDuplicateUser)
}
