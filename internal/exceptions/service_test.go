package exceptions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/centinela-ac/centinela/internal/audit"
)

type memoryExceptionsRepo struct {
	permissions map[int64]Permission
	nextID      int64
}

func newMemoryExceptionsRepo() *memoryExceptionsRepo {
	return &memoryExceptionsRepo{permissions: make(map[int64]Permission)}
}

func (r *memoryExceptionsRepo) Insert(ctx context.Context, p Permission) (Permission, error) {
	r.nextID++
	p.ID = r.nextID
	p.Active = true
	p.CreatedAt = time.Now()
	r.permissions[p.ID] = p
	return p, nil
}

func (r *memoryExceptionsRepo) Get(ctx context.Context, id int64) (Permission, error) {
	p, ok := r.permissions[id]
	if !ok {
		return Permission{}, ErrPermissionNotFound
	}
	return p, nil
}

func (r *memoryExceptionsRepo) Deactivate(ctx context.Context, id int64) error {
	p, ok := r.permissions[id]
	if !ok {
		return ErrPermissionNotFound
	}
	p.Active = false
	r.permissions[id] = p
	return nil
}

func (r *memoryExceptionsRepo) ListForUser(ctx context.Context, userID int64) ([]Permission, error) {
	var out []Permission
	for _, p := range r.permissions {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

type auditSpy struct {
	entries []audit.Entry
}

func (s *auditSpy) Record(ctx context.Context, entry audit.Entry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func TestGrantRequiresJustification(t *testing.T) {
	svc := NewService(newMemoryExceptionsRepo(), nil, nil, nil)

	_, err := svc.Grant(context.Background(), 7, "informes.exportar", 2, "   ", time.Time{}, nil)
	require.ErrorIs(t, err, ErrMissingJustification)
}

func TestGrantRejectsInvertedWindow(t *testing.T) {
	svc := NewService(newMemoryExceptionsRepo(), nil, nil, nil)

	startsAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	expiresAt := startsAt.Add(-time.Hour)
	_, err := svc.Grant(context.Background(), 7, "informes.exportar", 2, "cobertura temporal", startsAt, &expiresAt)
	require.ErrorIs(t, err, ErrInvalidWindow)
}

func TestGrantDefaultsStartToNow(t *testing.T) {
	repo := newMemoryExceptionsRepo()
	svc := NewService(repo, nil, nil, nil)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.timeFunc = func() time.Time { return now }

	p, err := svc.Grant(context.Background(), 7, "informes.exportar", 2, "cobertura temporal", time.Time{}, nil)
	require.NoError(t, err)
	require.Equal(t, now, p.StartsAt)
	require.Equal(t, KindGrant, p.Kind)
	require.True(t, p.InEffect(now))
}

func TestRevokeCapabilityRecordsAudit(t *testing.T) {
	repo := newMemoryExceptionsRepo()
	spy := &auditSpy{}
	svc := NewService(repo, spy, nil, nil)

	p, err := svc.RevokeCapability(context.Background(), 7, "llamadas.grabaciones.escuchar", 2, "incidente abierto")
	require.NoError(t, err)
	require.Equal(t, KindRevoke, p.Kind)

	require.Len(t, spy.entries, 1)
	entry := spy.entries[0]
	require.Equal(t, audit.ActionExceptionApplied, entry.Action)
	require.Equal(t, "llamadas.grabaciones.escuchar", entry.CapabilityCode)
	require.Equal(t, "revoke", entry.Context["kind"])
}

func TestDeactivateEndsOverride(t *testing.T) {
	repo := newMemoryExceptionsRepo()
	svc := NewService(repo, nil, nil, nil)

	p, err := svc.Grant(context.Background(), 7, "informes.exportar", 2, "cobertura temporal", time.Time{}, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(context.Background(), p.ID))
	stored, err := repo.Get(context.Background(), p.ID)
	require.NoError(t, err)
	require.False(t, stored.Active)
	require.False(t, stored.InEffect(time.Now()))
}

func TestPermissionInEffectWindows(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	earlier := now.Add(-time.Hour)
	later := now.Add(time.Hour)

	cases := []struct {
		name string
		p    Permission
		want bool
	}{
		{"open ended", Permission{Active: true, StartsAt: earlier}, true},
		{"inside window", Permission{Active: true, StartsAt: earlier, ExpiresAt: &later}, true},
		{"not started yet", Permission{Active: true, StartsAt: later}, false},
		{"already expired", Permission{Active: true, StartsAt: earlier.Add(-time.Hour), ExpiresAt: &earlier}, false},
		{"deactivated", Permission{Active: false, StartsAt: earlier}, false},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.p.InEffect(now))
		})
	}
}
