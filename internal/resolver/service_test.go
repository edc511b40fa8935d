package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/centinela-ac/centinela/internal/audit"
)

type timedCap struct {
	code      string
	expiresAt *time.Time
}

type memorySnapshot struct {
	users         map[int64]bool
	groupCaps     map[int64][]timedCap
	grants        map[int64][]timedCap
	revokes       map[int64][]timedCap
	requiresAudit map[string]bool
	auditErr      error
	entries       []audit.Entry
}

type memoryAuthzRepo struct {
	snap *memorySnapshot
}

func newMemorySnapshot() *memorySnapshot {
	return &memorySnapshot{
		users:         make(map[int64]bool),
		groupCaps:     make(map[int64][]timedCap),
		grants:        make(map[int64][]timedCap),
		revokes:       make(map[int64][]timedCap),
		requiresAudit: make(map[string]bool),
	}
}

func (r *memoryAuthzRepo) WithSnapshot(ctx context.Context, fn func(context.Context, Snapshot) error) error {
	return fn(ctx, r.snap)
}

func (s *memorySnapshot) UserExists(ctx context.Context, userID int64) (bool, error) {
	return s.users[userID], nil
}

func inEffect(caps []timedCap, now time.Time) []string {
	var out []string
	for _, c := range caps {
		if c.expiresAt != nil && !c.expiresAt.After(now) {
			continue
		}
		out = append(out, c.code)
	}
	return out
}

func (s *memorySnapshot) GroupCapabilities(ctx context.Context, userID int64, now time.Time) ([]string, error) {
	return inEffect(s.groupCaps[userID], now), nil
}

func (s *memorySnapshot) GrantedCapabilities(ctx context.Context, userID int64, now time.Time) ([]string, error) {
	return inEffect(s.grants[userID], now), nil
}

func (s *memorySnapshot) RevokedCapabilities(ctx context.Context, userID int64, now time.Time) ([]string, error) {
	return inEffect(s.revokes[userID], now), nil
}

func (s *memorySnapshot) CapabilityRequiresAudit(ctx context.Context, code string) (bool, error) {
	return s.requiresAudit[code], nil
}

func (s *memorySnapshot) AppendAudit(ctx context.Context, entry audit.Entry) error {
	if s.auditErr != nil {
		return s.auditErr
	}
	s.entries = append(s.entries, entry)
	return nil
}

func newTestService(snap *memorySnapshot, at time.Time) *Service {
	svc := NewService(&memoryAuthzRepo{snap: snap}, nil, nil)
	svc.timeFunc = func() time.Time { return at }
	return svc
}

func TestEffectiveCapabilitiesUnknownUser(t *testing.T) {
	snap := newMemorySnapshot()
	svc := newTestService(snap, time.Now())

	_, err := svc.EffectiveCapabilities(context.Background(), 99)
	require.ErrorIs(t, err, ErrUnknownUser)

	_, err = svc.HasPermission(context.Background(), 99, "informes.exportar", CheckMeta{})
	require.ErrorIs(t, err, ErrUnknownUser)
}

func TestEffectiveCapabilitiesEmpty(t *testing.T) {
	snap := newMemorySnapshot()
	snap.users[1] = true
	svc := newTestService(snap, time.Now())

	caps, err := svc.EffectiveCapabilities(context.Background(), 1)
	require.NoError(t, err)
	require.Empty(t, caps)

	ok, err := svc.HasPermission(context.Background(), 1, "informes.exportar", CheckMeta{})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEffectiveCapabilitiesUnionSorted(t *testing.T) {
	snap := newMemorySnapshot()
	snap.users[1] = true
	snap.groupCaps[1] = []timedCap{{code: "panel.metricas.ver"}, {code: "llamadas.historial.ver"}}
	snap.grants[1] = []timedCap{{code: "informes.exportar"}, {code: "panel.metricas.ver"}}
	svc := newTestService(snap, time.Now())

	caps, err := svc.EffectiveCapabilities(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, []string{"informes.exportar", "llamadas.historial.ver", "panel.metricas.ver"}, caps)
}

func TestRevocationWinsOverGroupAndGrant(t *testing.T) {
	snap := newMemorySnapshot()
	snap.users[1] = true
	snap.groupCaps[1] = []timedCap{{code: "llamadas.historial.ver"}, {code: "llamadas.grabaciones.escuchar"}}
	snap.grants[1] = []timedCap{{code: "llamadas.grabaciones.escuchar"}}
	snap.revokes[1] = []timedCap{{code: "llamadas.grabaciones.escuchar"}}
	svc := newTestService(snap, time.Now())

	ok, err := svc.HasPermission(context.Background(), 1, "llamadas.grabaciones.escuchar", CheckMeta{})
	require.NoError(t, err)
	require.False(t, ok)

	caps, err := svc.EffectiveCapabilities(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, []string{"llamadas.historial.ver"}, caps)
}

func TestExpiredGrantIsIgnored(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Hour)

	snap := newMemorySnapshot()
	snap.users[1] = true
	snap.grants[1] = []timedCap{{code: "informes.exportar", expiresAt: &expired}}
	svc := newTestService(snap, now)

	ok, err := svc.HasPermission(context.Background(), 1, "informes.exportar", CheckMeta{})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestExpiredRevocationStopsApplying(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Minute)

	snap := newMemorySnapshot()
	snap.users[1] = true
	snap.groupCaps[1] = []timedCap{{code: "informes.exportar"}}
	snap.revokes[1] = []timedCap{{code: "informes.exportar", expiresAt: &expired}}
	svc := newTestService(snap, now)

	ok, err := svc.HasPermission(context.Background(), 1, "informes.exportar", CheckMeta{})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAuditedCapabilityRecordsOneEntry(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	snap := newMemorySnapshot()
	snap.users[1] = true
	snap.groupCaps[1] = []timedCap{{code: "llamadas.grabaciones.escuchar"}}
	snap.requiresAudit["llamadas.grabaciones.escuchar"] = true
	svc := newTestService(snap, now)

	meta := CheckMeta{Resource: "recording:42", Endpoint: "/llamadas/42", IPAddress: "10.0.0.7"}
	ok, err := svc.HasPermission(context.Background(), 1, "llamadas.grabaciones.escuchar", meta)
	require.NoError(t, err)
	require.True(t, ok)

	require.Len(t, snap.entries, 1)
	entry := snap.entries[0]
	require.Equal(t, audit.ActionAccessGranted, entry.Action)
	require.Equal(t, int64(1), entry.UserID)
	require.Equal(t, "llamadas.grabaciones.escuchar", entry.CapabilityCode)
	require.Equal(t, "recording:42", entry.Resource)
	require.Equal(t, now, entry.OccurredAt)
}

func TestAuditedDenialRecordsDeniedAction(t *testing.T) {
	snap := newMemorySnapshot()
	snap.users[1] = true
	snap.requiresAudit["informes.exportar"] = true
	svc := newTestService(snap, time.Now())

	ok, err := svc.HasPermission(context.Background(), 1, "informes.exportar", CheckMeta{})
	require.NoError(t, err)
	require.False(t, ok)

	require.Len(t, snap.entries, 1)
	require.Equal(t, audit.ActionAccessDenied, snap.entries[0].Action)
}

func TestUnauditedCapabilitySkipsAudit(t *testing.T) {
	snap := newMemorySnapshot()
	snap.users[1] = true
	snap.groupCaps[1] = []timedCap{{code: "panel.metricas.ver"}}
	svc := newTestService(snap, time.Now())

	ok, err := svc.HasPermission(context.Background(), 1, "panel.metricas.ver", CheckMeta{})
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, snap.entries)
}

func TestAuditFailureWithholdsDecision(t *testing.T) {
	snap := newMemorySnapshot()
	snap.users[1] = true
	snap.groupCaps[1] = []timedCap{{code: "informes.exportar"}}
	snap.requiresAudit["informes.exportar"] = true
	snap.auditErr = errors.New("disk full")
	svc := newTestService(snap, time.Now())

	ok, err := svc.HasPermission(context.Background(), 1, "informes.exportar", CheckMeta{})
	require.Error(t, err)
	require.ErrorContains(t, err, "audit decision")
	require.False(t, ok)
	require.Empty(t, snap.entries)
}
