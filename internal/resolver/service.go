package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/centinela-ac/centinela/internal/audit"
	"github.com/centinela-ac/centinela/internal/observability"
)

// ErrUnknownUser indicates that the user does not exist in the identity store.
// A missing capability is never an error: absence from the effective set is the
// normal negative answer.
var ErrUnknownUser = errors.New("resolver: unknown user")

// Snapshot exposes the reads and the audit write of one consistent point in
// time. Implementations back every method of a single Snapshot with the same
// transaction, so a revoke committed mid-evaluation can never produce a
// partial view.
type Snapshot interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
	GroupCapabilities(ctx context.Context, userID int64, now time.Time) ([]string, error)
	GrantedCapabilities(ctx context.Context, userID int64, now time.Time) ([]string, error)
	RevokedCapabilities(ctx context.Context, userID int64, now time.Time) ([]string, error)
	CapabilityRequiresAudit(ctx context.Context, code string) (bool, error)
	AppendAudit(ctx context.Context, entry audit.Entry) error
}

// Repository opens snapshots. The callback's error aborts the underlying
// transaction, which is how a failed audit write withholds the decision.
type Repository interface {
	WithSnapshot(ctx context.Context, fn func(ctx context.Context, snap Snapshot) error) error
}

// CheckMeta carries request context recorded with audited decisions.
type CheckMeta struct {
	Resource  string
	Endpoint  string
	IPAddress string
	UserAgent string
	Context   map[string]any
}

// Service answers "does user U currently hold capability C" and "what is U's
// full effective capability set". It is the one place where group
// capabilities, exceptional grants and exceptional revocations compose.
type Service struct {
	repo     Repository
	cache    *Cache
	metrics  *observability.Metrics
	timeFunc func() time.Time
}

// NewService builds the resolver.
func NewService(repo Repository, cache *Cache, metrics *observability.Metrics) *Service {
	return &Service{repo: repo, cache: cache, metrics: metrics, timeFunc: time.Now}
}

// EffectiveCapabilities returns the sorted effective capability set of the
// user: (group capabilities ∪ exceptional grants) − exceptional revocations.
func (s *Service) EffectiveCapabilities(ctx context.Context, userID int64) ([]string, error) {
	if s.cache == nil {
		return s.resolve(ctx, userID)
	}
	key, err := s.cache.BuildKey(ctx, "authz", "effective", strconv.FormatInt(userID, 10))
	if err != nil {
		return s.resolve(ctx, userID)
	}
	var caps []string
	if err := s.cache.FetchJSON(ctx, key, &caps, func(ctx context.Context) (any, error) {
		return s.resolve(ctx, userID)
	}); err != nil {
		return nil, err
	}
	return caps, nil
}

// HasPermission reports whether the user currently holds the capability. For
// capabilities flagged requires_audit the decision and its audit entry commit
// as one transactional unit: when the audit write fails the decision is
// withheld and the error returned instead.
func (s *Service) HasPermission(ctx context.Context, userID int64, capabilityCode string, meta CheckMeta) (bool, error) {
	var granted bool
	err := s.repo.WithSnapshot(ctx, func(ctx context.Context, snap Snapshot) error {
		now := s.now()
		effective, err := s.effectiveIn(ctx, snap, userID, now)
		if err != nil {
			return err
		}
		_, granted = effective[capabilityCode]

		requiresAudit, err := snap.CapabilityRequiresAudit(ctx, capabilityCode)
		if err != nil {
			return err
		}
		if !requiresAudit {
			return nil
		}
		action := audit.ActionAccessDenied
		if granted {
			action = audit.ActionAccessGranted
		}
		if err := snap.AppendAudit(ctx, audit.Entry{
			UserID:         userID,
			CapabilityCode: capabilityCode,
			Action:         action,
			Outcome:        audit.OutcomeSuccess,
			Resource:       meta.Resource,
			Endpoint:       meta.Endpoint,
			IPAddress:      meta.IPAddress,
			UserAgent:      meta.UserAgent,
			Context:        meta.Context,
			OccurredAt:     now,
		}); err != nil {
			return fmt.Errorf("resolver: audit decision: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	s.metrics.ObserveDecision(granted)
	return granted, nil
}

func (s *Service) resolve(ctx context.Context, userID int64) ([]string, error) {
	var caps []string
	err := s.repo.WithSnapshot(ctx, func(ctx context.Context, snap Snapshot) error {
		effective, err := s.effectiveIn(ctx, snap, userID, s.now())
		if err != nil {
			return err
		}
		caps = make([]string, 0, len(effective))
		for code := range effective {
			caps = append(caps, code)
		}
		sort.Strings(caps)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return caps, nil
}

// effectiveIn composes the precedence rules. The revocation difference is
// applied last: a simultaneous grant and revoke for the same capability
// resolves to revoked.
func (s *Service) effectiveIn(ctx context.Context, snap Snapshot, userID int64, now time.Time) (map[string]struct{}, error) {
	exists, err := snap.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrUnknownUser
	}

	groupCaps, err := snap.GroupCapabilities(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	granted, err := snap.GrantedCapabilities(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	revoked, err := snap.RevokedCapabilities(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	effective := make(map[string]struct{}, len(groupCaps)+len(granted))
	for _, code := range groupCaps {
		effective[code] = struct{}{}
	}
	for _, code := range granted {
		effective[code] = struct{}{}
	}
	for _, code := range revoked {
		delete(effective, code)
	}
	return effective, nil
}

func (s *Service) now() time.Time {
	if s.timeFunc != nil {
		return s.timeFunc().UTC()
	}
	return time.Now().UTC()
}
