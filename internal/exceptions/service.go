package exceptions

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/centinela-ac/centinela/internal/audit"
)

// Sentinel errors for the exceptional permission layer.
var (
	ErrMissingJustification = errors.New("exceptions: a non-blank reason is required")
	ErrInvalidWindow        = errors.New("exceptions: expiry must be after the start of validity")
	ErrPermissionNotFound   = errors.New("exceptions: exceptional permission not found")
)

// RepositoryPort defines data access methods for exceptional permissions.
type RepositoryPort interface {
	Insert(ctx context.Context, p Permission) (Permission, error)
	Get(ctx context.Context, id int64) (Permission, error)
	Deactivate(ctx context.Context, id int64) error
	ListForUser(ctx context.Context, userID int64) ([]Permission, error)
}

// Recorder appends audit entries for applied overrides.
type Recorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Invalidator drops cached effective capability sets after mutations.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service manages time-bounded per-user overrides layered on top of
// group-derived capabilities.
type Service struct {
	repo     RepositoryPort
	auditor  Recorder
	cache    Invalidator
	logger   *slog.Logger
	timeFunc func() time.Time
}

// NewService builds the exceptional permission service.
func NewService(repo RepositoryPort, auditor Recorder, cache Invalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, auditor: auditor, cache: cache, logger: logger, timeFunc: time.Now}
}

// Grant creates an exceptional grant. The reason is mandatory; a zero startsAt
// means "now".
func (s *Service) Grant(ctx context.Context, userID int64, capabilityCode string, authorizedBy int64, reason string, startsAt time.Time, expiresAt *time.Time) (Permission, error) {
	return s.apply(ctx, KindGrant, userID, capabilityCode, authorizedBy, reason, startsAt, expiresAt)
}

// RevokeCapability creates a first-class kind=revoke override. Prior grants
// are left untouched: the resolver applies revoke-wins precedence.
func (s *Service) RevokeCapability(ctx context.Context, userID int64, capabilityCode string, authorizedBy int64, reason string) (Permission, error) {
	return s.apply(ctx, KindRevoke, userID, capabilityCode, authorizedBy, reason, time.Time{}, nil)
}

func (s *Service) apply(ctx context.Context, kind Kind, userID int64, capabilityCode string, authorizedBy int64, reason string, startsAt time.Time, expiresAt *time.Time) (Permission, error) {
	capabilityCode = strings.TrimSpace(capabilityCode)
	if capabilityCode == "" {
		return Permission{}, errors.New("exceptions: capability code required")
	}
	if strings.TrimSpace(reason) == "" {
		return Permission{}, ErrMissingJustification
	}
	if startsAt.IsZero() {
		startsAt = s.now()
	}
	if expiresAt != nil && !expiresAt.After(startsAt) {
		return Permission{}, ErrInvalidWindow
	}

	stored, err := s.repo.Insert(ctx, Permission{
		UserID:         userID,
		CapabilityCode: capabilityCode,
		Kind:           kind,
		AuthorizedBy:   authorizedBy,
		Reason:         strings.TrimSpace(reason),
		StartsAt:       startsAt,
		ExpiresAt:      expiresAt,
	})
	if err != nil {
		return Permission{}, err
	}

	if err := s.record(ctx, audit.Entry{
		UserID:         userID,
		CapabilityCode: capabilityCode,
		Action:         audit.ActionExceptionApplied,
		Outcome:        audit.OutcomeSuccess,
		Context: map[string]any{
			"exception_id":  strconv.FormatInt(stored.ID, 10),
			"kind":          string(kind),
			"authorized_by": strconv.FormatInt(authorizedBy, 10),
			"reason":        stored.Reason,
		},
	}); err != nil {
		return Permission{}, err
	}
	s.invalidate(ctx)
	return stored, nil
}

// Deactivate retires the override row, typically to end a revocation early.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// ListForUser returns every override of the user, newest first.
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]Permission, error) {
	return s.repo.ListForUser(ctx, userID)
}

func (s *Service) record(ctx context.Context, entry audit.Entry) error {
	if s.auditor == nil {
		return nil
	}
	return s.auditor.Record(ctx, entry)
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil && s.logger != nil {
		s.logger.Warn("bump resolver cache", slog.Any("error", err))
	}
}

func (s *Service) now() time.Time {
	if s.timeFunc != nil {
		return s.timeFunc()
	}
	return time.Now()
}
