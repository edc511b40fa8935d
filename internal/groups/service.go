package groups

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/centinela-ac/centinela/internal/audit"
)

// Sentinel errors for group membership management.
var (
	ErrDuplicateGroup      = errors.New("groups: group code already registered")
	ErrGroupNotFound       = errors.New("groups: group not found")
	ErrDuplicateMembership = errors.New("groups: user already holds an active membership in this group")
	ErrMembershipNotFound  = errors.New("groups: membership not found")
	ErrInvalidExpiry       = errors.New("groups: expiry must be in the future")
)

// RepositoryPort defines data access methods for groups.
type RepositoryPort interface {
	InsertGroup(ctx context.Context, group Group) (Group, error)
	GetGroup(ctx context.Context, code string) (Group, error)
	DeactivateGroup(ctx context.Context, code string) error
	SetCapabilities(ctx context.Context, groupID int64, capabilityIDs []int64) error
	GroupCapabilityCodes(ctx context.Context, groupID int64) ([]string, error)
	ActiveMembership(ctx context.Context, userID, groupID int64) (Membership, error)
	InsertMembership(ctx context.Context, m Membership) (Membership, error)
	GetMembership(ctx context.Context, id int64) (Membership, error)
	DeactivateMembership(ctx context.Context, id int64) error
	UserMemberships(ctx context.Context, userID int64) ([]Membership, error)
}

// Recorder appends audit entries for membership changes.
type Recorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Invalidator drops cached effective capability sets after mutations.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service manages which groups a user belongs to and for how long.
type Service struct {
	repo     RepositoryPort
	auditor  Recorder
	cache    Invalidator
	logger   *slog.Logger
	timeFunc func() time.Time
}

// NewService builds the group membership service.
func NewService(repo RepositoryPort, auditor Recorder, cache Invalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, auditor: auditor, cache: cache, logger: logger, timeFunc: time.Now}
}

// CreateGroup registers a new functional group.
func (s *Service) CreateGroup(ctx context.Context, code, displayName string, accessType AccessType) (Group, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Group{}, errors.New("groups: group code required")
	}
	return s.repo.InsertGroup(ctx, Group{
		Code:        code,
		DisplayName: strings.TrimSpace(displayName),
		AccessType:  accessType,
	})
}

// EnsureGroup registers the group when missing and returns the stored row
// either way. Used by idempotent seeding.
func (s *Service) EnsureGroup(ctx context.Context, code, displayName string, accessType AccessType) (Group, error) {
	group, err := s.CreateGroup(ctx, code, displayName, accessType)
	if err == nil {
		return group, nil
	}
	if !errors.Is(err, ErrDuplicateGroup) {
		return Group{}, err
	}
	return s.repo.GetGroup(ctx, strings.TrimSpace(code))
}

// GetGroup fetches a group by its code.
func (s *Service) GetGroup(ctx context.Context, code string) (Group, error) {
	return s.repo.GetGroup(ctx, strings.TrimSpace(code))
}

// DeactivateGroup soft-deactivates a group, idempotently.
func (s *Service) DeactivateGroup(ctx context.Context, code string) error {
	if err := s.repo.DeactivateGroup(ctx, strings.TrimSpace(code)); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// SetGroupCapabilities replaces the capability set owned by the group.
func (s *Service) SetGroupCapabilities(ctx context.Context, groupID int64, capabilityIDs []int64) error {
	if err := s.repo.SetCapabilities(ctx, groupID, capabilityIDs); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// GroupCapabilities lists the capability codes owned by the group.
func (s *Service) GroupCapabilities(ctx context.Context, groupID int64) ([]string, error) {
	return s.repo.GroupCapabilityCodes(ctx, groupID)
}

// Assign adds the user to the group. When an active membership already exists
// the call fails with ErrDuplicateMembership: callers must revoke then
// reassign, so every change of expiry passes through an auditable
// re-authorization.
func (s *Service) Assign(ctx context.Context, userID, groupID, assignedBy int64, expiresAt *time.Time) (Membership, error) {
	now := s.now()
	if expiresAt != nil && !expiresAt.After(now) {
		return Membership{}, ErrInvalidExpiry
	}
	if _, err := s.repo.ActiveMembership(ctx, userID, groupID); err == nil {
		return Membership{}, ErrDuplicateMembership
	} else if !errors.Is(err, ErrMembershipNotFound) {
		return Membership{}, err
	}

	membership, err := s.repo.InsertMembership(ctx, Membership{
		UserID:     userID,
		GroupID:    groupID,
		AssignedBy: assignedBy,
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		return Membership{}, err
	}

	if err := s.record(ctx, audit.Entry{
		UserID:  userID,
		Action:  audit.ActionGroupAssigned,
		Outcome: audit.OutcomeSuccess,
		Context: map[string]any{
			"membership_id": strconv.FormatInt(membership.ID, 10),
			"group_id":      strconv.FormatInt(groupID, 10),
			"assigned_by":   strconv.FormatInt(assignedBy, 10),
		},
	}); err != nil {
		return Membership{}, err
	}
	s.invalidate(ctx)
	return membership, nil
}

// Revoke deactivates the membership and records a group_revoked audit entry.
func (s *Service) Revoke(ctx context.Context, membershipID, revokedBy int64) error {
	membership, err := s.repo.GetMembership(ctx, membershipID)
	if err != nil {
		return err
	}
	if err := s.repo.DeactivateMembership(ctx, membershipID); err != nil {
		return err
	}
	if err := s.record(ctx, audit.Entry{
		UserID:  membership.UserID,
		Action:  audit.ActionGroupRevoked,
		Outcome: audit.OutcomeSuccess,
		Context: map[string]any{
			"membership_id": strconv.FormatInt(membershipID, 10),
			"group_id":      strconv.FormatInt(membership.GroupID, 10),
			"revoked_by":    strconv.FormatInt(revokedBy, 10),
		},
	}); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// UserMemberships lists every membership row of a user, newest first.
func (s *Service) UserMemberships(ctx context.Context, userID int64) ([]Membership, error) {
	return s.repo.UserMemberships(ctx, userID)
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
