package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// Sentinel errors for the capability catalog.
var (
	ErrDuplicateCapability = errors.New("catalog: capability code already registered")
	ErrCapabilityNotFound  = errors.New("catalog: capability not found")
	ErrDuplicateFunction   = errors.New("catalog: function already registered")
	ErrFunctionNotFound    = errors.New("catalog: function not found")
	ErrInvalidSensitivity  = errors.New("catalog: invalid sensitivity level")
)

// RepositoryPort defines data access methods for the catalog.
type RepositoryPort interface {
	InsertCapability(ctx context.Context, cap Capability) (Capability, error)
	GetCapability(ctx context.Context, code string) (Capability, error)
	DeactivateCapability(ctx context.Context, code string) error
	ListCapabilities(ctx context.Context) ([]Capability, error)
	InsertFunction(ctx context.Context, fn Function) (Function, error)
	GetFunction(ctx context.Context, fullName string) (Function, error)
	DeactivateFunction(ctx context.Context, fullName string) error
	UpsertLink(ctx context.Context, link FunctionCapability) error
	FunctionCapabilities(ctx context.Context, functionID int64) ([]FunctionCapability, error)
}

// Invalidator drops cached effective capability sets after mutations.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service is the source of truth for which actions exist and how sensitive
// they are.
type Service struct {
	repo   RepositoryPort
	cache  Invalidator
	logger *slog.Logger
}

// NewService builds the catalog service.
func NewService(repo RepositoryPort, cache Invalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

// RegisterCapability creates a new capability. The code match is
// case-sensitive and exact; re-registering an existing code fails with
// ErrDuplicateCapability.
func (s *Service) RegisterCapability(ctx context.Context, code string, sensitivity Sensitivity, requiresAudit bool) (Capability, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Capability{}, errors.New("catalog: capability code required")
	}
	if !sensitivity.Valid() {
		return Capability{}, ErrInvalidSensitivity
	}
	return s.repo.InsertCapability(ctx, Capability{
		Code:          code,
		Sensitivity:   sensitivity,
		RequiresAudit: requiresAudit,
	})
}

// EnsureCapability registers the capability when missing and returns the
// stored row either way. Used by idempotent seeding.
func (s *Service) EnsureCapability(ctx context.Context, code string, sensitivity Sensitivity, requiresAudit bool) (Capability, error) {
	cap, err := s.RegisterCapability(ctx, code, sensitivity, requiresAudit)
	if err == nil {
		return cap, nil
	}
	if !errors.Is(err, ErrDuplicateCapability) {
		return Capability{}, err
	}
	return s.repo.GetCapability(ctx, strings.TrimSpace(code))
}

// DeactivateCapability soft-deactivates a capability. Idempotent: deactivating
// twice, or deactivating an unknown code, is a no-op. Cached effective sets
// may still carry the capability, so the cache version is bumped.
func (s *Service) DeactivateCapability(ctx context.Context, code string) error {
	if err := s.repo.DeactivateCapability(ctx, strings.TrimSpace(code)); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// GetCapability fetches a capability by its code.
func (s *Service) GetCapability(ctx context.Context, code string) (Capability, error) {
	return s.repo.GetCapability(ctx, strings.TrimSpace(code))
}

// ListCapabilities returns the whole catalog ordered by code.
func (s *Service) ListCapabilities(ctx context.Context) ([]Capability, error) {
	return s.repo.ListCapabilities(ctx)
}

// RegisterFunction creates a named system resource.
func (s *Service) RegisterFunction(ctx context.Context, fullName, domain, category string) (Function, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return Function{}, errors.New("catalog: function full name required")
	}
	return s.repo.InsertFunction(ctx, Function{
		FullName: fullName,
		Domain:   strings.TrimSpace(domain),
		Category: strings.TrimSpace(category),
	})
}

// EnsureFunction registers the function when missing and returns the stored
// row either way.
func (s *Service) EnsureFunction(ctx context.Context, fullName, domain, category string) (Function, error) {
	fn, err := s.RegisterFunction(ctx, fullName, domain, category)
	if err == nil {
		return fn, nil
	}
	if !errors.Is(err, ErrDuplicateFunction) {
		return Function{}, err
	}
	return s.repo.GetFunction(ctx, strings.TrimSpace(fullName))
}

// DeactivateFunction soft-deactivates a function, idempotently.
func (s *Service) DeactivateFunction(ctx context.Context, fullName string) error {
	if err := s.repo.DeactivateFunction(ctx, strings.TrimSpace(fullName)); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// LinkCapability attaches a capability to a function. Re-linking the same pair
// updates the flags instead of duplicating the row.
func (s *Service) LinkCapability(ctx context.Context, functionFullName, capabilityCode string, required, visibleInUI bool) error {
	fn, err := s.repo.GetFunction(ctx, strings.TrimSpace(functionFullName))
	if err != nil {
		return err
	}
	cap, err := s.repo.GetCapability(ctx, strings.TrimSpace(capabilityCode))
	if err != nil {
		return err
	}
	return s.repo.UpsertLink(ctx, FunctionCapability{
		FunctionID:   fn.ID,
		CapabilityID: cap.ID,
		Required:     required,
		VisibleInUI:  visibleInUI,
	})
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil && s.logger != nil {
		s.logger.Warn("bump resolver cache", slog.Any("error", err))
	}
}

// FunctionCapabilities lists the capabilities linked to a function.
func (s *Service) FunctionCapabilities(ctx context.Context, fullName string) ([]FunctionCapability, error) {
	fn, err := s.repo.GetFunction(ctx, strings.TrimSpace(fullName))
	if err != nil {
		return nil, err
	}
	return s.repo.FunctionCapabilities(ctx, fn.ID)
}
