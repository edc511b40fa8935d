package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryCatalogRepo struct {
	capabilities map[string]Capability
	functions    map[string]Function
	links        map[int64][]FunctionCapability
	nextCapID    int64
	nextFnID     int64
}

func newMemoryCatalogRepo() *memoryCatalogRepo {
	return &memoryCatalogRepo{
		capabilities: make(map[string]Capability),
		functions:    make(map[string]Function),
		links:        make(map[int64][]FunctionCapability),
	}
}

func (r *memoryCatalogRepo) InsertCapability(ctx context.Context, cap Capability) (Capability, error) {
	if _, ok := r.capabilities[cap.Code]; ok {
		return Capability{}, ErrDuplicateCapability
	}
	r.nextCapID++
	cap.ID = r.nextCapID
	cap.Active = true
	r.capabilities[cap.Code] = cap
	return cap, nil
}

func (r *memoryCatalogRepo) GetCapability(ctx context.Context, code string) (Capability, error) {
	cap, ok := r.capabilities[code]
	if !ok {
		return Capability{}, ErrCapabilityNotFound
	}
	return cap, nil
}

func (r *memoryCatalogRepo) DeactivateCapability(ctx context.Context, code string) error {
	cap, ok := r.capabilities[code]
	if !ok {
		return nil
	}
	cap.Active = false
	r.capabilities[code] = cap
	return nil
}

func (r *memoryCatalogRepo) ListCapabilities(ctx context.Context) ([]Capability, error) {
	var out []Capability
	for _, cap := range r.capabilities {
		out = append(out, cap)
	}
	return out, nil
}

func (r *memoryCatalogRepo) InsertFunction(ctx context.Context, fn Function) (Function, error) {
	if _, ok := r.functions[fn.FullName]; ok {
		return Function{}, ErrDuplicateFunction
	}
	r.nextFnID++
	fn.ID = r.nextFnID
	fn.Active = true
	r.functions[fn.FullName] = fn
	return fn, nil
}

func (r *memoryCatalogRepo) GetFunction(ctx context.Context, fullName string) (Function, error) {
	fn, ok := r.functions[fullName]
	if !ok {
		return Function{}, ErrFunctionNotFound
	}
	return fn, nil
}

func (r *memoryCatalogRepo) DeactivateFunction(ctx context.Context, fullName string) error {
	fn, ok := r.functions[fullName]
	if !ok {
		return nil
	}
	fn.Active = false
	r.functions[fullName] = fn
	return nil
}

func (r *memoryCatalogRepo) UpsertLink(ctx context.Context, link FunctionCapability) error {
	existing := r.links[link.FunctionID]
	for i, l := range existing {
		if l.CapabilityID == link.CapabilityID {
			existing[i] = link
			return nil
		}
	}
	r.links[link.FunctionID] = append(existing, link)
	return nil
}

func (r *memoryCatalogRepo) FunctionCapabilities(ctx context.Context, functionID int64) ([]FunctionCapability, error) {
	return r.links[functionID], nil
}

type invalidatorSpy struct {
	bumps int
}

func (s *invalidatorSpy) Bump(ctx context.Context) error {
	s.bumps++
	return nil
}

func TestRegisterCapabilityRejectsDuplicates(t *testing.T) {
	svc := NewService(newMemoryCatalogRepo(), nil, nil)

	_, err := svc.RegisterCapability(context.Background(), "informes.exportar", SensitivityHigh, true)
	require.NoError(t, err)

	_, err = svc.RegisterCapability(context.Background(), "informes.exportar", SensitivityHigh, true)
	require.ErrorIs(t, err, ErrDuplicateCapability)
}

func TestRegisterCapabilityValidatesSensitivity(t *testing.T) {
	svc := NewService(newMemoryCatalogRepo(), nil, nil)

	_, err := svc.RegisterCapability(context.Background(), "informes.exportar", Sensitivity("extreme"), false)
	require.ErrorIs(t, err, ErrInvalidSensitivity)
}

func TestEnsureCapabilityIsIdempotent(t *testing.T) {
	svc := NewService(newMemoryCatalogRepo(), nil, nil)

	first, err := svc.EnsureCapability(context.Background(), "panel.metricas.ver", SensitivityLow, false)
	require.NoError(t, err)

	second, err := svc.EnsureCapability(context.Background(), "panel.metricas.ver", SensitivityLow, false)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

func TestDeactivateUnknownCapabilityIsNoOp(t *testing.T) {
	svc := NewService(newMemoryCatalogRepo(), nil, nil)
	require.NoError(t, svc.DeactivateCapability(context.Background(), "no.existe"))
}

func TestDeactivateCapabilityBumpsCache(t *testing.T) {
	spy := &invalidatorSpy{}
	svc := NewService(newMemoryCatalogRepo(), spy, nil)
	ctx := context.Background()

	_, err := svc.RegisterCapability(ctx, "informes.exportar", SensitivityHigh, true)
	require.NoError(t, err)
	require.Zero(t, spy.bumps)

	require.NoError(t, svc.DeactivateCapability(ctx, "informes.exportar"))
	require.Equal(t, 1, spy.bumps)
}

func TestDeactivateFunctionBumpsCache(t *testing.T) {
	spy := &invalidatorSpy{}
	svc := NewService(newMemoryCatalogRepo(), spy, nil)
	ctx := context.Background()

	_, err := svc.RegisterFunction(ctx, "informes.descarga", "informes", "reporting")
	require.NoError(t, err)

	require.NoError(t, svc.DeactivateFunction(ctx, "informes.descarga"))
	require.Equal(t, 1, spy.bumps)
}

func TestLinkCapabilityUpsertsFlags(t *testing.T) {
	repo := newMemoryCatalogRepo()
	svc := NewService(repo, nil, nil)

	_, err := svc.RegisterCapability(context.Background(), "informes.exportar", SensitivityHigh, true)
	require.NoError(t, err)
	_, err = svc.RegisterFunction(context.Background(), "informes.descarga", "informes", "reporting")
	require.NoError(t, err)

	require.NoError(t, svc.LinkCapability(context.Background(), "informes.descarga", "informes.exportar", true, true))
	require.NoError(t, svc.LinkCapability(context.Background(), "informes.descarga", "informes.exportar", false, false))

	links, err := svc.FunctionCapabilities(context.Background(), "informes.descarga")
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.False(t, links[0].Required)
	require.False(t, links[0].VisibleInUI)
}

func TestLinkCapabilityUnknownFunction(t *testing.T) {
	svc := NewService(newMemoryCatalogRepo(), nil, nil)

	err := svc.LinkCapability(context.Background(), "no.existe", "informes.exportar", true, true)
	require.ErrorIs(t, err, ErrFunctionNotFound)
}
