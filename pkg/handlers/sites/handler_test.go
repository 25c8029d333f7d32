package sites

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/de-tools/capacity-atlas/pkg/models/api"
	"github.com/de-tools/capacity-atlas/pkg/models/domain"
	"github.com/de-tools/capacity-atlas/pkg/models/store"
	"github.com/de-tools/capacity-atlas/pkg/services/platform"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPlatform struct {
	mock.Mock
	info domain.SiteInfo
}

func (m *mockPlatform) PlatformType() domain.PlatformType { return m.info.PlatformType }

func (m *mockPlatform) SiteInfo() domain.SiteInfo { return m.info }

func (m *mockPlatform) Authenticate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockPlatform) TestConnection(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *mockPlatform) GetSiteSummary(ctx context.Context) (*domain.SiteSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SiteSummary), args.Error(1)
}

func (m *mockPlatform) GetTenantAllocations(ctx context.Context) ([]domain.TenantAllocation, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.TenantAllocation), args.Error(1)
}

func (m *mockPlatform) GetTenantAllocation(ctx context.Context, id string) (*domain.TenantAllocation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TenantAllocation), args.Error(1)
}

type staticDirectory map[string]platform.Platform

func (d staticDirectory) All() []platform.Platform {
	res := make([]platform.Platform, 0, len(d))
	for _, p := range d {
		res = append(res, p)
	}
	return res
}

func (d staticDirectory) Get(key string) (platform.Platform, bool) {
	p, ok := d[key]
	return p, ok
}

func (d staticDirectory) BySiteID(id string) (platform.Platform, bool) {
	for _, p := range d {
		if p.SiteInfo().ID == id {
			return p, true
		}
	}
	return nil, false
}

type mockSnapshots struct {
	mock.Mock
}

func (m *mockSnapshots) LatestSiteSnapshot(
	ctx context.Context,
	platformType, siteID string,
) (*store.SiteSnapshot, error) {
	args := m.Called(ctx, platformType, siteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.SiteSnapshot), args.Error(1)
}

func (m *mockSnapshots) LatestTenantSnapshots(
	ctx context.Context,
	platformType, siteID string,
) ([]store.TenantSnapshot, error) {
	args := m.Called(ctx, platformType, siteID)
	return args.Get(0).([]store.TenantSnapshot), args.Error(1)
}

type fixture struct {
	site      *mockPlatform
	snapshots *mockSnapshots
	router    chi.Router
}

func setupFixture(t *testing.T) *fixture {
	f := &fixture{
		site: &mockPlatform{info: domain.SiteInfo{
			ID:           "fra1",
			Name:         "Frankfurt 1",
			PlatformType: domain.PlatformVCD,
			Status:       domain.SiteStatusOnline,
		}},
		snapshots: new(mockSnapshots),
	}
	h := NewHandler(staticDirectory{"vcd:fra1": f.site}, f.snapshots)

	r := chi.NewRouter()
	r.Get("/sites", h.ListSites)
	r.Get("/sites/{site}/summary", h.GetSummary)
	r.Get("/sites/{site}/tenants", h.ListTenants)
	r.Get("/sites/{site}/tenants/{tenant}", h.GetTenant)
	r.Get("/sites/{site}/test", h.TestConnection)
	r.Get("/sites/{site}/snapshots/latest", h.LatestSnapshot)
	f.router = r

	t.Cleanup(func() {
		f.site.AssertExpectations(t)
		f.snapshots.AssertExpectations(t)
	})
	return f
}

func (f *fixture) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestListSites(t *testing.T) {
	f := setupFixture(t)

	rec := f.get("/sites")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []api.SiteInfo{{
		ID:           "fra1",
		Key:          "vcd:fra1",
		Name:         "Frankfurt 1",
		PlatformType: "vcd",
		Status:       "online",
	}}, decode[[]api.SiteInfo](t, rec))
}

func TestGetSummary_ResolvesKeyOrSiteID(t *testing.T) {
	f := setupFixture(t)
	f.site.On("GetSiteSummary", mock.Anything).Return(&domain.SiteSummary{
		Site:        f.site.info,
		CPU:         domain.NewCPUMetrics(1000, 500, 100),
		Tenants:     []domain.TenantAllocation{{ID: "a", Name: "vdc-a"}},
		TenantCount: 1,
	}, nil).Twice()

	for _, path := range []string{"/sites/vcd:fra1/summary", "/sites/fra1/summary"} {
		rec := f.get(path)
		require.Equal(t, http.StatusOK, rec.Code, path)
		summary := decode[api.SiteSummary](t, rec)
		assert.Equal(t, 1000.0, summary.CPU.Capacity)
		assert.Equal(t, "MHz", summary.CPU.Units)
		require.Len(t, summary.Tenants, 1)
	}
}

func TestGetSummary_WithoutTenants(t *testing.T) {
	f := setupFixture(t)
	f.site.On("GetSiteSummary", mock.Anything).Return(&domain.SiteSummary{
		Site:    f.site.info,
		Tenants: []domain.TenantAllocation{{ID: "a"}},
	}, nil)

	rec := f.get("/sites/fra1/summary?tenants=false")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[api.SiteSummary](t, rec).Tenants)
}

func TestGetSummary_UpstreamErrors(t *testing.T) {
	f := setupFixture(t)
	f.site.On("GetSiteSummary", mock.Anything).Return(nil, errors.New("connection refused")).Once()
	f.site.On("GetSiteSummary", mock.Anything).Return(nil, &platform.AuthError{
		Platform: domain.PlatformVCD, Site: "fra1", Err: errors.New("401"),
	}).Once()

	assert.Equal(t, http.StatusBadGateway, f.get("/sites/fra1/summary").Code)
	assert.Equal(t, http.StatusFailedDependency, f.get("/sites/fra1/summary").Code)
}

func TestUnknownSite(t *testing.T) {
	f := setupFixture(t)

	rec := f.get("/sites/nowhere/tenants")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "site nowhere not found", decode[api.Error](t, rec).Error)
}

func TestGetTenant(t *testing.T) {
	f := setupFixture(t)
	f.site.On("GetTenantAllocation", mock.Anything, "a").
		Return(&domain.TenantAllocation{ID: "a", Name: "vdc-a", VMCount: 4}, nil)
	f.site.On("GetTenantAllocation", mock.Anything, "missing").Return(nil, nil)

	rec := f.get("/sites/fra1/tenants/a")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, decode[api.TenantAllocation](t, rec).VMCount)

	assert.Equal(t, http.StatusNotFound, f.get("/sites/fra1/tenants/missing").Code)
}

func TestTestConnection(t *testing.T) {
	f := setupFixture(t)
	f.site.On("TestConnection", mock.Anything).Return(false)

	rec := f.get("/sites/fra1/test")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[api.ConnectionTest](t, rec).Connected)
}

func TestLatestSnapshot(t *testing.T) {
	f := setupFixture(t)
	at := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	f.snapshots.On("LatestSiteSnapshot", mock.Anything, "vcd", "fra1").
		Return(&store.SiteSnapshot{ID: "s1", SiteID: "fra1", PlatformType: "vcd", PolledAt: at, VMCount: 7}, nil)
	f.snapshots.On("LatestTenantSnapshots", mock.Anything, "vcd", "fra1").
		Return([]store.TenantSnapshot{{
			ID: "t1", SiteID: "fra1", TenantID: "a", PolledAt: at, CPUUsed: 400,
			Tiers: []store.TierUsage{{Name: "HPS", Limit: 100, Used: 40}},
		}}, nil)

	rec := f.get("/sites/vcd:fra1/snapshots/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	latest := decode[api.LatestSnapshot](t, rec)
	assert.Equal(t, 7, latest.Site.VMCount)
	assert.True(t, latest.Site.PolledAt.Equal(at))
	require.Len(t, latest.Tenants, 1)
	assert.Equal(t, 400.0, latest.Tenants[0].CPUUsed)
	assert.Equal(t, 60.0, latest.Tenants[0].Tiers[0].Available)
}

func TestLatestSnapshot_WaitingForFirstPoll(t *testing.T) {
	f := setupFixture(t)
	f.snapshots.On("LatestSiteSnapshot", mock.Anything, "vcd", "fra1").Return(nil, nil)

	rec := f.get("/sites/fra1/snapshots/latest")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, waitingForFirstPoll, decode[api.Error](t, rec).Error)
}
