package vcd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/de-tools/capacity-atlas/pkg/models/domain"
	"github.com/de-tools/capacity-atlas/pkg/services/platform"
	"github.com/de-tools/capacity-atlas/pkg/transport"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	vdcA = "aaaaaaaa-0000-0000-0000-000000000001"
	vdcB = "bbbbbbbb-0000-0000-0000-000000000002"
)

type fakeVCD struct {
	mu         sync.Mutex
	acceptUser string
	legacyOnly bool
	failEdges  bool
	logins     int
	token      string
}

func (f *fakeVCD) issue(w http.ResponseWriter, header string) {
	f.logins++
	f.token = fmt.Sprintf("token-%d", f.logins)
	w.Header().Set(header, f.token)
	w.WriteHeader(http.StatusOK)
}

func (f *fakeVCD) revoke() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = "revoked"
}

func (f *fakeVCD) loginCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins
}

func (f *fakeVCD) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Path {
	case modernSessionPath:
		user, pass, _ := r.BasicAuth()
		if f.legacyOnly {
			http.NotFound(w, r)
			return
		}
		if user != f.acceptUser || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.issue(w, modernTokenHeader)
		return
	case legacySessionPath:
		user, pass, _ := r.BasicAuth()
		if !f.legacyOnly || user != "admin@System" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.issue(w, legacyTokenHeader)
		return
	}

	authorized := r.Header.Get("Authorization") == "Bearer "+f.token ||
		r.Header.Get(legacyTokenHeader) == f.token
	if f.token == "" || !authorized {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch r.URL.Path {
	case "/api/query":
		writeQuery(w, r.URL.Query().Get("type"))
	case "/cloudapi/1.0.0/edgeGateways":
		if f.failEdges {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"resultTotal": 1,
			"pageCount":   1,
			"page":        1,
			"values": []any{map[string]any{
				"id":     "urn:vcloud:gateway:1",
				"name":   "edge-a",
				"orgVdc": map[string]any{"id": "urn:vcloud:vdc:" + vdcA, "name": "vdc-a"},
				"edgeGatewayUplinks": []any{map[string]any{
					"uplinkName": "internet",
					"subnets": map[string]any{"values": []any{
						map[string]any{"totalIpCount": 8, "usedIpCount": 3},
					}},
				}},
			}},
		})
	default:
		http.NotFound(w, r)
	}
}

func writeQuery(w http.ResponseWriter, typ string) {
	var records []any
	switch typ {
	case "adminOrgVdc":
		records = []any{
			map[string]any{
				"href": "https://vcd/api/admin/vdc/" + vdcA, "name": "vdc-a", "orgName": "acme",
				"cpuAllocationMhz": 10000, "cpuLimitMhz": 20000, "cpuUsedMhz": 4000,
				"memoryAllocationMB": 32768, "memoryLimitMB": 65536, "memoryUsedMB": 16384,
				"storageLimitMB": 500000, "storageUsedMB": 120000,
				"numberOfVMs": 5, "numberOfRunningVMs": 4,
			},
			map[string]any{
				"href": "https://vcd/api/admin/vdc/" + vdcB, "name": "vdc-b", "orgName": "globex",
				"cpuAllocationMhz": 5000, "cpuLimitMhz": 0, "cpuUsedMhz": 1000,
				"memoryAllocationMB": 8192, "memoryLimitMB": 0, "memoryUsedMB": 2048,
				"storageLimitMB": 100000, "storageUsedMB": 10000,
				"numberOfVMs": 2, "numberOfRunningVMs": 1,
			},
		}
	case "providerVdc":
		records = []any{map[string]any{
			"name": "pvdc-1", "cpuLimitMhz": 100000, "cpuAllocationMhz": 15000, "cpuUsedMhz": 5000,
			"memoryLimitMB": 262144, "memoryAllocationMB": 40960, "memoryUsedMB": 18432,
			"storageLimitMB": 2000000, "storageUsedMB": 130000,
		}}
	case "adminOrgVdcStorageProfile":
		records = []any{
			map[string]any{"name": "HPS", "vdc": "https://vcd/api/vdc/" + vdcA, "storageLimitMB": 300000, "storageUsedMB": 100000},
			map[string]any{"name": "SPS", "vdc": "https://vcd/api/vdc/" + vdcA, "storageLimitMB": 200000, "storageUsedMB": 20000},
			map[string]any{"name": "HPS", "vdc": "https://vcd/api/vdc/" + vdcB, "storageLimitMB": 100000, "storageUsedMB": 10000},
		}
	case "organization":
		records = []any{
			map[string]any{"name": "acme", "displayName": "Acme Corporation"},
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"total": len(records), "page": 1, "pageSize": pageSize, "record": records,
	})
}

type fixture struct {
	fake    *fakeVCD
	server  *httptest.Server
	adapter *Adapter
	now     time.Time
}

func setupFixture(t *testing.T, fake *fakeVCD) *fixture {
	f := &fixture{fake: fake, now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	f.server = httptest.NewServer(fake)
	t.Cleanup(f.server.Close)

	adapter, err := New(domain.SiteConfig{
		SiteID:       "fra1",
		PlatformType: domain.PlatformVCD,
		URL:          f.server.URL,
		Username:     "admin",
		Password:     "secret",
	}, platform.Options{
		HTTPClient: transport.NewClient(zerolog.Nop(), transport.Settings{Timeout: 5 * time.Second}),
		Clock:      func() time.Time { return f.now },
	})
	require.NoError(t, err)
	f.adapter = adapter
	return f
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(domain.SiteConfig{SiteID: "x", URL: "https://vcd"}, platform.Options{})
	assert.ErrorIs(t, err, platform.ErrMissingCredentials)
}

func TestAuthenticate_FallsBackToQualifiedUsername(t *testing.T) {
	f := setupFixture(t, &fakeVCD{acceptUser: "admin@System"})

	require.NoError(t, f.adapter.Authenticate(context.Background()))
	assert.Equal(t, 1, f.fake.loginCount())
	assert.Equal(t, domain.SiteStatusOnline, f.adapter.SiteInfo().Status)

	// Cached token is reused.
	require.NoError(t, f.adapter.Authenticate(context.Background()))
	assert.Equal(t, 1, f.fake.loginCount())
}

func TestAuthenticate_FallsBackToLegacyEndpoint(t *testing.T) {
	f := setupFixture(t, &fakeVCD{legacyOnly: true})

	tenants, err := f.adapter.GetTenantAllocations(context.Background())
	require.NoError(t, err)
	assert.Len(t, tenants, 2)
}

func TestAuthenticate_SurfacesAuthErrorAfterChain(t *testing.T) {
	f := setupFixture(t, &fakeVCD{acceptUser: "nobody"})

	err := f.adapter.Authenticate(context.Background())
	require.Error(t, err)
	assert.True(t, platform.IsAuthError(err))
	assert.Equal(t, domain.SiteStatusAuthFailed, f.adapter.SiteInfo().Status)
	assert.False(t, f.adapter.TestConnection(context.Background()))
}

func TestAuthenticate_RenewsExpiredToken(t *testing.T) {
	f := setupFixture(t, &fakeVCD{acceptUser: "admin"})

	require.NoError(t, f.adapter.Authenticate(context.Background()))
	f.now = f.now.Add(tokenValidity + time.Second)
	require.NoError(t, f.adapter.Authenticate(context.Background()))
	assert.Equal(t, 2, f.fake.loginCount())
}

func TestGet_ReauthenticatesOnRejectedToken(t *testing.T) {
	f := setupFixture(t, &fakeVCD{acceptUser: "admin"})
	require.NoError(t, f.adapter.Authenticate(context.Background()))

	f.fake.revoke()
	tenants, err := f.adapter.GetTenantAllocations(context.Background())
	require.NoError(t, err)
	assert.Len(t, tenants, 2)
	assert.Equal(t, 2, f.fake.loginCount())
}

func TestGetSiteSummary_MapsProviderCapacityAndTenants(t *testing.T) {
	f := setupFixture(t, &fakeVCD{acceptUser: "admin"})

	summary, err := f.adapter.GetSiteSummary(context.Background())
	require.NoError(t, err)

	assert.False(t, summary.Partial)
	assert.Equal(t, "vcd:fra1", summary.Site.CompositeID())
	assert.Equal(t, 100000.0, summary.CPU.Capacity)
	assert.Equal(t, 15000.0, summary.CPU.Allocated)
	assert.Equal(t, domain.UnitsMHz, summary.CPU.Units)
	assert.Equal(t, 262144.0, summary.Memory.Capacity)
	assert.Equal(t, 2, summary.TenantCount)
	assert.Equal(t, 7, summary.VMCount)
	assert.Equal(t, 5, summary.RunningVMCount)
	assert.Equal(t, 8, summary.Network.TotalIPs)
	assert.Equal(t, 3, summary.Network.UsedIPs)
	require.Len(t, summary.Storage.Tiers, 2)
	assert.Equal(t, "HPS", summary.Storage.Tiers[0].Name)
	assert.Equal(t, 110000.0, summary.Storage.Tiers[0].Used)

	a := summary.Tenants[0]
	assert.Equal(t, vdcA, a.ID)
	assert.Equal(t, "Acme Corporation", a.OrgFullName)
	assert.Len(t, a.Storage.Tiers, 2)

	b := summary.Tenants[1]
	assert.Equal(t, 5000.0, b.CPU.Capacity, "unlimited vdc falls back to allocation")
	assert.Equal(t, "globex", b.OrgFullName)
	assert.Equal(t, 0, b.Network.TotalIPs)
}

func TestGetSiteSummary_DegradesWhenEdgeGatewaysFail(t *testing.T) {
	f := setupFixture(t, &fakeVCD{acceptUser: "admin", failEdges: true})

	summary, err := f.adapter.GetSiteSummary(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.Partial)
	assert.Equal(t, 0, summary.Network.TotalIPs)
	require.Len(t, summary.Tenants, 2)
	assert.True(t, summary.Tenants[0].Partial)
	assert.Equal(t, 120000.0, summary.Tenants[0].Storage.Used)
}

func TestGetTenantAllocation(t *testing.T) {
	f := setupFixture(t, &fakeVCD{acceptUser: "admin"})

	tenant, err := f.adapter.GetTenantAllocation(context.Background(), vdcA)
	require.NoError(t, err)
	require.NotNil(t, tenant)
	assert.Equal(t, "vdc-a", tenant.Name)
	assert.Equal(t, 8, tenant.Network.AllocatedIPs)

	missing, err := f.adapter.GetTenantAllocation(context.Background(), "does-not-exist")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}
