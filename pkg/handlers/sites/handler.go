package sites

import (
	"context"
	"fmt"
	"net/http"

	"github.com/de-tools/capacity-atlas/pkg/adapters"
	"github.com/de-tools/capacity-atlas/pkg/handlers"
	"github.com/de-tools/capacity-atlas/pkg/models/api"
	"github.com/de-tools/capacity-atlas/pkg/models/store"
	"github.com/de-tools/capacity-atlas/pkg/services/platform"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const waitingForFirstPoll = "no snapshot yet, waiting for first poll"

// Directory is the read side of the adapter registry.
type Directory interface {
	All() []platform.Platform
	Get(key string) (platform.Platform, bool)
	BySiteID(id string) (platform.Platform, bool)
}

type SnapshotReader interface {
	LatestSiteSnapshot(ctx context.Context, platformType, siteID string) (*store.SiteSnapshot, error)
	LatestTenantSnapshots(ctx context.Context, platformType, siteID string) ([]store.TenantSnapshot, error)
}

type Handler struct {
	sites     Directory
	snapshots SnapshotReader
}

func NewHandler(sites Directory, snapshots SnapshotReader) *Handler {
	return &Handler{
		sites:     sites,
		snapshots: snapshots,
	}
}

// site resolves {site} as a composite key ("vcd:fra1") or a bare site id.
func (h *Handler) site(w http.ResponseWriter, r *http.Request) (platform.Platform, bool) {
	param := chi.URLParam(r, "site")
	if p, ok := h.sites.Get(param); ok {
		return p, true
	}
	if p, ok := h.sites.BySiteID(param); ok {
		return p, true
	}
	handlers.WriteError(w, r, http.StatusNotFound, fmt.Sprintf("site %s not found", param))
	return nil, false
}

func (h *Handler) upstreamError(w http.ResponseWriter, r *http.Request, p platform.Platform, err error) {
	key := p.SiteInfo().CompositeID()
	zerolog.Ctx(r.Context()).Error().
		Err(err).
		Str("site", key).
		Msg("platform call failed")

	status := http.StatusBadGateway
	if platform.IsAuthError(err) {
		status = http.StatusFailedDependency
	}
	handlers.WriteError(w, r, status, fmt.Sprintf("%s: %v", key, err))
}

func (h *Handler) ListSites(w http.ResponseWriter, r *http.Request) {
	all := h.sites.All()
	response := make([]api.SiteInfo, 0, len(all))
	for _, p := range all {
		response = append(response, adapters.MapSiteInfoDomainToApi(p.SiteInfo()))
	}
	handlers.WriteJSON(w, r, http.StatusOK, response)
}

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	p, ok := h.site(w, r)
	if !ok {
		return
	}

	summary, err := p.GetSiteSummary(r.Context())
	if err != nil {
		h.upstreamError(w, r, p, err)
		return
	}
	withTenants := r.URL.Query().Get("tenants") != "false"
	handlers.WriteJSON(w, r, http.StatusOK, adapters.MapSiteSummaryDomainToApi(*summary, withTenants))
}

func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	p, ok := h.site(w, r)
	if !ok {
		return
	}

	tenants, err := p.GetTenantAllocations(r.Context())
	if err != nil {
		h.upstreamError(w, r, p, err)
		return
	}
	handlers.WriteJSON(w, r, http.StatusOK, adapters.MapTenantAllocationsDomainToApi(tenants))
}

func (h *Handler) GetTenant(w http.ResponseWriter, r *http.Request) {
	p, ok := h.site(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "tenant")
	tenant, err := p.GetTenantAllocation(r.Context(), id)
	if err != nil {
		h.upstreamError(w, r, p, err)
		return
	}
	if tenant == nil {
		handlers.WriteError(w, r, http.StatusNotFound, fmt.Sprintf("tenant %s not found", id))
		return
	}
	handlers.WriteJSON(w, r, http.StatusOK, adapters.MapTenantAllocationDomainToApi(*tenant))
}

func (h *Handler) TestConnection(w http.ResponseWriter, r *http.Request) {
	p, ok := h.site(w, r)
	if !ok {
		return
	}

	connected := p.TestConnection(r.Context())
	handlers.WriteJSON(w, r, http.StatusOK, api.ConnectionTest{
		Site:      adapters.MapSiteInfoDomainToApi(p.SiteInfo()),
		Connected: connected,
	})
}

// LatestSnapshot serves the last stored poll of a site without calling the
// vendor, so it keeps answering while the site is down.
func (h *Handler) LatestSnapshot(w http.ResponseWriter, r *http.Request) {
	p, ok := h.site(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	siteID := p.SiteInfo().ID
	pt := string(p.PlatformType())

	site, err := h.snapshots.LatestSiteSnapshot(ctx, pt, siteID)
	if err != nil {
		logger.Error().Err(err).Str("site", siteID).Msg("failed to read latest site snapshot")
		handlers.WriteError(w, r, http.StatusInternalServerError, "failed to read snapshots")
		return
	}
	if site == nil {
		handlers.WriteError(w, r, http.StatusNotFound, waitingForFirstPoll)
		return
	}

	tenants, err := h.snapshots.LatestTenantSnapshots(ctx, pt, siteID)
	if err != nil {
		logger.Error().Err(err).Str("site", siteID).Msg("failed to read latest tenant snapshots")
		handlers.WriteError(w, r, http.StatusInternalServerError, "failed to read snapshots")
		return
	}

	response := api.LatestSnapshot{
		Site:    adapters.MapSiteSnapshotDomainToApi(adapters.MapStoreSiteSnapshotToDomain(*site)),
		Tenants: make([]api.TenantSnapshot, 0, len(tenants)),
	}
	for _, t := range adapters.MapStoreTenantSnapshotsToDomain(tenants) {
		response.Tenants = append(response.Tenants, adapters.MapTenantSnapshotDomainToApi(t))
	}
	handlers.WriteJSON(w, r, http.StatusOK, response)
}
