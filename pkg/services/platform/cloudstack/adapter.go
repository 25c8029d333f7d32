// Package cloudstack implements the capability contract for Apache CloudStack.
// Every request is signed with the account's API key pair; tenants are projects.
package cloudstack

import (
	"context"
	"fmt"
	"net/url"
	"sort"

	"github.com/de-tools/capacity-atlas/pkg/models/domain"
	"github.com/de-tools/capacity-atlas/pkg/services/platform"
	"github.com/de-tools/capacity-atlas/pkg/transport"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultTenantID identifies the synthetic tenant of a site without projects.
const DefaultTenantID = "default"

type Adapter struct {
	cfg    domain.SiteConfig
	opts   platform.Options
	client *client
	status platform.StatusTracker
}

var _ platform.Platform = (*Adapter)(nil)

// Factory matches platform.Factory.
func Factory(cfg domain.SiteConfig, opts platform.Options) (platform.Platform, error) {
	return New(cfg, opts)
}

func New(cfg domain.SiteConfig, opts platform.Options) (*Adapter, error) {
	if cfg.URL == "" || cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("cloudstack site %s: url, api key and secret key are required: %w",
			cfg.SiteID, platform.ErrMissingCredentials)
	}
	return &Adapter{
		cfg:    cfg,
		opts:   opts,
		client: &client{cfg: cfg, http: opts.Client()},
	}, nil
}

func (a *Adapter) PlatformType() domain.PlatformType {
	return domain.PlatformCloudStack
}

func (a *Adapter) SiteInfo() domain.SiteInfo {
	info := a.cfg.Info()
	info.Status = a.status.Get()
	return info
}

// Authenticate issues a cheap signed call; there is no session to establish.
func (a *Adapter) Authenticate(ctx context.Context) error {
	err := a.client.call(ctx, "listCapabilities", nil, nil)
	a.status.Observe(err)
	return err
}

func (a *Adapter) TestConnection(ctx context.Context) bool {
	return platform.ProbeConnection(ctx, a)
}

func (a *Adapter) GetSiteSummary(ctx context.Context) (*domain.SiteSummary, error) {
	var (
		capacity []capacityRecord
		projects []projectRecord
		pools    platform.Result[[]storagePoolRecord]
		ips      platform.Result[[]publicIPRecord]
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		capacity, err = a.capacity(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		projects, err = a.projects(gctx, nil)
		return err
	})
	g.Go(func() error {
		pools = platform.Fetch(ctx, a.storagePools)
		return nil
	})
	g.Go(func() error {
		ips = platform.Fetch(ctx, func(ctx context.Context) ([]publicIPRecord, error) {
			return a.publicIPs(ctx, "-1")
		})
		return nil
	})
	err := g.Wait()
	a.status.Observe(err)
	if err != nil {
		return nil, fmt.Errorf("cloudstack site data: %w", err)
	}

	summary := &domain.SiteSummary{
		Site:        a.SiteInfo(),
		CollectedAt: a.opts.Now().UTC(),
	}
	applyCapacity(summary, capacity)

	tiers, tiersOK := platform.Absorb(ctx, "cloudstack storage pools", pools, nil)
	summary.Storage.Tiers = poolTiers(tiers)
	summary.Partial = !tiersOK

	var tenants []domain.TenantAllocation
	if len(projects) == 0 {
		tenants = []domain.TenantAllocation{a.defaultTenant(ctx, summary)}
	} else {
		var partial bool
		tenants, partial = a.buildTenants(ctx, projects, ips)
		summary.Partial = summary.Partial || partial
	}

	summary.Tenants = tenants
	summary.TenantCount = len(tenants)
	for _, t := range tenants {
		summary.VMCount += t.VMCount
		summary.RunningVMCount += t.RunningVMCount
		summary.Partial = summary.Partial || t.Partial
	}
	return summary, nil
}

func (a *Adapter) GetTenantAllocations(ctx context.Context) ([]domain.TenantAllocation, error) {
	projects, err := a.projects(ctx, nil)
	a.status.Observe(err)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	if len(projects) == 0 {
		t, err := a.siteAsTenant(ctx)
		if err != nil {
			return nil, err
		}
		return []domain.TenantAllocation{t}, nil
	}

	ips := platform.Fetch(ctx, func(ctx context.Context) ([]publicIPRecord, error) {
		return a.publicIPs(ctx, "-1")
	})
	tenants, _ := a.buildTenants(ctx, projects, ips)
	return tenants, nil
}

func (a *Adapter) GetTenantAllocation(ctx context.Context, id string) (*domain.TenantAllocation, error) {
	projects, err := a.projects(ctx, url.Values{"id": {id}})
	if transport.HasStatus(err, statusParamError) {
		projects, err = nil, nil
	}
	a.status.Observe(err)
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", id, err)
	}

	for _, p := range projects {
		if p.ID != id {
			continue
		}
		ips := platform.Fetch(ctx, func(ctx context.Context) ([]publicIPRecord, error) {
			return a.publicIPs(ctx, id)
		})
		tenants, _ := a.buildTenants(ctx, []projectRecord{p}, ips)
		return &tenants[0], nil
	}

	if id != DefaultTenantID {
		return nil, nil
	}
	all, err := a.projects(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	if len(all) > 0 {
		return nil, nil
	}
	t, err := a.siteAsTenant(ctx)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (a *Adapter) capacity(ctx context.Context) ([]capacityRecord, error) {
	var resp struct {
		Capacity []capacityRecord `json:"capacity"`
	}
	if err := a.client.call(ctx, "listCapacity", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Capacity, nil
}

func (a *Adapter) projects(ctx context.Context, filter url.Values) ([]projectRecord, error) {
	p := clone(filter)
	p.Set("listall", "true")
	return listAll[projectRecord](ctx, a.client, "listProjects", "project", p)
}

func (a *Adapter) storagePools(ctx context.Context) ([]storagePoolRecord, error) {
	return listAll[storagePoolRecord](ctx, a.client, "listStoragePools", "storagepool", nil)
}

// publicIPs lists the addresses of one project; "-1" selects every project.
func (a *Adapter) publicIPs(ctx context.Context, projectID string) ([]publicIPRecord, error) {
	return listAll[publicIPRecord](ctx, a.client, "listPublicIpAddresses", "publicipaddress", url.Values{
		"listall":   {"true"},
		"projectid": {projectID},
	})
}

func applyCapacity(s *domain.SiteSummary, records []capacityRecord) {
	var cpu, mem, used, allocated, ip capacityRecord
	for _, r := range records {
		var dst *capacityRecord
		switch r.Type {
		case capacityCPU:
			dst = &cpu
		case capacityMemory:
			dst = &mem
		case capacityStorageUsed:
			dst = &used
		case capacityStorageAllocated:
			dst = &allocated
		case capacityPublicIP:
			dst = &ip
		default:
			continue
		}
		dst.Total += r.Total
		dst.Used += r.Used
		dst.Allocated += r.Allocated
	}

	s.CPU = domain.NewCPUMetrics(cpu.Total, allocatedOf(cpu), cpu.Used)
	s.Memory = domain.NewMemoryMetrics(
		bytesToMB(mem.Total), bytesToMB(allocatedOf(mem)), bytesToMB(mem.Used))

	s.Storage.Capacity = bytesToMB(used.Total)
	s.Storage.Used = bytesToMB(used.Used)
	s.Storage.Limit = bytesToMB(allocated.Total)
	if s.Storage.Limit == 0 {
		s.Storage.Limit = s.Storage.Capacity
	}
	s.Storage.Available = s.Storage.Capacity - s.Storage.Used

	s.Network = domain.NetworkMetrics{
		TotalIPs:     int(ip.Total),
		AllocatedIPs: int(ip.Used),
		UsedIPs:      int(ip.Used),
		FreeIPs:      int(ip.Total - ip.Used),
	}
}

// allocatedOf falls back to the used figure on releases that do not report
// capacityallocated; for CPU and memory the API counts allocation as use.
func allocatedOf(r capacityRecord) float64 {
	if r.Allocated > 0 {
		return r.Allocated
	}
	return r.Used
}

func poolTiers(pools []storagePoolRecord) []domain.StorageTier {
	byName := make(map[string]*domain.StorageTier)
	for _, p := range pools {
		name := p.tierName()
		t, ok := byName[name]
		if !ok {
			t = &domain.StorageTier{Name: name}
			byName[name] = t
		}
		t.Capacity += bytesToMB(p.SizeTotal)
		t.Limit += bytesToMB(p.SizeTotal)
		t.Used += bytesToMB(p.SizeUsed)
		t.Available += bytesToMB(p.SizeTotal - p.SizeUsed)
	}

	out := make([]domain.StorageTier, 0, len(byName))
	for _, t := range byName {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (a *Adapter) buildTenants(
	ctx context.Context,
	projects []projectRecord,
	ipResult platform.Result[[]publicIPRecord],
) ([]domain.TenantAllocation, bool) {
	ips, ipsOK := platform.Absorb(ctx, "cloudstack public ips", ipResult, nil)

	perProject := make(map[string]domain.NetworkMetrics)
	for _, ip := range ips {
		n := perProject[ip.ProjectID]
		n.TotalIPs++
		n.AllocatedIPs++
		if ip.State == "Allocated" {
			n.UsedIPs++
		} else {
			n.FreeIPs++
		}
		perProject[ip.ProjectID] = n
	}

	mhz := a.opts.CoreMHz(a.cfg)
	tenants := make([]domain.TenantAllocation, 0, len(projects))
	for _, p := range projects {
		cpuAlloc := p.CPUTotal * mhz
		cpuCap := cpuAlloc
		if v, ok := p.CPULimit.value(); ok {
			cpuCap = v * mhz
		}
		memCap := p.MemoryTotal
		if v, ok := p.MemoryLimit.value(); ok {
			memCap = v
		}
		storageUsed := gibToMB(p.PrimaryStorageTotal)
		storageLimit := storageUsed
		if v, ok := p.PrimaryStorageLimit.value(); ok {
			storageLimit = gibToMB(v)
		}

		fullName := p.DisplayText
		if fullName == "" {
			fullName = p.Name
		}
		tenants = append(tenants, domain.TenantAllocation{
			ID:             p.ID,
			Name:           p.Name,
			OrgName:        p.Name,
			OrgFullName:    fullName,
			SiteID:         a.cfg.SiteID,
			PlatformType:   domain.PlatformCloudStack,
			CPU:            domain.NewCPUMetrics(cpuCap, cpuAlloc, cpuAlloc),
			Memory:         domain.NewMemoryMetrics(memCap, p.MemoryTotal, p.MemoryTotal),
			Network:        perProject[p.ID],
			VMCount:        p.VMTotal,
			RunningVMCount: p.VMRunning,
			Partial:        !ipsOK,
			Storage: domain.StorageMetrics{
				Capacity:  storageLimit,
				Limit:     storageLimit,
				Used:      storageUsed,
				Available: storageLimit - storageUsed,
			},
		})
	}

	if !ipsOK {
		zerolog.Ctx(ctx).Warn().
			Str("site", a.cfg.SiteID).
			Int("tenants", len(tenants)).
			Msg("cloudstack tenant records are partial")
	}
	return tenants, !ipsOK
}

// siteAsTenant builds the synthetic tenant from the site totals.
func (a *Adapter) siteAsTenant(ctx context.Context) (domain.TenantAllocation, error) {
	capacity, err := a.capacity(ctx)
	if err != nil {
		return domain.TenantAllocation{}, fmt.Errorf("list capacity: %w", err)
	}
	s := &domain.SiteSummary{}
	applyCapacity(s, capacity)
	return a.defaultTenant(ctx, s), nil
}

func (a *Adapter) defaultTenant(ctx context.Context, s *domain.SiteSummary) domain.TenantAllocation {
	t := domain.TenantAllocation{
		ID:           DefaultTenantID,
		Name:         "Default",
		OrgName:      "Default",
		OrgFullName:  "Default",
		SiteID:       a.cfg.SiteID,
		PlatformType: domain.PlatformCloudStack,
		CPU:          s.CPU,
		Memory:       s.Memory,
		Storage:      s.Storage,
		Network:      s.Network,
	}

	total := platform.Fetch(ctx, func(ctx context.Context) (int, error) {
		return countOf(ctx, a.client, "listVirtualMachines", url.Values{"listall": {"true"}})
	})
	running := platform.Fetch(ctx, func(ctx context.Context) (int, error) {
		return countOf(ctx, a.client, "listVirtualMachines", url.Values{"listall": {"true"}, "state": {"Running"}})
	})
	var totalOK, runningOK bool
	t.VMCount, totalOK = platform.Absorb(ctx, "cloudstack vm count", total, 0)
	t.RunningVMCount, runningOK = platform.Absorb(ctx, "cloudstack running vm count", running, 0)
	t.Partial = !totalOK || !runningOK
	return t
}
