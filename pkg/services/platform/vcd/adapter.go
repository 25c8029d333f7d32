// Package vcd implements the capability contract for VMware Cloud Director.
// Tenants are organization VDCs.
package vcd

import (
	"context"
	"fmt"
	"sort"

	"github.com/de-tools/capacity-atlas/pkg/models/domain"
	"github.com/de-tools/capacity-atlas/pkg/services/platform"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

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
	if cfg.URL == "" || cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("vcd site %s: url, username and password are required: %w",
			cfg.SiteID, platform.ErrMissingCredentials)
	}
	return &Adapter{
		cfg:    cfg,
		opts:   opts,
		client: newClient(cfg, opts),
	}, nil
}

func (a *Adapter) PlatformType() domain.PlatformType {
	return domain.PlatformVCD
}

func (a *Adapter) SiteInfo() domain.SiteInfo {
	info := a.cfg.Info()
	info.Status = a.status.Get()
	return info
}

func (a *Adapter) Authenticate(ctx context.Context) error {
	_, err := a.client.authenticate(ctx, false)
	a.status.Observe(err)
	return err
}

func (a *Adapter) TestConnection(ctx context.Context) bool {
	return platform.ProbeConnection(ctx, a)
}

func (a *Adapter) GetSiteSummary(ctx context.Context) (*domain.SiteSummary, error) {
	vdcs, err := a.orgVdcs(ctx)
	a.status.Observe(err)
	if err != nil {
		return nil, fmt.Errorf("list org vdcs: %w", err)
	}

	e := a.enrich(ctx, true)
	tenants, partial := a.buildTenants(ctx, vdcs, e)

	summary := &domain.SiteSummary{
		Site:        a.SiteInfo(),
		Tenants:     tenants,
		TenantCount: len(tenants),
		CollectedAt: a.opts.Now().UTC(),
		Partial:     partial,
	}
	for _, t := range tenants {
		summary.VMCount += t.VMCount
		summary.RunningVMCount += t.RunningVMCount
		summary.Network.Add(t.Network)
	}

	providers, ok := platform.Absorb(ctx, "vcd provider vdcs", e.providers, nil)
	if ok && len(providers) > 0 {
		var cpuCap, cpuAlloc, cpuUsed, memCap, memAlloc, memUsed float64
		for _, p := range providers {
			cpuCap += p.CPULimitMhz
			cpuAlloc += p.CPUAllocationMhz
			cpuUsed += p.CPUUsedMhz
			memCap += p.MemoryLimitMB
			memAlloc += p.MemoryAllocationMB
			memUsed += p.MemoryUsedMB
			summary.Storage.Capacity += p.StorageLimitMB
			summary.Storage.Used += p.StorageUsedMB
		}
		summary.CPU = domain.NewCPUMetrics(cpuCap, cpuAlloc, cpuUsed)
		summary.Memory = domain.NewMemoryMetrics(memCap, memAlloc, memUsed)
		summary.Storage.Limit = summary.Storage.Capacity
	} else {
		// Without provider VDC data the site capacity is derived from the
		// tenant limits.
		summary.Partial = summary.Partial || !ok
		var cpuCap, cpuAlloc, cpuUsed, memCap, memAlloc, memUsed float64
		for _, t := range tenants {
			cpuCap += t.CPU.Capacity
			cpuAlloc += t.CPU.Allocated
			cpuUsed += t.CPU.Used
			memCap += t.Memory.Capacity
			memAlloc += t.Memory.Allocated
			memUsed += t.Memory.Used
			summary.Storage.Capacity += t.Storage.Limit
			summary.Storage.Used += t.Storage.Used
		}
		summary.CPU = domain.NewCPUMetrics(cpuCap, cpuAlloc, cpuUsed)
		summary.Memory = domain.NewMemoryMetrics(memCap, memAlloc, memUsed)
		summary.Storage.Limit = summary.Storage.Capacity
	}
	summary.Storage.Tiers = siteTiers(tenants)
	summary.Storage.Available = summary.Storage.Capacity - summary.Storage.Used

	return summary, nil
}

func (a *Adapter) GetTenantAllocations(ctx context.Context) ([]domain.TenantAllocation, error) {
	vdcs, err := a.orgVdcs(ctx)
	a.status.Observe(err)
	if err != nil {
		return nil, fmt.Errorf("list org vdcs: %w", err)
	}
	tenants, _ := a.buildTenants(ctx, vdcs, a.enrich(ctx, false))
	return tenants, nil
}

func (a *Adapter) GetTenantAllocation(ctx context.Context, id string) (*domain.TenantAllocation, error) {
	vdcs, err := a.orgVdcs(ctx)
	a.status.Observe(err)
	if err != nil {
		return nil, fmt.Errorf("list org vdcs: %w", err)
	}

	for _, v := range vdcs {
		if v.id() != id {
			continue
		}
		tenants, _ := a.buildTenants(ctx, []orgVdcRecord{v}, a.enrich(ctx, false))
		return &tenants[0], nil
	}
	return nil, nil
}

type enrichment struct {
	providers platform.Result[[]providerVdcRecord]
	profiles  platform.Result[[]storageProfileRecord]
	orgs      platform.Result[[]organizationRecord]
	edges     platform.Result[[]edgeGateway]
}

// enrich runs the secondary sub-fetches in parallel. Each one records its own
// result; none of them can fail the caller.
func (a *Adapter) enrich(ctx context.Context, withProviders bool) enrichment {
	var e enrichment
	var g errgroup.Group

	if withProviders {
		g.Go(func() error {
			e.providers = platform.Fetch(ctx, func(ctx context.Context) ([]providerVdcRecord, error) {
				return queryAll[providerVdcRecord](ctx, a.client, "providerVdc")
			})
			return nil
		})
	}
	g.Go(func() error {
		e.profiles = platform.Fetch(ctx, func(ctx context.Context) ([]storageProfileRecord, error) {
			return queryAll[storageProfileRecord](ctx, a.client, "adminOrgVdcStorageProfile")
		})
		return nil
	})
	g.Go(func() error {
		e.orgs = platform.Fetch(ctx, func(ctx context.Context) ([]organizationRecord, error) {
			return queryAll[organizationRecord](ctx, a.client, "organization")
		})
		return nil
	})
	g.Go(func() error {
		e.edges = platform.Fetch(ctx, func(ctx context.Context) ([]edgeGateway, error) {
			return cloudAPIAll[edgeGateway](ctx, a.client, "/cloudapi/1.0.0/edgeGateways")
		})
		return nil
	})

	_ = g.Wait()
	return e
}

func (a *Adapter) orgVdcs(ctx context.Context) ([]orgVdcRecord, error) {
	return queryAll[orgVdcRecord](ctx, a.client, "adminOrgVdc")
}

func (a *Adapter) buildTenants(
	ctx context.Context,
	vdcs []orgVdcRecord,
	e enrichment,
) ([]domain.TenantAllocation, bool) {
	profiles, profilesOK := platform.Absorb(ctx, "vcd storage profiles", e.profiles, nil)
	orgs, orgsOK := platform.Absorb(ctx, "vcd organizations", e.orgs, nil)
	edges, edgesOK := platform.Absorb(ctx, "vcd edge gateways", e.edges, nil)
	partial := !profilesOK || !orgsOK || !edgesOK

	tiers := make(map[string][]domain.StorageTier)
	for _, p := range profiles {
		vdcID := hrefID(p.Vdc)
		tiers[vdcID] = append(tiers[vdcID], domain.StorageTier{
			Name:      p.Name,
			Capacity:  p.StorageLimitMB,
			Limit:     p.StorageLimitMB,
			Used:      p.StorageUsedMB,
			Available: p.StorageLimitMB - p.StorageUsedMB,
		})
	}

	fullNames := make(map[string]string, len(orgs))
	for _, o := range orgs {
		fullNames[o.Name] = o.DisplayName
	}

	ips := make(map[string]domain.NetworkMetrics)
	for _, gw := range edges {
		vdcID := urnID(gw.OrgVdc.ID)
		n := ips[vdcID]
		for _, up := range gw.Uplinks {
			for _, s := range up.Subnets.Values {
				n.TotalIPs += s.TotalIPCount
				n.AllocatedIPs += s.TotalIPCount
				n.UsedIPs += s.UsedIPCount
				n.FreeIPs += s.TotalIPCount - s.UsedIPCount
			}
		}
		ips[vdcID] = n
	}

	tenants := make([]domain.TenantAllocation, 0, len(vdcs))
	for _, v := range vdcs {
		id := v.id()
		cpuCap := v.CPULimitMhz
		if cpuCap <= 0 {
			cpuCap = v.CPUAllocationMhz
		}
		memCap := v.MemoryLimitMB
		if memCap <= 0 {
			memCap = v.MemoryAllocationMB
		}
		t := domain.TenantAllocation{
			ID:             id,
			Name:           v.Name,
			OrgName:        v.OrgName,
			OrgFullName:    fullNames[v.OrgName],
			SiteID:         a.cfg.SiteID,
			PlatformType:   domain.PlatformVCD,
			CPU:            domain.NewCPUMetrics(cpuCap, v.CPUAllocationMhz, v.CPUUsedMhz),
			Memory:         domain.NewMemoryMetrics(memCap, v.MemoryAllocationMB, v.MemoryUsedMB),
			Network:        ips[id],
			VMCount:        v.NumberOfVMs,
			RunningVMCount: v.NumberOfRunningVMs,
			Partial:        partial,
			Storage: domain.StorageMetrics{
				Capacity:  v.StorageLimitMB,
				Limit:     v.StorageLimitMB,
				Used:      v.StorageUsedMB,
				Available: v.StorageLimitMB - v.StorageUsedMB,
				Tiers:     tiers[id],
			},
		}
		if t.OrgFullName == "" {
			t.OrgFullName = v.OrgName
		}
		tenants = append(tenants, t)
	}

	if partial {
		zerolog.Ctx(ctx).Warn().
			Str("site", a.cfg.SiteID).
			Int("tenants", len(tenants)).
			Msg("vcd tenant records are partial")
	}
	return tenants, partial
}

// siteTiers merges the tenant tiers by name.
func siteTiers(tenants []domain.TenantAllocation) []domain.StorageTier {
	byName := make(map[string]*domain.StorageTier)
	for _, t := range tenants {
		for _, tier := range t.Storage.Tiers {
			agg, ok := byName[tier.Name]
			if !ok {
				agg = &domain.StorageTier{Name: tier.Name}
				byName[tier.Name] = agg
			}
			agg.Capacity += tier.Capacity
			agg.Limit += tier.Limit
			agg.Used += tier.Used
			agg.Available += tier.Available
		}
	}

	out := make([]domain.StorageTier, 0, len(byName))
	for _, tier := range byName {
		out = append(out, *tier)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
