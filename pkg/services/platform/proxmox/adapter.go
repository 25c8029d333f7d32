// Package proxmox implements the capability contract for Proxmox VE. Each
// cluster node is reported as a tenant.
package proxmox

import (
	"context"
	"fmt"
	"net/url"
	"sort"

	"github.com/de-tools/capacity-atlas/pkg/models/domain"
	"github.com/de-tools/capacity-atlas/pkg/services/platform"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// nodeConcurrency bounds the per-node sub-fetches.
const nodeConcurrency = 4

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
		return nil, fmt.Errorf("proxmox site %s: url, username and password are required: %w",
			cfg.SiteID, platform.ErrMissingCredentials)
	}
	return &Adapter{
		cfg:    cfg,
		opts:   opts,
		client: newClient(cfg, opts),
	}, nil
}

func (a *Adapter) PlatformType() domain.PlatformType {
	return domain.PlatformProxmox
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
	nodes, err := a.nodes(ctx)
	a.status.Observe(err)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}

	details := a.describe(ctx, nodes)
	tenants := make([]domain.TenantAllocation, 0, len(nodes))
	for i, n := range nodes {
		tenants = append(tenants, a.buildTenant(ctx, n, details[i]))
	}

	summary := &domain.SiteSummary{
		Site:        a.SiteInfo(),
		Tenants:     tenants,
		TenantCount: len(tenants),
		CollectedAt: a.opts.Now().UTC(),
	}
	var cpuCap, cpuAlloc, cpuUsed, memCap, memAlloc, memUsed float64
	for _, t := range tenants {
		cpuCap += t.CPU.Capacity
		cpuAlloc += t.CPU.Allocated
		cpuUsed += t.CPU.Used
		memCap += t.Memory.Capacity
		memAlloc += t.Memory.Allocated
		memUsed += t.Memory.Used
		summary.VMCount += t.VMCount
		summary.RunningVMCount += t.RunningVMCount
		summary.Partial = summary.Partial || t.Partial
	}
	summary.CPU = domain.NewCPUMetrics(cpuCap, cpuAlloc, cpuUsed)
	summary.Memory = domain.NewMemoryMetrics(memCap, memAlloc, memUsed)
	summary.Storage.Tiers = siteTiers(details)
	summary.Storage.SumTiers()
	if len(summary.Storage.Tiers) == 0 {
		for _, t := range tenants {
			summary.Storage.Capacity += t.Storage.Capacity
			summary.Storage.Limit += t.Storage.Limit
			summary.Storage.Used += t.Storage.Used
			summary.Storage.Available += t.Storage.Available
		}
	}

	if summary.Partial {
		zerolog.Ctx(ctx).Warn().
			Str("site", a.cfg.SiteID).
			Int("nodes", len(nodes)).
			Msg("proxmox node records are partial")
	}
	return summary, nil
}

func (a *Adapter) GetTenantAllocations(ctx context.Context) ([]domain.TenantAllocation, error) {
	nodes, err := a.nodes(ctx)
	a.status.Observe(err)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}

	details := a.describe(ctx, nodes)
	tenants := make([]domain.TenantAllocation, 0, len(nodes))
	for i, n := range nodes {
		tenants = append(tenants, a.buildTenant(ctx, n, details[i]))
	}
	return tenants, nil
}

func (a *Adapter) GetTenantAllocation(ctx context.Context, id string) (*domain.TenantAllocation, error) {
	nodes, err := a.nodes(ctx)
	a.status.Observe(err)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}

	for _, n := range nodes {
		if n.Node != id {
			continue
		}
		t := a.buildTenant(ctx, n, a.describe(ctx, []nodeRecord{n})[0])
		return &t, nil
	}
	return nil, nil
}

func (a *Adapter) nodes(ctx context.Context) ([]nodeRecord, error) {
	var nodes []nodeRecord
	if err := a.client.get(ctx, "/nodes", &nodes); err != nil {
		return nil, err
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Node < nodes[j].Node })
	return nodes, nil
}

type nodeDetail struct {
	online  bool
	status  platform.Result[nodeStatus]
	vms     platform.Result[[]vmRecord]
	storage platform.Result[[]storageRecord]
}

// describe runs the secondary per-node fetches with bounded concurrency.
// Offline nodes are not queried.
func (a *Adapter) describe(ctx context.Context, nodes []nodeRecord) []nodeDetail {
	details := make([]nodeDetail, len(nodes))
	var g errgroup.Group
	g.SetLimit(nodeConcurrency)

	for i, n := range nodes {
		if !n.online() {
			continue
		}
		base := "/nodes/" + url.PathEscape(n.Node)
		g.Go(func() error {
			d := nodeDetail{online: true}
			d.status = platform.Fetch(ctx, func(ctx context.Context) (nodeStatus, error) {
				var s nodeStatus
				err := a.client.get(ctx, base+"/status", &s)
				return s, err
			})
			d.vms = platform.Fetch(ctx, func(ctx context.Context) ([]vmRecord, error) {
				var vms []vmRecord
				err := a.client.get(ctx, base+"/qemu", &vms)
				return vms, err
			})
			d.storage = platform.Fetch(ctx, func(ctx context.Context) ([]storageRecord, error) {
				var st []storageRecord
				err := a.client.get(ctx, base+"/storage", &st)
				return st, err
			})
			details[i] = d
			return nil
		})
	}
	_ = g.Wait()
	return details
}

func (a *Adapter) buildTenant(ctx context.Context, n nodeRecord, d nodeDetail) domain.TenantAllocation {
	t := domain.TenantAllocation{
		ID:           n.Node,
		Name:         n.Node,
		OrgName:      n.Node,
		OrgFullName:  n.Node,
		SiteID:       a.cfg.SiteID,
		PlatformType: domain.PlatformProxmox,
	}

	mhz := a.opts.CoreMHz(a.cfg)
	var partial bool
	if !d.online {
		partial = true
	} else {
		status, ok := platform.Absorb(ctx, "proxmox node status", d.status, nodeStatus{})
		if ok && status.CPUInfo.MHz > 0 {
			mhz = float64(status.CPUInfo.MHz)
		}
		partial = !ok
	}

	vms, vmsOK := platform.Absorb(ctx, "proxmox node vms", d.vms, nil)
	var vcpus, vmMem float64
	for _, vm := range vms {
		if vm.Template == 1 {
			continue
		}
		t.VMCount++
		if vm.Status == "running" {
			t.RunningVMCount++
		}
		vcpus += vm.CPUs
		vmMem += vm.MaxMem
	}

	cpuCap := float64(n.MaxCPU) * mhz
	t.CPU = domain.NewCPUMetrics(cpuCap, vcpus*mhz, n.CPU*cpuCap)
	t.Memory = domain.NewMemoryMetrics(bytesToMB(n.MaxMem), bytesToMB(vmMem), bytesToMB(n.Mem))

	storage, storageOK := platform.Absorb(ctx, "proxmox node storage", d.storage, nil)
	for _, s := range storage {
		if s.Active != 1 {
			continue
		}
		t.Storage.Tiers = append(t.Storage.Tiers, storageTier(s))
	}
	sort.Slice(t.Storage.Tiers, func(i, j int) bool { return t.Storage.Tiers[i].Name < t.Storage.Tiers[j].Name })
	if len(t.Storage.Tiers) > 0 {
		t.Storage.SumTiers()
	} else {
		// root filesystem of the node
		t.Storage = domain.StorageMetrics{
			Capacity:  bytesToMB(n.MaxDisk),
			Limit:     bytesToMB(n.MaxDisk),
			Used:      bytesToMB(n.Disk),
			Available: bytesToMB(n.MaxDisk - n.Disk),
		}
	}

	if d.online {
		partial = partial || !vmsOK || !storageOK
	}
	t.Partial = partial
	return t
}

func storageTier(s storageRecord) domain.StorageTier {
	return domain.StorageTier{
		Name:      s.Storage,
		Capacity:  bytesToMB(s.Total),
		Limit:     bytesToMB(s.Total),
		Used:      bytesToMB(s.Used),
		Available: bytesToMB(s.Avail),
	}
}

// siteTiers merges node storages by name. Shared storages are listed by
// every node and are counted once.
func siteTiers(details []nodeDetail) []domain.StorageTier {
	byName := make(map[string]*domain.StorageTier)
	shared := make(map[string]bool)
	for _, d := range details {
		for _, s := range d.storage.OrDefault(nil) {
			if s.Active != 1 {
				continue
			}
			if s.Shared == 1 {
				if shared[s.Storage] {
					continue
				}
				shared[s.Storage] = true
			}
			tier := storageTier(s)
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
	for _, t := range byName {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
