package adapters

import (
	"github.com/de-tools/capacity-atlas/pkg/models/api"
	"github.com/de-tools/capacity-atlas/pkg/models/domain"
)

func MapSiteInfoDomainToApi(s domain.SiteInfo) api.SiteInfo {
	return api.SiteInfo{
		ID:           s.ID,
		Key:          s.CompositeID(),
		Name:         s.Name,
		Location:     s.Location,
		URL:          s.URL,
		PlatformType: string(s.PlatformType),
		Status:       string(s.Status),
	}
}

func MapResourceMetricsDomainToApi(m domain.ResourceMetrics) api.ResourceMetrics {
	return api.ResourceMetrics{
		Capacity:  m.Capacity,
		Allocated: m.Allocated,
		Used:      m.Used,
		Available: m.Available,
		Reserved:  m.Reserved,
		Units:     m.Units,
	}
}

func MapStorageMetricsDomainToApi(s domain.StorageMetrics) api.StorageMetrics {
	res := api.StorageMetrics{
		Capacity:  s.Capacity,
		Limit:     s.Limit,
		Used:      s.Used,
		Available: s.Available,
		Units:     domain.UnitsMB,
		Tiers:     make([]api.StorageTier, 0, len(s.Tiers)),
	}
	for _, t := range s.Tiers {
		res.Tiers = append(res.Tiers, api.StorageTier{
			Name:      t.Name,
			Capacity:  t.Capacity,
			Limit:     t.Limit,
			Used:      t.Used,
			Available: t.Available,
		})
	}
	return res
}

func MapNetworkMetricsDomainToApi(n domain.NetworkMetrics) api.NetworkMetrics {
	return api.NetworkMetrics{
		TotalIPs:     n.TotalIPs,
		AllocatedIPs: n.AllocatedIPs,
		UsedIPs:      n.UsedIPs,
		FreeIPs:      n.FreeIPs,
	}
}

func MapBackupMetricsDomainToApi(b *domain.BackupMetrics) *api.BackupMetrics {
	if b == nil {
		return nil
	}
	return &api.BackupMetrics{
		ProtectedVMs:  b.ProtectedVMs,
		RestorePoints: b.RestorePoints,
		LastBackupAt:  b.LastBackupAt,
	}
}

func MapTenantAllocationDomainToApi(t domain.TenantAllocation) api.TenantAllocation {
	return api.TenantAllocation{
		ID:             t.ID,
		Name:           t.Name,
		OrgName:        t.OrgName,
		OrgFullName:    t.OrgFullName,
		SiteID:         t.SiteID,
		PlatformType:   string(t.PlatformType),
		CPU:            MapResourceMetricsDomainToApi(t.CPU),
		Memory:         MapResourceMetricsDomainToApi(t.Memory),
		Storage:        MapStorageMetricsDomainToApi(t.Storage),
		Network:        MapNetworkMetricsDomainToApi(t.Network),
		Backup:         MapBackupMetricsDomainToApi(t.Backup),
		VMCount:        t.VMCount,
		RunningVMCount: t.RunningVMCount,
		Partial:        t.Partial,
	}
}

func MapTenantAllocationsDomainToApi(tenants []domain.TenantAllocation) []api.TenantAllocation {
	res := make([]api.TenantAllocation, 0, len(tenants))
	for _, t := range tenants {
		res = append(res, MapTenantAllocationDomainToApi(t))
	}
	return res
}

// MapSiteSummaryDomainToApi maps the summary; tenants are included only when
// withTenants is set.
func MapSiteSummaryDomainToApi(s domain.SiteSummary, withTenants bool) api.SiteSummary {
	res := api.SiteSummary{
		Site:           MapSiteInfoDomainToApi(s.Site),
		CPU:            MapResourceMetricsDomainToApi(s.CPU),
		Memory:         MapResourceMetricsDomainToApi(s.Memory),
		Storage:        MapStorageMetricsDomainToApi(s.Storage),
		Network:        MapNetworkMetricsDomainToApi(s.Network),
		Backup:         MapBackupMetricsDomainToApi(s.Backup),
		TenantCount:    s.TenantCount,
		VMCount:        s.VMCount,
		RunningVMCount: s.RunningVMCount,
		CollectedAt:    s.CollectedAt,
		Partial:        s.Partial,
	}
	if withTenants {
		res.Tenants = MapTenantAllocationsDomainToApi(s.Tenants)
	}
	return res
}
