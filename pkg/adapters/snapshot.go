package adapters

import (
	"time"

	"github.com/de-tools/capacity-atlas/pkg/models/api"
	"github.com/de-tools/capacity-atlas/pkg/models/domain"
	"github.com/de-tools/capacity-atlas/pkg/models/store"
)

// MapSiteSummaryToDomainSnapshot flattens a live summary into a snapshot row.
func MapSiteSummaryToDomainSnapshot(
	s domain.SiteSummary,
	id string,
	polledAt time.Time,
	payload []byte,
) domain.SitePollSnapshot {
	limit := s.Storage.Limit
	if limit == 0 {
		limit = s.Storage.Capacity
	}
	return domain.SitePollSnapshot{
		ID:             id,
		SiteID:         s.Site.ID,
		SiteName:       s.Site.Name,
		PlatformType:   s.Site.PlatformType,
		PolledAt:       polledAt,
		CPUCapacity:    s.CPU.Capacity,
		CPUAllocated:   s.CPU.Allocated,
		CPUUsed:        s.CPU.Used,
		RAMCapacity:    s.Memory.Capacity,
		RAMAllocated:   s.Memory.Allocated,
		RAMUsed:        s.Memory.Used,
		StorageLimit:   limit,
		StorageUsed:    s.Storage.Used,
		IPTotal:        s.Network.TotalIPs,
		IPAllocated:    s.Network.AllocatedIPs,
		IPUsed:         s.Network.UsedIPs,
		IPFree:         s.Network.FreeIPs,
		TenantCount:    s.TenantCount,
		VMCount:        s.VMCount,
		RunningVMCount: s.RunningVMCount,
		RawPayload:     payload,
	}
}

func MapTenantAllocationToDomainSnapshot(
	t domain.TenantAllocation,
	id string,
	polledAt time.Time,
	payload []byte,
) domain.TenantPollSnapshot {
	limit := t.Storage.Limit
	if limit == 0 {
		limit = t.Storage.Capacity
	}
	return domain.TenantPollSnapshot{
		ID:             id,
		SiteID:         t.SiteID,
		PlatformType:   t.PlatformType,
		TenantID:       t.ID,
		TenantName:     t.Name,
		OrgName:        t.OrgName,
		PolledAt:       polledAt,
		VMCount:        t.VMCount,
		RunningVMCount: t.RunningVMCount,
		CPUAllocated:   t.CPU.Allocated,
		CPUUsed:        t.CPU.Used,
		RAMAllocated:   t.Memory.Allocated,
		RAMUsed:        t.Memory.Used,
		StorageLimit:   limit,
		StorageUsed:    t.Storage.Used,
		Tiers:          append([]domain.StorageTier(nil), t.Storage.Tiers...),
		IPAllocated:    t.Network.AllocatedIPs,
		RawPayload:     payload,
	}
}

func MapDomainSiteSnapshotToStore(s domain.SitePollSnapshot) store.SiteSnapshot {
	return store.SiteSnapshot{
		ID:             s.ID,
		SiteID:         s.SiteID,
		SiteName:       s.SiteName,
		PlatformType:   string(s.PlatformType),
		PolledAt:       s.PolledAt,
		CPUCapacity:    s.CPUCapacity,
		CPUAllocated:   s.CPUAllocated,
		CPUUsed:        s.CPUUsed,
		RAMCapacity:    s.RAMCapacity,
		RAMAllocated:   s.RAMAllocated,
		RAMUsed:        s.RAMUsed,
		StorageLimit:   s.StorageLimit,
		StorageUsed:    s.StorageUsed,
		IPTotal:        s.IPTotal,
		IPAllocated:    s.IPAllocated,
		IPUsed:         s.IPUsed,
		IPFree:         s.IPFree,
		TenantCount:    s.TenantCount,
		VMCount:        s.VMCount,
		RunningVMCount: s.RunningVMCount,
		RawPayload:     string(s.RawPayload),
	}
}

func MapStoreSiteSnapshotToDomain(s store.SiteSnapshot) domain.SitePollSnapshot {
	return domain.SitePollSnapshot{
		ID:             s.ID,
		SiteID:         s.SiteID,
		SiteName:       s.SiteName,
		PlatformType:   domain.PlatformType(s.PlatformType),
		PolledAt:       s.PolledAt,
		CPUCapacity:    s.CPUCapacity,
		CPUAllocated:   s.CPUAllocated,
		CPUUsed:        s.CPUUsed,
		RAMCapacity:    s.RAMCapacity,
		RAMAllocated:   s.RAMAllocated,
		RAMUsed:        s.RAMUsed,
		StorageLimit:   s.StorageLimit,
		StorageUsed:    s.StorageUsed,
		IPTotal:        s.IPTotal,
		IPAllocated:    s.IPAllocated,
		IPUsed:         s.IPUsed,
		IPFree:         s.IPFree,
		TenantCount:    s.TenantCount,
		VMCount:        s.VMCount,
		RunningVMCount: s.RunningVMCount,
		RawPayload:     []byte(s.RawPayload),
	}
}

func MapDomainTenantSnapshotToStore(t domain.TenantPollSnapshot) store.TenantSnapshot {
	tiers := make([]store.TierUsage, 0, len(t.Tiers))
	for _, tier := range t.Tiers {
		tiers = append(tiers, store.TierUsage{Name: tier.Name, Limit: tier.Limit, Used: tier.Used})
	}
	return store.TenantSnapshot{
		ID:             t.ID,
		SiteID:         t.SiteID,
		PlatformType:   string(t.PlatformType),
		TenantID:       t.TenantID,
		TenantName:     t.TenantName,
		OrgName:        t.OrgName,
		PolledAt:       t.PolledAt,
		VMCount:        t.VMCount,
		RunningVMCount: t.RunningVMCount,
		CPUAllocated:   t.CPUAllocated,
		CPUUsed:        t.CPUUsed,
		RAMAllocated:   t.RAMAllocated,
		RAMUsed:        t.RAMUsed,
		StorageLimit:   t.StorageLimit,
		StorageUsed:    t.StorageUsed,
		Tiers:          tiers,
		IPAllocated:    t.IPAllocated,
		RawPayload:     string(t.RawPayload),
	}
}

func MapStoreTenantSnapshotToDomain(t store.TenantSnapshot) domain.TenantPollSnapshot {
	tiers := make([]domain.StorageTier, 0, len(t.Tiers))
	for _, tier := range t.Tiers {
		tiers = append(tiers, domain.StorageTier{
			Name:      tier.Name,
			Capacity:  tier.Limit,
			Limit:     tier.Limit,
			Used:      tier.Used,
			Available: tier.Limit - tier.Used,
		})
	}
	return domain.TenantPollSnapshot{
		ID:             t.ID,
		SiteID:         t.SiteID,
		PlatformType:   domain.PlatformType(t.PlatformType),
		TenantID:       t.TenantID,
		TenantName:     t.TenantName,
		OrgName:        t.OrgName,
		PolledAt:       t.PolledAt,
		VMCount:        t.VMCount,
		RunningVMCount: t.RunningVMCount,
		CPUAllocated:   t.CPUAllocated,
		CPUUsed:        t.CPUUsed,
		RAMAllocated:   t.RAMAllocated,
		RAMUsed:        t.RAMUsed,
		StorageLimit:   t.StorageLimit,
		StorageUsed:    t.StorageUsed,
		Tiers:          tiers,
		IPAllocated:    t.IPAllocated,
		RawPayload:     []byte(t.RawPayload),
	}
}

func MapStoreTenantSnapshotsToDomain(rows []store.TenantSnapshot) []domain.TenantPollSnapshot {
	res := make([]domain.TenantPollSnapshot, 0, len(rows))
	for _, r := range rows {
		res = append(res, MapStoreTenantSnapshotToDomain(r))
	}
	return res
}

func MapSiteSnapshotDomainToApi(s domain.SitePollSnapshot) api.SiteSnapshot {
	return api.SiteSnapshot{
		ID:             s.ID,
		SiteID:         s.SiteID,
		SiteName:       s.SiteName,
		PlatformType:   string(s.PlatformType),
		PolledAt:       s.PolledAt,
		CPUCapacity:    s.CPUCapacity,
		CPUAllocated:   s.CPUAllocated,
		CPUUsed:        s.CPUUsed,
		RAMCapacity:    s.RAMCapacity,
		RAMAllocated:   s.RAMAllocated,
		RAMUsed:        s.RAMUsed,
		StorageLimit:   s.StorageLimit,
		StorageUsed:    s.StorageUsed,
		IPTotal:        s.IPTotal,
		IPAllocated:    s.IPAllocated,
		IPUsed:         s.IPUsed,
		IPFree:         s.IPFree,
		TenantCount:    s.TenantCount,
		VMCount:        s.VMCount,
		RunningVMCount: s.RunningVMCount,
	}
}

func MapTenantSnapshotDomainToApi(t domain.TenantPollSnapshot) api.TenantSnapshot {
	res := api.TenantSnapshot{
		ID:             t.ID,
		SiteID:         t.SiteID,
		PlatformType:   string(t.PlatformType),
		TenantID:       t.TenantID,
		TenantName:     t.TenantName,
		OrgName:        t.OrgName,
		PolledAt:       t.PolledAt,
		VMCount:        t.VMCount,
		RunningVMCount: t.RunningVMCount,
		CPUAllocated:   t.CPUAllocated,
		CPUUsed:        t.CPUUsed,
		RAMAllocated:   t.RAMAllocated,
		RAMUsed:        t.RAMUsed,
		StorageLimit:   t.StorageLimit,
		StorageUsed:    t.StorageUsed,
		Tiers:          make([]api.StorageTier, 0, len(t.Tiers)),
		IPAllocated:    t.IPAllocated,
	}
	for _, tier := range t.Tiers {
		res.Tiers = append(res.Tiers, api.StorageTier{
			Name:      tier.Name,
			Capacity:  tier.Capacity,
			Limit:     tier.Limit,
			Used:      tier.Used,
			Available: tier.Available,
		})
	}
	return res
}

func MapPollResultDomainToApi(r domain.PollResult) api.PollResult {
	res := api.PollResult{
		CycleID:       r.CycleID,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
		PolledAt:      r.PolledAt,
		Sites:         make([]api.SiteOutcome, 0, len(r.Sites)),
		Skipped:       append([]string{}, r.Skipped...),
		Succeeded:     r.Succeeded,
		Failed:        r.Failed,
		TenantRows:    r.TenantRows,
		PrunedSites:   r.PrunedSites,
		PrunedTenants: r.PrunedTenants,
	}
	for _, s := range r.Sites {
		o := api.SiteOutcome{Site: s.SiteKey, TenantRows: s.TenantRows, Partial: s.Partial}
		if s.Err != nil {
			o.Error = s.Err.Error()
		}
		res.Sites = append(res.Sites, o)
	}
	if r.Err != nil {
		res.Error = r.Err.Error()
	}
	return res
}
