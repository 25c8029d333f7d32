package adapters

import (
	"github.com/de-tools/capacity-atlas/pkg/models/api"
	"github.com/de-tools/capacity-atlas/pkg/models/domain"
)

func MapTimePeriodDomainToApi(p domain.TimePeriod) api.TimePeriod {
	return api.TimePeriod{
		Start: p.Start,
		End:   p.End,
	}
}

func MapHighWaterMarkReportDomainToApi(r domain.HighWaterMarkReport) api.HighWaterMarkReport {
	res := api.HighWaterMarkReport{
		Year:    r.Year,
		Month:   int(r.Month),
		Period:  MapTimePeriodDomainToApi(r.Period),
		Tenants: make([]api.TenantHighWaterMark, 0, len(r.Tenants)),
	}
	for _, t := range r.Tenants {
		hwm := api.TenantHighWaterMark{
			SiteID:         t.SiteID,
			TenantID:       t.TenantID,
			TenantName:     t.TenantName,
			OrgName:        t.OrgName,
			SnapshotCount:  t.SnapshotCount,
			MaxCPUUsed:     t.MaxCPUUsed,
			MaxRAMUsed:     t.MaxRAMUsed,
			MaxStorageUsed: t.MaxStorageUsed,
			MaxIPAllocated: t.MaxIPAllocated,
			Tiers:          make([]api.TierHighWaterMark, 0, len(t.Tiers)),
		}
		for _, tier := range t.Tiers {
			hwm.Tiers = append(hwm.Tiers, api.TierHighWaterMark{Name: tier.Name, MaxUsed: tier.MaxUsed})
		}
		res.Tenants = append(res.Tenants, hwm)
	}
	return res
}

func MapDimensionOverageDomainToApi(d domain.DimensionOverage) api.DimensionOverage {
	return api.DimensionOverage{
		Commit:       d.Commit,
		Count:        d.Count,
		MaxOverage:   d.MaxOverage,
		MaxOverageAt: d.MaxOverageAt,
	}
}

func MapOverageReportDomainToApi(r domain.OverageReport) api.OverageReport {
	res := api.OverageReport{
		Period:  MapTimePeriodDomainToApi(r.Period),
		Tenants: make([]api.TenantOverage, 0, len(r.Tenants)),
	}
	for _, t := range r.Tenants {
		res.Tenants = append(res.Tenants, api.TenantOverage{
			SiteID:        t.SiteID,
			TenantID:      t.TenantID,
			TenantName:    t.TenantName,
			SnapshotCount: t.SnapshotCount,
			CPU:           MapDimensionOverageDomainToApi(t.CPU),
			RAM:           MapDimensionOverageDomainToApi(t.RAM),
		})
	}
	return res
}
