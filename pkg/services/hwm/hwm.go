// Package hwm derives monthly high-water marks and commit overages from
// stored tenant snapshots. The reducers are pure and ignore row order.
package hwm

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/de-tools/capacity-atlas/pkg/models/domain"
)

// MonthRange returns the half-open UTC interval [first of month, first of next month).
func MonthRange(year int, month time.Month) (domain.TimePeriod, error) {
	if month < time.January || month > time.December {
		return domain.TimePeriod{}, fmt.Errorf("month out of range: %d", month)
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return domain.TimePeriod{Start: start, End: start.AddDate(0, 1, 0)}, nil
}

type tenantKey struct {
	siteID   string
	tenantID string
}

type group struct {
	key    tenantKey
	latest domain.TenantPollSnapshot
	rows   []domain.TenantPollSnapshot
}

// groupRows buckets rows by (site, tenant) and returns the buckets sorted by key.
func groupRows(rows []domain.TenantPollSnapshot) []*group {
	byKey := make(map[tenantKey]*group)
	for _, r := range rows {
		k := tenantKey{siteID: r.SiteID, tenantID: r.TenantID}
		g, ok := byKey[k]
		if !ok {
			g = &group{key: k, latest: r}
			byKey[k] = g
		}
		if r.PolledAt.After(g.latest.PolledAt) {
			g.latest = r
		}
		g.rows = append(g.rows, r)
	}

	out := make([]*group, 0, len(byKey))
	for _, g := range byKey {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].key.siteID != out[j].key.siteID {
			return out[i].key.siteID < out[j].key.siteID
		}
		return out[i].key.tenantID < out[j].key.tenantID
	})
	return out
}

// HighWaterMarks returns the peak of every dimension per tenant. Tier names are
// compared case-insensitively and reported upper-cased.
func HighWaterMarks(rows []domain.TenantPollSnapshot) []domain.TenantHighWaterMark {
	groups := groupRows(rows)
	res := make([]domain.TenantHighWaterMark, 0, len(groups))
	for _, g := range groups {
		hwm := domain.TenantHighWaterMark{
			SiteID:        g.key.siteID,
			TenantID:      g.key.tenantID,
			TenantName:    g.latest.TenantName,
			OrgName:       g.latest.OrgName,
			SnapshotCount: len(g.rows),
		}

		tiers := make(map[string]float64)
		for _, r := range g.rows {
			hwm.MaxCPUUsed = max(hwm.MaxCPUUsed, r.CPUUsed)
			hwm.MaxRAMUsed = max(hwm.MaxRAMUsed, r.RAMUsed)
			hwm.MaxStorageUsed = max(hwm.MaxStorageUsed, r.StorageUsed)
			hwm.MaxIPAllocated = max(hwm.MaxIPAllocated, r.IPAllocated)
			for _, t := range r.Tiers {
				name := strings.ToUpper(t.Name)
				tiers[name] = max(tiers[name], t.Used)
			}
		}

		hwm.Tiers = make([]domain.TierHighWaterMark, 0, len(tiers))
		for name, used := range tiers {
			hwm.Tiers = append(hwm.Tiers, domain.TierHighWaterMark{Name: name, MaxUsed: used})
		}
		sort.Slice(hwm.Tiers, func(i, j int) bool { return hwm.Tiers[i].Name < hwm.Tiers[j].Name })

		res = append(res, hwm)
	}
	return res
}

// Overages compares every snapshot against the tenant's commit. CPU and RAM
// are evaluated independently; a commit of zero means the dimension is not
// contracted and never breaches. Tenants without a commit are left out.
func Overages(rows []domain.TenantPollSnapshot, commits CommitLookup) []domain.TenantOverage {
	groups := groupRows(rows)
	res := make([]domain.TenantOverage, 0, len(groups))
	for _, g := range groups {
		commit, ok := commits.Commit(g.key.siteID, g.key.tenantID)
		if !ok {
			continue
		}

		o := domain.TenantOverage{
			SiteID:        g.key.siteID,
			TenantID:      g.key.tenantID,
			TenantName:    g.latest.TenantName,
			SnapshotCount: len(g.rows),
			CPU:           domain.DimensionOverage{Commit: commit.CPUMHz},
			RAM:           domain.DimensionOverage{Commit: commit.RAMMB},
		}
		for _, r := range g.rows {
			breach(&o.CPU, r.CPUUsed, r.PolledAt)
			breach(&o.RAM, r.RAMUsed, r.PolledAt)
		}
		res = append(res, o)
	}
	return res
}

func breach(d *domain.DimensionOverage, used float64, at time.Time) {
	if d.Commit <= 0 || used <= d.Commit {
		return
	}
	d.Count++
	over := used - d.Commit
	if over > d.MaxOverage {
		d.MaxOverage = over
		ts := at
		d.MaxOverageAt = &ts
	}
}
