// Package veeam implements the capability contract for the backup reporting
// service. It reports protected workloads per organization and repository
// usage; compute figures are always zero.
package veeam

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/de-tools/capacity-atlas/pkg/models/domain"
	"github.com/de-tools/capacity-atlas/pkg/services/platform"
	"github.com/rs/zerolog"
)

const (
	objectsPath      = "/api/v1/backupObjects"
	repositoriesPath = "/api/v1/backupInfrastructure/repositories/states"
	sessionsPath     = "/api/v1/sessions"

	pageLimit = 200
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
		return nil, fmt.Errorf("veeam site %s: url, username and password are required: %w",
			cfg.SiteID, platform.ErrMissingCredentials)
	}
	return &Adapter{
		cfg:    cfg,
		opts:   opts,
		client: newClient(cfg, opts),
	}, nil
}

func (a *Adapter) PlatformType() domain.PlatformType {
	return domain.PlatformVeeam
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
	objects, err := a.objects(ctx)
	a.status.Observe(err)
	if err != nil {
		return nil, fmt.Errorf("list backup objects: %w", err)
	}

	repos := platform.Fetch(ctx, a.repositories)
	last := platform.Fetch(ctx, a.lastBackup)

	tenants := a.buildTenants(objects)
	summary := &domain.SiteSummary{
		Site:        a.SiteInfo(),
		CPU:         domain.NewCPUMetrics(0, 0, 0),
		Memory:      domain.NewMemoryMetrics(0, 0, 0),
		Tenants:     tenants,
		TenantCount: len(tenants),
		CollectedAt: a.opts.Now().UTC(),
		Backup:      &domain.BackupMetrics{},
	}
	for _, t := range tenants {
		summary.VMCount += t.VMCount
		summary.Backup.ProtectedVMs += t.Backup.ProtectedVMs
		summary.Backup.RestorePoints += t.Backup.RestorePoints
	}

	states, reposOK := platform.Absorb(ctx, "veeam repositories", repos, nil)
	for _, r := range states {
		summary.Storage.Tiers = append(summary.Storage.Tiers, domain.StorageTier{
			Name:      r.Name,
			Capacity:  gbToMB(r.CapacityGB),
			Limit:     gbToMB(r.CapacityGB),
			Used:      gbToMB(r.UsedSpaceGB),
			Available: gbToMB(r.FreeGB),
		})
	}
	sort.Slice(summary.Storage.Tiers, func(i, j int) bool {
		return summary.Storage.Tiers[i].Name < summary.Storage.Tiers[j].Name
	})
	summary.Storage.SumTiers()

	lastAt, lastOK := platform.Absorb(ctx, "veeam last backup session", last, nil)
	summary.Backup.LastBackupAt = lastAt
	summary.Partial = !reposOK || !lastOK

	if summary.Partial {
		zerolog.Ctx(ctx).Warn().Str("site", a.cfg.SiteID).Msg("veeam site summary is partial")
	}
	return summary, nil
}

func (a *Adapter) GetTenantAllocations(ctx context.Context) ([]domain.TenantAllocation, error) {
	objects, err := a.objects(ctx)
	a.status.Observe(err)
	if err != nil {
		return nil, fmt.Errorf("list backup objects: %w", err)
	}
	return a.buildTenants(objects), nil
}

func (a *Adapter) GetTenantAllocation(ctx context.Context, id string) (*domain.TenantAllocation, error) {
	tenants, err := a.GetTenantAllocations(ctx)
	if err != nil {
		return nil, err
	}
	for i := range tenants {
		if tenants[i].ID == id {
			return &tenants[i], nil
		}
	}
	return nil, nil
}

func (a *Adapter) objects(ctx context.Context) ([]backupObject, error) {
	var out []backupObject
	for skip := 0; ; {
		var p page[backupObject]
		q := url.Values{"skip": {strconv.Itoa(skip)}, "limit": {strconv.Itoa(pageLimit)}}
		if err := a.client.get(ctx, objectsPath, q, &p); err != nil {
			return nil, err
		}
		out = append(out, p.Data...)
		skip += len(p.Data)
		if len(p.Data) == 0 || skip >= p.Pagination.Total {
			return out, nil
		}
	}
}

func (a *Adapter) repositories(ctx context.Context) ([]repositoryState, error) {
	var p page[repositoryState]
	if err := a.client.get(ctx, repositoriesPath, nil, &p); err != nil {
		return nil, err
	}
	return p.Data, nil
}

// lastBackup returns the end time of the most recent backup job session.
func (a *Adapter) lastBackup(ctx context.Context) (*time.Time, error) {
	var p page[session]
	q := url.Values{
		"typeFilter":  {"BackupJob"},
		"orderColumn": {"CreationTime"},
		"orderAsc":    {"false"},
		"limit":       {"1"},
	}
	if err := a.client.get(ctx, sessionsPath, q, &p); err != nil {
		return nil, err
	}
	if len(p.Data) == 0 || p.Data[0].EndTime == nil {
		return nil, nil
	}
	t := p.Data[0].EndTime.UTC()
	return &t, nil
}

func (a *Adapter) buildTenants(objects []backupObject) []domain.TenantAllocation {
	type acc struct {
		vms    map[string]struct{}
		points int
	}
	byOrg := make(map[string]*acc)
	for _, o := range objects {
		if o.Type != "" && o.Type != "VM" {
			continue
		}
		org := o.organization()
		x, ok := byOrg[org]
		if !ok {
			x = &acc{vms: make(map[string]struct{})}
			byOrg[org] = x
		}
		x.vms[o.ID] = struct{}{}
		x.points += o.RestorePointsCount
	}

	orgs := make([]string, 0, len(byOrg))
	for org := range byOrg {
		orgs = append(orgs, org)
	}
	sort.Strings(orgs)

	tenants := make([]domain.TenantAllocation, 0, len(orgs))
	for _, org := range orgs {
		x := byOrg[org]
		tenants = append(tenants, domain.TenantAllocation{
			ID:           org,
			Name:         org,
			OrgName:      org,
			OrgFullName:  org,
			SiteID:       a.cfg.SiteID,
			PlatformType: domain.PlatformVeeam,
			CPU:          domain.NewCPUMetrics(0, 0, 0),
			Memory:       domain.NewMemoryMetrics(0, 0, 0),
			VMCount:      len(x.vms),
			Backup: &domain.BackupMetrics{
				ProtectedVMs:  len(x.vms),
				RestorePoints: x.points,
			},
		})
	}
	return tenants
}
