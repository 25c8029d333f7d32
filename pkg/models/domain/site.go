package domain

import "time"

// TenantAllocation is one billing unit of a site: an Org VDC, a CloudStack
// project or a Proxmox node.
type TenantAllocation struct {
	ID             string
	Name           string
	OrgName        string
	OrgFullName    string
	SiteID         string
	PlatformType   PlatformType
	CPU            ResourceMetrics
	Memory         ResourceMetrics
	Storage        StorageMetrics
	Network        NetworkMetrics
	Backup         *BackupMetrics
	VMCount        int
	RunningVMCount int
	// Partial is set when some enrichment sub-fetch failed and the record
	// carries best-effort values.
	Partial bool
}

type SiteSummary struct {
	Site           SiteInfo
	CPU            ResourceMetrics
	Memory         ResourceMetrics
	Storage        StorageMetrics
	Network        NetworkMetrics
	Backup         *BackupMetrics
	Tenants        []TenantAllocation
	TenantCount    int
	VMCount        int
	RunningVMCount int
	CollectedAt    time.Time
	Partial        bool
}
