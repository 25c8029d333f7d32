package api

import "time"

type SiteSnapshot struct {
	ID             string    `json:"id"`
	SiteID         string    `json:"site_id"`
	SiteName       string    `json:"site_name"`
	PlatformType   string    `json:"platform_type"`
	PolledAt       time.Time `json:"polled_at"`
	CPUCapacity    float64   `json:"cpu_capacity"`
	CPUAllocated   float64   `json:"cpu_allocated"`
	CPUUsed        float64   `json:"cpu_used"`
	RAMCapacity    float64   `json:"ram_capacity"`
	RAMAllocated   float64   `json:"ram_allocated"`
	RAMUsed        float64   `json:"ram_used"`
	StorageLimit   float64   `json:"storage_limit"`
	StorageUsed    float64   `json:"storage_used"`
	IPTotal        int       `json:"ip_total"`
	IPAllocated    int       `json:"ip_allocated"`
	IPUsed         int       `json:"ip_used"`
	IPFree         int       `json:"ip_free"`
	TenantCount    int       `json:"tenant_count"`
	VMCount        int       `json:"vm_count"`
	RunningVMCount int       `json:"running_vm_count"`
}

type TenantSnapshot struct {
	ID             string        `json:"id"`
	SiteID         string        `json:"site_id"`
	PlatformType   string        `json:"platform_type"`
	TenantID       string        `json:"tenant_id"`
	TenantName     string        `json:"tenant_name"`
	OrgName        string        `json:"org_name"`
	PolledAt       time.Time     `json:"polled_at"`
	VMCount        int           `json:"vm_count"`
	RunningVMCount int           `json:"running_vm_count"`
	CPUAllocated   float64       `json:"cpu_allocated"`
	CPUUsed        float64       `json:"cpu_used"`
	RAMAllocated   float64       `json:"ram_allocated"`
	RAMUsed        float64       `json:"ram_used"`
	StorageLimit   float64       `json:"storage_limit"`
	StorageUsed    float64       `json:"storage_used"`
	Tiers          []StorageTier `json:"tiers"`
	IPAllocated    int           `json:"ip_allocated"`
}

// LatestSnapshot is the last known good state of a site.
type LatestSnapshot struct {
	Site    SiteSnapshot     `json:"site"`
	Tenants []TenantSnapshot `json:"tenants"`
}

type SiteOutcome struct {
	Site       string `json:"site"`
	TenantRows int    `json:"tenant_rows"`
	Partial    bool   `json:"partial"`
	Error      string `json:"error,omitempty"`
}

type PollResult struct {
	CycleID       string        `json:"cycle_id"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
	PolledAt      time.Time     `json:"polled_at"`
	Sites         []SiteOutcome `json:"sites"`
	Skipped       []string      `json:"skipped"`
	Succeeded     int           `json:"succeeded"`
	Failed        int           `json:"failed"`
	TenantRows    int           `json:"tenant_rows"`
	PrunedSites   int64         `json:"pruned_sites"`
	PrunedTenants int64         `json:"pruned_tenants"`
	Error         string        `json:"error,omitempty"`
}

type LastPoll struct {
	Running      bool        `json:"running"`
	LastPolledAt *time.Time  `json:"last_polled_at"`
	Result       *PollResult `json:"result,omitempty"`
}
