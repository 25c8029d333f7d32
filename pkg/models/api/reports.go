package api

import "time"

type TimePeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type TierHighWaterMark struct {
	Name    string  `json:"name"`
	MaxUsed float64 `json:"max_used"`
}

type TenantHighWaterMark struct {
	SiteID         string              `json:"site_id"`
	TenantID       string              `json:"tenant_id"`
	TenantName     string              `json:"tenant_name"`
	OrgName        string              `json:"org_name"`
	SnapshotCount  int                 `json:"snapshot_count"`
	MaxCPUUsed     float64             `json:"max_cpu_used"`
	MaxRAMUsed     float64             `json:"max_ram_used"`
	MaxStorageUsed float64             `json:"max_storage_used"`
	MaxIPAllocated int                 `json:"max_ip_allocated"`
	Tiers          []TierHighWaterMark `json:"tiers"`
}

type HighWaterMarkReport struct {
	Year    int                   `json:"year"`
	Month   int                   `json:"month"`
	Period  TimePeriod            `json:"period"`
	Tenants []TenantHighWaterMark `json:"tenants"`
}

type DimensionOverage struct {
	Commit       float64    `json:"commit"`
	Count        int        `json:"count"`
	MaxOverage   float64    `json:"max_overage"`
	MaxOverageAt *time.Time `json:"max_overage_at,omitempty"`
}

type TenantOverage struct {
	SiteID        string           `json:"site_id"`
	TenantID      string           `json:"tenant_id"`
	TenantName    string           `json:"tenant_name"`
	SnapshotCount int              `json:"snapshot_count"`
	CPU           DimensionOverage `json:"cpu"`
	RAM           DimensionOverage `json:"ram"`
}

type OverageReport struct {
	Period  TimePeriod      `json:"period"`
	Tenants []TenantOverage `json:"tenants"`
}

type Error struct {
	Error string `json:"error"`
}
