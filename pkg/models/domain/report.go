package domain

import "time"

// TimePeriod is a half-open range [Start, End).
type TimePeriod struct {
	Start time.Time
	End   time.Time
}

type TierHighWaterMark struct {
	Name    string
	MaxUsed float64
}

// TenantHighWaterMark is the monthly peak usage of one tenant.
type TenantHighWaterMark struct {
	SiteID         string
	TenantID       string
	TenantName     string
	OrgName        string
	SnapshotCount  int
	MaxCPUUsed     float64
	MaxRAMUsed     float64
	MaxStorageUsed float64
	MaxIPAllocated int
	Tiers          []TierHighWaterMark
}

type HighWaterMarkReport struct {
	Year    int
	Month   time.Month
	Period  TimePeriod
	Tenants []TenantHighWaterMark
}

// CommitLevel is the contracted allocation of a tenant, supplied externally.
type CommitLevel struct {
	CPUMHz        float64
	RAMMB         float64
	StorageByTier map[string]float64
	IPs           int
}

type DimensionOverage struct {
	Commit       float64
	Count        int
	MaxOverage   float64
	MaxOverageAt *time.Time
}

type TenantOverage struct {
	SiteID        string
	TenantID      string
	TenantName    string
	SnapshotCount int
	CPU           DimensionOverage
	RAM           DimensionOverage
}

type OverageReport struct {
	Period  TimePeriod
	Tenants []TenantOverage
}
