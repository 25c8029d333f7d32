package store

import "time"

type SiteSnapshot struct {
	ID             string
	SiteID         string
	SiteName       string
	PlatformType   string
	PolledAt       time.Time
	CPUCapacity    float64
	CPUAllocated   float64
	CPUUsed        float64
	RAMCapacity    float64
	RAMAllocated   float64
	RAMUsed        float64
	StorageLimit   float64
	StorageUsed    float64
	IPTotal        int
	IPAllocated    int
	IPUsed         int
	IPFree         int
	TenantCount    int
	VMCount        int
	RunningVMCount int
	RawPayload     string
}

// TierUsage is stored as a JSON array on the tenant row.
type TierUsage struct {
	Name  string  `json:"name"`
	Limit float64 `json:"limit"`
	Used  float64 `json:"used"`
}

type TenantSnapshot struct {
	ID             string
	SiteID         string
	PlatformType   string
	TenantID       string
	TenantName     string
	OrgName        string
	PolledAt       time.Time
	VMCount        int
	RunningVMCount int
	CPUAllocated   float64
	CPUUsed        float64
	RAMAllocated   float64
	RAMUsed        float64
	StorageLimit   float64
	StorageUsed    float64
	Tiers          []TierUsage
	IPAllocated    int
	RawPayload     string
}
