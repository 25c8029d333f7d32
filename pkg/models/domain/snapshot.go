package domain

import "time"

// SitePollSnapshot is an immutable, timestamped record of a site's state.
type SitePollSnapshot struct {
	ID             string
	SiteID         string
	SiteName       string
	PlatformType   PlatformType
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
	// RawPayload is kept for audit and debugging only.
	RawPayload []byte
}

// TenantPollSnapshot is an immutable, timestamped record of one tenant.
type TenantPollSnapshot struct {
	ID             string
	SiteID         string
	PlatformType   PlatformType
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
	Tiers          []StorageTier
	IPAllocated    int
	RawPayload     []byte
}
