package api

import "time"

type SiteInfo struct {
	ID           string `json:"id"`
	Key          string `json:"key"`
	Name         string `json:"name"`
	Location     string `json:"location,omitempty"`
	URL          string `json:"url"`
	PlatformType string `json:"platform_type"`
	Status       string `json:"status"`
}

type ResourceMetrics struct {
	Capacity  float64  `json:"capacity"`
	Allocated float64  `json:"allocated"`
	Used      float64  `json:"used"`
	Available float64  `json:"available"`
	Reserved  *float64 `json:"reserved,omitempty"`
	Units     string   `json:"units"`
}

type StorageTier struct {
	Name      string  `json:"name"`
	Capacity  float64 `json:"capacity"`
	Limit     float64 `json:"limit"`
	Used      float64 `json:"used"`
	Available float64 `json:"available"`
}

type StorageMetrics struct {
	Capacity  float64       `json:"capacity"`
	Limit     float64       `json:"limit"`
	Used      float64       `json:"used"`
	Available float64       `json:"available"`
	Units     string        `json:"units"`
	Tiers     []StorageTier `json:"tiers"`
}

type NetworkMetrics struct {
	TotalIPs     int `json:"total_ips"`
	AllocatedIPs int `json:"allocated_ips"`
	UsedIPs      int `json:"used_ips"`
	FreeIPs      int `json:"free_ips"`
}

type BackupMetrics struct {
	ProtectedVMs  int        `json:"protected_vms"`
	RestorePoints int        `json:"restore_points"`
	LastBackupAt  *time.Time `json:"last_backup_at,omitempty"`
}

type TenantAllocation struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	OrgName        string          `json:"org_name"`
	OrgFullName    string          `json:"org_full_name"`
	SiteID         string          `json:"site_id"`
	PlatformType   string          `json:"platform_type"`
	CPU            ResourceMetrics `json:"cpu"`
	Memory         ResourceMetrics `json:"memory"`
	Storage        StorageMetrics  `json:"storage"`
	Network        NetworkMetrics  `json:"network"`
	Backup         *BackupMetrics  `json:"backup,omitempty"`
	VMCount        int             `json:"vm_count"`
	RunningVMCount int             `json:"running_vm_count"`
	Partial        bool            `json:"partial"`
}

type SiteSummary struct {
	Site           SiteInfo           `json:"site"`
	CPU            ResourceMetrics    `json:"cpu"`
	Memory         ResourceMetrics    `json:"memory"`
	Storage        StorageMetrics     `json:"storage"`
	Network        NetworkMetrics     `json:"network"`
	Backup         *BackupMetrics     `json:"backup,omitempty"`
	Tenants        []TenantAllocation `json:"tenants,omitempty"`
	TenantCount    int                `json:"tenant_count"`
	VMCount        int                `json:"vm_count"`
	RunningVMCount int                `json:"running_vm_count"`
	CollectedAt    time.Time          `json:"collected_at"`
	Partial        bool               `json:"partial"`
}

type ConnectionTest struct {
	Site      SiteInfo `json:"site"`
	Connected bool     `json:"connected"`
}
