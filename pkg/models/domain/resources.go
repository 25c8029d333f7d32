package domain

import "time"

const (
	UnitsMHz = "MHz"
	UnitsMB  = "MB"
)

// ResourceMetrics describes one compute dimension. Available is reported as-is by
// the adapters and is not guaranteed to equal Capacity - Allocated.
type ResourceMetrics struct {
	Capacity  float64
	Allocated float64
	Used      float64
	Available float64
	Reserved  *float64
	Units     string
}

func NewCPUMetrics(capacity, allocated, used float64) ResourceMetrics {
	return ResourceMetrics{
		Capacity:  capacity,
		Allocated: allocated,
		Used:      used,
		Available: capacity - allocated,
		Units:     UnitsMHz,
	}
}

func NewMemoryMetrics(capacity, allocated, used float64) ResourceMetrics {
	return ResourceMetrics{
		Capacity:  capacity,
		Allocated: allocated,
		Used:      used,
		Available: capacity - allocated,
		Units:     UnitsMB,
	}
}

// StorageTier values are in MB.
type StorageTier struct {
	Name      string
	Capacity  float64
	Limit     float64
	Used      float64
	Available float64
}

// StorageMetrics values are in MB. An empty Tiers slice means the storage is
// a single undivided pool.
type StorageMetrics struct {
	Capacity  float64
	Limit     float64
	Used      float64
	Available float64
	Tiers     []StorageTier
}

// SumTiers fills the pool totals from the tiers.
func (s *StorageMetrics) SumTiers() {
	s.Capacity, s.Limit, s.Used, s.Available = 0, 0, 0, 0
	for _, t := range s.Tiers {
		s.Capacity += t.Capacity
		s.Limit += t.Limit
		s.Used += t.Used
		s.Available += t.Available
	}
}

type NetworkMetrics struct {
	TotalIPs     int
	AllocatedIPs int
	UsedIPs      int
	FreeIPs      int
}

func (n *NetworkMetrics) Add(o NetworkMetrics) {
	n.TotalIPs += o.TotalIPs
	n.AllocatedIPs += o.AllocatedIPs
	n.UsedIPs += o.UsedIPs
	n.FreeIPs += o.FreeIPs
}

type BackupMetrics struct {
	ProtectedVMs  int
	RestorePoints int
	LastBackupAt  *time.Time
}
