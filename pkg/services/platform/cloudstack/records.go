package cloudstack

import (
	"strconv"
	"strings"
)

// listCapacity types.
const (
	capacityMemory           = 0
	capacityCPU              = 1
	capacityStorageUsed      = 2
	capacityStorageAllocated = 3
	capacityPublicIP         = 4
)

type capacityRecord struct {
	Type      int     `json:"type"`
	ZoneID    string  `json:"zoneid"`
	Total     float64 `json:"capacitytotal"`
	Used      float64 `json:"capacityused"`
	Allocated float64 `json:"capacityallocated"`
}

type projectRecord struct {
	ID                  string  `json:"id"`
	Name                string  `json:"name"`
	DisplayText         string  `json:"displaytext"`
	Domain              string  `json:"domain"`
	State               string  `json:"state"`
	VMTotal             int     `json:"vmtotal"`
	VMRunning           int     `json:"vmrunning"`
	CPUTotal            float64 `json:"cputotal"`
	CPULimit            limit   `json:"cpulimit"`
	MemoryTotal         float64 `json:"memorytotal"`
	MemoryLimit         limit   `json:"memorylimit"`
	PrimaryStorageTotal float64 `json:"primarystoragetotal"`
	PrimaryStorageLimit limit   `json:"primarystoragelimit"`
	IPTotal             int     `json:"iptotal"`
}

type storagePoolRecord struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Tags      string  `json:"tags"`
	State     string  `json:"state"`
	SizeTotal float64 `json:"disksizetotal"`
	SizeUsed  float64 `json:"disksizeused"`
}

type publicIPRecord struct {
	ID        string `json:"id"`
	IPAddress string `json:"ipaddress"`
	ProjectID string `json:"projectid"`
	State     string `json:"state"`
}

// limit is a project resource limit. The API sends numbers as strings and
// "Unlimited" (or -1) when no limit is set.
type limit string

func (l *limit) UnmarshalJSON(b []byte) error {
	*l = limit(strings.Trim(string(b), `"`))
	return nil
}

func (l limit) value() (float64, bool) {
	v, err := strconv.ParseFloat(string(l), 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// tierName prefers the storage tag since that is what offerings select on.
func (p storagePoolRecord) tierName() string {
	if tag := strings.TrimSpace(strings.Split(p.Tags, ",")[0]); tag != "" {
		return tag
	}
	return p.Name
}

const bytesPerMB = 1024 * 1024

func bytesToMB(b float64) float64 { return b / bytesPerMB }

func gibToMB(g float64) float64 { return g * 1024 }
