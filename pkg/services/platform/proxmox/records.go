package proxmox

import (
	"bytes"
	"strconv"
)

type nodeRecord struct {
	Node    string  `json:"node"`
	Status  string  `json:"status"`
	CPU     float64 `json:"cpu"`
	MaxCPU  int     `json:"maxcpu"`
	Mem     float64 `json:"mem"`
	MaxMem  float64 `json:"maxmem"`
	Disk    float64 `json:"disk"`
	MaxDisk float64 `json:"maxdisk"`
}

func (n nodeRecord) online() bool { return n.Status == "online" }

type nodeStatus struct {
	CPUInfo struct {
		MHz     number `json:"mhz"`
		CPUs    int    `json:"cpus"`
		Cores   int    `json:"cores"`
		Sockets int    `json:"sockets"`
	} `json:"cpuinfo"`
}

type vmRecord struct {
	VMID     int     `json:"vmid"`
	Name     string  `json:"name"`
	Status   string  `json:"status"`
	CPUs     float64 `json:"cpus"`
	MaxMem   float64 `json:"maxmem"`
	Template int     `json:"template"`
}

type storageRecord struct {
	Storage string  `json:"storage"`
	Type    string  `json:"type"`
	Total   float64 `json:"total"`
	Used    float64 `json:"used"`
	Avail   float64 `json:"avail"`
	Active  int     `json:"active"`
	Shared  int     `json:"shared"`
}

// number accepts both JSON numbers and numeric strings; cpuinfo.mhz is
// reported as a string.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*n = number(v)
	return nil
}

const bytesPerMB = 1024 * 1024

func bytesToMB(b float64) float64 { return b / bytesPerMB }
