package vcd

import (
	"context"
	"net/url"
	"path"
	"strconv"
)

const pageSize = 128

type queryPage[T any] struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
	Record   []T `json:"record"`
}

type orgVdcRecord struct {
	Href               string  `json:"href"`
	Name               string  `json:"name"`
	OrgName            string  `json:"orgName"`
	IsEnabled          bool    `json:"isEnabled"`
	CPUAllocationMhz   float64 `json:"cpuAllocationMhz"`
	CPULimitMhz        float64 `json:"cpuLimitMhz"`
	CPUUsedMhz         float64 `json:"cpuUsedMhz"`
	MemoryAllocationMB float64 `json:"memoryAllocationMB"`
	MemoryLimitMB      float64 `json:"memoryLimitMB"`
	MemoryUsedMB       float64 `json:"memoryUsedMB"`
	StorageLimitMB     float64 `json:"storageLimitMB"`
	StorageUsedMB      float64 `json:"storageUsedMB"`
	NumberOfVMs        int     `json:"numberOfVMs"`
	NumberOfRunningVMs int     `json:"numberOfRunningVMs"`
}

func (r orgVdcRecord) id() string {
	return hrefID(r.Href)
}

type providerVdcRecord struct {
	Name               string  `json:"name"`
	CPUAllocationMhz   float64 `json:"cpuAllocationMhz"`
	CPULimitMhz        float64 `json:"cpuLimitMhz"`
	CPUUsedMhz         float64 `json:"cpuUsedMhz"`
	MemoryAllocationMB float64 `json:"memoryAllocationMB"`
	MemoryLimitMB      float64 `json:"memoryLimitMB"`
	MemoryUsedMB       float64 `json:"memoryUsedMB"`
	StorageLimitMB     float64 `json:"storageLimitMB"`
	StorageUsedMB      float64 `json:"storageUsedMB"`
}

type storageProfileRecord struct {
	Name           string  `json:"name"`
	Vdc            string  `json:"vdc"`
	IsEnabled      bool    `json:"isEnabled"`
	StorageLimitMB float64 `json:"storageLimitMB"`
	StorageUsedMB  float64 `json:"storageUsedMB"`
}

type organizationRecord struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

type cloudAPIPage[T any] struct {
	ResultTotal int `json:"resultTotal"`
	PageCount   int `json:"pageCount"`
	Page        int `json:"page"`
	Values      []T `json:"values"`
}

type entityRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type edgeGateway struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	OrgVdc  entityRef `json:"orgVdc"`
	Uplinks []struct {
		UplinkName string `json:"uplinkName"`
		Subnets    struct {
			Values []struct {
				TotalIPCount int `json:"totalIpCount"`
				UsedIPCount  int `json:"usedIpCount"`
			} `json:"values"`
		} `json:"subnets"`
	} `json:"edgeGatewayUplinks"`
}

// hrefID extracts the trailing UUID of a legacy API href.
func hrefID(href string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return path.Base(href)
	}
	return path.Base(u.Path)
}

// urnID extracts the UUID of a cloudapi URN such as urn:vcloud:vdc:<uuid>.
func urnID(urn string) string {
	for i := len(urn) - 1; i >= 0; i-- {
		if urn[i] == ':' {
			return urn[i+1:]
		}
	}
	return urn
}

func queryAll[T any](ctx context.Context, c *client, typ string) ([]T, error) {
	var out []T
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("type", typ)
		q.Set("format", "records")
		q.Set("page", strconv.Itoa(page))
		q.Set("pageSize", strconv.Itoa(pageSize))

		var resp queryPage[T]
		if err := c.get(ctx, "/api/query", q, &resp); err != nil {
			return nil, err
		}
		out = append(out, resp.Record...)
		if len(resp.Record) == 0 || len(out) >= resp.Total {
			return out, nil
		}
	}
}

func cloudAPIAll[T any](ctx context.Context, c *client, p string) ([]T, error) {
	var out []T
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("pageSize", strconv.Itoa(pageSize))

		var resp cloudAPIPage[T]
		if err := c.get(ctx, p, q, &resp); err != nil {
			return nil, err
		}
		out = append(out, resp.Values...)
		if len(resp.Values) == 0 || page >= resp.PageCount {
			return out, nil
		}
	}
}
