package veeam

import (
	"strings"
	"time"
)

type pagination struct {
	Total int `json:"total"`
	Count int `json:"count"`
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
}

type page[T any] struct {
	Data       []T        `json:"data"`
	Pagination pagination `json:"pagination"`
}

type repositoryState struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	CapacityGB  float64 `json:"capacityGB"`
	FreeGB      float64 `json:"freeGB"`
	UsedSpaceGB float64 `json:"usedSpaceGB"`
}

type backupObject struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Type               string `json:"type"`
	PlatformName       string `json:"platformName"`
	Path               string `json:"path"`
	RestorePointsCount int    `json:"restorePointsCount"`
}

type session struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	EndTime *time.Time `json:"endTime"`
}

const (
	defaultOrganization = "Default"
	cloudDirector       = "CloudDirector"
)

// organization extracts the tenant from a Cloud Director object path
// ("<vcd host>/<org>/<vdc>/<vapp>/<vm>"). Other objects belong to Default.
func (o backupObject) organization() string {
	if !strings.EqualFold(o.PlatformName, cloudDirector) {
		return defaultOrganization
	}
	parts := strings.Split(strings.Trim(o.Path, "/"), "/")
	if len(parts) < 2 || parts[1] == "" {
		return defaultOrganization
	}
	return parts[1]
}

func gbToMB(gb float64) float64 { return gb * 1024 }
