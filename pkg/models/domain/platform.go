package domain

import "fmt"

type PlatformType string

const (
	PlatformVCD        PlatformType = "vcd"
	PlatformCloudStack PlatformType = "cloudstack"
	PlatformProxmox    PlatformType = "proxmox"
	PlatformVeeam      PlatformType = "veeam"
)

// PlatformTypes lists every supported platform in a stable order.
var PlatformTypes = []PlatformType{
	PlatformVCD,
	PlatformCloudStack,
	PlatformProxmox,
	PlatformVeeam,
}

func ParsePlatformType(s string) (PlatformType, error) {
	for _, pt := range PlatformTypes {
		if string(pt) == s {
			return pt, nil
		}
	}
	return "", fmt.Errorf("unknown platform type: %q", s)
}

type SiteStatus string

const (
	SiteStatusUnknown    SiteStatus = "unknown"
	SiteStatusOnline     SiteStatus = "online"
	SiteStatusOffline    SiteStatus = "offline"
	SiteStatusAuthFailed SiteStatus = "auth_failed"
)

type SiteInfo struct {
	ID           string
	Name         string
	Location     string
	URL          string
	PlatformType PlatformType
	Status       SiteStatus
}

// CompositeID is the registry key of the site, e.g. "vcd:fra1".
func (s SiteInfo) CompositeID() string {
	return CompositeID(s.PlatformType, s.ID)
}

func CompositeID(pt PlatformType, siteID string) string {
	return fmt.Sprintf("%s:%s", pt, siteID)
}
