package domain

// SiteConfig is one configured connection to a platform instance, loaded from
// the environment or from persisted configuration.
type SiteConfig struct {
	SiteID       string
	PlatformType PlatformType
	Name         string
	Location     string
	URL          string
	Username     string
	Password     string
	Org          string
	Realm        string
	APIKey       string
	SecretKey    string
	Insecure     bool
	Enabled      bool
	// MHzPerCore converts core counts into MHz for vendors that only report
	// cores. Zero means the process-wide default.
	MHzPerCore float64
}

func (c SiteConfig) Key() string {
	return CompositeID(c.PlatformType, c.SiteID)
}

func (c SiteConfig) Info() SiteInfo {
	name := c.Name
	if name == "" {
		name = c.SiteID
	}
	return SiteInfo{
		ID:           c.SiteID,
		Name:         name,
		Location:     c.Location,
		URL:          c.URL,
		PlatformType: c.PlatformType,
		Status:       SiteStatusUnknown,
	}
}
