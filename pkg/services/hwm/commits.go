package hwm

import (
	"fmt"
	"strings"

	"github.com/de-tools/capacity-atlas/pkg/models/domain"
	"github.com/spf13/viper"
)

// CommitLookup resolves the contracted allocation of a tenant.
type CommitLookup interface {
	Commit(siteID, tenantID string) (domain.CommitLevel, bool)
}

// StaticCommits is an in-memory lookup keyed by "siteID/tenantID".
type StaticCommits map[string]domain.CommitLevel

func CommitKey(siteID, tenantID string) string {
	return siteID + "/" + tenantID
}

func (c StaticCommits) Commit(siteID, tenantID string) (domain.CommitLevel, bool) {
	level, ok := c[CommitKey(siteID, tenantID)]
	return level, ok
}

type commitEntry struct {
	Site    string             `mapstructure:"site"`
	Tenant  string             `mapstructure:"tenant"`
	CPUMHz  float64            `mapstructure:"cpu_mhz"`
	RAMMB   float64            `mapstructure:"ram_mb"`
	Storage map[string]float64 `mapstructure:"storage"`
	IPs     int                `mapstructure:"ips"`
}

// LoadCommits reads commit levels from a YAML, JSON or TOML file:
//
//	commits:
//	  - site: fra1
//	    tenant: 7c1e...
//	    cpu_mhz: 20000
//	    ram_mb: 65536
//	    storage: {hps: 300000}
func LoadCommits(path string) (StaticCommits, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read commit file %s: %w", path, err)
	}

	var entries []commitEntry
	if err := v.UnmarshalKey("commits", &entries); err != nil {
		return nil, fmt.Errorf("decode commit file %s: %w", path, err)
	}

	res := make(StaticCommits, len(entries))
	for i, e := range entries {
		if e.Site == "" || e.Tenant == "" {
			return nil, fmt.Errorf("commit entry %d: site and tenant are required", i)
		}
		storage := make(map[string]float64, len(e.Storage))
		for tier, limit := range e.Storage {
			storage[strings.ToUpper(tier)] = limit
		}
		res[CommitKey(e.Site, e.Tenant)] = domain.CommitLevel{
			CPUMHz:        e.CPUMHz,
			RAMMB:         e.RAMMB,
			StorageByTier: storage,
			IPs:           e.IPs,
		}
	}
	return res, nil
}
