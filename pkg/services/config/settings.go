// Package config loads process settings from an optional file with ATLAS_
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/de-tools/capacity-atlas/pkg/services/poller"
	"github.com/de-tools/capacity-atlas/pkg/store/duckdb"
	"github.com/de-tools/capacity-atlas/pkg/transport"
	"github.com/spf13/viper"
)

const EnvPrefix = "ATLAS"

type ServerSettings struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

type SitesSettings struct {
	// File is an optional ini file with [platform:site] sections.
	File       string  `mapstructure:"file"`
	MHzPerCore float64 `mapstructure:"mhz_per_core"`
}

type Settings struct {
	Server    ServerSettings     `mapstructure:"server"`
	Storage   duckdb.Settings    `mapstructure:"storage"`
	Poller    poller.Config      `mapstructure:"poller"`
	Transport transport.Settings `mapstructure:"transport"`
	Sites     SitesSettings      `mapstructure:"sites"`
	// CommitsFile holds the contracted tenant allocations used by overage reports.
	CommitsFile string `mapstructure:"commits_file"`
	LogLevel    string `mapstructure:"log_level"`
}

func setDefaults(v *viper.Viper) {
	pc := poller.DefaultConfig()
	tc := transport.DefaultSettings()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("storage.path", "capacity-atlas.db")
	v.SetDefault("storage.threads", 4)
	v.SetDefault("poller.initial_delay", pc.InitialDelay)
	v.SetDefault("poller.interval", pc.Interval)
	v.SetDefault("poller.retention", pc.Retention)
	v.SetDefault("poller.adapter_timeout", pc.AdapterTimeout)
	v.SetDefault("poller.concurrency", pc.Concurrency)
	v.SetDefault("poller.exclude", pc.Exclude)
	v.SetDefault("transport.timeout", tc.Timeout)
	v.SetDefault("transport.retry_max", tc.RetryMax)
	v.SetDefault("transport.retry_wait_min", tc.RetryWaitMin)
	v.SetDefault("transport.retry_wait_max", tc.RetryWaitMax)
	v.SetDefault("transport.insecure", false)
	v.SetDefault("sites.file", "")
	v.SetDefault("sites.mhz_per_core", 2000.0)
	v.SetDefault("commits_file", "")
	v.SetDefault("log_level", "info")
}

// LoadSettings reads path when it is not empty. Every key can be overridden
// from the environment, e.g. ATLAS_POLLER_INTERVAL=1h.
func LoadSettings(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unprefixed names kept for existing .env files.
	_ = v.BindEnv("server.host", EnvPrefix+"_SERVER_HOST", "SERVER_HOST")
	_ = v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "SERVER_PORT")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) Validate() error {
	var errs []error
	if s.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if s.Storage.DbPath == "" {
		errs = append(errs, errors.New("storage.path is required"))
	}
	if s.Poller.Interval <= 0 {
		errs = append(errs, errors.New("poller.interval must be positive"))
	}
	if s.Poller.Retention <= 0 {
		errs = append(errs, errors.New("poller.retention must be positive"))
	}
	if s.Sites.MHzPerCore <= 0 {
		errs = append(errs, errors.New("sites.mhz_per_core must be positive"))
	}
	return errors.Join(errs...)
}
