package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/de-tools/capacity-atlas/pkg/models/domain"
	"github.com/rs/zerolog"
	"gopkg.in/ini.v1"
)

// SiteConfigSource yields persisted site configurations.
type SiteConfigSource interface {
	SiteConfigs(ctx context.Context) ([]domain.SiteConfig, error)
}

type iniSource struct {
	cfg *ini.File
}

// NewINISource reads site records from an ini file with one section per
// site, named "<platform>:<site id>":
//
//	[proxmox:lab]
//	url = https://pve.lab:8006
//	username = monitor
//	realm = pve
//	password = ...
func NewINISource(path string) (SiteConfigSource, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	return &iniSource{cfg: cfg}, nil
}

func (s *iniSource) SiteConfigs(_ context.Context) ([]domain.SiteConfig, error) {
	var (
		configs []domain.SiteConfig
		errs    []error
	)
	for _, section := range s.cfg.Sections() {
		if len(section.Keys()) == 0 {
			continue
		}
		prefix, id, ok := strings.Cut(section.Name(), ":")
		if !ok || id == "" {
			errs = append(errs, fmt.Errorf("%w: section %q is not <platform>:<site>", ErrInvalidConfig, section.Name()))
			continue
		}
		pt, err := domain.ParsePlatformType(prefix)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: section %q: %w", ErrUnknownPlatform, section.Name(), err))
			continue
		}

		configs = append(configs, domain.SiteConfig{
			SiteID:       id,
			PlatformType: pt,
			Name:         section.Key("name").String(),
			Location:     section.Key("location").String(),
			URL:          strings.TrimRight(section.Key("url").String(), "/"),
			Username:     section.Key("username").String(),
			Password:     section.Key("password").String(),
			Org:          section.Key("org").String(),
			Realm:        section.Key("realm").String(),
			APIKey:       section.Key("api_key").String(),
			SecretKey:    section.Key("secret_key").String(),
			Insecure:     section.Key("insecure").MustBool(false),
			Enabled:      section.Key("enabled").MustBool(true),
			MHzPerCore:   section.Key("mhz_per_core").MustFloat64(0),
		})
	}
	return configs, errors.Join(errs...)
}

// LoadFromSource registers the sites of src and returns how many were added.
// Records that cannot be read or validated are logged and skipped.
func (r *Registry) LoadFromSource(ctx context.Context, src SiteConfigSource) (int, error) {
	configs, err := src.SiteConfigs(ctx)
	if err != nil {
		if len(configs) == 0 {
			return 0, err
		}
		zerolog.Ctx(ctx).Warn().Err(err).Msg("skipping unreadable site records")
	}
	return r.addAll(ctx, configs, "source"), nil
}
