package registry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/de-tools/capacity-atlas/pkg/models/domain"
	"github.com/rs/zerolog"
)

// envPrefixes maps the variable prefix of each platform, e.g. VCD_SITES.
var envPrefixes = map[domain.PlatformType]string{
	domain.PlatformVCD:        "VCD",
	domain.PlatformCloudStack: "CLOUDSTACK",
	domain.PlatformProxmox:    "PROXMOX",
	domain.PlatformVeeam:      "VEEAM",
}

var siteKeyReplacer = strings.NewReplacer("-", "_", ".", "_", " ", "_")

// ParseEnv groups environment variables into site configurations:
//
//	VCD_SITES=fra1,ams1
//	VCD_FRA1_URL=https://vcd.fra1.example.com
//	VCD_FRA1_USERNAME=admin
//
// Sites whose variables cannot be parsed are reported in the joined error and
// left out of the result. Credentials are not validated here.
func ParseEnv(environ []string) ([]domain.SiteConfig, error) {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			env[k] = v
		}
	}

	var (
		configs []domain.SiteConfig
		errs    []error
	)
	for _, pt := range domain.PlatformTypes {
		prefix := envPrefixes[pt]
		for _, site := range strings.Split(env[prefix+"_SITES"], ",") {
			site = strings.TrimSpace(site)
			if site == "" {
				continue
			}
			cfg, err := siteFromEnv(env, pt, prefix, site)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			configs = append(configs, cfg)
		}
	}
	return configs, errors.Join(errs...)
}

func siteFromEnv(env map[string]string, pt domain.PlatformType, prefix, site string) (domain.SiteConfig, error) {
	base := prefix + "_" + strings.ToUpper(siteKeyReplacer.Replace(site)) + "_"
	get := func(name string) string { return strings.TrimSpace(env[base+name]) }

	cfg := domain.SiteConfig{
		SiteID:       site,
		PlatformType: pt,
		Name:         get("NAME"),
		Location:     get("LOCATION"),
		URL:          strings.TrimRight(get("URL"), "/"),
		Username:     get("USERNAME"),
		Password:     env[base+"PASSWORD"],
		Org:          get("ORG"),
		Realm:        get("REALM"),
		APIKey:       get("API_KEY"),
		SecretKey:    env[base+"SECRET_KEY"],
		Enabled:      true,
	}

	if v := get("INSECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("%w: %s: %sINSECURE: %w", ErrInvalidConfig, cfg.Key(), base, err)
		}
		cfg.Insecure = b
	}
	if v := get("MHZ_PER_CORE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return cfg, fmt.Errorf("%w: %s: %sMHZ_PER_CORE must be a positive number", ErrInvalidConfig, cfg.Key(), base)
		}
		cfg.MHzPerCore = f
	}
	return cfg, nil
}

// LoadFromEnv registers every valid site described by environ and returns
// how many were added. Invalid sites are logged and skipped.
func (r *Registry) LoadFromEnv(ctx context.Context, environ []string) int {
	logger := zerolog.Ctx(ctx)

	configs, err := ParseEnv(environ)
	if err != nil {
		logger.Warn().Err(err).Msg("skipping sites with malformed environment")
	}
	return r.addAll(ctx, configs, "env")
}

func (r *Registry) addAll(ctx context.Context, configs []domain.SiteConfig, source string) int {
	logger := zerolog.Ctx(ctx)

	added := 0
	for _, cfg := range configs {
		p, err := r.AddSiteFromConfig(ctx, cfg)
		if err != nil {
			logger.Warn().Err(err).Str("site", cfg.Key()).Str("source", source).Msg("skipping site")
			continue
		}
		if p != nil {
			added++
		}
	}
	return added
}
