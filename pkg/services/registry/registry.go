// Package registry keeps the live adapter instance of every configured site,
// keyed by "platformType:siteId".
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/de-tools/capacity-atlas/pkg/models/domain"
	"github.com/de-tools/capacity-atlas/pkg/services/platform"
	"github.com/de-tools/capacity-atlas/pkg/services/platform/cloudstack"
	"github.com/de-tools/capacity-atlas/pkg/services/platform/proxmox"
	"github.com/de-tools/capacity-atlas/pkg/services/platform/vcd"
	"github.com/de-tools/capacity-atlas/pkg/services/platform/veeam"
	"github.com/de-tools/capacity-atlas/pkg/transport"
	"github.com/rs/zerolog"
)

var (
	ErrUnknownPlatform = errors.New("unknown platform")
	ErrInvalidConfig   = errors.New("invalid site config")
)

// Options configure the collaborators handed to every adapter.
type Options struct {
	Logger     zerolog.Logger
	Transport  transport.Settings
	MHzPerCore float64
	Clock      func() time.Time
}

type Registry struct {
	opts Options

	mu        sync.RWMutex
	factories map[domain.PlatformType]platform.Factory
	adapters  map[string]platform.Platform
}

// NewRegistry returns a registry with the four built-in platforms registered.
func NewRegistry(opts Options) *Registry {
	r := &Registry{
		opts:      opts,
		factories: make(map[domain.PlatformType]platform.Factory),
		adapters:  make(map[string]platform.Platform),
	}
	r.factories[domain.PlatformVCD] = vcd.Factory
	r.factories[domain.PlatformCloudStack] = cloudstack.Factory
	r.factories[domain.PlatformProxmox] = proxmox.Factory
	r.factories[domain.PlatformVeeam] = veeam.Factory
	return r
}

// Register replaces the factory of a platform.
func (r *Registry) Register(pt domain.PlatformType, factory platform.Factory) error {
	if pt == "" {
		return fmt.Errorf("platform name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[pt] = factory
	return nil
}

// Validate checks the fields every platform needs before an adapter is built.
func Validate(cfg domain.SiteConfig) error {
	var missing []string
	if cfg.SiteID == "" {
		missing = append(missing, "site id")
	}
	if cfg.URL == "" {
		missing = append(missing, "url")
	}
	switch cfg.PlatformType {
	case domain.PlatformCloudStack:
		if cfg.APIKey == "" {
			missing = append(missing, "api key")
		}
		if cfg.SecretKey == "" {
			missing = append(missing, "secret key")
		}
	case domain.PlatformVCD, domain.PlatformProxmox, domain.PlatformVeeam:
		if cfg.Username == "" {
			missing = append(missing, "username")
		}
		if cfg.Password == "" {
			missing = append(missing, "password")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPlatform, cfg.PlatformType)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s: missing %s", ErrInvalidConfig, cfg.Key(), strings.Join(missing, ", "))
	}
	return nil
}

// AddSiteFromConfig builds the adapter of a site and stores it under its
// key, replacing (and so dropping the session of) any previous instance. A
// disabled config removes the site and returns nil, nil.
func (r *Registry) AddSiteFromConfig(ctx context.Context, cfg domain.SiteConfig) (platform.Platform, error) {
	logger := zerolog.Ctx(ctx)
	key := cfg.Key()

	if !cfg.Enabled {
		if r.Remove(key) {
			logger.Info().Str("site", key).Msg("site disabled, adapter removed")
		}
		return nil, nil
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	r.mu.RLock()
	factory, ok := r.factories[cfg.PlatformType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, cfg.PlatformType)
	}

	settings := r.opts.Transport
	settings.Insecure = settings.Insecure || cfg.Insecure
	adapter, err := factory(cfg, platform.Options{
		HTTPClient: transport.NewClient(r.opts.Logger.With().Str("site", key).Logger(), settings),
		Clock:      r.opts.Clock,
		MHzPerCore: r.opts.MHzPerCore,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
	}

	r.mu.Lock()
	_, replaced := r.adapters[key]
	r.adapters[key] = adapter
	r.mu.Unlock()

	logger.Info().Str("site", key).Bool("replaced", replaced).Msg("site adapter registered")
	return adapter, nil
}

// Remove drops the adapter stored under key and reports whether one existed.
func (r *Registry) Remove(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.adapters[key]
	delete(r.adapters, key)
	return ok
}

func (r *Registry) Get(key string) (platform.Platform, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.adapters[key]
	return p, ok
}

// BySiteID finds a site by its bare id, trying every platform prefix in order.
func (r *Registry) BySiteID(id string) (platform.Platform, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, pt := range domain.PlatformTypes {
		if p, ok := r.adapters[domain.CompositeID(pt, id)]; ok {
			return p, true
		}
	}
	return nil, false
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.adapters))
	for k := range r.adapters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// All returns every adapter ordered by key.
func (r *Registry) All() []platform.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sorted(func(platform.Platform) bool { return true })
}

func (r *Registry) ByPlatform(pt domain.PlatformType) []platform.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sorted(func(p platform.Platform) bool { return p.PlatformType() == pt })
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.adapters)
}

// sorted must be called with the read lock held.
func (r *Registry) sorted(keep func(platform.Platform) bool) []platform.Platform {
	keys := make([]string, 0, len(r.adapters))
	for k, p := range r.adapters {
		if keep(p) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]platform.Platform, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.adapters[k])
	}
	return out
}
