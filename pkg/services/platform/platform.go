package platform

import (
	"context"
	"net/http"
	"time"

	"github.com/de-tools/capacity-atlas/pkg/models/domain"
)

const (
	// DefaultMHzPerCore is used by vendors that only report core counts.
	DefaultMHzPerCore = 2000.0
	// ProbeTimeout bounds TestConnection.
	ProbeTimeout = 10 * time.Second
)

// Platform is the capability contract every vendor adapter implements.
type Platform interface {
	PlatformType() domain.PlatformType
	// SiteInfo returns the identity of the site together with the status
	// observed by the last authentication attempt. It never performs I/O.
	SiteInfo() domain.SiteInfo
	// Authenticate establishes or refreshes the session. It is a no-op when the
	// cached credential is still valid.
	Authenticate(ctx context.Context) error
	// TestConnection reports whether authentication succeeds; it never returns an error.
	TestConnection(ctx context.Context) bool
	GetSiteSummary(ctx context.Context) (*domain.SiteSummary, error)
	GetTenantAllocations(ctx context.Context) ([]domain.TenantAllocation, error)
	// GetTenantAllocation returns nil, nil when the tenant does not exist.
	GetTenantAllocation(ctx context.Context, id string) (*domain.TenantAllocation, error)
}

// Options carry the process-wide collaborators of an adapter.
type Options struct {
	HTTPClient *http.Client
	Clock      func() time.Time
	MHzPerCore float64
}

// Factory builds an adapter for one site configuration.
type Factory func(cfg domain.SiteConfig, opts Options) (Platform, error)

func (o Options) Now() time.Time {
	if o.Clock != nil {
		return o.Clock()
	}
	return time.Now()
}

// CoreMHz resolves the MHz-per-core constant for a site, preferring the
// site override over the process default.
func (o Options) CoreMHz(cfg domain.SiteConfig) float64 {
	if cfg.MHzPerCore > 0 {
		return cfg.MHzPerCore
	}
	if o.MHzPerCore > 0 {
		return o.MHzPerCore
	}
	return DefaultMHzPerCore
}

func (o Options) Client() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return http.DefaultClient
}

// ProbeConnection is the shared TestConnection implementation.
func ProbeConnection(ctx context.Context, p Platform) bool {
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()
	return p.Authenticate(ctx) == nil
}
