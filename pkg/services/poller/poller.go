// Package poller runs the snapshot cycle: fetch every site, persist one
// timestamped row per site and tenant, then apply retention.
//
// The running guard is process local. Two processes pointed at the same
// database will both poll.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/de-tools/capacity-atlas/pkg/adapters"
	"github.com/de-tools/capacity-atlas/pkg/metrics"
	"github.com/de-tools/capacity-atlas/pkg/models/domain"
	"github.com/de-tools/capacity-atlas/pkg/models/store"
	"github.com/de-tools/capacity-atlas/pkg/services/platform"
	"github.com/de-tools/capacity-atlas/pkg/store/duckdb/snapshot"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var ErrCycleInProgress = errors.New("a poll cycle is already running")

type Config struct {
	InitialDelay   time.Duration `mapstructure:"initial_delay"`
	Interval       time.Duration `mapstructure:"interval"`
	Retention      time.Duration `mapstructure:"retention"`
	AdapterTimeout time.Duration `mapstructure:"adapter_timeout"`
	Concurrency    int           `mapstructure:"concurrency"`
	Exclude        []string      `mapstructure:"exclude"`
}

func DefaultConfig() Config {
	return Config{
		InitialDelay:   30 * time.Second,
		Interval:       4 * time.Hour,
		Retention:      30 * 24 * time.Hour,
		AdapterTimeout: 2 * time.Minute,
		Concurrency:    8,
		Exclude:        []string{string(domain.PlatformVeeam)},
	}
}

// Sites is the view of the registry the poller needs.
type Sites interface {
	All() []platform.Platform
}

type Option func(*Poller)

func WithClock(now func() time.Time) Option {
	return func(p *Poller) { p.now = now }
}

type Poller struct {
	cfg     Config
	sites   Sites
	store   snapshot.Store
	metrics *metrics.Metrics
	now     func() time.Time

	running atomic.Bool
	wg      sync.WaitGroup

	mu           sync.RWMutex
	lastPolledAt *time.Time
	lastResult   *domain.PollResult
}

func New(cfg Config, sites Sites, st snapshot.Store, m *metrics.Metrics, opts ...Option) *Poller {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}
	if cfg.AdapterTimeout <= 0 {
		cfg.AdapterTimeout = def.AdapterTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if m == nil {
		m = metrics.New()
	}

	p := &Poller{
		cfg:     cfg,
		sites:   sites,
		store:   st,
		metrics: m,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls after the initial delay and then on every interval until ctx is
// done. A tick that fires while a cycle is still running is dropped.
func (p *Poller) Run(ctx context.Context) {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Dur("initial_delay", p.cfg.InitialDelay).
		Dur("interval", p.cfg.Interval).
		Msg("poller started")

	defer p.wg.Wait()

	timer := time.NewTimer(p.cfg.InitialDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		logger.Info().Msg("poller stopped")
		return
	case <-timer.C:
		p.trigger(ctx)
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("poller stopped")
			return
		case <-ticker.C:
			p.trigger(ctx)
		}
	}
}

func (p *Poller) trigger(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if _, err := p.PollNow(ctx); errors.Is(err, ErrCycleInProgress) {
			zerolog.Ctx(ctx).Warn().Msg("previous poll cycle still running, tick skipped")
		}
	}()
}

// PollNow runs one cycle synchronously. It returns ErrCycleInProgress without
// doing anything when another cycle holds the guard. The result is returned
// together with its error when a snapshot write failed.
func (p *Poller) PollNow(ctx context.Context) (*domain.PollResult, error) {
	if !p.running.CompareAndSwap(false, true) {
		p.metrics.SkippedCycles.Inc()
		return nil, ErrCycleInProgress
	}
	defer p.running.Store(false)

	res := p.cycle(ctx)

	p.mu.Lock()
	polledAt := res.PolledAt
	p.lastPolledAt = &polledAt
	p.lastResult = res
	p.mu.Unlock()

	return res, res.Err
}

func (p *Poller) Running() bool {
	return p.running.Load()
}

// LastPolledAt is nil until the first cycle of this process finishes.
func (p *Poller) LastPolledAt() *time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.lastPolledAt == nil {
		return nil
	}
	t := *p.lastPolledAt
	return &t
}

func (p *Poller) LastResult() *domain.PollResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.lastResult == nil {
		return nil
	}
	res := *p.lastResult
	return &res
}

type fetched struct {
	key     string
	summary *domain.SiteSummary
	err     error
}

func (p *Poller) cycle(ctx context.Context) *domain.PollResult {
	started := p.now()
	res := &domain.PollResult{
		CycleID:   uuid.NewString(),
		StartedAt: started,
		PolledAt:  started.UTC(),
	}

	logger := zerolog.Ctx(ctx).With().Str("cycle", res.CycleID).Logger()
	ctx = logger.WithContext(ctx)
	logger.Info().Time("polled_at", res.PolledAt).Msg("poll cycle started")

	var targets []platform.Platform
	for _, site := range p.sites.All() {
		if slices.Contains(p.cfg.Exclude, string(site.PlatformType())) {
			res.Skipped = append(res.Skipped, site.SiteInfo().CompositeID())
			continue
		}
		targets = append(targets, site)
	}

	results := p.fetch(ctx, targets)

	var storageErrs []error
	for _, r := range results {
		outcome := domain.SiteOutcome{SiteKey: r.key, Err: r.err}
		if r.err != nil {
			logger.Error().Err(r.err).Str("site", r.key).Msg("site fetch failed")
			p.metrics.SiteFailures.WithLabelValues(r.key).Inc()
			res.Failed++
			res.Sites = append(res.Sites, outcome)
			continue
		}

		outcome.Partial = r.summary.Partial
		outcome.TenantRows = len(r.summary.Tenants)
		if err := p.save(ctx, r.summary, res.PolledAt); err != nil {
			err = fmt.Errorf("store snapshot of %s: %w", r.key, err)
			logger.Error().Err(err).Str("site", r.key).Msg("snapshot write failed")
			storageErrs = append(storageErrs, err)
			outcome.Err = err
			outcome.TenantRows = 0
			res.Failed++
			res.Sites = append(res.Sites, outcome)
			continue
		}

		p.metrics.RowsWritten.WithLabelValues("site").Inc()
		p.metrics.RowsWritten.WithLabelValues("tenant").Add(float64(outcome.TenantRows))
		res.Succeeded++
		res.TenantRows += outcome.TenantRows
		res.Sites = append(res.Sites, outcome)
	}
	res.Err = errors.Join(storageErrs...)

	p.prune(ctx, res)

	res.FinishedAt = p.now()
	p.observe(res)

	logger.Info().
		Int("succeeded", res.Succeeded).
		Int("failed", res.Failed).
		Int("skipped", len(res.Skipped)).
		Int("tenant_rows", res.TenantRows).
		Dur("took", res.FinishedAt.Sub(res.StartedAt)).
		Msg("poll cycle finished")
	return res
}

// fetch calls every adapter concurrently, each under its own deadline. One
// failing site never cancels the others.
func (p *Poller) fetch(ctx context.Context, targets []platform.Platform) []fetched {
	results := make([]fetched, len(targets))

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	for i, site := range targets {
		g.Go(func() error {
			actx, cancel := context.WithTimeout(ctx, p.cfg.AdapterTimeout)
			defer cancel()

			summary, err := site.GetSiteSummary(actx)
			if err == nil && summary == nil {
				err = errors.New("adapter returned no summary")
			}
			results[i] = fetched{key: site.SiteInfo().CompositeID(), summary: summary, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Poller) save(ctx context.Context, summary *domain.SiteSummary, polledAt time.Time) error {
	payload, err := json.Marshal(adapters.MapSiteSummaryDomainToApi(*summary, false))
	if err != nil {
		return fmt.Errorf("encode site payload: %w", err)
	}
	site := adapters.MapSiteSummaryToDomainSnapshot(*summary, uuid.NewString(), polledAt, payload)

	tenants := make([]store.TenantSnapshot, 0, len(summary.Tenants))
	for _, t := range summary.Tenants {
		if t.SiteID == "" {
			t.SiteID = summary.Site.ID
		}
		if t.PlatformType == "" {
			t.PlatformType = summary.Site.PlatformType
		}
		payload, err := json.Marshal(adapters.MapTenantAllocationDomainToApi(t))
		if err != nil {
			return fmt.Errorf("encode tenant %s payload: %w", t.ID, err)
		}
		row := adapters.MapTenantAllocationToDomainSnapshot(t, uuid.NewString(), polledAt, payload)
		tenants = append(tenants, adapters.MapDomainTenantSnapshotToStore(row))
	}

	return p.store.SavePoll(ctx, adapters.MapDomainSiteSnapshotToStore(site), tenants)
}

// prune errors are logged and never fail the cycle.
func (p *Poller) prune(ctx context.Context, res *domain.PollResult) {
	cutoff := res.PolledAt.Add(-p.cfg.Retention)
	sites, tenants, err := p.store.PruneBefore(ctx, cutoff)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Time("cutoff", cutoff).Msg("retention prune failed")
		return
	}
	res.PrunedSites, res.PrunedTenants = sites, tenants
	p.metrics.RowsPruned.WithLabelValues("site").Add(float64(sites))
	p.metrics.RowsPruned.WithLabelValues("tenant").Add(float64(tenants))
	if sites > 0 || tenants > 0 {
		zerolog.Ctx(ctx).Info().
			Int64("sites", sites).
			Int64("tenants", tenants).
			Time("cutoff", cutoff).
			Msg("pruned expired snapshots")
	}
}

func (p *Poller) observe(res *domain.PollResult) {
	outcome := "ok"
	switch {
	case res.Err != nil:
		outcome = "storage_error"
	case res.Failed > 0:
		outcome = "partial"
	}
	p.metrics.CyclesTotal.WithLabelValues(outcome).Inc()
	p.metrics.CycleDuration.Observe(res.FinishedAt.Sub(res.StartedAt).Seconds())
	p.metrics.LastPollSeconds.Set(float64(res.PolledAt.Unix()))
}
