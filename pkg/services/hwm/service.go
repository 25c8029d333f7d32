package hwm

import (
	"context"
	"fmt"
	"time"

	"github.com/de-tools/capacity-atlas/pkg/adapters"
	"github.com/de-tools/capacity-atlas/pkg/models/domain"
	"github.com/de-tools/capacity-atlas/pkg/store/duckdb/snapshot"
	"github.com/rs/zerolog"
)

// Service answers report queries from stored snapshots. It never writes.
type Service struct {
	store   snapshot.Store
	commits CommitLookup
}

func NewService(st snapshot.Store, commits CommitLookup) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("snapshot store cannot be nil")
	}
	if commits == nil {
		commits = StaticCommits{}
	}
	return &Service{store: st, commits: commits}, nil
}

func (s *Service) rows(ctx context.Context, period domain.TimePeriod) ([]domain.TenantPollSnapshot, error) {
	rows, err := s.store.ListTenantSnapshots(ctx, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("list tenant snapshots: %w", err)
	}
	zerolog.Ctx(ctx).Debug().
		Time("from", period.Start).
		Time("to", period.End).
		Int("rows", len(rows)).
		Msg("loaded tenant snapshots")
	return adapters.MapStoreTenantSnapshotsToDomain(rows), nil
}

func (s *Service) HighWaterMarkReport(ctx context.Context, year int, month time.Month) (*domain.HighWaterMarkReport, error) {
	period, err := MonthRange(year, month)
	if err != nil {
		return nil, err
	}
	rows, err := s.rows(ctx, period)
	if err != nil {
		return nil, err
	}
	return &domain.HighWaterMarkReport{
		Year:    year,
		Month:   month,
		Period:  period,
		Tenants: HighWaterMarks(rows),
	}, nil
}

func (s *Service) OverageReport(ctx context.Context, year int, month time.Month) (*domain.OverageReport, error) {
	period, err := MonthRange(year, month)
	if err != nil {
		return nil, err
	}
	return s.OverageReportForPeriod(ctx, period)
}

func (s *Service) OverageReportForPeriod(ctx context.Context, period domain.TimePeriod) (*domain.OverageReport, error) {
	if !period.End.After(period.Start) {
		return nil, fmt.Errorf("period end must be after start")
	}
	rows, err := s.rows(ctx, period)
	if err != nil {
		return nil, err
	}
	return &domain.OverageReport{
		Period:  period,
		Tenants: Overages(rows, s.commits),
	}, nil
}
