package terminal

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/de-tools/capacity-atlas/pkg/models/domain"
	"github.com/de-tools/capacity-atlas/pkg/runtime/terminal/commands"
	"github.com/de-tools/capacity-atlas/pkg/services/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPoller struct {
	res *domain.PollResult
	err error
}

func (s stubPoller) PollNow(context.Context) (*domain.PollResult, error) {
	return s.res, s.err
}

type stubReports struct {
	year  int
	month time.Month
}

func (s *stubReports) HighWaterMarkReport(_ context.Context, year int, month time.Month) (*domain.HighWaterMarkReport, error) {
	s.year, s.month = year, month
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return &domain.HighWaterMarkReport{
		Year:   year,
		Month:  month,
		Period: domain.TimePeriod{Start: start, End: start.AddDate(0, 1, 0)},
		Tenants: []domain.TenantHighWaterMark{{
			SiteID: "fra1", TenantID: "a", TenantName: "vdc-a", SnapshotCount: 3, MaxCPUUsed: 900,
			Tiers: []domain.TierHighWaterMark{{Name: "HPS", MaxUsed: 6000}},
		}},
	}, nil
}

func (s *stubReports) OverageReport(_ context.Context, year int, month time.Month) (*domain.OverageReport, error) {
	s.year, s.month = year, month
	return &domain.OverageReport{Tenants: []domain.TenantOverage{{
		SiteID: "fra1", TenantName: "vdc-a",
		CPU: domain.DimensionOverage{Commit: 100, Count: 2, MaxOverage: 50},
	}}}, nil
}

type emptySites struct{}

func (emptySites) All() []platform.Platform { return nil }

type fixture struct {
	out     *bytes.Buffer
	reports *stubReports
	closed  int
	cli     *CLI
}

func setupFixture(t *testing.T, p commands.Poller) *fixture {
	f := &fixture{out: &bytes.Buffer{}, reports: &stubReports{}}
	f.cli = NewCLI(Options{
		Output: f.out,
		Setup: func(context.Context, string) (*commands.Env, func() error, error) {
			return &commands.Env{
				Sites:   emptySites{},
				Poller:  p,
				Reports: f.reports,
			}, func() error { f.closed++; return nil }, nil
		},
	})
	return f
}

func TestCLI_Poll(t *testing.T) {
	f := setupFixture(t, stubPoller{res: &domain.PollResult{
		CycleID:    "c1",
		Succeeded:  1,
		TenantRows: 2,
		Sites:      []domain.SiteOutcome{{SiteKey: "vcd:fra1", TenantRows: 2}},
		Skipped:    []string{"veeam:backup"},
	}})
	f.cli.SetArgs([]string{"poll"})

	require.NoError(t, f.cli.Execute(context.Background()))
	assert.Contains(t, f.out.String(), "Cycle c1")
	assert.Contains(t, f.out.String(), "- vcd:fra1: 2 tenants")
	assert.Contains(t, f.out.String(), "- veeam:backup: skipped")
	assert.Equal(t, 1, f.closed)
}

func TestCLI_PollFailureStillCloses(t *testing.T) {
	f := setupFixture(t, stubPoller{err: errors.New("a poll cycle is already running")})
	f.cli.SetArgs([]string{"poll"})

	err := f.cli.Execute(context.Background())
	assert.ErrorContains(t, err, "already running")
	assert.Equal(t, 1, f.closed)
}

func TestCLI_HighWaterMarks(t *testing.T) {
	f := setupFixture(t, stubPoller{})
	f.cli.SetArgs([]string{"hwm", "--year", "2025", "--month", "3"})

	require.NoError(t, f.cli.Execute(context.Background()))
	assert.Equal(t, 2025, f.reports.year)
	assert.Equal(t, time.March, f.reports.month)
	out := f.out.String()
	assert.Contains(t, out, "High-water marks 2025-03")
	assert.Contains(t, out, "vdc-a")
	assert.Contains(t, out, "HPS=6000")
}

func TestCLI_OverageRejectsInvalidMonth(t *testing.T) {
	f := setupFixture(t, stubPoller{})
	f.cli.SetArgs([]string{"overage", "--month", "0"})

	assert.Error(t, f.cli.Execute(context.Background()))
}

func TestCLI_Overage(t *testing.T) {
	f := setupFixture(t, stubPoller{})
	f.cli.SetArgs([]string{"overage", "--year", "2025", "--month", "2"})

	require.NoError(t, f.cli.Execute(context.Background()))
	assert.Equal(t, time.February, f.reports.month)
	assert.Contains(t, f.out.String(), "vdc-a")
}

func TestCLI_SitesEmpty(t *testing.T) {
	f := setupFixture(t, stubPoller{})
	f.cli.SetArgs([]string{"sites"})

	require.NoError(t, f.cli.Execute(context.Background()))
	assert.Contains(t, f.out.String(), "No sites configured")
}
