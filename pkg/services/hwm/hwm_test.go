package hwm

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/de-tools/capacity-atlas/pkg/models/domain"
	"github.com/de-tools/capacity-atlas/pkg/models/store"
	"github.com/de-tools/capacity-atlas/pkg/store/duckdb"
	"github.com/de-tools/capacity-atlas/pkg/store/duckdb/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var march = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func row(tenant string, at time.Time, cpu, ram float64) domain.TenantPollSnapshot {
	return domain.TenantPollSnapshot{
		SiteID:     "fra1",
		TenantID:   tenant,
		TenantName: "name-" + tenant,
		PolledAt:   at,
		CPUUsed:    cpu,
		RAMUsed:    ram,
	}
}

func TestMonthRange(t *testing.T) {
	p, err := MonthRange(2024, time.December)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), p.Start)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), p.End)

	_, err = MonthRange(2024, 13)
	assert.Error(t, err)
}

func TestHighWaterMarks_TrueMaximumRegardlessOfOrder(t *testing.T) {
	rows := []domain.TenantPollSnapshot{
		row("a", march.Add(8*time.Hour), 300, 2048),
		row("a", march.Add(4*time.Hour), 900, 1024),
		row("b", march, 10, 10),
		row("a", march, 500, 4096),
	}
	rows[0].IPAllocated = 4
	rows[1].IPAllocated = 8
	rows[0].StorageUsed = 7000
	rows[0].Tiers = []domain.StorageTier{{Name: "hps", Used: 5000}, {Name: "SPS", Used: 100}}
	rows[3].Tiers = []domain.StorageTier{{Name: "HPS", Used: 6000}}

	res := HighWaterMarks(rows)
	require.Len(t, res, 2)

	a := res[0]
	assert.Equal(t, "a", a.TenantID)
	assert.Equal(t, 3, a.SnapshotCount)
	assert.Equal(t, 900.0, a.MaxCPUUsed)
	assert.Equal(t, 4096.0, a.MaxRAMUsed)
	assert.Equal(t, 7000.0, a.MaxStorageUsed)
	assert.Equal(t, 8, a.MaxIPAllocated)
	assert.Equal(t, []domain.TierHighWaterMark{
		{Name: "HPS", MaxUsed: 6000},
		{Name: "SPS", MaxUsed: 100},
	}, a.Tiers)

	assert.Equal(t, "b", res[1].TenantID)
	assert.Equal(t, 1, res[1].SnapshotCount)
}

func TestHighWaterMarks_Empty(t *testing.T) {
	assert.Empty(t, HighWaterMarks(nil))
}

func TestOverages_CountsBreachesAndMaxMagnitude(t *testing.T) {
	var rows []domain.TenantPollSnapshot
	for i, used := range []float64{80, 120, 90, 150} {
		rows = append(rows, row("a", march.Add(time.Duration(i)*4*time.Hour), used, 10))
	}
	commits := StaticCommits{
		CommitKey("fra1", "a"): {CPUMHz: 100, RAMMB: 10},
	}

	res := Overages(rows, commits)
	require.Len(t, res, 1)
	cpu := res[0].CPU
	assert.Equal(t, 2, cpu.Count)
	assert.Equal(t, 50.0, cpu.MaxOverage)
	require.NotNil(t, cpu.MaxOverageAt)
	assert.True(t, cpu.MaxOverageAt.Equal(march.Add(12*time.Hour)))

	// Used equal to the commit is not a breach.
	assert.Equal(t, 0, res[0].RAM.Count)
	assert.Nil(t, res[0].RAM.MaxOverageAt)
}

func TestOverages_SkipsTenantsWithoutCommit(t *testing.T) {
	rows := []domain.TenantPollSnapshot{row("a", march, 500, 500), row("b", march, 500, 500)}
	commits := StaticCommits{CommitKey("fra1", "b"): {CPUMHz: 100}}

	res := Overages(rows, commits)
	require.Len(t, res, 1)
	assert.Equal(t, "b", res[0].TenantID)
	assert.Equal(t, 1, res[0].CPU.Count)
	assert.Equal(t, 0, res[0].RAM.Count, "uncontracted dimension never breaches")
}

func TestLoadCommits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commits.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
commits:
  - site: fra1
    tenant: a
    cpu_mhz: 20000
    ram_mb: 65536
    storage:
      hps: 300000
    ips: 8
`), 0o600))

	commits, err := LoadCommits(path)
	require.NoError(t, err)

	level, ok := commits.Commit("fra1", "a")
	require.True(t, ok)
	assert.Equal(t, 20000.0, level.CPUMHz)
	assert.Equal(t, 65536.0, level.RAMMB)
	assert.Equal(t, 300000.0, level.StorageByTier["HPS"])
	assert.Equal(t, 8, level.IPs)

	_, ok = commits.Commit("fra1", "missing")
	assert.False(t, ok)
}

func TestLoadCommits_RejectsIncompleteEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commits.yaml")
	require.NoError(t, os.WriteFile(path, []byte("commits:\n  - site: fra1\n"), 0o600))

	_, err := LoadCommits(path)
	assert.Error(t, err)
}

func TestService_ReadsOnlyRequestedMonth(t *testing.T) {
	db, err := duckdb.NewDB(duckdb.Settings{DbPath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})
	st, err := snapshot.NewStore(db)
	require.NoError(t, err)

	ctx := context.Background()
	insert := func(id string, at time.Time, cpu float64) {
		require.NoError(t, st.InsertTenantSnapshots(ctx, []store.TenantSnapshot{{
			ID: id, SiteID: "fra1", PlatformType: "vcd", TenantID: "a", PolledAt: at, CPUUsed: cpu,
		}}))
	}
	insert("feb", march.Add(-time.Second), 9999)
	insert("m1", march, 120)
	insert("m2", march.Add(24*time.Hour), 150)
	insert("apr", march.AddDate(0, 1, 0), 9999)

	svc, err := NewService(st, StaticCommits{CommitKey("fra1", "a"): {CPUMHz: 100}})
	require.NoError(t, err)

	report, err := svc.HighWaterMarkReport(ctx, 2025, time.March)
	require.NoError(t, err)
	require.Len(t, report.Tenants, 1)
	assert.Equal(t, 2, report.Tenants[0].SnapshotCount)
	assert.Equal(t, 150.0, report.Tenants[0].MaxCPUUsed)

	overages, err := svc.OverageReport(ctx, 2025, time.March)
	require.NoError(t, err)
	require.Len(t, overages.Tenants, 1)
	assert.Equal(t, 2, overages.Tenants[0].CPU.Count)
	assert.Equal(t, 50.0, overages.Tenants[0].CPU.MaxOverage)
}

func TestNewService_RequiresStore(t *testing.T) {
	_, err := NewService(nil, nil)
	assert.Error(t, err)
}
