package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/de-tools/capacity-atlas/pkg/models/store"
	"github.com/de-tools/capacity-atlas/pkg/store/duckdb"
	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db    *sql.DB
	store Store
}

func setupTestDB(t *testing.T) *sql.DB {
	db, err := duckdb.NewDB(duckdb.Settings{DbPath: ":memory:"})
	require.NoError(t, err)
	return db
}

func setupFixture(t *testing.T) *fixture {
	db := setupTestDB(t)
	s, err := NewStore(db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return &fixture{
		db:    db,
		store: s,
	}
}

var base = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

func siteRow(id, siteID string, at time.Time) store.SiteSnapshot {
	return store.SiteSnapshot{
		ID:             id,
		SiteID:         siteID,
		SiteName:       "Frankfurt 1",
		PlatformType:   "vcd",
		PolledAt:       at,
		CPUCapacity:    100000,
		CPUAllocated:   15000,
		CPUUsed:        5000,
		RAMCapacity:    262144,
		RAMAllocated:   40960,
		RAMUsed:        18432,
		StorageLimit:   2000000,
		StorageUsed:    130000,
		IPTotal:        8,
		IPAllocated:    8,
		IPUsed:         3,
		IPFree:         5,
		TenantCount:    2,
		VMCount:        7,
		RunningVMCount: 5,
		RawPayload:     `{"site":"fra1"}`,
	}
}

func tenantRow(id, siteID, tenantID string, at time.Time) store.TenantSnapshot {
	return store.TenantSnapshot{
		ID:             id,
		SiteID:         siteID,
		PlatformType:   "vcd",
		TenantID:       tenantID,
		TenantName:     "vdc-" + tenantID,
		OrgName:        "acme",
		PolledAt:       at,
		VMCount:        5,
		RunningVMCount: 4,
		CPUAllocated:   10000,
		CPUUsed:        4000,
		RAMAllocated:   32768,
		RAMUsed:        16384,
		StorageLimit:   500000,
		StorageUsed:    120000,
		Tiers: []store.TierUsage{
			{Name: "HPS", Limit: 300000, Used: 100000},
			{Name: "SPS", Limit: 200000, Used: 20000},
		},
		IPAllocated: 8,
	}
}

func TestNewStore_RequiresDB(t *testing.T) {
	_, err := NewStore(nil)
	assert.Error(t, err)
}

func TestSnapshotStore_RoundTrip(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	site := siteRow("s1", "fra1", base)
	tenants := []store.TenantSnapshot{
		tenantRow("t1", "fra1", "a", base),
		tenantRow("t2", "fra1", "b", base),
	}
	require.NoError(t, f.store.SavePoll(ctx, site, tenants))

	latest, err := f.store.LatestSiteSnapshot(ctx, "vcd", "fra1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, site, *latest)

	rows, err := f.store.LatestTenantSnapshots(ctx, "vcd", "fra1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	got := rows[0]
	assert.Equal(t, 5, got.VMCount)
	assert.Equal(t, 4, got.RunningVMCount)
	assert.Equal(t, 4000.0, got.CPUUsed)
	assert.Equal(t, 16384.0, got.RAMUsed)
	assert.Equal(t, tenants[0].Tiers, got.Tiers)
	assert.Equal(t, base, got.PolledAt)
}

func TestSnapshotStore_LatestIgnoresOlderPolls(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	older, newer := base, base.Add(4*time.Hour)
	require.NoError(t, f.store.SavePoll(ctx, siteRow("s1", "fra1", older), []store.TenantSnapshot{
		tenantRow("t1", "fra1", "a", older),
		tenantRow("t2", "fra1", "b", older),
	}))
	require.NoError(t, f.store.SavePoll(ctx, siteRow("s2", "fra1", newer), []store.TenantSnapshot{
		tenantRow("t3", "fra1", "a", newer),
	}))

	latest, err := f.store.LatestSiteSnapshot(ctx, "vcd", "fra1")
	require.NoError(t, err)
	assert.Equal(t, "s2", latest.ID)

	rows, err := f.store.LatestTenantSnapshots(ctx, "vcd", "fra1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "t3", rows[0].ID)

	missing, err := f.store.LatestSiteSnapshot(ctx, "vcd", "ams1")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSnapshotStore_LatestSeparatesPlatforms(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	vcdAt, pveAt := base, base.Add(time.Hour)
	require.NoError(t, f.store.SavePoll(ctx, siteRow("s1", "fra1", vcdAt), []store.TenantSnapshot{
		tenantRow("t1", "fra1", "a", vcdAt),
	}))
	pveSite := siteRow("s2", "fra1", pveAt)
	pveSite.PlatformType = "proxmox"
	pveTenant := tenantRow("t2", "fra1", "node-1", pveAt)
	pveTenant.PlatformType = "proxmox"
	require.NoError(t, f.store.SavePoll(ctx, pveSite, []store.TenantSnapshot{pveTenant}))

	latest, err := f.store.LatestSiteSnapshot(ctx, "vcd", "fra1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "s1", latest.ID)

	rows, err := f.store.LatestTenantSnapshots(ctx, "vcd", "fra1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "t1", rows[0].ID)

	rows, err = f.store.LatestTenantSnapshots(ctx, "proxmox", "fra1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "t2", rows[0].ID)
}

func TestSnapshotStore_InsertTenantSnapshots_EmptyBatch(t *testing.T) {
	f := setupFixture(t)
	require.NoError(t, f.store.InsertTenantSnapshots(context.Background(), nil))
}

func TestSnapshotStore_PruneBefore_Boundary(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	cutoff := base
	for i, at := range []time.Time{cutoff.Add(-time.Second), cutoff, cutoff.Add(time.Second)} {
		id := fmt.Sprintf("%d", i)
		require.NoError(t, f.store.SavePoll(ctx, siteRow("s"+id, "fra1", at), []store.TenantSnapshot{
			tenantRow("t"+id, "fra1", "a", at),
		}))
	}

	sites, tenants, err := f.store.PruneBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sites)
	assert.Equal(t, int64(1), tenants)

	remaining, err := f.store.ListSiteSnapshots(ctx, "fra1", cutoff.Add(-time.Hour), cutoff.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, cutoff, remaining[0].PolledAt, "rows exactly at the cutoff are kept")
}

func TestSnapshotStore_ListTenantSnapshots_HalfOpenRange(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	from, to := base, base.Add(24*time.Hour)
	require.NoError(t, f.store.InsertTenantSnapshots(ctx, []store.TenantSnapshot{
		tenantRow("t1", "fra1", "a", from),
		tenantRow("t2", "fra1", "a", to.Add(-time.Second)),
		tenantRow("t3", "ams1", "b", to),
	}))

	rows, err := f.store.ListTenantSnapshots(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "t1", rows[0].ID)
	assert.Equal(t, "t2", rows[1].ID)
}

func TestSnapshotStore_LastPolledAt(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	last, err := f.store.LastPolledAt(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	require.NoError(t, f.store.InsertSiteSnapshot(ctx, siteRow("s1", "fra1", base)))
	require.NoError(t, f.store.InsertSiteSnapshot(ctx, siteRow("s2", "ams1", base.Add(time.Hour))))

	last, err = f.store.LastPolledAt(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, base.Add(time.Hour), *last)
}

func TestSnapshotStore_InsertTenantSnapshots_RollsBackBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s, err := NewStore(db)
	require.NoError(t, err)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO tenant_poll_snapshots")
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = s.InsertTenantSnapshots(context.Background(), []store.TenantSnapshot{
		tenantRow("t1", "fra1", "a", base),
		tenantRow("t2", "fra1", "b", base),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotStore_SavePoll_RollsBackSiteRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s, err := NewStore(db)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO site_poll_snapshots").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectPrepare("INSERT INTO tenant_poll_snapshots").WillReturnError(errors.New("catalog error"))
	mock.ExpectRollback()

	err = s.SavePoll(context.Background(), siteRow("s1", "fra1", base), []store.TenantSnapshot{
		tenantRow("t1", "fra1", "a", base),
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
