package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/de-tools/capacity-atlas/pkg/models/store"
	"github.com/de-tools/capacity-atlas/pkg/store/duckdb"
)

// Store persists poll snapshots. Rows are append-only; the only deletion is
// retention pruning.
type Store interface {
	InsertSiteSnapshot(ctx context.Context, s store.SiteSnapshot) error
	// InsertTenantSnapshots writes the batch atomically. An empty batch is a no-op.
	InsertTenantSnapshots(ctx context.Context, rows []store.TenantSnapshot) error
	// SavePoll writes the site row and its tenant batch in one transaction.
	SavePoll(ctx context.Context, site store.SiteSnapshot, tenants []store.TenantSnapshot) error
	// PruneBefore deletes rows with polled_at strictly before cutoff.
	PruneBefore(ctx context.Context, cutoff time.Time) (sites, tenants int64, err error)
	// LatestSiteSnapshot returns nil, nil when the site has never been polled.
	LatestSiteSnapshot(ctx context.Context, platformType, siteID string) (*store.SiteSnapshot, error)
	// LatestTenantSnapshots returns the tenant rows of the latest site poll.
	LatestTenantSnapshots(ctx context.Context, platformType, siteID string) ([]store.TenantSnapshot, error)
	// ListSiteSnapshots returns rows with from <= polled_at < to, oldest first.
	ListSiteSnapshots(ctx context.Context, siteID string, from, to time.Time) ([]store.SiteSnapshot, error)
	// ListTenantSnapshots returns rows of every site with from <= polled_at < to.
	ListTenantSnapshots(ctx context.Context, from, to time.Time) ([]store.TenantSnapshot, error)
	// LastPolledAt returns nil when nothing has been stored yet.
	LastPolledAt(ctx context.Context) (*time.Time, error)
}

type snapshotStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &snapshotStore{
		db: db,
	}, nil
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *snapshotStore) conn(ctx context.Context) querier {
	if tx := duckdb.GetTransaction(ctx); tx != nil {
		return tx
	}
	return s.db
}

const insertSiteQuery = `
	INSERT INTO site_poll_snapshots (
		id, site_id, site_name, platform_type, polled_at,
		cpu_capacity, cpu_allocated, cpu_used,
		ram_capacity, ram_allocated, ram_used,
		storage_limit, storage_used,
		ip_total, ip_allocated, ip_used, ip_free,
		tenant_count, vm_count, running_vm_count, raw_payload
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertTenantQuery = `
	INSERT INTO tenant_poll_snapshots (
		id, site_id, platform_type, tenant_id, tenant_name, org_name, polled_at,
		vm_count, running_vm_count,
		cpu_allocated, cpu_used, ram_allocated, ram_used,
		storage_limit, storage_used, tiers, ip_allocated, raw_payload
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *snapshotStore) InsertSiteSnapshot(ctx context.Context, r store.SiteSnapshot) error {
	_, err := s.conn(ctx).ExecContext(ctx, insertSiteQuery,
		r.ID, r.SiteID, r.SiteName, r.PlatformType, r.PolledAt.UTC(),
		r.CPUCapacity, r.CPUAllocated, r.CPUUsed,
		r.RAMCapacity, r.RAMAllocated, r.RAMUsed,
		r.StorageLimit, r.StorageUsed,
		r.IPTotal, r.IPAllocated, r.IPUsed, r.IPFree,
		r.TenantCount, r.VMCount, r.RunningVMCount, r.RawPayload,
	)
	if err != nil {
		return fmt.Errorf("insert site snapshot: %w", err)
	}
	return nil
}

func (s *snapshotStore) InsertTenantSnapshots(ctx context.Context, rows []store.TenantSnapshot) error {
	if len(rows) == 0 {
		return nil
	}

	return duckdb.RunInTx(ctx, s.db, func(ctx context.Context) error {
		stmt, err := s.conn(ctx).PrepareContext(ctx, insertTenantQuery)
		if err != nil {
			return fmt.Errorf("prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, r := range rows {
			tiers, err := json.Marshal(r.Tiers)
			if err != nil {
				return fmt.Errorf("marshal tiers: %w", err)
			}
			_, err = stmt.ExecContext(ctx,
				r.ID, r.SiteID, r.PlatformType, r.TenantID, r.TenantName, r.OrgName, r.PolledAt.UTC(),
				r.VMCount, r.RunningVMCount,
				r.CPUAllocated, r.CPUUsed, r.RAMAllocated, r.RAMUsed,
				r.StorageLimit, r.StorageUsed, string(tiers), r.IPAllocated, r.RawPayload,
			)
			if err != nil {
				return fmt.Errorf("insert tenant snapshot %s: %w", r.TenantID, err)
			}
		}
		return nil
	})
}

func (s *snapshotStore) SavePoll(ctx context.Context, site store.SiteSnapshot, tenants []store.TenantSnapshot) error {
	return duckdb.RunInTx(ctx, s.db, func(ctx context.Context) error {
		if err := s.InsertSiteSnapshot(ctx, site); err != nil {
			return err
		}
		return s.InsertTenantSnapshots(ctx, tenants)
	})
}

func (s *snapshotStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, int64, error) {
	var sites, tenants int64
	err := duckdb.RunInTx(ctx, s.db, func(ctx context.Context) error {
		res, err := s.conn(ctx).ExecContext(ctx,
			`DELETE FROM tenant_poll_snapshots WHERE polled_at < ?`, cutoff.UTC())
		if err != nil {
			return fmt.Errorf("prune tenant snapshots: %w", err)
		}
		if tenants, err = res.RowsAffected(); err != nil {
			return err
		}

		res, err = s.conn(ctx).ExecContext(ctx,
			`DELETE FROM site_poll_snapshots WHERE polled_at < ?`, cutoff.UTC())
		if err != nil {
			return fmt.Errorf("prune site snapshots: %w", err)
		}
		sites, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	return sites, tenants, nil
}

const siteColumns = `
	id, site_id, site_name, platform_type, polled_at,
	cpu_capacity, cpu_allocated, cpu_used,
	ram_capacity, ram_allocated, ram_used,
	storage_limit, storage_used,
	ip_total, ip_allocated, ip_used, ip_free,
	tenant_count, vm_count, running_vm_count, raw_payload`

const tenantColumns = `
	id, site_id, platform_type, tenant_id, tenant_name, org_name, polled_at,
	vm_count, running_vm_count,
	cpu_allocated, cpu_used, ram_allocated, ram_used,
	storage_limit, storage_used, tiers, ip_allocated, raw_payload`

func (s *snapshotStore) LatestSiteSnapshot(
	ctx context.Context,
	platformType, siteID string,
) (*store.SiteSnapshot, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT `+siteColumns+`
		FROM site_poll_snapshots
		WHERE platform_type = ? AND site_id = ?
		ORDER BY polled_at DESC
		LIMIT 1
	`, platformType, siteID)
	if err != nil {
		return nil, fmt.Errorf("query latest site snapshot: %w", err)
	}
	defer rows.Close()

	snapshots, err := scanSiteRows(rows)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, nil
	}
	return &snapshots[0], nil
}

func (s *snapshotStore) LatestTenantSnapshots(
	ctx context.Context,
	platformType, siteID string,
) ([]store.TenantSnapshot, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT `+tenantColumns+`
		FROM tenant_poll_snapshots
		WHERE platform_type = ? AND site_id = ?
		  AND polled_at = (
		      SELECT MAX(polled_at) FROM site_poll_snapshots
		      WHERE platform_type = ? AND site_id = ?
		  )
		ORDER BY tenant_name, tenant_id
	`, platformType, siteID, platformType, siteID)
	if err != nil {
		return nil, fmt.Errorf("query latest tenant snapshots: %w", err)
	}
	defer rows.Close()
	return scanTenantRows(rows)
}

func (s *snapshotStore) ListSiteSnapshots(
	ctx context.Context,
	siteID string,
	from, to time.Time,
) ([]store.SiteSnapshot, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT `+siteColumns+`
		FROM site_poll_snapshots
		WHERE site_id = ? AND polled_at >= ? AND polled_at < ?
		ORDER BY polled_at
	`, siteID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("query site snapshots: %w", err)
	}
	defer rows.Close()
	return scanSiteRows(rows)
}

func (s *snapshotStore) ListTenantSnapshots(ctx context.Context, from, to time.Time) ([]store.TenantSnapshot, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT `+tenantColumns+`
		FROM tenant_poll_snapshots
		WHERE polled_at >= ? AND polled_at < ?
		ORDER BY polled_at, site_id, tenant_id
	`, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("query tenant snapshots: %w", err)
	}
	defer rows.Close()
	return scanTenantRows(rows)
}

func (s *snapshotStore) LastPolledAt(ctx context.Context) (*time.Time, error) {
	var last sql.NullTime
	if err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT MAX(polled_at) FROM site_poll_snapshots`).Scan(&last); err != nil {
		return nil, fmt.Errorf("get last polled at: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}
	t := last.Time.UTC()
	return &t, nil
}

func scanSiteRows(rows *sql.Rows) ([]store.SiteSnapshot, error) {
	snapshots := make([]store.SiteSnapshot, 0)
	for rows.Next() {
		var (
			r        store.SiteSnapshot
			siteName sql.NullString
			payload  sql.NullString
		)
		if err := rows.Scan(
			&r.ID, &r.SiteID, &siteName, &r.PlatformType, &r.PolledAt,
			&r.CPUCapacity, &r.CPUAllocated, &r.CPUUsed,
			&r.RAMCapacity, &r.RAMAllocated, &r.RAMUsed,
			&r.StorageLimit, &r.StorageUsed,
			&r.IPTotal, &r.IPAllocated, &r.IPUsed, &r.IPFree,
			&r.TenantCount, &r.VMCount, &r.RunningVMCount, &payload,
		); err != nil {
			return nil, fmt.Errorf("scan site snapshot: %w", err)
		}
		r.SiteName = siteName.String
		r.RawPayload = payload.String
		r.PolledAt = r.PolledAt.UTC()
		snapshots = append(snapshots, r)
	}
	return snapshots, rows.Err()
}

func scanTenantRows(rows *sql.Rows) ([]store.TenantSnapshot, error) {
	snapshots := make([]store.TenantSnapshot, 0)
	for rows.Next() {
		var (
			r                  store.TenantSnapshot
			name, org, payload sql.NullString
			tiers              sql.NullString
		)
		if err := rows.Scan(
			&r.ID, &r.SiteID, &r.PlatformType, &r.TenantID, &name, &org, &r.PolledAt,
			&r.VMCount, &r.RunningVMCount,
			&r.CPUAllocated, &r.CPUUsed, &r.RAMAllocated, &r.RAMUsed,
			&r.StorageLimit, &r.StorageUsed, &tiers, &r.IPAllocated, &payload,
		); err != nil {
			return nil, fmt.Errorf("scan tenant snapshot: %w", err)
		}
		r.TenantName = name.String
		r.OrgName = org.String
		r.RawPayload = payload.String
		r.PolledAt = r.PolledAt.UTC()
		if tiers.Valid && tiers.String != "" && tiers.String != "null" {
			if err := json.Unmarshal([]byte(tiers.String), &r.Tiers); err != nil {
				return nil, fmt.Errorf("decode tiers of %s: %w", r.TenantID, err)
			}
		}
		snapshots = append(snapshots, r)
	}
	return snapshots, rows.Err()
}
