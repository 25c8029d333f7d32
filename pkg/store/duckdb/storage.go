package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/marcboeker/go-duckdb/v2"
)

const SiteSnapshotsSchema = `
	CREATE TABLE IF NOT EXISTS site_poll_snapshots (
		id VARCHAR NOT NULL PRIMARY KEY,
		site_id VARCHAR NOT NULL,
		site_name VARCHAR,
		platform_type VARCHAR NOT NULL,
		polled_at TIMESTAMP NOT NULL,
		cpu_capacity DOUBLE,
		cpu_allocated DOUBLE,
		cpu_used DOUBLE,
		ram_capacity DOUBLE,
		ram_allocated DOUBLE,
		ram_used DOUBLE,
		storage_limit DOUBLE,
		storage_used DOUBLE,
		ip_total BIGINT,
		ip_allocated BIGINT,
		ip_used BIGINT,
		ip_free BIGINT,
		tenant_count BIGINT,
		vm_count BIGINT,
		running_vm_count BIGINT,
		raw_payload VARCHAR
	);
`

const TenantSnapshotsSchema = `
	CREATE TABLE IF NOT EXISTS tenant_poll_snapshots (
		id VARCHAR NOT NULL PRIMARY KEY,
		site_id VARCHAR NOT NULL,
		platform_type VARCHAR NOT NULL,
		tenant_id VARCHAR NOT NULL,
		tenant_name VARCHAR,
		org_name VARCHAR,
		polled_at TIMESTAMP NOT NULL,
		vm_count BIGINT,
		running_vm_count BIGINT,
		cpu_allocated DOUBLE,
		cpu_used DOUBLE,
		ram_allocated DOUBLE,
		ram_used DOUBLE,
		storage_limit DOUBLE,
		storage_used DOUBLE,
		tiers VARCHAR,
		ip_allocated BIGINT,
		raw_payload VARCHAR
	);
`

const siteSnapshotsIndex = `
	CREATE INDEX IF NOT EXISTS idx_site_poll_snapshots_site_polled
	ON site_poll_snapshots (site_id, polled_at);
`

const tenantSnapshotsIndex = `
	CREATE INDEX IF NOT EXISTS idx_tenant_poll_snapshots_site_polled
	ON tenant_poll_snapshots (site_id, polled_at);
`

var bootQueries = []string{
	SiteSnapshotsSchema,
	TenantSnapshotsSchema,
	siteSnapshotsIndex,
	tenantSnapshotsIndex,
}

type Settings struct {
	DbPath  string `mapstructure:"path"`
	Threads int    `mapstructure:"threads"`
}

func NewDB(settings Settings) (*sql.DB, error) {
	threads := settings.Threads
	if threads <= 0 {
		threads = 4
	}
	c, err := duckdb.NewConnector(fmt.Sprintf("%s?threads=%d", settings.DbPath, threads), func(exec driver.ExecerContext) error {
		for _, query := range bootQueries {
			_, err := exec.ExecContext(context.Background(), query, nil)
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(c)
	return db, nil
}
