package ledger

import (
	"context"
	"database/sql"

	"tenant-vault/internal/errors"
)

// ddl creates the ledger tables. Statements are idempotent so startup can
// run them unconditionally.
var ddl = []string{
	`CREATE TABLE IF NOT EXISTS backup_jobs (
		id               VARCHAR(64)  PRIMARY KEY,
		type             VARCHAR(32)  NOT NULL,
		status           VARCHAR(32)  NOT NULL,
		requested_tables TEXT         NOT NULL,
		processed_tables INT          NOT NULL DEFAULT 0,
		total_tables     INT          NOT NULL DEFAULT 0,
		total_records    BIGINT       NOT NULL DEFAULT 0,
		size_bytes       BIGINT       NOT NULL DEFAULT 0,
		compression_ratio DOUBLE      NOT NULL DEFAULT 0,
		notes            TEXT,
		requested_by     VARCHAR(64)  NOT NULL,
		error_message    TEXT,
		started_at       DATETIME     NULL,
		completed_at     DATETIME     NULL,
		created_at       DATETIME     NOT NULL,
		INDEX idx_backup_jobs_created (created_at)
	)`,
	`CREATE TABLE IF NOT EXISTS backup_files (
		id           VARCHAR(64)  PRIMARY KEY,
		job_id       VARCHAR(64)  NOT NULL,
		path         VARCHAR(512) NOT NULL,
		size_bytes   BIGINT       NOT NULL DEFAULT 0,
		record_count BIGINT       NOT NULL DEFAULT 0,
		checksum     VARCHAR(128) NOT NULL,
		compression  VARCHAR(16)  NOT NULL DEFAULT '',
		encrypted    BOOLEAN      NOT NULL DEFAULT FALSE,
		created_at   DATETIME     NOT NULL,
		INDEX idx_backup_files_job (job_id)
	)`,
	`CREATE TABLE IF NOT EXISTS restore_logs (
		id               VARCHAR(64) PRIMARY KEY,
		backup_job_id    VARCHAR(64) NOT NULL,
		type             VARCHAR(32) NOT NULL,
		strategy         VARCHAR(32) NOT NULL,
		status           VARCHAR(32) NOT NULL,
		tables_restored  TEXT        NOT NULL,
		records_restored BIGINT      NOT NULL DEFAULT 0,
		notes            TEXT,
		requested_by     VARCHAR(64) NOT NULL,
		error_message    TEXT,
		started_at       DATETIME    NULL,
		completed_at     DATETIME    NULL,
		created_at       DATETIME    NOT NULL,
		INDEX idx_restore_logs_created (created_at)
	)`,
	`CREATE TABLE IF NOT EXISTS export_logs (
		id              VARCHAR(64) PRIMARY KEY,
		tenant_id       VARCHAR(64) NOT NULL,
		requested_by    VARCHAR(64) NOT NULL,
		tables_exported TEXT        NOT NULL,
		total_records   BIGINT      NOT NULL DEFAULT 0,
		created_at      DATETIME    NOT NULL,
		INDEX idx_export_logs_tenant (tenant_id)
	)`,
}

// EnsureSchema creates the ledger tables if they do not exist
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.NewDatabaseError("failed to create ledger schema", err)
		}
	}
	return nil
}
