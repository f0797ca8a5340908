package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"tenant-vault/internal/errors"
)

// Repository persists ledger records in the relational store. Every engine
// job threads its own record through a repository so partially-failing runs
// stay observable.
type Repository interface {
	CreateBackupJob(ctx context.Context, job *BackupJob) error
	UpdateBackupJob(ctx context.Context, job *BackupJob) error
	GetBackupJob(ctx context.Context, id string) (*BackupJob, error)
	ListBackupJobs(ctx context.Context, limit int) ([]*BackupJob, error)

	CreateBackupFile(ctx context.Context, file *BackupFile) error
	GetBackupFileByJob(ctx context.Context, jobID string) (*BackupFile, error)

	CreateRestoreLog(ctx context.Context, restore *RestoreLog) error
	UpdateRestoreLog(ctx context.Context, restore *RestoreLog) error
	GetRestoreLog(ctx context.Context, id string) (*RestoreLog, error)
	ListRestoreLogs(ctx context.Context, limit int) ([]*RestoreLog, error)

	CreateExportLog(ctx context.Context, export *ExportLog) error
}

// SQLRepository implements Repository over database/sql.
type SQLRepository struct {
	db *sql.DB
}

// NewSQLRepository creates a repository over an established connection pool.
func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// CreateBackupJob inserts a new backup job row
func (r *SQLRepository) CreateBackupJob(ctx context.Context, job *BackupJob) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO backup_jobs
			(id, type, status, requested_tables, processed_tables, total_tables,
			 total_records, size_bytes, compression_ratio, notes, requested_by,
			 error_message, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Type, job.Status, encodeStrings(job.RequestedTables),
		job.ProcessedTables, job.TotalTables, job.TotalRecords, job.SizeBytes,
		job.CompressionRatio, job.Notes, job.RequestedBy, job.ErrorMessage,
		job.StartedAt, job.CompletedAt, job.CreatedAt)
	if err != nil {
		return errors.NewDatabaseError("failed to create backup job", err)
	}
	return nil
}

// UpdateBackupJob writes the mutable fields of a backup job row
func (r *SQLRepository) UpdateBackupJob(ctx context.Context, job *BackupJob) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE backup_jobs
		SET status = ?, processed_tables = ?, total_tables = ?, total_records = ?,
		    size_bytes = ?, compression_ratio = ?, error_message = ?,
		    started_at = ?, completed_at = ?
		WHERE id = ?`,
		job.Status, job.ProcessedTables, job.TotalTables, job.TotalRecords,
		job.SizeBytes, job.CompressionRatio, job.ErrorMessage,
		job.StartedAt, job.CompletedAt, job.ID)
	if err != nil {
		return errors.NewDatabaseError("failed to update backup job", err)
	}
	return nil
}

// GetBackupJob loads one backup job by id
func (r *SQLRepository) GetBackupJob(ctx context.Context, id string) (*BackupJob, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, type, status, requested_tables, processed_tables, total_tables,
		       total_records, size_bytes, compression_ratio, notes, requested_by,
		       error_message, started_at, completed_at, created_at
		FROM backup_jobs WHERE id = ?`, id)
	return scanBackupJob(row)
}

// ListBackupJobs returns the most recent backup jobs
func (r *SQLRepository) ListBackupJobs(ctx context.Context, limit int) ([]*BackupJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, status, requested_tables, processed_tables, total_tables,
		       total_records, size_bytes, compression_ratio, notes, requested_by,
		       error_message, started_at, completed_at, created_at
		FROM backup_jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list backup jobs", err)
	}
	defer rows.Close()

	var jobs []*BackupJob
	for rows.Next() {
		job, err := scanBackupJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// CreateBackupFile inserts the stored-object record for a completed job
func (r *SQLRepository) CreateBackupFile(ctx context.Context, file *BackupFile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO backup_files
			(id, job_id, path, size_bytes, record_count, checksum, compression,
			 encrypted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		file.ID, file.JobID, file.Path, file.SizeBytes, file.RecordCount,
		file.Checksum, file.Compression, file.Encrypted, file.CreatedAt)
	if err != nil {
		return errors.NewDatabaseError("failed to create backup file record", err)
	}
	return nil
}

// GetBackupFileByJob loads the stored-object record for a job
func (r *SQLRepository) GetBackupFileByJob(ctx context.Context, jobID string) (*BackupFile, error) {
	var file BackupFile
	err := r.db.QueryRowContext(ctx, `
		SELECT id, job_id, path, size_bytes, record_count, checksum, compression,
		       encrypted, created_at
		FROM backup_files WHERE job_id = ?`, jobID).
		Scan(&file.ID, &file.JobID, &file.Path, &file.SizeBytes, &file.RecordCount,
			&file.Checksum, &file.Compression, &file.Encrypted, &file.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("backup file not found for job "+jobID, err)
	}
	if err != nil {
		return nil, errors.NewDatabaseError("failed to load backup file record", err)
	}
	return &file, nil
}

// CreateRestoreLog inserts a new restore log row
func (r *SQLRepository) CreateRestoreLog(ctx context.Context, restore *RestoreLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO restore_logs
			(id, backup_job_id, type, strategy, status, tables_restored,
			 records_restored, notes, requested_by, error_message, started_at,
			 completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		restore.ID, restore.BackupJobID, restore.Type, restore.Strategy,
		restore.Status, encodeStrings(restore.TablesRestored),
		restore.RecordsRestored, restore.Notes, restore.RequestedBy,
		restore.ErrorMessage, restore.StartedAt, restore.CompletedAt,
		restore.CreatedAt)
	if err != nil {
		return errors.NewDatabaseError("failed to create restore log", err)
	}
	return nil
}

// UpdateRestoreLog writes the mutable fields of a restore log row
func (r *SQLRepository) UpdateRestoreLog(ctx context.Context, restore *RestoreLog) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE restore_logs
		SET status = ?, tables_restored = ?, records_restored = ?,
		    error_message = ?, started_at = ?, completed_at = ?
		WHERE id = ?`,
		restore.Status, encodeStrings(restore.TablesRestored),
		restore.RecordsRestored, restore.ErrorMessage, restore.StartedAt,
		restore.CompletedAt, restore.ID)
	if err != nil {
		return errors.NewDatabaseError("failed to update restore log", err)
	}
	return nil
}

// GetRestoreLog loads one restore log by id
func (r *SQLRepository) GetRestoreLog(ctx context.Context, id string) (*RestoreLog, error) {
	var (
		restore RestoreLog
		tables  string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, backup_job_id, type, strategy, status, tables_restored,
		       records_restored, notes, requested_by, error_message, started_at,
		       completed_at, created_at
		FROM restore_logs WHERE id = ?`, id).
		Scan(&restore.ID, &restore.BackupJobID, &restore.Type, &restore.Strategy,
			&restore.Status, &tables, &restore.RecordsRestored, &restore.Notes,
			&restore.RequestedBy, &restore.ErrorMessage, &restore.StartedAt,
			&restore.CompletedAt, &restore.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("restore log "+id+" not found", err)
	}
	if err != nil {
		return nil, errors.NewDatabaseError("failed to load restore log", err)
	}
	restore.TablesRestored = decodeStrings(tables)
	return &restore, nil
}

// ListRestoreLogs returns the most recent restore logs
func (r *SQLRepository) ListRestoreLogs(ctx context.Context, limit int) ([]*RestoreLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, backup_job_id, type, strategy, status, tables_restored,
		       records_restored, notes, requested_by, error_message, started_at,
		       completed_at, created_at
		FROM restore_logs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list restore logs", err)
	}
	defer rows.Close()

	var logs []*RestoreLog
	for rows.Next() {
		var (
			restore RestoreLog
			tables  string
		)
		if err := rows.Scan(&restore.ID, &restore.BackupJobID, &restore.Type,
			&restore.Strategy, &restore.Status, &tables, &restore.RecordsRestored,
			&restore.Notes, &restore.RequestedBy, &restore.ErrorMessage,
			&restore.StartedAt, &restore.CompletedAt, &restore.CreatedAt); err != nil {
			return nil, errors.NewDatabaseError("failed to scan restore log", err)
		}
		restore.TablesRestored = decodeStrings(tables)
		logs = append(logs, &restore)
	}
	return logs, rows.Err()
}

// CreateExportLog inserts a write-once export audit row
func (r *SQLRepository) CreateExportLog(ctx context.Context, export *ExportLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO export_logs
			(id, tenant_id, requested_by, tables_exported, total_records, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		export.ID, export.TenantID, export.RequestedBy,
		encodeStrings(export.TablesExported), export.TotalRecords, export.CreatedAt)
	if err != nil {
		return errors.NewDatabaseError("failed to create export log", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBackupJob(row rowScanner) (*BackupJob, error) {
	var (
		job    BackupJob
		tables string
	)
	err := row.Scan(&job.ID, &job.Type, &job.Status, &tables,
		&job.ProcessedTables, &job.TotalTables, &job.TotalRecords,
		&job.SizeBytes, &job.CompressionRatio, &job.Notes, &job.RequestedBy,
		&job.ErrorMessage, &job.StartedAt, &job.CompletedAt, &job.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("backup job not found", err)
	}
	if err != nil {
		return nil, errors.NewDatabaseError("failed to scan backup job", err)
	}
	job.RequestedTables = decodeStrings(tables)
	return &job, nil
}

// Table lists are stored as JSON arrays in a text column.
func encodeStrings(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(values)
	return string(data)
}

func decodeStrings(encoded string) []string {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" || encoded == "[]" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(encoded), &values); err != nil {
		return nil
	}
	return values
}
