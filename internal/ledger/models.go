// Package ledger owns the persisted audit trail of backup, export, and
// restore runs. The UI layer reads these records to render job progress;
// the engine is the only writer.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BackupType identifies what slice of the system a backup covers
type BackupType string

const (
	BackupTypeFull        BackupType = "full"
	BackupTypeIncremental BackupType = "incremental"
	BackupTypeSelective   BackupType = "selective"
	BackupTypeSchemaOnly  BackupType = "schema_only"
)

// JobStatus is the lifecycle of a BackupJob. Terminal states are write-once.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// RestoreStatus is the lifecycle of a RestoreLog
type RestoreStatus string

const (
	RestoreStatusPending    RestoreStatus = "pending"
	RestoreStatusInProgress RestoreStatus = "in_progress"
	RestoreStatusCompleted  RestoreStatus = "completed"
	RestoreStatusFailed     RestoreStatus = "failed"
)

// RestoreType identifies the shape of a restore run
type RestoreType string

const (
	RestoreTypeFull      RestoreType = "full"
	RestoreTypeSelective RestoreType = "selective"
)

// BackupJob is the auditable record of one backup run. Counters are updated
// after every table so pollers see live progress.
type BackupJob struct {
	ID               string     `json:"id"`
	Type             BackupType `json:"type"`
	Status           JobStatus  `json:"status"`
	RequestedTables  []string   `json:"requested_tables,omitempty"`
	ProcessedTables  int        `json:"processed_tables"`
	TotalTables      int        `json:"total_tables"`
	TotalRecords     int64      `json:"total_records"`
	SizeBytes        int64      `json:"size_bytes"`
	CompressionRatio float64    `json:"compression_ratio"`
	Notes            string     `json:"notes,omitempty"`
	RequestedBy      string     `json:"requested_by"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// NewBackupJob creates a pending job record
func NewBackupJob(backupType BackupType, tables []string, notes, requestedBy string) *BackupJob {
	return &BackupJob{
		ID:              GenerateID("backup"),
		Type:            backupType,
		Status:          JobStatusPending,
		RequestedTables: tables,
		Notes:           notes,
		RequestedBy:     requestedBy,
		CreatedAt:       time.Now().UTC(),
	}
}

// IsTerminal reports whether the job reached a terminal state
func (j *BackupJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// MarkRunning transitions the job to running
func (j *BackupJob) MarkRunning() error {
	if j.IsTerminal() {
		return fmt.Errorf("backup job %s already terminal (%s)", j.ID, j.Status)
	}
	now := time.Now().UTC()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	return nil
}

// MarkCompleted transitions the job to completed with its final metrics
func (j *BackupJob) MarkCompleted(sizeBytes int64, compressionRatio float64) error {
	if j.IsTerminal() {
		return fmt.Errorf("backup job %s already terminal (%s)", j.ID, j.Status)
	}
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.SizeBytes = sizeBytes
	j.CompressionRatio = compressionRatio
	j.CompletedAt = &now
	return nil
}

// MarkFailed transitions the job to failed with the underlying message
func (j *BackupJob) MarkFailed(message string) error {
	if j.IsTerminal() {
		return fmt.Errorf("backup job %s already terminal (%s)", j.ID, j.Status)
	}
	now := time.Now().UTC()
	j.Status = JobStatusFailed
	j.ErrorMessage = message
	j.CompletedAt = &now
	return nil
}

// BackupFile is the stored object produced by a completed backup job
type BackupFile struct {
	ID          string    `json:"id"`
	JobID       string    `json:"job_id"`
	Path        string    `json:"path"`
	SizeBytes   int64     `json:"size_bytes"`
	RecordCount int64     `json:"record_count"`
	Checksum    string    `json:"checksum"`
	Compression string    `json:"compression,omitempty"`
	Encrypted   bool      `json:"encrypted"`
	CreatedAt   time.Time `json:"created_at"`
}

// RestoreLog is the auditable record of one restore run
type RestoreLog struct {
	ID              string        `json:"id"`
	BackupJobID     string        `json:"backup_job_id"`
	Type            RestoreType   `json:"type"`
	Strategy        string        `json:"strategy"`
	Status          RestoreStatus `json:"status"`
	TablesRestored  []string      `json:"tables_restored,omitempty"`
	RecordsRestored int64         `json:"records_restored"`
	Notes           string        `json:"notes,omitempty"`
	RequestedBy     string        `json:"requested_by"`
	ErrorMessage    string        `json:"error_message,omitempty"`
	StartedAt       *time.Time    `json:"started_at,omitempty"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

// NewRestoreLog creates a pending restore record
func NewRestoreLog(backupJobID string, restoreType RestoreType, strategy, notes, requestedBy string) *RestoreLog {
	return &RestoreLog{
		ID:          GenerateID("restore"),
		BackupJobID: backupJobID,
		Type:        restoreType,
		Strategy:    strategy,
		Status:      RestoreStatusPending,
		Notes:       notes,
		RequestedBy: requestedBy,
		CreatedAt:   time.Now().UTC(),
	}
}

// IsTerminal reports whether the restore reached a terminal state
func (r *RestoreLog) IsTerminal() bool {
	return r.Status == RestoreStatusCompleted || r.Status == RestoreStatusFailed
}

// MarkInProgress transitions the restore to in_progress
func (r *RestoreLog) MarkInProgress() error {
	if r.IsTerminal() {
		return fmt.Errorf("restore %s already terminal (%s)", r.ID, r.Status)
	}
	now := time.Now().UTC()
	r.Status = RestoreStatusInProgress
	r.StartedAt = &now
	return nil
}

// MarkCompleted transitions the restore to completed. Completed means "ran
// to completion": individual batches may still have failed, and the only
// visibility into those is the tables list versus what was requested.
func (r *RestoreLog) MarkCompleted(tables []string, records int64) error {
	if r.IsTerminal() {
		return fmt.Errorf("restore %s already terminal (%s)", r.ID, r.Status)
	}
	now := time.Now().UTC()
	r.Status = RestoreStatusCompleted
	r.TablesRestored = tables
	r.RecordsRestored = records
	r.CompletedAt = &now
	return nil
}

// MarkFailed transitions the restore to failed
func (r *RestoreLog) MarkFailed(message string) error {
	if r.IsTerminal() {
		return fmt.Errorf("restore %s already terminal (%s)", r.ID, r.Status)
	}
	now := time.Now().UTC()
	r.Status = RestoreStatusFailed
	r.ErrorMessage = message
	r.CompletedAt = &now
	return nil
}

// ExportLog is the write-once audit record of a successful tenant export
type ExportLog struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenant_id"`
	RequestedBy    string    `json:"requested_by"`
	TablesExported []string  `json:"tables_exported"`
	TotalRecords   int64     `json:"total_records"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewExportLog creates an export audit record
func NewExportLog(tenantID, requestedBy string, tables []string, totalRecords int64) *ExportLog {
	return &ExportLog{
		ID:             GenerateID("export"),
		TenantID:       tenantID,
		RequestedBy:    requestedBy,
		TablesExported: tables,
		TotalRecords:   totalRecords,
		CreatedAt:      time.Now().UTC(),
	}
}

// GenerateID generates a sortable unique id: prefix, UTC timestamp, short uuid.
func GenerateID(prefix string) string {
	timestamp := time.Now().UTC().Format("20060102-150405")
	short := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("%s-%s-%s", prefix, timestamp, short)
}
