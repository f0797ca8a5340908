// Package restore implements the restore engine: it downloads a previously
// produced backup document and writes its rows back into the relational
// store, applying a caller-chosen conflict strategy in fixed-size batches.
package restore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"tenant-vault/internal/auth"
	"tenant-vault/internal/backup"
	"tenant-vault/internal/errors"
	"tenant-vault/internal/ledger"
	"tenant-vault/internal/logging"
	"tenant-vault/internal/store"
)

// DefaultBatchSize is the number of rows written per upsert batch.
const DefaultBatchSize = 100

// ConflictStrategy governs how restored rows interact with existing ones
type ConflictStrategy string

const (
	// StrategyReplace wipes each target table before inserting. The wipe is
	// table-wide, not scoped by tenant: callers restore the entire table.
	StrategyReplace ConflictStrategy = "replace"
	// StrategySkip inserts only rows whose primary key does not exist yet
	StrategySkip ConflictStrategy = "skip"
	// StrategyMerge overwrites existing rows field-for-field by primary key
	StrategyMerge ConflictStrategy = "merge"
)

// IsValidStrategy reports whether s names a supported conflict strategy
func IsValidStrategy(s ConflictStrategy) bool {
	return s == StrategyReplace || s == StrategySkip || s == StrategyMerge
}

// Request describes one restore run
type Request struct {
	BackupJobID        string
	TargetTables       []string
	Strategy           ConflictStrategy
	CreateSafetyBackup bool
	Notes              string
	RequestedBy        string
}

// SafetyBackupRunner snapshots the destination before a restore mutates it.
// The backup orchestrator satisfies this.
type SafetyBackupRunner interface {
	Run(ctx context.Context, req backup.Request) (*ledger.BackupJob, error)
}

// Engine executes restores. Tables are processed sequentially: the restore
// log's counters are updated as tables complete and concurrent writers
// would race on them.
type Engine struct {
	store       store.Store
	storage     backup.StorageProvider
	repo        ledger.Repository
	authorizer  auth.Authorizer
	compression *backup.CompressionManager
	encryption  *backup.EncryptionManager
	safety      SafetyBackupRunner
	logger      *logging.Logger
	batchSize   int
}

// Options configures an Engine. Store, Storage and Repository are required.
// Safety may be nil when safety backups are not offered.
type Options struct {
	Store      store.Store
	Storage    backup.StorageProvider
	Repository ledger.Repository
	Authorizer auth.Authorizer
	Encryption backup.EncryptionConfig
	Safety     SafetyBackupRunner
	Logger     *logging.Logger
	BatchSize  int
}

// NewEngine creates a restore engine
func NewEngine(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = logging.NewDefaultLogger()
	}
	if opts.Authorizer == nil {
		opts.Authorizer = auth.AllowAll{}
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Engine{
		store:       opts.Store,
		storage:     opts.Storage,
		repo:        opts.Repository,
		authorizer:  opts.Authorizer,
		compression: backup.NewCompressionManager(),
		encryption:  backup.NewEncryptionManager(opts.Encryption),
		safety:      opts.Safety,
		logger:      opts.Logger,
		batchSize:   opts.BatchSize,
	}
}

// Run executes a restore. Individual batch failures are logged and skipped;
// the one failure mode that aborts the whole operation is a backup document
// that cannot be downloaded, verified, or parsed. The returned RestoreLog
// reflects whatever state the run reached.
func (e *Engine) Run(ctx context.Context, req Request) (*ledger.RestoreLog, error) {
	if !e.authorizer.IsAuthorized(ctx, req.RequestedBy, auth.ActionRestore, "") {
		return nil, errors.NewUnauthorized("actor is not allowed to run restores")
	}
	if !IsValidStrategy(req.Strategy) {
		return nil, errors.NewValidationError(fmt.Sprintf("unknown conflict strategy %q", req.Strategy), nil)
	}

	job, err := e.repo.GetBackupJob(ctx, req.BackupJobID)
	if err != nil {
		return nil, err
	}
	if job.Status != ledger.JobStatusCompleted {
		return nil, errors.NewInvalidState(
			fmt.Sprintf("backup job %s is %s, only completed jobs can be restored", job.ID, job.Status))
	}
	file, err := e.repo.GetBackupFileByJob(ctx, job.ID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewInvalidState(
				fmt.Sprintf("backup job %s has no backup file", job.ID))
		}
		return nil, err
	}

	restoreType := ledger.RestoreTypeFull
	if len(req.TargetTables) > 0 {
		restoreType = ledger.RestoreTypeSelective
	}
	log := ledger.NewRestoreLog(job.ID, restoreType, string(req.Strategy), req.Notes, req.RequestedBy)
	if err := e.repo.CreateRestoreLog(ctx, log); err != nil {
		return nil, err
	}

	if req.CreateSafetyBackup {
		e.runSafetyBackup(ctx, req)
	}

	if err := log.MarkInProgress(); err != nil {
		return log, err
	}
	e.logger.LogJobTransition(log.ID, string(ledger.RestoreStatusPending), string(ledger.RestoreStatusInProgress))
	if err := e.repo.UpdateRestoreLog(ctx, log); err != nil {
		return log, err
	}

	doc, err := e.fetchDocument(ctx, file)
	if err != nil {
		return e.fail(ctx, log, err)
	}

	tables := e.resolveTargets(req.TargetTables, doc)
	mode := conflictMode(req.Strategy)

	var restored []string
	var records int64
	for _, name := range tables {
		applied := e.restoreTable(ctx, name, doc.Tables[name], req.Strategy, mode)
		if applied < 0 {
			continue
		}
		restored = append(restored, name)
		records += applied
	}

	if err := log.MarkCompleted(restored, records); err != nil {
		return log, err
	}
	e.logger.LogJobTransition(log.ID, string(ledger.RestoreStatusInProgress), string(ledger.RestoreStatusCompleted))
	if err := e.repo.UpdateRestoreLog(ctx, log); err != nil {
		return log, err
	}
	return log, nil
}

// runSafetyBackup snapshots the destination before the restore. A failure
// here is a degraded safety net, not a reason to abort.
func (e *Engine) runSafetyBackup(ctx context.Context, req Request) {
	if e.safety == nil {
		e.logger.Warn("Safety backup requested but no backup runner is configured")
		return
	}
	job, err := e.safety.Run(ctx, backup.Request{
		Type:        ledger.BackupTypeFull,
		Notes:       fmt.Sprintf("pre-restore safety backup (restoring %s)", req.BackupJobID),
		RequestedBy: req.RequestedBy,
	})
	if err != nil {
		e.logger.Warnf("Safety backup failed, continuing restore: %v", err)
		return
	}
	e.logger.Infof("Safety backup %s created before restore", job.ID)
}

// fetchDocument downloads, verifies, decrypts, decompresses and parses the
// backup object.
func (e *Engine) fetchDocument(ctx context.Context, file *ledger.BackupFile) (*backup.Document, error) {
	start := time.Now()
	data, err := e.storage.Get(ctx, file.Path)
	e.logger.LogStorageOperation("get", file.Path, int64(len(data)), time.Since(start), err)
	if err != nil {
		return nil, errors.NewStorageError("failed to download backup document", err)
	}

	if file.Checksum != "" {
		sum := sha256.Sum256(data)
		if hex.EncodeToString(sum[:]) != file.Checksum {
			return nil, errors.NewStorageError(
				fmt.Sprintf("backup object %s failed checksum verification", file.Path), nil)
		}
	}

	if file.Encrypted {
		if !e.encryption.Enabled() {
			return nil, errors.NewConfigurationError(
				"backup is encrypted but no decryption passphrase is configured", nil)
		}
		data, err = e.encryption.Decrypt(data)
		if err != nil {
			return nil, errors.NewStorageError("failed to decrypt backup document", err)
		}
	}

	if file.Compression != "" {
		data, err = e.compression.Decompress(data, backup.CompressionType(file.Compression))
		if err != nil {
			return nil, errors.NewStorageError("failed to decompress backup document", err)
		}
	}

	doc, err := backup.ParseDocument(data)
	if err != nil {
		return nil, errors.NewValidationError("backup document is malformed", err)
	}
	return doc, nil
}

// resolveTargets returns the tables to restore in document-stable order:
// the caller's explicit list, or every table carrying row data. Schema-only
// entries have nothing to write and are never targets.
func (e *Engine) resolveTargets(requested []string, doc *backup.Document) []string {
	var tables []string
	if len(requested) > 0 {
		for _, name := range requested {
			tb, ok := doc.Tables[name]
			if !ok {
				e.logger.Warnf("Requested table %s is not present in the backup document", name)
				continue
			}
			if tb.SchemaOnly {
				e.logger.Warnf("Requested table %s is schema-only in this backup", name)
				continue
			}
			tables = append(tables, name)
		}
		return tables
	}
	for _, name := range doc.TableNames() {
		if !doc.Tables[name].SchemaOnly {
			tables = append(tables, name)
		}
	}
	sort.Strings(tables)
	return tables
}

// restoreTable writes one table's rows. Returns the records applied, or -1
// when the table could not be touched at all.
func (e *Engine) restoreTable(ctx context.Context, name string, tb backup.TableBackup, strategy ConflictStrategy, mode store.ConflictMode) int64 {
	if strategy == StrategyReplace {
		if _, err := e.store.Delete(ctx, name, store.Filter{}); err != nil {
			// Without the wipe, inserting would silently degrade replace
			// into merge. Leave the table untouched instead.
			e.logger.Errorf("Failed to clear table %s for replace restore: %v", name, err)
			return -1
		}
	}

	var applied int64
	touched := strategy == StrategyReplace
	start := time.Now()
	for offset := 0; offset < len(tb.Data); offset += e.batchSize {
		end := offset + e.batchSize
		if end > len(tb.Data) {
			end = len(tb.Data)
		}
		batch := tb.Data[offset:end]
		affected, err := e.store.UpsertBatch(ctx, name, batch, mode)
		if err != nil {
			e.logger.Warnf("Batch %d-%d of table %s failed, skipping: %v", offset, end, name, err)
			continue
		}
		if mode == store.ConflictIgnore {
			// INSERT IGNORE reports exactly the rows inserted, so skipped
			// collisions are not counted as restored.
			applied += affected
		} else {
			// Driver-reported affected counts double for overwritten rows
			// on MySQL, so the batch length is the honest figure.
			applied += int64(len(batch))
		}
		touched = true
	}
	e.logger.WithFields(map[string]interface{}{
		"table":    name,
		"records":  applied,
		"duration": time.Since(start).String(),
	}).Debug("Table restore finished")
	if !touched {
		return -1
	}
	return applied
}

func conflictMode(strategy ConflictStrategy) store.ConflictMode {
	if strategy == StrategySkip {
		return store.ConflictIgnore
	}
	return store.ConflictOverwrite
}

func (e *Engine) fail(ctx context.Context, log *ledger.RestoreLog, cause error) (*ledger.RestoreLog, error) {
	if err := log.MarkFailed(cause.Error()); err != nil {
		e.logger.Warnf("Failed to mark restore %s failed: %v", log.ID, err)
	}
	e.logger.LogJobTransition(log.ID, string(ledger.RestoreStatusInProgress), string(ledger.RestoreStatusFailed))
	if err := e.repo.UpdateRestoreLog(ctx, log); err != nil {
		e.logger.Warnf("Failed to persist failure of restore %s: %v", log.ID, err)
	}
	return log, cause
}
