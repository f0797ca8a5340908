package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-vault/internal/auth"
	"tenant-vault/internal/backup"
	"tenant-vault/internal/catalog"
	"tenant-vault/internal/errors"
	"tenant-vault/internal/export"
	"tenant-vault/internal/ledger"
	"tenant-vault/internal/restore"
	"tenant-vault/internal/store"
)

// fakeStore serves and accepts rows for the full engine stack.
type fakeStore struct {
	mu   sync.Mutex
	data map[string][]store.Row
}

func (fs *fakeStore) Select(_ context.Context, table string, filter store.Filter, offset, limit int) ([]store.Row, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var matched []store.Row
	for _, row := range fs.data[table] {
		if filterMatches(row, filter) {
			matched = append(matched, row)
		}
	}
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (fs *fakeStore) Delete(_ context.Context, table string, _ store.Filter) (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n := int64(len(fs.data[table]))
	fs.data[table] = nil
	return n, nil
}

func (fs *fakeStore) UpsertBatch(_ context.Context, table string, rows []store.Row, _ store.ConflictMode) (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.data[table] = append(fs.data[table], rows...)
	return int64(len(rows)), nil
}

func filterMatches(row store.Row, filter store.Filter) bool {
	if filter.IsZero() {
		return true
	}
	value := row[filter.Column]
	for _, candidate := range filter.Values {
		if value == candidate {
			return true
		}
	}
	return false
}

// apiLedger is an in-memory ledger shared by the wired engines.
type apiLedger struct {
	mu       sync.Mutex
	jobs     map[string]*ledger.BackupJob
	files    map[string]*ledger.BackupFile
	restores map[string]*ledger.RestoreLog
	exports  []*ledger.ExportLog
}

func newAPILedger() *apiLedger {
	return &apiLedger{
		jobs:     make(map[string]*ledger.BackupJob),
		files:    make(map[string]*ledger.BackupFile),
		restores: make(map[string]*ledger.RestoreLog),
	}
}

func (al *apiLedger) CreateBackupJob(_ context.Context, job *ledger.BackupJob) error {
	al.mu.Lock()
	defer al.mu.Unlock()
	copied := *job
	al.jobs[job.ID] = &copied
	return nil
}

func (al *apiLedger) UpdateBackupJob(ctx context.Context, job *ledger.BackupJob) error {
	return al.CreateBackupJob(ctx, job)
}

func (al *apiLedger) GetBackupJob(_ context.Context, id string) (*ledger.BackupJob, error) {
	al.mu.Lock()
	defer al.mu.Unlock()
	job, ok := al.jobs[id]
	if !ok {
		return nil, errors.NewNotFound(fmt.Sprintf("backup job %s not found", id), nil)
	}
	copied := *job
	return &copied, nil
}

func (al *apiLedger) ListBackupJobs(context.Context, int) ([]*ledger.BackupJob, error) {
	al.mu.Lock()
	defer al.mu.Unlock()
	var jobs []*ledger.BackupJob
	for _, job := range al.jobs {
		copied := *job
		jobs = append(jobs, &copied)
	}
	return jobs, nil
}

func (al *apiLedger) CreateBackupFile(_ context.Context, file *ledger.BackupFile) error {
	al.mu.Lock()
	defer al.mu.Unlock()
	copied := *file
	al.files[file.JobID] = &copied
	return nil
}

func (al *apiLedger) GetBackupFileByJob(_ context.Context, jobID string) (*ledger.BackupFile, error) {
	al.mu.Lock()
	defer al.mu.Unlock()
	file, ok := al.files[jobID]
	if !ok {
		return nil, errors.NewNotFound("backup file not found", nil)
	}
	copied := *file
	return &copied, nil
}

func (al *apiLedger) CreateRestoreLog(_ context.Context, log *ledger.RestoreLog) error {
	al.mu.Lock()
	defer al.mu.Unlock()
	copied := *log
	al.restores[log.ID] = &copied
	return nil
}

func (al *apiLedger) UpdateRestoreLog(ctx context.Context, log *ledger.RestoreLog) error {
	return al.CreateRestoreLog(ctx, log)
}

func (al *apiLedger) GetRestoreLog(_ context.Context, id string) (*ledger.RestoreLog, error) {
	al.mu.Lock()
	defer al.mu.Unlock()
	log, ok := al.restores[id]
	if !ok {
		return nil, errors.NewNotFound(fmt.Sprintf("restore log %s not found", id), nil)
	}
	copied := *log
	return &copied, nil
}

func (al *apiLedger) ListRestoreLogs(context.Context, int) ([]*ledger.RestoreLog, error) {
	al.mu.Lock()
	defer al.mu.Unlock()
	var logs []*ledger.RestoreLog
	for _, log := range al.restores {
		copied := *log
		logs = append(logs, &copied)
	}
	return logs, nil
}

func (al *apiLedger) CreateExportLog(_ context.Context, log *ledger.ExportLog) error {
	al.mu.Lock()
	defer al.mu.Unlock()
	copied := *log
	al.exports = append(al.exports, &copied)
	return nil
}

// apiStorage is an in-memory blob store.
type apiStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (as *apiStorage) Put(_ context.Context, path string, data []byte, _ string) error {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.objects == nil {
		as.objects = make(map[string][]byte)
	}
	as.objects[path] = append([]byte(nil), data...)
	return nil
}

func (as *apiStorage) Get(_ context.Context, path string) ([]byte, error) {
	as.mu.Lock()
	defer as.mu.Unlock()
	data, ok := as.objects[path]
	if !ok {
		return nil, errors.NewNotFound("object not found", nil)
	}
	return append([]byte(nil), data...), nil
}

func (as *apiStorage) Delete(context.Context, string) error { return nil }

func (as *apiStorage) List(context.Context, string) ([]string, error) { return nil, nil }

// newTestServer wires the whole engine stack against in-memory
// collaborators and returns the server plus its ledger.
func newTestServer(t *testing.T, authorizer auth.Authorizer) (*Server, *apiLedger) {
	t.Helper()
	st := &fakeStore{data: map[string][]store.Row{
		"companies": {{"id": "c1", "name": "Acme"}},
		"users":     {{"id": "u1", "company_id": "c1"}, {"id": "u2", "company_id": "c1"}},
	}}
	repo := newAPILedger()
	storage := &apiStorage{}
	cat := catalog.Default()

	orch := backup.NewOrchestrator(backup.Options{
		Reader:     store.NewPaginatedReader(st, nil),
		Catalog:    cat,
		Storage:    storage,
		Repository: repo,
		Authorizer: authorizer,
	})
	engine := restore.NewEngine(restore.Options{
		Store:      st,
		Storage:    storage,
		Repository: repo,
		Authorizer: authorizer,
	})
	exporter := export.NewExporter(export.Options{
		Store:      st,
		Catalog:    cat,
		Repository: repo,
		Authorizer: authorizer,
	})
	return New(Options{
		Backups:    orch,
		Restores:   engine,
		Exporter:   exporter,
		Repository: repo,
		Addr:       ":0",
	}), repo
}

func doJSON(t *testing.T, s *Server, method, path string, body any, actor string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if actor != "" {
		req.Header.Set("X-Actor-ID", actor)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestServer_BackupLifecycle(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/backups",
		backupRequest{Type: "full", Notes: "nightly"}, "admin-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var job ledger.BackupJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, ledger.JobStatusCompleted, job.Status)
	assert.Equal(t, "admin-1", job.RequestedBy)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/backups/"+job.ID, nil, "admin-1")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/backups", nil, "admin-1")
	assert.Equal(t, http.StatusOK, rec.Code)
	var jobs []ledger.BackupJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
	assert.Len(t, jobs, 1)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/backups/job-missing", nil, "admin-1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_RestoreEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/backups",
		backupRequest{Type: "full"}, "admin-1")
	require.Equal(t, http.StatusCreated, rec.Code)
	var job ledger.BackupJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))

	rec = doJSON(t, s, http.MethodPost, "/api/v1/restores",
		restoreRequest{BackupJobID: job.ID, Strategy: "merge"}, "admin-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var log ledger.RestoreLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &log))
	assert.Equal(t, ledger.RestoreStatusCompleted, log.Status)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/restores/"+log.ID, nil, "admin-1")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_ErrorMapping(t *testing.T) {
	s, _ := newTestServer(t, nil)

	t.Run("validation 400", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/v1/restores",
			restoreRequest{BackupJobID: "job-x", Strategy: "upsert"}, "admin-1")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("not found 404", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/v1/restores",
			restoreRequest{BackupJobID: "job-missing", Strategy: "merge"}, "admin-1")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid state 409", func(t *testing.T) {
		srv, repo := newTestServer(t, nil)
		pending := ledger.NewBackupJob(ledger.BackupTypeFull, nil, "", "admin-1")
		require.NoError(t, repo.CreateBackupJob(context.Background(), pending))

		rec := doJSON(t, srv, http.MethodPost, "/api/v1/restores",
			restoreRequest{BackupJobID: pending.ID, Strategy: "merge"}, "admin-1")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unknown tenant 404", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/v1/exports/ghost", nil, "admin-1")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestServer_Unauthorized(t *testing.T) {
	s, _ := newTestServer(t, &auth.StaticAuthorizer{
		Grants: map[auth.Action][]string{
			auth.ActionBackup: {"admin-1"},
			auth.ActionExport: {"admin-1"},
		},
	})

	rec := doJSON(t, s, http.MethodPost, "/api/v1/backups",
		backupRequest{Type: "full"}, "intruder")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/exports/c1", nil, "intruder")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServer_ExportEndpoint(t *testing.T) {
	s, repo := newTestServer(t, nil)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/exports/c1", nil, "admin-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var doc export.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "c1", doc.SourceTenantID)
	assert.Equal(t, int64(3), doc.TotalRecords)
	assert.Len(t, repo.exports, 1)
}

func TestListLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/backups", nil)
	assert.Equal(t, DefaultListLimit, listLimit(req))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/backups?limit=5", nil)
	assert.Equal(t, 5, listLimit(req))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/backups?limit=-3", nil)
	assert.Equal(t, DefaultListLimit, listLimit(req))
}
