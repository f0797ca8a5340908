// Package server exposes the engine over HTTP for the platform's admin UI.
// Authorization is delegated to the engine layer; the server only carries
// the actor id from the X-Actor-ID header into each request.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tenant-vault/internal/backup"
	"tenant-vault/internal/errors"
	"tenant-vault/internal/export"
	"tenant-vault/internal/ledger"
	"tenant-vault/internal/logging"
	"tenant-vault/internal/restore"
)

const actorHeader = "X-Actor-ID"

// DefaultListLimit caps list endpoints when no limit is given.
const DefaultListLimit = 50

// Options bundles the engine dependencies of the HTTP layer
type Options struct {
	Backups    *backup.Orchestrator
	Restores   *restore.Engine
	Exporter   *export.Exporter
	Repository ledger.Repository
	Logger     *logging.Logger

	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the HTTP API. Backup and restore runs block the triggering
// request until done; the write timeout must accommodate the largest
// expected job.
type Server struct {
	opts   Options
	logger *logging.Logger
	http   *http.Server
}

// New creates a server with its routes mounted
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.NewDefaultLogger()
	}
	s := &Server{opts: opts, logger: opts.Logger}
	s.http = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.Router(),
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s
}

// Router builds the chi router. Exposed separately so tests can drive the
// handlers without a listening socket.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/backups", s.createBackup)
		r.Get("/backups", s.listBackups)
		r.Get("/backups/{jobID}", s.getBackup)
		r.Post("/restores", s.createRestore)
		r.Get("/restores", s.listRestores)
		r.Get("/restores/{restoreID}", s.getRestore)
		r.Post("/exports/{tenantID}", s.exportTenant)
	})
	return r
}

// ListenAndServe starts the server and blocks until it stops
func (s *Server) ListenAndServe() error {
	s.logger.Infof("HTTP API listening on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type backupRequest struct {
	Type   string   `json:"type"`
	Tables []string `json:"tables,omitempty"`
	Notes  string   `json:"notes,omitempty"`
}

func (s *Server) createBackup(w http.ResponseWriter, r *http.Request) {
	var body backupRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, errors.NewValidationError("invalid request body", err))
		return
	}

	job, err := s.opts.Backups.Run(r.Context(), backup.Request{
		Type:        ledger.BackupType(body.Type),
		Tables:      body.Tables,
		Notes:       body.Notes,
		RequestedBy: r.Header.Get(actorHeader),
	})
	if err != nil {
		// A failed job still has a ledger record worth returning.
		if job != nil {
			s.writeJSON(w, http.StatusInternalServerError, job)
			return
		}
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, job)
}

func (s *Server) listBackups(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.opts.Repository.ListBackupJobs(r.Context(), listLimit(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) getBackup(w http.ResponseWriter, r *http.Request) {
	job, err := s.opts.Repository.GetBackupJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

type restoreRequest struct {
	BackupJobID        string   `json:"backup_job_id"`
	Tables             []string `json:"tables,omitempty"`
	Strategy           string   `json:"strategy"`
	CreateSafetyBackup bool     `json:"create_safety_backup"`
	Notes              string   `json:"notes,omitempty"`
}

func (s *Server) createRestore(w http.ResponseWriter, r *http.Request) {
	var body restoreRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, errors.NewValidationError("invalid request body", err))
		return
	}

	log, err := s.opts.Restores.Run(r.Context(), restore.Request{
		BackupJobID:        body.BackupJobID,
		TargetTables:       body.Tables,
		Strategy:           restore.ConflictStrategy(body.Strategy),
		CreateSafetyBackup: body.CreateSafetyBackup,
		Notes:              body.Notes,
		RequestedBy:        r.Header.Get(actorHeader),
	})
	if err != nil {
		if log != nil {
			s.writeJSON(w, http.StatusInternalServerError, log)
			return
		}
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, log)
}

func (s *Server) listRestores(w http.ResponseWriter, r *http.Request) {
	logs, err := s.opts.Repository.ListRestoreLogs(r.Context(), listLimit(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, logs)
}

func (s *Server) getRestore(w http.ResponseWriter, r *http.Request) {
	log, err := s.opts.Repository.GetRestoreLog(r.Context(), chi.URLParam(r, "restoreID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, log)
}

func (s *Server) exportTenant(w http.ResponseWriter, r *http.Request) {
	doc, err := s.opts.Exporter.ExportTenant(r.Context(),
		chi.URLParam(r, "tenantID"), r.Header.Get(actorHeader))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

func listLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return DefaultListLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warnf("Failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Errorf("Request failed: %v", err)
	}
	s.writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"type":  string(errors.TypeOf(err)),
	})
}

// statusFor maps the engine's error taxonomy onto HTTP status codes
func statusFor(err error) int {
	switch errors.TypeOf(err) {
	case errors.ErrorTypeUnauthorized:
		return http.StatusForbidden
	case errors.ErrorTypeNotFound:
		return http.StatusNotFound
	case errors.ErrorTypeInvalidState:
		return http.StatusConflict
	case errors.ErrorTypeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
