// Package export implements the dependency-ordered tenant exporter: a
// breadth-first walk of the table catalog rooted at the tenant entity,
// propagating primary-id sets from parents to children and assembling one
// export document.
package export

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"tenant-vault/internal/auth"
	"tenant-vault/internal/catalog"
	"tenant-vault/internal/errors"
	"tenant-vault/internal/ledger"
	"tenant-vault/internal/logging"
	"tenant-vault/internal/store"
)

// DocumentVersion identifies the export document format
const DocumentVersion = "1.0"

// DefaultFanOut bounds concurrent sibling fetches within one traversal level.
const DefaultFanOut = 5

// Document is a single tenant's data, assembled by one export run and
// immutable afterward.
type Document struct {
	Version        string                 `json:"version"`
	SourceTenantID string                 `json:"source_tenant_id"`
	ExportedAt     time.Time              `json:"exported_at"`
	TotalRecords   int64                  `json:"total_records"`
	TablesExported []string               `json:"tables_exported"`
	Data           map[string][]store.Row `json:"data"`
}

// Exporter walks the catalog forest for one tenant. Sibling tables within a
// level are independent and fetched concurrently; levels run strictly in
// sequence because children filter on their parents' primary ids.
type Exporter struct {
	store      store.Store
	reader     *store.PaginatedReader
	catalog    *catalog.Catalog
	repo       ledger.Repository
	authorizer auth.Authorizer
	logger     *logging.Logger
	fanOut     int
}

// Options configures an Exporter. Store, Reader, Catalog and Repository are
// required; Authorizer defaults to allow-all and FanOut to DefaultFanOut.
type Options struct {
	Store      store.Store
	Reader     *store.PaginatedReader
	Catalog    *catalog.Catalog
	Repository ledger.Repository
	Authorizer auth.Authorizer
	Logger     *logging.Logger
	FanOut     int
}

// NewExporter creates an exporter
func NewExporter(opts Options) *Exporter {
	if opts.Logger == nil {
		opts.Logger = logging.NewDefaultLogger()
	}
	if opts.Authorizer == nil {
		opts.Authorizer = auth.AllowAll{}
	}
	if opts.FanOut <= 0 {
		opts.FanOut = DefaultFanOut
	}
	if opts.Reader == nil {
		opts.Reader = store.NewPaginatedReader(opts.Store, opts.Logger)
	}
	return &Exporter{
		store:      opts.Store,
		reader:     opts.Reader,
		catalog:    opts.Catalog,
		repo:       opts.Repository,
		authorizer: opts.Authorizer,
		logger:     opts.Logger,
		fanOut:     opts.FanOut,
	}
}

// ExportTenant exports every row belonging to one tenant. The call fails
// only when the caller is unauthorized or the tenant row itself cannot be
// fetched; a single table's read failure leaves that table (and, through an
// empty id set, its descendants) out of the document.
func (e *Exporter) ExportTenant(ctx context.Context, tenantID, requestedBy string) (*Document, error) {
	if !e.authorizer.IsAuthorized(ctx, requestedBy, auth.ActionExport, tenantID) {
		return nil, errors.NewUnauthorized("actor is not allowed to export this tenant")
	}

	root, ok := e.catalog.Lookup(catalog.RootTable)
	if !ok {
		return nil, errors.NewConfigurationError(
			fmt.Sprintf("catalog has no root table %q", catalog.RootTable), nil)
	}

	rootRows, err := e.store.Select(ctx, root.Name, store.Equals(root.PrimaryKey, tenantID), 0, 1)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to fetch tenant row", err)
	}
	if len(rootRows) == 0 {
		return nil, errors.NewNotFound(fmt.Sprintf("tenant %s not found", tenantID), nil)
	}

	start := time.Now()
	results := map[string][]store.Row{root.Name: rootRows}

	level := e.catalog.TenantScoped()
	level = append(level, e.catalog.ChildrenOf(root.Name)...)
	for len(level) > 0 {
		e.fetchLevel(ctx, level, tenantID, results)

		// Children of tables that produced no rows inherit an empty id set
		// and are never queued.
		var next []catalog.TableDescriptor
		for _, td := range level {
			if len(results[td.Name]) > 0 {
				next = append(next, e.catalog.ChildrenOf(td.Name)...)
			}
		}
		level = next
	}

	doc := e.assemble(tenantID, results)
	e.logger.WithFields(map[string]interface{}{
		"tenant_id":     tenantID,
		"tables":        len(doc.TablesExported),
		"total_records": doc.TotalRecords,
		"duration":      time.Since(start).String(),
	}).Info("Tenant export complete")

	log := ledger.NewExportLog(tenantID, requestedBy, doc.TablesExported, doc.TotalRecords)
	if err := e.repo.CreateExportLog(ctx, log); err != nil {
		// The export itself succeeded; a missing audit row is not worth
		// discarding the document over.
		e.logger.Warnf("Failed to persist export log for tenant %s: %v", tenantID, err)
	}
	return doc, nil
}

// fetchLevel reads every table of one traversal level, bounding fan-out.
// Sibling fetches never abort each other: the reader already reports its
// own failures and returns what it accumulated.
func (e *Exporter) fetchLevel(ctx context.Context, level []catalog.TableDescriptor, tenantID string, results map[string][]store.Row) {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.fanOut)

	for _, td := range level {
		filter, ok := e.filterFor(td, tenantID, results)
		if !ok {
			continue
		}
		td := td
		g.Go(func() error {
			rows := e.reader.ReadAll(gctx, td.Name, filter)
			if len(rows) > 0 {
				mu.Lock()
				results[td.Name] = rows
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
}

// filterFor derives the filter for one table: tenant-scoped tables match the
// tenant id directly, deeper tables match the set of primary ids fetched
// from their parent. An empty parent-id set means there is nothing to fetch.
func (e *Exporter) filterFor(td catalog.TableDescriptor, tenantID string, results map[string][]store.Row) (store.Filter, bool) {
	if td.TenantColumn != "" {
		return store.Equals(td.TenantColumn, tenantID), true
	}

	parent, ok := e.catalog.Lookup(td.ParentTable)
	if !ok {
		return store.Filter{}, false
	}
	ids := primaryIDs(results[parent.Name], parent.PrimaryKey)
	if len(ids) == 0 {
		return store.Filter{}, false
	}
	return store.InSet(td.ParentJoinColumn, ids), true
}

func (e *Exporter) assemble(tenantID string, results map[string][]store.Row) *Document {
	doc := &Document{
		Version:        DocumentVersion,
		SourceTenantID: tenantID,
		ExportedAt:     time.Now().UTC(),
		Data:           make(map[string][]store.Row, len(results)),
	}
	// Catalog order keeps tablesExported deterministic.
	for _, name := range e.catalog.Names() {
		rows := results[name]
		if len(rows) == 0 {
			continue
		}
		doc.Data[name] = rows
		doc.TablesExported = append(doc.TablesExported, name)
		doc.TotalRecords += int64(len(rows))
	}
	return doc
}

func primaryIDs(rows []store.Row, primaryKey string) []any {
	var ids []any
	for _, row := range rows {
		if id, ok := row[primaryKey]; ok && id != nil {
			ids = append(ids, id)
		}
	}
	return ids
}
