// Package catalog declares the tables the engine operates on and the
// relationships that drive export traversal. Adding a table to the platform
// means appending one descriptor here (or shipping a YAML override); no other
// code path keys off table names.
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RootTable is the tenant entity every per-tenant export is rooted at.
const RootTable = "companies"

// TableDescriptor describes one table: how its rows are scoped to a tenant
// and, for second-level tables and below, which parent table they hang off.
type TableDescriptor struct {
	// Name is the table name in the relational store.
	Name string `yaml:"name"`
	// PrimaryKey is the primary id column, used for conflict resolution on
	// restore and for propagating id sets to child tables during export.
	PrimaryKey string `yaml:"primary_key"`
	// TenantColumn is the tenant-scoping column for tables filtered directly
	// by tenant id. Empty for the root table and for tables reached through
	// a parent.
	TenantColumn string `yaml:"tenant_column,omitempty"`
	// ParentTable and ParentJoinColumn declare the foreign-key edge used to
	// compute this table's filter from the parent's primary ids.
	ParentTable      string `yaml:"parent_table,omitempty"`
	ParentJoinColumn string `yaml:"parent_join_column,omitempty"`
	// Static marks reference tables that are skipped by incremental backups.
	Static bool `yaml:"static,omitempty"`
}

// ScopeKind selects which slice of the catalog an operation covers
type ScopeKind string

const (
	ScopeAll        ScopeKind = "all"
	ScopeSelective  ScopeKind = "selective"
	ScopeSchemaOnly ScopeKind = "schema_only"
)

// Scope is a table-set selector passed to List
type Scope struct {
	Kind   ScopeKind
	Tables []string
}

// All selects every table in the catalog
func All() Scope { return Scope{Kind: ScopeAll} }

// Selective selects only the named tables, in catalog order
func Selective(tables []string) Scope { return Scope{Kind: ScopeSelective, Tables: tables} }

// SchemaOnly selects every table; callers record structure markers instead of rows
func SchemaOnly() Scope { return Scope{Kind: ScopeSchemaOnly} }

// Catalog is an ordered list of table descriptors. Order is topological:
// every descriptor's parent appears before it.
type Catalog struct {
	tables []TableDescriptor
	byName map[string]TableDescriptor
}

// Default returns the built-in catalog for the platform schema.
func Default() *Catalog {
	c, err := New([]TableDescriptor{
		{Name: "companies", PrimaryKey: "id"},
		{Name: "users", PrimaryKey: "id", TenantColumn: "company_id"},
		{Name: "departments", PrimaryKey: "id", TenantColumn: "company_id"},
		{Name: "roles", PrimaryKey: "id", TenantColumn: "company_id", Static: true},
		{Name: "strategic_plans", PrimaryKey: "id", TenantColumn: "company_id"},
		{Name: "pillars", PrimaryKey: "id", ParentTable: "strategic_plans", ParentJoinColumn: "plan_id"},
		{Name: "objectives", PrimaryKey: "id", ParentTable: "pillars", ParentJoinColumn: "pillar_id"},
		{Name: "key_results", PrimaryKey: "id", ParentTable: "objectives", ParentJoinColumn: "objective_id"},
		{Name: "key_result_values", PrimaryKey: "id", ParentTable: "key_results", ParentJoinColumn: "key_result_id"},
		{Name: "key_result_history", PrimaryKey: "id", ParentTable: "key_results", ParentJoinColumn: "key_result_id"},
		{Name: "fca_snapshots", PrimaryKey: "id", ParentTable: "key_results", ParentJoinColumn: "key_result_id"},
		{Name: "actions", PrimaryKey: "id", ParentTable: "key_results", ParentJoinColumn: "key_result_id"},
		{Name: "mentoring_sessions", PrimaryKey: "id", TenantColumn: "company_id"},
		{Name: "mentoring_notes", PrimaryKey: "id", ParentTable: "mentoring_sessions", ParentJoinColumn: "session_id"},
		{Name: "ai_insights", PrimaryKey: "id", TenantColumn: "company_id"},
		{Name: "audit_events", PrimaryKey: "id", TenantColumn: "company_id"},
	})
	if err != nil {
		// The built-in catalog is validated by tests; a broken one is a
		// programming error, not a runtime condition.
		panic(err)
	}
	return c
}

// New builds a catalog from descriptors, validating the topological invariant:
// every non-root descriptor's parent must appear earlier in the list.
func New(tables []TableDescriptor) (*Catalog, error) {
	byName := make(map[string]TableDescriptor, len(tables))
	for _, td := range tables {
		if td.Name == "" {
			return nil, fmt.Errorf("catalog entry with empty table name")
		}
		if td.PrimaryKey == "" {
			return nil, fmt.Errorf("table %s: primary key column is required", td.Name)
		}
		if _, dup := byName[td.Name]; dup {
			return nil, fmt.Errorf("table %s declared twice", td.Name)
		}
		if td.ParentTable != "" {
			if td.ParentJoinColumn == "" {
				return nil, fmt.Errorf("table %s: parent_table set without parent_join_column", td.Name)
			}
			if _, ok := byName[td.ParentTable]; !ok {
				return nil, fmt.Errorf("table %s: parent %s not declared before it", td.Name, td.ParentTable)
			}
		}
		byName[td.Name] = td
	}
	return &Catalog{tables: tables, byName: byName}, nil
}

// LoadFile reads a catalog override from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	var tables []TableDescriptor
	if err := yaml.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file %s: %w", path, err)
	}
	return New(tables)
}

// List returns the descriptors selected by scope, in catalog order.
// An unknown scope kind returns the full catalog.
func (c *Catalog) List(scope Scope) []TableDescriptor {
	switch scope.Kind {
	case ScopeSelective:
		wanted := make(map[string]bool, len(scope.Tables))
		for _, name := range scope.Tables {
			wanted[name] = true
		}
		var out []TableDescriptor
		for _, td := range c.tables {
			if wanted[td.Name] {
				out = append(out, td)
			}
		}
		return out
	default:
		out := make([]TableDescriptor, len(c.tables))
		copy(out, c.tables)
		return out
	}
}

// Lookup returns the descriptor for a table name.
func (c *Catalog) Lookup(name string) (TableDescriptor, bool) {
	td, ok := c.byName[name]
	return td, ok
}

// Names returns every table name in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.tables))
	for i, td := range c.tables {
		names[i] = td.Name
	}
	return names
}

// TenantScoped returns the first-level tables: those filtered directly by
// the tenant column.
func (c *Catalog) TenantScoped() []TableDescriptor {
	var out []TableDescriptor
	for _, td := range c.tables {
		if td.TenantColumn != "" && td.ParentTable == "" {
			out = append(out, td)
		}
	}
	return out
}

// ChildrenOf returns the tables whose declared parent is the given table.
func (c *Catalog) ChildrenOf(parent string) []TableDescriptor {
	var out []TableDescriptor
	for _, td := range c.tables {
		if td.ParentTable == parent {
			out = append(out, td)
		}
	}
	return out
}
