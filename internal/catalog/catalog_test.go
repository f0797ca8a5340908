package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_TopologicalOrder(t *testing.T) {
	c := Default()

	seen := make(map[string]bool)
	for _, td := range c.List(All()) {
		if td.ParentTable != "" {
			assert.True(t, seen[td.ParentTable],
				"parent %s of %s must be declared before it", td.ParentTable, td.Name)
		}
		seen[td.Name] = true
	}
}

func TestDefault_RootTable(t *testing.T) {
	c := Default()
	root, ok := c.Lookup(RootTable)
	require.True(t, ok)
	assert.Empty(t, root.TenantColumn)
	assert.Empty(t, root.ParentTable)
	assert.Equal(t, "id", root.PrimaryKey)
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name   string
		tables []TableDescriptor
		wantOK bool
	}{
		{
			name: "valid chain",
			tables: []TableDescriptor{
				{Name: "companies", PrimaryKey: "id"},
				{Name: "plans", PrimaryKey: "id", TenantColumn: "company_id"},
				{Name: "pillars", PrimaryKey: "id", ParentTable: "plans", ParentJoinColumn: "plan_id"},
			},
			wantOK: true,
		},
		{
			name: "parent declared after child",
			tables: []TableDescriptor{
				{Name: "pillars", PrimaryKey: "id", ParentTable: "plans", ParentJoinColumn: "plan_id"},
				{Name: "plans", PrimaryKey: "id", TenantColumn: "company_id"},
			},
			wantOK: false,
		},
		{
			name: "missing join column",
			tables: []TableDescriptor{
				{Name: "plans", PrimaryKey: "id"},
				{Name: "pillars", PrimaryKey: "id", ParentTable: "plans"},
			},
			wantOK: false,
		},
		{
			name: "duplicate table",
			tables: []TableDescriptor{
				{Name: "plans", PrimaryKey: "id"},
				{Name: "plans", PrimaryKey: "id"},
			},
			wantOK: false,
		},
		{
			name: "missing primary key",
			tables: []TableDescriptor{
				{Name: "plans"},
			},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.tables)
			if tt.wantOK {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestList_Scopes(t *testing.T) {
	c := Default()
	full := c.List(All())

	t.Run("all returns full catalog", func(t *testing.T) {
		assert.Len(t, full, 16)
	})

	t.Run("selective filters and keeps catalog order", func(t *testing.T) {
		got := c.List(Selective([]string{"key_results", "companies"}))
		require.Len(t, got, 2)
		assert.Equal(t, "companies", got[0].Name)
		assert.Equal(t, "key_results", got[1].Name)
	})

	t.Run("selective ignores unknown names", func(t *testing.T) {
		got := c.List(Selective([]string{"companies", "no_such_table"}))
		require.Len(t, got, 1)
		assert.Equal(t, "companies", got[0].Name)
	})

	t.Run("schema only returns full catalog", func(t *testing.T) {
		assert.Equal(t, full, c.List(SchemaOnly()))
	})

	t.Run("unknown scope returns full catalog", func(t *testing.T) {
		assert.Equal(t, full, c.List(Scope{Kind: "whatever"}))
	})
}

func TestTenantScopedAndChildren(t *testing.T) {
	c := Default()

	for _, td := range c.TenantScoped() {
		assert.NotEmpty(t, td.TenantColumn)
		assert.Empty(t, td.ParentTable)
	}

	children := c.ChildrenOf("key_results")
	names := make([]string, len(children))
	for i, td := range children {
		names[i] = td.Name
	}
	assert.ElementsMatch(t,
		[]string{"key_result_values", "key_result_history", "fca_snapshots", "actions"}, names)
}

func TestLoadFile(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		content := `
- name: companies
  primary_key: id
- name: projects
  primary_key: id
  tenant_column: company_id
- name: tasks
  primary_key: id
  parent_table: projects
  parent_join_column: project_id
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		c, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"companies", "projects", "tasks"}, c.Names())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0644))
		_, err := LoadFile(path)
		assert.Error(t, err)
	})
}
