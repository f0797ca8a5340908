package backup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-vault/internal/ledger"
	"tenant-vault/internal/store"
)

func TestDocument_RoundTrip(t *testing.T) {
	doc := NewDocument(Metadata{Type: ledger.BackupTypeFull, CreatedBy: "admin-1"})
	doc.AddTable("companies", []store.Row{{"id": "c1"}, {"id": "c2"}})
	doc.AddSchemaMarker("audit_events")

	assert.Equal(t, DocumentVersion, doc.Metadata.Version)
	assert.Equal(t, int64(2), doc.TotalRecords())
	assert.ElementsMatch(t, []string{"companies", "audit_events"}, doc.TableNames())

	data, err := doc.ToJSON()
	require.NoError(t, err)

	parsed, err := ParseDocument(data)
	require.NoError(t, err)
	assert.Equal(t, int64(2), parsed.TotalRecords())
	assert.Len(t, parsed.Tables["companies"].Data, 2)
	assert.True(t, parsed.Tables["audit_events"].SchemaOnly)
	assert.Empty(t, parsed.Tables["audit_events"].Data)
}

func TestParseDocument_RejectsUnversioned(t *testing.T) {
	_, err := ParseDocument([]byte(`{"tables":{}}`))
	assert.Error(t, err)

	_, err = ParseDocument([]byte(`not json`))
	assert.Error(t, err)
}
