// Package backup implements the backup orchestrator: a whole-system snapshot
// job that reads tables through the paginated reader, assembles a single
// backup document, and persists it to blob storage.
package backup

import (
	"encoding/json"
	"fmt"
	"time"

	"tenant-vault/internal/ledger"
	"tenant-vault/internal/store"
)

// DocumentVersion identifies the backup document format
const DocumentVersion = "1.0"

// Metadata describes a backup document as a whole
type Metadata struct {
	Version   string            `json:"version"`
	Type      ledger.BackupType `json:"type"`
	CreatedAt time.Time         `json:"created_at"`
	CreatedBy string            `json:"created_by"`
	Notes     string            `json:"notes,omitempty"`
}

// TableBackup holds one table's contribution to a backup document.
// Schema-only backups record a structure marker and no row data.
type TableBackup struct {
	Data        []store.Row `json:"data,omitempty"`
	SchemaOnly  bool        `json:"schema_only,omitempty"`
	RecordCount int64       `json:"record_count"`
	BackedUpAt  time.Time   `json:"backed_up_at"`
}

// Document is a whole-system snapshot, serialized as a single blob.
type Document struct {
	Metadata Metadata               `json:"metadata"`
	Tables   map[string]TableBackup `json:"tables"`
}

// NewDocument creates an empty document with the given metadata
func NewDocument(meta Metadata) *Document {
	if meta.Version == "" {
		meta.Version = DocumentVersion
	}
	return &Document{
		Metadata: meta,
		Tables:   make(map[string]TableBackup),
	}
}

// AddTable records one table's rows in the document
func (d *Document) AddTable(name string, rows []store.Row) {
	d.Tables[name] = TableBackup{
		Data:        rows,
		RecordCount: int64(len(rows)),
		BackedUpAt:  time.Now().UTC(),
	}
}

// AddSchemaMarker records a structure-only entry for a table
func (d *Document) AddSchemaMarker(name string) {
	d.Tables[name] = TableBackup{
		SchemaOnly: true,
		BackedUpAt: time.Now().UTC(),
	}
}

// TotalRecords sums the record counts across all tables
func (d *Document) TotalRecords() int64 {
	var total int64
	for _, tb := range d.Tables {
		total += tb.RecordCount
	}
	return total
}

// TableNames returns the tables present in the document
func (d *Document) TableNames() []string {
	names := make([]string, 0, len(d.Tables))
	for name := range d.Tables {
		names = append(names, name)
	}
	return names
}

// ToJSON serializes the document
func (d *Document) ToJSON() ([]byte, error) {
	return json.Marshal(d)
}

// ParseDocument deserializes a backup document and checks its shape
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse backup document: %w", err)
	}
	if doc.Metadata.Version == "" {
		return nil, fmt.Errorf("backup document has no version")
	}
	if doc.Tables == nil {
		doc.Tables = make(map[string]TableBackup)
	}
	return &doc, nil
}
