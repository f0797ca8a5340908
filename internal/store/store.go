// Package store adapts the platform's relational data store for the engine.
// Rows are schemaless: the engine never interprets row contents beyond the
// columns named by the table catalog.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"tenant-vault/internal/errors"
	"tenant-vault/internal/logging"
)

// Row is an opaque key-value record representing one persisted entity.
type Row map[string]any

// FilterMode selects how a filter column is matched
type FilterMode string

const (
	// FilterEquals matches rows whose filter column equals a single value
	FilterEquals FilterMode = "equals"
	// FilterInSet matches rows whose filter column is in a value set
	FilterInSet FilterMode = "in_set"
)

// Filter scopes a Select or Delete. The zero value matches every row.
type Filter struct {
	Column string
	Mode   FilterMode
	Values []any
}

// Equals builds a single-value filter
func Equals(column string, value any) Filter {
	return Filter{Column: column, Mode: FilterEquals, Values: []any{value}}
}

// InSet builds a value-set filter
func InSet(column string, values []any) Filter {
	return Filter{Column: column, Mode: FilterInSet, Values: values}
}

// IsZero reports whether the filter matches every row
func (f Filter) IsZero() bool { return f.Column == "" }

// ConflictMode governs how UpsertBatch treats rows whose primary key
// already exists in the destination table.
type ConflictMode string

const (
	// ConflictIgnore leaves existing rows untouched and inserts only new keys
	ConflictIgnore ConflictMode = "ignore"
	// ConflictOverwrite replaces existing rows field-for-field
	ConflictOverwrite ConflictMode = "overwrite"
)

// Store exposes the relational operations the engine needs.
type Store interface {
	Select(ctx context.Context, table string, filter Filter, offset, limit int) ([]Row, error)
	Delete(ctx context.Context, table string, filter Filter) (int64, error)
	UpsertBatch(ctx context.Context, table string, rows []Row, mode ConflictMode) (int64, error)
}

// SQLStore implements Store over database/sql.
type SQLStore struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewSQLStore creates a store over an established connection pool.
func NewSQLStore(db *sql.DB, logger *logging.Logger) *SQLStore {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &SQLStore{db: db, logger: logger}
}

// PoolConfig tunes the connection pool. Zero values fall back to the
// defaults.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

const (
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
)

func (p PoolConfig) withDefaults() PoolConfig {
	if p.MaxOpenConns <= 0 {
		p.MaxOpenConns = defaultMaxOpenConns
	}
	if p.MaxIdleConns <= 0 {
		p.MaxIdleConns = defaultMaxIdleConns
	}
	if p.ConnMaxLifetime <= 0 {
		p.ConnMaxLifetime = defaultConnMaxLifetime
	}
	return p
}

// NormalizeDSN parses the DSN and forces parseTime on. The ledger scans
// DATETIME columns into time.Time, which the driver only supports with
// parseTime enabled.
func NormalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", errors.NewConfigurationError("invalid database DSN", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// Connect opens a connection pool and verifies it, retrying recoverable
// connection failures with backoff.
func Connect(ctx context.Context, dsn string, pool PoolConfig, logger *logging.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	dsn, err := NormalizeDSN(dsn)
	if err != nil {
		return nil, err
	}
	pool = pool.withDefaults()

	var db *sql.DB
	retry := errors.NewDefaultRetryHandler()
	err = retry.Retry(ctx, func() error {
		var openErr error
		db, openErr = sql.Open("mysql", dsn)
		if openErr != nil {
			return errors.WrapError(openErr, "failed to open database connection")
		}

		db.SetMaxOpenConns(pool.MaxOpenConns)
		db.SetMaxIdleConns(pool.MaxIdleConns)
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)

		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if pingErr := db.PingContext(pingCtx); pingErr != nil {
			db.Close()
			return pingErr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("Database connection established")
	return db, nil
}

// Select fetches one page of rows matching the filter, in the store's
// default ordering.
func (s *SQLStore) Select(ctx context.Context, table string, filter Filter, offset, limit int) ([]Row, error) {
	if err := validateIdentifier(table); err != nil {
		return nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT * FROM %s", quoteIdentifier(table))

	args, err := appendWhere(&sb, filter)
	if err != nil {
		return nil, err
	}

	sb.WriteString(" LIMIT ? OFFSET ?")
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, errors.NewDatabaseError(fmt.Sprintf("failed to query table %s", table), err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, errors.NewDatabaseError(fmt.Sprintf("failed to scan rows from %s", table), err)
	}
	return out, nil
}

// Delete removes rows matching the filter and returns the affected count.
// A zero filter wipes the whole table.
func (s *SQLStore) Delete(ctx context.Context, table string, filter Filter) (int64, error) {
	if err := validateIdentifier(table); err != nil {
		return 0, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "DELETE FROM %s", quoteIdentifier(table))
	args, err := appendWhere(&sb, filter)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, errors.NewDatabaseError(fmt.Sprintf("failed to delete from table %s", table), err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

// UpsertBatch writes rows in a single multi-value statement. Column set is
// taken from the first row; every row in a batch must share it.
func (s *SQLStore) UpsertBatch(ctx context.Context, table string, rows []Row, mode ConflictMode) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := validateIdentifier(table); err != nil {
		return 0, err
	}

	columns := sortedColumns(rows[0])
	for _, col := range columns {
		if err := validateIdentifier(col); err != nil {
			return 0, err
		}
	}

	var sb strings.Builder
	if mode == ConflictIgnore {
		sb.WriteString("INSERT IGNORE INTO ")
	} else {
		sb.WriteString("INSERT INTO ")
	}
	sb.WriteString(quoteIdentifier(table))
	sb.WriteString(" (")
	for i, col := range columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(quoteIdentifier(col))
	}
	sb.WriteString(") VALUES ")

	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(placeholder)
		for _, col := range columns {
			args = append(args, row[col])
		}
	}

	if mode == ConflictOverwrite {
		sb.WriteString(" ON DUPLICATE KEY UPDATE ")
		for i, col := range columns {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s = VALUES(%s)", quoteIdentifier(col), quoteIdentifier(col))
		}
	}

	res, err := s.db.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, errors.NewDatabaseError(fmt.Sprintf("failed to upsert batch into %s", table), err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

func appendWhere(sb *strings.Builder, filter Filter) ([]any, error) {
	if filter.IsZero() {
		return nil, nil
	}
	if err := validateIdentifier(filter.Column); err != nil {
		return nil, err
	}

	switch filter.Mode {
	case FilterEquals:
		if len(filter.Values) != 1 {
			return nil, errors.NewValidationError("equals filter requires exactly one value", nil)
		}
		fmt.Fprintf(sb, " WHERE %s = ?", quoteIdentifier(filter.Column))
		return filter.Values, nil
	case FilterInSet:
		if len(filter.Values) == 0 {
			return nil, errors.NewValidationError("in-set filter requires at least one value", nil)
		}
		fmt.Fprintf(sb, " WHERE %s IN (%s)",
			quoteIdentifier(filter.Column),
			strings.TrimSuffix(strings.Repeat("?, ", len(filter.Values)), ", "))
		return filter.Values, nil
	default:
		return nil, errors.NewValidationError(fmt.Sprintf("unknown filter mode %q", filter.Mode), nil)
	}
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Row
	values := make([]any, len(columns))
	pointers := make([]any, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			// Drivers hand back []byte for text columns; normalize to string
			// so documents serialize as JSON strings rather than base64.
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func sortedColumns(row Row) []string {
	columns := make([]string, 0, len(row))
	for col := range row {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}

func validateIdentifier(name string) error {
	if name == "" {
		return errors.NewValidationError("identifier cannot be empty", nil)
	}
	if strings.ContainsAny(name, "`\x00") {
		return errors.NewValidationError(fmt.Sprintf("invalid identifier %q", name), nil)
	}
	return nil
}

func quoteIdentifier(name string) string {
	return "`" + name + "`"
}
