package store

import (
	"context"
	"time"

	"tenant-vault/internal/logging"
)

// DefaultPageSize is the page size used by the reader. A page returning
// fewer rows than this signals exhaustion.
const DefaultPageSize = 1000

// PaginatedReader fetches every row of one table matching a filter,
// transparently paging until exhaustion. It never retries: a failed page
// logs the error and ends the read, returning whatever was accumulated.
// Callers must treat a short result as possibly incomplete, not as a hard
// failure; the higher-level jobs continue with other tables regardless.
type PaginatedReader struct {
	store    Store
	pageSize int
	logger   *logging.Logger
}

// NewPaginatedReader creates a reader with the default page size.
func NewPaginatedReader(s Store, logger *logging.Logger) *PaginatedReader {
	return NewPaginatedReaderWithPageSize(s, DefaultPageSize, logger)
}

// NewPaginatedReaderWithPageSize creates a reader with a custom page size.
func NewPaginatedReaderWithPageSize(s Store, pageSize int, logger *logging.Logger) *PaginatedReader {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &PaginatedReader{store: s, pageSize: pageSize, logger: logger}
}

// ReadAll reads every row of table matching filter. Zero matching rows is
// an empty result, not an error. An in-set filter with an empty value set
// short-circuits without issuing a single query.
func (r *PaginatedReader) ReadAll(ctx context.Context, table string, filter Filter) []Row {
	if !filter.IsZero() && filter.Mode == FilterInSet && len(filter.Values) == 0 {
		return nil
	}

	start := time.Now()
	var accumulated []Row
	offset := 0

	for {
		page, err := r.store.Select(ctx, table, filter, offset, r.pageSize)
		if err != nil {
			r.logger.LogTableRead(table, len(accumulated), time.Since(start), err)
			return accumulated
		}
		accumulated = append(accumulated, page...)
		if len(page) < r.pageSize {
			break
		}
		offset += r.pageSize
	}

	r.logger.LogTableRead(table, len(accumulated), time.Since(start), nil)
	return accumulated
}

// PageSize returns the configured page size.
func (r *PaginatedReader) PageSize() int { return r.pageSize }
