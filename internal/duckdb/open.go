package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"net/url"
	"strings"

	duckdbDriver "github.com/marcboeker/go-duckdb"

	"github.com/coral-mesh/perfprobe/internal/retry"
)

// Options configures OpenDB.
type Options struct {
	// ReadOnly opens the file with access_mode=READ_ONLY.
	ReadOnly bool
	// BootQueries run on every new pooled connection.
	BootQueries []string
}

// OpenDB opens a DuckDB database and verifies the connection.
//
// DuckDB holds an exclusive file lock while a process writes; opening is retried
// with backoff while another perfprobe process holds it.
func OpenDB(ctx context.Context, dsn string, opts Options) (*sql.DB, error) {
	if opts.ReadOnly {
		dsn = injectDSNParams(dsn, map[string]string{"access_mode": "READ_ONLY"})
	}

	connector, err := duckdbDriver.NewConnector(dsn, func(execer driver.ExecerContext) error {
		for _, query := range opts.BootQueries {
			if _, err := execer.ExecContext(ctx, query, nil); err != nil {
				return fmt.Errorf("boot query %q: %w", query, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(connector)
	err = retry.Do(ctx, retry.DefaultConfig(), func() error {
		return db.PingContext(ctx)
	}, IsLockConflict)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open duckdb %q: %w", dsn, err)
	}

	return db, nil
}

// IsLockConflict reports whether err means another process holds the database file lock.
func IsLockConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Could not set lock on file") ||
		strings.Contains(msg, "Conflicting lock")
}

// injectDSNParams adds query parameters to the DSN when not already set.
func injectDSNParams(dsn string, add map[string]string) string {
	// Handle empty DSN (in-memory database).
	if dsn == "" || dsn == ":memory:" {
		return dsn
	}

	// Split path from query string.
	sep := strings.IndexByte(dsn, '?')
	path := dsn
	query := ""
	if sep >= 0 {
		path = dsn[:sep]
		query = dsn[sep+1:]
	}

	params, err := url.ParseQuery(query)
	if err != nil {
		// If we can't parse, return original DSN unchanged.
		return dsn
	}

	for k, v := range add {
		if !params.Has(k) {
			params.Set(k, v)
		}
	}

	return path + "?" + params.Encode()
}
