// Package duckdb provides DuckDB database utilities including ORM and query builder.
//
// # ORM
//
// The Table type maps a struct with `duckdb` tags onto a table, generates its
// schema and runs inserts and selects:
//
//	type Run struct {
//	    ID        string    `duckdb:"run_id,pk"`
//	    StartedAt time.Time `duckdb:"started_at"`
//	}
//
//	table := duckdb.NewTable[Run](db, "runs")
//	_, err := db.ExecContext(ctx, table.CreateTableSQL())
//	err = table.Insert(ctx, &Run{...})
//
// # Query Builder
//
// The query builder provides a fluent API for constructing SELECT queries with
// time range filtering, equality filters, ordering and pagination:
//
//	runs, err := table.Query(ctx, duckdb.NewQueryBuilder("runs").
//	    TimeColumn("started_at").
//	    TimeRange(since, until).
//	    OrderBy("-started_at").
//	    Limit(20))
//
// Empty string filters passed to Eq are skipped for wildcard behavior.
package duckdb
