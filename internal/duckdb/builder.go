package duckdb

import (
	"fmt"
	"strings"
	"time"
)

// Builder constructs SELECT queries with a fluent API.
type Builder struct {
	table      string
	columns    []string
	where      []whereClause
	groupBy    []string
	orderBy    []orderClause
	limit      int
	offset     int
	timeColumn string // Configurable: timestamp, started_at, finished_at
}

// whereClause represents a WHERE condition.
type whereClause struct {
	expr string
	args []any
}

// orderClause represents an ORDER BY clause.
type orderClause struct {
	column string
	desc   bool
}

// NewQueryBuilder creates a new query builder for the specified table.
func NewQueryBuilder(table string) *Builder {
	return &Builder{
		table:      table,
		timeColumn: "timestamp", // default
	}
}

// Select specifies the columns to retrieve.
// Supports column names, aggregates, and aliases.
// Examples:
//
//	Select("name", "age")
//	Select("SUM(count) as total_count", "MIN(timestamp) as first_seen")
func (b *Builder) Select(columns ...string) *Builder {
	b.columns = append(b.columns, columns...)
	return b
}

// selectColumns replaces the column list.
func (b *Builder) selectColumns(columns []string) *Builder {
	b.columns = append([]string(nil), columns...)
	return b
}

// TimeColumn sets the name of the time column for time range filtering.
// Default is "timestamp". Use this before calling TimeRange().
func (b *Builder) TimeColumn(name string) *Builder {
	b.timeColumn = name
	return b
}

// TimeRange adds a time range filter using the configured time column.
// Generates: WHERE <timeColumn> >= ? AND <timeColumn> <= ?
// A zero bound is left open.
func (b *Builder) TimeRange(start, end time.Time) *Builder {
	switch {
	case start.IsZero() && end.IsZero():
		return b
	case start.IsZero():
		return b.Lte(b.timeColumn, end)
	case end.IsZero():
		return b.Gte(b.timeColumn, start)
	}
	b.where = append(b.where, whereClause{
		expr: fmt.Sprintf("%s >= ? AND %s <= ?", b.timeColumn, b.timeColumn),
		args: []any{start, end},
	})
	return b
}

// Where adds a custom WHERE clause with optional arguments.
// Multiple Where() calls are combined with AND.
// Examples:
//
//	Where("status = ?", "completed")
//	Where("return_code BETWEEN ? AND ?", 1, 127)
//	Where("error IS NOT NULL")
func (b *Builder) Where(expr string, args ...any) *Builder {
	b.where = append(b.where, whereClause{
		expr: expr,
		args: args,
	})
	return b
}

// Eq adds an equality filter.
// Generates: WHERE column = ?
// If value is empty string, the filter is skipped (wildcard behavior).
func (b *Builder) Eq(column string, value any) *Builder {
	// Skip empty strings for wildcard behavior.
	if str, ok := value.(string); ok && str == "" {
		return b
	}
	return b.Where(fmt.Sprintf("%s = ?", column), value)
}

// Gte adds a >= comparison.
// Generates: WHERE column >= ?
func (b *Builder) Gte(column string, value any) *Builder {
	return b.Where(fmt.Sprintf("%s >= ?", column), value)
}

// Lte adds a <= comparison.
// Generates: WHERE column <= ?
func (b *Builder) Lte(column string, value any) *Builder {
	return b.Where(fmt.Sprintf("%s <= ?", column), value)
}

// GroupBy adds GROUP BY columns.
func (b *Builder) GroupBy(columns ...string) *Builder {
	b.groupBy = append(b.groupBy, columns...)
	return b
}

// OrderBy adds ORDER BY clauses.
// Use "-" prefix for DESC order.
// Examples:
//
//	OrderBy("created_at")        // ASC
//	OrderBy("-created_at")       // DESC
//	OrderBy("name", "-created_at") // name ASC, created_at DESC
func (b *Builder) OrderBy(columns ...string) *Builder {
	for _, col := range columns {
		desc := false
		if strings.HasPrefix(col, "-") {
			desc = true
			col = col[1:]
		}
		b.orderBy = append(b.orderBy, orderClause{
			column: col,
			desc:   desc,
		})
	}
	return b
}

// Limit sets the maximum number of rows to return.
func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

// Offset skips the first n rows. Only applied when positive.
func (b *Builder) Offset(n int) *Builder {
	b.offset = n
	return b
}

// Build constructs the SQL query and returns the query string and arguments.
// Returns (query, args, error).
func (b *Builder) Build() (string, []any, error) {
	if b.table == "" {
		return "", nil, fmt.Errorf("table name is required")
	}

	var query strings.Builder
	var args []any

	// SELECT clause.
	query.WriteString("SELECT ")
	if len(b.columns) == 0 {
		query.WriteString("*")
	} else {
		query.WriteString(strings.Join(b.columns, ", "))
	}

	// FROM clause.
	query.WriteString(" FROM ")
	query.WriteString(b.table)

	// WHERE clause.
	if len(b.where) > 0 {
		query.WriteString(" WHERE ")
		exprs := make([]string, len(b.where))
		for i, w := range b.where {
			exprs[i] = w.expr
			args = append(args, w.args...)
		}
		query.WriteString(strings.Join(exprs, " AND "))
	}

	// GROUP BY clause.
	if len(b.groupBy) > 0 {
		query.WriteString(" GROUP BY ")
		query.WriteString(strings.Join(b.groupBy, ", "))
	}

	// ORDER BY clause.
	if len(b.orderBy) > 0 {
		query.WriteString(" ORDER BY ")
		orderParts := make([]string, len(b.orderBy))
		for i, o := range b.orderBy {
			if o.desc {
				orderParts[i] = o.column + " DESC"
			} else {
				orderParts[i] = o.column
			}
		}
		query.WriteString(strings.Join(orderParts, ", "))
	}

	// LIMIT clause.
	if b.limit > 0 {
		query.WriteString(" LIMIT ?")
		args = append(args, b.limit)
	}

	// OFFSET clause.
	if b.offset > 0 {
		query.WriteString(" OFFSET ?")
		args = append(args, b.offset)
	}

	return query.String(), args, nil
}

// MustBuild builds the query and panics on error.
// Useful for tests and cases where query construction should never fail.
func (b *Builder) MustBuild() (string, []any) {
	q, args, err := b.Build()
	if err != nil {
		panic(err)
	}
	return q, args
}
