package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/coral-mesh/perfprobe/internal/retry"
)

// Execer is an interface that matches both *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var timeType = reflect.TypeOf(time.Time{})

// Table represents a generic database table wrapper for type T.
type Table[T any] struct {
	db              Execer
	tableName       string
	columns         []string
	pkColumns       []string
	immutableFields map[string]bool // Fields that can't be updated
	fieldMap        map[string]int  // Map column name to field index
	fieldTypes      map[string]reflect.Type
}

// NewTable creates a new Table[T] instance.
// T must be a struct with `duckdb` tags. Supported tag options are "pk" and "immutable".
func NewTable[T any](db Execer, tableName string) *Table[T] {
	var zero T
	t := reflect.TypeOf(zero)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		panic("Table generic type T must be a struct")
	}

	tbl := &Table[T]{
		db:              db,
		tableName:       tableName,
		immutableFields: make(map[string]bool),
		fieldMap:        make(map[string]int),
		fieldTypes:      make(map[string]reflect.Type),
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("duckdb")
		if tag == "" || tag == "-" {
			continue
		}

		parts := strings.Split(tag, ",")
		colName := strings.TrimSpace(parts[0])
		tbl.columns = append(tbl.columns, colName)
		tbl.fieldMap[colName] = i
		tbl.fieldTypes[colName] = field.Type

		for _, p := range parts[1:] {
			switch strings.TrimSpace(p) {
			case "pk":
				tbl.pkColumns = append(tbl.pkColumns, colName)
			case "immutable":
				tbl.immutableFields[colName] = true
			}
		}
	}

	return tbl
}

// Name returns the table name.
func (t *Table[T]) Name() string {
	return t.tableName
}

// Columns returns the mapped column names in struct field order.
func (t *Table[T]) Columns() []string {
	return append([]string(nil), t.columns...)
}

// CreateTableSQL returns a CREATE TABLE IF NOT EXISTS statement derived from the
// struct field types. It panics on a field type with no DuckDB mapping.
func (t *Table[T]) CreateTableSQL() string {
	defs := make([]string, 0, len(t.columns)+1)
	for _, col := range t.columns {
		sqlType, err := columnType(t.fieldTypes[col])
		if err != nil {
			panic(fmt.Sprintf("table %s column %s: %v", t.tableName, col, err))
		}
		defs = append(defs, fmt.Sprintf("%s %s", col, sqlType))
	}
	if len(t.pkColumns) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(t.pkColumns, ", ")))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", t.tableName, strings.Join(defs, ",\n\t"))
}

func columnType(typ reflect.Type) (string, error) {
	if typ == timeType {
		return "TIMESTAMP", nil
	}
	switch typ.Kind() {
	case reflect.String:
		return "VARCHAR", nil
	case reflect.Bool:
		return "BOOLEAN", nil
	case reflect.Int8, reflect.Int16, reflect.Int32:
		return "INTEGER", nil
	case reflect.Int, reflect.Int64:
		return "BIGINT", nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return "UINTEGER", nil
	case reflect.Uint, reflect.Uint64:
		return "UBIGINT", nil
	case reflect.Float32:
		return "FLOAT", nil
	case reflect.Float64:
		return "DOUBLE", nil
	default:
		return "", fmt.Errorf("unsupported field type %s", typ)
	}
}

func (t *Table[T]) placeholders() string {
	p := make([]string, len(t.columns))
	for i := range p {
		p[i] = "?"
	}
	return strings.Join(p, ", ")
}

func (t *Table[T]) isPK(col string) bool {
	for _, pk := range t.pkColumns {
		if pk == col {
			return true
		}
	}
	return false
}

func (t *Table[T]) insertSQL() string {
	// #nosec G201 - table and column names are not user input, they come from struct tags
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.tableName,
		strings.Join(t.columns, ", "),
		t.placeholders(),
	)
}

// upsertSQL appends ON CONFLICT handling to the insert when the table has a primary key.
// PKs and immutable fields are excluded from the update set.
func (t *Table[T]) upsertSQL() string {
	query := t.insertSQL()
	if len(t.pkColumns) == 0 {
		return query
	}

	updates := make([]string, 0, len(t.columns))
	for _, col := range t.columns {
		if !t.isPK(col) && !t.immutableFields[col] {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
		}
	}

	updateClause := "DO NOTHING"
	if len(updates) > 0 {
		updateClause = fmt.Sprintf("DO UPDATE SET %s", strings.Join(updates, ", "))
	}
	return query + fmt.Sprintf(" ON CONFLICT (%s) %s", strings.Join(t.pkColumns, ", "), updateClause)
}

func (t *Table[T]) values(item *T) []any {
	val := reflect.ValueOf(item).Elem()
	values := make([]any, len(t.columns))
	for i, col := range t.columns {
		values[i] = val.Field(t.fieldMap[col]).Interface()
	}
	return values
}

// Upsert inserts or updates an item in the database.
// It generates an INSERT ... ON CONFLICT statement.
func (t *Table[T]) Upsert(ctx context.Context, item *T) error {
	return t.exec(ctx, t.upsertSQL(), t.values(item))
}

// Insert inserts a new item into the database.
// It generates a plain INSERT statement without ON CONFLICT handling.
// Use this when you know the item doesn't exist and want to fail on duplicates.
func (t *Table[T]) Insert(ctx context.Context, item *T) error {
	return t.exec(ctx, t.insertSQL(), t.values(item))
}

func (t *Table[T]) exec(ctx context.Context, query string, values []any) error {
	return retry.Do(ctx, retry.DefaultConfig(), func() error {
		_, err := t.db.ExecContext(ctx, query, values...)
		return err
	}, isTransactionConflict)
}

// BatchUpsert inserts multiple items in a single transaction using a prepared statement.
// When the table is bound to a *sql.Tx the caller owns commit and rollback.
func (t *Table[T]) BatchUpsert(ctx context.Context, items []*T) (err error) {
	if len(items) == 0 {
		return nil
	}

	var tx *sql.Tx
	switch d := t.db.(type) {
	case *sql.Tx:
		tx = d
	case *sql.DB:
		tx, err = d.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback()
			}
		}()
	default:
		return fmt.Errorf("unsupported Execer type for BatchUpsert: %T", t.db)
	}

	stmt, err := tx.PrepareContext(ctx, t.upsertSQL())
	if err != nil {
		return fmt.Errorf("prepare stmt: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, item := range items {
		if _, err = stmt.ExecContext(ctx, t.values(item)...); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}

	// Commit only if we started the tx.
	if _, started := t.db.(*sql.DB); started {
		if err = tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}

	return nil
}

// Get retrieves a single item by its value in the first PK column.
// Returns sql.ErrNoRows when nothing matches.
func (t *Table[T]) Get(ctx context.Context, id any) (*T, error) {
	if len(t.pkColumns) == 0 {
		return nil, errors.New("no primary key defined for table")
	}

	// #nosec G201 - table and column names are not user input, they come from struct tags
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
		strings.Join(t.columns, ", "),
		t.tableName,
		t.pkColumns[0],
	)

	row := t.db.QueryRowContext(ctx, query, id)
	return t.scan(row)
}

// Delete removes an item by its value in the first PK column.
func (t *Table[T]) Delete(ctx context.Context, id any) error {
	if len(t.pkColumns) == 0 {
		return errors.New("no primary key defined for table")
	}

	// #nosec G201 - table and column names are not user input, they come from struct tags
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", t.tableName, t.pkColumns[0])
	return t.exec(ctx, query, []any{id})
}

// List retrieves all items with optional filters.
// filters are simple "column = value" pairs, applied in column name order.
func (t *Table[T]) List(ctx context.Context, filters map[string]any) ([]*T, error) {
	b := NewQueryBuilder(t.tableName)

	cols := make([]string, 0, len(filters))
	for col := range filters {
		if _, ok := t.fieldMap[col]; !ok {
			return nil, fmt.Errorf("column %s does not exist in table %s", col, t.tableName)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		b.Where(fmt.Sprintf("%s = ?", col), filters[col])
	}

	return t.Query(ctx, b)
}

// Query runs a builder against the table. The builder's column list is replaced
// with the table's mapped columns so rows scan into T.
func (t *Table[T]) Query(ctx context.Context, b *Builder) ([]*T, error) {
	query, args, err := b.selectColumns(t.columns).Build()
	if err != nil {
		return nil, err
	}

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.tableName, err)
	}
	defer func() { _ = rows.Close() }()

	var items []*T
	for rows.Next() {
		item, err := t.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

// scan reads the current row into a new T.
func (t *Table[T]) scan(row scanner) (*T, error) {
	var item T
	val := reflect.ValueOf(&item).Elem()
	dest := make([]any, len(t.columns))

	for i, col := range t.columns {
		dest[i] = val.Field(t.fieldMap[col]).Addr().Interface()
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &item, nil
}

func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	// Detect various DuckDB transaction conflict patterns
	return strings.Contains(msg, "Conflict on update") ||
		strings.Contains(msg, "TransactionContext Error") ||
		strings.Contains(msg, "serialization") ||
		IsLockConflict(err)
}
