// Package store provides an in-memory analytical SQL engine over tables
// derived from a single ingested flight log. Each Store wraps a dedicated
// SQLite connection (modernc.org/sqlite, pure Go, no cgo) scoped to one
// session. Tables are created and filled during ingest; Query executes
// whatever statement it is given and does not reject writes.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ColumnType is the inferred wire type of a table column.
type ColumnType string

const (
	ColumnReal ColumnType = "REAL"
	ColumnText ColumnType = "TEXT"
)

// Column describes one table column.
type Column struct {
	Name string
	Type ColumnType
}

// CellKind discriminates the dynamic type of a returned value.
type CellKind int

const (
	KindNull CellKind = iota
	KindReal
	KindText
)

// Cell is a single typed query result value. Wide integers returned by the
// engine are narrowed to float64 here — at the serialization boundary only,
// never inside the engine — so counts and sums round-trip as finite JSON
// reals (spec policy: never leak infinite-precision integers downstream).
type Cell struct {
	Kind CellKind `json:"-"`
	Real float64  `json:"real,omitempty"`
	Text string   `json:"text,omitempty"`
}

// MarshalJSON emits the cell as a bare JSON value (null, number, or string)
// rather than the tagged struct, matching the wire format callers expect.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case KindReal:
		return []byte(formatReal(c.Real)), nil
	case KindText:
		return marshalJSONString(c.Text), nil
	default:
		return []byte("null"), nil
	}
}

// QueryResult is the typed, serializable result of a read-only query.
type QueryResult struct {
	Columns []string
	Rows    [][]Cell
}

// Store is the capability C5 and C7 depend on; the interface lets callers
// be tested against a fake without a real SQLite connection.
type Store interface {
	CreateTable(ctx context.Context, name string, columns []Column) error
	BulkInsert(ctx context.Context, name string, rows [][]any) error
	Query(ctx context.Context, sqlText string) (*QueryResult, error)
	ListTables(ctx context.Context) ([]string, error)
	Describe(ctx context.Context, name string) ([]Column, error)
	Close() error
}

// sqliteStore is the default Store implementation.
type sqliteStore struct {
	db      *sql.DB
	schemas map[string][]Column // table -> declared columns, preserves order
}

// New opens a fresh private in-memory SQLite database for one session. The
// database is given a random name: "cache=shared" makes a named in-memory
// database visible to every connection that opens the same name within the
// process, so two sessions sharing a name would see each other's tables.
func New() (Store, error) {
	// A named in-memory database (not ":memory:") with a single pooled
	// connection avoids SQLite's per-connection private memory database
	// behavior silently losing tables between pooled connections.
	dsn := fmt.Sprintf("file:store-%s?mode=memory&cache=shared", uuid.New().String())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open in-memory store: %w", err)
	}
	db.SetMaxOpenConns(1)

	return &sqliteStore{
		db:      db,
		schemas: make(map[string][]Column),
	}, nil
}

// CreateTable fails if the table already exists (caller must drop first).
func (s *sqliteStore) CreateTable(ctx context.Context, name string, columns []Column) error {
	if _, exists := s.schemas[name]; exists {
		return fmt.Errorf("table %q already exists", name)
	}
	if len(columns) == 0 {
		return fmt.Errorf("table %q needs at least one column", name)
	}

	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = fmt.Sprintf("%s %s", QuoteIdentifier(col.Name), col.Type)
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", QuoteIdentifier(name), strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %q: %w", name, err)
	}

	cols := make([]Column, len(columns))
	copy(cols, columns)
	s.schemas[name] = cols
	return nil
}

// BulkInsert loads rows using a single multi-row VALUES statement for
// throughput. Fails on column/row width mismatch.
func (s *sqliteStore) BulkInsert(ctx context.Context, name string, rows [][]any) error {
	cols, ok := s.schemas[name]
	if !ok {
		return fmt.Errorf("table %q does not exist", name)
	}
	if len(rows) == 0 {
		return nil
	}
	for i, row := range rows {
		if len(row) != len(cols) {
			return fmt.Errorf("row %d has %d values, table %q has %d columns", i, len(row), name, len(cols))
		}
	}

	colNames := make([]string, len(cols))
	for i, c := range cols {
		colNames[i] = QuoteIdentifier(c.Name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", QuoteIdentifier(name), strings.Join(colNames, ", "))

	args := make([]any, 0, len(rows)*len(cols))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, v := range row {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('?')
			args = append(args, v)
		}
		b.WriteByte(')')
	}

	if _, err := s.db.ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("bulk insert into %q: %w", name, err)
	}
	return nil
}

// Query runs sqlText and narrows results to Cell values. It does not check
// that the statement is read-only: a statement that writes is executed
// like any other.
// Percentile aggregates (SQLite has no native PERCENTILE_CONT) are
// special-cased: see percentile.go.
func (s *sqliteStore) Query(ctx context.Context, sqlText string) (*QueryResult, error) {
	if pr, handled, err := s.tryPercentileQuery(ctx, sqlText); handled {
		return pr, err
	}

	rows, err := s.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// ListTables returns known table names in creation order.
func (s *sqliteStore) ListTables(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(s.schemas))
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// Describe returns the declared column set for a table.
func (s *sqliteStore) Describe(_ context.Context, name string) ([]Column, error) {
	cols, ok := s.schemas[name]
	if !ok {
		return nil, fmt.Errorf("table %q does not exist", name)
	}
	out := make([]Column, len(cols))
	copy(out, cols)
	return out, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func scanRows(rows *sql.Rows) (*QueryResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &QueryResult{Columns: cols}
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make([]Cell, len(cols))
		for i, v := range raw {
			row[i] = narrowCell(v)
		}
		result.Rows = append(result.Rows, row)
	}
	return result, rows.Err()
}

// narrowCell converts a database/sql driver value into a wire-safe Cell.
// Integers of arbitrary width are narrowed to float64 here, at the
// serialization boundary, never inside the engine.
func narrowCell(v any) Cell {
	switch t := v.(type) {
	case nil:
		return Cell{Kind: KindNull}
	case int64:
		return Cell{Kind: KindReal, Real: float64(t)}
	case float64:
		return Cell{Kind: KindReal, Real: t}
	case []byte:
		return Cell{Kind: KindText, Text: string(t)}
	case string:
		return Cell{Kind: KindText, Text: t}
	case bool:
		if t {
			return Cell{Kind: KindReal, Real: 1}
		}
		return Cell{Kind: KindReal, Real: 0}
	default:
		return Cell{Kind: KindText, Text: fmt.Sprintf("%v", t)}
	}
}
