package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"userstats/internal/storage"
)

// Repo implements storage.Repository for Microsoft SQL Server.
//
// SQL Server DDL is transactional, so ReplaceTable has the same all-or-nothing
// behavior as the Postgres backend:
//   - create the schema when missing
//   - drop the table when present
//   - create the table
//   - insert rows in batches
//   - commit
type Repo struct {
	db dbConn
}

// SQL Server caps a statement at 2100 parameters and a VALUES list at 1000 rows.
const (
	maxParams    = 2000
	maxValueRows = 1000
)

func init() {
	storage.Register("mssql", New)
}

// New constructs a Repo using database/sql and the "sqlserver" driver.
//
// This method validates connectivity via PingContext.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	raw, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &Repo{db: &sqlDB{db: raw}}, nil
}

// Close releases database resources held by this repository.
func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

// ReplaceTable drops and recreates the table and inserts rows in one transaction.
func (r *Repo) ReplaceTable(ctx context.Context, spec storage.TableSpec, rows [][]any) (int64, error) {
	if err := spec.CheckRows(rows); err != nil {
		return 0, err
	}
	stmts, err := buildReplaceSQL(spec)
	if err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mssql: begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return 0, fmt.Errorf("mssql: %s: %w", s, err)
		}
	}

	cols := spec.ColumnNames()
	table := tableIdent(spec)
	batch := batchRows(len(cols))

	var total int64
	for start := 0; start < len(rows); start += batch {
		end := min(start+batch, len(rows))
		q, args := buildBulkInsertSQL(table, cols, rows[start:end])
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, fmt.Errorf("mssql: insert into %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mssql: commit: %w", err)
	}
	committed = true
	return total, nil
}

// batchRows returns how many rows fit in one INSERT for a table of width cols.
func batchRows(cols int) int {
	if cols <= 0 {
		return maxValueRows
	}
	return max(1, min(maxValueRows, maxParams/cols))
}

// buildReplaceSQL returns the DDL executed before inserting rows.
func buildReplaceSQL(spec storage.TableSpec) ([]string, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	table := tableIdent(spec)

	defs := make([]string, 0, len(spec.Columns))
	for _, c := range spec.Columns {
		def, err := mssqlColumnDef(c)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}

	var stmts []string
	if spec.Schema != "" {
		// CREATE SCHEMA must be the only statement in its batch, hence EXEC.
		stmts = append(stmts, fmt.Sprintf(
			"IF SCHEMA_ID(N'%s') IS NULL EXEC(N'CREATE SCHEMA %s');",
			sqlString(spec.Schema),
			sqlString(mssqlIdent(spec.Schema)),
		))
	}
	stmts = append(stmts,
		fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NOT NULL DROP TABLE %s;", sqlString(table), table),
		fmt.Sprintf("CREATE TABLE %s (%s);", table, strings.Join(defs, ", ")),
	)
	return stmts, nil
}

// mssqlColumnDef builds a SQL Server column definition from storage.ColumnSpec.
func mssqlColumnDef(c storage.ColumnSpec) (string, error) {
	var typ string
	switch c.Type {
	case storage.TypeInteger:
		typ = "BIGINT"
	case storage.TypeFloat:
		typ = "FLOAT"
	case storage.TypeBoolean:
		typ = "BIT"
	case storage.TypeText:
		typ = "NVARCHAR(MAX)"
	default:
		return "", fmt.Errorf("mssql: column %s: unsupported type %q", c.Name, c.Type)
	}

	def := mssqlIdent(c.Name) + " " + typ
	if !c.Nullable {
		def += " NOT NULL"
	}
	return def, nil
}

// buildBulkInsertSQL builds a single INSERT ... VALUES statement for all rows.
func buildBulkInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")

	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mssqlIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "@p%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	return b.String(), args
}

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// tableIdent returns the bracket-quoted, optionally schema-qualified table name.
//
// Example:
//
//	{Schema: "public", Name: "stats"} -> [public].[stats]
func tableIdent(spec storage.TableSpec) string {
	if spec.Schema == "" {
		return mssqlIdent(spec.Name)
	}
	return mssqlIdent(spec.Schema) + "." + mssqlIdent(spec.Name)
}

// sqlString escapes s for use inside an N'...' literal.
func sqlString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// ---- database/sql seam types ----

// dbConn is a small interface over *sql.DB used to make this package testable.
type dbConn interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error)
	Close() error
}

// txConn is a small interface over *sql.Tx used for testability.
type txConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Commit() error
	Rollback() error
}

// sqlDB wraps *sql.DB to implement dbConn.
type sqlDB struct {
	db *sql.DB
}

// BeginTx begins a transaction and returns a txConn wrapper.
func (s *sqlDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error) {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *sqlDB) Close() error { return s.db.Close() }

var (
	_ dbConn = (*sqlDB)(nil)
	_ txConn = (*sql.Tx)(nil)
)
