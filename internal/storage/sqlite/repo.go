package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"userstats/internal/storage"
)

// Repo implements storage.Repository for SQLite.
//
// SQLite has no schemas in the Postgres sense, so TableSpec.Schema is ignored
// and the table is created under its bare name. DDL is transactional in SQLite,
// so the drop/create/insert sequence is atomic like the Postgres backend.
type Repo struct {
	db *sql.DB
}

// insertBatchRows bounds the number of rows per INSERT so the statement stays
// under SQLite's bound-parameter limit for wide tables.
const insertBatchRows = 500

func init() {
	storage.Register("sqlite", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	// A single connection serializes writers; SQLite locks the whole file anyway.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// ReplaceTable drops and recreates the table and inserts rows, all in one
// transaction.
func (r *Repo) ReplaceTable(ctx context.Context, spec storage.TableSpec, rows [][]any) (int64, error) {
	if err := spec.CheckRows(rows); err != nil {
		return 0, err
	}
	dropSQL, createSQL, err := buildReplaceSQL(spec)
	if err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, dropSQL); err != nil {
		return 0, fmt.Errorf("drop table %s: %w", spec.Name, err)
	}
	if _, err := tx.ExecContext(ctx, createSQL); err != nil {
		return 0, fmt.Errorf("create table %s: %w", spec.Name, err)
	}

	var total int64
	cols := spec.ColumnNames()
	for start := 0; start < len(rows); start += insertBatchRows {
		end := min(start+insertBatchRows, len(rows))
		q, args := buildInsertSQL(spec.Name, cols, rows[start:end])
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, fmt.Errorf("insert into %s: %w", spec.Name, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return total, nil
}

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// buildReplaceSQL generates the DROP and CREATE statements for spec.
func buildReplaceSQL(t storage.TableSpec) (dropSQL, createSQL string, err error) {
	if err := t.Validate(); err != nil {
		return "", "", err
	}

	parts := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		typ, err := sqliteType(c.Type)
		if err != nil {
			return "", "", fmt.Errorf("table %s: column %s: %w", t.Name, c.Name, err)
		}
		col := sqlIdent(c.Name) + " " + typ
		if !c.Nullable {
			col += " NOT NULL"
		}
		parts = append(parts, col)
	}

	dropSQL = "DROP TABLE IF EXISTS " + sqlIdent(t.Name)
	createSQL = fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", sqlIdent(t.Name), strings.Join(parts, ",\n  "))
	return dropSQL, createSQL, nil
}

// sqliteType maps logical types to SQLite storage classes. Booleans are stored
// as 0/1 integers.
func sqliteType(t storage.ColumnType) (string, error) {
	switch t {
	case storage.TypeInteger, storage.TypeBoolean:
		return "INTEGER", nil
	case storage.TypeFloat:
		return "REAL", nil
	case storage.TypeText:
		return "TEXT", nil
	default:
		return "", fmt.Errorf("unsupported type %q", t)
	}
}

// buildInsertSQL constructs one multi-row INSERT with positional placeholders.
func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqlIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqlIdent(c))
	}
	b.WriteString(") VALUES ")

	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(tuple)
		args = append(args, row...)
	}
	return b.String(), args
}
