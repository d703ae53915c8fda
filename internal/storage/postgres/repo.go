package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"userstats/internal/storage"
)

/*
Repo implements storage.Repository for Postgres.

ReplaceTable runs as one transaction:

	CREATE SCHEMA IF NOT EXISTS
	DROP TABLE IF EXISTS
	CREATE TABLE
	COPY rows
	COMMIT

Readers see either the previous table or the complete new one. A failure at any
step rolls back and leaves the previous table in place.
*/
type Repo struct {
	pool *pgxpool.Pool
}

func init() {
	storage.Register("postgres", New)
}

// New creates a Postgres-backed Repo and verifies connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// ReplaceTable drops and recreates spec's table and bulk loads rows with COPY.
func (r *Repo) ReplaceTable(ctx context.Context, spec storage.TableSpec, rows [][]any) (int64, error) {
	if err := spec.Validate(); err != nil {
		return 0, err
	}
	if err := spec.CheckRows(rows); err != nil {
		return 0, err
	}
	stmts, err := buildReplaceSQL(spec)
	if err != nil {
		return 0, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	// Rollback after Commit is a no-op.
	defer func() { _ = tx.Rollback(ctx) }()

	for _, s := range stmts {
		if _, err := tx.Exec(ctx, s); err != nil {
			return 0, fmt.Errorf("exec %q: %w", firstLine(s), err)
		}
	}

	n, err := tx.CopyFrom(ctx, tableIdentifier(spec), spec.ColumnNames(), pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", spec.QualifiedName(), err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// buildReplaceSQL returns the DDL statements executed before COPY.
//
// It is pure so the generated SQL can be unit tested without a database.
func buildReplaceSQL(spec storage.TableSpec) ([]string, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	table := tableIdentifier(spec).Sanitize()

	var stmts []string
	if spec.Schema != "" {
		stmts = append(stmts, "CREATE SCHEMA IF NOT EXISTS "+pgIdent(spec.Schema))
	}
	stmts = append(stmts, "DROP TABLE IF EXISTS "+table)

	defs := make([]string, 0, len(spec.Columns))
	for _, c := range spec.Columns {
		def, err := buildColumnDef(c)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", spec.QualifiedName(), err)
		}
		defs = append(defs, def)
	}
	stmts = append(stmts, "CREATE TABLE "+table+" (\n  "+strings.Join(defs, ",\n  ")+"\n)")
	return stmts, nil
}

func buildColumnDef(c storage.ColumnSpec) (string, error) {
	typ, err := pgType(c.Type)
	if err != nil {
		return "", fmt.Errorf("column %s: %w", c.Name, err)
	}
	def := pgIdent(c.Name) + " " + typ
	if !c.Nullable {
		def += " NOT NULL"
	}
	return def, nil
}

func pgType(t storage.ColumnType) (string, error) {
	switch t {
	case storage.TypeInteger:
		return "BIGINT", nil
	case storage.TypeFloat:
		return "DOUBLE PRECISION", nil
	case storage.TypeBoolean:
		return "BOOLEAN", nil
	case storage.TypeText:
		return "TEXT", nil
	default:
		return "", fmt.Errorf("unsupported type %q", t)
	}
}

func tableIdentifier(spec storage.TableSpec) pgx.Identifier {
	if spec.Schema == "" {
		return pgx.Identifier{spec.Name}
	}
	return pgx.Identifier{spec.Schema, spec.Name}
}

// pgIdent double-quotes a single identifier.
func pgIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
