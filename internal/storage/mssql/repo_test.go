package mssql

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"userstats/internal/storage"
)

type fakeResult struct{ n int64 }

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.n, nil }

// fakeTx records statements and counts rows by placeholder tuples.
type fakeTx struct {
	stmts      []string
	argCounts  []int
	failOn     string
	committed  bool
	rolledBack bool
}

func (f *fakeTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	f.stmts = append(f.stmts, query)
	f.argCounts = append(f.argCounts, len(args))
	if f.failOn != "" && strings.Contains(query, f.failOn) {
		return nil, errors.New("boom")
	}
	if strings.HasPrefix(query, "INSERT") {
		return fakeResult{n: int64(strings.Count(query, "(@p"))}, nil
	}
	return fakeResult{}, nil
}

func (f *fakeTx) Commit() error   { f.committed = true; return nil }
func (f *fakeTx) Rollback() error { f.rolledBack = true; return nil }

type fakeDB struct{ tx *fakeTx }

func (f *fakeDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error) { return f.tx, nil }
func (f *fakeDB) Close() error                                                     { return nil }

func statsSpec() storage.TableSpec {
	return storage.TableSpec{
		Schema: "public",
		Name:   "user_experiment_stats",
		Columns: []storage.ColumnSpec{
			{Name: "user_id", Type: storage.TypeInteger},
			{Name: "mean_experiment_duration", Type: storage.TypeFloat, Nullable: true},
			{Name: "favorite_compound_id", Type: storage.TypeText},
			{Name: "active", Type: storage.TypeBoolean, Nullable: true},
		},
	}
}

func TestBuildReplaceSQL(t *testing.T) {
	t.Parallel()

	stmts, err := buildReplaceSQL(statsSpec())
	if err != nil {
		t.Fatalf("buildReplaceSQL: %v", err)
	}
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %q", stmts)
	}
	if stmts[0] != "IF SCHEMA_ID(N'public') IS NULL EXEC(N'CREATE SCHEMA [public]');" {
		t.Fatalf("unexpected schema stmt: %q", stmts[0])
	}
	if stmts[1] != "IF OBJECT_ID(N'[public].[user_experiment_stats]', N'U') IS NOT NULL DROP TABLE [public].[user_experiment_stats];" {
		t.Fatalf("unexpected drop stmt: %q", stmts[1])
	}
	for _, want := range []string{
		"[user_id] BIGINT NOT NULL",
		"[mean_experiment_duration] FLOAT",
		"[favorite_compound_id] NVARCHAR(MAX) NOT NULL",
		"[active] BIT",
	} {
		if !strings.Contains(stmts[2], want) {
			t.Fatalf("create stmt missing %q: %q", want, stmts[2])
		}
	}
}

func TestBuildBulkInsertSQL_Placeholders(t *testing.T) {
	t.Parallel()

	q, args := buildBulkInsertSQL("[t]", []string{"a", "b]"}, [][]any{{1, 2}, {3, 4}})
	want := "INSERT INTO [t] ([a], [b]]]) VALUES (@p1, @p2), (@p3, @p4)"
	if q != want {
		t.Fatalf("sql=%q, want %q", q, want)
	}
	if len(args) != 4 || args[3] != 4 {
		t.Fatalf("unexpected args: %#v", args)
	}
}

func TestBatchRows(t *testing.T) {
	t.Parallel()

	tests := []struct{ cols, want int }{
		{cols: 0, want: maxValueRows},
		{cols: 1, want: maxValueRows},
		{cols: 4, want: 500},
		{cols: 3000, want: 1},
	}
	for _, tc := range tests {
		if got := batchRows(tc.cols); got != tc.want {
			t.Fatalf("batchRows(%d)=%d, want %d", tc.cols, got, tc.want)
		}
	}
}

func TestReplaceTable_CommitsAfterAllBatches(t *testing.T) {
	t.Parallel()

	tx := &fakeTx{}
	repo := &Repo{db: &fakeDB{tx: tx}}

	rows := make([][]any, 1203)
	for i := range rows {
		rows[i] = []any{int64(i), 1.5, "C1", true}
	}
	n, err := repo.ReplaceTable(context.Background(), statsSpec(), rows)
	if err != nil {
		t.Fatalf("ReplaceTable: %v", err)
	}
	if n != int64(len(rows)) {
		t.Fatalf("n=%d, want %d", n, len(rows))
	}
	if !tx.committed || tx.rolledBack {
		t.Fatalf("expected commit without rollback: committed=%v rolledBack=%v", tx.committed, tx.rolledBack)
	}
	// 3 DDL + ceil(1203/500) inserts.
	if len(tx.stmts) != 6 {
		t.Fatalf("expected 6 statements, got %d", len(tx.stmts))
	}
	for _, c := range tx.argCounts {
		if c > maxParams {
			t.Fatalf("statement exceeded parameter cap: %d", c)
		}
	}
}

func TestReplaceTable_RollsBackOnInsertFailure(t *testing.T) {
	t.Parallel()

	tx := &fakeTx{failOn: "INSERT"}
	repo := &Repo{db: &fakeDB{tx: tx}}

	_, err := repo.ReplaceTable(context.Background(), statsSpec(), [][]any{{int64(1), nil, "C1", nil}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if tx.committed || !tx.rolledBack {
		t.Fatalf("expected rollback without commit")
	}
}
