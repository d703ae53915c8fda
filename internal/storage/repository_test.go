package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeRepo struct {
	closeCalls int
}

func (f *fakeRepo) Close() { f.closeCalls++ }

func (f *fakeRepo) ReplaceTable(ctx context.Context, spec TableSpec, rows [][]any) (int64, error) {
	return int64(len(rows)), nil
}

func TestRegisterAndNew(t *testing.T) {
	var gotCfg Config
	Register("fake-test", func(ctx context.Context, cfg Config) (Repository, error) {
		gotCfg = cfg
		return &fakeRepo{}, nil
	})

	repo, err := New(context.Background(), Config{Kind: "fake-test", DSN: "mem://x"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer repo.Close()

	if gotCfg.DSN != "mem://x" {
		t.Fatalf("expected DSN to be passed through, got %q", gotCfg.DSN)
	}

	found := false
	for _, k := range Kinds() {
		if k == "fake-test" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected fake-test in Kinds(), got %v", Kinds())
	}
}

func TestRegister_PanicsOnDuplicate(t *testing.T) {
	f := func(ctx context.Context, cfg Config) (Repository, error) { return &fakeRepo{}, nil }
	Register("dup-test", f)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()
	Register("dup-test", f)
}

func TestNew_RejectsEmptyAndUnknownKinds(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty kind")
	}
	_, err := New(context.Background(), Config{Kind: "nope"})
	if err == nil || !strings.Contains(err.Error(), "unsupported storage.kind=nope") {
		t.Fatalf("expected unsupported kind error, got %v", err)
	}
}

func TestNew_PropagatesFactoryError(t *testing.T) {
	want := errors.New("connection refused")
	Register("failing-test", func(ctx context.Context, cfg Config) (Repository, error) {
		return nil, want
	})
	if _, err := New(context.Background(), Config{Kind: "failing-test"}); !errors.Is(err, want) {
		t.Fatalf("expected factory error, got %v", err)
	}
}

func TestTableSpec_Validate(t *testing.T) {
	t.Parallel()

	ok := TableSpec{
		Schema: "public",
		Name:   "user_experiment_stats",
		Columns: []ColumnSpec{
			{Name: "user_id", Type: TypeInteger},
			{Name: "mean_experiment_duration", Type: TypeFloat, Nullable: true},
		},
	}
	if err := ok.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := ok.QualifiedName(); got != "public.user_experiment_stats" {
		t.Fatalf("QualifiedName=%q", got)
	}

	tests := []struct {
		name string
		spec TableSpec
	}{
		{name: "empty_name", spec: TableSpec{Columns: ok.Columns}},
		{name: "no_columns", spec: TableSpec{Name: "t"}},
		{name: "duplicate_column_case_insensitive", spec: TableSpec{Name: "t", Columns: []ColumnSpec{
			{Name: "Name", Type: TypeText}, {Name: "name", Type: TypeText},
		}}},
		{name: "unsupported_type", spec: TableSpec{Name: "t", Columns: []ColumnSpec{{Name: "a", Type: "jsonb"}}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.spec.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestTableSpec_CheckRows(t *testing.T) {
	t.Parallel()

	spec := TableSpec{Name: "t", Columns: []ColumnSpec{{Name: "a", Type: TypeText}, {Name: "b", Type: TypeText}}}
	if err := spec.CheckRows([][]any{{"x", nil}}); err != nil {
		t.Fatalf("CheckRows: %v", err)
	}
	if err := spec.CheckRows([][]any{{"x"}}); err == nil {
		t.Fatalf("expected error for short row")
	}
}

func TestNormalizeKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   any
		want string
	}{
		{in: nil, want: ""},
		{in: " C1 ", want: "C1"},
		{in: int64(42), want: "42"},
		{in: 7, want: "7"},
		{in: float64(3), want: "3"},
		{in: 2.5, want: "2.5"},
		{in: true, want: "true"},
		{in: []byte(" u1"), want: "u1"},
	}
	for _, tc := range tests {
		if got := NormalizeKey(tc.in); got != tc.want {
			t.Fatalf("NormalizeKey(%#v)=%q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCompareKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want int
	}{
		{a: "9", b: "10", want: -1},
		{a: "10", b: "9", want: 1},
		{a: "10", b: "10", want: 0},
		{a: "C10", b: "C9", want: -1},
		{a: "5", b: "C1", want: -1},
		{a: "C1", b: "5", want: 1},
	}
	for _, tc := range tests {
		if got := CompareKeys(tc.a, tc.b); got != tc.want {
			t.Fatalf("CompareKeys(%q,%q)=%d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
