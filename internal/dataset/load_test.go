package dataset

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"userstats/internal/etlerr"
	"userstats/internal/storage"
)

const experimentsCSV = "\uFEFFexperiment_id, user_id, experiment_compound_ids, experiment_run_time\n" +
	"1,\t1, C1;C2;C3, 10\n" +
	"\n" +
	"2, 1, C2, 20.5\n" +
	"3, 2, , \n"

func TestLoad_TolerantDelimiterAndTypes(t *testing.T) {
	t.Parallel()

	tbl, err := Load(context.Background(), Experiments, strings.NewReader(experimentsCSV), FormatDelimited)
	require.NoError(t, err)

	assert.Equal(t, []string{"experiment_id", "user_id", "experiment_compound_ids", "experiment_run_time"}, tbl.ColumnNames())
	assert.Equal(t, storage.TypeInteger, tbl.Columns[0].Type)
	assert.Equal(t, storage.TypeInteger, tbl.Columns[1].Type)
	assert.Equal(t, storage.TypeText, tbl.Columns[2].Type)
	assert.Equal(t, storage.TypeFloat, tbl.Columns[3].Type)

	require.Equal(t, 3, tbl.Len())
	assert.Equal(t, []any{int64(1), int64(1), "C1;C2;C3", 10.0}, tbl.Rows[0])
	assert.Equal(t, []any{int64(2), int64(1), "C2", 20.5}, tbl.Rows[1])
	assert.Equal(t, []any{int64(3), int64(2), nil, nil}, tbl.Rows[2])
}

func TestLoad_FieldCountMismatchIsParseErrorWithLine(t *testing.T) {
	t.Parallel()

	in := "user_id, name\n1, Ann\n\n2, Bob, extra\n"
	_, err := Load(context.Background(), Users, strings.NewReader(in), FormatDelimited)
	require.Error(t, err)
	assert.Equal(t, etlerr.KindParse, etlerr.KindOf(err))
	assert.Contains(t, err.Error(), "line 4")
}

func TestLoad_MissingColumns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		spec Spec
		in   string
	}{
		{name: "users_without_key", spec: Users, in: "id, name\n1, Ann\n"},
		{name: "compounds_without_key", spec: Compounds, in: "id\nC1\n"},
		{name: "experiments_without_run_time", spec: Experiments, in: "experiment_id, user_id, experiment_compound_ids\n1, 1, C1\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(context.Background(), tc.spec, strings.NewReader(tc.in), FormatDelimited)
			assert.Equal(t, etlerr.KindParse, etlerr.KindOf(err))
			assert.Contains(t, err.Error(), "missing column")
		})
	}
}

func TestLoad_NonNumericRunTimeIsParseError(t *testing.T) {
	t.Parallel()

	in := "experiment_id, user_id, experiment_compound_ids, experiment_run_time\n1, 1, C1, fast\n"
	_, err := Load(context.Background(), Experiments, strings.NewReader(in), FormatDelimited)
	assert.Equal(t, etlerr.KindParse, etlerr.KindOf(err))
}

func TestLoad_AllEmptyRunTimeIsAllowed(t *testing.T) {
	t.Parallel()

	in := "experiment_id, user_id, experiment_compound_ids, experiment_run_time\n1, 1, C1,\n"
	tbl, err := Load(context.Background(), Experiments, strings.NewReader(in), FormatDelimited)
	require.NoError(t, err)
	assert.Nil(t, tbl.Rows[0][3])
}

func TestLoad_EmptyInputIsParseError(t *testing.T) {
	t.Parallel()

	_, err := Load(context.Background(), Users, strings.NewReader("\n\n"), FormatDelimited)
	assert.Equal(t, etlerr.KindParse, etlerr.KindOf(err))
}

func TestLoad_HeaderOnlyIsEmptyTable(t *testing.T) {
	t.Parallel()

	tbl, err := Load(context.Background(), Users, strings.NewReader("user_id, name\n"), FormatDelimited)
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Len())
	_, ok := tbl.Lookup("1")
	assert.False(t, ok)
}

func TestLoad_KeyLookupFirstDuplicateWins(t *testing.T) {
	t.Parallel()

	in := "user_id, name, active\n1, Ann, true\n2, Bob, FALSE\n1, Dup, true\n"
	tbl, err := Load(context.Background(), Users, strings.NewReader(in), FormatDelimited)
	require.NoError(t, err)

	assert.Equal(t, storage.TypeBoolean, tbl.Columns[2].Type)
	row, ok := tbl.Lookup("1")
	require.True(t, ok)
	assert.Equal(t, "Ann", row[1])
	row, ok = tbl.Lookup("2")
	require.True(t, ok)
	assert.Equal(t, false, row[2])
	assert.Equal(t, 1, tbl.Duplicates())
}

func TestLoad_HTMLTable(t *testing.T) {
	t.Parallel()

	doc := `<table>
<tr><th>compound_id</th><th>compound_name</th><th>compound_structure</th></tr>
<tr><td>C1</td><td>Aspirin</td><td>C9H8O4</td></tr>
<tr><td>C2</td><td>Caffeine</td><td></td></tr>
</table>`
	tbl, err := Load(context.Background(), Compounds, strings.NewReader(doc), FormatHTML)
	require.NoError(t, err)

	row, ok := tbl.Lookup("C2")
	require.True(t, ok)
	assert.Equal(t, []any{"C2", "Caffeine", nil}, row)
}

func TestLoad_CompoundKeyKeepsSpelling(t *testing.T) {
	t.Parallel()

	tbl, err := Load(context.Background(), Compounds, strings.NewReader("compound_id, weight\n007, 1.5\n+5, 2\n"), FormatDelimited)
	require.NoError(t, err)

	assert.Equal(t, storage.TypeText, tbl.Columns[0].Type)
	assert.Equal(t, storage.TypeFloat, tbl.Columns[1].Type)
	row, ok := tbl.Lookup("007")
	require.True(t, ok)
	assert.Equal(t, []any{"007", 1.5}, row)
	_, ok = tbl.Lookup("7")
	assert.False(t, ok)
	_, ok = tbl.Lookup("+5")
	assert.True(t, ok)
}

func TestLoad_HTMLRaggedRowIsParseError(t *testing.T) {
	t.Parallel()

	doc := `<table><tr><th>compound_id</th><th>name</th></tr><tr><td>C1</td></tr></table>`
	_, err := Load(context.Background(), Compounds, strings.NewReader(doc), FormatHTML)
	assert.Equal(t, etlerr.KindParse, etlerr.KindOf(err))
	assert.Contains(t, err.Error(), "line 2")
}

func TestLoad_ReadFailureIsMissingInput(t *testing.T) {
	t.Parallel()

	boom := errors.New("unexpected EOF from peer")
	for _, format := range []Format{FormatDelimited, FormatHTML} {
		t.Run(format.String(), func(t *testing.T) {
			t.Parallel()
			r := io.MultiReader(strings.NewReader("user_id, name\n1, Alice\n"), iotest.ErrReader(boom))

			_, err := Load(context.Background(), Users, r, format)
			require.Error(t, err)
			assert.Equal(t, etlerr.KindMissingInput, etlerr.KindOf(err), "got %v", err)
			assert.ErrorIs(t, err, boom)
		})
	}
}

func TestLoad_CanceledContextIsNotWrapped(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Load(ctx, Users, strings.NewReader("user_id, name\n1, Alice\n"), FormatDelimited)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotEqual(t, etlerr.KindParse, etlerr.KindOf(err))
}

func TestInferTypes(t *testing.T) {
	t.Parallel()

	rows := [][]string{
		{"1", "1", "true", "x", "", "0"},
		{"2", "1.5", "False", "1", "", "1"},
		{" 3 ", "", "", "", "", ""},
	}
	got := inferTypes(6, rows)
	want := []storage.ColumnType{
		storage.TypeInteger,
		storage.TypeFloat,
		storage.TypeBoolean,
		storage.TypeText,
		storage.TypeText,
		storage.TypeInteger,
	}
	assert.Equal(t, want, got)
}

func TestFormatFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, FormatHTML, FormatFor("report.HTML"))
	assert.Equal(t, FormatHTML, FormatFor("a/b.htm"))
	assert.Equal(t, FormatDelimited, FormatFor("users.csv"))
	assert.Equal(t, FormatDelimited, FormatFor("users"))
}
