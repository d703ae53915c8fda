package html

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadTable_HeaderFromTH(t *testing.T) {
	t.Parallel()

	doc := `<html><body>
<p>report</p>
<table>
  <thead><tr><th> compound_id </th><th>compound_name</th></tr></thead>
  <tbody>
    <tr><td>C1</td><td>Aspirin</td></tr>
    <tr><td>C2</td><td></td></tr>
  </tbody>
</table>
<table><tr><th>ignored</th></tr></table>
</body></html>`

	hdr, rows, err := ReadTable(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"compound_id", "compound_name"}, hdr)
	assert.Equal(t, [][]string{{"C1", "Aspirin"}, {"C2", ""}}, rows)
}

func TestReadTable_FirstRowIsHeaderWithoutTH(t *testing.T) {
	t.Parallel()

	doc := `<table><tr><td>user_id</td><td>name</td></tr><tr><td>1</td><td>Ann</td></tr></table>`
	hdr, rows, err := ReadTable(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"user_id", "name"}, hdr)
	assert.Equal(t, [][]string{{"1", "Ann"}}, rows)
}

func TestReadTable_SkipsNestedTableRows(t *testing.T) {
	t.Parallel()

	doc := `<table>
<tr><th>a</th><th>b</th></tr>
<tr><td>1</td><td><table><tr><td>inner</td></tr></table></td></tr>
</table>`
	_, rows, err := ReadTable(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1", rows[0][0])
}

func TestReadTable_NoTable(t *testing.T) {
	t.Parallel()

	_, _, err := ReadTable(strings.NewReader(`<html><body><p>nothing</p></body></html>`))
	assert.True(t, errors.Is(err, ErrNoTable))
}
