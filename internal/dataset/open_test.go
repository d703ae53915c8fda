package dataset

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"userstats/internal/etlerr"
	"userstats/internal/source"
)

type trackingCloser struct {
	io.Reader
	closed *int
}

func (c trackingCloser) Close() error { *c.closed++; return nil }

type memOpener struct {
	files  map[string]string
	closed int
}

func (m *memOpener) Open(ctx context.Context, root, name string) (io.ReadCloser, error) {
	body, ok := m.files[name]
	if !ok {
		return nil, etlerr.MissingInput("open "+name, os.ErrNotExist)
	}
	return trackingCloser{Reader: strings.NewReader(body), closed: &m.closed}, nil
}

var files = Files{Experiments: "user_experiments.csv", Compounds: "compounds.csv", Users: "users.csv"}

func TestOpen_MissingInputClosesOpenedStreams(t *testing.T) {
	t.Parallel()

	op := &memOpener{files: map[string]string{
		"user_experiments.csv": "experiment_id\n",
		"compounds.csv":        "compound_id\n",
	}}
	_, err := Open(context.Background(), op, "root", files)
	require.Error(t, err)
	assert.Equal(t, etlerr.KindMissingInput, etlerr.KindOf(err))
	assert.Equal(t, 2, op.closed)
}

func TestLoadAll_ClosesStreamsOnParseError(t *testing.T) {
	t.Parallel()

	op := &memOpener{files: map[string]string{
		"user_experiments.csv": "experiment_id, user_id, experiment_compound_ids, experiment_run_time\n1, 1, C1\n",
		"compounds.csv":        "compound_id\nC1\n",
		"users.csv":            "user_id\n1\n",
	}}
	in, err := Open(context.Background(), op, "root", files)
	require.NoError(t, err)

	_, err = LoadAll(context.Background(), in)
	assert.Equal(t, etlerr.KindParse, etlerr.KindOf(err))
	assert.Equal(t, 3, op.closed)

	// Closing again is a no-op.
	require.NoError(t, in.Close())
	assert.Equal(t, 3, op.closed)
}

func TestLoadAll_FromDisk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("user_experiments.csv", "experiment_id, user_id, experiment_compound_ids, experiment_run_time\n1, 1, C1;C2, 10\n")
	write("compounds.csv", "compound_id, compound_name\nC1, Aspirin\n")
	write("users.csv", "user_id, name\n1, Ann\n")

	in, err := Open(context.Background(), source.FS{}, dir, files)
	require.NoError(t, err)
	ds, err := LoadAll(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 1, ds.Experiments.Len())
	assert.Equal(t, "", ds.Experiments.Key)
	_, ok := ds.Compounds.Lookup("C1")
	assert.True(t, ok)
	_, ok = ds.Users.Lookup("1")
	assert.True(t, ok)
}
