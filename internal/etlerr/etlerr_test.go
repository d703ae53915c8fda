package etlerr

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: KindUnknown},
		{name: "plain", err: errors.New("boom"), want: KindUnknown},
		{name: "missing_input", err: MissingInput("open users.csv", fs.ErrNotExist), want: KindMissingInput},
		{name: "wrapped_parse", err: fmt.Errorf("load: %w", Parsef("users", "line %d", 3)), want: KindParse},
		{name: "sink", err: Sink("write", errors.New("refused")), want: KindSink},
		{name: "config", err: Config("validate", errors.New("DB_HOSTNAME missing")), want: KindConfig},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindOf(tc.err))
		})
	}
}

func TestErrorsIs_MatchesSentinelByKind(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("run: %w", MissingInput("open compounds.csv", fs.ErrNotExist))

	require.ErrorIs(t, err, ErrMissingInput)
	require.ErrorIs(t, err, fs.ErrNotExist)
	require.NotErrorIs(t, err, ErrParse)
}

func TestError_Message(t *testing.T) {
	t.Parallel()

	err := Parse("experiments", errors.New("line 4: expected 4 fields, got 3"))
	assert.Equal(t, "parse: experiments: line 4: expected 4 fields, got 3", err.Error())
	assert.Equal(t, "sink", (&Error{Kind: KindSink}).Error())
}
