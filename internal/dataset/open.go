package dataset

import (
	"context"
	"errors"
	"io"

	"userstats/internal/source"
)

// Files names the three inputs of a run, relative to the data root.
type Files struct {
	Experiments string
	Compounds   string
	Users       string
}

// Input is one opened, not yet parsed, input stream.
type Input struct {
	Spec Spec
	File string
	rc   io.ReadCloser
}

// Inputs holds the three opened streams of a run. Close is idempotent.
type Inputs struct {
	Experiments Input
	Compounds   Input
	Users       Input
}

func (in *Inputs) all() []*Input {
	return []*Input{&in.Experiments, &in.Compounds, &in.Users}
}

// Close closes every stream that is still open.
func (in *Inputs) Close() error {
	var errs []error
	for _, i := range in.all() {
		if i.rc == nil {
			continue
		}
		if err := i.rc.Close(); err != nil {
			errs = append(errs, err)
		}
		i.rc = nil
	}
	return errors.Join(errs...)
}

// Open opens all three inputs under root. If any cannot be opened, the ones
// already opened are closed and the opener's error (a missing-input error) is
// returned.
func Open(ctx context.Context, op source.Opener, root string, files Files) (*Inputs, error) {
	in := &Inputs{
		Experiments: Input{Spec: Experiments, File: files.Experiments},
		Compounds:   Input{Spec: Compounds, File: files.Compounds},
		Users:       Input{Spec: Users, File: files.Users},
	}
	for _, i := range in.all() {
		rc, err := op.Open(ctx, root, i.File)
		if err != nil {
			_ = in.Close()
			return nil, err
		}
		i.rc = rc
	}
	return in, nil
}

// LoadAll parses the three opened inputs. The streams are closed when it
// returns, whether loading succeeded or not.
func LoadAll(ctx context.Context, in *Inputs) (*Datasets, error) {
	defer in.Close()

	var tables [3]*Table
	for n, i := range in.all() {
		if i.rc == nil {
			return nil, errors.New("dataset: input " + i.Spec.Name + " is not open")
		}
		t, err := Load(ctx, i.Spec, i.rc, FormatFor(i.File))
		if err != nil {
			return nil, err
		}
		tables[n] = t
	}
	return &Datasets{Experiments: tables[0], Compounds: tables[1], Users: tables[2]}, nil
}
