package pipeline

import (
	"errors"
	"strings"

	"userstats/internal/dataset"
	"userstats/internal/etlerr"
	"userstats/internal/storage"
)

// Params are the inputs of one run: where the three files live and where the
// summary table goes.
type Params struct {
	DataRoot        string
	ExperimentsFile string
	CompoundsFile   string
	UsersFile       string

	SinkKind string
	DB       storage.ConnParams
	Schema   string
	Table    string
}

// Validate reports every missing field, and a destination that cannot be
// addressed (a network sink without a host, sqlite without a path, an unknown
// kind), in one config error.
func (p Params) Validate() error {
	var missing []string
	check := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	check("data root", p.DataRoot)
	check("experiments file", p.ExperimentsFile)
	check("compounds file", p.CompoundsFile)
	check("users file", p.UsersFile)
	check("sink kind", p.SinkKind)
	check("table", p.Table)
	var problems []string
	if len(missing) > 0 {
		problems = append(problems, "missing "+strings.Join(missing, ", "))
	}
	if strings.TrimSpace(p.SinkKind) != "" {
		if _, err := storage.BuildDSN(p.SinkKind, p.DB); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if len(problems) > 0 {
		return etlerr.Config("params", errors.New(strings.Join(problems, "; ")))
	}
	return nil
}

// Files returns the input file names.
func (p Params) Files() dataset.Files {
	return dataset.Files{
		Experiments: p.ExperimentsFile,
		Compounds:   p.CompoundsFile,
		Users:       p.UsersFile,
	}
}

// Target identifies the destination table without credentials. Two runs with
// the same Target write the same table.
func (p Params) Target() string {
	return p.DB.Target(p.SinkKind) + "/" + storage.TableSpec{Schema: p.Schema, Name: p.Table}.QualifiedName()
}
