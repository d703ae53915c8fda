package dataset

import (
	"path/filepath"
	"strings"
)

// Column names the pipeline reads.
const (
	ColExperimentID = "experiment_id"
	ColUserID       = "user_id"
	ColRunTime      = "experiment_run_time"
	ColCompoundIDs  = "experiment_compound_ids"
	ColCompoundID   = "compound_id"
)

// Spec describes one input: its name, its lookup key and the columns it must
// carry.
type Spec struct {
	Name     string
	Key      string
	Required []string
	// Numeric columns must infer as integer or float.
	Numeric []string
	// TextKey loads the key column as text, verbatim, for keys matched
	// against text tokens ("007" must not become 7).
	TextKey bool
}

var (
	Experiments = Spec{
		Name:     "experiments",
		Required: []string{ColExperimentID, ColUserID, ColRunTime, ColCompoundIDs},
		Numeric:  []string{ColRunTime},
	}
	Compounds = Spec{Name: "compounds", Key: ColCompoundID, Required: []string{ColCompoundID}, TextKey: true}
	Users     = Spec{Name: "users", Key: ColUserID, Required: []string{ColUserID}}
)

// Format is the on-disk layout of an input.
type Format int

const (
	FormatDelimited Format = iota
	FormatHTML
)

// FormatFor picks the format from the file extension: .html and .htm are
// HTML tables, anything else is comma-delimited text.
func FormatFor(file string) Format {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".html", ".htm":
		return FormatHTML
	default:
		return FormatDelimited
	}
}

func (f Format) String() string {
	if f == FormatHTML {
		return "html"
	}
	return "delimited"
}
