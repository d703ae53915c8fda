// Package transformer reshapes loaded tables into the per-user statistics
// table: explode compound lists, aggregate per user, then join reference data.
package transformer

import (
	"strings"

	"userstats/internal/dataset"
	"userstats/internal/etlerr"
	"userstats/internal/storage"
)

// Link is one (experiment, compound) pair. CompoundID is a string token, or
// nil for an experiment whose compound list is empty.
type Link struct {
	ExperimentID any
	UserID       any
	CompoundID   any
}

// SplitCompoundIDs splits a compound list cell on ';'. Tokens are kept
// verbatim, including empty ones from leading, trailing or doubled
// separators. A nil cell has no tokens.
func SplitCompoundIDs(cell any) []string {
	if cell == nil {
		return nil
	}
	s, ok := cell.(string)
	if !ok {
		s = storage.NormalizeKey(cell)
	}
	return strings.Split(s, ";")
}

// Explode returns one Link per (experiment, token), in experiment order then
// token order. An experiment with no tokens yields a single Link with a nil
// CompoundID so the experiment is still counted downstream.
func Explode(experiments *dataset.Table) ([]Link, error) {
	idx, err := columnIndexes(experiments, dataset.ColExperimentID, dataset.ColUserID, dataset.ColCompoundIDs)
	if err != nil {
		return nil, err
	}
	expCol, userCol, idsCol := idx[0], idx[1], idx[2]

	out := make([]Link, 0, len(experiments.Rows))
	for _, r := range experiments.Rows {
		tokens := SplitCompoundIDs(r[idsCol])
		if len(tokens) == 0 {
			out = append(out, Link{ExperimentID: r[expCol], UserID: r[userCol]})
			continue
		}
		for _, tok := range tokens {
			out = append(out, Link{ExperimentID: r[expCol], UserID: r[userCol], CompoundID: tok})
		}
	}
	return out, nil
}

func columnIndexes(t *dataset.Table, names ...string) ([]int, error) {
	out := make([]int, len(names))
	for i, n := range names {
		out[i] = t.ColumnIndex(n)
		if out[i] < 0 {
			return nil, etlerr.Parsef(t.Name, "missing column %q", n)
		}
	}
	return out, nil
}
