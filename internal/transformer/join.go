package transformer

import (
	"fmt"
	"strings"

	"userstats/internal/dataset"
	"userstats/internal/storage"
)

// Output column names.
const (
	ColUserID                   = "user_id"
	ColTotalExperimentCount     = "total_experiment_count"
	ColMeanExperimentDuration   = "mean_experiment_duration"
	ColFavoriteCompound         = "favorite_compound"
	ColExperimentsUsingCompound = "experiments_using_compound"
)

// Result is the assembled output table.
type Result struct {
	Columns []storage.ColumnSpec
	Rows    [][]any
}

// TableSpec returns the destination table description for r.
func (r *Result) TableSpec(schema, name string) storage.TableSpec {
	return storage.TableSpec{Schema: schema, Name: name, Columns: r.Columns}
}

// Assemble joins the aggregates with the reference tables:
//
//	stats ⋈ favorites        inner, on user key
//	      ⟕ users            left, on user_id
//	      ⟕ compounds        left, on favorite_compound = compound_id
//
// A user with stats but no favorite is dropped. Unknown users and compounds
// produce nil attributes. Rows keep the order of stats.
//
// Output columns are the five statistics columns, then the non-key user
// columns, then the non-key compound columns, each in file order. A name
// already taken gets a "user_" or "compound_" prefix, then a numeric suffix.
func Assemble(stats []UserStats, favorites []Favorite, users, compounds *dataset.Table) (*Result, error) {
	userIDType := storage.TypeText
	if c := users.ColumnIndex(dataset.ColUserID); c >= 0 {
		userIDType = users.Columns[c].Type
	}
	if len(stats) > 0 {
		userIDType = valueType(stats[0].UserID, userIDType)
	}

	res := &Result{Columns: []storage.ColumnSpec{
		{Name: ColUserID, Type: userIDType},
		{Name: ColTotalExperimentCount, Type: storage.TypeInteger},
		{Name: ColMeanExperimentDuration, Type: storage.TypeFloat, Nullable: true},
		{Name: ColFavoriteCompound, Type: storage.TypeText},
		{Name: ColExperimentsUsingCompound, Type: storage.TypeInteger},
	}}
	// Keyed by lower-cased name: destinations compare identifiers without
	// case.
	taken := make(map[string]bool)
	for _, c := range res.Columns {
		taken[strings.ToLower(c.Name)] = true
	}
	userCols := res.appendAttrs(users, "user_", taken)
	compoundCols := res.appendAttrs(compounds, "compound_", taken)

	favByUser := make(map[string]Favorite, len(favorites))
	for _, f := range favorites {
		favByUser[f.UserKey] = f
	}

	res.Rows = make([][]any, 0, len(stats))
	for _, s := range stats {
		fav, ok := favByUser[s.UserKey]
		if !ok {
			continue
		}

		row := make([]any, 0, len(res.Columns))
		var mean any
		if s.MeanExperimentDuration != nil {
			mean = *s.MeanExperimentDuration
		}
		row = append(row, s.UserID, s.TotalExperimentCount, mean, fav.CompoundID, fav.ExperimentsUsingCompound)

		urow, _ := users.Lookup(s.UserKey)
		row = appendValues(row, urow, userCols)
		crow, _ := compounds.Lookup(storage.NormalizeKey(fav.CompoundID))
		row = appendValues(row, crow, compoundCols)

		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

// appendAttrs adds t's non-key columns to r and returns their positions in t.
func (r *Result) appendAttrs(t *dataset.Table, prefix string, taken map[string]bool) []int {
	var idx []int
	for i, c := range t.Columns {
		if c.Name == t.Key {
			continue
		}
		name := uniqueName(c.Name, prefix, taken)
		taken[strings.ToLower(name)] = true
		r.Columns = append(r.Columns, storage.ColumnSpec{Name: name, Type: c.Type, Nullable: true})
		idx = append(idx, i)
	}
	return idx
}

// uniqueName returns name, or a prefixed and then numbered variant of it,
// that is not in taken regardless of case.
func uniqueName(name, prefix string, taken map[string]bool) string {
	free := func(n string) bool { return !taken[strings.ToLower(n)] }
	if free(name) {
		return name
	}
	name = prefix + name
	if free(name) {
		return name
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d", name, n)
		if free(candidate) {
			return candidate
		}
	}
}

// appendValues appends src[idx...] to row, or nils when src is nil.
func appendValues(row, src []any, idx []int) []any {
	for _, i := range idx {
		if src == nil {
			row = append(row, nil)
			continue
		}
		row = append(row, src[i])
	}
	return row
}

// valueType maps a loaded value to its column type, falling back to def.
func valueType(v any, def storage.ColumnType) storage.ColumnType {
	switch v.(type) {
	case int64:
		return storage.TypeInteger
	case float64:
		return storage.TypeFloat
	case bool:
		return storage.TypeBoolean
	case string:
		return storage.TypeText
	default:
		return def
	}
}
