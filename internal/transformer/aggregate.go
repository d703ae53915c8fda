package transformer

import (
	"slices"
	"strings"

	"userstats/internal/dataset"
	"userstats/internal/etlerr"
	"userstats/internal/storage"
)

// UserStats is the per-user experiment summary.
type UserStats struct {
	// UserKey is the normalized user id used for grouping and joins.
	UserKey string
	// UserID is the first raw user id seen for the group.
	UserID any

	TotalExperimentCount int64
	// MeanExperimentDuration is nil when no row in the group has a run time.
	MeanExperimentDuration *float64
}

// Favorite is a user's most used compound.
type Favorite struct {
	UserKey                  string
	CompoundID               string
	ExperimentsUsingCompound int64
}

// ExperimentStats groups experiments by user. The count covers every row of
// the group; the mean covers rows with a run time. Rows without a user id
// form no group. Results are ordered by user key.
func ExperimentStats(experiments *dataset.Table) ([]UserStats, error) {
	idx, err := columnIndexes(experiments, dataset.ColUserID, dataset.ColRunTime)
	if err != nil {
		return nil, err
	}
	userCol, runCol := idx[0], idx[1]

	type acc struct {
		stats UserStats
		sum   float64
		n     int64
	}
	groups := make(map[string]*acc)
	for i, r := range experiments.Rows {
		uid := r[userCol]
		if uid == nil {
			continue
		}
		key := storage.NormalizeKey(uid)
		g := groups[key]
		if g == nil {
			g = &acc{stats: UserStats{UserKey: key, UserID: uid}}
			groups[key] = g
		}
		g.stats.TotalExperimentCount++

		switch v := r[runCol].(type) {
		case nil:
		case float64:
			g.sum += v
			g.n++
		case int64:
			g.sum += float64(v)
			g.n++
		default:
			return nil, etlerr.Parsef(experiments.Name, "row %d: %s is not numeric: %v", i+1, dataset.ColRunTime, v)
		}
	}

	out := make([]UserStats, 0, len(groups))
	for _, g := range groups {
		if g.n > 0 {
			mean := g.sum / float64(g.n)
			g.stats.MeanExperimentDuration = &mean
		}
		out = append(out, g.stats)
	}
	slices.SortFunc(out, func(a, b UserStats) int { return storage.CompareKeys(a.UserKey, b.UserKey) })
	return out, nil
}

// FavoriteCompounds counts links per (user, compound) and keeps, per user, the
// compound with the highest count. Ties go to the lexicographically smallest
// compound id. Links without a user or compound are ignored. Results are
// ordered by user key.
func FavoriteCompounds(links []Link) []Favorite {
	type pair struct{ user, compound string }
	counts := make(map[pair]int64)
	for _, l := range links {
		if l.UserID == nil || l.CompoundID == nil {
			continue
		}
		c, ok := l.CompoundID.(string)
		if !ok {
			c = storage.NormalizeKey(l.CompoundID)
		}
		counts[pair{user: storage.NormalizeKey(l.UserID), compound: c}]++
	}

	best := make(map[string]Favorite)
	for p, n := range counts {
		cur, ok := best[p.user]
		if !ok || n > cur.ExperimentsUsingCompound ||
			(n == cur.ExperimentsUsingCompound && strings.Compare(p.compound, cur.CompoundID) < 0) {
			best[p.user] = Favorite{UserKey: p.user, CompoundID: p.compound, ExperimentsUsingCompound: n}
		}
	}

	out := make([]Favorite, 0, len(best))
	for _, f := range best {
		out = append(out, f)
	}
	slices.SortFunc(out, func(a, b Favorite) int { return storage.CompareKeys(a.UserKey, b.UserKey) })
	return out
}
