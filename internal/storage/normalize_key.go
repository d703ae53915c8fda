package storage

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizeKey converts a key value to a canonical string form, suitable for
// in-memory join and grouping maps (e.g. "C12" or "8429529").
//
// Loaded tables may type the same logical key differently (user_id is an
// integer column in users.csv but compound ids arrive as text tokens), so
// joins must never compare the raw values.
func NormalizeKey(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []byte:
		return strings.TrimSpace(string(t))
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// CompareKeys orders two normalized keys. When both parse as integers they
// compare numerically, so "9" sorts before "10"; otherwise they compare as
// strings. Integers sort before non-integers.
func CompareKeys(a, b string) int {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	}
	return strings.Compare(a, b)
}
