package dataset

import (
	"fmt"
	"strconv"
	"strings"

	"userstats/internal/storage"
)

// inferTypes infers a logical type per column over every row. Empty cells are
// ignored; a column with no values is text.
//
// Integers are a subset of floats, so a column mixing "1" and "1.5" is float.
// Booleans are only "true"/"false" (any case); 0/1 stay integers.
func inferTypes(ncols int, rows [][]string) []storage.ColumnType {
	out := make([]storage.ColumnType, ncols)
	for col := range out {
		var seen bool
		allInt, allFloat, allBool := true, true, true

		for _, r := range rows {
			v := strings.TrimSpace(r[col])
			if v == "" {
				continue
			}
			seen = true

			if allInt {
				if _, err := strconv.ParseInt(v, 10, 64); err != nil {
					allInt = false
				}
			}
			if allFloat {
				if _, err := strconv.ParseFloat(v, 64); err != nil {
					allFloat = false
				}
			}
			if allBool {
				if _, ok := parseBool(v); !ok {
					allBool = false
				}
			}
			if !allInt && !allFloat && !allBool {
				break
			}
		}

		switch {
		case !seen:
			out[col] = storage.TypeText
		case allInt:
			out[col] = storage.TypeInteger
		case allFloat:
			out[col] = storage.TypeFloat
		case allBool:
			out[col] = storage.TypeBoolean
		default:
			out[col] = storage.TypeText
		}
	}
	return out
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

// convert turns a raw cell into a typed value. Blank cells are nil. Text is
// kept verbatim; other types are parsed from the trimmed cell.
func convert(raw string, t storage.ColumnType) (any, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil, nil
	}
	switch t {
	case storage.TypeInteger:
		return strconv.ParseInt(v, 10, 64)
	case storage.TypeFloat:
		return strconv.ParseFloat(v, 64)
	case storage.TypeBoolean:
		b, ok := parseBool(v)
		if !ok {
			return nil, fmt.Errorf("invalid boolean %q", v)
		}
		return b, nil
	default:
		return raw, nil
	}
}
