package transformer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Fingerprint returns a deterministic SHA-256 (lowercase hex) over the
// result's column names, types and rows. Two runs over unchanged inputs
// produce the same fingerprint.
//
// Canonical form:
//   - fields are separated by 0x1f, rows by 0x1e
//   - nil is a single NUL byte, so nil differs from ""
//   - floats use the shortest representation that round-trips
func Fingerprint(r *Result) string {
	h := sha256.New()
	var b strings.Builder

	for i, c := range r.Columns {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		b.WriteString(c.Name)
		b.WriteByte(':')
		b.WriteString(string(c.Type))
	}
	b.WriteByte('\x1e')
	h.Write([]byte(b.String()))

	for _, row := range r.Rows {
		b.Reset()
		for i, v := range row {
			if i > 0 {
				b.WriteByte('\x1f')
			}
			appendCanonicalValue(&b, v)
		}
		b.WriteByte('\x1e')
		h.Write([]byte(b.String()))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// appendCanonicalValue appends a stable representation of v without
// fmt.Sprint for the types a loaded table holds.
func appendCanonicalValue(b *strings.Builder, v any) {
	switch t := v.(type) {
	case nil:
		b.WriteByte('\x00')
	case string:
		b.WriteString(t)
	case bool:
		b.WriteString(strconv.FormatBool(t))
	case int64:
		b.WriteString(strconv.FormatInt(t, 10))
	case int:
		b.WriteString(strconv.Itoa(t))
	case float64:
		b.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
	default:
		b.WriteString(fmt.Sprint(t))
	}
}
